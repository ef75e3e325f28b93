package source

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"time"

	"trade_engine/internal/bus"
	"trade_engine/internal/market"
	"trade_engine/internal/models"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

type CSVConfig struct {
	Path          string
	InstID        string
	Timeframe     string
	WarmupCandles int
	// ReplayDelay — пауза между свечами в Stream; 0 — без пейсинга.
	ReplayDelay time.Duration
}

// CSVSource реплеит статический датасет: первые WarmupCandles свечей уходят
// историей, остальные — по одной в Stream, строго по хронологии.
// Формат строки: timestamp,open,high,low,close,volume.
type CSVSource struct {
	log *zap.Logger
	b   *bus.Bus
	cfg CSVConfig

	candles []models.Candle
	warmed  bool
}

func NewCSVSource(log *zap.Logger, b *bus.Bus, cfg CSVConfig) *CSVSource {
	return &CSVSource{log: log, b: b, cfg: cfg}
}

func (s *CSVSource) Warmup(ctx context.Context) error {
	candles, err := s.load()
	if err != nil {
		return err
	}
	if len(candles) < s.cfg.WarmupCandles {
		return errors.Wrapf(ErrNotEnoughHistory, "have %d, need %d", len(candles), s.cfg.WarmupCandles)
	}
	s.candles = candles

	history := candles[:s.cfg.WarmupCandles]
	s.log.Info("[SOURCE] warmup from csv",
		zap.String("path", s.cfg.Path),
		zap.Int("history", len(history)),
		zap.Int("total", len(candles)))

	s.b.Publish(ctx, models.CandleHistoryReady{
		InstID:    s.cfg.InstID,
		Timeframe: s.cfg.Timeframe,
		Candles:   history,
	})
	s.warmed = true
	return nil
}

func (s *CSVSource) Stream(ctx context.Context) error {
	if !s.warmed {
		return errors.New("stream before warmup")
	}

	for _, c := range s.candles[s.cfg.WarmupCandles:] {
		if err := ctx.Err(); err != nil {
			return err
		}
		if s.cfg.ReplayDelay > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(s.cfg.ReplayDelay):
			}
		}
		s.b.Publish(ctx, models.CandleClose{InstID: s.cfg.InstID, Candle: c})
	}

	s.log.Info("[SOURCE] csv replay finished",
		zap.Int("replayed", len(s.candles)-s.cfg.WarmupCandles))
	return nil
}

func (s *CSVSource) load() ([]models.Candle, error) {
	f, err := os.Open(s.cfg.Path)
	if err != nil {
		return nil, errors.Wrap(err, "open csv")
	}
	defer f.Close()

	return parseCandles(f, s.cfg.InstID, s.cfg.Timeframe)
}

func parseCandles(r io.Reader, instID, timeframe string) ([]models.Candle, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 6
	tfDur := market.TimeframeDuration(timeframe)

	var out []models.Candle
	line := 0
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "read csv")
		}
		line++

		// первая строка может быть заголовком
		if line == 1 && rec[0] == "timestamp" {
			continue
		}

		ts, err := strconv.ParseInt(rec[0], 10, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "line %d: timestamp", line)
		}
		// миллисекунды или секунды — различаем по порядку величины
		var start time.Time
		if ts >= 1e12 {
			start = time.UnixMilli(ts).UTC()
		} else {
			start = time.Unix(ts, 0).UTC()
		}

		var vals [5]float64
		for i := 0; i < 5; i++ {
			v, err := strconv.ParseFloat(rec[i+1], 64)
			if err != nil {
				return nil, errors.Wrapf(err, "line %d: field %d", line, i+1)
			}
			vals[i] = v
		}

		c := models.Candle{
			InstID:    instID,
			Open:      vals[0],
			High:      vals[1],
			Low:       vals[2],
			Close:     vals[3],
			Volume:    vals[4],
			Start:     start,
			End:       start.Add(tfDur),
			Timeframe: timeframe,
			Index:     int64(len(out)),
		}

		if n := len(out); n > 0 && !c.Start.After(out[n-1].Start) {
			return nil, errors.Errorf("line %d: candles out of chronological order", line)
		}
		out = append(out, c)
	}
	return out, nil
}
