package source

import (
	"context"

	"trade_engine/internal/bus"
	"trade_engine/internal/models"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// MarketClient — то, что нужно exchange-источнику от биржи.
type MarketClient interface {
	GetCandles(ctx context.Context, instID, timeframe string, limit int) ([]models.Candle, error)
	StreamCandles(ctx context.Context, instID, timeframe string) <-chan models.Candle
}

type ExchangeConfig struct {
	InstID        string
	Timeframe     string
	WarmupCandles int
}

// ExchangeSource — реалтайм-источник: история по REST, дальше WS-поток.
// Свечи, пересекающиеся с уже опубликованными (реконнект, нахлёст истории),
// отбрасываются по Start — каждая свеча публикуется ровно один раз.
type ExchangeSource struct {
	log    *zap.Logger
	b      *bus.Bus
	client MarketClient
	cfg    ExchangeConfig

	warmed    bool
	lastStart int64 // UnixMilli последней опубликованной свечи
	nextIndex int64
}

func NewExchangeSource(log *zap.Logger, b *bus.Bus, client MarketClient, cfg ExchangeConfig) *ExchangeSource {
	return &ExchangeSource{log: log, b: b, client: client, cfg: cfg}
}

func (s *ExchangeSource) Warmup(ctx context.Context) error {
	candles, err := s.client.GetCandles(ctx, s.cfg.InstID, s.cfg.Timeframe, s.cfg.WarmupCandles)
	if err != nil {
		return errors.Wrap(err, "fetch warmup history")
	}
	if len(candles) < s.cfg.WarmupCandles {
		return errors.Wrapf(ErrNotEnoughHistory, "have %d, need %d", len(candles), s.cfg.WarmupCandles)
	}
	for i := range candles {
		candles[i].Index = int64(i)
	}
	s.lastStart = candles[len(candles)-1].Start.UnixMilli()
	s.nextIndex = int64(len(candles))

	s.log.Info("[SOURCE] warmup from exchange",
		zap.String("inst_id", s.cfg.InstID),
		zap.Int("history", len(candles)))

	s.b.Publish(ctx, models.CandleHistoryReady{
		InstID:    s.cfg.InstID,
		Timeframe: s.cfg.Timeframe,
		Candles:   candles,
	})
	s.warmed = true
	return nil
}

func (s *ExchangeSource) Stream(ctx context.Context) error {
	if !s.warmed {
		return errors.New("stream before warmup")
	}

	ticks := s.client.StreamCandles(ctx, s.cfg.InstID, s.cfg.Timeframe)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case c, ok := <-ticks:
			if !ok {
				if err := ctx.Err(); err != nil {
					return err
				}
				return errors.New("candle feed exhausted")
			}
			if c.Start.UnixMilli() <= s.lastStart {
				s.log.Debug("[SOURCE] duplicate candle dropped",
					zap.Time("start", c.Start))
				continue
			}
			c.Index = s.nextIndex
			s.nextIndex++
			s.lastStart = c.Start.UnixMilli()

			s.b.Publish(ctx, models.CandleClose{InstID: s.cfg.InstID, Candle: c})
		}
	}
}
