package indicator

import (
	"context"
	"sync"

	"trade_engine/internal/bus"
	"trade_engine/internal/models"

	"go.uber.org/zap"
)

// RSI — сглаживание Уайлдера как у ATR: сид — среднее первых period
// gain/loss, дальше avg = (avg*(period-1) + x)/period.
// RSI = 100 при avgLoss == 0, иначе 100 - 100/(1 + avgGain/avgLoss).
type RSI struct {
	log *zap.Logger
	b   *bus.Bus

	instID     string
	period     int
	overbought float64
	oversold   float64

	mu       sync.Mutex
	prev     float64
	havePrev bool
	count    int
	gainSum  float64
	lossSum  float64
	avgGain  float64
	avgLoss  float64
	ready    bool
}

func NewRSI(log *zap.Logger, b *bus.Bus, instID string, period int, overbought, oversold float64) *RSI {
	if period < 1 {
		period = 1
	}
	return &RSI{
		log:        log,
		b:          b,
		instID:     instID,
		period:     period,
		overbought: overbought,
		oversold:   oversold,
	}
}

func (r *RSI) Attach(b *bus.Bus) {
	b.Subscribe(models.TopicCandleHistoryReady, r.onHistory)
	b.Subscribe(models.TopicCandleClose, r.onCandleClose)
}

func (r *RSI) Init(candles []models.Candle) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(candles) < r.period+1 {
		return ErrNotEnoughCandles
	}
	for _, c := range candles {
		r.push(c.Close)
	}
	return nil
}

func (r *RSI) Ready() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ready
}

func (r *RSI) Value() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.value()
}

func (r *RSI) onHistory(ctx context.Context, e models.Event) {
	h, ok := e.(models.CandleHistoryReady)
	if !ok {
		return
	}
	if h.InstID != r.instID {
		r.b.Publish(ctx, models.EngineError{
			Component: "rsi",
			Err:       symbolMismatch("rsi", r.instID, h.InstID),
		})
		return
	}
	if err := r.Init(h.Candles); err != nil {
		r.log.Debug("[RSI] init withheld",
			zap.Int("period", r.period),
			zap.Int("history", len(h.Candles)),
			zap.Error(err))
	}
}

func (r *RSI) onCandleClose(ctx context.Context, e models.Event) {
	cc, ok := e.(models.CandleClose)
	if !ok {
		return
	}
	if cc.InstID != r.instID {
		r.b.Publish(ctx, models.EngineError{
			Component: "rsi",
			Err:       symbolMismatch("rsi", r.instID, cc.InstID),
		})
		return
	}

	r.mu.Lock()
	r.push(cc.Candle.Close)
	ready := r.ready
	val := r.value()
	r.mu.Unlock()

	if !ready {
		r.log.Debug("[RSI] warming up", zap.Int("period", r.period), zap.Int("count", r.count))
		return
	}

	r.b.Publish(ctx, models.IndicatorUpdate{
		InstID: r.instID,
		Candle: cc.Candle,
		Value: models.RSIValue{
			Period: r.period,
			Value:  val,
			State:  r.state(val),
		},
	})
}

func (r *RSI) push(close float64) {
	if !r.havePrev {
		r.prev = close
		r.havePrev = true
		return
	}

	change := close - r.prev
	r.prev = close
	gain, loss := 0.0, 0.0
	if change > 0 {
		gain = change
	} else {
		loss = -change
	}

	if r.count < r.period {
		r.gainSum += gain
		r.lossSum += loss
		r.count++
		if r.count == r.period {
			r.avgGain = r.gainSum / float64(r.period)
			r.avgLoss = r.lossSum / float64(r.period)
			r.ready = true
		}
		return
	}

	p := float64(r.period)
	r.avgGain = (r.avgGain*(p-1) + gain) / p
	r.avgLoss = (r.avgLoss*(p-1) + loss) / p
}

func (r *RSI) value() float64 {
	if !r.ready {
		return 0
	}
	if r.avgLoss == 0 {
		return 100
	}
	rs := r.avgGain / r.avgLoss
	return 100 - 100/(1+rs)
}

func (r *RSI) state(v float64) models.RSIState {
	switch {
	case v >= r.overbought:
		return models.RSIOverbought
	case v <= r.oversold:
		return models.RSIOversold
	default:
		return models.RSINeutral
	}
}
