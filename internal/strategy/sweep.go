package strategy

import (
	"context"
	"fmt"

	"trade_engine/internal/bus"
	"trade_engine/internal/models"

	"go.uber.org/zap"
)

// Sweep — снятие свингового уровня с возвратом: свеча прокалывает last swing
// low, но закрывается выше него — BUY; зеркально по swing high — SELL.
// Уровни приходят от SwingDetector, свеча проверяется на своём закрытии.
type Sweep struct {
	emitter

	swingHigh float64
	swingLow  float64
	haveHigh  bool
	haveLow   bool
}

func NewSweep(log *zap.Logger, b *bus.Bus, cfg Config) *Sweep {
	return &Sweep{
		emitter: emitter{
			log:    log,
			b:      b,
			name:   "sweep",
			instID: cfg.InstID,
		},
	}
}

func (s *Sweep) Name() string { return s.name }

func (s *Sweep) Attach(b *bus.Bus) {
	b.Subscribe(models.TopicIndicatorUpdate, s.onIndicator)
	b.Subscribe(models.TopicCandleClose, s.onCandleClose)
}

func (s *Sweep) onIndicator(ctx context.Context, ev models.Event) {
	upd, ok := ev.(models.IndicatorUpdate)
	if !ok || upd.InstID != s.instID {
		return
	}
	sw, ok := upd.Value.(models.SwingValue)
	if !ok {
		return
	}

	s.mu.Lock()
	s.swingHigh, s.swingLow = sw.High, sw.Low
	s.haveHigh, s.haveLow = true, true
	s.mu.Unlock()
}

func (s *Sweep) onCandleClose(ctx context.Context, ev models.Event) {
	cc, ok := ev.(models.CandleClose)
	if !ok || cc.InstID != s.instID {
		return
	}
	c := cc.Candle

	s.mu.Lock()
	high, low := s.swingHigh, s.swingLow
	haveHigh, haveLow := s.haveHigh, s.haveLow
	s.mu.Unlock()

	switch {
	case haveLow && c.Low < low && c.Close > low:
		reason := fmt.Sprintf("swept swing low %.4f: low=%.4f close=%.4f", low, c.Low, c.Close)
		s.emit(ctx, models.SideBuy, c, reason)
	case haveHigh && c.High > high && c.Close < high:
		reason := fmt.Sprintf("swept swing high %.4f: high=%.4f close=%.4f", high, c.High, c.Close)
		s.emit(ctx, models.SideSell, c, reason)
	}
}
