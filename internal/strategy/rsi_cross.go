package strategy

import (
	"context"
	"fmt"

	"trade_engine/internal/bus"
	"trade_engine/internal/models"

	"go.uber.org/zap"
)

// RSICross — возврат RSI из экстремальной зоны: выход вверх из перепроданности
// даёт BUY, выход вниз из перекупленности — SELL.
type RSICross struct {
	emitter
	period     int
	overbought float64
	oversold   float64

	prev     float64
	havePrev bool
}

func NewRSICross(log *zap.Logger, b *bus.Bus, cfg Config) *RSICross {
	return &RSICross{
		emitter: emitter{
			log:    log,
			b:      b,
			name:   "rsi_cross",
			instID: cfg.InstID,
		},
		period:     cfg.RSIPeriod,
		overbought: cfg.RSIOverbought,
		oversold:   cfg.RSIOversold,
	}
}

func (s *RSICross) Name() string { return s.name }

func (s *RSICross) Attach(b *bus.Bus) {
	b.Subscribe(models.TopicIndicatorUpdate, s.onIndicator)
}

func (s *RSICross) onIndicator(ctx context.Context, ev models.Event) {
	upd, ok := ev.(models.IndicatorUpdate)
	if !ok || upd.InstID != s.instID {
		return
	}
	rsi, ok := upd.Value.(models.RSIValue)
	if !ok || rsi.Period != s.period {
		return
	}

	s.mu.Lock()
	prev, have := s.prev, s.havePrev
	s.prev, s.havePrev = rsi.Value, true
	s.mu.Unlock()

	if !have {
		return
	}

	switch {
	case prev <= s.oversold && rsi.Value > s.oversold:
		reason := fmt.Sprintf("rsi left oversold: %.2f -> %.2f (thr %.2f)", prev, rsi.Value, s.oversold)
		s.emit(ctx, models.SideBuy, upd.Candle, reason)
	case prev >= s.overbought && rsi.Value < s.overbought:
		reason := fmt.Sprintf("rsi left overbought: %.2f -> %.2f (thr %.2f)", prev, rsi.Value, s.overbought)
		s.emit(ctx, models.SideSell, upd.Candle, reason)
	}
}
