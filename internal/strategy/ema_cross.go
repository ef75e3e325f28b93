package strategy

import (
	"context"
	"fmt"

	"trade_engine/internal/bus"
	"trade_engine/internal/models"

	"go.uber.org/zap"
)

// EMACross — сигнал по пересечению быстрой и медленной EMA.
// Само пересечение детектит CrossDetector; здесь только трансляция в сторону.
type EMACross struct {
	emitter
	fast int
	slow int
}

func NewEMACross(log *zap.Logger, b *bus.Bus, cfg Config) *EMACross {
	return &EMACross{
		emitter: emitter{
			log:    log,
			b:      b,
			name:   "ema_cross",
			instID: cfg.InstID,
		},
		fast: cfg.EMAFast,
		slow: cfg.EMASlow,
	}
}

func (s *EMACross) Name() string { return s.name }

func (s *EMACross) Attach(b *bus.Bus) {
	b.Subscribe(models.TopicIndicatorUpdate, s.onIndicator)
}

func (s *EMACross) onIndicator(ctx context.Context, ev models.Event) {
	upd, ok := ev.(models.IndicatorUpdate)
	// чужой символ фатально ловят индикаторы на сырых свечах,
	// производный апдейт просто фильтруется
	if !ok || upd.InstID != s.instID {
		return
	}
	cross, ok := upd.Value.(models.CrossValue)
	if !ok || cross.FastPeriod != s.fast || cross.SlowPeriod != s.slow {
		return
	}

	side := models.SideBuy
	if cross.Direction == models.CrossBearish {
		side = models.SideSell
	}
	reason := fmt.Sprintf("ema cross %s: fast=%.4f slow=%.4f", cross.Direction, cross.Fast, cross.Slow)
	s.emit(ctx, side, upd.Candle, reason)
}
