package strategy

import (
	"context"
	"fmt"

	"trade_engine/internal/bus"
	"trade_engine/internal/models"

	"go.uber.org/zap"
)

// PriceEMACross — цена выступает быстрой линией: сигнал на смене знака
// разности (close − EMA). Первая свеча после прогрева только фиксирует знак.
type PriceEMACross struct {
	emitter
	period int

	prevSign int
	havePrev bool
}

func NewPriceEMACross(log *zap.Logger, b *bus.Bus, cfg Config) *PriceEMACross {
	return &PriceEMACross{
		emitter: emitter{
			log:    log,
			b:      b,
			name:   "price_ema",
			instID: cfg.InstID,
		},
		period: cfg.EMAFast,
	}
}

func (s *PriceEMACross) Name() string { return s.name }

func (s *PriceEMACross) Attach(b *bus.Bus) {
	b.Subscribe(models.TopicIndicatorUpdate, s.onIndicator)
}

func (s *PriceEMACross) onIndicator(ctx context.Context, ev models.Event) {
	upd, ok := ev.(models.IndicatorUpdate)
	if !ok || upd.InstID != s.instID {
		return
	}
	ma, ok := upd.Value.(models.MAValue)
	if !ok || ma.Mode != models.MAExponential || ma.Period != s.period {
		return
	}

	diff := upd.Candle.Close - ma.Value
	curSign := 0
	switch {
	case diff > 0:
		curSign = 1
	case diff < 0:
		curSign = -1
	}

	s.mu.Lock()
	prev, have := s.prevSign, s.havePrev
	s.prevSign, s.havePrev = curSign, true
	s.mu.Unlock()

	if !have || curSign == 0 || curSign == prev {
		return
	}

	side := models.SideBuy
	if curSign < 0 {
		side = models.SideSell
	}
	reason := fmt.Sprintf("price crossed ema(%d): close=%.4f ema=%.4f", s.period, upd.Candle.Close, ma.Value)
	s.emit(ctx, side, upd.Candle, reason)
}
