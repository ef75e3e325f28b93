// Package strategy — сигнальные движки. Каждый вариант подписан только на
// нужные ему IndicatorUpdate/CandleClose, держит минимум состояния и выдаёт
// не больше одного Signal на подходящую свечу; одна и та же сторона подряд
// не повторяется без противоположного сигнала между ними.
package strategy

import (
	"context"
	"fmt"
	"sync"
	"time"

	"trade_engine/internal/bus"
	"trade_engine/internal/models"

	"go.uber.org/zap"
)

// Engine — один сигнальный движок (одна стратегия).
type Engine interface {
	Name() string
	Attach(b *bus.Bus)
}

type Config struct {
	InstID        string
	EMAFast       int
	EMASlow       int
	RSIPeriod     int
	RSIOverbought float64
	RSIOversold   float64
}

// New — фабрика по имени стратегии.
func New(log *zap.Logger, b *bus.Bus, name string, cfg Config) (Engine, error) {
	switch name {
	case "ema_cross":
		return NewEMACross(log, b, cfg), nil
	case "price_ema":
		return NewPriceEMACross(log, b, cfg), nil
	case "rsi_cross":
		return NewRSICross(log, b, cfg), nil
	case "sweep":
		return NewSweep(log, b, cfg), nil
	default:
		return nil, fmt.Errorf("unknown strategy: %q", name)
	}
}

// emitter — общий для вариантов выпуск сигналов с дебаунсом по стороне.
type emitter struct {
	log    *zap.Logger
	b      *bus.Bus
	name   string
	instID string

	mu       sync.Mutex
	lastSide models.Side
}

// emit публикует сигнал, если сторона сменилась с прошлого выпуска.
func (e *emitter) emit(ctx context.Context, side models.Side, c models.Candle, reason string) bool {
	e.mu.Lock()
	if side == e.lastSide {
		e.mu.Unlock()
		e.log.Debug("[SIGNAL] debounced",
			zap.String("strategy", e.name),
			zap.String("side", string(side)))
		return false
	}
	e.lastSide = side
	e.mu.Unlock()

	e.log.Info("[SIGNAL] emitted",
		zap.String("strategy", e.name),
		zap.String("side", string(side)),
		zap.Float64("price", c.Close))

	e.b.Publish(ctx, models.Signal{
		InstID:    e.instID,
		Side:      side,
		Candle:    c,
		Price:     c.Close,
		Strategy:  e.name,
		Reason:    reason,
		CreatedAt: time.Now(),
	})
	return true
}
