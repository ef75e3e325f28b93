// Package risk превращает сигнал стратегии в одобренную сделку: считает
// уровни TP/SL и размер позиции. Сигнал без необходимого контекста (цены,
// свежего ATR в atr-режиме) отбрасывается без сделки.
package risk

import (
	"context"
	"sync"
	"time"

	"trade_engine/internal/bus"
	"trade_engine/internal/models"

	"go.uber.org/zap"
)

// Mode — способ расчёта TP/SL.
type Mode string

const (
	ModePct Mode = "pct"
	ModeATR Mode = "atr"
)

// BalanceProvider отдаёт доступный баланс. Если nil — используется UnitSize.
type BalanceProvider interface {
	Balance() float64
}

type Config struct {
	InstID    string
	Mode      Mode
	TPPct     float64
	SLPct     float64
	TPMult    float64
	SLMult    float64
	ATRPeriod int
	UnitSize  float64
}

// Manager — риск-менеджер: один на движок, держит последний ATR по символу.
type Manager struct {
	log     *zap.Logger
	b       *bus.Bus
	cfg     Config
	balance BalanceProvider

	mu      sync.Mutex
	atr     float64
	haveATR bool
}

func NewManager(log *zap.Logger, b *bus.Bus, cfg Config, balance BalanceProvider) *Manager {
	return &Manager{log: log, b: b, cfg: cfg, balance: balance}
}

func (m *Manager) Attach(b *bus.Bus) {
	b.Subscribe(models.TopicIndicatorUpdate, m.onIndicator)
	b.Subscribe(models.TopicSignal, m.onSignal)
}

func (m *Manager) onIndicator(_ context.Context, ev models.Event) {
	upd, ok := ev.(models.IndicatorUpdate)
	if !ok || upd.InstID != m.cfg.InstID {
		return
	}
	atr, ok := upd.Value.(models.ATRValue)
	if !ok || atr.Period != m.cfg.ATRPeriod {
		return
	}

	m.mu.Lock()
	m.atr, m.haveATR = atr.Value, true
	m.mu.Unlock()
}

func (m *Manager) onSignal(ctx context.Context, ev models.Event) {
	sig, ok := ev.(models.Signal)
	if !ok || sig.InstID != m.cfg.InstID {
		return
	}
	if sig.Filtered {
		m.log.Debug("[RISK] signal filtered upstream, dropped",
			zap.String("strategy", sig.Strategy))
		return
	}
	if sig.Price <= 0 {
		m.log.Debug("[RISK] signal without price context, dropped",
			zap.String("strategy", sig.Strategy))
		return
	}

	tp, sl, ok := m.levels(sig.Side, sig.Price)
	if !ok {
		m.log.Debug("[RISK] atr not ready, signal dropped",
			zap.String("strategy", sig.Strategy),
			zap.String("side", string(sig.Side)))
		return
	}

	size := m.cfg.UnitSize
	if m.balance != nil {
		size = m.balance.Balance() / sig.Price
	}
	if size <= 0 {
		m.log.Debug("[RISK] non-positive size, signal dropped",
			zap.Float64("size", size))
		return
	}

	m.log.Info("[RISK] trade approved",
		zap.String("side", string(sig.Side)),
		zap.Float64("entry", sig.Price),
		zap.Float64("tp", tp),
		zap.Float64("sl", sl),
		zap.Float64("size", size))

	m.b.Publish(ctx, models.ApprovedTrade{
		InstID:    sig.InstID,
		Side:      sig.Side,
		Size:      size,
		Entry:     sig.Candle,
		TP:        tp,
		SL:        sl,
		Strategy:  sig.Strategy,
		CreatedAt: time.Now(),
	})
}

// levels считает TP/SL по режиму; false — нет нужного индикатора.
func (m *Manager) levels(side models.Side, entry float64) (tp, sl float64, ok bool) {
	switch m.cfg.Mode {
	case ModeATR:
		m.mu.Lock()
		atr, have := m.atr, m.haveATR
		m.mu.Unlock()
		if !have {
			return 0, 0, false
		}
		if side == models.SideBuy {
			return entry + atr*m.cfg.TPMult, entry - atr*m.cfg.SLMult, true
		}
		return entry - atr*m.cfg.TPMult, entry + atr*m.cfg.SLMult, true
	default: // pct
		if side == models.SideBuy {
			return entry * (1 + m.cfg.TPPct/100), entry * (1 - m.cfg.SLPct/100), true
		}
		return entry * (1 - m.cfg.TPPct/100), entry * (1 + m.cfg.SLPct/100), true
	}
}
