// Package engine собирает компонентный граф и гоняет его против источника
// свечей. Один и тот же граф работает в backtest и realtime — меняется только
// CandleSource.
package engine

import (
	"trade_engine/internal/bus"
	"trade_engine/internal/indicator"
	"trade_engine/internal/journal"
	"trade_engine/internal/models"
	"trade_engine/internal/modules/config"
	"trade_engine/internal/notify"
	"trade_engine/internal/risk"
	"trade_engine/internal/strategy"
	"trade_engine/internal/trader"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Pipeline — собранный граф компонентов поверх одной шины.
type Pipeline struct {
	Bus       *bus.Bus
	Journal   *journal.Journal
	Portfolio *journal.PortfolioManager
	Trader    *trader.PositionTrader
}

// Build конструирует и подписывает все компоненты. Порядок Attach не важен:
// порядок исполнения задаёт вложенная публикация, а не список подписчиков.
func Build(log *zap.Logger, cfg *config.Config, b *bus.Bus, store journal.Store, notifier notify.Notifier) (*Pipeline, error) {
	// индикаторы
	maFast := indicator.NewMovingAverage(log, b, cfg.InstID, cfg.EMAFast, models.MAExponential)
	maSlow := indicator.NewMovingAverage(log, b, cfg.InstID, cfg.EMASlow, models.MAExponential)
	atr := indicator.NewATR(log, b, cfg.InstID, cfg.ATRPeriod, cfg.ATRHistoryMult)
	rsi := indicator.NewRSI(log, b, cfg.InstID, cfg.RSIPeriod, cfg.RSIOverbought, cfg.RSIOversold)
	swing := indicator.NewSwingDetector(log, b, cfg.InstID, cfg.SwingSide, cfg.SwingWindow)
	cross := indicator.NewCrossDetector(log, b, cfg.InstID,
		cfg.EMAFast, cfg.EMASlow, cfg.CrossMinGap, cfg.CrossSlopeThresh, cfg.CrossSlopeSamples)

	maFast.Attach(b)
	maSlow.Attach(b)
	atr.Attach(b)
	rsi.Attach(b)
	swing.Attach(b)
	cross.Attach(b)

	// стратегия
	eng, err := strategy.New(log, b, cfg.Strategy, strategy.Config{
		InstID:        cfg.InstID,
		EMAFast:       cfg.EMAFast,
		EMASlow:       cfg.EMASlow,
		RSIPeriod:     cfg.RSIPeriod,
		RSIOverbought: cfg.RSIOverbought,
		RSIOversold:   cfg.RSIOversold,
	})
	if err != nil {
		return nil, errors.Wrap(err, "build strategy")
	}
	eng.Attach(b)

	// портфель и риск
	portfolio := journal.NewPortfolioManager(log, cfg.InitialBalance)
	portfolio.Attach(b)

	var balance risk.BalanceProvider
	if cfg.InitialBalance > 0 {
		balance = portfolio
	}
	rm := risk.NewManager(log, b, risk.Config{
		InstID:    cfg.InstID,
		Mode:      risk.Mode(cfg.RiskMode),
		TPPct:     cfg.TPPct,
		SLPct:     cfg.SLPct,
		TPMult:    cfg.TPMult,
		SLMult:    cfg.SLMult,
		ATRPeriod: cfg.ATRPeriod,
		UnitSize:  cfg.UnitSize,
	}, balance)
	rm.Attach(b)

	// трейдер и журнал
	tr := trader.New(log, b, trader.Config{InstID: cfg.InstID, Cooldown: cfg.Cooldown})
	tr.Attach(b)

	j := journal.New(log, store)
	j.Attach(b)

	if notifier != nil {
		notify.Attach(b, notifier)
	}

	return &Pipeline{
		Bus:       b,
		Journal:   j,
		Portfolio: portfolio,
		Trader:    tr,
	}, nil
}
