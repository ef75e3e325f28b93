package journal

import (
	"context"
	"sync"

	"trade_engine/internal/bus"
	"trade_engine/internal/models"

	"go.uber.org/zap"
)

// PortfolioManager ведёт баланс: единственный писатель PortfolioState,
// мутирует его только на TradeClosed. Реализует risk.BalanceProvider.
type PortfolioManager struct {
	log *zap.Logger

	mu    sync.Mutex
	state models.PortfolioState
}

func NewPortfolioManager(log *zap.Logger, initialBalance float64) *PortfolioManager {
	return &PortfolioManager{
		log: log,
		state: models.PortfolioState{
			InitialBalance: initialBalance,
			Balance:        initialBalance,
			MaxBalance:     initialBalance,
			MinBalance:     initialBalance,
		},
	}
}

func (p *PortfolioManager) Attach(b *bus.Bus) {
	b.Subscribe(models.TopicTradeClosed, p.onTradeClosed)
}

func (p *PortfolioManager) onTradeClosed(_ context.Context, ev models.Event) {
	tc, ok := ev.(models.TradeClosed)
	if !ok {
		return
	}

	p.mu.Lock()
	p.state.Balance += tc.Trade.Pnl
	if p.state.Balance > p.state.MaxBalance {
		p.state.MaxBalance = p.state.Balance
	}
	if p.state.Balance < p.state.MinBalance {
		p.state.MinBalance = p.state.Balance
	}
	balance := p.state.Balance
	p.mu.Unlock()

	p.log.Info("[PORTFOLIO] balance updated",
		zap.Float64("pnl", tc.Trade.Pnl),
		zap.Float64("balance", balance))
}

func (p *PortfolioManager) Balance() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state.Balance
}

// State возвращает копию текущего состояния портфеля.
func (p *PortfolioManager) State() models.PortfolioState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}
