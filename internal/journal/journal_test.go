package journal

import (
	"context"
	"testing"

	"trade_engine/internal/bus"
	"trade_engine/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.uber.org/zap"
)

func closeTrade(b *bus.Bus, pnl float64) {
	b.Publish(context.Background(), models.TradeClosed{Trade: models.Trade{
		InstID: "BTC-USDT-SWAP",
		Side:   models.SideBuy,
		Size:   1,
		Status: models.StatusClosed,
		Pnl:    pnl,
	}})
}

func TestSummaryStats(t *testing.T) {
	b := bus.New(zap.NewNop())
	j := New(zap.NewNop(), nil)
	j.Attach(b)

	// +10, +5, -30, +20, +5, -10
	for _, pnl := range []float64{10, 5, -30, 20, 5, -10} {
		closeTrade(b, pnl)
	}

	s := j.Summarize(100)
	assert.Equal(t, 6, s.Trades)
	assert.Equal(t, 4, s.Wins)
	assert.Equal(t, 2, s.Losses)
	assert.InDelta(t, 4.0/6.0, s.WinRate, 1e-9)
	assert.InDelta(t, 0.0, s.TotalPnl, 1e-9)
	// пик 115 после двух побед, впадина 85 после -30: dd = 30/100
	assert.InDelta(t, 0.30, s.MaxDrawdown, 1e-9)
	assert.Equal(t, 2, s.BestStreak)
}

func TestSummaryEmptyJournal(t *testing.T) {
	j := New(zap.NewNop(), nil)
	s := j.Summarize(100)
	assert.Zero(t, s.Trades)
	assert.Zero(t, s.WinRate)
	assert.Zero(t, s.MaxDrawdown)
}

func TestTradesReturnsCopyInOrder(t *testing.T) {
	b := bus.New(zap.NewNop())
	j := New(zap.NewNop(), nil)
	j.Attach(b)

	closeTrade(b, 1)
	closeTrade(b, 2)

	trades := j.Trades()
	require.Len(t, trades, 2)
	assert.Equal(t, 1.0, trades[0].Pnl)
	assert.Equal(t, 2.0, trades[1].Pnl)

	trades[0].Pnl = 999
	assert.Equal(t, 1.0, j.Trades()[0].Pnl)
}

func TestPortfolioTracksBalance(t *testing.T) {
	b := bus.New(zap.NewNop())
	p := NewPortfolioManager(zap.NewNop(), 100)
	p.Attach(b)

	closeTrade(b, 20)
	closeTrade(b, -50)
	closeTrade(b, 10)

	st := p.State()
	assert.InDelta(t, 80.0, st.Balance, 1e-9)
	assert.InDelta(t, 120.0, st.MaxBalance, 1e-9)
	assert.InDelta(t, 70.0, st.MinBalance, 1e-9)
	assert.InDelta(t, 80.0, p.Balance(), 1e-9)
}
