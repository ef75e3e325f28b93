package risk

import (
	"context"
	"sync"
	"testing"
	"time"

	"trade_engine/internal/bus"
	"trade_engine/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.uber.org/zap"
)

const testInstID = "BTC-USDT-SWAP"

type fixedBalance float64

func (f fixedBalance) Balance() float64 { return float64(f) }

func collectApproved(b *bus.Bus) *[]models.ApprovedTrade {
	var mu sync.Mutex
	var trades []models.ApprovedTrade
	b.Subscribe(models.TopicTradeApproved, func(ctx context.Context, e models.Event) {
		if a, ok := e.(models.ApprovedTrade); ok {
			mu.Lock()
			trades = append(trades, a)
			mu.Unlock()
		}
	})
	return &trades
}

func signalAt(side models.Side, price float64) models.Signal {
	return models.Signal{
		InstID:    testInstID,
		Side:      side,
		Candle:    models.Candle{InstID: testInstID, Close: price},
		Price:     price,
		Strategy:  "ema_cross",
		CreatedAt: time.Now(),
	}
}

func TestPctLevelsBuyAndSell(t *testing.T) {
	b := bus.New(zap.NewNop())
	m := NewManager(zap.NewNop(), b, Config{
		InstID: testInstID, Mode: ModePct, TPPct: 2, SLPct: 1, UnitSize: 0.5,
	}, nil)
	m.Attach(b)
	trades := collectApproved(b)

	b.Publish(context.Background(), signalAt(models.SideBuy, 100))
	require.Len(t, *trades, 1)
	buy := (*trades)[0]
	assert.InDelta(t, 102.0, buy.TP, 1e-9)
	assert.InDelta(t, 99.0, buy.SL, 1e-9)
	assert.Equal(t, 0.5, buy.Size)

	b.Publish(context.Background(), signalAt(models.SideSell, 100))
	require.Len(t, *trades, 2)
	sell := (*trades)[1]
	assert.InDelta(t, 98.0, sell.TP, 1e-9)
	assert.InDelta(t, 101.0, sell.SL, 1e-9)
}

func TestATRLevelsRequireATR(t *testing.T) {
	b := bus.New(zap.NewNop())
	m := NewManager(zap.NewNop(), b, Config{
		InstID: testInstID, Mode: ModeATR, TPMult: 3, SLMult: 1.5, ATRPeriod: 14, UnitSize: 1,
	}, nil)
	m.Attach(b)
	trades := collectApproved(b)

	// ATR ещё не считался — сигнал отбрасывается без сделки
	b.Publish(context.Background(), signalAt(models.SideBuy, 100))
	assert.Empty(t, *trades)

	b.Publish(context.Background(), models.IndicatorUpdate{
		InstID: testInstID,
		Value:  models.ATRValue{Period: 14, Value: 2.0, Phase: models.PhaseNeutral},
	})

	b.Publish(context.Background(), signalAt(models.SideBuy, 100))
	require.Len(t, *trades, 1)
	assert.InDelta(t, 106.0, (*trades)[0].TP, 1e-9) // 100 + 2*3
	assert.InDelta(t, 97.0, (*trades)[0].SL, 1e-9)  // 100 - 2*1.5

	b.Publish(context.Background(), signalAt(models.SideSell, 100))
	require.Len(t, *trades, 2)
	assert.InDelta(t, 94.0, (*trades)[1].TP, 1e-9)
	assert.InDelta(t, 103.0, (*trades)[1].SL, 1e-9)
}

func TestATRCacheIgnoresOtherPeriods(t *testing.T) {
	b := bus.New(zap.NewNop())
	m := NewManager(zap.NewNop(), b, Config{
		InstID: testInstID, Mode: ModeATR, TPMult: 1, SLMult: 1, ATRPeriod: 14, UnitSize: 1,
	}, nil)
	m.Attach(b)
	trades := collectApproved(b)

	b.Publish(context.Background(), models.IndicatorUpdate{
		InstID: testInstID,
		Value:  models.ATRValue{Period: 7, Value: 5.0},
	})
	b.Publish(context.Background(), signalAt(models.SideBuy, 100))
	assert.Empty(t, *trades)
}

func TestSizeFromBalance(t *testing.T) {
	b := bus.New(zap.NewNop())
	m := NewManager(zap.NewNop(), b, Config{
		InstID: testInstID, Mode: ModePct, TPPct: 1, SLPct: 1, UnitSize: 1,
	}, fixedBalance(500))
	m.Attach(b)
	trades := collectApproved(b)

	b.Publish(context.Background(), signalAt(models.SideBuy, 100))
	require.Len(t, *trades, 1)
	assert.InDelta(t, 5.0, (*trades)[0].Size, 1e-9)
}

func TestDropsFilteredAndPriceless(t *testing.T) {
	b := bus.New(zap.NewNop())
	m := NewManager(zap.NewNop(), b, Config{
		InstID: testInstID, Mode: ModePct, TPPct: 1, SLPct: 1, UnitSize: 1,
	}, nil)
	m.Attach(b)
	trades := collectApproved(b)

	filtered := signalAt(models.SideBuy, 100)
	filtered.Filtered = true
	b.Publish(context.Background(), filtered)

	b.Publish(context.Background(), signalAt(models.SideBuy, 0))

	assert.Empty(t, *trades)
}
