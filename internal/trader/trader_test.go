package trader

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

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func candleAt(i int, high, low, close float64) models.Candle {
	return models.Candle{
		InstID: testInstID,
		Open:   close,
		High:   high,
		Low:    low,
		Close:  close,
		Start:  t0.Add(time.Duration(i) * time.Minute),
		End:    t0.Add(time.Duration(i+1) * time.Minute),
		Index:  int64(i),
	}
}

func approvedAt(i int, side models.Side, entry, tp, sl float64) models.ApprovedTrade {
	c := candleAt(i, entry, entry, entry)
	return models.ApprovedTrade{
		InstID:   testInstID,
		Side:     side,
		Size:     1,
		Entry:    c,
		TP:       tp,
		SL:       sl,
		Strategy: "ema_cross",
	}
}

func collectClosed(b *bus.Bus) *[]models.TradeClosed {
	var mu sync.Mutex
	var closed []models.TradeClosed
	b.Subscribe(models.TopicTradeClosed, func(ctx context.Context, e models.Event) {
		if tc, ok := e.(models.TradeClosed); ok {
			mu.Lock()
			closed = append(closed, tc)
			mu.Unlock()
		}
	})
	return &closed
}

func newTrader(b *bus.Bus, cooldown time.Duration) *PositionTrader {
	tr := New(zap.NewNop(), b, Config{InstID: testInstID, Cooldown: cooldown})
	tr.Attach(b)
	return tr
}

func TestBuyClosesOnTP(t *testing.T) {
	b := bus.New(zap.NewNop())
	tr := newTrader(b, time.Minute)
	closed := collectClosed(b)

	b.Publish(context.Background(), approvedAt(0, models.SideBuy, 100, 105, 95))
	cur, ok := tr.Current()
	require.True(t, ok)
	assert.Equal(t, models.StatusOpen, cur.Status)

	// свеча не трогает уровни — позиция переходит в рынок и живёт
	b.Publish(context.Background(), models.CandleClose{InstID: testInstID, Candle: candleAt(1, 103, 99, 101)})
	cur, ok = tr.Current()
	require.True(t, ok)
	assert.Equal(t, models.StatusInPosition, cur.Status)
	assert.Empty(t, *closed)

	b.Publish(context.Background(), models.CandleClose{InstID: testInstID, Candle: candleAt(2, 106, 101, 104)})
	require.Len(t, *closed, 1)
	got := (*closed)[0].Trade
	assert.Equal(t, models.StatusClosed, got.Status)
	assert.Equal(t, models.TargetTP, got.Target)
	assert.InDelta(t, 105.0, got.Exit, 1e-9)
	assert.InDelta(t, 5.0, got.Pnl, 1e-9)

	_, ok = tr.Current()
	assert.False(t, ok)
}

func TestSellClosesOnSL(t *testing.T) {
	b := bus.New(zap.NewNop())
	newTrader(b, time.Minute)
	closed := collectClosed(b)

	b.Publish(context.Background(), approvedAt(0, models.SideSell, 100, 95, 105))
	b.Publish(context.Background(), models.CandleClose{InstID: testInstID, Candle: candleAt(1, 106, 99, 104)})

	require.Len(t, *closed, 1)
	got := (*closed)[0].Trade
	assert.Equal(t, models.TargetSL, got.Target)
	assert.InDelta(t, 105.0, got.Exit, 1e-9)
	assert.InDelta(t, -5.0, got.Pnl, 1e-9) // (100-105)*1
}

func TestTPWinsWhenBothTouched(t *testing.T) {
	b := bus.New(zap.NewNop())
	newTrader(b, time.Minute)
	closed := collectClosed(b)

	b.Publish(context.Background(), approvedAt(0, models.SideBuy, 100, 105, 95))
	// свеча накрывает оба уровня
	b.Publish(context.Background(), models.CandleClose{InstID: testInstID, Candle: candleAt(1, 110, 90, 100)})

	require.Len(t, *closed, 1)
	assert.Equal(t, models.TargetTP, (*closed)[0].Trade.Target)
}

func TestSellTPWinsWhenBothTouched(t *testing.T) {
	b := bus.New(zap.NewNop())
	newTrader(b, time.Minute)
	closed := collectClosed(b)

	b.Publish(context.Background(), approvedAt(0, models.SideSell, 100, 95, 102))
	// свеча накрывает оба уровня
	b.Publish(context.Background(), models.CandleClose{InstID: testInstID, Candle: candleAt(1, 103, 94, 100)})

	require.Len(t, *closed, 1)
	got := (*closed)[0].Trade
	assert.Equal(t, models.TargetTP, got.Target)
	assert.InDelta(t, 95.0, got.Exit, 1e-9)
	assert.InDelta(t, 5.0, got.Pnl, 1e-9) // (100-95)*1
}

func TestSecondApprovalDroppedWhileInPosition(t *testing.T) {
	b := bus.New(zap.NewNop())
	tr := newTrader(b, time.Minute)
	closed := collectClosed(b)

	b.Publish(context.Background(), approvedAt(0, models.SideBuy, 100, 105, 95))
	b.Publish(context.Background(), approvedAt(1, models.SideSell, 100, 95, 105))

	cur, ok := tr.Current()
	require.True(t, ok)
	assert.Equal(t, models.SideBuy, cur.Side)
	assert.Empty(t, *closed)
}

func TestCooldownByCandleTime(t *testing.T) {
	b := bus.New(zap.NewNop())
	tr := newTrader(b, 3*time.Minute)
	closed := collectClosed(b)

	b.Publish(context.Background(), approvedAt(0, models.SideBuy, 100, 105, 95))
	b.Publish(context.Background(), models.CandleClose{InstID: testInstID, Candle: candleAt(1, 106, 99, 104)})
	require.Len(t, *closed, 1) // закрылись на End = t0+2m

	// через минуту после закрытия — ещё рано
	b.Publish(context.Background(), approvedAt(2, models.SideBuy, 100, 105, 95))
	_, ok := tr.Current()
	assert.False(t, ok)

	// End свечи 4 = t0+5m, прошло 3m от закрытия — можно
	b.Publish(context.Background(), approvedAt(4, models.SideBuy, 100, 105, 95))
	_, ok = tr.Current()
	assert.True(t, ok)
}

func TestForeignSymbolIgnored(t *testing.T) {
	b := bus.New(zap.NewNop())
	tr := newTrader(b, time.Minute)

	appr := approvedAt(0, models.SideBuy, 100, 105, 95)
	appr.InstID = "ETH-USDT-SWAP"
	b.Publish(context.Background(), appr)

	_, ok := tr.Current()
	assert.False(t, ok)
}
