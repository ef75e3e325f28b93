package bus

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"trade_engine/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.uber.org/zap"
)

func TestPublishWaitsForAllHandlers(t *testing.T) {
	b := New(zap.NewNop())

	var done atomic.Int32
	for i := 0; i < 4; i++ {
		b.Subscribe(models.TopicCandleClose, func(ctx context.Context, e models.Event) {
			time.Sleep(10 * time.Millisecond)
			done.Add(1)
		})
	}

	b.Publish(context.Background(), models.CandleClose{InstID: "BTC-USDT-SWAP"})
	// барьер: к возврату из Publish все хендлеры уже завершились
	assert.Equal(t, int32(4), done.Load())
}

func TestPublishOnlyMatchingTopic(t *testing.T) {
	b := New(zap.NewNop())

	var closes, signals atomic.Int32
	b.Subscribe(models.TopicCandleClose, func(ctx context.Context, e models.Event) {
		closes.Add(1)
	})
	b.Subscribe(models.TopicSignal, func(ctx context.Context, e models.Event) {
		signals.Add(1)
	})

	b.Publish(context.Background(), models.CandleClose{})
	b.Publish(context.Background(), models.CandleClose{})

	assert.Equal(t, int32(2), closes.Load())
	assert.Equal(t, int32(0), signals.Load())
}

func TestNestedPublishFromHandler(t *testing.T) {
	// индикатор публикует IndicatorUpdate изнутри хендлера CandleClose:
	// вложенный Publish должен полностью отработать до возврата внешнего
	b := New(zap.NewNop())

	var order []string
	var mu sync.Mutex
	push := func(s string) {
		mu.Lock()
		order = append(order, s)
		mu.Unlock()
	}

	b.Subscribe(models.TopicIndicatorUpdate, func(ctx context.Context, e models.Event) {
		push("indicator")
	})
	b.Subscribe(models.TopicCandleClose, func(ctx context.Context, e models.Event) {
		b.Publish(ctx, models.IndicatorUpdate{InstID: "X"})
		push("close-done")
	})

	b.Publish(context.Background(), models.CandleClose{InstID: "X"})

	require.Equal(t, []string{"indicator", "close-done"}, order)
}

func TestReset(t *testing.T) {
	b := New(zap.NewNop())

	var calls atomic.Int32
	b.Subscribe(models.TopicTradeClosed, func(ctx context.Context, e models.Event) {
		calls.Add(1)
	})
	require.Equal(t, 1, b.Subscribers(models.TopicTradeClosed))

	b.Reset()
	b.Publish(context.Background(), models.TradeClosed{})

	assert.Equal(t, int32(0), calls.Load())
	assert.Equal(t, 0, b.Subscribers(models.TopicTradeClosed))
}
