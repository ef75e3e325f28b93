package indicator

import (
	"context"
	"testing"
	"time"

	"trade_engine/internal/bus"
	"trade_engine/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.uber.org/zap"
)

func candlesHL(pairs ...[2]float64) []models.Candle {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]models.Candle, 0, len(pairs))
	for i, p := range pairs {
		high, low := p[0], p[1]
		out = append(out, models.Candle{
			InstID: testInstID,
			Open:   (high + low) / 2,
			High:   high,
			Low:    low,
			Close:  (high + low) / 2,
			Start:  start.Add(time.Duration(i) * time.Minute),
			End:    start.Add(time.Duration(i+1) * time.Minute),
			Index:  int64(i),
		})
	}
	return out
}

func TestSwingDetectsStrictExtremum(t *testing.T) {
	b := bus.New(zap.NewNop())
	s := NewSwingDetector(zap.NewNop(), b, testInstID, 1, 5)
	updates := collectUpdates(b)
	s.Attach(b)

	// пик high=110 на позиции 2, впадина low=90 на позиции 3
	candles := candlesHL(
		[2]float64{101, 95},
		[2]float64{103, 96},
		[2]float64{110, 97},
		[2]float64{104, 90},
		[2]float64{102, 93},
	)
	assert.ErrorIs(t, s.Init(candles[:2]), ErrNotEnoughCandles)
	require.NoError(t, s.Init(candles))

	// освежаем окно ещё одной свечой без новых экстремумов — эмиссия уровней
	next := candlesHL(
		[2]float64{101, 95}, [2]float64{103, 96}, [2]float64{110, 97},
		[2]float64{104, 90}, [2]float64{102, 93}, [2]float64{103, 94},
	)[5]
	b.Publish(context.Background(), models.CandleClose{InstID: testInstID, Candle: next})

	require.Len(t, *updates, 1)
	v, ok := (*updates)[0].Value.(models.SwingValue)
	require.True(t, ok)
	assert.InDelta(t, 110.0, v.High, 1e-9)
	assert.InDelta(t, 90.0, v.Low, 1e-9)
}

func TestSwingDebounce(t *testing.T) {
	b := bus.New(zap.NewNop())
	s := NewSwingDetector(zap.NewNop(), b, testInstID, 1, 6)
	updates := collectUpdates(b)
	s.Attach(b)

	base := candlesHL(
		[2]float64{101, 95},
		[2]float64{110, 96},
		[2]float64{104, 90},
		[2]float64{102, 93},
		[2]float64{103, 94},
		[2]float64{102, 95},
	)
	require.NoError(t, s.Init(base))

	// свежая свеча внутри диапазона: уровни 110/90 ещё в окне
	flat := models.Candle{InstID: testInstID, High: 103, Low: 96, Close: 100,
		Start: base[5].End, End: base[5].End.Add(time.Minute), Index: 6}
	b.Publish(context.Background(), models.CandleClose{InstID: testInstID, Candle: flat})
	require.Len(t, *updates, 1)

	// и ещё одна без изменений уровней — повторной эмиссии нет
	flat2 := flat
	flat2.Start, flat2.End, flat2.Index = flat.End, flat.End.Add(time.Minute), 7
	b.Publish(context.Background(), models.CandleClose{InstID: testInstID, Candle: flat2})
	assert.Len(t, *updates, 1)
}

func TestSwingBulkInitRaises(t *testing.T) {
	b := bus.New(zap.NewNop())
	s := NewSwingDetector(zap.NewNop(), b, testInstID, 2, 10)
	s.Attach(b)

	var fatal []models.EngineError
	b.Subscribe(models.TopicEngineError, func(ctx context.Context, e models.Event) {
		if ee, ok := e.(models.EngineError); ok {
			fatal = append(fatal, ee)
		}
	})

	b.Publish(context.Background(), models.CandleHistoryReady{
		InstID:    testInstID,
		Timeframe: "1m",
		Candles:   candlesHL([2]float64{101, 95}, [2]float64{102, 96}),
	})

	require.Len(t, fatal, 1)
	assert.ErrorIs(t, fatal[0].Err, ErrNotEnoughCandles)
}
