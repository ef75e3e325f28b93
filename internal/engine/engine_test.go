package engine

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"trade_engine/internal/bus"
	"trade_engine/internal/models"
	"trade_engine/internal/modules/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.uber.org/zap"
)

const testInstID = "BTC-USDT-SWAP"

// Датасет под price_ema: 10 плоских свечей прогрева, потом пробой вверх,
// который открывает BUY, и свеча, добивающая до TP.
func writeTradeCSV(t *testing.T) string {
	t.Helper()
	var buf bytes.Buffer
	buf.WriteString("timestamp,open,high,low,close,volume\n")
	ts := int64(1704067200)
	write := func(o, h, l, c float64) {
		fmt.Fprintf(&buf, "%d,%.1f,%.1f,%.1f,%.1f,1\n", ts, o, h, l, c)
		ts += 60
	}
	for i := 0; i < 10; i++ {
		write(100, 100, 100, 100) // прогрев: EMA ровно 100
	}
	write(100, 100, 100, 100)     // первая стрим-свеча фиксирует знак diff=0
	write(102.5, 103, 102, 103)   // close > EMA: BUY по 103, tp=104.03 sl=101.97
	write(103, 105, 102.5, 104)   // high >= tp: закрытие по TP
	write(104, 104, 103, 103)

	path := filepath.Join(t.TempDir(), "candles.csv")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

func testConfig(csvPath string) *config.Config {
	return &config.Config{
		Mode:          config.ModeBacktest,
		InstID:        testInstID,
		Timeframe:     "1m",
		WarmupCandles: 10,
		CSVPath:       csvPath,

		EMAFast:           3,
		EMASlow:           5,
		ATRPeriod:         2,
		ATRHistoryMult:    2,
		RSIPeriod:         14,
		RSIOverbought:     70,
		RSIOversold:       30,
		SwingSide:         2,
		SwingWindow:       5,
		CrossSlopeSamples: 5,

		Strategy: "price_ema",
		RiskMode: "pct",
		TPPct:    1,
		SLPct:    1,
		UnitSize: 1,
		Cooldown: time.Minute,
	}
}

func TestBacktestEndToEnd(t *testing.T) {
	cfg := testConfig(writeTradeCSV(t))
	log := zap.NewNop()
	b := bus.New(log)

	p, err := Build(log, cfg, b, nil, nil)
	require.NoError(t, err)

	src, err := NewSource(log, cfg, b)
	require.NoError(t, err)

	e := New(log, cfg, p, src, nil)
	require.NoError(t, e.Run(context.Background()))

	trades := p.Journal.Trades()
	require.Len(t, trades, 1)
	got := trades[0]
	assert.Equal(t, models.SideBuy, got.Side)
	assert.Equal(t, models.TargetTP, got.Target)
	assert.Equal(t, "price_ema", got.Strategy)
	assert.InDelta(t, 103.0, got.Entry, 1e-9)
	assert.InDelta(t, 103*1.01, got.Exit, 1e-9)
	assert.InDelta(t, 103*0.01, got.Pnl, 1e-9)

	// после прогона шина пустая: компоненты не переживают Run
	assert.Zero(t, b.Subscribers(models.TopicCandleClose))
}

func TestBacktestReport(t *testing.T) {
	cfg := testConfig(writeTradeCSV(t))
	log := zap.NewNop()
	b := bus.New(log)

	p, err := Build(log, cfg, b, nil, nil)
	require.NoError(t, err)
	src, err := NewSource(log, cfg, b)
	require.NoError(t, err)
	require.NoError(t, New(log, cfg, p, src, nil).Run(context.Background()))

	var buf bytes.Buffer
	WriteReport(&buf, p.Journal, p.Portfolio)
	out := buf.String()
	assert.Contains(t, out, "BACKTEST REPORT")
	assert.Contains(t, out, "trades:        1")
	assert.Contains(t, out, "price_ema")
}

// mismatchSource публикует свечу чужого символа: компоненты должны поднять
// EngineError, а движок — остановить прогон.
type mismatchSource struct {
	b *bus.Bus
}

func (s *mismatchSource) Warmup(ctx context.Context) error {
	candles := make([]models.Candle, 10)
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range candles {
		candles[i] = models.Candle{
			InstID: testInstID,
			Open:   100, High: 100, Low: 100, Close: 100,
			Start: t0.Add(time.Duration(i) * time.Minute),
			End:   t0.Add(time.Duration(i+1) * time.Minute),
			Index: int64(i),
		}
	}
	s.b.Publish(ctx, models.CandleHistoryReady{InstID: testInstID, Timeframe: "1m", Candles: candles})
	return nil
}

func (s *mismatchSource) Stream(ctx context.Context) error {
	s.b.Publish(ctx, models.CandleClose{
		InstID: "ETH-USDT-SWAP",
		Candle: models.Candle{InstID: "ETH-USDT-SWAP", Close: 100},
	})
	<-ctx.Done()
	return ctx.Err()
}

func TestSymbolMismatchStopsEngine(t *testing.T) {
	cfg := testConfig("unused.csv")
	log := zap.NewNop()
	b := bus.New(log)

	p, err := Build(log, cfg, b, nil, nil)
	require.NoError(t, err)

	e := New(log, cfg, p, &mismatchSource{b: b}, nil)
	err = e.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "symbol mismatch")
}

func TestNewSourceUnknownMode(t *testing.T) {
	cfg := testConfig("x.csv")
	cfg.Mode = "paper"
	_, err := NewSource(zap.NewNop(), cfg, bus.New(zap.NewNop()))
	assert.Error(t, err)
}
