package indicator

import (
	"context"
	"math"
	"sync"
	"time"

	"trade_engine/internal/bus"
	"trade_engine/internal/models"

	"go.uber.org/zap"
)

// crossSyncTolerance — fast и slow должны обновиться в пределах этого окна,
// прежде чем пара оценивается.
const crossSyncTolerance = time.Second

// CrossDetector слушает MA-апдейты fast/slow периодов и сигналит пересечение,
// только когда:
//   - знак (fast-slow) сменился,
//   - |fast-slow| >= minGap (отсекаем микрокасания),
//   - наклон fast по последним точкам >= slopeThreshold по модулю,
//   - наклоны fast и slow не смотрят в разные стороны.
type CrossDetector struct {
	log *zap.Logger
	b   *bus.Bus

	instID         string
	fastPeriod     int
	slowPeriod     int
	minGap         float64
	slopeThreshold float64
	slopeSamples   int

	mu       sync.Mutex
	fast     float64
	slow     float64
	fastAt   time.Time
	slowAt   time.Time
	haveFast bool
	haveSlow bool

	fastHist []float64
	slowHist []float64

	prevDiff     float64
	havePrevDiff bool
}

func NewCrossDetector(
	log *zap.Logger,
	b *bus.Bus,
	instID string,
	fastPeriod, slowPeriod int,
	minGap, slopeThreshold float64,
	slopeSamples int,
) *CrossDetector {
	if slopeSamples < 2 {
		slopeSamples = 2
	}
	return &CrossDetector{
		log:            log,
		b:              b,
		instID:         instID,
		fastPeriod:     fastPeriod,
		slowPeriod:     slowPeriod,
		minGap:         minGap,
		slopeThreshold: slopeThreshold,
		slopeSamples:   slopeSamples,
	}
}

func (c *CrossDetector) Attach(b *bus.Bus) {
	b.Subscribe(models.TopicIndicatorUpdate, c.onIndicator)
}

func (c *CrossDetector) onIndicator(ctx context.Context, e models.Event) {
	upd, ok := e.(models.IndicatorUpdate)
	if !ok {
		return
	}
	ma, ok := upd.Value.(models.MAValue)
	if !ok {
		return
	}
	if upd.InstID != c.instID {
		return
	}

	c.mu.Lock()
	switch ma.Period {
	case c.fastPeriod:
		c.fast = ma.Value
		c.fastAt = upd.Candle.End
		c.haveFast = true
		c.fastHist = appendBound(c.fastHist, ma.Value, c.slopeSamples)
	case c.slowPeriod:
		c.slow = ma.Value
		c.slowAt = upd.Candle.End
		c.haveSlow = true
		c.slowHist = appendBound(c.slowHist, ma.Value, c.slopeSamples)
	default:
		c.mu.Unlock()
		return
	}

	dir, fast, slow, fire := c.evaluate()
	c.mu.Unlock()

	if !fire {
		return
	}

	c.log.Debug("[CROSS] detected",
		zap.String("direction", string(dir)),
		zap.Float64("fast", fast),
		zap.Float64("slow", slow))

	c.b.Publish(ctx, models.IndicatorUpdate{
		InstID: c.instID,
		Candle: upd.Candle,
		Value: models.CrossValue{
			Direction:  dir,
			FastPeriod: c.fastPeriod,
			SlowPeriod: c.slowPeriod,
			Fast:       fast,
			Slow:       slow,
		},
	})
}

func (c *CrossDetector) evaluate() (dir models.CrossDirection, fast, slow float64, fire bool) {
	if !c.haveFast || !c.haveSlow {
		return "", 0, 0, false
	}
	// синхронизация: обе стороны должны быть с одной свечи
	gap := c.fastAt.Sub(c.slowAt)
	if gap < 0 {
		gap = -gap
	}
	if gap > crossSyncTolerance {
		return "", 0, 0, false
	}

	// пара синхронна: с этого момента diff фиксируется как prevDiff
	diff := c.fast - c.slow
	defer func() {
		c.prevDiff = diff
		c.havePrevDiff = true
	}()

	if !c.havePrevDiff {
		return "", 0, 0, false
	}
	if sign(diff) == 0 || sign(diff) == sign(c.prevDiff) {
		return "", 0, 0, false
	}
	if math.Abs(diff) < c.minGap {
		return "", 0, 0, false
	}

	fastSlope := slope(c.fastHist)
	if math.Abs(fastSlope) < c.slopeThreshold {
		return "", 0, 0, false
	}
	slowSlope := slope(c.slowHist)
	// противоречащие тренды не сигналим
	if sign(fastSlope) != 0 && sign(slowSlope) != 0 && sign(fastSlope) != sign(slowSlope) {
		return "", 0, 0, false
	}

	if diff > 0 {
		return models.CrossBullish, c.fast, c.slow, true
	}
	return models.CrossBearish, c.fast, c.slow, true
}

func appendBound(xs []float64, v float64, max int) []float64 {
	xs = append(xs, v)
	if len(xs) > max {
		xs = xs[len(xs)-max:]
	}
	return xs
}
