package indicator

import (
	"context"
	"math"
	"sync"

	"trade_engine/internal/bus"
	"trade_engine/internal/models"

	"go.uber.org/zap"
)

// Пороги фазы рынка: отношение текущего ATR к его собственной средней.
const (
	atrExpansionRatio    = 1.25
	atrAccumulationRatio = 0.8
)

// ATR — Average True Range по Уайлдеру.
// TR = max(h-l, |h-prevClose|, |l-prevClose|); сид — среднее первых period TR,
// дальше atr = (atr*(period-1) + tr)/period.
// Фаза рынка считается из отношения ATR к его скользящему среднему за
// period*historyMult выборок; пока истории меньше — всегда neutral.
type ATR struct {
	log *zap.Logger
	b   *bus.Bus

	instID      string
	period      int
	historyMult int

	mu        sync.Mutex
	prevClose float64
	havePrev  bool
	trCount   int
	seedSum   float64
	value     float64
	ready     bool

	histRing  []float64
	histSum   float64
	histCount int
}

func NewATR(log *zap.Logger, b *bus.Bus, instID string, period, historyMult int) *ATR {
	if period < 1 {
		period = 1
	}
	if historyMult < 1 {
		historyMult = 1
	}
	return &ATR{
		log:         log,
		b:           b,
		instID:      instID,
		period:      period,
		historyMult: historyMult,
		histRing:    make([]float64, period*historyMult),
	}
}

func (a *ATR) Attach(b *bus.Bus) {
	b.Subscribe(models.TopicCandleHistoryReady, a.onHistory)
	b.Subscribe(models.TopicCandleClose, a.onCandleClose)
}

func (a *ATR) Init(candles []models.Candle) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	// +1: первый TR требует предыдущего close
	if len(candles) < a.period+1 {
		return ErrNotEnoughCandles
	}
	for _, c := range candles {
		a.push(c)
	}
	return nil
}

func (a *ATR) Ready() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.ready
}

func (a *ATR) Value() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.value
}

func (a *ATR) onHistory(ctx context.Context, e models.Event) {
	h, ok := e.(models.CandleHistoryReady)
	if !ok {
		return
	}
	if h.InstID != a.instID {
		a.b.Publish(ctx, models.EngineError{
			Component: "atr",
			Err:       symbolMismatch("atr", a.instID, h.InstID),
		})
		return
	}
	if err := a.Init(h.Candles); err != nil {
		a.log.Debug("[ATR] init withheld",
			zap.Int("period", a.period),
			zap.Int("history", len(h.Candles)),
			zap.Error(err))
	}
}

func (a *ATR) onCandleClose(ctx context.Context, e models.Event) {
	cc, ok := e.(models.CandleClose)
	if !ok {
		return
	}
	if cc.InstID != a.instID {
		a.b.Publish(ctx, models.EngineError{
			Component: "atr",
			Err:       symbolMismatch("atr", a.instID, cc.InstID),
		})
		return
	}

	a.mu.Lock()
	a.push(cc.Candle)
	ready := a.ready
	val := a.value
	phase := a.phase()
	a.mu.Unlock()

	if !ready {
		a.log.Debug("[ATR] warming up", zap.Int("period", a.period), zap.Int("trCount", a.trCount))
		return
	}

	a.b.Publish(ctx, models.IndicatorUpdate{
		InstID: a.instID,
		Candle: cc.Candle,
		Value: models.ATRValue{
			Period: a.period,
			Value:  val,
			Phase:  phase,
		},
	})
}

func (a *ATR) push(c models.Candle) {
	if !a.havePrev {
		a.prevClose = c.Close
		a.havePrev = true
		return
	}

	tr := math.Max(c.High-c.Low,
		math.Max(math.Abs(c.High-a.prevClose), math.Abs(c.Low-a.prevClose)))
	a.prevClose = c.Close

	if a.trCount < a.period {
		a.seedSum += tr
		a.trCount++
		if a.trCount == a.period {
			a.value = a.seedSum / float64(a.period)
			a.ready = true
			a.pushHist(a.value)
		}
		return
	}

	a.value = (a.value*float64(a.period-1) + tr) / float64(a.period)
	a.pushHist(a.value)
}

func (a *ATR) pushHist(v float64) {
	i := a.histCount % len(a.histRing)
	if a.histCount >= len(a.histRing) {
		a.histSum -= a.histRing[i]
	}
	a.histRing[i] = v
	a.histSum += v
	a.histCount++
}

func (a *ATR) phase() models.MarketPhase {
	if a.histCount < len(a.histRing) {
		return models.PhaseNeutral
	}
	avg := a.histSum / float64(len(a.histRing))
	if avg <= 0 {
		return models.PhaseNeutral
	}
	ratio := a.value / avg
	switch {
	case ratio >= atrExpansionRatio:
		return models.PhaseExpansion
	case ratio <= atrAccumulationRatio:
		return models.PhaseAccumulation
	default:
		return models.PhaseNeutral
	}
}
