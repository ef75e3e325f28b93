package indicator

import (
	"context"
	"sync"

	"trade_engine/internal/bus"
	"trade_engine/internal/models"

	"go.uber.org/zap"
)

// MovingAverage — SMA/EMA одним компонентом с выбором режима.
// SMA держит кольцевой буфер и бегущую сумму (вычесть старую / добавить новую),
// EMA сидируется как SMA первых period закрытий и дальше
// ema = (close-ema)*k + ema, k = 2/(period+1).
type MovingAverage struct {
	log *zap.Logger
	b   *bus.Bus

	instID string
	period int
	mode   models.MAMode
	alpha  float64

	mu    sync.Mutex
	ring  []float64
	sum   float64
	count int
	ema   float64
	ready bool
}

func NewMovingAverage(log *zap.Logger, b *bus.Bus, instID string, period int, mode models.MAMode) *MovingAverage {
	if period < 1 {
		period = 1
	}
	return &MovingAverage{
		log:    log,
		b:      b,
		instID: instID,
		period: period,
		mode:   mode,
		alpha:  2.0 / (float64(period) + 1),
		ring:   make([]float64, period),
	}
}

func (m *MovingAverage) Attach(b *bus.Bus) {
	b.Subscribe(models.TopicCandleHistoryReady, m.onHistory)
	b.Subscribe(models.TopicCandleClose, m.onCandleClose)
}

// Init сидирует индикатор из исторического окна (oldest→newest).
func (m *MovingAverage) Init(candles []models.Candle) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(candles) < m.period {
		return ErrNotEnoughCandles
	}
	for _, c := range candles {
		m.push(c.Close)
	}
	return nil
}

// Ready: значения публикуются только после полного прогрева —
// частичных/неопределённых значений не бывает.
func (m *MovingAverage) Ready() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ready
}

func (m *MovingAverage) Value() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.value()
}

func (m *MovingAverage) onHistory(ctx context.Context, e models.Event) {
	h, ok := e.(models.CandleHistoryReady)
	if !ok {
		return
	}
	if h.InstID != m.instID {
		m.b.Publish(ctx, models.EngineError{
			Component: "moving_average",
			Err:       symbolMismatch("moving_average", m.instID, h.InstID),
		})
		return
	}
	if err := m.Init(h.Candles); err != nil {
		// не фатально: досидируемся на живых свечах
		m.log.Debug("[MA] init withheld",
			zap.Int("period", m.period),
			zap.Int("history", len(h.Candles)),
			zap.Error(err))
	}
}

func (m *MovingAverage) onCandleClose(ctx context.Context, e models.Event) {
	cc, ok := e.(models.CandleClose)
	if !ok {
		return
	}
	if cc.InstID != m.instID {
		m.b.Publish(ctx, models.EngineError{
			Component: "moving_average",
			Err:       symbolMismatch("moving_average", m.instID, cc.InstID),
		})
		return
	}

	m.mu.Lock()
	m.push(cc.Candle.Close)
	ready := m.ready
	val := m.value()
	m.mu.Unlock()

	if !ready {
		m.log.Debug("[MA] warming up", zap.Int("period", m.period), zap.Int("count", m.count))
		return
	}

	m.b.Publish(ctx, models.IndicatorUpdate{
		InstID: m.instID,
		Candle: cc.Candle,
		Value: models.MAValue{
			Period: m.period,
			Mode:   m.mode,
			Value:  val,
		},
	})
}

func (m *MovingAverage) push(close float64) {
	if m.count < m.period {
		m.ring[m.count] = close
		m.sum += close
		m.count++
		if m.count == m.period {
			m.ready = true
			m.ema = m.sum / float64(m.period)
		}
		return
	}

	oldest := m.count % m.period
	m.sum -= m.ring[oldest]
	m.ring[oldest] = close
	m.sum += close
	m.count++

	if m.mode == models.MAExponential {
		m.ema = (close-m.ema)*m.alpha + m.ema
	}
}

func (m *MovingAverage) value() float64 {
	if !m.ready {
		return 0
	}
	if m.mode == models.MAExponential {
		return m.ema
	}
	return m.sum / float64(m.period)
}
