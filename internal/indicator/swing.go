package indicator

import (
	"context"
	"sync"

	"trade_engine/internal/bus"
	"trade_engine/internal/models"

	"go.uber.org/zap"
)

// SwingDetector ищет локальные экстремумы: свеча — swing high, если её high
// строгий максимум в окрестности [-side, +side] (swing low зеркально по lows).
// Наружу уходит лучший swing high и худший swing low последнего окна,
// и только когда хотя бы один из них сменился (дебаунс).
type SwingDetector struct {
	log *zap.Logger
	b   *bus.Bus

	instID string
	side   int
	window int

	mu      sync.Mutex
	candles []models.Candle
	inited  bool

	lastHigh float64
	lastLow  float64
	emitted  bool
}

func NewSwingDetector(log *zap.Logger, b *bus.Bus, instID string, side, window int) *SwingDetector {
	if side < 1 {
		side = 1
	}
	if window < 2*side+1 {
		window = 2*side + 1
	}
	return &SwingDetector{
		log:    log,
		b:      b,
		instID: instID,
		side:   side,
		window: window,
	}
}

func (s *SwingDetector) Attach(b *bus.Bus) {
	b.Subscribe(models.TopicCandleHistoryReady, s.onHistory)
	b.Subscribe(models.TopicCandleClose, s.onCandleClose)
}

// Init — балковый детектор: окна меньше window на старте недостаточно,
// это ошибка конфигурации, а не прогрев.
func (s *SwingDetector) Init(candles []models.Candle) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(candles) < s.window {
		return ErrNotEnoughCandles
	}
	s.candles = append(s.candles[:0], candles[len(candles)-s.window:]...)
	s.inited = true
	return nil
}

func (s *SwingDetector) onHistory(ctx context.Context, e models.Event) {
	h, ok := e.(models.CandleHistoryReady)
	if !ok {
		return
	}
	if h.InstID != s.instID {
		s.b.Publish(ctx, models.EngineError{
			Component: "swing_detector",
			Err:       symbolMismatch("swing_detector", s.instID, h.InstID),
		})
		return
	}
	if err := s.Init(h.Candles); err != nil {
		// балковый детектор: без полного окна на старте работать нельзя
		s.b.Publish(ctx, models.EngineError{Component: "swing_detector", Err: err})
	}
}

func (s *SwingDetector) onCandleClose(ctx context.Context, e models.Event) {
	cc, ok := e.(models.CandleClose)
	if !ok {
		return
	}
	if cc.InstID != s.instID {
		s.b.Publish(ctx, models.EngineError{
			Component: "swing_detector",
			Err:       symbolMismatch("swing_detector", s.instID, cc.InstID),
		})
		return
	}

	s.mu.Lock()
	s.candles = append(s.candles, cc.Candle)
	if len(s.candles) > s.window {
		s.candles = s.candles[len(s.candles)-s.window:]
	}
	high, low, found := s.scan()
	changed := found && (!s.emitted || high != s.lastHigh || low != s.lastLow)
	if changed {
		s.lastHigh, s.lastLow = high, low
		s.emitted = true
	}
	s.mu.Unlock()

	if !changed {
		return
	}

	s.b.Publish(ctx, models.IndicatorUpdate{
		InstID: s.instID,
		Candle: cc.Candle,
		Value: models.SwingValue{
			Window: s.window,
			Side:   s.side,
			High:   high,
			Low:    low,
		},
	})
}

// scan перебирает окно и возвращает максимальный swing high и минимальный
// swing low. found=false, когда в окне нет ни одного экстремума.
func (s *SwingDetector) scan() (high, low float64, found bool) {
	n := len(s.candles)
	if n < 2*s.side+1 {
		return 0, 0, false
	}

	var haveHigh, haveLow bool
	for i := s.side; i < n-s.side; i++ {
		c := s.candles[i]

		isHigh, isLow := true, true
		for j := i - s.side; j <= i+s.side; j++ {
			if j == i {
				continue
			}
			if s.candles[j].High >= c.High {
				isHigh = false
			}
			if s.candles[j].Low <= c.Low {
				isLow = false
			}
			if !isHigh && !isLow {
				break
			}
		}

		if isHigh && (!haveHigh || c.High > high) {
			high = c.High
			haveHigh = true
		}
		if isLow && (!haveLow || c.Low < low) {
			low = c.Low
			haveLow = true
		}
	}

	if !haveHigh && !haveLow {
		return 0, 0, false
	}
	// до первой эмиссии нужны оба уровня; после — недостающий берём из прошлой
	if (!haveHigh || !haveLow) && !s.emitted {
		return 0, 0, false
	}
	if !haveHigh {
		high = s.lastHigh
	}
	if !haveLow {
		low = s.lastLow
	}
	return high, low, true
}
