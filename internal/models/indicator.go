package models

// MAMode — режим скользящей средней.
type MAMode string

const (
	MASimple      MAMode = "sma"
	MAExponential MAMode = "ema"
)

// MarketPhase — фаза рынка по ATR относительно его собственной средней.
type MarketPhase string

const (
	PhaseNeutral      MarketPhase = "neutral"
	PhaseAccumulation MarketPhase = "accumulation"
	PhaseExpansion    MarketPhase = "expansion"
)

// RSIState — зона RSI по настроенным порогам.
type RSIState string

const (
	RSINeutral    RSIState = "neutral"
	RSIOversold   RSIState = "oversold"
	RSIOverbought RSIState = "overbought"
)

// CrossDirection — направление пересечения fast/slow.
type CrossDirection string

const (
	CrossBullish CrossDirection = "bullish"
	CrossBearish CrossDirection = "bearish"
)

// IndicatorValue — закрытое множество полезных нагрузок IndicatorUpdate.
// Потребители различают их type-switch'ем, никаких словарей со строковыми ключами.
type IndicatorValue interface {
	indicatorValue()
}

type MAValue struct {
	Period int
	Mode   MAMode
	Value  float64
}

type ATRValue struct {
	Period int
	Value  float64
	Phase  MarketPhase
}

type RSIValue struct {
	Period int
	Value  float64
	State  RSIState
}

// SwingValue — лучший swing high / худший swing low в окне детектора.
type SwingValue struct {
	Window int
	Side   int
	High   float64
	Low    float64
}

type CrossValue struct {
	Direction  CrossDirection
	FastPeriod int
	SlowPeriod int
	Fast       float64
	Slow       float64
}

func (MAValue) indicatorValue()    {}
func (ATRValue) indicatorValue()   {}
func (RSIValue) indicatorValue()   {}
func (SwingValue) indicatorValue() {}
func (CrossValue) indicatorValue() {}

// IndicatorUpdate публикуется раз на закрытую свечу на индикатор. Не персистится.
type IndicatorUpdate struct {
	InstID string
	Candle Candle
	Value  IndicatorValue
}
