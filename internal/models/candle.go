package models

import "time"

// Candle — закрытая свеча OHLCV. После закрытия не мутируется.
type Candle struct {
	InstID      string
	Open        float64
	High        float64
	Low         float64
	Close       float64
	Volume      float64
	QuoteVolume float64
	Start       time.Time
	End         time.Time
	Timeframe   string
	// Index монотонно растёт по символу, выставляется источником.
	Index int64
}

// Side — сторона сделки: "BUY"/"SELL" или пустая строка.
type Side string

const (
	SideNone Side = ""
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Opposite возвращает противоположную сторону.
func (s Side) Opposite() Side {
	switch s {
	case SideBuy:
		return SideSell
	case SideSell:
		return SideBuy
	default:
		return SideNone
	}
}
