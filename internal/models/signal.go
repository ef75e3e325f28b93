package models

import "time"

// Signal — торговый сигнал от одной стратегии по одной свече.
type Signal struct {
	InstID   string
	Side     Side
	Candle   Candle
	Price    float64
	Strategy string
	Reason   string
	// Filtered выставляют даунстрим-фильтры, не мутируя продюсера.
	Filtered  bool
	CreatedAt time.Time
}

// ApprovedTrade — сигнал, прошедший риск-менеджер: размер и уровни TP/SL посчитаны.
type ApprovedTrade struct {
	InstID    string
	Side      Side
	Size      float64
	Entry     Candle
	TP        float64
	SL        float64
	Strategy  string
	CreatedAt time.Time
}
