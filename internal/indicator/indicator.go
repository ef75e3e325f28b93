// Package indicator — инкрементальные индикаторы поверх шины событий.
// Каждый компонент инициализируется балком из CandleHistoryReady и дальше
// обновляется O(1) на каждую CandleClose, публикуя IndicatorUpdate.
package indicator

import (
	"errors"
	"fmt"
)

var (
	// ErrNotEnoughCandles — истории меньше периода. Не фатально: индикатор
	// молчит и доинициализируется на живых свечах.
	ErrNotEnoughCandles = errors.New("not enough candles")
)

// symbolMismatch — свеча чужого символа: ошибка конфигурации, фатальна.
func symbolMismatch(component, want, got string) error {
	return fmt.Errorf("%s: symbol mismatch: configured %s, got %s", component, want, got)
}

func sign(v float64) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}

// slope — наклон линейной регрессии по последним точкам (x = 0..n-1).
func slope(ys []float64) float64 {
	n := float64(len(ys))
	if n < 2 {
		return 0
	}
	var sumX, sumY, sumXY, sumXX float64
	for i, y := range ys {
		x := float64(i)
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}
	den := n*sumXX - sumX*sumX
	if den == 0 {
		return 0
	}
	return (n*sumXY - sumX*sumY) / den
}
