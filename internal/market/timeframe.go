package market

import (
	"fmt"
	"strings"
	"time"
)

// TimeframeDuration — длительность бара по таймфрейму; 0 для неизвестного.
// Покрывает тот же набор, что и okxBar.
func TimeframeDuration(tf string) time.Duration {
	switch strings.ToLower(strings.TrimSpace(tf)) {
	case "1m":
		return time.Minute
	case "3m":
		return 3 * time.Minute
	case "5m":
		return 5 * time.Minute
	case "15m":
		return 15 * time.Minute
	case "30m":
		return 30 * time.Minute
	case "60m", "1h":
		return time.Hour
	case "2h":
		return 2 * time.Hour
	case "4h":
		return 4 * time.Hour
	case "6h":
		return 6 * time.Hour
	case "12h":
		return 12 * time.Hour
	case "1d":
		return 24 * time.Hour
	case "1w":
		return 7 * 24 * time.Hour
	default:
		return 0
	}
}

// ValidTimeframe — true, если таймфрейм входит в поддерживаемый набор.
func ValidTimeframe(tf string) bool {
	_, err := okxBar(tf)
	return err == nil
}

// okxBar приводит таймфрейм к нотации OKX ("1h" -> "1H").
func okxBar(tf string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(tf)) {
	case "1m", "3m", "5m", "15m", "30m":
		return tf, nil
	case "60m", "1h":
		return "1H", nil
	case "2h":
		return "2H", nil
	case "4h":
		return "4H", nil
	case "6h":
		return "6H", nil
	case "12h":
		return "12H", nil
	case "1d":
		return "1D", nil
	case "1w":
		return "1W", nil
	}
	return "", fmt.Errorf("unsupported timeframe for OKX bar: %q", tf)
}
