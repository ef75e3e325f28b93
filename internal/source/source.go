// Package source — источники свечей. Двухфазный протокол: Warmup публикует
// CandleHistoryReady и полностью отрабатывается всеми подписчиками до того,
// как Stream опубликует первую CandleClose.
package source

import (
	"context"

	"github.com/pkg/errors"
)

// CandleSource питает конвейер свечами: сперва история, потом поток закрытий.
type CandleSource interface {
	// Warmup загружает историю и публикует CandleHistoryReady.
	Warmup(ctx context.Context) error
	// Stream публикует CandleClose по одной до исчерпания данных (csv)
	// или до отмены контекста (exchange).
	Stream(ctx context.Context) error
}

// ErrNotEnoughHistory — прогрев запросил больше свечей, чем есть в данных.
var ErrNotEnoughHistory = errors.New("not enough history for warmup")
