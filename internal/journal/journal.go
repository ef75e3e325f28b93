// Package journal — учёт закрытых сделок и портфеля. Журнал append-only:
// статистика считается по требованию и никогда не мутирует записи.
package journal

import (
	"context"
	"sync"

	"trade_engine/internal/bus"
	"trade_engine/internal/models"

	"go.uber.org/zap"
)

// Store — опциональная персистенция закрытых сделок.
type Store interface {
	SaveTrade(ctx context.Context, t models.Trade) error
}

// Summary — агрегаты по журналу на момент вызова.
type Summary struct {
	Trades      int
	Wins        int
	Losses      int
	WinRate     float64
	TotalPnl    float64
	MaxDrawdown float64 // (peak-trough)/initial
	BestStreak  int     // максимум выигрышей подряд
}

type Journal struct {
	log   *zap.Logger
	store Store

	mu     sync.Mutex
	trades []models.Trade
}

func New(log *zap.Logger, store Store) *Journal {
	return &Journal{log: log, store: store}
}

func (j *Journal) Attach(b *bus.Bus) {
	b.Subscribe(models.TopicTradeClosed, j.onTradeClosed)
}

func (j *Journal) onTradeClosed(ctx context.Context, ev models.Event) {
	tc, ok := ev.(models.TradeClosed)
	if !ok {
		return
	}

	j.mu.Lock()
	j.trades = append(j.trades, tc.Trade)
	n := len(j.trades)
	j.mu.Unlock()

	j.log.Info("[JOURNAL] trade recorded",
		zap.Int("total", n),
		zap.String("target", tc.Trade.Target),
		zap.Float64("pnl", tc.Trade.Pnl))

	if j.store != nil {
		if err := j.store.SaveTrade(ctx, tc.Trade); err != nil {
			// персистенция не должна ронять прогон
			j.log.Error("[JOURNAL] save failed", zap.Error(err))
		}
	}
}

// Trades возвращает копию журнала в порядке закрытия.
func (j *Journal) Trades() []models.Trade {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]models.Trade, len(j.trades))
	copy(out, j.trades)
	return out
}

// Summarize считает статистику против начального капитала.
func (j *Journal) Summarize(initialBalance float64) Summary {
	j.mu.Lock()
	defer j.mu.Unlock()

	s := Summary{Trades: len(j.trades)}
	balance := initialBalance
	peak := initialBalance
	maxDD := 0.0
	streak := 0

	for _, t := range j.trades {
		s.TotalPnl += t.Pnl
		balance += t.Pnl

		if t.Pnl > 0 {
			s.Wins++
			streak++
			if streak > s.BestStreak {
				s.BestStreak = streak
			}
		} else {
			s.Losses++
			streak = 0
		}

		if balance > peak {
			peak = balance
		}
		if dd := peak - balance; dd > maxDD {
			maxDD = dd
		}
	}

	if s.Trades > 0 {
		s.WinRate = float64(s.Wins) / float64(s.Trades)
	}
	if initialBalance > 0 {
		s.MaxDrawdown = maxDD / initialBalance
	}
	return s
}
