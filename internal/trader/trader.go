// Package trader — машина состояний одной позиции: OPEN -> IN_POSITION -> CLOSED.
// Одновременно в рынке не больше одной сделки; после закрытия действует
// cooldown, в течение которого новые одобренные сделки молча отбрасываются.
package trader

import (
	"context"
	"sync"
	"time"

	"trade_engine/internal/bus"
	"trade_engine/internal/models"

	"github.com/opentracing/opentracing-go"
	"go.uber.org/zap"
)

type Config struct {
	InstID   string
	Cooldown time.Duration
}

// PositionTrader исполняет одобренные сделки против закрытий свечей.
// Время cooldown меряется по времени свечей, а не по wall clock: так
// поведение одинаково в реплее и в реалтайме.
type PositionTrader struct {
	log *zap.Logger
	b   *bus.Bus
	cfg Config

	mu        sync.Mutex
	current   *models.Trade
	lastClose time.Time // End свечи, закрывшей последнюю сделку
	span      opentracing.Span
}

func New(log *zap.Logger, b *bus.Bus, cfg Config) *PositionTrader {
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 3 * time.Minute
	}
	return &PositionTrader{log: log, b: b, cfg: cfg}
}

func (t *PositionTrader) Attach(b *bus.Bus) {
	b.Subscribe(models.TopicTradeApproved, t.onApproved)
	b.Subscribe(models.TopicCandleClose, t.onCandleClose)
}

// Current возвращает копию открытой сделки, если она есть.
func (t *PositionTrader) Current() (models.Trade, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.current == nil {
		return models.Trade{}, false
	}
	return *t.current, true
}

func (t *PositionTrader) onApproved(_ context.Context, ev models.Event) {
	appr, ok := ev.(models.ApprovedTrade)
	// чужой символ фатально ловят индикаторы на сырых свечах;
	// производные события здесь просто фильтруются
	if !ok || appr.InstID != t.cfg.InstID {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.current != nil {
		t.log.Debug("[TRADER] already in position, signal dropped",
			zap.String("strategy", appr.Strategy),
			zap.String("side", string(appr.Side)))
		return
	}
	if !t.lastClose.IsZero() && appr.Entry.End.Sub(t.lastClose) < t.cfg.Cooldown {
		t.log.Debug("[TRADER] cooldown active, signal dropped",
			zap.Time("last_close", t.lastClose),
			zap.Duration("cooldown", t.cfg.Cooldown))
		return
	}

	t.current = &models.Trade{
		InstID:     appr.InstID,
		Side:       appr.Side,
		Size:       appr.Size,
		Status:     models.StatusOpen,
		Entry:      appr.Entry.Close,
		TP:         appr.TP,
		SL:         appr.SL,
		Strategy:   appr.Strategy,
		OpenCandle: appr.Entry,
		OpenedAt:   appr.Entry.End,
	}
	t.span = opentracing.StartSpan("trade")
	t.span.SetTag("inst_id", appr.InstID)
	t.span.SetTag("side", string(appr.Side))
	t.span.SetTag("strategy", appr.Strategy)

	t.log.Info("[TRADER] position opened",
		zap.String("side", string(appr.Side)),
		zap.Float64("entry", t.current.Entry),
		zap.Float64("tp", appr.TP),
		zap.Float64("sl", appr.SL),
		zap.Float64("size", appr.Size))
}

func (t *PositionTrader) onCandleClose(ctx context.Context, ev models.Event) {
	cc, ok := ev.(models.CandleClose)
	if !ok || cc.InstID != t.cfg.InstID {
		return
	}

	t.mu.Lock()
	if t.current == nil {
		t.mu.Unlock()
		return
	}
	if t.current.Status == models.StatusOpen {
		t.current.Status = models.StatusInPosition
	}

	target, exit, hit := t.evaluate(cc.Candle)
	if !hit {
		t.mu.Unlock()
		return
	}

	closed := *t.current
	closed.Status = models.StatusClosed
	closed.Exit = exit
	closed.Target = target
	closed.CloseCandle = cc.Candle
	closed.ClosedAt = cc.Candle.End
	closed.Pnl = closed.RealizedPnl(exit)

	t.current = nil
	t.lastClose = cc.Candle.End
	if t.span != nil {
		t.span.SetTag("target", target)
		t.span.SetTag("pnl", closed.Pnl)
		t.span.Finish()
		t.span = nil
	}
	t.mu.Unlock()

	t.log.Info("[TRADER] position closed",
		zap.String("side", string(closed.Side)),
		zap.String("target", target),
		zap.Float64("exit", exit),
		zap.Float64("pnl", closed.Pnl))

	t.b.Publish(ctx, models.TradeClosed{Trade: closed})
}

// evaluate проверяет касание уровней. При касании обоих в одной свече
// побеждает TP: он проверяется первым.
func (t *PositionTrader) evaluate(c models.Candle) (target string, exit float64, hit bool) {
	tr := t.current
	if tr.Side == models.SideBuy {
		if c.High >= tr.TP {
			return models.TargetTP, tr.TP, true
		}
		if c.Low <= tr.SL {
			return models.TargetSL, tr.SL, true
		}
		return "", 0, false
	}
	// SELL: TP снизу, SL сверху
	if c.Low <= tr.TP {
		return models.TargetTP, tr.TP, true
	}
	if c.High >= tr.SL {
		return models.TargetSL, tr.SL, true
	}
	return "", 0, false
}
