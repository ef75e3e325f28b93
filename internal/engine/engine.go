package engine

import (
	"context"
	"sync"

	"trade_engine/internal/models"
	"trade_engine/internal/modules/config"
	"trade_engine/internal/modules/health/service"
	"trade_engine/internal/source"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Engine гоняет собранный Pipeline против источника: warmup, потом stream.
// Фатальная EngineError от любого компонента останавливает прогон.
type Engine struct {
	log      *zap.Logger
	cfg      *config.Config
	pipeline *Pipeline
	src      source.CandleSource
	health   *service.State // nil в backtest

	mu       sync.Mutex
	fatalErr error
}

func New(log *zap.Logger, cfg *config.Config, p *Pipeline, src source.CandleSource, health *service.State) *Engine {
	return &Engine{
		log:      log,
		cfg:      cfg,
		pipeline: p,
		src:      src,
		health:   health,
	}
}

// Run блокирует до конца данных (backtest), фатальной ошибки или отмены.
// На выходе все подписки снимаются: компоненты не переживают прогон.
func (e *Engine) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer e.pipeline.Bus.Reset()

	e.pipeline.Bus.Subscribe(models.TopicEngineError, func(_ context.Context, ev models.Event) {
		ee, ok := ev.(models.EngineError)
		if !ok {
			return
		}
		e.log.Error("[ENGINE] fatal component error",
			zap.String("component", ee.Component),
			zap.Error(ee.Err))
		e.mu.Lock()
		if e.fatalErr == nil {
			e.fatalErr = errors.Wrap(ee.Err, ee.Component)
		}
		e.mu.Unlock()
		cancel()
	})

	if e.health != nil {
		e.trackHealth()
	}

	e.log.Info("[ENGINE] warmup start",
		zap.String("mode", string(e.cfg.Mode)),
		zap.String("inst_id", e.cfg.InstID),
		zap.Int("candles", e.cfg.WarmupCandles))
	if err := e.src.Warmup(ctx); err != nil {
		return errors.Wrap(err, "warmup")
	}
	if fatal := e.fatal(); fatal != nil {
		return fatal
	}

	if e.health != nil {
		e.health.SetReady(true)
		e.health.SetFeedConnected(true)
		defer e.health.SetReady(false)
	}

	e.log.Info("[ENGINE] streaming")
	err := e.src.Stream(ctx)

	if fatal := e.fatal(); fatal != nil {
		return fatal
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return errors.Wrap(err, "stream")
	}
	return nil
}

func (e *Engine) fatal() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.fatalErr
}

func (e *Engine) trackHealth() {
	e.pipeline.Bus.Subscribe(models.TopicCandleClose, func(_ context.Context, ev models.Event) {
		if cc, ok := ev.(models.CandleClose); ok {
			e.health.SetLastCandle(cc.Candle.End)
		}
	})
	e.pipeline.Bus.Subscribe(models.TopicTradeClosed, func(_ context.Context, ev models.Event) {
		if _, ok := ev.(models.TradeClosed); ok {
			e.health.IncTradesClosed()
		}
	})
}
