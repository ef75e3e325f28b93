package engine

import (
	"context"
	"os"

	"trade_engine/internal/bus"
	"trade_engine/internal/journal"
	"trade_engine/internal/market"
	"trade_engine/internal/modules/config"
	"trade_engine/internal/modules/health/service"
	"trade_engine/internal/notify"
	"trade_engine/internal/source"

	"github.com/pkg/errors"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// NewSource выбирает источник свечей по режиму.
func NewSource(log *zap.Logger, cfg *config.Config, b *bus.Bus) (source.CandleSource, error) {
	switch cfg.Mode {
	case config.ModeBacktest:
		return source.NewCSVSource(log, b, source.CSVConfig{
			Path:          cfg.CSVPath,
			InstID:        cfg.InstID,
			Timeframe:     cfg.Timeframe,
			WarmupCandles: cfg.WarmupCandles,
			ReplayDelay:   cfg.ReplayDelay,
		}), nil
	case config.ModeRealtime:
		return source.NewExchangeSource(log, b, market.NewClient(log), source.ExchangeConfig{
			InstID:        cfg.InstID,
			Timeframe:     cfg.Timeframe,
			WarmupCandles: cfg.WarmupCandles,
		}), nil
	}
	return nil, errors.Errorf("unknown mode: %q", cfg.Mode)
}

// NewNotifier: телеграм при настроенном токене, иначе — обычный лог.
func NewNotifier(log *zap.Logger, cfg *config.Config) notify.Notifier {
	if cfg.Telegram.Token != "" && cfg.Telegram.ChatID != 0 {
		if tg, err := notify.NewTelegram(cfg.Telegram.Token, cfg.Telegram.ChatID); err == nil {
			return tg
		}
		log.Warn("[NOTIFY] telegram init failed, falling back to log")
	}
	return notify.NewLog(log)
}

type engineParams struct {
	fx.In

	Log      *zap.Logger
	Cfg      *config.Config
	Pipeline *Pipeline
	Src      source.CandleSource
	Health   *service.State `optional:"true"`
}

func newEngine(p engineParams) *Engine {
	return New(p.Log, p.Cfg, p.Pipeline, p.Src, p.Health)
}

type storeParams struct {
	fx.In

	Store journal.Store `optional:"true"`
}

func newPipeline(log *zap.Logger, cfg *config.Config, b *bus.Bus, sp storeParams, n notify.Notifier) (*Pipeline, error) {
	return Build(log, cfg, b, sp.Store, n)
}

func run(lc fx.Lifecycle, sh fx.Shutdowner, log *zap.Logger, cfg *config.Config, e *Engine, p *Pipeline) {
	runCtx, cancel := context.WithCancel(context.Background())

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				if err := e.Run(runCtx); err != nil {
					log.Error("[ENGINE] run finished with error", zap.Error(err))
				}
				if cfg.Mode == config.ModeBacktest {
					WriteReport(os.Stdout, p.Journal, p.Portfolio)
				}
				_ = sh.Shutdown()
			}()
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			return nil
		},
	})
}

func Module() fx.Option {
	return fx.Module("engine",
		fx.Provide(
			bus.New,
			NewNotifier,
			NewSource,
			newPipeline,
			newEngine,
		),
		fx.Invoke(run),
	)
}
