package main

import (
	"context"
	"log"

	"trade_engine/internal/engine"
	"trade_engine/internal/modules/config"
	"trade_engine/internal/modules/health"
	"trade_engine/internal/modules/postgres"
	"trade_engine/pkg/logger"
	"trade_engine/pkg/tracing"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

func main() {
	app := fx.New(
		config.Module(),
		fx.Provide(
			func(cfg *config.Config) (*zap.Logger, error) {
				return logger.New(logger.Config{
					Service: "trade_engine",
					Level:   cfg.LogLevel,
					Debug:   cfg.LogDebug,
				})
			},
			func(cfg *config.Config) health.Config {
				return health.Config{Addr: cfg.HealthAddr}
			},
		),
		postgres.Module(),
		health.Module(),
		engine.Module(),
		fx.Invoke(initTracing),
	)
	if err := app.Err(); err != nil {
		log.Fatal(err)
	}
	app.Run()
}

// initTracing поднимает jaeger, если он настроен; без него остаётся noop-трейсер.
func initTracing(lc fx.Lifecycle, logg *zap.Logger, cfg *config.Config) error {
	if cfg.Jaeger.Host == "" {
		return nil
	}
	_, closer, err := tracing.InitTracer(logg, tracing.Config{
		Service: "trade_engine",
		Host:    cfg.Jaeger.Host,
		Port:    cfg.Jaeger.Port,
	})
	if err != nil {
		return err
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			closer()
			return nil
		},
	})
	return nil
}
