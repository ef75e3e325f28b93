package main

import (
	"log"

	"trade_engine/internal/engine"
	"trade_engine/internal/modules/config"
	"trade_engine/pkg/logger"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

func main() {
	app := fx.New(
		config.Module(),
		fx.Provide(
			func(cfg *config.Config) (*zap.Logger, error) {
				return logger.New(logger.Config{
					Service: "trade_engine_backtest",
					Level:   cfg.LogLevel,
					Debug:   cfg.LogDebug,
				})
			},
		),
		engine.Module(),
	)
	if err := app.Err(); err != nil {
		log.Fatal(err)
	}
	app.Run()
}
