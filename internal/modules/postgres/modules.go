package postgres

import (
	"context"
	"fmt"

	"trade_engine/internal/journal"
	"trade_engine/internal/modules/config"
	"trade_engine/pkg/db"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Module поднимает пул postgres и журнальный стор поверх него.
// Без DSN в конфиге стор не создаётся — журнал живёт только в памяти.
func Module() fx.Option {
	return fx.Module("postgres",
		fx.Provide(
			func(lc fx.Lifecycle, log *zap.Logger, cfg *config.Config) (journal.Store, error) {
				if cfg.DB == "" {
					log.Info("[PG] no dsn configured, journal is in-memory only")
					return nil, nil
				}

				ctx := context.Background()
				poolMaster, err := db.NewPool(ctx, db.PoolConfig{
					DSN: cfg.DB,
				})
				if err != nil {
					return nil, fmt.Errorf("failed to create poolMaster: %w", err)
				}
				if err = poolMaster.Ping(ctx); err != nil {
					return nil, err
				}

				txm := db.NewPgTxManager(log, poolMaster)
				lc.Append(fx.Hook{
					OnStop: func(context.Context) error {
						txm.Close()
						return nil
					},
				})
				return journal.NewPgStore(txm), nil
			},
		),
	)
}
