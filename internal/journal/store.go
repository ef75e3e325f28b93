package journal

import (
	"context"

	"trade_engine/internal/models"
	"trade_engine/pkg/db"

	"github.com/bytedance/sonic"
	"github.com/pkg/errors"
)

const insertTradeSQL = `
INSERT INTO trades (inst_id, side, size, entry, exit, tp, sl, target, strategy, opened_at, closed_at, pnl, context)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

// tradeContext — снапшот свечей входа/выхода, хранится как jsonb.
type tradeContext struct {
	OpenCandle  models.Candle `json:"open_candle"`
	CloseCandle models.Candle `json:"close_candle"`
}

// PgStore пишет закрытые сделки в postgres. Одна сделка — одна транзакция.
type PgStore struct {
	txm db.TxManager
}

func NewPgStore(txm db.TxManager) *PgStore {
	return &PgStore{txm: txm}
}

func (s *PgStore) SaveTrade(ctx context.Context, t models.Trade) error {
	blob, err := sonic.Marshal(tradeContext{
		OpenCandle:  t.OpenCandle,
		CloseCandle: t.CloseCandle,
	})
	if err != nil {
		return errors.Wrap(err, "marshal trade context")
	}

	return s.txm.RunMaster(ctx, func(ctxTx context.Context, tx db.Transaction) error {
		_, err := tx.Exec(ctxTx, insertTradeSQL,
			t.InstID, string(t.Side), t.Size, t.Entry, t.Exit,
			t.TP, t.SL, t.Target, t.Strategy,
			t.OpenedAt, t.ClosedAt, t.Pnl, blob,
		)
		return errors.Wrap(err, "insert trade")
	})
}
