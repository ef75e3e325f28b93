// Package notify — уведомления о закрытых сделках и состоянии портфеля.
// Телеграм опционален: без токена работает stdout-вариант через zap.
package notify

import (
	"context"
	"fmt"

	"trade_engine/internal/bus"
	"trade_engine/internal/models"

	tgbot "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

type Notifier interface {
	Send(msg string)
	Sendf(format string, args ...any)
}

// Attach подписывает нотифайер на закрытия сделок.
func Attach(b *bus.Bus, n Notifier) {
	b.Subscribe(models.TopicTradeClosed, func(_ context.Context, ev models.Event) {
		tc, ok := ev.(models.TradeClosed)
		if !ok {
			return
		}
		t := tc.Trade
		emoji := "✅"
		if t.Pnl < 0 {
			emoji = "❌"
		}
		n.Sendf("%s %s %s по %s\nВход: %.4f\nВыход: %.4f (%s)\nPnL: %+.4f",
			emoji, t.Side, t.InstID, t.Strategy, t.Entry, t.Exit, t.Target, t.Pnl)
	})
}

// Telegram — пассивный нотифайер, только исходящие сообщения.
type Telegram struct {
	bot    *tgbot.BotAPI
	chatID int64
}

func NewTelegram(token string, chatID int64) (*Telegram, error) {
	b, err := tgbot.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	return &Telegram{bot: b, chatID: chatID}, nil
}

func (t *Telegram) Send(msg string) {
	if t == nil || t.bot == nil || t.chatID == 0 {
		return
	}
	_, _ = t.bot.Send(tgbot.NewMessage(t.chatID, msg))
}

func (t *Telegram) Sendf(format string, args ...any) { t.Send(fmt.Sprintf(format, args...)) }

// Log — fallback на обычный лог, когда телеграм не настроен.
type Log struct {
	log *zap.Logger
}

func NewLog(log *zap.Logger) *Log { return &Log{log: log} }

func (l *Log) Send(msg string) { l.log.Info("[NOTIFY] " + msg) }

func (l *Log) Sendf(format string, args ...any) { l.Send(fmt.Sprintf(format, args...)) }
