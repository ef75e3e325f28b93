// Package market — REST+WS клиент OKX: история свечей для прогрева и поток
// закрытых свечей по одному инструменту.
package market

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"trade_engine/internal/models"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	restBaseURL = "https://www.okx.com"
	wsURL       = "wss://ws.okx.com:8443/ws/v5/business"
)

type Client struct {
	log      *zap.Logger
	http     *http.Client
	wsDialer *websocket.Dialer
}

func NewClient(log *zap.Logger) *Client {
	return &Client{
		log:      log,
		http:     &http.Client{Timeout: 10 * time.Second},
		wsDialer: &websocket.Dialer{},
	}
}

// GetCandles — история свечей. OKX отдаёт newest-first, разворачиваем,
// чтобы прогрев шёл по времени.
func (c *Client) GetCandles(ctx context.Context, instID, timeframe string, limit int) ([]models.Candle, error) {
	if limit <= 0 {
		limit = 100
	}
	bar, err := okxBar(timeframe)
	if err != nil {
		return nil, err
	}

	u := fmt.Sprintf("%s/api/v5/market/candles?instId=%s&bar=%s&limit=%d",
		restBaseURL, url.QueryEscape(instID), url.QueryEscape(bar), limit,
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	b, _ := io.ReadAll(resp.Body)
	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("http %d: %s", resp.StatusCode, string(b))
	}

	var r struct {
		Code string     `json:"code"`
		Msg  string     `json:"msg"`
		Data [][]string `json:"data"`
	}
	if err := sonic.Unmarshal(b, &r); err != nil {
		return nil, err
	}
	if r.Code != "0" {
		return nil, fmt.Errorf("okx candles error: code=%s msg=%s", r.Code, r.Msg)
	}

	out := make([]models.Candle, 0, len(r.Data))
	for i := len(r.Data) - 1; i >= 0; i-- {
		candle, ok := parseRow(r.Data[i], instID, timeframe)
		if !ok {
			continue
		}
		out = append(out, candle)
	}
	return out, nil
}

// StreamCandles — поток подтверждённых свечей по инструменту.
// Обрыв соединения пересоединяется сам с паузой в секунду; уже отданные
// свечи при реконнекте не теряются и не дублируются на этом уровне —
// дедупликацию по Start делает потребитель.
func (c *Client) StreamCandles(ctx context.Context, instID, timeframe string) <-chan models.Candle {
	ch := make(chan models.Candle)

	go func() {
		defer close(ch)

		channel := "candle" + timeframe // "1m" -> "candle1m"

		for {
			c.log.Info("[WS] connect", zap.String("channel", channel), zap.String("inst_id", instID))
			conn, _, err := c.wsDialer.Dial(wsURL, nil)
			if err != nil {
				c.log.Warn("[WS] dial error", zap.String("channel", channel), zap.Error(err))
				if !sleepOrDone(ctx, time.Second) {
					return
				}
				continue
			}

			sub := map[string]any{
				"op": "subscribe",
				"args": []map[string]string{{
					"channel": channel,
					"instId":  instID,
				}},
			}
			if err := conn.WriteJSON(sub); err != nil {
				c.log.Warn("[WS] subscribe error", zap.String("channel", channel), zap.Error(err))
				_ = conn.Close()
				if !sleepOrDone(ctx, time.Second) {
					return
				}
				continue
			}

			// keepalive ping каждые 20s — иначе OKX рвёт соединение с 4004
			stopPing := make(chan struct{})
			go func() {
				t := time.NewTicker(20 * time.Second)
				defer t.Stop()
				for {
					select {
					case <-ctx.Done():
						return
					case <-stopPing:
						return
					case <-t.C:
						_ = conn.WriteJSON(map[string]string{"op": "ping"})
					}
				}
			}()

			c.readLoop(ctx, conn, channel, instID, timeframe, ch)
			close(stopPing)
			_ = conn.Close()

			select {
			case <-ctx.Done():
				return
			default:
				time.Sleep(time.Second)
			}
		}
	}()

	return ch
}

func (c *Client) readLoop(
	ctx context.Context,
	conn *websocket.Conn,
	channel, instID, timeframe string,
	out chan<- models.Candle,
) {
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			c.log.Warn("[WS] read error", zap.String("channel", channel), zap.Error(err))
			return
		}

		var frame struct {
			Arg struct {
				Channel string `json:"channel"`
				InstID  string `json:"instId"`
			} `json:"arg"`
			Data [][]string `json:"data"`
		}
		if err := sonic.Unmarshal(msg, &frame); err != nil {
			continue
		}
		if frame.Arg.Channel != channel || frame.Arg.InstID != instID || len(frame.Data) == 0 {
			continue
		}

		// в одном кадре может прийти несколько свечей
		for _, row := range frame.Data {
			// формат data: [ts, o, h, l, c, vol, volCcy, volCcyQuote, confirm]
			// confirm всегда в последнем элементе, не хардкодим индекс 8
			if len(row) < 5 || row[len(row)-1] != "1" {
				continue // ждём закрытую свечу
			}
			candle, ok := parseRow(row, instID, timeframe)
			if !ok {
				continue
			}

			select {
			case out <- candle:
			case <-ctx.Done():
				return
			}
		}
	}
}

func parseRow(row []string, instID, timeframe string) (models.Candle, bool) {
	if len(row) < 5 {
		return models.Candle{}, false
	}

	tsMs, err := strconv.ParseInt(row[0], 10, 64)
	if err != nil {
		return models.Candle{}, false
	}
	open, err1 := strconv.ParseFloat(row[1], 64)
	high, err2 := strconv.ParseFloat(row[2], 64)
	low, err3 := strconv.ParseFloat(row[3], 64)
	closep, err4 := strconv.ParseFloat(row[4], 64)
	if err1 != nil || err2 != nil || err3 != nil || err4 != nil || closep <= 0 {
		return models.Candle{}, false
	}

	start := time.UnixMilli(tsMs).UTC()
	end := start
	if d := TimeframeDuration(timeframe); d > 0 {
		end = start.Add(d)
	}

	var vol float64
	if len(row) >= 6 {
		vol, _ = strconv.ParseFloat(row[5], 64)
	}
	var volQuote float64
	if len(row) >= 8 {
		volQuote, _ = strconv.ParseFloat(row[7], 64)
	}

	return models.Candle{
		InstID:      instID,
		Open:        open,
		High:        high,
		Low:         low,
		Close:       closep,
		Volume:      vol,
		QuoteVolume: volQuote,
		Start:       start,
		End:         end,
		Timeframe:   timeframe,
	}, true
}

func sleepOrDone(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
