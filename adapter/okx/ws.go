package okx

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/yitech/klinedesk/adapter"
	"github.com/yitech/klinedesk/model/candle"
)

// subscribeKline opens an OKX WebSocket candle stream for symbol/interval,
// invoking onCandle for every update. It reconnects automatically on error.
func subscribeKline(ctx context.Context, wsURL string, pingEvery time.Duration, symbol, interval string, onCandle adapter.CandleHandler, onErr adapter.ErrorHandler) adapter.Token {
	instID, bar := InstID(symbol), Bar(interval)
	stream := instID + "/" + bar

	// error events arrive on a healthy socket; report them without reconnecting.
	report := func(err error) {
		if onErr != nil {
			onErr(&adapter.StreamError{Exchange: name, Stream: stream, Err: err})
		}
	}

	return adapter.Reconnect(ctx, name, stream, func(ctx context.Context) error {
		return connectAndRead(ctx, wsURL, pingEvery, instID, bar, func(c candle.Candle) {
			c.Symbol = symbol
			c.Interval = interval
			onCandle(c)
		}, report)
	}, onErr)
}

// wsConn serializes writes; gorilla allows one concurrent writer.
type wsConn struct {
	*websocket.Conn
	mu sync.Mutex
}

func (c *wsConn) write(msgType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.WriteMessage(msgType, data)
}

// connectAndRead maintains a single OKX WebSocket session.
func connectAndRead(ctx context.Context, wsURL string, pingEvery time.Duration, instID, bar string, onCandle adapter.CandleHandler, report func(error)) error {
	raw, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	conn := &wsConn{Conn: raw}
	defer conn.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Close connection on context cancellation.
	stop := context.AfterFunc(ctx, func() {
		conn.write(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		conn.Close()
	})
	defer stop()

	// OKX drops idle connections after 30s; keep it alive with text pings.
	go func() {
		t := time.NewTicker(pingEvery)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				if err := conn.write(websocket.TextMessage, []byte("ping")); err != nil {
					return
				}
			}
		}
	}()

	sub, err := json.Marshal(map[string]any{
		"op": "subscribe",
		"args": []map[string]string{
			{"channel": "candle" + bar, "instId": instID},
		},
	})
	if err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	if err := conn.write(websocket.TextMessage, sub); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}

		switch string(msg) {
		case "ping":
			if err := conn.write(websocket.TextMessage, []byte("pong")); err != nil {
				return fmt.Errorf("pong: %w", err)
			}
			continue
		case "pong":
			continue
		}

		candles, err := parseWsMessage(bar, msg)
		if err != nil {
			var apiErr *apiError
			if errors.As(err, &apiErr) {
				report(apiErr)
				continue
			}
			log.Debug().Err(err).Str("inst_id", instID).Str("bar", bar).Msg("okx ws: skipping frame")
			continue
		}
		for _, c := range candles {
			onCandle(c.Sanitize())
		}
	}
}

// okxWsMsg is the generic OKX WebSocket message envelope.
type okxWsMsg struct {
	Event string `json:"event"` // "subscribe", "error"
	Code  string `json:"code"`
	Msg   string `json:"msg"`
	Arg   struct {
		Channel string `json:"channel"`
		InstID  string `json:"instId"`
	} `json:"arg"`
	Data [][]string `json:"data"`
}

// apiError is an `event:error` frame.
type apiError struct {
	Code string
	Msg  string
}

func (e *apiError) Error() string { return fmt.Sprintf("api error %s: %s", e.Code, e.Msg) }

// parseWsMessage converts an OKX WebSocket message into candles. Subscription
// acks yield no candles; error events yield *apiError.
func parseWsMessage(bar string, msg []byte) ([]candle.Candle, error) {
	var m okxWsMsg
	if err := json.Unmarshal(msg, &m); err != nil {
		return nil, err
	}

	if m.Event != "" {
		if m.Event == "error" {
			return nil, &apiError{Code: m.Code, Msg: m.Msg}
		}
		return nil, nil
	}
	return parseKlines(bar, m.Data)
}
