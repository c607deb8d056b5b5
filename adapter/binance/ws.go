package binance

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/yitech/klinedesk/adapter"
	"github.com/yitech/klinedesk/model/candle"
)

// subscribeKline opens a Binance WebSocket kline stream for symbol/interval,
// invoking onCandle for every update. It reconnects automatically on error.
func subscribeKline(ctx context.Context, wsBaseURL, symbol, interval string, onCandle adapter.CandleHandler, onErr adapter.ErrorHandler) adapter.Token {
	// The channel is implicit in the address; no subscribe frame is sent.
	stream := strings.ToLower(symbol) + "@kline_" + interval
	u := wsBaseURL + "/" + stream

	return adapter.Reconnect(ctx, name, stream, func(ctx context.Context) error {
		return connectAndRead(ctx, u, symbol, interval, onCandle)
	}, onErr)
}

// connectAndRead maintains a single WebSocket session until the context is
// cancelled or an error occurs.
func connectAndRead(ctx context.Context, u, symbol, interval string, onCandle adapter.CandleHandler) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	// Close the connection when the context is cancelled.
	stop := context.AfterFunc(ctx, func() {
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		conn.Close()
	})
	defer stop()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil // clean shutdown
			}
			return fmt.Errorf("read: %w", err)
		}

		c, err := parseWsKline(msg)
		if err != nil {
			log.Debug().Err(err).Str("symbol", symbol).Str("interval", interval).Msg("binance ws: skipping frame")
			continue
		}
		if !c.Valid() {
			continue
		}
		onCandle(c.Sanitize())
	}
}

// wsKlineMsg is the Binance kline stream message envelope.
type wsKlineMsg struct {
	EventType string `json:"e"`
	Symbol    string `json:"s"`
	Kline     struct {
		OpenTime            int64  `json:"t"`
		CloseTime           int64  `json:"T"`
		Interval            string `json:"i"`
		Open                string `json:"o"`
		High                string `json:"h"`
		Low                 string `json:"l"`
		Close               string `json:"c"`
		Volume              string `json:"v"`
		TradeCount          int64  `json:"n"`
		IsClosed            bool   `json:"x"`
		QuoteVolume         string `json:"q"`
		TakerBuyBaseVolume  string `json:"V"`
		TakerBuyQuoteVolume string `json:"Q"`
	} `json:"k"`
}

func parseWsKline(msg []byte) (candle.Candle, error) {
	var m wsKlineMsg
	if err := json.Unmarshal(msg, &m); err != nil {
		return candle.Candle{}, err
	}
	if m.EventType != "kline" {
		return candle.Candle{}, fmt.Errorf("unexpected event type: %q", m.EventType)
	}
	k := m.Kline
	return candle.Candle{
		Exchange:            name,
		Symbol:              m.Symbol,
		Interval:            k.Interval,
		OpenTime:            k.OpenTime,
		Open:                atof(k.Open),
		High:                atof(k.High),
		Low:                 atof(k.Low),
		Close:               atof(k.Close),
		Volume:              atof(k.Volume),
		QuoteVolume:         atof(k.QuoteVolume),
		TradeCount:          k.TradeCount,
		TakerBuyBaseVolume:  atof(k.TakerBuyBaseVolume),
		TakerBuyQuoteVolume: atof(k.TakerBuyQuoteVolume),
		CloseTime:           k.CloseTime,
		IsClosed:            k.IsClosed,
	}, nil
}

func atof(s string) float64 {
	f, _ := strconv.ParseFloat(s, 64)
	return f
}
