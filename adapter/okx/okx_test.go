package okx

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yitech/klinedesk/adapter"
	"github.com/yitech/klinedesk/model/candle"
)

func TestInstID(t *testing.T) {
	assert.Equal(t, "BTC-USDT-SWAP", InstID("BTCUSDT"))
	assert.Equal(t, "ETH-USDT-SWAP", InstID("ethusdt"))
	assert.Equal(t, "BTC-USD-SWAP", InstID("BTC-USD-SWAP"))
	assert.Equal(t, "BTCUSD-SWAP", InstID("BTCUSD"))
}

func TestBar(t *testing.T) {
	tests := map[string]string{
		"1m": "1m", "15m": "15m",
		"1h": "1H", "4h": "4H", "12h": "12H",
		"1d": "1D", "3d": "3D", "1w": "1W",
		"1M": "1M",
	}
	for in, want := range tests {
		assert.Equal(t, want, Bar(in), in)
	}
}

func TestFetchHistoryPaginates(t *testing.T) {
	var historyAfter string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "BTC-USDT-SWAP", q.Get("instId"))
		assert.Equal(t, "1H", q.Get("bar"))

		switch r.URL.Path {
		case recentPath:
			assert.Equal(t, "5", q.Get("limit"))
			w.Write([]byte(`{"code":"0","msg":"","data":[
				["1700010800000","104","106","103","105","9","0.9","95000","0"],
				["1700007200000","103","104","102","104","8","0.8","83000","1"],
				["1700003600000","102","103","101","103","7","0.7","72000","1"]]}`))
		case historyPath:
			historyAfter = q.Get("after")
			assert.Equal(t, "2", q.Get("limit"))
			w.Write([]byte(`{"code":"0","msg":"","data":[
				["1700000000000","101","102","100","102","6","0.6","61000","1"],
				["1699996400000","100","101","99","101","5","0.5","50000","1"]]}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	a := New(WithBaseURL(srv.URL))
	got, err := a.FetchHistory(context.Background(), "BTCUSDT", "1h", 5)
	require.NoError(t, err)
	require.Len(t, got, 5)

	assert.Equal(t, "1700003600000", historyAfter)
	for i := 1; i < len(got); i++ {
		assert.Greater(t, got[i].OpenTime, got[i-1].OpenTime)
	}

	last := got[4]
	assert.Equal(t, "BTCUSDT", last.Symbol)
	assert.Equal(t, "1h", last.Interval)
	assert.Equal(t, "okx", last.Exchange)
	assert.Equal(t, 95000.0, last.QuoteVolume)
	assert.False(t, last.IsClosed)
	assert.Equal(t, int64(1700010800000+3_600_000-1), last.CloseTime)
	assert.True(t, got[0].IsClosed)
}

func TestFetchHistoryAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code":"51001","msg":"Instrument ID does not exist","data":[]}`))
	}))
	defer srv.Close()

	_, err := New(WithBaseURL(srv.URL)).FetchHistory(context.Background(), "NOPEUSDT", "1m", 500)
	var fe *adapter.FeedError
	require.ErrorAs(t, err, &fe)
	assert.Contains(t, fe.Error(), "51001")
}

func TestFetchHistoryEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code":"0","msg":"","data":[]}`))
	}))
	defer srv.Close()

	_, err := New(WithBaseURL(srv.URL)).FetchHistory(context.Background(), "BTCUSDT", "1m", 500)
	assert.ErrorIs(t, err, adapter.ErrEmptyHistory)
}

func TestTicker24h(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, tickerPath, r.URL.Path)
		assert.Equal(t, "BTC-USDT-SWAP", r.URL.Query().Get("instId"))
		w.Write([]byte(`{"code":"0","msg":"","data":[{"instId":"BTC-USDT-SWAP","last":"110",
			"open24h":"100","high24h":"115","low24h":"95","vol24h":"1000","volCcy24h":"10"}]}`))
	}))
	defer srv.Close()

	a := New(WithBaseURL(srv.URL))
	s, err := a.Ticker24h(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	assert.Equal(t, 110.0, s.Last)
	assert.Equal(t, 10.0, s.Change)
	assert.InDelta(t, 10.0, s.ChangePct, 1e-9)

	tick, err := a.LastPrice(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	assert.Equal(t, 110.0, tick.Price)
}

func TestSubscribeHandshake(t *testing.T) {
	upgrader := websocket.Upgrader{}
	subscribed := make(chan map[string]any, 1)
	pong := make(chan string, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var sub map[string]any
		json.Unmarshal(msg, &sub)
		subscribed <- sub

		conn.WriteMessage(websocket.TextMessage, []byte(`{"event":"subscribe","arg":{"channel":"candle1m","instId":"BTC-USDT-SWAP"}}`))
		conn.WriteMessage(websocket.TextMessage, []byte(`{"event":"error","code":"60012","msg":"Invalid request"}`))
		conn.WriteMessage(websocket.TextMessage, []byte(`{"arg":{"channel":"candle1m","instId":"BTC-USDT-SWAP"},"data":[["1700000000000","100","101","99","100.5","3","0.3","30","0"]]}`))
		conn.WriteMessage(websocket.TextMessage, []byte("ping"))

		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if string(msg) == "pong" {
				pong <- string(msg)
			}
		}
	}))
	defer srv.Close()

	a := New(WithWSURL("ws" + strings.TrimPrefix(srv.URL, "http")))
	candles := make(chan candle.Candle, 1)
	errs := make(chan error, 1)

	tok, err := a.Subscribe(context.Background(), "BTCUSDT", "1m",
		func(c candle.Candle) { candles <- c },
		func(err error) { errs <- err })
	require.NoError(t, err)
	defer tok.Unsubscribe()

	select {
	case sub := <-subscribed:
		assert.Equal(t, "subscribe", sub["op"])
		args := sub["args"].([]any)
		arg := args[0].(map[string]any)
		assert.Equal(t, "candle1m", arg["channel"])
		assert.Equal(t, "BTC-USDT-SWAP", arg["instId"])
	case <-time.After(2 * time.Second):
		t.Fatal("no subscribe frame")
	}

	select {
	case err := <-errs:
		var se *adapter.StreamError
		require.ErrorAs(t, err, &se)
		assert.Contains(t, se.Error(), "60012")
	case <-time.After(2 * time.Second):
		t.Fatal("no stream error")
	}

	select {
	case c := <-candles:
		assert.Equal(t, "BTCUSDT", c.Symbol)
		assert.Equal(t, "1m", c.Interval)
		assert.Equal(t, 100.5, c.Close)
	case <-time.After(2 * time.Second):
		t.Fatal("no candle")
	}

	select {
	case <-pong:
	case <-time.After(2 * time.Second):
		t.Fatal("ping was not answered")
	}
}
