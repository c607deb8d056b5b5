package binance

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yitech/klinedesk/adapter"
	"github.com/yitech/klinedesk/model/candle"
)

const klinesBody = `[
 [1700000060000,"101.0","103.0","100.0","102.0","5.0",1700000119999,"510.0",42,"2.0","204.0","0"],
 [1700000000000,"100.0","102.0","99.0","101.0","4.0",1700000059999,"404.0",40,"1.5","151.5","0"],
 [0,"1","1","1","1","1",59999,"1",1,"1","1","0"]
]`

func newRESTServer(t *testing.T, handler http.HandlerFunc) *Adapter {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(WithBaseURL(srv.URL), WithHTTPClient(srv.Client()))
}

func TestFetchHistory(t *testing.T) {
	a := newRESTServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, klinePath, r.URL.Path)
		assert.Equal(t, "BTCUSDT", r.URL.Query().Get("symbol"))
		assert.Equal(t, "1m", r.URL.Query().Get("interval"))
		assert.Equal(t, "500", r.URL.Query().Get("limit"))
		w.Write([]byte(klinesBody))
	})

	got, err := a.FetchHistory(context.Background(), "btcusdt", "1m", 500)
	require.NoError(t, err)
	require.Len(t, got, 2)

	// Sorted ascending, zero open time dropped.
	assert.Equal(t, int64(1700000000000), got[0].OpenTime)
	assert.Equal(t, int64(1700000060000), got[1].OpenTime)

	c := got[1]
	assert.Equal(t, "binance", c.Exchange)
	assert.Equal(t, 101.0, c.Open)
	assert.Equal(t, 103.0, c.High)
	assert.Equal(t, 100.0, c.Low)
	assert.Equal(t, 102.0, c.Close)
	assert.Equal(t, 510.0, c.QuoteVolume)
	assert.Equal(t, int64(42), c.TradeCount)
	assert.Equal(t, 204.0, c.TakerBuyQuoteVolume)
	assert.True(t, c.IsClosed)
}

func TestFetchHistoryErrors(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantStatus int
		wantEmpty  bool
	}{
		{name: "bad status", status: http.StatusServiceUnavailable, body: `{}`, wantStatus: 503},
		{name: "malformed", status: http.StatusOK, body: `{"code":-1121}`, wantStatus: 200},
		{name: "empty", status: http.StatusOK, body: `[]`, wantStatus: 200, wantEmpty: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newRESTServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})

			_, err := a.FetchHistory(context.Background(), "BTCUSDT", "1m", 500)
			var fe *adapter.FeedError
			require.ErrorAs(t, err, &fe)
			assert.Equal(t, tt.wantStatus, fe.Status)
			if tt.wantEmpty {
				assert.ErrorIs(t, err, adapter.ErrEmptyHistory)
			}
		})
	}
}

func TestLastPrice(t *testing.T) {
	a := newRESTServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/ticker/price", r.URL.Path)
		w.Write([]byte(`{"symbol":"BTCUSDT","price":"65000.50"}`))
	})

	tick, err := a.LastPrice(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	assert.Equal(t, 65000.50, tick.Price)
	assert.Equal(t, "BTCUSDT", tick.Symbol)
}

func TestLastPriceFailures(t *testing.T) {
	t.Run("zero price", func(t *testing.T) {
		a := newRESTServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"symbol":"BTCUSDT","price":"0"}`))
		})
		_, err := a.LastPrice(context.Background(), "BTCUSDT")
		var pe *adapter.PriceFetchError
		require.ErrorAs(t, err, &pe)
	})

	t.Run("bad status", func(t *testing.T) {
		a := newRESTServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		})
		_, err := a.LastPrice(context.Background(), "BTCUSDT")
		var pe *adapter.PriceFetchError
		require.ErrorAs(t, err, &pe)
	})
}

func TestTicker24h(t *testing.T) {
	a := newRESTServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/ticker/24hr", r.URL.Path)
		w.Write([]byte(`{"symbol":"BTCUSDT","priceChange":"100.0","priceChangePercent":"0.5",
			"lastPrice":"20100.0","highPrice":"20500.0","lowPrice":"19800.0",
			"volume":"1234.5","quoteVolume":"24000000.0"}`))
	})

	s, err := a.Ticker24h(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	assert.Equal(t, 20100.0, s.Last)
	assert.Equal(t, 20500.0, s.High)
	assert.Equal(t, 19800.0, s.Low)
	assert.Equal(t, 0.5, s.ChangePct)
	assert.Equal(t, 24000000.0, s.QuoteVolume)
}

func TestSubscribe(t *testing.T) {
	upgrader := websocket.Upgrader{}
	frames := []string{
		`{"e":"24hrTicker"}`,
		`{"e":"kline","s":"BTCUSDT","k":{"t":1700000000000,"T":1700000059999,"i":"1m","o":"100","h":"101","l":"99","c":"100.5","v":"3","n":7,"x":false,"q":"301","V":"1","Q":"100"}}`,
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/ws/btcusdt@kline_1m", r.URL.Path)
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for _, f := range frames {
			conn.WriteMessage(websocket.TextMessage, []byte(f))
		}
		conn.ReadMessage() // hold open until the client goes away
	}))
	defer srv.Close()

	a := New(WithWSBaseURL("ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"))
	got := make(chan candle.Candle, 1)

	tok, err := a.Subscribe(context.Background(), "BTCUSDT", "1m", func(c candle.Candle) { got <- c }, nil)
	require.NoError(t, err)
	defer tok.Unsubscribe()

	select {
	case c := <-got:
		assert.Equal(t, int64(1700000000000), c.OpenTime)
		assert.Equal(t, 100.5, c.Close)
		assert.Equal(t, int64(7), c.TradeCount)
		assert.False(t, c.IsClosed)
	case <-time.After(2 * time.Second):
		t.Fatal("no candle received")
	}
}
