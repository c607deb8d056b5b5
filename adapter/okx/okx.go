package okx

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/yitech/klinedesk/adapter"
	"github.com/yitech/klinedesk/model/candle"
)

const (
	name = "okx"

	defaultBaseURL = "https://www.okx.com"
	defaultWSURL   = "wss://ws.okx.com:8443/ws/v5/public"
)

// Adapter is the OKX perpetual-swap market-data feed. Symbols are accepted
// in Binance notation and translated with InstID and Bar; produced candles
// carry the caller's symbol and interval.
type Adapter struct {
	baseURL      string
	wsURL        string
	client       *http.Client
	pingInterval time.Duration
}

var _ adapter.Feed = (*Adapter)(nil)

type Option func(*Adapter)

// WithBaseURL overrides the REST endpoint.
func WithBaseURL(u string) Option {
	return func(a *Adapter) { a.baseURL = strings.TrimRight(u, "/") }
}

// WithWSURL overrides the public WebSocket endpoint.
func WithWSURL(u string) Option {
	return func(a *Adapter) { a.wsURL = u }
}

// WithHTTPClient overrides the HTTP client used for REST calls.
func WithHTTPClient(c *http.Client) Option {
	return func(a *Adapter) { a.client = c }
}

func New(opts ...Option) *Adapter {
	a := &Adapter{
		baseURL:      defaultBaseURL,
		wsURL:        defaultWSURL,
		client:       &http.Client{Timeout: 10 * time.Second},
		pingInterval: 25 * time.Second,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Adapter) Name() string { return name }

func (a *Adapter) FetchHistory(ctx context.Context, symbol, interval string, limit int) ([]candle.Candle, error) {
	return fetchKlines(ctx, a.client, a.baseURL, adapter.NormalizeSymbol(symbol), interval, limit)
}

func (a *Adapter) Subscribe(ctx context.Context, symbol, interval string, onCandle adapter.CandleHandler, onErr adapter.ErrorHandler) (adapter.Token, error) {
	return subscribeKline(ctx, a.wsURL, a.pingInterval, adapter.NormalizeSymbol(symbol), interval, onCandle, onErr), nil
}

func (a *Adapter) Close() error {
	a.client.CloseIdleConnections()
	return nil
}
