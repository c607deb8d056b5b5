package binance

import (
	"context"
	"net/http"
	"strings"
	"time"

	gobinance "github.com/adshao/go-binance/v2"

	"github.com/yitech/klinedesk/adapter"
	"github.com/yitech/klinedesk/model/candle"
)

const (
	name = "binance"

	defaultBaseURL   = "https://api.binance.com"
	defaultWSBaseURL = "wss://stream.binance.com:9443/ws"
)

// Adapter is the Binance spot market-data feed.
type Adapter struct {
	baseURL   string
	wsBaseURL string
	client    *http.Client
	api       *gobinance.Client
}

var _ adapter.Feed = (*Adapter)(nil)

// Option customizes an Adapter.
type Option func(*Adapter)

// WithBaseURL overrides the REST endpoint.
func WithBaseURL(u string) Option {
	return func(a *Adapter) { a.baseURL = strings.TrimRight(u, "/") }
}

// WithWSBaseURL overrides the WebSocket endpoint.
func WithWSBaseURL(u string) Option {
	return func(a *Adapter) { a.wsBaseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient overrides the HTTP client used for REST calls.
func WithHTTPClient(c *http.Client) Option {
	return func(a *Adapter) { a.client = c }
}

func New(opts ...Option) *Adapter {
	a := &Adapter{
		baseURL:   defaultBaseURL,
		wsBaseURL: defaultWSBaseURL,
		client:    &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(a)
	}

	// Public endpoints only; no credentials.
	a.api = gobinance.NewClient("", "")
	a.api.BaseURL = a.baseURL
	a.api.HTTPClient = a.client
	return a
}

func (a *Adapter) Name() string { return name }

func (a *Adapter) FetchHistory(ctx context.Context, symbol, interval string, limit int) ([]candle.Candle, error) {
	return fetchKlines(ctx, a.client, a.baseURL, adapter.NormalizeSymbol(symbol), interval, limit)
}

func (a *Adapter) Subscribe(ctx context.Context, symbol, interval string, onCandle adapter.CandleHandler, onErr adapter.ErrorHandler) (adapter.Token, error) {
	return subscribeKline(ctx, a.wsBaseURL, adapter.NormalizeSymbol(symbol), interval, onCandle, onErr), nil
}

func (a *Adapter) Close() error {
	a.client.CloseIdleConnections()
	return nil
}
