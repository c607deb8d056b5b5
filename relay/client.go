package relay

import (
	"context"
	"errors"
	"io"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"github.com/yitech/klinedesk/adapter"
	"github.com/yitech/klinedesk/model/candle"
	"github.com/yitech/klinedesk/model/ticker"
)

// Dial connects to a relay server. Extra options are appended to the
// defaults (insecure transport, JSON codec).
func Dial(addr string, opts ...grpc.DialOption) (*grpc.ClientConn, error) {
	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(codecName)),
	}, opts...)
	return grpc.NewClient(addr, opts...)
}

// Feed is an adapter.Feed for one exchange, served through a relay.
type Feed struct {
	conn     *grpc.ClientConn
	exchange string
}

var _ adapter.Feed = (*Feed)(nil)

func NewFeed(conn *grpc.ClientConn, exchange string) *Feed {
	return &Feed{conn: conn, exchange: adapter.NormalizeExchange(exchange)}
}

// Registry returns relay feeds for every supported exchange over conn.
func Registry(conn *grpc.ClientConn) adapter.Registry {
	return adapter.Registry{
		"binance": NewFeed(conn, "binance"),
		"okx":     NewFeed(conn, "okx"),
	}
}

func (f *Feed) Name() string { return f.exchange }

func (f *Feed) FetchHistory(ctx context.Context, symbol, interval string, limit int) ([]candle.Candle, error) {
	req := &HistoryRequest{Exchange: f.exchange, Symbol: symbol, Interval: interval, Limit: limit}
	var resp HistoryResponse
	if err := f.conn.Invoke(ctx, historyMethod, req, &resp); err != nil {
		fe := &adapter.FeedError{Exchange: f.exchange, Op: "relay history", Err: err}
		if status.Code(err) == codes.NotFound {
			fe.Err = adapter.ErrEmptyHistory
		}
		return nil, fe
	}
	if len(resp.Candles) == 0 {
		return nil, &adapter.FeedError{Exchange: f.exchange, Op: "relay history", Err: adapter.ErrEmptyHistory}
	}
	return candle.Normalize(resp.Candles), nil
}

func (f *Feed) Ticker24h(ctx context.Context, symbol string) (ticker.Stats, error) {
	var st ticker.Stats
	if err := f.conn.Invoke(ctx, tickerMethod, &SymbolRequest{Exchange: f.exchange, Symbol: symbol}, &st); err != nil {
		return ticker.Stats{}, &adapter.PriceFetchError{Exchange: f.exchange, Symbol: symbol, Err: err}
	}
	return st, nil
}

func (f *Feed) LastPrice(ctx context.Context, symbol string) (ticker.PriceTick, error) {
	var p ticker.PriceTick
	if err := f.conn.Invoke(ctx, priceMethod, &SymbolRequest{Exchange: f.exchange, Symbol: symbol}, &p); err != nil {
		return ticker.PriceTick{}, &adapter.PriceFetchError{Exchange: f.exchange, Symbol: symbol, Err: err}
	}
	if p.Price <= 0 {
		return ticker.PriceTick{}, &adapter.PriceFetchError{Exchange: f.exchange, Symbol: symbol, Err: errors.New("non-positive price")}
	}
	return p, nil
}

// Subscribe opens a server stream, reopening it with backoff when it breaks.
func (f *Feed) Subscribe(ctx context.Context, symbol, interval string, onCandle adapter.CandleHandler, onErr adapter.ErrorHandler) (adapter.Token, error) {
	req := &StreamRequest{Exchange: f.exchange, Symbol: symbol, Interval: interval}
	name := "relay:" + symbol + "@" + interval
	session := func(ctx context.Context) error {
		return f.stream(ctx, req, onCandle, func(warning string) {
			if onErr != nil {
				onErr(&adapter.StreamError{Exchange: f.exchange, Stream: name, Err: errors.New(warning)})
			}
		})
	}
	return adapter.Reconnect(ctx, f.exchange, name, session, onErr), nil
}

// stream runs one Stream call. Relayed upstream warnings go to onWarning
// without ending the call.
func (f *Feed) stream(ctx context.Context, req *StreamRequest, onCandle adapter.CandleHandler, onWarning func(string)) error {
	stream, err := f.conn.NewStream(ctx, &serviceDesc.Streams[0], streamMethod)
	if err != nil {
		return err
	}
	if err := stream.SendMsg(req); err != nil {
		return err
	}
	if err := stream.CloseSend(); err != nil {
		return err
	}
	for {
		var ev StreamEvent
		err := stream.RecvMsg(&ev)
		if err == io.EOF {
			return io.ErrUnexpectedEOF
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if ev.Warning != "" {
			onWarning(ev.Warning)
		}
		if ev.Candle != nil && ev.Candle.Valid() {
			onCandle(*ev.Candle)
		}
	}
}

// Close is a no-op; the connection belongs to the caller.
func (f *Feed) Close() error { return nil }
