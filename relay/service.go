// Package relay carries canonical candles between a relay server, which
// talks to the exchanges, and chart clients that cannot or should not. The
// service is plain gRPC with a JSON codec, so no generated code is needed.
package relay

import (
	"context"

	"google.golang.org/grpc"

	"github.com/yitech/klinedesk/model/candle"
	"github.com/yitech/klinedesk/model/ticker"
)

// ServiceName is the fully-qualified gRPC service name.
const ServiceName = "klinedesk.relay.v1.Relay"

const (
	historyMethod = "/" + ServiceName + "/History"
	tickerMethod  = "/" + ServiceName + "/Ticker"
	priceMethod   = "/" + ServiceName + "/Price"
	streamMethod  = "/" + ServiceName + "/Stream"
)

type HistoryRequest struct {
	Exchange string `json:"exchange"`
	Symbol   string `json:"symbol"`
	Interval string `json:"interval"`
	Limit    int    `json:"limit"`
}

type HistoryResponse struct {
	Candles []candle.Candle `json:"candles"`
}

type SymbolRequest struct {
	Exchange string `json:"exchange"`
	Symbol   string `json:"symbol"`
}

type StreamRequest struct {
	Exchange string `json:"exchange"`
	Symbol   string `json:"symbol"`
	Interval string `json:"interval"`
}

// StreamEvent is one message on a Stream call: a candle update, or a
// warning that the upstream exchange stream failed and is reconnecting.
type StreamEvent struct {
	Candle  *candle.Candle `json:"candle,omitempty"`
	Warning string         `json:"warning,omitempty"`
}

// EventSender is the server side of a Stream call.
type EventSender interface {
	Send(ev *StreamEvent) error
	Context() context.Context
}

// RelayServer is implemented by Server.
type RelayServer interface {
	History(ctx context.Context, req *HistoryRequest) (*HistoryResponse, error)
	Ticker(ctx context.Context, req *SymbolRequest) (*ticker.Stats, error)
	Price(ctx context.Context, req *SymbolRequest) (*ticker.PriceTick, error)
	Stream(req *StreamRequest, out EventSender) error
}

// Register attaches srv to a gRPC server.
func Register(s grpc.ServiceRegistrar, srv RelayServer) {
	s.RegisterService(&serviceDesc, srv)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*RelayServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "History", Handler: historyHandler},
		{MethodName: "Ticker", Handler: tickerHandler},
		{MethodName: "Price", Handler: priceHandler},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "Stream", Handler: streamHandler, ServerStreams: true},
	},
	Metadata: "klinedesk/relay.v1",
}

// unary adapts a typed method to grpc.MethodHandler.
func unary[Req, Resp any](method string, call func(RelayServer, context.Context, *Req) (*Resp, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(RelayServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: method}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(RelayServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

var (
	historyHandler = unary(historyMethod, RelayServer.History)
	tickerHandler  = unary(tickerMethod, RelayServer.Ticker)
	priceHandler   = unary(priceMethod, RelayServer.Price)
)

type eventSender struct{ grpc.ServerStream }

func (s eventSender) Send(ev *StreamEvent) error { return s.SendMsg(ev) }

func streamHandler(srv any, stream grpc.ServerStream) error {
	in := new(StreamRequest)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(RelayServer).Stream(in, eventSender{stream})
}
