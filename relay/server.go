package relay

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/yitech/klinedesk/adapter"
	"github.com/yitech/klinedesk/metrics"
	"github.com/yitech/klinedesk/model/candle"
	"github.com/yitech/klinedesk/model/ticker"
)

// StreamBuffer is how many distinct candles a slow client may fall behind
// before the oldest pending one is dropped.
const StreamBuffer = 256

// Server answers relay calls from the exchange feeds it wraps.
type Server struct {
	feeds   adapter.Registry
	hub     *Hub
	metrics *metrics.Metrics
}

var _ RelayServer = (*Server)(nil)

func NewServer(feeds adapter.Registry, hub *Hub, m *metrics.Metrics) *Server {
	return &Server{feeds: feeds, hub: hub, metrics: m}
}

func (s *Server) History(ctx context.Context, req *HistoryRequest) (*HistoryResponse, error) {
	feed, err := s.feeds.Get(req.Exchange)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if !candle.ValidInterval(req.Interval) {
		return nil, status.Errorf(codes.InvalidArgument, "unsupported interval %q", req.Interval)
	}
	cs, err := feed.FetchHistory(ctx, adapter.NormalizeSymbol(req.Symbol), req.Interval, req.Limit)
	if err != nil {
		return nil, toStatus(err)
	}
	return &HistoryResponse{Candles: cs}, nil
}

func (s *Server) Ticker(ctx context.Context, req *SymbolRequest) (*ticker.Stats, error) {
	feed, err := s.feeds.Get(req.Exchange)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	st, err := feed.Ticker24h(ctx, adapter.NormalizeSymbol(req.Symbol))
	if err != nil {
		return nil, toStatus(err)
	}
	return &st, nil
}

func (s *Server) Price(ctx context.Context, req *SymbolRequest) (*ticker.PriceTick, error) {
	feed, err := s.feeds.Get(req.Exchange)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	p, err := feed.LastPrice(ctx, adapter.NormalizeSymbol(req.Symbol))
	if err != nil {
		return nil, toStatus(err)
	}
	return &p, nil
}

// Stream forwards live candles until the client goes away. Upstream stream
// failures reach the client as warnings; the stream itself stays open.
func (s *Server) Stream(req *StreamRequest, out EventSender) error {
	ctx := out.Context()
	log.Info().
		Str("exchange", req.Exchange).
		Str("symbol", req.Symbol).
		Str("interval", req.Interval).
		Msg("new subscription")

	mb := newMailbox(StreamBuffer)
	tok, err := s.hub.Subscribe(req.Exchange, req.Symbol, req.Interval,
		func(c candle.Candle) {
			if mb.put(c) {
				s.metrics.EventDropped()
			}
		},
		func(err error) { mb.warn(err.Error()) })
	if err != nil {
		return status.Error(codes.InvalidArgument, err.Error())
	}
	defer tok.Unsubscribe()

	s.metrics.RelayStreamOpened()
	defer s.metrics.RelayStreamClosed()

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("symbol", req.Symbol).Msg("client disconnected")
			return nil
		case <-mb.ready:
		}

		cs, warning := mb.take()
		if warning != "" {
			if err := out.Send(&StreamEvent{Warning: warning}); err != nil {
				return err
			}
		}
		for i := range cs {
			if err := out.Send(&StreamEvent{Candle: &cs[i]}); err != nil {
				return err
			}
		}
	}
}

// toStatus carries the adapter error taxonomy over the wire.
func toStatus(err error) error {
	switch {
	case errors.Is(err, adapter.ErrEmptyHistory):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	}
	return status.Error(codes.Unavailable, err.Error())
}
