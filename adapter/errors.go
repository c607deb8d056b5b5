package adapter

import (
	"errors"
	"fmt"
)

// ErrEmptyHistory is wrapped by FeedError when an exchange answers a history
// request with no usable candles.
var ErrEmptyHistory = errors.New("empty kline payload")

// FeedError reports a failed history fetch: transport error, non-2xx status,
// exchange error code or malformed payload.
type FeedError struct {
	Exchange string
	Op       string
	Status   int // HTTP status when the exchange answered, else 0
	Err      error
}

func (e *FeedError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: %s: status %d: %v", e.Exchange, e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Exchange, e.Op, e.Err)
}

func (e *FeedError) Unwrap() error { return e.Err }

// StreamError reports a socket-level or protocol failure on a live
// subscription. It is delivered to the subscriber's ErrorHandler and never
// terminates the subscription.
type StreamError struct {
	Exchange string
	Stream   string
	Err      error
}

func (e *StreamError) Error() string {
	return fmt.Sprintf("%s ws [%s]: %v", e.Exchange, e.Stream, e.Err)
}

func (e *StreamError) Unwrap() error { return e.Err }

// PriceFetchError reports a failed last-price or 24h ticker request.
type PriceFetchError struct {
	Exchange string
	Symbol   string
	Err      error
}

func (e *PriceFetchError) Error() string {
	return fmt.Sprintf("%s: price %s: %v", e.Exchange, e.Symbol, e.Err)
}

func (e *PriceFetchError) Unwrap() error { return e.Err }
