package adapter

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	minBackoff = time.Second
	maxBackoff = 30 * time.Second
)

// token implements Token by cancelling the subscription context.
type token struct {
	cancel context.CancelFunc
}

func (t *token) Unsubscribe() { t.cancel() }

// Session runs one connection until it fails or ctx is done. A nil return
// after ctx is cancelled means a clean shutdown.
type Session func(ctx context.Context) error

// Reconnect runs session in a goroutine, reconnecting with exponential
// backoff (1s doubling to 30s) whenever it fails. Every failure is wrapped
// in a StreamError and passed to onErr.
func Reconnect(ctx context.Context, exchange, stream string, session Session, onErr ErrorHandler) Token {
	ctx, cancel := context.WithCancel(ctx)

	go func() {
		backoff := minBackoff
		for {
			if ctx.Err() != nil {
				return
			}
			err := session(ctx)
			if err == nil || ctx.Err() != nil {
				backoff = minBackoff
				continue
			}

			serr := &StreamError{Exchange: exchange, Stream: stream, Err: err}
			log.Warn().Err(err).
				Str("exchange", exchange).
				Str("stream", stream).
				Dur("backoff", backoff).
				Msg("stream failed, reconnecting")
			if onErr != nil {
				onErr(serr)
			}

			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return
			}
			if backoff < maxBackoff {
				backoff = min(backoff*2, maxBackoff)
			}
		}
	}()

	return &token{cancel: cancel}
}
