package relay

import (
	"sync"

	"github.com/yitech/klinedesk/model/candle"
)

// mailbox queues updates for one slow stream client. It holds at most one
// candle per open time: a newer update for a pending candle overwrites it in
// place, so only superseded in-progress values are ever lost, and the final
// value of a closed candle is always delivered.
type mailbox struct {
	limit int
	ready chan struct{}

	mu      sync.Mutex
	pending []candle.Candle
	warning string
}

func newMailbox(limit int) *mailbox {
	return &mailbox{limit: max(1, limit), ready: make(chan struct{}, 1)}
}

// put queues c. It reports whether a queued update was discarded, either
// because c supersedes it or because the queue was full.
func (m *mailbox) put(c candle.Candle) (dropped bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	defer m.signal()

	for i := len(m.pending) - 1; i >= 0; i-- {
		if m.pending[i].OpenTime == c.OpenTime {
			m.pending[i] = c
			return true
		}
	}
	if len(m.pending) >= m.limit {
		m.pending = m.pending[1:]
		dropped = true
	}
	m.pending = append(m.pending, c)
	return dropped
}

// warn queues a warning; only the latest one is kept.
func (m *mailbox) warn(msg string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.warning = msg
	m.signal()
}

// take drains the mailbox.
func (m *mailbox) take() ([]candle.Candle, string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cs, w := m.pending, m.warning
	m.pending, m.warning = nil, ""
	return cs, w
}

// signal wakes the sender. Called under m.mu.
func (m *mailbox) signal() {
	select {
	case m.ready <- struct{}{}:
	default:
	}
}
