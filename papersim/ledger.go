package papersim

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/yitech/klinedesk/metrics"
	"github.com/yitech/klinedesk/store"
)

const (
	// StorageKey is where the ledger is persisted.
	StorageKey = "paper-local-records"
	// DefaultCap is the number of entries retained.
	DefaultCap = 2000
	// Source tags entries produced by the local simulator.
	Source = "paper_local"
)

// Entry is one immutable simulator decision.
type Entry struct {
	ID            string          `json:"id"`
	Timestamp     time.Time       `json:"ts"`
	Symbol        string          `json:"symbol"`
	Signal        Signal          `json:"signal"`
	Confidence    Confidence      `json:"confidence"`
	Approved      bool            `json:"approved"`
	Size          decimal.Decimal `json:"approved_size"`
	Price         decimal.Decimal `json:"price"`
	DeltaPct      decimal.Decimal `json:"delta_pct"`
	UnrealizedPnL decimal.Decimal `json:"unrealized_pnl"`
	Mode          Mode            `json:"mode"`
	Leverage      int             `json:"leverage"`
	Source        string          `json:"source"`
	PriceFallback bool            `json:"price_fallback,omitempty"`
}

func (e Entry) valid() bool {
	return e.ID != "" && e.Signal.Valid() && e.Confidence.Valid()
}

// Ledger is the capped, append-only record of simulator entries, kept
// oldest-first and written through to a store on every append.
type Ledger struct {
	kv      store.KV
	limit   int
	metrics *metrics.Metrics

	writeMu sync.Mutex // orders write-throughs

	mu      sync.RWMutex
	entries []Entry
}

// NewLedger returns an empty ledger persisting into kv (nil keeps it in
// memory only).
func NewLedger(kv store.KV, limit int, m *metrics.Metrics) *Ledger {
	if limit <= 0 {
		limit = DefaultCap
	}
	return &Ledger{kv: kv, limit: limit, metrics: m}
}

// Load rehydrates the ledger from the store. A missing key is an empty
// ledger; malformed entries are skipped.
func (l *Ledger) Load(ctx context.Context) error {
	if l.kv == nil {
		return nil
	}
	raw, err := l.kv.Get(ctx, StorageKey)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("papersim: load ledger: %w", err)
	}

	var stored []Entry
	if err := json.Unmarshal(raw, &stored); err != nil {
		return fmt.Errorf("papersim: decode ledger: %w", err)
	}

	entries := make([]Entry, 0, len(stored))
	for _, e := range stored {
		if e.valid() {
			entries = append(entries, e)
		}
	}
	if len(entries) > l.limit {
		entries = entries[len(entries)-l.limit:]
	}

	l.mu.Lock()
	l.entries = entries
	l.mu.Unlock()

	l.metrics.LedgerSize(len(entries), nil)
	log.Info().Int("entries", len(entries)).Msg("paper ledger loaded")
	return nil
}

// Append records e, evicting the oldest entries beyond the cap, and writes
// the ledger through to the store. A persistence failure is returned but
// the entry stays recorded in memory.
func (l *Ledger) Append(ctx context.Context, e Entry) error {
	l.writeMu.Lock()
	defer l.writeMu.Unlock()

	l.mu.Lock()
	l.entries = append(l.entries, e)
	if len(l.entries) > l.limit {
		l.entries = append([]Entry(nil), l.entries[len(l.entries)-l.limit:]...)
	}
	n := len(l.entries)
	var raw []byte
	var err error
	if l.kv != nil {
		raw, err = json.Marshal(l.entries)
	}
	l.mu.Unlock()

	if err == nil && l.kv != nil {
		err = l.kv.Set(ctx, StorageKey, raw)
	}
	l.metrics.LedgerSize(n, err)
	if err != nil {
		return fmt.Errorf("papersim: persist ledger: %w", err)
	}
	return nil
}

// Entries returns a copy of the ledger, oldest first.
func (l *Ledger) Entries() []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]Entry(nil), l.entries...)
}

// Recent returns up to n entries, newest first.
func (l *Ledger) Recent(n int) []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	n = min(n, len(l.entries))
	out := make([]Entry, 0, n)
	for i := len(l.entries) - 1; i >= len(l.entries)-n; i-- {
		out = append(out, l.entries[i])
	}
	return out
}

func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}
