package papersim

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yitech/klinedesk/store"
	"github.com/yitech/klinedesk/store/sqlite"
)

func entry(i int) Entry {
	return Entry{
		ID:         fmt.Sprintf("paper-%d", i),
		Timestamp:  time.UnixMilli(int64(i) * 1000).UTC(),
		Symbol:     "BTCUSDT",
		Signal:     Buy,
		Confidence: Low,
		Approved:   true,
		Size:       d("0.005"),
		Price:      d("100.5"),
		DeltaPct:   d("0.07"),
		Mode:       Contracts,
		Leverage:   10,
		Source:     Source,
	}
}

func ids(es []Entry) []string {
	out := make([]string, len(es))
	for i, e := range es {
		out[i] = e.ID
	}
	return out
}

func TestLedgerCap(t *testing.T) {
	l := NewLedger(nil, 3, nil)
	for i := 1; i <= 5; i++ {
		require.NoError(t, l.Append(context.Background(), entry(i)))
	}

	assert.Equal(t, 3, l.Len())
	assert.Equal(t, []string{"paper-3", "paper-4", "paper-5"}, ids(l.Entries()))
	assert.Equal(t, []string{"paper-5", "paper-4"}, ids(l.Recent(2)))
	assert.Len(t, l.Recent(10), 3)
}

func TestLedgerRehydrate(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemory()

	l := NewLedger(kv, 10, nil)
	require.NoError(t, l.Append(ctx, entry(1)))
	require.NoError(t, l.Append(ctx, entry(2)))

	again := NewLedger(kv, 10, nil)
	require.NoError(t, again.Load(ctx))
	got := again.Entries()
	require.Len(t, got, 2)
	assert.Equal(t, []string{"paper-1", "paper-2"}, ids(got))
	assert.True(t, got[0].Price.Equal(d("100.5")))
	assert.True(t, got[0].Timestamp.Equal(entry(1).Timestamp))
}

func TestLedgerRehydrateSQLite(t *testing.T) {
	ctx := context.Background()
	kv, err := sqlite.Open(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	defer kv.Close()

	l := NewLedger(kv, 10, nil)
	for i := 1; i <= 3; i++ {
		require.NoError(t, l.Append(ctx, entry(i)))
	}

	again := NewLedger(kv, 2, nil)
	require.NoError(t, again.Load(ctx))
	assert.Equal(t, []string{"paper-2", "paper-3"}, ids(again.Entries()))
}

func TestLedgerLoadSkipsMalformed(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemory()
	raw := `[{"id":"paper-1","signal":"BUY","confidence":"LOW"},
		{"id":"","signal":"BUY","confidence":"LOW"},
		{"id":"paper-3","signal":"MAYBE","confidence":"LOW"}]`
	require.NoError(t, kv.Set(ctx, StorageKey, []byte(raw)))

	l := NewLedger(kv, 10, nil)
	require.NoError(t, l.Load(ctx))
	assert.Equal(t, []string{"paper-1"}, ids(l.Entries()))
}

func TestLedgerLoadMissingKey(t *testing.T) {
	l := NewLedger(store.NewMemory(), 10, nil)
	require.NoError(t, l.Load(context.Background()))
	assert.Zero(t, l.Len())
}

type failingKV struct{ store.Memory }

func (*failingKV) Set(context.Context, string, []byte) error { return errors.New("disk full") }

func TestLedgerPersistFailureKeepsEntry(t *testing.T) {
	l := NewLedger(&failingKV{}, 10, nil)
	err := l.Append(context.Background(), entry(1))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Equal(t, 1, l.Len())
}
