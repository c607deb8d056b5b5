package buffer

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yitech/klinedesk/model/candle"
)

func at(openTime int64, close float64) candle.Candle {
	return candle.Candle{OpenTime: openTime, Open: close, High: close, Low: close, Close: close}
}

func history(n int) []candle.Candle {
	out := make([]candle.Candle, n)
	for i := range out {
		out[i] = at(int64(i+1)*60_000, float64(100+i))
	}
	return out
}

func TestMergeReplacesInProgress(t *testing.T) {
	s := New(10)
	s.Replace(history(3))

	assert.Equal(t, Replaced, s.Merge(at(3*60_000, 555)))
	require.Equal(t, 3, s.Len())
	last, _ := s.Last()
	assert.Equal(t, 555.0, last.Close)
}

func TestMergeAppendsAndTrims(t *testing.T) {
	s := New(500)
	s.Replace(history(500))

	assert.Equal(t, Appended, s.Merge(at(501*60_000, 1)))
	require.Equal(t, 500, s.Len())

	cs := s.Candles()
	assert.Equal(t, int64(2*60_000), cs[0].OpenTime)
	assert.Equal(t, int64(501*60_000), cs[499].OpenTime)
}

func TestMergeDiscardsStale(t *testing.T) {
	s := New(10)
	s.Replace(history(3))
	before := s.Candles()

	assert.Equal(t, Stale, s.Merge(at(60_000, 1)))
	assert.Equal(t, before, s.Candles())
}

func TestMergeIdempotent(t *testing.T) {
	s := New(10)
	s.Replace(history(3))
	c := at(4*60_000, 9)

	s.Merge(c)
	once := s.Candles()
	s.Merge(c)
	assert.Equal(t, once, s.Candles())
}

func TestMergeIntoEmpty(t *testing.T) {
	s := New(10)
	assert.Equal(t, Appended, s.Merge(at(60_000, 1)))
	assert.Equal(t, 1, s.Len())
}

func TestReplaceTrimsToLimit(t *testing.T) {
	s := New(5)
	s.Replace(history(8))
	cs := s.Candles()
	require.Len(t, cs, 5)
	assert.Equal(t, int64(4*60_000), cs[0].OpenTime)
}

// Any merge sequence keeps open times strictly increasing and the length
// within the limit.
func TestMergeKeepsOrderUnderRandomInput(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))
	s := New(50)
	s.Replace(history(30))

	for i := 0; i < 2000; i++ {
		s.Merge(at(int64(r.IntN(200)+1)*60_000, r.Float64()))
		require.LessOrEqual(t, s.Len(), 50)
	}

	cs := s.Candles()
	for i := 1; i < len(cs); i++ {
		require.Greater(t, cs[i].OpenTime, cs[i-1].OpenTime)
	}
}

func TestCandlesReturnsCopy(t *testing.T) {
	s := New(10)
	s.Replace(history(2))
	cs := s.Candles()
	cs[0].Close = -1
	first := s.Candles()[0]
	assert.NotEqual(t, -1.0, first.Close)
}
