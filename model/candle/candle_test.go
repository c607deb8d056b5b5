package candle

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitize(t *testing.T) {
	c := Candle{OpenTime: 1, Open: 10, High: 9, Low: 11, Close: 12}.Sanitize()
	assert.Equal(t, 12.0, c.High)
	assert.Equal(t, 10.0, c.Low)
	assert.GreaterOrEqual(t, c.High, max(c.Open, c.Close))
	assert.LessOrEqual(t, c.Low, min(c.Open, c.Close))
}

func TestValid(t *testing.T) {
	assert.True(t, Candle{OpenTime: 1, Open: 1, High: 1, Low: 1, Close: 1}.Valid())
	assert.False(t, Candle{OpenTime: 0, Open: 1, High: 1, Low: 1, Close: 1}.Valid())
	assert.False(t, Candle{OpenTime: 1, Open: math.NaN(), High: 1, Low: 1, Close: 1}.Valid())
}

func TestNormalize(t *testing.T) {
	in := []Candle{
		{OpenTime: 3000, Open: 3, High: 3, Low: 3, Close: 3},
		{OpenTime: 1000, Open: 1, High: 1, Low: 1, Close: 1},
		{OpenTime: 0, Open: 9, High: 9, Low: 9, Close: 9},
		{OpenTime: 2000, Open: 2, High: 2, Low: 2, Close: 2},
		{OpenTime: 3000, Open: 3, High: 4, Low: 3, Close: 4},
	}

	out := Normalize(in)
	require.Len(t, out, 3)
	assert.Equal(t, int64(1000), out[0].OpenTime)
	assert.Equal(t, int64(2000), out[1].OpenTime)
	assert.Equal(t, int64(3000), out[2].OpenTime)
	// Last occurrence of a duplicate open time wins.
	assert.Equal(t, 4.0, out[2].Close)
}

func TestDuration(t *testing.T) {
	tests := []struct {
		interval string
		want     time.Duration
	}{
		{"1m", time.Minute},
		{"15m", 15 * time.Minute},
		{"4h", 4 * time.Hour},
		{"1d", 24 * time.Hour},
		{"1w", 7 * 24 * time.Hour},
		{"1M", 30 * 24 * time.Hour},
		{"x", 0},
		{"5y", 0},
	}
	for _, tt := range tests {
		t.Run(tt.interval, func(t *testing.T) {
			assert.Equal(t, tt.want, Duration(tt.interval))
		})
	}
}
