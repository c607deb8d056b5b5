package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func missingEnvFile(t *testing.T) string {
	return filepath.Join(t.TempDir(), "missing.env")
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(missingEnvFile(t))
	require.NoError(t, err)

	assert.Equal(t, "binance", cfg.Exchange)
	assert.Equal(t, "BTCUSDT", cfg.Symbol)
	assert.Equal(t, "1m", cfg.Interval)
	assert.Equal(t, 500, cfg.HistoryLimit)
	assert.Equal(t, 12*time.Second, cfg.TickerRefresh)
	assert.Equal(t, "sqlite", cfg.StoreDriver)

	p := cfg.Paper
	assert.Equal(t, "contracts", p.Mode)
	assert.Equal(t, 0.01, p.HighAmount)
	assert.Equal(t, 0.005, p.LowAmount)
	assert.Equal(t, 10.0, p.HighMarginPct)
	assert.Equal(t, 5.0, p.LowMarginPct)
	assert.Equal(t, 200.0, p.Margin)
	assert.Equal(t, 10, p.Leverage)
	assert.Equal(t, 8*time.Second, p.Interval)
	assert.Equal(t, 2000, p.LedgerCap)
	assert.Empty(t, cfg.Warnings)
}

func TestLoadNormalizesSelectors(t *testing.T) {
	t.Setenv("EXCHANGE", "Kraken")
	t.Setenv("SYMBOL", "eth/usdt")

	cfg, err := Load(missingEnvFile(t))
	require.NoError(t, err)
	assert.Equal(t, "binance", cfg.Exchange)
	assert.Equal(t, "ETHUSDT", cfg.Symbol)
}

func TestLoadClampsWithWarnings(t *testing.T) {
	t.Setenv("PAPER_LEVERAGE", "500")
	t.Setenv("PAPER_HIGH_MARGIN_PCT", "250")
	t.Setenv("PAPER_MARGIN", "-3")

	cfg, err := Load(missingEnvFile(t))
	require.NoError(t, err)
	assert.Equal(t, MaxLeverage, cfg.Paper.Leverage)
	assert.Equal(t, 100.0, cfg.Paper.HighMarginPct)
	assert.Equal(t, 0.0, cfg.Paper.Margin)

	require.Len(t, cfg.Warnings, 3)
	var ce *ConfigError
	require.ErrorAs(t, cfg.Warnings[0], &ce)
	assert.Equal(t, "PAPER_HIGH_MARGIN_PCT", ce.Field)
	assert.Equal(t, 250.0, ce.Value)
	assert.Equal(t, 100.0, ce.Used)
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := map[string]string{
		"INTERVAL":     "7x",
		"STORE_DRIVER": "mongo",
		"PAPER_MODE":   "yolo",
	}
	for key, val := range tests {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, val)
			_, err := Load(missingEnvFile(t))
			assert.Error(t, err)
		})
	}
}

func TestLoadEnvFile(t *testing.T) {
	_, had := os.LookupEnv("PAPER_SYMBOL")
	require.False(t, had)
	t.Cleanup(func() { os.Unsetenv("PAPER_SYMBOL") })

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("PAPER_SYMBOL=solusdt\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "SOLUSDT", cfg.Paper.Symbol)
}

func TestLeverage(t *testing.T) {
	var warns []error
	assert.Equal(t, 1, Leverage("L", 0, &warns))
	assert.Equal(t, 150, Leverage("L", 151, &warns))
	assert.Equal(t, 13, Leverage("L", 12.6, &warns))
	assert.Len(t, warns, 2)
}
