package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/yitech/klinedesk/adapter"
	"github.com/yitech/klinedesk/model/candle"
)

// Config is the process configuration for both binaries.
type Config struct {
	Exchange       string        `validate:"oneof=binance okx"`
	Symbol         string        `validate:"required,alphanum"`
	Interval       string        `validate:"required,interval"`
	HistoryLimit   int           `validate:"min=1,max=1000"`
	HistoryRetries int           `validate:"min=1"`
	TickerRefresh  time.Duration `validate:"min=1s"`

	FeedMode   string `validate:"oneof=direct relay"`
	ServerAddr string `validate:"required_if=FeedMode relay"`
	ListenAddr string `validate:"required"`

	MetricsAddr string

	StoreDriver   string `validate:"oneof=sqlite redis memory"`
	SQLitePath    string `validate:"required_if=StoreDriver sqlite"`
	RedisAddr     string `validate:"required_if=StoreDriver redis"`
	RedisPassword string
	RedisDB       int `validate:"min=0"`

	LogLevel string `validate:"oneof=trace debug info warn error"`
	LogFile  string

	Paper Paper

	// Warnings lists values that were clamped or replaced while loading.
	Warnings []error `validate:"-"`
}

// Paper configures the paper-trading simulator.
type Paper struct {
	Symbol            string `validate:"required,alphanum"`
	Mode              string `validate:"oneof=contracts margin_pct"`
	HighAmount        float64
	LowAmount         float64
	HighMarginPct     float64
	LowMarginPct      float64
	Margin            float64
	Leverage          int
	Interval          time.Duration `validate:"min=1s"`
	BuyThresholdPct   float64       `validate:"gt=0"`
	HighConfidencePct float64       `validate:"gt=0"`
	LedgerCap         int           `validate:"min=1"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterValidation("interval", func(fl validator.FieldLevel) bool {
		return candle.ValidInterval(fl.Field().String())
	})
	return v
}

// Load reads .env files (missing files are ignored), applies environment
// overrides on top of the defaults, clamps out-of-range numbers and
// validates the result. Clamped values are reported in Config.Warnings.
func Load(files ...string) (*Config, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: load env: %w", err)
	}

	c := &Config{
		Exchange:       adapter.NormalizeExchange(getEnv("EXCHANGE", "binance")),
		Symbol:         adapter.NormalizeSymbol(getEnv("SYMBOL", adapter.DefaultSymbol)),
		Interval:       getEnv("INTERVAL", "1m"),
		HistoryLimit:   getEnvInt("HISTORY_LIMIT", 500),
		HistoryRetries: getEnvInt("HISTORY_RETRIES", 3),
		TickerRefresh:  getEnvDuration("TICKER_REFRESH", 12*time.Second),

		FeedMode:   strings.ToLower(getEnv("FEED_MODE", "direct")),
		ServerAddr: getEnv("SERVER_ADDR", "localhost:50051"),
		ListenAddr: getEnv("LISTEN_ADDR", ":50051"),

		MetricsAddr: getEnv("METRICS_ADDR", ""),

		StoreDriver:   strings.ToLower(getEnv("STORE_DRIVER", "sqlite")),
		SQLitePath:    getEnv("SQLITE_PATH", "klinedesk.db"),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		LogLevel: strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFile:  getEnv("LOG_FILE", ""),

		Paper: Paper{
			Symbol:            adapter.NormalizeSymbol(getEnv("PAPER_SYMBOL", adapter.DefaultSymbol)),
			Mode:              strings.ToLower(getEnv("PAPER_MODE", "contracts")),
			HighAmount:        getEnvFloat("PAPER_HIGH_AMOUNT", 0.01),
			LowAmount:         getEnvFloat("PAPER_LOW_AMOUNT", 0.005),
			HighMarginPct:     getEnvFloat("PAPER_HIGH_MARGIN_PCT", 10),
			LowMarginPct:      getEnvFloat("PAPER_LOW_MARGIN_PCT", 5),
			Margin:            getEnvFloat("PAPER_MARGIN", 200),
			Interval:          getEnvDuration("PAPER_INTERVAL", 8*time.Second),
			BuyThresholdPct:   getEnvFloat("PAPER_BUY_THRESHOLD_PCT", 0.05),
			HighConfidencePct: getEnvFloat("PAPER_HIGH_CONFIDENCE_PCT", 0.2),
			LedgerCap:         getEnvInt("PAPER_LEDGER_CAP", 2000),
		},
	}

	var warns []error
	c.HistoryLimit = ClampInt("HISTORY_LIMIT", c.HistoryLimit, 40, 1000, &warns)
	c.Paper.HighAmount = ClampFloat("PAPER_HIGH_AMOUNT", c.Paper.HighAmount, 0, MaxContracts, &warns)
	c.Paper.LowAmount = ClampFloat("PAPER_LOW_AMOUNT", c.Paper.LowAmount, 0, MaxContracts, &warns)
	c.Paper.HighMarginPct = ClampFloat("PAPER_HIGH_MARGIN_PCT", c.Paper.HighMarginPct, 0, 100, &warns)
	c.Paper.LowMarginPct = ClampFloat("PAPER_LOW_MARGIN_PCT", c.Paper.LowMarginPct, 0, 100, &warns)
	c.Paper.Margin = ClampFloat("PAPER_MARGIN", c.Paper.Margin, 0, MaxMargin, &warns)
	c.Paper.Leverage = Leverage("PAPER_LEVERAGE", getEnvFloat("PAPER_LEVERAGE", 10), &warns)
	c.Warnings = warns

	if err := validate.Struct(c); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return c, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
