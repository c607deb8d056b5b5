// Command client is the terminal chart: live candles with indicators from
// Binance or OKX (directly or through the relay), plus the paper-trading
// simulator.
package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"

	"github.com/yitech/klinedesk/adapter"
	"github.com/yitech/klinedesk/adapter/binance"
	"github.com/yitech/klinedesk/adapter/okx"
	"github.com/yitech/klinedesk/chart"
	"github.com/yitech/klinedesk/config"
	"github.com/yitech/klinedesk/logging"
	"github.com/yitech/klinedesk/metrics"
	"github.com/yitech/klinedesk/papersim"
	"github.com/yitech/klinedesk/relay"
	"github.com/yitech/klinedesk/store"
	"github.com/yitech/klinedesk/store/redis"
	"github.com/yitech/klinedesk/store/sqlite"
)

const defaultLogFile = "klinedesk.log"

func main() {
	cfg, err := config.Load(".env")
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	// The terminal belongs to the TUI, so the client always logs to a file.
	logFile := cfg.LogFile
	if logFile == "" {
		logFile = defaultLogFile
	}
	closer, err := logging.Setup(cfg.LogLevel, logFile)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to set up logging")
	}
	defer closer.Close()
	for _, w := range cfg.Warnings {
		log.Warn().Err(w).Msg("configuration adjusted")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	if cfg.MetricsAddr != "" {
		go metrics.Serve(ctx, cfg.MetricsAddr, reg)
	}

	feeds, conn, err := openFeeds(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to set up feeds")
	}
	defer feeds.Close()
	if conn != nil {
		defer conn.Close()
	}

	kv, err := openStore(cfg)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.StoreDriver).Msg("failed to open store")
	}
	defer kv.Close()

	ledger := papersim.NewLedger(kv, cfg.Paper.LedgerCap, m)
	if err := ledger.Load(ctx); err != nil {
		log.Warn().Err(err).Msg("starting with an empty paper ledger")
	}

	priceFeed, err := feeds.Get(cfg.Exchange)
	if err != nil {
		log.Fatal().Err(err).Msg("no price source")
	}
	settings := papersim.FromConfig(cfg.Paper)
	entries := make(chan papersim.Entry, 16)
	loop := papersim.NewLoop(priceFeed, ledger, func() papersim.Settings { return settings },
		papersim.WithInterval(cfg.Paper.Interval),
		papersim.WithMetrics(m),
		papersim.OnEntry(func(e papersim.Entry) {
			select {
			case entries <- e:
			default:
			}
		}),
	)
	defer loop.Close()

	session := chart.NewSession(feeds, chart.Options{
		HistoryLimit:  cfg.HistoryLimit,
		Retries:       cfg.HistoryRetries,
		TickerRefresh: cfg.TickerRefresh,
		Metrics:       m,
	})
	defer session.Close()

	key := chart.Key{Exchange: cfg.Exchange, Symbol: cfg.Symbol, Interval: cfg.Interval}
	if err := session.Open(ctx, key); err != nil {
		log.Fatal().Err(err).Msg("failed to open chart")
	}

	p := tea.NewProgram(
		newModel(ctx, session, loop, ledger, entries, feeds.Names(), cfg.Warnings),
		tea.WithAltScreen(),
		tea.WithMouseAllMotion(),
	)
	if _, err := p.Run(); err != nil {
		log.Fatal().Err(err).Msg("tui error")
	}
}

// openFeeds builds the exchange registry: direct adapters, or relay feeds
// over one gRPC connection.
func openFeeds(cfg *config.Config) (adapter.Registry, *grpc.ClientConn, error) {
	if cfg.FeedMode != "relay" {
		return adapter.Registry{
			"binance": binance.New(),
			"okx":     okx.New(),
		}, nil, nil
	}
	conn, err := relay.Dial(cfg.ServerAddr)
	if err != nil {
		return nil, nil, fmt.Errorf("dial relay %s: %w", cfg.ServerAddr, err)
	}
	log.Info().Str("addr", cfg.ServerAddr).Msg("using relay")
	return relay.Registry(conn), conn, nil
}

func openStore(cfg *config.Config) (store.KV, error) {
	switch cfg.StoreDriver {
	case "redis":
		kv, err := redis.New(redis.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Prefix:   "klinedesk:",
		})
		if err != nil {
			return nil, err
		}
		return kv, nil
	case "memory":
		return store.NewMemory(), nil
	}
	kv, err := sqlite.Open(cfg.SQLitePath)
	if err != nil {
		return nil, err
	}
	return kv, nil
}
