// Command srv is the candle relay: it talks to Binance and OKX on behalf of
// chart clients and serves history, tickers and live candles over gRPC.
package main

import (
	"context"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"

	"github.com/yitech/klinedesk/adapter"
	"github.com/yitech/klinedesk/adapter/binance"
	"github.com/yitech/klinedesk/adapter/okx"
	"github.com/yitech/klinedesk/config"
	"github.com/yitech/klinedesk/logging"
	"github.com/yitech/klinedesk/metrics"
	"github.com/yitech/klinedesk/relay"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	closer, err := logging.Setup(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to set up logging")
	}
	defer closer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	if cfg.MetricsAddr != "" {
		go metrics.Serve(ctx, cfg.MetricsAddr, reg)
	}

	feeds := adapter.Registry{
		"binance": binance.New(),
		"okx":     okx.New(),
	}
	defer feeds.Close()

	hub := relay.NewHub(feeds, m)
	defer hub.Close()

	lis, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to listen")
	}

	s := grpc.NewServer(
		grpc.KeepaliveParams(keepalive.ServerParameters{
			MaxConnectionIdle: 5 * time.Minute,
			Time:              20 * time.Second,
			Timeout:           10 * time.Second,
		}),
	)
	relay.Register(s, relay.NewServer(feeds, hub, m))

	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(s, healthServer)
	healthServer.SetServingStatus(relay.ServiceName, grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		log.Info().Msg("initiating graceful shutdown")
		healthServer.Shutdown()
		cancel()
		s.GracefulStop()
	}()

	log.Info().
		Str("addr", cfg.ListenAddr).
		Strs("exchanges", feeds.Names()).
		Msg("relay listening")

	if err := s.Serve(lis); err != nil {
		log.Fatal().Err(err).Msg("failed to serve")
	}
}
