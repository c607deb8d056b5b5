package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// Metrics holds the Prometheus collectors for feeds, chart sessions, the
// relay and the paper simulator. A nil *Metrics is valid and records nothing.
type Metrics struct {
	HistoryFetches *prometheus.CounterVec // labels: exchange, outcome
	HistoryLatency prometheus.Histogram
	StreamErrors   *prometheus.CounterVec // labels: exchange
	CandlesMerged  *prometheus.CounterVec // labels: result
	StaleCallbacks prometheus.Counter
	EventsDropped  prometheus.Counter

	RelayStreams prometheus.Gauge

	PaperTicks          *prometheus.CounterVec // labels: signal
	PaperPriceFallbacks prometheus.Counter
	PaperSkippedTicks   prometheus.Counter
	LedgerEntries       prometheus.Gauge
	LedgerPersistErrors prometheus.Counter
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HistoryFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "klinedesk_history_fetches_total",
			Help: "History fetch attempts by exchange and outcome",
		}, []string{"exchange", "outcome"}),
		HistoryLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "klinedesk_history_fetch_duration_seconds",
			Help:    "History fetch latency",
			Buckets: prometheus.DefBuckets,
		}),
		StreamErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "klinedesk_stream_errors_total",
			Help: "Stream failures reported by feeds",
		}, []string{"exchange"}),
		CandlesMerged: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "klinedesk_candles_merged_total",
			Help: "Streamed candles merged into a series, by result",
		}, []string{"result"}),
		StaleCallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "klinedesk_stale_callbacks_total",
			Help: "Callbacks discarded because their session generation was superseded",
		}),
		EventsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "klinedesk_events_dropped_total",
			Help: "Session events dropped because the consumer was behind",
		}),
		RelayStreams: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "klinedesk_relay_streams",
			Help: "Open relay candle streams",
		}),
		PaperTicks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "klinedesk_paper_ticks_total",
			Help: "Paper simulator ticks by signal",
		}, []string{"signal"}),
		PaperPriceFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "klinedesk_paper_price_fallbacks_total",
			Help: "Ticks priced by perturbing the previous price",
		}),
		PaperSkippedTicks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "klinedesk_paper_skipped_ticks_total",
			Help: "Ticks skipped because no price was available",
		}),
		LedgerEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "klinedesk_ledger_entries",
			Help: "Entries currently retained in the paper ledger",
		}),
		LedgerPersistErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "klinedesk_ledger_persist_errors_total",
			Help: "Failed ledger write-throughs",
		}),
	}

	reg.MustRegister(
		m.HistoryFetches,
		m.HistoryLatency,
		m.StreamErrors,
		m.CandlesMerged,
		m.StaleCallbacks,
		m.EventsDropped,
		m.RelayStreams,
		m.PaperTicks,
		m.PaperPriceFallbacks,
		m.PaperSkippedTicks,
		m.LedgerEntries,
		m.LedgerPersistErrors,
	)
	return m
}

func (m *Metrics) ObserveHistory(exchange string, took time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.HistoryFetches.WithLabelValues(exchange, outcome).Inc()
	m.HistoryLatency.Observe(took.Seconds())
}

func (m *Metrics) StreamError(exchange string) {
	if m == nil {
		return
	}
	m.StreamErrors.WithLabelValues(exchange).Inc()
}

func (m *Metrics) Merged(result string) {
	if m == nil {
		return
	}
	m.CandlesMerged.WithLabelValues(result).Inc()
}

func (m *Metrics) StaleCallback() {
	if m == nil {
		return
	}
	m.StaleCallbacks.Inc()
}

func (m *Metrics) EventDropped() {
	if m == nil {
		return
	}
	m.EventsDropped.Inc()
}

func (m *Metrics) RelayStreamOpened() {
	if m == nil {
		return
	}
	m.RelayStreams.Inc()
}

func (m *Metrics) RelayStreamClosed() {
	if m == nil {
		return
	}
	m.RelayStreams.Dec()
}

func (m *Metrics) PaperTick(signal string, fallback bool) {
	if m == nil {
		return
	}
	m.PaperTicks.WithLabelValues(signal).Inc()
	if fallback {
		m.PaperPriceFallbacks.Inc()
	}
}

func (m *Metrics) PaperSkipped() {
	if m == nil {
		return
	}
	m.PaperSkippedTicks.Inc()
}

func (m *Metrics) LedgerSize(n int, persistErr error) {
	if m == nil {
		return
	}
	m.LedgerEntries.Set(float64(n))
	if persistErr != nil {
		m.LedgerPersistErrors.Inc()
	}
}

// Serve exposes /metrics on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string, g prometheus.Gatherer) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Info().Str("addr", addr).Msg("metrics listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error().Err(err).Msg("metrics server failed")
	}
}
