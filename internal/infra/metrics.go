package infra

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"grid_go/internal/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics exposes the grid's round outcomes to Prometheus.
//
//   - gridbot_rounds_total{outcome}          rounds by outcome (ok|skipped|broken|failed)
//   - gridbot_orders_total{kind,result}      order actions (place_buy|place_tp|cancel|liquidate)
//   - gridbot_levels_skipped_total{reason}   missing levels left unplaced (max_open_buys|budget_exhausted)
//   - gridbot_recenters_total                applied recenters
//   - gridbot_range_breaks_total             rounds that hit a range break
//   - gridbot_last_price / gridbot_position  last observed price and position
//   - gridbot_range_low / gridbot_range_high active range bounds
//   - gridbot_round_duration_seconds         round latency
type Metrics struct {
	registry *prometheus.Registry

	rounds        *prometheus.CounterVec
	orders        *prometheus.CounterVec
	levelsSkipped *prometheus.CounterVec
	recenters     prometheus.Counter
	breaks        prometheus.Counter

	lastPrice prometheus.Gauge
	position  prometheus.Gauge
	rangeLow  prometheus.Gauge
	rangeHigh prometheus.Gauge

	roundDuration prometheus.Histogram
}

// NewMetrics creates the collectors on a private registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		rounds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gridbot_rounds_total",
			Help: "Rounds executed, by outcome",
		}, []string{"outcome"}),
		orders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gridbot_orders_total",
			Help: "Order actions, by kind and broker result",
		}, []string{"kind", "result"}),
		levelsSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gridbot_levels_skipped_total",
			Help: "Missing grid levels left unplaced, by stop reason",
		}, []string{"reason"}),
		recenters: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gridbot_recenters_total",
			Help: "Applied range recenters",
		}),
		breaks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gridbot_range_breaks_total",
			Help: "Rounds that detected a range break",
		}),
		lastPrice: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gridbot_last_price",
			Help: "Last observed trade price",
		}),
		position: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gridbot_position",
			Help: "Held base-asset quantity",
		}),
		rangeLow: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gridbot_range_low",
			Help: "Active range low",
		}),
		rangeHigh: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gridbot_range_high",
			Help: "Active range high",
		}),
		roundDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "gridbot_round_duration_seconds",
			Help:    "Round latency",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
	}

	m.registry.MustRegister(m.rounds, m.orders, m.levelsSkipped, m.recenters, m.breaks)
	m.registry.MustRegister(m.lastPrice, m.position, m.rangeLow, m.rangeHigh, m.roundDuration)
	return m
}

// ObserveRound records one round summary.
func (m *Metrics) ObserveRound(sum *domain.RoundSummary) {
	m.rounds.WithLabelValues(string(sum.Outcome)).Inc()
	m.roundDuration.Observe(sum.Duration.Seconds())

	for _, a := range sum.Actions {
		m.orders.WithLabelValues(string(a.Kind), string(a.Result)).Inc()
	}
	if sum.Skipped > 0 && sum.StopReason != domain.StopNone {
		m.levelsSkipped.WithLabelValues(string(sum.StopReason)).Add(float64(sum.Skipped))
	}
	if sum.Recentered {
		m.recenters.Inc()
	}
	if sum.Broken {
		m.breaks.Inc()
	}

	if sum.Price.IsPositive() {
		m.lastPrice.Set(sum.Price.InexactFloat64())
		m.position.Set(sum.Position.InexactFloat64())
	}
	if sum.Range.Low.IsPositive() {
		m.rangeLow.Set(sum.Range.Low.InexactFloat64())
		m.rangeHigh.Set(sum.Range.High.InexactFloat64())
	}
}

// Handler returns the exposition handler for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve runs the /metrics and /healthz endpoints until ctx is cancelled.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	slog.Info("Metrics server started", slog.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
