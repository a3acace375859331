// Package telemetry exposes prometheus collectors for upstream calls,
// the detail-fetch policy and the live price poller.
package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Upstream source labels
const (
	SourceMarketData = "market_data"
	SourceQuotes     = "quotes"
	SourceInference  = "inference"
)

// Metrics holds the service collectors on a private registry.
// All methods are safe to call on a nil *Metrics.
type Metrics struct {
	registry *prometheus.Registry

	upstreamRequests *prometheus.CounterVec
	upstreamLatency  *prometheus.HistogramVec
	detailCache      *prometheus.CounterVec
	throttleWait     prometheus.Histogram
	lockEngaged      prometheus.Counter
	lockRejected     prometheus.Counter
	lockActive       prometheus.Gauge
	pollTicks        *prometheus.CounterVec
	historyPoints    prometheus.Gauge
	favorites        prometheus.Gauge
}

// New creates and registers all collectors
func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		upstreamRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coin_dashboard_upstream_requests_total",
				Help: "Total number of upstream HTTP requests by source and outcome",
			}, []string{"source", "outcome"}),
		upstreamLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "coin_dashboard_upstream_request_duration_seconds",
				Help:    "Latency of upstream HTTP requests by source",
				Buckets: prometheus.DefBuckets,
			}, []string{"source"}),
		detailCache: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coin_dashboard_detail_cache_lookups_total",
				Help: "Price detail cache lookups by result",
			}, []string{"result"}),
		throttleWait: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "coin_dashboard_detail_throttle_wait_seconds",
				Help:    "Time detail requests spent waiting for the throttle",
				Buckets: []float64{0.1, 0.5, 1, 2, 4, 8, 16},
			}),
		lockEngaged: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "coin_dashboard_rate_limit_lock_engaged_total",
				Help: "Number of times the market data rate-limit lock was engaged",
			}),
		lockRejected: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "coin_dashboard_rate_limit_lock_rejections_total",
				Help: "Detail requests rejected while the rate-limit lock was active",
			}),
		lockActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "coin_dashboard_rate_limit_lock_active",
				Help: "1 while the market data rate-limit lock suspends detail requests",
			}),
		pollTicks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coin_dashboard_live_poll_ticks_total",
				Help: "Live price poll ticks by outcome",
			}, []string{"outcome"}),
		historyPoints: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "coin_dashboard_live_history_points",
				Help: "Number of points in the live price history",
			}),
		favorites: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "coin_dashboard_favorites",
				Help: "Number of favorite coins",
			}),
	}
}

// Handler serves the registry in the prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveUpstream records one upstream request started at start
func (m *Metrics) ObserveUpstream(source string, start time.Time, err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.upstreamRequests.WithLabelValues(source, outcome).Inc()
	m.upstreamLatency.WithLabelValues(source).Observe(time.Since(start).Seconds())
}

func (m *Metrics) CacheHit() {
	if m == nil {
		return
	}
	m.detailCache.WithLabelValues("hit").Inc()
}

func (m *Metrics) CacheMiss() {
	if m == nil {
		return
	}
	m.detailCache.WithLabelValues("miss").Inc()
}

func (m *Metrics) Throttled(wait time.Duration) {
	if m == nil {
		return
	}
	m.throttleWait.Observe(wait.Seconds())
}

func (m *Metrics) LockEngaged() {
	if m == nil {
		return
	}
	m.lockEngaged.Inc()
	m.lockActive.Set(1)
}

func (m *Metrics) LockReleased() {
	if m == nil {
		return
	}
	m.lockActive.Set(0)
}

func (m *Metrics) LockRejected() {
	if m == nil {
		return
	}
	m.lockRejected.Inc()
}

// PollCompleted records a live price tick and the resulting history length
func (m *Metrics) PollCompleted(err error, historyLen int) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.pollTicks.WithLabelValues(outcome).Inc()
	m.historyPoints.Set(float64(historyLen))
}

// SetFavorites records the current favorites count
func (m *Metrics) SetFavorites(n int) {
	if m == nil {
		return
	}
	m.favorites.Set(float64(n))
}
