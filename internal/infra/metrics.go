package infra

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"shift_processor/internal/catalog"
	"shift_processor/internal/domain"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	registry *prometheus.Registry

	// Catalog metrics
	CatalogRefreshes   *prometheus.CounterVec
	CatalogEntries     prometheus.Gauge
	CatalogNewListings prometheus.Counter
	LastRefresh        prometheus.Gauge

	// Upstream metrics
	UpstreamLatency *prometheus.HistogramVec
	CircuitState    *prometheus.GaugeVec

	// Shift metrics
	ShiftSteps         *prometheus.CounterVec
	ShiftFailures      *prometheus.CounterVec
	IntegrityFailures  prometheus.Counter
	CancelsScheduled   prometheus.Counter
	RedirectLoopBlocks prometheus.Counter

	// Icon metrics
	IconDownloads *prometheus.CounterVec
}

// NewMetrics creates a Metrics instance registered on its own registry.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "shift_processor"
	}
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,

		CatalogRefreshes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "catalog",
			Name:      "refreshes_total",
			Help:      "Total number of catalog refreshes by result",
		}, []string{"result"}),
		CatalogEntries: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "catalog",
			Name:      "entries",
			Help:      "Number of coin-network entries in the installed snapshot",
		}),
		CatalogNewListings: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "catalog",
			Name:      "new_listings_total",
			Help:      "Total number of coin-networks that appeared between refreshes",
		}),
		LastRefresh: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "catalog",
			Name:      "last_successful_refresh_timestamp_seconds",
			Help:      "Unix time of the last successful refresh",
		}),

		UpstreamLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "request_duration_seconds",
			Help:      "Exchange API request latency by endpoint and result",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint", "result"}),
		CircuitState: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "circuit_state",
			Help:      "Circuit breaker state (0 closed, 1 open, 2 half-open)",
		}, []string{"name"}),

		ShiftSteps: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "shift",
			Name:      "steps_total",
			Help:      "Shift orchestration state transitions",
		}, []string{"operation", "step"}),
		ShiftFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "shift",
			Name:      "failures_total",
			Help:      "Failed shift operations by error kind",
		}, []string{"operation", "kind"}),
		IntegrityFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "shift",
			Name:      "integrity_failures_total",
			Help:      "Orders whose returned settle data disagreed with the request",
		}),
		CancelsScheduled: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "shift",
			Name:      "cancels_scheduled_total",
			Help:      "Cancellation requests accepted",
		}),
		RedirectLoopBlocks: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "shift",
			Name:      "redirect_loop_blocks_total",
			Help:      "Status page redirects refused after the loop limit",
		}),

		IconDownloads: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "icons",
			Name:      "operations_total",
			Help:      "Icon downloads and deletions by result",
		}, []string{"op", "result"}),
	}
}

// Handler returns an HTTP handler exposing the metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry (tests).
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// ObserveRefresh implements catalog.RefreshObserver.
func (m *Metrics) ObserveRefresh(entries int, diff catalog.Diff, err error) {
	if err != nil {
		m.CatalogRefreshes.WithLabelValues("error").Inc()
		return
	}
	m.CatalogRefreshes.WithLabelValues("ok").Inc()
	m.CatalogEntries.Set(float64(entries))
	m.CatalogNewListings.Add(float64(len(diff.Added)))
	m.LastRefresh.SetToCurrentTime()
}

// ObserveUpstream records one exchange API call.
func (m *Metrics) ObserveUpstream(endpoint string, started time.Time, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.UpstreamLatency.WithLabelValues(endpoint, result).Observe(time.Since(started).Seconds())
}

// ObserveCircuit is a CircuitBreakerConfig.OnStateChange hook.
func (m *Metrics) ObserveCircuit(name string, to State) {
	m.CircuitState.WithLabelValues(name).Set(float64(circuitGaugeValue(to)))
}

func circuitGaugeValue(s State) int {
	switch s {
	case StateOpen:
		return 1
	case StateHalfOpen:
		return 2
	default:
		return 0
	}
}

// ObserveStep counts one orchestration transition.
func (m *Metrics) ObserveStep(operation, step string) {
	m.ShiftSteps.WithLabelValues(operation, step).Inc()
}

// ObserveFailure counts a failed operation by kind.
func (m *Metrics) ObserveFailure(operation string, err error) {
	kind := domain.KindOf(err)
	m.ShiftFailures.WithLabelValues(operation, kind.String()).Inc()
	if kind == domain.KindIntegrity {
		m.IntegrityFailures.Inc()
	}
}

// ObserveCancel counts an accepted cancellation.
func (m *Metrics) ObserveCancel() { m.CancelsScheduled.Inc() }

// ObserveRedirectBlock counts a refused redirect.
func (m *Metrics) ObserveRedirectBlock() { m.RedirectLoopBlocks.Inc() }

// ObserveIcon counts an icon download or deletion.
func (m *Metrics) ObserveIcon(op string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.IconDownloads.WithLabelValues(op, result).Inc()
}
