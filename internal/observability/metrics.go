package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus instruments for the detection engine.
type Metrics struct {
	CyclesTotal   prometheus.Counter
	CycleDuration prometheus.Histogram
	RegionResults *prometheus.CounterVec // labels: outcome={success,failed,timed_out}
	AlertsCreated prometheus.Counter
	AlertsExpired prometheus.Counter

	DispatchAttempts *prometheus.CounterVec // labels: channel, outcome={delivered,failed,skipped}

	CacheLookups *prometheus.CounterVec // labels: result={hit,miss}

	UpstreamRequests *prometheus.CounterVec // labels: upstream, outcome={success,error}
}

// NewMetrics creates and registers all engine metrics with the given
// registerer. Tests pass a fresh prometheus.NewRegistry().
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		CyclesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "climate_alerts",
			Name:      "detection_cycles_total",
			Help:      "Total detection cycles started.",
		}),
		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "climate_alerts",
			Name:      "detection_cycle_duration_seconds",
			Help:      "Wall-clock duration of a full detection cycle.",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
		}),
		RegionResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "climate_alerts",
			Name:      "region_results_total",
			Help:      "Per-region cycle outcomes.",
		}, []string{"outcome"}),
		AlertsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "climate_alerts",
			Name:      "alerts_created_total",
			Help:      "Alert rows created, including supersessions.",
		}),
		AlertsExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "climate_alerts",
			Name:      "alerts_expired_total",
			Help:      "Alerts transitioned to expired by the sweep.",
		}),
		DispatchAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "climate_alerts",
			Name:      "dispatch_attempts_total",
			Help:      "Delivery attempts by channel and outcome.",
		}, []string{"channel", "outcome"}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "climate_alerts",
			Name:      "result_cache_lookups_total",
			Help:      "Result cache lookups by result.",
		}, []string{"result"}),
		UpstreamRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "climate_alerts",
			Name:      "upstream_requests_total",
			Help:      "Requests to external collaborators by outcome.",
		}, []string{"upstream", "outcome"}),
	}

	reg.MustRegister(
		m.CyclesTotal,
		m.CycleDuration,
		m.RegionResults,
		m.AlertsCreated,
		m.AlertsExpired,
		m.DispatchAttempts,
		m.CacheLookups,
		m.UpstreamRequests,
	)

	return m
}
