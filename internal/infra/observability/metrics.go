package observability

import (
	"time"

	"github.com/pakli/sofia-outages/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Metrics holds all Prometheus metrics for the outage API.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	requestDuration   *prometheus.HistogramVec
	sourceErrors      *prometheus.CounterVec
	cacheHits         *prometheus.CounterVec
	cacheMisses       *prometheus.CounterVec
	refreshes         *prometheus.CounterVec
	snapshotSize      prometheus.Gauge
	notificationsSent *prometheus.CounterVec
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pakli_request_duration_seconds",
				Help:    "Duration of operations.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		sourceErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pakli_source_errors_total",
				Help: "Total failed fetches per outage source.",
			},
			[]string{"source"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pakli_cache_hits_total",
				Help: "Total cache hits.",
			},
			[]string{"cache"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pakli_cache_misses_total",
				Help: "Total cache misses.",
			},
			[]string{"cache"},
		),
		refreshes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pakli_outage_refreshes_total",
				Help: "Outage snapshot rebuilds by result.",
			},
			[]string{"result"},
		),
		snapshotSize: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "pakli_outage_snapshot_size",
				Help: "Number of outages in the current snapshot.",
			},
		),
		notificationsSent: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pakli_notifications_total",
				Help: "District alert emails by status.",
			},
			[]string{"status"},
		),
	}
}

// RecordRequestDuration records the duration of an operation.
func (m *Metrics) RecordRequestDuration(operation string, d time.Duration) {
	m.requestDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// IncrSourceError increments the error counter of an outage source.
func (m *Metrics) IncrSourceError(source string) {
	m.sourceErrors.WithLabelValues(source).Inc()
}

// IncrCacheHit increments the cache hit counter.
func (m *Metrics) IncrCacheHit(cache string) {
	m.cacheHits.WithLabelValues(cache).Inc()
}

// IncrCacheMiss increments the cache miss counter.
func (m *Metrics) IncrCacheMiss(cache string) {
	m.cacheMisses.WithLabelValues(cache).Inc()
}

// RecordRefresh records a snapshot rebuild; fallback marks a rebuild that
// had to serve the hardcoded data.
func (m *Metrics) RecordRefresh(size int, fallback bool) {
	result := "ok"
	if fallback {
		result = "fallback"
	}
	m.refreshes.WithLabelValues(result).Inc()
	m.snapshotSize.Set(float64(size))
}

// IncrNotification counts a district alert by delivery status.
func (m *Metrics) IncrNotification(status string) {
	m.notificationsSent.WithLabelValues(status).Inc()
}

// GetOutageSnapshot returns the counters behind GET /api/metrics/outages.
func (m *Metrics) GetOutageSnapshot() *domain.OutageMetrics {
	ok := getCounterValue(m.refreshes, "ok")
	fallback := getCounterValue(m.refreshes, "fallback")
	hits := getCounterValue(m.cacheHits, "outages")
	misses := getCounterValue(m.cacheMisses, "outages")

	var sourceErrors float64
	for _, src := range []string{"file", "feed", "supabase"} {
		sourceErrors += getCounterValue(m.sourceErrors, src)
	}

	fallbackRate := float64(0)
	if ok+fallback > 0 {
		fallbackRate = fallback / (ok + fallback)
	}
	cacheHitRate := float64(0)
	if hits+misses > 0 {
		cacheHitRate = hits / (hits + misses)
	}

	return &domain.OutageMetrics{
		Refreshes:         int64(ok + fallback),
		FallbackRate:      fallbackRate,
		SourceErrors:      int64(sourceErrors),
		SnapshotSize:      int64(getGaugeValue(m.snapshotSize)),
		CacheHitRate:      cacheHitRate,
		NotificationsSent: int64(getCounterValue(m.notificationsSent, "sent")),
		Period:            "all_time",
	}
}

// getCounterValue extracts the current float64 value from a CounterVec for a given label.
func getCounterValue(cv *prometheus.CounterVec, label string) float64 {
	counter := cv.WithLabelValues(label)
	m := &dto.Metric{}
	if err := counter.(prometheus.Metric).Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}

func getGaugeValue(g prometheus.Gauge) float64 {
	m := &dto.Metric{}
	if err := g.Write(m); err != nil {
		return 0
	}
	if m.Gauge != nil && m.Gauge.Value != nil {
		return *m.Gauge.Value
	}
	return 0
}
