package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the watcher.
type Metrics struct {
	FetchesTotal         *prometheus.CounterVec
	QuotaRemaining       prometheus.Gauge
	RetryAfterWaitsTotal prometheus.Counter
	PacingSecondsTotal   prometheus.Counter
	PingDuration         prometheus.Histogram
	DetectionsTotal      *prometheus.CounterVec
	DeparturesTotal      prometheus.Counter
	QueueDepth           prometheus.Gauge
	EngagementsTotal     *prometheus.CounterVec
}

// New creates and registers all metrics with the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry registers the metrics with reg. Tests pass a fresh
// prometheus.NewRegistry() so repeated construction does not collide.
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		FetchesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "rosterwatch_api_fetches_total",
			Help: "Total number of read API requests by entity kind and outcome",
		}, []string{"kind", "outcome"}),
		QuotaRemaining: factory.NewGauge(prometheus.GaugeOpts{
			Name: "rosterwatch_api_quota_remaining",
			Help: "Requests remaining in the current rate limit window as reported by the server",
		}),
		RetryAfterWaitsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "rosterwatch_api_retry_after_waits_total",
			Help: "Total number of server-mandated Retry-After waits",
		}),
		PacingSecondsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "rosterwatch_api_pacing_seconds_total",
			Help: "Total seconds slept pre-emptively to stay under the rate limit",
		}),
		PingDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "rosterwatch_radar_ping_duration_seconds",
			Help:    "Duration of one radar ping including the fetch",
			Buckets: prometheus.DefBuckets,
		}),
		DetectionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "rosterwatch_radar_detections_total",
			Help: "Arrivals classified by the radar, by classification",
		}, []string{"classification"}),
		DeparturesTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "rosterwatch_radar_departures_total",
			Help: "Queued targets dropped because they left the watched region",
		}),
		QueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Name: "rosterwatch_target_queue_depth",
			Help: "Current number of queued targets",
		}),
		EngagementsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "rosterwatch_engagements_total",
			Help: "Disposal attempts by outcome",
		}, []string{"outcome"}),
	}
}

// ObserveFetch records one API request.
func (m *Metrics) ObserveFetch(kind, outcome string) {
	m.FetchesTotal.WithLabelValues(kind, outcome).Inc()
}

// SetQuotaRemaining records the server-reported remaining quota.
func (m *Metrics) SetQuotaRemaining(remaining int) {
	m.QuotaRemaining.Set(float64(remaining))
}

// IncrementRetryAfterWaits counts a server-mandated wait.
func (m *Metrics) IncrementRetryAfterWaits() {
	m.RetryAfterWaitsTotal.Inc()
}

// AddPacing records a pre-emptive pacing sleep.
func (m *Metrics) AddPacing(d time.Duration) {
	m.PacingSecondsTotal.Add(d.Seconds())
}

// ObservePing records the duration of a radar ping.
func (m *Metrics) ObservePing(d time.Duration) {
	m.PingDuration.Observe(d.Seconds())
}

// IncrementDetections counts one classified arrival.
func (m *Metrics) IncrementDetections(classification string) {
	m.DetectionsTotal.WithLabelValues(classification).Inc()
}

// IncrementDepartures counts one queued target that left the region.
func (m *Metrics) IncrementDepartures() {
	m.DeparturesTotal.Inc()
}

// SetQueueDepth records the current queue length.
func (m *Metrics) SetQueueDepth(n int) {
	m.QueueDepth.Set(float64(n))
}

// IncrementEngagements counts one disposal attempt.
func (m *Metrics) IncrementEngagements(outcome string) {
	m.EngagementsTotal.WithLabelValues(outcome).Inc()
}
