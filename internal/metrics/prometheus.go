package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the audio board service.
// Every recorder accepts a nil receiver so components can run without metrics.
type Metrics struct {
	// Catalog metrics
	CatalogListings *prometheus.CounterVec

	// Routed player metrics
	RoutedPlaybacks  prometheus.Counter
	SpawnFailures    prometheus.Counter
	ActiveProcesses  prometheus.Gauge
	PlaybackDuration prometheus.Histogram

	// Key toggle metrics
	KeyToggleFailures prometheus.Counter
	KeyReleases       prometheus.Counter

	// Sequencer metrics
	SequencerTransitions *prometheus.CounterVec
	AdvancesScheduled    prometheus.Counter
	AdvancesCancelled    prometheus.Counter

	// Push channel metrics
	WebsocketClients prometheus.Gauge

	// HTTP API metrics
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPErrors          *prometheus.CounterVec
}

// NewMetrics creates all metrics and registers them with reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		CatalogListings: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "micboard_catalog_listings_total",
			Help: "Total number of audio directory listings by outcome",
		}, []string{"outcome"}),

		RoutedPlaybacks: factory.NewCounter(prometheus.CounterOpts{
			Name: "micboard_routed_playbacks_total",
			Help: "Total number of external player processes started",
		}),
		SpawnFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "micboard_spawn_failures_total",
			Help: "Total number of external player processes that failed to start",
		}),
		ActiveProcesses: factory.NewGauge(prometheus.GaugeOpts{
			Name: "micboard_active_processes",
			Help: "Number of live external player processes (0 or 1)",
		}),
		PlaybackDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "micboard_routed_playback_duration_seconds",
			Help:    "Wall time from spawning an external player to its retirement",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10), // 1s to ~17 minutes
		}),

		KeyToggleFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "micboard_key_toggle_failures_total",
			Help: "Total number of simulated key presses that could not be asserted",
		}),
		KeyReleases: factory.NewCounter(prometheus.CounterOpts{
			Name: "micboard_key_releases_total",
			Help: "Total number of simulated key releases",
		}),

		SequencerTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "micboard_sequencer_transitions_total",
			Help: "Total number of sequencer state transitions by target state",
		}, []string{"state"}),
		AdvancesScheduled: factory.NewCounter(prometheus.CounterOpts{
			Name: "micboard_sequencer_advances_scheduled_total",
			Help: "Total number of delayed play-next tasks scheduled",
		}),
		AdvancesCancelled: factory.NewCounter(prometheus.CounterOpts{
			Name: "micboard_sequencer_advances_cancelled_total",
			Help: "Total number of delayed play-next tasks cancelled before firing",
		}),

		WebsocketClients: factory.NewGauge(prometheus.GaugeOpts{
			Name: "micboard_websocket_clients",
			Help: "Current number of connected UI pages",
		}),

		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "micboard_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "endpoint", "status_code"}),
		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "micboard_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),
		HTTPErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "micboard_http_errors_total",
			Help: "Total number of HTTP errors",
		}, []string{"method", "endpoint", "error_type"}),
	}
}

// RecordListing records the outcome of a directory listing ("ok", "missing", "error", "cached")
func (m *Metrics) RecordListing(outcome string) {
	if m == nil {
		return
	}
	m.CatalogListings.WithLabelValues(outcome).Inc()
}

// RecordPlaybackStarted records a spawned external player
func (m *Metrics) RecordPlaybackStarted() {
	if m == nil {
		return
	}
	m.RoutedPlaybacks.Inc()
	m.ActiveProcesses.Inc()
}

// RecordPlaybackFinished records the retirement of an external player
func (m *Metrics) RecordPlaybackFinished(durationSeconds float64) {
	if m == nil {
		return
	}
	m.ActiveProcesses.Dec()
	m.PlaybackDuration.Observe(durationSeconds)
}

// RecordSpawnFailure increments the spawn failures counter
func (m *Metrics) RecordSpawnFailure() {
	if m == nil {
		return
	}
	m.SpawnFailures.Inc()
}

// RecordKeyToggleFailure increments the key toggle failures counter
func (m *Metrics) RecordKeyToggleFailure() {
	if m == nil {
		return
	}
	m.KeyToggleFailures.Inc()
}

// RecordKeyRelease increments the key releases counter
func (m *Metrics) RecordKeyRelease() {
	if m == nil {
		return
	}
	m.KeyReleases.Inc()
}

// RecordTransition records a sequencer transition into state
func (m *Metrics) RecordTransition(state string) {
	if m == nil {
		return
	}
	m.SequencerTransitions.WithLabelValues(state).Inc()
}

// RecordAdvanceScheduled increments the scheduled advances counter
func (m *Metrics) RecordAdvanceScheduled() {
	if m == nil {
		return
	}
	m.AdvancesScheduled.Inc()
}

// RecordAdvanceCancelled increments the cancelled advances counter
func (m *Metrics) RecordAdvanceCancelled() {
	if m == nil {
		return
	}
	m.AdvancesCancelled.Inc()
}

// SetWebsocketClients sets the current number of connected pages
func (m *Metrics) SetWebsocketClients(count int) {
	if m == nil {
		return
	}
	m.WebsocketClients.Set(float64(count))
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(durationSeconds)
}

// RecordHTTPError records an HTTP error
func (m *Metrics) RecordHTTPError(method, endpoint, errorType string) {
	if m == nil {
		return
	}
	m.HTTPErrors.WithLabelValues(method, endpoint, errorType).Inc()
}
