// Package telemetry wraps the Prometheus collectors exported on /metrics.
// A nil *Collector is valid and records nothing.
package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "diasync"

// Sync results recorded by RecordSync.
const (
	SyncSuccess    = "success"
	SyncSkipped    = "skipped"
	SyncFailed     = "failed"
	SyncInProgress = "in_progress"
)

// Collector holds the service's metrics on a private registry.
type Collector struct {
	registry *prometheus.Registry

	discoveryAttempts *prometheus.CounterVec
	reauthentications prometheus.Counter
	syncTotal         *prometheus.CounterVec
	syncDuration      prometheus.Histogram
	readingsStored    prometheus.Gauge
	lastSync          prometheus.Gauge
	connected         prometheus.Gauge
}

// NewCollector creates a Collector with Go runtime and process collectors registered.
func NewCollector() *Collector {
	c := &Collector{registry: prometheus.NewRegistry()}

	c.discoveryAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "discovery_attempts_total",
			Help:      "Login attempts made during endpoint discovery, by host and outcome",
		},
		[]string{"host", "outcome"},
	)

	c.reauthentications = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reauthentications_total",
		Help:      "Syncs that re-authenticated after the share session expired",
	})

	c.syncTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "syncs_total",
			Help:      "Sync invocations by result (success, skipped, failed, in_progress)",
		},
		[]string{"result"},
	)

	c.syncDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "sync_duration_seconds",
		Help:      "Wall time of completed sync attempts",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms to ~25s
	})

	c.readingsStored = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "readings_stored",
		Help:      "Readings in the local history after the last successful sync",
	})

	c.lastSync = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "last_sync_timestamp_seconds",
		Help:      "Unix time of the last successful sync",
	})

	c.connected = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "connected",
		Help:      "1 when a share account is connected, 0 otherwise",
	})

	c.registry.MustRegister(
		c.discoveryAttempts,
		c.reauthentications,
		c.syncTotal,
		c.syncDuration,
		c.readingsStored,
		c.lastSync,
		c.connected,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return c
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func (c *Collector) RecordDiscoveryAttempt(host, outcome string) {
	if c == nil {
		return
	}
	c.discoveryAttempts.WithLabelValues(host, outcome).Inc()
}

func (c *Collector) RecordReauthentication() {
	if c == nil {
		return
	}
	c.reauthentications.Inc()
}

// RecordSync counts a sync by result. duration is observed only for
// attempts that reached the share service.
func (c *Collector) RecordSync(result string, duration time.Duration) {
	if c == nil {
		return
	}
	c.syncTotal.WithLabelValues(result).Inc()
	if result == SyncSuccess || result == SyncFailed {
		c.syncDuration.Observe(duration.Seconds())
	}
}

// RecordHistory publishes the stored history size and the sync time.
func (c *Collector) RecordHistory(count int, syncedAt time.Time) {
	if c == nil {
		return
	}
	c.readingsStored.Set(float64(count))
	c.lastSync.Set(float64(syncedAt.Unix()))
}

func (c *Collector) SetConnected(connected bool) {
	if c == nil {
		return
	}
	if connected {
		c.connected.Set(1)
		return
	}
	c.connected.Set(0)
}
