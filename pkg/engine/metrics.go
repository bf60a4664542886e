package engine

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics collects and exposes correlation-engine Prometheus metrics.
type Metrics struct {
	registry *prometheus.Registry

	UpdatesTotal   *prometheus.CounterVec
	MatchesTotal   *prometheus.CounterVec
	SwapsTotal     prometheus.Counter
	ChangedKeys    prometheus.Counter
	ObserverPanics *prometheus.CounterVec
	SweptEvents    prometheus.Counter

	TrackedEvents prometheus.Gauge
	AdapterStatus *prometheus.GaugeVec

	ProcessLatency prometheus.Histogram
	FeedLatency    *prometheus.HistogramVec
}

// NewMetrics creates the engine metrics collector on its own registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,

		UpdatesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "oddsync_updates_total",
				Help: "Total adapter updates processed",
			},
			[]string{"source"},
		),
		MatchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "oddsync_matches_total",
				Help: "Match resolutions by path",
			},
			[]string{"path"},
		),
		SwapsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "oddsync_swapped_updates_total",
				Help: "Updates whose home/away orientation was mirrored",
			},
		),
		ChangedKeys: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "oddsync_changed_keys_total",
				Help: "Total changed keys dispatched to observers",
			},
		),
		ObserverPanics: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "oddsync_observer_panics_total",
				Help: "Observer panics recovered at the dispatch boundary",
			},
			[]string{"source"},
		),
		SweptEvents: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "oddsync_swept_events_total",
				Help: "Finished events evicted by the periodic sweep",
			},
		),

		TrackedEvents: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "oddsync_tracked_events",
				Help: "Canonical events currently tracked",
			},
		),
		AdapterStatus: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "oddsync_adapter_status",
				Help: "Adapter lifecycle state (enum value)",
			},
			[]string{"source"},
		),

		ProcessLatency: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "oddsync_update_processing_seconds",
				Help:    "Match+merge+dispatch time per update",
				Buckets: prometheus.ExponentialBuckets(0.00005, 2, 14), // 50µs to ~400ms
			},
		),
		FeedLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "oddsync_feed_latency_seconds",
				Help:    "Producer timestamp to processed, per source",
				Buckets: prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~16s
			},
			[]string{"source"},
		),
	}

	m.registerAll()
	return m
}

func (m *Metrics) registerAll() {
	m.registry.MustRegister(
		m.UpdatesTotal,
		m.MatchesTotal,
		m.SwapsTotal,
		m.ChangedKeys,
		m.ObserverPanics,
		m.SweptEvents,
		m.TrackedEvents,
		m.AdapterStatus,
		m.ProcessLatency,
		m.FeedLatency,
	)
}

// Registry returns the prometheus registry for the HTTP handler.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordUpdate records one processed update.
func (m *Metrics) RecordUpdate(source, path string, swapped bool, changedKeys int, processSec, feedSec float64) {
	m.UpdatesTotal.WithLabelValues(source).Inc()
	m.MatchesTotal.WithLabelValues(path).Inc()
	if swapped {
		m.SwapsTotal.Inc()
	}
	if changedKeys > 0 {
		m.ChangedKeys.Add(float64(changedKeys))
	}
	m.ProcessLatency.Observe(processSec)
	if feedSec >= 0 {
		m.FeedLatency.WithLabelValues(source).Observe(feedSec)
	}
}

// RecordSweep records a sweep pass.
func (m *Metrics) RecordSweep(swept, remaining int) {
	if swept > 0 {
		m.SweptEvents.Add(float64(swept))
	}
	m.TrackedEvents.Set(float64(remaining))
}
