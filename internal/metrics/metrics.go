// Package metrics defines the prometheus collectors for the provenance
// service: cache effectiveness, verdict outcomes, and job throughput.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics bundles the service collectors. A nil *Metrics is valid and all
// recording methods become no-ops, which keeps tests free of registries.
type Metrics struct {
	CacheHits    prometheus.Counter
	CacheMisses  prometheus.Counter
	CacheSets    prometheus.Counter
	CacheDeletes prometheus.Counter

	Verifications *prometheus.CounterVec

	JobsCompleted prometheus.Counter
	JobsFailed    prometheus.Counter
	JobsActive    prometheus.Gauge
}

// New registers the service collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		CacheHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "provenance_cache_hits_total",
			Help: "Cache lookups answered from redis.",
		}),
		CacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Name: "provenance_cache_misses_total",
			Help: "Cache lookups that fell through to the fetch function.",
		}),
		CacheSets: factory.NewCounter(prometheus.CounterOpts{
			Name: "provenance_cache_sets_total",
			Help: "Cache entries written.",
		}),
		CacheDeletes: factory.NewCounter(prometheus.CounterOpts{
			Name: "provenance_cache_deletes_total",
			Help: "Cache entries explicitly invalidated.",
		}),
		Verifications: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "provenance_verifications_total",
			Help: "Verification verdicts by status.",
		}, []string{"status"}),
		JobsCompleted: factory.NewCounter(prometheus.CounterOpts{
			Name: "provenance_jobs_completed_total",
			Help: "Async jobs that finished successfully.",
		}),
		JobsFailed: factory.NewCounter(prometheus.CounterOpts{
			Name: "provenance_jobs_failed_total",
			Help: "Async jobs that finished with an error.",
		}),
		JobsActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "provenance_jobs_active",
			Help: "Jobs currently being processed by the worker pool.",
		}),
	}
}

func (m *Metrics) RecordCacheHit() {
	if m != nil {
		m.CacheHits.Inc()
	}
}

func (m *Metrics) RecordCacheMiss() {
	if m != nil {
		m.CacheMisses.Inc()
	}
}

func (m *Metrics) RecordCacheSet() {
	if m != nil {
		m.CacheSets.Inc()
	}
}

func (m *Metrics) RecordCacheDelete() {
	if m != nil {
		m.CacheDeletes.Inc()
	}
}

func (m *Metrics) RecordVerification(status string) {
	if m != nil {
		m.Verifications.WithLabelValues(status).Inc()
	}
}

func (m *Metrics) RecordJobStart() {
	if m != nil {
		m.JobsActive.Inc()
	}
}

func (m *Metrics) RecordJobDone(failed bool) {
	if m == nil {
		return
	}
	m.JobsActive.Dec()
	if failed {
		m.JobsFailed.Inc()
	} else {
		m.JobsCompleted.Inc()
	}
}
