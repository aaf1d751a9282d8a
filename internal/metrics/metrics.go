// Package metrics exposes Prometheus instrumentation for memory operations.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type storeMetrics struct {
	opTotal    *prometheus.CounterVec
	opDuration *prometheus.HistogramVec

	searchDuration   prometheus.Histogram
	searchCandidates prometheus.Histogram

	liveMemories prometheus.Gauge
	stagedBlobs  prometheus.Gauge
}

var (
	metricsOnce sync.Once
	metricsInst *storeMetrics
)

func getMetrics() *storeMetrics {
	metricsOnce.Do(func() {
		m := &storeMetrics{
			opTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "keepsake_op_total",
					Help: "Completed memory operations by name and status.",
				},
				[]string{"op", "status"},
			),
			opDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "keepsake_op_duration_seconds",
					Help:    "Memory operation duration in seconds by name.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"op"},
			),
			searchDuration: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "keepsake_search_duration_seconds",
					Help:    "Ranked search duration in seconds.",
					Buckets: prometheus.DefBuckets,
				},
			),
			searchCandidates: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "keepsake_search_candidates",
					Help:    "Stage-one candidate count per search.",
					Buckets: []float64{0, 1, 2, 5, 10, 20, 50, 100, 200},
				},
			),
			liveMemories: prometheus.NewGauge(
				prometheus.GaugeOpts{
					Name: "keepsake_memories_live",
					Help: "Current live memory record count.",
				},
			),
			stagedBlobs: prometheus.NewGauge(
				prometheus.GaugeOpts{
					Name: "keepsake_staged_blobs",
					Help: "Files currently waiting in the blob staging area.",
				},
			),
		}

		prometheus.MustRegister(
			m.opTotal,
			m.opDuration,
			m.searchDuration,
			m.searchCandidates,
			m.liveMemories,
			m.stagedBlobs,
		)

		metricsInst = m
	})

	return metricsInst
}

// EnsureRegistered initializes and registers metrics the first time it is called.
func EnsureRegistered() {
	_ = getMetrics()
}

// Handler serves the Prometheus scrape endpoint.
func Handler() http.Handler {
	EnsureRegistered()
	return promhttp.Handler()
}

// RecordOp tracks one completed operation.
func RecordOp(op string, duration time.Duration, success bool) {
	m := getMetrics()
	status := "error"
	if success {
		status = "success"
	}
	m.opTotal.WithLabelValues(op, status).Inc()
	m.opDuration.WithLabelValues(op).Observe(duration.Seconds())
}

// RecordSearch tracks one ranked search.
func RecordSearch(duration time.Duration, candidates int) {
	m := getMetrics()
	m.searchDuration.Observe(duration.Seconds())
	m.searchCandidates.Observe(float64(candidates))
}

// SetLiveMemories updates the live record gauge.
func SetLiveMemories(count int) {
	getMetrics().liveMemories.Set(float64(count))
}

// SetStagedBlobs updates the staging area gauge.
func SetStagedBlobs(count int) {
	getMetrics().stagedBlobs.Set(float64(count))
}
