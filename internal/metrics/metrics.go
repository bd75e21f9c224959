// Package metrics records detection and cache activity with Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder exposes the counters and histograms of the scanner and HTTP API.
type Recorder struct {
	registry     *prometheus.Registry
	detections   *prometheus.CounterVec
	placeholders *prometheus.CounterVec
	scans        *prometheus.CounterVec
	cacheLookups *prometheus.CounterVec
	errorsTotal  *prometheus.CounterVec
	latency      *prometheus.HistogramVec
	lastRun      prometheus.Gauge
}

// New creates a recorder backed by its own registry, so several recorders
// can coexist in one process.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Recorder{
		registry: reg,
		detections: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harmonic_patterns_detected_total",
				Help: "Total number of harmonic patterns detected",
			},
			[]string{"pattern", "direction", "timeframe"},
		),
		placeholders: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harmonic_placeholder_results_total",
				Help: "Total number of scans answered with placeholder patterns",
			},
			[]string{"timeframe"},
		),
		scans: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harmonic_scans_total",
				Help: "Total number of scans by outcome status",
			},
			[]string{"status"},
		),
		cacheLookups: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harmonic_cache_lookups_total",
				Help: "Result cache lookups by outcome",
			},
			[]string{"result"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harmonic_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "harmonic_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		lastRun: f.NewGauge(prometheus.GaugeOpts{
			Name: "harmonic_scheduler_last_run_timestamp_seconds",
			Help: "Unix time of the last completed scheduled scan",
		}),
	}
}

// RecordDetection counts one real detection.
func (r *Recorder) RecordDetection(pattern, direction, timeframe string) {
	r.detections.WithLabelValues(pattern, direction, timeframe).Inc()
}

// RecordPlaceholder counts a scan that fell back to placeholders.
func (r *Recorder) RecordPlaceholder(timeframe string) {
	r.placeholders.WithLabelValues(timeframe).Inc()
}

// RecordScan counts a scan by its result status.
func (r *Recorder) RecordScan(status string) {
	r.scans.WithLabelValues(status).Inc()
}

// RecordCacheHit records a cache hit.
func (r *Recorder) RecordCacheHit() {
	r.cacheLookups.WithLabelValues("hit").Inc()
}

// RecordCacheMiss records a cache miss.
func (r *Recorder) RecordCacheMiss() {
	r.cacheLookups.WithLabelValues("miss").Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency.
func (r *Recorder) RecordLatency(op string, d time.Duration) {
	r.latency.WithLabelValues(op).Observe(d.Seconds())
}

// RecordScheduledRun stamps the completion time of a scheduled scan.
func (r *Recorder) RecordScheduledRun(t time.Time) {
	r.lastRun.Set(float64(t.Unix()))
}

// Registry returns the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
