// Package metrics provides Prometheus metrics for the detection pipeline.
package metrics

import (
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

// Pipeline stages reported by StageDuration.
const (
	StagePreprocess  = "preprocess"
	StageInference   = "inference"
	StagePostprocess = "postprocess"
	StageTotal       = "total"
)

// Request outcomes reported by RequestsTotal.
const (
	StatusSuccess      = "success"
	StatusInputMissing = "input_missing"
	StatusInference    = "inference_error"
	StatusConfig       = "config_error"
)

// DetectorMetrics contains all Prometheus metrics related to detection requests.
type DetectorMetrics struct {
	RequestsTotal *prometheus.CounterVec
	StageDuration *prometheus.HistogramVec
	LabelsTotal   *prometheus.CounterVec
	CacheHits     prometheus.Counter

	registry *prometheus.Registry
}

// NewDetectorMetrics creates the metrics and registers them with registry.
func NewDetectorMetrics(registry *prometheus.Registry) (*DetectorMetrics, error) {
	m := &DetectorMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, errors.Wrap(err, "failed to register detector metrics")
	}
	return m, nil
}

func (m *DetectorMetrics) initMetrics() {
	m.RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "detect_requests_total",
			Help: "Total number of detection requests partitioned by outcome.",
		},
		[]string{"status"},
	)

	m.StageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "detect_stage_duration_seconds",
			Help:    "Time spent in each stage of the detection pipeline.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14), // 0.5ms to ~4s
		},
		[]string{"stage"},
	)

	m.LabelsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "detect_labels_total",
			Help: "Total number of times each label was returned.",
		},
		[]string{"label"},
	)

	m.CacheHits = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "detect_cache_hits_total",
			Help: "Total number of requests answered from the result cache.",
		},
	)
}

// RecordRequest counts one request with the given outcome.
func (m *DetectorMetrics) RecordRequest(status string) {
	m.RequestsTotal.WithLabelValues(status).Inc()
}

// RecordStage observes the duration of one pipeline stage.
func (m *DetectorMetrics) RecordStage(stage string, d time.Duration) {
	m.StageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// RecordLabels counts every returned label once.
func (m *DetectorMetrics) RecordLabels(labels []string) {
	for _, label := range labels {
		m.LabelsTotal.WithLabelValues(label).Inc()
	}
}

// RecordCacheHit counts a request served from the cache.
func (m *DetectorMetrics) RecordCacheHit() {
	m.CacheHits.Inc()
}

// Describe implements the prometheus.Collector interface.
func (m *DetectorMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.RequestsTotal.Describe(ch)
	m.StageDuration.Describe(ch)
	m.LabelsTotal.Describe(ch)
	ch <- m.CacheHits.Desc()
}

// Collect implements the prometheus.Collector interface.
func (m *DetectorMetrics) Collect(ch chan<- prometheus.Metric) {
	m.RequestsTotal.Collect(ch)
	m.StageDuration.Collect(ch)
	m.LabelsTotal.Collect(ch)
	ch <- m.CacheHits
}
