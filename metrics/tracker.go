// Package metrics counts what a run did: uploads, dedup hits, failures, rewritten documents and
// trashed assets.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// DefaultNamespace ...
const DefaultNamespace = "assetpipe"

// Tracker receives pipeline and collector events. Implementations must be safe for concurrent use.
type Tracker interface {
	ImageUploaded(sizeBytes int, duration time.Duration)
	ImageDeduplicated()
	ImageSkipped()
	ImageFailed(reason string)
	DocumentProcessed(modified bool)
	AssetTrashed()
}

// NewNoop returns a Tracker that drops every event.
func NewNoop() Tracker {
	return noopTracker{}
}

type noopTracker struct{}

func (noopTracker) ImageUploaded(int, time.Duration) {}
func (noopTracker) ImageDeduplicated()               {}
func (noopTracker) ImageSkipped()                    {}
func (noopTracker) ImageFailed(string)               {}
func (noopTracker) DocumentProcessed(bool)           {}
func (noopTracker) AssetTrashed()                    {}

// PrometheusTracker keeps the counters in its own registry.
type PrometheusTracker struct {
	registry *prometheus.Registry

	images         *prometheus.CounterVec
	failures       *prometheus.CounterVec
	documents      *prometheus.CounterVec
	uploadedBytes  prometheus.Counter
	uploadDuration prometheus.Histogram
	trashed        prometheus.Counter
}

// NewPrometheusTracker ...
func NewPrometheusTracker(namespace string) (*PrometheusTracker, error) {
	if namespace == "" {
		namespace = DefaultNamespace
	}

	t := &PrometheusTracker{
		registry: prometheus.NewRegistry(),
		images: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "images_total",
			Help:      "Image references handled, by outcome.",
		}, []string{"outcome"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "image_failures_total",
			Help:      "Failed image references, by reason.",
		}, []string{"reason"}),
		documents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "documents_total",
			Help:      "Documents processed, by whether they were rewritten.",
		}, []string{"modified"}),
		uploadedBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploaded_bytes_total",
			Help:      "Encoded bytes written to the object store.",
		}),
		uploadDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upload_duration_seconds",
			Help:      "Latency of object store writes.",
			Buckets:   prometheus.DefBuckets,
		}),
		trashed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "assets_trashed_total",
			Help:      "Unreferenced attachments moved to the trash.",
		}),
	}

	for _, c := range []prometheus.Collector{t.images, t.failures, t.documents, t.uploadedBytes, t.uploadDuration, t.trashed} {
		if err := t.registry.Register(c); err != nil {
			return nil, fmt.Errorf("register metric: %w", err)
		}
	}
	return t, nil
}

// Registry ...
func (t *PrometheusTracker) Registry() *prometheus.Registry {
	return t.registry
}

// WriteTextfile exports the counters in the node exporter textfile format.
func (t *PrometheusTracker) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, t.registry); err != nil {
		return fmt.Errorf("write metrics to %s: %w", path, err)
	}
	return nil
}

// ImageUploaded ...
func (t *PrometheusTracker) ImageUploaded(sizeBytes int, duration time.Duration) {
	t.images.WithLabelValues("uploaded").Inc()
	t.uploadedBytes.Add(float64(sizeBytes))
	t.uploadDuration.Observe(duration.Seconds())
}

// ImageDeduplicated ...
func (t *PrometheusTracker) ImageDeduplicated() {
	t.images.WithLabelValues("deduplicated").Inc()
}

// ImageSkipped ...
func (t *PrometheusTracker) ImageSkipped() {
	t.images.WithLabelValues("skipped").Inc()
}

// ImageFailed ...
func (t *PrometheusTracker) ImageFailed(reason string) {
	t.images.WithLabelValues("failed").Inc()
	t.failures.WithLabelValues(reason).Inc()
}

// DocumentProcessed ...
func (t *PrometheusTracker) DocumentProcessed(modified bool) {
	t.documents.WithLabelValues(fmt.Sprintf("%t", modified)).Inc()
}

// AssetTrashed ...
func (t *PrometheusTracker) AssetTrashed() {
	t.trashed.Inc()
}
