// Package metrics instruments batch weighting with Prometheus collectors.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/leptonweighter/leptonweighter/lw"
)

const defaultNamespace = "leptonweighter"

// errorKinds are pre-registered so every label exists with a zero value.
var errorKinds = []string{"zero_support", "non_finite", "out_of_domain", "unsupported_particle", "invalid_configuration", "other"}

// Recorder records weighting outcomes.
type Recorder struct {
	namespace     string
	weightBuckets []float64

	eventsWeighted prometheus.Counter
	eventErrors    *prometheus.CounterVec
	weights        prometheus.Histogram
	oneWeights     prometheus.Histogram
	batchDuration  prometheus.Histogram
	batches        prometheus.Counter
}

// Option applies a configuration option to the Recorder.
type Option func(*Recorder)

// WithNamespace sets the namespace for all metrics.
func WithNamespace(namespace string) Option {
	return func(r *Recorder) {
		if namespace != "" {
			r.namespace = namespace
		}
	}
}

// WithWeightBuckets sets the histogram buckets for weights and one-weights.
func WithWeightBuckets(buckets []float64) Option {
	return func(r *Recorder) {
		if len(buckets) > 0 {
			r.weightBuckets = buckets
		}
	}
}

// NewRecorder registers its collectors with reg.
func NewRecorder(reg prometheus.Registerer, opts ...Option) *Recorder {
	r := &Recorder{
		namespace: defaultNamespace,
		// 1e-30 … 1e10 per decade
		weightBuckets: prometheus.ExponentialBuckets(1e-30, 10, 41),
	}
	for _, opt := range opts {
		opt(r)
	}

	factory := promauto.With(reg)
	r.eventsWeighted = factory.NewCounter(prometheus.CounterOpts{
		Namespace: r.namespace,
		Name:      "events_weighted_total",
		Help:      "Events that received a finite weight.",
	})
	r.eventErrors = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: r.namespace,
		Name:      "event_errors_total",
		Help:      "Events that failed to weight, by error kind.",
	}, []string{"kind"})
	for _, kind := range errorKinds {
		r.eventErrors.WithLabelValues(kind)
	}
	r.weights = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: r.namespace,
		Name:      "event_weight",
		Help:      "Distribution of per-event weights.",
		Buckets:   r.weightBuckets,
	})
	r.oneWeights = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: r.namespace,
		Name:      "event_oneweight",
		Help:      "Distribution of per-event one-weights.",
		Buckets:   r.weightBuckets,
	})
	r.batchDuration = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: r.namespace,
		Name:      "batch_duration_seconds",
		Help:      "Wall time to weight one batch.",
		Buckets:   prometheus.DefBuckets,
	})
	r.batches = factory.NewCounter(prometheus.CounterOpts{
		Namespace: r.namespace,
		Name:      "batches_total",
		Help:      "Batches weighted.",
	})
	return r
}

// ObserveBatch records every result of a batch and its wall time.
func (r *Recorder) ObserveBatch(results []lw.Result, elapsed time.Duration) {
	for _, res := range results {
		r.Observe(res)
	}
	r.batches.Inc()
	r.batchDuration.Observe(elapsed.Seconds())
}

// Observe records one result.
func (r *Recorder) Observe(res lw.Result) {
	if res.Err != nil {
		r.eventErrors.WithLabelValues(lw.ErrorKind(res.Err)).Inc()
		return
	}
	r.eventsWeighted.Inc()
	r.weights.Observe(res.Weight)
	r.oneWeights.Observe(res.OneWeight)
}

// WriteTextfile writes everything g gathers to path in the text exposition format, for
// the node exporter's textfile collector.
func WriteTextfile(g prometheus.Gatherer, path string) error {
	if err := prometheus.WriteToTextfile(path, g); err != nil {
		return fmt.Errorf("metrics: write %s: %w", path, err)
	}
	return nil
}
