// Package promadapters provides a Prometheus implementation of the lending engine's
// MetricsCollector.
package promadapters

import (
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/d-sanghavi/library-management/lending"
)

var helpTexts = map[string]string{
	lending.OperationDurationMetric:  "Duration of lending engine operations in seconds.",
	lending.OperationsMetric:         "Lending engine operations by outcome.",
	lending.ConflictRetriesMetric:    "Operations retried after a concurrency conflict.",
	lending.ConflictsExhaustedMetric: "Operations that still conflicted after the last retry.",
	lending.RetryDelayMetric:         "Backoff delay before a conflict retry in seconds.",
}

// MetricsCollector implements lending.MetricsCollector on top of Prometheus vectors:
//   - RecordDuration -> HistogramVec observed in seconds
//   - IncrementCounter -> CounterVec
//   - RecordValue -> GaugeVec
//
// Vectors are created on first use; their label names are the sorted keys of the labels passed
// that time. Later observations with a different label set are dropped.
type MetricsCollector struct {
	registerer prometheus.Registerer
	namespace  string
	buckets    []float64

	mu         sync.Mutex
	histograms map[string]*prometheus.HistogramVec
	counters   map[string]*prometheus.CounterVec
	gauges     map[string]*prometheus.GaugeVec
}

// Option configures a MetricsCollector.
type Option func(*MetricsCollector)

// WithNamespace prefixes every metric name.
func WithNamespace(namespace string) Option {
	return func(m *MetricsCollector) {
		m.namespace = namespace
	}
}

// WithBuckets sets the histogram buckets; the default is prometheus.DefBuckets.
func WithBuckets(buckets []float64) Option {
	return func(m *MetricsCollector) {
		m.buckets = buckets
	}
}

// NewMetricsCollector creates a collector that registers its vectors with registerer.
func NewMetricsCollector(registerer prometheus.Registerer, options ...Option) *MetricsCollector {
	m := &MetricsCollector{
		registerer: registerer,
		buckets:    prometheus.DefBuckets,
		histograms: make(map[string]*prometheus.HistogramVec),
		counters:   make(map[string]*prometheus.CounterVec),
		gauges:     make(map[string]*prometheus.GaugeVec),
	}

	for _, option := range options {
		option(m)
	}

	return m
}

// RecordDuration observes the duration in seconds.
func (m *MetricsCollector) RecordDuration(metric string, duration time.Duration, labels map[string]string) {
	histogram := m.histogram(metric, labels)
	if histogram == nil {
		return
	}

	if observer, err := histogram.GetMetricWith(labels); err == nil {
		observer.Observe(duration.Seconds())
	}
}

// IncrementCounter adds one to the counter.
func (m *MetricsCollector) IncrementCounter(metric string, labels map[string]string) {
	counter := m.counter(metric, labels)
	if counter == nil {
		return
	}

	if c, err := counter.GetMetricWith(labels); err == nil {
		c.Inc()
	}
}

// RecordValue sets the gauge to value.
func (m *MetricsCollector) RecordValue(metric string, value float64, labels map[string]string) {
	gauge := m.gauge(metric, labels)
	if gauge == nil {
		return
	}

	if g, err := gauge.GetMetricWith(labels); err == nil {
		g.Set(value)
	}
}

func (m *MetricsCollector) histogram(metric string, labels map[string]string) *prometheus.HistogramVec {
	m.mu.Lock()
	defer m.mu.Unlock()

	if vec, ok := m.histograms[metric]; ok {
		return vec
	}

	vec := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Name:      metric,
		Help:      helpText(metric),
		Buckets:   m.buckets,
	}, labelNames(labels))

	vec, ok := register(m.registerer, vec)
	if !ok {
		return nil
	}

	m.histograms[metric] = vec

	return vec
}

func (m *MetricsCollector) counter(metric string, labels map[string]string) *prometheus.CounterVec {
	m.mu.Lock()
	defer m.mu.Unlock()

	if vec, ok := m.counters[metric]; ok {
		return vec
	}

	vec := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      metric,
		Help:      helpText(metric),
	}, labelNames(labels))

	vec, ok := register(m.registerer, vec)
	if !ok {
		return nil
	}

	m.counters[metric] = vec

	return vec
}

func (m *MetricsCollector) gauge(metric string, labels map[string]string) *prometheus.GaugeVec {
	m.mu.Lock()
	defer m.mu.Unlock()

	if vec, ok := m.gauges[metric]; ok {
		return vec
	}

	vec := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Name:      metric,
		Help:      helpText(metric),
	}, labelNames(labels))

	vec, ok := register(m.registerer, vec)
	if !ok {
		return nil
	}

	m.gauges[metric] = vec

	return vec
}

// register returns the already registered collector when an identical one exists.
func register[T prometheus.Collector](registerer prometheus.Registerer, collector T) (T, bool) {
	err := registerer.Register(collector)
	if err == nil {
		return collector, true
	}

	var already prometheus.AlreadyRegisteredError
	if errors.As(err, &already) {
		if existing, ok := already.ExistingCollector.(T); ok {
			return existing, true
		}
	}

	var zero T

	return zero, false
}

func labelNames(labels map[string]string) []string {
	names := make([]string, 0, len(labels))
	for name := range labels {
		names = append(names, name)
	}

	slices.Sort(names)

	return names
}

func helpText(metric string) string {
	if help, ok := helpTexts[metric]; ok {
		return help
	}

	return metric
}

var _ lending.MetricsCollector = (*MetricsCollector)(nil)
