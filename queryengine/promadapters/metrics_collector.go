// Package promadapters implements queryengine.MetricsCollector with Prometheus collectors.
package promadapters

import (
	"errors"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/AntonStoeckl/embedded-query-engine-go/queryengine"
)

const helpPrefix = "Query engine "

var ErrNilRegisterer = errors.New("nil prometheus registerer supplied")

// MetricsCollector registers one vector per metric name on first use. The label names of a metric
// are fixed by its first observation; later observations with other label names are dropped.
type MetricsCollector struct {
	registerer prometheus.Registerer

	mu         sync.Mutex
	histograms map[string]*prometheus.HistogramVec
	counters   map[string]*prometheus.CounterVec
	gauges     map[string]*prometheus.GaugeVec
}

func NewMetricsCollector(registerer prometheus.Registerer) (*MetricsCollector, error) {
	if registerer == nil {
		return nil, ErrNilRegisterer
	}

	return &MetricsCollector{
		registerer: registerer,
		histograms: make(map[string]*prometheus.HistogramVec),
		counters:   make(map[string]*prometheus.CounterVec),
		gauges:     make(map[string]*prometheus.GaugeVec),
	}, nil
}

// RecordDuration observes duration in seconds.
func (m *MetricsCollector) RecordDuration(name string, duration time.Duration, labels map[string]string) {
	vec, ok := vector(m, m.histograms, name, labels, func(labelNames []string) *prometheus.HistogramVec {
		return prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    name,
			Help:    helpPrefix + help(name),
			Buckets: prometheus.DefBuckets,
		}, labelNames)
	})
	if !ok {
		return
	}

	if observer, err := vec.GetMetricWith(labels); err == nil {
		observer.Observe(duration.Seconds())
	}
}

func (m *MetricsCollector) IncrementCounter(name string, labels map[string]string) {
	vec, ok := vector(m, m.counters, name, labels, func(labelNames []string) *prometheus.CounterVec {
		return prometheus.NewCounterVec(prometheus.CounterOpts{Name: name, Help: helpPrefix + help(name)}, labelNames)
	})
	if !ok {
		return
	}

	if counter, err := vec.GetMetricWith(labels); err == nil {
		counter.Inc()
	}
}

func (m *MetricsCollector) RecordValue(name string, value float64, labels map[string]string) {
	vec, ok := vector(m, m.gauges, name, labels, func(labelNames []string) *prometheus.GaugeVec {
		return prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: name, Help: helpPrefix + help(name)}, labelNames)
	})
	if !ok {
		return
	}

	if gauge, err := vec.GetMetricWith(labels); err == nil {
		gauge.Set(value)
	}
}

// vector returns the cached vector for name, or creates and registers it.
// A vector another collector already registered under the same name is reused.
func vector[V prometheus.Collector](
	m *MetricsCollector,
	cache map[string]V,
	name string,
	labels map[string]string,
	create func(labelNames []string) V,
) (V, bool) {

	m.mu.Lock()
	defer m.mu.Unlock()

	if cached, ok := cache[name]; ok {
		return cached, true
	}

	labelNames := make([]string, 0, len(labels))
	for key := range labels {
		labelNames = append(labelNames, key)
	}
	slices.Sort(labelNames)

	created := create(labelNames)
	if err := m.registerer.Register(created); err != nil {
		var alreadyRegistered prometheus.AlreadyRegisteredError
		if !errors.As(err, &alreadyRegistered) {
			var zero V
			return zero, false
		}

		existing, ok := alreadyRegistered.ExistingCollector.(V)
		if !ok {
			var zero V
			return zero, false
		}

		created = existing
	}

	cache[name] = created

	return created, true
}

// help turns queryengine_query_duration_seconds into "query duration seconds".
func help(name string) string {
	return strings.ReplaceAll(strings.TrimPrefix(name, "queryengine_"), "_", " ")
}

var _ queryengine.MetricsCollector = (*MetricsCollector)(nil)
