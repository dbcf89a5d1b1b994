package observability

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// metricsClient is the default in-process metrics implementation. It keeps
// counters in memory so tests and the health endpoint can inspect them; a
// scraping backend can be attached later without touching call sites.
type metricsClient struct {
	enabled   bool
	namespace string

	mu       sync.RWMutex
	counters map[string]float64
	gauges   map[string]float64
}

// NewMetricsClient creates a metrics client with default options
func NewMetricsClient() MetricsClient {
	return NewMetricsClientWithConfig(MetricsConfig{Enabled: true})
}

// NewMetricsClientWithConfig creates a metrics client from configuration
func NewMetricsClientWithConfig(cfg MetricsConfig) MetricsClient {
	return &metricsClient{
		enabled:   cfg.Enabled,
		namespace: cfg.Namespace,
		counters:  make(map[string]float64),
		gauges:    make(map[string]float64),
	}
}

func (m *metricsClient) key(name string, labels map[string]string) string {
	if m.namespace != "" {
		name = m.namespace + "_" + name
	}
	if len(labels) == 0 {
		return name
	}
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var sb strings.Builder
	sb.WriteString(name)
	for _, k := range keys {
		sb.WriteString(fmt.Sprintf(",%s=%s", k, labels[k]))
	}
	return sb.String()
}

// RecordCounter increments a counter metric
func (m *metricsClient) RecordCounter(name string, value float64, labels map[string]string) {
	if !m.enabled {
		return
	}
	m.mu.Lock()
	m.counters[m.key(name, labels)] += value
	m.mu.Unlock()
}

// RecordGauge records a gauge metric
func (m *metricsClient) RecordGauge(name string, value float64, labels map[string]string) {
	if !m.enabled {
		return
	}
	m.mu.Lock()
	m.gauges[m.key(name, labels)] = value
	m.mu.Unlock()
}

// RecordHistogram records a histogram observation
func (m *metricsClient) RecordHistogram(name string, value float64, labels map[string]string) {
	if !m.enabled {
		return
	}
	m.mu.Lock()
	m.counters[m.key(name+"_count", labels)]++
	m.counters[m.key(name+"_sum", labels)] += value
	m.mu.Unlock()
}

// RecordTimer records a duration as a histogram in seconds
func (m *metricsClient) RecordTimer(name string, duration time.Duration, labels map[string]string) {
	m.RecordHistogram(name, duration.Seconds(), labels)
}

// RecordCacheOperation records the outcome of a cache operation
func (m *metricsClient) RecordCacheOperation(operation string, success bool, durationSeconds float64) {
	labels := map[string]string{
		"operation": operation,
		"success":   fmt.Sprintf("%t", success),
	}
	m.RecordCounter("cache_operations_total", 1, labels)
	m.RecordHistogram("cache_operation_duration_seconds", durationSeconds, labels)
}

// RecordDatabaseOperation records the outcome of a database operation
func (m *metricsClient) RecordDatabaseOperation(operation string, success bool, durationSeconds float64) {
	labels := map[string]string{
		"operation": operation,
		"success":   fmt.Sprintf("%t", success),
	}
	m.RecordCounter("database_operations_total", 1, labels)
	m.RecordHistogram("database_operation_duration_seconds", durationSeconds, labels)
}

// RecordAPIOperation records the outcome of an inbound API operation
func (m *metricsClient) RecordAPIOperation(api string, operation string, success bool, durationSeconds float64) {
	labels := map[string]string{
		"api":       api,
		"operation": operation,
		"success":   fmt.Sprintf("%t", success),
	}
	m.RecordCounter("api_operations_total", 1, labels)
	m.RecordHistogram("api_operation_duration_seconds", durationSeconds, labels)
}

// IncrementCounter increments a counter without labels
func (m *metricsClient) IncrementCounter(name string, value float64) {
	m.RecordCounter(name, value, nil)
}

// IncrementCounterWithLabels increments a counter with labels
func (m *metricsClient) IncrementCounterWithLabels(name string, value float64, labels map[string]string) {
	m.RecordCounter(name, value, labels)
}

// StartTimer returns a stop function that records the elapsed time
func (m *metricsClient) StartTimer(name string, labels map[string]string) func() {
	start := time.Now()
	return func() {
		m.RecordTimer(name, time.Since(start), labels)
	}
}

// CounterValue returns the current value of a counter. Intended for tests.
func (m *metricsClient) CounterValue(name string, labels map[string]string) float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.counters[m.key(name, labels)]
}

// Close releases metrics resources
func (m *metricsClient) Close() error {
	return nil
}

// NoopMetricsClient discards all measurements
type NoopMetricsClient struct{}

// NewNoopMetricsClient creates a metrics client that discards everything
func NewNoopMetricsClient() MetricsClient {
	return &NoopMetricsClient{}
}

func (n *NoopMetricsClient) RecordCounter(name string, value float64, labels map[string]string) {}
func (n *NoopMetricsClient) RecordGauge(name string, value float64, labels map[string]string) {}
func (n *NoopMetricsClient) RecordHistogram(name string, value float64, labels map[string]string) {}
func (n *NoopMetricsClient) RecordTimer(name string, duration time.Duration, labels map[string]string) {
}

func (n *NoopMetricsClient) RecordCacheOperation(operation string, success bool, durationSeconds float64) {
}

func (n *NoopMetricsClient) RecordDatabaseOperation(operation string, success bool, durationSeconds float64) {
}

func (n *NoopMetricsClient) RecordAPIOperation(api string, operation string, success bool, durationSeconds float64) {
}

func (n *NoopMetricsClient) IncrementCounter(name string, value float64) {}
func (n *NoopMetricsClient) IncrementCounterWithLabels(name string, value float64, labels map[string]string) {
}

func (n *NoopMetricsClient) StartTimer(name string, labels map[string]string) func() {
	return func() {}
}

func (n *NoopMetricsClient) Close() error { return nil }

var _ MetricsClient = (*metricsClient)(nil)
var _ MetricsClient = (*NoopMetricsClient)(nil)
