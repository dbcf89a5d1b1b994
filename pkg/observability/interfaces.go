// Package observability provides the logging, metrics, and tracing
// primitives shared by every layer of the case service.
package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Config holds the configuration for all observability components
type Config struct {
	Tracing TracingConfig `json:"tracing,omitempty" mapstructure:"tracing"`
	Metrics MetricsConfig `json:"metrics,omitempty" mapstructure:"metrics"`
	Logging LoggingConfig `json:"logging,omitempty" mapstructure:"logging"`
}

// TracingConfig holds the configuration for tracing
type TracingConfig struct {
	Enabled     bool   `json:"enabled" mapstructure:"enabled"`
	ServiceName string `json:"service_name,omitempty" mapstructure:"service_name"`
	Environment string `json:"environment,omitempty" mapstructure:"environment"`
	Endpoint    string `json:"endpoint,omitempty" mapstructure:"endpoint"`
}

// MetricsConfig holds the configuration for metrics
type MetricsConfig struct {
	Enabled   bool   `json:"enabled" mapstructure:"enabled"`
	Namespace string `json:"namespace,omitempty" mapstructure:"namespace"`
}

// LoggingConfig holds the configuration for logging
type LoggingConfig struct {
	// Level is the minimum log level to emit
	Level  string `json:"level,omitempty" mapstructure:"level"`
	Format string `json:"format,omitempty" mapstructure:"format"`
}

// LogLevel defines log message severity
type LogLevel string

// Log levels
const (
	LogLevelDebug LogLevel = "DEBUG"
	LogLevelInfo  LogLevel = "INFO"
	LogLevelWarn  LogLevel = "WARN"
	LogLevelError LogLevel = "ERROR"
	LogLevelFatal LogLevel = "FATAL"
)

// Logger defines the interface for logging
type Logger interface {
	// Core logging methods with fields
	Debug(msg string, fields map[string]interface{})
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
	Fatal(msg string, fields map[string]interface{})

	// Formatted logging methods
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Fatalf(format string, args ...interface{})

	// Context methods
	WithPrefix(prefix string) Logger
	With(fields map[string]interface{}) Logger
}

// MetricsClient defines the interface for metrics collection
type MetricsClient interface {
	RecordCounter(name string, value float64, labels map[string]string)
	RecordGauge(name string, value float64, labels map[string]string)
	RecordHistogram(name string, value float64, labels map[string]string)
	RecordTimer(name string, duration time.Duration, labels map[string]string)

	// Operation-specific metrics
	RecordCacheOperation(operation string, success bool, durationSeconds float64)
	RecordDatabaseOperation(operation string, success bool, durationSeconds float64)
	RecordAPIOperation(api string, operation string, success bool, durationSeconds float64)

	// Convenience methods
	IncrementCounter(name string, value float64)
	IncrementCounterWithLabels(name string, value float64, labels map[string]string)
	StartTimer(name string, labels map[string]string) func()

	// Lifecycle management
	Close() error
}

// Span represents a trace span
type Span interface {
	End()
	SetAttribute(key string, value interface{})
	AddEvent(name string, attributes map[string]interface{})
	RecordError(err error)
	SetStatus(code int, description string)
	SpanContext() trace.SpanContext
}

// StartSpanFunc is a function that creates and starts a new span
type StartSpanFunc func(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, Span)
