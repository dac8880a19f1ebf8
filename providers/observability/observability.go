// Package observability defines the provider-agnostic tracing, metrics, and
// logging surface used across the listing pipeline. Engine packages never talk
// to a concrete backend: they receive a Provider (usually via context) and emit
// spans, counters, histograms, and structured log events through it.
//
// The slog-backed implementation lives in the slogobs subpackage. A nil
// Provider is always valid and means observability is disabled.
package observability

import (
	"context"
	"time"
)

// Provider combines tracing, metrics, and structured logging behind one
// injectable interface.
type Provider interface {
	Tracer
	Metrics
	Logger
}

// Tracer creates spans that delimit logical units of work (a pipeline run, a
// stage attempt, an LLM call).
type Tracer interface {
	// StartSpan begins a named span and returns a context carrying it.
	// Callers must call End on the returned Span exactly once.
	StartSpan(ctx context.Context, name string, attrs ...Attribute) (context.Context, Span)
}

// Span is a single traced operation. Implementations must be safe for
// concurrent use.
type Span interface {
	// End completes the span and records its duration.
	End()
	// SetAttributes attaches additional attributes to the span.
	SetAttributes(attrs ...Attribute)
	// SetStatus records the final status of the span.
	SetStatus(code StatusCode, description string)
	// RecordError records err as an exception event on the span.
	RecordError(err error)
	// AddEvent appends a named point-in-time event to the span.
	AddEvent(name string, attrs ...Attribute)
}

// StatusCode is the terminal status of a span.
type StatusCode int

const (
	StatusUnset StatusCode = iota
	StatusOK
	StatusError
)

// Metrics exposes named instruments. Implementations return the same
// instrument for the same name, so callers fetch on every use.
type Metrics interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
}

// Counter is a monotonically increasing metric.
type Counter interface {
	Add(ctx context.Context, value int64, attrs ...Attribute)
}

// Histogram records a distribution of observed values.
type Histogram interface {
	Record(ctx context.Context, value float64, attrs ...Attribute)
}

// Logger emits leveled structured log events.
type Logger interface {
	Trace(ctx context.Context, msg string, attrs ...Attribute)
	Debug(ctx context.Context, msg string, attrs ...Attribute)
	Info(ctx context.Context, msg string, attrs ...Attribute)
	Warn(ctx context.Context, msg string, attrs ...Attribute)
	Error(ctx context.Context, msg string, attrs ...Attribute)
}

// Attribute is a key/value pair attached to spans, metrics, and log events.
type Attribute struct {
	Key   string
	Value any
}

// String creates a string attribute.
func String(key, value string) Attribute {
	return Attribute{Key: key, Value: value}
}

// Int creates an int attribute.
func Int(key string, value int) Attribute {
	return Attribute{Key: key, Value: value}
}

// Int64 creates an int64 attribute.
func Int64(key string, value int64) Attribute {
	return Attribute{Key: key, Value: value}
}

// Float64 creates a float64 attribute.
func Float64(key string, value float64) Attribute {
	return Attribute{Key: key, Value: value}
}

// Bool creates a bool attribute.
func Bool(key string, value bool) Attribute {
	return Attribute{Key: key, Value: value}
}

// Duration creates a duration attribute.
func Duration(key string, value time.Duration) Attribute {
	return Attribute{Key: key, Value: value}
}

// StringSlice creates a string-slice attribute.
func StringSlice(key string, value []string) Attribute {
	return Attribute{Key: key, Value: value}
}

// Error creates the conventional error attribute. A nil err yields an empty
// value so callers do not need to guard.
func Error(err error) Attribute {
	if err == nil {
		return Attribute{Key: AttrError, Value: ""}
	}
	return Attribute{Key: AttrError, Value: err.Error()}
}
