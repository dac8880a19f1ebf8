package workflow

import (
	"context"
	"fmt"

	"github.com/Brucegx/etsy-listing-agent/providers/observability"
)

// EventSink receives a step-named progress event after every stage
// transition. Sinks are injected, never ambient, so each run's trace is
// independently constructable.
type EventSink interface {
	RecordEvent(runID, stage string, payload map[string]any)
}

// EventSinkFunc adapts a function to EventSink.
type EventSinkFunc func(runID, stage string, payload map[string]any)

// RecordEvent implements EventSink.
func (f EventSinkFunc) RecordEvent(runID, stage string, payload map[string]any) {
	f(runID, stage, payload)
}

// LogSink is the default sink: progress events go to the structured logger.
type LogSink struct {
	observer observability.Provider
}

// NewLogSink creates a log-backed event sink.
func NewLogSink(observer observability.Provider) *LogSink {
	return &LogSink{observer: observer}
}

// RecordEvent implements EventSink.
func (s *LogSink) RecordEvent(runID, stage string, payload map[string]any) {
	if s.observer == nil {
		return
	}
	attrs := make([]observability.Attribute, 0, len(payload)+2)
	attrs = append(attrs,
		observability.String(observability.AttrRunID, runID),
		observability.String(observability.AttrStage, stage),
	)
	for key, value := range payload {
		attrs = append(attrs, observability.String(key, fmt.Sprint(value)))
	}
	s.observer.Info(context.Background(), "pipeline progress", attrs...)
}
