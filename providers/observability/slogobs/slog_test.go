package slogobs

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/Brucegx/etsy-listing-agent/providers/observability"
)

func newBufferedObserver(level slog.Level) (*Observer, *bytes.Buffer) {
	var buf bytes.Buffer
	observer := New(
		WithOutput(&buf),
		WithLevel(level),
		WithFormat(FormatText),
	)
	return observer, &buf
}

func TestInfoLogsMessageAndAttributes(t *testing.T) {
	observer, buf := newBufferedObserver(slog.LevelInfo)

	observer.Info(context.Background(), "stage completed",
		observability.String("stage.name", "preprocess"),
	)

	output := buf.String()
	if !strings.Contains(output, "stage completed") {
		t.Errorf("expected message in output, got %q", output)
	}
	if !strings.Contains(output, "stage.name=preprocess") {
		t.Errorf("expected attribute in output, got %q", output)
	}
}

func TestDebugFilteredAtInfoLevel(t *testing.T) {
	observer, buf := newBufferedObserver(slog.LevelInfo)

	observer.Debug(context.Background(), "should be filtered")

	if buf.Len() != 0 {
		t.Errorf("expected no output at info level, got %q", buf.String())
	}
}

func TestTraceVisibleAtTraceLevel(t *testing.T) {
	observer, buf := newBufferedObserver(LevelTrace)

	observer.Trace(context.Background(), "wire detail")

	if !strings.Contains(buf.String(), "wire detail") {
		t.Errorf("expected trace output, got %q", buf.String())
	}
}

func TestSpanLifecycle(t *testing.T) {
	observer, buf := newBufferedObserver(slog.LevelDebug)

	_, span := observer.StartSpan(context.Background(), "pipeline.run",
		observability.String("run.id", "run-1"),
	)
	span.SetAttributes(observability.Int("stage.attempt", 1))
	span.SetStatus(observability.StatusOK, "completed")
	span.End()

	output := buf.String()
	if !strings.Contains(output, "span.start") {
		t.Errorf("expected span start event, got %q", output)
	}
	if !strings.Contains(output, "span.end") {
		t.Errorf("expected span end event, got %q", output)
	}
	if !strings.Contains(output, "status=ok") {
		t.Errorf("expected ok status on span end, got %q", output)
	}
}

func TestSpanRecordErrorLogsAtErrorLevel(t *testing.T) {
	observer, buf := newBufferedObserver(slog.LevelError)

	_, span := observer.StartSpan(context.Background(), "pipeline.stage.execute")
	span.RecordError(errors.New("validation exhausted"))

	if !strings.Contains(buf.String(), "validation exhausted") {
		t.Errorf("expected recorded error in output, got %q", buf.String())
	}
}

func TestCounterAccumulates(t *testing.T) {
	observer, buf := newBufferedObserver(slog.LevelDebug)
	ctx := context.Background()

	counter := observer.Counter("listing.stage.retry.count")
	counter.Add(ctx, 1)
	counter.Add(ctx, 2)

	if !strings.Contains(buf.String(), "value=3") {
		t.Errorf("expected cumulative value 3 in output, got %q", buf.String())
	}
}

func TestCounterIdentityByName(t *testing.T) {
	observer, _ := newBufferedObserver(slog.LevelDebug)

	first := observer.Counter("listing.client.request.count")
	second := observer.Counter("listing.client.request.count")

	if first != second {
		t.Error("expected the same counter instance for the same name")
	}
}

func TestHistogramRecords(t *testing.T) {
	observer, buf := newBufferedObserver(slog.LevelDebug)

	observer.Histogram("listing.stage.duration").Record(context.Background(), 1.5)

	if !strings.Contains(buf.String(), "value=1.5") {
		t.Errorf("expected histogram value in output, got %q", buf.String())
	}
}

func TestJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	observer := New(WithOutput(&buf), WithLevel(slog.LevelInfo), WithFormat(FormatJSON))

	observer.Info(context.Background(), "run started")

	if !strings.Contains(buf.String(), `"msg":"run started"`) {
		t.Errorf("expected JSON output, got %q", buf.String())
	}
}

func TestWithLoggerBypassesHandlerOptions(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	observer := New(WithLogger(logger))

	observer.Info(context.Background(), "custom logger")

	if !strings.Contains(buf.String(), `"msg":"custom logger"`) {
		t.Errorf("expected output through provided logger, got %q", buf.String())
	}
}
