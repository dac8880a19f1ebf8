package observability

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestAttributeConstructors(t *testing.T) {
	tests := []struct {
		name          string
		attribute     Attribute
		expectedKey   string
		expectedValue any
	}{
		{"string", String("run.id", "abc"), "run.id", "abc"},
		{"int", Int("stage.attempt", 2), "stage.attempt", 2},
		{"int64", Int64("llm.tokens.total", 128), "llm.tokens.total", int64(128)},
		{"float64", Float64("score", 0.5), "score", 0.5},
		{"bool", Bool("branch.required", true), "branch.required", true},
		{"duration", Duration("duration", time.Second), "duration", time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.attribute.Key != tt.expectedKey {
				t.Errorf("expected key %q, got %q", tt.expectedKey, tt.attribute.Key)
			}
			if tt.attribute.Value != tt.expectedValue {
				t.Errorf("expected value %v, got %v", tt.expectedValue, tt.attribute.Value)
			}
		})
	}
}

func TestStringSliceAttribute(t *testing.T) {
	attribute := StringSlice("graph.level.nodes", []string{"a", "b"})
	if attribute.Key != "graph.level.nodes" {
		t.Errorf("unexpected key %q", attribute.Key)
	}
	values, ok := attribute.Value.([]string)
	if !ok || len(values) != 2 {
		t.Fatalf("expected 2-element string slice, got %v", attribute.Value)
	}
}

func TestErrorAttribute(t *testing.T) {
	attribute := Error(errors.New("stage failed"))
	if attribute.Key != AttrError {
		t.Errorf("expected key %q, got %q", AttrError, attribute.Key)
	}
	if attribute.Value != "stage failed" {
		t.Errorf("unexpected value %v", attribute.Value)
	}
}

func TestErrorAttributeWithNilError(t *testing.T) {
	attribute := Error(nil)
	if attribute.Key != AttrError {
		t.Errorf("expected key %q, got %q", AttrError, attribute.Key)
	}
	if attribute.Value != "" {
		t.Errorf("expected empty value for nil error, got %v", attribute.Value)
	}
}

type noopSpan struct{}

func (noopSpan) End()                              {}
func (noopSpan) SetAttributes(...Attribute)        {}
func (noopSpan) SetStatus(StatusCode, string)      {}
func (noopSpan) RecordError(error)                 {}
func (noopSpan) AddEvent(string, ...Attribute)     {}

func TestSpanContextRoundTrip(t *testing.T) {
	span := noopSpan{}
	ctx := ContextWithSpan(context.Background(), span)

	retrieved := SpanFromContext(ctx)
	if retrieved == nil {
		t.Fatal("expected span from context, got nil")
	}
}

func TestSpanFromContextWithoutSpan(t *testing.T) {
	if span := SpanFromContext(context.Background()); span != nil {
		t.Errorf("expected nil span, got %v", span)
	}
	if span := SpanFromContext(nil); span != nil { //nolint:staticcheck // nil context is part of the contract
		t.Errorf("expected nil span for nil context, got %v", span)
	}
}

func TestObserverFromContextWithoutObserver(t *testing.T) {
	if observer := ObserverFromContext(context.Background()); observer != nil {
		t.Errorf("expected nil observer, got %v", observer)
	}
}
