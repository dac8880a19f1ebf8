// Package tool defines the typed tool abstraction the prompt-generation loop
// exposes to the model, plus the concrete tools themselves (reference reader,
// prompt validator, page fetcher).
package tool

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Brucegx/etsy-listing-agent/core/parse"
	"github.com/Brucegx/etsy-listing-agent/internal/jsonschema"
	"github.com/Brucegx/etsy-listing-agent/providers/ai"
	"github.com/Brucegx/etsy-listing-agent/providers/observability"
)

// Tool binds a name and description to a strongly-typed Go function and
// derives JSON schemas for the input (I) and output (O) types via reflection.
// Use New to construct one; GenericTool is the provider-agnostic view.
type Tool[I, O any] struct {
	Name        string
	Description string
	Parameters  *jsonschema.Schema
	Function    func(ctx context.Context, input I) (O, error)
}

// GenericTool abstracts over the concrete generic type parameters of Tool so
// tools can be stored and dispatched without knowing their input/output types.
type GenericTool interface {
	// ToolInfo returns the metadata used to advertise this tool to a provider.
	ToolInfo() ai.ToolDescription

	// Call invokes the tool with a JSON-encoded input string and returns a
	// JSON-encoded output string. Returns an error if parsing or execution fails.
	Call(ctx context.Context, inputJSON string) (string, error)
}

type toolOptions struct {
	Description string
}

// WithDescription sets a human-readable description for the tool. Providers
// surface it to the model to help it decide when to invoke the tool.
func WithDescription(description string) func(*toolOptions) {
	return func(o *toolOptions) {
		o.Description = description
	}
}

// New constructs a Tool with the given name and handler function. The JSON
// schema for the input type is derived via reflection; schema generation
// errors surface as the second return value.
func New[I, O any](name string, function func(ctx context.Context, input I) (O, error), options ...func(*toolOptions)) (*Tool[I, O], error) {
	opts := &toolOptions{}
	for _, option := range options {
		option(opts)
	}

	parameters, err := jsonschema.Generate[I]()
	if err != nil {
		return nil, err
	}

	return &Tool[I, O]{
		Name:        name,
		Description: opts.Description,
		Parameters:  parameters,
		Function:    function,
	}, nil
}

// ToolInfo returns the ai.ToolDescription advertised to the provider.
func (t *Tool[I, O]) ToolInfo() ai.ToolDescription {
	return ai.ToolDescription{
		Name:        t.Name,
		Description: t.Description,
		Parameters:  t.Parameters,
	}
}

// Call invokes the underlying function with the given JSON-encoded input.
// The LLM-supplied input is parsed leniently (jsonrepair-backed) into I, the
// function executes, and the output is serialized back to JSON. Span events
// are emitted when a span is present in ctx.
func (t *Tool[I, O]) Call(ctx context.Context, inputJSON string) (string, error) {
	span := observability.SpanFromContext(ctx)

	if span != nil {
		span.AddEvent(observability.EventToolExecutionStart,
			observability.String(observability.AttrToolName, t.Name),
			observability.String(observability.AttrToolInput, inputJSON),
		)
		defer span.AddEvent(observability.EventToolExecutionEnd)
	}

	start := time.Now()

	parsedInput, err := parse.ParseStringAs[I](inputJSON)
	if err != nil {
		if span != nil {
			span.RecordError(err)
		}
		return "", err
	}

	output, err := t.Function(ctx, parsedInput)
	duration := time.Since(start)

	if err != nil {
		if span != nil {
			span.RecordError(err)
			span.SetAttributes(observability.Duration(observability.AttrToolDuration, duration))
		}
		return "", err
	}

	outputBytes, err := json.Marshal(output)
	if err != nil {
		if span != nil {
			span.RecordError(err)
		}
		return "", err
	}

	if span != nil {
		span.SetAttributes(observability.Duration(observability.AttrToolDuration, duration))
	}

	return string(outputBytes), nil
}
