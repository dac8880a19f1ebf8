package client

import (
	"context"
	"fmt"

	"github.com/Brucegx/etsy-listing-agent/core/parse"
	"github.com/Brucegx/etsy-listing-agent/internal/jsonschema"
	"github.com/Brucegx/etsy-listing-agent/providers/ai"
)

// StructuredClient wraps a base Client with type-safe structured output.
// The generic parameter T defines the expected response structure: its JSON
// schema is generated once at construction, applied to every request, and the
// response content is parsed back into T.
//
// Example:
//
//	type Listing struct {
//	    Title string   `json:"title" jsonschema:"required"`
//	    Tags  []string `json:"tags" jsonschema:"required"`
//	}
//
//	listingClient, err := client.NewStructured[Listing](provider,
//	    client.WithModel("gpt-4o"),
//	)
//	resp, err := listingClient.SendMessage(ctx, "Write the listing for ...")
//	fmt.Println(resp.Data.Title, resp.Raw.Usage.TotalTokens)
type StructuredClient[T any] struct {
	*Client
	schema *jsonschema.Schema
}

// StructuredResponse pairs the parsed data with the raw provider response.
type StructuredResponse[T any] struct {
	Data T
	Raw  *ai.ChatResponse
}

// NewStructured creates a StructuredClient[T] by constructing a base Client
// with the provided options and generating the schema for T.
func NewStructured[T any](llmProvider ai.Provider, opts ...func(*Options)) (*StructuredClient[T], error) {
	base, err := New(llmProvider, opts...)
	if err != nil {
		return nil, err
	}
	return FromBaseClient[T](base)
}

// FromBaseClient wraps an already-configured Client for structured output of
// type T. The schema is generated once and installed as the client default.
func FromBaseClient[T any](base *Client) (*StructuredClient[T], error) {
	if base == nil {
		return nil, fmt.Errorf("client: base client must not be nil")
	}
	schema, err := jsonschema.Generate[T]()
	if err != nil {
		return nil, fmt.Errorf("client: schema generation for %T failed: %w", *new(T), err)
	}
	base.SetDefaultOutputSchema(schema)
	return &StructuredClient[T]{
		Client: base,
		schema: schema,
	}, nil
}

// Schema returns the JSON schema used for structured output.
func (sc *StructuredClient[T]) Schema() *jsonschema.Schema {
	return sc.schema
}

// SendMessage sends a user prompt and returns the parsed structured response.
func (sc *StructuredClient[T]) SendMessage(ctx context.Context, prompt string, opts ...SendMessageOption) (*StructuredResponse[T], error) {
	resp, err := sc.Client.SendMessage(ctx, prompt, opts...)
	if err != nil {
		return nil, err
	}
	return sc.parseResponse(resp)
}

// SendMessages sends a prepared (possibly multimodal) message history and
// returns the parsed structured response. This is the entry point for the
// vision preprocess call, where product photos ride along as image parts.
func (sc *StructuredClient[T]) SendMessages(ctx context.Context, messages []ai.Message, opts ...SendMessageOption) (*StructuredResponse[T], error) {
	resp, err := sc.Client.SendMessages(ctx, messages, opts...)
	if err != nil {
		return nil, err
	}
	return sc.parseResponse(resp)
}

func (sc *StructuredClient[T]) parseResponse(resp *ai.ChatResponse) (*StructuredResponse[T], error) {
	if resp == nil {
		return nil, fmt.Errorf("client: response is nil")
	}
	data, err := parse.ParseStringAs[T](resp.Content)
	if err != nil {
		return nil, fmt.Errorf("client: failed to parse structured output: %w", err)
	}
	return &StructuredResponse[T]{Data: data, Raw: resp}, nil
}
