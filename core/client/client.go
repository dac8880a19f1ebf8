// Package client wraps an ai.Provider with the conveniences the pipeline
// stages need: a middleware chain (retry, timeout, logging), an optional
// bounded tool-execution loop, and typed structured output via
// StructuredClient. Clients are stateless; every call carries its own
// message history.
package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Brucegx/etsy-listing-agent/internal/jsonschema"
	"github.com/Brucegx/etsy-listing-agent/providers/ai"
	"github.com/Brucegx/etsy-listing-agent/providers/observability"
	"github.com/Brucegx/etsy-listing-agent/providers/tool"
)

// ErrToolTurnsExhausted is returned by SendMessages when the model is still
// requesting tools after the configured number of turns. The last response is
// returned alongside it so callers can decide whether the draft is usable.
var ErrToolTurnsExhausted = errors.New("listing-agent: tool turns exhausted")

// defaultMaxToolTurns bounds the tool loop when no explicit cap is set.
const defaultMaxToolTurns = 10

// Client is a stateless LLM client bound to one provider and model.
type Client struct {
	provider         ai.Provider
	observer         observability.Provider
	model            string
	systemPrompt     string
	generationConfig *ai.GenerationConfig
	defaultSchema    *jsonschema.Schema
	tools            map[string]tool.GenericTool
	toolDescriptions []ai.ToolDescription
	maxToolTurns     int
	sendChain        SendFunc
}

// Options collects the functional options accepted by New.
type Options struct {
	Model            string
	SystemPrompt     string
	GenerationConfig *ai.GenerationConfig
	Observer         observability.Provider
	Tools            []tool.GenericTool
	Middlewares      []Middleware
	MaxToolTurns     int
}

// WithModel sets the model identifier sent on every request.
func WithModel(model string) func(*Options) {
	return func(o *Options) {
		o.Model = model
	}
}

// WithSystemPrompt sets the system prompt sent on every request.
func WithSystemPrompt(systemPrompt string) func(*Options) {
	return func(o *Options) {
		o.SystemPrompt = systemPrompt
	}
}

// WithGenerationConfig sets sampling parameters for every request.
func WithGenerationConfig(config ai.GenerationConfig) func(*Options) {
	return func(o *Options) {
		o.GenerationConfig = &config
	}
}

// WithObserver attaches an observability provider. It is propagated on the
// context so providers and tools can enrich the active span.
func WithObserver(observer observability.Provider) func(*Options) {
	return func(o *Options) {
		o.Observer = observer
	}
}

// WithTools registers tools the model may call. When any tools are registered
// SendMessages runs the bounded tool loop.
func WithTools(tools ...tool.GenericTool) func(*Options) {
	return func(o *Options) {
		o.Tools = append(o.Tools, tools...)
	}
}

// WithMiddlewares installs the middleware chain. The first middleware is the
// outermost wrapper.
func WithMiddlewares(middlewares ...Middleware) func(*Options) {
	return func(o *Options) {
		o.Middlewares = append(o.Middlewares, middlewares...)
	}
}

// WithMaxToolTurns caps the number of model turns in the tool loop.
func WithMaxToolTurns(maxTurns int) func(*Options) {
	return func(o *Options) {
		o.MaxToolTurns = maxTurns
	}
}

// New creates a Client for the given provider.
func New(provider ai.Provider, opts ...func(*Options)) (*Client, error) {
	if provider == nil {
		return nil, fmt.Errorf("client: provider must not be nil")
	}

	options := &Options{}
	for _, opt := range opts {
		opt(options)
	}

	maxToolTurns := options.MaxToolTurns
	if maxToolTurns <= 0 {
		maxToolTurns = defaultMaxToolTurns
	}

	c := &Client{
		provider:         provider,
		observer:         options.Observer,
		model:            options.Model,
		systemPrompt:     options.SystemPrompt,
		generationConfig: options.GenerationConfig,
		tools:            make(map[string]tool.GenericTool, len(options.Tools)),
		maxToolTurns:     maxToolTurns,
		sendChain:        buildSendChain(provider, options.Middlewares),
	}

	for _, genericTool := range options.Tools {
		info := genericTool.ToolInfo()
		if _, exists := c.tools[info.Name]; exists {
			return nil, fmt.Errorf("client: duplicate tool %q", info.Name)
		}
		c.tools[info.Name] = genericTool
		c.toolDescriptions = append(c.toolDescriptions, info)
	}

	return c, nil
}

// Observer returns the observability provider configured on this client,
// or nil when observability is disabled.
func (c *Client) Observer() observability.Provider {
	return c.observer
}

// SetDefaultOutputSchema sets the schema applied to every request that does
// not override it. Used by StructuredClient.
func (c *Client) SetDefaultOutputSchema(schema *jsonschema.Schema) {
	c.defaultSchema = schema
}

// SendMessageOptions customizes a single request.
type SendMessageOptions struct {
	OutputSchema *jsonschema.Schema
}

// SendMessageOption mutates SendMessageOptions.
type SendMessageOption func(*SendMessageOptions)

// WithOutputSchema overrides the output schema for one request.
func WithOutputSchema(schema *jsonschema.Schema) SendMessageOption {
	return func(o *SendMessageOptions) {
		o.OutputSchema = schema
	}
}

// SendMessage sends a single user prompt and returns the final response,
// running the tool loop when tools are registered.
func (c *Client) SendMessage(ctx context.Context, prompt string, opts ...SendMessageOption) (*ai.ChatResponse, error) {
	if prompt == "" {
		return nil, fmt.Errorf("client: prompt must not be empty")
	}
	return c.SendMessages(ctx, []ai.Message{{Role: ai.RoleUser, Content: prompt}}, opts...)
}

// SendMessages sends a prepared message history (possibly multimodal) and
// returns the final response. When tools are registered and the model
// requests them, the loop executes the tools, feeds results back, and asks
// again, up to the configured turn cap. On exhaustion the last response is
// returned together with ErrToolTurnsExhausted.
func (c *Client) SendMessages(ctx context.Context, messages []ai.Message, opts ...SendMessageOption) (*ai.ChatResponse, error) {
	options := &SendMessageOptions{OutputSchema: c.defaultSchema}
	for _, opt := range opts {
		opt(options)
	}

	ctx, span := c.observeStart(ctx, messages)
	startTime := time.Now()

	conversation := make([]ai.Message, len(messages))
	copy(conversation, messages)

	var response *ai.ChatResponse
	var err error

	for turn := 0; turn < c.maxToolTurns; turn++ {
		response, err = c.sendChain(ctx, c.buildRequest(conversation, options))
		if err != nil {
			c.observeEnd(ctx, span, nil, time.Since(startTime), err)
			return nil, err
		}

		if len(response.ToolCalls) == 0 || len(c.tools) == 0 || c.provider.IsStopMessage(response) {
			c.observeEnd(ctx, span, response, time.Since(startTime), nil)
			return response, nil
		}

		conversation = append(conversation, ai.Message{
			Role:      ai.RoleAssistant,
			Content:   response.Content,
			ToolCalls: response.ToolCalls,
		})
		conversation = append(conversation, c.executeToolCalls(ctx, response.ToolCalls)...)
	}

	err = fmt.Errorf("%w after %d turns", ErrToolTurnsExhausted, c.maxToolTurns)
	c.observeEnd(ctx, span, response, time.Since(startTime), err)
	return response, err
}

func (c *Client) buildRequest(messages []ai.Message, options *SendMessageOptions) ai.ChatRequest {
	request := ai.ChatRequest{
		Model:            c.model,
		Messages:         messages,
		SystemPrompt:     c.systemPrompt,
		Tools:            c.toolDescriptions,
		GenerationConfig: c.generationConfig,
	}
	if options.OutputSchema != nil {
		request.ResponseFormat = &ai.ResponseFormat{
			OutputSchema: options.OutputSchema,
			Strict:       true,
		}
	}
	return request
}

// executeToolCalls runs every requested tool and converts the results into
// tool messages. Execution errors become structured error results so the
// model can recover instead of the loop aborting.
func (c *Client) executeToolCalls(ctx context.Context, toolCalls []ai.ToolCall) []ai.Message {
	results := make([]ai.Message, 0, len(toolCalls))

	for _, toolCall := range toolCalls {
		name := toolCall.Function.Name
		var resultJSON string

		registeredTool, exists := c.tools[name]
		if !exists {
			resultJSON, _ = ai.NewToolResultError("tool_not_found", fmt.Sprintf("tool %q is not registered", name)).ToJSON()
		} else {
			output, err := registeredTool.Call(ctx, toolCall.Function.Arguments)
			if err != nil {
				if c.observer != nil {
					c.observer.Warn(ctx, "tool execution failed",
						observability.String(observability.AttrToolName, name),
						observability.Error(err),
					)
				}
				resultJSON, _ = ai.NewToolResultError("tool_execution_failed", err.Error()).ToJSON()
			} else {
				resultJSON = output
			}
		}

		results = append(results, ai.Message{
			Role:       ai.RoleTool,
			ToolCallID: toolCall.ID,
			Name:       name,
			Content:    resultJSON,
		})
	}

	return results
}

func (c *Client) observeStart(ctx context.Context, messages []ai.Message) (context.Context, observability.Span) {
	if c.observer == nil {
		return ctx, nil
	}

	ctx, span := c.observer.StartSpan(ctx, observability.SpanClientSendMessage,
		observability.String(observability.AttrLLMModel, c.model),
		observability.Int(observability.AttrRequestMessagesCount, len(messages)),
		observability.Int(observability.AttrRequestToolsCount, len(c.toolDescriptions)),
	)
	ctx = observability.ContextWithSpan(ctx, span)
	ctx = observability.ContextWithObserver(ctx, c.observer)
	return ctx, span
}

func (c *Client) observeEnd(ctx context.Context, span observability.Span, response *ai.ChatResponse, duration time.Duration, err error) {
	if c.observer == nil {
		return
	}

	c.observer.Counter(observability.MetricClientRequestCount).Add(ctx, 1,
		observability.String(observability.AttrLLMModel, c.model),
	)
	c.observer.Histogram(observability.MetricClientRequestDuration).Record(ctx, duration.Seconds())

	if response != nil && response.Usage != nil {
		c.observer.Counter(observability.MetricClientTokensTotal).Add(ctx, int64(response.Usage.TotalTokens))
	}

	if span == nil {
		return
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(observability.StatusError, "send failed")
	} else {
		span.SetStatus(observability.StatusOK, "send completed")
	}
	span.End()
}
