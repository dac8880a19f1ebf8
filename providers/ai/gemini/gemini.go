// Package gemini implements ai.Provider against Google's Gemini
// generateContent API. The pipeline uses it as the image-capable backend for
// the optional render stage: prompt cards go in, rendered product photos come
// back as inline image data.
package gemini

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/Brucegx/etsy-listing-agent/internal/utils"
	"github.com/Brucegx/etsy-listing-agent/providers/ai"
	"github.com/Brucegx/etsy-listing-agent/providers/observability"
)

const (
	// defaultBaseURL is the base URL for the Gemini API.
	defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
)

// GeminiProvider implements ai.Provider for the generateContent API.
type GeminiProvider struct {
	apiKey  string
	baseURL string
	client  *http.Client

	// renderImages requests image output alongside text. Image-capable
	// models reject requests that do not declare the IMAGE modality.
	renderImages bool
}

// New returns a GeminiProvider initialized from environment variables.
// It reads GEMINI_API_KEY for authentication and GEMINI_API_BASE_URL for the
// endpoint base (defaulting to the public API when unset).
func New() *GeminiProvider {
	baseURL := os.Getenv("GEMINI_API_BASE_URL")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	return &GeminiProvider{
		apiKey:  os.Getenv("GEMINI_API_KEY"),
		baseURL: baseURL,
		client:  &http.Client{},
	}
}

// WithAPIKey sets the API key and returns the provider for chaining.
func (p *GeminiProvider) WithAPIKey(apiKey string) ai.Provider {
	p.apiKey = apiKey
	return p
}

// WithBaseURL overrides the API base URL and returns the provider for chaining.
func (p *GeminiProvider) WithBaseURL(baseURL string) ai.Provider {
	p.baseURL = baseURL
	return p
}

// WithHttpClient replaces the default http.Client used for API calls.
func (p *GeminiProvider) WithHttpClient(httpClient *http.Client) ai.Provider {
	p.client = httpClient
	return p
}

// WithImageOutput toggles the IMAGE response modality. Returns
// *GeminiProvider rather than ai.Provider so it can be chained before the
// provider is handed off as the interface.
func (p *GeminiProvider) WithImageOutput(enabled bool) *GeminiProvider {
	p.renderImages = enabled
	return p
}

// SendMessage implements ai.Provider by calling generateContent and mapping
// the first candidate onto the generic response format. Inline image data in
// the candidate becomes ChatResponse.Images.
func (p *GeminiProvider) SendMessage(ctx context.Context, request ai.ChatRequest) (*ai.ChatResponse, error) {
	span := observability.SpanFromContext(ctx)
	observer := observability.ObserverFromContext(ctx)

	if span != nil {
		span.AddEvent(observability.EventLLMRequestStart)
		span.SetAttributes(
			observability.String(observability.AttrLLMProvider, "gemini"),
			observability.String(observability.AttrLLMEndpoint, p.baseURL),
			observability.String(observability.AttrLLMModel, request.Model),
		)
		defer span.AddEvent(observability.EventLLMRequestEnd)
	}

	if observer != nil {
		observer.Trace(ctx, "Gemini provider preparing request",
			observability.String(observability.AttrLLMProvider, "gemini"),
			observability.String(observability.AttrLLMModel, request.Model),
			observability.Int(observability.AttrRequestMessagesCount, len(request.Messages)),
		)
	}

	if p.apiKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is not set")
	}
	if request.Model == "" {
		return nil, fmt.Errorf("gemini requires an explicit model name")
	}

	geminiReq := requestToGemini(request, p.renderImages)
	url := fmt.Sprintf("%s/models/%s:generateContent", p.baseURL, request.Model)

	// Gemini authenticates with the x-goog-api-key header, not a Bearer token.
	httpResponse, resp, err := utils.DoPostSync[geminiResponse](
		ctx,
		p.client,
		url,
		"",
		geminiReq,
		utils.HeaderOption{Key: "x-goog-api-key", Value: p.apiKey},
	)
	if err != nil {
		if observer != nil {
			observer.Trace(ctx, "HTTP request failed", observability.Error(err))
		}
		return nil, err
	}

	if resp == nil || len(resp.Candidates) == 0 {
		return nil, fmt.Errorf("empty response from Gemini API: %s", httpResponse.Status)
	}

	result, err := geminiToGeneric(*resp)
	if err != nil {
		return nil, err
	}
	result.Model = request.Model

	if span != nil {
		span.SetAttributes(
			observability.String(observability.AttrLLMFinishReason, result.FinishReason),
			observability.Int(observability.AttrHTTPStatusCode, httpResponse.StatusCode),
		)
		if result.Usage != nil {
			span.AddEvent(observability.EventTokensReceived,
				observability.Int(observability.AttrLLMTokensTotal, result.Usage.TotalTokens),
			)
		}
	}

	return result, nil
}

// IsStopMessage reports whether message is a terminal response. Gemini has no
// tool-calling path in this pipeline, so any response with content or images
// and a terminal finish reason is a stop.
func (p *GeminiProvider) IsStopMessage(message *ai.ChatResponse) bool {
	if message == nil {
		return true
	}
	switch message.FinishReason {
	case "STOP", "MAX_TOKENS", "SAFETY", "stop", "length":
		return true
	}
	return message.Content == "" && len(message.Images) == 0
}
