package middleware

import (
	"context"
	"time"

	"github.com/Brucegx/etsy-listing-agent/core/client"
	"github.com/Brucegx/etsy-listing-agent/internal/utils"
	"github.com/Brucegx/etsy-listing-agent/providers/ai"
	"github.com/Brucegx/etsy-listing-agent/providers/observability"
)

// NewLoggingMiddleware creates a middleware that logs every request and
// response through the given observer. Request and response previews are
// truncated so oversized prompts do not flood the log.
//
// When observer is nil the middleware falls back to the observer carried on
// the call context, and becomes a no-op when neither is present.
func NewLoggingMiddleware(observer observability.Provider) client.Middleware {
	return func(next client.SendFunc) client.SendFunc {
		return func(ctx context.Context, request ai.ChatRequest) (*ai.ChatResponse, error) {
			activeObserver := observer
			if activeObserver == nil {
				activeObserver = observability.ObserverFromContext(ctx)
			}
			if activeObserver == nil {
				return next(ctx, request)
			}

			activeObserver.Debug(ctx, "LLM request dispatched",
				observability.String(observability.AttrLLMModel, request.Model),
				observability.Int(observability.AttrRequestMessagesCount, len(request.Messages)),
				observability.Int(observability.AttrRequestToolsCount, len(request.Tools)),
			)

			startTime := time.Now()
			response, err := next(ctx, request)
			duration := time.Since(startTime)

			if err != nil {
				activeObserver.Error(ctx, "LLM request failed",
					observability.String(observability.AttrLLMModel, request.Model),
					observability.Duration(observability.AttrDuration, duration),
					observability.Error(err),
				)
				return nil, err
			}

			attrs := []observability.Attribute{
				observability.String(observability.AttrLLMModel, request.Model),
				observability.String(observability.AttrLLMFinishReason, response.FinishReason),
				observability.Duration(observability.AttrDuration, duration),
				observability.String("response.preview", utils.TruncateString(response.Content, 200)),
			}
			if response.Usage != nil {
				attrs = append(attrs,
					observability.Int(observability.AttrLLMTokensPrompt, response.Usage.PromptTokens),
					observability.Int(observability.AttrLLMTokensCompletion, response.Usage.CompletionTokens),
				)
			}
			activeObserver.Debug(ctx, "LLM request completed", attrs...)

			return response, nil
		}
	}
}
