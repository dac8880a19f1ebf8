package middleware

import (
	"context"
	"time"

	"github.com/Brucegx/etsy-listing-agent/core/client"
	"github.com/Brucegx/etsy-listing-agent/providers/ai"
)

// NewTimeoutMiddleware creates a middleware that enforces a per-request
// deadline by wrapping the context with context.WithTimeout. If the caller
// supplies a context that already has a shorter deadline, the shorter
// deadline wins as per normal context semantics.
func NewTimeoutMiddleware(timeout time.Duration) client.Middleware {
	return func(next client.SendFunc) client.SendFunc {
		return func(ctx context.Context, request ai.ChatRequest) (*ai.ChatResponse, error) {
			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			return next(ctx, request)
		}
	}
}
