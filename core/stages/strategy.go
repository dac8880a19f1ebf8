package stages

import (
	"context"
	"fmt"

	"github.com/Brucegx/etsy-listing-agent/core/client"
	"github.com/Brucegx/etsy-listing-agent/core/config"
	"github.com/Brucegx/etsy-listing-agent/core/executor"
	"github.com/Brucegx/etsy-listing-agent/core/product"
	"github.com/Brucegx/etsy-listing-agent/core/run"
)

// Strategy plans the image slot lineup from the preprocessed product data.
type Strategy struct {
	client    *client.StructuredClient[product.Strategy]
	templates *config.Templates
	slotCount int
}

// NewStrategy binds the planning client, templates, and the slot count the
// plan must fill exactly.
func NewStrategy(structuredClient *client.StructuredClient[product.Strategy], templates *config.Templates, slotCount int) *Strategy {
	return &Strategy{client: structuredClient, templates: templates, slotCount: slotCount}
}

// Work returns the strategy unit of work. It depends only on the preprocess
// artifact.
func (s *Strategy) Work() executor.WorkFunc {
	return func(ctx context.Context, scope *run.Scope, feedback string) (any, error) {
		data, err := artifactAs[*product.Data](scope, "preprocess")
		if err != nil {
			return nil, err
		}

		payload, err := productJSON(data)
		if err != nil {
			return nil, err
		}

		prompt := config.Render(s.templates.Strategy, map[string]string{
			"product_data_json": payload,
			"category":          data.Category,
			"slot_count":        fmt.Sprintf("%d", s.slotCount),
		})
		prompt = withFeedback(prompt, feedback)

		response, err := s.client.SendMessage(ctx, prompt)
		if err != nil {
			return nil, fmt.Errorf("stages: strategy: %w", err)
		}

		strategy := response.Data
		return &strategy, nil
	}
}
