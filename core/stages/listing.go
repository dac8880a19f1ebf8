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

// ListingGen produces the e-commerce listing copy. It is the independent side
// branch of the fan-out phase: its only declared dependency is the preprocess
// artifact, so it never waits on the prompt branches.
type ListingGen struct {
	client    *client.StructuredClient[product.Listing]
	templates *config.Templates
}

// NewListingGen binds the listing client and the template set.
func NewListingGen(structuredClient *client.StructuredClient[product.Listing], templates *config.Templates) *ListingGen {
	return &ListingGen{client: structuredClient, templates: templates}
}

// Work returns the listing unit of work. Overlong tags are auto-truncated at
// word boundaries before the gate sees the draft; cardinality problems are
// left for the gate to report.
func (l *ListingGen) Work() executor.WorkFunc {
	return func(ctx context.Context, scope *run.Scope, feedback string) (any, error) {
		data, err := artifactAs[*product.Data](scope, "preprocess")
		if err != nil {
			return nil, err
		}

		payload, err := productJSON(data)
		if err != nil {
			return nil, err
		}

		prompt := config.Render(l.templates.Listing, map[string]string{
			"product_data_json": payload,
			"product_id":        data.ProductID,
		})
		prompt = withFeedback(prompt, feedback)

		response, err := l.client.SendMessage(ctx, prompt)
		if err != nil {
			return nil, fmt.Errorf("stages: listing: %w", err)
		}

		listing := response.Data
		if listing.ProductID == "" {
			listing.ProductID = data.ProductID
		}
		listing.AutoFixTags()
		return &listing, nil
	}
}
