package stages

import (
	"context"
	"fmt"

	"github.com/Brucegx/etsy-listing-agent/core/client"
	"github.com/Brucegx/etsy-listing-agent/core/executor"
	"github.com/Brucegx/etsy-listing-agent/core/product"
	"github.com/Brucegx/etsy-listing-agent/core/run"
	"github.com/Brucegx/etsy-listing-agent/providers/storage"
)

// RenderedImage is one stored render: the slot it belongs to and the stable
// URL the storage boundary returned.
type RenderedImage struct {
	SlotIndex int    `json:"slot_index"`
	URL       string `json:"url"`
	MediaType string `json:"media_type"`
}

// RenderSet is the image-render stage artifact.
type RenderSet struct {
	Images []RenderedImage `json:"images"`
}

// StoreFactory builds the storage backend for one run, so stored images end
// up addressed under the run's own URL prefix.
type StoreFactory func(runID string) storage.Store

// ImageRender turns every aggregated prompt card into a stored image through
// an image-capable provider. The stage is optional; the workflow wires it
// only when rendering is enabled.
type ImageRender struct {
	client   *client.Client
	newStore StoreFactory
}

// NewImageRender binds the image-capable client and the storage factory.
func NewImageRender(renderClient *client.Client, newStore StoreFactory) *ImageRender {
	return &ImageRender{client: renderClient, newStore: newStore}
}

// Work returns the render unit of work. It depends only on the aggregated
// prompt set. Bytes never touch the run state; only URLs do.
func (r *ImageRender) Work() executor.WorkFunc {
	return func(ctx context.Context, scope *run.Scope, feedback string) (any, error) {
		set, err := artifactAs[*product.PromptSet](scope, "prompts")
		if err != nil {
			return nil, err
		}
		store := r.newStore(scope.RunID())

		rendered := make([]RenderedImage, 0, len(set.Cards))
		for _, card := range set.Cards {
			if err := ctx.Err(); err != nil {
				return nil, err
			}

			response, err := r.client.SendMessage(ctx, card.Prompt)
			if err != nil {
				return nil, fmt.Errorf("stages: rendering slot %d: %w", card.SlotIndex, err)
			}
			if len(response.Images) == 0 {
				return nil, fmt.Errorf("stages: rendering slot %d: model returned no image", card.SlotIndex)
			}

			image := response.Images[0]
			url, err := store.Store(ctx, image.Data, image.MediaType)
			if err != nil {
				return nil, fmt.Errorf("stages: storing render for slot %d: %w", card.SlotIndex, err)
			}
			rendered = append(rendered, RenderedImage{
				SlotIndex: card.SlotIndex,
				URL:       url,
				MediaType: image.MediaType,
			})
		}

		return &RenderSet{Images: rendered}, nil
	}
}
