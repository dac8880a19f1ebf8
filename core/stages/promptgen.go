package stages

import (
	"context"
	"fmt"
	"strings"

	"github.com/Brucegx/etsy-listing-agent/core/client"
	"github.com/Brucegx/etsy-listing-agent/core/config"
	"github.com/Brucegx/etsy-listing-agent/core/executor"
	"github.com/Brucegx/etsy-listing-agent/core/product"
	"github.com/Brucegx/etsy-listing-agent/core/run"
)

// PromptGen generates the final rendering prompt for one strategy slot. The
// client may carry tools (reference reader, prompt checker) so the model can
// research and self-check inside its bounded tool loop; the external gate
// still decides afterwards.
type PromptGen struct {
	client    *client.StructuredClient[product.PromptCard]
	templates *config.Templates
}

// NewPromptGen binds the generation client and the template set.
func NewPromptGen(structuredClient *client.StructuredClient[product.PromptCard], templates *config.Templates) *PromptGen {
	return &PromptGen{client: structuredClient, templates: templates}
}

// SlotArtifactKey names the per-slot artifact a prompt branch reads. The
// workflow materializes one such artifact per slot so each branch's scope
// holds its own slot definition and nothing of the sibling slots or the
// strategy analysis.
func SlotArtifactKey(slotIndex int) string {
	return fmt.Sprintf("strategy.slots[%d]", slotIndex)
}

// WorkFor returns the unit of work for one slot index. The branch reads only
// the preprocessed data and its own slot artifact; the rest of the strategy
// never enters its scope. Packaging slots never hit the model: their prompt
// is a fixed template over the product type and size, anchored the same way
// as every other card.
func (g *PromptGen) WorkFor(slotIndex int) executor.WorkFunc {
	return func(ctx context.Context, scope *run.Scope, feedback string) (any, error) {
		data, err := artifactAs[*product.Data](scope, "preprocess")
		if err != nil {
			return nil, err
		}
		slot, err := artifactAs[*product.Slot](scope, SlotArtifactKey(slotIndex))
		if err != nil {
			return nil, err
		}

		references := referenceImages(data, slot.Type)

		if slot.Type == "packaging" {
			return g.packagingCard(data, slot, references), nil
		}

		prompt := config.Render(g.templates.PromptGen, map[string]string{
			"category":         data.Category,
			"materials":        strings.Join(data.Materials, ", "),
			"style":            data.Style,
			"dimensions":       data.Size.Dimensions,
			"selling_points":   formatSellingPoints(data.SellingPoints),
			"visual_features":  formatVisualFeatures(data.VisualFeatures),
			"direction":        formatDirection(slot.CreativeDirection),
			"description":      slot.Description,
			"creative_block":   slot.Rationale,
			"reference_anchor": data.ReferenceAnchor,
			"refs_list":        formatRefsList(references),
		})
		prompt = withFeedback(prompt, feedback)

		response, err := g.client.SendMessage(ctx, prompt)
		if err != nil {
			return nil, fmt.Errorf("stages: prompt_gen slot %d: %w", slotIndex, err)
		}

		card := response.Data
		// The branch identity is authoritative; the model only writes the
		// prompt text.
		card.SlotIndex = slot.Index
		card.Type = slot.Type
		if len(card.ReferenceImages) == 0 {
			card.ReferenceImages = references
		}
		return &card, nil
	}
}

// packagingCard builds the fixed packaging prompt: the reference anchor block
// followed by the configured template with the product type and size filled
// in.
func (g *PromptGen) packagingCard(data *product.Data, slot *product.Slot, references []string) *product.PromptCard {
	prompt := config.Render(g.templates.Packaging, map[string]string{
		"product_type": data.Category,
		"product_size": data.Size.Dimensions,
	})
	if anchor := strings.TrimSpace(data.ReferenceAnchor); anchor != "" {
		prompt = anchor + "\n\n" + prompt
	}
	return &product.PromptCard{
		SlotIndex:       slot.Index,
		Type:            slot.Type,
		ReferenceImages: references,
		Prompt:          prompt,
	}
}

// referenceImages picks the 3 reference shots for a card, hero first. A
// packaging slot gets the box shot appended as a fourth reference when one
// was supplied.
func referenceImages(data *product.Data, slotType string) []string {
	references := make([]string, 0, 4)
	if hero := data.HeroImage(); hero != nil {
		references = append(references, hero.Filename)
	}
	for _, image := range data.Images {
		if len(references) == 3 {
			break
		}
		if image.Hero || image.Type == "packaging" || containsString(references, image.Filename) {
			continue
		}
		references = append(references, image.Filename)
	}

	if slotType == "packaging" {
		for _, image := range data.Images {
			if image.Type == "packaging" && !containsString(references, image.Filename) {
				references = append(references, image.Filename)
				break
			}
		}
	}
	return references
}

func containsString(values []string, value string) bool {
	for _, v := range values {
		if v == value {
			return true
		}
	}
	return false
}

func formatSellingPoints(points []product.SellingPoint) string {
	lines := make([]string, 0, len(points))
	for _, point := range points {
		if point.Benefit != "" {
			lines = append(lines, "- "+point.Feature+": "+point.Benefit)
		} else {
			lines = append(lines, "- "+point.Feature)
		}
	}
	return strings.Join(lines, "\n")
}

func formatVisualFeatures(features product.VisualFeatures) string {
	lines := make([]string, 0, 4)
	for _, pair := range []struct{ label, value string }{
		{"material finish", features.MaterialFinish},
		{"color tone", features.ColorTone},
		{"surface quality", features.SurfaceQuality},
		{"light interaction", features.LightInteraction},
	} {
		if pair.value != "" {
			lines = append(lines, pair.label+": "+pair.value)
		}
	}
	return strings.Join(lines, "\n")
}

func formatDirection(direction product.CreativeDirection) string {
	lines := make([]string, 0, 5)
	for _, pair := range []struct{ label, value string }{
		{"style series", direction.StyleSeries},
		{"pose", direction.Pose},
		{"scene module", direction.SceneModule},
		{"mood", direction.Mood},
		{"key visual", direction.KeyVisual},
	} {
		if pair.value != "" {
			lines = append(lines, pair.label+": "+pair.value)
		}
	}
	return strings.Join(lines, "\n")
}

func formatRefsList(references []string) string {
	lines := make([]string, len(references))
	for i, name := range references {
		lines[i] = fmt.Sprintf("%d. %s", i+1, name)
	}
	return strings.Join(lines, "\n")
}
