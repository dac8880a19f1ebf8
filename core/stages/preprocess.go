// Package stages holds the units of work the workflow graph schedules: the
// preprocess vision call, strategy planning, the per-slot prompt generator,
// listing copy generation, and the optional image render. Each stage exposes
// an executor.WorkFunc; validation gates stay outside, owned by the workflow.
package stages

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/Brucegx/etsy-listing-agent/core/client"
	"github.com/Brucegx/etsy-listing-agent/core/config"
	"github.com/Brucegx/etsy-listing-agent/core/executor"
	"github.com/Brucegx/etsy-listing-agent/core/product"
	"github.com/Brucegx/etsy-listing-agent/core/run"
	"github.com/Brucegx/etsy-listing-agent/providers/ai"
)

// Preprocess turns the raw product photos plus the spreadsheet row into
// structured product data via a single multimodal call.
type Preprocess struct {
	client    *client.StructuredClient[product.Data]
	templates *config.Templates
}

// NewPreprocess binds the vision client and the template set.
func NewPreprocess(structuredClient *client.StructuredClient[product.Data], templates *config.Templates) *Preprocess {
	return &Preprocess{client: structuredClient, templates: templates}
}

// Work returns the preprocess unit of work. The product photos ride along as
// image parts; corrective feedback from a failed gate is appended to the
// text part on retries.
func (p *Preprocess) Work() executor.WorkFunc {
	return func(ctx context.Context, scope *run.Scope, feedback string) (any, error) {
		inputs := scope.Inputs()

		prompt := config.Render(p.templates.Preprocess, map[string]string{
			"product_id":      inputs.ProductID,
			"category":        inputs.Category,
			"spreadsheet_row": formatRow(inputs),
			"image_files":     inputFilenames(inputs.Images),
		})
		prompt = withFeedback(prompt, feedback)

		parts := make([]ai.ContentPart, 0, len(inputs.Images)+1)
		parts = append(parts, ai.TextPart(prompt))
		for _, image := range inputs.Images {
			parts = append(parts, ai.ImagePart(image.MediaType, base64.StdEncoding.EncodeToString(image.Data)))
		}

		response, err := p.client.SendMessages(ctx, []ai.Message{{Role: ai.RoleUser, Parts: parts}})
		if err != nil {
			return nil, fmt.Errorf("stages: preprocess: %w", err)
		}

		data := response.Data
		if data.ProductID == "" {
			data.ProductID = inputs.ProductID
		}
		return &data, nil
	}
}

// formatRow renders the spreadsheet row as stable "key: value" lines. The
// material and size columns from the submission are always included.
func formatRow(inputs run.Inputs) string {
	row := make(map[string]string, len(inputs.Row)+2)
	for key, value := range inputs.Row {
		row[key] = value
	}
	if inputs.Material != "" {
		row["material"] = inputs.Material
	}
	if inputs.Size != "" {
		row["size"] = inputs.Size
	}

	keys := make([]string, 0, len(row))
	for key := range row {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	lines := make([]string, 0, len(keys))
	for _, key := range keys {
		lines = append(lines, key+": "+row[key])
	}
	return strings.Join(lines, "\n")
}

func inputFilenames(images []run.InputImage) string {
	names := make([]string, len(images))
	for i, image := range images {
		names[i] = image.Filename
	}
	return strings.Join(names, ", ")
}

// withFeedback appends the previous attempt's validation feedback so the
// model can correct the exact issues rather than regenerate blind.
func withFeedback(prompt, feedback string) string {
	if feedback == "" {
		return prompt
	}
	return prompt + "\n\n" + feedback + "\n\nFix the listed issues and produce the corrected output."
}

// productJSON renders an artifact for inclusion in a downstream prompt.
func productJSON(value any) (string, error) {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return "", fmt.Errorf("stages: marshaling prompt payload: %w", err)
	}
	return string(data), nil
}

// artifactAs fetches a typed artifact from the scope, failing loudly when the
// branch's declared dependencies do not cover it or the type is wrong.
func artifactAs[T any](scope *run.Scope, key string) (T, error) {
	var zero T
	value, ok := scope.Artifact(key)
	if !ok {
		return zero, fmt.Errorf("stages: artifact %q not in scope", key)
	}
	typed, ok := value.(T)
	if !ok {
		return zero, fmt.Errorf("stages: artifact %q is %T, expected %T", key, value, zero)
	}
	return typed, nil
}
