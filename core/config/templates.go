package config

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Templates holds the prompt template bodies injected as configuration. The
// engine only ever performs placeholder substitution on them; wording is
// entirely the rule file author's business. Placeholders use {name} syntax.
type Templates struct {
	// Preprocess is the vision-call template. Placeholders: product_id,
	// category, spreadsheet_row, image_files.
	Preprocess string `yaml:"preprocess"`

	// Strategy produces the image strategy. Placeholders: product_data_json,
	// category, slot_count.
	Strategy string `yaml:"strategy"`

	// Listing produces the e-commerce listing copy. Placeholders:
	// product_data_json, product_id.
	Listing string `yaml:"listing"`

	// PromptGenSystem is the system prompt for the agentic prompt generator.
	PromptGenSystem string `yaml:"prompt_gen_system"`

	// PromptGen is the per-slot user message. Placeholders: category,
	// materials, style, dimensions, selling_points, visual_features,
	// direction, description, creative_block, reference_anchor, refs_list.
	PromptGen string `yaml:"prompt_gen"`

	// Packaging is the fixed packaging-slot prompt. Placeholders:
	// product_type, product_size. Packaging slots never hit the model.
	Packaging string `yaml:"packaging"`

	// ReviewCriteria maps a stage name to the independent semantic review
	// criteria for its output. The judge sees only these criteria and the
	// output itself, never the prompt that produced it.
	ReviewCriteria map[string]string `yaml:"review_criteria"`
}

// ParseTemplates decodes a YAML template file.
func ParseTemplates(data []byte) (*Templates, error) {
	var templates Templates
	if err := yaml.Unmarshal(data, &templates); err != nil {
		return nil, fmt.Errorf("config: parsing templates: %w", err)
	}
	return &templates, nil
}

// CriteriaFor returns the semantic review criteria for a stage, or "" when
// the stage has none configured (the semantic tier is then skipped).
func (t *Templates) CriteriaFor(stage string) string {
	return t.ReviewCriteria[stage]
}

// Render substitutes {name} placeholders in template with the given values.
// Unknown placeholders are left untouched so a missing variable shows up
// verbatim in the rendered output instead of disappearing silently.
func Render(template string, vars map[string]string) string {
	if len(vars) == 0 {
		return template
	}
	pairs := make([]string, 0, len(vars)*2)
	for name, value := range vars {
		pairs = append(pairs, "{"+name+"}", value)
	}
	return strings.NewReplacer(pairs...).Replace(template)
}
