package tool

import (
	"context"

	"github.com/Brucegx/etsy-listing-agent/core/config"
	"github.com/Brucegx/etsy-listing-agent/core/product"
	"github.com/Brucegx/etsy-listing-agent/core/validate"
)

// CheckPromptOutput reports the deterministic validation verdict for a draft
// prompt card.
type CheckPromptOutput struct {
	Passed bool             `json:"passed"`
	Issues []validate.Issue `json:"issues,omitempty"`
}

// NewCheckPrompt builds the check_prompt tool: the schema and rules tiers
// exposed to the model so it can validate a draft before returning it. The
// semantic tier is deliberately absent; only the external gate runs it.
func NewCheckPrompt(rules *config.RuleSet, materials []string) (GenericTool, error) {
	schema := validate.NewSchemaValidator()
	cardRules := validate.PromptCardRules(rules, materials)

	return New("check_prompt", func(ctx context.Context, input product.PromptCard) (CheckPromptOutput, error) {
		result, err := schema.Validate(ctx, &input)
		if err != nil {
			return CheckPromptOutput{}, err
		}
		if !result.Passed {
			return CheckPromptOutput{Issues: result.Issues}, nil
		}

		result, err = cardRules.Validate(ctx, &input)
		if err != nil {
			return CheckPromptOutput{}, err
		}
		if !result.Passed {
			return CheckPromptOutput{Issues: result.Issues}, nil
		}
		return CheckPromptOutput{Passed: true}, nil
	}, WithDescription("Run the deterministic validation checks against a draft prompt card and get back the issues to fix."))
}
