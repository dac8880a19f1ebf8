// Package validate implements the tiered validation gate every stage output
// must clear before the run advances: a structural schema tier, a
// deterministic business-rules tier, and a model-backed semantic tier. Tiers
// run in strict order and short-circuit on the first failure.
package validate

import (
	"context"
	"fmt"
	"strings"
)

// Tier identifies one validation level.
type Tier string

const (
	TierSchema   Tier = "schema"
	TierRules    Tier = "rules"
	TierSemantic Tier = "semantic"

	// TierTransport is not a gate tier; it labels history records for
	// attempts that never produced an output (timeouts, upstream failures),
	// which share the same retry budget as validation failures.
	TierTransport Tier = "transport"
)

// Issue is one structured validation finding.
type Issue struct {
	// Field is the path of the offending field, empty for output-wide issues.
	Field string `json:"field,omitempty"`

	// Reason is the human-readable explanation, also used verbatim as
	// corrective feedback on retry.
	Reason string `json:"reason"`
}

func (i Issue) String() string {
	if i.Field == "" {
		return i.Reason
	}
	return i.Field + ": " + i.Reason
}

// Result is the outcome of running one tier (or the whole gate, reported
// under the tier that failed).
type Result struct {
	Tier   Tier    `json:"tier"`
	Passed bool    `json:"passed"`
	Issues []Issue `json:"issues,omitempty"`

	// Inconclusive marks a semantic check whose judge call failed
	// transiently. Inconclusive is neither pass nor fail; the gate retries
	// the semantic tier once before treating it as a failure.
	Inconclusive bool `json:"inconclusive,omitempty"`
}

// Pass returns a passing result for the tier.
func Pass(tier Tier) Result {
	return Result{Tier: tier, Passed: true}
}

// Fail returns a failing result carrying the given issues.
func Fail(tier Tier, issues ...Issue) Result {
	return Result{Tier: tier, Passed: false, Issues: issues}
}

// Feedback renders the issues as the corrective feedback block handed to the
// next retry attempt.
func (r Result) Feedback() string {
	if r.Passed || len(r.Issues) == 0 {
		return ""
	}
	lines := make([]string, 0, len(r.Issues)+1)
	lines = append(lines, fmt.Sprintf("The previous attempt failed %s validation:", r.Tier))
	for _, issue := range r.Issues {
		lines = append(lines, "- "+issue.String())
	}
	return strings.Join(lines, "\n")
}

// TierValidator runs one tier against a stage output.
type TierValidator interface {
	Validate(ctx context.Context, output any) (Result, error)
}

// TierFunc adapts a function to TierValidator.
type TierFunc func(ctx context.Context, output any) (Result, error)

// Validate implements TierValidator.
func (f TierFunc) Validate(ctx context.Context, output any) (Result, error) {
	return f(ctx, output)
}

// Gate composes the three tiers for one stage. Schema and rules are
// mandatory; the semantic tier is optional (nil skips it, as does an empty
// criteria configuration upstream).
type Gate struct {
	Schema   TierValidator
	Rules    TierValidator
	Semantic TierValidator
}

// Run executes the tiers in order, short-circuiting on the first failure.
// It returns every tier result produced, last one carrying the verdict. An
// inconclusive semantic result is retried once when reprobe is true; a
// second inconclusive outcome is recorded and followed by a failing semantic
// result. Callers pass reprobe false when their retry budget has no room
// left for an extra judge call, so the first inconclusive result becomes the
// verdict directly.
func (g *Gate) Run(ctx context.Context, output any, reprobe bool) ([]Result, error) {
	var results []Result

	for _, tier := range []struct {
		name      Tier
		validator TierValidator
	}{
		{TierSchema, g.Schema},
		{TierRules, g.Rules},
	} {
		if tier.validator == nil {
			continue
		}
		result, err := tier.validator.Validate(ctx, output)
		if err != nil {
			return results, fmt.Errorf("validate: %s tier: %w", tier.name, err)
		}
		results = append(results, result)
		if !result.Passed {
			return results, nil
		}
	}

	if g.Semantic == nil {
		return results, nil
	}

	result, err := g.Semantic.Validate(ctx, output)
	if err != nil {
		return results, fmt.Errorf("validate: semantic tier: %w", err)
	}
	results = append(results, result)

	if result.Inconclusive && reprobe {
		if ctx.Err() != nil {
			return results, ctx.Err()
		}
		retried, err := g.Semantic.Validate(ctx, output)
		if err != nil {
			return results, fmt.Errorf("validate: semantic tier retry: %w", err)
		}
		results = append(results, retried)
		if retried.Inconclusive {
			results = append(results, Fail(TierSemantic, Issue{
				Reason: "semantic review inconclusive after retry",
			}))
		}
	}

	return results, nil
}

// Verdict reduces a tier result sequence to the gate's overall outcome.
func Verdict(results []Result) Result {
	if len(results) == 0 {
		return Pass(TierSchema)
	}
	last := results[len(results)-1]
	if last.Inconclusive {
		return Fail(last.Tier, Issue{Reason: "semantic review inconclusive"})
	}
	return last
}
