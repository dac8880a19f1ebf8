package validate

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Brucegx/etsy-listing-agent/providers/ai"
	"github.com/Brucegx/etsy-listing-agent/providers/observability"
)

// verdictMarker prefixes the judge's verdict line. Only the first occurrence
// counts, so a failing review that quotes the marker in its feedback cannot
// flip the verdict.
const verdictMarker = "SEMANTIC_REVIEW_RESULT:"

// judgeSystemPrompt frames the reviewer role. The criteria are injected as
// configuration; the generator's own instructions never reach the judge.
const judgeSystemPrompt = `You are a quality reviewer for e-commerce product content.
Your job is to evaluate the data against the semantic criteria provided.

%s

IMPORTANT: Respond ONLY with the exact format specified in the review criteria above.
Start your response with "SEMANTIC_REVIEW_RESULT: PASS" or "SEMANTIC_REVIEW_RESULT: FAIL".
If the result is FAIL, list the issues found, one per line, each starting with "- ".`

// JudgeClient is the slice of the LLM client the semantic tier needs.
type JudgeClient interface {
	SendMessage(ctx context.Context, prompt string) (*ai.ChatResponse, error)
}

// JudgeClientFunc adapts a function to JudgeClient.
type JudgeClientFunc func(ctx context.Context, prompt string) (*ai.ChatResponse, error)

// SendMessage implements JudgeClient.
func (f JudgeClientFunc) SendMessage(ctx context.Context, prompt string) (*ai.ChatResponse, error) {
	return f(ctx, prompt)
}

// SemanticJudge implements the semantic tier by delegating to a judge model.
// Context isolation is structural: the judge request is built from the output
// and the configured criteria only, so the generator's framing can never leak
// into its own review. A transport failure or an off-protocol response is
// reported as inconclusive, which the Gate retries once.
type SemanticJudge struct {
	client   JudgeClient
	criteria string
	observer observability.Provider
}

// NewSemanticJudge builds the semantic tier for one stage. criteria is the
// stage's independent review document; an empty criteria string makes every
// check pass, mirroring a stage with no semantic review configured.
func NewSemanticJudge(client JudgeClient, criteria string, observer observability.Provider) *SemanticJudge {
	return &SemanticJudge{client: client, criteria: criteria, observer: observer}
}

// Validate implements TierValidator.
func (j *SemanticJudge) Validate(ctx context.Context, output any) (Result, error) {
	if j.criteria == "" {
		return Pass(TierSemantic), nil
	}

	payload, err := json.MarshalIndent(output, "", "  ")
	if err != nil {
		return Result{}, fmt.Errorf("validate: marshaling output for semantic review: %w", err)
	}

	prompt := fmt.Sprintf(judgeSystemPrompt, j.criteria) +
		"\n\nPlease review the following data:\n\n```json\n" + string(payload) + "\n```\n\n" +
		"Evaluate against ALL criteria above and provide your assessment."

	response, err := j.client.SendMessage(ctx, prompt)
	if err != nil {
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		if j.observer != nil {
			j.observer.Warn(ctx, "semantic judge call failed, marking inconclusive",
				observability.Error(err),
			)
		}
		return Result{Tier: TierSemantic, Inconclusive: true, Issues: []Issue{{
			Reason: "judge call failed: " + err.Error(),
		}}}, nil
	}

	text := strings.TrimSpace(response.Content)
	switch parseVerdict(text) {
	case "PASS":
		return Pass(TierSemantic), nil
	case "FAIL":
		issues := parseJudgeIssues(text)
		if len(issues) == 0 {
			issues = []Issue{{Reason: "semantic review failed, see judge feedback"}}
		}
		return Fail(TierSemantic, issues...), nil
	default:
		// Off-protocol response: inconclusive, same as a transport failure.
		return Result{Tier: TierSemantic, Inconclusive: true, Issues: []Issue{{
			Reason: "judge response did not follow the verdict protocol",
		}}}, nil
	}
}

// parseVerdict reads the verdict anchored at the first marker occurrence,
// returning "" for an off-protocol response.
func parseVerdict(text string) string {
	start := strings.Index(text, verdictMarker)
	if start < 0 {
		return ""
	}
	rest := strings.TrimSpace(text[start+len(verdictMarker):])
	switch {
	case strings.HasPrefix(rest, "PASS"):
		return "PASS"
	case strings.HasPrefix(rest, "FAIL"):
		return "FAIL"
	}
	return ""
}

// parseJudgeIssues pulls the "- " bullet lines out of a failing verdict.
func parseJudgeIssues(text string) []Issue {
	var issues []Issue
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "- ") {
			issues = append(issues, Issue{Reason: strings.TrimSpace(trimmed[2:])})
		}
	}
	return issues
}
