// Package executor wraps one unit of validated work: invoke the stage's work
// function, run its validation gate, and retry with corrective feedback until
// the gate passes or the retry cap is exhausted. The executor is fully
// deterministic given the sequence of validation outcomes, and it never
// writes shared state; attempt records flow back to the caller.
package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Brucegx/etsy-listing-agent/core/run"
	"github.com/Brucegx/etsy-listing-agent/core/validate"
	"github.com/Brucegx/etsy-listing-agent/providers/observability"
)

// ErrStageExhausted is returned when a stage consumes its whole retry budget
// without producing a passing output. Fatal to the run.
var ErrStageExhausted = errors.New("listing-agent: stage retry cap exhausted")

// WorkFunc is a stage's unit of work. feedback is empty on the first attempt
// and carries the previous attempt's validation issues on retries. The work
// may be model-backed and non-deterministic; it may even self-validate
// internally, but the external gate still decides.
type WorkFunc func(ctx context.Context, scope *run.Scope, feedback string) (any, error)

// StageDef binds a named unit of work to its gate and retry policy.
type StageDef struct {
	Name string
	Work WorkFunc
	Gate *validate.Gate

	// RetryCap is the number of retries after the first attempt.
	RetryCap int

	// Timeout bounds one work invocation. A timeout consumes a retry like
	// any validation failure. Zero means no per-attempt bound.
	Timeout time.Duration

	Observer observability.Provider
}

// Outcome reports one stage execution: the passing output (when Passed),
// every attempt's validation records, and the retries consumed.
type Outcome struct {
	Stage           string
	Output          any
	Passed          bool
	Records         []run.ValidationRecord
	RetriesConsumed int
}

// Feedback returns the corrective feedback of the last failing record, used
// by callers that chain stage attempts across a fan-out boundary.
func (o *Outcome) Feedback() string {
	for i := len(o.Records) - 1; i >= 0; i-- {
		if feedback := o.Records[i].Feedback; feedback != "" {
			return feedback
		}
	}
	return ""
}

// Execute runs the stage to a terminal per-stage state. It returns the
// outcome together with ErrStageExhausted when the budget ran out, or the
// context error when the run was cancelled mid-stage. Records are returned,
// never written anywhere, so the caller stays the single writer of shared
// state.
func Execute(ctx context.Context, def StageDef, scope *run.Scope) (*Outcome, error) {
	if def.Work == nil {
		return nil, fmt.Errorf("executor: stage %q has no work function", def.Name)
	}

	outcome := &Outcome{Stage: def.Name}
	feedback := ""
	attempt := 0

	ctx, span := observeStageStart(ctx, def)
	defer endSpan(span, outcome)

	for outcome.RetriesConsumed <= def.RetryCap {
		if err := ctx.Err(); err != nil {
			return outcome, err
		}
		attempt++

		output, err := invokeWork(ctx, def, scope, feedback)
		if err != nil {
			if ctx.Err() != nil {
				return outcome, ctx.Err()
			}
			// Transport failures and per-attempt timeouts share the
			// validation retry budget; they are not an unlimited path.
			record := transportRecord(def.Name, attempt, err)
			outcome.Records = append(outcome.Records, record)
			outcome.RetriesConsumed++
			feedback = record.Feedback
			continue
		}

		// The semantic re-probe costs a retry of its own, so it is only
		// allowed while the budget can absorb both it and a failed verdict.
		// This keeps the record count hard-capped at RetryCap+1.
		reprobe := outcome.RetriesConsumed+2 <= def.RetryCap
		results, err := def.Gate.Run(ctx, output, reprobe)
		if err != nil {
			if ctx.Err() != nil {
				return outcome, ctx.Err()
			}
			return outcome, fmt.Errorf("executor: stage %q gate: %w", def.Name, err)
		}

		verdict := validate.Verdict(results)
		appendAttemptRecords(outcome, def.Name, attempt, results, verdict)

		if verdict.Passed {
			outcome.Output = output
			outcome.Passed = true
			return outcome, nil
		}

		outcome.RetriesConsumed++
		feedback = verdict.Feedback()
		observeRetry(ctx, def, outcome.RetriesConsumed)
	}

	return outcome, fmt.Errorf("executor: stage %q: %w after %d retries", def.Name, ErrStageExhausted, def.RetryCap)
}

func invokeWork(ctx context.Context, def StageDef, scope *run.Scope, feedback string) (any, error) {
	if def.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, def.Timeout)
		defer cancel()
	}
	return def.Work(ctx, scope, feedback)
}

// appendAttemptRecords converts one attempt's gate results to history
// records: every superseded inconclusive semantic probe is recorded and
// billed as a consumed retry, followed by a single verdict record. An
// inconclusive result in the verdict position is billed through the failed
// verdict instead, so the invariant holds that each record except a final
// pass maps to exactly one consumed retry.
func appendAttemptRecords(outcome *Outcome, stage string, attempt int, results []validate.Result, verdict validate.Result) {
	now := time.Now().UTC()

	for i, result := range results {
		if !result.Inconclusive || i == len(results)-1 {
			continue
		}
		outcome.Records = append(outcome.Records, run.ValidationRecord{
			Stage:        stage,
			Attempt:      attempt,
			Tier:         result.Tier,
			Inconclusive: true,
			Issues:       result.Issues,
			Timestamp:    now,
		})
		outcome.RetriesConsumed++
	}

	record := run.ValidationRecord{
		Stage:     stage,
		Attempt:   attempt,
		Tier:      verdict.Tier,
		Passed:    verdict.Passed,
		Issues:    verdict.Issues,
		Timestamp: now,
	}
	if n := len(results); n > 0 && results[n-1].Inconclusive {
		record.Inconclusive = true
	}
	if !verdict.Passed {
		record.Feedback = verdict.Feedback()
	}
	outcome.Records = append(outcome.Records, record)
}

func transportRecord(stage string, attempt int, err error) run.ValidationRecord {
	reason := "transport failure: " + err.Error()
	if errors.Is(err, context.DeadlineExceeded) {
		reason = "attempt timed out"
	}
	return run.ValidationRecord{
		Stage:     stage,
		Attempt:   attempt,
		Tier:      validate.TierTransport,
		Passed:    false,
		Issues:    []validate.Issue{{Reason: reason}},
		Feedback:  "The previous attempt did not complete: " + reason,
		Timestamp: time.Now().UTC(),
	}
}

func observeStageStart(ctx context.Context, def StageDef) (context.Context, observability.Span) {
	if def.Observer == nil {
		return ctx, nil
	}
	ctx, span := def.Observer.StartSpan(ctx, observability.SpanStageExecute,
		observability.String(observability.AttrStage, def.Name),
		observability.Int(observability.AttrStageRetryBudget, def.RetryCap),
	)
	return observability.ContextWithSpan(ctx, span), span
}

func observeRetry(ctx context.Context, def StageDef, retries int) {
	if def.Observer == nil {
		return
	}
	def.Observer.Counter(observability.MetricStageRetryCount).Add(ctx, 1,
		observability.String(observability.AttrStage, def.Name),
	)
	if span := observability.SpanFromContext(ctx); span != nil {
		span.AddEvent(observability.EventStageRetry,
			observability.Int(observability.AttrStageAttempt, retries),
		)
	}
}

func endSpan(span observability.Span, outcome *Outcome) {
	if span == nil {
		return
	}
	span.SetAttributes(
		observability.Bool(observability.AttrValidationPassed, outcome.Passed),
		observability.Int(observability.AttrStageAttempt, outcome.RetriesConsumed),
	)
	if outcome.Passed {
		span.SetStatus(observability.StatusOK, "stage passed")
	} else {
		span.SetStatus(observability.StatusError, "stage failed")
	}
	span.End()
}
