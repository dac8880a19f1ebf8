// Package fanout runs N stage executions concurrently over isolated context
// scopes and folds their results back into one aggregate. Branches never
// share state; each gets its own scope forked from the run, and one branch's
// retries or failure never block or abort its siblings.
package fanout

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/Brucegx/etsy-listing-agent/core/executor"
	"github.com/Brucegx/etsy-listing-agent/core/run"
	"github.com/Brucegx/etsy-listing-agent/providers/observability"
)

// ErrBranchFailed is returned by Run when a required branch exhausted its
// retries. The aggregate still carries every passed branch's result for
// diagnostics.
var ErrBranchFailed = errors.New("listing-agent: required fan-out branch failed")

// BranchDef is one fan-out branch: a stage definition plus the artifact keys
// its scope may see and a static required flag. A non-required branch may
// fail without failing the aggregate.
type BranchDef struct {
	// ID keys the branch's result in the aggregate, typically the slot
	// index for prompt branches.
	ID int

	Stage executor.StageDef

	// AllowedKeys is the artifact subset the branch's scope is forked
	// over. Sibling outputs are structurally invisible.
	AllowedKeys []string

	// Required marks branches whose failure fails the whole aggregate.
	Required bool
}

// BranchResult pairs a branch with its terminal executor outcome.
type BranchResult struct {
	ID       int
	Required bool
	Outcome  *executor.Outcome
	Err      error
}

// Aggregate is the fan-in product: every branch's terminal result, keyed and
// ordered by branch ID, plus the IDs of failed required branches.
type Aggregate struct {
	Results        []BranchResult
	FailedRequired []int
}

// Result returns the result for a branch ID, or nil.
func (a *Aggregate) Result(id int) *BranchResult {
	for i := range a.Results {
		if a.Results[i].ID == id {
			return &a.Results[i]
		}
	}
	return nil
}

// Records flattens every branch's validation records, ordered by branch ID,
// for folding into the run history.
func (a *Aggregate) Records() []run.ValidationRecord {
	var records []run.ValidationRecord
	for _, result := range a.Results {
		if result.Outcome != nil {
			records = append(records, result.Outcome.Records...)
		}
	}
	return records
}

// Coordinator schedules branch executions with an optional concurrency cap.
type Coordinator struct {
	maxConcurrency int
	observer       observability.Provider
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithMaxConcurrency caps the number of simultaneously running branches.
// Zero or negative means unbounded.
func WithMaxConcurrency(limit int) Option {
	return func(c *Coordinator) {
		c.maxConcurrency = limit
	}
}

// WithObserver attaches an observability provider.
func WithObserver(observer observability.Provider) Option {
	return func(c *Coordinator) {
		c.observer = observer
	}
}

// New creates a Coordinator.
func New(opts ...Option) *Coordinator {
	c := &Coordinator{}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run forks a scope per branch and executes all branches concurrently,
// waiting until every branch reaches a terminal per-branch state. If any
// required branch failed, the returned error wraps ErrBranchFailed and the
// aggregate still carries the successful branches' outcomes. A cancelled
// context propagates to every in-flight branch; the caller discards partial
// results of a cancelled run.
func (c *Coordinator) Run(ctx context.Context, state *run.State, branches []BranchDef) (*Aggregate, error) {
	// Fork every scope up front, before any branch starts: scopes are
	// snapshots of the pre-fan-out state, so no branch can observe another.
	scopes := make([]*run.Scope, len(branches))
	for i, branch := range branches {
		scope, err := run.Fork(state, branch.AllowedKeys...)
		if err != nil {
			return nil, fmt.Errorf("fanout: branch %d: %w", branch.ID, err)
		}
		scopes[i] = scope
	}

	var semaphore chan struct{}
	if c.maxConcurrency > 0 {
		semaphore = make(chan struct{}, c.maxConcurrency)
	}

	results := make([]BranchResult, len(branches))
	var wg sync.WaitGroup

	for i, branch := range branches {
		wg.Add(1)
		go func(i int, branch BranchDef, scope *run.Scope) {
			defer wg.Done()

			if semaphore != nil {
				select {
				case semaphore <- struct{}{}:
					defer func() { <-semaphore }()
				case <-ctx.Done():
					results[i] = BranchResult{ID: branch.ID, Required: branch.Required, Err: ctx.Err()}
					return
				}
			}

			branchCtx := ctx
			if c.observer != nil {
				var span observability.Span
				branchCtx, span = c.observer.StartSpan(ctx, observability.SpanBranchExecute,
					observability.Int(observability.AttrBranchID, branch.ID),
					observability.Bool(observability.AttrBranchRequired, branch.Required),
				)
				defer span.End()
			}

			outcome, err := executor.Execute(branchCtx, branch.Stage, scope)
			results[i] = BranchResult{ID: branch.ID, Required: branch.Required, Outcome: outcome, Err: err}
		}(i, branch, scopes[i])
	}

	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	aggregate := &Aggregate{Results: results}
	sort.Slice(aggregate.Results, func(i, j int) bool {
		return aggregate.Results[i].ID < aggregate.Results[j].ID
	})

	for _, result := range aggregate.Results {
		if result.Required && (result.Err != nil || result.Outcome == nil || !result.Outcome.Passed) {
			aggregate.FailedRequired = append(aggregate.FailedRequired, result.ID)
		}
	}

	if len(aggregate.FailedRequired) > 0 {
		return aggregate, fmt.Errorf("fanout: branches %v: %w", aggregate.FailedRequired, ErrBranchFailed)
	}
	return aggregate, nil
}
