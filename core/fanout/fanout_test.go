package fanout

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/Brucegx/etsy-listing-agent/core/executor"
	"github.com/Brucegx/etsy-listing-agent/core/run"
	"github.com/Brucegx/etsy-listing-agent/core/validate"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func passGate() *validate.Gate {
	return &validate.Gate{
		Schema: validate.TierFunc(func(ctx context.Context, output any) (validate.Result, error) {
			return validate.Pass(validate.TierSchema), nil
		}),
	}
}

func failGate() *validate.Gate {
	return &validate.Gate{
		Schema: validate.TierFunc(func(ctx context.Context, output any) (validate.Result, error) {
			return validate.Fail(validate.TierSchema, validate.Issue{Reason: "rejected"}), nil
		}),
	}
}

func fanoutState(t *testing.T) *run.State {
	t.Helper()
	state := run.New(run.Inputs{ProductID: "R-1001", Category: "rings"})
	require.NoError(t, state.SetArtifact("preprocess", "product data"))
	require.NoError(t, state.SetArtifact("strategy", "strategy plan"))
	return state
}

func promptBranch(id int, gate *validate.Gate, required bool) BranchDef {
	return BranchDef{
		ID:       id,
		Required: required,
		Stage: executor.StageDef{
			Name: fmt.Sprintf("prompt_gen[%d]", id),
			Work: func(ctx context.Context, scope *run.Scope, feedback string) (any, error) {
				return fmt.Sprintf("prompt card %d", id), nil
			},
			Gate:     gate,
			RetryCap: 1,
		},
		AllowedKeys: []string{"preprocess", "strategy"},
	}
}

func TestRunAggregatesAllBranchesByID(t *testing.T) {
	branches := []BranchDef{
		promptBranch(3, passGate(), true),
		promptBranch(1, passGate(), true),
		promptBranch(2, passGate(), true),
	}

	aggregate, err := New().Run(context.Background(), fanoutState(t), branches)
	require.NoError(t, err)
	require.Len(t, aggregate.Results, 3)

	// Ordered by branch ID, not arrival order.
	for i, result := range aggregate.Results {
		assert.Equal(t, i+1, result.ID)
		require.NotNil(t, result.Outcome)
		assert.True(t, result.Outcome.Passed)
		assert.Equal(t, fmt.Sprintf("prompt card %d", i+1), result.Outcome.Output)
	}

	card := aggregate.Result(2)
	require.NotNil(t, card)
	assert.Equal(t, "prompt card 2", card.Outcome.Output)
}

func TestRunRequiredBranchFailureCarriesPartialResults(t *testing.T) {
	branches := []BranchDef{
		promptBranch(1, passGate(), true),
		promptBranch(2, failGate(), true),
		promptBranch(3, passGate(), true),
	}

	aggregate, err := New().Run(context.Background(), fanoutState(t), branches)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrBranchFailed))
	require.NotNil(t, aggregate)

	assert.Equal(t, []int{2}, aggregate.FailedRequired)

	// Successful siblings are retained for diagnostics.
	assert.True(t, aggregate.Result(1).Outcome.Passed)
	assert.True(t, aggregate.Result(3).Outcome.Passed)
	assert.False(t, aggregate.Result(2).Outcome.Passed)
	assert.NotEmpty(t, aggregate.Records())
}

func TestRunOptionalBranchFailureDoesNotFailAggregate(t *testing.T) {
	branches := []BranchDef{
		promptBranch(1, passGate(), true),
		promptBranch(2, failGate(), false),
	}

	aggregate, err := New().Run(context.Background(), fanoutState(t), branches)
	require.NoError(t, err)
	assert.Empty(t, aggregate.FailedRequired)
	assert.False(t, aggregate.Result(2).Outcome.Passed)
}

func TestRunOneBranchFailureDoesNotAbortSiblings(t *testing.T) {
	var executed int32
	branches := []BranchDef{promptBranch(1, failGate(), true)}
	for id := 2; id <= 5; id++ {
		id := id
		branches = append(branches, BranchDef{
			ID:       id,
			Required: true,
			Stage: executor.StageDef{
				Name: fmt.Sprintf("prompt_gen[%d]", id),
				Work: func(ctx context.Context, scope *run.Scope, feedback string) (any, error) {
					atomic.AddInt32(&executed, 1)
					return "card", nil
				},
				Gate:     passGate(),
				RetryCap: 1,
			},
			AllowedKeys: []string{"strategy"},
		})
	}

	aggregate, err := New().Run(context.Background(), fanoutState(t), branches)
	require.ErrorIs(t, err, ErrBranchFailed)
	assert.Equal(t, int32(4), atomic.LoadInt32(&executed))
	assert.Equal(t, []int{1}, aggregate.FailedRequired)
}

func TestRunRespectsConcurrencyCap(t *testing.T) {
	const cap = 2
	var mu sync.Mutex
	current, peak := 0, 0

	var branches []BranchDef
	for id := 1; id <= 6; id++ {
		branches = append(branches, BranchDef{
			ID:       id,
			Required: true,
			Stage: executor.StageDef{
				Name: fmt.Sprintf("prompt_gen[%d]", id),
				Work: func(ctx context.Context, scope *run.Scope, feedback string) (any, error) {
					mu.Lock()
					current++
					if current > peak {
						peak = current
					}
					mu.Unlock()

					time.Sleep(5 * time.Millisecond)

					mu.Lock()
					current--
					mu.Unlock()
					return "card", nil
				},
				Gate:     passGate(),
				RetryCap: 0,
			},
			AllowedKeys: []string{"strategy"},
		})
	}

	_, err := New(WithMaxConcurrency(cap)).Run(context.Background(), fanoutState(t), branches)
	require.NoError(t, err)
	assert.LessOrEqual(t, peak, cap)
	assert.Greater(t, peak, 0)
}

func TestRunCancellationPropagatesToBranches(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	started := make(chan struct{})
	var once sync.Once

	var branches []BranchDef
	for id := 1; id <= 3; id++ {
		branches = append(branches, BranchDef{
			ID:       id,
			Required: true,
			Stage: executor.StageDef{
				Name: fmt.Sprintf("prompt_gen[%d]", id),
				Work: func(ctx context.Context, scope *run.Scope, feedback string) (any, error) {
					once.Do(func() { close(started) })
					<-ctx.Done()
					return nil, ctx.Err()
				},
				Gate:     passGate(),
				RetryCap: 3,
			},
			AllowedKeys: []string{"strategy"},
		})
	}

	go func() {
		<-started
		cancel()
	}()

	aggregate, err := New().Run(ctx, fanoutState(t), branches)
	require.ErrorIs(t, err, context.Canceled)
	// A cancelled fan-out yields no aggregate at all: in-flight results are
	// discarded, never folded into a final state.
	assert.Nil(t, aggregate)
}

func TestRunScopesExcludeSiblingArtifacts(t *testing.T) {
	state := fanoutState(t)
	require.NoError(t, state.SetArtifact("prompts[1]", "sibling card"))

	var scopeKeys []string
	branches := []BranchDef{{
		ID:       2,
		Required: true,
		Stage: executor.StageDef{
			Name: "prompt_gen[2]",
			Work: func(ctx context.Context, scope *run.Scope, feedback string) (any, error) {
				scopeKeys = scope.Keys()
				_, visible := scope.Artifact("prompts[1]")
				assert.False(t, visible)
				return "card", nil
			},
			Gate:     passGate(),
			RetryCap: 0,
		},
		AllowedKeys: []string{"preprocess", "strategy"},
	}}

	_, err := New().Run(context.Background(), state, branches)
	require.NoError(t, err)
	assert.Equal(t, []string{"preprocess", "strategy"}, scopeKeys)
}

func TestRunFailsFastOnUnsatisfiedDependency(t *testing.T) {
	state := run.New(run.Inputs{ProductID: "R-1001"})

	branches := []BranchDef{promptBranch(1, passGate(), true)}
	_, err := New().Run(context.Background(), state, branches)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "before it exists")
}
