package run

import (
	"fmt"
	"sort"
)

// Scope is the bounded, read-only view of a run handed to one executor
// invocation. It carries only the explicitly allowed artifact keys, which is
// what keeps sibling fan-out branches from seeing each other's intermediate
// state. Results never flow back through a scope; they return through the
// coordinator's aggregation step.
type Scope struct {
	runID     string
	inputs    Inputs
	artifacts map[string]any
}

// Fork creates a scope over the allowed subset of the state's artifacts.
// Requesting a key the state does not hold yet is an error: a branch's
// declared dependencies must already be satisfied when it starts.
func Fork(state *State, allowedKeys ...string) (*Scope, error) {
	artifacts := make(map[string]any, len(allowedKeys))
	for _, key := range allowedKeys {
		output, ok := state.Artifacts[key]
		if !ok {
			return nil, fmt.Errorf("run %s: scope requests artifact %q before it exists", state.RunID, key)
		}
		artifacts[key] = output
	}
	return &Scope{
		runID:     state.RunID,
		inputs:    state.Inputs,
		artifacts: artifacts,
	}, nil
}

// RunID returns the owning run's ID.
func (sc *Scope) RunID() string {
	return sc.runID
}

// Inputs returns the immutable caller inputs.
func (sc *Scope) Inputs() Inputs {
	return sc.inputs
}

// Artifact returns an allowed artifact by key.
func (sc *Scope) Artifact(key string) (any, bool) {
	output, ok := sc.artifacts[key]
	return output, ok
}

// Keys returns the scope's artifact keys, sorted.
func (sc *Scope) Keys() []string {
	keys := make([]string, 0, len(sc.artifacts))
	for key := range sc.artifacts {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
