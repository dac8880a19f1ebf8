// Package run holds the run state document threaded through the workflow
// graph: caller inputs, per-stage artifacts, retry accounting, and the
// append-only validation history. The state is owned by the single driving
// loop; branches only ever see read-only scopes forked from it.
package run

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Brucegx/etsy-listing-agent/core/validate"
)

// Status is the run lifecycle state. Terminal statuses are absorbing.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// InputImage is one caller-supplied product photo.
type InputImage struct {
	Filename  string `json:"filename"`
	MediaType string `json:"media_type"`
	Data      []byte `json:"-"`
}

// Inputs is the immutable snapshot of caller-supplied data.
type Inputs struct {
	ProductID string            `json:"product_id"`
	Category  string            `json:"category"`
	Material  string            `json:"material"`
	Size      string            `json:"size"`
	Images    []InputImage      `json:"images"`
	Row       map[string]string `json:"row,omitempty"`

	// Callback is an optional notification target recorded for the
	// notifier boundary; the engine never interprets it.
	Callback string `json:"callback,omitempty"`
}

// ValidationRecord is one entry in the append-only validation history.
type ValidationRecord struct {
	Stage        string           `json:"stage"`
	Attempt      int              `json:"attempt"`
	Tier         validate.Tier    `json:"tier"`
	Passed       bool             `json:"passed"`
	Inconclusive bool             `json:"inconclusive,omitempty"`
	Issues       []validate.Issue `json:"issues,omitempty"`
	Feedback     string           `json:"feedback,omitempty"`
	Timestamp    time.Time        `json:"timestamp"`
}

// State is the accumulating run document. Mutate it only from the workflow's
// driving loop.
type State struct {
	RunID        string `json:"run_id"`
	CurrentStage string `json:"current_stage"`
	Status       Status `json:"status"`
	Inputs       Inputs `json:"inputs"`

	// Artifacts maps a stage name to its first passing output. A stage's
	// key is written at most once.
	Artifacts map[string]any `json:"artifacts"`

	// RetryCounts maps a stage name to consumed retries.
	RetryCounts map[string]int `json:"retry_counts"`

	ValidationHistory []ValidationRecord `json:"validation_history"`

	// FailureStage and FailureReason identify the unrecoverable stage on a
	// failed run.
	FailureStage  string `json:"failure_stage,omitempty"`
	FailureReason string `json:"failure_reason,omitempty"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitzero"`
}

// New creates a running state with a fresh run ID.
func New(inputs Inputs) *State {
	return &State{
		RunID:       uuid.NewString(),
		Status:      StatusRunning,
		Inputs:      inputs,
		Artifacts:   make(map[string]any),
		RetryCounts: make(map[string]int),
		StartedAt:   time.Now().UTC(),
	}
}

// Terminal reports whether the run has reached an absorbing status.
func (s *State) Terminal() bool {
	return s.Status == StatusCompleted || s.Status == StatusFailed
}

// SetArtifact records a stage's first passing output. Writing a stage key
// twice or writing after a terminal status is a driver bug.
func (s *State) SetArtifact(stage string, output any) error {
	if s.Terminal() {
		return fmt.Errorf("run %s: artifact write for %q after terminal status %s", s.RunID, stage, s.Status)
	}
	if _, exists := s.Artifacts[stage]; exists {
		return fmt.Errorf("run %s: artifact for %q already written", s.RunID, stage)
	}
	s.Artifacts[stage] = output
	return nil
}

// Artifact returns the stored output for a stage.
func (s *State) Artifact(stage string) (any, bool) {
	output, ok := s.Artifacts[stage]
	return output, ok
}

// Record appends validation records to the history. The history is
// append-only; records are never mutated retroactively.
func (s *State) Record(records ...ValidationRecord) {
	s.ValidationHistory = append(s.ValidationHistory, records...)
}

// HistoryFor returns the records for one stage, in order.
func (s *State) HistoryFor(stage string) []ValidationRecord {
	var records []ValidationRecord
	for _, record := range s.ValidationHistory {
		if record.Stage == stage {
			records = append(records, record)
		}
	}
	return records
}

// ConsumeRetry increments a stage's retry counter and returns the new count.
func (s *State) ConsumeRetry(stage string) int {
	s.RetryCounts[stage]++
	return s.RetryCounts[stage]
}

// Complete marks the run completed.
func (s *State) Complete() {
	if s.Terminal() {
		return
	}
	s.Status = StatusCompleted
	s.CurrentStage = ""
	s.FinishedAt = time.Now().UTC()
}

// Fail marks the run failed at the given stage.
func (s *State) Fail(stage, reason string) {
	if s.Terminal() {
		return
	}
	s.Status = StatusFailed
	s.FailureStage = stage
	s.FailureReason = reason
	s.FinishedAt = time.Now().UTC()
}
