// Package notify is the terminal-state notification boundary. The workflow
// calls the notifier exactly once per run, after the status becomes
// completed or failed.
package notify

import (
	"context"

	"github.com/Brucegx/etsy-listing-agent/core/run"
	"github.com/Brucegx/etsy-listing-agent/providers/observability"
)

// Notifier delivers a run's terminal status to an external party.
type Notifier interface {
	Notify(ctx context.Context, runID string, status run.Status, summary string)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, runID string, status run.Status, summary string)

// Notify implements Notifier.
func (f NotifierFunc) Notify(ctx context.Context, runID string, status run.Status, summary string) {
	f(ctx, runID, status, summary)
}

// LogNotifier writes terminal notifications to the structured logger. It is
// the default when no external callback transport is configured.
type LogNotifier struct {
	observer observability.Provider
}

// NewLog creates a log-backed notifier.
func NewLog(observer observability.Provider) *LogNotifier {
	return &LogNotifier{observer: observer}
}

// Notify implements Notifier.
func (n *LogNotifier) Notify(ctx context.Context, runID string, status run.Status, summary string) {
	if n.observer == nil {
		return
	}
	attrs := []observability.Attribute{
		observability.String(observability.AttrRunID, runID),
		observability.String(observability.AttrRunStatus, string(status)),
		observability.String("summary", summary),
	}
	if status == run.StatusFailed {
		n.observer.Warn(ctx, "run finished", attrs...)
		return
	}
	n.observer.Info(ctx, "run finished", attrs...)
}
