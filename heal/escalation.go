package heal

import (
	"context"

	"github.com/jonwraymond/healops/health"
)

// Escalator is invoked when critical dependencies fail healing and automatic
// restart is enabled. Typical implementations trigger a process restart.
type Escalator interface {
	Escalate(ctx context.Context, rec EscalationRecord) error
}

// EscalatorFunc is an adapter to allow ordinary functions to be used as
// Escalators.
type EscalatorFunc func(ctx context.Context, rec EscalationRecord) error

// Escalate calls f(ctx, rec).
func (f EscalatorFunc) Escalate(ctx context.Context, rec EscalationRecord) error {
	return f(ctx, rec)
}

// Reporter persists health snapshots after each cycle.
type Reporter interface {
	ReportHealth(ctx context.Context, agg health.Aggregate) error
}

// StartupReporter persists the outcome of a startup wait.
type StartupReporter interface {
	ReportStartup(ctx context.Context, res StartupResult) error
}
