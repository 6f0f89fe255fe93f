package heal

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/jonwraymond/healops/health"
	"github.com/jonwraymond/healops/observe"
)

// Startup defaults.
const (
	DefaultStartupMaxWait = 120 * time.Second
	DefaultPollInterval   = 5 * time.Second
)

// StartupConfig configures the startup gate.
type StartupConfig struct {
	// Reporter, if set, persists the outcome of every wait.
	Reporter StartupReporter

	// Now returns the current time. Default: time.Now
	Now func() time.Time

	// Sleep implements the poll interval. Default: a context-aware timer.
	Sleep SleepFunc

	// Instruments receives startup logs and spans.
	Instruments observe.Instruments
}

// StartupResult is the outcome of a startup wait.
type StartupResult struct {
	// Ready is true when every required dependency became healthy in time.
	Ready bool

	// Attempts is the number of full health checks performed while waiting.
	Attempts int

	// Duration is the time spent waiting.
	Duration time.Duration

	// Final is the last aggregate observed.
	Final health.Aggregate

	// Required lists the dependencies that had to be healthy.
	Required []string

	// CompletedAt is when the wait ended.
	CompletedAt time.Time
}

// StartupGate blocks process startup until required dependencies are
// healthy or a deadline passes. It heals inline through the shared Policy.
type StartupGate struct {
	config   StartupConfig
	inst     observe.Instruments
	registry Registry
	policy   *Policy
}

// NewStartupGate creates a startup gate.
func NewStartupGate(reg Registry, policy *Policy, config StartupConfig) (*StartupGate, error) {
	if reg == nil {
		return nil, ErrNilRegistry
	}
	if policy == nil {
		return nil, ErrNilPolicy
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	if config.Sleep == nil {
		config.Sleep = Sleep
	}
	return &StartupGate{
		config:   config,
		inst:     config.Instruments.OrNop(),
		registry: reg,
		policy:   policy,
	}, nil
}

// AwaitReady waits until every required dependency is healthy. It returns
// false when maxWait elapses or ctx is done first; a timeout is not an error.
func (g *StartupGate) AwaitReady(ctx context.Context, required []string, maxWait, pollInterval time.Duration) bool {
	return g.Await(ctx, required, maxWait, pollInterval).Ready
}

// Await is AwaitReady returning the full result.
func (g *StartupGate) Await(ctx context.Context, required []string, maxWait, pollInterval time.Duration) StartupResult {
	if maxWait <= 0 {
		maxWait = DefaultStartupMaxWait
	}
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}

	ctx, span := g.inst.Tracer.StartSpan(ctx, observe.SpanStartup,
		attribute.StringSlice("required", required))

	g.inst.Logger.Info(ctx, "starting startup health monitoring",
		observe.F("max_wait", maxWait.String()),
		observe.F("poll_interval", pollInterval.String()),
		observe.F("required", required),
	)

	start := g.config.Now()
	res := StartupResult{Required: append([]string(nil), required...)}

	for g.config.Now().Sub(start) < maxWait && ctx.Err() == nil {
		res.Attempts++
		agg := g.registry.CheckAll(ctx)

		down := unhealthyRequired(agg, required)
		if len(down) == 0 {
			res.Ready = true
			res.Final = agg
			g.inst.Logger.Info(ctx, "all required services are healthy, startup complete",
				observe.F("attempts", res.Attempts))
			return g.finish(ctx, span, start, res)
		}

		g.inst.Logger.Info(ctx, "required services not ready",
			observe.F("attempt", res.Attempts),
			observe.F("unhealthy", down),
		)
		for _, name := range down {
			g.policy.AttemptHeal(ctx, name, ProbeVia(g.registry, name))
		}

		if err := g.config.Sleep(ctx, pollInterval); err != nil {
			break
		}
	}

	g.inst.Logger.Warn(ctx, "startup timeout reached, some services may be unhealthy",
		observe.F("attempts", res.Attempts))
	res.Final = g.registry.CheckAll(ctx)
	return g.finish(ctx, span, start, res)
}

func (g *StartupGate) finish(ctx context.Context, span trace.Span, start time.Time, res StartupResult) StartupResult {
	res.CompletedAt = g.config.Now()
	res.Duration = res.CompletedAt.Sub(start)

	if g.config.Reporter != nil {
		if err := g.config.Reporter.ReportStartup(ctx, res); err != nil {
			g.inst.Logger.Warn(ctx, "failed to save startup report", observe.F("error", err))
		}
	}

	span.SetAttributes(
		attribute.Bool("ready", res.Ready),
		attribute.Int("attempts", res.Attempts),
	)
	g.inst.Tracer.EndSpan(span, nil)
	return res
}

// unhealthyRequired lists required dependencies not healthy in agg, in the
// order given. Unregistered names are never healthy.
func unhealthyRequired(agg health.Aggregate, required []string) []string {
	var out []string
	for _, name := range required {
		if !agg.IsHealthy(name) {
			out = append(out, name)
		}
	}
	return out
}
