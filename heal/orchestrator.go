package heal

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/jonwraymond/healops/health"
	"github.com/jonwraymond/healops/observe"
)

// DefaultInterval is the time between healing cycles.
const DefaultInterval = 60 * time.Second

// Registry is the view of the health registry used for healing.
// *health.Registry satisfies it.
type Registry interface {
	CheckAll(ctx context.Context) health.Aggregate
	Check(ctx context.Context, name string) (health.Check, error)
}

// OrchestratorConfig configures the healing orchestrator.
type OrchestratorConfig struct {
	// Interval is the time between cycles.
	// Default: 60 seconds
	Interval time.Duration

	// Critical lists dependencies whose failed healing escalates.
	Critical []string

	// AutoRestart enables the Escalator on critical failures.
	AutoRestart bool

	// Escalator is invoked on critical failures when AutoRestart is set.
	Escalator Escalator

	// Reporter, if set, persists the aggregate of every cycle.
	Reporter Reporter

	// HistoryCapacity bounds the history.
	// Default: 100
	HistoryCapacity int

	// Now returns the current time. Default: time.Now
	Now func() time.Time

	// Instruments receives cycle logs, metrics and spans.
	Instruments observe.Instruments
}

// Orchestrator runs periodic healing cycles.
//
// It is Idle or Healing. A cycle started while Healing is dropped, so at
// most one cycle runs at a time and ticks are never queued.
type Orchestrator struct {
	config   OrchestratorConfig
	inst     observe.Instruments
	registry Registry
	policy   *Policy
	history  *History
	critical map[string]bool

	healing atomic.Bool
	skipped atomic.Int64

	mu          sync.Mutex
	lastCycleAt time.Time
	stop        chan struct{}
	done        chan struct{}
	cycles      sync.WaitGroup
}

// NewOrchestrator creates an orchestrator over reg and policy.
func NewOrchestrator(reg Registry, policy *Policy, config OrchestratorConfig) (*Orchestrator, error) {
	if reg == nil {
		return nil, ErrNilRegistry
	}
	if policy == nil {
		return nil, ErrNilPolicy
	}
	if config.Interval <= 0 {
		config.Interval = DefaultInterval
	}
	if config.Now == nil {
		config.Now = time.Now
	}

	critical := make(map[string]bool, len(config.Critical))
	for _, name := range config.Critical {
		critical[name] = true
	}

	return &Orchestrator{
		config:   config,
		inst:     config.Instruments.OrNop(),
		registry: reg,
		policy:   policy,
		history:  NewHistory(config.HistoryCapacity),
		critical: critical,
	}, nil
}

// Start runs cycles every Interval until Stop is called or ctx is done.
// The first cycle runs one Interval after Start.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.stop != nil {
		return ErrAlreadyRunning
	}
	o.stop = make(chan struct{})
	o.done = make(chan struct{})

	o.inst.Logger.Info(ctx, "starting continuous healing",
		observe.F("interval", o.config.Interval.String()))

	go o.loop(ctx, o.stop, o.done)
	return nil
}

func (o *Orchestrator) loop(ctx context.Context, stop, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(o.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.cycles.Add(1)
			go func() {
				defer o.cycles.Done()
				o.RunCycle(ctx)
			}()
		}
	}
}

// Stop cancels the timer and waits for an in-flight cycle to finish.
// It is a no-op when the orchestrator is not running.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	stop, done := o.stop, o.done
	o.stop, o.done = nil, nil
	o.mu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	<-done
	o.cycles.Wait()

	o.inst.Logger.Info(context.Background(), "auto-healing stopped")
}

// Healing reports whether a cycle is in progress.
func (o *Orchestrator) Healing() bool {
	return o.healing.Load()
}

// RunCycle executes one healing cycle. It returns false without doing
// anything if another cycle is in progress.
func (o *Orchestrator) RunCycle(ctx context.Context) bool {
	if !o.healing.CompareAndSwap(false, true) {
		o.skipped.Add(1)
		o.inst.Metrics.RecordCycleSkipped(ctx)
		o.inst.Logger.Debug(ctx, "healing cycle skipped: previous cycle still running")
		return false
	}
	defer o.healing.Store(false)

	o.cycle(ctx)
	return true
}

func (o *Orchestrator) cycle(ctx context.Context) {
	start := o.config.Now()
	ctx, span := o.inst.Tracer.StartSpan(ctx, observe.SpanCycle)

	var (
		cycleErr  error
		unhealthy []string
	)
	defer func() {
		if r := recover(); r != nil {
			cycleErr = fmt.Errorf("healing cycle panicked: %v", r)
			o.inst.Logger.Error(ctx, "error during healing cycle", observe.F("error", cycleErr))
		}
		o.inst.Metrics.RecordCycle(ctx, o.config.Now().Sub(start), len(unhealthy))
		span.SetAttributes(attribute.Int("unhealthy", len(unhealthy)))
		o.inst.Tracer.EndSpan(span, cycleErr)
	}()

	agg := o.registry.CheckAll(ctx)

	o.mu.Lock()
	o.lastCycleAt = start
	o.mu.Unlock()

	if o.config.Reporter != nil {
		if err := o.config.Reporter.ReportHealth(ctx, agg); err != nil {
			o.inst.Logger.Warn(ctx, "failed to save health report", observe.F("error", err))
		}
	}

	unhealthy = agg.Unhealthy()
	if len(unhealthy) == 0 {
		o.inst.Logger.Debug(ctx, "all services healthy - no healing needed")
		return
	}

	o.inst.Logger.Info(ctx, "found unhealthy services",
		observe.F("count", len(unhealthy)),
		observe.F("services", unhealthy),
	)

	rec := HealingRecord{
		ID:        uuid.NewString(),
		Timestamp: o.config.Now(),
		Unhealthy: unhealthy,
		Results:   make(map[string]Result, len(unhealthy)),
	}
	for _, name := range unhealthy {
		res := o.policy.AttemptHeal(ctx, name, ProbeVia(o.registry, name))
		rec.Results[name] = res
		if res.Success {
			rec.Successful++
		} else {
			rec.Failed++
		}
	}

	o.inst.Logger.Info(ctx, "healing cycle complete",
		observe.F("successful", rec.Successful),
		observe.F("failed", rec.Failed),
	)

	o.history.Append(Entry{Kind: EntryHealing, Healing: &rec})
	o.escalate(ctx, unhealthy, rec.Results)
}

// escalate records critical dependencies that stayed down after their heal
// attempt, fires the Escalator when AutoRestart is set, and resets their
// policy state so the next cycle starts a fresh attempt window.
func (o *Orchestrator) escalate(ctx context.Context, unhealthy []string, results map[string]Result) {
	var failed []string
	for _, name := range unhealthy {
		if o.critical[name] && !results[name].Success {
			failed = append(failed, name)
		}
	}
	if len(failed) == 0 {
		return
	}

	rec := EscalationRecord{
		ID:               uuid.NewString(),
		Timestamp:        o.config.Now(),
		Failed:           failed,
		Reason:           EscalationReason,
		RestartTriggered: o.config.AutoRestart,
	}
	o.history.Append(Entry{Kind: EntryEscalation, Escalation: &rec})

	o.inst.Logger.Error(ctx, "critical service healing failed",
		observe.F("services", failed),
		observe.F("auto_restart", o.config.AutoRestart),
	)
	for _, name := range failed {
		o.inst.Metrics.RecordEscalation(ctx, name, o.config.AutoRestart)
	}

	if o.config.AutoRestart && o.config.Escalator != nil {
		if err := o.config.Escalator.Escalate(ctx, rec); err != nil {
			o.inst.Logger.Error(ctx, "escalation failed", observe.F("error", err))
		}
	}

	for _, name := range failed {
		o.policy.Reset(name)
	}
}

// History returns every recorded entry, oldest first.
func (o *Orchestrator) History() []Entry {
	return o.history.Entries()
}

// Policy returns the policy driven by this orchestrator.
func (o *Orchestrator) Policy() *Policy {
	return o.policy
}

// ProbeVia returns a ProbeFunc that re-probes name through reg. An
// unregistered name is reported unhealthy.
func ProbeVia(reg Registry, name string) ProbeFunc {
	return func(ctx context.Context) health.Check {
		c, err := reg.Check(ctx, name)
		if err != nil {
			return health.Unhealthy("dependency not registered", err)
		}
		return c
	}
}
