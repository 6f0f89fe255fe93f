package heal

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/jonwraymond/healops/health"
	"github.com/jonwraymond/healops/observe"
)

// Policy defaults.
const (
	DefaultCooldown    = 5 * time.Minute
	DefaultMaxAttempts = 5
)

// ProbeFunc re-probes a single dependency.
type ProbeFunc func(ctx context.Context) health.Check

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// State is the healing state of one dependency. A dependency without State
// has never failed healing or was healed by its last attempt.
type State struct {
	Attempts      int       `json:"attempts"`
	LastAttemptAt time.Time `json:"lastAttemptAt"`
}

// Result is the outcome of one AttemptHeal call.
type Result struct {
	Success  bool     `json:"success"`
	Reason   Reason   `json:"reason"`
	Message  string   `json:"message"`
	Strategy Strategy `json:"strategy,omitempty"`

	// Attempt is the attempt number executed, zero when refused.
	Attempt int `json:"attempt,omitempty"`
}

// PolicyConfig configures the healing policy.
type PolicyConfig struct {
	// Cooldown is the minimum time between attempts for one dependency.
	// Default: 5 minutes
	Cooldown time.Duration

	// MaxAttempts caps consecutive failed attempts per dependency.
	// Default: 5
	MaxAttempts int

	// Strategies pins the strategy of specific dependencies.
	Strategies map[string]Strategy

	// KindOf reports a dependency's kind for strategy selection when it has
	// no entry in Strategies. Default: every dependency is KindOther.
	KindOf func(name string) health.Kind

	// Now returns the current time. Default: time.Now
	Now func() time.Time

	// Sleep implements strategy delays. Default: a context-aware timer.
	Sleep SleepFunc

	// Instruments receives heal logs, metrics and spans.
	Instruments observe.Instruments
}

// Policy decides and executes heal attempts and owns per-dependency State.
//
// Contract:
//   - Concurrency: safe for concurrent use; attempts for distinct dependencies
//     may run in parallel, while a second attempt for a dependency already
//     being healed is refused with ReasonCooldown.
//   - AttemptHeal never panics and never returns an error; every failure is
//     a Result.
type Policy struct {
	config PolicyConfig
	inst   observe.Instruments

	mu       sync.Mutex
	states   map[string]*State
	inflight map[string]struct{}
}

// NewPolicy creates a healing policy.
func NewPolicy(config PolicyConfig) *Policy {
	if config.Cooldown <= 0 {
		config.Cooldown = DefaultCooldown
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = DefaultMaxAttempts
	}
	if config.KindOf == nil {
		config.KindOf = func(string) health.Kind { return health.KindOther }
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	if config.Sleep == nil {
		config.Sleep = Sleep
	}

	return &Policy{
		config: config,
		inst:   config.Instruments.OrNop(),
		states:   make(map[string]*State),
		inflight: make(map[string]struct{}),
	}
}

// Cooldown returns the configured cooldown window.
func (p *Policy) Cooldown() time.Duration { return p.config.Cooldown }

// MaxAttempts returns the configured attempt cap.
func (p *Policy) MaxAttempts() int { return p.config.MaxAttempts }

// StrategyFor resolves the strategy for a dependency.
func (p *Policy) StrategyFor(name string) Strategy {
	if s, ok := p.config.Strategies[name]; ok {
		return s
	}
	return StrategyForKind(p.config.KindOf(name))
}

// AttemptHeal tries to heal one dependency with probe as the re-check.
//
// Attempts inside the cooldown window or past MaxAttempts are refused without
// probing and leave State untouched. An attempt already running for the same
// dependency counts as an open cooldown window. Otherwise the strategy runs;
// success deletes State and failure increments Attempts and stamps
// LastAttemptAt.
func (p *Policy) AttemptHeal(ctx context.Context, name string, probe ProbeFunc) Result {
	now := p.config.Now()
	logger := p.inst.Logger.WithDependency(name)

	p.mu.Lock()
	_, running := p.inflight[name]
	st, tracked := p.states[name]
	if running || (tracked && now.Sub(st.LastAttemptAt) < p.config.Cooldown) {
		p.mu.Unlock()
		res := Result{Reason: ReasonCooldown, Message: "Service is in healing cooldown period"}
		p.inst.Metrics.RecordHeal(ctx, name, string(res.Reason), false)
		logger.Debug(ctx, "heal skipped", observe.F("reason", res.Reason), observe.F("in_flight", running))
		return res
	}
	var attempts int
	if tracked {
		attempts = st.Attempts
	}
	if attempts >= p.config.MaxAttempts {
		p.mu.Unlock()
		res := Result{Reason: ReasonMaxAttempts, Message: "Maximum healing attempts reached"}
		p.inst.Metrics.RecordHeal(ctx, name, string(res.Reason), false)
		logger.Warn(ctx, "heal refused", observe.F("reason", res.Reason), observe.F("attempts", attempts))
		return res
	}
	p.inflight[name] = struct{}{}
	p.mu.Unlock()

	strategy := p.StrategyFor(name)
	attempt := attempts + 1

	logger.Info(ctx, "attempting heal",
		observe.F("strategy", strategy.String()),
		observe.F("attempt", attempt),
		observe.F("max_attempts", p.config.MaxAttempts),
	)

	ctx, span := p.inst.Tracer.StartSpan(ctx, observe.HealSpanName(name),
		attribute.String("dependency", name),
		attribute.String("strategy", strategy.String()),
		attribute.Int("attempt", attempt),
	)
	res := p.execute(ctx, strategy, probe)
	res.Strategy = strategy
	res.Attempt = attempt

	p.mu.Lock()
	delete(p.inflight, name)
	if res.Success {
		delete(p.states, name)
	} else {
		cur, ok := p.states[name]
		if !ok {
			cur = &State{}
			p.states[name] = cur
		}
		cur.Attempts = min(cur.Attempts+1, p.config.MaxAttempts)
		cur.LastAttemptAt = now
	}
	p.mu.Unlock()

	p.inst.Metrics.RecordHeal(ctx, name, string(res.Reason), res.Success)
	if res.Success {
		logger.Info(ctx, "heal succeeded", observe.F("reason", res.Reason))
		p.inst.Tracer.EndSpan(span, nil)
	} else {
		logger.Warn(ctx, "heal failed", observe.F("reason", res.Reason), observe.F("message", res.Message))
		p.inst.Tracer.EndSpan(span, fmt.Errorf("%s: %s", res.Reason, res.Message))
	}

	return res
}

// execute runs the strategy. Panics and cancelled sleeps become ReasonError.
func (p *Policy) execute(ctx context.Context, s Strategy, probe ProbeFunc) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			res = Result{Reason: ReasonError, Message: fmt.Sprintf("healing strategy panicked: %v", r)}
		}
	}()

	switch s {
	case Reconnect, DatabaseReconnect, NetworkRefresh:
		if err := p.config.Sleep(ctx, s.Delay()); err != nil {
			return Result{Reason: ReasonError, Message: err.Error()}
		}
		c := probe(ctx)
		if c.IsHealthy() {
			return Result{Success: true, Reason: ReasonReconnected, Message: s.successMessage()}
		}
		msg := s.failureMessage()
		if c.Error != "" {
			msg += ": " + c.Error
		}
		return Result{Reason: ReasonStillFailing, Message: msg}

	case GenericRetry:
		if err := p.config.Sleep(ctx, s.Delay()); err != nil {
			return Result{Reason: ReasonError, Message: err.Error()}
		}
		return Result{Reason: ReasonStillFailing, Message: s.failureMessage()}

	default:
		return Result{Reason: ReasonUnknownStrategy, Message: fmt.Sprintf("Unknown healing strategy: %s", s)}
	}
}

// State returns a copy of the dependency's healing state.
func (p *Policy) State(name string) (State, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	st, ok := p.states[name]
	if !ok {
		return State{}, false
	}
	return *st, true
}

// Tracked returns a copy of every dependency's healing state.
func (p *Policy) Tracked() map[string]State {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make(map[string]State, len(p.states))
	for name, st := range p.states {
		out[name] = *st
	}
	return out
}

// InCooldown returns the dependencies whose cooldown window is still open,
// sorted by name.
func (p *Policy) InCooldown() []string {
	now := p.config.Now()

	p.mu.Lock()
	defer p.mu.Unlock()

	var names []string
	for name, st := range p.states {
		if now.Sub(st.LastAttemptAt) < p.config.Cooldown {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Reset clears one dependency's state. It reports whether state existed.
func (p *Policy) Reset(name string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	_, ok := p.states[name]
	delete(p.states, name)
	return ok
}

// ResetAll clears every dependency's state and returns how many were cleared.
func (p *Policy) ResetAll() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := len(p.states)
	p.states = make(map[string]*State)
	return n
}

// Sleep waits for d or until ctx is done, whichever comes first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
