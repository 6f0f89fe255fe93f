package health

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/jonwraymond/healops/observe"
)

// DefaultProbeTimeout bounds a single probe when RegistryConfig.Timeout is unset.
const DefaultProbeTimeout = 10 * time.Second

// RegistryConfig configures the health registry.
type RegistryConfig struct {
	// Timeout is the maximum time a single probe may run.
	// Default: 10 seconds
	Timeout time.Duration

	// Instruments receives probe logs, metrics and spans.
	// Nil members are replaced with no-op implementations.
	Instruments observe.Instruments

	// Now returns the current time. Default: time.Now
	Now func() time.Time
}

// Aggregate is the combined result of probing every registered dependency.
type Aggregate struct {
	// Overall is healthy, degraded or unhealthy. Unknown until the first CheckAll.
	Overall Status

	// Checks holds the latest check per dependency.
	Checks map[string]Check

	// Names lists the dependencies in registration order.
	Names []string

	// CheckedAt is when the aggregate was computed.
	CheckedAt time.Time

	// Duration is the wall time of the whole fan-out.
	Duration time.Duration

	HealthyCount int
	TotalCount   int
}

// Unhealthy returns the names of dependencies whose check is not healthy,
// in registration order.
func (a Aggregate) Unhealthy() []string {
	var out []string
	for _, name := range a.Names {
		if c, ok := a.Checks[name]; !ok || !c.IsHealthy() {
			out = append(out, name)
		}
	}
	return out
}

// IsHealthy reports whether the named dependency was healthy in this aggregate.
func (a Aggregate) IsHealthy(name string) bool {
	c, ok := a.Checks[name]
	return ok && c.IsHealthy()
}

// OverallStatus derives the aggregate status from counts.
// Healthy when every dependency is healthy (including zero of zero),
// degraded when strictly more than half are healthy, unhealthy otherwise.
func OverallStatus(healthy, total int) Status {
	switch {
	case healthy == total:
		return StatusHealthy
	case healthy*2 > total:
		return StatusDegraded
	default:
		return StatusUnhealthy
	}
}

// Registry runs registered probes and holds the last known state of each
// dependency.
type Registry struct {
	config RegistryConfig
	inst   observe.Instruments

	mu     sync.RWMutex
	probes map[string]Probe
	order  []string // Maintains registration order
	checks map[string]Check
	last   Aggregate
}

// NewRegistry creates a new health registry.
func NewRegistry(config ...RegistryConfig) *Registry {
	var cfg RegistryConfig
	if len(config) > 0 {
		cfg = config[0]
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultProbeTimeout
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Registry{
		config: cfg,
		inst:   cfg.Instruments.OrNop(),
		probes: make(map[string]Probe),
		checks: make(map[string]Check),
	}
}

// Register adds a probe. Registering a name twice replaces the probe but
// keeps its original position.
func (r *Registry) Register(p Probe) {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := p.Name()
	if _, exists := r.probes[name]; !exists {
		r.order = append(r.order, name)
	}
	r.probes[name] = p
}

// Names returns the registered dependency names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

// Probe returns the registered probe for name.
func (r *Registry) Probe(name string) (Probe, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.probes[name]
	return p, ok
}

// Kind returns the kind of the named dependency, or KindOther if unknown.
func (r *Registry) Kind(name string) Kind {
	if p, ok := r.Probe(name); ok {
		return p.Kind()
	}
	return KindOther
}

// CheckAll probes every registered dependency concurrently, stores the
// result as the current snapshot and returns it.
func (r *Registry) CheckAll(ctx context.Context) Aggregate {
	r.mu.RLock()
	names := make([]string, len(r.order))
	copy(names, r.order)
	probes := make([]Probe, len(names))
	for i, name := range names {
		probes[i] = r.probes[name]
	}
	r.mu.RUnlock()

	start := r.config.Now()
	results := make([]Check, len(probes))

	var g errgroup.Group
	for i, p := range probes {
		g.Go(func() error {
			results[i] = r.run(ctx, p)
			return nil
		})
	}
	_ = g.Wait()

	agg := Aggregate{
		Checks:     make(map[string]Check, len(results)),
		Names:      names,
		CheckedAt:  r.config.Now(),
		TotalCount: len(results),
	}
	agg.Duration = agg.CheckedAt.Sub(start)
	for i, c := range results {
		agg.Checks[names[i]] = c
		if c.IsHealthy() {
			agg.HealthyCount++
		}
	}
	agg.Overall = OverallStatus(agg.HealthyCount, agg.TotalCount)

	r.mu.Lock()
	for name, c := range agg.Checks {
		r.checks[name] = c
	}
	r.last = agg
	r.mu.Unlock()

	r.inst.Logger.Debug(ctx, "health check completed",
		observe.F("overall", agg.Overall.String()),
		observe.F("healthy", agg.HealthyCount),
		observe.F("total", agg.TotalCount),
		observe.F("duration_ms", agg.Duration.Milliseconds()),
	)

	return agg
}

// Last returns the snapshot from the most recent CheckAll without probing.
// Before the first CheckAll the aggregate has Overall == StatusUnknown.
func (r *Registry) Last() Aggregate {
	r.mu.RLock()
	defer r.mu.RUnlock()

	agg := r.last
	agg.Checks = make(map[string]Check, len(r.last.Checks))
	for name, c := range r.last.Checks {
		agg.Checks[name] = c
	}
	agg.Names = append([]string(nil), r.last.Names...)
	return agg
}

// Check probes a single dependency and records its state. The snapshot
// returned by Last is not modified.
func (r *Registry) Check(ctx context.Context, name string) (Check, error) {
	p, ok := r.Probe(name)
	if !ok {
		return Check{}, fmt.Errorf("%w: %q", ErrProbeNotFound, name)
	}

	c := r.run(ctx, p)

	r.mu.Lock()
	r.checks[name] = c
	r.mu.Unlock()

	return c, nil
}

// Status returns the last recorded check for name.
func (r *Registry) Status(name string) (Check, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.checks[name]
	return c, ok
}

// run executes one probe with the configured timeout. A probe that panics,
// overruns its timeout or reports a status other than healthy or unhealthy
// is reported unhealthy.
func (r *Registry) run(ctx context.Context, p Probe) Check {
	name := p.Name()
	ctx, span := r.inst.Tracer.StartSpan(ctx, observe.ProbeSpanName(name),
		attribute.String("dependency", name),
		attribute.String("kind", p.Kind().String()),
	)

	ctx, cancel := context.WithTimeout(ctx, r.config.Timeout)
	defer cancel()

	start := r.config.Now()
	resultCh := make(chan Check, 1)

	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				resultCh <- Unhealthy("probe panicked", fmt.Errorf("%w: %v", ErrProbePanic, rec))
			}
		}()
		resultCh <- p.Probe(ctx)
	}()

	var c Check
	select {
	case c = <-resultCh:
	case <-ctx.Done():
		c = Unhealthy("probe timed out", fmt.Errorf("%w after %s", ErrProbeTimeout, r.config.Timeout))
	}

	if c.Status != StatusHealthy && c.Status != StatusUnhealthy {
		if c.Error == "" {
			c.Error = fmt.Sprintf("%v: reported status %s", ErrProbeFailed, c.Status)
		}
		c.Status = StatusUnhealthy
	}

	c.Name = name
	c.CheckedAt = r.config.Now()
	if c.Latency == 0 {
		c.Latency = c.CheckedAt.Sub(start)
	}
	if c.Status == StatusHealthy {
		c.Error = ""
	}

	r.inst.Metrics.RecordProbe(ctx, name, c.Latency, c.Status.String())

	logger := r.inst.Logger.WithDependency(name)
	if c.IsHealthy() {
		logger.Debug(ctx, "probe healthy", observe.F("latency_ms", c.Latency.Milliseconds()))
		r.inst.Tracer.EndSpan(span, nil)
	} else {
		logger.Warn(ctx, "probe unhealthy",
			observe.F("status", c.Status.String()),
			observe.F("error", c.Error),
			observe.F("latency_ms", c.Latency.Milliseconds()),
		)
		r.inst.Tracer.EndSpan(span, fmt.Errorf("%w: %s", ErrProbeFailed, c.Error))
	}

	return c
}
