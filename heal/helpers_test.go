package heal

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonwraymond/healops/health"
)

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Sleep advances the clock instead of blocking.
func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.Advance(d)
	return nil
}

func noSleep(ctx context.Context, _ time.Duration) error {
	return ctx.Err()
}

// switchProbe is a probe whose health is toggled by the test.
type switchProbe struct {
	name    string
	kind    health.Kind
	healthy atomic.Bool
	calls   atomic.Int32
}

func newSwitchProbe(name string, kind health.Kind, healthy bool) *switchProbe {
	p := &switchProbe{name: name, kind: kind}
	p.healthy.Store(healthy)
	return p
}

func (p *switchProbe) Name() string      { return p.name }
func (p *switchProbe) Kind() health.Kind { return p.kind }

func (p *switchProbe) Probe(context.Context) health.Check {
	p.calls.Add(1)
	if p.healthy.Load() {
		return health.Healthy("ok")
	}
	return health.Unhealthy("down", errors.New("connection refused"))
}

func healthyCheck(context.Context) health.Check {
	return health.Healthy("ok")
}

func failingCheck(context.Context) health.Check {
	return health.Unhealthy("down", errors.New("connection refused"))
}

// countingProbe wraps fn and counts invocations.
func countingProbe(fn ProbeFunc) (ProbeFunc, *atomic.Int32) {
	var n atomic.Int32
	return func(ctx context.Context) health.Check {
		n.Add(1)
		return fn(ctx)
	}, &n
}

func newTestRegistry(probes ...health.Probe) *health.Registry {
	reg := health.NewRegistry(health.RegistryConfig{Timeout: 2 * time.Second})
	for _, p := range probes {
		reg.Register(p)
	}
	return reg
}
