package health

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func healthyProbe(name string) Probe {
	return NewProbeFunc(name, KindAPI, func(ctx context.Context) Check {
		return Healthy("ok")
	})
}

func unhealthyProbe(name string) Probe {
	return NewProbeFunc(name, KindAPI, func(ctx context.Context) Check {
		return Unhealthy("down", errors.New("connection refused"))
	})
}

func TestNewRegistry_Defaults(t *testing.T) {
	reg := NewRegistry()

	if reg.config.Timeout != DefaultProbeTimeout {
		t.Errorf("Default timeout = %v, want %v", reg.config.Timeout, DefaultProbeTimeout)
	}
	if reg.config.Now == nil {
		t.Error("Default clock should be set")
	}
}

func TestRegistry_RegisterKeepsOrder(t *testing.T) {
	reg := NewRegistry()
	reg.Register(healthyProbe("b"))
	reg.Register(healthyProbe("a"))
	reg.Register(healthyProbe("c"))
	reg.Register(unhealthyProbe("a")) // replace, same position

	got := strings.Join(reg.Names(), ",")
	if got != "b,a,c" {
		t.Errorf("Names() = %s, want b,a,c", got)
	}

	agg := reg.CheckAll(context.Background())
	if agg.Checks["a"].IsHealthy() {
		t.Error("replacement probe for 'a' was not used")
	}
}

func TestRegistry_CheckAllAllHealthy(t *testing.T) {
	reg := NewRegistry()
	for _, name := range []string{
		"primary-llm-api", "telephony-api", "voice-api", "primary-database", "egress-ip-resolution",
	} {
		reg.Register(healthyProbe(name))
	}

	agg := reg.CheckAll(context.Background())

	if agg.Overall != StatusHealthy {
		t.Errorf("Overall = %v, want healthy", agg.Overall)
	}
	if agg.HealthyCount != 5 || agg.TotalCount != 5 {
		t.Errorf("counts = %d/%d, want 5/5", agg.HealthyCount, agg.TotalCount)
	}
	if len(agg.Unhealthy()) != 0 {
		t.Errorf("Unhealthy() = %v, want empty", agg.Unhealthy())
	}
	for name, c := range agg.Checks {
		if c.Name != name {
			t.Errorf("check name = %q, want %q", c.Name, name)
		}
		if c.CheckedAt.IsZero() {
			t.Errorf("%s: CheckedAt not set", name)
		}
	}
}

func TestRegistry_EmptyIsHealthy(t *testing.T) {
	agg := NewRegistry().CheckAll(context.Background())

	if agg.Overall != StatusHealthy {
		t.Errorf("Overall = %v, want healthy", agg.Overall)
	}
	if agg.TotalCount != 0 {
		t.Errorf("TotalCount = %d, want 0", agg.TotalCount)
	}
}

func TestOverallStatus(t *testing.T) {
	tests := []struct {
		healthy, total int
		want           Status
	}{
		{0, 0, StatusHealthy},
		{5, 5, StatusHealthy},
		{4, 5, StatusDegraded},
		{3, 5, StatusDegraded},
		{2, 5, StatusUnhealthy},
		{0, 5, StatusUnhealthy},
		{2, 4, StatusUnhealthy}, // exactly half
		{3, 4, StatusDegraded},
		{1, 2, StatusUnhealthy},
		{0, 1, StatusUnhealthy},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d_of_%d", tt.healthy, tt.total), func(t *testing.T) {
			if got := OverallStatus(tt.healthy, tt.total); got != tt.want {
				t.Errorf("OverallStatus(%d, %d) = %v, want %v", tt.healthy, tt.total, got, tt.want)
			}
		})
	}
}

func TestRegistry_AggregationMatchesCounts(t *testing.T) {
	for total := 1; total <= 6; total++ {
		for healthy := 0; healthy <= total; healthy++ {
			reg := NewRegistry()
			for i := 0; i < total; i++ {
				name := fmt.Sprintf("dep-%d", i)
				if i < healthy {
					reg.Register(healthyProbe(name))
				} else {
					reg.Register(unhealthyProbe(name))
				}
			}

			agg := reg.CheckAll(context.Background())
			if agg.Overall != OverallStatus(healthy, total) {
				t.Errorf("%d/%d: Overall = %v, want %v", healthy, total, agg.Overall, OverallStatus(healthy, total))
			}
			if len(agg.Unhealthy()) != total-healthy {
				t.Errorf("%d/%d: Unhealthy() = %v", healthy, total, agg.Unhealthy())
			}
		}
	}
}

func TestRegistry_UnhealthyInRegistrationOrder(t *testing.T) {
	reg := NewRegistry()
	reg.Register(unhealthyProbe("z"))
	reg.Register(healthyProbe("m"))
	reg.Register(unhealthyProbe("a"))

	got := reg.CheckAll(context.Background()).Unhealthy()
	if strings.Join(got, ",") != "z,a" {
		t.Errorf("Unhealthy() = %v, want [z a]", got)
	}
}

func TestRegistry_NonBinaryStatusIsUnhealthy(t *testing.T) {
	reg := NewRegistry()
	reg.Register(NewProbeFunc("zero", KindAPI, func(ctx context.Context) Check {
		return Check{}
	}))
	reg.Register(NewProbeFunc("degraded", KindAPI, func(ctx context.Context) Check {
		return Check{Status: StatusDegraded, Detail: "slow"}
	}))

	agg := reg.CheckAll(context.Background())

	for _, name := range []string{"zero", "degraded"} {
		c := agg.Checks[name]
		if c.Status != StatusUnhealthy {
			t.Errorf("%s status = %v, want unhealthy", name, c.Status)
		}
		if c.Error == "" {
			t.Errorf("%s error is empty", name)
		}
	}
	if got := agg.Unhealthy(); strings.Join(got, ",") != "zero,degraded" {
		t.Errorf("Unhealthy() = %v, want [zero degraded]", got)
	}
	if agg.Overall != StatusUnhealthy {
		t.Errorf("Overall = %v, want unhealthy", agg.Overall)
	}
	if got := agg.Checks["degraded"].Detail; got != "slow" {
		t.Errorf("degraded detail = %q, want slow", got)
	}
}

func TestRegistry_SlowProbeTimesOut(t *testing.T) {
	reg := NewRegistry(RegistryConfig{Timeout: 50 * time.Millisecond})
	reg.Register(NewProbeFunc("slow", KindAPI, func(ctx context.Context) Check {
		<-ctx.Done()
		time.Sleep(10 * time.Millisecond)
		return Healthy("too late")
	}))
	reg.Register(healthyProbe("fast"))

	start := time.Now()
	agg := reg.CheckAll(context.Background())
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("CheckAll took %v, slow probe was not cut off", elapsed)
	}

	slow := agg.Checks["slow"]
	if slow.Status != StatusUnhealthy {
		t.Errorf("slow status = %v, want unhealthy", slow.Status)
	}
	if !strings.Contains(slow.Error, "timeout") {
		t.Errorf("slow error = %q, want timeout", slow.Error)
	}
	if !agg.Checks["fast"].IsHealthy() {
		t.Error("fast probe should not be affected by the slow one")
	}
}

func TestRegistry_PanickingProbeIsIsolated(t *testing.T) {
	reg := NewRegistry()
	reg.Register(NewProbeFunc("boom", KindOther, func(ctx context.Context) Check {
		panic("driver exploded")
	}))
	reg.Register(healthyProbe("ok"))

	agg := reg.CheckAll(context.Background())

	if agg.Checks["boom"].Status != StatusUnhealthy {
		t.Errorf("boom status = %v, want unhealthy", agg.Checks["boom"].Status)
	}
	if !strings.Contains(agg.Checks["boom"].Error, "driver exploded") {
		t.Errorf("boom error = %q", agg.Checks["boom"].Error)
	}
	if agg.HealthyCount != 1 {
		t.Errorf("HealthyCount = %d, want 1", agg.HealthyCount)
	}
}

func TestRegistry_ProbesRunConcurrently(t *testing.T) {
	const n = 4
	var started atomic.Int32
	release := make(chan struct{})

	reg := NewRegistry()
	for i := 0; i < n; i++ {
		reg.Register(NewProbeFunc(fmt.Sprintf("dep-%d", i), KindAPI, func(ctx context.Context) Check {
			if started.Add(1) == n {
				close(release)
			}
			select {
			case <-release:
				return Healthy("ok")
			case <-ctx.Done():
				return Unhealthy("blocked", ctx.Err())
			}
		}))
	}

	agg := reg.CheckAll(context.Background())
	if agg.HealthyCount != n {
		t.Errorf("HealthyCount = %d, want %d (probes did not overlap)", agg.HealthyCount, n)
	}
}

func TestRegistry_LastDoesNotProbe(t *testing.T) {
	var calls atomic.Int32
	reg := NewRegistry()
	reg.Register(NewProbeFunc("db", KindDatabase, func(ctx context.Context) Check {
		calls.Add(1)
		return Healthy("ok")
	}))

	if got := reg.Last().Overall; got != StatusUnknown {
		t.Errorf("Last() before CheckAll = %v, want unknown", got)
	}

	reg.CheckAll(context.Background())
	last := reg.Last()
	_ = reg.Last()

	if calls.Load() != 1 {
		t.Errorf("probe calls = %d, want 1", calls.Load())
	}
	if last.Overall != StatusHealthy || last.TotalCount != 1 {
		t.Errorf("Last() = %+v", last)
	}
}

func TestRegistry_CheckUpdatesDependencyState(t *testing.T) {
	var healthy atomic.Bool
	reg := NewRegistry()
	reg.Register(NewProbeFunc("db", KindDatabase, func(ctx context.Context) Check {
		if healthy.Load() {
			return Healthy("ok")
		}
		return Unhealthy("down", nil)
	}))

	reg.CheckAll(context.Background())
	healthy.Store(true)

	c, err := reg.Check(context.Background(), "db")
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if !c.IsHealthy() {
		t.Errorf("Check() status = %v, want healthy", c.Status)
	}

	state, ok := reg.Status("db")
	if !ok || !state.IsHealthy() {
		t.Errorf("Status(db) = %+v, %v; want healthy", state, ok)
	}
	if reg.Last().Checks["db"].IsHealthy() {
		t.Error("Check() must not rewrite the aggregate snapshot")
	}
}

func TestRegistry_CheckUnknown(t *testing.T) {
	_, err := NewRegistry().Check(context.Background(), "missing")
	if !errors.Is(err, ErrProbeNotFound) {
		t.Errorf("Check() error = %v, want %v", err, ErrProbeNotFound)
	}
}

func TestRegistry_InjectedClock(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	reg := NewRegistry(RegistryConfig{Now: func() time.Time { return now }})
	reg.Register(healthyProbe("api"))

	agg := reg.CheckAll(context.Background())
	if !agg.CheckedAt.Equal(now) {
		t.Errorf("CheckedAt = %v, want %v", agg.CheckedAt, now)
	}
	if !agg.Checks["api"].CheckedAt.Equal(now) {
		t.Errorf("check CheckedAt = %v, want %v", agg.Checks["api"].CheckedAt, now)
	}
}

func TestRegistry_Kind(t *testing.T) {
	reg := NewRegistry()
	reg.Register(NewProbeFunc("db", KindDatabase, func(ctx context.Context) Check { return Healthy("") }))

	if got := reg.Kind("db"); got != KindDatabase {
		t.Errorf("Kind(db) = %v, want database", got)
	}
	if got := reg.Kind("missing"); got != KindOther {
		t.Errorf("Kind(missing) = %v, want other", got)
	}
}
