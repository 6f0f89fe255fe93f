package heal

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonwraymond/healops/health"
)

type captureStartupReporter struct {
	mu  sync.Mutex
	got []StartupResult
}

func (r *captureStartupReporter) ReportStartup(_ context.Context, res StartupResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, res)
	return nil
}

func newTestGate(t *testing.T, reg *health.Registry, clock *fakeClock, reporter StartupReporter) *StartupGate {
	t.Helper()
	policy := NewPolicy(PolicyConfig{Now: clock.Now, Sleep: noSleep, KindOf: reg.Kind})
	gate, err := NewStartupGate(reg, policy, StartupConfig{
		Reporter: reporter,
		Now:      clock.Now,
		Sleep:    clock.Sleep,
	})
	if err != nil {
		t.Fatalf("NewStartupGate() error = %v", err)
	}
	return gate
}

func TestNewStartupGate_Validation(t *testing.T) {
	if _, err := NewStartupGate(nil, NewPolicy(PolicyConfig{}), StartupConfig{}); !errors.Is(err, ErrNilRegistry) {
		t.Errorf("nil registry error = %v", err)
	}
	if _, err := NewStartupGate(health.NewRegistry(), nil, StartupConfig{}); !errors.Is(err, ErrNilPolicy) {
		t.Errorf("nil policy error = %v", err)
	}
}

func TestStartupGate_ReadyImmediately(t *testing.T) {
	reg := newTestRegistry(
		newSwitchProbe("primary-llm-api", health.KindAPI, true),
		newSwitchProbe("egress-ip-resolution", health.KindNetwork, false),
	)
	reporter := &captureStartupReporter{}
	gate := newTestGate(t, reg, newFakeClock(), reporter)

	res := gate.Await(context.Background(), []string{"primary-llm-api"}, time.Minute, 5*time.Second)

	if !res.Ready || res.Attempts != 1 {
		t.Errorf("Await() = ready %v attempts %d, want ready after 1", res.Ready, res.Attempts)
	}
	if res.Final.Overall != health.StatusUnhealthy {
		t.Errorf("Final.Overall = %v; non-required failures still show", res.Final.Overall)
	}
	if len(reporter.got) != 1 || !reporter.got[0].Ready {
		t.Errorf("reported = %+v, want one ready result", reporter.got)
	}
}

func TestStartupGate_HealsUntilReady(t *testing.T) {
	var n atomic.Int32
	db := health.NewProbeFunc("primary-database", health.KindDatabase, func(context.Context) health.Check {
		// unhealthy on the first full check, healthy from the heal re-probe on
		if n.Add(1) == 1 {
			return health.Unhealthy("down", errors.New("refused"))
		}
		return health.Healthy("ok")
	})
	clock := newFakeClock()
	gate := newTestGate(t, newTestRegistry(db), clock, nil)
	start := clock.Now()

	ok := gate.AwaitReady(context.Background(), []string{"primary-database"}, time.Minute, 5*time.Second)

	if !ok {
		t.Fatal("AwaitReady() = false, want true")
	}
	if got := clock.Now().Sub(start); got != 5*time.Second {
		t.Errorf("waited %v, want one poll interval", got)
	}
}

func TestStartupGate_Timeout(t *testing.T) {
	clock := newFakeClock()
	reporter := &captureStartupReporter{}
	reg := newTestRegistry(newSwitchProbe("primary-database", health.KindDatabase, false))
	gate := newTestGate(t, reg, clock, reporter)

	res := gate.Await(context.Background(), []string{"primary-database"}, 20*time.Second, 5*time.Second)

	if res.Ready {
		t.Fatal("Await() ready with a dependency that never recovers")
	}
	if res.Attempts != 4 {
		t.Errorf("Attempts = %d, want 4", res.Attempts)
	}
	if res.Duration != 20*time.Second {
		t.Errorf("Duration = %v, want 20s", res.Duration)
	}
	if res.Final.TotalCount != 1 || res.Final.HealthyCount != 0 {
		t.Errorf("Final = %d/%d", res.Final.HealthyCount, res.Final.TotalCount)
	}
	if len(reporter.got) != 1 || reporter.got[0].Ready {
		t.Errorf("reported = %+v, want one not-ready result", reporter.got)
	}
}

func TestStartupGate_UnregisteredRequired(t *testing.T) {
	reg := newTestRegistry(newSwitchProbe("voice-api", health.KindAPI, true))
	gate := newTestGate(t, reg, newFakeClock(), nil)

	if gate.AwaitReady(context.Background(), []string{"voice-api", "ghost"}, 10*time.Second, 5*time.Second) {
		t.Error("AwaitReady() = true with an unregistered required dependency")
	}
}

func TestStartupGate_NoRequired(t *testing.T) {
	reg := newTestRegistry(newSwitchProbe("voice-api", health.KindAPI, false))
	gate := newTestGate(t, reg, newFakeClock(), nil)

	if !gate.AwaitReady(context.Background(), nil, 10*time.Second, 5*time.Second) {
		t.Error("AwaitReady() with nothing required = false, want true")
	}
}

func TestStartupGate_ContextCancelled(t *testing.T) {
	reg := newTestRegistry(newSwitchProbe("primary-database", health.KindDatabase, false))
	policy := NewPolicy(PolicyConfig{Sleep: noSleep, KindOf: reg.Kind})
	gate, err := NewStartupGate(reg, policy, StartupConfig{})
	if err != nil {
		t.Fatalf("NewStartupGate() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	start := time.Now()
	ok := gate.AwaitReady(ctx, []string{"primary-database"}, time.Hour, time.Hour)

	if ok {
		t.Error("AwaitReady() = true after cancellation")
	}
	if time.Since(start) > 5*time.Second {
		t.Error("AwaitReady() did not return promptly on cancellation")
	}
}
