package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonwraymond/healops/auth"
	"github.com/jonwraymond/healops/heal"
	"github.com/jonwraymond/healops/health"
)

func noSleep(ctx context.Context, _ time.Duration) error { return ctx.Err() }

type fixture struct {
	handler  http.Handler
	registry *health.Registry
	policy   *heal.Policy
	orch     *heal.Orchestrator
	calls    *atomic.Int32
}

func newFixture(t *testing.T, withAuth bool) fixture {
	t.Helper()
	calls := &atomic.Int32{}
	reg := health.NewRegistry()
	reg.Register(health.NewProbeFunc("voice-api", health.KindAPI, func(context.Context) health.Check {
		calls.Add(1)
		return health.Healthy("ok")
	}))
	reg.Register(health.NewProbeFunc("primary-database", health.KindDatabase, func(context.Context) health.Check {
		return health.Unhealthy("down", errors.New("connection refused"))
	}))

	policy := heal.NewPolicy(heal.PolicyConfig{Sleep: noSleep, KindOf: reg.Kind})
	orch, err := heal.NewOrchestrator(reg, policy, heal.OrchestratorConfig{})
	if err != nil {
		t.Fatal(err)
	}

	cfg := RouterConfig{
		Registry:     reg,
		Orchestrator: orch,
		Metrics: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, "# metrics\n")
		}),
	}
	if withAuth {
		store := auth.NewMemoryKeyStore()
		store.AddKey("ops", "ops-key", "oncall", auth.RoleOperator)
		store.AddKey("ro", "viewer-key", "dashboard", auth.RoleViewer)
		cfg.Authenticator = auth.NewAPIKeyAuthenticator(auth.APIKeyConfig{}, store)
	}

	h, err := NewRouter(cfg)
	if err != nil {
		t.Fatalf("NewRouter() error = %v", err)
	}
	return fixture{handler: h, registry: reg, policy: policy, orch: orch, calls: calls}
}

func do(h http.Handler, method, path string, hdr ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for i := 0; i+1 < len(hdr); i += 2 {
		req.Header.Set(hdr[i], hdr[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestNewRouter_NilRegistry(t *testing.T) {
	if _, err := NewRouter(RouterConfig{}); !errors.Is(err, ErrNilRegistry) {
		t.Errorf("NewRouter() error = %v, want ErrNilRegistry", err)
	}
}

func TestRouter_HealthRoutes(t *testing.T) {
	f := newFixture(t, false)

	if rec := do(f.handler, http.MethodGet, "/healthz"); rec.Code != http.StatusOK {
		t.Errorf("/healthz = %d", rec.Code)
	}
	if rec := do(f.handler, http.MethodGet, "/readyz"); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("/readyz before any check = %d, want 503", rec.Code)
	}

	if rec := do(f.handler, http.MethodGet, "/health"); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("/health before any check = %d, want 503", rec.Code)
	}
	if got := f.calls.Load(); got != 0 {
		t.Errorf("probe calls after GET routes = %d, want 0", got)
	}
	f.registry.CheckAll(context.Background())

	rec := do(f.handler, http.MethodGet, "/health")
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("/health = %d, want 503 for 1/2 healthy", rec.Code)
	}
	var resp health.HealthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if resp.Status != "unhealthy" || resp.HealthyCount != 1 || resp.TotalCount != 2 {
		t.Errorf("/health body = %+v", resp)
	}

	if rec := do(f.handler, http.MethodGet, "/health/voice-api"); rec.Code != http.StatusOK {
		t.Errorf("/health/voice-api = %d", rec.Code)
	}
	if rec := do(f.handler, http.MethodGet, "/health/ghost"); rec.Code != http.StatusNotFound {
		t.Errorf("/health/ghost = %d, want 404", rec.Code)
	}
	if rec := do(f.handler, http.MethodGet, "/metrics"); !strings.HasPrefix(rec.Body.String(), "# metrics") {
		t.Errorf("/metrics body = %q", rec.Body.String())
	}
}

func TestRouter_HealRoutes(t *testing.T) {
	f := newFixture(t, true)
	f.orch.RunCycle(context.Background())

	rec := do(f.handler, http.MethodGet, "/heal/stats")
	var stats heal.Stats
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if stats.Attempts["primary-database"] != 1 {
		t.Errorf("stats attempts = %v", stats.Attempts)
	}

	if rec := do(f.handler, http.MethodGet, "/heal/history"); rec.Code != http.StatusOK {
		t.Errorf("/heal/history = %d", rec.Code)
	}

	tests := []struct {
		name     string
		path     string
		hdr      []string
		wantCode int
	}{
		{"no credentials", "/heal/reset/primary-database", nil, http.StatusUnauthorized},
		{"viewer", "/heal/reset/primary-database", []string{"X-API-Key", "viewer-key"}, http.StatusForbidden},
		{"operator one", "/heal/reset/primary-database", []string{"X-API-Key", "ops-key"}, http.StatusOK},
		{"operator all", "/heal/reset", []string{"X-API-Key", "ops-key"}, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(f.handler, http.MethodPost, tt.path, tt.hdr...)
			if rec.Code != tt.wantCode {
				t.Errorf("POST %s = %d, want %d", tt.path, rec.Code, tt.wantCode)
			}
		})
	}

	if _, ok := f.policy.State("primary-database"); ok {
		t.Error("operator reset did not clear state")
	}
	if rec := do(f.handler, http.MethodGet, "/heal/reset"); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET /heal/reset = %d, want 405", rec.Code)
	}
}

func TestRouter_ProbingRequiresOperator(t *testing.T) {
	f := newFixture(t, true)

	tests := []struct {
		name     string
		path     string
		hdr      []string
		wantCode int
	}{
		{"no credentials", "/health/check", nil, http.StatusUnauthorized},
		{"viewer", "/health/check", []string{"X-API-Key", "viewer-key"}, http.StatusForbidden},
		{"operator all", "/health/check", []string{"X-API-Key", "ops-key"}, http.StatusServiceUnavailable},
		{"operator one", "/health/check/voice-api", []string{"X-API-Key", "ops-key"}, http.StatusOK},
		{"operator unknown", "/health/check/ghost", []string{"X-API-Key", "ops-key"}, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(f.handler, http.MethodPost, tt.path, tt.hdr...)
			if rec.Code != tt.wantCode {
				t.Errorf("POST %s = %d, want %d", tt.path, rec.Code, tt.wantCode)
			}
		})
	}
	if got := f.calls.Load(); got != 2 {
		t.Errorf("probe calls = %d, want 2 (operator requests only)", got)
	}
}

func TestRouter_OperatorRoutesOmittedWithoutAuthenticator(t *testing.T) {
	f := newFixture(t, false)

	for _, path := range []string{"/heal/reset", "/health/check"} {
		if rec := do(f.handler, http.MethodPost, path); rec.Code != http.StatusNotFound && rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("POST %s without authenticator = %d, want 404 or 405", path, rec.Code)
		}
	}
	if got := f.calls.Load(); got != 0 {
		t.Errorf("probe calls = %d, want 0", got)
	}
}

func TestServer_ServeAndShutdown(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	f := newFixture(t, false)
	srv := New(ln.Addr().String(), f.handler, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz error = %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve() did not return after cancel")
	}
}
