package health

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// LivenessHandler returns an HTTP handler for liveness probes.
// This is a simple check that the service is running.
func LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	}
}

// ReadinessHandler returns an HTTP handler for readiness probes.
// It reports the last snapshot and never probes, so it stays cheap under
// frequent polling. Before the first CheckAll it reports UNKNOWN.
func ReadinessHandler(reg *Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		agg := reg.Last()

		w.Header().Set("Content-Type", "text/plain")

		switch agg.Overall {
		case StatusHealthy:
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("OK"))
		case StatusDegraded:
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("DEGRADED"))
		case StatusUnknown:
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("UNKNOWN"))
		default:
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("UNHEALTHY"))
		}
	}
}

// HealthResponse is the JSON response for the detailed health endpoint.
type HealthResponse struct {
	Status       string                   `json:"status"`
	Timestamp    string                   `json:"timestamp"`
	DurationMs   int64                    `json:"durationMs"`
	HealthyCount int                      `json:"healthyCount"`
	TotalCount   int                      `json:"totalCount"`
	Checks       map[string]CheckResponse `json:"checks,omitempty"`
}

// CheckResponse is the JSON response for a single dependency.
type CheckResponse struct {
	Status    string `json:"status"`
	LastCheck string `json:"lastCheck,omitempty"`
	LatencyMs int64  `json:"latencyMs"`
	Detail    string `json:"detail,omitempty"`
	Error     string `json:"error,omitempty"`
}

// NewCheckResponse converts a Check to its JSON form.
func NewCheckResponse(c Check) CheckResponse {
	resp := CheckResponse{
		Status:    c.Status.String(),
		LatencyMs: c.Latency.Milliseconds(),
		Detail:    c.Detail,
		Error:     c.Error,
	}
	if !c.CheckedAt.IsZero() {
		resp.LastCheck = c.CheckedAt.UTC().Format(time.RFC3339)
	}
	return resp
}

// NewHealthResponse converts an Aggregate to its JSON form.
func NewHealthResponse(agg Aggregate) HealthResponse {
	resp := HealthResponse{
		Status:       agg.Overall.String(),
		Timestamp:    agg.CheckedAt.UTC().Format(time.RFC3339),
		DurationMs:   agg.Duration.Milliseconds(),
		HealthyCount: agg.HealthyCount,
		TotalCount:   agg.TotalCount,
		Checks:       make(map[string]CheckResponse, len(agg.Checks)),
	}
	for name, c := range agg.Checks {
		resp.Checks[name] = NewCheckResponse(c)
	}
	return resp
}

// DetailedHandler returns an HTTP handler that reports the last snapshot
// with per-dependency detail. It never probes; before the first CheckAll it
// reports unknown with 503.
func DetailedHandler(reg *Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		agg := reg.Last()
		writeJSON(w, statusCode(agg.Overall), NewHealthResponse(agg))
	}
}

// RefreshHandler returns an HTTP handler that runs a fresh CheckAll and
// reports it. Every request reaches every dependency, so it belongs behind
// authentication.
func RefreshHandler(reg *Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		agg := reg.CheckAll(r.Context())
		writeJSON(w, statusCode(agg.Overall), NewHealthResponse(agg))
	}
}

// DependencyHandler returns an HTTP handler that reports the last recorded
// check of the dependency whose name is extracted from the request by
// nameOf. It never probes.
func DependencyHandler(reg *Registry, nameOf func(*http.Request) string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := nameOf(r)
		if _, ok := reg.Probe(name); !ok {
			writeError(w, http.StatusNotFound, fmt.Errorf("%w: %q", ErrProbeNotFound, name))
			return
		}
		c, _ := reg.Status(name)
		writeJSON(w, statusCode(c.Status), NewCheckResponse(c))
	}
}

// ProbeHandler returns an HTTP handler that re-probes the named dependency
// and reports the result. Like RefreshHandler it belongs behind
// authentication.
func ProbeHandler(reg *Registry, nameOf func(*http.Request) string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := reg.Check(r.Context(), nameOf(r))
		if err != nil {
			code := http.StatusInternalServerError
			if errors.Is(err, ErrProbeNotFound) {
				code = http.StatusNotFound
			}
			writeError(w, code, err)
			return
		}
		writeJSON(w, statusCode(c.Status), NewCheckResponse(c))
	}
}

// RegisterHandlers registers the read-only health handlers on the given mux.
// None of them probes; RefreshHandler and ProbeHandler are left to callers
// that can authenticate.
func RegisterHandlers(mux *http.ServeMux, reg *Registry) {
	mux.HandleFunc("GET /healthz", LivenessHandler())
	mux.HandleFunc("GET /readyz", ReadinessHandler(reg))
	mux.HandleFunc("GET /health", DetailedHandler(reg))
	mux.HandleFunc("GET /health/{name}", DependencyHandler(reg, func(r *http.Request) string {
		return r.PathValue("name")
	}))
}

func statusCode(s Status) int {
	switch s {
	case StatusHealthy, StatusDegraded:
		return http.StatusOK
	default:
		return http.StatusServiceUnavailable
	}
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
