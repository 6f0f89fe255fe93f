package health

import (
	"context"
	"time"
)

// Status represents the health status of a dependency or of the aggregate.
type Status int

const (
	// StatusUnknown means the dependency has not been probed yet.
	StatusUnknown Status = iota
	// StatusHealthy indicates the dependency is functioning normally.
	StatusHealthy
	// StatusDegraded is only produced by aggregation: more than half of the
	// dependencies are healthy but not all of them.
	StatusDegraded
	// StatusUnhealthy indicates the dependency is not functioning properly.
	StatusUnhealthy
)

// String returns the string representation of the status.
func (s Status) String() string {
	switch s {
	case StatusHealthy:
		return "healthy"
	case StatusDegraded:
		return "degraded"
	case StatusUnhealthy:
		return "unhealthy"
	default:
		return "unknown"
	}
}

// MarshalText encodes the status as its string form.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a status string. Unrecognized values become StatusUnknown.
func (s *Status) UnmarshalText(text []byte) error {
	switch string(text) {
	case "healthy":
		*s = StatusHealthy
	case "degraded":
		*s = StatusDegraded
	case "unhealthy":
		*s = StatusUnhealthy
	default:
		*s = StatusUnknown
	}
	return nil
}

// Kind classifies a dependency by the way it is reached.
type Kind int

const (
	// KindOther is any dependency without a specific recovery approach.
	KindOther Kind = iota
	// KindAPI is a remote HTTP API.
	KindAPI
	// KindDatabase is a SQL database.
	KindDatabase
	// KindNetwork is a network-level check such as egress IP resolution.
	KindNetwork
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindAPI:
		return "api"
	case KindDatabase:
		return "database"
	case KindNetwork:
		return "network"
	default:
		return "other"
	}
}

// Check is the outcome of probing one dependency.
type Check struct {
	// Name identifies the dependency.
	Name string

	// Status is healthy, unhealthy or unknown.
	Status Status

	// CheckedAt is when the probe completed.
	CheckedAt time.Time

	// Latency is how long the probe took. Zero when not measured.
	Latency time.Duration

	// Detail is free-text context, e.g. "External IP: 203.0.113.7".
	Detail string

	// Error is the failure message. Empty for healthy checks.
	Error string
}

// Healthy creates a healthy check.
func Healthy(detail string) Check {
	return Check{
		Status:    StatusHealthy,
		Detail:    detail,
		CheckedAt: time.Now(),
	}
}

// Unhealthy creates an unhealthy check. err may be nil.
func Unhealthy(detail string, err error) Check {
	c := Check{
		Status:    StatusUnhealthy,
		Detail:    detail,
		CheckedAt: time.Now(),
	}
	if err != nil {
		c.Error = err.Error()
	}
	return c
}

// WithLatency sets the latency on a check.
func (c Check) WithLatency(d time.Duration) Check {
	c.Latency = d
	return c
}

// IsHealthy reports whether the check status is healthy.
func (c Check) IsHealthy() bool {
	return c.Status == StatusHealthy
}

// Probe executes a single health check against one dependency.
//
// Contract:
//   - Probe never returns an error: failures are reported as an unhealthy
//     Check with Error set.
//   - Probe must honor ctx cancellation and enforce its own timeout.
//   - Probe performs no retries.
type Probe interface {
	// Name returns the stable dependency name.
	Name() string

	// Kind returns the dependency kind.
	Kind() Kind

	// Probe performs the check.
	Probe(ctx context.Context) Check
}

// ProbeFunc is an adapter to allow ordinary functions to be used as Probes.
type ProbeFunc struct {
	name string
	kind Kind
	fn   func(context.Context) Check
}

// NewProbeFunc creates a new ProbeFunc.
func NewProbeFunc(name string, kind Kind, fn func(context.Context) Check) *ProbeFunc {
	return &ProbeFunc{name: name, kind: kind, fn: fn}
}

// Name returns the dependency name.
func (f *ProbeFunc) Name() string {
	return f.name
}

// Kind returns the dependency kind.
func (f *ProbeFunc) Kind() Kind {
	return f.kind
}

// Probe performs the check.
func (f *ProbeFunc) Probe(ctx context.Context) Check {
	return f.fn(ctx)
}

var _ Probe = (*ProbeFunc)(nil)
