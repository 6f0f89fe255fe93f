package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics records health and healing measurements.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: must return quickly and never block on export.
// - Errors: implementations must not panic.
type Metrics interface {
	// RecordProbe records one probe run and the resulting status.
	RecordProbe(ctx context.Context, dependency string, duration time.Duration, status string)

	// RecordHeal records one heal decision and its reason.
	RecordHeal(ctx context.Context, dependency string, reason string, success bool)

	// RecordCycle records a completed healing cycle.
	RecordCycle(ctx context.Context, duration time.Duration, unhealthy int)

	// RecordCycleSkipped records a tick dropped because a cycle was running.
	RecordCycleSkipped(ctx context.Context)

	// RecordEscalation records a critical escalation for a dependency.
	RecordEscalation(ctx context.Context, dependency string, restart bool)
}

type metricsImpl struct {
	probeTotal     metric.Int64Counter
	probeUnhealthy metric.Int64Counter
	probeDuration  metric.Float64Histogram
	healAttempts   metric.Int64Counter
	cycleDuration  metric.Float64Histogram
	cycleSkipped   metric.Int64Counter
	escalations    metric.Int64Counter
}

// NewMetrics creates Metrics backed by the given meter.
func NewMetrics(meter metric.Meter) (Metrics, error) {
	m := &metricsImpl{}
	var err error

	if m.probeTotal, err = meter.Int64Counter(
		"healops.probe.total",
		metric.WithDescription("Total number of dependency probes"),
		metric.WithUnit("{probe}"),
	); err != nil {
		return nil, err
	}

	if m.probeUnhealthy, err = meter.Int64Counter(
		"healops.probe.unhealthy",
		metric.WithDescription("Number of probes that reported a non-healthy status"),
		metric.WithUnit("{probe}"),
	); err != nil {
		return nil, err
	}

	if m.probeDuration, err = meter.Float64Histogram(
		"healops.probe.duration_ms",
		metric.WithDescription("Probe duration in milliseconds"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, err
	}

	if m.healAttempts, err = meter.Int64Counter(
		"healops.heal.attempts",
		metric.WithDescription("Heal decisions by dependency and reason"),
		metric.WithUnit("{attempt}"),
	); err != nil {
		return nil, err
	}

	if m.cycleDuration, err = meter.Float64Histogram(
		"healops.cycle.duration_ms",
		metric.WithDescription("Healing cycle duration in milliseconds"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, err
	}

	if m.cycleSkipped, err = meter.Int64Counter(
		"healops.cycle.skipped",
		metric.WithDescription("Ticks dropped because a healing cycle was already running"),
		metric.WithUnit("{cycle}"),
	); err != nil {
		return nil, err
	}

	if m.escalations, err = meter.Int64Counter(
		"healops.escalations",
		metric.WithDescription("Critical escalations by dependency"),
		metric.WithUnit("{escalation}"),
	); err != nil {
		return nil, err
	}

	return m, nil
}

func (m *metricsImpl) RecordProbe(ctx context.Context, dependency string, duration time.Duration, status string) {
	opt := metric.WithAttributes(
		attribute.String("dependency", dependency),
		attribute.String("status", status),
	)
	m.probeTotal.Add(ctx, 1, opt)
	if status != "healthy" {
		m.probeUnhealthy.Add(ctx, 1, opt)
	}
	m.probeDuration.Record(ctx, float64(duration.Milliseconds()), opt)
}

func (m *metricsImpl) RecordHeal(ctx context.Context, dependency string, reason string, success bool) {
	m.healAttempts.Add(ctx, 1, metric.WithAttributes(
		attribute.String("dependency", dependency),
		attribute.String("reason", reason),
		attribute.Bool("success", success),
	))
}

func (m *metricsImpl) RecordCycle(ctx context.Context, duration time.Duration, unhealthy int) {
	m.cycleDuration.Record(ctx, float64(duration.Milliseconds()),
		metric.WithAttributes(attribute.Int("unhealthy", unhealthy)))
}

func (m *metricsImpl) RecordCycleSkipped(ctx context.Context) {
	m.cycleSkipped.Add(ctx, 1)
}

func (m *metricsImpl) RecordEscalation(ctx context.Context, dependency string, restart bool) {
	m.escalations.Add(ctx, 1, metric.WithAttributes(
		attribute.String("dependency", dependency),
		attribute.Bool("restart", restart),
	))
}

// NopMetrics returns Metrics that record nothing.
func NopMetrics() Metrics {
	return nopMetrics{}
}

type nopMetrics struct{}

func (nopMetrics) RecordProbe(context.Context, string, time.Duration, string) {}
func (nopMetrics) RecordHeal(context.Context, string, string, bool)          {}
func (nopMetrics) RecordCycle(context.Context, time.Duration, int)           {}
func (nopMetrics) RecordCycleSkipped(context.Context)                        {}
func (nopMetrics) RecordEscalation(context.Context, string, bool)            {}
