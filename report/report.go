package report

import (
	"time"

	"github.com/jonwraymond/healops/heal"
	"github.com/jonwraymond/healops/health"
)

// Version is stamped on every report.
const Version = "3.0"

// HealthReport is the persisted form of a health aggregate.
type HealthReport struct {
	Overall         string                          `json:"overall"`
	Services        map[string]health.CheckResponse `json:"services"`
	CheckDurationMs int64                           `json:"checkDuration"`
	HealthyServices int                             `json:"healthyServices"`
	TotalServices   int                             `json:"totalServices"`
	GeneratedAt     time.Time                       `json:"generatedAt"`
	Version         string                          `json:"version"`
}

// NewHealthReport builds a report from agg, generated at now.
func NewHealthReport(agg health.Aggregate, now time.Time) HealthReport {
	services := make(map[string]health.CheckResponse, len(agg.Checks))
	for name, c := range agg.Checks {
		services[name] = health.NewCheckResponse(c)
	}
	return HealthReport{
		Overall:         agg.Overall.String(),
		Services:        services,
		CheckDurationMs: agg.Duration.Milliseconds(),
		HealthyServices: agg.HealthyCount,
		TotalServices:   agg.TotalCount,
		GeneratedAt:     now.UTC(),
		Version:         Version,
	}
}

// StartupReport is the persisted outcome of a startup wait.
type StartupReport struct {
	StartupComplete     bool         `json:"startupComplete"`
	StartupDurationMs   int64        `json:"startupDuration"`
	HealthCheckAttempts int          `json:"healthCheckAttempts"`
	FinalHealthStatus   HealthReport `json:"finalHealthStatus"`
	RequiredServices    []string     `json:"requiredServices"`
	Timestamp           time.Time    `json:"timestamp"`
	Version             string       `json:"version"`
}

// NewStartupReport builds a report from a startup result.
func NewStartupReport(res heal.StartupResult) StartupReport {
	required := res.Required
	if required == nil {
		required = []string{}
	}
	return StartupReport{
		StartupComplete:     res.Ready,
		StartupDurationMs:   res.Duration.Milliseconds(),
		HealthCheckAttempts: res.Attempts,
		FinalHealthStatus:   NewHealthReport(res.Final, res.CompletedAt),
		RequiredServices:    required,
		Timestamp:           res.CompletedAt.UTC(),
		Version:             Version,
	}
}
