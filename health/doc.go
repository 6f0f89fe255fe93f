// Package health provides the dependency probing primitives of healops.
//
// A Probe checks one external dependency (an HTTP API, a database, the
// network egress path) and reports a Check. Probes never return errors:
// every failure is an unhealthy Check with Error set.
//
// # Registry
//
// Registry runs all registered probes concurrently and aggregates the
// results:
//
//	reg := health.NewRegistry(health.RegistryConfig{Timeout: 10 * time.Second})
//	reg.Register(dbProbe)
//	reg.Register(apiProbe)
//
//	agg := reg.CheckAll(ctx)
//	fmt.Println(agg.Overall, agg.HealthyCount, agg.TotalCount)
//
// The overall status is healthy when every dependency is healthy, degraded
// when strictly more than half are healthy, and unhealthy otherwise. A slow
// probe is cut off at the registry timeout and a panicking probe is recovered;
// neither affects the other probes.
//
// Last returns the most recent aggregate without probing again, and Check
// re-probes a single dependency.
//
// # HTTP Endpoints
//
//	mux := http.NewServeMux()
//	health.RegisterHandlers(mux, reg)
//
// registers /healthz (liveness), /readyz, /health and /health/{name}. All of
// them serve the last recorded state and never probe. RefreshHandler and
// ProbeHandler run fresh probes and are meant for authenticated routes.
package health
