// Package server exposes the health and healing endpoints over HTTP.
//
// Routes:
//
//	GET  /healthz              liveness
//	GET  /readyz               readiness from the last snapshot
//	GET  /health               last snapshot with per-dependency detail
//	GET  /health/{name}        last recorded check of one dependency
//	POST /health/check         fresh check of every dependency (operator)
//	POST /health/check/{name}  fresh check of one dependency (operator)
//	GET  /heal/stats           healing statistics
//	GET  /heal/history         healing and escalation history
//	POST /heal/reset           clear all healing state (operator)
//	POST /heal/reset/{name}    clear one dependency's state (operator)
//	GET  /metrics              Prometheus scrape, when enabled
package server
