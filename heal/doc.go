// Package heal implements the self-healing loop on top of a health registry.
//
// # Policy
//
// Policy decides whether an unhealthy dependency may be healed now and runs
// the matching Strategy:
//
//   - inside the cooldown window since the last failed attempt the call is
//     refused with ReasonCooldown;
//   - after MaxAttempts consecutive failures it is refused with
//     ReasonMaxAttempts until Reset;
//   - otherwise the strategy waits its delay and re-probes.
//
// A successful heal deletes the dependency's State entirely. A failed one
// increments Attempts and stamps LastAttemptAt.
//
// # Orchestrator
//
// Orchestrator runs a cycle every Interval: check everything, heal each
// unhealthy dependency in registration order, append a HealingRecord, then
// escalate critical dependencies that are still down. At most one cycle runs
// at a time; a tick that arrives mid-cycle is dropped and counted.
//
// Escalation appends an EscalationRecord, calls the Escalator when
// AutoRestart is enabled, and always resets the escalated dependencies'
// State so the next cycle starts a fresh attempt window. A dependency that
// never recovers therefore escalates repeatedly instead of locking out at
// MaxAttempts; the escalation entries in History make that visible.
//
// # StartupGate
//
// StartupGate.AwaitReady polls until required dependencies are healthy or
// maxWait elapses, healing inline through the same Policy:
//
//	gate, _ := heal.NewStartupGate(reg, policy, heal.StartupConfig{})
//	if !gate.AwaitReady(ctx, required, 2*time.Minute, 5*time.Second) {
//	    logger.Warn(ctx, "starting with unhealthy dependencies")
//	}
package heal
