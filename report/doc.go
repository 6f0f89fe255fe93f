// Package report persists health and startup reports as JSON files.
//
// Writer implements heal.Reporter and heal.StartupReporter. Every write goes
// to a temporary file in the target directory and is renamed into place, so
// readers never observe a partially written report.
//
//	w := report.NewWriter(report.Config{Dir: "logs"})
//	orch, _ := heal.NewOrchestrator(reg, policy, heal.OrchestratorConfig{Reporter: w})
package report
