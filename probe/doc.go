// Package probe implements health.Probe for the external dependencies that
// healops watches.
//
// Three adapters are provided:
//
//   - APIProbe: bearer-authenticated HTTP GET, healthy on the expected status.
//   - SQLProbe: MySQL ping followed by SELECT 1 (go-sql-driver/mysql).
//   - EgressIPProbe: resolves the external IP through an echo service.
//
// Every probe enforces its own timeout and performs no retries; retrying is
// the healing policy's job. Catalog assembles the standard five probes under
// their stable names:
//
//	probes := probe.Catalog(probe.CatalogConfig{
//	    Timeout: 10 * time.Second,
//	    LLM:     probe.Endpoint{APIKey: os.Getenv("OPENAI_API_KEY")},
//	    Database: probe.SQLConfig{Host: "db", User: "app", Database: "app"},
//	})
//	for _, p := range probes {
//	    registry.Register(p)
//	}
package probe
