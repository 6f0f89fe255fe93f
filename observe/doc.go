// Package observe provides the logging, tracing and metrics primitives used by
// the health registry and the healing loop.
//
// Logging is structured JSON via logrus. Tracing and metrics are OpenTelemetry,
// with exporters selected by name (see the exporters subpackage). Components
// take an Instruments value in their configuration; a zero value is replaced
// with no-op implementations.
package observe
