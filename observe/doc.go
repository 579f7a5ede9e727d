// Package observe provides the logging, tracing and metrics used across buildr.
//
// Logging is a small structured JSON logger with level filtering and
// redaction of credential-bearing fields. Tracing and metrics are
// OpenTelemetry providers configured from Config and disabled by default;
// the no-op implementations keep instrumented code paths free of nil checks.
package observe
