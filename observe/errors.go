package observe

import "errors"

// Errors returned by Config.Validate.
var (
	// ErrMissingServiceName means Config.ServiceName was left empty.
	ErrMissingServiceName = errors.New("observe: missing service name")

	// ErrInvalidSamplePct means Tracing.SamplePct is outside 0..1.
	ErrInvalidSamplePct = errors.New("observe: sample rate out of range")

	// ErrInvalidTracingExporter means trace.exporter is not in ValidTracingExporters.
	ErrInvalidTracingExporter = errors.New("observe: unknown trace exporter")

	// ErrInvalidMetricsExporter means metrics.exporter is not in ValidMetricsExporters.
	ErrInvalidMetricsExporter = errors.New("observe: unknown metrics exporter")

	// ErrInvalidLogLevel means log.level is not debug, info, warn or error.
	ErrInvalidLogLevel = errors.New("observe: unknown log level")

	// ErrInvalidLogFormat means log.format is not text or json.
	ErrInvalidLogFormat = errors.New("observe: unknown log format")
)

// ErrNilObserver is returned by constructors that derive from an Observer.
var ErrNilObserver = errors.New("observe: observer is nil")

// ValidTracingExporters are the names accepted for trace.exporter.
var ValidTracingExporters = []string{"otlp", "stdout", "none", ""}

// ValidMetricsExporters are the names accepted for metrics.exporter.
var ValidMetricsExporters = []string{"otlp", "prometheus", "stdout", "none", ""}

// ValidLogLevels are the names accepted for log.level; "" means info.
var ValidLogLevels = []string{"debug", "info", "warn", "error", ""}

// ValidLogFormats lists valid log format names; "" means text.
var ValidLogFormats = []string{FormatText, FormatJSON, ""}

// RedactedFields lists field keys whose values are never logged. Matching
// ignores case.
var RedactedFields = []string{
	"password",
	"secret",
	"token",
	"idToken",
	"id_token",
	"authorization",
	"credential",
	"sessionId",
	"session_id",
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
