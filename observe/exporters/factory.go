// Package exporters builds OpenTelemetry exporters by name.
package exporters

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	promclient "github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// ErrUnknownExporter is returned for an exporter name not listed below.
var ErrUnknownExporter = errors.New("exporters: unknown exporter")

// ErrNoEndpoint is returned for otlp when no collector endpoint is set.
var ErrNoEndpoint = errors.New("exporters: OTLP endpoint not configured")

// Options are shared by both factories.
type Options struct {
	// Writer receives stdout exporter output. Default: os.Stderr, so
	// telemetry never mixes with command output.
	Writer io.Writer

	// Getenv looks up OTEL_EXPORTER_OTLP_* variables. Default: os.Getenv.
	Getenv func(string) string

	// TextfilePath is where the prometheus exporter writes its metrics
	// on Flush, in the node_exporter textfile format. Empty disables it.
	TextfilePath string
}

func (o Options) withDefaults() Options {
	if o.Writer == nil {
		o.Writer = os.Stderr
	}
	if o.Getenv == nil {
		o.Getenv = os.Getenv
	}
	return o
}

func (o Options) otlpConfigured(signal string) bool {
	return o.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT") != "" ||
		o.Getenv("OTEL_EXPORTER_OTLP_"+signal+"_ENDPOINT") != ""
}

// NewTracingExporter returns the span exporter called name: stdout, otlp,
// or none. none and "" return a nil exporter.
func NewTracingExporter(ctx context.Context, name string, opts Options) (sdktrace.SpanExporter, error) {
	opts = opts.withDefaults()
	switch name {
	case "none", "":
		return nil, nil
	case "stdout":
		return stdouttrace.New(stdouttrace.WithWriter(opts.Writer))
	case "otlp":
		if !opts.otlpConfigured("TRACES") {
			return nil, fmt.Errorf("%w: set OTEL_EXPORTER_OTLP_ENDPOINT or OTEL_EXPORTER_OTLP_TRACES_ENDPOINT", ErrNoEndpoint)
		}
		return otlptracegrpc.New(ctx)
	}
	return nil, fmt.Errorf("%w: tracing %q", ErrUnknownExporter, name)
}

// MetricsReader is a reader plus an optional hook that must run before the
// meter provider shuts down.
type MetricsReader struct {
	sdkmetric.Reader

	// Flush is nil when the reader needs no final write.
	Flush func(ctx context.Context) error
}

// NewMetricsReader returns the metrics reader called name: stdout, otlp,
// prometheus, or none. none and "" return a zero MetricsReader.
func NewMetricsReader(ctx context.Context, name string, opts Options) (MetricsReader, error) {
	opts = opts.withDefaults()
	switch name {
	case "none", "":
		return MetricsReader{}, nil

	case "stdout":
		exp, err := stdoutmetric.New(stdoutmetric.WithWriter(opts.Writer))
		if err != nil {
			return MetricsReader{}, fmt.Errorf("stdout metrics exporter: %w", err)
		}
		return MetricsReader{Reader: sdkmetric.NewPeriodicReader(exp)}, nil

	case "otlp":
		if !opts.otlpConfigured("METRICS") {
			return MetricsReader{}, fmt.Errorf("%w: set OTEL_EXPORTER_OTLP_ENDPOINT or OTEL_EXPORTER_OTLP_METRICS_ENDPOINT", ErrNoEndpoint)
		}
		exp, err := otlpmetricgrpc.New(ctx)
		if err != nil {
			return MetricsReader{}, fmt.Errorf("otlp metrics exporter: %w", err)
		}
		return MetricsReader{Reader: sdkmetric.NewPeriodicReader(exp)}, nil

	case "prometheus":
		return newPrometheusReader(opts.TextfilePath)
	}
	return MetricsReader{}, fmt.Errorf("%w: metrics %q", ErrUnknownExporter, name)
}

// newPrometheusReader collects into a private registry. A CLI process lives
// too briefly to be scraped, so the registry is dumped to path instead.
func newPrometheusReader(path string) (MetricsReader, error) {
	reg := promclient.NewRegistry()
	exp, err := prometheus.New(prometheus.WithRegisterer(reg))
	if err != nil {
		return MetricsReader{}, fmt.Errorf("prometheus exporter: %w", err)
	}

	mr := MetricsReader{Reader: exp}
	if path != "" {
		mr.Flush = func(context.Context) error {
			if err := promclient.WriteToTextfile(path, reg); err != nil {
				return fmt.Errorf("write %s: %w", path, err)
			}
			return nil
		}
	}
	return mr, nil
}
