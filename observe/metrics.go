package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics records buildr counters and histograms.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: implementations must not panic.
type Metrics interface {
	// RecordOperation records one remote operation with duration and error status.
	RecordOperation(ctx context.Context, meta OpMeta, duration time.Duration, err error)

	// RecordCacheLookup records a cache lookup outcome (hit, miss, expired, corrupt).
	RecordCacheLookup(ctx context.Context, result string)

	// RecordEviction records entries and bytes removed by one eviction pass.
	RecordEviction(ctx context.Context, entries int, bytes int64)

	// RecordLoginPoll records one login status poll and its outcome.
	RecordLoginPoll(ctx context.Context, status string)
}

type metricsImpl struct {
	totalCount   metric.Int64Counter
	errorCount   metric.Int64Counter
	durationHist metric.Float64Histogram
	cacheLookups metric.Int64Counter
	evictions    metric.Int64Counter
	evictedBytes metric.Int64Counter
	loginPolls   metric.Int64Counter
}

// NewMetrics creates a Metrics instance backed by the given meter.
func NewMetrics(meter metric.Meter) (Metrics, error) {
	m := &metricsImpl{}
	var err error

	if m.totalCount, err = meter.Int64Counter(
		"buildr.op.total",
		metric.WithDescription("Total number of remote operations"),
		metric.WithUnit("{call}"),
	); err != nil {
		return nil, err
	}

	if m.errorCount, err = meter.Int64Counter(
		"buildr.op.errors",
		metric.WithDescription("Total number of failed remote operations"),
		metric.WithUnit("{error}"),
	); err != nil {
		return nil, err
	}

	if m.durationHist, err = meter.Float64Histogram(
		"buildr.op.duration_ms",
		metric.WithDescription("Remote operation duration in milliseconds"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, err
	}

	if m.cacheLookups, err = meter.Int64Counter(
		"buildr.cache.lookups",
		metric.WithDescription("Cache lookups by result"),
		metric.WithUnit("{lookup}"),
	); err != nil {
		return nil, err
	}

	if m.evictions, err = meter.Int64Counter(
		"buildr.cache.evictions",
		metric.WithDescription("Cache entries removed by eviction"),
		metric.WithUnit("{entry}"),
	); err != nil {
		return nil, err
	}

	if m.evictedBytes, err = meter.Int64Counter(
		"buildr.cache.evicted_bytes",
		metric.WithDescription("Bytes reclaimed by eviction"),
		metric.WithUnit("By"),
	); err != nil {
		return nil, err
	}

	if m.loginPolls, err = meter.Int64Counter(
		"buildr.login.polls",
		metric.WithDescription("Login status polls by outcome"),
		metric.WithUnit("{poll}"),
	); err != nil {
		return nil, err
	}

	return m, nil
}

func (m *metricsImpl) RecordOperation(ctx context.Context, meta OpMeta, duration time.Duration, err error) {
	attrs := []attribute.KeyValue{
		attribute.String("op.id", meta.OpID()),
	}
	if meta.Component != "" {
		attrs = append(attrs, attribute.String("op.component", meta.Component))
	}
	opt := metric.WithAttributes(attrs...)

	m.totalCount.Add(ctx, 1, opt)
	if err != nil {
		m.errorCount.Add(ctx, 1, opt)
	}
	m.durationHist.Record(ctx, float64(duration.Milliseconds()), opt)
}

func (m *metricsImpl) RecordCacheLookup(ctx context.Context, result string) {
	m.cacheLookups.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}

func (m *metricsImpl) RecordEviction(ctx context.Context, entries int, bytes int64) {
	m.evictions.Add(ctx, int64(entries))
	m.evictedBytes.Add(ctx, bytes)
}

func (m *metricsImpl) RecordLoginPoll(ctx context.Context, status string) {
	m.loginPolls.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}

type noopMetrics struct{}

// NopMetrics returns a Metrics that records nothing.
func NopMetrics() Metrics { return noopMetrics{} }

func (noopMetrics) RecordOperation(context.Context, OpMeta, time.Duration, error) {}
func (noopMetrics) RecordCacheLookup(context.Context, string)                     {}
func (noopMetrics) RecordEviction(context.Context, int, int64)                    {}
func (noopMetrics) RecordLoginPoll(context.Context, string)                       {}

// MetricsFromObserver builds Metrics on the observer's meter.
func MetricsFromObserver(obs Observer) (Metrics, error) {
	if obs == nil {
		return nil, ErrNilObserver
	}
	return NewMetrics(obs.Meter())
}
