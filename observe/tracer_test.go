package observe

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestOpMeta_SpanName(t *testing.T) {
	tests := []struct {
		meta OpMeta
		want string
	}{
		{OpMeta{Component: "api", Name: "generate_site"}, "buildr.op.api.generate_site"},
		{OpMeta{Name: "login"}, "buildr.op.login"},
	}
	for _, tc := range tests {
		if got := tc.meta.SpanName(); got != tc.want {
			t.Errorf("SpanName() = %q, want %q", got, tc.want)
		}
	}
}

func TestTracer_RecordsSpans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	tracer := NewTracer(tp.Tracer("test"))

	_, ok := tracer.StartSpan(context.Background(), OpMeta{Component: "api", Name: "health"})
	tracer.EndSpan(ok, nil)

	_, bad := tracer.StartSpan(context.Background(), OpMeta{Component: "api", Name: "generate_post"})
	tracer.EndSpan(bad, errors.New("boom"))

	spans := recorder.Ended()
	if len(spans) != 2 {
		t.Fatalf("expected 2 spans, got %d", len(spans))
	}
	if spans[0].Name() != "buildr.op.api.health" || spans[0].Status().Code != codes.Ok {
		t.Errorf("unexpected first span: %s %v", spans[0].Name(), spans[0].Status())
	}
	if spans[1].Status().Code != codes.Error {
		t.Errorf("expected error status, got %v", spans[1].Status())
	}
	var flagged bool
	for _, kv := range spans[1].Attributes() {
		if kv.Key == "op.error" && kv.Value.AsBool() {
			flagged = true
		}
	}
	if !flagged {
		t.Error("expected op.error=true on failed span")
	}
}

func TestNopTracer(t *testing.T) {
	tracer := NopTracer()
	_, span := tracer.StartSpan(context.Background(), OpMeta{Name: "x"})
	tracer.EndSpan(span, errors.New("ignored"))
}
