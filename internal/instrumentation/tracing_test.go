package instrumentation

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func installRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		_ = tp.Shutdown(context.Background())
	})
	return recorder
}

func TestStartSyncSpan(t *testing.T) {
	recorder := installRecorder(t)

	ctx, span := StartSyncSpan(context.Background(), "manual", "alice", "cal-1", "acct-1")
	if GetTraceID(ctx) == "" {
		t.Error("expected a trace id in context")
	}
	SetSpanSuccess(span)
	span.End()

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if spans[0].Name() != "sync.run" {
		t.Errorf("span name = %q, want sync.run", spans[0].Name())
	}

	attrs := map[string]string{}
	for _, kv := range spans[0].Attributes() {
		attrs[string(kv.Key)] = kv.Value.AsString()
	}
	if attrs[SpanAttrUser] != "alice" || attrs[SpanAttrCalendar] != "cal-1" || attrs[SpanAttrTrigger] != "manual" {
		t.Errorf("unexpected attributes: %v", attrs)
	}
}

func TestStartGoogleAPISpan_Error(t *testing.T) {
	recorder := installRecorder(t)

	_, span := StartGoogleAPISpan(context.Background(), ServiceTasks, "insert")
	SetSpanError(span, errors.New("quota exceeded"))
	span.End()

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if spans[0].Name() != "google.tasks.insert" {
		t.Errorf("span name = %q", spans[0].Name())
	}
	if spans[0].Status().Code != codes.Error {
		t.Errorf("expected error status, got %v", spans[0].Status().Code)
	}
}

func TestSetSpanError_Nil(t *testing.T) {
	recorder := installRecorder(t)

	_, span := StartSpan(context.Background(), "noop")
	SetSpanError(span, nil)
	span.End()

	if got := recorder.Ended()[0].Status().Code; got != codes.Unset {
		t.Errorf("expected unset status, got %v", got)
	}
}

func TestGetTraceID_NoSpan(t *testing.T) {
	if id := GetTraceID(context.Background()); id != "" {
		t.Errorf("expected empty trace id, got %q", id)
	}
}
