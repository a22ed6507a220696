package observe

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// installTracer swaps the global tracer provider for one recording into
// memory. Tests using it must not run in parallel.
func installTracer(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()
	exp := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		_ = tp.Shutdown(context.Background())
	})
	return exp
}

// captureLogs redirects the default logger into a buffer.
func captureLogs(t *testing.T, level slog.Level) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: level})))
	t.Cleanup(func() { slog.SetDefault(prev) })
	return &buf
}

func TestStartSpan_Attributes(t *testing.T) {
	exp := installTracer(t)

	ctx, span := StartSpan(context.Background(), "translation.translate",
		attribute.String("translation.target", "vi"))
	if len(TraceID(ctx)) != 32 {
		t.Errorf("TraceID = %q, want 32 hex chars", TraceID(ctx))
	}
	EndSpan(span, nil)

	spans := exp.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("recorded %d spans, want 1", len(spans))
	}
	got := spans[0]
	if got.Name != "translation.translate" {
		t.Errorf("Name = %q", got.Name)
	}
	if got.Status.Code == codes.Error {
		t.Error("successful span marked as error")
	}
	found := false
	for _, a := range got.Attributes {
		if a.Key == "translation.target" && a.Value.AsString() == "vi" {
			found = true
		}
	}
	if !found {
		t.Errorf("attributes = %v, want translation.target=vi", got.Attributes)
	}
}

func TestEndSpan_RecordsError(t *testing.T) {
	exp := installTracer(t)

	_, span := StartSpan(context.Background(), "translation.translate")
	EndSpan(span, errors.New("provider timeout"))

	spans := exp.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("recorded %d spans, want 1", len(spans))
	}
	if spans[0].Status.Code != codes.Error || spans[0].Status.Description != "provider timeout" {
		t.Errorf("Status = %+v", spans[0].Status)
	}
	if len(spans[0].Events) == 0 || spans[0].Events[0].Name != "exception" {
		t.Errorf("Events = %v, want an exception event", spans[0].Events)
	}
}

func TestTraceID_NoSpan(t *testing.T) {
	t.Parallel()

	if got := TraceID(context.Background()); got != "" {
		t.Errorf("TraceID = %q, want empty", got)
	}
}

func TestLogger_TraceFields(t *testing.T) {
	installTracer(t)
	buf := captureLogs(t, slog.LevelInfo)

	ctx, span := StartSpan(context.Background(), "bridge.message")
	defer span.End()
	Logger(ctx).Info("cue pushed")
	Logger(context.Background()).Info("no span")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d log lines, want 2:\n%s", len(lines), buf.String())
	}
	if !strings.Contains(lines[0], "trace_id="+TraceID(ctx)) || !strings.Contains(lines[0], "span_id=") {
		t.Errorf("traced line missing ids: %s", lines[0])
	}
	if strings.Contains(lines[1], "trace_id") {
		t.Errorf("untraced line has trace_id: %s", lines[1])
	}
}
