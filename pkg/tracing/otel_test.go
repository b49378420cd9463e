package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func newTestProvider(t *testing.T, maxTraces int) (*Provider, *tracetest.SpanRecorder) {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	p, err := NewProvider(context.Background(), Config{
		ServiceName:    "test",
		MaxTraces:      maxTraces,
		SpanProcessors: []sdktrace.SpanProcessor{rec},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Shutdown(context.Background()) })
	return p, rec
}

func attrs(span sdktrace.ReadOnlySpan) map[string]any {
	out := make(map[string]any)
	for _, kv := range span.Attributes() {
		out[string(kv.Key)] = kv.Value.AsInterface()
	}
	return out
}

func TestProviderSpanLifecycle(t *testing.T) {
	p, rec := newTestProvider(t, 0)

	_, span := p.Start(context.Background(), "predict_invoke")
	assert.Len(t, span.TraceID(), 32)

	span.SetInputs(map[string]any{"input": "hi"})
	span.SetAttribute("duration_ms", 0.12)
	span.SetAttribute("count", 3)
	span.End(map[string]any{"output": []any{}})

	ended := rec.Ended()
	require.Len(t, ended, 1)
	got := ended[0]
	assert.Equal(t, "predict_invoke", got.Name())
	assert.Equal(t, codes.Ok, got.Status().Code)

	a := attrs(got)
	assert.Equal(t, `{"input":"hi"}`, a[string(InputsKey)])
	assert.Equal(t, `{"output":[]}`, a[string(OutputsKey)])
	assert.Equal(t, 0.12, a["duration_ms"])
	assert.Equal(t, int64(3), a["count"])
	assert.Equal(t, SpanTypeAgent, a[string(SpanTypeKey)])
}

func TestProviderEndWithError(t *testing.T) {
	p, rec := newTestProvider(t, 0)

	_, span := p.Start(context.Background(), "predict_stream")
	span.EndWithError("Error: boom")
	span.End("ignored")

	ended := rec.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, codes.Error, ended[0].Status().Code)
	assert.Equal(t, "Error: boom", ended[0].Status().Description)
	assert.Equal(t, "Error: boom", attrs(ended[0])[string(OutputsKey)])
}

func TestProviderTraceWhileLive(t *testing.T) {
	p, _ := newTestProvider(t, 0)

	ctx, root := p.Start(context.Background(), "predict_invoke")
	_, child := p.Start(ctx, "retrieve")
	child.End("docs")

	tr, err := p.Trace(root.TraceID())
	require.NoError(t, err)

	info := tr["info"].(map[string]any)
	assert.Equal(t, root.TraceID(), info["trace_id"])
	assert.Equal(t, StateInProgress, info["state"])

	spans := tr["data"].(map[string]any)["spans"].([]any)
	require.Len(t, spans, 2)
	assert.Equal(t, "predict_invoke", spans[0].(map[string]any)["name"])
	assert.Equal(t, "retrieve", spans[1].(map[string]any)["name"])
	assert.Contains(t, spans[1].(map[string]any), "parent_span_id")
	root.End(nil)
}

func TestProviderTraceAfterRootEnds(t *testing.T) {
	p, _ := newTestProvider(t, 0)

	_, root := p.Start(context.Background(), "predict_stream")
	root.EndWithError("Error: x")

	tr, err := p.Trace(root.TraceID())
	require.NoError(t, err)
	info := tr["info"].(map[string]any)
	assert.Equal(t, StateError, info["state"])
	assert.Contains(t, info, "execution_duration_ms")
}

func TestProviderTraceNotFound(t *testing.T) {
	p, _ := newTestProvider(t, 0)

	_, err := p.Trace("0123456789abcdef0123456789abcdef")
	assert.ErrorIs(t, err, ErrTraceNotFound)

	_, err = p.Trace("not-hex")
	assert.Error(t, err)
}

func TestStoreEvictsOldestCompletedTrace(t *testing.T) {
	p, _ := newTestProvider(t, 2)

	var ids []string
	for range 3 {
		_, span := p.Start(context.Background(), "s")
		ids = append(ids, span.TraceID())
		span.End(nil)
	}

	_, err := p.Trace(ids[0])
	assert.ErrorIs(t, err, ErrTraceNotFound)
	for _, id := range ids[1:] {
		_, err := p.Trace(id)
		assert.NoError(t, err)
	}
	assert.Equal(t, 2, p.store.Len())
}

func TestNopTracer(t *testing.T) {
	ctx := context.Background()
	got, span := Nop().Start(ctx, "x")
	assert.Equal(t, ctx, got)
	assert.Empty(t, span.TraceID())
	span.SetInputs("a")
	span.SetAttribute("k", 1)
	span.End(nil)
	span.EndWithError("e")
}

func TestExporterOptions(t *testing.T) {
	assert.Len(t, exporterOptions(Config{OTLPEndpoint: "localhost:4318"}), 1)
	assert.Len(t, exporterOptions(Config{OTLPEndpoint: "http://collector:4318/v1/traces", Insecure: true}), 2)
}
