package engine

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/roach88/flwor/internal/ir"
)

func newRecordingListener(t *testing.T) (*OtelListener, *tracetest.SpanRecorder) {
	t.Helper()
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return NewOtelListener(tp), sr
}

func TestOtelListener_Spans(t *testing.T) {
	for _, mode := range modes {
		t.Run(string(mode), func(t *testing.T) {
			listener, sr := newRecordingListener(t)
			e := newTestEngine(t, WithTrace(listener), WithOptimize(false), WithMode(mode))

			got, err := run(t, e, "for $x in (1, 2) return $x", Input{})
			require.NoError(t, err)
			assert.Equal(t, ir.Ints(1, 2), got)

			spans := sr.Ended()
			require.NotEmpty(t, spans)
			assert.Equal(t, 0, listener.OpenSpans())
			for _, span := range spans {
				assert.True(t, strings.HasPrefix(span.Name(), "for $x "), span.Name())
				attrs := make(map[string]string)
				for _, kv := range span.Attributes() {
					attrs[string(kv.Key)] = kv.Value.Emit()
				}
				assert.Equal(t, "exec-1", attrs["flwor.execution_id"])
				assert.Equal(t, "for $x", attrs["flwor.clause"])
			}
		})
	}
}

func TestOtelListener_Nesting(t *testing.T) {
	listener, sr := newRecordingListener(t)
	e := newTestEngine(t, WithTrace(listener), WithOptimize(false))

	_, err := run(t, e, "for $x in (1, 2) for $y in (3, 4) return $x * $y", Input{})
	require.NoError(t, err)

	spans := sr.Ended()
	ids := make(map[string]bool)
	for _, span := range spans {
		ids[span.SpanContext().SpanID().String()] = true
	}
	nested := 0
	for _, span := range spans {
		if span.Parent().IsValid() && ids[span.Parent().SpanID().String()] {
			nested++
		}
	}
	assert.Positive(t, nested)
	assert.Equal(t, 0, listener.OpenSpans())
}

func TestOtelListener_NoTraceWithoutOption(t *testing.T) {
	_, sr := newRecordingListener(t)
	e := newTestEngine(t, WithOptimize(false))

	_, err := run(t, e, "for $x in (1, 2) return $x", Input{})
	require.NoError(t, err)
	assert.Empty(t, sr.Ended())
}

func TestSlogListener(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	e := newTestEngine(t, WithTrace(NewSlogListener(logger)), WithOptimize(false))

	_, err := run(t, e, "for $x in (1, 2) where $x > 1 return $x", Input{})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, `"msg":"enter clause"`)
	assert.Contains(t, out, `"msg":"leave clause"`)
	assert.Contains(t, out, `"clause":"for $x"`)
	assert.Contains(t, out, `"execution_id":"exec-1"`)
	assert.Equal(t, strings.Count(out, "enter clause"), strings.Count(out, "leave clause"))
}

func TestTraceClausesAreCachedSeparately(t *testing.T) {
	listener, sr := newRecordingListener(t)
	traced := newTestEngine(t, WithTrace(listener), WithOptimize(false))
	plain := newTestEngine(t, WithOptimize(false))

	const query = "for $x in (1, 2) order by $x return $x"
	tq, err := traced.Compile(query)
	require.NoError(t, err)
	pq, err := plain.Compile(query)
	require.NoError(t, err)

	assert.Contains(t, tq.Explain(), "trace")
	assert.NotContains(t, pq.Explain(), "trace")

	_, err = tq.Evaluate(context.Background(), Input{})
	require.NoError(t, err)
	assert.NotEmpty(t, sr.Ended())
}
