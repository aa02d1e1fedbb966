package engine

import (
	"context"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/roach88/flwor/internal/expr"
)

// TracerName is the instrumentation scope of spans created by OtelListener.
const TracerName = "github.com/roach88/flwor/internal/engine"

// SlogListener logs every traced clause call. Enter and leave lines carry
// the clause label, the stream event and the execution ID.
//
// Thread-safety: SlogListener is safe for concurrent use.
type SlogListener struct {
	Logger *slog.Logger
	Level  slog.Level
}

var _ expr.TraceListener = (*SlogListener)(nil)

// NewSlogListener creates a listener logging at debug level.
func NewSlogListener(logger *slog.Logger) *SlogListener {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogListener{Logger: logger, Level: slog.LevelDebug}
}

func (l *SlogListener) Enter(c *expr.Context, info expr.TraceInfo) {
	l.log(c.Go(), "enter clause", info)
}

func (l *SlogListener) Leave(info expr.TraceInfo) {
	l.log(context.Background(), "leave clause", info)
}

func (l *SlogListener) log(ctx context.Context, msg string, info expr.TraceInfo) {
	l.Logger.LogAttrs(ctx, l.Level, msg,
		slog.String("clause", info.Clause),
		slog.String("event", string(info.Event)),
		slog.String("execution_id", info.ExecutionID),
		slog.String("location", info.Location.String()),
	)
}

// OtelListener turns traced clause calls into OpenTelemetry spans. Calls of
// one evaluation are strictly nested, so each execution keeps a stack of
// open spans; a nested call becomes a child of the enclosing one and the
// outermost call a child of the span in the evaluation's Go context.
//
// Thread-safety: OtelListener is safe for concurrent use via internal mutex.
type OtelListener struct {
	tracer trace.Tracer

	mu   sync.Mutex
	open map[string][]openSpan // execution ID -> stack
}

type openSpan struct {
	ctx  context.Context
	span trace.Span
}

var _ expr.TraceListener = (*OtelListener)(nil)

// NewOtelListener creates a listener recording spans with tp.
func NewOtelListener(tp trace.TracerProvider) *OtelListener {
	return &OtelListener{
		tracer: tp.Tracer(TracerName),
		open:   make(map[string][]openSpan),
	}
}

func (l *OtelListener) Enter(c *expr.Context, info expr.TraceInfo) {
	l.mu.Lock()
	defer l.mu.Unlock()

	parent := c.Go()
	stack := l.open[info.ExecutionID]
	if n := len(stack); n > 0 {
		parent = stack[n-1].ctx
	}
	ctx, span := l.tracer.Start(parent, info.Clause+" "+string(info.Event),
		trace.WithAttributes(
			attribute.String("flwor.clause", info.Clause),
			attribute.String("flwor.event", string(info.Event)),
			attribute.String("flwor.execution_id", info.ExecutionID),
			attribute.String("flwor.location", info.Location.String()),
		),
	)
	l.open[info.ExecutionID] = append(stack, openSpan{ctx: ctx, span: span})
}

func (l *OtelListener) Leave(info expr.TraceInfo) {
	l.mu.Lock()
	defer l.mu.Unlock()

	stack := l.open[info.ExecutionID]
	n := len(stack)
	if n == 0 {
		return
	}
	stack[n-1].span.End()
	if n == 1 {
		delete(l.open, info.ExecutionID)
		return
	}
	l.open[info.ExecutionID] = stack[:n-1]
}

// OpenSpans returns the number of spans not yet ended. It is zero between
// evaluations.
func (l *OtelListener) OpenSpans() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	n := 0
	for _, stack := range l.open {
		n += len(stack)
	}
	return n
}
