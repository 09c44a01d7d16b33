package automation

import "context"

// SpanAttr is a single key/value span or event attribute.
type SpanAttr struct {
	Key   string
	Value any
}

// Attr constructs a SpanAttr.
func Attr(key string, value any) SpanAttr {
	return SpanAttr{Key: key, Value: value}
}

// Tracer starts spans for the engine's suspension points (task execution,
// sandbox runs, permission decisions, rollback). The zero-value default is
// NoopTracer; an observer-package implementation backed by OpenTelemetry can
// be installed via the WithTracer options on Workflow, sandbox.Executor,
// permission.Manager, and rollback.Manager.
type Tracer interface {
	Start(ctx context.Context, name string, attrs ...SpanAttr) (context.Context, Span)
}

// Span is one instrumented unit of work.
type Span interface {
	SetAttr(attrs ...SpanAttr)
	Event(name string, attrs ...SpanAttr)
	Error(err error)
	End()
}

// NoopTracer discards every span. It is the default Tracer when the caller
// does not configure an observer-backed one.
type NoopTracer struct{}

func (NoopTracer) Start(ctx context.Context, name string, attrs ...SpanAttr) (context.Context, Span) {
	return ctx, noopSpan{}
}

type noopSpan struct{}

func (noopSpan) SetAttr(attrs ...SpanAttr)        {}
func (noopSpan) Event(name string, attrs ...SpanAttr) {}
func (noopSpan) Error(err error)                  {}
func (noopSpan) End()                             {}

var (
	_ Tracer = NoopTracer{}
	_ Span   = noopSpan{}
)
