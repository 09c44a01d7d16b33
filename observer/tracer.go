package observer

import (
	"context"
	"fmt"
	"sync"
	"time"

	automation "github.com/execore/automation"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// otelTracer implements automation.Tracer using OpenTelemetry, and records
// the engine's domain counters/histograms (Instruments) when a span ends,
// keyed off the span name set by each component's WithTracer wiring.
type otelTracer struct {
	inner trace.Tracer
	inst  *Instruments
}

// NewTracer returns an automation.Tracer backed by the global OTEL
// TracerProvider, recording into inst. Call observer.Init() first to
// configure the provider; otherwise spans go to a no-op backend.
func NewTracer(inst *Instruments) automation.Tracer {
	return &otelTracer{inner: otel.Tracer(scopeName), inst: inst}
}

func (t *otelTracer) Start(ctx context.Context, name string, attrs ...automation.SpanAttr) (context.Context, automation.Span) {
	otelAttrs := make([]attribute.KeyValue, len(attrs))
	for i, a := range attrs {
		otelAttrs[i] = toOTELAttr(a)
	}
	ctx, span := t.inner.Start(ctx, name, trace.WithAttributes(otelAttrs...))
	return ctx, &otelSpan{
		inner: span,
		inst:  t.inst,
		name:  name,
		start: time.Now(),
		attrs: make(map[string]any),
	}
}

// otelSpan implements automation.Span using an OTEL trace.Span, accumulating
// SetAttr values so End can record the right domain metric.
type otelSpan struct {
	inner trace.Span
	inst  *Instruments
	name  string
	start time.Time

	mu    sync.Mutex
	attrs map[string]any
}

func (s *otelSpan) SetAttr(attrs ...automation.SpanAttr) {
	otelAttrs := make([]attribute.KeyValue, len(attrs))
	s.mu.Lock()
	for i, a := range attrs {
		otelAttrs[i] = toOTELAttr(a)
		s.attrs[a.Key] = a.Value
	}
	s.mu.Unlock()
	s.inner.SetAttributes(otelAttrs...)
}

func (s *otelSpan) Event(name string, attrs ...automation.SpanAttr) {
	otelAttrs := make([]attribute.KeyValue, len(attrs))
	for i, a := range attrs {
		otelAttrs[i] = toOTELAttr(a)
	}
	s.inner.AddEvent(name, trace.WithAttributes(otelAttrs...))
}

func (s *otelSpan) Error(err error) {
	s.inner.RecordError(err)
	s.inner.SetStatus(codes.Error, err.Error())
	s.mu.Lock()
	s.attrs["error"] = true
	s.mu.Unlock()
}

func (s *otelSpan) End() {
	s.recordMetrics()
	s.inner.End()
}

func (s *otelSpan) recordMetrics() {
	if s.inst == nil {
		return
	}
	ctx := context.Background()
	durationMs := float64(time.Since(s.start).Milliseconds())

	s.mu.Lock()
	attrs := s.attrs
	s.mu.Unlock()

	switch s.name {
	case "workflow.task":
		action, _ := attrs["task.action"].(string)
		if _, failed := attrs["error"]; failed {
			s.inst.TaskFailures.Add(ctx, 1, metric.WithAttributes(AttrTaskAction.String(action)))
		} else {
			s.inst.TaskCompletions.Add(ctx, 1, metric.WithAttributes(AttrTaskAction.String(action)))
		}
		s.inst.TaskDuration.Record(ctx, durationMs, metric.WithAttributes(AttrTaskAction.String(action)))
	case "workflow.task.skip":
		action, _ := attrs["task.action"].(string)
		s.inst.TaskSkips.Add(ctx, 1, metric.WithAttributes(AttrTaskAction.String(action)))
	case "sandbox.execute":
		status, _ := attrs["sandbox.status"].(string)
		s.inst.SandboxExecutions.Add(ctx, 1, metric.WithAttributes(AttrSandboxStatus.String(status)))
		s.inst.SandboxDuration.Record(ctx, durationMs, metric.WithAttributes(AttrSandboxStatus.String(status)))
	case "permission.decide":
		decision, _ := attrs["permission.decision"].(string)
		s.inst.PermissionDecisions.Add(ctx, 1, metric.WithAttributes(AttrPermissionDecision.String(decision)))
		s.inst.PermissionDecisionDuration.Record(ctx, durationMs, metric.WithAttributes(AttrPermissionDecision.String(decision)))
	case "rollback.rollback":
		count, _ := attrs["rollback.point_count"].(int)
		s.inst.RollbackPoints.Add(ctx, int64(count))
	}
}

// toOTELAttr converts an automation.SpanAttr to an OTEL attribute.KeyValue.
func toOTELAttr(a automation.SpanAttr) attribute.KeyValue {
	switch v := a.Value.(type) {
	case string:
		return attribute.String(a.Key, v)
	case int:
		return attribute.Int(a.Key, v)
	case int64:
		return attribute.Int64(a.Key, v)
	case float64:
		return attribute.Float64(a.Key, v)
	case bool:
		return attribute.Bool(a.Key, v)
	default:
		return attribute.String(a.Key, fmt.Sprintf("%v", v))
	}
}

// compile-time checks
var (
	_ automation.Tracer = (*otelTracer)(nil)
	_ automation.Span   = (*otelSpan)(nil)
)
