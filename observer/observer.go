// Package observer provides OpenTelemetry-based observability for the
// automation engine: a workflow.task span per task attempt, a
// sandbox.execute span per sandboxed run, a permission.decide span per
// policy decision, and a rollback.rollback span per rollback, each backed
// by the automation.Tracer interface so the engine's core packages stay
// free of an OTEL import.
package observer

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	automationlog "go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const scopeName = "github.com/execore/automation/observer"

// Instruments holds all OTEL instruments the engine's spans record into.
type Instruments struct {
	Tracer trace.Tracer
	Meter  metric.Meter
	Logger automationlog.Logger

	TaskCompletions metric.Int64Counter
	TaskFailures    metric.Int64Counter
	TaskSkips       metric.Int64Counter
	TaskDuration    metric.Float64Histogram

	SandboxExecutions metric.Int64Counter
	SandboxDuration   metric.Float64Histogram

	PermissionDecisions        metric.Int64Counter
	PermissionDecisionDuration metric.Float64Histogram

	RollbackPoints metric.Int64Counter
}

// Init sets up OTEL trace, metric, and log providers with OTLP HTTP
// exporters, configured via standard OTEL env vars
// (OTEL_EXPORTER_OTLP_ENDPOINT, etc.) plus serviceName for the resource
// attribute. Returns a shutdown function that must be called on application
// exit.
func Init(ctx context.Context, serviceName string) (*Instruments, func(context.Context) error, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceName(serviceName)),
		resource.WithFromEnv(),
	)
	if err != nil {
		return nil, nil, err
	}

	traceExp, err := otlptracehttp.New(ctx)
	if err != nil {
		return nil, nil, err
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExp),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	metricExp, err := otlpmetrichttp.New(ctx)
	if err != nil {
		_ = tp.Shutdown(ctx)
		return nil, nil, err
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExp)),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(mp)

	logExp, err := otlploghttp.New(ctx)
	if err != nil {
		_ = tp.Shutdown(ctx)
		_ = mp.Shutdown(ctx)
		return nil, nil, err
	}
	lp := sdklog.NewLoggerProvider(
		sdklog.WithProcessor(sdklog.NewBatchProcessor(logExp)),
		sdklog.WithResource(res),
	)
	global.SetLoggerProvider(lp)

	inst, err := newInstruments()
	if err != nil {
		_ = tp.Shutdown(ctx)
		_ = mp.Shutdown(ctx)
		_ = lp.Shutdown(ctx)
		return nil, nil, err
	}

	shutdown := func(ctx context.Context) error {
		return errors.Join(
			tp.Shutdown(ctx),
			mp.Shutdown(ctx),
			lp.Shutdown(ctx),
		)
	}

	return inst, shutdown, nil
}

func newInstruments() (*Instruments, error) {
	tracer := otel.Tracer(scopeName)
	meter := otel.Meter(scopeName)
	logger := global.GetLoggerProvider().Logger(scopeName)

	taskCompletions, err := meter.Int64Counter("workflow.task.completions",
		metric.WithDescription("Completed task count"), metric.WithUnit("{task}"))
	if err != nil {
		return nil, err
	}
	taskFailures, err := meter.Int64Counter("workflow.task.failures",
		metric.WithDescription("Failed task count"), metric.WithUnit("{task}"))
	if err != nil {
		return nil, err
	}
	taskSkips, err := meter.Int64Counter("workflow.task.skips",
		metric.WithDescription("Skipped task count"), metric.WithUnit("{task}"))
	if err != nil {
		return nil, err
	}
	taskDuration, err := meter.Float64Histogram("workflow.task.duration",
		metric.WithDescription("Task attempt duration"), metric.WithUnit("ms"))
	if err != nil {
		return nil, err
	}

	sandboxExecutions, err := meter.Int64Counter("sandbox.executions",
		metric.WithDescription("Sandbox execution count by terminal status"), metric.WithUnit("{execution}"))
	if err != nil {
		return nil, err
	}
	sandboxDuration, err := meter.Float64Histogram("sandbox.duration",
		metric.WithDescription("Sandbox wall-clock duration"), metric.WithUnit("ms"))
	if err != nil {
		return nil, err
	}

	permissionDecisions, err := meter.Int64Counter("permission.decisions",
		metric.WithDescription("Permission decision count by outcome"), metric.WithUnit("{decision}"))
	if err != nil {
		return nil, err
	}
	permissionDecisionDuration, err := meter.Float64Histogram("permission.decision.duration",
		metric.WithDescription("Permission decision latency"), metric.WithUnit("ms"))
	if err != nil {
		return nil, err
	}

	rollbackPoints, err := meter.Int64Counter("rollback.points",
		metric.WithDescription("Rollback points reversed"), metric.WithUnit("{point}"))
	if err != nil {
		return nil, err
	}

	return &Instruments{
		Tracer:                     tracer,
		Meter:                      meter,
		Logger:                     logger,
		TaskCompletions:            taskCompletions,
		TaskFailures:               taskFailures,
		TaskSkips:                  taskSkips,
		TaskDuration:               taskDuration,
		SandboxExecutions:          sandboxExecutions,
		SandboxDuration:            sandboxDuration,
		PermissionDecisions:        permissionDecisions,
		PermissionDecisionDuration: permissionDecisionDuration,
		RollbackPoints:             rollbackPoints,
	}, nil
}
