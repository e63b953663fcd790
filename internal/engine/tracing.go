// Tracing instrumentation for the executor.
package engine

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/stevehiehn/capflow/internal/engine"

func tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// startPlanSpan starts a span for a whole execution.
func startPlanSpan(ctx context.Context, executionID, planID string, steps int) (context.Context, trace.Span) {
	ctx, span := tracer().Start(ctx, "plan.execute")
	span.SetAttributes(
		attribute.String("execution.id", executionID),
		attribute.String("plan.id", planID),
		attribute.Int("plan.steps", steps),
	)
	return ctx, span
}

func endPlanSpan(span trace.Span, status PlanStatus, steps int, err error) {
	span.SetAttributes(
		attribute.String("plan.status", string(status)),
		attribute.Int("plan.final_steps", steps),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// startCapabilitySpan starts a span for one capability invocation.
func startCapabilitySpan(ctx context.Context, name string, step int, critical bool) (context.Context, trace.Span) {
	ctx, span := tracer().Start(ctx, "capability."+name)
	span.SetAttributes(
		attribute.String("capability.name", name),
		attribute.Int("step.order", step),
		attribute.Bool("capability.critical", critical),
	)
	return ctx, span
}

func endCapabilitySpan(span trace.Span, success bool, code string) {
	span.SetAttributes(attribute.Bool("capability.success", success))
	if !success {
		span.SetAttributes(attribute.String("capability.error_code", code))
		span.SetStatus(codes.Error, code)
	}
	span.End()
}
