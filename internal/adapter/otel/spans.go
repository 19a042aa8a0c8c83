package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "scrumix"

// StartVelocitySpan starts a span around velocity accounting for a sprint.
func StartVelocitySpan(ctx context.Context, op, projectID, sprintID string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "velocity."+op,
		trace.WithAttributes(
			attribute.String("project.id", projectID),
			attribute.String("sprint.id", sprintID),
		),
	)
}

// StartHierarchySpan starts a span for backlog hierarchy maintenance.
func StartHierarchySpan(ctx context.Context, op, projectID string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "backlog."+op,
		trace.WithAttributes(attribute.String("project.id", projectID)),
	)
}

// StartEventSpan starts a span for publishing or relaying a bus event.
func StartEventSpan(ctx context.Context, subject string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "event "+subject,
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(attribute.String("messaging.destination.name", subject)),
	)
}
