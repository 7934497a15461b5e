package tracing

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys recorded on crankbench spans.
const (
	KeyRunID        = attribute.Key("crankbench.run_id")
	KeyMode         = attribute.Key("crankbench.mode")
	KeyTests        = attribute.Key("crankbench.tests")
	KeyFailed       = attribute.Key("crankbench.failed")
	KeyTest         = attribute.Key("crankbench.test")
	KeyCategory     = attribute.Key("crankbench.category")
	KeyIterations   = attribute.Key("crankbench.iterations")
	KeyCompleted    = attribute.Key("crankbench.iterations_completed")
	KeyWarmUpFloor  = attribute.Key("crankbench.warm_up_floor_ns")
	KeyWarmUpPasses = attribute.Key("crankbench.warm_up_passes")
	KeyWarmUpSpent  = attribute.Key("crankbench.warm_up_elapsed_ns")
	KeySteps        = attribute.Key("crankbench.steps")
	KeyMeasured     = attribute.Key("crankbench.measured_steps")
	KeyTestDuration = attribute.Key("crankbench.test_duration_ns")
)

// Phase span names below a trial span.
const (
	PhaseWarmUp  = "warm-up"
	PhaseMeasure = "measure"
)

// StartBatchSpan starts the root span of one runner batch.
func StartBatchSpan(ctx context.Context, tracer trace.Tracer, runID string, tests int, mode string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "batch",
		trace.WithAttributes(
			KeyRunID.String(runID),
			KeyTests.Int(tests),
			KeyMode.String(mode),
		),
	)
}

// StartTestSpan starts the span covering one test case, named
// "test <category>/<name>".
func StartTestSpan(ctx context.Context, tracer trace.Tracer, category, name string) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{KeyTest.String(name)}
	spanName := "test " + name
	if category != "" {
		spanName = "test " + category + "/" + name
		attrs = append(attrs, KeyCategory.String(category))
	}
	return tracer.Start(ctx, spanName, trace.WithAttributes(attrs...))
}

// StartTrialSpan starts the span of one engine run.
func StartTrialSpan(ctx context.Context, tracer trace.Tracer, workload string, iterations int, warmUpFloor time.Duration) (context.Context, trace.Span) {
	return tracer.Start(ctx, "trial "+workload,
		trace.WithAttributes(
			KeyIterations.Int(iterations),
			KeyWarmUpFloor.Int64(int64(warmUpFloor)),
		),
	)
}

// StartPhaseSpan starts a PhaseWarmUp or PhaseMeasure span.
func StartPhaseSpan(ctx context.Context, tracer trace.Tracer, phase string) (context.Context, trace.Span) {
	return tracer.Start(ctx, phase)
}

// EndSpan finishes a span, recording error status if applicable.
func EndSpan(span trace.Span, err error, attrs ...attribute.KeyValue) {
	if len(attrs) > 0 {
		span.SetAttributes(attrs...)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
