// Package metrics aggregates the step durations measured by a trial engine.
//
// A [Collector] is owned by exactly one test. The engine records every step
// taken after warm-up; warm-up steps never reach it:
//
//	collector := metrics.NewCollector()
//	collector.RecordStep(stepDuration, err)
//
//	stats := collector.Stats(testDuration)
//	fmt.Println(stats.P99, stats.Mean)
//
// Percentiles come from an HDR histogram with nanosecond resolution (1ns up to
// one minute, three significant figures), so memory use is fixed regardless
// of the number of steps. Steps longer than a minute are clamped into the top
// bucket for percentile purposes; Min, Max and Mean stay exact.
//
// # Failures
//
// A failed step is still timed and counted. Its error is bucketed under a
// human readable label produced by [ErrorLabel]:
//
//	metrics.ErrorLabel(context.Canceled)  // "Context canceled"
//
// # Thread Safety
//
// Collector methods lock internally, so a progress reporter may call Stats
// while the engine is recording.
package metrics
