// Package testcase binds a workload to its engine, metrics collector and
// measurement sink for a single run.
package testcase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/torosent/crankbench/internal/measure"
	"github.com/torosent/crankbench/internal/metrics"
	"github.com/torosent/crankbench/internal/sink"
	"github.com/torosent/crankbench/internal/tracing"
	"github.com/torosent/crankbench/internal/trial"
)

// Sink receives measured step rows and is closed when the test ends.
type Sink interface {
	trial.Emitter
	Close() error
}

// Option configures a TestCase.
type Option func(*TestCase)

// WithCategory groups the test; it names the results subdirectory and the
// kind shown by String.
func WithCategory(category string) Option {
	return func(tc *TestCase) { tc.category = category }
}

// WithKind overrides the kind shown by String.
func WithKind(kind string) Option {
	return func(tc *TestCase) { tc.kind = kind }
}

// WithSink sends step rows to s.
func WithSink(s Sink) Option {
	return func(tc *TestCase) { tc.sink = s }
}

// WithResultsDir writes step rows to <dir>/<category>/<name>.csv.
func WithResultsDir(dir string) Option {
	return func(tc *TestCase) { tc.resultsDir = dir }
}

// WithTracer records a span per test.
func WithTracer(t trace.Tracer) Option {
	return func(tc *TestCase) { tc.tracer = t }
}

// WithLogger sets the logger handed to the engine.
func WithLogger(l *slog.Logger) Option {
	return func(tc *TestCase) { tc.logger = l }
}

// WithEngineOptions passes extra options to the engine.
func WithEngineOptions(opts ...trial.Option) Option {
	return func(tc *TestCase) { tc.engineOpts = append(tc.engineOpts, opts...) }
}

// TestCase is one named workload run under a trial engine.
type TestCase struct {
	name       string
	category   string
	kind       string
	resultsDir string

	engine     *trial.Engine
	collector  *metrics.Collector
	sink       Sink
	tracer     trace.Tracer
	logger     *slog.Logger
	engineOpts []trial.Option

	elapsed time.Duration
}

// New creates a test case for w.
func New(w trial.Workload, cfg trial.Config, opts ...Option) *TestCase {
	tc := &TestCase{
		name:      w.Name(),
		collector: metrics.NewCollector(),
	}
	for _, opt := range opts {
		opt(tc)
	}
	if tc.tracer == nil {
		tc.tracer = noop.NewTracerProvider().Tracer(tracing.ScopeName)
	}
	if tc.logger == nil {
		tc.logger = slog.New(slog.DiscardHandler)
	}
	if tc.kind == "" {
		tc.kind = tc.category
	}
	if tc.kind == "" {
		tc.kind = "Test"
	}
	if tc.sink == nil && tc.resultsDir != "" {
		tc.sink = sink.NewCSV(tc.resultsDir, tc.category, tc.name)
	}

	engineOpts := []trial.Option{
		trial.WithCollector(tc.collector),
		trial.WithTracer(tc.tracer),
		trial.WithLogger(tc.logger.With("test", tc.name)),
	}
	if tc.sink != nil {
		engineOpts = append(engineOpts, trial.WithEmitter(tc.sink))
	}
	tc.engine = trial.New(w, cfg, append(engineOpts, tc.engineOpts...)...)
	return tc
}

func (tc *TestCase) Name() string     { return tc.name }
func (tc *TestCase) Category() string { return tc.category }

// String identifies the test as Kind[name].
func (tc *TestCase) String() string {
	return fmt.Sprintf("%s[%s]", tc.kind, tc.name)
}

// Engine exposes the engine for progress reporting.
func (tc *TestCase) Engine() *trial.Engine { return tc.engine }

// MeasuredSteps returns the number of steps taken after warm-up so far.
func (tc *TestCase) MeasuredSteps() int64 { return tc.engine.MeasuredSteps() }

// WarmingUp reports whether the engine is in its warm-up passes.
func (tc *TestCase) WarmingUp() bool { return tc.engine.WarmingUp() }

// Elapsed is the wall time of the last Run, including warm-up and hooks.
func (tc *TestCase) Elapsed() time.Duration { return tc.elapsed }

// Run executes the engine once and closes the sink before returning, whether
// or not the run failed.
func (tc *TestCase) Run(ctx context.Context) (err error) {
	start := time.Now()
	ctx, span := tracing.StartTestSpan(ctx, tc.tracer, tc.category, tc.name)
	defer func() {
		if tc.sink != nil {
			if closeErr := tc.sink.Close(); closeErr != nil {
				err = errors.Join(err, closeErr)
			}
		}
		tc.elapsed = time.Since(start)
		tracing.EndSpan(span, err,
			tracing.KeyCompleted.Int(tc.engine.State().Iteration),
			tracing.KeyMeasured.Int64(tc.engine.MeasuredSteps()),
		)
	}()
	return tc.engine.Run(ctx)
}

// Result returns the summary row: base, timing and step statistics fields,
// then any fields the workload adds.
func (tc *TestCase) Result() *measure.Row { return tc.engine.Result() }

// Stats returns the measured step statistics.
func (tc *TestCase) Stats() metrics.Stats {
	return tc.collector.Stats(tc.engine.State().TestDuration)
}
