package runner

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/sync/errgroup"

	"github.com/torosent/crankbench/internal/measure"
	"github.com/torosent/crankbench/internal/metrics"
	"github.com/torosent/crankbench/internal/tracing"
)

// Outcome is the result of one test in a batch.
type Outcome struct {
	Name    string
	Row     *measure.Row
	Stats   *metrics.Stats
	Err     error
	Elapsed time.Duration
}

// Failed reports whether the test returned an error.
func (o Outcome) Failed() bool { return o.Err != nil }

// Report summarizes a batch. Outcomes are in input order.
type Report struct {
	RunID    string
	Mode     Mode
	Started  time.Time
	Finished time.Time
	Outcomes []Outcome
}

// Duration is the wall time of the batch.
func (r Report) Duration() time.Duration { return r.Finished.Sub(r.Started) }

// Rows returns the result rows in input order.
func (r Report) Rows() []*measure.Row {
	rows := make([]*measure.Row, len(r.Outcomes))
	for i, o := range r.Outcomes {
		rows[i] = o.Row
	}
	return rows
}

// Failures returns the outcomes of failed tests.
func (r Report) Failures() []Outcome {
	var failed []Outcome
	for _, o := range r.Outcomes {
		if o.Failed() {
			failed = append(failed, o)
		}
	}
	return failed
}

// Progress is a point-in-time view of a running batch.
type Progress struct {
	Total int
	Done  int
	Steps int64
	Tests []TestProgress
}

// TestProgress is the live state of one test, in batch order. Stats is nil
// for tests that do not record step statistics.
type TestProgress struct {
	Name      string
	Steps     int64
	WarmingUp bool
	Finished  bool
	Failed    bool
	Stats     *metrics.Stats
}

// Runner executes batches of tests.
type Runner struct {
	opt Options

	mu       sync.Mutex
	tests    []Test
	finished []bool
	failed   []bool
	done     atomic.Int64
}

func New(opt Options) *Runner {
	opt.normalize()
	return &Runner{opt: opt}
}

// Run executes every test exactly once and waits for all of them.
func (r *Runner) Run(ctx context.Context, tests []Test) Report {
	r.mu.Lock()
	r.tests = tests
	r.finished = make([]bool, len(tests))
	r.failed = make([]bool, len(tests))
	r.mu.Unlock()
	r.done.Store(0)

	report := Report{
		RunID:    ulid.Make().String(),
		Mode:     r.opt.Mode,
		Started:  time.Now().UTC(),
		Outcomes: make([]Outcome, len(tests)),
	}
	logger := r.opt.Logger.With("run_id", report.RunID)

	tracer := r.opt.Tracer
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer(tracing.ScopeName)
	}
	ctx, span := tracing.StartBatchSpan(ctx, tracer, report.RunID, len(tests), string(r.opt.Mode))

	logger.Info(fmt.Sprintf("Running %d test(s).", len(tests)), "mode", r.opt.Mode)

	runOne := func(i int) {
		t := tests[i]
		logger.Info(fmt.Sprintf("Started %s.", t.Name()))
		start := time.Now()
		err := t.Run(ctx)
		o := Outcome{
			Name:    t.Name(),
			Row:     t.Result(),
			Err:     err,
			Elapsed: time.Since(start),
		}
		if sp, ok := t.(StatsProvider); ok {
			stats := sp.Stats()
			o.Stats = &stats
		}
		if err != nil {
			logger.Error("Test failed.", "test", t.Name(), "error", err)
		}
		report.Outcomes[i] = o
		r.mu.Lock()
		r.finished[i] = true
		r.failed[i] = err != nil
		r.mu.Unlock()
		r.done.Add(1)
	}

	switch r.opt.Mode {
	case ModeSequential:
		for i := range tests {
			runOne(i)
		}
	default:
		var g errgroup.Group
		if r.opt.Parallelism > 0 {
			g.SetLimit(r.opt.Parallelism)
		}
		for i := range tests {
			g.Go(func() error {
				runOne(i)
				return nil
			})
		}
		_ = g.Wait()
	}

	report.Finished = time.Now().UTC()
	logger.Info("Finished all tests.", "elapsed", report.Duration())

	failed := len(report.Failures())
	var batchErr error
	if failed > 0 {
		batchErr = fmt.Errorf("%d of %d tests failed", failed, len(tests))
	}
	tracing.EndSpan(span, batchErr, tracing.KeyFailed.Int(failed))
	return report
}

// Progress reports how many tests finished, how many measured steps the
// current batch has taken and the live state of every test. Safe to call
// while Run is in progress.
func (r *Runner) Progress() Progress {
	r.mu.Lock()
	tests := r.tests
	finished := append([]bool(nil), r.finished...)
	failed := append([]bool(nil), r.failed...)
	r.mu.Unlock()

	p := Progress{
		Total: len(tests),
		Done:  int(r.done.Load()),
		Tests: make([]TestProgress, len(tests)),
	}
	for i, t := range tests {
		tp := TestProgress{Name: t.Name(), Finished: finished[i], Failed: failed[i]}
		if sc, ok := t.(StepCounter); ok {
			tp.Steps = sc.MeasuredSteps()
			p.Steps += tp.Steps
		}
		if wr, ok := t.(WarmUpReporter); ok {
			tp.WarmingUp = wr.WarmingUp()
		}
		if sp, ok := t.(StatsProvider); ok {
			stats := sp.Stats()
			tp.Stats = &stats
		}
		p.Tests[i] = tp
	}
	return p
}
