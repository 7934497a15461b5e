package trial

import (
	"context"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/time/rate"

	"github.com/torosent/crankbench/internal/measure"
	"github.com/torosent/crankbench/internal/metrics"
	"github.com/torosent/crankbench/internal/tracing"
)

// Emitter receives the step rows of a measured run. Begin is called once
// after BeforeTest with a prototype row whose keys every later row shares.
type Emitter interface {
	Begin(prototype *measure.Row) error
	Emit(row *measure.Row) error
}

// RowLayer adds fields to a row. Layers run in order and may only add or
// overwrite their own keys.
type RowLayer func(s State, row *measure.Row)

// Option customizes an Engine.
type Option func(*Engine)

// WithEmitter sends measured step rows to em.
func WithEmitter(em Emitter) Option { return func(e *Engine) { e.emitter = em } }

// WithCollector records measured step durations into c.
func WithCollector(c *metrics.Collector) Option { return func(e *Engine) { e.collector = c } }

// WithHooks replaces the hooks the workload provides.
func WithHooks(h Hooks) Option { return func(e *Engine) { e.hooks = h } }

// WithLogger sets the logger used for warm-up progress.
func WithLogger(l *slog.Logger) Option { return func(e *Engine) { e.logger = l } }

// WithTracer records phase spans with t.
func WithTracer(t trace.Tracer) Option { return func(e *Engine) { e.tracer = t } }

// WithLimiter overrides the limiter built from Config.StepRate.
func WithLimiter(l *rate.Limiter) Option { return func(e *Engine) { e.limiter = l } }

// WithClock replaces time.Now; tests use it to drive warm-up deterministically.
func WithClock(now func() time.Time) Option { return func(e *Engine) { e.now = now } }

// Engine runs the warm-up and measured iterations of one workload.
type Engine struct {
	workload  Workload
	cfg       Config
	hooks     Hooks
	emitter   Emitter
	collector *metrics.Collector
	limiter   *rate.Limiter
	tracer    trace.Tracer
	logger    *slog.Logger
	now       func() time.Time

	stepLayers   []RowLayer
	resultLayers []RowLayer

	mu         sync.RWMutex
	state      State
	discovered int
	epoch      time.Time
	done       bool
	measured   atomic.Int64
}

// New creates an engine for w. Hooks come from w when it implements
// HookProvider unless WithHooks overrides them.
func New(w Workload, cfg Config, opts ...Option) *Engine {
	cfg.normalize()
	e := &Engine{
		workload: w,
		cfg:      cfg,
		now:      time.Now,
	}
	if hp, ok := w.(HookProvider); ok {
		e.hooks = hp.Hooks()
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.tracer == nil {
		e.tracer = noop.NewTracerProvider().Tracer(tracing.ScopeName)
	}
	if e.logger == nil {
		e.logger = slog.New(slog.DiscardHandler)
	}
	if e.limiter == nil && cfg.StepRate > 0 {
		e.limiter = rate.NewLimiter(rate.Limit(cfg.StepRate), 1)
	}

	e.stepLayers = []RowLayer{baseStepLayer, timingStepLayer}
	if e.hooks.StepRow != nil {
		e.stepLayers = append(e.stepLayers, e.hooks.StepRow)
	}
	e.resultLayers = []RowLayer{baseResultLayer, timingResultLayer}
	if e.collector != nil {
		e.resultLayers = append(e.resultLayers, e.statsResultLayer)
	}
	if e.hooks.ResultRow != nil {
		e.resultLayers = append(e.resultLayers, e.hooks.ResultRow)
	}
	e.reset()
	return e
}

// Config returns the normalized configuration.
func (e *Engine) Config() Config { return e.cfg }

// State returns a snapshot of the current state. Safe to call concurrently
// with Run.
func (e *Engine) State() State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

// MeasuredSteps returns the number of steps taken after warm-up so far.
func (e *Engine) MeasuredSteps() int64 { return e.measured.Load() }

// Measuring reports whether step rows are currently emitted.
func (e *Engine) Measuring() bool { return e.State().Measuring }

// WarmingUp reports whether the engine is inside the warm-up phase.
func (e *Engine) WarmingUp() bool { return e.State().WarmingUp }

// Reset clears all state so the engine can run again.
func (e *Engine) Reset() {
	e.reset()
	if e.collector != nil {
		e.collector.Reset()
	}
}

func (e *Engine) reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = State{
		Workload:      e.workload.Name(),
		Iterations:    e.cfg.Iterations,
		WarmUpElapsed: -1,
	}
	e.discovered = 0
	e.done = false
	e.measured.Store(0)
}

// Run executes BeforeTest, warm-up, the measured iterations and AfterTest.
// AfterTest runs even when an earlier phase fails or panics; the first
// failure is returned as a *StepError.
func (e *Engine) Run(ctx context.Context) (err error) {
	e.mu.Lock()
	if e.done {
		e.mu.Unlock()
		return ErrEngineDone
	}
	e.done = true
	e.epoch = e.now()
	e.mu.Unlock()

	ctx, span := tracing.StartTrialSpan(ctx, e.tracer, e.workload.Name(), e.cfg.Iterations, e.cfg.WarmUpFloor)
	defer func() {
		s := e.State()
		tracing.EndSpan(span, err,
			tracing.KeySteps.Int(s.TotalSteps),
			tracing.KeyTestDuration.Int64(int64(s.TestDuration)),
		)
	}()

	defer func() {
		if tdErr := e.call(ctx, PhaseAfterTest, e.hooks.AfterTest); tdErr != nil && err == nil {
			err = tdErr
		}
		e.mu.Lock()
		e.state.LastResult = nil
		e.state.WarmingUp = false
		e.state.Measuring = false
		e.mu.Unlock()
	}()

	if err = e.call(ctx, PhaseBeforeTest, e.hooks.BeforeTest); err != nil {
		return err
	}
	if e.cfg.Measuring && e.emitter != nil {
		if beginErr := e.emitter.Begin(e.StepRow()); beginErr != nil {
			return e.fail(PhaseEmit, beginErr)
		}
	}
	if err = e.warmUp(ctx); err != nil {
		return err
	}

	ctx, measureSpan := tracing.StartPhaseSpan(ctx, e.tracer, tracing.PhaseMeasure)
	e.mu.Lock()
	e.state.Measuring = e.cfg.Measuring
	e.mu.Unlock()
	err = e.runIterations(ctx, e.cfg.Iterations)
	tracing.EndSpan(measureSpan, err)
	return err
}

func (e *Engine) warmUp(ctx context.Context) (err error) {
	ctx, span := tracing.StartPhaseSpan(ctx, e.tracer, tracing.PhaseWarmUp)
	defer func() {
		s := e.State()
		tracing.EndSpan(span, err,
			tracing.KeyWarmUpPasses.Int(s.WarmUpPasses),
			tracing.KeyWarmUpSpent.Int64(int64(s.WarmUpElapsed)),
		)
	}()

	e.mu.Lock()
	e.state.WarmUpElapsed = 0
	e.state.WarmingUp = true
	e.state.Measuring = false
	e.mu.Unlock()

	for {
		if err := ctx.Err(); err != nil {
			return e.fail(PhaseStep, err)
		}
		if err := e.runIterations(ctx, 1); err != nil {
			return err
		}
		e.mu.Lock()
		e.state.WarmUpElapsed += e.state.TestDuration
		e.state.WarmUpPasses++
		elapsed, passes := e.state.WarmUpElapsed, e.state.WarmUpPasses
		// A pass without steps can never reach the floor.
		finished := elapsed >= e.cfg.WarmUpFloor || e.state.TotalSteps == 0
		if finished {
			e.state.WarmingUp = false
		}
		e.mu.Unlock()

		if e.cfg.Verbose {
			e.logger.Debug("warm-up pass finished", "workload", e.workload.Name(), "pass", passes, "elapsed", elapsed)
		}
		if finished {
			if e.cfg.Verbose {
				e.logger.Info("Warmed up.", "workload", e.workload.Name(), "passes", passes, "elapsed", elapsed)
			}
			return nil
		}
	}
}

func (e *Engine) runIterations(ctx context.Context, iterations int) error {
	e.mu.Lock()
	e.state.TotalSteps = 0
	e.state.Iteration = 0
	e.state.Step = 0
	e.state.StepDuration = 0
	e.state.IterationDuration = 0
	e.state.TestDuration = 0
	e.discovered = 0
	e.mu.Unlock()

	if err := e.call(ctx, PhaseBeforeIterations, e.hooks.BeforeIterations); err != nil {
		return err
	}
	for it := 0; it < iterations; it++ {
		e.mu.Lock()
		e.state.Iteration = it
		e.state.Step = 0
		e.state.IterationDuration = 0
		e.mu.Unlock()

		if err := e.call(ctx, PhaseBeforeIteration, e.hooks.BeforeIteration); err != nil {
			return err
		}
		for e.hasNextStep() {
			if err := e.step(ctx); err != nil {
				return err
			}
		}
		if it == 0 {
			e.mu.Lock()
			e.discovered = e.state.Step
			e.mu.Unlock()
		}
		if err := e.call(ctx, PhaseAfterIteration, e.hooks.AfterIteration); err != nil {
			return err
		}
	}
	e.mu.Lock()
	e.state.Iteration = iterations
	e.mu.Unlock()
	return e.call(ctx, PhaseAfterIterations, e.hooks.AfterIterations)
}

func (e *Engine) hasNextStep() bool {
	s := e.State()
	if e.hooks.HasNextStep != nil {
		return e.hooks.HasNextStep(s)
	}
	if s.Iteration == 0 {
		if e.hooks.DiscoverStep != nil {
			return e.hooks.DiscoverStep(s)
		}
		return s.Step < e.cfg.StepsPerIteration
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return s.Step < e.discovered
}

func (e *Engine) step(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return e.fail(PhaseStep, err)
	}
	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return e.fail(PhasePace, err)
		}
	}
	if err := e.call(ctx, PhaseBeforeStep, e.hooks.BeforeStep); err != nil {
		return err
	}

	start := e.now()
	result, stepErr := e.runStep(ctx)
	stop := e.now()
	d := stop.Sub(start)

	e.mu.Lock()
	e.state.LastResult = result
	e.state.StepStart = start.Sub(e.epoch)
	e.state.StepStop = stop.Sub(e.epoch)
	e.state.StepDuration = d
	e.state.IterationDuration += d
	e.state.TestDuration += d
	measuring := e.state.Measuring
	warming := e.state.WarmingUp
	e.mu.Unlock()

	if measuring && e.collector != nil {
		e.collector.RecordStep(d, stepErr)
	}
	if stepErr != nil {
		return e.fail(PhaseStep, stepErr)
	}

	if err := e.call(ctx, PhaseAfterStep, e.hooks.AfterStep); err != nil {
		return err
	}
	if measuring && e.emitter != nil {
		if err := e.emitter.Emit(e.StepRow()); err != nil {
			return e.fail(PhaseEmit, err)
		}
	}

	e.mu.Lock()
	e.state.Step++
	e.state.TotalSteps++
	e.mu.Unlock()
	if !warming {
		e.measured.Add(1)
	}
	return nil
}

func (e *Engine) runStep(ctx context.Context) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	return e.workload.RunStep(ctx)
}

func (e *Engine) call(ctx context.Context, phase Phase, h Hook) (err error) {
	if h == nil {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = e.fail(phase, &PanicError{Value: r, Stack: debug.Stack()})
		}
	}()
	if hookErr := h(ctx, e.State()); hookErr != nil {
		return e.fail(phase, hookErr)
	}
	return nil
}

func (e *Engine) fail(phase Phase, err error) *StepError {
	s := e.State()
	return &StepError{
		Workload:  s.Workload,
		Phase:     phase,
		WarmingUp: s.WarmingUp,
		Iteration: s.Iteration,
		Step:      s.Step,
		Err:       err,
	}
}

// StepRow builds the measurement row describing the most recent step.
func (e *Engine) StepRow() *measure.Row {
	s := e.State()
	row := measure.NewRow(8)
	for _, layer := range e.stepLayers {
		layer(s, row)
	}
	return row
}

// Result builds the summary row of the test.
func (e *Engine) Result() *measure.Row {
	s := e.State()
	row := measure.NewRow(12)
	for _, layer := range e.resultLayers {
		layer(s, row)
	}
	return row
}

func baseStepLayer(s State, row *measure.Row) {
	row.Set("Iteration", measure.Int(int64(s.Iteration)))
	row.Set("Step", measure.Int(int64(s.Step)))
	row.Set("Result", measure.Of(s.LastResult))
}

func timingStepLayer(s State, row *measure.Row) {
	row.Set("Start", measure.Duration(s.StepStart))
	row.Set("Stop", measure.Duration(s.StepStop))
	row.Set("Duration", measure.Duration(s.StepDuration))
}

func baseResultLayer(s State, row *measure.Row) {
	row.Set("Name", measure.Text(s.Workload))
	row.Set("Iterations", measure.Int(int64(s.Iteration)))
	row.Set("Steps", measure.Int(int64(s.TotalSteps)))
}

func timingResultLayer(s State, row *measure.Row) {
	row.Set("Duration", measure.Duration(s.TestDuration))
	row.Set("Avg It Dur", measure.Duration(s.AverageIterationDuration()))
	row.Set("Avg St Dur", measure.Duration(s.AverageStepDuration()))
}

func (e *Engine) statsResultLayer(s State, row *measure.Row) {
	stats := e.collector.Stats(s.TestDuration)
	row.Set("Min St Dur", measure.Duration(stats.Min))
	row.Set("P50 St Dur", measure.Duration(stats.P50))
	row.Set("P99 St Dur", measure.Duration(stats.P99))
	row.Set("Max St Dur", measure.Duration(stats.Max))
}
