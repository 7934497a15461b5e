package trial

import (
	"context"
	"time"

	"github.com/torosent/crankbench/internal/measure"
)

// Workload is the operation under test. RunStep is the only timed call.
type Workload interface {
	Name() string
	RunStep(ctx context.Context) (any, error)
}

// HookProvider is implemented by workloads that need phase callbacks.
type HookProvider interface {
	Hooks() Hooks
}

// Hook is a phase callback. Returning an error aborts the run.
type Hook func(ctx context.Context, s State) error

// Hooks are optional phase callbacks, invoked in the order documented on the
// package. Hooks receive a copy of the engine state and cannot modify it.
type Hooks struct {
	BeforeTest       Hook
	AfterTest        Hook
	BeforeIterations Hook
	AfterIterations  Hook
	BeforeIteration  Hook
	AfterIteration   Hook
	BeforeStep       Hook
	AfterStep        Hook

	// HasNextStep replaces the default step policy when set.
	HasNextStep func(s State) bool
	// DiscoverStep decides whether iteration 0 takes another step.
	DiscoverStep func(s State) bool

	// StepRow adds domain fields to each step row.
	StepRow func(s State, row *measure.Row)
	// ResultRow adds domain fields to the final result row.
	ResultRow func(s State, row *measure.Row)
}

// State is a snapshot of the engine. Durations come from the monotonic clock;
// StepStart and StepStop are offsets from the start of Run.
type State struct {
	Workload          string
	Iterations        int
	Iteration         int
	Step              int
	TotalSteps        int
	LastResult        any
	StepStart         time.Duration
	StepStop          time.Duration
	StepDuration      time.Duration
	IterationDuration time.Duration
	TestDuration      time.Duration
	WarmUpElapsed     time.Duration // -1 until warm-up starts
	WarmUpPasses      int
	WarmingUp         bool
	Measuring         bool
}

// AverageStepDuration is TestDuration / max(1, TotalSteps).
func (s State) AverageStepDuration() time.Duration {
	return s.TestDuration / time.Duration(max(1, s.TotalSteps))
}

// AverageIterationDuration is TestDuration / max(1, Iterations).
func (s State) AverageIterationDuration() time.Duration {
	return s.TestDuration / time.Duration(max(1, s.Iterations))
}
