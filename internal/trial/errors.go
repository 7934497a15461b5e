package trial

import (
	"errors"
	"fmt"
)

// ErrEngineDone is returned by Run when the engine already ran and was not reset.
var ErrEngineDone = errors.New("trial: engine already ran")

// Phase names the point of the run at which a failure happened.
type Phase string

const (
	PhaseBeforeTest       Phase = "before-test"
	PhaseAfterTest        Phase = "after-test"
	PhaseBeforeIterations Phase = "before-iterations"
	PhaseAfterIterations  Phase = "after-iterations"
	PhaseBeforeIteration  Phase = "before-iteration"
	PhaseAfterIteration   Phase = "after-iteration"
	PhaseBeforeStep       Phase = "before-step"
	PhaseStep             Phase = "step"
	PhaseAfterStep        Phase = "after-step"
	PhaseEmit             Phase = "emit"
	PhasePace             Phase = "pace"
)

// StepError reports a failure inside a workload step or hook.
type StepError struct {
	Workload  string
	Phase     Phase
	WarmingUp bool
	Iteration int
	Step      int
	Err       error
}

func (e *StepError) Error() string {
	stage := "iteration"
	if e.WarmingUp {
		stage = "warm-up iteration"
	}
	return fmt.Sprintf("%s: %s failed at %s %d step %d: %v", e.Workload, e.Phase, stage, e.Iteration, e.Step, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// PanicError carries a value recovered from a panicking step or hook.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}
