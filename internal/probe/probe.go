// Package probe provides the built-in workloads the CLI can benchmark.
package probe

import (
	"errors"
	"fmt"

	"github.com/torosent/crankbench/internal/config"
	"github.com/torosent/crankbench/internal/measure"
	"github.com/torosent/crankbench/internal/trial"
)

// ErrUnknownKind is returned by New for kinds it cannot build.
var ErrUnknownKind = errors.New("unknown workload kind")

// Workload is a probe. Every probe provides hooks.
type Workload interface {
	trial.Workload
	trial.HookProvider
	Kind() string
}

// New builds the workload described by spec. Only the name and a nil Steps
// (one step per iteration) are defaulted here; pass a spec resolved with
// config.Config.Resolved.
func New(spec config.WorkloadSpec) (Workload, error) {
	b := base{name: spec.Name, steps: 1}
	if spec.Steps != nil {
		b.steps = *spec.Steps
	}
	if b.name == "" {
		b.name = spec.Kind
	}
	switch spec.Kind {
	case config.KindSleep:
		return &Sleep{base: b, Interval: spec.Duration}, nil
	case config.KindHash:
		return &Hash{base: b, Size: spec.Size}, nil
	case config.KindYAML:
		return &YAMLDecode{base: b, Size: spec.Size}, nil
	case config.KindJSON:
		return &JSONQuery{base: b, Size: spec.Size}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, spec.Kind)
	}
}

type base struct {
	name  string
	steps int
}

func (b base) Name() string { return b.name }

// discover takes a fixed number of steps in the first iteration; the engine
// repeats that count afterwards.
func (b base) discover(s trial.State) bool { return s.Step < b.steps }

// throughputRow adds the payload size and the processed megabytes per second.
func throughputRow(size int) func(trial.State, *measure.Row) {
	return func(s trial.State, row *measure.Row) {
		row.Set("Bytes", measure.Int(int64(size)))
		if s.TestDuration <= 0 {
			row.Set("MB/s", measure.Empty)
			return
		}
		mb := float64(size) * float64(s.TotalSteps) / 1e6
		row.Set("MB/s", measure.Float(mb/s.TestDuration.Seconds()))
	}
}
