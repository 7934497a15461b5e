package probe

import (
	"context"
	"time"

	"github.com/torosent/crankbench/internal/config"
	"github.com/torosent/crankbench/internal/measure"
	"github.com/torosent/crankbench/internal/trial"
)

// Sleep waits for Interval on each step. It measures scheduler and timer
// overhead.
type Sleep struct {
	base
	Interval time.Duration
}

func (w *Sleep) Kind() string { return config.KindSleep }

func (w *Sleep) RunStep(ctx context.Context) (any, error) {
	timer := time.NewTimer(w.Interval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return w.Interval.String(), nil
	}
}

func (w *Sleep) Hooks() trial.Hooks {
	return trial.Hooks{
		DiscoverStep: w.discover,
		ResultRow: func(s trial.State, row *measure.Row) {
			row.Set("Interval", measure.Duration(w.Interval))
			if s.TotalSteps == 0 {
				row.Set("Overshoot", measure.Empty)
				return
			}
			row.Set("Overshoot", measure.Duration(s.AverageStepDuration()-w.Interval))
		},
	}
}
