package runner

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/trace"

	"github.com/torosent/crankbench/internal/measure"
	"github.com/torosent/crankbench/internal/metrics"
)

// Test is one schedulable unit of a batch.
type Test interface {
	Name() string
	Run(ctx context.Context) error
	Result() *measure.Row
}

// StatsProvider is implemented by tests that record step statistics.
type StatsProvider interface {
	Stats() metrics.Stats
}

// StepCounter is implemented by tests that report live step progress.
type StepCounter interface {
	MeasuredSteps() int64
}

// WarmUpReporter is implemented by tests that can tell whether they are
// still warming up.
type WarmUpReporter interface {
	WarmingUp() bool
}

// Mode selects how a batch is executed.
type Mode string

const (
	ModeSequential Mode = "sequential"
	ModeConcurrent Mode = "concurrent"
)

// ParseMode accepts "sequential" or "concurrent", case-insensitively.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeSequential, ModeConcurrent:
		return m, nil
	case "":
		return ModeConcurrent, nil
	default:
		return "", fmt.Errorf("unsupported mode %q: use %q or %q", s, ModeSequential, ModeConcurrent)
	}
}

// Options configure the Runner.
type Options struct {
	Mode        Mode         // sequential or concurrent (default concurrent)
	Parallelism int          // concurrent cap (0 means one goroutine per test)
	Logger      *slog.Logger // batch progress log
	Tracer      trace.Tracer // batch span
}

func (o *Options) normalize() {
	if o.Mode == "" {
		o.Mode = ModeConcurrent
	}
	if o.Parallelism < 0 {
		o.Parallelism = 0
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.DiscardHandler)
	}
}
