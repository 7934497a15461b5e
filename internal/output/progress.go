package output

import (
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/torosent/crankbench/internal/runner"
)

// ProgressSource reports the progress of a running batch.
type ProgressSource interface {
	Progress() runner.Progress
}

// ProgressReporter displays real-time progress updates.
type ProgressReporter struct {
	source   ProgressSource
	ticker   *time.Ticker
	done     chan struct{}
	finished chan struct{}
	writer   io.Writer
	active   int32
	start    time.Time
}

// NewProgressReporter creates a progress reporter that updates at the given interval.
func NewProgressReporter(source ProgressSource, interval time.Duration, writer io.Writer) *ProgressReporter {
	if writer == nil {
		writer = io.Discard
	}
	return &ProgressReporter{
		source:   source,
		ticker:   time.NewTicker(interval),
		done:     make(chan struct{}),
		finished: make(chan struct{}),
		writer:   writer,
		start:    time.Now(),
	}
}

// Start begins displaying progress updates in a background goroutine.
func (p *ProgressReporter) Start() {
	if !atomic.CompareAndSwapInt32(&p.active, 0, 1) {
		return // already running
	}
	go p.run()
}

// Stop halts progress updates.
func (p *ProgressReporter) Stop() {
	if atomic.CompareAndSwapInt32(&p.active, 1, 0) {
		close(p.done)
		p.ticker.Stop()
		<-p.finished
	}
}

func (p *ProgressReporter) run() {
	defer close(p.finished)
	for {
		select {
		case <-p.ticker.C:
			fmt.Fprint(p.writer, FormatProgress(p.source.Progress(), time.Since(p.start)))
		case <-p.done:
			return
		}
	}
}

// FormatProgress renders one carriage-return prefixed progress line.
func FormatProgress(pr runner.Progress, elapsed time.Duration) string {
	return fmt.Sprintf("\rTests: %d/%d | Steps: %d | Elapsed: %s",
		pr.Done, pr.Total, pr.Steps, elapsed.Round(time.Second))
}
