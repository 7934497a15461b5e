// Package dashboard renders a live terminal view of a running batch.
package dashboard

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	ui "github.com/gizak/termui/v3"
	"github.com/gizak/termui/v3/widgets"

	"github.com/torosent/crankbench/internal/runner"
)

const (
	refreshInterval = 500 * time.Millisecond
	historySize     = 100
	maxFailureRows  = 10
)

// Source reports the progress of a running batch.
type Source interface {
	Progress() runner.Progress
}

// BatchInfo holds batch parameters for display.
type BatchInfo struct {
	Mode        string        // sequential or concurrent
	Iterations  int           // measured iterations per test
	WarmUp      time.Duration // warm-up floor per test
	Parallelism int           // 0 = unlimited
	StepRate    float64       // steps per second per test (0 = unlimited)
	ResultsDir  string        // CSV root, empty when disabled
	ConfigFile  string        // Path to config file if used
}

// Dashboard renders a live terminal UI for a batch of tests.
type Dashboard struct {
	source       Source
	info         BatchInfo
	ctx          context.Context
	cancel       context.CancelFunc
	shutdownFunc func()
	wg           sync.WaitGroup
	mu           sync.Mutex

	// Widgets
	grid        *ui.Grid
	summaryPara *widgets.Paragraph
	batchGauge  *widgets.Gauge
	rateSpark   *widgets.SparklineGroup
	testTable   *widgets.Table
	failureList *widgets.List

	rateHistory []float64
	lastSteps   int64
	lastSample  time.Time
	startTime   time.Time
}

// New initializes the terminal and creates a Dashboard. shutdownFunc is
// called when the user presses q or Ctrl-C.
func New(source Source, info BatchInfo, shutdownFunc func()) (*Dashboard, error) {
	if err := ui.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize termui: %w", err)
	}

	d := newDashboard(source, info, shutdownFunc, time.Now())
	d.setupGrid()
	return d, nil
}

func newDashboard(source Source, info BatchInfo, shutdownFunc func(), now time.Time) *Dashboard {
	ctx, cancel := context.WithCancel(context.Background())
	d := &Dashboard{
		source:       source,
		info:         info,
		ctx:          ctx,
		cancel:       cancel,
		shutdownFunc: shutdownFunc,
		rateHistory:  make([]float64, 0, historySize),
		startTime:    now,
		lastSample:   now,
	}
	d.initWidgets()
	return d
}

func (d *Dashboard) initWidgets() {
	d.summaryPara = widgets.NewParagraph()
	d.summaryPara.Title = "Batch"
	d.summaryPara.Text = "Initializing..."
	d.summaryPara.BorderStyle.Fg = ui.ColorCyan

	d.batchGauge = widgets.NewGauge()
	d.batchGauge.Title = "Tests Finished"
	d.batchGauge.BarColor = ui.ColorBlue
	d.batchGauge.BorderStyle.Fg = ui.ColorCyan
	d.batchGauge.LabelStyle = ui.NewStyle(ui.ColorWhite)

	sparkline := widgets.NewSparkline()
	sparkline.Title = "Steps/s"
	sparkline.LineColor = ui.ColorGreen
	sparkline.Data = []float64{0}
	d.rateSpark = widgets.NewSparklineGroup(sparkline)
	d.rateSpark.Title = "Measured Step Rate"
	d.rateSpark.BorderStyle.Fg = ui.ColorCyan

	d.testTable = widgets.NewTable()
	d.testTable.Title = "Tests"
	d.testTable.Rows = [][]string{testHeader}
	d.testTable.TextStyle = ui.NewStyle(ui.ColorWhite)
	d.testTable.RowSeparator = false
	d.testTable.RowStyles = map[int]ui.Style{}
	d.testTable.BorderStyle.Fg = ui.ColorCyan

	d.failureList = widgets.NewList()
	d.failureList.Title = "Failures"
	d.failureList.Rows = []string{"[No failures](fg:green)"}
	d.failureList.TextStyle = ui.NewStyle(ui.ColorYellow)
	d.failureList.BorderStyle.Fg = ui.ColorCyan
}

func (d *Dashboard) setupGrid() {
	termWidth, termHeight := ui.TerminalDimensions()

	d.grid = ui.NewGrid()
	d.grid.SetRect(0, 0, termWidth, termHeight)
	d.grid.Set(
		ui.NewRow(0.16,
			ui.NewCol(0.6, d.summaryPara),
			ui.NewCol(0.4, d.batchGauge),
		),
		ui.NewRow(0.22,
			ui.NewCol(1.0, d.rateSpark),
		),
		ui.NewRow(0.42,
			ui.NewCol(1.0, d.testTable),
		),
		ui.NewRow(0.20,
			ui.NewCol(1.0, d.failureList),
		),
	)
}

// Start begins the dashboard update loop.
func (d *Dashboard) Start() {
	d.wg.Add(1)
	go d.run()
}

// Stop stops the update loop and restores the terminal.
func (d *Dashboard) Stop() {
	d.cancel()
	d.wg.Wait()
	ui.Close()
	// Give terminal time to restore
	time.Sleep(100 * time.Millisecond)
}

func (d *Dashboard) run() {
	defer d.wg.Done()

	ticker := time.NewTicker(refreshInterval)
	defer ticker.Stop()

	uiEvents := ui.PollEvents()

	d.render()

	for {
		select {
		case <-d.ctx.Done():
			for len(uiEvents) > 0 {
				<-uiEvents
			}
			return
		case e := <-uiEvents:
			select {
			case <-d.ctx.Done():
				return
			default:
			}

			switch e.ID {
			case "q", "<C-c>":
				if d.shutdownFunc != nil {
					d.shutdownFunc()
				}
				// Stop cancels the loop once the batch has drained.
			case "<Resize>":
				payload := e.Payload.(ui.Resize)
				d.grid.SetRect(0, 0, payload.Width, payload.Height)
				ui.Clear()
				d.render()
			}
		case now := <-ticker.C:
			d.update(now)
			d.render()
		}
	}
}

// update refreshes all widget data from the source.
func (d *Dashboard) update(now time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()

	p := d.source.Progress()
	elapsed := now.Sub(d.startTime)

	if dt := now.Sub(d.lastSample); dt > 0 {
		rate := float64(p.Steps-d.lastSteps) / dt.Seconds()
		if rate < 0 {
			rate = 0
		}
		d.rateHistory = append(d.rateHistory, rate)
		if len(d.rateHistory) > historySize {
			d.rateHistory = d.rateHistory[1:]
		}
		d.rateSpark.Sparklines[0].Data = d.rateHistory
		d.rateSpark.Title = fmt.Sprintf("Measured Step Rate | Current: %.1f/s", rate)
		d.lastSteps = p.Steps
		d.lastSample = now
	}

	d.batchGauge.Percent = batchPercent(p)
	d.batchGauge.Label = fmt.Sprintf("%d/%d tests", p.Done, p.Total)

	d.summaryPara.Text = formatSummary(d.info, p, elapsed)

	d.testTable.Rows = testRows(p.Tests)
	d.testTable.RowStyles = map[int]ui.Style{
		0: ui.NewStyle(ui.ColorWhite, ui.ColorClear, ui.ModifierBold),
	}
	for i, tp := range p.Tests {
		if tp.Failed {
			d.testTable.RowStyles[i+1] = ui.NewStyle(ui.ColorRed)
		}
	}

	d.failureList.Rows = failureRows(p.Tests)
}

func (d *Dashboard) render() {
	d.mu.Lock()
	defer d.mu.Unlock()

	ui.Render(d.grid)
}

func batchPercent(p runner.Progress) int {
	if p.Total == 0 {
		return 0
	}
	return min(100, p.Done*100/p.Total)
}

func formatSummary(info BatchInfo, p runner.Progress, elapsed time.Duration) string {
	return fmt.Sprintf("%s\nElapsed: %s | Tests: %d/%d | Measured steps: %d",
		formatBatchParams(info),
		elapsed.Round(time.Second),
		p.Done, p.Total,
		p.Steps,
	)
}

func formatBatchParams(info BatchInfo) string {
	var parts []string

	mode := info.Mode
	if mode == "" {
		mode = string(runner.ModeConcurrent)
	}
	parts = append(parts, "Mode: "+mode)

	if info.Parallelism > 0 {
		parts = append(parts, fmt.Sprintf("Parallelism: %d", info.Parallelism))
	}
	parts = append(parts, fmt.Sprintf("Iterations: %d", info.Iterations))
	parts = append(parts, fmt.Sprintf("Warm-up: %s", info.WarmUp))
	if info.StepRate > 0 {
		parts = append(parts, fmt.Sprintf("Rate: %g/s", info.StepRate))
	}
	if info.ResultsDir != "" {
		parts = append(parts, "Results: "+info.ResultsDir)
	}
	if info.ConfigFile != "" {
		parts = append(parts, "Config: "+info.ConfigFile)
	}
	return strings.Join(parts, " | ")
}

var testHeader = []string{"Test", "Status", "Steps", "P50 ms", "P99 ms", "Steps/s"}

func testRows(tests []runner.TestProgress) [][]string {
	rows := make([][]string, 0, len(tests)+1)
	rows = append(rows, testHeader)
	for _, tp := range tests {
		p50, p99, rate := "-", "-", "-"
		if tp.Stats != nil && tp.Stats.Steps > 0 {
			p50 = fmt.Sprintf("%.3f", tp.Stats.P50Ms)
			p99 = fmt.Sprintf("%.3f", tp.Stats.P99Ms)
			rate = fmt.Sprintf("%.1f", tp.Stats.StepsPerSec)
		}
		rows = append(rows, []string{
			tp.Name,
			status(tp),
			fmt.Sprintf("%d", tp.Steps),
			p50,
			p99,
			rate,
		})
	}
	return rows
}

func status(tp runner.TestProgress) string {
	switch {
	case tp.Failed:
		return "failed"
	case tp.Finished:
		return "done"
	case tp.WarmingUp:
		return "warming up"
	case tp.Steps > 0:
		return "measuring"
	default:
		return "pending"
	}
}

// failureRows lists failed tests first, then error labels of step failures
// in tests that are still running or passed.
func failureRows(tests []runner.TestProgress) []string {
	var rows []string
	for _, tp := range tests {
		if tp.Failed {
			rows = append(rows, fmt.Sprintf("[%s](fg:red) failed", tp.Name))
		}
	}
	for _, tp := range tests {
		if tp.Stats == nil || len(tp.Stats.Errors) == 0 {
			continue
		}
		labels := make([]string, 0, len(tp.Stats.Errors))
		for label := range tp.Stats.Errors {
			labels = append(labels, label)
		}
		sort.Strings(labels)
		for _, label := range labels {
			rows = append(rows, fmt.Sprintf("[%s](fg:yellow) %s x%d", tp.Name, label, tp.Stats.Errors[label]))
		}
	}
	if len(rows) == 0 {
		return []string{"[No failures](fg:green)"}
	}
	if len(rows) > maxFailureRows {
		rows = rows[:maxFailureRows]
	}
	return rows
}
