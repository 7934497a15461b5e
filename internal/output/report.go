package output

import (
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"slices"
	"time"

	"github.com/torosent/crankbench/internal/measure"
	"github.com/torosent/crankbench/internal/metrics"
	"github.com/torosent/crankbench/internal/runner"
	"github.com/torosent/crankbench/internal/threshold"
)

// ReportJSON is the machine-readable form of a batch.
type ReportJSON struct {
	RunID      string     `json:"run_id"`
	Mode       string     `json:"mode"`
	Started    time.Time  `json:"started"`
	Finished   time.Time  `json:"finished"`
	DurationMs float64    `json:"duration_ms"`
	Failed     int        `json:"failed"`
	Tests      []TestJSON `json:"tests"`
}

// TestJSON is one test of a batch. Result keeps the column order of the table.
type TestJSON struct {
	Name       string            `json:"name"`
	Result     *measure.Row      `json:"result"`
	Stats      *metrics.Stats    `json:"stats,omitempty"`
	Error      string            `json:"error,omitempty"`
	ElapsedMs  float64           `json:"elapsed_ms"`
	Thresholds *ThresholdSummary `json:"thresholds,omitempty"`
}

// ThresholdSummary aggregates the threshold results of one test.
type ThresholdSummary struct {
	Total   int                   `json:"total"`
	Passed  int                   `json:"passed"`
	Failed  int                   `json:"failed"`
	Results []ThresholdResultJSON `json:"results"`
}

// ThresholdResultJSON is one evaluated threshold.
type ThresholdResultJSON struct {
	Threshold string  `json:"threshold"`
	Metric    string  `json:"metric"`
	Aggregate string  `json:"aggregate"`
	Operator  string  `json:"operator"`
	Expected  float64 `json:"expected"`
	Actual    float64 `json:"actual"`
	Pass      bool    `json:"pass"`
}

// PrintReport outputs the result table followed by any failures.
func PrintReport(w io.Writer, rep runner.Report) {
	fmt.Fprintln(w, "\n--- Benchmark Results ---")
	_ = PrintTable(w, rep.Rows())

	if failures := rep.Failures(); len(failures) > 0 {
		fmt.Fprintf(w, "\nFailures (%d of %d):\n", len(failures), len(rep.Outcomes))
		for _, o := range failures {
			fmt.Fprintf(w, "  - %s: %v\n", o.Name, o.Err)
			if o.Stats != nil && len(o.Stats.Errors) > 0 {
				for _, label := range slices.Sorted(maps.Keys(o.Stats.Errors)) {
					fmt.Fprintf(w, "      %s: %d\n", label, o.Stats.Errors[label])
				}
			}
		}
	}
	fmt.Fprintf(w, "\nRun %s (%s) finished in %s\n", rep.RunID, rep.Mode, rep.Duration().Round(time.Millisecond))
}

// PrintThresholds outputs threshold results grouped by test.
func PrintThresholds(w io.Writer, reports []threshold.Report) {
	if len(reports) == 0 {
		return
	}
	fmt.Fprintln(w, "\n--- Thresholds ---")
	for _, r := range reports {
		if len(r.Results) == 0 {
			continue
		}
		fmt.Fprintf(w, "%s:\n", r.Test)
		for _, res := range r.Results {
			fmt.Fprintf(w, "  %s\n", res.Message)
		}
	}
}

// PrintJSONReport outputs a JSON-formatted report.
func PrintJSONReport(w io.Writer, rep runner.Report, thresholds []threshold.Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(NewReportJSON(rep, thresholds))
}

// NewReportJSON converts a batch report and its threshold results.
// thresholds[i] belongs to rep.Outcomes[i]; names may repeat across
// categories, so they are not used for matching.
func NewReportJSON(rep runner.Report, thresholds []threshold.Report) ReportJSON {
	out := ReportJSON{
		RunID:      rep.RunID,
		Mode:       string(rep.Mode),
		Started:    rep.Started,
		Finished:   rep.Finished,
		DurationMs: ms(rep.Duration()),
		Failed:     len(rep.Failures()),
		Tests:      make([]TestJSON, len(rep.Outcomes)),
	}
	for i, o := range rep.Outcomes {
		t := TestJSON{
			Name:      o.Name,
			Result:    o.Row,
			Stats:     o.Stats,
			ElapsedMs: ms(o.Elapsed),
		}
		if o.Err != nil {
			t.Error = o.Err.Error()
		}
		if i < len(thresholds) && len(thresholds[i].Results) > 0 {
			t.Thresholds = summarizeThresholds(thresholds[i].Results)
		}
		out.Tests[i] = t
	}
	return out
}

func summarizeThresholds(results []threshold.Result) *ThresholdSummary {
	summary := &ThresholdSummary{
		Total:   len(results),
		Results: make([]ThresholdResultJSON, len(results)),
	}
	for i, tr := range results {
		summary.Results[i] = ThresholdResultJSON{
			Threshold: tr.Threshold.Raw,
			Metric:    tr.Threshold.Metric,
			Aggregate: tr.Threshold.Aggregate,
			Operator:  tr.Threshold.Operator,
			Expected:  tr.Threshold.Value,
			Actual:    tr.Actual,
			Pass:      tr.Pass,
		}
		if tr.Pass {
			summary.Passed++
		} else {
			summary.Failed++
		}
	}
	return summary
}

func ms(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
