package output

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/torosent/crankbench/internal/measure"
	"github.com/torosent/crankbench/internal/metrics"
	"github.com/torosent/crankbench/internal/runner"
	"github.com/torosent/crankbench/internal/threshold"
)

func sampleReport() runner.Report {
	started := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return runner.Report{
		RunID:    "01HZY3Q4J6Z9X8W7V6T5S4R3Q2",
		Mode:     runner.ModeConcurrent,
		Started:  started,
		Finished: started.Add(1500 * time.Millisecond),
		Outcomes: []runner.Outcome{
			{
				Name: "sleep",
				Row: measure.NewRow(3).
					Set("Name", measure.Text("sleep")).
					Set("Iterations", measure.Int(10)).
					Set("Steps", measure.Int(10)),
				Stats:   &metrics.Stats{Steps: 10, P99Ms: 1.2},
				Elapsed: time.Second,
			},
			{
				Name: "broken",
				Row: measure.NewRow(3).
					Set("Name", measure.Text("broken")).
					Set("Iterations", measure.Int(0)).
					Set("Steps", measure.Int(0)),
				Stats:   &metrics.Stats{Failures: 1, Errors: map[string]int{"Workload step failure": 1}},
				Err:     errors.New("broken: step failed"),
				Elapsed: 10 * time.Millisecond,
			},
		},
	}
}

func TestPrintReportBasic(t *testing.T) {
	var buf bytes.Buffer
	PrintReport(&buf, sampleReport())

	output := buf.String()
	for _, want := range []string{
		"--- Benchmark Results ---",
		"Name   | Iterations | Steps",
		"sleep  |         10 |    10",
		"Failures (1 of 2):",
		"  - broken: broken: step failed",
		"      Workload step failure: 1",
		"Run 01HZY3Q4J6Z9X8W7V6T5S4R3Q2 (concurrent) finished in 1.5s",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in output:\n%s", want, output)
		}
	}
}

func TestPrintThresholds(t *testing.T) {
	var buf bytes.Buffer
	PrintThresholds(&buf, []threshold.Report{
		{Test: "sleep", Results: []threshold.Result{{Pass: true, Message: "✓ step_duration:p99 < 5: 1.20 < 5.00"}}},
		{Test: "broken"},
	})

	output := buf.String()
	if !strings.Contains(output, "sleep:\n  ✓ step_duration:p99 < 5") {
		t.Errorf("unexpected output:\n%s", output)
	}
	if strings.Contains(output, "broken:") {
		t.Errorf("tests without results should be skipped:\n%s", output)
	}

	buf.Reset()
	PrintThresholds(&buf, nil)
	if buf.Len() != 0 {
		t.Errorf("expected no output without thresholds, got %q", buf.String())
	}
}

func TestPrintJSONReport(t *testing.T) {
	th, err := threshold.Parse("step_duration:p99 < 5")
	if err != nil {
		t.Fatal(err)
	}
	thresholds := []threshold.Report{
		{Test: "sleep", Results: []threshold.Result{{Threshold: th, Actual: 1.2, Pass: true}}},
	}

	var buf bytes.Buffer
	if err := PrintJSONReport(&buf, sampleReport(), thresholds); err != nil {
		t.Fatalf("PrintJSONReport failed: %v", err)
	}

	output := buf.String()
	if !strings.Contains(output, `"result": {
        "Name": "sleep",
        "Iterations": 10,
        "Steps": 10
      }`) {
		t.Errorf("result row should keep column order:\n%s", output)
	}

	var decoded struct {
		RunID      string  `json:"run_id"`
		DurationMs float64 `json:"duration_ms"`
		Failed     int     `json:"failed"`
		Tests      []struct {
			Name       string                     `json:"name"`
			Error      string                     `json:"error"`
			Stats      map[string]json.RawMessage `json:"stats"`
			Thresholds *ThresholdSummary          `json:"thresholds"`
		} `json:"tests"`
	}
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if decoded.RunID != "01HZY3Q4J6Z9X8W7V6T5S4R3Q2" || decoded.DurationMs != 1500 || decoded.Failed != 1 {
		t.Errorf("unexpected header: %+v", decoded)
	}
	if len(decoded.Tests) != 2 {
		t.Fatalf("got %d tests, want 2", len(decoded.Tests))
	}
	if decoded.Tests[0].Thresholds == nil || decoded.Tests[0].Thresholds.Passed != 1 {
		t.Errorf("expected one passed threshold on sleep: %+v", decoded.Tests[0].Thresholds)
	}
	if _, ok := decoded.Tests[0].Stats["p99_ms"]; !ok {
		t.Error("expected p99_ms in stats")
	}
	if decoded.Tests[1].Error != "broken: step failed" || decoded.Tests[1].Thresholds != nil {
		t.Errorf("unexpected broken entry: %+v", decoded.Tests[1])
	}
}

func TestNewReportJSONMatchesThresholdsByPosition(t *testing.T) {
	rep := runner.Report{Outcomes: []runner.Outcome{
		{Name: "decode", Stats: &metrics.Stats{Steps: 3}},
		{Name: "decode", Stats: &metrics.Stats{Steps: 1}},
	}}
	th, err := threshold.Parse("steps:count >= 2")
	if err != nil {
		t.Fatal(err)
	}
	thresholds := []threshold.Report{
		{Test: "decode", Results: []threshold.Result{{Threshold: th, Actual: 3, Pass: true}}},
		{Test: "decode", Results: []threshold.Result{{Threshold: th, Actual: 1, Pass: false}}},
	}

	out := NewReportJSON(rep, thresholds)
	if got := out.Tests[0].Thresholds; got == nil || got.Passed != 1 || got.Failed != 0 {
		t.Errorf("first decode thresholds = %+v, want 1 passed", got)
	}
	if got := out.Tests[1].Thresholds; got == nil || got.Passed != 0 || got.Failed != 1 {
		t.Errorf("second decode thresholds = %+v, want 1 failed", got)
	}
}
