package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/torosent/crankbench/internal/config"
	"github.com/torosent/crankbench/internal/metrics"
	"github.com/torosent/crankbench/internal/runner"
	"github.com/torosent/crankbench/internal/threshold"
)

type jsonReport struct {
	RunID  string `json:"run_id"`
	Mode   string `json:"mode"`
	Failed int    `json:"failed"`
	Tests  []struct {
		Name   string         `json:"name"`
		Result map[string]any `json:"result"`
		Error  string         `json:"error"`
		Stats  struct {
			Steps int64 `json:"steps"`
		} `json:"stats"`
	} `json:"tests"`
}

func countLines(t *testing.T, path string) int {
	t.Helper()
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile(%s) error = %v", path, err)
	}
	return strings.Count(string(b), "\n")
}

func TestRunHelp(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if err := run([]string{"--help"}, &stdout, &stderr); err != nil {
		t.Fatalf("run(--help) error = %v", err)
	}
}

func TestRunValidationError(t *testing.T) {
	var stdout, stderr bytes.Buffer
	err := run([]string{"--workload=sleep", "--iterations=-1"}, &stdout, &stderr)
	var verr config.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("run() error = %v, want ValidationError", err)
	}
}

func TestRunInvalidThreshold(t *testing.T) {
	var stdout, stderr bytes.Buffer
	err := run([]string{"--workload=sleep", "--threshold=latency:p95 < 5"}, &stdout, &stderr)
	if err == nil || !strings.Contains(err.Error(), "threshold") {
		t.Fatalf("run() error = %v, want threshold parse error", err)
	}
}

func TestRunLogsTestLifecycleByDefault(t *testing.T) {
	var stdout, stderr bytes.Buffer
	err := run([]string{
		"--workload=sleep:a,duration=1ms",
		"--iterations=1",
		"--warm-up=0s",
		"--results-dir=",
		"--json-output",
	}, &stdout, &stderr)
	if err != nil {
		t.Fatalf("run() error = %v", err)
	}
	logs := stderr.String()
	for _, want := range []string{"Running 1 test(s).", "Started a.", "Finished all tests."} {
		if !strings.Contains(logs, want) {
			t.Errorf("stderr missing %q:\n%s", want, logs)
		}
	}
	if !strings.Contains(logs, "time=") {
		t.Errorf("log lines carry no timestamp:\n%s", logs)
	}
}

func TestRunJSONReport(t *testing.T) {
	dir := t.TempDir()
	var stdout, stderr bytes.Buffer
	err := run([]string{
		"--workload=sleep:nap,duration=1ms,steps=2",
		"--workload=hash:digest,size=256",
		"--iterations=2",
		"--warm-up=0s",
		"--mode=sequential",
		"--results-dir=" + dir,
		"--json-output",
	}, &stdout, &stderr)
	if err != nil {
		t.Fatalf("run() error = %v\nstderr: %s", err, stderr.String())
	}

	var rep jsonReport
	if err := json.Unmarshal(stdout.Bytes(), &rep); err != nil {
		t.Fatalf("stdout is not a JSON report: %v\n%s", err, stdout.String())
	}
	if len(rep.RunID) != 26 {
		t.Errorf("RunID = %q, want a ULID", rep.RunID)
	}
	if rep.Mode != "sequential" || rep.Failed != 0 {
		t.Errorf("Mode/Failed = %q/%d", rep.Mode, rep.Failed)
	}
	if len(rep.Tests) != 2 {
		t.Fatalf("Tests len = %d, want 2", len(rep.Tests))
	}
	if rep.Tests[0].Name != "nap" || rep.Tests[1].Name != "digest" {
		t.Errorf("test order = %s, %s", rep.Tests[0].Name, rep.Tests[1].Name)
	}
	if rep.Tests[0].Stats.Steps != 4 || rep.Tests[1].Stats.Steps != 2 {
		t.Errorf("steps = %d, %d, want 4, 2", rep.Tests[0].Stats.Steps, rep.Tests[1].Stats.Steps)
	}
	if _, ok := rep.Tests[1].Result["MB/s"]; !ok {
		t.Errorf("hash result misses MB/s: %v", rep.Tests[1].Result)
	}

	if got := countLines(t, filepath.Join(dir, "sleep", "nap.csv")); got != 1+4 {
		t.Errorf("nap.csv lines = %d, want 5", got)
	}
	if got := countLines(t, filepath.Join(dir, "hash", "digest.csv")); got != 1+2 {
		t.Errorf("digest.csv lines = %d, want 3", got)
	}
}

func TestRunTableReport(t *testing.T) {
	var stdout, stderr bytes.Buffer
	err := run([]string{
		"--workload=json:query,size=512",
		"--workload=yaml,category=Decode",
		"--iterations=1",
		"--warm-up=0s",
		"--results-dir=",
	}, &stdout, &stderr)
	if err != nil {
		t.Fatalf("run() error = %v", err)
	}
	out := stdout.String()
	for _, want := range []string{"--- Benchmark Results ---", "Name ", "query", "yaml", "MB/s", "finished in"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "--- Thresholds ---") {
		t.Error("threshold section printed without thresholds")
	}
}

func TestRunThresholdFailure(t *testing.T) {
	var stdout, stderr bytes.Buffer
	err := run([]string{
		"--workload=hash,size=64",
		"--iterations=1",
		"--warm-up=0s",
		"--results-dir=",
		"--threshold=steps:count > 1000",
		"--threshold=test_failed:count == 0",
	}, &stdout, &stderr)
	if !errors.Is(err, errThresholds) {
		t.Fatalf("run() error = %v, want errThresholds", err)
	}
	out := stdout.String()
	if !strings.Contains(out, "--- Thresholds ---") || !strings.Contains(out, "✗ steps:count > 1000") {
		t.Errorf("threshold output missing:\n%s", out)
	}
}

func TestRunWritesHTMLReport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.html")
	var stdout, stderr bytes.Buffer
	err := run([]string{
		"--workload=sleep,duration=1ms",
		"--iterations=1",
		"--warm-up=0s",
		"--results-dir=",
		"--json-output",
		"--html-output=" + path,
	}, &stdout, &stderr)
	if err != nil {
		t.Fatalf("run() error = %v", err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if !strings.Contains(string(b), "<!DOCTYPE html>") {
		t.Errorf("report is not HTML: %.100s", b)
	}
}

func TestRunRejectsDashboardWithJSON(t *testing.T) {
	var stdout, stderr bytes.Buffer
	err := run([]string{"--workload=sleep", "--dashboard", "--json-output"}, &stdout, &stderr)
	var verr config.ValidationError
	if !errors.As(err, &verr) || !strings.Contains(err.Error(), "mutually exclusive") {
		t.Fatalf("run() error = %v, want dashboard/json ValidationError", err)
	}
}

func TestBatchInfo(t *testing.T) {
	cfg := config.Defaults()
	cfg.Mode = "sequential"
	cfg.Parallelism = 3
	cfg.StepRate = 25
	cfg.ConfigFile = "bench.yaml"

	info := batchInfo(cfg)
	if info.Mode != "sequential" || info.Iterations != config.DefaultIterations || info.WarmUp != config.DefaultWarmUp {
		t.Errorf("batchInfo() = %+v", info)
	}
	if info.Parallelism != 3 || info.StepRate != 25 || info.ResultsDir != config.DefaultResultsDir || info.ConfigFile != "bench.yaml" {
		t.Errorf("batchInfo() = %+v", info)
	}
}

func TestTrialConfig(t *testing.T) {
	cfg := config.Defaults()
	cfg.Iterations = 3
	cfg.WarmUp = time.Second
	cfg.Measuring = false
	cfg.Steps = 5
	cfg.StepRate = 20

	tc := trialConfig(cfg)
	if tc.Iterations != 3 || tc.WarmUpFloor != time.Second || tc.Measuring || tc.StepsPerIteration != 5 || tc.StepRate != 20 {
		t.Errorf("trialConfig() = %+v", tc)
	}
	if err := tc.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestBuildTestsKeepsOrderAndIdentity(t *testing.T) {
	cfg := config.Defaults()
	cfg.ResultsDir = ""
	cfg.Workloads = []config.WorkloadSpec{
		{Kind: config.KindYAML, Name: "doc"},
		{Kind: config.KindSleep},
	}
	tests, err := buildTests(cfg, nil, nil)
	if err != nil {
		t.Fatalf("buildTests() error = %v", err)
	}
	if len(tests) != 2 {
		t.Fatalf("len = %d, want 2", len(tests))
	}
	want := []string{"YAMLDecode[doc]", "Sleep[sleep]"}
	for i, test := range tests {
		s, ok := test.(interface{ String() string })
		if !ok {
			t.Fatalf("test %d has no String method", i)
		}
		if s.String() != want[i] {
			t.Errorf("tests[%d] = %q, want %q", i, s.String(), want[i])
		}
	}
}

func TestEvaluateThresholds(t *testing.T) {
	ths, err := threshold.ParseMultiple([]string{"test_failed:count == 0", "steps:count >= 2"})
	if err != nil {
		t.Fatalf("ParseMultiple() error = %v", err)
	}
	rep := runner.Report{Outcomes: []runner.Outcome{
		{Name: "ok", Stats: &metrics.Stats{Steps: 3}},
		{Name: "broken", Err: errors.New("boom")},
	}}

	reports := evaluateThresholds(ths, rep)
	if len(reports) != 2 {
		t.Fatalf("len = %d, want 2", len(reports))
	}
	if !reports[0].Passed() {
		t.Errorf("ok failed thresholds: %+v", reports[0].Results)
	}
	if reports[1].Passed() || reports[1].Test != "broken" {
		t.Errorf("broken = %+v", reports[1])
	}
	if threshold.AllPassed(reports) {
		t.Error("AllPassed() = true, want false")
	}
	if evaluateThresholds(nil, rep) != nil {
		t.Error("evaluateThresholds(nil) should be nil")
	}
}
