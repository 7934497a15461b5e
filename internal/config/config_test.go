package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/torosent/crankbench/internal/config"
)

func TestLoadWithoutArgsRequestsHelp(t *testing.T) {
	_, err := config.NewLoader().Load([]string{})
	if !errors.Is(err, config.ErrHelpRequested) {
		t.Fatalf("Load() error = %v, want ErrHelpRequested", err)
	}
}

func TestLoadHelpFlag(t *testing.T) {
	_, err := config.NewLoader().Load([]string{"--help"})
	if !errors.Is(err, config.ErrHelpRequested) {
		t.Fatalf("Load() error = %v, want ErrHelpRequested", err)
	}
}

func TestParseFlagsDefaults(t *testing.T) {
	cfg, err := config.NewLoader().Load([]string{"--workload=sleep"})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Iterations != config.DefaultIterations {
		t.Errorf("Iterations = %d, want %d", cfg.Iterations, config.DefaultIterations)
	}
	if cfg.WarmUp != config.DefaultWarmUp {
		t.Errorf("WarmUp = %s, want %s", cfg.WarmUp, config.DefaultWarmUp)
	}
	if cfg.Steps != 1 {
		t.Errorf("Steps = %d, want 1", cfg.Steps)
	}
	if !cfg.Measuring {
		t.Error("Measuring = false, want true")
	}
	if cfg.Mode != "concurrent" {
		t.Errorf("Mode = %q, want concurrent", cfg.Mode)
	}
	if cfg.ResultsDir != "results" {
		t.Errorf("ResultsDir = %q, want results", cfg.ResultsDir)
	}
	if cfg.JSONOutput {
		t.Error("JSONOutput = true, want false")
	}
	if cfg.Tracing.Endpoint != "" || cfg.Tracing.Protocol != "grpc" {
		t.Errorf("Tracing = %+v, want grpc without endpoint", cfg.Tracing)
	}
}

func TestLoadConfigFileYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bench.yaml")
	content := `
iterations: 4
warm_up: 100ms
steps: 3
step_rate: 200
measuring: false
mode: sequential
results_dir: out
html_output: report.html
thresholds:
  - "step_duration:p99 < 5"
  - "test_failed:count == 0"
tracing:
  endpoint: localhost:4317
  protocol: grpc
  service_name: bench
  insecure: true
workloads:
  - name: nap
    kind: sleep
    duration: 2ms
  - name: digest
    kind: hash
    category: Crypto
    size: 8192
    steps: 5
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg, err := config.NewLoader().Load([]string{"--config", path})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	if cfg.ConfigFile != path {
		t.Errorf("ConfigFile = %q, want %q", cfg.ConfigFile, path)
	}
	if cfg.Iterations != 4 || cfg.Steps != 3 || cfg.StepRate != 200 {
		t.Errorf("Iterations/Steps/StepRate = %d/%d/%v", cfg.Iterations, cfg.Steps, cfg.StepRate)
	}
	if cfg.WarmUp != 100*time.Millisecond {
		t.Errorf("WarmUp = %v, want 100ms", cfg.WarmUp)
	}
	if cfg.Measuring {
		t.Error("Measuring = true, want false")
	}
	if cfg.Mode != "sequential" || cfg.ResultsDir != "out" || cfg.HTMLOutput != "report.html" {
		t.Errorf("Mode/ResultsDir/HTMLOutput = %q/%q/%q", cfg.Mode, cfg.ResultsDir, cfg.HTMLOutput)
	}
	if len(cfg.Thresholds) != 2 {
		t.Errorf("Thresholds = %v", cfg.Thresholds)
	}
	if cfg.Tracing.Endpoint != "localhost:4317" || cfg.Tracing.ServiceName != "bench" || !cfg.Tracing.Insecure {
		t.Errorf("Tracing = %+v", cfg.Tracing)
	}
	if cfg.Tracing.SampleRate != 1.0 {
		t.Errorf("SampleRate = %v, want default 1.0", cfg.Tracing.SampleRate)
	}
	if len(cfg.Workloads) != 2 {
		t.Fatalf("Workloads len = %d, want 2", len(cfg.Workloads))
	}
	digest := cfg.Workloads[1]
	if digest.Name != "digest" || digest.Kind != "hash" || digest.Category != "Crypto" || digest.Size != 8192 || digest.Steps == nil || *digest.Steps != 5 {
		t.Errorf("Workloads[1] = %+v", digest)
	}
}

func TestLoadConfigFileJSONWithFlagOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bench.json")
	if err := os.WriteFile(path, []byte(`{
		"iterations": 8,
		"parallelism": 4,
		"workloads": [{"kind": "yaml", "size": 256}]
	}`), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg, err := config.NewLoader().Load([]string{
		"--config", path,
		"--iterations", "2",
		"--json-output",
	})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Iterations != 2 {
		t.Errorf("Iterations = %d, want flag value 2", cfg.Iterations)
	}
	if cfg.Parallelism != 4 {
		t.Errorf("Parallelism = %d, want 4 from file", cfg.Parallelism)
	}
	if !cfg.JSONOutput {
		t.Error("JSONOutput = false, want true")
	}
	if len(cfg.Workloads) != 1 || cfg.Workloads[0].Kind != "yaml" || cfg.Workloads[0].Size != 256 {
		t.Errorf("Workloads = %+v", cfg.Workloads)
	}
}

func TestLoadMissingConfigFile(t *testing.T) {
	_, err := config.NewLoader().Load([]string{"--config", filepath.Join(t.TempDir(), "missing.yaml")})
	if err == nil {
		t.Fatal("Load() error = nil, want error")
	}
}

func TestLoadInvalidFlag(t *testing.T) {
	_, err := config.NewLoader().Load([]string{"--iterations=lots"})
	if err == nil {
		t.Fatal("Load() error = nil, want error")
	}
}

func intPtr(v int) *int { return &v }

func validConfig() config.Config {
	cfg := config.Defaults()
	cfg.Workloads = []config.WorkloadSpec{{Kind: config.KindSleep}}
	return *cfg
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		issue  string
	}{
		{"negative iterations", func(c *config.Config) { c.Iterations = -1 }, "iterations must be >= 0"},
		{"negative warm up", func(c *config.Config) { c.WarmUp = -time.Second }, "warm_up must be >= 0"},
		{"negative steps", func(c *config.Config) { c.Steps = -1 }, "steps must be >= 0"},
		{"negative step rate", func(c *config.Config) { c.StepRate = -1 }, "step_rate must be >= 0"},
		{"negative parallelism", func(c *config.Config) { c.Parallelism = -2 }, "parallelism must be >= 0"},
		{"bad mode", func(c *config.Config) { c.Mode = "random" }, "mode must be sequential or concurrent"},
		{"dashboard with json", func(c *config.Config) { c.Dashboard, c.JSONOutput = true, true }, "mutually exclusive"},
		{"bad protocol", func(c *config.Config) { c.Tracing.Protocol = "udp" }, "tracing.protocol"},
		{"bad sample rate", func(c *config.Config) { c.Tracing.SampleRate = 2 }, "tracing.sample_rate"},
		{"no workloads", func(c *config.Config) { c.Workloads = nil }, "at least one workload"},
		{"unknown kind", func(c *config.Config) { c.Workloads[0].Kind = "disk" }, `unknown kind "disk"`},
		{"negative size", func(c *config.Config) { c.Workloads[0].Size = -1 }, "size must be >= 0"},
		{"negative workload steps", func(c *config.Config) { c.Workloads[0].Steps = intPtr(-1) }, "workloads[0]: steps must be >= 0"},
		{"path in name", func(c *config.Config) { c.Workloads[0].Name = "a/b" }, "path separators"},
		{"duplicate", func(c *config.Config) {
			c.Workloads = []config.WorkloadSpec{{Kind: "hash"}, {Kind: "hash", Category: "hash"}}
		}, "duplicate of workloads[0]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			var verr config.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Validate() error = %v, want ValidationError", err)
			}
			found := false
			for _, issue := range verr.Issues() {
				if strings.Contains(issue, tt.issue) {
					found = true
				}
			}
			if !found {
				t.Errorf("issues %v do not mention %q", verr.Issues(), tt.issue)
			}
		})
	}
}

func TestValidateCollectsAllIssues(t *testing.T) {
	cfg := validConfig()
	cfg.Iterations = -1
	cfg.Steps = -1
	cfg.Workloads = nil

	var verr config.ValidationError
	if !errors.As(cfg.Validate(), &verr) {
		t.Fatal("Validate() did not return ValidationError")
	}
	if len(verr.Issues()) != 3 {
		t.Errorf("Issues() = %v, want 3 entries", verr.Issues())
	}
	if !strings.HasPrefix(verr.Error(), "validation failed: ") {
		t.Errorf("Error() = %q", verr.Error())
	}
}

func TestValidateAcceptsDefaults(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
}

func TestResolvedAppliesDefaults(t *testing.T) {
	cfg := validConfig()
	cfg.Steps = 4

	sleep := cfg.Resolved(config.WorkloadSpec{})
	if sleep.Kind != config.KindSleep || sleep.Name != "sleep" || sleep.Category != "sleep" {
		t.Errorf("Resolved(sleep) = %+v", sleep)
	}
	if sleep.Duration != config.DefaultSleep || sleep.Steps == nil || *sleep.Steps != 4 || sleep.Size != 0 {
		t.Errorf("Resolved(sleep) = %+v", sleep)
	}

	hash := cfg.Resolved(config.WorkloadSpec{Kind: config.KindHash, Name: "h", Category: "Crypto", Steps: intPtr(2)})
	if hash.Size != config.DefaultPayloadSize || *hash.Steps != 2 || hash.Category != "Crypto" || hash.Duration != 0 {
		t.Errorf("Resolved(hash) = %+v", hash)
	}
}

func TestResolvedKeepsExplicitZeroSteps(t *testing.T) {
	cfg, err := config.NewLoader().Load([]string{"--workload=sleep:idle,steps=0", "--steps=3"})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	idle := cfg.Resolved(cfg.Workloads[0])
	if idle.Steps == nil || *idle.Steps != 0 {
		t.Errorf("Resolved(idle).Steps = %v, want 0", idle.Steps)
	}

	unset := cfg.Resolved(config.WorkloadSpec{Kind: config.KindSleep})
	if unset.Steps == nil || *unset.Steps != 3 {
		t.Errorf("Resolved(unset).Steps = %v, want 3", unset.Steps)
	}
}

func TestTracingPropagateDefault(t *testing.T) {
	var tc config.TracingConfig
	if !tc.ShouldPropagate() {
		t.Error("ShouldPropagate() = false, want true by default")
	}
	off := false
	tc.Propagate = &off
	if tc.ShouldPropagate() {
		t.Error("ShouldPropagate() = true, want false")
	}
}

func TestTracingEnabledFromEnv(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	if (config.TracingConfig{}).Enabled() {
		t.Error("Enabled() = true without endpoint")
	}
	if !(config.TracingConfig{Endpoint: "localhost:4317"}).Enabled() {
		t.Error("Enabled() = false with endpoint")
	}
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "http://collector:4318")
	if !(config.TracingConfig{}).Enabled() {
		t.Error("Enabled() = false with env endpoint")
	}
}
