package config

import (
	"fmt"
	"os"
	"slices"
	"strings"
	"time"
)

const (
	DefaultIterations  = 10
	DefaultWarmUp      = 5 * time.Second
	DefaultResultsDir  = "results"
	DefaultMode        = "concurrent"
	DefaultSleep       = time.Millisecond
	DefaultPayloadSize = 4096
)

// Kinds of built-in probe workloads.
const (
	KindSleep = "sleep"
	KindHash  = "hash"
	KindYAML  = "yaml"
	KindJSON  = "json"
)

var workloadKinds = []string{KindSleep, KindHash, KindYAML, KindJSON}

type Config struct {
	Iterations  int            `mapstructure:"iterations"`
	WarmUp      time.Duration  `mapstructure:"warm_up"`
	Steps       int            `mapstructure:"steps"`
	StepRate    float64        `mapstructure:"step_rate"`
	Measuring   bool           `mapstructure:"measuring"`
	Verbose     bool           `mapstructure:"verbose"`
	Mode        string         `mapstructure:"mode"`
	Parallelism int            `mapstructure:"parallelism"`
	ResultsDir  string         `mapstructure:"results_dir"`
	JSONOutput  bool           `mapstructure:"json_output"`
	Dashboard   bool           `mapstructure:"dashboard"`
	HTMLOutput  string         `mapstructure:"html_output"`
	Thresholds  []string       `mapstructure:"thresholds"`
	Tracing     TracingConfig  `mapstructure:"tracing"`
	Workloads   []WorkloadSpec `mapstructure:"workloads"`
	ConfigFile  string         `mapstructure:"-"`
}

// WorkloadSpec describes one probe test. A nil Steps and zero Duration and
// Size fall back to the batch defaults; an explicit zero Steps runs no steps.
type WorkloadSpec struct {
	Name     string        `mapstructure:"name"`
	Kind     string        `mapstructure:"kind"`
	Category string        `mapstructure:"category"`
	Steps    *int          `mapstructure:"steps"`
	Duration time.Duration `mapstructure:"duration"`
	Size     int           `mapstructure:"size"`
}

// TracingConfig configures OTLP trace export. An empty Endpoint disables
// tracing unless OTEL_EXPORTER_OTLP_ENDPOINT is set.
type TracingConfig struct {
	Endpoint    string  `mapstructure:"endpoint"`
	Protocol    string  `mapstructure:"protocol"` // grpc or http
	ServiceName string  `mapstructure:"service_name"`
	SampleRate  float64 `mapstructure:"sample_rate"`
	Insecure    bool    `mapstructure:"insecure"`
	Propagate   *bool   `mapstructure:"propagate"`
}

// Enabled reports whether an endpoint is configured, directly or through the
// standard OTel environment variable.
func (t TracingConfig) Enabled() bool {
	return strings.TrimSpace(t.Endpoint) != "" || os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT") != ""
}

// ShouldPropagate defaults to true when unset.
func (t TracingConfig) ShouldPropagate() bool {
	return t.Propagate == nil || *t.Propagate
}

// Defaults returns the configuration used before file and flag overrides.
func Defaults() *Config {
	return &Config{
		Iterations: DefaultIterations,
		WarmUp:     DefaultWarmUp,
		Steps:      1,
		Measuring:  true,
		Mode:       DefaultMode,
		ResultsDir: DefaultResultsDir,
		Tracing:    TracingConfig{Protocol: "grpc", SampleRate: 1.0},
	}
}

// Resolved returns the workload with batch defaults applied.
func (c Config) Resolved(w WorkloadSpec) WorkloadSpec {
	if w.Steps == nil {
		steps := c.Steps
		w.Steps = &steps
	}
	if w.Kind == "" {
		w.Kind = KindSleep
	}
	if w.Name == "" {
		w.Name = w.Kind
	}
	if w.Category == "" {
		w.Category = w.Kind
	}
	if w.Duration == 0 && w.Kind == KindSleep {
		w.Duration = DefaultSleep
	}
	if w.Size == 0 && w.Kind != KindSleep {
		w.Size = DefaultPayloadSize
	}
	return w
}

type ValidationError struct {
	issues []string
}

func (e ValidationError) Error() string {
	if len(e.issues) == 0 {
		return "validation failed"
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(e.issues, "; "))
}

func (e ValidationError) Issues() []string {
	return append([]string(nil), e.issues...)
}

func (c Config) Validate() error {
	var issues []string

	if c.Iterations < 0 {
		issues = append(issues, "iterations must be >= 0")
	}
	if c.WarmUp < 0 {
		issues = append(issues, "warm_up must be >= 0")
	}
	if c.Steps < 0 {
		issues = append(issues, "steps must be >= 0")
	}
	if c.StepRate < 0 {
		issues = append(issues, "step_rate must be >= 0")
	}
	if c.Parallelism < 0 {
		issues = append(issues, "parallelism must be >= 0")
	}
	switch strings.ToLower(strings.TrimSpace(c.Mode)) {
	case "", "sequential", "concurrent":
	default:
		issues = append(issues, fmt.Sprintf("mode must be sequential or concurrent, got %q", c.Mode))
	}
	if c.Dashboard && c.JSONOutput {
		issues = append(issues, "dashboard and json-output are mutually exclusive")
	}

	issues = append(issues, validateTracing(c.Tracing)...)
	issues = append(issues, validateWorkloads(c.Workloads)...)

	if len(issues) > 0 {
		return ValidationError{issues: issues}
	}
	return nil
}

func validateTracing(t TracingConfig) []string {
	var issues []string
	switch strings.ToLower(t.Protocol) {
	case "", "grpc", "http":
	default:
		issues = append(issues, fmt.Sprintf("tracing.protocol must be grpc or http, got %q", t.Protocol))
	}
	if t.SampleRate < 0 || t.SampleRate > 1 {
		issues = append(issues, "tracing.sample_rate must be between 0 and 1")
	}
	return issues
}

func validateWorkloads(workloads []WorkloadSpec) []string {
	if len(workloads) == 0 {
		return []string{"at least one workload is required (use --workload or a config file)"}
	}
	var issues []string
	seen := make(map[string]int, len(workloads))
	for i, w := range workloads {
		kind := w.Kind
		if kind == "" {
			kind = KindSleep
		}
		if !slices.Contains(workloadKinds, kind) {
			issues = append(issues, fmt.Sprintf("workloads[%d]: unknown kind %q (want one of %s)", i, w.Kind, strings.Join(workloadKinds, ", ")))
		}
		if w.Steps != nil && *w.Steps < 0 {
			issues = append(issues, fmt.Sprintf("workloads[%d]: steps must be >= 0", i))
		}
		if w.Duration < 0 {
			issues = append(issues, fmt.Sprintf("workloads[%d]: duration must be >= 0", i))
		}
		if w.Size < 0 {
			issues = append(issues, fmt.Sprintf("workloads[%d]: size must be >= 0", i))
		}
		name := w.Name
		if name == "" {
			name = kind
		}
		// Results are written to <results_dir>/<category>/<name>.csv.
		if strings.ContainsAny(name, `/\`) {
			issues = append(issues, fmt.Sprintf("workloads[%d]: name %q must not contain path separators", i, name))
		}
		category := w.Category
		if category == "" {
			category = kind
		}
		key := category + "/" + name
		if prev, dup := seen[key]; dup {
			issues = append(issues, fmt.Sprintf("workloads[%d]: duplicate of workloads[%d] (%s)", i, prev, key))
			continue
		}
		seen[key] = i
	}
	return issues
}
