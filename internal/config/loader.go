package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Loader handles loading configuration from files and command-line arguments.
type Loader struct{}

// ErrHelpRequested is returned when the user requests help via --help flag.
var ErrHelpRequested = errors.New("help requested")

// NewLoader creates a new configuration Loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load parses command-line arguments and configuration files to produce a Config.
func (Loader) Load(args []string) (*Config, error) {
	cmd := newFlagCommand()
	if err := cmd.Flags().Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			displayHelp(cmd)
			return nil, ErrHelpRequested
		}
		return nil, err
	}

	flagSet := cmd.Flags()
	if helpFlag := flagSet.Lookup("help"); helpFlag != nil {
		if wantsHelp, err := strconv.ParseBool(helpFlag.Value.String()); err == nil && wantsHelp {
			displayHelp(cmd)
			return nil, ErrHelpRequested
		}
	}

	// Nothing to run without a workload flag or a config file.
	configPath := flagSet.Lookup("config").Value.String()
	if len(args) == 0 && configPath == "" {
		displayHelp(cmd)
		return nil, ErrHelpRequested
	}
	cfgViper := viper.New()
	if configPath != "" {
		cfgViper.SetConfigFile(configPath)
		if err := cfgViper.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	cfg := Defaults()
	cfg.ConfigFile = configPath

	if err := applyConfigSettings(cfg, cfgViper.AllSettings()); err != nil {
		return nil, err
	}

	if err := applyFlagOverrides(cfg, flagSet); err != nil {
		return nil, err
	}

	cfg.Mode = strings.ToLower(strings.TrimSpace(cfg.Mode))
	cfg.ResultsDir = strings.TrimSpace(cfg.ResultsDir)
	cfg.Tracing.Protocol = strings.ToLower(strings.TrimSpace(cfg.Tracing.Protocol))

	return cfg, nil
}

// applyConfigSettings applies settings from a config file to the Config struct.
func applyConfigSettings(cfg *Config, settings map[string]interface{}) error {
	if len(settings) == 0 {
		return nil
	}

	if raw, ok := lookupSetting(settings, "iterations"); ok {
		val, err := asInt(raw)
		if err != nil {
			return fmt.Errorf("iterations: %w", err)
		}
		cfg.Iterations = val
	}

	if raw, ok := lookupSetting(settings, "warmup", "warm_up", "warm-up"); ok {
		dur, err := asDuration(raw)
		if err != nil {
			return fmt.Errorf("warm_up: %w", err)
		}
		cfg.WarmUp = dur
	}

	if raw, ok := lookupSetting(settings, "steps"); ok {
		val, err := asInt(raw)
		if err != nil {
			return fmt.Errorf("steps: %w", err)
		}
		cfg.Steps = val
	}

	if raw, ok := lookupSetting(settings, "steprate", "step_rate", "step-rate"); ok {
		val, err := asFloat64(raw)
		if err != nil {
			return fmt.Errorf("step_rate: %w", err)
		}
		cfg.StepRate = val
	}

	if raw, ok := lookupSetting(settings, "measuring"); ok {
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("measuring: %w", err)
		}
		cfg.Measuring = val
	}

	if raw, ok := lookupSetting(settings, "verbose"); ok {
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("verbose: %w", err)
		}
		cfg.Verbose = val
	}

	if raw, ok := lookupSetting(settings, "mode"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("mode: %w", err)
		}
		if val != "" {
			cfg.Mode = val
		}
	}

	if raw, ok := lookupSetting(settings, "parallelism"); ok {
		val, err := asInt(raw)
		if err != nil {
			return fmt.Errorf("parallelism: %w", err)
		}
		cfg.Parallelism = val
	}

	if raw, ok := lookupSetting(settings, "resultsdir", "results_dir", "results-dir"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("results_dir: %w", err)
		}
		cfg.ResultsDir = val
	}

	if raw, ok := lookupSetting(settings, "jsonoutput", "json_output", "json-output"); ok {
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("jsonOutput: %w", err)
		}
		cfg.JSONOutput = val
	}
	if raw, ok := lookupSetting(settings, "dashboard"); ok {
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("dashboard: %w", err)
		}
		cfg.Dashboard = val
	}

	if raw, ok := lookupSetting(settings, "htmloutput", "html_output", "html-output"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("htmlOutput: %w", err)
		}
		cfg.HTMLOutput = strings.TrimSpace(val)
	}

	if raw, ok := lookupSetting(settings, "thresholds"); ok {
		thresholds, err := asStringSlice(raw)
		if err != nil {
			return fmt.Errorf("thresholds: %w", err)
		}
		cfg.Thresholds = thresholds
	}

	if raw, ok := lookupSetting(settings, "tracing"); ok {
		if err := parseTracing(&cfg.Tracing, raw); err != nil {
			return fmt.Errorf("tracing: %w", err)
		}
	}

	if raw, ok := lookupSetting(settings, "workloads"); ok {
		workloads, err := parseWorkloads(raw)
		if err != nil {
			return fmt.Errorf("workloads: %w", err)
		}
		cfg.Workloads = workloads
	}

	return nil
}

func parseTracing(t *TracingConfig, value interface{}) error {
	if value == nil {
		return nil
	}
	settings, err := toStringKeyMap(value)
	if err != nil {
		return err
	}
	if raw, ok := lookupSetting(settings, "endpoint"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("endpoint: %w", err)
		}
		t.Endpoint = strings.TrimSpace(val)
	}
	if raw, ok := lookupSetting(settings, "protocol"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("protocol: %w", err)
		}
		t.Protocol = val
	}
	if raw, ok := lookupSetting(settings, "servicename", "service_name", "service-name"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("service_name: %w", err)
		}
		t.ServiceName = strings.TrimSpace(val)
	}
	if raw, ok := lookupSetting(settings, "samplerate", "sample_rate", "sample-rate"); ok {
		val, err := asFloat64(raw)
		if err != nil {
			return fmt.Errorf("sample_rate: %w", err)
		}
		t.SampleRate = val
	}
	if raw, ok := lookupSetting(settings, "insecure"); ok {
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("insecure: %w", err)
		}
		t.Insecure = val
	}
	if raw, ok := lookupSetting(settings, "propagate"); ok {
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("propagate: %w", err)
		}
		t.Propagate = &val
	}
	return nil
}

func parseWorkloads(value interface{}) ([]WorkloadSpec, error) {
	if value == nil {
		return nil, nil
	}
	items, err := toInterfaceSlice(value)
	if err != nil {
		return nil, err
	}
	workloads := make([]WorkloadSpec, 0, len(items))
	for idx, item := range items {
		entry, err := toStringKeyMap(item)
		if err != nil {
			return nil, fmt.Errorf("index %d: %w", idx, err)
		}
		w, err := buildWorkload(entry)
		if err != nil {
			return nil, fmt.Errorf("index %d: %w", idx, err)
		}
		workloads = append(workloads, w)
	}
	return workloads, nil
}

func buildWorkload(settings map[string]interface{}) (WorkloadSpec, error) {
	var w WorkloadSpec
	if raw, ok := lookupSetting(settings, "name"); ok {
		val, err := asString(raw)
		if err != nil {
			return WorkloadSpec{}, fmt.Errorf("name: %w", err)
		}
		w.Name = strings.TrimSpace(val)
	}
	if raw, ok := lookupSetting(settings, "kind", "type"); ok {
		val, err := asString(raw)
		if err != nil {
			return WorkloadSpec{}, fmt.Errorf("kind: %w", err)
		}
		w.Kind = strings.ToLower(strings.TrimSpace(val))
	}
	if raw, ok := lookupSetting(settings, "category"); ok {
		val, err := asString(raw)
		if err != nil {
			return WorkloadSpec{}, fmt.Errorf("category: %w", err)
		}
		w.Category = strings.TrimSpace(val)
	}
	if raw, ok := lookupSetting(settings, "steps"); ok {
		val, err := asInt(raw)
		if err != nil {
			return WorkloadSpec{}, fmt.Errorf("steps: %w", err)
		}
		w.Steps = &val
	}
	if raw, ok := lookupSetting(settings, "duration"); ok {
		dur, err := asDuration(raw)
		if err != nil {
			return WorkloadSpec{}, fmt.Errorf("duration: %w", err)
		}
		w.Duration = dur
	}
	if raw, ok := lookupSetting(settings, "size"); ok {
		val, err := asInt(raw)
		if err != nil {
			return WorkloadSpec{}, fmt.Errorf("size: %w", err)
		}
		w.Size = val
	}
	return w, nil
}

// parseWorkloadFlag parses "kind[:name][,key=value...]", for example
// "hash:sha-4k,size=4096,steps=8".
func parseWorkloadFlag(s string) (WorkloadSpec, error) {
	parts := strings.Split(s, ",")
	head := strings.TrimSpace(parts[0])
	if head == "" {
		return WorkloadSpec{}, fmt.Errorf("workload %q: kind is required", s)
	}
	settings := map[string]interface{}{}
	kind, name, _ := strings.Cut(head, ":")
	settings["kind"] = kind
	if name != "" {
		settings["name"] = name
	}
	for _, opt := range parts[1:] {
		key, val, ok := strings.Cut(opt, "=")
		if !ok {
			return WorkloadSpec{}, fmt.Errorf("workload %q: option %q must be key=value", s, opt)
		}
		settings[strings.ToLower(strings.TrimSpace(key))] = strings.TrimSpace(val)
	}
	w, err := buildWorkload(settings)
	if err != nil {
		return WorkloadSpec{}, fmt.Errorf("workload %q: %w", s, err)
	}
	return w, nil
}
