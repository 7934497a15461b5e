package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// newFlagCommand creates a cobra command with all flags configured.
func newFlagCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "crankbench",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	cmd.SetOut(os.Stdout)
	configureFlags(cmd.Flags())
	return cmd
}

// configureFlags sets up all CLI flags on the provided flag set.
func configureFlags(flags *pflag.FlagSet) {
	// Trial flags
	flags.IntP("iterations", "n", DefaultIterations, "Measured iterations per test")
	flags.Duration("warm-up", DefaultWarmUp, "Minimum time spent in steps before measuring (e.g. 500ms, 5s)")
	flags.Int("steps", 1, "Steps per iteration for workloads that do not set their own")
	flags.Float64("step-rate", 0, "Steps per second per test (0 means unlimited)")
	flags.Bool("measuring", true, "Write per-step measurement rows")
	flags.BoolP("verbose", "v", false, "Log warm-up passes and debug details")

	// Workload flags
	flags.StringArrayP("workload", "w", nil, "Workload as kind[:name][,key=value...] (repeatable, kinds: sleep, hash, yaml, json)")

	// Batch flags
	flags.String("mode", DefaultMode, "Execution mode: 'sequential' or 'concurrent'")
	flags.IntP("parallelism", "p", 0, "Max tests running at once in concurrent mode (0 means all)")

	// Output flags
	flags.String("results-dir", DefaultResultsDir, "Directory for per-test measurement CSV files (empty disables)")
	flags.Bool("json-output", false, "Emit JSON formatted output")
	flags.Bool("dashboard", false, "Show live terminal dashboard with per-test step metrics")
	flags.String("html-output", "", "Generate HTML report to the specified file path")
	flags.String("config", "", "Path to configuration file (JSON or YAML)")

	// Threshold flags
	flags.StringSlice("threshold", nil, "Step thresholds (repeatable, e.g., 'step_duration:p95 < 5')")

	// Tracing flags
	flags.String("tracing-endpoint", "", "OTLP endpoint for trace export (empty disables)")
	flags.String("tracing-protocol", "grpc", "OTLP protocol: 'grpc' or 'http'")
	flags.Bool("tracing-insecure", false, "Disable TLS for the OTLP exporter")
	flags.Float64("tracing-sample-rate", 1.0, "Fraction of batches to sample (0.0-1.0)")
}

// displayHelp prints the help message for a command.
func displayHelp(cmd *cobra.Command) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Usage: %s\n\nFlags:\n", cmd.UseLine())
	fs := cmd.Flags()
	fs.SetOutput(out)
	fs.PrintDefaults()
}

// applyFlagOverrides applies command-line flag values to the config, overriding
// values from the config file.
func applyFlagOverrides(cfg *Config, fs *pflag.FlagSet) error {
	if fs.Changed("iterations") {
		val, err := fs.GetInt("iterations")
		if err != nil {
			return err
		}
		cfg.Iterations = val
	}
	if fs.Changed("warm-up") {
		val, err := fs.GetDuration("warm-up")
		if err != nil {
			return err
		}
		cfg.WarmUp = val
	}
	if fs.Changed("steps") {
		val, err := fs.GetInt("steps")
		if err != nil {
			return err
		}
		cfg.Steps = val
	}
	if fs.Changed("step-rate") {
		val, err := fs.GetFloat64("step-rate")
		if err != nil {
			return err
		}
		cfg.StepRate = val
	}
	if fs.Changed("measuring") {
		val, err := fs.GetBool("measuring")
		if err != nil {
			return err
		}
		cfg.Measuring = val
	}
	if fs.Changed("verbose") {
		val, err := fs.GetBool("verbose")
		if err != nil {
			return err
		}
		cfg.Verbose = val
	}
	if fs.Changed("mode") {
		val, err := fs.GetString("mode")
		if err != nil {
			return err
		}
		cfg.Mode = val
	}
	if fs.Changed("parallelism") {
		val, err := fs.GetInt("parallelism")
		if err != nil {
			return err
		}
		cfg.Parallelism = val
	}
	if fs.Changed("results-dir") {
		val, err := fs.GetString("results-dir")
		if err != nil {
			return err
		}
		cfg.ResultsDir = val
	}
	if fs.Changed("json-output") {
		val, err := fs.GetBool("json-output")
		if err != nil {
			return err
		}
		cfg.JSONOutput = val
	}
	if fs.Changed("dashboard") {
		val, err := fs.GetBool("dashboard")
		if err != nil {
			return err
		}
		cfg.Dashboard = val
	}
	if fs.Changed("html-output") {
		val, err := fs.GetString("html-output")
		if err != nil {
			return err
		}
		cfg.HTMLOutput = strings.TrimSpace(val)
	}
	if fs.Changed("threshold") {
		val, err := fs.GetStringSlice("threshold")
		if err != nil {
			return err
		}
		cfg.Thresholds = val
	}

	// Flag workloads replace the ones from the config file.
	if fs.Changed("workload") {
		vals, err := fs.GetStringArray("workload")
		if err != nil {
			return err
		}
		workloads := make([]WorkloadSpec, 0, len(vals))
		for _, entry := range vals {
			w, err := parseWorkloadFlag(entry)
			if err != nil {
				return err
			}
			workloads = append(workloads, w)
		}
		cfg.Workloads = workloads
	}

	if fs.Changed("tracing-endpoint") {
		val, err := fs.GetString("tracing-endpoint")
		if err != nil {
			return err
		}
		cfg.Tracing.Endpoint = strings.TrimSpace(val)
	}
	if fs.Changed("tracing-protocol") {
		val, err := fs.GetString("tracing-protocol")
		if err != nil {
			return err
		}
		cfg.Tracing.Protocol = val
	}
	if fs.Changed("tracing-insecure") {
		val, err := fs.GetBool("tracing-insecure")
		if err != nil {
			return err
		}
		cfg.Tracing.Insecure = val
	}
	if fs.Changed("tracing-sample-rate") {
		val, err := fs.GetFloat64("tracing-sample-rate")
		if err != nil {
			return err
		}
		cfg.Tracing.SampleRate = val
	}

	return nil
}
