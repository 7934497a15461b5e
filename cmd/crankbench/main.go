package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/torosent/crankbench/internal/config"
	"github.com/torosent/crankbench/internal/dashboard"
	"github.com/torosent/crankbench/internal/logging"
	"github.com/torosent/crankbench/internal/output"
	"github.com/torosent/crankbench/internal/probe"
	"github.com/torosent/crankbench/internal/runner"
	"github.com/torosent/crankbench/internal/testcase"
	"github.com/torosent/crankbench/internal/threshold"
	"github.com/torosent/crankbench/internal/tracing"
	"github.com/torosent/crankbench/internal/trial"
)

const (
	progressInterval = time.Second
	shutdownTimeout  = 5 * time.Second
)

// errThresholds is returned when every test passed but a threshold did not.
var errThresholds = errors.New("one or more thresholds failed")

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	loader := config.NewLoader()
	cfg, err := loader.Load(args)
	if err != nil {
		if errors.Is(err, config.ErrHelpRequested) {
			return nil
		}
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	mode, err := runner.ParseMode(cfg.Mode)
	if err != nil {
		return err
	}
	thresholds, err := threshold.ParseMultiple(cfg.Thresholds)
	if err != nil {
		return err
	}

	// The dashboard owns the terminal; logs are held back until it closes.
	logOut := stderr
	var heldLogs *bytes.Buffer
	if cfg.Dashboard {
		heldLogs = &bytes.Buffer{}
		logOut = heldLogs
	}
	logger := logging.New(logOut, cfg.Verbose)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	tp, err := tracing.Init(ctx, cfg.Tracing)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, done := context.WithTimeout(context.Background(), shutdownTimeout)
		defer done()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Tracing shutdown failed.", "error", err)
		}
	}()

	tests, err := buildTests(cfg, tp.Tracer(), logger)
	if err != nil {
		return err
	}

	r := runner.New(runner.Options{
		Mode:        mode,
		Parallelism: cfg.Parallelism,
		Logger:      logger,
		Tracer:      tp.Tracer(),
	})

	var dash *dashboard.Dashboard
	if cfg.Dashboard {
		dash, err = dashboard.New(r, batchInfo(cfg), cancel)
		if err != nil {
			return err
		}
		dash.Start()
	}

	var progress *output.ProgressReporter
	if !cfg.JSONOutput && !cfg.Dashboard {
		progress = output.NewProgressReporter(r, progressInterval, stdout)
		progress.Start()
	}
	rep := r.Run(ctx, tests)
	if progress != nil {
		progress.Stop()
		fmt.Fprintln(stdout)
	}
	if dash != nil {
		dash.Stop()
		if _, err := heldLogs.WriteTo(stderr); err != nil {
			return err
		}
		logger = logging.New(stderr, cfg.Verbose)
	}

	reports := evaluateThresholds(thresholds, rep)

	if cfg.JSONOutput {
		if err := output.PrintJSONReport(stdout, rep, reports); err != nil {
			return err
		}
	} else {
		output.PrintReport(stdout, rep)
		output.PrintThresholds(stdout, reports)
	}

	if cfg.HTMLOutput != "" {
		if err := writeHTMLReport(cfg.HTMLOutput, rep, reports); err != nil {
			return err
		}
		logger.Info("Wrote HTML report.", "path", cfg.HTMLOutput)
	}

	if failed := len(rep.Failures()); failed > 0 {
		return fmt.Errorf("%d of %d tests failed", failed, len(rep.Outcomes))
	}
	if !threshold.AllPassed(reports) {
		return errThresholds
	}
	return nil
}

// buildTests creates one test case per configured workload, in order.
func buildTests(cfg *config.Config, tracer trace.Tracer, logger *slog.Logger) ([]runner.Test, error) {
	trialCfg := trialConfig(cfg)
	tests := make([]runner.Test, 0, len(cfg.Workloads))
	for _, spec := range cfg.Workloads {
		spec = cfg.Resolved(spec)
		w, err := probe.New(spec)
		if err != nil {
			return nil, err
		}
		opts := []testcase.Option{
			testcase.WithCategory(spec.Category),
			testcase.WithKind(kindLabel(w.Kind())),
			testcase.WithTracer(tracer),
			testcase.WithLogger(logger),
		}
		if cfg.ResultsDir != "" {
			opts = append(opts, testcase.WithResultsDir(cfg.ResultsDir))
		}
		tests = append(tests, testcase.New(w, trialCfg, opts...))
	}
	return tests, nil
}

func trialConfig(cfg *config.Config) trial.Config {
	tc := trial.DefaultConfig()
	tc.Iterations = cfg.Iterations
	tc.WarmUpFloor = cfg.WarmUp
	tc.Measuring = cfg.Measuring
	tc.Verbose = cfg.Verbose
	tc.StepsPerIteration = cfg.Steps
	tc.StepRate = cfg.StepRate
	return tc
}

func batchInfo(cfg *config.Config) dashboard.BatchInfo {
	return dashboard.BatchInfo{
		Mode:        cfg.Mode,
		Iterations:  cfg.Iterations,
		WarmUp:      cfg.WarmUp,
		Parallelism: cfg.Parallelism,
		StepRate:    cfg.StepRate,
		ResultsDir:  cfg.ResultsDir,
		ConfigFile:  cfg.ConfigFile,
	}
}

func kindLabel(kind string) string {
	switch kind {
	case config.KindSleep:
		return "Sleep"
	case config.KindHash:
		return "Hash"
	case config.KindYAML:
		return "YAMLDecode"
	case config.KindJSON:
		return "JSONQuery"
	default:
		return kind
	}
}

// evaluateThresholds checks every test against the configured thresholds.
// Tests are reported in batch order.
func evaluateThresholds(thresholds []threshold.Threshold, rep runner.Report) []threshold.Report {
	if len(thresholds) == 0 {
		return nil
	}
	evaluator := threshold.NewEvaluator(thresholds)
	reports := make([]threshold.Report, 0, len(rep.Outcomes))
	for _, o := range rep.Outcomes {
		sample := threshold.Sample{Failed: o.Failed()}
		if o.Stats != nil {
			sample.Stats = *o.Stats
		}
		reports = append(reports, threshold.Report{
			Test:    o.Name,
			Results: evaluator.Evaluate(sample),
		})
	}
	return reports
}

func writeHTMLReport(path string, rep runner.Report, reports []threshold.Report) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create html report: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = cerr
		}
	}()
	return output.GenerateHTMLReport(f, rep, reports)
}
