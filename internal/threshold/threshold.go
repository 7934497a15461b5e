package threshold

import (
	"fmt"
	"math"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/torosent/crankbench/internal/metrics"
)

// Threshold represents a performance assertion that can pass or fail.
type Threshold struct {
	Metric    string  // e.g., "step_duration", "steps", "test_duration", "test_failed"
	Aggregate string  // e.g., "p95", "p99", "avg", "max", "rate", "count", "total"
	Operator  string  // e.g., "<", "<=", ">", ">=", "=="
	Value     float64 // The threshold value to compare against
	Raw       string  // Original threshold string for display
}

// Result represents the outcome of evaluating a threshold.
type Result struct {
	Threshold Threshold
	Actual    float64
	Pass      bool
	Message   string
}

// Sample is what a threshold is checked against: the step statistics of one
// test and whether the test failed.
type Sample struct {
	Stats  metrics.Stats
	Failed bool
}

// Report holds the threshold results of one test.
type Report struct {
	Test    string
	Results []Result
}

// Passed reports whether every threshold of the test held.
func (r Report) Passed() bool {
	for _, res := range r.Results {
		if !res.Pass {
			return false
		}
	}
	return true
}

// AllPassed reports whether every report passed.
func AllPassed(reports []Report) bool {
	for _, r := range reports {
		if !r.Passed() {
			return false
		}
	}
	return true
}

// Evaluator evaluates thresholds against collected metrics.
type Evaluator struct {
	thresholds []Threshold
}

// NewEvaluator creates a new threshold evaluator.
func NewEvaluator(thresholds []Threshold) *Evaluator {
	return &Evaluator{
		thresholds: thresholds,
	}
}

// Len returns the number of configured thresholds.
func (e *Evaluator) Len() int { return len(e.thresholds) }

// Evaluate checks all thresholds against one test's sample.
func (e *Evaluator) Evaluate(s Sample) []Result {
	if len(e.thresholds) == 0 {
		return nil
	}

	results := make([]Result, 0, len(e.thresholds))
	for _, t := range e.thresholds {
		result := e.evaluateOne(t, s)
		results = append(results, result)
	}
	return results
}

func (e *Evaluator) evaluateOne(t Threshold, s Sample) Result {
	actual, err := extractMetricValue(t, s)
	if err != nil {
		return Result{
			Threshold: t,
			Actual:    0,
			Pass:      false,
			Message:   fmt.Sprintf("error: %v", err),
		}
	}

	pass := compareValues(actual, t.Operator, t.Value)
	status := "✓"
	if !pass {
		status = "✗"
	}

	message := fmt.Sprintf("%s %s: %.2f %s %.2f", status, t.Raw, actual, t.Operator, t.Value)
	return Result{
		Threshold: t,
		Actual:    actual,
		Pass:      pass,
		Message:   message,
	}
}

var thresholdPattern = regexp.MustCompile(`^([a-z_]+):([a-z0-9]+)\s*([<>=!]+)\s*([0-9.]+)$`)

// Parse parses a threshold string into a Threshold struct.
// Supported formats:
// - "step_duration:p95 < 5"      (step duration percentile in ms)
// - "step_duration:avg < 2"      (average step duration in ms)
// - "step_duration:max < 50"     (slowest step in ms)
// - "steps:count >= 100"         (measured steps)
// - "steps:rate > 1000"          (steps per second of test duration)
// - "test_duration:total < 500"  (summed step time in ms)
// - "test_failed:count == 0"     (1 when the test failed)
func Parse(s string) (Threshold, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Threshold{}, fmt.Errorf("empty threshold string")
	}

	matches := thresholdPattern.FindStringSubmatch(s)
	if matches == nil {
		return Threshold{}, fmt.Errorf("invalid threshold format: %q (expected format: metric:aggregate operator value, e.g., 'step_duration:p95 < 5')", s)
	}

	metric := matches[1]
	aggregate := matches[2]
	operator := matches[3]
	valueStr := matches[4]

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return Threshold{}, fmt.Errorf("invalid threshold value %q: %v", valueStr, err)
	}

	if !isValidMetric(metric) {
		return Threshold{}, fmt.Errorf("unsupported metric: %q (supported: step_duration, steps, test_duration, test_failed)", metric)
	}

	if !isValidAggregate(aggregate) {
		return Threshold{}, fmt.Errorf("unsupported aggregate: %q (supported: p50, p90, p95, p99, avg, min, max, rate, count, total)", aggregate)
	}

	if !isValidOperator(operator) {
		return Threshold{}, fmt.Errorf("unsupported operator: %q (supported: <, <=, >, >=, ==)", operator)
	}

	return Threshold{
		Metric:    metric,
		Aggregate: aggregate,
		Operator:  operator,
		Value:     value,
		Raw:       s,
	}, nil
}

// ParseMultiple parses multiple threshold strings.
func ParseMultiple(thresholds []string) ([]Threshold, error) {
	if len(thresholds) == 0 {
		return nil, nil
	}

	result := make([]Threshold, 0, len(thresholds))
	var errors []string

	for i, s := range thresholds {
		t, err := Parse(s)
		if err != nil {
			errors = append(errors, fmt.Sprintf("threshold[%d]: %v", i, err))
			continue
		}
		result = append(result, t)
	}

	if len(errors) > 0 {
		return nil, fmt.Errorf("threshold parsing errors: %s", strings.Join(errors, "; "))
	}

	return result, nil
}

func isValidMetric(metric string) bool {
	return slices.Contains([]string{"step_duration", "steps", "test_duration", "test_failed"}, metric)
}

func isValidAggregate(aggregate string) bool {
	return slices.Contains([]string{"p50", "p90", "p95", "p99", "avg", "min", "max", "rate", "count", "total"}, aggregate)
}

func isValidOperator(operator string) bool {
	return slices.Contains([]string{"<", "<=", ">", ">=", "=="}, operator)
}

func extractMetricValue(t Threshold, s Sample) (float64, error) {
	switch t.Metric {
	case "step_duration":
		return extractDurationMetric(t.Aggregate, s.Stats)
	case "steps":
		return extractStepMetric(t.Aggregate, s.Stats)
	case "test_duration":
		if t.Aggregate != "total" {
			return 0, fmt.Errorf("unsupported aggregate %q for test_duration (use 'total')", t.Aggregate)
		}
		return s.Stats.ElapsedMs, nil
	case "test_failed":
		if t.Aggregate != "count" {
			return 0, fmt.Errorf("unsupported aggregate %q for test_failed (use 'count')", t.Aggregate)
		}
		if s.Failed {
			return 1, nil
		}
		return 0, nil
	default:
		return 0, fmt.Errorf("unknown metric: %s", t.Metric)
	}
}

func extractDurationMetric(aggregate string, stats metrics.Stats) (float64, error) {
	switch aggregate {
	case "p50":
		return stats.P50Ms, nil
	case "p90":
		return stats.P90Ms, nil
	case "p95":
		return stats.P95Ms, nil
	case "p99":
		return stats.P99Ms, nil
	case "avg", "mean":
		return stats.MeanMs, nil
	case "min":
		return stats.MinMs, nil
	case "max":
		return stats.MaxMs, nil
	default:
		return 0, fmt.Errorf("unsupported aggregate %q for step_duration", aggregate)
	}
}

func extractStepMetric(aggregate string, stats metrics.Stats) (float64, error) {
	switch aggregate {
	case "count":
		return float64(stats.Steps), nil
	case "rate":
		return stats.StepsPerSec, nil
	default:
		return 0, fmt.Errorf("unsupported aggregate %q for steps (use 'count' or 'rate')", aggregate)
	}
}

func compareValues(actual float64, operator string, expected float64) bool {
	// Handle floating point comparison with small epsilon
	epsilon := 1e-9

	switch operator {
	case "<":
		return actual < expected
	case "<=":
		return actual <= expected || math.Abs(actual-expected) < epsilon
	case ">":
		return actual > expected
	case ">=":
		return actual >= expected || math.Abs(actual-expected) < epsilon
	case "==":
		return math.Abs(actual-expected) < epsilon
	default:
		return false
	}
}
