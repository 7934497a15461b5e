package metrics

import (
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

const (
	lowestTrackable  = 1
	highestTrackable = int64(time.Minute)
)

// Collector records measured step durations in a thread-safe manner.
type Collector struct {
	mu           sync.Mutex
	hist         *hdrhistogram.Histogram
	successes    int64
	failures     int64
	minDuration  time.Duration
	maxDuration  time.Duration
	sumDuration  time.Duration
	errorsByType map[string]int64
}

// Stats represents aggregated step metrics.
type Stats struct {
	Steps       int64         `json:"steps"`
	Successes   int64         `json:"successes"`
	Failures    int64         `json:"failures"`
	Min         time.Duration `json:"-"`
	Max         time.Duration `json:"-"`
	Mean        time.Duration `json:"-"`
	P50         time.Duration `json:"-"`
	P90         time.Duration `json:"-"`
	P95         time.Duration `json:"-"`
	P99         time.Duration `json:"-"`
	Elapsed     time.Duration `json:"-"`
	StepsPerSec float64       `json:"steps_per_sec"`

	// JSON-friendly millisecond fields.
	MinMs     float64        `json:"min_ms"`
	MaxMs     float64        `json:"max_ms"`
	MeanMs    float64        `json:"mean_ms"`
	P50Ms     float64        `json:"p50_ms"`
	P90Ms     float64        `json:"p90_ms"`
	P95Ms     float64        `json:"p95_ms"`
	P99Ms     float64        `json:"p99_ms"`
	ElapsedMs float64        `json:"elapsed_ms"`
	Errors    map[string]int `json:"errors,omitempty"`
}

func NewCollector() *Collector {
	return &Collector{
		hist:         hdrhistogram.New(lowestTrackable, highestTrackable, 3),
		errorsByType: make(map[string]int64),
	}
}

// RecordStep records one measured step's duration and outcome.
func (c *Collector) RecordStep(d time.Duration, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ns := int64(d)
	if ns < lowestTrackable {
		ns = lowestTrackable
	}
	if ns > highestTrackable {
		ns = highestTrackable
	}
	_ = c.hist.RecordValue(ns)
	c.sumDuration += d

	if c.successes+c.failures == 0 || d < c.minDuration {
		c.minDuration = d
	}
	if d > c.maxDuration {
		c.maxDuration = d
	}

	if err == nil {
		c.successes++
		return
	}
	c.failures++
	c.errorsByType[ErrorLabel(err)]++
}

// Reset discards everything recorded so far.
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hist.Reset()
	c.successes, c.failures = 0, 0
	c.minDuration, c.maxDuration, c.sumDuration = 0, 0, 0
	c.errorsByType = make(map[string]int64)
}

// Stats computes aggregated statistics. elapsed is the summed step time of
// the test and drives StepsPerSec.
func (c *Collector) Stats(elapsed time.Duration) Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	total := c.successes + c.failures
	stats := Stats{
		Steps:     total,
		Successes: c.successes,
		Failures:  c.failures,
		Min:       c.minDuration,
		Max:       c.maxDuration,
		Elapsed:   elapsed,
	}

	if total > 0 {
		stats.Mean = time.Duration(int64(c.sumDuration) / total)
	}
	if c.hist.TotalCount() > 0 {
		stats.P50 = time.Duration(c.hist.ValueAtQuantile(50))
		stats.P90 = time.Duration(c.hist.ValueAtQuantile(90))
		stats.P95 = time.Duration(c.hist.ValueAtQuantile(95))
		stats.P99 = time.Duration(c.hist.ValueAtQuantile(99))
	}

	stats.MinMs = ms(stats.Min)
	stats.MaxMs = ms(stats.Max)
	stats.MeanMs = ms(stats.Mean)
	stats.P50Ms = ms(stats.P50)
	stats.P90Ms = ms(stats.P90)
	stats.P95Ms = ms(stats.P95)
	stats.P99Ms = ms(stats.P99)
	stats.ElapsedMs = ms(elapsed)
	if elapsed > 0 && total > 0 {
		stats.StepsPerSec = float64(total) / elapsed.Seconds()
	}

	if len(c.errorsByType) > 0 {
		stats.Errors = make(map[string]int, len(c.errorsByType))
		for k, v := range c.errorsByType {
			stats.Errors[k] = int(v)
		}
	}
	return stats
}

func ms(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
