package trial

import (
	"errors"
	"time"
)

const (
	// DefaultIterations is the number of measured iterations per test.
	DefaultIterations = 10
	// DefaultWarmUpFloor is the minimum time spent in RunStep during warm-up.
	DefaultWarmUpFloor = 5 * time.Second
)

// Config controls one engine.
type Config struct {
	Iterations        int           // measured iterations; 0 runs warm-up only
	WarmUpFloor       time.Duration // minimum summed step time spent warming up
	Measuring         bool          // emit step rows and record step statistics
	Verbose           bool          // log warm-up progress
	StepsPerIteration int           // steps discovered in iteration 0 when no DiscoverStep hook is set
	StepRate          float64       // steps per second pacing (0 means unlimited)
}

// DefaultConfig returns the configuration used when nothing else is given.
func DefaultConfig() Config {
	return Config{
		Iterations:        DefaultIterations,
		WarmUpFloor:       DefaultWarmUpFloor,
		Measuring:         true,
		StepsPerIteration: 1,
	}
}

// Validate reports the first invalid field.
func (c Config) Validate() error {
	if c.Iterations < 0 {
		return errors.New("iterations must be >= 0")
	}
	if c.WarmUpFloor < 0 {
		return errors.New("warm-up floor must be >= 0")
	}
	if c.StepsPerIteration < 0 {
		return errors.New("steps per iteration must be >= 0")
	}
	if c.StepRate < 0 {
		return errors.New("step rate must be >= 0")
	}
	return nil
}

func (c *Config) normalize() {
	if c.Iterations < 0 {
		c.Iterations = 0
	}
	if c.WarmUpFloor < 0 {
		c.WarmUpFloor = 0
	}
	if c.StepsPerIteration < 0 {
		c.StepsPerIteration = 0
	}
	if c.StepRate < 0 {
		c.StepRate = 0
	}
}
