package config

import (
	"errors"
	"fmt"
	"sort"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateMetrics(); err != nil {
		return err
	}
	if err := c.validateRegression(); err != nil {
		return err
	}
	if err := c.validateBenchmark(); err != nil {
		return err
	}
	if err := c.validateGate(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateMetrics() error {
	thresholds := c.MetricThresholds()
	names := make([]string, 0, len(thresholds))
	for name := range thresholds {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		value := thresholds[name]
		if value < 0 || value > 1 {
			return fmt.Errorf("metrics.%s must be between 0 and 1", name)
		}
	}
	return nil
}

func (c *Config) validateRegression() error {
	if c.Regression.DegradationTolerance < 0 || c.Regression.DegradationTolerance >= 1 {
		return errors.New("regression.degradation_tolerance must be in [0, 1)")
	}
	if c.Regression.DegradedFraction < 0 || c.Regression.DegradedFraction > 1 {
		return errors.New("regression.degraded_fraction must be between 0 and 1")
	}
	return nil
}

func (c *Config) validateBenchmark() error {
	if err := ensurePositiveMap(map[string]int{
		"benchmark.num_runs":           c.Benchmark.NumRuns,
		"benchmark.sample_interval_ms": c.Benchmark.SampleIntervalMS,
	}); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateGate() error {
	if c.Gate.MaxFailures < 0 || c.Gate.MaxDegraded < 0 || c.Gate.MaxBenchmarkFailures < 0 {
		return errors.New("gate maxima must not be negative")
	}
	if c.Gate.MinPassRate < 0 || c.Gate.MinPassRate > 1 {
		return errors.New("gate.min_pass_rate must be between 0 and 1")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if values[key] <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
