package benchmark

// PerformanceComparison contrasts a test run against a baseline run.
// Negative latency and memory deltas are improvements; a positive
// throughput delta is an improvement.
type PerformanceComparison struct {
	BaselineVersion    string  `json:"baseline_version"`
	TestVersion        string  `json:"test_version"`
	LatencyDeltaPct    float64 `json:"latency_delta_pct"`
	ThroughputDeltaPct float64 `json:"throughput_delta_pct"`
	MemoryDeltaPct     float64 `json:"memory_delta_pct"`
	Faster             bool    `json:"faster"`
	HigherThroughput   bool    `json:"higher_throughput"`
	MoreEfficient      bool    `json:"more_efficient"`
}

// ComparePerformance computes percentage deltas from baseline to test.
func ComparePerformance(baseline, test Result) PerformanceComparison {
	c := PerformanceComparison{
		BaselineVersion:    baseline.ModelVersion,
		TestVersion:        test.ModelVersion,
		LatencyDeltaPct:    pctDelta(baseline.Latency.Mean, test.Latency.Mean),
		ThroughputDeltaPct: pctDelta(baseline.AvgThroughputFPS, test.AvgThroughputFPS),
		MemoryDeltaPct:     pctDelta(baseline.AvgMemoryMB, test.AvgMemoryMB),
	}
	c.Faster = c.LatencyDeltaPct < 0
	c.HigherThroughput = c.ThroughputDeltaPct > 0
	c.MoreEfficient = c.MemoryDeltaPct < 0
	return c
}

// pctDelta is zero when the baseline is zero.
func pctDelta(baseline, test float64) float64 {
	if baseline == 0 {
		return 0
	}
	return (test - baseline) / baseline * 100
}
