// Package benchmark measures the latency, throughput, and resource usage of
// an inference entry point over repeated trials.
//
// Each trial runs the callable synchronously while a Monitor goroutine
// samples process CPU and resident memory into bounded ring buffers. The
// monitor hands back a single Usage snapshot when stopped, so no buffer is
// ever shared between goroutines. Failing trials are recorded and never abort
// the run. Latency statistics use gonum's empirical quantiles over the
// latencies actually observed.
package benchmark
