package benchmark

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"vqgate/internal/services"
)

// ProcessSample is one cumulative reading of process resources.
type ProcessSample struct {
	CPUTime  time.Duration
	RSSBytes uint64
}

// Sampler reads the current process resource counters.
type Sampler func() (ProcessSample, error)

// Usage summarizes the samples taken during one trial.
type Usage struct {
	Samples        int     `json:"samples"`
	AvgCPUPercent  float64 `json:"avg_cpu_percent"`
	PeakCPUPercent float64 `json:"peak_cpu_percent"`
	AvgMemoryMB    float64 `json:"avg_memory_mb"`
	PeakMemoryMB   float64 `json:"peak_memory_mb"`
}

// ring keeps the most recent values up to its capacity.
type ring struct {
	values []float64
	next   int
	full   bool
}

func newRing(capacity int) *ring {
	if capacity <= 0 {
		capacity = 1
	}
	return &ring{values: make([]float64, capacity)}
}

func (r *ring) push(v float64) {
	r.values[r.next] = v
	r.next = (r.next + 1) % len(r.values)
	if r.next == 0 {
		r.full = true
	}
}

func (r *ring) snapshot() []float64 {
	if r.full {
		return append([]float64(nil), r.values...)
	}
	return append([]float64(nil), r.values[:r.next]...)
}

// Monitor samples resources on its own goroutine between Start and Stop.
type Monitor struct {
	interval    time.Duration
	capacity    int
	joinTimeout time.Duration
	sample      Sampler

	stop chan struct{}
	done chan Usage
}

// NewMonitor builds an idle monitor.
func NewMonitor(interval time.Duration, capacity int, joinTimeout time.Duration, sample Sampler) *Monitor {
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	if joinTimeout <= 0 {
		joinTimeout = time.Second
	}
	if sample == nil {
		sample = SampleProcess
	}
	return &Monitor{interval: interval, capacity: capacity, joinTimeout: joinTimeout, sample: sample}
}

// Start launches the sampling goroutine.
func (m *Monitor) Start() {
	m.stop = make(chan struct{})
	m.done = make(chan Usage, 1)
	go m.loop(m.stop, m.done)
}

// Stop ends sampling and returns the usage snapshot. It fails with
// services.ErrTimeout when the goroutine does not finish within the join
// timeout.
func (m *Monitor) Stop() (Usage, error) {
	if m.stop == nil {
		return Usage{}, nil
	}
	close(m.stop)
	m.stop = nil
	select {
	case usage := <-m.done:
		return usage, nil
	case <-time.After(m.joinTimeout):
		return Usage{}, services.Wrap(services.ErrTimeout, "benchmark", "monitor",
			fmt.Sprintf("resource monitor did not stop within %s", m.joinTimeout), nil)
	}
}

func (m *Monitor) loop(stop <-chan struct{}, done chan<- Usage) {
	cpu := newRing(m.capacity)
	mem := newRing(m.capacity)

	prev, prevErr := m.sample()
	prevAt := time.Now()
	take := func() {
		cur, err := m.sample()
		now := time.Now()
		if err != nil {
			return
		}
		mem.push(float64(cur.RSSBytes) / (1024 * 1024))
		if prevErr == nil {
			if wall := now.Sub(prevAt); wall > 0 {
				cpu.push(float64(cur.CPUTime-prev.CPUTime) / float64(wall) * 100)
			}
		}
		prev, prevErr, prevAt = cur, nil, now
	}

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			take()
		case <-stop:
			take()
			done <- summarize(cpu.snapshot(), mem.snapshot())
			return
		}
	}
}

func summarize(cpu, mem []float64) Usage {
	usage := Usage{Samples: len(mem)}
	usage.AvgCPUPercent, usage.PeakCPUPercent = meanMax(cpu)
	usage.AvgMemoryMB, usage.PeakMemoryMB = meanMax(mem)
	return usage
}

// SampleProcess reads CPU time for this process and its reaped children via
// getrusage, and resident memory from /proc/self/statm when available.
func SampleProcess() (ProcessSample, error) {
	var self, children unix.Rusage
	if err := unix.Getrusage(unix.RUSAGE_SELF, &self); err != nil {
		return ProcessSample{}, fmt.Errorf("benchmark: getrusage: %w", err)
	}
	if err := unix.Getrusage(unix.RUSAGE_CHILDREN, &children); err != nil {
		return ProcessSample{}, fmt.Errorf("benchmark: getrusage children: %w", err)
	}
	sample := ProcessSample{
		CPUTime: timevalDuration(self.Utime) + timevalDuration(self.Stime) +
			timevalDuration(children.Utime) + timevalDuration(children.Stime),
	}
	if rss, err := statmRSS("/proc/self/statm"); err == nil {
		sample.RSSBytes = rss
	} else if self.Maxrss > 0 {
		// Linux reports ru_maxrss in kilobytes.
		sample.RSSBytes = uint64(self.Maxrss) * 1024
	}
	return sample, nil
}

func timevalDuration(tv unix.Timeval) time.Duration {
	return time.Duration(tv.Nano())
}

func statmRSS(path string) (uint64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	fields := strings.Fields(string(data))
	if len(fields) < 2 {
		return 0, fmt.Errorf("benchmark: malformed %s", path)
	}
	pages, err := strconv.ParseUint(fields[1], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("benchmark: parse %s: %w", path, err)
	}
	return pages * uint64(unix.Getpagesize()), nil
}
