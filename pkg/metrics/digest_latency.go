// Package metrics tracks request and completion latencies in process.
package metrics

import (
	"sort"
	"sync"
	"time"
)

const defaultWindow = 1000

// LatencyTracker keeps a sliding window of samples for percentile reporting.
type LatencyTracker struct {
	mu      sync.Mutex
	samples []time.Duration
	window  int
	total   int64
}

func NewLatencyTracker(window int) *LatencyTracker {
	if window <= 0 {
		window = defaultWindow
	}
	return &LatencyTracker{
		samples: make([]time.Duration, 0, window),
		window:  window,
	}
}

func (t *LatencyTracker) Record(d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.samples) >= t.window {
		// Drop the oldest tenth at once to avoid shifting on every record.
		drop := t.window / 10
		if drop < 1 {
			drop = 1
		}
		t.samples = append(t.samples[:0], t.samples[drop:]...)
	}
	t.samples = append(t.samples, d)
	t.total++
}

// Stats computes percentiles over the current window.
func (t *LatencyTracker) Stats() LatencyStats {
	t.mu.Lock()
	sorted := make([]time.Duration, len(t.samples))
	copy(sorted, t.samples)
	total := t.total
	t.mu.Unlock()

	if len(sorted) == 0 {
		return LatencyStats{Count: total}
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var sum time.Duration
	for _, d := range sorted {
		sum += d
	}
	n := len(sorted)
	return LatencyStats{
		Count:   total,
		Samples: n,
		Min:     sorted[0],
		Max:     sorted[n-1],
		Avg:     sum / time.Duration(n),
		P50:     percentile(sorted, 0.50),
		P95:     percentile(sorted, 0.95),
		P99:     percentile(sorted, 0.99),
	}
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	return sorted[int(float64(len(sorted)-1)*p)]
}

type LatencyStats struct {
	Count   int64
	Samples int
	Min     time.Duration
	Max     time.Duration
	Avg     time.Duration
	P50     time.Duration
	P95     time.Duration
	P99     time.Duration
}

// ToMap renders durations as fractional milliseconds.
func (s LatencyStats) ToMap() map[string]any {
	ms := func(d time.Duration) float64 { return float64(d.Microseconds()) / 1000 }
	return map[string]any{
		"count":   s.Count,
		"samples": s.Samples,
		"min_ms":  ms(s.Min),
		"max_ms":  ms(s.Max),
		"avg_ms":  ms(s.Avg),
		"p50_ms":  ms(s.P50),
		"p95_ms":  ms(s.P95),
		"p99_ms":  ms(s.P99),
	}
}

// LatencyRegistry holds one tracker per named operation.
type LatencyRegistry struct {
	mu       sync.RWMutex
	trackers map[string]*LatencyTracker
	window   int
}

func NewLatencyRegistry(window int) *LatencyRegistry {
	return &LatencyRegistry{
		trackers: make(map[string]*LatencyTracker),
		window:   window,
	}
}

func (r *LatencyRegistry) Record(name string, d time.Duration) {
	r.mu.RLock()
	tracker, ok := r.trackers[name]
	r.mu.RUnlock()

	if !ok {
		r.mu.Lock()
		if tracker, ok = r.trackers[name]; !ok {
			tracker = NewLatencyTracker(r.window)
			r.trackers[name] = tracker
		}
		r.mu.Unlock()
	}
	tracker.Record(d)
}

func (r *LatencyRegistry) Snapshot() map[string]map[string]any {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]map[string]any, len(r.trackers))
	for name, tracker := range r.trackers {
		out[name] = tracker.Stats().ToMap()
	}
	return out
}

var (
	global     *LatencyRegistry
	globalOnce sync.Once
)

// Global returns the process-wide registry.
func Global() *LatencyRegistry {
	globalOnce.Do(func() {
		global = NewLatencyRegistry(defaultWindow)
	})
	return global
}

func RecordLatency(name string, d time.Duration) {
	Global().Record(name, d)
}
