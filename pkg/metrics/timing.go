// Package metrics records how long the tree and search hot paths take and
// how often their slow fallbacks fire.
//
// Collection is on unless MT_METRICS=0. `mt --metrics` prints a snapshot
// when the command exits.
//
//	defer metrics.Timer(metrics.TreePatch)()
package metrics

import (
	"os"
	"sync/atomic"
	"time"
)

var enabled atomic.Bool

func init() {
	enabled.Store(os.Getenv("MT_METRICS") != "0")
}

// Enabled reports whether measurements are kept.
func Enabled() bool { return enabled.Load() }

// SetEnabled turns collection on or off for every metric.
func SetEnabled(e bool) { enabled.Store(e) }

// TimingMetric aggregates durations of one operation. Safe for concurrent
// use.
type TimingMetric struct {
	name  string
	count atomic.Int64
	total atomic.Int64
	max   atomic.Int64
	min   atomic.Int64 // 0 until the first sample
	last  atomic.Int64
}

var timings []*TimingMetric

func newTimingMetric(name string) *TimingMetric {
	m := &TimingMetric{name: name}
	timings = append(timings, m)
	return m
}

// Record adds one sample.
func (m *TimingMetric) Record(d time.Duration) {
	if !Enabled() {
		return
	}
	ns := d.Nanoseconds()
	m.count.Add(1)
	m.total.Add(ns)
	m.last.Store(ns)
	for old := m.max.Load(); ns > old; old = m.max.Load() {
		if m.max.CompareAndSwap(old, ns) {
			break
		}
	}
	for old := m.min.Load(); old == 0 || ns < old; old = m.min.Load() {
		if m.min.CompareAndSwap(old, ns) {
			break
		}
	}
}

func (m *TimingMetric) Name() string { return m.name }
func (m *TimingMetric) Count() int64 { return m.count.Load() }
func (m *TimingMetric) MaxNs() int64 { return m.max.Load() }
func (m *TimingMetric) MinNs() int64 { return m.min.Load() }

// AvgNs is 0 before the first sample.
func (m *TimingMetric) AvgNs() int64 {
	n := m.count.Load()
	if n == 0 {
		return 0
	}
	return m.total.Load() / n
}

// TimingStats is a point-in-time copy of a TimingMetric in milliseconds.
type TimingStats struct {
	Name    string  `json:"name"`
	Count   int64   `json:"count"`
	TotalMs float64 `json:"total_ms"`
	AvgMs   float64 `json:"avg_ms"`
	MaxMs   float64 `json:"max_ms"`
	MinMs   float64 `json:"min_ms,omitempty"`
	LastMs  float64 `json:"last_ms"`
}

func ms(ns int64) float64 { return float64(ns) / float64(time.Millisecond) }

// Stats copies the current aggregates.
func (m *TimingMetric) Stats() TimingStats {
	return TimingStats{
		Name:    m.name,
		Count:   m.count.Load(),
		TotalMs: ms(m.total.Load()),
		AvgMs:   ms(m.AvgNs()),
		MaxMs:   ms(m.max.Load()),
		MinMs:   ms(m.min.Load()),
		LastMs:  ms(m.last.Load()),
	}
}

// Reset drops all samples.
func (m *TimingMetric) Reset() {
	m.count.Store(0)
	m.total.Store(0)
	m.max.Store(0)
	m.min.Store(0)
	m.last.Store(0)
}

// Timer starts measuring and returns the func that records the sample.
func Timer(m *TimingMetric) func() {
	return TimerWithCallback(m, nil)
}

// TimerWithCallback is Timer that also passes the duration to cb, for
// callers that log slow operations.
func TimerWithCallback(m *TimingMetric, cb func(time.Duration)) func() {
	if m == nil || !Enabled() {
		return func() {}
	}
	start := time.Now()
	return func() {
		d := time.Since(start)
		m.Record(d)
		if cb != nil {
			cb(d)
		}
	}
}

var (
	TreeBuild    = newTimingMetric("tree_build")
	TreePatch    = newTimingMetric("tree_patch")
	SearchFull   = newTimingMetric("search_full")
	SearchRepair = newTimingMetric("search_repair")
	DocumentLoad = newTimingMetric("document_load")
	UIRender     = newTimingMetric("ui_render")
)

// AllTimingMetrics returns every timing metric in declaration order.
func AllTimingMetrics() []*TimingMetric {
	return append([]*TimingMetric(nil), timings...)
}

// AllTimingStats returns stats for the metrics that have samples.
func AllTimingStats() []TimingStats {
	var out []TimingStats
	for _, m := range timings {
		if m.Count() > 0 {
			out = append(out, m.Stats())
		}
	}
	return out
}

// ResetAll clears every timing metric and counter.
func ResetAll() {
	for _, m := range timings {
		m.Reset()
	}
	for _, c := range AllCounters() {
		c.Reset()
	}
}
