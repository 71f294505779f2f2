package metrics

import "sync/atomic"

// Counter is a monotonically increasing event count.
type Counter struct {
	name string
	n    atomic.Int64
}

func newCounter(name string) *Counter {
	return &Counter{name: name}
}

// Inc adds one.
func (c *Counter) Inc() { c.Add(1) }

// Add adds delta.
func (c *Counter) Add(delta int64) {
	if !Enabled() {
		return
	}
	c.n.Add(delta)
}

// Name returns the counter name.
func (c *Counter) Name() string { return c.name }

// Value returns the current count.
func (c *Counter) Value() int64 { return c.n.Load() }

// Reset sets the count to zero.
func (c *Counter) Reset() { c.n.Store(0) }

var (
	// TreeRebuilds counts containers rebuilt because the tree no longer
	// matched the document after a delivery.
	TreeRebuilds = newCounter("tree_rebuilds")
	// SearchFallbacks counts incremental search repairs abandoned for a
	// full rescan.
	SearchFallbacks = newCounter("search_fallbacks")
	// RemoteOps counts ops received from a remote feed.
	RemoteOps = newCounter("remote_ops")
	// Reloads counts document reloads triggered by the file watcher.
	Reloads = newCounter("reloads")
)

// AllCounters returns all registered counters.
func AllCounters() []*Counter {
	return []*Counter{TreeRebuilds, SearchFallbacks, RemoteOps, Reloads}
}

// Snapshot returns counter values keyed by name.
func Snapshot() map[string]int64 {
	out := make(map[string]int64)
	for _, c := range AllCounters() {
		out[c.Name()] = c.Value()
	}
	return out
}
