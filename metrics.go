package flashauth

import "sync/atomic"

// MetricID identifies an in-process counter.
type MetricID int

const (
	// MetricSignInSuccess counts successful sign-ins.
	MetricSignInSuccess MetricID = iota
	// MetricSignInFailure counts rejected sign-ins of any kind.
	MetricSignInFailure
	// MetricSignUpSuccess counts created accounts.
	MetricSignUpSuccess
	// MetricRotateSuccess counts successful refresh rotations.
	MetricRotateSuccess
	// MetricRotateFailure counts rejected rotations other than replays.
	MetricRotateFailure
	// MetricReplayDetected counts refresh-token reuse detections.
	MetricReplayDetected
	// MetricEmailVerified counts completed email verifications.
	MetricEmailVerified
	// MetricCacheHit counts principal resolutions served from cache.
	MetricCacheHit
	// MetricCacheMiss counts principal resolutions that fell back to the
	// directory.
	MetricCacheMiss

	metricIDCount
)

// Metrics holds atomic counters. All operations are no-ops on a nil
// receiver or when disabled.
type Metrics struct {
	enabled  bool
	counters [metricIDCount]atomic.Uint64
}

// NewMetrics creates a Metrics instance per cfg.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{enabled: cfg.Enabled}
}

// Inc increments a counter.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id < 0 || id >= metricIDCount {
		return
	}
	m.counters[id].Add(1)
}

// MetricsSnapshot is a point-in-time copy of all counters.
type MetricsSnapshot struct {
	Counters map[MetricID]uint64
}

// Snapshot deep-copies the counters.
func (m *Metrics) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{Counters: map[MetricID]uint64{}}
	if m == nil || !m.enabled {
		return snap
	}
	for id := MetricID(0); id < metricIDCount; id++ {
		snap.Counters[id] = m.counters[id].Load()
	}
	return snap
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}
