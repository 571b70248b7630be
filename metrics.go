package goSession

import (
	"sync/atomic"
	"time"
)

// MetricID identifies a Manager counter or histogram.
type MetricID uint16

const (
	// MetricLoginSuccess counts successful Login calls.
	MetricLoginSuccess MetricID = iota
	// MetricLoginFailure counts Login calls rejected by the backend or transport.
	MetricLoginFailure
	// MetricOperationInFlight counts Login/RefreshToken calls dropped because another was running.
	MetricOperationInFlight
	// MetricRefreshSuccess counts successful RefreshToken calls.
	MetricRefreshSuccess
	// MetricRefreshFailure counts RefreshToken calls that ended the session.
	MetricRefreshFailure
	// MetricRefreshNoToken counts RefreshToken calls made with no refresh token persisted.
	MetricRefreshNoToken
	// MetricLogout counts Logout calls that cleared a populated session.
	MetricLogout
	// MetricSessionExpired counts sessions cleared because they outlived the TTL.
	MetricSessionExpired
	// MetricSessionRestored counts sessions rehydrated from storage by Initialize.
	MetricSessionRestored
	// MetricStaleResultDiscarded counts in-flight results dropped because Logout won the race.
	MetricStaleResultDiscarded
	// MetricStorageFailure counts persistence mirror errors.
	MetricStorageFailure
	// MetricGuardAllow counts guard decisions that rendered guarded content.
	MetricGuardAllow
	// MetricGuardPending counts guard decisions deferred while loading.
	MetricGuardPending
	// MetricGuardRedirectLogin counts guard redirects to the login view.
	MetricGuardRedirectLogin
	// MetricGuardRedirectUnauthorized counts guard redirects to the unauthorized view.
	MetricGuardRedirectUnauthorized
	// MetricLoginLatency is the Login round-trip histogram.
	MetricLoginLatency
	// MetricRefreshLatency is the RefreshToken round-trip histogram.
	MetricRefreshLatency
	metricIDCount
)

const (
	histBucketCount = 8
	cacheLineSize   = 64
)

type metricHistogram struct {
	buckets [histBucketCount]uint64
}

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics holds lock-free counters and fixed-bucket latency histograms.
//
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	histograms    [metricIDCount]metricHistogram
}

// MetricsSnapshot is a point-in-time copy of all metrics.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

// NewMetrics creates a Metrics set honouring cfg.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

// Enabled reports whether counters are recorded.
func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

// LatencyEnabled reports whether latency histograms are recorded.
func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

// Inc increments a counter.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Observe records d in a latency histogram. Non-latency IDs are ignored.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enabled || !m.enableLatency || id >= metricIDCount {
		return
	}
	if !isLatencyMetric(id) {
		return
	}

	b := bucketIndex(d)
	atomic.AddUint64(&m.histograms[id].buckets[b], 1)
}

// Value returns the current value of a counter.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot copies every counter and, when enabled, every latency histogram.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil || !m.enabled {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}

	s := MetricsSnapshot{
		Counters:   make(map[MetricID]uint64, int(metricIDCount)),
		Histograms: make(map[MetricID][]uint64, 2),
	}

	for id := MetricID(0); id < metricIDCount; id++ {
		if isLatencyMetric(id) {
			continue
		}
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}

	if m.enableLatency {
		for _, id := range []MetricID{MetricLoginLatency, MetricRefreshLatency} {
			buckets := make([]uint64, histBucketCount)
			for i := 0; i < histBucketCount; i++ {
				buckets[i] = atomic.LoadUint64(&m.histograms[id].buckets[i])
			}
			s.Histograms[id] = buckets
		}
	}

	return s
}

func isLatencyMetric(id MetricID) bool {
	return id == MetricLoginLatency || id == MetricRefreshLatency
}

// Network round-trips, so the buckets are coarser than an in-process hot path would use.
func bucketIndex(d time.Duration) int {
	ms := d.Milliseconds()

	switch {
	case ms <= 25:
		return 0
	case ms <= 50:
		return 1
	case ms <= 100:
		return 2
	case ms <= 250:
		return 3
	case ms <= 500:
		return 4
	case ms <= 1000:
		return 5
	case ms <= 2500:
		return 6
	default:
		return 7
	}
}
