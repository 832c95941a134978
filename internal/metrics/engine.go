package metrics

import (
	"sync/atomic"
	"time"
)

// MetricID identifies a single counter slot in the engine.
type MetricID uint16

const (
	// MetricInitialize counts coordinator initializations (including re-initializations).
	MetricInitialize MetricID = iota
	// MetricSessionLoaded counts token pairs successfully loaded from storage.
	MetricSessionLoaded
	// MetricStoreFailure counts storage reads/writes that failed and degraded to logged-out.
	MetricStoreFailure
	// MetricTokenParseFailure counts access tokens that could not be parsed.
	MetricTokenParseFailure
	// MetricWarningFired counts edge-triggered timeout warning callbacks.
	MetricWarningFired
	// MetricSessionExpired counts terminal transitions caused by expiry.
	MetricSessionExpired
	// MetricAuthErrorSignal counts terminal transitions caused by an auth-error notification.
	MetricAuthErrorSignal
	// MetricRefreshObserved counts token-refreshed notifications consumed by the coordinator.
	MetricRefreshObserved
	// MetricExtendRequested counts explicit ExtendSession calls.
	MetricExtendRequested
	// MetricTeardown counts coordinator teardowns.
	MetricTeardown
	// MetricAPIRequest counts requests issued by the API client.
	MetricAPIRequest
	// MetricAPIFailure counts API requests that ended in a non-2xx response or transport error.
	MetricAPIFailure
	// MetricRefreshAttempt counts refresh round-trips started by the API client.
	MetricRefreshAttempt
	// MetricRefreshSuccess counts refresh round-trips that produced a new pair.
	MetricRefreshSuccess
	// MetricRefreshFailure counts refresh round-trips that ended the session.
	MetricRefreshFailure
	// MetricRefreshShared counts callers that joined an in-flight refresh instead of starting one.
	MetricRefreshShared
	// MetricGuardAllowed counts requests admitted by route guards.
	MetricGuardAllowed
	// MetricGuardUnauthenticated counts requests rejected for a missing or expired session.
	MetricGuardUnauthenticated
	// MetricGuardForbidden counts requests rejected for a missing capability.
	MetricGuardForbidden
	// MetricBusPublished counts events accepted by the notification bus.
	MetricBusPublished
	// MetricBusDropped counts events dropped by saturated subscriber buffers.
	MetricBusDropped
	// MetricSnapshotSaved counts pending form snapshots persisted.
	MetricSnapshotSaved
	// MetricSnapshotRestored counts pending form snapshots handed back to a screen.
	MetricSnapshotRestored
	// MetricRequestLatency tracks API request latency buckets when histograms are enabled.
	MetricRequestLatency
	metricIDCount
)

const (
	histBucketCount = 8
	cacheLineSize   = 64
)

type histogram struct {
	buckets [histBucketCount]uint64
}

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Config controls whether the engine records anything at all.
type Config struct {
	Enabled       bool
	EnableLatency bool
}

// Engine stores counters for the whole module. A nil *Engine is a valid
// no-op recorder.
type Engine struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	histograms    [metricIDCount]histogram
}

// Snapshot is a point-in-time copy of every counter and histogram.
type Snapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

func NewEngine(cfg Config) *Engine {
	return &Engine{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatency,
	}
}

func (e *Engine) Enabled() bool {
	return e != nil && e.enabled
}

func (e *Engine) LatencyEnabled() bool {
	return e != nil && e.enableLatency
}

func (e *Engine) Inc(id MetricID) {
	if e == nil || !e.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&e.counters[id].value, 1)
}

func (e *Engine) Add(id MetricID, n uint64) {
	if e == nil || !e.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&e.counters[id].value, n)
}

func (e *Engine) Observe(id MetricID, d time.Duration) {
	if e == nil || !e.enabled || !e.enableLatency || id >= metricIDCount {
		return
	}
	if id != MetricRequestLatency {
		return
	}

	b := bucketIndex(d)
	atomic.AddUint64(&e.histograms[id].buckets[b], 1)
}

func (e *Engine) Value(id MetricID) uint64 {
	if e == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&e.counters[id].value)
}

func (e *Engine) Snapshot() Snapshot {
	if e == nil || !e.enabled {
		return Snapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}

	s := Snapshot{
		Counters:   make(map[MetricID]uint64, int(metricIDCount)),
		Histograms: make(map[MetricID][]uint64, 1),
	}

	for id := MetricID(0); id < metricIDCount; id++ {
		s.Counters[id] = atomic.LoadUint64(&e.counters[id].value)
	}

	if e.enableLatency {
		buckets := make([]uint64, histBucketCount)
		for i := 0; i < histBucketCount; i++ {
			buckets[i] = atomic.LoadUint64(&e.histograms[MetricRequestLatency].buckets[i])
		}
		s.Histograms[MetricRequestLatency] = buckets
	}

	return s
}

// IDCount reports how many metric IDs are defined. Exporters iterate up to it.
func IDCount() int {
	return int(metricIDCount)
}

// BucketBounds returns the upper bounds (milliseconds) of the latency buckets;
// the last bucket is unbounded.
func BucketBounds() []int64 {
	return []int64{5, 10, 25, 50, 100, 250, 500}
}

func bucketIndex(d time.Duration) int {
	ms := d.Milliseconds()

	switch {
	case ms <= 5:
		return 0
	case ms <= 10:
		return 1
	case ms <= 25:
		return 2
	case ms <= 50:
		return 3
	case ms <= 100:
		return 4
	case ms <= 250:
		return 5
	case ms <= 500:
		return 6
	default:
		return 7
	}
}
