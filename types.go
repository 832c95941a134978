package backoffice

import (
	"io"
	"time"

	internalaudit "github.com/lendkit/backoffice/internal/audit"
	internalevents "github.com/lendkit/backoffice/internal/events"
	internalmetrics "github.com/lendkit/backoffice/internal/metrics"
	"github.com/lendkit/backoffice/store"
	"github.com/lendkit/backoffice/token"
)

// SessionState is the coordinator's position in the session lifecycle.
//
//	Docs: docs/session.md
type SessionState uint8

const (
	// StateUnauthenticated is an exported constant or variable used by the session coordinator.
	StateUnauthenticated SessionState = iota
	// StateAuthenticated is an exported constant or variable used by the session coordinator.
	StateAuthenticated
	// StateWarning is an exported constant or variable used by the session coordinator.
	StateWarning
)

// String describes the string operation and its observable behavior.
//
// String may return an error when input validation, dependency calls, or security checks fail.
// String does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s SessionState) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAuthenticated:
		return "authenticated"
	case StateWarning:
		return "warning"
	default:
		return "unknown"
	}
}

// EndReason explains a terminal transition to [StateUnauthenticated],
// delivered to OnSessionEnded callbacks.
type EndReason uint8

const (
	// EndReasonExpired is an exported constant or variable used by the session coordinator.
	EndReasonExpired EndReason = iota
	// EndReasonAuthError is an exported constant or variable used by the session coordinator.
	EndReasonAuthError
	// EndReasonLoggedOut is an exported constant or variable used by the session coordinator.
	EndReasonLoggedOut
	// EndReasonStoreFailure is an exported constant or variable used by the session coordinator.
	EndReasonStoreFailure
	// EndReasonTokenInvalid is an exported constant or variable used by the session coordinator.
	EndReasonTokenInvalid
)

// String describes the string operation and its observable behavior.
//
// String may return an error when input validation, dependency calls, or security checks fail.
// String does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (r EndReason) String() string {
	switch r {
	case EndReasonExpired:
		return "expired"
	case EndReasonAuthError:
		return "auth-error"
	case EndReasonLoggedOut:
		return "logged-out"
	case EndReasonStoreFailure:
		return "store-failure"
	case EndReasonTokenInvalid:
		return "token-invalid"
	default:
		return "unknown"
	}
}

// Session is the one active operator session. Owned exclusively by the
// [Coordinator]; accessors hand out copies, and every other component
// observes changes only through bus events.
//
//	Docs: docs/session.md
type Session struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	Claims       token.AccessClaims
}

// TimeoutWarningState is the derived warning position: recomputed on each
// tick from the session expiry, never persisted.
type TimeoutWarningState struct {
	Active    bool
	Remaining time.Duration
}

// Subscription is a handle to a registered coordinator callback. Cancel
// unregisters; it takes effect for evaluations after it returns.
type Subscription struct {
	cancel func()
}

// Cancel describes the cancel operation and its observable behavior.
//
// Cancel may return an error when input validation, dependency calls, or security checks fail.
// Cancel does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s Subscription) Cancel() {
	if s.cancel != nil {
		s.cancel()
	}
}

// LifecycleReport is a read-only snapshot of coordinator activity for ops
// surfaces, returned by [Coordinator.LifecycleReport]. Counts are kept
// independently of the metrics engine, so the report works with metrics
// disabled.
type LifecycleReport struct {
	Initializations   uint64
	WarningsFired     uint64
	SessionsEnded     uint64
	RefreshesObserved uint64
	ExtendsRequested  uint64
	BusDropped        uint64
	JournalDropped    uint64
	State             SessionState
	TornDown          bool
}

// TokenPair is the storage unit for the access/refresh token pair.
//
//	Docs: docs/store.md
type TokenPair = store.TokenPair

// PendingFormSnapshot is an opaque form-state bag saved before a forced
// logout so data entry is not lost.
//
//	Docs: docs/store.md
type PendingFormSnapshot = store.PendingFormSnapshot

// ActionRecord is a structured operator action journal record.
//
//	Docs: docs/journal.md
type ActionRecord = internalaudit.Record

// AuditSink receives [ActionRecord] values from the coordinator's journal
// dispatcher.
//
//	Docs: docs/journal.md
type AuditSink = internalaudit.Sink

// NoOpSink is an [AuditSink] that silently discards all records.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink is a buffered channel-based [AuditSink].
//
//	Docs: docs/journal.md
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink is an [AuditSink] that writes JSON-encoded records to an
// [io.Writer].
//
//	Docs: docs/journal.md
type JSONWriterSink = internalaudit.JSONWriterSink

// NewChannelSink creates a [ChannelSink] with the given buffer capacity.
//
//	Docs: docs/journal.md
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink creates a [JSONWriterSink] that writes to w.
//
//	Docs: docs/journal.md
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}

// Topic names a bus event stream.
//
//	Docs: docs/events.md
type Topic = internalevents.Topic

// Event is a single bus notification.
//
//	Docs: docs/events.md
type Event = internalevents.Event

// Bus is the in-process notification fabric shared by the coordinator and
// the API client.
//
//	Docs: docs/events.md
type Bus = internalevents.Bus

// BusSubscription is a live subscription to bus topics.
//
//	Docs: docs/events.md
type BusSubscription = internalevents.Subscription

const (
	// TopicTokenRefreshed is an exported constant or variable used by the session coordinator.
	TopicTokenRefreshed = internalevents.TopicTokenRefreshed
	// TopicAuthError is an exported constant or variable used by the session coordinator.
	TopicAuthError = internalevents.TopicAuthError
	// TopicSessionExpired is an exported constant or variable used by the session coordinator.
	TopicSessionExpired = internalevents.TopicSessionExpired
	// TopicTimeoutWarning is an exported constant or variable used by the session coordinator.
	TopicTimeoutWarning = internalevents.TopicTimeoutWarning
	// TopicSnapshotSaved is an exported constant or variable used by the session coordinator.
	TopicSnapshotSaved = internalevents.TopicSnapshotSaved
)

// NewBus creates a [Bus] from the root [BusConfig]. Use one bus per
// console process and hand it to both the coordinator builder and the API
// client so refresh notifications cross component boundaries.
//
//	Docs: docs/events.md
func NewBus(cfg BusConfig) *Bus {
	return internalevents.NewBus(internalevents.Config{
		SubscriberBuffer: cfg.SubscriberBuffer,
		BacklogLimit:     cfg.BacklogLimit,
		DedupeWindow:     cfg.DedupeWindow,
	})
}

// NewEvent creates a bus [Event] with a fresh UUID and the current time.
func NewEvent(topic Topic, payload any) Event {
	return internalevents.New(topic, payload)
}

// MetricID identifies a specific counter or histogram in the in-process
// metrics system.
//
//	Docs: docs/metrics.md
type MetricID = internalmetrics.MetricID

const (
	// MetricInitialize is an exported constant or variable used by the session coordinator.
	MetricInitialize = MetricID(internalmetrics.MetricInitialize)
	// MetricSessionLoaded is an exported constant or variable used by the session coordinator.
	MetricSessionLoaded = MetricID(internalmetrics.MetricSessionLoaded)
	// MetricStoreFailure is an exported constant or variable used by the session coordinator.
	MetricStoreFailure = MetricID(internalmetrics.MetricStoreFailure)
	// MetricTokenParseFailure is an exported constant or variable used by the session coordinator.
	MetricTokenParseFailure = MetricID(internalmetrics.MetricTokenParseFailure)
	// MetricWarningFired is an exported constant or variable used by the session coordinator.
	MetricWarningFired = MetricID(internalmetrics.MetricWarningFired)
	// MetricSessionExpired is an exported constant or variable used by the session coordinator.
	MetricSessionExpired = MetricID(internalmetrics.MetricSessionExpired)
	// MetricAuthErrorSignal is an exported constant or variable used by the session coordinator.
	MetricAuthErrorSignal = MetricID(internalmetrics.MetricAuthErrorSignal)
	// MetricRefreshObserved is an exported constant or variable used by the session coordinator.
	MetricRefreshObserved = MetricID(internalmetrics.MetricRefreshObserved)
	// MetricExtendRequested is an exported constant or variable used by the session coordinator.
	MetricExtendRequested = MetricID(internalmetrics.MetricExtendRequested)
	// MetricTeardown is an exported constant or variable used by the session coordinator.
	MetricTeardown = MetricID(internalmetrics.MetricTeardown)
	// MetricAPIRequest is an exported constant or variable used by the session coordinator.
	MetricAPIRequest = MetricID(internalmetrics.MetricAPIRequest)
	// MetricAPIFailure is an exported constant or variable used by the session coordinator.
	MetricAPIFailure = MetricID(internalmetrics.MetricAPIFailure)
	// MetricRefreshAttempt is an exported constant or variable used by the session coordinator.
	MetricRefreshAttempt = MetricID(internalmetrics.MetricRefreshAttempt)
	// MetricRefreshSuccess is an exported constant or variable used by the session coordinator.
	MetricRefreshSuccess = MetricID(internalmetrics.MetricRefreshSuccess)
	// MetricRefreshFailure is an exported constant or variable used by the session coordinator.
	MetricRefreshFailure = MetricID(internalmetrics.MetricRefreshFailure)
	// MetricRefreshShared is an exported constant or variable used by the session coordinator.
	MetricRefreshShared = MetricID(internalmetrics.MetricRefreshShared)
	// MetricGuardAllowed is an exported constant or variable used by the session coordinator.
	MetricGuardAllowed = MetricID(internalmetrics.MetricGuardAllowed)
	// MetricGuardUnauthenticated is an exported constant or variable used by the session coordinator.
	MetricGuardUnauthenticated = MetricID(internalmetrics.MetricGuardUnauthenticated)
	// MetricGuardForbidden is an exported constant or variable used by the session coordinator.
	MetricGuardForbidden = MetricID(internalmetrics.MetricGuardForbidden)
	// MetricBusPublished is an exported constant or variable used by the session coordinator.
	MetricBusPublished = MetricID(internalmetrics.MetricBusPublished)
	// MetricBusDropped is an exported constant or variable used by the session coordinator.
	MetricBusDropped = MetricID(internalmetrics.MetricBusDropped)
	// MetricSnapshotSaved is an exported constant or variable used by the session coordinator.
	MetricSnapshotSaved = MetricID(internalmetrics.MetricSnapshotSaved)
	// MetricSnapshotRestored is an exported constant or variable used by the session coordinator.
	MetricSnapshotRestored = MetricID(internalmetrics.MetricSnapshotRestored)
	// MetricRequestLatency is an exported constant or variable used by the session coordinator.
	MetricRequestLatency = MetricID(internalmetrics.MetricRequestLatency)
)

// Metrics holds atomic counters and optional latency histograms.
//
//	Docs: docs/metrics.md
type Metrics = internalmetrics.Engine

// MetricsSnapshot is a point-in-time deep copy of all metrics.
//
//	Docs: docs/metrics.md
type MetricsSnapshot = internalmetrics.Snapshot

// NewMetrics creates a [Metrics] engine configured by the given
// [MetricsConfig]. When Enabled is false, all operations are no-ops.
//
//	Docs: docs/metrics.md
func NewMetrics(cfg MetricsConfig) *Metrics {
	return internalmetrics.NewEngine(internalmetrics.Config{
		Enabled:       cfg.Enabled,
		EnableLatency: cfg.EnableLatencyHistograms,
	})
}
