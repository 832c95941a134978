package internaldefs

import (
	backoffice "github.com/lendkit/backoffice"
)

// CounterDef defines a public type used by backoffice APIs.
//
// CounterDef instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type CounterDef struct {
	ID   backoffice.MetricID
	Name string
	Help string
}

// HistogramDef defines a public type used by backoffice APIs.
//
// HistogramDef instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type HistogramDef struct {
	ID   backoffice.MetricID
	Name string
	Help string
}

// CounterDefs is an exported constant or variable used by the session coordinator.
var CounterDefs = []CounterDef{
	{ID: backoffice.MetricInitialize, Name: "backoffice_initialize_total", Help: "Coordinator initializations, including re-initializations."},
	{ID: backoffice.MetricSessionLoaded, Name: "backoffice_session_loaded_total", Help: "Token pairs loaded from storage."},
	{ID: backoffice.MetricStoreFailure, Name: "backoffice_store_failure_total", Help: "Storage operations that failed and degraded to logged-out."},
	{ID: backoffice.MetricTokenParseFailure, Name: "backoffice_token_parse_failure_total", Help: "Access tokens that could not be parsed."},
	{ID: backoffice.MetricWarningFired, Name: "backoffice_warning_fired_total", Help: "Timeout warning callbacks fired."},
	{ID: backoffice.MetricSessionExpired, Name: "backoffice_session_expired_total", Help: "Sessions ended by expiry."},
	{ID: backoffice.MetricAuthErrorSignal, Name: "backoffice_auth_error_total", Help: "Sessions ended by an auth-error notification."},
	{ID: backoffice.MetricRefreshObserved, Name: "backoffice_refresh_observed_total", Help: "Token-refreshed notifications consumed by the coordinator."},
	{ID: backoffice.MetricExtendRequested, Name: "backoffice_extend_requested_total", Help: "Explicit session extensions."},
	{ID: backoffice.MetricTeardown, Name: "backoffice_teardown_total", Help: "Coordinator teardowns."},
	{ID: backoffice.MetricAPIRequest, Name: "backoffice_api_request_total", Help: "API requests issued."},
	{ID: backoffice.MetricAPIFailure, Name: "backoffice_api_failure_total", Help: "API requests that failed with a transport error or non-2xx status."},
	{ID: backoffice.MetricRefreshAttempt, Name: "backoffice_refresh_attempt_total", Help: "Refresh round-trips started."},
	{ID: backoffice.MetricRefreshSuccess, Name: "backoffice_refresh_success_total", Help: "Refresh round-trips that produced a new token pair."},
	{ID: backoffice.MetricRefreshFailure, Name: "backoffice_refresh_failure_total", Help: "Refresh round-trips that ended the session."},
	{ID: backoffice.MetricRefreshShared, Name: "backoffice_refresh_shared_total", Help: "Callers that joined an in-flight refresh."},
	{ID: backoffice.MetricGuardAllowed, Name: "backoffice_guard_allowed_total", Help: "Requests admitted by route guards."},
	{ID: backoffice.MetricGuardUnauthenticated, Name: "backoffice_guard_unauthenticated_total", Help: "Requests rejected for a missing or expired session."},
	{ID: backoffice.MetricGuardForbidden, Name: "backoffice_guard_forbidden_total", Help: "Requests rejected for a missing capability."},
	{ID: backoffice.MetricBusPublished, Name: "backoffice_bus_published_total", Help: "Events accepted by the notification bus."},
	{ID: backoffice.MetricBusDropped, Name: "backoffice_bus_dropped_total", Help: "Events dropped by saturated subscriber buffers."},
	{ID: backoffice.MetricSnapshotSaved, Name: "backoffice_snapshot_saved_total", Help: "Pending form snapshots persisted."},
	{ID: backoffice.MetricSnapshotRestored, Name: "backoffice_snapshot_restored_total", Help: "Pending form snapshots handed back to a screen."},
}

// HistogramDefs is an exported constant or variable used by the session coordinator.
var HistogramDefs = []HistogramDef{
	{ID: backoffice.MetricRequestLatency, Name: "backoffice_request_latency_seconds", Help: "API request latency histogram."},
}

// HistogramBounds is an exported constant or variable used by the session coordinator.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix is an exported constant or variable used by the session coordinator.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets describes the normalizebuckets operation and its observable behavior.
//
// NormalizeBuckets may return an error when input validation, dependency calls, or security checks fail.
// NormalizeBuckets does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets describes the cumulativebuckets operation and its observable behavior.
//
// CumulativeBuckets may return an error when input validation, dependency calls, or security checks fail.
// CumulativeBuckets does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
