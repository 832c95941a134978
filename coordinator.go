package backoffice

import (
	"context"
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"time"

	internalaudit "github.com/lendkit/backoffice/internal/audit"
	internalevents "github.com/lendkit/backoffice/internal/events"
	internalmetrics "github.com/lendkit/backoffice/internal/metrics"
	"github.com/lendkit/backoffice/store"
	"github.com/lendkit/backoffice/token"
)

// Journal action names for coordinator lifecycle records.
const (
	actionInitialize       = "session.initialize"
	actionExtend           = "session.extend"
	actionRefreshObserved  = "session.refresh-observed"
	actionWarning          = "session.warning"
	actionEnded            = "session.ended"
	actionTeardown         = "session.teardown"
	actionSnapshotSaved    = "form.snapshot-saved"
	actionSnapshotRestored = "form.snapshot-restored"
)

// Coordinator is the single source of truth for "is the operator
// authenticated, and for how much longer". It loads the persisted token
// pair, rechecks expiry on a fixed cadence, raises edge-triggered timeout
// warnings, and flips to a terminal logged-out state exactly once per
// session end.
//
// All state transitions and callback invocations happen on one run-loop
// goroutine, so no callback ever runs concurrently with another.
// Synchronous accessors read a guarded snapshot the loop maintains.
//
//	Docs: docs/session.md
type Coordinator struct {
	config   Config
	store    store.TokenStore
	snaps    store.SnapshotStore
	bus      *internalevents.Bus
	busOwned bool
	parser   *token.Parser
	metrics  *internalmetrics.Engine
	journal  *internalaudit.Dispatcher

	// Injected for deterministic lifecycle tests.
	now       func() time.Time
	newTicker func(time.Duration) ticker

	// lifecycleMu serializes Initialize and Teardown end to end; mu guards
	// the snapshot and subscription maps. Lock order: lifecycleMu, then mu.
	lifecycleMu sync.Mutex

	mu       sync.Mutex
	loop     *sessionLoop
	snapshot stateSnapshot
	tornDown bool
	subID    uint64
	warnSubs map[uint64]*warningSub
	endSubs  map[uint64]*endSub

	counters lifecycleCounters
}

// stateSnapshot is what the accessors read. State is always re-derived
// from the session and the clock, so an expired-but-not-yet-ticked session
// never reports authenticated.
type stateSnapshot struct {
	session    Session
	hasSession bool
}

type warningSub struct {
	threshold time.Duration
	fn        func(remaining time.Duration)

	// fired is the one bit of hysteresis: set when the crossing callback
	// ran, cleared when remaining rises back above the threshold. Owned by
	// the run loop.
	fired bool
}

type endSub struct {
	fn func(reason EndReason)
}

type lifecycleCounters struct {
	initializations atomic.Uint64
	warningsFired   atomic.Uint64
	sessionsEnded   atomic.Uint64
	refreshes       atomic.Uint64
	extends         atomic.Uint64
}

/*
====================================
SYNCHRONOUS ACCESSORS
====================================
*/

// AccessToken describes the accesstoken operation and its observable behavior.
//
// AccessToken may return an error when input validation, dependency calls, or security checks fail.
// AccessToken does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *Coordinator) AccessToken() (string, bool) {
	if c == nil {
		return "", false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.liveLocked(c.now()) {
		return "", false
	}
	return c.snapshot.session.AccessToken, true
}

// IsAuthenticated reports whether an access token is present and not yet
// expired. Pure read; never triggers evaluation or callbacks.
func (c *Coordinator) IsAuthenticated() bool {
	if c == nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.liveLocked(c.now())
}

// State describes the state operation and its observable behavior.
//
// State may return an error when input validation, dependency calls, or security checks fail.
// State does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *Coordinator) State() SessionState {
	if c == nil {
		return StateUnauthenticated
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	state, _ := c.deriveLocked(c.now())
	return state
}

// Warning describes the warning operation and its observable behavior.
//
// Warning may return an error when input validation, dependency calls, or security checks fail.
// Warning does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *Coordinator) Warning() TimeoutWarningState {
	if c == nil {
		return TimeoutWarningState{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	_, warning := c.deriveLocked(c.now())
	return warning
}

// Identity returns the claims of the live session's access token.
func (c *Coordinator) Identity() (token.AccessClaims, bool) {
	if c == nil {
		return token.AccessClaims{}, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.liveLocked(c.now()) {
		return token.AccessClaims{}, false
	}
	return c.snapshot.session.Claims, true
}

// CurrentSession returns a copy of the live [Session], for header surfaces
// that render "signed in as X until T".
func (c *Coordinator) CurrentSession() (Session, bool) {
	if c == nil {
		return Session{}, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.liveLocked(c.now()) {
		return Session{}, false
	}
	return c.snapshot.session, true
}

func (c *Coordinator) liveLocked(now time.Time) bool {
	return c.snapshot.hasSession && c.snapshot.session.ExpiresAt.After(now)
}

func (c *Coordinator) deriveLocked(now time.Time) (SessionState, TimeoutWarningState) {
	if !c.snapshot.hasSession {
		return StateUnauthenticated, TimeoutWarningState{}
	}
	remaining := c.snapshot.session.ExpiresAt.Sub(now)
	if remaining <= 0 {
		return StateUnauthenticated, TimeoutWarningState{}
	}
	if remaining <= c.stateThresholdLocked() {
		return StateWarning, TimeoutWarningState{Active: true, Remaining: remaining}
	}
	return StateAuthenticated, TimeoutWarningState{}
}

// stateThresholdLocked is the threshold driving the Warning state: the
// configured default, widened by any callback registered with a larger one.
func (c *Coordinator) stateThresholdLocked() time.Duration {
	th := c.config.Session.DefaultWarningThreshold
	for _, s := range c.warnSubs {
		if s.threshold > th {
			th = s.threshold
		}
	}
	return th
}

/*
====================================
CALLBACK REGISTRATION
====================================
*/

// OnTimeoutWarning registers fn to run when remaining session time crosses
// below threshold. Edge-triggered: at most one invocation per crossing;
// the hysteresis bit resets once remaining rises back above the threshold
// (after an extend or refresh), so a later crossing fires again. A
// non-positive threshold falls back to the configured default.
//
// Registrations survive re-initialization. Cancel takes effect for
// evaluations after it returns.
//
// fn runs on the coordinator's timer goroutine. Hand long work or
// synchronous lifecycle calls (ExtendSession and friends) off to another
// goroutine.
//
//	Docs: docs/session.md
func (c *Coordinator) OnTimeoutWarning(threshold time.Duration, fn func(remaining time.Duration)) Subscription {
	if c == nil || fn == nil {
		return Subscription{}
	}
	if threshold <= 0 {
		threshold = c.config.Session.DefaultWarningThreshold
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.tornDown {
		return Subscription{}
	}
	c.subID++
	id := c.subID
	c.warnSubs[id] = &warningSub{threshold: threshold, fn: fn}
	return Subscription{cancel: func() {
		c.mu.Lock()
		delete(c.warnSubs, id)
		c.mu.Unlock()
	}}
}

// OnSessionEnded registers fn to run when the session reaches the terminal
// logged-out state; fn receives the [EndReason]. Invoked exactly once per
// terminal transition, never after Teardown returns.
//
//	Docs: docs/session.md
func (c *Coordinator) OnSessionEnded(fn func(reason EndReason)) Subscription {
	if c == nil || fn == nil {
		return Subscription{}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.tornDown {
		return Subscription{}
	}
	c.subID++
	id := c.subID
	c.endSubs[id] = &endSub{fn: fn}
	return Subscription{cancel: func() {
		c.mu.Lock()
		delete(c.endSubs, id)
		c.mu.Unlock()
	}}
}

/*
====================================
DIAGNOSTICS
====================================
*/

// Bus returns the notification bus the coordinator listens on. Hand it to
// whatever performs token refreshes so their signals reach the timer.
func (c *Coordinator) Bus() *Bus {
	if c == nil {
		return nil
	}
	return c.bus
}

// MetricsSnapshot describes the metricssnapshot operation and its observable behavior.
//
// MetricsSnapshot may return an error when input validation, dependency calls, or security checks fail.
// MetricsSnapshot does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *Coordinator) MetricsSnapshot() MetricsSnapshot {
	if c == nil || c.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return c.metrics.Snapshot()
}

// JournalDropped describes the journaldropped operation and its observable behavior.
//
// JournalDropped may return an error when input validation, dependency calls, or security checks fail.
// JournalDropped does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *Coordinator) JournalDropped() uint64 {
	if c == nil || c.journal == nil {
		return 0
	}
	return c.journal.Dropped()
}

// LifecycleReport describes the lifecyclereport operation and its observable behavior.
//
// LifecycleReport may return an error when input validation, dependency calls, or security checks fail.
// LifecycleReport does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *Coordinator) LifecycleReport() LifecycleReport {
	if c == nil {
		return LifecycleReport{}
	}

	c.mu.Lock()
	state, _ := c.deriveLocked(c.now())
	torn := c.tornDown
	c.mu.Unlock()

	var busDropped uint64
	if c.bus != nil {
		busDropped = c.bus.Dropped()
	}

	return LifecycleReport{
		Initializations:   c.counters.initializations.Load(),
		WarningsFired:     c.counters.warningsFired.Load(),
		SessionsEnded:     c.counters.sessionsEnded.Load(),
		RefreshesObserved: c.counters.refreshes.Load(),
		ExtendsRequested:  c.counters.extends.Load(),
		BusDropped:        busDropped,
		JournalDropped:    c.JournalDropped(),
		State:             state,
		TornDown:          torn,
	}
}

/*
====================================
INTERNAL HELPERS
====================================
*/

func (c *Coordinator) metricInc(id MetricID) {
	if c == nil || c.metrics == nil {
		return
	}
	c.metrics.Inc(id)
}

func (c *Coordinator) publish(topic Topic, payload any) {
	if c == nil || c.bus == nil {
		return
	}
	c.bus.Publish(internalevents.New(topic, payload))
	c.metricInc(MetricBusPublished)
}

func (c *Coordinator) appendRecord(ctx context.Context, rec ActionRecord) {
	if c == nil || c.journal == nil {
		return
	}
	if rec.At.IsZero() {
		rec.At = c.now()
	}
	if rec.Origin == "" {
		rec.Origin = originFromContext(ctx)
	}
	c.journal.Append(ctx, rec)
}

type loadStatus uint8

const (
	loadOK loadStatus = iota
	loadEmpty
	loadFailed
	loadInvalid
)

func (s loadStatus) String() string {
	switch s {
	case loadOK:
		return "ok"
	case loadEmpty:
		return "empty"
	case loadFailed:
		return "store-failure"
	case loadInvalid:
		return "token-invalid"
	default:
		return "unknown"
	}
}

// loadPair reads the persisted pair and parses its access token. Failures
// never propagate past here: they are logged, counted, and mapped to a
// status the caller turns into a state decision.
func (c *Coordinator) loadPair(ctx context.Context) (Session, loadStatus) {
	loadCtx, cancel := context.WithTimeout(ctx, c.config.Session.StoreTimeout)
	defer cancel()

	pair, err := c.store.Load(loadCtx)
	if err != nil {
		if errors.Is(err, store.ErrNoPair) {
			return Session{}, loadEmpty
		}
		log.Print("backoffice: token pair load failed")
		c.metricInc(MetricStoreFailure)
		return Session{}, loadFailed
	}

	claims, err := c.parser.Parse(pair.AccessToken)
	if err != nil {
		log.Print("backoffice: access token unparsable")
		c.metricInc(MetricTokenParseFailure)
		return Session{}, loadInvalid
	}

	c.metricInc(MetricSessionLoaded)
	return Session{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresAt:    claims.ExpiryTime(),
		Claims:       *claims,
	}, loadOK
}
