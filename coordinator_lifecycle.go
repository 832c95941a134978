package backoffice

import (
	"context"

	internalaudit "github.com/lendkit/backoffice/internal/audit"
	internalevents "github.com/lendkit/backoffice/internal/events"
)

// Initialize loads the persisted token pair, derives the starting state,
// and starts the repeating expiry check. Safe to call again after the
// first time: the previous timer is stopped before the new one starts, so
// there is never more than one active check loop.
//
// A missing pair or an expired token yields a clean unauthenticated start
// with no end callbacks; the stored pair is left in place so a later
// refresh can still revive it. Store read failures degrade the same way
// and are logged, never returned.
//
//	Docs: docs/session.md
func (c *Coordinator) Initialize(ctx context.Context) error {
	if c == nil {
		return ErrNotInitialized
	}

	c.lifecycleMu.Lock()
	defer c.lifecycleMu.Unlock()

	c.mu.Lock()
	if c.tornDown {
		c.mu.Unlock()
		return ErrTornDown
	}
	old := c.loop
	c.loop = nil
	c.mu.Unlock()

	if old != nil {
		old.stop()
	}

	c.counters.initializations.Add(1)
	c.metricInc(MetricInitialize)

	session, status := c.loadPair(ctx)
	has := status == loadOK && session.ExpiresAt.After(c.now())
	if !has {
		session = Session{}
	}

	l := &sessionLoop{
		c:          c,
		ticker:     c.newTicker(c.config.Session.TickInterval),
		ctrl:       make(chan loopMsg),
		done:       make(chan struct{}),
		hasSession: has,
		session:    session,
		state:      StateUnauthenticated,
	}
	if has {
		l.state = StateAuthenticated
	}
	l.sub = c.bus.Subscribe(internalevents.TopicTokenRefreshed, internalevents.TopicAuthError)
	l.busEvents = l.sub.Events

	c.mu.Lock()
	c.loop = l
	c.snapshot = stateSnapshot{session: session, hasSession: has}
	c.mu.Unlock()

	go l.run()

	c.appendRecord(ctx, internalaudit.Record{
		Action:    actionInitialize,
		Actor:     session.Claims.Subject,
		Role:      session.Claims.Role,
		SessionID: session.Claims.SessionID,
		Success:   true,
		Detail:    map[string]string{"load": status.String()},
	})
	return nil
}

// control hands one operation to the run loop and waits for it to be
// applied. The caller's view is strictly ordered: when control returns,
// the loop has already acted on the message.
func (c *Coordinator) control(ctx context.Context, op loopOp) error {
	c.mu.Lock()
	if c.tornDown {
		c.mu.Unlock()
		return ErrTornDown
	}
	l := c.loop
	c.mu.Unlock()
	if l == nil {
		return ErrNotInitialized
	}

	msg := loopMsg{op: op, ctx: ctx, reply: make(chan error, 1)}
	select {
	case l.ctrl <- msg:
	case <-l.done:
		return ErrTornDown
	}
	select {
	case err := <-msg.reply:
		return err
	case <-l.done:
		return ErrTornDown
	}
}

// ExtendSession re-reads the token pair from the store and resets the
// timeout tracking against the fresh expiry. No network call happens
// here: the caller (typically an API client refresh) is responsible for
// having written a newer pair first.
//
// Extending while the warning is showing clears it; a later crossing
// warns again. Returns an error only for lifecycle misuse (never
// initialized, torn down) — a store problem during the re-read degrades
// to the logged-out state instead of surfacing.
//
//	Docs: docs/session.md
func (c *Coordinator) ExtendSession(ctx context.Context) error {
	if c == nil {
		return ErrNotInitialized
	}
	return c.control(ctx, opExtend)
}

// PauseTimeoutCheck suspends expiry evaluation. Bus events still apply
// while paused: a token refresh updates the session and a hard auth
// failure still ends it.
func (c *Coordinator) PauseTimeoutCheck() error {
	if c == nil {
		return ErrNotInitialized
	}
	return c.control(context.Background(), opPause)
}

// ResumeTimeoutCheck re-enables expiry evaluation and immediately runs
// one check, so a session that expired while paused ends now rather than
// one tick later.
func (c *Coordinator) ResumeTimeoutCheck() error {
	if c == nil {
		return ErrNotInitialized
	}
	return c.control(context.Background(), opResume)
}

// Teardown stops the timer, detaches from the bus, and releases the
// journal. Idempotent, safe on a never-initialized coordinator, and
// strict about silence: once Teardown returns, no warning or end callback
// will run. It does not touch the store; a teardown is a shutdown, not a
// logout.
//
//	Docs: docs/session.md
func (c *Coordinator) Teardown() {
	if c == nil {
		return
	}

	c.lifecycleMu.Lock()
	defer c.lifecycleMu.Unlock()

	c.mu.Lock()
	if c.tornDown {
		c.mu.Unlock()
		return
	}
	c.tornDown = true
	l := c.loop
	c.loop = nil
	c.snapshot = stateSnapshot{}
	c.mu.Unlock()

	if l != nil {
		l.stop()
	}
	c.metricInc(MetricTeardown)

	c.appendRecord(context.Background(), internalaudit.Record{
		Action:  actionTeardown,
		Success: true,
	})
	if c.journal != nil {
		c.journal.Close()
	}
	if c.busOwned && c.bus != nil {
		c.bus.Close()
	}
}
