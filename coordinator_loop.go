package backoffice

import (
	"context"
	"time"

	internalaudit "github.com/lendkit/backoffice/internal/audit"
	internalevents "github.com/lendkit/backoffice/internal/events"
)

// ticker abstracts time.Ticker so lifecycle tests can drive the loop with
// a hand-fed channel instead of the wall clock.
type ticker interface {
	C() <-chan time.Time
	Stop()
}

type wallTicker struct {
	t *time.Ticker
}

func newWallTicker(d time.Duration) ticker {
	return &wallTicker{t: time.NewTicker(d)}
}

func (w *wallTicker) C() <-chan time.Time { return w.t.C }

func (w *wallTicker) Stop() { w.t.Stop() }

type loopOp uint8

const (
	opExtend loopOp = iota
	opPause
	opResume
	opStop
)

type loopMsg struct {
	op    loopOp
	ctx   context.Context
	reply chan error
}

// sessionLoop is one initialization's worth of timer. It owns the session
// copy it evaluates, the pause flag, and the warning/terminal edges; the
// coordinator snapshot is updated under c.mu as a read model for the
// accessors. Re-initialization stops the previous loop before starting a
// new one, so at most one loop ticks at a time.
type sessionLoop struct {
	c *Coordinator

	ticker    ticker
	sub       internalevents.Subscription
	busEvents <-chan internalevents.Event
	ctrl      chan loopMsg
	done      chan struct{}

	hasSession bool
	session    Session
	state      SessionState
	paused     bool
}

func (l *sessionLoop) run() {
	defer close(l.done)
	for {
		select {
		case <-l.ticker.C():
			if l.paused {
				continue
			}
			l.evaluate()
		case ev, ok := <-l.busEvents:
			if !ok {
				// Bus closed under us; keep ticking on the store alone.
				l.busEvents = nil
				continue
			}
			l.handleEvent(ev)
		case msg := <-l.ctrl:
			switch msg.op {
			case opExtend:
				l.c.counters.extends.Add(1)
				l.c.metricInc(MetricExtendRequested)
				l.reload(msg.ctx, actionExtend)
				msg.reply <- nil
			case opPause:
				l.paused = true
				msg.reply <- nil
			case opResume:
				l.paused = false
				l.evaluate()
				msg.reply <- nil
			case opStop:
				l.ticker.Stop()
				l.sub.Close()
				msg.reply <- nil
				return
			}
		}
	}
}

// stop halts the loop and waits for it to exit. After stop returns no
// callback of this loop will run again.
func (l *sessionLoop) stop() {
	msg := loopMsg{op: opStop, reply: make(chan error, 1)}
	select {
	case l.ctrl <- msg:
	case <-l.done:
		return
	}
	<-msg.reply
}

// handleEvent reacts to bus traffic even while the timer is paused: a
// refresh or a hard auth failure changes truth regardless of the check
// cadence.
func (l *sessionLoop) handleEvent(ev internalevents.Event) {
	switch ev.Topic {
	case internalevents.TopicTokenRefreshed:
		l.c.counters.refreshes.Add(1)
		l.c.metricInc(MetricRefreshObserved)
		l.reload(context.Background(), actionRefreshObserved)
	case internalevents.TopicAuthError:
		l.c.metricInc(MetricAuthErrorSignal)
		l.terminate(EndReasonAuthError)
	}
}

// evaluate is the per-tick check: expire if due, otherwise fire any
// warning callbacks whose threshold was newly crossed and settle the
// derived state.
func (l *sessionLoop) evaluate() {
	if !l.hasSession {
		return
	}
	now := l.c.now()
	remaining := l.session.ExpiresAt.Sub(now)
	if remaining <= 0 {
		l.terminate(EndReasonExpired)
		return
	}

	maxThreshold := l.c.config.Session.DefaultWarningThreshold
	var pending []*warningSub
	l.c.mu.Lock()
	for _, s := range l.c.warnSubs {
		if s.threshold > maxThreshold {
			maxThreshold = s.threshold
		}
		if remaining <= s.threshold {
			if !s.fired {
				s.fired = true
				pending = append(pending, s)
			}
		} else {
			// Back above the line after an extend or refresh: re-arm.
			s.fired = false
		}
	}
	l.c.mu.Unlock()

	for _, s := range pending {
		s.fn(remaining)
	}

	newState := StateAuthenticated
	if remaining <= maxThreshold {
		newState = StateWarning
	}
	if newState == StateWarning && l.state != StateWarning {
		l.c.counters.warningsFired.Add(1)
		l.c.metricInc(MetricWarningFired)
		l.c.publish(internalevents.TopicTimeoutWarning, remaining)
		l.journalSession(actionWarning, true, "", map[string]string{"remaining": remaining.String()})
	}
	l.state = newState
}

// terminate flips to the terminal logged-out state. Idempotent: a second
// cause for the same session is a no-op, so end callbacks run exactly once.
func (l *sessionLoop) terminate(reason EndReason) {
	if !l.hasSession {
		return
	}
	ended := l.session
	l.hasSession = false
	l.session = Session{}
	l.state = StateUnauthenticated

	l.c.mu.Lock()
	l.c.snapshot = stateSnapshot{}
	subs := make([]*endSub, 0, len(l.c.endSubs))
	for _, s := range l.c.endSubs {
		subs = append(subs, s)
	}
	for _, s := range l.c.warnSubs {
		s.fired = false
	}
	l.c.mu.Unlock()

	l.c.counters.sessionsEnded.Add(1)
	if reason == EndReasonExpired {
		l.c.metricInc(MetricSessionExpired)
		l.c.publish(internalevents.TopicSessionExpired, reason.String())
	}

	for _, s := range subs {
		s.fn(reason)
	}

	l.c.appendRecord(context.Background(), internalaudit.Record{
		Action:    actionEnded,
		Actor:     ended.Claims.Subject,
		Role:      ended.Claims.Role,
		SessionID: ended.Claims.SessionID,
		Success:   true,
		Detail:    map[string]string{"reason": reason.String()},
	})
}

// reload re-reads the store and swaps the loop's session. The crossing
// state carries over, so a refresh that lands while already below the
// threshold does not replay the warning edge.
func (l *sessionLoop) reload(ctx context.Context, trigger string) {
	session, status := l.c.loadPair(ctx)
	switch status {
	case loadOK:
		if !session.ExpiresAt.After(l.c.now()) {
			l.terminate(EndReasonExpired)
			return
		}
		l.hasSession = true
		l.session = session
		l.c.mu.Lock()
		l.c.snapshot = stateSnapshot{session: session, hasSession: true}
		l.c.mu.Unlock()
		// While paused, warning evaluation waits for resume; the fresh
		// session is still visible to accessors immediately.
		if !l.paused {
			l.evaluate()
		}
		l.journalSession(trigger, true, "", nil)
	case loadEmpty:
		if l.hasSession {
			l.terminate(EndReasonLoggedOut)
		}
	case loadFailed:
		l.terminate(EndReasonStoreFailure)
	case loadInvalid:
		l.terminate(EndReasonTokenInvalid)
	}
}

func (l *sessionLoop) journalSession(action string, success bool, errMsg string, detail map[string]string) {
	l.c.appendRecord(context.Background(), internalaudit.Record{
		Action:    action,
		Actor:     l.session.Claims.Subject,
		Role:      l.session.Claims.Role,
		SessionID: l.session.Claims.SessionID,
		Success:   success,
		Error:     errMsg,
		Detail:    detail,
	})
}
