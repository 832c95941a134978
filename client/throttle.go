package client

import (
	"context"
	"sync"
	"time"
)

// ThrottleConfig bounds how fast the client issues requests. Disabled by
// default; bulk console screens (exports, batch edits) enable it so they
// stay polite to the shared back office.
type ThrottleConfig struct {
	Enabled           bool
	RequestsPerSecond float64
	Burst             int
}

// throttle is a reservation token bucket. A waiter takes its token up
// front, possibly driving the balance negative, and sleeps off the deficit.
// That keeps concurrent waiters in FIFO-ish order without a queue.
type throttle struct {
	mu     sync.Mutex
	rate   float64
	burst  float64
	tokens float64
	last   time.Time
	now    func() time.Time
}

func newThrottle(cfg ThrottleConfig) *throttle {
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &throttle{
		rate:   cfg.RequestsPerSecond,
		burst:  float64(burst),
		tokens: float64(burst),
		now:    time.Now,
	}
}

func (t *throttle) wait(ctx context.Context) error {
	if t == nil {
		return nil
	}

	t.mu.Lock()
	now := t.now()
	if !t.last.IsZero() {
		t.tokens += now.Sub(t.last).Seconds() * t.rate
		if t.tokens > t.burst {
			t.tokens = t.burst
		}
	}
	t.last = now
	t.tokens--
	deficit := -t.tokens
	t.mu.Unlock()

	if deficit <= 0 {
		return nil
	}

	delay := time.Duration(deficit / t.rate * float64(time.Second))
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		// Hand the reserved token back so a canceled waiter does not
		// burn budget for the others.
		t.mu.Lock()
		t.tokens++
		t.mu.Unlock()
		return ctx.Err()
	}
}
