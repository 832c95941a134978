package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	backoffice "github.com/lendkit/backoffice"
	"github.com/lendkit/backoffice/store"
)

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// refreshCall is one in-flight refresh round-trip, shared by every caller
// that hits a 401 while it runs.
type refreshCall struct {
	done chan struct{}
	pair store.TokenPair
	err  error
}

type refreshGate struct {
	mu   sync.Mutex
	call *refreshCall
}

// refreshPair exchanges the stored refresh token for a new pair. Concurrent
// callers share one round-trip: the first becomes the leader, the rest wait
// for its outcome. A waiter whose own ctx expires gives up with
// [backoffice.ErrRefreshInFlight]; the shared round-trip keeps running.
func (c *Client) refreshPair(ctx context.Context) (store.TokenPair, error) {
	c.gate.mu.Lock()
	if call := c.gate.call; call != nil {
		c.gate.mu.Unlock()
		c.metrics.Inc(backoffice.MetricRefreshShared)
		select {
		case <-call.done:
			return call.pair, call.err
		case <-ctx.Done():
			return store.TokenPair{}, fmt.Errorf("%w: %v", backoffice.ErrRefreshInFlight, ctx.Err())
		}
	}
	call := &refreshCall{done: make(chan struct{})}
	c.gate.call = call
	c.gate.mu.Unlock()

	c.metrics.Inc(backoffice.MetricRefreshAttempt)
	call.pair, call.err = c.doRefresh(ctx)

	c.gate.mu.Lock()
	c.gate.call = nil
	c.gate.mu.Unlock()
	close(call.done)

	return call.pair, call.err
}

func (c *Client) doRefresh(ctx context.Context) (store.TokenPair, error) {
	current, err := c.store.Load(ctx)
	if err != nil {
		if errors.Is(err, store.ErrNoPair) {
			return store.TokenPair{}, fmt.Errorf("%w: no session", backoffice.ErrUnauthorized)
		}
		return store.TokenPair{}, fmt.Errorf("load token pair: %w", err)
	}
	if current.RefreshToken == "" {
		return store.TokenPair{}, fmt.Errorf("%w: no refresh token", backoffice.ErrUnauthorized)
	}

	req, err := c.newJSONRequest(ctx, http.MethodPost, "/auth/refresh", refreshRequest{RefreshToken: current.RefreshToken})
	if err != nil {
		return store.TokenPair{}, err
	}
	resp, err := c.roundTrip(req)
	if err != nil {
		// Transport trouble is not a verdict on the session; keep the pair.
		return store.TokenPair{}, err
	}
	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		c.metrics.Inc(backoffice.MetricAPIFailure)
		apiErr := decodeAPIError(resp)
		if resp.StatusCode >= 500 {
			return store.TokenPair{}, apiErr
		}
		// The server rejected the refresh token. The session is over.
		c.endSession(ctx, "refresh-rejected")
		return store.TokenPair{}, apiErr
	}

	pair, err := decodeJSON[store.TokenPair](resp)
	if err != nil {
		return store.TokenPair{}, err
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		return store.TokenPair{}, errors.New("refresh response missing tokens")
	}
	if err := c.store.Save(ctx, pair); err != nil {
		c.metrics.Inc(backoffice.MetricRefreshFailure)
		c.publish(backoffice.TopicAuthError, "refresh-save-failed")
		return store.TokenPair{}, fmt.Errorf("save refreshed pair: %w", err)
	}
	c.metrics.Inc(backoffice.MetricRefreshSuccess)
	c.publish(backoffice.TopicTokenRefreshed, pair)
	return pair, nil
}

// endSession clears the stored pair and tells every surface to reset.
func (c *Client) endSession(ctx context.Context, reason string) {
	c.metrics.Inc(backoffice.MetricRefreshFailure)
	// Clearing is best effort; the auth-error event is authoritative.
	_ = c.store.Clear(ctx)
	c.publish(backoffice.TopicAuthError, reason)
}
