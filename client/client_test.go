package client_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	backoffice "github.com/lendkit/backoffice"
	"github.com/lendkit/backoffice/client"
	"github.com/lendkit/backoffice/store"
)

const (
	oldAccess  = "access-old"
	oldRefresh = "refresh-old"
	newAccess  = "access-new"
	newRefresh = "refresh-new"
)

type clientFixture struct {
	t       *testing.T
	server  *httptest.Server
	memory  *store.Memory
	bus     *backoffice.Bus
	events  backoffice.BusSubscription
	metrics *backoffice.Metrics
	api     *client.Client
}

func newClientFixture(t *testing.T, handler http.Handler) *clientFixture {
	t.Helper()
	return newClientFixtureMetrics(t, handler, backoffice.NewMetrics(backoffice.MetricsConfig{Enabled: true}))
}

// newClientFixtureMetrics lets a test build the metrics engine up front so
// server handlers can observe counters while a request is still in flight.
func newClientFixtureMetrics(t *testing.T, handler http.Handler, metrics *backoffice.Metrics) *clientFixture {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	memory := store.NewMemory()
	bus := backoffice.NewBus(backoffice.BusConfig{})
	t.Cleanup(bus.Close)
	sub := bus.Subscribe(backoffice.TopicTokenRefreshed, backoffice.TopicAuthError)
	t.Cleanup(sub.Close)

	api, err := client.New(client.Config{
		BaseURL: srv.URL + "/",
		Store:   memory,
		Bus:     bus,
		Metrics: metrics,
	})
	require.NoError(t, err)

	return &clientFixture{
		t:       t,
		server:  srv,
		memory:  memory,
		bus:     bus,
		events:  sub,
		metrics: metrics,
		api:     api,
	}
}

func (f *clientFixture) seedPair(access, refresh string) {
	f.t.Helper()
	require.NoError(f.t, f.memory.Save(context.Background(), store.TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
	}))
}

func (f *clientFixture) waitEvent(topic backoffice.Topic) backoffice.Event {
	f.t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev, ok := <-f.events.Events:
			if !ok {
				f.t.Fatalf("event channel closed waiting for %s", topic)
			}
			if ev.Topic == topic {
				return ev
			}
		case <-deadline:
			f.t.Fatalf("no %s event within 2s", topic)
		}
	}
}

func (f *clientFixture) requireNoEvent() {
	f.t.Helper()
	select {
	case ev := <-f.events.Events:
		f.t.Fatalf("unexpected %s event", ev.Topic)
	case <-time.After(50 * time.Millisecond):
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeAPIError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	fmt.Fprintf(w, `{"error":{"code":%q,"message":%q,"status":%d},"request_id":"req-fixture-1"}`, code, message, status)
}

func emptyUsersPage(w http.ResponseWriter) {
	writeJSON(w, client.Page[client.User]{Items: []client.User{}})
}

func TestNewClientValidation(t *testing.T) {
	memory := store.NewMemory()

	_, err := client.New(client.Config{Store: memory})
	require.Error(t, err)

	_, err = client.New(client.Config{BaseURL: "office.example.com", Store: memory})
	require.Error(t, err)

	_, err = client.New(client.Config{BaseURL: "https://office.example.com"})
	require.Error(t, err)

	_, err = client.New(client.Config{
		BaseURL:  "https://office.example.com",
		Store:    memory,
		Throttle: client.ThrottleConfig{Enabled: true},
	})
	require.Error(t, err)

	_, err = client.New(client.Config{BaseURL: "https://office.example.com/api/v1/", Store: memory})
	require.NoError(t, err)
}

func TestClientAttachesBearerAndHeaders(t *testing.T) {
	headers := make(chan http.Header, 1)
	mux := http.NewServeMux()
	mux.HandleFunc("/users", func(w http.ResponseWriter, r *http.Request) {
		headers <- r.Header.Clone()
		emptyUsersPage(w)
	})

	f := newClientFixture(t, mux)
	f.seedPair(oldAccess, oldRefresh)

	_, err := f.api.Users.List(context.Background(), client.UsersListParams{})
	require.NoError(t, err)

	hdr := <-headers
	assert.Equal(t, "Bearer "+oldAccess, hdr.Get("Authorization"))
	assert.Equal(t, "application/json", hdr.Get("Accept"))
	assert.NotEmpty(t, hdr.Get("User-Agent"))

	_, err = uuid.Parse(hdr.Get("X-Request-Id"))
	assert.NoError(t, err, "X-Request-ID should be a UUID")
}

func TestClientPinnedRequestID(t *testing.T) {
	headers := make(chan http.Header, 1)
	mux := http.NewServeMux()
	mux.HandleFunc("/users", func(w http.ResponseWriter, r *http.Request) {
		headers <- r.Header.Clone()
		emptyUsersPage(w)
	})

	f := newClientFixture(t, mux)
	f.seedPair(oldAccess, oldRefresh)

	ctx := client.WithRequestID(context.Background(), "save-sequence-42")
	_, err := f.api.Users.List(ctx, client.UsersListParams{})
	require.NoError(t, err)

	hdr := <-headers
	assert.Equal(t, "save-sequence-42", hdr.Get("X-Request-Id"))
}

func TestClientAnonymousWhenStoreEmpty(t *testing.T) {
	headers := make(chan http.Header, 1)
	mux := http.NewServeMux()
	mux.HandleFunc("/users", func(w http.ResponseWriter, r *http.Request) {
		headers <- r.Header.Clone()
		emptyUsersPage(w)
	})

	f := newClientFixture(t, mux)

	_, err := f.api.Users.List(context.Background(), client.UsersListParams{})
	require.NoError(t, err)

	hdr := <-headers
	assert.Empty(t, hdr.Get("Authorization"))
}

func TestClientDecodesAPIError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/users", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		fmt.Fprint(w, `{"error":{"code":"VALIDATION","message":"email is taken","status":422,"fields":[{"field":"email","message":"already registered"}]},"request_id":"req-77"}`)
	})

	f := newClientFixture(t, mux)
	f.seedPair(oldAccess, oldRefresh)

	_, err := f.api.Users.Create(context.Background(), client.UserDraft{Username: "dana"})
	require.Error(t, err)

	var apiErr client.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.Status)
	assert.Equal(t, "VALIDATION", apiErr.Code)
	assert.Equal(t, "email is taken", apiErr.Message)
	assert.Equal(t, "req-77", apiErr.RequestID)
	require.Len(t, apiErr.Fields, 1)
	assert.Equal(t, "email", apiErr.Fields[0].Field)
}

func TestClientErrorSentinels(t *testing.T) {
	userID := uuid.New()
	mux := http.NewServeMux()
	mux.HandleFunc("/users/"+userID.String(), func(w http.ResponseWriter, r *http.Request) {
		writeAPIError(w, http.StatusNotFound, "NOT_FOUND", "no such user")
	})
	mux.HandleFunc("/users", func(w http.ResponseWriter, r *http.Request) {
		writeAPIError(w, http.StatusForbidden, "FORBIDDEN", "users.manage required")
	})
	mux.HandleFunc("/roles", func(w http.ResponseWriter, r *http.Request) {
		writeAPIError(w, http.StatusConflict, "CONFLICT", "role exists")
	})

	f := newClientFixture(t, mux)
	f.seedPair(oldAccess, oldRefresh)
	ctx := context.Background()

	_, err := f.api.Users.Get(ctx, userID)
	assert.ErrorIs(t, err, backoffice.ErrNotFound)
	assert.NotErrorIs(t, err, backoffice.ErrForbidden)

	_, err = f.api.Users.Create(ctx, client.UserDraft{Username: "dana"})
	assert.ErrorIs(t, err, backoffice.ErrForbidden)

	_, err = f.api.Roles.Create(ctx, "auditor", client.RoleDraft{})
	assert.ErrorIs(t, err, backoffice.ErrConflict)
}

func TestClientRefreshOn401AndReplay(t *testing.T) {
	var userHits, refreshCalls atomic.Int64
	refreshBody := make(chan string, 1)

	mux := http.NewServeMux()
	mux.HandleFunc("/users", func(w http.ResponseWriter, r *http.Request) {
		userHits.Add(1)
		if r.Header.Get("Authorization") != "Bearer "+newAccess {
			writeAPIError(w, http.StatusUnauthorized, "TOKEN_EXPIRED", "access token expired")
			return
		}
		writeJSON(w, client.Page[client.User]{
			Items: []client.User{{ID: uuid.New(), Username: "dana"}},
			Total: 1,
		})
	})
	mux.HandleFunc("/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		refreshCalls.Add(1)
		var payload struct {
			RefreshToken string `json:"refresh_token"`
		}
		_ = json.NewDecoder(r.Body).Decode(&payload)
		refreshBody <- payload.RefreshToken
		writeJSON(w, store.TokenPair{AccessToken: newAccess, RefreshToken: newRefresh})
	})

	f := newClientFixture(t, mux)
	f.seedPair(oldAccess, oldRefresh)

	page, err := f.api.Users.List(context.Background(), client.UsersListParams{})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "dana", page.Items[0].Username)

	assert.Equal(t, int64(1), refreshCalls.Load())
	assert.Equal(t, int64(2), userHits.Load())
	assert.Equal(t, oldRefresh, <-refreshBody)

	pair, err := f.memory.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, newAccess, pair.AccessToken)
	assert.Equal(t, newRefresh, pair.RefreshToken)

	ev := f.waitEvent(backoffice.TopicTokenRefreshed)
	published, ok := ev.Payload.(store.TokenPair)
	require.True(t, ok)
	assert.Equal(t, newRefresh, published.RefreshToken)

	assert.Equal(t, uint64(1), f.metrics.Value(backoffice.MetricRefreshAttempt))
	assert.Equal(t, uint64(1), f.metrics.Value(backoffice.MetricRefreshSuccess))
	assert.Equal(t, uint64(3), f.metrics.Value(backoffice.MetricAPIRequest))
}

func TestClientRefreshRejectedEndsSession(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/users", func(w http.ResponseWriter, r *http.Request) {
		writeAPIError(w, http.StatusUnauthorized, "TOKEN_EXPIRED", "access token expired")
	})
	mux.HandleFunc("/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		writeAPIError(w, http.StatusUnauthorized, "REFRESH_REJECTED", "refresh token revoked")
	})

	f := newClientFixture(t, mux)
	f.seedPair(oldAccess, oldRefresh)

	_, err := f.api.Users.List(context.Background(), client.UsersListParams{})
	require.Error(t, err)
	assert.ErrorIs(t, err, backoffice.ErrUnauthorized)

	_, err = f.memory.Load(context.Background())
	assert.ErrorIs(t, err, store.ErrNoPair)

	ev := f.waitEvent(backoffice.TopicAuthError)
	assert.Equal(t, "refresh-rejected", ev.Payload)

	assert.Equal(t, uint64(1), f.metrics.Value(backoffice.MetricRefreshFailure))
	assert.Equal(t, uint64(0), f.metrics.Value(backoffice.MetricRefreshSuccess))
}

func TestClientSharedRefreshSingleFlight(t *testing.T) {
	const workers = 8

	metrics := backoffice.NewMetrics(backoffice.MetricsConfig{Enabled: true})
	var refreshCalls atomic.Int64

	mux := http.NewServeMux()
	mux.HandleFunc("/users", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+newAccess {
			writeAPIError(w, http.StatusUnauthorized, "TOKEN_EXPIRED", "access token expired")
			return
		}
		emptyUsersPage(w)
	})
	mux.HandleFunc("/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		refreshCalls.Add(1)
		// Hold the response until every other worker has joined the
		// in-flight refresh, so the single-flight claim is actually
		// exercised rather than raced past.
		deadline := time.Now().Add(2 * time.Second)
		for metrics.Value(backoffice.MetricRefreshShared) < workers-1 && time.Now().Before(deadline) {
			time.Sleep(time.Millisecond)
		}
		writeJSON(w, store.TokenPair{AccessToken: newAccess, RefreshToken: newRefresh})
	})

	f := newClientFixtureMetrics(t, mux, metrics)
	f.seedPair(oldAccess, oldRefresh)

	var wg sync.WaitGroup
	wg.Add(workers)
	results := make(chan error, workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			_, err := f.api.Users.List(context.Background(), client.UsersListParams{})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	for err := range results {
		require.NoError(t, err)
	}

	assert.Equal(t, int64(1), refreshCalls.Load())
	assert.Equal(t, uint64(1), metrics.Value(backoffice.MetricRefreshAttempt))
	assert.Equal(t, uint64(1), metrics.Value(backoffice.MetricRefreshSuccess))
	assert.Equal(t, uint64(workers-1), metrics.Value(backoffice.MetricRefreshShared))
}

func TestClientRefreshWaiterHonorsContext(t *testing.T) {
	entered := make(chan struct{}, 1)
	release := make(chan struct{})

	mux := http.NewServeMux()
	mux.HandleFunc("/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		entered <- struct{}{}
		select {
		case <-release:
		case <-time.After(3 * time.Second):
		}
		writeJSON(w, store.TokenPair{AccessToken: newAccess, RefreshToken: newRefresh})
	})

	f := newClientFixture(t, mux)
	f.seedPair(oldAccess, oldRefresh)

	leaderErr := make(chan error, 1)
	go func() {
		leaderErr <- f.api.Auth.Refresh(context.Background())
	}()
	<-entered

	canceled, cancel := context.WithCancel(context.Background())
	cancel()
	err := f.api.Auth.Refresh(canceled)
	require.ErrorIs(t, err, backoffice.ErrRefreshInFlight)

	close(release)
	require.NoError(t, <-leaderErr)

	assert.Equal(t, uint64(1), f.metrics.Value(backoffice.MetricRefreshShared))
	assert.Equal(t, uint64(1), f.metrics.Value(backoffice.MetricRefreshAttempt))
}

func TestClientRefreshTransportErrorKeepsPair(t *testing.T) {
	mux := http.NewServeMux()
	f := newClientFixture(t, mux)
	f.seedPair(oldAccess, oldRefresh)
	f.server.Close()

	err := f.api.Auth.Refresh(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, backoffice.ErrUnauthorized)

	pair, loadErr := f.memory.Load(context.Background())
	require.NoError(t, loadErr)
	assert.Equal(t, oldRefresh, pair.RefreshToken)

	f.requireNoEvent()
	assert.Equal(t, uint64(0), f.metrics.Value(backoffice.MetricRefreshFailure))
}

func TestClientRefreshServerTroubleKeepsPair(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		writeAPIError(w, http.StatusServiceUnavailable, "MAINTENANCE", "back shortly")
	})

	f := newClientFixture(t, mux)
	f.seedPair(oldAccess, oldRefresh)

	err := f.api.Auth.Refresh(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, backoffice.ErrUnauthorized)

	pair, loadErr := f.memory.Load(context.Background())
	require.NoError(t, loadErr)
	assert.Equal(t, oldRefresh, pair.RefreshToken)

	f.requireNoEvent()
	assert.Equal(t, uint64(0), f.metrics.Value(backoffice.MetricRefreshFailure))
}

func TestClientLogin(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/login", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		var creds client.Credentials
		require.NoError(t, json.NewDecoder(r.Body).Decode(&creds))
		if creds.Username != "dana" || creds.Password != "open-sesame" {
			writeAPIError(w, http.StatusUnauthorized, "BAD_CREDENTIALS", "wrong username or password")
			return
		}
		writeJSON(w, store.TokenPair{AccessToken: newAccess, RefreshToken: newRefresh})
	})

	f := newClientFixture(t, mux)

	err := f.api.Auth.Login(context.Background(), client.Credentials{Username: "dana", Password: "open-sesame"})
	require.NoError(t, err)

	pair, err := f.memory.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, newAccess, pair.AccessToken)
	f.waitEvent(backoffice.TopicTokenRefreshed)

	err = f.api.Auth.Login(context.Background(), client.Credentials{Username: "dana", Password: "nope"})
	assert.ErrorIs(t, err, backoffice.ErrUnauthorized)
	assert.Equal(t, uint64(0), f.metrics.Value(backoffice.MetricRefreshAttempt),
		"login failures must not trigger the refresh path")

	err = f.api.Auth.Login(context.Background(), client.Credentials{Password: "open-sesame"})
	require.Error(t, err)
}

func TestClientLogout(t *testing.T) {
	var logoutCalls atomic.Int64
	headers := make(chan http.Header, 1)

	mux := http.NewServeMux()
	mux.HandleFunc("/auth/logout", func(w http.ResponseWriter, r *http.Request) {
		logoutCalls.Add(1)
		headers <- r.Header.Clone()
		w.WriteHeader(http.StatusNoContent)
	})

	f := newClientFixture(t, mux)
	f.seedPair(oldAccess, oldRefresh)

	require.NoError(t, f.api.Auth.Logout(context.Background()))

	assert.Equal(t, int64(1), logoutCalls.Load())
	hdr := <-headers
	assert.Equal(t, "Bearer "+oldAccess, hdr.Get("Authorization"))

	_, err := f.memory.Load(context.Background())
	assert.ErrorIs(t, err, store.ErrNoPair)

	ev := f.waitEvent(backoffice.TopicAuthError)
	assert.Equal(t, "logout", ev.Payload)
}

func TestClientLogoutServerUnreachable(t *testing.T) {
	mux := http.NewServeMux()
	f := newClientFixture(t, mux)
	f.seedPair(oldAccess, oldRefresh)
	f.server.Close()

	require.NoError(t, f.api.Auth.Logout(context.Background()))

	_, err := f.memory.Load(context.Background())
	assert.ErrorIs(t, err, store.ErrNoPair)
	f.waitEvent(backoffice.TopicAuthError)
}

func TestClientMe(t *testing.T) {
	profileID := uuid.New()
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/me", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer "+oldAccess, r.Header.Get("Authorization"))
		writeJSON(w, client.Profile{
			ID:           profileID,
			Username:     "dana",
			FullName:     "Dana Officer",
			Role:         "credit-officer",
			Capabilities: []string{"users.view", "programs.view"},
		})
	})

	f := newClientFixture(t, mux)
	f.seedPair(oldAccess, oldRefresh)

	profile, err := f.api.Auth.Me(context.Background())
	require.NoError(t, err)
	assert.Equal(t, profileID, profile.ID)
	assert.Equal(t, "credit-officer", profile.Role)
	assert.Len(t, profile.Capabilities, 2)
}

func TestClientThrottleSpacesRequests(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/users", func(w http.ResponseWriter, r *http.Request) {
		emptyUsersPage(w)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	memory := store.NewMemory()
	api, err := client.New(client.Config{
		BaseURL: srv.URL,
		Store:   memory,
		Throttle: client.ThrottleConfig{
			Enabled:           true,
			RequestsPerSecond: 1000,
			Burst:             1,
		},
	})
	require.NoError(t, err)

	start := time.Now()
	_, err = api.Users.List(context.Background(), client.UsersListParams{})
	require.NoError(t, err)
	_, err = api.Users.List(context.Background(), client.UsersListParams{})
	require.NoError(t, err)

	// The second request owes one token at 1ms per token. Timers never
	// fire early, so the lower bound holds even on slow machines.
	assert.GreaterOrEqual(t, time.Since(start), time.Millisecond)
}
