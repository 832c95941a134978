package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"

	backoffice "github.com/lendkit/backoffice"
	"github.com/lendkit/backoffice/store"
)

// Credentials mirrors POST /auth/login.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Profile is the signed-in operator as the server sees them, including the
// capability strings expanded from their role.
type Profile struct {
	ID           uuid.UUID `json:"id"`
	Username     string    `json:"username"`
	FullName     string    `json:"full_name"`
	Email        string    `json:"email"`
	Role         string    `json:"role"`
	Capabilities []string  `json:"capabilities,omitempty"`
}

// AuthClient wraps the authentication endpoints.
type AuthClient struct {
	client *Client
}

// Login exchanges credentials for a token pair, persists the pair to the
// shared store, and publishes a token-refreshed event so the session
// coordinator picks the new session up.
//
// Login may return an error when input validation, dependency calls, or
// security checks fail.
func (a *AuthClient) Login(ctx context.Context, creds Credentials) error {
	if a == nil || a.client == nil {
		return errors.New("client: auth client not initialized")
	}
	if strings.TrimSpace(creds.Username) == "" || creds.Password == "" {
		return errors.New("client: username and password required")
	}
	req, err := a.client.newJSONRequest(ctx, http.MethodPost, "/auth/login", creds)
	if err != nil {
		return err
	}
	resp, err := a.client.sendAnonymous(req)
	if err != nil {
		return err
	}
	pair, err := decodeJSON[store.TokenPair](resp)
	if err != nil {
		return err
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		return errors.New("login response missing tokens")
	}
	if err := a.client.store.Save(ctx, pair); err != nil {
		return fmt.Errorf("save token pair: %w", err)
	}
	a.client.publish(backoffice.TopicTokenRefreshed, pair)
	return nil
}

// Logout revokes the session server-side when the server is reachable,
// clears the stored pair, and publishes auth-error so every console surface
// resets. The local part always runs; an unreachable server does not keep
// an operator signed in.
func (a *AuthClient) Logout(ctx context.Context) error {
	if a == nil || a.client == nil {
		return errors.New("client: auth client not initialized")
	}
	req, err := a.client.newJSONRequest(ctx, http.MethodPost, "/auth/logout", nil)
	if err != nil {
		return err
	}
	if resp, err := a.client.sendBearer(req); err == nil {
		drainClose(resp)
	}
	clearErr := a.client.store.Clear(ctx)
	a.client.publish(backoffice.TopicAuthError, "logout")
	if clearErr != nil {
		return fmt.Errorf("clear token pair: %w", clearErr)
	}
	return nil
}

// Refresh runs one explicit refresh round-trip, sharing any refresh already
// in flight. Most callers never need it; the client refreshes on 401
// automatically. It exists for tools that want to renew preemptively.
func (a *AuthClient) Refresh(ctx context.Context) error {
	if a == nil || a.client == nil {
		return errors.New("client: auth client not initialized")
	}
	_, err := a.client.refreshPair(ctx)
	return err
}

// Me returns the profile of the signed-in operator.
//
// Me may return an error when input validation, dependency calls, or
// security checks fail.
func (a *AuthClient) Me(ctx context.Context) (Profile, error) {
	if a == nil || a.client == nil {
		return Profile{}, errors.New("client: auth client not initialized")
	}
	req, err := a.client.newJSONRequest(ctx, http.MethodGet, "/auth/me", nil)
	if err != nil {
		return Profile{}, err
	}
	resp, err := a.client.send(req)
	if err != nil {
		return Profile{}, err
	}
	return decodeJSON[Profile](resp)
}
