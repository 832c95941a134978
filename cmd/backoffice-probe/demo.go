package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/lendkit/backoffice/capability"
	"github.com/lendkit/backoffice/client"
	"github.com/lendkit/backoffice/store"
	"github.com/lendkit/backoffice/token"
)

const (
	demoSigningKey = "demo-signing-key-for-probe-01234"
	demoIssuer     = "lendkit-demo"
	demoAudience   = "backoffice-console"
	demoTenant     = "demo"
	demoUsername   = "dana.okafor"
	demoPassword   = "lendkit-demo"
	demoAccessTTL  = 2 * time.Minute
)

type demoOperator struct {
	Username string
	Password string
	FullName string
	Email    string
	Role     string
}

var demoOperators = map[string]demoOperator{
	demoUsername: {
		Username: demoUsername,
		Password: demoPassword,
		FullName: "Dana Okafor",
		Email:    "dana.okafor@demo.lendkit.dev",
		Role:     "credit-officer",
	},
	"viktor.admin": {
		Username: "viktor.admin",
		Password: demoPassword,
		FullName: "Viktor Admin",
		Email:    "viktor.admin@demo.lendkit.dev",
		Role:     "administrator",
	},
}

// demoSession tracks an outstanding refresh token. Refresh tokens are
// single-use: a successful rotation deletes the old one, so a replay gets
// 401 exactly like the production API.
type demoSession struct {
	username string
	sid      string
}

// demoBackend is a loopback stub of the console auth API, just enough for
// the probe to exercise login, rotation, profile lookup, and logout without
// touching a real deployment.
type demoBackend struct {
	server   *http.Server
	listener net.Listener
	issuer   *token.Issuer
	verifier *token.Parser
	roles    *capability.RoleManager

	mu       sync.Mutex
	sessions map[string]demoSession
}

func startDemoBackend() (*demoBackend, error) {
	issuer, err := token.NewIssuer(token.IssuerConfig{
		Method:   token.VerifyHS256,
		Key:      []byte(demoSigningKey),
		TTL:      demoAccessTTL,
		Issuer:   demoIssuer,
		Audience: demoAudience,
	})
	if err != nil {
		return nil, err
	}
	verifier, err := token.NewParser(token.Config{
		VerifyMode: token.VerifyHS256,
		Key:        []byte(demoSigningKey),
		Issuer:     demoIssuer,
		Audience:   demoAudience,
	})
	if err != nil {
		return nil, err
	}
	roles, err := capability.NewConsoleRoleManager(capability.NewConsoleRegistry())
	if err != nil {
		return nil, err
	}
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, err
	}

	backend := &demoBackend{
		listener: listener,
		issuer:   issuer,
		verifier: verifier,
		roles:    roles,
		sessions: map[string]demoSession{},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/auth/login", backend.handleLogin)
	mux.HandleFunc("/auth/refresh", backend.handleRefresh)
	mux.HandleFunc("/auth/me", backend.handleMe)
	mux.HandleFunc("/auth/logout", backend.handleLogout)

	backend.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go backend.server.Serve(listener)
	return backend, nil
}

func (d *demoBackend) URL() string {
	return "http://" + d.listener.Addr().String()
}

func (d *demoBackend) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = d.server.Shutdown(ctx)
}

func (d *demoBackend) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		d.writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "use POST")
		return
	}
	var creds struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		d.writeError(w, http.StatusBadRequest, "BAD_REQUEST", "malformed login body")
		return
	}
	op, ok := demoOperators[creds.Username]
	if !ok || op.Password != creds.Password {
		d.writeError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "unknown username or password")
		return
	}
	pair, err := d.mintPair(op, uuid.NewString())
	if err != nil {
		d.writeError(w, http.StatusInternalServerError, "MINT_FAILED", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, pair)
}

func (d *demoBackend) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		d.writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "use POST")
		return
	}
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		d.writeError(w, http.StatusBadRequest, "BAD_REQUEST", "malformed refresh body")
		return
	}

	d.mu.Lock()
	sess, ok := d.sessions[req.RefreshToken]
	if ok {
		delete(d.sessions, req.RefreshToken)
	}
	d.mu.Unlock()
	if !ok {
		d.writeError(w, http.StatusUnauthorized, "INVALID_REFRESH", "refresh token unknown or already used")
		return
	}

	pair, err := d.mintPair(demoOperators[sess.username], sess.sid)
	if err != nil {
		d.writeError(w, http.StatusInternalServerError, "MINT_FAILED", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, pair)
}

func (d *demoBackend) handleMe(w http.ResponseWriter, r *http.Request) {
	claims, ok := d.authorize(w, r)
	if !ok {
		return
	}
	op, ok := demoOperators[claims.Subject]
	if !ok {
		d.writeError(w, http.StatusUnauthorized, "UNKNOWN_OPERATOR", "token subject not found")
		return
	}
	caps, _ := d.roles.Capabilities(op.Role)
	writeJSON(w, http.StatusOK, client.Profile{
		ID:           uuid.NewSHA1(uuid.NameSpaceOID, []byte(op.Username)),
		Username:     op.Username,
		FullName:     op.FullName,
		Email:        op.Email,
		Role:         op.Role,
		Capabilities: caps,
	})
}

func (d *demoBackend) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		d.writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "use POST")
		return
	}
	claims, ok := d.authorize(w, r)
	if !ok {
		return
	}
	d.mu.Lock()
	for refresh, sess := range d.sessions {
		if sess.sid == claims.SessionID {
			delete(d.sessions, refresh)
		}
	}
	d.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

// authorize validates the bearer token. An expired access token yields 401,
// which sends the API client through its refresh-and-retry path.
func (d *demoBackend) authorize(w http.ResponseWriter, r *http.Request) (*token.AccessClaims, bool) {
	const prefix = "Bearer "
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, prefix) {
		d.writeError(w, http.StatusUnauthorized, "MISSING_TOKEN", "bearer token required")
		return nil, false
	}
	claims, err := d.verifier.Validate(strings.TrimPrefix(header, prefix))
	if err != nil {
		d.writeError(w, http.StatusUnauthorized, "INVALID_TOKEN", "token rejected")
		return nil, false
	}
	return claims, true
}

func (d *demoBackend) mintPair(op demoOperator, sid string) (store.TokenPair, error) {
	access, err := d.issuer.Issue(token.AccessClaims{
		Name:      op.FullName,
		Role:      op.Role,
		TenantID:  demoTenant,
		SessionID: sid,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject: op.Username,
		},
	})
	if err != nil {
		return store.TokenPair{}, err
	}
	refresh, err := randomToken()
	if err != nil {
		return store.TokenPair{}, err
	}
	d.mu.Lock()
	d.sessions[refresh] = demoSession{username: op.Username, sid: sid}
	d.mu.Unlock()
	return store.TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func (d *demoBackend) writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]any{
			"code":    code,
			"message": message,
			"status":  status,
		},
		"request_id": uuid.NewString(),
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func randomToken() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate refresh token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
