//go:build integration
// +build integration

package test

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/lendkit/backoffice/store"
	"github.com/lendkit/backoffice/token"
)

var integrationSigningKey = []byte("integration-suite-hs256-key-0123")

func newIntegrationStore(t *testing.T) (*store.Redis, *redis.Client, func()) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	tokens := store.NewRedis(rdb, "console", time.Hour)

	return tokens, rdb, func() {
		_ = rdb.Close()
		mr.Close()
	}
}

func newIntegrationIssuer(t *testing.T, ttl time.Duration) *token.Issuer {
	t.Helper()

	issuer, err := token.NewIssuer(token.IssuerConfig{
		Method: token.VerifyHS256,
		Key:    integrationSigningKey,
		TTL:    ttl,
		Issuer: "lendkit-integration",
	})
	if err != nil {
		t.Fatalf("issuer setup failed: %v", err)
	}
	return issuer
}

func makePair(t *testing.T, issuer *token.Issuer, name, role, refresh string) store.TokenPair {
	t.Helper()

	access, err := issuer.Issue(token.AccessClaims{
		Name:      name,
		Role:      role,
		TenantID:  "lendkit",
		SessionID: "sess-" + refresh,
	})
	if err != nil {
		t.Fatalf("issue access token failed: %v", err)
	}
	return store.TokenPair{AccessToken: access, RefreshToken: refresh}
}
