//go:build integration
// +build integration

package test

import (
	"crypto/ed25519"
	"crypto/rand"
	"testing"
	"time"

	gjwt "github.com/golang-jwt/jwt/v5"

	"github.com/lendkit/backoffice/token"
)

func TestTokenIntegrationKidPinning(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey failed: %v", err)
	}

	issuer, err := token.NewIssuer(token.IssuerConfig{
		Method:   token.VerifyEd25519,
		Key:      priv,
		TTL:      time.Minute,
		Issuer:   "lendkit",
		Audience: "console",
		KeyID:    "2026-01",
	})
	if err != nil {
		t.Fatalf("NewIssuer failed: %v", err)
	}

	access, err := issuer.Issue(token.AccessClaims{
		Name:      "Dana Okafor",
		Role:      "credit-officer",
		SessionID: "sid-1",
	})
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	parser, err := token.NewParser(token.Config{
		VerifyMode: token.VerifyEd25519,
		VerifyKeys: map[string][]byte{"2026-01": pub},
		Issuer:     "lendkit",
		Audience:   "console",
	})
	if err != nil {
		t.Fatalf("NewParser failed: %v", err)
	}

	claims, err := parser.Validate(access)
	if err != nil {
		t.Fatalf("Validate pinned token failed: %v", err)
	}
	if claims.Role != "credit-officer" {
		t.Fatalf("expected role claim to survive the round trip, got %q", claims.Role)
	}

	// Same signing key, unknown kid: a rotated-out header must be rejected
	// even though the signature itself checks out.
	badClaims := token.AccessClaims{
		Name: "Dana Okafor",
		Role: "credit-officer",
		RegisteredClaims: gjwt.RegisteredClaims{
			Issuer:    "lendkit",
			Audience:  gjwt.ClaimStrings{"console"},
			ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Minute)),
			IssuedAt:  gjwt.NewNumericDate(time.Now()),
		},
	}
	badToken := gjwt.NewWithClaims(gjwt.SigningMethodEdDSA, badClaims)
	badToken.Header["kid"] = "unknown"
	signedBad, err := badToken.SignedString(priv)
	if err != nil {
		t.Fatalf("SignedString failed: %v", err)
	}

	if _, err := parser.Parse(signedBad); err == nil {
		t.Fatal("expected unknown kid token to fail")
	}
}

func TestTokenIntegrationExpiredTokenStillParses(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey failed: %v", err)
	}

	issuer, err := token.NewIssuer(token.IssuerConfig{
		Method: token.VerifyEd25519,
		Key:    priv,
		TTL:    time.Minute,
		Issuer: "lendkit",
	})
	if err != nil {
		t.Fatalf("NewIssuer failed: %v", err)
	}

	access, err := issuer.Issue(token.AccessClaims{
		Name: "Ruth Auditor",
		Role: "auditor",
		RegisteredClaims: gjwt.RegisteredClaims{
			ExpiresAt: gjwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	})
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	parser, err := token.NewParser(token.Config{
		VerifyMode: token.VerifyEd25519,
		Key:        pub,
	})
	if err != nil {
		t.Fatalf("NewParser failed: %v", err)
	}

	// The coordinator needs the expiry of an already-expired token to derive
	// its state, so Parse must hand the claims back.
	claims, err := parser.Parse(access)
	if err != nil {
		t.Fatalf("Parse expired token failed: %v", err)
	}
	if !claims.ExpiredAt(time.Now()) {
		t.Fatal("expected claims to report expiry")
	}

	if _, err := parser.Validate(access); err == nil {
		t.Fatal("expected Validate to reject the expired token")
	}
}
