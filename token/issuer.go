package token

import (
	"crypto/ed25519"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// IssuerConfig defines a public type used by backoffice APIs.
//
// IssuerConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type IssuerConfig struct {
	Method   VerifyMode
	Key      []byte
	TTL      time.Duration
	Issuer   string
	Audience string
	KeyID    string
}

// Issuer mints access tokens for stub backends and test harnesses. The real
// console never signs tokens; issuance is server-side.
type Issuer struct {
	config IssuerConfig
}

// NewIssuer describes the newissuer operation and its observable behavior.
//
// NewIssuer may return an error when input validation, dependency calls, or security checks fail.
// NewIssuer does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NewIssuer(cfg IssuerConfig) (*Issuer, error) {
	if cfg.TTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	switch cfg.Method {
	case VerifyHS256:
		if len(cfg.Key) == 0 {
			return nil, errors.New("hs256 requires a signing key")
		}
	case VerifyEd25519:
		if _, err := parseEdPrivateKey(cfg.Key); err != nil {
			return nil, err
		}
	default:
		return nil, errors.New("unsupported signing method")
	}
	return &Issuer{config: cfg}, nil
}

// Issue describes the issue operation and its observable behavior.
//
// Issue fills ExpiresAt, IssuedAt, Issuer, and Audience from the
// configuration when the template leaves them zero.
// Issue may return an error when input validation, dependency calls, or security checks fail.
// Issue does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (i *Issuer) Issue(claims AccessClaims) (string, error) {
	now := time.Now()
	if claims.ExpiresAt == nil {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(i.config.TTL))
	}
	if claims.IssuedAt == nil {
		claims.IssuedAt = jwt.NewNumericDate(now)
	}
	if claims.Issuer == "" {
		claims.Issuer = i.config.Issuer
	}
	if len(claims.Audience) == 0 && i.config.Audience != "" {
		claims.Audience = jwt.ClaimStrings{i.config.Audience}
	}

	tok := jwt.NewWithClaims(i.signingMethod(), claims)
	if i.config.KeyID != "" {
		tok.Header["kid"] = i.config.KeyID
	}

	key, err := i.signKey()
	if err != nil {
		return "", err
	}
	return tok.SignedString(key)
}

func (i *Issuer) signingMethod() jwt.SigningMethod {
	switch i.config.Method {
	case VerifyHS256:
		return jwt.SigningMethodHS256
	default:
		return jwt.SigningMethodEdDSA
	}
}

func (i *Issuer) signKey() (interface{}, error) {
	switch i.config.Method {
	case VerifyHS256:
		return i.config.Key, nil
	default:
		return parseEdPrivateKey(i.config.Key)
	}
}

func parseEdPrivateKey(key []byte) (ed25519.PrivateKey, error) {
	if len(key) == ed25519.PrivateKeySize {
		return ed25519.PrivateKey(key), nil
	}
	parsed, err := jwt.ParseEdPrivateKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 private key")
	}
	edKey, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("invalid ed25519 private key type")
	}
	return edKey, nil
}

func parseEdPublicKey(key []byte) (ed25519.PublicKey, error) {
	if len(key) == ed25519.PublicKeySize {
		return ed25519.PublicKey(key), nil
	}
	parsed, err := jwt.ParseEdPublicKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 public key")
	}
	edKey, ok := parsed.(ed25519.PublicKey)
	if !ok {
		return nil, errors.New("invalid ed25519 public key type")
	}
	return edKey, nil
}
