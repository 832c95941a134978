package token

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// VerifyMode defines a public type used by backoffice APIs.
//
// VerifyMode instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type VerifyMode string

const (
	// VerifyNone is an exported constant or variable used by the session coordinator.
	VerifyNone VerifyMode = "none"
	// VerifyHS256 is an exported constant or variable used by the session coordinator.
	VerifyHS256 VerifyMode = "hs256"
	// VerifyEd25519 is an exported constant or variable used by the session coordinator.
	VerifyEd25519 VerifyMode = "ed25519"
)

// Config defines a public type used by backoffice APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	VerifyMode VerifyMode
	Key        []byte
	VerifyKeys map[string][]byte
	Issuer     string
	Audience   string
	Leeway     time.Duration
}

// Parser defines a public type used by backoffice APIs.
//
// Parser instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Parser struct {
	config Config
}

// NewParser describes the newparser operation and its observable behavior.
//
// NewParser may return an error when input validation, dependency calls, or security checks fail.
// NewParser does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NewParser(cfg Config) (*Parser, error) {
	if cfg.VerifyMode == "" {
		cfg.VerifyMode = VerifyNone
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}

	switch cfg.VerifyMode {
	case VerifyNone:
	case VerifyHS256:
		if len(cfg.Key) == 0 && len(cfg.VerifyKeys) == 0 {
			return nil, errors.New("hs256 requires a key or verify key set")
		}
	case VerifyEd25519:
		if len(cfg.Key) > 0 {
			if _, err := parseEdPublicKey(cfg.Key); err != nil {
				return nil, err
			}
		}
		if len(cfg.Key) == 0 && len(cfg.VerifyKeys) == 0 {
			return nil, errors.New("ed25519 requires a public key or verify key set")
		}
		for kid, key := range cfg.VerifyKeys {
			if strings.TrimSpace(kid) == "" {
				return nil, errors.New("verify key map contains empty kid")
			}
			if _, err := parseEdPublicKey(key); err != nil {
				return nil, fmt.Errorf("invalid ed25519 verify key for kid %q: %w", kid, err)
			}
		}
	default:
		return nil, errors.New("unsupported verify mode")
	}

	return &Parser{config: cfg}, nil
}

// Parse describes the parse operation and its observable behavior.
//
// Parse extracts claims without validating time-based claims: the coordinator
// needs the expiry of an already-expired token to compute its state. Signature
// verification follows the configured mode.
// Parse may return an error when input validation, dependency calls, or security checks fail.
// Parse does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (p *Parser) Parse(tokenStr string) (*AccessClaims, error) {
	if strings.TrimSpace(tokenStr) == "" {
		return nil, errors.New("empty token")
	}

	var claims *AccessClaims
	var err error
	if p.config.VerifyMode == VerifyNone {
		claims, err = p.parseUnverified(tokenStr)
	} else {
		claims, err = p.parseVerified(tokenStr, true)
	}
	if err != nil {
		return nil, err
	}

	if claims.ExpiresAt == nil {
		return nil, errors.New("token missing expiry claim")
	}
	return claims, nil
}

// Validate describes the validate operation and its observable behavior.
//
// Validate enforces the full claim set: expiry (with leeway), issuer, and
// audience when configured, in addition to the Parse checks.
// Validate may return an error when input validation, dependency calls, or security checks fail.
// Validate does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (p *Parser) Validate(tokenStr string) (*AccessClaims, error) {
	if p.config.VerifyMode == VerifyNone {
		claims, err := p.Parse(tokenStr)
		if err != nil {
			return nil, err
		}
		return claims, p.validateRegistered(claims)
	}

	claims, err := p.parseVerified(tokenStr, false)
	if err != nil {
		return nil, err
	}
	if claims.ExpiresAt == nil {
		return nil, errors.New("token missing expiry claim")
	}
	return claims, nil
}

func (p *Parser) parseUnverified(tokenStr string) (*AccessClaims, error) {
	parser := jwt.NewParser()
	token, _, err := parser.ParseUnverified(tokenStr, &AccessClaims{})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*AccessClaims)
	if !ok {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}

func (p *Parser) parseVerified(tokenStr string, skipTimeChecks bool) (*AccessClaims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{p.method().Alg()}),
	}
	if skipTimeChecks {
		options = append(options, jwt.WithoutClaimsValidation())
	} else {
		if p.config.Leeway > 0 {
			options = append(options, jwt.WithLeeway(p.config.Leeway))
		}
		if p.config.Issuer != "" {
			options = append(options, jwt.WithIssuer(p.config.Issuer))
		}
		if p.config.Audience != "" {
			options = append(options, jwt.WithAudience(p.config.Audience))
		}
	}

	parser := jwt.NewParser(options...)
	token, err := parser.ParseWithClaims(tokenStr, &AccessClaims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != p.method().Alg() {
			return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
		}

		if len(p.config.VerifyKeys) > 0 {
			kid, _ := t.Header["kid"].(string)
			if kid == "" {
				return nil, errors.New("missing kid")
			}
			key, ok := p.config.VerifyKeys[kid]
			if !ok {
				return nil, errors.New("unknown kid")
			}
			return p.verifyKey(key)
		}

		return p.verifyKey(p.config.Key)
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*AccessClaims)
	if !ok || !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}

func (p *Parser) validateRegistered(claims *AccessClaims) error {
	now := time.Now()
	if claims.ExpiryTime().Add(p.config.Leeway).Before(now) {
		return jwt.ErrTokenExpired
	}
	if p.config.Issuer != "" && claims.Issuer != p.config.Issuer {
		return jwt.ErrTokenInvalidIssuer
	}
	if p.config.Audience != "" {
		found := false
		for _, aud := range claims.Audience {
			if aud == p.config.Audience {
				found = true
				break
			}
		}
		if !found {
			return jwt.ErrTokenInvalidAudience
		}
	}
	return nil
}

func (p *Parser) method() jwt.SigningMethod {
	switch p.config.VerifyMode {
	case VerifyHS256:
		return jwt.SigningMethodHS256
	default:
		return jwt.SigningMethodEdDSA
	}
}

func (p *Parser) verifyKey(key []byte) (interface{}, error) {
	switch p.config.VerifyMode {
	case VerifyHS256:
		return key, nil
	default:
		return parseEdPublicKey(key)
	}
}
