package token

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AccessClaims defines a public type used by backoffice APIs.
//
// AccessClaims instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AccessClaims struct {
	Name      string `json:"name,omitempty"`
	Role      string `json:"role,omitempty"`
	TenantID  string `json:"tenant,omitempty"`
	SessionID string `json:"sid,omitempty"`
	jwt.RegisteredClaims
}

// ExpiryTime describes the expirytime operation and its observable behavior.
//
// ExpiryTime may return an error when input validation, dependency calls, or security checks fail.
// ExpiryTime does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *AccessClaims) ExpiryTime() time.Time {
	if c == nil || c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}

// Remaining describes the remaining operation and its observable behavior.
//
// Remaining may return an error when input validation, dependency calls, or security checks fail.
// Remaining does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *AccessClaims) Remaining(now time.Time) time.Duration {
	exp := c.ExpiryTime()
	if exp.IsZero() {
		return 0
	}
	return exp.Sub(now)
}

// ExpiredAt describes the expiredat operation and its observable behavior.
//
// ExpiredAt may return an error when input validation, dependency calls, or security checks fail.
// ExpiredAt does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *AccessClaims) ExpiredAt(now time.Time) bool {
	exp := c.ExpiryTime()
	if exp.IsZero() {
		return true
	}
	return !now.Before(exp)
}
