package backoffice

import (
	"errors"
	"time"
)

// Config defines a public type used by backoffice APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	Session SessionConfig
	Token   TokenConfig
	Bus     BusConfig
	Audit   AuditConfig
	Metrics MetricsConfig
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig defines a public type used by backoffice APIs.
//
// SessionConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type SessionConfig struct {
	// TickInterval is the cadence of the periodic expiry recheck.
	TickInterval time.Duration
	// DefaultWarningThreshold drives the Warning state for consumers that
	// poll the accessor instead of registering a callback.
	DefaultWarningThreshold time.Duration
	// StoreTimeout bounds every storage call the run loop makes on its own
	// behalf (initial load, extend, refresh re-read).
	StoreTimeout time.Duration
}

/*
====================================
TOKEN CONFIG
====================================
*/

// TokenConfig defines a public type used by backoffice APIs.
//
// TokenConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type TokenConfig struct {
	VerifyMethod string // "none" (default), "hs256", "ed25519"
	VerifyKey    []byte
	VerifyKeys   map[string][]byte // optional kid → key pinning (ed25519)
	Issuer       string
	Audience     string
	Leeway       time.Duration
}

/*
====================================
BUS CONFIG
====================================
*/

// BusConfig defines a public type used by backoffice APIs.
//
// BusConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type BusConfig struct {
	SubscriberBuffer int
	BacklogLimit     int
	DedupeWindow     int
}

/*
====================================
AUDIT CONFIG
====================================
*/

// AuditConfig defines a public type used by backoffice APIs.
//
// AuditConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

/*
====================================
METRICS CONFIG
====================================
*/

// MetricsConfig defines a public type used by backoffice APIs.
//
// MetricsConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULTS
====================================
*/

// DefaultConfig returns the configuration New starts from: 1s recheck
// cadence, 5m warning threshold, unverified token parsing, and disabled
// audit/metrics.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		Session: SessionConfig{
			TickInterval:            time.Second,
			DefaultWarningThreshold: 5 * time.Minute,
			StoreTimeout:            3 * time.Second,
		},
		Token: TokenConfig{
			VerifyMethod: "none",
		},
		Bus: BusConfig{
			SubscriberBuffer: 16,
			BacklogLimit:     32,
			DedupeWindow:     256,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

// SharedWorkstationConfig tunes the coordinator for branch workstations
// several operators share during a shift: the warning fires earlier so the
// current operator has time to wrap up or hand off, and the journal and
// metrics are on so sign-ins and expiries on the shared machine stay
// attributable.
func SharedWorkstationConfig() Config {
	cfg := defaultConfig()
	cfg.Session.DefaultWarningThreshold = 2 * time.Minute
	cfg.Audit.Enabled = true
	cfg.Metrics.Enabled = true
	return cfg
}

// UnattendedDisplayConfig tunes the coordinator for wallboards and status
// displays that stay signed in all day: a coarser recheck cadence, a wide
// warning threshold so whatever renews the session has plenty of margin,
// and metrics for the dashboard that watches the watchers.
func UnattendedDisplayConfig() Config {
	cfg := defaultConfig()
	cfg.Session.TickInterval = 5 * time.Second
	cfg.Session.DefaultWarningThreshold = 15 * time.Minute
	cfg.Metrics.Enabled = true
	return cfg
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Token.VerifyKey = cloneBytes(cfg.Token.VerifyKey)
	if cfg.Token.VerifyKeys != nil {
		out.Token.VerifyKeys = make(map[string][]byte, len(cfg.Token.VerifyKeys))
		for kid, key := range cfg.Token.VerifyKeys {
			out.Token.VerifyKeys[kid] = cloneBytes(key)
		}
	}
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate describes the validate operation and its observable behavior.
//
// Validate may return an error when input validation, dependency calls, or security checks fail.
// Validate does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *Config) Validate() error {
	// Session
	if c.Session.TickInterval <= 0 {
		return errors.New("Session TickInterval must be > 0")
	}
	if c.Session.TickInterval > time.Minute {
		return errors.New("Session TickInterval must be <= 1m")
	}
	if c.Session.DefaultWarningThreshold <= 0 {
		return errors.New("Session DefaultWarningThreshold must be > 0")
	}
	if c.Session.StoreTimeout <= 0 {
		return errors.New("Session StoreTimeout must be > 0")
	}

	// Token
	switch c.Token.VerifyMethod {
	case "none", "hs256", "ed25519":
	default:
		return errors.New("unsupported Token VerifyMethod")
	}
	if c.Token.VerifyMethod == "hs256" && len(c.Token.VerifyKey) == 0 {
		return errors.New("hs256 requires Token VerifyKey")
	}
	if c.Token.VerifyMethod == "ed25519" && len(c.Token.VerifyKey) == 0 && len(c.Token.VerifyKeys) == 0 {
		return errors.New("ed25519 requires Token VerifyKey or VerifyKeys")
	}
	if c.Token.VerifyMethod == "none" && (len(c.Token.VerifyKey) != 0 || len(c.Token.VerifyKeys) != 0) {
		return errors.New("Token VerifyKey set but VerifyMethod is none")
	}
	if c.Token.Leeway < 0 {
		return errors.New("Token Leeway must be >= 0")
	}
	if c.Token.Leeway > 2*time.Minute {
		return errors.New("Token Leeway must be <= 2m")
	}

	// Bus
	if c.Bus.SubscriberBuffer <= 0 {
		return errors.New("Bus SubscriberBuffer must be > 0")
	}
	if c.Bus.BacklogLimit < 0 {
		return errors.New("Bus BacklogLimit must be >= 0")
	}
	if c.Bus.DedupeWindow < 0 {
		return errors.New("Bus DedupeWindow must be >= 0")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when Audit is enabled")
	}

	return nil
}
