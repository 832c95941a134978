package backoffice

import (
	"errors"
	"strings"
	"time"
)

// LintSeverity defines a public type used by backoffice APIs.
//
// LintSeverity instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type LintSeverity uint8

const (
	// LintInfo is an exported constant or variable used by the session coordinator.
	LintInfo LintSeverity = iota
	// LintWarn is an exported constant or variable used by the session coordinator.
	LintWarn
	// LintHigh is an exported constant or variable used by the session coordinator.
	LintHigh
)

// String describes the string operation and its observable behavior.
//
// String may return an error when input validation, dependency calls, or security checks fail.
// String does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s LintSeverity) String() string {
	switch s {
	case LintInfo:
		return "INFO"
	case LintWarn:
		return "WARN"
	case LintHigh:
		return "HIGH"
	default:
		return "UNKNOWN"
	}
}

// ConfigWarning defines a public type used by backoffice APIs.
//
// ConfigWarning instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type ConfigWarning struct {
	Code     string
	Message  string
	Severity LintSeverity
}

// ConfigWarnings defines a public type used by backoffice APIs.
//
// ConfigWarnings instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type ConfigWarnings []ConfigWarning

// Codes describes the codes operation and its observable behavior.
//
// Codes may return an error when input validation, dependency calls, or security checks fail.
// Codes does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (ws ConfigWarnings) Codes() []string {
	out := make([]string, 0, len(ws))
	for _, w := range ws {
		out = append(out, w.Code)
	}
	return out
}

// BySeverity describes the byseverity operation and its observable behavior.
//
// BySeverity may return an error when input validation, dependency calls, or security checks fail.
// BySeverity does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (ws ConfigWarnings) BySeverity(min LintSeverity) ConfigWarnings {
	var out ConfigWarnings
	for _, w := range ws {
		if w.Severity >= min {
			out = append(out, w)
		}
	}
	return out
}

// AsError describes the aserror operation and its observable behavior.
//
// AsError may return an error when input validation, dependency calls, or security checks fail.
// AsError does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (ws ConfigWarnings) AsError(min LintSeverity) error {
	flagged := ws.BySeverity(min)
	if len(flagged) == 0 {
		return nil
	}
	return errors.New("config lint: " + strings.Join(flagged.Codes(), ", "))
}

// Lint reports configurations that pass Validate but will behave
// surprisingly in a real console deployment. Validate gates what cannot
// work at all; Lint flags what will work and then bite an operator.
//
// Lint may return an error when input validation, dependency calls, or security checks fail.
// Lint does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *Config) Lint() ConfigWarnings {
	var ws ConfigWarnings

	warn := func(code, message string, severity LintSeverity) {
		ws = append(ws, ConfigWarning{Code: code, Message: message, Severity: severity})
	}

	// Session
	if c.Session.TickInterval > 5*time.Second {
		warn("tick_interval_coarse", "Session.TickInterval above 5s makes warning and expiry edges late by up to a full tick", LintWarn)
	}
	if c.Session.DefaultWarningThreshold > 0 && c.Session.DefaultWarningThreshold < 30*time.Second {
		warn("warning_threshold_short", "Session.DefaultWarningThreshold below 30s leaves users almost no time to extend", LintWarn)
	}
	if c.Session.DefaultWarningThreshold > 0 && c.Session.DefaultWarningThreshold <= c.Session.TickInterval {
		warn("warning_under_tick", "Session.DefaultWarningThreshold at or below TickInterval cannot fire reliably", LintHigh)
	}

	// Token
	if c.Token.VerifyMethod == "none" {
		warn("verify_disabled", "Token.VerifyMethod none trusts claims without a signature check", LintWarn)
	}
	if c.Token.VerifyMethod == "hs256" && len(c.Token.VerifyKey) < 32 {
		warn("verify_key_short", "Token.VerifyKey under 256 bits weakens hs256 verification", LintHigh)
	}
	if c.Token.Leeway > 30*time.Second {
		warn("leeway_large", "Token.Leeway above 30s widens the expiry window on every screen", LintWarn)
	}

	// Bus
	if c.Bus.BacklogLimit == 0 {
		warn("backlog_disabled", "Bus.BacklogLimit 0 means late subscribers miss session events", LintWarn)
	}
	if c.Bus.DedupeWindow == 0 {
		warn("dedupe_disabled", "Bus.DedupeWindow 0 lets replayed notifications reach subscribers twice", LintWarn)
	}

	// Audit
	if !c.Audit.Enabled {
		warn("audit_disabled", "Audit.Enabled false leaves operator actions unjournaled", LintInfo)
	}
	if c.Audit.Enabled && !c.Audit.DropIfFull {
		warn("audit_blocking", "Audit.DropIfFull false lets a slow sink block console actions", LintHigh)
	}

	return ws
}
