package guard

import (
	"net/http"

	backoffice "github.com/lendkit/backoffice"
	"github.com/lendkit/backoffice/capability"
)

// RequireSession returns middleware that rejects requests with 401 unless
// the coordinator reports a live session.
//
//	Docs: docs/session.md
func RequireSession(c *backoffice.Coordinator) func(http.Handler) http.Handler {
	return Guard(c, nil, Config{})
}

// RequireSessionRedirect is [RequireSession] for browser navigation:
// unauthenticated requests are redirected to loginPath instead of 401.
func RequireSessionRedirect(c *backoffice.Coordinator, loginPath string) func(http.Handler) http.Handler {
	return Guard(c, nil, Config{LoginPath: loginPath})
}

// RequireCapability returns middleware that additionally resolves the
// session's role claim through the role manager and rejects with 403 when
// any listed capability is missing.
func RequireCapability(c *backoffice.Coordinator, roles *capability.RoleManager, capabilities ...string) func(http.Handler) http.Handler {
	return Guard(c, roles, Config{}, capabilities...)
}

// RequireCapabilityRedirect is [RequireCapability] with login redirects
// for the unauthenticated case; missing capabilities still answer 403.
func RequireCapabilityRedirect(c *backoffice.Coordinator, roles *capability.RoleManager, loginPath string, capabilities ...string) func(http.Handler) http.Handler {
	return Guard(c, roles, Config{LoginPath: loginPath}, capabilities...)
}
