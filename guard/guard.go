package guard

import (
	"context"
	"net/http"
	"net/url"

	backoffice "github.com/lendkit/backoffice"
	"github.com/lendkit/backoffice/capability"
	"github.com/lendkit/backoffice/token"
)

type identityContextKey struct{}

// IdentityFromContext returns the claims a guard attached to the request.
func IdentityFromContext(ctx context.Context) (token.AccessClaims, bool) {
	claims, ok := ctx.Value(identityContextKey{}).(token.AccessClaims)
	return claims, ok
}

// Config adjusts how a guard rejects. The zero value is API mode: plain
// 401/403 status responses.
type Config struct {
	// LoginPath switches unauthenticated rejections to a redirect, with
	// the original path carried in the "from" query parameter. Forbidden
	// is always a 403; a redirect loop helps nobody who is already
	// signed in.
	LoginPath string

	// Metrics, when set, counts allowed/unauthenticated/forbidden
	// outcomes.
	Metrics *backoffice.Metrics
}

// Guard builds the middleware all Require* helpers share: session check,
// optional capability check, identity injection.
func Guard(c *backoffice.Coordinator, roles *capability.RoleManager, cfg Config, capabilities ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := c.Identity()
			if !ok {
				cfg.Metrics.Inc(backoffice.MetricGuardUnauthenticated)
				rejectUnauthenticated(w, r, cfg)
				return
			}

			if len(capabilities) > 0 {
				if roles == nil || !roles.AllowsAll(claims.Role, capabilities...) {
					cfg.Metrics.Inc(backoffice.MetricGuardForbidden)
					http.Error(w, "forbidden", http.StatusForbidden)
					return
				}
			}

			cfg.Metrics.Inc(backoffice.MetricGuardAllowed)
			ctx := context.WithValue(r.Context(), identityContextKey{}, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func rejectUnauthenticated(w http.ResponseWriter, r *http.Request, cfg Config) {
	if cfg.LoginPath == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	target := cfg.LoginPath + "?from=" + url.QueryEscape(r.URL.RequestURI())
	http.Redirect(w, r, target, http.StatusFound)
}
