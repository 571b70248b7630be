package guard

import (
	"context"
	"net/http"

	goSession "github.com/MrEthical07/goSession"
)

type sessionContextKey struct{}

// SessionFromContext returns the snapshot stored by an allowing Require handler.
func SessionFromContext(ctx context.Context) (goSession.Session, bool) {
	s, ok := ctx.Value(sessionContextKey{}).(goSession.Session)
	return s, ok
}

// Require returns middleware enforcing requiredRole.
//
// Pending answers 503 with Retry-After so the caller polls again. Redirect outcomes
// answer 303 to the configured path. Allow calls next with the snapshot in the request
// context.
func (g *Guard) Require(requiredRole string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			d := g.Authorize(r.Context(), requiredRole)

			switch d.Outcome {
			case OutcomeAllow:
				ctx := context.WithValue(r.Context(), sessionContextKey{}, d.Session)
				next.ServeHTTP(w, r.WithContext(ctx))
			case OutcomePending:
				w.Header().Set("Retry-After", "1")
				http.Error(w, "Loading...", http.StatusServiceUnavailable)
			default:
				http.Redirect(w, r, d.Redirect, http.StatusSeeOther)
			}
		})
	}
}

// RequireAuthenticated is Require with no role requirement.
func (g *Guard) RequireAuthenticated() func(http.Handler) http.Handler {
	return g.Require("")
}
