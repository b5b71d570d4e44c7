package http

import (
	"context"
	"net/http"
	"strings"

	"github.com/pixelgrove/pixelgrove/internal/accounts/domain"
	"github.com/pixelgrove/pixelgrove/internal/accounts/service"
	"github.com/pixelgrove/pixelgrove/pkg/httpx"
)

type ctxKey struct{}

// UserFromContext returns the authenticated user placed by RequireUser.
func UserFromContext(ctx context.Context) (domain.User, bool) {
	u, ok := ctx.Value(ctxKey{}).(domain.User)
	return u, ok
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

func writeUnauthorized(w http.ResponseWriter, detail string) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	httpx.WriteError(w, http.StatusUnauthorized, detail)
}

// RequireUser authenticates the bearer token and injects the resolved user
// into the request context. Anything short of a valid access token for an
// existing account gets a 401.
func RequireUser(auth *service.AuthService) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				writeUnauthorized(w, "Not authenticated")
				return
			}

			u, err := auth.CurrentUser(r.Context(), token)
			if err != nil {
				writeUnauthorized(w, "Could not validate credentials")
				return
			}

			ctx := context.WithValue(r.Context(), ctxKey{}, u)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRoles rejects authenticated users whose role is not admitted by
// the gate. Must sit inside RequireUser in the chain.
func RequireRoles(gate *service.RoleGate) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u, ok := UserFromContext(r.Context())
			if !ok {
				writeUnauthorized(w, "Not authenticated")
				return
			}
			if err := gate.Authorize(u); err != nil {
				httpx.WriteError(w, http.StatusForbidden, "Operation not permitted")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
