package auth

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/jonwraymond/healops/observe"
)

// Middleware authenticates every request with authn and attaches the
// Identity to the request context. Unauthenticated requests get 401.
func Middleware(authn Authenticator, logger observe.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = observe.NopLogger()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			req := NewRequest(r)

			if !authn.Supports(ctx, req) {
				writeError(w, http.StatusUnauthorized, ErrMissingCredentials)
				return
			}

			res, err := authn.Authenticate(ctx, req)
			if err != nil {
				logger.Error(ctx, "authentication error", observe.F("error", err))
				writeError(w, http.StatusInternalServerError, errors.New("auth: internal error"))
				return
			}
			if !res.Authenticated {
				logger.Warn(ctx, "authentication failed",
					observe.F("method", string(res.Method)),
					observe.F("error", res.Error),
				)
				writeError(w, http.StatusUnauthorized, res.Error)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(ctx, res.Identity)))
		})
	}
}

// RequireRole rejects requests whose identity lacks role with 403.
// It must run after Middleware.
func RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := IdentityFromContext(r.Context())
			if id == nil {
				writeError(w, http.StatusUnauthorized, ErrMissingCredentials)
				return
			}
			if !id.HasRole(role) {
				writeError(w, http.StatusForbidden, ErrForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeError(w http.ResponseWriter, code int, err error) {
	if code == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", `Bearer realm="healops"`)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
