package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/hackgods/clinicflow-scheduling/internal/appointment"
	"github.com/hackgods/clinicflow-scheduling/internal/identity"
	"github.com/hackgods/clinicflow-scheduling/internal/logging"
)

const callerKey contextKey = "caller"

// Authenticate resolves the bearer token to a caller or answers 401.
func Authenticate(resolver identity.Resolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := identity.BearerToken(r.Header.Get("Authorization"))
			if err != nil {
				writeError(w, http.StatusUnauthorized, "unauthorized", err.Error())
				return
			}

			user, err := resolver.Resolve(r.Context(), token)
			if err != nil {
				if !errors.Is(err, identity.ErrInvalidToken) {
					logging.FromContext(r.Context()).Warn().Err(err).Msg("identity lookup failed")
				}
				writeError(w, http.StatusUnauthorized, "unauthorized", identity.ErrInvalidToken.Error())
				return
			}

			caller := appointment.Caller{ID: user.ID, Email: user.Email, Role: appointment.Role(user.Role)}
			ctx := context.WithValue(r.Context(), callerKey, caller)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRoles answers 403 unless the caller has one of roles.
func RequireRoles(roles ...appointment.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			caller, ok := CallerFrom(r.Context())
			if !ok || caller.Role == "" {
				writeError(w, http.StatusForbidden, "forbidden", "missing role")
				return
			}
			for _, role := range roles {
				if caller.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			writeError(w, http.StatusForbidden, "forbidden", "insufficient permissions")
		})
	}
}

func CallerFrom(ctx context.Context) (appointment.Caller, bool) {
	c, ok := ctx.Value(callerKey).(appointment.Caller)
	return c, ok
}
