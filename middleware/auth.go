package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/justbri/moviepicker/services"
)

type identityKey struct{}

// UserSessions resolves the signed-in user id of a request.
type UserSessions interface {
	UserID(r *http.Request) (int64, bool)
}

// RequireAuth rejects anonymous requests with 401 and puts the caller's
// services.Identity into the request context.
func RequireAuth(sessions UserSessions, users services.Users) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, ok := sessions.UserID(r)
			if !ok {
				unauthorized(w, r, "no session")
				return
			}

			// Verify user still exists
			user, err := users.ByID(r.Context(), userID)
			if err != nil {
				slog.Warn("Session user not found", "user_id", userID, "error", err)
				unauthorized(w, r, "user not found")
				return
			}

			ctx := WithIdentity(r.Context(), services.IdentityOf(user))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func WithIdentity(ctx context.Context, id services.Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFrom returns the identity stored by RequireAuth.
func IdentityFrom(ctx context.Context) (services.Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(services.Identity)
	return id, ok
}

func unauthorized(w http.ResponseWriter, r *http.Request, reason string) {
	slog.Debug("Unauthorized request", "path", r.URL.Path, "reason", reason)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"authentication required"}`))
}
