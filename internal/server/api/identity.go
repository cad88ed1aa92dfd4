package api

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/ayusman/mudra/internal/store"
)

// Identity headers set by the authenticating gateway.
const (
	HeaderUserID    = "X-User-ID"
	HeaderUserRole  = "X-User-Role"
	HeaderUserEmail = "X-User-Email"
	HeaderUserName  = "X-User-Name"
)

type userKey struct{}

// WithUser returns a context carrying the caller.
func WithUser(ctx context.Context, u *store.User) context.Context {
	return context.WithValue(ctx, userKey{}, u)
}

// UserFromContext returns the caller set by Identity, or nil.
func UserFromContext(ctx context.Context) *store.User {
	u, _ := ctx.Value(userKey{}).(*store.User)
	return u
}

// BearerAuth rejects requests without the shared token. An empty token
// disables the check.
func BearerAuth(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if token == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			const prefix = "Bearer "
			if !strings.HasPrefix(auth, prefix) || subtle.ConstantTimeCompare([]byte(auth[len(prefix):]), []byte(token)) != 1 {
				writeError(w, http.StatusUnauthorized, "Invalid or missing bearer token")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Identity resolves the caller from the gateway headers and makes sure a
// local profile exists. The role header, when present, decides authorization
// for the request.
func Identity(users store.UserStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := strings.TrimSpace(r.Header.Get(HeaderUserID))
			if id == "" {
				writeError(w, http.StatusUnauthorized, "Missing user identity")
				return
			}
			role := strings.ToLower(strings.TrimSpace(r.Header.Get(HeaderUserRole)))
			if role != "" && role != store.RoleAdmin {
				role = store.RoleUser
			}

			u, err := users.Ensure(r.Context(), &store.User{
				ID:    id,
				Email: r.Header.Get(HeaderUserEmail),
				Name:  r.Header.Get(HeaderUserName),
				Role:  role,
			})
			if err != nil {
				log.Error().Err(err).Str("user_id", id).Msg("failed to load user")
				writeError(w, http.StatusInternalServerError, "Failed to load user")
				return
			}

			caller := *u
			if role != "" {
				caller.Role = role
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), &caller)))
		})
	}
}

// RequireAdmin only lets admin callers through.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u := UserFromContext(r.Context())
		if u == nil {
			writeError(w, http.StatusUnauthorized, "Missing user identity")
			return
		}
		if u.Role != store.RoleAdmin {
			writeError(w, http.StatusForbidden, "Admin access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// caller returns the request's user. Handlers sit behind Identity, so a nil
// user means the route was wired without it.
func caller(w http.ResponseWriter, r *http.Request) (*store.User, bool) {
	u := UserFromContext(r.Context())
	if u == nil {
		writeError(w, http.StatusUnauthorized, "Missing user identity")
		return nil, false
	}
	return u, true
}
