package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/sakif/campus-ballot/internal/apperror"
	"github.com/sakif/campus-ballot/internal/model"
)

// contextKey is an unexported type used for context keys in this package.
//
// A package-private key type means no other package can read or shadow the
// identity stored in a request context.
type contextKey string

const identityKey contextKey = "identity"

// tokenQueryParam carries the token for websocket upgrades: browsers cannot
// set an Authorization header on a WebSocket handshake.
const tokenQueryParam = "access_token"

// RequireAuth is a middleware that enforces authentication on protected routes.
//
// It reads the bearer token, validates it, and stores the Identity in the
// request context. A missing or invalid token ends the request with 401.
//
// MIDDLEWARE PATTERN IN GO:
// A middleware takes an http.Handler and returns a new one that wraps it:
//
//	func Middleware(next http.Handler) http.Handler {
//	    return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
//	        // ... before ...
//	        next.ServeHTTP(w, r)
//	        // ... after ...
//	    })
//	}
func RequireAuth(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := extractIdentity(r, tokens)
			if err != nil {
				writeAuthError(w, http.StatusUnauthorized, "unauthorized", "valid authentication required")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

// RoleLookup returns the role currently stored for a user. A deleted user
// yields an apperror.ErrNotFound error.
type RoleLookup func(ctx context.Context, userID string) (model.UserType, error)

// CurrentRole replaces the role carried by the token with the stored one,
// so a promotion, demotion or deletion applies to tokens already issued.
// It must run after RequireAuth.
//
// A user that no longer exists gets 401; a store failure gets 503.
func CurrentRole(lookup RoleLookup) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := IdentityFromContext(r.Context())
			if !ok {
				writeAuthError(w, http.StatusUnauthorized, "unauthorized", "valid authentication required")
				return
			}

			role, err := lookup(r.Context(), id.UserID)
			switch {
			case errors.Is(err, apperror.ErrNotFound):
				writeAuthError(w, http.StatusUnauthorized, "unauthorized", "account no longer exists")
				return
			case err != nil:
				writeAuthError(w, http.StatusServiceUnavailable, "store_unavailable", "service temporarily unavailable")
				return
			}

			id.Role = role
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

// RequireAdmin rejects callers without the admin role with 403. It must run
// after RequireAuth.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := IdentityFromContext(r.Context())
		if !ok {
			writeAuthError(w, http.StatusUnauthorized, "unauthorized", "valid authentication required")
			return
		}
		if !id.IsAdmin() {
			writeAuthError(w, http.StatusForbidden, "forbidden", "admin role required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFromContext retrieves the caller's identity.
//
// Returns (Identity{}, false) for anonymous requests.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok && id.UserID != ""
}

// extractIdentity reads the token from the Authorization header, falling
// back to the access_token query parameter, and validates it.
func extractIdentity(r *http.Request, tokens *TokenService) (Identity, error) {
	return tokens.Validate(bearerToken(r))
}

func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	return r.URL.Query().Get(tokenQueryParam)
}

func writeAuthError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write([]byte(`{"error":"` + code + `","message":"` + message + `"}`)) //nolint:errcheck
}
