package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
)

// contextKey is an unexported type used for context keys in this package, so
// no other package can read or overwrite the identity by accident.
type contextKey string

const identityKey contextKey = "identity"

// Client-facing messages for the two ways a protected request can fail.
const (
	MsgTokenRequired = "Access token required"
	MsgInvalidToken  = "Invalid token"
)

// RequireAuth is a middleware that enforces a bearer token on protected routes.
//
//   - no "Authorization: Bearer <token>" header → 401 Unauthorized
//   - a token that fails verification          → 403 Forbidden
//
// Either way the request never reaches the handler, so nothing is written to
// the store. On success the caller's Identity is stored in the context.
func RequireAuth(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := bearerToken(r)
			if !ok {
				writeAuthError(w, http.StatusUnauthorized, MsgTokenRequired)
				return
			}

			identity, err := tokens.Verify(raw)
			if err != nil {
				writeAuthError(w, http.StatusForbidden, MsgInvalidToken)
				return
			}

			ctx := WithIdentity(r.Context(), identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// WithIdentity returns a copy of ctx carrying identity.
func WithIdentity(ctx context.Context, identity *Identity) context.Context {
	return context.WithValue(ctx, identityKey, identity)
}

// IdentityFromContext retrieves the authenticated caller.
//
// Returns (nil, false) if the request did not pass through RequireAuth.
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(identityKey).(*Identity)
	return id, ok && id != nil
}

// bearerToken extracts the token from "Authorization: Bearer <token>".
// The scheme is matched case-insensitively, per RFC 6750.
func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func writeAuthError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
