// Package middleware contains the HTTP middleware chain applied by the
// server: bearer-token auth, request logging, and CORS.
package middleware

import (
	"context"
	"net/http"
	"strings"
)

// contextKey is a private type for request context keys.
type contextKey string

const userIDKey contextKey = "user_id"

// TokenVerifier validates a bearer token and returns the user id it was
// issued for. Implemented by the auth service.
type TokenVerifier interface {
	VerifyToken(token string) (string, error)
}

// Auth returns middleware that validates the Authorization header. A
// missing token fails with 401; a token that does not verify fails with
// 403. On success the user id is stored in the request context.
func Auth(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractBearer(r)
			if token == "" {
				writeAuthError(w, http.StatusUnauthorized, "missing authentication token")
				return
			}

			userID, err := verifier.VerifyToken(token)
			if err != nil {
				writeAuthError(w, http.StatusForbidden, "invalid or expired token")
				return
			}

			ctx := context.WithValue(r.Context(), userIDKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserID extracts the authenticated user id stored by Auth. The second
// return is false for requests that did not pass through Auth.
func UserID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey).(string)
	return id, ok
}

// extractBearer looks for a token in the Authorization header.
func extractBearer(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return ""
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// writeAuthError sends a JSON error body with the given status.
func writeAuthError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write([]byte(`{"error":"` + msg + `"}`))
}
