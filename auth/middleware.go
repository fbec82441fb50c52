package auth

import (
	"context"
	"net/http"
	"strings"
)

type contextKey string

// OwnerKey carries the authenticated device ID through the request context.
const OwnerKey contextKey = "owner"

// Middleware handles JWT validation for incoming HTTP requests. The core
// trusts the identity it injects as the session owner and performs no
// further verification of its own.
func Middleware(tokens *TokenManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			tokenStr, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || tokenStr == "" {
				unauthorized(w, "authorization token is missing")
				return
			}

			claims, err := tokens.Validate(tokenStr)
			if err != nil {
				unauthorized(w, "invalid or expired token")
				return
			}

			// Inject the device identity for downstream handlers.
			ctx := context.WithValue(r.Context(), OwnerKey, claims.DeviceID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OwnerFromContext returns the authenticated device ID, if any.
func OwnerFromContext(ctx context.Context) (string, bool) {
	owner, ok := ctx.Value(OwnerKey).(string)
	return owner, ok && owner != ""
}

func unauthorized(w http.ResponseWriter, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", "Bearer")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"detail":"` + detail + `"}`))
}
