package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// RequireBearer guards admin routes with a static bearer token. An empty token
// leaves the routes open, for local development.
func RequireBearer(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if token == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"success":false,"error":"unauthorized"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
