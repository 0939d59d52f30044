package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
)

// CORS answers preflight requests and allows any origin, as every fortune endpoint is public.
func CORS() func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "X-Client-Info", "Apikey", "Content-Type", UserIDHeader},
		MaxAge:         300,
	})
}
