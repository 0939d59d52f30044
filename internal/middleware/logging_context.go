package middleware

import (
	"net/http"

	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"fortunegate/pkg/logging"
)

// LoggingContext attaches a request-scoped logger to the context.
func LoggingContext(baseLogger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			reqLogger := baseLogger.With(
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
			)

			// request id from chi's RequestID middleware
			if reqID := chimw.GetReqID(ctx); reqID != "" {
				reqLogger = reqLogger.With(zap.String("request_id", reqID))
			}

			// RealIP has already rewritten RemoteAddr
			if r.RemoteAddr != "" {
				reqLogger = reqLogger.With(zap.String("remote_ip", r.RemoteAddr))
			}

			if ua := r.UserAgent(); ua != "" {
				reqLogger = reqLogger.With(zap.String("user_agent", ua))
			}

			if userID := r.Header.Get(UserIDHeader); userID != "" {
				reqLogger = reqLogger.With(zap.String("user_id", userID))
			}

			ctx = logging.WithLogger(ctx, reqLogger)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
