package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"fortunegate/pkg/logging"
)

// Timeout cancels the request context after d and returns 504 if still running.
// Writes made by the handler after the deadline are discarded.
func Timeout(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), d)
			defer cancel()

			r = r.WithContext(ctx)
			tw := &timeoutWriter{w: w, h: make(http.Header)}

			done := make(chan struct{})
			panicked := make(chan any, 1)
			go func() {
				defer func() {
					if p := recover(); p != nil {
						panicked <- p
					}
				}()
				next.ServeHTTP(tw, r)
				close(done)
			}()

			select {
			case p := <-panicked:
				panic(p)
			case <-done:
				tw.flush()
			case <-ctx.Done():
				tw.mu.Lock()
				defer tw.mu.Unlock()
				tw.timedOut = true

				logging.L(ctx).Warn("request timeout", zap.Duration("timeout", d))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusGatewayTimeout)
				_, _ = w.Write([]byte(`{"success":false,"error":"gateway_timeout"}`))
			}
		})
	}
}

// timeoutWriter buffers the handler's response until it finishes in time.
type timeoutWriter struct {
	w  http.ResponseWriter
	h  http.Header
	mu sync.Mutex

	buf      []byte
	code     int
	timedOut bool
}

func (tw *timeoutWriter) Header() http.Header { return tw.h }

func (tw *timeoutWriter) WriteHeader(code int) {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	if tw.timedOut || tw.code != 0 {
		return
	}
	tw.code = code
}

func (tw *timeoutWriter) Write(b []byte) (int, error) {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	if tw.timedOut {
		return 0, http.ErrHandlerTimeout
	}
	if tw.code == 0 {
		tw.code = http.StatusOK
	}
	tw.buf = append(tw.buf, b...)
	return len(b), nil
}

func (tw *timeoutWriter) flush() {
	tw.mu.Lock()
	defer tw.mu.Unlock()

	dst := tw.w.Header()
	for k, v := range tw.h {
		dst[k] = v
	}
	if tw.code == 0 {
		tw.code = http.StatusOK
	}
	tw.w.WriteHeader(tw.code)
	_, _ = tw.w.Write(tw.buf)
}
