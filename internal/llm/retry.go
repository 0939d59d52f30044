package llm

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	maxRetryAfter = 5 * time.Minute
	maxBackoff    = time.Minute
)

// doWithRetry sends body up to MaxRetries+1 times. Only transient network
// errors, 408, 429 and 5xx are retried; Retry-After wins over the jittered
// exponential backoff.
func (c *OpenAIClient) doWithRetry(
	ctx context.Context,
	body []byte,
	do func(ctx context.Context, body []byte) (*http.Response, error),
) (*http.Response, error) {
	attempts := max(c.cfg.MaxRetries+1, 1)

	var lastErr error
	for attempt := range attempts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		start := time.Now()
		resp, err := do(ctx, body)

		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		c.logger.Debug("llm upstream attempt",
			zap.Int("attempt", attempt+1),
			zap.Int("max_attempts", attempts),
			zap.Int("status", status),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err),
		)

		wait := time.Duration(0)
		switch {
		case err != nil:
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || !isTransientNetError(err) {
				return nil, err
			}
			lastErr = err
		case !shouldRetryStatus(status):
			return resp, nil
		default:
			lastErr = fmt.Errorf("upstream status %d", status)
			wait = parseRetryAfter(resp, time.Now())
			// close before retrying so the connection can be reused
			if resp.Body != nil {
				resp.Body.Close()
			}
		}

		if attempt == attempts-1 {
			break
		}
		if wait <= 0 {
			wait = computeBackoff(c.cfg.BaseBackoff, attempt)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}

	c.logger.Warn("llm request exhausted all retries",
		zap.Int("attempts", attempts),
		zap.Error(lastErr),
	)
	if lastErr == nil {
		lastErr = errors.New("unknown upstream error")
	}
	return nil, fmt.Errorf("llmclient: max retries (%d) exceeded: %w", attempts, lastErr)
}

var transientPatterns = []string{
	"connection refused",
	"connection reset",
	"broken pipe",
	"no such host",
	"temporary failure",
}

// isTransientNetError reports whether a transport error may clear on retry.
func isTransientNetError(err error) bool {
	if err == nil {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return dnsErr.IsTimeout || dnsErr.IsTemporary
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		switch opErr.Op {
		case "dial", "read", "write":
			return true
		}
	}

	// wrapped errors sometimes lose their type
	msg := strings.ToLower(err.Error())
	for _, p := range transientPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

func shouldRetryStatus(status int) bool {
	return status == 0 ||
		status == http.StatusRequestTimeout ||
		status == http.StatusTooManyRequests ||
		(status >= 500 && status <= 599)
}

// parseRetryAfter reads Retry-After as seconds or an HTTP date, capped at five
// minutes. It returns 0 when the header is missing or already past.
func parseRetryAfter(resp *http.Response, now time.Time) time.Duration {
	if resp == nil {
		return 0
	}
	v := strings.TrimSpace(resp.Header.Get("Retry-After"))
	if v == "" {
		return 0
	}

	var d time.Duration
	if secs, err := strconv.Atoi(v); err == nil {
		d = time.Duration(secs) * time.Second
	} else if t, err := http.ParseTime(v); err == nil {
		d = t.Sub(now)
	}
	if d <= 0 {
		return 0
	}
	return min(d, maxRetryAfter)
}

// computeBackoff returns a full-jitter delay in [0, base*2^attempt), capped at a minute.
func computeBackoff(base time.Duration, attempt int) time.Duration {
	if base <= 0 {
		base = 100 * time.Millisecond
	}
	ceiling := base << min(attempt, 10)
	if ceiling <= 0 || ceiling > maxBackoff {
		ceiling = maxBackoff
	}
	return time.Duration(rand.Int64N(int64(ceiling)))
}
