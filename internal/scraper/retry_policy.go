package scraper

import (
	"crypto/rand"
	"errors"
	"math"
	"math/big"
	"net/http"
	"time"
)

// RetryPolicy decides whether a failed attempt deserves another try and how
// long to wait before it.
type RetryPolicy interface {
	ShouldRetry(err error, attempt int) bool
	Backoff(err error, attempt int) time.Duration
}

// ExponentialRetryPolicy implements RetryPolicy with jittered backoff.
// A 429 response carrying a Retry-After hint overrides the computed delay.
type ExponentialRetryPolicy struct {
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
}

// NewExponentialRetryPolicy builds a policy with sane defaults.
func NewExponentialRetryPolicy() *ExponentialRetryPolicy {
	return &ExponentialRetryPolicy{
		maxAttempts: 3,
		baseDelay:   250 * time.Millisecond,
		maxDelay:    5 * time.Second,
	}
}

// NewRetryPolicy builds a policy from configured limits, falling back to the
// defaults for non-positive values.
func NewRetryPolicy(maxAttempts int, baseDelay time.Duration) *ExponentialRetryPolicy {
	p := NewExponentialRetryPolicy()
	if maxAttempts > 0 {
		p.maxAttempts = maxAttempts
	}
	if baseDelay > 0 {
		p.baseDelay = baseDelay
	}
	return p
}

// MaxAttempts reports the attempt ceiling, including the first try.
func (p *ExponentialRetryPolicy) MaxAttempts() int {
	return p.maxAttempts
}

// ShouldRetry decides whether the error is retryable at this attempt count.
func (p *ExponentialRetryPolicy) ShouldRetry(err error, attempt int) bool {
	if err == nil {
		return false
	}
	if attempt >= p.maxAttempts {
		return false
	}
	return isRetryableError(err)
}

// Backoff returns the wait duration before the next attempt. attempt is
// zero-based: the delay after the first failure is roughly baseDelay.
func (p *ExponentialRetryPolicy) Backoff(err error, attempt int) time.Duration {
	if hint, ok := retryAfterHint(err); ok {
		if hint > p.maxDelay {
			return p.maxDelay
		}
		return hint
	}
	delay := float64(p.baseDelay) * math.Pow(2, float64(attempt))
	if delay > float64(p.maxDelay) {
		delay = float64(p.maxDelay)
	}
	jitter := p.randomJitter(time.Duration(delay) / 2)
	return time.Duration(delay/2) + jitter
}

// retryAfterHint extracts a server-provided backoff from a 429 response.
func retryAfterHint(err error) (time.Duration, bool) {
	var statusErr *HTTPStatusError
	if !errors.As(err, &statusErr) {
		return 0, false
	}
	if statusErr.StatusCode != http.StatusTooManyRequests || statusErr.RetryAfter == "" {
		return 0, false
	}
	if secs, parseErr := time.ParseDuration(statusErr.RetryAfter + "s"); parseErr == nil && secs > 0 {
		return secs, true
	}
	if at, parseErr := http.ParseTime(statusErr.RetryAfter); parseErr == nil {
		if d := time.Until(at); d > 0 {
			return d, true
		}
	}
	return 0, false
}

func (p *ExponentialRetryPolicy) randomJitter(limit time.Duration) time.Duration {
	if limit <= 0 {
		return 0
	}
	bound := big.NewInt(int64(limit))
	n, err := rand.Int(rand.Reader, bound)
	if err != nil {
		return limit / 2
	}
	return time.Duration(n.Int64())
}
