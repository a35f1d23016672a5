package scraper

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestShouldRetryTransientErrors(t *testing.T) {
	t.Parallel()

	p := NewExponentialRetryPolicy()

	require.True(t, p.ShouldRetry(errors.New("connection reset"), 1))
	require.True(t, p.ShouldRetry(&HTTPStatusError{StatusCode: http.StatusBadGateway}, 1))
	require.True(t, p.ShouldRetry(&HTTPStatusError{StatusCode: http.StatusTooManyRequests}, 1))
}

func TestShouldRetryPermanentErrors(t *testing.T) {
	t.Parallel()

	p := NewExponentialRetryPolicy()

	require.False(t, p.ShouldRetry(nil, 1))
	require.False(t, p.ShouldRetry(&HTTPStatusError{StatusCode: http.StatusNotFound}, 1))
	require.False(t, p.ShouldRetry(&HTTPStatusError{StatusCode: http.StatusForbidden}, 1))
	require.False(t, p.ShouldRetry(context.Canceled, 1))
	require.False(t, p.ShouldRetry(context.DeadlineExceeded, 1))
	require.False(t, p.ShouldRetry(&net.DNSError{IsNotFound: true}, 1))
}

func TestShouldRetryRespectsAttemptCeiling(t *testing.T) {
	t.Parallel()

	p := NewRetryPolicy(3, time.Millisecond)
	transient := &HTTPStatusError{StatusCode: http.StatusInternalServerError}

	require.True(t, p.ShouldRetry(transient, 2))
	require.False(t, p.ShouldRetry(transient, 3))
	require.False(t, p.ShouldRetry(transient, 10))
}

func TestBackoffGrowsAndCaps(t *testing.T) {
	t.Parallel()

	p := NewExponentialRetryPolicy()
	err := errors.New("timeout")

	for attempt := 0; attempt < 10; attempt++ {
		d := p.Backoff(err, attempt)
		require.Greater(t, d, time.Duration(0))
		require.LessOrEqual(t, d, 5*time.Second)
	}
}

func TestBackoffHonorsRetryAfterSeconds(t *testing.T) {
	t.Parallel()

	p := NewExponentialRetryPolicy()
	err := &HTTPStatusError{
		StatusCode: http.StatusTooManyRequests,
		RetryAfter: "2",
	}
	require.Equal(t, 2*time.Second, p.Backoff(err, 0))
}

func TestBackoffCapsRetryAfter(t *testing.T) {
	t.Parallel()

	p := NewExponentialRetryPolicy()
	err := &HTTPStatusError{
		StatusCode: http.StatusTooManyRequests,
		RetryAfter: "3600",
	}
	require.Equal(t, 5*time.Second, p.Backoff(err, 0))
}

func TestClassifyFetchError(t *testing.T) {
	t.Parallel()

	require.Equal(t, ErrKindNone, ClassifyFetchError(nil))
	require.Equal(t, ErrKindTransientFetch, ClassifyFetchError(&HTTPStatusError{StatusCode: 503}))
	require.Equal(t, ErrKindTransientFetch, ClassifyFetchError(&HTTPStatusError{StatusCode: 429}))
	require.Equal(t, ErrKindPermanentFetch, ClassifyFetchError(&HTTPStatusError{StatusCode: 404}))
	require.Equal(t, ErrKindPermanentFetch, ClassifyFetchError(&net.DNSError{IsNotFound: true}))
	require.Equal(t, ErrKindTransientFetch, ClassifyFetchError(errors.New("read: connection reset by peer")))
	require.Equal(t, ErrKindCanceled, ClassifyFetchError(context.Canceled))
	require.Equal(t, ErrKindCanceled, ClassifyFetchError(context.DeadlineExceeded))
	require.Equal(t, ErrKindCanceled, ClassifyFetchError(fmt.Errorf("acquire slot: %w", context.Canceled)))
}
