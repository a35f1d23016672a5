package scraper

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// ErrorKind classifies why a page or a run failed. Per-page kinds degrade to
// zero records for that page; only ErrKindConfig and ErrKindExportIO can fail
// a run.
type ErrorKind string

const (
	ErrKindNone             ErrorKind = ""
	ErrKindTransientFetch   ErrorKind = "transient_fetch"
	ErrKindPermanentFetch   ErrorKind = "permanent_fetch"
	ErrKindCanceled         ErrorKind = "canceled"
	ErrKindSanitizeRejected ErrorKind = "sanitize_rejected"
	ErrKindParseStructure   ErrorKind = "parse_structure_missing"
	ErrKindExportIO         ErrorKind = "export_io"
	ErrKindConfig           ErrorKind = "configuration"
)

// HTTPStatusError reports a non-2xx response that survived to the caller.
type HTTPStatusError struct {
	StatusCode int
	URL        string
	RetryAfter string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("unexpected status %d fetching %s", e.StatusCode, e.URL)
}

// ErrNoResponse is returned when the transport produced neither a response
// nor a transport error for a request.
var ErrNoResponse = errors.New("fetch produced no result")

// ClassifyFetchError maps a final fetch error onto the summary taxonomy.
func ClassifyFetchError(err error) ErrorKind {
	if err == nil {
		return ErrKindNone
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ErrKindCanceled
	}
	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		if isRetryableStatus(statusErr.StatusCode) {
			return ErrKindTransientFetch
		}
		return ErrKindPermanentFetch
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) && dnsErr.IsNotFound {
		return ErrKindPermanentFetch
	}
	return ErrKindTransientFetch
}

// isRetryableStatus reports whether a status code is worth another attempt.
// 5xx and 429 are transient; every other 4xx fails fast.
func isRetryableStatus(code int) bool {
	if code >= http.StatusInternalServerError {
		return true
	}
	return code == http.StatusTooManyRequests
}

// isRetryableError decides whether the transport-level error is transient.
// Cancellation is never retried; DNS NXDOMAIN is permanent.
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) && dnsErr.IsNotFound {
		return false
	}
	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		return isRetryableStatus(statusErr.StatusCode)
	}
	return true
}
