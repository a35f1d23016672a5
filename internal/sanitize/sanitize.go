// Package sanitize validates raw fetched payloads before they reach the
// parser. The pipeline treats a rejection exactly like a failed fetch: the
// page contributes nothing and the run continues.
package sanitize

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html/charset"
)

// Rejection reasons. Callers match with errors.Is.
var (
	ErrEmptyBody = errors.New("empty response body")
	ErrTooLarge  = errors.New("response body exceeds size limit")
	ErrNotHTML   = errors.New("response body is not HTML")
)

// DefaultMaxBytes bounds accepted pages when no explicit limit is given.
const DefaultMaxBytes = 5 * 1024 * 1024

// Validator cleans and validates page bodies.
type Validator struct {
	maxBytes int64
}

// NewValidator builds a Validator with the given size cap. Non-positive caps
// fall back to DefaultMaxBytes.
func NewValidator(maxBytes int64) *Validator {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Validator{maxBytes: maxBytes}
}

// Validate rejects empty, oversized, or non-HTML payloads and normalizes the
// survivors to UTF-8. The input slice is never mutated.
func (v *Validator) Validate(raw []byte) ([]byte, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, ErrEmptyBody
	}
	if int64(len(raw)) > v.maxBytes {
		return nil, fmt.Errorf("%w: %d > %d bytes", ErrTooLarge, len(raw), v.maxBytes)
	}
	if !looksLikeHTML(raw) {
		return nil, ErrNotHTML
	}

	safe, err := toUTF8(raw)
	if err != nil {
		return nil, fmt.Errorf("normalize encoding: %w", err)
	}
	return safe, nil
}

// looksLikeHTML sniffs the content type from the payload itself; response
// headers are not trusted here.
func looksLikeHTML(raw []byte) bool {
	sniffed := http.DetectContentType(raw)
	return strings.HasPrefix(sniffed, "text/html") ||
		strings.HasPrefix(sniffed, "text/xml") ||
		strings.HasPrefix(sniffed, "text/plain") && bytes.Contains(bytes.ToLower(raw[:min(len(raw), 1024)]), []byte("<"))
}

// toUTF8 decodes legacy encodings (charset meta tags, BOMs) into UTF-8.
// Already-valid UTF-8 passes through as a copy.
func toUTF8(raw []byte) ([]byte, error) {
	if utf8.Valid(raw) {
		out := make([]byte, len(raw))
		copy(out, raw)
		return out, nil
	}
	reader, err := charset.NewReader(bytes.NewReader(raw), "text/html")
	if err != nil {
		return nil, err
	}
	return io.ReadAll(reader)
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
