package scraper

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// offsetParam is TripAdvisor's pagination query parameter: result offset,
// not page number.
const offsetParam = "o"

// GenerateRequests builds one PageRequest per results page, page 0 being the
// base URL itself and later pages carrying an `o` offset of
// pageIndex*resultsPerPage. Generation is deterministic.
func GenerateRequests(baseURL string, maxPages, resultsPerPage int) ([]PageRequest, error) {
	normalized, parsed, err := canonicalizeURL(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}

	requests := make([]PageRequest, 0, maxPages)
	for i := 0; i < maxPages; i++ {
		if i == 0 {
			requests = append(requests, PageRequest{URL: normalized, PageIndex: 0})
			continue
		}
		pageURL := *parsed
		q := pageURL.Query()
		q.Set(offsetParam, strconv.Itoa(i*resultsPerPage))
		pageURL.RawQuery = q.Encode()
		requests = append(requests, PageRequest{URL: pageURL.String(), PageIndex: i})
	}
	return requests, nil
}

// canonicalizeURL standardizes a URL: lowercased scheme and host, no
// fragment, sorted query parameters, a non-empty path.
func canonicalizeURL(raw string) (string, *url.URL, error) {
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", nil, err
	}
	parsed.Scheme = strings.ToLower(parsed.Scheme)
	parsed.Host = strings.ToLower(parsed.Host)
	parsed.Fragment = ""
	if parsed.Path == "" {
		parsed.Path = "/"
	}
	if parsed.Scheme == "http" {
		parsed.Host = strings.TrimSuffix(parsed.Host, ":80")
	}
	if parsed.Scheme == "https" {
		parsed.Host = strings.TrimSuffix(parsed.Host, ":443")
	}
	parsed.RawQuery = parsed.Query().Encode()
	return parsed.String(), parsed, nil
}
