package scraper

import (
	"context"
	"time"

	"github.com/mehranoffline/tripadvisor-scraper/internal/parse"
)

// Fetcher retrieves pages over HTTP. FetchAll returns exactly one result per
// request; completion order is unspecified, each result carries its
// originating request so the caller can re-sort.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) ([]byte, int, error)
	FetchAll(ctx context.Context, requests []PageRequest, concurrencyLimit int) []FetchResult
}

// Sanitizer validates and cleans a raw page body before parsing. A rejection
// makes the page unusable; the run continues without it.
type Sanitizer interface {
	Validate(raw []byte) ([]byte, error)
}

// Parser extracts topic rows from a sanitized page body.
type Parser interface {
	Extract(body []byte, pageURL string) (parse.Page, error)
}

// Exporter serializes the final record sequence to the destination file.
type Exporter interface {
	Export(records []TopicRecord, destination string) (int, error)
}

// RobotsPolicy answers whether a URL may be fetched at all, and how long
// its host asks crawlers to pause between fetches.
type RobotsPolicy interface {
	Allowed(ctx context.Context, rawURL string) bool
	CrawlDelay(ctx context.Context, rawURL string) time.Duration
}
