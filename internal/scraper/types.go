// Package scraper defines core types shared across the scraping pipeline.
package scraper

// PageRequest identifies one paginated search-results page to fetch.
// Requests are generated once at run start and never mutated afterwards.
type PageRequest struct {
	URL       string
	PageIndex int
}

// FetchResult is produced exactly once per PageRequest. A failed fetch is a
// value, not an abort: Err carries the final error after retries and
// Attempts counts how many were made.
type FetchResult struct {
	Request  PageRequest
	Body     []byte
	Err      error
	ErrKind  ErrorKind
	Attempts int
}

// Succeeded reports whether the fetch produced a usable body.
func (r FetchResult) Succeeded() bool {
	return r.Err == nil
}

// TopicRecord is one forum topic row extracted from a results page.
// Records are plain values; no back-references to the page they came from.
type TopicRecord struct {
	Title        string
	Author       string
	ReplyCount   int
	LastActivity string
	URL          string

	// Snippet holds detail-page body text when enrichment is enabled.
	// Empty otherwise; the filter treats it as additional searchable text.
	Snippet string
}

// Summary is reported after every run, successful or degraded. Per-page
// failures never fail the run but must be visible here.
type Summary struct {
	PagesAttempted   int
	PagesSucceeded   int
	PagesFailed      int
	FailuresByKind   map[ErrorKind]int
	RecordsExtracted int
	RecordsExported  int
}

// pageDiagnostic records why one page contributed zero records.
type pageDiagnostic struct {
	PageIndex int
	URL       string
	Kind      ErrorKind
	Err       error
}
