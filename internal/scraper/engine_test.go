package scraper

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mehranoffline/tripadvisor-scraper/internal/parse"
)

// fakeFetcher serves canned page bodies keyed by page index and canned
// detail bodies keyed by URL. FetchAll returns results in whatever order
// the test configured, simulating out-of-order completion.
type fakeFetcher struct {
	pages       map[int][]byte
	pageErrs    map[int]error
	details     map[string][]byte
	resultOrder []int
}

func (f *fakeFetcher) FetchAll(_ context.Context, requests []PageRequest, _ int) []FetchResult {
	order := f.resultOrder
	if order == nil {
		for i := range requests {
			order = append(order, i)
		}
	}
	results := make([]FetchResult, 0, len(requests))
	for _, i := range order {
		req := requests[i]
		if err, ok := f.pageErrs[req.PageIndex]; ok {
			results = append(results, FetchResult{
				Request:  req,
				Err:      err,
				ErrKind:  ClassifyFetchError(err),
				Attempts: 1,
			})
			continue
		}
		results = append(results, FetchResult{
			Request:  req,
			Body:     f.pages[req.PageIndex],
			Attempts: 1,
		})
	}
	return results
}

func (f *fakeFetcher) Fetch(_ context.Context, rawURL string) ([]byte, int, error) {
	body, ok := f.details[rawURL]
	if !ok {
		return nil, 1, &HTTPStatusError{StatusCode: 404, URL: rawURL}
	}
	return body, 1, nil
}

// passSanitizer approves everything unchanged.
type passSanitizer struct{}

func (passSanitizer) Validate(raw []byte) ([]byte, error) { return raw, nil }

type rejectSanitizer struct{}

func (rejectSanitizer) Validate([]byte) ([]byte, error) {
	return nil, errors.New("payload rejected")
}

type failingExporter struct{}

func (failingExporter) Export([]TopicRecord, string) (int, error) {
	return 0, errors.New("disk full")
}

// csvExporter is the engine test's real exporter stand-in: it writes the
// same CSV shape the export package produces, without the import cycle a
// real dependency would create.
type csvExporter struct{}

func (csvExporter) Export(records []TopicRecord, destination string) (int, error) {
	var b strings.Builder
	b.WriteString("title,author,reply_count,last_activity,url\n")
	for _, r := range records {
		fmt.Fprintf(&b, "%s,%s,%d,%s,%s\n", r.Title, r.Author, r.ReplyCount, r.LastActivity, r.URL)
	}
	if err := os.WriteFile(destination, []byte(b.String()), 0o600); err != nil {
		return 0, err
	}
	return len(records), nil
}

func topicRowHTML(title, href string) string {
	return fmt.Sprintf(
		`<tr class="topicrow"><td class="title"><a href="%s">%s</a></td>`+
			`<td class="author">traveler</td><td class="replies">2</td>`+
			`<td class="date">Jan 5, 2026</td></tr>`,
		href, title,
	)
}

func pageHTML(rows ...string) []byte {
	return []byte(`<html><body><table class="forumsearchresults">` +
		strings.Join(rows, "") +
		`</table><div class="pagination"><a href="/next">Next</a></div></body></html>`)
}

func engineTestConfig(t *testing.T) Config {
	t.Helper()
	return Config{
		BaseURL:        "https://www.tripadvisor.com/SearchForums?q=AI+trip+itinerary",
		MaxPages:       3,
		Output:         filepath.Join(t.TempDir(), "out.csv"),
		Keywords:       []string{"AI", "Itinerary"},
		Concurrency:    2,
		UserAgent:      "engine-test-agent",
		RequestTimeout: time.Second,
		MaxRetries:     3,
		RetryBaseDelay: time.Millisecond,
		MaxPageBytes:   1 << 20,
		ResultsPerPage: 20,
	}
}

func newTestEngine(cfg Config, fetcher Fetcher, sanitizer Sanitizer, exporter Exporter) *Engine {
	logger := zap.NewNop()
	return NewEngine(cfg, fetcher, sanitizer, parse.New(logger), exporter, logger)
}

// The canonical scenario: three pages with two rows each, one AI match on
// page 1 (index 1) and one itinerary match on page 2, exported in page order.
func scenarioFetcher() *fakeFetcher {
	return &fakeFetcher{
		pages: map[int][]byte{
			0: pageHTML(
				topicRowHTML("Best tapas in Seville", "/t/1"),
				topicRowHTML("Rome in 3 days", "/t/2"),
			),
			1: pageHTML(
				topicRowHTML("AI trip planner experiences?", "/t/3"),
				topicRowHTML("Packing list for Iceland", "/t/4"),
			),
			2: pageHTML(
				topicRowHTML("Need an ITINERARY for Kyoto", "/t/5"),
				topicRowHTML("Ferry schedules in Greece", "/t/6"),
			),
		},
	}
}

func TestEngineScenarioExportsMatchesInPageOrder(t *testing.T) {
	t.Parallel()

	cfg := engineTestConfig(t)
	engine := newTestEngine(cfg, scenarioFetcher(), passSanitizer{}, csvExporter{})

	summary, err := engine.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, StateDone, engine.State())
	require.Equal(t, 3, summary.PagesAttempted)
	require.Equal(t, 3, summary.PagesSucceeded)
	require.Zero(t, summary.PagesFailed)
	require.Equal(t, 6, summary.RecordsExtracted)
	require.Equal(t, 2, summary.RecordsExported)

	content, err := os.ReadFile(cfg.Output)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(content)), "\n")
	require.Len(t, lines, 3)
	require.Contains(t, lines[1], "AI trip planner")
	require.Contains(t, lines[2], "ITINERARY for Kyoto")
}

func TestEngineOrderingIndependentOfCompletionOrder(t *testing.T) {
	t.Parallel()

	cfg := engineTestConfig(t)
	fetcher := scenarioFetcher()
	fetcher.resultOrder = []int{2, 0, 1}
	engine := newTestEngine(cfg, fetcher, passSanitizer{}, csvExporter{})

	_, err := engine.Run(context.Background())
	require.NoError(t, err)

	content, err := os.ReadFile(cfg.Output)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(content)), "\n")
	require.Contains(t, lines[1], "AI trip planner", "page 1 match must precede page 2 match")
	require.Contains(t, lines[2], "ITINERARY for Kyoto")
}

func TestEngineIdempotentAcrossRuns(t *testing.T) {
	t.Parallel()

	cfg := engineTestConfig(t)

	first := newTestEngine(cfg, scenarioFetcher(), passSanitizer{}, csvExporter{})
	_, err := first.Run(context.Background())
	require.NoError(t, err)
	firstContent, err := os.ReadFile(cfg.Output)
	require.NoError(t, err)

	second := newTestEngine(cfg, scenarioFetcher(), passSanitizer{}, csvExporter{})
	_, err = second.Run(context.Background())
	require.NoError(t, err)
	secondContent, err := os.ReadFile(cfg.Output)
	require.NoError(t, err)

	require.Equal(t, firstContent, secondContent)
}

func TestEnginePartialFailureContinues(t *testing.T) {
	t.Parallel()

	cfg := engineTestConfig(t)
	fetcher := scenarioFetcher()
	fetcher.pageErrs = map[int]error{
		1: &HTTPStatusError{StatusCode: 503, URL: "page-1"},
	}
	engine := newTestEngine(cfg, fetcher, passSanitizer{}, csvExporter{})

	summary, err := engine.Run(context.Background())
	require.NoError(t, err, "a failed page must not fail the run")
	require.Equal(t, 3, summary.PagesAttempted)
	require.Equal(t, 2, summary.PagesSucceeded)
	require.Equal(t, 1, summary.PagesFailed)
	require.Equal(t, 1, summary.FailuresByKind[ErrKindTransientFetch])
	require.Equal(t, 1, summary.RecordsExported, "only the page 2 itinerary match survives")
}

func TestEngineSanitizerRejectionIsPageFailure(t *testing.T) {
	t.Parallel()

	cfg := engineTestConfig(t)
	engine := newTestEngine(cfg, scenarioFetcher(), rejectSanitizer{}, csvExporter{})

	summary, err := engine.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 3, summary.PagesFailed)
	require.Equal(t, 3, summary.FailuresByKind[ErrKindSanitizeRejected])
	require.Zero(t, summary.RecordsExported)
}

func TestEngineUnrecognizedStructureIsPageFailure(t *testing.T) {
	t.Parallel()

	cfg := engineTestConfig(t)
	cfg.MaxPages = 1
	fetcher := &fakeFetcher{
		pages: map[int][]byte{0: []byte("<html><body><h1>Are you a robot?</h1></body></html>")},
	}
	engine := newTestEngine(cfg, fetcher, passSanitizer{}, csvExporter{})

	summary, err := engine.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, summary.PagesFailed)
	require.Equal(t, 1, summary.FailuresByKind[ErrKindParseStructure])
}

func TestEngineInvalidConfigFailsBeforeFetching(t *testing.T) {
	t.Parallel()

	cfg := engineTestConfig(t)
	cfg.Keywords = nil
	engine := newTestEngine(cfg, scenarioFetcher(), passSanitizer{}, csvExporter{})

	_, err := engine.Run(context.Background())
	require.ErrorIs(t, err, ErrInvalidConfig)
	require.Equal(t, StateFailed, engine.State())
	_, statErr := os.Stat(cfg.Output)
	require.True(t, os.IsNotExist(statErr), "nothing may be written on a config failure")
}

func TestEngineExportErrorFailsRun(t *testing.T) {
	t.Parallel()

	cfg := engineTestConfig(t)
	engine := newTestEngine(cfg, scenarioFetcher(), passSanitizer{}, failingExporter{})

	_, err := engine.Run(context.Background())
	require.Error(t, err)
	require.Equal(t, StateFailed, engine.State())
}

func TestEngineSnippetEnrichment(t *testing.T) {
	t.Parallel()

	cfg := engineTestConfig(t)
	cfg.MaxPages = 1
	cfg.FetchDetails = true

	fetcher := &fakeFetcher{
		pages: map[int][]byte{
			0: pageHTML(topicRowHTML("Planning a spring trip", "/t/9")),
		},
		details: map[string][]byte{
			"https://www.tripadvisor.com/t/9": []byte(
				`<html><body><div class="partial_entry">Can an AI build my route?</div></body></html>`,
			),
		},
	}
	engine := newTestEngine(cfg, fetcher, passSanitizer{}, csvExporter{})

	summary, err := engine.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, summary.RecordsExported, "the snippet text must be searchable")
}
