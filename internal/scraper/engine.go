package scraper

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/mehranoffline/tripadvisor-scraper/internal/parse"
)

// State is the engine's lifecycle phase. Failed is reachable only from
// configuration validation; a single page's failure never ends the run.
type State string

const (
	StateIdle               State = "idle"
	StateGeneratingRequests State = "generating_requests"
	StateFetching           State = "fetching"
	StateAggregating        State = "aggregating"
	StateExporting          State = "exporting"
	StateDone               State = "done"
	StateFailed             State = "failed"
)

// ErrInvalidConfig wraps validation failures surfaced before fetching starts.
var ErrInvalidConfig = errors.New("invalid configuration")

// Engine drives the fetch, sanitize, parse, filter, export pipeline for one
// run. It owns no network state itself; the Fetcher does.
type Engine struct {
	cfg       Config
	fetcher   Fetcher
	sanitizer Sanitizer
	parser    Parser
	exporter  Exporter
	keywords  Keywords
	logger    *zap.Logger
	state     State
}

// NewEngine wires the pipeline components together.
func NewEngine(
	cfg Config,
	fetcher Fetcher,
	sanitizer Sanitizer,
	parser Parser,
	exporter Exporter,
	logger *zap.Logger,
) *Engine {
	return &Engine{
		cfg:       cfg,
		fetcher:   fetcher,
		sanitizer: sanitizer,
		parser:    parser,
		exporter:  exporter,
		keywords:  NewKeywords(cfg.Keywords),
		logger:    logger,
		state:     StateIdle,
	}
}

// State reports the engine's current phase.
func (e *Engine) State() State {
	return e.state
}

// Run executes one complete scrape. The returned Summary is valid whenever
// the error is nil, including runs where every page failed.
func (e *Engine) Run(ctx context.Context) (Summary, error) {
	if err := e.cfg.Validate(); err != nil {
		e.state = StateFailed
		return Summary{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if e.keywords.Len() == 0 {
		e.state = StateFailed
		return Summary{}, fmt.Errorf("%w: no usable keywords", ErrInvalidConfig)
	}

	e.state = StateGeneratingRequests
	requests, err := GenerateRequests(e.cfg.BaseURL, e.cfg.MaxPages, e.cfg.ResultsPerPage)
	if err != nil {
		e.state = StateFailed
		return Summary{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	e.logger.Info("generated page requests",
		zap.Int("pages", len(requests)),
		zap.String("base_url", e.cfg.BaseURL),
	)

	e.state = StateFetching
	results := e.fetcher.FetchAll(ctx, requests, e.cfg.Concurrency)

	e.state = StateAggregating
	records, summary := e.aggregate(ctx, results)

	e.state = StateExporting
	exported, err := e.exporter.Export(records, e.cfg.Output)
	if err != nil {
		e.state = StateFailed
		return summary, fmt.Errorf("export to %s: %w", e.cfg.Output, err)
	}
	summary.RecordsExported = exported
	TotalRecordsExported.Add(float64(exported))

	e.state = StateDone
	e.logSummary(summary)
	return summary, nil
}

// aggregate walks fetch results in page-index order and accumulates the
// filtered records. Fetch completion order is irrelevant here; the sort
// makes the export deterministic.
func (e *Engine) aggregate(ctx context.Context, results []FetchResult) ([]TopicRecord, Summary) {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Request.PageIndex < results[j].Request.PageIndex
	})

	summary := Summary{
		PagesAttempted: len(results),
		FailuresByKind: make(map[ErrorKind]int),
	}
	var diagnostics []pageDiagnostic
	var records []TopicRecord

	for _, result := range results {
		page, diag := e.processPage(ctx, result)
		if diag != nil {
			diagnostics = append(diagnostics, *diag)
			summary.PagesFailed++
			summary.FailuresByKind[diag.Kind]++
			continue
		}
		summary.PagesSucceeded++
		summary.RecordsExtracted += len(page)
		for _, record := range page {
			if e.keywords.Matches(record) {
				records = append(records, record)
			}
		}
	}

	for _, diag := range diagnostics {
		e.logger.Warn("page contributed no records",
			zap.Int("page_index", diag.PageIndex),
			zap.String("url", diag.URL),
			zap.String("kind", string(diag.Kind)),
			zap.Error(diag.Err),
		)
	}
	return records, summary
}

// processPage turns one fetch result into that page's topic records, or a
// diagnostic explaining why the page yielded nothing.
func (e *Engine) processPage(ctx context.Context, result FetchResult) ([]TopicRecord, *pageDiagnostic) {
	req := result.Request
	if !result.Succeeded() {
		return nil, &pageDiagnostic{
			PageIndex: req.PageIndex,
			URL:       req.URL,
			Kind:      result.ErrKind,
			Err:       result.Err,
		}
	}

	safe, err := e.sanitizer.Validate(result.Body)
	if err != nil {
		return nil, &pageDiagnostic{
			PageIndex: req.PageIndex,
			URL:       req.URL,
			Kind:      ErrKindSanitizeRejected,
			Err:       err,
		}
	}

	page, err := e.parser.Extract(safe, req.URL)
	if err != nil {
		return nil, &pageDiagnostic{
			PageIndex: req.PageIndex,
			URL:       req.URL,
			Kind:      ErrKindParseStructure,
			Err:       err,
		}
	}
	TotalPagesParsed.Inc()

	if page.NextURL == "" && req.PageIndex < e.cfg.MaxPages-1 {
		e.logger.Info("pagination ended before max_pages",
			zap.Int("page_index", req.PageIndex),
		)
	}

	records := make([]TopicRecord, 0, len(page.Topics))
	for _, topic := range page.Topics {
		record := TopicRecord{
			Title:        topic.Title,
			Author:       topic.Author,
			ReplyCount:   topic.ReplyCount,
			LastActivity: topic.LastActivity,
			URL:          topic.URL,
		}
		if e.cfg.FetchDetails {
			record.Snippet = e.fetchSnippet(ctx, topic.URL)
		}
		records = append(records, record)
	}
	return records, nil
}

// fetchSnippet pulls a topic's detail page for its full text. Failures leave
// the snippet empty; enrichment never drops a row.
func (e *Engine) fetchSnippet(ctx context.Context, detailURL string) string {
	if detailURL == "" {
		return ""
	}
	body, _, err := e.fetcher.Fetch(ctx, detailURL)
	if err != nil {
		e.logger.Debug("detail fetch failed", zap.String("url", detailURL), zap.Error(err))
		return ""
	}
	safe, err := e.sanitizer.Validate(body)
	if err != nil {
		e.logger.Debug("detail body rejected", zap.String("url", detailURL), zap.Error(err))
		return ""
	}
	return parse.DetailText(safe)
}

func (e *Engine) logSummary(summary Summary) {
	fields := []zap.Field{
		zap.Int("pages_attempted", summary.PagesAttempted),
		zap.Int("pages_succeeded", summary.PagesSucceeded),
		zap.Int("pages_failed", summary.PagesFailed),
		zap.Int("records_extracted", summary.RecordsExtracted),
		zap.Int("records_exported", summary.RecordsExported),
	}
	for kind, count := range summary.FailuresByKind {
		fields = append(fields, zap.Int("failed_"+string(kind), count))
	}
	e.logger.Info("scrape finished", fields...)
}
