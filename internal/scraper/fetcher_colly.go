package scraper

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// defaultHeaders mimic a regular browser session. TripAdvisor serves an
// interstitial page to clients that look like bots.
var defaultHeaders = map[string]string{
	"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8",
	"Accept-Language": "en-US,en;q=0.9",
	"Referer":         "https://www.tripadvisor.com/",
	"Sec-Fetch-Dest":  "document",
	"Sec-Fetch-Mode":  "navigate",
	"Sec-Fetch-Site":  "none",
	"Sec-Fetch-User":  "?1",
}

// CollyFetcher implements the Fetcher interface using the Colly collector.
// The transport handle is owned by the fetcher and released via Close.
type CollyFetcher struct {
	baseCollector *colly.Collector
	transport     *http.Transport
	retryPolicy   RetryPolicy
	robots        RobotsPolicy
	logger        *zap.Logger

	limiterMu sync.Mutex
	limiter   *rate.Limiter
}

// FetcherOption customizes a CollyFetcher at construction time.
type FetcherOption func(*CollyFetcher)

// WithTransport replaces the HTTP transport. Tests use this to route all
// requests through an instrumented RoundTripper.
func WithTransport(rt http.RoundTripper) FetcherOption {
	return func(f *CollyFetcher) {
		f.baseCollector.WithTransport(rt)
	}
}

// WithRobotsPolicy installs a robots.txt gate consulted before each fetch.
func WithRobotsPolicy(policy RobotsPolicy) FetcherOption {
	return func(f *CollyFetcher) {
		f.robots = policy
	}
}

// NewCollyFetcher constructs a configured Colly-based Fetcher.
func NewCollyFetcher(cfg Config, policy RetryPolicy, logger *zap.Logger, opts ...FetcherOption) (*CollyFetcher, error) {
	base := colly.NewCollector(
		colly.Async(false),
		colly.UserAgent(cfg.UserAgent),
		colly.IgnoreRobotsTxt(),
	)
	base.AllowURLRevisit = true

	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          64,
		MaxIdleConnsPerHost:   16,
		MaxConnsPerHost:       cfg.Concurrency * 2,
		IdleConnTimeout:       30 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: cfg.RequestTimeout,
		ForceAttemptHTTP2:     true,
	}
	base.WithTransport(transport)
	base.SetRequestTimeout(cfg.RequestTimeout)

	if policy == nil {
		policy = NewRetryPolicy(cfg.MaxRetries, cfg.RetryBaseDelay)
	}

	var limiter *rate.Limiter
	if cfg.RatePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), 1)
	}

	f := &CollyFetcher{
		baseCollector: base,
		transport:     transport,
		retryPolicy:   policy,
		robots:        NewRobotsEnforcer(cfg, transport, logger),
		limiter:       limiter,
		logger:        logger,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// FetchAll retrieves every request with at most concurrencyLimit fetches in
// flight. It always returns one result per request.
func (f *CollyFetcher) FetchAll(ctx context.Context, requests []PageRequest, concurrencyLimit int) []FetchResult {
	if concurrencyLimit <= 0 {
		concurrencyLimit = 1
	}
	results := make([]FetchResult, len(requests))
	sem := semaphore.NewWeighted(int64(concurrencyLimit))
	var wg sync.WaitGroup

	for i, req := range requests {
		if err := sem.Acquire(ctx, 1); err != nil {
			// Canceled before this request was issued. Record the
			// remaining requests as failed and stop submitting.
			for j := i; j < len(requests); j++ {
				results[j] = FetchResult{Request: requests[j], Err: err, ErrKind: ClassifyFetchError(err)}
			}
			break
		}
		wg.Add(1)
		go func(idx int, request PageRequest) {
			defer wg.Done()
			defer sem.Release(1)
			results[idx] = f.fetchOne(ctx, request)
		}(i, req)
	}

	wg.Wait()
	return results
}

func (f *CollyFetcher) fetchOne(ctx context.Context, request PageRequest) FetchResult {
	body, attempts, err := f.Fetch(ctx, request.URL)
	result := FetchResult{Request: request, Body: body, Attempts: attempts, Err: err}
	if err != nil {
		result.ErrKind = ClassifyFetchError(err)
		f.logger.Warn("page fetch failed",
			zap.String("url", request.URL),
			zap.Int("page_index", request.PageIndex),
			zap.Int("attempts", attempts),
			zap.Error(err),
		)
	}
	return result
}

// Fetch retrieves one URL, applying the retry policy. It returns the body,
// the number of attempts made, and the final error if all attempts failed.
func (f *CollyFetcher) Fetch(ctx context.Context, rawURL string) ([]byte, int, error) {
	if !f.robots.Allowed(ctx, rawURL) {
		return nil, 0, &HTTPStatusError{StatusCode: http.StatusForbidden, URL: rawURL}
	}
	f.applyCrawlDelay(f.robots.CrawlDelay(ctx, rawURL))

	attempts := 0
	for {
		if err := f.waitRate(ctx); err != nil {
			return nil, attempts, err
		}
		body, err := f.fetchOnce(rawURL)
		attempts++
		if err == nil {
			TotalRequests.Inc()
			return body, attempts, nil
		}
		TotalRequests.Inc()
		TotalRequestErrors.Inc()
		if isRateLimited(err) {
			TotalRateLimitHits.Inc()
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, attempts, ctxErr
		}
		if !f.retryPolicy.ShouldRetry(err, attempts) {
			return nil, attempts, err
		}
		delay := f.retryPolicy.Backoff(err, attempts-1)
		f.logger.Debug("retrying fetch",
			zap.String("url", rawURL),
			zap.Int("attempt", attempts),
			zap.Duration("backoff", delay),
			zap.Error(err),
		)
		if err := sleepCtx(ctx, delay); err != nil {
			return nil, attempts, err
		}
	}
}

// fetchOnce performs exactly one request through a cloned collector.
func (f *CollyFetcher) fetchOnce(rawURL string) ([]byte, error) {
	collector := f.baseCollector.Clone()
	resultCh := make(chan fetchOutcome, 1)
	var once sync.Once
	send := func(res fetchOutcome) {
		once.Do(func() {
			resultCh <- res
		})
	}

	collector.OnRequest(func(r *colly.Request) {
		for k, v := range defaultHeaders {
			if r.Headers.Get(k) == "" {
				r.Headers.Set(k, v)
			}
		}
	})

	collector.OnResponse(func(r *colly.Response) {
		send(fetchOutcome{body: append([]byte{}, r.Body...)})
	})

	collector.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode > 0 {
			statusErr := &HTTPStatusError{
				StatusCode: r.StatusCode,
				URL:        rawURL,
			}
			if r.Headers != nil {
				statusErr.RetryAfter = r.Headers.Get("Retry-After")
			}
			send(fetchOutcome{err: statusErr})
			return
		}
		if err == nil {
			err = errors.New("unknown colly error")
		}
		send(fetchOutcome{err: err})
	})

	if err := collector.Visit(rawURL); err != nil {
		return nil, err
	}
	collector.Wait()

	select {
	case res := <-resultCh:
		return res.body, res.err
	default:
		return nil, ErrNoResponse
	}
}

// applyCrawlDelay slows the shared limiter to the host's requested pace.
// It only ever lowers the rate; a host may not grant more than the
// configured rate allows.
func (f *CollyFetcher) applyCrawlDelay(delay time.Duration) {
	if delay <= 0 {
		return
	}
	f.limiterMu.Lock()
	defer f.limiterMu.Unlock()
	limit := rate.Every(delay)
	if f.limiter == nil {
		f.limiter = rate.NewLimiter(limit, 1)
		return
	}
	if limit < f.limiter.Limit() {
		f.limiter.SetLimit(limit)
	}
}

func (f *CollyFetcher) waitRate(ctx context.Context) error {
	f.limiterMu.Lock()
	limiter := f.limiter
	f.limiterMu.Unlock()
	if limiter == nil {
		return nil
	}
	return limiter.Wait(ctx)
}

// Close releases the transport's idle connections.
func (f *CollyFetcher) Close() {
	f.transport.CloseIdleConnections()
}

func isRateLimited(err error) bool {
	var statusErr *HTTPStatusError
	return errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusTooManyRequests
}

func sleepCtx(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

type fetchOutcome struct {
	body []byte
	err  error
}
