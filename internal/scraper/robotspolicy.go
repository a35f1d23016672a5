package scraper

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
	"go.uber.org/zap"
)

// maxRobotsBytes caps how much of a robots.txt body is read. TripAdvisor's
// own file is a few KiB; anything past the cap is ignored.
const maxRobotsBytes = 512 << 10

// RobotsEnforcer gates fetches on each host's robots.txt. The rule group for
// the configured user agent is resolved once per host and cached for the
// lifetime of the run, including hosts whose robots.txt was unavailable.
type RobotsEnforcer struct {
	client    *http.Client
	userAgent string
	hosts     sync.Map // lowercased host -> *hostRules
	logger    *zap.Logger
}

// hostRules is the cached verdict for one host. A nil group means the host
// could not be consulted and is scraped unrestricted.
type hostRules struct {
	group *robotstxt.Group
}

// NewRobotsEnforcer builds the RobotsPolicy for a run. The robots.txt
// requests go through the fetcher's transport and carry its timeout, so
// they honor the same proxy and connection settings as the page fetches
// they guard.
func NewRobotsEnforcer(cfg Config, rt http.RoundTripper, logger *zap.Logger) RobotsPolicy {
	if !cfg.RespectRobots {
		return allowAllPolicy{}
	}
	return &RobotsEnforcer{
		client: &http.Client{
			Transport: rt,
			Timeout:   cfg.RequestTimeout,
		},
		userAgent: cfg.UserAgent,
		logger:    logger,
	}
}

// Allowed implements RobotsPolicy.
func (r *RobotsEnforcer) Allowed(ctx context.Context, rawURL string) bool {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	rules := r.rulesFor(ctx, parsed)
	if rules.group == nil {
		return true
	}
	return rules.group.Test(parsed.Path)
}

// CrawlDelay reports the host's requested pause between fetches, or zero
// when the host does not ask for one.
func (r *RobotsEnforcer) CrawlDelay(ctx context.Context, rawURL string) time.Duration {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return 0
	}
	rules := r.rulesFor(ctx, parsed)
	if rules.group == nil {
		return 0
	}
	return rules.group.CrawlDelay
}

func (r *RobotsEnforcer) rulesFor(ctx context.Context, parsed *url.URL) *hostRules {
	hostKey := strings.ToLower(parsed.Host)
	if cached, ok := r.hosts.Load(hostKey); ok {
		return cached.(*hostRules)
	}
	rules, _ := r.hosts.LoadOrStore(hostKey, r.resolveRules(ctx, parsed))
	return rules.(*hostRules)
}

// resolveRules fetches and parses one host's robots.txt. Failures are not
// fatal: the host is recorded as unrestricted so it is not re-fetched for
// every page.
func (r *RobotsEnforcer) resolveRules(ctx context.Context, parsed *url.URL) *hostRules {
	robotsURL := url.URL{Scheme: parsed.Scheme, Host: parsed.Host, Path: "/robots.txt"}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL.String(), nil)
	if err != nil {
		r.logger.Warn("robots.txt request invalid; host unrestricted", zap.String("host", parsed.Host), zap.Error(err))
		return &hostRules{}
	}
	req.Header.Set("User-Agent", r.userAgent)

	resp, err := r.client.Do(req)
	if err != nil {
		r.logger.Warn("robots.txt unreachable; host unrestricted", zap.String("host", parsed.Host), zap.Error(err))
		return &hostRules{}
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			r.logger.Debug("close robots.txt body", zap.Error(cerr))
		}
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRobotsBytes))
	if err != nil {
		r.logger.Warn("robots.txt read failed; host unrestricted", zap.String("host", parsed.Host), zap.Error(err))
		return &hostRules{}
	}
	data, err := robotstxt.FromStatusAndBytes(resp.StatusCode, body)
	if err != nil {
		r.logger.Warn("robots.txt unparseable; host unrestricted", zap.String("host", parsed.Host), zap.Error(err))
		return &hostRules{}
	}
	return &hostRules{group: data.FindGroup(r.userAgent)}
}

type allowAllPolicy struct{}

func (allowAllPolicy) Allowed(context.Context, string) bool { return true }

func (allowAllPolicy) CrawlDelay(context.Context, string) time.Duration { return 0 }
