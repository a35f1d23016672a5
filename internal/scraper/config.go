// Package scraper implements the forum scraping pipeline and its helpers.
package scraper

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures every knob that influences a scrape run. All values
// originate from Viper so the pipeline can be configured via config file,
// env vars, or CLI flags.
type Config struct {
	BaseURL        string
	MaxPages       int
	Output         string
	Keywords       []string
	Concurrency    int
	UserAgent      string
	RequestTimeout time.Duration
	MaxRetries     int
	RetryBaseDelay time.Duration
	RespectRobots  bool
	RatePerSecond  float64
	FetchDetails   bool
	MaxPageBytes   int64
	ResultsPerPage int
}

// LoadConfig constructs a Config by reading from Viper.
func LoadConfig(v *viper.Viper) (Config, error) {
	cfg := Config{
		BaseURL:        v.GetString("scraper.url"),
		MaxPages:       v.GetInt("scraper.max_pages"),
		Output:         v.GetString("scraper.output"),
		Keywords:       normalizeKeywords(v.GetStringSlice("scraper.keywords")),
		Concurrency:    v.GetInt("scraper.concurrency"),
		UserAgent:      v.GetString("scraper.user_agent"),
		RequestTimeout: v.GetDuration("scraper.request_timeout"),
		MaxRetries:     v.GetInt("scraper.max_retries"),
		RetryBaseDelay: v.GetDuration("scraper.retry_base_delay"),
		RespectRobots:  v.GetBool("scraper.respect_robots"),
		RatePerSecond:  v.GetFloat64("scraper.rate_per_second"),
		FetchDetails:   v.GetBool("scraper.fetch_details"),
		MaxPageBytes:   v.GetInt64("scraper.max_page_bytes"),
		ResultsPerPage: v.GetInt("scraper.results_per_page"),
	}
	return cfg, cfg.Validate()
}

// Validate checks for obviously bad configuration combinations. Any error
// here fails the run before a single request is issued.
func (c Config) Validate() error {
	if strings.TrimSpace(c.BaseURL) == "" {
		return fmt.Errorf("scraper.url must be set")
	}
	parsed, err := url.Parse(c.BaseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("scraper.url %q is not an absolute URL", c.BaseURL)
	}
	if c.MaxPages <= 0 {
		return fmt.Errorf("scraper.max_pages must be > 0")
	}
	if strings.TrimSpace(c.Output) == "" {
		return fmt.Errorf("scraper.output must be set")
	}
	if err := checkWritableDestination(c.Output); err != nil {
		return fmt.Errorf("scraper.output: %w", err)
	}
	if len(c.Keywords) == 0 {
		return fmt.Errorf("scraper.keywords must include at least one keyword")
	}
	if c.Concurrency <= 0 {
		return fmt.Errorf("scraper.concurrency must be > 0")
	}
	if c.UserAgent == "" {
		return fmt.Errorf("scraper.user_agent must be set")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("scraper.request_timeout must be > 0")
	}
	if c.MaxRetries <= 0 {
		return fmt.Errorf("scraper.max_retries must be > 0")
	}
	if c.RetryBaseDelay <= 0 {
		return fmt.Errorf("scraper.retry_base_delay must be > 0")
	}
	if c.RatePerSecond < 0 {
		return fmt.Errorf("scraper.rate_per_second must be >= 0")
	}
	if c.MaxPageBytes <= 0 {
		return fmt.Errorf("scraper.max_page_bytes must be > 0")
	}
	if c.ResultsPerPage <= 0 {
		return fmt.Errorf("scraper.results_per_page must be > 0")
	}
	return nil
}

// checkWritableDestination verifies the export destination's directory
// exists and accepts writes, so a bad path fails the run before any fetch.
func checkWritableDestination(dest string) error {
	dir := filepath.Dir(dest)
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("destination directory %q: %w", dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("destination directory %q is not a directory", dir)
	}
	f, err := os.CreateTemp(dir, ".permcheck-*")
	if err != nil {
		return fmt.Errorf("destination directory %q is not writable: %w", dir, err)
	}
	name := f.Name()
	if cerr := f.Close(); cerr != nil {
		return fmt.Errorf("close permission check file: %w", cerr)
	}
	return os.Remove(name)
}

func normalizeKeywords(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{})
	for _, kw := range in {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		key := strings.ToLower(kw)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, kw)
	}
	return out
}
