// Package cmd defines and implements the CLI commands for the scraper executable.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/mehranoffline/tripadvisor-scraper/internal/export"
	"github.com/mehranoffline/tripadvisor-scraper/internal/logging"
	"github.com/mehranoffline/tripadvisor-scraper/internal/parse"
	"github.com/mehranoffline/tripadvisor-scraper/internal/sanitize"
	"github.com/mehranoffline/tripadvisor-scraper/internal/scraper"
)

// newScrapeCmd creates and configures the 'scrape' subcommand. It builds the
// pipeline from configuration and runs it once.
func newScrapeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Runs one scrape of the configured forum search",
		Long: `Fetches up to max-pages result pages of the given search URL with
bounded concurrency, filters the extracted topics by keyword, and writes
the survivors to the output CSV. Individual page failures are reported in
the final summary and never fail the run.`,

		RunE: runScrapeCommand,
	}

	flags := cmd.Flags()
	flags.String("url", "", "base forum search URL (required)")
	flags.Int("max-pages", 50, "maximum number of result pages to fetch")
	flags.String("output", "", "destination CSV path (required)")
	flags.StringSlice("keywords", nil, "keywords to match, comma separated (required)")
	flags.Int("concurrency", 5, "maximum simultaneous page fetches")
	flags.Bool("fetch-details", false, "fetch each topic's detail page for full-text matching")

	mustBind := func(key, flag string) {
		if err := viper.BindPFlag(key, flags.Lookup(flag)); err != nil {
			panic(fmt.Sprintf("bind flag %s: %v", flag, err))
		}
	}
	mustBind("scraper.url", "url")
	mustBind("scraper.max_pages", "max-pages")
	mustBind("scraper.output", "output")
	mustBind("scraper.keywords", "keywords")
	mustBind("scraper.concurrency", "concurrency")
	mustBind("scraper.fetch_details", "fetch-details")

	return cmd
}

func runScrapeCommand(cmd *cobra.Command, _ []string) error {
	logger := logging.L

	cfg, err := scraper.LoadConfig(viper.GetViper())
	if err != nil {
		return fmt.Errorf("load scraper config: %w", err)
	}

	engine, closeFn, err := buildEngine(cfg, logger)
	if err != nil {
		return err
	}
	defer closeFn()

	summary, err := engine.Run(cmd.Context())
	if err != nil {
		return fmt.Errorf("run scraper: %w", err)
	}

	logger.Info("scrape command finished",
		zap.Int("pages_attempted", summary.PagesAttempted),
		zap.Int("pages_failed", summary.PagesFailed),
		zap.Int("records_exported", summary.RecordsExported),
	)
	return nil
}

func buildEngine(cfg scraper.Config, logger *zap.Logger) (*scraper.Engine, func(), error) {
	policy := scraper.NewRetryPolicy(cfg.MaxRetries, cfg.RetryBaseDelay)

	// The fetcher builds its own robots.txt enforcer so the robots
	// requests share its transport and timeout.
	fetcher, err := scraper.NewCollyFetcher(cfg, policy, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("init fetcher: %w", err)
	}

	engine := scraper.NewEngine(
		cfg,
		fetcher,
		sanitize.NewValidator(cfg.MaxPageBytes),
		parse.New(logger),
		export.NewCSVWriter(logger),
		logger,
	)
	return engine, fetcher.Close, nil
}
