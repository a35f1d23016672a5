package cmd

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mehranoffline/tripadvisor-scraper/internal/logging"
	"github.com/mehranoffline/tripadvisor-scraper/pkg/config"
)

var cfgFile string

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tripadvisor-scraper",
		Short: "Scrapes TripAdvisor forum search results into a CSV file.",
		Long: `tripadvisor-scraper fetches paginated forum search pages from
TripAdvisor concurrently, extracts topic records, keeps the ones matching
the configured keywords, and writes them to a CSV export.`,
	}

	// Initialize Viper configuration.
	cobra.OnInitialize(config.InitConfig)

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.tripadvisor-scraper.yaml)")

	cmd.AddCommand(newScrapeCmd())

	return cmd
}

// Execute is the main entry point.
func Execute() {
	logging.InitLogger()

	if err := newRootCmd().Execute(); err != nil {
		logging.L.Fatal("Command execution failed", zap.Error(err))
	}
}
