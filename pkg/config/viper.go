// Package config is responsible for initializing the application's configuration.
// It uses the Viper library to read settings from a config file, environment
// variables, and command-line flags, providing a unified configuration system.
package config

import (
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/mehranoffline/tripadvisor-scraper/internal/logging"
)

// InitConfig initializes the application's configuration using Viper.
// It sets up default values, defines configuration search paths, and enables
// reading from environment variables. This function is designed to be called
// once at application startup.
func InitConfig() {
	// --- Set Search Paths ---
	viper.SetConfigName("config")
	viper.AddConfigPath(".")                         // Current working directory
	viper.AddConfigPath("/etc/tripadvisor-scraper/") // System-wide configuration
	viper.AddConfigPath("$HOME/.tripadvisor-scraper")

	// --- Set Defaults ---
	const defaultUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
		"AppleWebKit/537.36 (KHTML, like Gecko) " +
		"Chrome/115.0.0.0 Safari/537.36"
	viper.SetDefault("scraper.user_agent", defaultUA)
	viper.SetDefault("scraper.max_pages", 50)
	viper.SetDefault("scraper.concurrency", 5)
	viper.SetDefault("scraper.request_timeout", "15s")
	viper.SetDefault("scraper.max_retries", 3)
	viper.SetDefault("scraper.retry_base_delay", "250ms")
	viper.SetDefault("scraper.respect_robots", true)
	viper.SetDefault("scraper.rate_per_second", 2.0)
	viper.SetDefault("scraper.fetch_details", false)
	viper.SetDefault("scraper.max_page_bytes", 5*1024*1024)
	viper.SetDefault("scraper.results_per_page", 20)

	// --- Environment Variables ---
	viper.SetEnvPrefix("SCRAPER") // e.g., SCRAPER_SCRAPER_MAX_PAGES=10
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// --- Read Config File ---
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			logging.L.Debug("Config file not found; using defaults and environment variables.")
		} else {
			logging.L.Error("Error reading config file", zap.Error(err))
		}
	} else {
		logging.L.Info("Using config file", zap.String("path", viper.ConfigFileUsed()))
	}
}
