package commands

import (
	"fmt"

	"github.com/coin-pulse/internal/app"
	"github.com/coin-pulse/pkg/config"
	"github.com/coin-pulse/pkg/logger"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	verbose bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "coin-pulse",
	Short: "Live crypto market data in your local currency",
	Long: `coin-pulse keeps paginated market snapshots, historical candles and
live ticker streams in sync, normalized into a single target currency.

Features:
• Paginated asset snapshots joined with market metadata
• Historical candles for fixed chart windows
• Live price streams with automatic reconnect
• Chart geometry, SVG and PNG rendering
• Optional Redis cache and NATS tick fan-out`,
	Version:      "1.0.0",
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

// loadConfig reads .env and the environment, then applies global flags
func loadConfig() (*config.Config, error) {
	if err := config.LoadDotEnv(); err != nil {
		// .env is optional
		fmt.Printf("Note: .env file not loaded: %v\n", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}
	return cfg, nil
}

// newCoreApp builds the market services for one-shot commands. Callers must
// Close the returned app.
func newCoreApp() (*app.App, *logrus.Logger, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}

	// Results go to stdout
	if cfg.Logging.Output == "stdout" {
		cfg.Logging.Output = "stderr"
	}

	log, err := logger.New(&cfg.Logging)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}

	application := app.New(cfg, log)
	if err := application.InitializeCore(); err != nil {
		return nil, nil, err
	}
	return application, log, nil
}
