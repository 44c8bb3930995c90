package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"nbcache/internal/gateway/app"
	"nbcache/internal/gateway/config"
)

var (
	configPath string
	rootDir    string
	contextID  string
	mode       string
	verbose    bool

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "nbcache",
	Short: "Notebook output cache and viewer content server",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg := zap.NewProductionConfig()
		if verbose {
			cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = cfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file")
	rootCmd.PersistentFlags().StringVar(&rootDir, "root", "", "cache root directory")
	rootCmd.PersistentFlags().StringVar(&contextID, "context", "", "live execution context id")
	rootCmd.PersistentFlags().StringVar(&mode, "mode", "", "deployment mode (desktop|server)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// loadConfig applies command line overrides on top of file and environment settings.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if rootDir != "" {
		cfg.Root = rootDir
	}
	if contextID != "" {
		cfg.ContextID = contextID
	}
	if mode != "" {
		m, err := config.ParseMode(mode)
		if err != nil {
			return nil, err
		}
		cfg.Mode = m
	}
	return cfg, nil
}

func newApp(ctx context.Context) (*app.App, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return app.New(ctx, cfg, logger)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
