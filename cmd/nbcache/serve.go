package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"nbcache/internal/gateway/app"
)

var servePort string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve stored outputs and the event stream over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if servePort != "" {
			cfg.Port = servePort
		}
		a, err := app.New(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		logger.Info("output cache ready",
			zap.String("root", a.Config.Root),
			zap.String("context_id", a.Config.ContextID),
			zap.String("mode", string(a.Config.Mode)))

		errCh := make(chan error, 1)
		go func() {
			errCh <- a.Start()
		}()

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		select {
		case err := <-errCh:
			_ = a.Close()
			return err
		case <-quit:
		}

		logger.Info("shutting down server")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return a.Shutdown(ctx)
	},
}

func init() {
	serveCmd.Flags().StringVar(&servePort, "port", "", "listen address (overrides PORT)")
	rootCmd.AddCommand(serveCmd)
}
