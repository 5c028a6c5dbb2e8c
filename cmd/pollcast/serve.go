package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"pollcast/internal/app"
	"pollcast/internal/config"
)

func newServeCmd(root *rootOptions) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the polling server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, root, port)
			if err != nil {
				return err
			}
			return runServer(cmd.Context(), cfg)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "HTTP port, overrides config and $PORT")
	return cmd
}

// loadConfig applies the --port override on top of file and environment
func loadConfig(cmd *cobra.Command, root *rootOptions, port int) (*config.Config, error) {
	cfg, err := config.Load(root.configPath)
	if err != nil {
		return nil, err
	}
	if cmd.Flags().Changed("port") {
		cfg.HTTP.Port = port
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid configuration: %w", err)
		}
	}
	return cfg, nil
}

// FUNCTIONAL DISCOVERY: Signal handling ensures graceful shutdown in production environments
func runServer(parent context.Context, cfg *config.Config) error {
	if parent == nil {
		parent = context.Background()
	}
	logger := newLogger(cfg, os.Stderr)
	gin.SetMode(gin.ReleaseMode)

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.NewApplication(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to create application: %w", err)
	}

	if err := application.Start(ctx); err != nil {
		return fmt.Errorf("failed to start application: %w", err)
	}
	logger.Info("pollcast listening", "addr", application.Addr(), "version", Version)

	<-ctx.Done()
	logger.Info("shutdown signal received")

	// Shutdown gets a fresh context; the signal context is already cancelled
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := application.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
