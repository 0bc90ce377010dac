package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/melih/lighthouse-dockerhost/internal/adapters/docker"
	"github.com/melih/lighthouse-dockerhost/internal/adapters/http"
	"github.com/melih/lighthouse-dockerhost/internal/adapters/inventory"
	"github.com/melih/lighthouse-dockerhost/internal/config"
	"github.com/melih/lighthouse-dockerhost/internal/core/domain"
	"github.com/melih/lighthouse-dockerhost/internal/core/services"
	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newServeCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newServeCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:           "api",
		Short:         "Serve the container lifecycle HTTP API",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), configPath)
		},
	}
	cmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a config file")
	return cmd
}

func serve(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logger := cfg.Log.NewLogger()
	slog.SetDefault(logger)

	// 1. Adapters
	engine := docker.NewAdapter(docker.WithTimeout(cfg.Engine.Timeout), docker.WithLogger(logger))
	sessions, closeInventory, err := inventory.FromConfig(ctx, cfg.Inventory)
	if err != nil {
		return fmt.Errorf("failed to open inventory: %w", err)
	}
	defer closeInventory()

	// 2. Service + HTTP surface
	lifecycle := services.NewLifecycle(engine, sessions, logger)
	app := http.NewApp(lifecycle, domain.HostResource{Name: cfg.Host.Name, Address: cfg.Engine.Address}, cfg.Server.RequestTimeout)

	go func() {
		<-ctx.Done()
		if err := app.Shutdown(); err != nil {
			logger.Error("shutdown failed", "err", err)
		}
	}()

	logger.Info("server starting", "listen", cfg.Server.Listen, "engine", cfg.Engine.Address)
	if err := app.Listen(cfg.Server.Listen); err != nil {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}
