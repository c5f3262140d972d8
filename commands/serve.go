package commands

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"pages-deployer/app"
	"pages-deployer/config"
	"pages-deployer/database"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

type loader func() (*config.Config, *zap.Logger, error)

func newServeCommand(v *viper.Viper, load loader) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the deployment worker",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := load()
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()
			return serve(cmd.Context(), cfg, log)
		},
	}
	cmd.Flags().String("port", "", "HTTP port (overrides PORT)")
	_ = v.BindPFlag("port", cmd.Flags().Lookup("port"))
	return cmd
}

func serve(parent context.Context, cfg *config.Config, log *zap.Logger) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Connect(cfg)
	if err != nil {
		return err
	}
	if err := database.AutoMigrate(db); err != nil {
		return err
	}

	a, err := app.New(cfg, db, log, app.Options{})
	if err != nil {
		return err
	}

	if cfg.GitHubToken == "" {
		log.Warn("GITHUB_TOKEN is not set; deployments without a caller token will fail")
	}
	if !cfg.LLMConfigured() {
		log.Info("no generation backend configured; deterministic pages will be published")
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("API server starting", zap.String("port", cfg.Port))
		errCh <- a.Fiber.Listen(":" + cfg.Port)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
		log.Info("shutting down")
	}

	if err := a.Fiber.ShutdownWithTimeout(shutdownTimeout); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		log.Warn("http shutdown", zap.Error(err))
	}
	// In-flight deployments run to completion.
	a.Dispatcher.Wait()
	log.Info("stopped")
	return nil
}
