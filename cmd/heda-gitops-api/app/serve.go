package app

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"

	gitopsapp "github.com/heda-org/heda-gitops/internal/app"
	"github.com/heda-org/heda-gitops/internal/config"
	"github.com/heda-org/heda-gitops/internal/logger"
	"github.com/heda-org/heda-gitops/internal/telemetry"
	"github.com/heda-org/heda-gitops/pkg/versions"
)

const (
	defaultGracefulTimeout = 30 * time.Second // Kubernetes-friendly shutdown time
	defaultEnvFile         = ".env"
)

type serveOptions struct {
	configPath string
	address    string
	envFiles   []string
}

func newServeCmd() *cobra.Command {
	opts := &serveOptions{}
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the GitOps API server",
		Long: `Start the GitOps API server.

Configuration comes from an optional YAML file (--config) overridden by the
environment. Variables from .env files are loaded into the environment first,
without replacing variables that are already set.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, opts)
		},
	}

	serveCmd.Flags().StringVar(&opts.configPath, "config", "", "Path to configuration file (YAML format)")
	serveCmd.Flags().StringVar(&opts.address, "address", "", "Address to listen on, overrides server.address")
	serveCmd.Flags().StringSliceVar(&opts.envFiles, "env-file", nil, "Environment files to load (default .env when present)")

	return serveCmd
}

// loadEnvFiles loads the given files, or .env when none are named and it exists
func loadEnvFiles(files []string) error {
	if len(files) == 0 {
		if _, err := os.Stat(defaultEnvFile); errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		files = []string{defaultEnvFile}
	}
	if err := godotenv.Load(files...); err != nil {
		return fmt.Errorf("failed to load environment files: %w", err)
	}
	logger.Debugf("Loaded environment from %v", files)
	return nil
}

func runServe(cmd *cobra.Command, opts *serveOptions) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := loadEnvFiles(opts.envFiles); err != nil {
		return err
	}

	var loadOpts []config.Option
	if opts.configPath != "" {
		loadOpts = append(loadOpts, config.WithConfigPath(opts.configPath))
	}
	cfg, err := config.LoadConfig(loadOpts...)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	logger.Infof("Loaded configuration (org: %s, auth: %s, git backend: %s)",
		cfg.GitHub.Org, cfg.Auth.Mode, cfg.Git.Backend)

	tel, err := telemetry.New(ctx,
		telemetry.WithTelemetryConfig(cfg.Telemetry),
		telemetry.WithServiceVersion(versions.GetVersionInfo().Version),
		telemetry.WithResourceAttributes(attribute.String("heda.github.org", cfg.GitHub.Org)),
	)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			logger.Errorf("Failed to shut down telemetry: %v", err)
		}
	}()

	appOpts := []gitopsapp.GitOpsAppOptions{
		gitopsapp.WithConfig(cfg),
		gitopsapp.WithMeterProvider(tel.MeterProvider()),
		gitopsapp.WithTracerProvider(tel.TracerProvider()),
		gitopsapp.WithMetricsHandler(tel.MetricsHandler()),
	}
	if opts.address != "" {
		appOpts = append(appOpts, gitopsapp.WithAddress(opts.address))
	}

	app, err := gitopsapp.NewGitOpsApp(ctx, appOpts...)
	if err != nil {
		return fmt.Errorf("failed to build application: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- app.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		logger.Info("Received shutdown signal")
	}

	if err := app.Stop(defaultGracefulTimeout); err != nil {
		return err
	}
	return <-errCh
}
