package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Skufu/heartrisk/internal/api"
	"github.com/Skufu/heartrisk/internal/config"
	"github.com/Skufu/heartrisk/internal/health"
	"github.com/Skufu/heartrisk/internal/logger"
	"github.com/Skufu/heartrisk/internal/model"
	"github.com/Skufu/heartrisk/internal/service"
	"github.com/Skufu/heartrisk/internal/store"
	"github.com/Skufu/heartrisk/internal/version"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "heartrisk",
		Short:         "Heart disease risk prediction server",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), configPath)
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file (default $HEARTRISK_CONFIG)")

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the HTTP server (default)",
			RunE: func(cmd *cobra.Command, args []string) error {
				return runServe(cmd.Context(), configPath)
			},
		},
		newTrainCmd(&configPath),
		&cobra.Command{
			Use:   "version",
			Short: "Print build information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintln(cmd.OutOrStdout(), "heartrisk", version.String())
			},
		},
	)
	return root
}

func loadRuntime(configPath string) (config.Config, *zap.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, nil, err
	}
	log, err := logger.NewLogger(cfg.Env, cfg.Logging.Level)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, log, nil
}

func snapshotConfig(m config.ModelConfig) model.SnapshotConfig {
	return model.SnapshotConfig{
		BundlePath:     m.BundlePath,
		DatasetPath:    m.DatasetPath,
		TestFraction:   m.TestFraction,
		Seed:           m.Seed,
		Bins:           m.HistogramBins,
		TrainIfMissing: m.TrainIfMissing,
	}
}

func runServe(ctx context.Context, configPath string) error {
	cfg, log, err := loadRuntime(configPath)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	gin.SetMode(cfg.Server.GinMode)

	snap, err := model.BuildSnapshot(snapshotConfig(cfg.Model), log)
	if err != nil {
		return fmt.Errorf("load model: %w", err)
	}

	st, err := store.Open(ctx, cfg.Database.URL, cfg.Database.ReadinessTimeout(), log)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer st.Close()

	h := api.NewHandler(
		service.NewPredictionService(snap.Classifier, st, log),
		service.NewHistoryService(st, log),
		snap,
		health.New(st, snap),
	)
	router := api.NewRouter(api.RouterConfig{
		BodyLimitBytes:   cfg.Server.BodyLimitBytes,
		CORSOrigins:      cfg.Server.CORSOrigins,
		StaticRoot:       api.ResolveStaticRoot(cfg.Server.StaticDir),
		ReadinessTimeout: cfg.Database.ReadinessTimeout(),
	}, h, st, log)

	server := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           router,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout(),
		ReadTimeout:       cfg.Server.ReadTimeout(),
		WriteTimeout:      cfg.Server.WriteTimeout(),
		IdleTimeout:       cfg.Server.IdleTimeout(),
	}

	serveErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	log.Info("server listening", zap.String("addr", server.Addr), zap.String("version", version.Version))
	return waitForShutdown(ctx, server, serveErr, cfg.Server.ShutdownTimeout(), log)
}

// waitForShutdown blocks until ctx is cancelled or the listener fails, then drains
// in-flight requests for at most timeout.
func waitForShutdown(ctx context.Context, server *http.Server, serveErr <-chan error, timeout time.Duration, log *zap.Logger) error {
	select {
	case err, ok := <-serveErr:
		if ok && err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}
