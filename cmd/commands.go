package main

import (
	"cloudnest/config"
	"cloudnest/jobs"
	"cloudnest/media"
	"cloudnest/repository/mongodb"
	"cloudnest/repository/postgres"
	"cloudnest/routes"
	"cloudnest/services"
	"cloudnest/utils"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const (
	shutdownTimeout    = 15 * time.Second
	maxMultipartMemory = 32 << 20
)

func newRootCommand() *cobra.Command {
	var cfg *config.Config

	rootCmd := &cobra.Command{
		Use:   "cloudnest",
		Short: "CloudNest personal cloud storage server",
		Long: `CloudNest stores each user's files in a private folder tree, enforces a
storage quota and publishes files or folders through share links.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.Load()
			if err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			cfg = loaded
			utils.InitLogger(cfg.LogLevel, cfg.IsDevelopment())
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cfg)
		},
	}

	rootCmd.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API (default)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cfg)
		},
	})
	rootCmd.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and indexes",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(cfg)
		},
	})
	rootCmd.AddCommand(&cobra.Command{
		Use:   "reconcile-quota",
		Short: "Recompute every user's storage usage from their files",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReconcileQuota(cfg)
		},
	})

	return rootCmd
}

func runServe(cfg *config.Config) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore(store)

	objects, err := openObjectStorage(ctx, cfg)
	if err != nil {
		return err
	}

	limiter, closeLimiter, err := openLimiter(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeLimiter()

	container := routes.NewServiceContainer(routes.Dependencies{
		Store:     store,
		Objects:   objects,
		Inspector: media.NewFFmpeg(cfg.MediaTimeout),
		Limiter:   limiter,
		Auth: services.AuthConfig{
			JWTSecret:           cfg.JWTSecret,
			TokenTTL:            cfg.JWTExpiration,
			DefaultStorageLimit: cfg.DefaultStorageLimit,
			BcryptCost:          cfg.BcryptCost,
			AdminEmails:         cfg.AdminEmails,
		},
		MaxFileSize:  cfg.MaxFileSize,
		CookieSecure: cfg.CookieSecure,
	})

	scheduler := jobs.NewScheduler(0)
	if err := scheduler.Add("quota-reconcile", cfg.QuotaReconcileSchedule, jobs.ReconcileQuota(container.Quota)); err != nil {
		return err
	}
	if err := scheduler.Add("share-sweep", cfg.ShareSweepSchedule, jobs.SweepExpiredShares(container.Shares)); err != nil {
		return err
	}
	scheduler.Start()
	defer scheduler.Stop()

	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           routes.NewRouter(container, cfg.AllowedOrigins, maxMultipartMemory),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.Port).Msg("Starting CloudNest server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down server")
	shutdownCtx, shutdownCancel := config.CreateContext(shutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	log.Info().Msg("Server stopped")
	return nil
}

func runMigrate(cfg *config.Config) error {
	ctx, cancel := config.CreateContext(5 * time.Minute)
	defer cancel()

	switch cfg.DBDriver {
	case "postgres":
		pool, err := postgres.Connect(ctx, postgresOptions(cfg))
		if err != nil {
			return err
		}
		defer pool.Close()

		if err := postgres.Migrate(ctx, pool); err != nil {
			return err
		}
		log.Info().Msg("PostgreSQL migrations applied")
	case "mongo":
		// indexes are ensured on connect
		store, err := mongodb.Connect(ctx, mongoOptions(cfg))
		if err != nil {
			return err
		}
		closeStore(store)
		log.Info().Msg("MongoDB indexes ensured")
	default:
		log.Info().Str("db_driver", cfg.DBDriver).Msg("Nothing to migrate")
	}
	return nil
}

func runReconcileQuota(cfg *config.Config) error {
	ctx, cancel := config.CreateContext(30 * time.Minute)
	defer cancel()

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore(store)

	quota := services.NewQuotaService(store.Users)
	return jobs.Run(ctx, "quota-reconcile", jobs.ReconcileQuota(quota))
}
