//	@title			Artwork Gallery API
//	@version		1.0
//	@description	Upload ingestion for a personal artwork gallery.
//
//	@host		localhost:8080
//	@BasePath	/api
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				JWT Bearer token. Format: **Bearer {token}**

package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/artgallery/service/internal/cleanup"
	"github.com/artgallery/service/internal/config"
	"github.com/artgallery/service/internal/logger"
	"github.com/artgallery/service/internal/server"
	"github.com/artgallery/service/internal/storage"
	"github.com/artgallery/service/internal/upload"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	zl, err := logger.New(cfg.Log)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	if err := run(cfg, zl); err != nil {
		zl.Fatal("server exited", zap.Error(err))
	}
}

func run(cfg *config.Config, zl *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store := storage.Open(ctx, cfg.Storage, zl)

	svc := upload.NewService(store, upload.Config{
		MaxBytes:            cfg.Upload.MaxBytes,
		AllowedContentTypes: cfg.Upload.AllowedContentTypes,
		TempDir:             cfg.Upload.TempDir,
		Secrets:             []string{cfg.Storage.AccessKey, cfg.Storage.SecretKey},
	}, zl)

	srv := &http.Server{
		Addr: ":" + cfg.Port,
		Handler: server.NewRouter(server.Deps{
			Upload:      upload.NewHandler(svc, zl),
			Logger:      zl,
			CORSOrigins: cfg.CORSOrigins,
			JWTSecret:   cfg.Upload.JWTSecret,
		}),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		zl.Info("server listening",
			zap.String("addr", srv.Addr),
			zap.String("env", cfg.AppEnv),
			zap.Bool("storage_configured", svc.Configured()),
			zap.Bool("auth_enabled", cfg.Upload.JWTSecret != ""),
		)
		zl.Info("swagger UI", zap.String("url", "http://localhost:"+cfg.Port+"/swagger/"))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		zl.Info("shutting down gracefully")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("forced shutdown: %w", err)
		}
		return nil
	})

	if cfg.Cleanup.Enabled {
		sweeper := cleanup.NewTempFileSweeper(
			cfg.Upload.TempDir,
			upload.TempPattern,
			cfg.Cleanup.MaxAge,
			cfg.Cleanup.Interval,
			zl,
		)
		g.Go(func() error {
			return sweeper.Run(gCtx)
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	zl.Info("server stopped")
	return nil
}
