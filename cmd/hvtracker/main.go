// Package main запускает HTTP-сервер сервиса HV-трекера.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mmeshcher/hvtracker-system/internal/catalog"
	"github.com/mmeshcher/hvtracker-system/internal/config"
	"github.com/mmeshcher/hvtracker-system/internal/handler"
	"github.com/mmeshcher/hvtracker-system/internal/middleware"
	"github.com/mmeshcher/hvtracker-system/internal/repository"
	"github.com/mmeshcher/hvtracker-system/internal/service"
	"github.com/mmeshcher/hvtracker-system/internal/studytime"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sugar := logger.Sugar()

	cfg, err := config.Parse()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	if err := catalog.Validate(); err != nil {
		sugar.Fatalw("catalog validation error", "error", err.Error())
	}

	store, err := repository.NewPostgresStore(cfg.DatabaseURI)
	if err != nil {
		sugar.Fatalw("database initialization error", "error", err.Error())
	}
	defer store.Close()

	var studyClient *studytime.Client
	if cfg.StudyTimeAddress != "" {
		studyClient = studytime.NewClient(cfg.StudyTimeAddress)
	}

	var hours service.HoursProvider
	if studyClient != nil {
		hours = studyClient
	}

	svc := service.NewService(store, hours, logger)

	authMiddleware := middleware.NewAuthMiddleware(cfg.SecretKey)
	h := handler.NewHandler(svc, logger, authMiddleware)

	r := h.SetupRouter()

	server := &http.Server{
		Addr:    cfg.RunAddress,
		Handler: r,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	// Запуск HTTP-сервера
	g.Go(func() error {
		sugar.Infow("starting hvtracker server", "addr", cfg.RunAddress)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown при отмене контекста (сигнал или ошибка в другой горутине)
	g.Go(func() error {
		<-ctx.Done()
		sugar.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		sugar.Info("server stopped gracefully")
		return nil
	})

	if err := g.Wait(); err != nil {
		sugar.Fatalw("application terminated with error", "error", err)
	}
}
