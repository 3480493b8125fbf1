package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"vision-inspector/config"
	"vision-inspector/internal/api/rest"
	"vision-inspector/internal/container"
	"vision-inspector/internal/vision"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Собираем адаптеры и сервисы приложения
	appContainer, err := container.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to build application", slog.Any("error", err))
		os.Exit(1)
	}
	defer appContainer.Close()
	logger.Info("application built", slog.String("vision_backend", vision.Backend))

	if cfg.AutostartProgram != "" {
		if _, err := appContainer.InspectionService.StartProgram(ctx, cfg.AutostartProgram); err != nil {
			logger.Error("autostart failed", slog.String("program_id", cfg.AutostartProgram), slog.Any("error", err))
		}
	}

	handler := &rest.Handler{Inspection: appContainer.InspectionService, Logger: logger}
	srv := &http.Server{
		Addr:        cfg.HTTPAddr,
		Handler:     rest.NewRouter(handler, cfg.HTTPTimeout),
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 30 * time.Second,
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		logger.Info("http api listening", slog.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", slog.Any("error", err))
			stop()
		}
	}()

	if appContainer.Bot != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			logger.Info("bot is running")
			if err := appContainer.Bot.Run(ctx); err != nil {
				logger.Error("bot error", slog.Any("error", err))
			}
		}()
	} else {
		logger.Warn("TELEGRAM_TOKEN is not set, bot disabled")
	}

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	wg.Wait()
}
