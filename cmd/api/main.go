package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gigbook/internal/api"
	"gigbook/internal/app"
	"gigbook/internal/config"
	"gigbook/internal/logger"
)

func main() {
	cfg := config.Load()
	logger.Init(cfg.LogLevel, cfg.LogFormat)
	log := logger.Get()

	a, err := app.New(cfg, "gigbook-api")
	if err != nil {
		logger.Fatal("Failed to initialize", "error", err)
	}

	if a.DB != nil {
		if err := a.DB.RunMigrations(); err != nil {
			a.Close()
			logger.Fatal("Failed to run migrations", "error", err)
		}
	}

	server := api.NewServer(a)

	srv := &http.Server{
		Addr:              server.Addr(),
		Handler:           server.GetRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("Starting server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}

	a.Close()
	log.Info("Server stopped")
}
