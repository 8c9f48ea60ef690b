package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gigbook/cmd/consumers/jobs"
	"gigbook/internal/app"
	"gigbook/internal/config"
	"gigbook/internal/consumers"
	"gigbook/internal/logger"
	"gigbook/internal/repository"
)

func main() {
	cfg := config.Load()
	logger.Init(cfg.LogLevel, cfg.LogFormat)
	log := logger.Get()

	log.Info("Starting consumers service...")

	a, err := app.New(cfg, "gigbook-consumers")
	if err != nil {
		logger.Fatal("Failed to initialize", "error", err)
	}
	defer a.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var consumerService *consumers.ConsumerService
	if a.NATS != nil || a.AMQP != nil {
		projector := consumers.NewProjector(a.Store, repository.NewConversationRepository(a.Store))
		consumerService, err = consumers.NewConsumerService(a.NATS, a.AMQP, consumers.NewHandlers(projector))
		if err != nil {
			logger.Fatal("Failed to create consumer service", "error", err)
		}
		if err := consumerService.Start(ctx); err != nil {
			logger.Fatal("Failed to start consumers", "error", err)
		}
	} else {
		log.Warn("No conversation broker configured, only the fee clearing job runs")
	}

	feeJob := jobs.NewFeeClearingJob(a.Services.Escrow, cfg.Escrow.ClearInterval)
	feeJob.Start(ctx)

	log.Info("Consumers service started successfully")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down consumers service...")

	feeJob.Stop()
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if consumerService != nil {
		if err := consumerService.Shutdown(shutdownCtx); err != nil {
			log.Error("Error during shutdown", "error", err)
		}
	}

	log.Info("Consumers service stopped")
}
