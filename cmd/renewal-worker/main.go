package main

import (
	"context"
	"errors"
	"os"
	"time"

	"abbonamenti/internal/amqp"
	"abbonamenti/internal/cli"
	"abbonamenti/internal/config"
	applog "abbonamenti/internal/log"
	"abbonamenti/internal/services"
	"abbonamenti/internal/worker"
)

const dialAttempts = 5

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(applog.ComponentWorker)
	cfg := cli.LoadAndValidateConfig(logger, (*config.Config).ValidateWorker)

	ctx, done := cli.GracefulShutdown(logger, 10*time.Second, nil)

	st, closeStore := cli.OpenStore(ctx, logger, cfg)
	defer func() {
		if err := closeStore(); err != nil {
			logger.Warn("Store close error", "error", err)
		}
	}()

	client, err := amqp.DialWithRetry(ctx, amqp.Options{
		URL:         cfg.AMQPURL,
		Exchange:    cfg.AMQPExchange,
		EventsQueue: cfg.AMQPEventsQueue,
		AlertsQueue: cfg.AMQPAlertsQueue,
	}, dialAttempts)
	if err != nil {
		logger.Error("Failed to connect to AMQP", "error", err)
		os.Exit(1)
	}
	defer client.Close()

	notifier := services.NewRenewalNotifier(st, client)
	logger.Info("Starting renewal-worker",
		"interval", cfg.RenewalScanInterval,
		applog.FieldBackend, cfg.DataBackend,
		"alerts_queue", cfg.AMQPAlertsQueue)

	w := worker.NewRenewalWorker(notifier, client, cfg.RenewalScanInterval)
	if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Renewal worker failed", "error", err)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Renewal-worker stopped")
}

