package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"abbonamenti/internal/amqp"
	"abbonamenti/internal/cli"
	"abbonamenti/internal/config"
	apphttp "abbonamenti/internal/http"
	applog "abbonamenti/internal/log"
	"abbonamenti/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(applog.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger, (*config.Config).Validate)

	st, closeStore := cli.OpenStore(context.Background(), logger, cfg)

	// Events are optional: the page works without a broker.
	var (
		opts       []services.Option
		amqpClient *amqp.Client
	)
	if cfg.AMQPURL != "" {
		c, err := amqp.NewClient(amqp.Options{
			URL:         cfg.AMQPURL,
			Exchange:    cfg.AMQPExchange,
			EventsQueue: cfg.AMQPEventsQueue,
			AlertsQueue: cfg.AMQPAlertsQueue,
		})
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, continuing without events", "error", err)
		} else {
			amqpClient = c
			opts = append(opts, services.WithPublisher(c))
			logger.Info("AMQP client initialized", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPEventsQueue)
		}
	} else {
		logger.Info("AMQP disabled - subscription events will not be published")
	}

	svc := services.NewSubscriptionService(st, opts...)

	startupCtx, cancelStartup := context.WithTimeout(context.Background(), 30*time.Second)
	if n, err := svc.BackfillIDs(startupCtx); err != nil {
		logger.Warn("Startup id backfill failed", "error", err, applog.FieldBackend, cfg.DataBackend)
	} else if n > 0 {
		logger.Info("Assigned missing subscription ids", "count", n)
	}
	cancelStartup()

	srv, err := apphttp.NewServer(apphttp.Config{
		Addr:               ":" + cfg.Port,
		Service:            svc,
		Store:              st,
		Logger:             logger,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
	})
	if err != nil {
		logger.Error("Failed to create HTTP server", "error", err)
		os.Exit(1)
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 25*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		if amqpClient != nil {
			if err := amqpClient.Close(); err != nil {
				logger.Warn("AMQP close error", "error", err)
			}
		}
		if err := closeStore(); err != nil {
			logger.Warn("Store close error", "error", err)
		}
	})

	logger.Info("Starting abbonamenti server", "port", cfg.Port, applog.FieldBackend, cfg.DataBackend)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
