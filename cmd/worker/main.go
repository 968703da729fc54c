package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/Domenick1991/ridehold/config"
	"github.com/Domenick1991/ridehold/internal/bootstrap"
	"github.com/Domenick1991/ridehold/internal/email"
	"github.com/Domenick1991/ridehold/internal/kafka"
	"github.com/Domenick1991/ridehold/internal/obs"
	"github.com/Domenick1991/ridehold/internal/scheduler"
)

func main() {
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger := obs.NewLogger(cfg.Env).With("component", "worker")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := obs.InitTracer(ctx, cfg.Tracing.ServiceName+"-worker", cfg.Tracing.Endpoint, cfg.Env)
	if err != nil {
		logger.Error("init tracer", "error", err)
		os.Exit(1)
	}
	defer shutdownTracer(context.Background())

	app, err := bootstrap.NewApp(ctx, cfg, logger)
	if err != nil {
		logger.Error("init app", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	sweeper := scheduler.New(app.Holds, app.Store, cfg.Scheduler.Interval(),
		scheduler.WithBatchSize(cfg.Scheduler.BatchSize),
		scheduler.WithLogger(logger),
	)
	if err := sweeper.Start(ctx); err != nil {
		logger.Error("start scheduler", "error", err)
		os.Exit(1)
	}

	if cfg.Events.Driver == "kafka" {
		consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.NotificationsTopic, logger)
		defer consumer.Close()
		sender := email.NewSender(logger)

		go func() {
			if err := consumer.Consume(ctx, sender.Send); err != nil {
				logger.Error("consumer stopped", "error", err)
			}
		}()
	}

	<-ctx.Done()
	logger.Info("shutting down")
	<-sweeper.Stop().Done()
}
