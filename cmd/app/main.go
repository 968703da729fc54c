package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/Domenick1991/ridehold/config"
	"github.com/Domenick1991/ridehold/internal/bootstrap"
	"github.com/Domenick1991/ridehold/internal/obs"
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
	logger := obs.NewLogger(cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := obs.InitTracer(ctx, cfg.Tracing.ServiceName, cfg.Tracing.Endpoint, cfg.Env)
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

	if err := bootstrap.Run(ctx, cfg, app.Holds, app.Checks, logger); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}
