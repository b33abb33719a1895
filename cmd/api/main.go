package main

import (
	"context"
	"log"

	"market-gateway/config"
	"market-gateway/internal/app"
	"market-gateway/internal/retention"
	"market-gateway/internal/server"
	"market-gateway/pkg/logger"
)

func main() {
	cfg := config.LoadConfig()

	mode := logger.DevelopmentMode
	if cfg.AppMode == server.ReleaseMode {
		mode = logger.ProductionMode
	}
	l := logger.New(mode)
	logger.SetGlobalLogger(l)
	defer l.Sync()

	// Queue counters are recorded on the global OpenTelemetry meter provider.
	// Exporting them is left to the process that installs one.
	ctx := context.Background()
	gateway, err := app.Build(ctx, cfg, l)
	if err != nil {
		log.Fatalf("Failed to start gateway: %v", err)
	}
	defer gateway.Close()

	if cfg.RetentionEnabled {
		runner := retention.NewRunner(gateway.Retention)
		runner.Start(ctx)
		defer runner.Stop()
	}

	srv := server.New(cfg, l)
	srv.SetupRoutes(gateway.Handlers, gateway.Limits, gateway.Health)
	if err := srv.Start(); err != nil {
		l.Errorf("server stopped with error: %v", err)
	}
}
