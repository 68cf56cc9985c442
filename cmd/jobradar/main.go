// Package main wires together the jobradar service binary.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/openhire/jobradar/internal/app"
	"github.com/openhire/jobradar/internal/config"
	"github.com/openhire/jobradar/internal/logging"
	"github.com/openhire/jobradar/internal/metrics"
)

func main() {
	configPath := flag.String("config", "", "path to config file (env vars override)")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "jobradar: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	metrics.Init()

	ctx := context.Background()
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("build application: %w", err)
	}

	logger.Info("jobradar starting", zap.Int("port", cfg.Server.Port))
	return a.Run(ctx)
}
