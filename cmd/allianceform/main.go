package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/andretaki/alliance-form-sub000/config"
	"github.com/andretaki/alliance-form-sub000/internal/bootstrap"
)

func main() {
	ctx := context.Background()
	logger := bootstrap.InitLogger()
	if err := run(ctx, logger); err != nil {
		logger.ErrorContext(ctx, "fatal error", "error", err)
		os.Exit(1) //nolint:forbidigo // Main entrypoint should exit with non-zero status on fatal errors.
	}
}

func run(ctx context.Context, logger *slog.Logger) error {
	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		return err
	}
	cfgPtr := &cfg

	logStartupInfo(ctx, logger, cfgPtr)

	if err = bootstrap.ValidateServiceConfig(cfgPtr); err != nil {
		return err
	}

	redisClient, err := bootstrap.ConnectRedis(bootstrap.RedisDeps{
		Config: cfg.Redis,
		Logger: logger,
	})
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer func() {
		if cerr := redisClient.Close(); cerr != nil {
			logger.ErrorContext(ctx, "close redis failed", "error", cerr)
		}
	}()

	services, err := bootstrap.NewServices(&bootstrap.ServiceDeps{
		Config:      cfgPtr,
		RedisClient: redisClient,
		Logger:      logger,
	})
	if err != nil {
		return err
	}

	return bootstrap.RunServicesWithShutdown(&bootstrap.ServiceOrchestrationConfig{
		Config:   cfgPtr,
		Services: services,
		Logger:   logger,
	})
}

func logStartupInfo(ctx context.Context, logger *slog.Logger, cfg *config.AppConfig) {
	enabled, err := cfg.GetEnabledServices()
	if err != nil {
		logger.WarnContext(ctx, "unable to determine enabled services", "error", err)
		return
	}
	modes := make([]string, 0, len(enabled))
	for mode := range enabled {
		modes = append(modes, string(mode))
	}
	logger.InfoContext(ctx, "starting allianceform service",
		"queue_key", cfg.Queue.Key,
		"http_addr", cfg.HTTP.Addr,
		"enabled_services", modes)
}
