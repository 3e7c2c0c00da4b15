package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/andretaki/alliance-form-sub000/config"
	"github.com/andretaki/alliance-form-sub000/internal/adapters/delivery"
	"github.com/andretaki/alliance-form-sub000/internal/adapters/drainer"
	"github.com/andretaki/alliance-form-sub000/internal/core"
	"github.com/andretaki/alliance-form-sub000/internal/data"
	"github.com/andretaki/alliance-form-sub000/internal/observability/statsd"
)

const shutdownWaitTimeout = 10 * time.Second

// ServiceContainer holds all application services.
type ServiceContainer struct {
	Store         *data.RedisStore
	Health        *core.HealthMonitor
	Queue         *core.NotificationQueue
	Drainer       *core.QueueDrainer
	Recorder      *core.DecisionRecorder
	Backend       core.DeliveryBackend
	Observability ObservabilityContainer
}

// ObservabilityContainer groups shared observability dependencies.
type ObservabilityContainer struct {
	MetricsSink   *statsd.Client
	MetricsConfig config.ObservabilityMetricsConfig
}

// ServiceDeps groups dependencies for service initialization.
type ServiceDeps struct {
	Config      *config.AppConfig
	RedisClient redis.UniversalClient
	Logger      *slog.Logger
}

// buildObservability configures the metrics sink.
func buildObservability(logger *slog.Logger, cfg config.ObservabilityConfig) ObservabilityContainer {
	obsLogger := logger
	if obsLogger == nil {
		obsLogger = slog.Default()
	}

	var metricsSink *statsd.Client
	if cfg.Metrics.IsEnabled() {
		client, err := statsd.NewClient(statsd.Config{
			Enabled: true,
			Address: cfg.Metrics.StatsdAddress,
			Prefix:  cfg.Metrics.Prefix,
			Logger:  obsLogger,
		})
		if err != nil {
			obsLogger.Error("failed to initialise statsd client", "error", err)
		} else {
			metricsSink = client
		}
	}

	return ObservabilityContainer{
		MetricsSink:   metricsSink,
		MetricsConfig: cfg.Metrics,
	}
}

// NewServices wires the store, queue, drainer, and recorder from config.
func NewServices(deps *ServiceDeps) (ServiceContainer, error) {
	if deps == nil {
		return ServiceContainer{}, errors.New("service dependencies are required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	appCfg := deps.Config
	if appCfg == nil {
		appCfg = &config.AppConfig{}
	}

	observability := buildObservability(logger, appCfg.Observability)

	store := data.NewRedisStoreWithTimeout(deps.RedisClient, appCfg.Redis.OpTimeout)

	health := core.NewHealthMonitor(core.HealthMonitorOptions{
		Store: store,
		Config: core.HealthMonitorConfig{
			CacheInterval: appCfg.Health.CacheInterval,
			ProbeTimeout:  appCfg.Health.ProbeTimeout,
		},
		Logger: logger,
	})

	queue := core.NewNotificationQueue(core.NotificationQueueOptions{
		Store:  store,
		Health: health,
		Config: core.QueueConfig{
			QueueKey:    appCfg.Queue.Key,
			MaxAttempts: appCfg.Queue.MaxAttempts,
			RetryUnit:   appCfg.Queue.RetryUnit,
			RecordTTL:   appCfg.Queue.RecordTTL,
			Retention:   appCfg.Queue.Retention,
		},
		Logger: logger,
	})

	backend, err := delivery.NewClient(delivery.Config{
		APIKey:      appCfg.Delivery.APIKey,
		APIURL:      appCfg.Delivery.APIURL,
		DefaultFrom: appCfg.Delivery.From,
		Timeout:     appCfg.Delivery.Timeout,
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("create delivery client: %w", err)
	}

	queueDrainer := core.NewQueueDrainer(core.QueueDrainerOptions{
		Queue:   queue,
		Backend: backend,
		Config: core.DrainerConfig{
			BatchSize:   appCfg.Drainer.BatchSize,
			SendTimeout: appCfg.Drainer.SendTimeout,
		},
		Logger:  logger,
		Metrics: observability.MetricsSink,
	})

	recorder := core.NewDecisionRecorder(core.DecisionRecorderOptions{
		Store:  store,
		Logger: logger,
	})

	return ServiceContainer{
		Store:         store,
		Health:        health,
		Queue:         queue,
		Drainer:       queueDrainer,
		Recorder:      recorder,
		Backend:       backend,
		Observability: observability,
	}, nil
}

// ServiceOrchestrationConfig contains everything needed to run the enabled services.
type ServiceOrchestrationConfig struct {
	Config   *config.AppConfig
	Services ServiceContainer
	Logger   *slog.Logger
}

// backgroundService pairs a service mode with its blocking start function.
type backgroundService struct {
	mode  config.ServiceMode
	name  string
	start func(ctx context.Context) error
}

// backgroundServiceHandle tracks a running background service.
type backgroundServiceHandle struct {
	name string
	done <-chan struct{}
}

type serviceStartupDeps struct {
	ctx             context.Context
	cfg             *ServiceOrchestrationConfig
	logger          *slog.Logger
	enabledServices map[config.ServiceMode]bool
	errCh           chan<- error
}

func newDrainerBackgroundService(deps *serviceStartupDeps) backgroundService {
	return backgroundService{
		mode: config.ServiceModeDrainer,
		name: "queue drainer",
		start: func(ctx context.Context) error {
			if deps == nil || deps.cfg == nil {
				return nil
			}
			var drainerCfg config.DrainerConfig
			if deps.cfg.Config != nil {
				drainerCfg = deps.cfg.Config.Drainer
			}
			runner, err := drainer.NewRunner(drainer.RunnerOptions{
				Drainer:     deps.cfg.Services.Drainer,
				Queue:       deps.cfg.Services.Queue,
				Interval:    drainerCfg.Interval,
				CleanupSpec: drainerCfg.CleanupSpec,
				Logger:      deps.logger,
				Metrics:     deps.cfg.Services.Observability.MetricsSink,
			})
			if err != nil {
				return fmt.Errorf("create drain runner: %w", err)
			}
			return runner.Run(ctx)
		},
	}
}

func buildBackgroundServices(deps *serviceStartupDeps) []backgroundService {
	if deps == nil {
		return nil
	}
	return []backgroundService{
		newDrainerBackgroundService(deps),
	}
}

func startBackgroundServices(deps *serviceStartupDeps, services []backgroundService) []backgroundServiceHandle {
	handles := make([]backgroundServiceHandle, 0, len(services))
	for _, svc := range services {
		if !deps.enabledServices[svc.mode] {
			continue
		}
		done := make(chan struct{})
		handles = append(handles, backgroundServiceHandle{name: svc.name, done: done})

		go func(svc backgroundService, done chan<- struct{}) {
			defer close(done)
			deps.logger.Info("starting service", "service", svc.name)
			if err := svc.start(deps.ctx); err != nil {
				deps.errCh <- fmt.Errorf("%s: %w", svc.name, err)
			}
		}(svc, done)
	}
	return handles
}

func startHTTPServerIfEnabled(deps *serviceStartupDeps) *http.Server {
	if !deps.enabledServices[config.ServiceModeHTTP] {
		return nil
	}
	return StartHTTPServer(&HTTPServerConfig{
		Config:   deps.cfg.Config,
		Services: deps.cfg.Services,
		Logger:   deps.logger,
	})
}

// ServiceStartupResult holds the results of starting all services.
type ServiceStartupResult struct {
	HTTPServer *http.Server
	Background []backgroundServiceHandle
}

// startServices starts all enabled services and returns their completion channels.
func startServices(deps *serviceStartupDeps) ServiceStartupResult {
	return ServiceStartupResult{
		HTTPServer: startHTTPServerIfEnabled(deps),
		Background: startBackgroundServices(deps, buildBackgroundServices(deps)),
	}
}

// RunServicesWithShutdown starts all enabled services and manages their lifecycle.
// This function blocks until a shutdown signal is received or a service fails.
func RunServicesWithShutdown(cfg *ServiceOrchestrationConfig) error {
	if cfg == nil {
		return errors.New("service orchestration config is required")
	}
	serviceCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if cfg.Config == nil {
		return errors.New("service orchestration config missing AppConfig")
	}

	enabledServices, err := cfg.Config.GetEnabledServices()
	if err != nil {
		return fmt.Errorf("determine enabled services: %w", err)
	}
	errCh := make(chan error, len(enabledServices)+1)

	result := startServices(&serviceStartupDeps{
		ctx:             serviceCtx,
		cfg:             cfg,
		logger:          logger,
		enabledServices: enabledServices,
		errCh:           errCh,
	})

	return waitForShutdown(shutdownConfig{
		ctx:         serviceCtx,
		cancel:      cancel,
		errCh:       errCh,
		httpServer:  result.HTTPServer,
		metrics:     cfg.Services.Observability.MetricsSink,
		logger:      logger,
		backgrounds: result.Background,
	})
}

// shutdownConfig contains dependencies for graceful shutdown.
type shutdownConfig struct {
	ctx         context.Context
	cancel      context.CancelFunc
	errCh       <-chan error
	httpServer  *http.Server
	metrics     *statsd.Client
	logger      *slog.Logger
	backgrounds []backgroundServiceHandle
}

// waitForShutdown waits for shutdown signal or service error.
func waitForShutdown(cfg shutdownConfig) error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case <-quit:
		cfg.logger.Info("shutting down services...")
		cfg.cancel()
		return gracefulStop(cfg)
	case err := <-cfg.errCh:
		cfg.logger.Error("service error", "error", err)
		cfg.cancel()
		if stopErr := gracefulStop(cfg); stopErr != nil {
			cfg.logger.Error("graceful stop failed", "error", stopErr)
		}
		return err
	}
}

// gracefulStop attempts to gracefully stop all services.
func gracefulStop(cfg shutdownConfig) error {
	if cfg.httpServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownWaitTimeout)
		defer cancel()

		if err := ShutdownHTTPServer(ShutdownConfig{
			Context: shutdownCtx,
			Server:  cfg.httpServer,
			Logger:  cfg.logger,
		}); err != nil {
			return err
		}
	}

	for _, svc := range cfg.backgrounds {
		waitForService(svc.done, svc.name, cfg.logger)
	}

	if cfg.metrics != nil {
		if err := cfg.metrics.Close(); err != nil {
			cfg.logger.Error("close metrics sink failed", "error", err)
		}
	}

	return nil
}

// waitForService waits for a service to finish with timeout.
func waitForService(done <-chan struct{}, name string, logger *slog.Logger) {
	if done == nil {
		return
	}
	select {
	case <-done:
		logger.Info("service stopped", "service", name)
	case <-time.After(shutdownWaitTimeout):
		logger.Warn("service did not stop in time", "service", name)
	}
}
