package httpx

import (
	"log/slog"
	"net/http"

	"github.com/andretaki/alliance-form-sub000/internal/core"
)

// RouterServices holds all the services needed by the HTTP router.
type RouterServices struct {
	Queue    *core.NotificationQueue
	Drainer  *core.QueueDrainer
	Recorder *core.DecisionRecorder
	Health   core.HealthChecker
	Backend  core.DeliveryBackend

	// NoticeFrom optionally overrides the sender on customer decision notices.
	NoticeFrom string

	Logger *slog.Logger
}

// NewRouter creates and configures the HTTP router.
func NewRouter(services RouterServices) http.Handler {
	logger := services.Logger
	if logger == nil {
		logger = slog.Default()
	}

	mux := http.NewServeMux()

	queueHandlers := &QueueHandlers{
		Queue:   services.Queue,
		Drainer: services.Drainer,
		Health:  services.Health,
		Backend: services.Backend,
		Logger:  logger,
	}
	decisionHandlers := &DecisionHandlers{
		Recorder:   services.Recorder,
		Queue:      services.Queue,
		Drainer:    services.Drainer,
		Logger:     logger,
		NoticeFrom: services.NoticeFrom,
	}

	mux.Handle("POST /queue/process", http.HandlerFunc(queueHandlers.ProcessQueue))
	mux.Handle("GET /queue/stats", http.HandlerFunc(queueHandlers.QueueStats))
	mux.Handle("GET /queue/cleanup", http.HandlerFunc(queueHandlers.CleanupQueue))
	mux.Handle("POST /queue/cleanup", http.HandlerFunc(queueHandlers.CleanupQueue))
	mux.Handle("POST /notifications", http.HandlerFunc(queueHandlers.EnqueueNotification))
	mux.Handle("GET /decisions", http.HandlerFunc(decisionHandlers.RecordDecision))
	mux.Handle("GET /healthz", http.HandlerFunc(healthHandler))
	mux.Handle("HEAD /healthz", http.HandlerFunc(healthHandler))

	var handler http.Handler = mux
	handler = Logging(logger)(handler)
	handler = Recover(logger)(handler)
	return handler
}
