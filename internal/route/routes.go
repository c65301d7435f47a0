package route

import (
	"net/http"

	"faceemotion/internal/config"
	"faceemotion/internal/handler"
	"faceemotion/internal/logger"
	"faceemotion/internal/middleware"
	"faceemotion/internal/service"
)

// SetupRoutes registers one route per command plus the annotate, stream,
// history and health endpoints, and wraps the mux with the middleware chain.
func SetupRoutes(manager *service.Manager, cfg *config.Config, logger *logger.Logger) http.Handler {
	mux := http.NewServeMux()

	// Commands
	for _, cmd := range handler.Commands() {
		mux.HandleFunc("/"+cmd.Name, handler.CommandHandler(cmd, manager, cfg, logger))
	}
	mux.HandleFunc("/annotate", handler.AnnotateHandler(manager, cfg, logger))
	mux.HandleFunc("/stream", handler.StreamHandler(manager, cfg, logger))

	// Journal
	mux.HandleFunc("/history", handler.HistoryHandler(manager, logger))
	mux.HandleFunc("/history/stats", handler.HistoryStatsHandler(manager, logger))

	mux.HandleFunc("/healthz", handler.HealthHandler(logger))
	mux.HandleFunc("/", handler.MetaHandler(manager, logger))

	return middleware.Chain(mux,
		middleware.RequestIDMiddleware,
		middleware.LoggingMiddleware(logger),
		middleware.RateLimitMiddleware(cfg.RateLimitRPS, cfg.RateLimitBurst, cfg.TrustForwardedFor, logger),
		middleware.AuthMiddleware(cfg.APIToken),
	)
}
