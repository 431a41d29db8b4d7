package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

const healthCheckTimeout = 5 * time.Second

// Health returns the health status of the API and its dependencies.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	checks := map[string]string{"api": "ok"}
	status := map[string]interface{}{
		"status": "healthy",
		"checks": checks,
	}
	statusCode := http.StatusOK

	if err := h.repo.Ping(ctx); err != nil {
		slog.Error("Health check failed", "error", err)
		status["status"] = "degraded"
		checks["database"] = "unreachable"
		statusCode = http.StatusServiceUnavailable
	} else {
		checks["database"] = "ok"
	}

	if h.stream.Observers != nil && h.stream.Subscribers != nil {
		status["stream"] = map[string]int{
			"observers":   h.stream.Observers(),
			"subscribers": h.stream.Subscribers(),
		}
	}

	JSON(w, statusCode, status)
}

// GetConfig returns the server configuration for the frontend.
func (h *Handler) GetConfig(w http.ResponseWriter, _ *http.Request) {
	JSON(w, http.StatusOK, map[string]interface{}{
		"default_delay_seconds": int(h.cfg.DefaultDelay.Seconds()),
		"gateway_mode":          h.cfg.Gateway.Mode,
		"max_upload_bytes":      h.cfg.Uploads.MaxBytes,
	})
}

// RegisterHealth registers the health and config routes.
func (h *Handler) RegisterHealth(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.Health)
		r.Get("/config", h.GetConfig)
	})
}
