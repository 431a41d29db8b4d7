// Package api provides HTTP handlers for the campaign service.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/ashureev/campaignd/internal/campaign"
	"github.com/ashureev/campaignd/internal/config"
	"github.com/ashureev/campaignd/internal/domain"
	"github.com/ashureev/campaignd/internal/store"
)

// Engine is the campaign lifecycle the handlers drive.
type Engine interface {
	Start(in campaign.StartInput) (domain.Snapshot, error)
	Status(id string) (domain.Snapshot, error)
	Stop(id string) (domain.Snapshot, error)
	List() []domain.Snapshot
}

// StreamStats reports push-channel activity on the health endpoint.
type StreamStats struct {
	Observers   func() int
	Subscribers func() int
}

// Handler provides common handler utilities.
type Handler struct {
	repo   store.Repository
	engine Engine
	cfg    *config.Config
	stream StreamStats
}

// NewHandler creates a new Handler with common dependencies.
func NewHandler(repo store.Repository, engine Engine, cfg *config.Config, stream StreamStats) *Handler {
	return &Handler{
		repo:   repo,
		engine: engine,
		cfg:    cfg,
		stream: stream,
	}
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Fail writes the {success:false, message} envelope used by the campaign routes.
func Fail(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]interface{}{
		"success": false,
		"message": message,
	})
}
