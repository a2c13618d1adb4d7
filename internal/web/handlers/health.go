package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// Pinger checks store connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
	Name() string
}

// HealthHandler reports liveness and store reachability.
type HealthHandler struct {
	store  Pinger
	logger zerolog.Logger
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(store Pinger, logger zerolog.Logger) *HealthHandler {
	return &HealthHandler{store: store, logger: logger}
}

// Check handles the health check endpoint.
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		h.logger.Error().Err(err).Msg("health check: store unreachable")
		respondJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status":   "unavailable",
			"database": h.store.Name(),
		})
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"status":   "ok",
		"database": h.store.Name(),
	})
}
