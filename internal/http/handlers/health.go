package handlers

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/shipway/server/internal/apperr"
)

// HealthHandler reports liveness, and store reachability when a check is configured.
type HealthHandler struct {
	check func(ctx context.Context) error
}

// NewHealthHandler creates a health handler. check may be nil.
func NewHealthHandler(check func(ctx context.Context) error) *HealthHandler {
	return &HealthHandler{check: check}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.check != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.check(ctx); err != nil {
			log.Printf("Health check failed: %v", err)
			respondWithError(w, http.StatusServiceUnavailable, "store unavailable", apperr.CodeInternal)
			return
		}
	}
	respondJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
