package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/sketchstacker/server/internal/models"
	"github.com/sketchstacker/server/internal/storage"
)

// Pinger is satisfied by *sql.DB
type Pinger interface {
	PingContext(ctx context.Context) error
}

// HealthHandler handles health check endpoints
type HealthHandler struct {
	db    Pinger
	store storage.ObjectStore
}

// NewHealthHandler creates a new HealthHandler; db may be nil
func NewHealthHandler(db Pinger, store storage.ObjectStore) *HealthHandler {
	return &HealthHandler{db: db, store: store}
}

// HealthCheck returns the server health status. The database is pinged;
// the object store is only named, since listing a bucket is not cheap.
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response := models.HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
	}
	if h.store != nil {
		response.Storage = h.store.Name()
	}

	if h.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.db.PingContext(ctx); err != nil {
			response.Status = "degraded"
			response.Database = err.Error()
			respondJSON(w, http.StatusServiceUnavailable, response)
			return
		}
		response.Database = "ok"
	}

	respondJSON(w, http.StatusOK, response)
}
