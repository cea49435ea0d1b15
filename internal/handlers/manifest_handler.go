package handlers

import (
	"net/http"

	"github.com/sketchstacker/server/internal/manifest"
)

// ManifestHandler exposes manual manifest publication
type ManifestHandler struct {
	publisher *manifest.Publisher
}

// NewManifestHandler creates a new ManifestHandler
func NewManifestHandler(publisher *manifest.Publisher) *ManifestHandler {
	return &ManifestHandler{publisher: publisher}
}

// Publish handles POST /api/manifest/publish
func (h *ManifestHandler) Publish(w http.ResponseWriter, r *http.Request) {
	resp, err := h.publisher.Publish(r.Context())
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}
