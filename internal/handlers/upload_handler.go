package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sketchstacker/server/internal/models"
	"github.com/sketchstacker/server/internal/services"
)

// UploadHandler handles image upload and ledger endpoints
type UploadHandler struct {
	uploads     *services.UploadService
	maxBodySize int64
}

// NewUploadHandler creates a new UploadHandler. maxImageBytes is the decoded
// image limit; the JSON body may be a third larger because of base64.
func NewUploadHandler(uploads *services.UploadService, maxImageBytes int64) *UploadHandler {
	return &UploadHandler{
		uploads:     uploads,
		maxBodySize: maxImageBytes/3*4 + 64<<10,
	}
}

// Upload handles POST /api/upload with a JSON {"image": "<base64>"} body
func (h *UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodySize)

	var req models.UploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			respondError(w, http.StatusRequestEntityTooLarge, models.ErrPayloadTooLarge.Message)
			return
		}
		respondError(w, http.StatusBadRequest, "Request body must be JSON with an \"image\" field.")
		return
	}

	resp, err := h.uploads.Upload(r.Context(), req.Image)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, resp)
}

// List handles GET /api/uploads?skip=&take=
func (h *UploadHandler) List(w http.ResponseWriter, r *http.Request) {
	skip, _ := strconv.Atoi(r.URL.Query().Get("skip"))
	take, _ := strconv.Atoi(r.URL.Query().Get("take"))

	uploads, total, err := h.uploads.List(r.Context(), skip, take)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}

	items := make([]models.UploadInfo, len(uploads))
	for i, u := range uploads {
		items[i] = models.UploadInfo{Upload: *u, URL: h.uploads.URL(u.ObjectKey)}
	}
	respondJSON(w, http.StatusOK, models.UploadListResponse{Uploads: items, Total: total})
}

// FindByHash handles GET /api/uploads/hash/{hash}
func (h *UploadHandler) FindByHash(w http.ResponseWriter, r *http.Request) {
	upload, err := h.uploads.FindByHash(r.Context(), chi.URLParam(r, "hash"))
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	if upload == nil {
		respondError(w, http.StatusNotFound, "No upload with that hash.")
		return
	}

	respondJSON(w, http.StatusOK, models.UploadInfo{Upload: *upload, URL: h.uploads.URL(upload.ObjectKey)})
}

// Delete handles DELETE /api/objects/*
func (h *UploadHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.uploads.Delete(r.Context(), chi.URLParam(r, "*")); err != nil {
		respondDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
