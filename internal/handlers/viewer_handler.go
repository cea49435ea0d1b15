package handlers

import (
	"bytes"
	"encoding/json"
	"html/template"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sketchstacker/server/internal/gallery"
	"github.com/sketchstacker/server/internal/models"
	"github.com/sketchstacker/server/internal/observability"
	"github.com/sketchstacker/server/internal/services"
	"github.com/sketchstacker/server/internal/storage"
)

// SessionCookieName identifies a viewer's gallery session
const SessionCookieName = "gallery_session"

const (
	defaultThumbSize = 320
	maxThumbSize     = 1024
)

var weekdayNames = [7]string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}

// ViewerHandler serves the gallery page and the per-viewer gallery API
type ViewerHandler struct {
	sessions     *services.SessionCache
	store        storage.ObjectStore
	images       *services.ImageService
	publicURL    func(key string) string
	tmpl         *template.Template
	sessionTTL   time.Duration
	secureCookie bool
}

// NewViewerHandler creates a new ViewerHandler
func NewViewerHandler(
	sessions *services.SessionCache,
	store storage.ObjectStore,
	images *services.ImageService,
	publicURL func(key string) string,
	sessionTTL time.Duration,
	secureCookie bool,
) *ViewerHandler {
	return &ViewerHandler{
		sessions:     sessions,
		store:        store,
		images:       images,
		publicURL:    publicURL,
		tmpl:         template.Must(template.New("gallery").Parse(galleryTemplate)),
		sessionTTL:   sessionTTL,
		secureCookie: secureCookie,
	}
}

// ViewerItem is a displayed item with its public URL
type ViewerItem struct {
	Name  string `json:"name"`
	Label string `json:"label,omitempty"`
	URL   string `json:"url"`
}

// GalleryResponse is the JSON view of a viewer session
type GalleryResponse struct {
	gallery.Snapshot
	Items []ViewerItem `json:"items"`
}

type pageData struct {
	Snap     gallery.Snapshot
	Items    []ViewerItem
	Rows     [7][]gallery.CalendarCell
	Weekdays [7]string
}

// session returns the caller's session, creating and loading it on first use
func (h *ViewerHandler) session(w http.ResponseWriter, r *http.Request) (string, *gallery.Session, bool) {
	var id string
	if c, err := r.Cookie(SessionCookieName); err == nil {
		id = c.Value
	}

	id, s, created := h.sessions.GetOrCreate(id)
	if created {
		http.SetCookie(w, &http.Cookie{
			Name:     SessionCookieName,
			Value:    id,
			Path:     "/",
			MaxAge:   int(h.sessionTTL.Seconds()),
			HttpOnly: true,
			Secure:   h.secureCookie,
			SameSite: http.SameSiteLaxMode,
		})
	}

	// a failed first load stays failed until an explicit reload
	if !s.Loaded() && s.Err() == nil {
		h.load(r, id, s)
	}
	return id, s, created
}

func (h *ViewerHandler) load(r *http.Request, id string, s *gallery.Session) {
	ctx, span := observability.StartServiceSpan(r.Context(), "viewer", "Load", observability.SessionID(id))
	err := s.Load(ctx)
	observability.EndSpan(span, err)

	if err != nil {
		observability.WithContext(ctx).WithAttrs(observability.SessionID(id)).Warnf("Gallery load failed: %v", err)
	}
}

func (h *ViewerHandler) response(s *gallery.Session) GalleryResponse {
	snap := s.Snapshot()
	return GalleryResponse{Snapshot: snap, Items: h.viewerItems(snap.Items)}
}

func (h *ViewerHandler) viewerItems(items []gallery.Item) []ViewerItem {
	out := make([]ViewerItem, len(items))
	for i, it := range items {
		out[i] = ViewerItem{Name: it.Name, Label: it.Label, URL: h.publicURL(it.Name)}
	}
	return out
}

// Page handles GET / with the server-rendered gallery
func (h *ViewerHandler) Page(w http.ResponseWriter, r *http.Request) {
	_, s, _ := h.session(w, r)
	snap := s.Snapshot()

	data := pageData{
		Snap:     snap,
		Items:    h.viewerItems(snap.Items),
		Weekdays: weekdayNames,
	}
	for _, week := range snap.Calendar {
		for day, cell := range week {
			data.Rows[day] = append(data.Rows[day], cell)
		}
	}

	var buf bytes.Buffer
	if err := h.tmpl.Execute(&buf, data); err != nil {
		observability.WithContext(r.Context()).Errorf("Failed to render gallery: %v", err)
		http.Error(w, "Failed to render gallery", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(buf.Bytes())
}

// Gallery handles GET /api/gallery
func (h *ViewerHandler) Gallery(w http.ResponseWriter, r *http.Request) {
	_, s, _ := h.session(w, r)
	respondJSON(w, http.StatusOK, h.response(s))
}

// Next handles POST /api/gallery/next
func (h *ViewerHandler) Next(w http.ResponseWriter, r *http.Request) {
	_, s, _ := h.session(w, r)
	s.RevealNext()
	respondJSON(w, http.StatusOK, h.response(s))
}

// All handles POST /api/gallery/all
func (h *ViewerHandler) All(w http.ResponseWriter, r *http.Request) {
	_, s, _ := h.session(w, r)
	s.RevealAll()
	respondJSON(w, http.StatusOK, h.response(s))
}

// Year handles POST /api/gallery/year with {"year": 2024}
func (h *ViewerHandler) Year(w http.ResponseWriter, r *http.Request) {
	var req models.SelectYearRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Request body must be JSON with a \"year\" field.")
		return
	}
	if req.Year < 1970 || req.Year > 9999 {
		respondError(w, http.StatusBadRequest, "Year is out of range.")
		return
	}

	_, s, _ := h.session(w, r)
	s.SelectYear(req.Year)
	respondJSON(w, http.StatusOK, h.response(s))
}

// Reload handles POST /api/gallery/reload: refetch the manifest
func (h *ViewerHandler) Reload(w http.ResponseWriter, r *http.Request) {
	id, s, created := h.session(w, r)
	if !created {
		h.load(r, id, s)
	}
	respondJSON(w, http.StatusOK, h.response(s))
}

// Reset handles DELETE /api/gallery: forget the session
func (h *ViewerHandler) Reset(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(SessionCookieName); err == nil {
		h.sessions.Invalidate(c.Value)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	w.WriteHeader(http.StatusNoContent)
}

// Thumbnail handles GET /api/thumbnails/*?size=320
func (h *ViewerHandler) Thumbnail(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "*")
	if err := storage.ValidateKey(key); err != nil {
		respondDomainError(w, r, err)
		return
	}

	size := defaultThumbSize
	if v := r.URL.Query().Get("size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 16 || n > maxThumbSize {
			respondError(w, http.StatusBadRequest, "size must be between 16 and 1024")
			return
		}
		size = n
	}

	rc, err := h.store.Get(r.Context(), key)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	defer rc.Close()

	var buf bytes.Buffer
	if err := h.images.Thumbnail(&buf, rc, size); err != nil {
		respondDomainError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.Write(buf.Bytes())
}
