package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/disintegration/imaging"
	"github.com/gorilla/mux"

	"github.com/kcwdesign/kcw/backend-go/internal/document"
	"github.com/kcwdesign/kcw/backend-go/internal/engine"
	"github.com/kcwdesign/kcw/backend-go/internal/render"
	"github.com/kcwdesign/kcw/backend-go/internal/session"
)

const (
	defaultThumbSize = 240
	maxThumbSize     = 1024
)

var errBadParam = errors.New("bad parameter")

// Sessions looks up live editing sessions.
type Sessions interface {
	Get(id string) (*session.Session, bool)
}

// Handler serves raster exports of session pages.
type Handler struct {
	sessions Sessions
	renderer *render.Renderer
	maxZoom  float64
}

// NewHandler caps export zoom at maxZoom, or engine.DefaultMaxZoom when it is not positive.
func NewHandler(sessions Sessions, renderer *render.Renderer, maxZoom float64) *Handler {
	if maxZoom <= 0 {
		maxZoom = engine.DefaultMaxZoom
	}
	return &Handler{sessions: sessions, renderer: renderer, maxZoom: maxZoom}
}

// capture copies one page out of the session so rasterizing never blocks editing. index < 0
// means the current page, and only then is the export file name returned.
func capture(ctx context.Context, s *session.Session, index int) (*document.Page, string, error) {
	var (
		page *document.Page
		name string
	)
	err := s.Do(ctx, func(e *engine.Engine) error {
		i := index
		if i < 0 {
			i = e.PageIndex()
		}
		pages := e.Pages()
		if i >= len(pages) {
			return document.ErrPageOutOfRange
		}
		cp, err := document.DuplicatePage(pages[i])
		if err != nil {
			return fmt.Errorf("copy page %d: %w", i, err)
		}
		page = cp
		if index < 0 {
			name = e.ExportName()
		}
		return nil
	})
	return page, name, err
}

// ExportPNG handles GET /api/sessions/{id}/export.png?zoom=1. The current page is rendered
// without selection chrome.
func (h *Handler) ExportPNG(w http.ResponseWriter, r *http.Request) {
	s, ok := h.sessions.Get(mux.Vars(r)["id"])
	if !ok {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}

	zoom := 1.0
	if v := r.URL.Query().Get("zoom"); v != "" {
		z, err := strconv.ParseFloat(v, 64)
		if err != nil || z < engine.MinZoom || z > h.maxZoom {
			http.Error(w, fmt.Sprintf("zoom must be between %g and %g", engine.MinZoom, h.maxZoom), http.StatusBadRequest)
			return
		}
		zoom = z
	}

	page, name, err := capture(r.Context(), s, -1)
	if err != nil {
		writeError(w, err)
		return
	}

	data, err := h.renderer.PNG(page, zoom)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	w.Write(data)

	slog.Info("page exported", "session", s.ID, "file", name, "zoom", zoom, "bytes", len(data))
}

// Thumbnail handles GET /api/sessions/{id}/pages/{n}/thumb.png?size=240. n is zero-based.
func (h *Handler) Thumbnail(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	s, ok := h.sessions.Get(vars["id"])
	if !ok {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}

	index, err := strconv.Atoi(vars["n"])
	if err != nil || index < 0 {
		writeError(w, fmt.Errorf("%w: page index", errBadParam))
		return
	}
	size := defaultThumbSize
	if v := r.URL.Query().Get("size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > maxThumbSize {
			writeError(w, fmt.Errorf("%w: size must be 1..%d", errBadParam, maxThumbSize))
			return
		}
		size = n
	}

	page, _, err := capture(r.Context(), s, index)
	if err != nil {
		writeError(w, err)
		return
	}

	// Render at twice the target so the downscale has detail to work with.
	zoom := min(1, 2*float64(size)/max(page.Width, page.Height))
	dc, err := h.renderer.Rasterize(page, 0, zoom)
	if err != nil {
		writeError(w, err)
		return
	}
	thumb := imaging.Fit(dc.Image(), size, size, imaging.Lanczos)
	dc.Close()

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumb, imaging.PNG); err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errBadParam):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, document.ErrPageOutOfRange):
		http.Error(w, "page not found", http.StatusNotFound)
	case errors.Is(err, session.ErrClosed):
		http.Error(w, "session closed", http.StatusGone)
	case errors.Is(err, render.ErrTooLarge):
		http.Error(w, err.Error(), http.StatusRequestEntityTooLarge)
	case errors.Is(err, context.Canceled):
		// client went away
	default:
		slog.Error("export failed", "error", err)
		http.Error(w, "export failed", http.StatusInternalServerError)
	}
}
