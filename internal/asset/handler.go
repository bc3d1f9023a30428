package asset

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gorilla/mux"

	"github.com/kcwdesign/kcw/backend-go/internal/document"
	"github.com/kcwdesign/kcw/backend-go/internal/engine"
	"github.com/kcwdesign/kcw/backend-go/internal/session"
	"github.com/kcwdesign/kcw/backend-go/internal/typeid"
)

const maxUploadSize = 10 << 20 // 10MB

// extensions maps sniffed content types to the extension the original bytes are kept under.
var extensions = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/gif":  ".gif",
	"image/webp": ".webp",
	"image/bmp":  ".bmp",
}

// UploadResponse is returned from the upload endpoint. The object itself shows up in the
// session's next render.
type UploadResponse struct {
	ID     string `json:"id"`
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Type   string `json:"type"`
	Name   string `json:"name"`
}

// Sessions looks up live editing sessions.
type Sessions interface {
	Get(id string) (*session.Session, bool)
}

// Handler accepts image uploads and places them into sessions.
type Handler struct {
	dir      string // directory to keep original uploads in
	sessions Sessions
}

// NewHandler creates an asset handler that keeps uploaded files in dir.
func NewHandler(dir string, sessions Sessions) *Handler {
	if err := os.MkdirAll(dir, 0755); err != nil {
		slog.Error("create asset dir", "error", err, "dir", dir)
	}
	return &Handler{dir: dir, sessions: sessions}
}

// Upload handles POST /api/sessions/{id}/images (multipart form with a "file" field). The
// image is decoded here, off the session loop, and inserted without waiting: it lands on
// whatever page is current when the session gets to it.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	s, ok := h.sessions.Get(mux.Vars(r)["id"])
	if !ok {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)

	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		http.Error(w, "file too large (max 10MB)", http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "missing file field", http.StatusBadRequest)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, "failed to read file", http.StatusBadRequest)
		return
	}

	contentType := http.DetectContentType(data)
	ext, ok := extensions[contentType]
	if !ok {
		http.Error(w, "unsupported image type "+contentType, http.StatusUnsupportedMediaType)
		return
	}

	handle, err := document.DecodeImage(data)
	if err != nil {
		http.Error(w, "invalid image: "+err.Error(), http.StatusBadRequest)
		return
	}

	assetID := typeid.NewAssetID()
	filename := assetID + ext
	if err := copyFile(filepath.Join(h.dir, filename), bytes.NewReader(data)); err != nil {
		slog.Error("save asset file", "error", err)
		http.Error(w, "failed to save file", http.StatusInternalServerError)
		return
	}

	s.Go(func(e *engine.Engine) error {
		_, err := e.AddImage(handle)
		return err
	})

	width, height := handle.Size()
	resp := UploadResponse{
		ID:     assetID,
		URL:    fmt.Sprintf("/assets/%s", filename),
		Width:  width,
		Height: height,
		Type:   strings.TrimPrefix(ext, "."),
		Name:   header.Filename,
	}

	slog.Info("image uploaded", "session", s.ID, "asset", assetID, "width", width, "height", height)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(resp)
}

// Serve returns an http.Handler that serves stored asset files with caching headers.
func (h *Handler) Serve() http.Handler {
	fs := http.FileServer(http.Dir(h.dir))
	return http.StripPrefix("/assets/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Asset IDs are unique, so files are immutable
		w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
		fs.ServeHTTP(w, r)
	}))
}

// copyFile copies src reader to a file at dst path.
func copyFile(dst string, src io.Reader) error {
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()
	_, err = io.Copy(out, src)
	return err
}
