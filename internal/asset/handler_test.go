package asset

import (
	"bytes"
	"context"
	"encoding/json"
	"image/color"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/gorilla/mux"

	"github.com/kcwdesign/kcw/backend-go/internal/document"
	"github.com/kcwdesign/kcw/backend-go/internal/engine"
	"github.com/kcwdesign/kcw/backend-go/internal/session"
)

func newHub(t *testing.T) *session.Hub {
	t.Helper()
	h := session.NewHub(func(string) *engine.Engine {
		return engine.NewEngine(engine.Options{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
	})
	t.Cleanup(h.Stop)
	return h
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, imaging.New(w, h, color.NRGBA{R: 255, A: 255}), imaging.PNG); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func uploadRequest(t *testing.T, sessionID string, data []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "logo.png")
	if err != nil {
		t.Fatal(err)
	}
	fw.Write(data)
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/sessions/"+sessionID+"/images", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func router(h *Handler) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/api/sessions/{id}/images", h.Upload).Methods("POST")
	return r
}

func TestUploadInsertsImage(t *testing.T) {
	hub := newHub(t)
	s := hub.Create()
	dir := t.TempDir()
	h := NewHandler(dir, hub)

	rec := httptest.NewRecorder()
	router(h).ServeHTTP(rec, uploadRequest(t, s.ID, pngBytes(t, 1200, 300)))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}

	var resp UploadResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Width != 1200 || resp.Height != 300 || resp.Type != "png" {
		t.Errorf("response = %+v", resp)
	}
	if _, err := os.Stat(filepath.Join(dir, resp.ID+".png")); err != nil {
		t.Errorf("stored file: %v", err)
	}

	// The insert is asynchronous; poll the session until it lands.
	deadline := time.Now().Add(2 * time.Second)
	for {
		var img *document.Image
		s.Do(context.Background(), func(e *engine.Engine) error {
			if objs := e.Page().Objects; len(objs) == 1 {
				img, _ = objs[0].(*document.Image)
			}
			return nil
		})
		if img != nil {
			if img.W != 600 || img.H != 150 {
				t.Errorf("image box = %gx%g, want 600x150", img.W, img.H)
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("image never inserted")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestUploadRejects(t *testing.T) {
	hub := newHub(t)
	s := hub.Create()
	h := NewHandler(t.TempDir(), hub)

	tests := []struct {
		name    string
		session string
		data    []byte
		want    int
	}{
		{"unknown session", "sess_missing", pngBytes(t, 4, 4), http.StatusNotFound},
		{"not an image", s.ID, []byte("hello, world"), http.StatusUnsupportedMediaType},
		{"truncated png", s.ID, pngBytes(t, 64, 64)[:40], http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router(h).ServeHTTP(rec, uploadRequest(t, tt.session, tt.data))
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.want, rec.Body)
			}
		})
	}
}
