package design

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/kcwdesign/kcw/backend-go/internal/auth"
	"github.com/kcwdesign/kcw/backend-go/internal/document"
	"github.com/kcwdesign/kcw/backend-go/internal/engine"
	"github.com/kcwdesign/kcw/backend-go/internal/session"
)

const maxBodySize = 1 << 20

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Create handles POST /api/sessions. The body is optional.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := decodeBody(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	created, err := h.service.Create(r.Context(), req)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, created)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	state, err := h.service.State(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, state)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Close(mux.Vars(r)["id"]); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Act handles POST /api/sessions/{id}/actions. Rejected actions answer with the error and the
// state, whose status line explains the rejection.
func (h *Handler) Act(w http.ResponseWriter, r *http.Request) {
	var action Action
	if err := decodeBody(r, &action); err != nil || action.Type == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	state, err := h.service.Apply(r.Context(), mux.Vars(r)["id"], action)
	if err != nil {
		if state == nil {
			handleServiceError(w, err)
			return
		}
		status, msg := errorStatus(err)
		writeJSON(w, status, map[string]any{"error": msg, "state": state})
		return
	}

	writeJSON(w, http.StatusOK, state)
}

func (h *Handler) Pages(w http.ResponseWriter, r *http.Request) {
	state, err := h.service.State(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, state.Pages)
}

// ObjectImage handles GET /api/sessions/{id}/objects/{objectId}/image and serves the bytes the
// image was uploaded as.
func (h *Handler) ObjectImage(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	objectID, err := strconv.Atoi(vars["objectId"])
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid object id"})
		return
	}

	data, contentType, err := h.service.ObjectImage(r.Context(), vars["id"], objectID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (h *Handler) Presets(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.service.Presets())
}

func (h *Handler) ListSaved(w http.ResponseWriter, r *http.Request) {
	entries, err := h.service.Saved(r.Context())
	if err != nil {
		slog.Error("list designs failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	writeJSON(w, http.StatusOK, entries)
}

// DeleteSaved handles DELETE /api/designs/{key}. A session may only drop the design it saves
// under.
func (h *Handler) DeleteSaved(w http.ResponseWriter, r *http.Request) {
	sessionID := auth.SessionIDFromContext(r.Context())
	if err := h.service.Forget(r.Context(), sessionID, mux.Vars(r)["key"]); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func decodeBody(r *http.Request, v any) error {
	err := json.NewDecoder(io.LimitReader(r.Body, maxBodySize)).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound, "not found"
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden, err.Error()
	case errors.Is(err, ErrObjectMissing):
		return http.StatusNotFound, "object not found"
	case errors.Is(err, session.ErrClosed):
		return http.StatusGone, "session closed"
	case errors.Is(err, engine.ErrNothingSaved):
		return http.StatusNotFound, "nothing saved yet"
	case errors.Is(err, engine.ErrNoSelection):
		return http.StatusConflict, "no object selected"
	case errors.Is(err, document.ErrLastPage):
		return http.StatusConflict, "at least one page required"
	case errors.Is(err, engine.ErrNoStore):
		return http.StatusServiceUnavailable, "saving is not available"
	case errors.Is(err, ErrBadAction),
		errors.Is(err, ErrNotAnImage),
		errors.Is(err, engine.ErrImageRequired),
		errors.Is(err, engine.ErrInvalidAlign),
		errors.Is(err, document.ErrUnknownKind),
		errors.Is(err, document.ErrUnknownPreset),
		errors.Is(err, document.ErrPageOutOfRange):
		return http.StatusBadRequest, err.Error()
	default:
		slog.Error("service error", "error", err)
		return http.StatusInternalServerError, "internal error"
	}
}

func handleServiceError(w http.ResponseWriter, err error) {
	status, msg := errorStatus(err)
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
