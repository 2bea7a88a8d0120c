package books

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/bookshelf/backend/internal/auth"
	"github.com/bookshelf/backend/internal/common"
	"github.com/bookshelf/backend/internal/models"
)

// Handler holds book HTTP handlers. Routes must sit behind RequireAuth.
type Handler struct {
	svc *Service
	log *slog.Logger
}

func NewHandler(svc *Service, log *slog.Logger) *Handler {
	return &Handler{svc: svc, log: log}
}

// List returns all books of the caller.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := h.owner(w, r)
	if !ok {
		return
	}
	books, err := h.svc.List(r.Context(), ownerID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, books)
}

// Get returns one of the caller's books.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := h.owner(w, r)
	if !ok {
		return
	}
	book, err := h.svc.Get(r.Context(), ownerID, chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, book)
}

// Create adds a book owned by the caller.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := h.owner(w, r)
	if !ok {
		return
	}
	var req models.CreateBookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, models.MessageResponse{Message: "invalid request body"})
		return
	}
	book, err := h.svc.Create(r.Context(), ownerID, req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, book)
}

// Update applies a partial update to one of the caller's books.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := h.owner(w, r)
	if !ok {
		return
	}
	var patch models.UpdateBookRequest
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeJSON(w, http.StatusBadRequest, models.MessageResponse{Message: "invalid request body"})
		return
	}
	book, err := h.svc.Update(r.Context(), ownerID, chi.URLParam(r, "id"), patch)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, book)
}

// Delete removes one of the caller's books.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := h.owner(w, r)
	if !ok {
		return
	}
	if err := h.svc.Delete(r.Context(), ownerID, chi.URLParam(r, "id")); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, models.MessageResponse{Message: "book deleted"})
}

func (h *Handler) owner(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, models.MessageResponse{Message: "not authenticated"})
	}
	return id, ok
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, models.MessageResponse{Message: verr.Message, Field: verr.Field})
	case errors.Is(err, common.ErrNotFound):
		writeJSON(w, http.StatusNotFound, models.MessageResponse{Message: "book not found"})
	default:
		h.log.ErrorContext(r.Context(), "book store failure", "err", err, "method", r.Method, "path", r.URL.Path)
		writeJSON(w, http.StatusInternalServerError, models.MessageResponse{Message: "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
