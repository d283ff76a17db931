// Package transport provides HTTP handlers for the donations domain.
package transport

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pendergraft/donationwatch/internal/donations/domain"
)

// Handler handles HTTP requests for donations.
type Handler struct {
	svc domain.Service
}

// NewHandler creates a new donations HTTP handler.
func NewHandler(svc domain.Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterReadRoutes registers read-only donation routes (no auth required).
func (h *Handler) RegisterReadRoutes(r chi.Router) {
	r.Get("/{id}", h.handleGet)
}

// RegisterWriteRoutes registers write donation routes (auth required).
func (h *Handler) RegisterWriteRoutes(r chi.Router) {
	r.Post("/", h.handleCreate)
}

// RegisterProjectRoutes registers donation routes nested under projects.
func (h *Handler) RegisterProjectRoutes(r chi.Router) {
	r.Get("/{slug}/donations", h.handleListByProject)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON")
		return
	}

	d, err := h.svc.Create(r.Context(), req.ToDomain())
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrProjectNotFound):
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Project not found")
		case errors.Is(err, domain.ErrInvalidNetwork):
			writeError(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		case errors.Is(err, domain.ErrInvalidRequest):
			writeError(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		case errors.Is(err, domain.ErrDuplicate):
			writeError(w, http.StatusConflict, "CONFLICT", err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create donation")
		}
		return
	}

	writeJSON(w, http.StatusCreated, FromDonation(d))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	d, err := h.svc.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Donation not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to get donation")
		return
	}

	writeJSON(w, http.StatusOK, FromDonation(d))
}

func (h *Handler) handleListByProject(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")

	donations, err := h.svc.ListByProjectSlug(r.Context(), slug)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrProjectNotFound):
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Project not found")
		case errors.Is(err, domain.ErrInvalidRequest):
			writeError(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list donations")
		}
		return
	}

	data := make([]DonationResponse, len(donations))
	for i := range donations {
		data[i] = FromDonation(&donations[i])
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"data":  data,
		"count": len(data),
	})
}

// Helper functions

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"code":    code,
			"message": message,
		},
	})
}
