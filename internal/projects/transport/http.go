// Package transport provides HTTP handlers for the projects domain.
package transport

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pendergraft/donationwatch/internal/projects/domain"
	"github.com/pendergraft/donationwatch/internal/storage"
)

// CreateRequest is the HTTP request body for registering a project.
type CreateRequest struct {
	Title         string `json:"title"`
	Slug          string `json:"slug"`
	WalletAddress string `json:"walletAddress"`
}

// ProjectResponse is the JSON rendering of a project.
type ProjectResponse struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	Slug          string `json:"slug"`
	WalletAddress string `json:"walletAddress"`
	Verified      bool   `json:"verified"`
	CreatedAt     string `json:"createdAt"`
}

// FromProject converts a storage record into its JSON rendering.
func FromProject(p *storage.Project) ProjectResponse {
	return ProjectResponse{
		ID:            p.ID,
		Title:         p.Title,
		Slug:          p.Slug,
		WalletAddress: p.WalletAddress,
		Verified:      p.Verified,
		CreatedAt:     p.CreatedAt,
	}
}

// Handler handles HTTP requests for projects.
type Handler struct {
	svc domain.Service
}

// NewHandler creates a new projects HTTP handler.
func NewHandler(svc domain.Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterReadRoutes registers read-only project routes (no auth required).
func (h *Handler) RegisterReadRoutes(r chi.Router) {
	r.Get("/{slug}", h.handleGet)
}

// RegisterWriteRoutes registers write project routes (auth required).
func (h *Handler) RegisterWriteRoutes(r chi.Router) {
	r.Post("/", h.handleCreate)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON")
		return
	}

	p, err := h.svc.Create(r.Context(), domain.CreateRequest{
		Title:         req.Title,
		Slug:          req.Slug,
		WalletAddress: req.WalletAddress,
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidRequest):
			writeError(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		case errors.Is(err, domain.ErrDuplicate):
			writeError(w, http.StatusConflict, "CONFLICT", err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create project")
		}
		return
	}

	writeJSON(w, http.StatusCreated, FromProject(p))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")

	p, err := h.svc.GetBySlug(r.Context(), slug)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Project not found")
		case errors.Is(err, domain.ErrInvalidRequest):
			writeError(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to get project")
		}
		return
	}

	writeJSON(w, http.StatusOK, FromProject(p))
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
