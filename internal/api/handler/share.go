package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/sectorlens/sectorlens/internal/api/middleware"
	"github.com/sectorlens/sectorlens/internal/api/response"
	"github.com/sectorlens/sectorlens/internal/domain"
	"github.com/sectorlens/sectorlens/internal/service"
)

// ShareHandler serves public share snapshots and lets signed-in users
// publish them.
type ShareHandler struct {
	shares *service.ShareService
}

// NewShareHandler creates a new share handler
func NewShareHandler(shares *service.ShareService) *ShareHandler {
	return &ShareHandler{shares: shares}
}

// Get handles GET /api/v1/share/{shareID} (public)
func (h *ShareHandler) Get(w http.ResponseWriter, r *http.Request) {
	shareID, err := uuid.Parse(chi.URLParam(r, "shareID"))
	if err != nil {
		response.BadRequest(w, "invalid share id")
		return
	}

	share, err := h.shares.Get(r.Context(), shareID)
	if err != nil {
		if errors.Is(err, service.ErrShareNotFound) {
			response.NotFound(w, "share not found")
			return
		}
		response.InternalError(w, "failed to load share")
		return
	}

	response.OK(w, share)
}

// Create handles POST /api/v1/share (authenticated)
func (h *ShareHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return
	}

	var input domain.ShareCreate
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}

	share, err := h.shares.Create(r.Context(), userID, input)
	if err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	response.Created(w, share)
}

// Delete handles DELETE /api/v1/share/{shareID} (authenticated)
func (h *ShareHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return
	}

	shareID, err := uuid.Parse(chi.URLParam(r, "shareID"))
	if err != nil {
		response.BadRequest(w, "invalid share id")
		return
	}

	if err := h.shares.Delete(r.Context(), userID, shareID); err != nil {
		switch {
		case errors.Is(err, service.ErrShareNotFound):
			response.NotFound(w, "share not found")
		case errors.Is(err, service.ErrShareForbidden):
			response.Forbidden(w, "not the owner of this share")
		default:
			response.InternalError(w, "failed to delete share")
		}
		return
	}

	response.NoContent(w)
}
