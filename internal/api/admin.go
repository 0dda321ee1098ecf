package api

import (
	"net/http"

	"safedrop-backend/internal/models"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type adminUserResponse struct {
	*models.User
	Stats *models.UserStats `json:"stats"`
}

func (h *Handler) adminTarget(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.respondWithError(w, http.StatusBadRequest, "invalid user id")
		return uuid.Nil, false
	}
	return id, true
}

// handleAdminListUsers (GET /admin/users)
func (h *Handler) handleAdminListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.userService.GetAllUsers(r.Context())
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}

	h.respondWithJSON(w, http.StatusOK, users)
}

// handleAdminGetUser (GET /admin/users/{id})
func (h *Handler) handleAdminGetUser(w http.ResponseWriter, r *http.Request) {
	id, ok := h.adminTarget(w, r)
	if !ok {
		return
	}

	user, err := h.userService.GetUserByID(r.Context(), id)
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}

	stats, err := h.fileService.Stats(r.Context(), id)
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}

	h.respondWithJSON(w, http.StatusOK, adminUserResponse{User: user, Stats: stats})
}

// handleAdminDeleteUser (DELETE /admin/users/{id})
func (h *Handler) handleAdminDeleteUser(w http.ResponseWriter, r *http.Request) {
	// 1. The acting admin, injected by the middleware
	admin, ok := userFromContext(r.Context())
	if !ok {
		h.respondWithError(w, http.StatusUnauthorized, "invalid user context")
		return
	}

	// 2. The target account
	id, ok := h.adminTarget(w, r)
	if !ok {
		return
	}

	// 3. Delete the account, its files and their blobs
	deleted, err := h.userService.DeleteUser(r.Context(), admin.ID, id)
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}

	h.logger.Info("admin deleted user", "admin_id", admin.ID, "user_id", deleted.ID, "username", deleted.Username)
	w.WriteHeader(http.StatusNoContent)
}
