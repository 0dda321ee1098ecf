package api

import (
	"errors"
	"mime"
	"net/http"
	"strconv"

	"safedrop-backend/internal/models"
	"safedrop-backend/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// multipartOverhead is the body allowance on top of the file size limit
const multipartOverhead = 1 << 20

type shareResponse struct {
	ID       uuid.UUID `json:"id"`
	IsShared bool      `json:"isShared"`
	ShareURL string    `json:"shareUrl,omitempty"`
}

func (h *Handler) newShareResponse(f *models.File) shareResponse {
	resp := shareResponse{ID: f.ID, IsShared: f.IsShared}
	if f.IsShared && f.ShareToken != nil {
		resp.ShareURL = h.shareURL(*f.ShareToken)
	}
	return resp
}

// fileParams resolves the authenticated user and the {id} URL parameter.
// It writes the error response itself and reports false on failure.
func (h *Handler) fileParams(w http.ResponseWriter, r *http.Request) (*models.User, uuid.UUID, bool) {
	user, ok := userFromContext(r.Context())
	if !ok {
		h.respondWithError(w, http.StatusUnauthorized, "invalid user context")
		return nil, uuid.Nil, false
	}

	fileID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.respondWithError(w, http.StatusBadRequest, "invalid file id")
		return nil, uuid.Nil, false
	}

	return user, fileID, true
}

// writeFile sends decrypted content as an attachment
func (h *Handler) writeFile(w http.ResponseWriter, f *models.File, data []byte) {
	disposition := mime.FormatMediaType("attachment", map[string]string{"filename": f.OriginalName})
	if disposition == "" {
		disposition = "attachment"
	}

	w.Header().Set("Content-Type", f.MimeType)
	w.Header().Set("Content-Disposition", disposition)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// handleListFiles (GET /files)
func (h *Handler) handleListFiles(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		h.respondWithError(w, http.StatusUnauthorized, "invalid user context")
		return
	}

	files, err := h.fileService.ListFiles(r.Context(), user.ID)
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}

	h.respondWithJSON(w, http.StatusOK, files)
}

// handleUploadFile (POST /files)
func (h *Handler) handleUploadFile(w http.ResponseWriter, r *http.Request) {
	// 1. Get the authenticated owner
	user, ok := userFromContext(r.Context())
	if !ok {
		h.respondWithError(w, http.StatusUnauthorized, "invalid user context")
		return
	}

	// 2. Cap the body before parsing the multipart form
	r.Body = http.MaxBytesReader(w, r.Body, h.opts.MaxUploadSize+multipartOverhead)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			h.respondWithError(w, http.StatusRequestEntityTooLarge, "file too large")
			return
		}
		h.respondWithError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	// 3. Read the "file" field
	file, header, err := r.FormFile("file")
	if err != nil {
		h.respondWithError(w, http.StatusBadRequest, "no file selected")
		return
	}
	defer file.Close()

	// 4. Hand it to the service, which encrypts and stores it
	stored, err := h.fileService.Upload(r.Context(), user.ID, header.Filename, header.Header.Get("Content-Type"), file)
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}

	h.respondWithJSON(w, http.StatusCreated, service.Describe(stored))
}

// handleGetFile (GET /files/{id})
func (h *Handler) handleGetFile(w http.ResponseWriter, r *http.Request) {
	user, fileID, ok := h.fileParams(w, r)
	if !ok {
		return
	}

	details, err := h.fileService.GetFile(r.Context(), fileID, user.ID)
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}

	h.respondWithJSON(w, http.StatusOK, details)
}

// handleDownloadFile (GET /files/{id}/download)
func (h *Handler) handleDownloadFile(w http.ResponseWriter, r *http.Request) {
	user, fileID, ok := h.fileParams(w, r)
	if !ok {
		return
	}

	file, data, err := h.fileService.Download(r.Context(), fileID, user.ID)
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}

	h.writeFile(w, file, data)
}

// handleDownloadShared (GET /shared/{token}), no authentication
func (h *Handler) handleDownloadShared(w http.ResponseWriter, r *http.Request) {
	file, data, err := h.fileService.DownloadShared(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}

	h.writeFile(w, file, data)
}

// handleDeleteFile (DELETE /files/{id})
func (h *Handler) handleDeleteFile(w http.ResponseWriter, r *http.Request) {
	user, fileID, ok := h.fileParams(w, r)
	if !ok {
		return
	}

	if err := h.fileService.Delete(r.Context(), fileID, user.ID); err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleToggleShare (POST /files/{id}/share)
func (h *Handler) handleToggleShare(w http.ResponseWriter, r *http.Request) {
	user, fileID, ok := h.fileParams(w, r)
	if !ok {
		return
	}

	file, err := h.fileService.ToggleShare(r.Context(), fileID, user.ID)
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}

	h.respondWithJSON(w, http.StatusOK, h.newShareResponse(file))
}

// handleEnableShare (PUT /files/{id}/share)
func (h *Handler) handleEnableShare(w http.ResponseWriter, r *http.Request) {
	user, fileID, ok := h.fileParams(w, r)
	if !ok {
		return
	}

	file, err := h.fileService.EnableShare(r.Context(), fileID, user.ID)
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}

	h.respondWithJSON(w, http.StatusOK, h.newShareResponse(file))
}

// handleRevokeShare (DELETE /files/{id}/share)
func (h *Handler) handleRevokeShare(w http.ResponseWriter, r *http.Request) {
	user, fileID, ok := h.fileParams(w, r)
	if !ok {
		return
	}

	file, err := h.fileService.RevokeShare(r.Context(), fileID, user.ID)
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}

	h.respondWithJSON(w, http.StatusOK, h.newShareResponse(file))
}

// handleGetShareLink (GET /files/{id}/share-link)
func (h *Handler) handleGetShareLink(w http.ResponseWriter, r *http.Request) {
	user, fileID, ok := h.fileParams(w, r)
	if !ok {
		return
	}

	token, err := h.fileService.ShareToken(r.Context(), fileID, user.ID)
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}

	h.respondWithJSON(w, http.StatusOK, map[string]string{"shareUrl": h.shareURL(token)})
}

// handleGetAccessLogs (GET /files/{id}/logs?limit=N)
func (h *Handler) handleGetAccessLogs(w http.ResponseWriter, r *http.Request) {
	user, fileID, ok := h.fileParams(w, r)
	if !ok {
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			h.respondWithError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	logs, err := h.fileService.AccessLogs(r.Context(), fileID, user.ID, limit)
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}

	h.respondWithJSON(w, http.StatusOK, logs)
}
