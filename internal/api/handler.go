package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"safedrop-backend/internal/auth"
	"safedrop-backend/internal/models"
	"safedrop-backend/internal/service"

	"github.com/go-playground/validator/v10"
)

// Pinger reports whether a backing dependency is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options holds the HTTP-level settings of the handler
type Options struct {
	// PublicBaseURL prefixes share links, e.g. https://files.example.com
	PublicBaseURL string
	// MaxUploadSize is the largest accepted file; the request body may
	// exceed it by the multipart overhead.
	MaxUploadSize  int64
	AllowedOrigins []string
	// Pinger backs /healthz; nil means always healthy
	Pinger Pinger
}

// Handler holds the dependencies of the HTTP handlers
type Handler struct {
	userService  *service.UserService
	fileService  *service.FileService
	tokenService *auth.TokenService
	validate     *validator.Validate
	logger       *slog.Logger
	opts         Options
}

// NewHandler creates a new Handler
func NewHandler(
	userSvc *service.UserService,
	fileSvc *service.FileService,
	tokenSvc *auth.TokenService,
	logger *slog.Logger,
	opts Options,
) *Handler {
	return &Handler{
		userService:  userSvc,
		fileService:  fileSvc,
		tokenService: tokenSvc,
		validate:     validator.New(),
		logger:       logger,
		opts:         opts,
	}
}

// === Response helpers ===

func (h *Handler) respondWithError(w http.ResponseWriter, code int, message string) {
	h.respondWithJSON(w, code, map[string]interface{}{
		"error": map[string]interface{}{
			"code":    code,
			"message": message,
		},
	})
}

func (h *Handler) respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error("failed to encode response", "error", err)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":{"code":500,"message":"internal error encoding response"}}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

// respondWithServiceError maps service errors to status codes. Decryption
// failures never leak details of the stored content.
func (h *Handler) respondWithServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		h.respondWithError(w, http.StatusNotFound, "file not found")
	case errors.Is(err, service.ErrUserNotFound):
		h.respondWithError(w, http.StatusNotFound, "user not found")
	case errors.Is(err, service.ErrForbidden):
		h.respondWithError(w, http.StatusForbidden, "access denied")
	case errors.Is(err, service.ErrInvalidCredentials):
		h.respondWithError(w, http.StatusUnauthorized, "invalid username or password")
	case errors.Is(err, service.ErrUserExists):
		h.respondWithError(w, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrRegistrationClosed):
		h.respondWithError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, service.ErrValidation),
		errors.Is(err, service.ErrFileNotAllowed),
		errors.Is(err, service.ErrNotShared),
		errors.Is(err, service.ErrSelfDelete):
		h.respondWithError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrFileTooLarge):
		h.respondWithError(w, http.StatusRequestEntityTooLarge, err.Error())
	case errors.Is(err, service.ErrCorrupted):
		h.respondWithError(w, http.StatusInternalServerError, "error downloading file")
	default:
		h.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		h.respondWithError(w, http.StatusInternalServerError, "internal server error")
	}
}

// === Health ===

// handleHealth (GET /healthz)
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if h.opts.Pinger != nil {
		if err := h.opts.Pinger.Ping(r.Context()); err != nil {
			h.logger.Warn("health check failed", "error", err)
			h.respondWithJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	h.respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// === User handlers ===

// handleRegisterUser (POST /users/register)
func (h *Handler) handleRegisterUser(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username" validate:"required,min=3,max=80"`
		Email    string `json:"email" validate:"required,email,max=120"`
		Password string `json:"password" validate:"required,min=8"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondWithError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}

	if err := h.validate.Struct(req); err != nil {
		h.respondWithError(w, http.StatusBadRequest, "invalid data: "+err.Error())
		return
	}

	user, err := h.userService.Register(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}

	h.respondWithJSON(w, http.StatusCreated, user)
}

// handleLoginUser (POST /users/login)
func (h *Handler) handleLoginUser(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username" validate:"required"` // username or email
		Password string `json:"password" validate:"required"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondWithError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}

	if err := h.validate.Struct(req); err != nil {
		h.respondWithError(w, http.StatusBadRequest, "invalid data: "+err.Error())
		return
	}

	token, err := h.userService.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}

	h.respondWithJSON(w, http.StatusOK, map[string]string{"token": token})
}

// handleGetStats (GET /me/stats)
func (h *Handler) handleGetStats(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		h.respondWithError(w, http.StatusUnauthorized, "invalid user context")
		return
	}

	stats, err := h.fileService.Stats(r.Context(), user.ID)
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}

	h.respondWithJSON(w, http.StatusOK, stats)
}

// shareURL builds the public link for token
func (h *Handler) shareURL(token string) string {
	return strings.TrimRight(h.opts.PublicBaseURL, "/") + sharedPathPrefix + token
}

func userFromContext(ctx context.Context) (*models.User, bool) {
	user, ok := ctx.Value(userContextKey).(*models.User)
	return user, ok && user != nil
}
