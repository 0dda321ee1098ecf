package api

import (
	"context"
	"net/http"
	"strings"
)

// contextKey is a private type to avoid context key collisions
type contextKey string

const userContextKey = contextKey("user")

// AuthMiddleware validates the JWT and loads the user into the request context
func (h *Handler) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// 1. Read the Authorization header
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			h.respondWithError(w, http.StatusUnauthorized, "authorization token not provided")
			return
		}

		// 2. Expect "Bearer <token>"
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			h.respondWithError(w, http.StatusUnauthorized, "invalid token format")
			return
		}
		tokenString := parts[1]

		// 3. Validate the token
		token, err := h.tokenService.ValidateToken(tokenString)
		if err != nil {
			h.respondWithError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		// 4. Extract the user ID
		userID, err := h.tokenService.GetUserIDFromToken(token)
		if err != nil {
			h.respondWithError(w, http.StatusUnauthorized, "invalid token claims")
			return
		}

		// 5. The user may have been deleted since the token was issued
		user, err := h.userService.GetUserByID(r.Context(), userID)
		if err != nil {
			h.respondWithError(w, http.StatusUnauthorized, "token user not found")
			return
		}

		// 6. Store the user in the request context
		ctx := context.WithValue(r.Context(), userContextKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAdmin rejects authenticated users without the admin role.
// It must run after AuthMiddleware.
func (h *Handler) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := userFromContext(r.Context())
		if !ok {
			h.respondWithError(w, http.StatusUnauthorized, "invalid user context")
			return
		}
		if !user.IsAdmin() {
			h.respondWithError(w, http.StatusForbidden, "admin privileges required")
			return
		}
		next.ServeHTTP(w, r)
	})
}
