package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mkravts/commerce-platform-auth/internal/core/domain"
	"github.com/mkravts/commerce-platform-auth/internal/infra/config"
	"github.com/mkravts/commerce-platform-auth/internal/usecase"
)

const (
	// UserIDKey is the context key for the authenticated user ID.
	UserIDKey = "user_id"
	// RoleKey is the context key for the authenticated role.
	RoleKey = "role"
	// SessionIDKey is the context key for the backing session ID.
	SessionIDKey = "session_id"

	// RenewedTokenHeader carries the replacement token when the session was
	// renewed while serving the request.
	RenewedTokenHeader = "X-Renewed-Token"
)

// ErrorResponse matches the handlers.ErrorResponse structure.
type ErrorResponse struct {
	Error string `json:"error"`
}

// RequireAuth validates the bearer token — from the Authorization header or
// the session cookie — and loads the verified identity into the request
// context. When verification renews the session, the replacement token is
// returned in both the response header and a refreshed cookie.
func RequireAuth(auth *usecase.AuthService, cookies config.SessionSettings) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractToken(c, cookies.CookieName)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "missing access token"})
			return
		}

		verified, err := auth.VerifyRequest(c.Request.Context(), token)
		if err != nil {
			switch {
			case errors.Is(err, usecase.ErrTokenExpired):
				c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "token expired"})
			case errors.Is(err, usecase.ErrSessionRevoked):
				c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "session revoked"})
			case errors.Is(err, usecase.ErrTokenInvalid), errors.Is(err, usecase.ErrSessionNotFound):
				c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "invalid access token"})
			default:
				c.AbortWithStatusJSON(http.StatusInternalServerError, ErrorResponse{Error: "authentication failed"})
			}
			return
		}

		if verified.RenewedToken != "" {
			c.Writer.Header().Set(RenewedTokenHeader, verified.RenewedToken)
			if cookies.CookieName != "" {
				c.SetCookie(cookies.CookieName, verified.RenewedToken, 0, "/", "", cookies.CookieSecure, true)
			}
		}

		c.Set(UserIDKey, verified.UserID)
		c.Set(RoleKey, verified.Role)
		c.Set(SessionIDKey, verified.SessionID)

		c.Next()
	}
}

// RequireRole gates a route group to the given roles. Must run after
// RequireAuth.
func RequireRole(roles ...domain.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		roleVal, exists := c.Get(RoleKey)
		if !exists {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "authentication required"})
			return
		}

		role, ok := roleVal.(domain.UserRole)
		if !ok {
			c.AbortWithStatusJSON(http.StatusInternalServerError, ErrorResponse{Error: "invalid role format"})
			return
		}

		for _, required := range roles {
			if role == required {
				c.Next()
				return
			}
		}

		c.AbortWithStatusJSON(http.StatusForbidden, ErrorResponse{Error: "insufficient permissions"})
	}
}

// GetAuthenticatedUserID retrieves the user ID from context.
func GetAuthenticatedUserID(c *gin.Context) (string, bool) {
	userID, exists := c.Get(UserIDKey)
	if !exists {
		return "", false
	}
	if id, ok := userID.(string); ok {
		return id, true
	}
	return "", false
}

func extractToken(c *gin.Context, cookieName string) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}

	if cookieName != "" {
		if cookie, err := c.Cookie(cookieName); err == nil {
			return strings.TrimSpace(cookie)
		}
	}
	return ""
}
