package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mkravts/commerce-platform-auth/internal/transport/http/middleware"
	"github.com/mkravts/commerce-platform-auth/internal/usecase"
)

// SessionHandler exposes session introspection for the authenticated user.
type SessionHandler struct {
	sessions *usecase.SessionService
	logger   *zap.Logger
}

// NewSessionHandler constructs a SessionHandler.
func NewSessionHandler(sessions *usecase.SessionService, logger *zap.Logger) *SessionHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionHandler{sessions: sessions, logger: logger}
}

// List handles GET /api/v1/sessions and returns the caller's active sessions.
func (h *SessionHandler) List(c *gin.Context) {
	userID, ok := middleware.GetAuthenticatedUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "authentication required"})
		return
	}

	sessions, err := h.sessions.ListActive(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("list sessions", zap.String("user_id", userID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to list sessions"})
		return
	}

	summaries := make([]SessionSummary, 0, len(sessions))
	for _, session := range sessions {
		summaries = append(summaries, newSessionSummary(session))
	}

	c.JSON(http.StatusOK, SessionListResponse{Sessions: summaries, Count: len(summaries)})
}
