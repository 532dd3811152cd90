package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mkravts/commerce-platform-auth/internal/infra/security"
	"github.com/mkravts/commerce-platform-auth/internal/transport/http/middleware"
	"github.com/mkravts/commerce-platform-auth/internal/usecase"
)

// PasswordHandler exposes password rotation for the authenticated user.
type PasswordHandler struct {
	credentials *usecase.CredentialService
	logger      *zap.Logger
}

// NewPasswordHandler constructs a PasswordHandler.
func NewPasswordHandler(credentials *usecase.CredentialService, logger *zap.Logger) *PasswordHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PasswordHandler{credentials: credentials, logger: logger}
}

// Change handles POST /api/v1/password/change. Rotating the password revokes
// every active session, including the one making this request.
func (h *PasswordHandler) Change(c *gin.Context) {
	userID, ok := middleware.GetAuthenticatedUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "authentication required"})
		return
	}

	var req ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "current_password and new_password are required"})
		return
	}

	err := h.credentials.ChangePassword(c.Request.Context(), userID, req.CurrentPassword, req.NewPassword)
	if err != nil {
		var validationErr *security.PasswordValidationError
		if errors.As(err, &validationErr) {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: validationErr.Error()})
			return
		}
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrInvalidCredentials, Status: http.StatusUnauthorized, Message: "current password is incorrect"},
			{Err: usecase.ErrPasswordReused, Status: http.StatusBadRequest, Message: "new password must differ from previous passwords"},
			{Err: usecase.ErrUserNotFound, Status: http.StatusNotFound, Message: "user not found"},
		}, http.StatusInternalServerError, "password change failed")
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "password changed; all sessions revoked"})
}
