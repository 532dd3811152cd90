package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mkravts/commerce-platform-auth/internal/core/domain"
	"github.com/mkravts/commerce-platform-auth/internal/transport/http/middleware"
	"github.com/mkravts/commerce-platform-auth/internal/usecase"
)

// AdminHandler exposes the administrative surface: account unlock and
// security configuration tuning.
type AdminHandler struct {
	lockout *usecase.LockoutService
	config  *usecase.SecurityConfigService
	logger  *zap.Logger
}

// NewAdminHandler constructs an AdminHandler.
func NewAdminHandler(lockout *usecase.LockoutService, config *usecase.SecurityConfigService, logger *zap.Logger) *AdminHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AdminHandler{lockout: lockout, config: config, logger: logger}
}

// UnlockUser handles POST /api/v1/admin/users/:id/unlock. This is the only
// path that clears a permanent lock.
func (h *AdminHandler) UnlockUser(c *gin.Context) {
	userID := c.Param("id")
	actorID, _ := middleware.GetAuthenticatedUserID(c)

	if err := h.lockout.AdminUnlock(c.Request.Context(), userID, actorID); err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrUserNotFound, Status: http.StatusNotFound, Message: "user not found"},
		}, http.StatusInternalServerError, "unlock failed")
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "account unlocked"})
}

// GetSecurityConfig handles GET /api/v1/admin/security-config.
func (h *AdminHandler) GetSecurityConfig(c *gin.Context) {
	cfg := h.config.Current(c.Request.Context())
	c.JSON(http.StatusOK, newSecurityConfigResponse(cfg))
}

// UpdateSecurityConfig handles PUT /api/v1/admin/security-config. Changes
// apply to future logins and challenges; existing sessions keep their issued
// lifetimes.
func (h *AdminHandler) UpdateSecurityConfig(c *gin.Context) {
	var req SecurityConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid configuration payload"})
		return
	}

	actorID, _ := middleware.GetAuthenticatedUserID(c)

	updated, err := h.config.Update(c.Request.Context(), domain.SecurityConfig{
		JWTLifetime:       time.Duration(req.JWTLifetimeSeconds) * time.Second,
		SessionLifetime:   time.Duration(req.SessionLifetimeSeconds) * time.Second,
		RenewalThreshold:  time.Duration(req.RenewalThresholdSeconds) * time.Second,
		OTPLifetime:       time.Duration(req.OTPLifetimeSeconds) * time.Second,
		MaxFailedAttempts: req.MaxFailedAttempts,
		BlockPeriodDays:   req.BlockPeriodDays,
		MaxBlocksInPeriod: req.MaxBlocksInPeriod,
	}, actorID)
	if err != nil {
		h.logger.Error("update security config", zap.Error(err))
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "failed to update configuration"})
		return
	}

	c.JSON(http.StatusOK, newSecurityConfigResponse(updated))
}

func newSecurityConfigResponse(cfg domain.SecurityConfig) SecurityConfigResponse {
	return SecurityConfigResponse{
		JWTLifetimeSeconds:      int64(cfg.JWTLifetime / time.Second),
		SessionLifetimeSeconds:  int64(cfg.SessionLifetime / time.Second),
		RenewalThresholdSeconds: int64(cfg.RenewalThreshold / time.Second),
		OTPLifetimeSeconds:      int64(cfg.OTPLifetime / time.Second),
		MaxFailedAttempts:       cfg.MaxFailedAttempts,
		BlockPeriodDays:         cfg.BlockPeriodDays,
		MaxBlocksInPeriod:       cfg.MaxBlocksInPeriod,
		UpdatedAt:               cfg.UpdatedAt,
	}
}
