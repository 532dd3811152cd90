package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mkravts/commerce-platform-auth/internal/infra/config"
	"github.com/mkravts/commerce-platform-auth/internal/usecase"
)

// AuthHandler exposes the login, challenge verification, and logout
// endpoints.
type AuthHandler struct {
	auth    *usecase.AuthService
	cookies config.SessionSettings
	logger  *zap.Logger
}

// NewAuthHandler constructs an AuthHandler.
func NewAuthHandler(auth *usecase.AuthService, cookies config.SessionSettings, logger *zap.Logger) *AuthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthHandler{auth: auth, cookies: cookies, logger: logger}
}

var loginErrorCases = []ErrorCase{
	{Err: usecase.ErrInvalidCredentials, Status: http.StatusUnauthorized, Message: "invalid email or password"},
	{Err: usecase.ErrAccountPending, Status: http.StatusForbidden, Message: "account pending verification"},
	{Err: usecase.ErrAccountLockedTemporary, Status: http.StatusLocked, Message: "account temporarily locked"},
	{Err: usecase.ErrAccountLockedPermanent, Status: http.StatusLocked, Message: "account permanently locked"},
	{Err: usecase.ErrSessionLimitReached, Status: http.StatusConflict, Message: "active session limit reached"},
}

// Login handles POST /api/v1/auth/login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "email and password are required"})
		return
	}

	ip := c.ClientIP()
	result, err := h.auth.Login(c.Request.Context(), usecase.LoginInput{
		Email:    req.Email,
		Password: req.Password,
		ClientID: req.ClientID,
		IP:       optional(ip),
	})
	if err != nil {
		RespondWithMappedError(c, err, loginErrorCases, http.StatusInternalServerError, "login failed")
		return
	}

	if result.MfaRequired {
		c.JSON(http.StatusOK, MfaPendingResponse{
			MfaRequired: true,
			UserID:      result.UserID,
			Message:     "verification code sent",
		})
		return
	}

	h.respondWithSession(c, result)
}

var verifyOTPErrorCases = []ErrorCase{
	{Err: usecase.ErrMfaInvalidCode, Status: http.StatusBadRequest, Message: "verification code invalid"},
	{Err: usecase.ErrMfaExpired, Status: http.StatusGone, Message: "verification code expired"},
	{Err: usecase.ErrAccountPending, Status: http.StatusForbidden, Message: "account pending verification"},
	{Err: usecase.ErrAccountLockedTemporary, Status: http.StatusLocked, Message: "account temporarily locked"},
	{Err: usecase.ErrAccountLockedPermanent, Status: http.StatusLocked, Message: "account permanently locked"},
	{Err: usecase.ErrSessionLimitReached, Status: http.StatusConflict, Message: "active session limit reached"},
}

// VerifyOTP handles POST /api/v1/auth/mfa/verify-otp.
func (h *AuthHandler) VerifyOTP(c *gin.Context) {
	var req VerifyOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "user_id and otp are required"})
		return
	}

	ip := c.ClientIP()
	result, err := h.auth.CompleteMfa(c.Request.Context(), usecase.CompleteMfaInput{
		UserID:   req.UserID,
		Code:     req.Code,
		ClientID: req.ClientID,
		IP:       optional(ip),
	})
	if err != nil {
		var codeErr *usecase.MfaCodeError
		if errors.As(err, &codeErr) {
			c.JSON(http.StatusBadRequest, MfaFailedResponse{
				Error:             "verification code invalid",
				AttemptsRemaining: codeErr.AttemptsRemaining,
			})
			return
		}
		RespondWithMappedError(c, err, verifyOTPErrorCases, http.StatusInternalServerError, "verification failed")
		return
	}

	h.respondWithSession(c, result)
}

// Logout handles POST /api/v1/auth/logout. Expired and already-revoked
// tokens succeed; a token no session ever backed is rejected as
// unauthenticated.
func (h *AuthHandler) Logout(c *gin.Context) {
	token := h.extractToken(c)
	if token == "" {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "missing access token"})
		return
	}

	if err := h.auth.Logout(c.Request.Context(), token); err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrTokenInvalid, Status: http.StatusUnauthorized, Message: "invalid access token"},
			{Err: usecase.ErrSessionNotFound, Status: http.StatusUnauthorized, Message: "not authenticated"},
		}, http.StatusInternalServerError, "logout failed")
		return
	}

	h.clearCookie(c)
	c.JSON(http.StatusOK, MessageResponse{Message: "logged out"})
}

func (h *AuthHandler) respondWithSession(c *gin.Context, result *usecase.LoginResult) {
	if h.cookies.CookieName != "" {
		maxAge := int(result.ExpiresAt.Sub(result.Session.CreatedAt).Seconds())
		c.SetCookie(h.cookies.CookieName, result.Token, maxAge, "/", "", h.cookies.CookieSecure, true)
	}

	summary := newSessionSummary(*result.Session)
	c.JSON(http.StatusOK, LoginResponse{
		Token:     result.Token,
		ExpiresAt: result.ExpiresAt,
		Session:   &summary,
	})
}

func (h *AuthHandler) extractToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}
	if h.cookies.CookieName != "" {
		if cookie, err := c.Cookie(h.cookies.CookieName); err == nil {
			return strings.TrimSpace(cookie)
		}
	}
	return ""
}

func (h *AuthHandler) clearCookie(c *gin.Context) {
	if h.cookies.CookieName != "" {
		c.SetCookie(h.cookies.CookieName, "", -1, "/", "", h.cookies.CookieSecure, true)
	}
}

func optional(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
