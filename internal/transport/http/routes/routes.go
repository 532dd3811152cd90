// Package routes wires the HTTP surface: middleware chain, probe endpoints,
// and the versioned API groups.
package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/mkravts/commerce-platform-auth/internal/core/domain"
	"github.com/mkravts/commerce-platform-auth/internal/infra/config"
	"github.com/mkravts/commerce-platform-auth/internal/infra/redis"
	"github.com/mkravts/commerce-platform-auth/internal/transport/http/handlers"
	"github.com/mkravts/commerce-platform-auth/internal/transport/http/middleware"
	"github.com/mkravts/commerce-platform-auth/internal/usecase"
)

// ServiceSet groups the services the HTTP layer depends on.
type ServiceSet struct {
	Auth           *usecase.AuthService
	Sessions       *usecase.SessionService
	Credentials    *usecase.CredentialService
	Lockout        *usecase.LockoutService
	SecurityConfig *usecase.SecurityConfigService
}

// Dependencies encapsulates the objects required to register routes.
type Dependencies struct {
	Config   *config.AppConfig
	Logger   *zap.Logger
	Services ServiceSet
	Pool     *pgxpool.Pool
	Redis    *redis.Client
	Metrics  *middleware.HTTPMetrics
}

// Register configures the Gin engine with routes and middleware.
func Register(deps Dependencies) *gin.Engine {
	if deps.Config.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(deps.Logger))
	if deps.Metrics != nil {
		r.Use(deps.Metrics.Handler())
	}

	authMiddleware := middleware.RequireAuth(deps.Services.Auth, deps.Config.Sessions)

	healthHandler := handlers.NewHealthHandler(deps.Pool, deps.Redis)
	r.GET("/healthz", healthHandler.Status)
	r.GET("/readyz", healthHandler.Ready)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api/v1")
	{
		authHandler := handlers.NewAuthHandler(deps.Services.Auth, deps.Config.Sessions, deps.Logger)

		authGroup := api.Group("/auth")
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/mfa/verify-otp", authHandler.VerifyOTP)
		authGroup.POST("/logout", authHandler.Logout)

		sessionHandler := handlers.NewSessionHandler(deps.Services.Sessions, deps.Logger)
		api.GET("/sessions", authMiddleware, sessionHandler.List)

		passwordHandler := handlers.NewPasswordHandler(deps.Services.Credentials, deps.Logger)
		api.POST("/password/change", authMiddleware, passwordHandler.Change)

		adminHandler := handlers.NewAdminHandler(deps.Services.Lockout, deps.Services.SecurityConfig, deps.Logger)
		adminGroup := api.Group("/admin", authMiddleware, middleware.RequireRole(domain.RoleAdmin))
		adminGroup.POST("/users/:id/unlock", adminHandler.UnlockUser)
		adminGroup.GET("/security-config", adminHandler.GetSecurityConfig)
		adminGroup.PUT("/security-config", adminHandler.UpdateSecurityConfig)
	}

	return r
}
