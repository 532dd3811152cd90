package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mkravts/commerce-platform-auth/internal/infra/redis"
)

// HealthHandler exposes liveness and readiness probes.
type HealthHandler struct {
	startedAt time.Time
	pool      *pgxpool.Pool
	redis     *redis.Client
}

// NewHealthHandler builds a new health handler instance.
func NewHealthHandler(pool *pgxpool.Pool, redisClient *redis.Client) *HealthHandler {
	return &HealthHandler{
		startedAt: time.Now().UTC(),
		pool:      pool,
		redis:     redisClient,
	}
}

// Status handles GET /healthz.
func (h *HealthHandler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:    "ok",
		StartedAt: h.startedAt,
	})
}

// Ready handles GET /readyz and verifies the backing stores respond.
func (h *HealthHandler) Ready(c *gin.Context) {
	ctx := c.Request.Context()

	if h.pool != nil {
		if err := h.pool.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "database unavailable"})
			return
		}
	}

	if h.redis != nil {
		if err := h.redis.HealthCheck(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "redis unavailable"})
			return
		}
	}

	c.JSON(http.StatusOK, HealthResponse{
		Status:    "ready",
		StartedAt: h.startedAt,
	})
}
