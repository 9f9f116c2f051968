package core

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/anoixa/photo-mailer/cache"
	"github.com/anoixa/photo-mailer/config"
	"github.com/anoixa/photo-mailer/database"
	"github.com/gin-gonic/gin"
)

const (
	healthCheckTimeout = 2 * time.Second
	// statusUnavailable 对外只报告状态，错误细节写入日志
	statusUnavailable = "unavailable"
)

var startTime = time.Now()

// HealthHandler 健康检查
type HealthHandler struct {
	db    database.Provider
	cache cache.Provider
}

// NewHealthHandler 创建健康检查处理器，cache 可为空
func NewHealthHandler(db database.Provider, cacheProvider cache.Provider) *HealthHandler {
	return &HealthHandler{db: db, cache: cacheProvider}
}

// Handle GET /health
// @Summary      Health check
// @Description  Reports database and cache reachability. Failure details are only logged.
// @Tags         system
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "All checks ok"
// @Failure      503  {object}  map[string]interface{}  "At least one check is unavailable"
// @Router       /health [get]
func (h *HealthHandler) Handle(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
	defer cancel()

	checks := gin.H{
		"database": checkDatabaseHealth(ctx, h.db),
	}
	if h.cache != nil {
		checks["cache"] = checkCacheHealth(ctx, h.cache)
	}

	httpStatus := http.StatusOK
	status := "ok"
	for _, result := range checks {
		if result != "ok" {
			httpStatus = http.StatusServiceUnavailable
			status = "degraded"
			break
		}
	}

	c.JSON(httpStatus, gin.H{
		"status":  status,
		"uptime":  time.Since(startTime).Round(time.Second).String(),
		"version": config.Version,
		"checks":  checks,
	})
}

func checkDatabaseHealth(ctx context.Context, provider database.Provider) string {
	if provider == nil {
		return "not initialized"
	}
	if err := provider.Ping(ctx); err != nil {
		log.Printf("[Health] Database ping failed: %v", err)
		return statusUnavailable
	}
	return "ok"
}

func checkCacheHealth(ctx context.Context, provider cache.Provider) string {
	if _, err := provider.Exists(ctx, cache.NewKeyBuilder("photo_mailer").Build("health")); err != nil {
		log.Printf("[Health] Cache check failed: %v", err)
		return statusUnavailable
	}
	return "ok"
}
