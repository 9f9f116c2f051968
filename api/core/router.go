package core

import (
	"log"
	"net/http"
	"time"

	"github.com/anoixa/photo-mailer/api/common"
	"github.com/anoixa/photo-mailer/api/handler/uploads"
	"github.com/anoixa/photo-mailer/api/middleware"
	"github.com/anoixa/photo-mailer/cache"
	"github.com/anoixa/photo-mailer/config"
	"github.com/anoixa/photo-mailer/database"
	"github.com/anoixa/photo-mailer/docs"
	"github.com/anoixa/photo-mailer/internal/services/upload"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// formOverhead 请求体上限在照片上限之外为表单字段预留的空间
const formOverhead = 1 << 20

// ServerDependencies 服务器依赖项
type ServerDependencies struct {
	DB      database.Provider
	Cache   cache.Provider
	Uploads *uploads.Handler
	Stats   *upload.Stats
}

// SetupRouter 创建 gin 引擎并注册全部路由，返回的 cleanup 用于停止后台任务
func SetupRouter(cfg *config.Config, deps *ServerDependencies) (*gin.Engine, func()) {
	if !config.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.HandleMethodNotAllowed = true

	// 仅在开发版本时启用 gin 日志
	if config.IsDevelopment() {
		router.Use(gin.Logger())
	}
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{cfg.BaseURL()},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Length", "Content-Type", middleware.RequestIDHeader},
		ExposeHeaders:    []string{middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	if err := router.SetTrustedProxies(cfg.ServerTrustedProxies); err != nil {
		log.Printf("[Router] Invalid trusted proxies %v, trusting none: %v", cfg.ServerTrustedProxies, err)
		_ = router.SetTrustedProxies(nil)
	}

	router.MaxMultipartMemory = cfg.UploadMaxBytes()

	router.Use(middleware.RequestID())
	router.Use(middleware.Metrics())
	router.Use(middleware.NewConcurrencyLimiter(cfg.ServerMaxInflight).Middleware())

	uploadRateLimiter := middleware.NewIPRateLimiter(cfg.RateLimitUploadRPS, cfg.RateLimitUploadBurst, cfg.RateLimitExpireTime)
	cleanup := uploadRateLimiter.StopCleanup

	registerBasicRoutes(router, deps)

	if config.IsDevelopment() || cfg.ServerSwagger {
		docs.SwaggerInfo.Version = config.Version
		router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	h := deps.Uploads
	router.NoMethod(h.MethodNotAllowed)

	bodyLimit := middleware.MaxBytesReader(cfg.UploadMaxBytes() + formOverhead)

	// 浏览器表单
	router.POST("/upload", bodyLimit, uploadRateLimiter.Middleware(h.FormRateLimited), h.FormUpload)

	apiGroup := router.Group("/api")
	apiGroup.Use(func(context *gin.Context) { // 所有API禁止缓存
		context.Header("Cache-Control", "no-store")
		context.Next()
	})
	{
		apiGroup.POST("/upload", bodyLimit, uploadRateLimiter.Middleware(h.APIRateLimited), h.APIUpload)
	}

	return router, cleanup
}

// registerBasicRoutes 注册基础路由
func registerBasicRoutes(router *gin.Engine, deps *ServerDependencies) {
	healthHandler := NewHealthHandler(deps.DB, deps.Cache)
	router.GET("/health", healthHandler.Handle)
	router.GET("/version", handleVersion)

	router.GET("/metrics", func(context *gin.Context) {
		metrics := middleware.GetMetrics()
		if deps.Stats != nil {
			for k, v := range deps.Stats.Snapshot() {
				metrics[k] = v
			}
		}
		context.JSON(http.StatusOK, metrics)
	})
}

// handleVersion 版本信息
// @Summary      Build version
// @Tags         system
// @Produce      json
// @Success      200  {object}  common.Response  "Version and commit hash"
// @Router       /version [get]
func handleVersion(context *gin.Context) {
	common.RespondSuccess(context, gin.H{
		"version": config.Version,
		"commit":  config.CommitHash,
	})
}
