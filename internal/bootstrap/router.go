package bootstrap

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	httpHandler "japan-tracker/internal/handler/http"
	wsHandler "japan-tracker/internal/handler/websocket"
	"japan-tracker/internal/middleware"
)

// RouterDeps 构建路由所需的依赖
type RouterDeps struct {
	Config         *Config
	Log            *logrus.Logger
	RedisClient    *redis.Client
	SessionHandler *httpHandler.SessionHandler
	TrackerHandler *httpHandler.TrackerHandler
	WSHandler      *wsHandler.WebSocketHandler // 可为 nil，此时不注册 /ws 路由
}

// NewRouter 初始化 Gin Engine、中间件和路由
func NewRouter(deps RouterDeps) *gin.Engine {
	cfg := deps.Config
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware(deps.Log))
	router.Use(corsMiddleware(cfg.CORSAllowedOrigin))
	router.Use(middleware.RateLimit(deps.RedisClient, cfg.KeyPrefix, cfg.RateLimitMax, cfg.RateLimitWindow))

	// --- 设置路由 ---
	api := router.Group("/api")
	api.POST("/sessions", deps.SessionHandler.CreateSession)
	api.GET("/regions", httpHandler.ListRegions)
	// 携带分享令牌的只读回放不需要身份
	api.GET("/tracker", middleware.OptionalAuth(cfg.JWTSecret), deps.TrackerHandler.GetTracker)

	trackerRoutes := api.Group("/tracker").Use(middleware.Auth(cfg.JWTSecret))
	{
		trackerRoutes.POST("/regions/:regionId/cycle", deps.TrackerHandler.CycleRegion)
		trackerRoutes.POST("/reset", deps.TrackerHandler.Reset)
		trackerRoutes.POST("/share", deps.TrackerHandler.Share)
	}

	if deps.WSHandler != nil {
		wsRoutes := router.Group("/ws").Use(middleware.Auth(cfg.JWTSecret))
		{
			wsRoutes.GET("/tracker", deps.WSHandler.HandleConnection)
		}
	}
	router.GET("/ping", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"message": "pong"}) })
	return router
}

func corsMiddleware(allowedOrigin string) gin.HandlerFunc {
	if allowedOrigin == "" {
		allowedOrigin = "http://localhost:3000" // 开发默认
	}
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", allowedOrigin)
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// LoggerMiddleware 创建一个 Gin 中间件用于记录请求日志
func LoggerMiddleware(log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()
		c.Next() // 处理请求
		latency := time.Since(startTime)
		statusCode := c.Writer.Status()
		errorMessage := c.Errors.ByType(gin.ErrorTypePrivate).String()

		// 不记录查询串：其中可能带有 access_token
		entry := log.WithFields(logrus.Fields{
			"status_code": statusCode,
			"latency_ms":  latency.Milliseconds(),
			"client_ip":   c.ClientIP(),
			"method":      c.Request.Method,
			"path":        c.Request.URL.Path,
		})

		if errorMessage != "" {
			entry.Error(errorMessage)
		} else {
			// 区分状态码记录日志级别
			if statusCode >= 500 {
				entry.Error("Server error")
			} else if statusCode >= 400 {
				entry.Warn("Client error")
			} else {
				entry.Info("Request handled")
			}
		}
	}
}
