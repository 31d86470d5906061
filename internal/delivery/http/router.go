package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const requestIDHeader = "X-Request-ID"

// Handlers groups everything the router mounts. Stream may be nil.
type Handlers struct {
	Status        *StatusHandler
	Tokens        *TokenHandler
	Notifications *NotificationHandler
	Stream        http.HandlerFunc
}

// NewRouter builds the read-mostly status API.
func NewRouter(h Handlers, logger *zap.Logger) *gin.Engine {
	router := gin.New()
	router.Use(requestIDMiddleware())
	router.Use(loggerMiddleware(logger))
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())

	router.GET("/health", h.Status.Health)

	api := router.Group("/api")
	api.GET("/status", h.Status.GetStatus)
	api.GET("/positions", h.Status.GetPositions)
	api.GET("/setups", h.Status.GetSetups)
	api.GET("/settings", h.Status.GetSettings)

	api.POST("/tokens", h.Tokens.Register)
	api.DELETE("/tokens", h.Tokens.Unregister)
	api.GET("/tokens/count", h.Tokens.Count)

	if h.Notifications != nil {
		api.POST("/notifications/test", h.Notifications.SendTest)
	}
	if h.Stream != nil {
		router.GET("/ws", gin.WrapF(h.Stream))
	}
	return router
}

func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(requestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header(requestIDHeader, requestID)
		c.Set(requestIDHeader, requestID)
		c.Next()
	}
}

func loggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("request_id", c.GetString(requestIDHeader)),
		)
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, X-Request-ID")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
