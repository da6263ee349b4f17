package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"reviewflow-pipeline/internal/pkg/logger"
)

// NewRouter wires the middleware and API routes onto a fresh engine.
func NewRouter(handler *ReviewHandler, log *logger.Logger) *gin.Engine {
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(requestLogger(log))
	router.Use(corsMiddleware())

	router.GET("/health", handler.HealthCheck)

	api := router.Group("/api/v1")
	{
		reviews := api.Group("/reviews")
		{
			reviews.POST("/process", handler.ProcessReview)
			reviews.POST("/batch", handler.ProcessBatch)
			reviews.GET("/:id/result", handler.GetResult)
		}

		api.GET("/stats", handler.GetStats)
	}

	return router
}

func requestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()

		c.Next()

		log.WithFields(logger.Fields{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     c.Writer.Status(),
			"latency_ms": time.Since(startTime).Milliseconds(),
			"client_ip":  c.ClientIP(),
		}).Info("Request handled")
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
