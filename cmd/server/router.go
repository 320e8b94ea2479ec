package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/Skufu/pillscope/internal/conversation"
	"github.com/Skufu/pillscope/internal/logging"
	"github.com/Skufu/pillscope/internal/medicine"
	"github.com/Skufu/pillscope/internal/ratelimit"
)

// StreamAnalyzer answers one-shot queries and passes raw text through as it streams.
type StreamAnalyzer interface {
	Analyze(ctx context.Context, query string) (medicine.Result, error)
	AnalyzeStream(ctx context.Context, query string, onChunk func(string)) error
}

type routerDeps struct {
	db          HealthChecker
	sessions    *conversation.Manager
	analyzer    StreamAnalyzer
	limiter     *redis.Client
	qps         int
	logger      *log.Logger
	static      http.FileSystem
	waitTimeout time.Duration
}

func setupRouter(d routerDeps) *gin.Engine {
	if d.logger == nil {
		d.logger = log.Default()
	}
	if d.waitTimeout <= 0 {
		d.waitTimeout = conversation.DefaultTimeout
	}

	router := gin.New()
	router.Use(
		gin.Recovery(),
		logging.Requests(d.logger),
		limitBodySize(1<<20), // 1MB max body
		cors.New(cors.Config{
			AllowOrigins: []string{"*"},
			AllowMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowHeaders: []string{"Origin", "Content-Type", "Authorization"},
			MaxAge:       12 * time.Hour,
		}),
	)

	if d.static != nil {
		router.GET("/", func(c *gin.Context) {
			c.FileFromFS("/", d.static)
		})
		router.StaticFileFS("/styles.css", "styles.css", d.static)
		router.StaticFileFS("/app.js", "app.js", d.static)
	}

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.GET("/readyz", func(c *gin.Context) {
		if d.db == nil {
			c.JSON(http.StatusOK, gin.H{"status": "ok", "db": "disabled"})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if err := d.db.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "degraded",
				"db":     fmt.Sprintf("unhealthy: %v", err),
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{"status": "ok", "db": "ok"})
	})

	h := &handlers{deps: d}
	limited := ratelimit.Middleware(d.limiter, d.qps, d.logger)

	api := router.Group("/api")
	api.POST("/sessions", h.createSession)
	api.GET("/sessions/:id", h.getSession)
	api.PUT("/sessions/:id/input", h.setInput)
	api.POST("/sessions/:id/messages", limited, h.postMessage)
	api.DELETE("/sessions/:id", h.endSession)
	api.POST("/analyze", limited, h.analyze)
	api.GET("/stream", limited, h.stream)

	return router
}

func limitBodySize(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}
