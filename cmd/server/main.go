package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/Skufu/pillscope/internal/analysis"
	"github.com/Skufu/pillscope/internal/config"
	"github.com/Skufu/pillscope/internal/conversation"
	"github.com/Skufu/pillscope/internal/logging"
	"github.com/Skufu/pillscope/internal/ratelimit"
	"github.com/Skufu/pillscope/internal/store"
	"github.com/Skufu/pillscope/internal/web"
)

type HealthChecker interface {
	Ping(ctx context.Context) error
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("config error", "err", err)
	}

	gin.SetMode(cfg.GinMode)
	logger := logging.New(os.Stderr, cfg.LogLevel)

	ctx := context.Background()
	var (
		db       HealthChecker
		recorder conversation.Recorder
	)
	if cfg.EnableDB {
		pg, err := store.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("database connection failed", "err", err)
		}
		defer pg.Close()
		db, recorder = pg, pg
	}

	var limiter *redis.Client
	if cfg.RedisURL != "" {
		limiter, err = ratelimit.Connect(cfg.RedisURL)
		if err != nil {
			logger.Fatal("redis config error", "err", err)
		}
		defer limiter.Close()
	}

	gen, err := analysis.NewGemini(ctx, analysis.GeminiConfig{
		APIKey:  cfg.GeminiAPIKey,
		Model:   cfg.GeminiModel,
		BaseURL: cfg.GeminiBaseURL,
	})
	if err != nil {
		logger.Fatal("gemini client failed", "err", err)
	}
	client, err := analysis.NewClient(gen)
	if err != nil {
		logger.Fatal("analysis client failed", "err", err)
	}

	sessions := conversation.NewManager(client, conversation.ManagerConfig{
		MaxSessions: cfg.MaxSessions,
		TTL:         cfg.SessionTTL,
		Timeout:     cfg.AnalysisTimeout,
		Logger:      logger,
		Recorder:    recorder,
	})
	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	go sessions.Run(sweepCtx, time.Minute)

	router := setupRouter(routerDeps{
		db:          db,
		sessions:    sessions,
		analyzer:    client,
		limiter:     limiter,
		qps:         cfg.RateLimitQPS,
		logger:      logger,
		static:      web.FileSystem(cfg.StaticDir),
		waitTimeout: cfg.AnalysisTimeout + 5*time.Second,
	})
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		// Long enough for ?wait=true and the event stream.
		WriteTimeout: cfg.AnalysisTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server error", "err", err)
		}
	}()

	logger.Info("server listening", "port", cfg.Port, "model", gen.Model(), "db", cfg.EnableDB, "rate_limit", limiter != nil)
	waitForShutdown(server, logger)
}

func waitForShutdown(server *http.Server, logger *log.Logger) {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("graceful shutdown failed", "err", err)
	}
}
