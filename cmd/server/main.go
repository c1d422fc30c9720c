package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/mvamarnath1/interview/internal/cache"
	"github.com/mvamarnath1/interview/internal/config"
	"github.com/mvamarnath1/interview/internal/database"
	"github.com/mvamarnath1/interview/internal/events"
	"github.com/mvamarnath1/interview/internal/handlers"
	"github.com/mvamarnath1/interview/internal/history"
	"github.com/mvamarnath1/interview/internal/jobs"
	"github.com/mvamarnath1/interview/internal/llm"
	_ "github.com/mvamarnath1/interview/internal/llm/deepseek"
	_ "github.com/mvamarnath1/interview/internal/llm/gemini"
	"github.com/mvamarnath1/interview/internal/metrics"
	"github.com/mvamarnath1/interview/internal/models"
	"github.com/mvamarnath1/interview/internal/pipeline"
	"github.com/mvamarnath1/interview/internal/prompts"
	"github.com/mvamarnath1/interview/internal/registry"
	"github.com/mvamarnath1/interview/internal/relay"
	"github.com/mvamarnath1/interview/internal/repositories"
	"github.com/mvamarnath1/interview/internal/routers"
	"github.com/mvamarnath1/interview/internal/utils"
)

func registerRoutes(router *chi.Mux, healthHandler *handlers.HealthHandler, sessionHandler *handlers.SessionHandler, wsHandler *handlers.WSHandler) {
	routers.HealthRoutes(router, healthHandler)
	routers.MetricsRoutes(router)
	routers.SessionRoutes(router, sessionHandler)
	routers.RelayRoutes(router, wsHandler)
}

// initRedis connects to Redis and checks the connection
func initRedis(ctx context.Context, addr string) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}
	return rdb, nil
}

// answerStore picks where answer cache entries outlive the process.
func answerStore(cfg *config.Config, db *gorm.DB, rdb *redis.Client) cache.EntryStore {
	if cfg.CacheStore == "redis" && rdb != nil {
		return cache.NewRedisStore(rdb, cfg.AnswerCacheTTL)
	}
	return &repositories.CacheRepository{DB: db}
}

func main() {
	logger, err := utils.NewLogger(os.Getenv("APP_ENV"), os.Getenv("LOG_LEVEL"))
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer logger.Sync()

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	logger.Info("Configuration loaded",
		zap.String("provider", cfg.Provider),
		zap.String("cache_store", cfg.CacheStore),
		zap.Duration("session_ttl", cfg.SessionTTL),
		zap.Duration("answer_cache_ttl", cfg.AnswerCacheTTL))
	if cfg.UsesDevSecret() {
		logger.Warn("JOIN_TOKEN_SECRET not set, using the development secret")
	}

	rootCtx, stop := context.WithCancel(context.Background())
	defer stop()

	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("Failed to access database handle", zap.Error(err))
	}
	defer sqlDB.Close()

	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb, err = initRedis(rootCtx, cfg.RedisAddr)
		if err != nil {
			if cfg.CacheStore == "redis" {
				logger.Fatal("Redis is required for CACHE_STORE=redis", zap.Error(err))
			}
			logger.Warn("Redis unavailable, session events disabled", zap.Error(err))
		} else {
			defer rdb.Close()
		}
	}

	promptManager, err := prompts.NewPromptManager()
	if err != nil {
		logger.Fatal("Failed to initialize prompt manager", zap.Error(err))
	}

	aiProvider, err := llm.NewProvider(cfg.Provider)
	if err != nil {
		logger.Fatal("Failed to initialize AI provider", zap.Error(err))
	}

	answers := cache.NewAnswerCache(cfg.AnswerCacheTTL, logger, cache.WithStore(answerStore(cfg, db, rdb)))
	turns := &repositories.TurnRepository{DB: db}
	window := history.NewWindow(cfg.ContextWindowSize, turns, logger)
	answerPipeline := pipeline.New(aiProvider, promptManager, answers, window, pipeline.Options{
		Timeout:         cfg.CompletionTimeout,
		Temperature:     float32(cfg.CompletionTemperature),
		MaxOutputTokens: int32(cfg.CompletionMaxTokens),
	}, logger)

	sessions := registry.New(cfg.SessionTTL, cfg.SessionIdleTimeout, logger,
		registry.WithStore(&repositories.SessionRepository{DB: db}))
	restored, err := sessions.Load(rootCtx)
	if err != nil {
		logger.Error("Failed to restore sessions", zap.Error(err))
	} else {
		logger.Info("Sessions restored", zap.Int("count", restored))
	}

	relayManager := relay.NewManager(sessions, answerPipeline, relay.DefaultQueueSize, logger)

	var bus *events.Bus
	if rdb != nil {
		bus = events.NewBus(rdb, logger)
		go bus.Subscribe(rootCtx, func(event events.SessionEndedEvent) {
			relayManager.CloseSession(event.SessionID)
			window.Drop(event.SessionID)
		})
	}

	sessions.OnEnd(func(s models.Session) {
		relayManager.CloseSession(s.ID)
		window.Drop(s.ID)
		logger.Info("Session ended",
			zap.String("session_id", s.ID),
			zap.String("state", string(s.State)))
		if bus != nil {
			go func() {
				ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
				defer cancel()
				if err := bus.PublishSessionEnded(ctx, s); err != nil {
					logger.Warn("Failed to publish session event", zap.String("session_id", s.ID), zap.Error(err))
				}
			}()
		}
	})

	janitor := jobs.NewJanitor(sessions, answers, cfg.SweepSchedule, logger)
	if err := janitor.Start(); err != nil {
		logger.Fatal("Failed to start janitor", zap.Error(err))
	}

	tokens := utils.NewTokenIssuer(cfg.JoinTokenSecret, cfg.JoinTokenTTL)
	healthHandler := handlers.NewHealthHandler(aiProvider, promptManager, sqlDB, cfg)
	sessionHandler := handlers.NewSessionHandler(sessions, relayManager, turns, tokens, cfg.PublicBaseURL, logger)
	wsHandler := handlers.NewWSHandler(relayManager, tokens, logger)

	router := chi.NewRouter()

	// cors middleware
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "Authorization"},
		AllowCredentials: true,
	}))

	router.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer, metrics.Middleware)

	registerRoutes(router, healthHandler, sessionHandler, wsHandler)

	serverAddr := ":" + cfg.Port

	// http server with timeouts; upgraded connections clear their deadlines
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("Interview service starting", zap.String("addr", serverAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("failed to start server", zap.Error(err))
		}
	}()

	// wait for interrupt signal to gracefully shutdown the server
	shutdownChan := make(chan os.Signal, 1)
	signal.Notify(shutdownChan, syscall.SIGINT, syscall.SIGTERM)
	<-shutdownChan

	logger.Info("Interview service shutting down...")

	janitor.Stop()
	stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}
	// hijacked websocket connections are not tracked by Shutdown
	relayManager.Shutdown()

	logger.Info("Interview service exited")
}
