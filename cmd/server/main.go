// Attune - emotionally-aware conversation server
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/emberlake/attune/internal/api"
	"github.com/emberlake/attune/internal/classifier"
	"github.com/emberlake/attune/internal/config"
	"github.com/emberlake/attune/internal/conversation"
	"github.com/emberlake/attune/internal/emotion"
	"github.com/emberlake/attune/internal/engine"
	"github.com/emberlake/attune/internal/generator"
	"github.com/emberlake/attune/internal/identity"
	"github.com/emberlake/attune/internal/middleware"
	"github.com/emberlake/attune/internal/resilience"
	"github.com/emberlake/attune/internal/session"
	"github.com/emberlake/attune/internal/store"
	"github.com/emberlake/attune/internal/strategy"
	"github.com/emberlake/attune/web"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment())

	// Initialize dependencies.
	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(context.Background()); err != nil {
		slog.Error("Database health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database connected")

	rules, err := cfg.StrategyRules()
	if err != nil {
		slog.Error("Failed to load strategy rules", "error", err)
		os.Exit(1)
	}
	selector := strategy.NewSelector(rules)

	retryPolicy := resilience.RetryPolicy{
		MaxAttempts:    cfg.Retry.MaxAttempts,
		InitialBackoff: cfg.Retry.InitialBackoff,
		MaxBackoff:     10 * time.Second,
		Multiplier:     2.0,
	}

	// Outbound collaborators. Empty API keys are allowed: the orchestrator
	// degrades to lexicon classification and canned responses on failure.
	emotionClassifier := classifier.NewHumeClient(classifier.Options{
		BaseURL:   cfg.Hume.BaseURL,
		APIKey:    cfg.Hume.APIKey,
		SecretKey: cfg.Hume.SecretKey,
		Timeout:   cfg.Hume.Timeout,
		Retry:     retryPolicy,
		Cache:     resilience.NewCache[emotion.Record](cfg.Cache.MaxEntries, cfg.Cache.TTL),
		Logger:    logger,
	})
	if cfg.Hume.APIKey == "" {
		slog.Warn("HUME_API_KEY not set, classifier will fall back to keyword lexicon")
	}

	responseGenerator := generator.NewOpenAIClient(cfg.OpenAI.APIKey, cfg.OpenAI.Model, cfg.OpenAI.Timeout, retryPolicy)
	if cfg.OpenAI.APIKey == "" {
		slog.Warn("OPENAI_API_KEY not set, generator will fall back to canned responses")
	}

	metrics := engine.NewMetrics()
	index := session.NewConversationIndex(repo)

	sessions := session.NewManager(func(sessionID string) *engine.Orchestrator {
		return engine.NewOrchestrator(engine.Options{
			Classifier:  emotionClassifier,
			Generator:   responseGenerator,
			Selector:    selector,
			Ledger:      conversation.NewLedger(cfg.HistoryDir),
			History:     emotion.NewHistory(cfg.Engine.EmotionWindow),
			Index:       index,
			Metrics:     metrics,
			Logger:      logger.With("session_id", sessionID),
			TrendWindow: cfg.Engine.TrendWindow,
			PromptTurns: cfg.Engine.PromptTurns,
			MaxTokens:   cfg.Engine.MaxTokens,
		})
	}, repo, logger)

	// Initialize handlers.
	baseHandler := api.NewHandler(sessions, repo, metrics, cfg)
	healthHandler := api.NewHealthHandler(repo)
	// HTTP and WebSocket share one limiter so a user has a single budget
	// regardless of transport.
	wsHandler := api.NewWebSocketHandler(sessions, baseHandler.RateLimiter(), cfg.FrontendURL, cfg.IsDevelopment())

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	r.Use(middleware.CORS([]string{"*"}))
	r.Use(identity.Middleware(cfg.IsDevelopment()))

	// Public routes.
	healthHandler.RegisterHealth(r)

	// All routes use identity middleware (no auth needed).
	baseHandler.RegisterRoutes(r)

	// WebSocket endpoint.
	r.Get("/ws/chat", wsHandler.ServeHTTP)

	// Serve embedded frontend (SPA catch-all).
	r.Handle("/*", web.SPAHandler())

	// Note: WebSocket chat connections stay open for the session lifetime,
	// so no WriteTimeout.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	// Start TTL worker.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sessions.StartTTLWorker(ctx, cfg.SessionTTL, cfg.SessionSweep)
	slog.Info("TTL worker started", "session_ttl", cfg.SessionTTL)

	// Start server.
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal.
	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped successfully")
}
