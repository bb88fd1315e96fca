package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"

	"github.com/askdeck-ai/askdeck-engine/pkg/adapters/datasource"
	_ "github.com/askdeck-ai/askdeck-engine/pkg/adapters/datasource/mssql"
	_ "github.com/askdeck-ai/askdeck-engine/pkg/adapters/datasource/postgres"
	"github.com/askdeck-ai/askdeck-engine/pkg/config"
	"github.com/askdeck-ai/askdeck-engine/pkg/dashboard"
	"github.com/askdeck-ai/askdeck-engine/pkg/database"
	"github.com/askdeck-ai/askdeck-engine/pkg/handlers"
	"github.com/askdeck-ai/askdeck-engine/pkg/llm"
	"github.com/askdeck-ai/askdeck-engine/pkg/middleware"
	"github.com/askdeck-ai/askdeck-engine/pkg/repositories"
	"github.com/askdeck-ai/askdeck-engine/pkg/schemacache"
	"github.com/askdeck-ai/askdeck-engine/pkg/services"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := newLogger(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("configuration loaded",
		zap.String("env", cfg.Env),
		zap.String("version", cfg.Version),
		zap.String("database", cfg.Database.Database),
		zap.String("llm_model", cfg.LLM.Model),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := database.NewConnection(ctx, &database.Config{
		URL:            cfg.Database.ConnectionString(),
		MaxConnections: cfg.Database.MaxConnections,
	})
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	// golang-migrate needs database/sql; reuse the pool.
	if err := database.RunMigrations(stdlib.OpenDBFromPool(db.Pool), "migrations", logger); err != nil {
		logger.Fatal("Failed to run migrations", zap.Error(err))
	}

	sessionRepo := repositories.NewSessionRepository(db)
	messageRepo := repositories.NewMessageRepository(db)
	queryRepo := repositories.NewQueryRepository(db)
	dashboardRepo := repositories.NewDashboardRepository(db)
	datasourceRepo := repositories.NewDatasourceRepository(db)

	llmClient, err := llm.NewClient(&llm.Config{
		Endpoint: cfg.LLM.Endpoint,
		Model:    cfg.LLM.Model,
		APIKey:   cfg.LLM.APIKey,
		Timeout:  cfg.GenerationTimeout(),
	}, logger)
	if err != nil {
		logger.Fatal("Failed to create generation client", zap.Error(err))
	}

	connMgr := datasource.NewConnectionManager(datasource.ConnectionManagerConfig{
		TTLMinutes: cfg.Datasource.ConnectionTTLMinutes,
	}, logger)
	defer func() { _ = connMgr.Close() }()

	schemaCache := schemacache.NewCache(schemacache.NewAdapterFetcher(connMgr), cfg.SchemaTTL(), logger)

	// Warm-up runs off the startup path so one slow datasource cannot delay
	// serving; early cache misses load through the same in-flight fetch.
	if active, err := datasourceRepo.ListActive(ctx); err != nil {
		logger.Warn("Failed to list datasources for cache warmup", zap.Error(err))
	} else {
		go schemaCache.Warm(ctx, active)
	}

	sessions := services.NewSessionService(sessionRepo, datasourceRepo, logger)
	conversations := services.NewConversationService(messageRepo, nil, nil, logger)
	intents := services.NewIntentService(llmClient, logger)
	queries := services.NewQueryService(schemaCache, connMgr, llmClient, queryRepo, services.QueryServiceConfig{
		QueryTimeout: cfg.QueryTimeout(),
		RowCap:       cfg.Agent.RowCap,
	}, logger)
	builder := dashboard.NewBuilder(cfg.Agent.MaxCharts, logger)
	limiter := services.NewRateLimiter(cfg.Agent.RateLimitPerMinute)

	orchestrator := services.NewOrchestrator(
		sessions, conversations, intents, queries, builder, limiter,
		messageRepo, datasourceRepo, dashboardRepo, llmClient, logger,
	)

	mux := http.NewServeMux()
	handlers.NewHealthHandler(cfg, logger).RegisterRoutes(mux)
	handlers.NewSessionsHandler(sessions, orchestrator, messageRepo, logger).RegisterRoutes(mux)
	handlers.NewChatHandler(orchestrator, logger).RegisterRoutes(mux)
	handlers.NewDashboardsHandler(dashboardRepo, logger).RegisterRoutes(mux)
	handlers.NewDatasourcesHandler(datasourceRepo, connMgr, schemaCache, logger).RegisterRoutes(mux)

	server := &http.Server{
		Addr:              cfg.BindAddr + ":" + cfg.Port,
		Handler:           middleware.RequestLogger(logger)(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("starting askdeck-engine",
			zap.String("addr", server.Addr),
			zap.String("version", cfg.Version),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Graceful shutdown failed", zap.Error(err))
	}
}

func newLogger(env string) (*zap.Logger, error) {
	if env == "local" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
