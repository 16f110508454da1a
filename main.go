package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/datagrade-io/datagrade-engine/pkg/auth"
	"github.com/datagrade-io/datagrade-engine/pkg/config"
	"github.com/datagrade-io/datagrade-engine/pkg/database"
	"github.com/datagrade-io/datagrade-engine/pkg/handlers"
	"github.com/datagrade-io/datagrade-engine/pkg/llm"
	"github.com/datagrade-io/datagrade-engine/pkg/logging"
	"github.com/datagrade-io/datagrade-engine/pkg/middleware"
	"github.com/datagrade-io/datagrade-engine/pkg/repositories"
	"github.com/datagrade-io/datagrade-engine/pkg/retry"
	"github.com/datagrade-io/datagrade-engine/pkg/services"
	"github.com/datagrade-io/datagrade-engine/pkg/storage"
	"github.com/datagrade-io/datagrade-engine/pkg/taskqueue"
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

	logger.Info("Configuration loaded",
		zap.String("environment", cfg.Env),
		zap.String("base_url", cfg.BaseURL),
		zap.Bool("auth_verification", cfg.Auth.EnableVerification),
		zap.String("database", logging.SanitizeConnectionString(cfg.Database.URL())),
		zap.String("llm_endpoint", cfg.AI.LLMBaseURL),
		zap.String("llm_model", cfg.AI.LLMModel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := retry.Do(ctx, nil, func() error {
		return database.RunMigrations(cfg.Database.ConnectionString(), cfg.Database.MigrationsPath, logger)
	}); err != nil {
		logger.Fatal("Failed to run migrations",
			zap.String("error", logging.SanitizeError(err)))
	}

	db, err := retry.DoWithResult(ctx, &retry.Config{
		MaxRetries:   5,
		InitialDelay: time.Second,
		MaxDelay:     10 * time.Second,
		Multiplier:   2.0,
		JitterFactor: 0.1,
	}, func() (*database.DB, error) {
		return database.NewConnection(ctx, &database.Config{
			URL:             cfg.Database.URL(),
			MaxConnections:  cfg.Database.MaxConnections,
			MaxConnLifetime: cfg.Database.MaxConnLifetime,
			MaxConnIdleTime: cfg.Database.MaxConnIdleTime,
		})
	})
	if err != nil {
		logger.Fatal("Failed to connect to database",
			zap.String("error", logging.SanitizeError(err)))
	}
	defer db.Close()

	llmClient, err := llm.NewClient(&llm.Config{
		Endpoint: cfg.AI.LLMBaseURL,
		Model:    cfg.AI.LLMModel,
		APIKey:   cfg.AI.LLMAPIKey,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to create LLM client", zap.Error(err))
	}

	fileStore := storage.NewLocalFileStore(cfg.Storage.DataDir)

	datasetRepo := repositories.NewDatasetRepository(db)
	teamRepo := repositories.NewTeamRepository(db)

	dispatcher := taskqueue.NewDispatcher(cfg.Queue.WorkerBaseURL, logger,
		taskqueue.WithRetryConfig(taskqueue.RetryConfig{
			MaxAttempts: cfg.Queue.MaxDeliveryAttempts,
		}))

	analyzer := services.NewStatisticalAnalyzer(fileStore, logger)
	interpretation := services.NewInterpretationStage(llmClient, cfg.AI.MaxTokens, cfg.AI.Temperature, logger)
	synthesis := services.NewSynthesisStage(llmClient, cfg.AI.MaxTokens, cfg.AI.Temperature, logger)
	finalizer := services.NewStatusFinalizer(datasetRepo, logger)

	auditService := services.NewAuditService(datasetRepo, teamRepo, dispatcher, cfg.Queue.AuditQueueName, logger)
	auditWorker := services.NewAuditWorker(datasetRepo, analyzer, interpretation, synthesis, finalizer, logger)

	authService := auth.NewAuthService(cfg.Auth.TokenSecret, cfg.Auth.EnableVerification, logger)
	authMiddleware := auth.NewMiddleware(authService, logger)

	mux := http.NewServeMux()

	handlers.NewHealthHandler(cfg, logger).RegisterRoutes(mux)
	handlers.NewQualityAuditHandler(auditService, logger).RegisterRoutes(mux, authMiddleware)
	handlers.NewDatasetsHandler(auditService, logger).RegisterRoutes(mux, authMiddleware)
	handlers.NewAuditTaskHandler(auditWorker, logger).RegisterRoutes(mux)

	server := &http.Server{
		Addr:              net.JoinHostPort(cfg.BindAddr, cfg.Port),
		Handler:           middleware.RequestLogger(logger)(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Starting datagrade-engine",
			zap.String("addr", server.Addr),
			zap.String("version", cfg.Version))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Stop accepting new requests first, then drain in-flight task deliveries.
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown failed", zap.Error(err))
	}
	if err := dispatcher.Stop(shutdownCtx); err != nil {
		logger.Error("Dispatcher shutdown failed", zap.Error(err))
	}

	logger.Info("Shutdown complete")
}

func newLogger(env string) (*zap.Logger, error) {
	if env == "development" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
