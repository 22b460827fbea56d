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

	"github.com/colplan/colplan/internal/api"
	"github.com/colplan/colplan/internal/auth"
	"github.com/colplan/colplan/internal/config"
	"github.com/colplan/colplan/internal/export"
	"github.com/colplan/colplan/internal/observability"
	"github.com/colplan/colplan/internal/planner"
	"github.com/colplan/colplan/internal/report"
	requestspostgres "github.com/colplan/colplan/internal/requests/postgres"
	"github.com/colplan/colplan/internal/schema"
	"github.com/colplan/colplan/internal/sourcedb"
	"github.com/colplan/colplan/internal/storage"
	s3store "github.com/colplan/colplan/internal/storage/s3"
	"github.com/colplan/colplan/internal/textgen"
)

func main() {
	cfg, err := config.LoadFromEnv("colplan-api")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg, os.Stdout)
	sourceDB, err := sourcedb.Open(context.Background(), sourcedb.Config{
		DSN:             cfg.Source.DSN,
		MaxOpenConns:    cfg.Source.MaxOpenConns,
		MaxIdleConns:    cfg.Source.MaxIdleConns,
		ConnMaxIdleTime: cfg.Source.ConnMaxIdleTime,
		ConnMaxLifetime: cfg.Source.ConnMaxLifetime,
	})
	if err != nil {
		logger.Error("failed to open source db", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() { _ = sourceDB.Close() }()

	schemaIndex := schema.NewIndex()
	schemaLoader := schema.NewPostgresLoader(sourceDB, cfg.Schema.IncludeSchemas)
	refreshCtx, cancelRefresh := context.WithTimeout(context.Background(), 30*time.Second)
	if err := schemaIndex.Refresh(refreshCtx, schemaLoader); err != nil {
		logger.Error("initial schema load failed", slog.Any("error", err))
		cancelRefresh()
		os.Exit(1)
	}
	cancelRefresh()
	logger.Info("schema index loaded", slog.Int("tables", len(schemaIndex.ListTables())))

	var generator textgen.Generator
	if cfg.AI.APIKey != "" {
		generator, err = textgen.NewOpenAIGenerator(textgen.OpenAIConfig{
			BaseURL:     cfg.AI.BaseURL,
			APIKey:      cfg.AI.APIKey,
			Model:       cfg.AI.Model,
			Temperature: cfg.AI.Temperature,
			MaxTokens:   cfg.AI.MaxTokens,
			Timeout:     cfg.AI.Timeout,
		})
		if err != nil {
			logger.Error("failed to initialize text generator", slog.Any("error", err))
			os.Exit(1)
		}
	} else {
		logger.Warn("no AI API key configured, using static generator")
		generator = &textgen.Static{}
	}

	planService := planner.NewService(schemaIndex, planner.NewInference(generator, logger), logger)
	reportExecutor := report.NewExecutor(sourceDB, schemaIndex, cfg.Report.DefaultRowLimit, cfg.Report.MaxRowLimit, logger)
	requestRegistry := requestspostgres.NewRepository(sourceDB)

	var objectStore storage.ObjectStore
	if cfg.Export.ArchiveEnabled {
		objectStore, err = s3store.New(context.Background(), s3store.Config{
			Endpoint:         cfg.Export.Endpoint,
			Region:           cfg.Export.Region,
			Bucket:           cfg.Export.Bucket,
			AccessKeyID:      cfg.Export.AccessKeyID,
			SecretAccessKey:  cfg.Export.SecretAccessKey,
			UseSSL:           cfg.Export.UseSSL,
			Prefix:           cfg.Export.Prefix,
			AutoCreateBucket: cfg.Export.AutoCreateBucket,
		})
		if err != nil {
			logger.Error("failed to initialize export archive store", slog.Any("error", err))
			os.Exit(1)
		}
	}
	exportService := export.NewService(objectStore, logger)

	deps := api.Dependencies{
		Logger:  logger,
		Schemas: schemaIndex,
		SchemaRefresh: func(ctx context.Context) error {
			return schemaIndex.Refresh(ctx, schemaLoader)
		},
		Planner:        planService,
		Reports:        reportExecutor,
		Exports:        exportService,
		ArchiveEnabled: cfg.Export.ArchiveEnabled,
		Requests:       requestRegistry,
		Readiness: api.CombineReadinessChecks(
			api.CheckSourceDSN(cfg),
			requestRegistry.HealthCheck,
			api.CheckSchemaLoaded(schemaIndex),
		),
		DependencyTimeout: time.Second,
	}
	if cfg.Auth.Required {
		validator, err := auth.NewStaticAPIKeyValidator(cfg.Auth.StaticKeys)
		if err != nil {
			logger.Error("failed to parse static auth keys", slog.Any("error", err))
			os.Exit(1)
		}
		deps.AuthMiddleware = auth.Middleware(logger, validator)
	}

	handler := api.NewHandler(cfg, deps)
	server := &http.Server{
		Addr:         cfg.HTTP.Address,
		Handler:      handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("starting api server", slog.String("addr", cfg.HTTP.Address))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api server failed", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Info("shutting down api server")
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", slog.Any("error", err))
		_ = server.Close()
		os.Exit(1)
	}
}
