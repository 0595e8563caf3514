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

	"github.com/askdb/askdb/internal/api"
	"github.com/askdb/askdb/internal/archive"
	"github.com/askdb/askdb/internal/auth"
	"github.com/askdb/askdb/internal/config"
	"github.com/askdb/askdb/internal/database"
	"github.com/askdb/askdb/internal/history"
	historypostgres "github.com/askdb/askdb/internal/history/postgres"
	"github.com/askdb/askdb/internal/nl2sql"
	"github.com/askdb/askdb/internal/observability"
	"github.com/askdb/askdb/internal/pipeline"
	duckdbengine "github.com/askdb/askdb/internal/query/duckdb"
	"github.com/askdb/askdb/internal/session"
	s3store "github.com/askdb/askdb/internal/storage/s3"
)

func main() {
	cfg, err := config.LoadFromEnv("askdb-api")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg, os.Stdout)
	startupCtx, cancelStartup := context.WithTimeout(context.Background(), time.Minute)
	defer cancelStartup()

	kind, err := database.ParseKind(cfg.Database.Kind)
	if err != nil {
		logger.Error("invalid database kind", slog.Any("error", err))
		os.Exit(1)
	}
	targetDB, err := database.Open(startupCtx, database.Config{
		Kind:            kind,
		DSN:             cfg.Database.DSN,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		logger.Error("failed to open target database", slog.Any("error", err))
		os.Exit(1)
	}

	sess := session.New(session.Options{
		QueryTimeout: cfg.Pipeline.QueryTimeout,
		MaxRows:      cfg.Pipeline.MaxResultRows,
		PreviewRows:  cfg.Pipeline.PreviewRows,
		Logger:       logger,
	})
	defer func() { _ = sess.Close() }()
	name := cfg.Database.Name
	if name == "" {
		name = database.NameFromDSN(kind, cfg.Database.DSN)
	}
	if _, err := sess.Connect(startupCtx, session.Connection{
		DB:     targetDB,
		Kind:   kind,
		Name:   name,
		Schema: cfg.Database.Schema,
		ID:     string(kind) + ":" + name,
	}); err != nil {
		logger.Error("failed to introspect target database", slog.Any("error", err))
		os.Exit(1)
	}

	generator := &nl2sql.Generator{
		Temperature: cfg.AI.Temperature,
		MaxTokens:   cfg.AI.MaxOutputTokens,
		TokenBudget: cfg.Pipeline.MaxSchemaTokens,
		Logger:      logger,
	}
	if cfg.AI.Enabled {
		client, err := nl2sql.NewOpenAIClient(nl2sql.OpenAIConfig{
			BaseURL: cfg.AI.BaseURL,
			APIKey:  cfg.AI.APIKey,
			Model:   cfg.AI.Model,
			Timeout: cfg.AI.Timeout,
		})
		if err != nil {
			logger.Error("failed to initialize text generator", slog.Any("error", err))
			os.Exit(1)
		}
		generator.LLM = client
	}

	var store history.Store = history.NewMemoryStore(cfg.Pipeline.HistoryLimit)
	readiness := []api.ReadinessCheck{api.CheckSchemaLoaded(sess), sess.Ping}
	var archiveReader api.ArchiveQuerier
	if cfg.History.DSN != "" {
		historyDB, err := historypostgres.Open(startupCtx, historypostgres.DBConfig{
			DSN:             cfg.History.DSN,
			MaxOpenConns:    cfg.History.MaxOpenConns,
			MaxIdleConns:    cfg.History.MaxIdleConns,
			ConnMaxIdleTime: cfg.History.ConnMaxIdleTime,
			ConnMaxLifetime: cfg.History.ConnMaxLifetime,
		})
		if err != nil {
			logger.Error("failed to open history db", slog.Any("error", err))
			os.Exit(1)
		}
		defer func() { _ = historyDB.Close() }()
		pgStore := historypostgres.NewStore(historyDB)
		store = pgStore
		readiness = append(readiness, pgStore.HealthCheck)

		objectStore, err := s3store.New(startupCtx, s3store.Config{
			Endpoint:         cfg.ObjectStore.Endpoint,
			Region:           cfg.ObjectStore.Region,
			Bucket:           cfg.ObjectStore.Bucket,
			AccessKeyID:      cfg.ObjectStore.AccessKeyID,
			SecretAccessKey:  cfg.ObjectStore.SecretAccessKey,
			UseSSL:           cfg.ObjectStore.UseSSL,
			Prefix:           cfg.ObjectStore.Prefix,
			AutoCreateBucket: cfg.ObjectStore.AutoCreateBucket,
		})
		if err != nil {
			logger.Warn("history archive disabled: object store unavailable", slog.Any("error", err))
		} else {
			readiness = append(readiness, api.CheckObjectStoreConfig(cfg))
			archiveReader = &archive.Reader{
				Store:    objectStore,
				Engine:   duckdbengine.NewEngine(objectStore),
				RowLimit: cfg.Pipeline.MaxResultRows,
			}
		}
	}

	deps := api.Dependencies{
		Logger: logger,
		Assistant: &pipeline.Pipeline{
			Session:   sess,
			Generator: generator,
			History:   store,
			RowLimit:  cfg.Pipeline.DefaultRowLimit,
			Logger:    logger,
		},
		Schema:            sess,
		History:           store,
		HistoryLimit:      cfg.Pipeline.HistoryLimit,
		Archive:           archiveReader,
		Readiness:         api.CombineReadinessChecks(readiness...),
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
		logger.Info("starting api server", slog.String("addr", cfg.HTTP.Address), slog.String("database", name))
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
