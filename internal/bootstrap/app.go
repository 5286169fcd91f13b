// Package bootstrap wires configuration into services, handlers and the router.
package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"docvault-backend/internal/categorize"
	catmock "docvault-backend/internal/categorize/mock"
	"docvault-backend/internal/documents"
	"docvault-backend/internal/embedding"
	embedmock "docvault-backend/internal/embedding/mock"
	"docvault-backend/internal/ingestion"
	"docvault-backend/internal/placement"
	"docvault-backend/internal/projects"
	"docvault-backend/internal/queue"
	"docvault-backend/internal/services/health"
	"docvault-backend/internal/shared/auth"
	"docvault-backend/internal/shared/config"
	"docvault-backend/internal/shared/server"
	"docvault-backend/internal/shared/storage/db"
	"docvault-backend/internal/shared/storage/object"
	localstore "docvault-backend/internal/shared/storage/object/local"
	s3store "docvault-backend/internal/shared/storage/object/s3"
	"docvault-backend/internal/shared/telemetry"
)

const poolCloseTimeout = 30 * time.Second

// App holds shared dependencies.
type App struct {
	Config config.Config
	Router *gin.Engine
	DB     *sql.DB
	Store  object.ObjectStore

	ProjectsRepo  projects.Repo
	DocumentsRepo documents.Repo
	Chunks        documents.ChunkRepo
	Jobs          ingestion.Store

	Embedder    embedding.Embedder
	Categorizer categorize.Categorizer
	Placer      *placement.Placer

	ProjectsService  *projects.Service
	DocumentsService *documents.Service
	IngestionService *ingestion.Service
	Orchestrator     *ingestion.Orchestrator
	Dispatcher       ingestion.Dispatcher
	Sweeper          *ingestion.Sweeper
	Health           *health.Service

	pool *ingestion.PoolDispatcher
}

// Build prepares every dependency and the router. Without DATABASE_URL in a
// dev-like environment everything runs in memory.
func Build(ctx context.Context, cfg config.Config) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	if strings.TrimSpace(cfg.ObjectStoreType) == "" {
		cfg.ObjectStoreType = "local"
	}
	if cfg.RequireQueue && strings.TrimSpace(cfg.QueueURL) == "" {
		return nil, errors.New("INGEST_SQS_QUEUE_URL is required in this runtime")
	}

	secret, err := auth.Secret(cfg.JWTSecret, cfg.Env)
	if err != nil {
		return nil, err
	}

	sqlDB, err := buildDB(ctx, cfg)
	if err != nil {
		return nil, err
	}

	store, err := buildStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	app := &App{Config: cfg, DB: sqlDB, Store: store}
	app.buildRepos()

	if err := app.buildAI(); err != nil {
		return nil, err
	}
	if err := app.buildPipeline(ctx); err != nil {
		return nil, err
	}

	app.ProjectsService = &projects.Service{Repo: app.ProjectsRepo}
	app.DocumentsService = &documents.Service{
		Repo:             app.DocumentsRepo,
		Chunks:           app.Chunks,
		Store:            app.Store,
		Projects:         app.ProjectsService,
		Ingest:           app.IngestionService,
		StorageProvider:  cfg.ObjectStoreType,
		PresignDownloads: cfg.ObjectStoreType == "s3",
	}

	breakers := map[string]health.BreakerReporter{}
	if b, ok := app.Embedder.(health.BreakerReporter); ok {
		breakers["embedding"] = b
	}
	if b, ok := app.Categorizer.(health.BreakerReporter); ok {
		breakers["categorize"] = b
	}
	app.Health = health.NewService(sqlDB, breakers)

	app.Router = server.NewRouter(server.RouterDeps{
		Config:           cfg,
		JWTSecret:        secret,
		Health:           app.Health,
		ProjectHandler:   projects.NewHandler(app.ProjectsService),
		DocumentHandler:  documents.NewHandler(app.DocumentsService),
		IngestionHandler: ingestion.NewHandler(app.IngestionService),
	})
	return app, nil
}

// StartPipeline schedules the sweeper. Close stops it.
func (a *App) StartPipeline(ctx context.Context) error {
	return a.Sweeper.Start(ctx)
}

// Close stops the sweeper, waits for in-process jobs and releases the database.
func (a *App) Close() {
	if a.Sweeper != nil {
		a.Sweeper.Stop()
	}
	if a.pool != nil {
		if err := a.pool.Close(poolCloseTimeout); err != nil {
			telemetry.Warn("bootstrap.pool_close", map[string]any{"error": err.Error()})
		}
	}
	if a.DB != nil {
		_ = a.DB.Close()
	}
}

func (a *App) buildRepos() {
	if a.DB != nil {
		a.ProjectsRepo = &projects.PGRepo{DB: a.DB}
		docs := &documents.PGRepo{DB: a.DB}
		a.DocumentsRepo = docs
		a.Chunks = docs
		a.Jobs = &ingestion.PGStore{DB: a.DB}
		return
	}
	docs := documents.NewMemoryRepo()
	a.ProjectsRepo = projects.NewMemoryRepo()
	a.DocumentsRepo = docs
	a.Chunks = docs
	a.Jobs = ingestion.NewMemoryStore(docs)
}

func (a *App) buildAI() error {
	cfg := a.Config
	if cfg.AIProvider == "mock" {
		telemetry.Warn("bootstrap.mock_ai", map[string]any{"dimension": cfg.Embedding.Dimension})
		a.Embedder = embedmock.NewEmbedder(cfg.Embedding.Dimension)
		a.Categorizer = &catmock.Categorizer{}
		return nil
	}

	embedder, err := embedding.New(embedding.Config{
		BaseURL:   cfg.Embedding.BaseURL,
		APIKey:    cfg.Embedding.APIKey,
		Model:     cfg.Embedding.Model,
		Dimension: cfg.Embedding.Dimension,
		Timeout:   cfg.Embedding.Timeout,
		RateLimit: cfg.Embedding.RateLimit,
	})
	if err != nil {
		return fmt.Errorf("embedding client: %w", err)
	}
	categorizer, err := categorize.New(categorize.Config{
		BaseURL:   cfg.Categorize.BaseURL,
		APIKey:    cfg.Categorize.APIKey,
		Model:     cfg.Categorize.Model,
		Timeout:   cfg.Categorize.Timeout,
		RateLimit: cfg.Categorize.RateLimit,
	})
	if err != nil {
		return fmt.Errorf("categorizer: %w", err)
	}
	a.Embedder = embedder
	a.Categorizer = categorizer
	return nil
}

func (a *App) buildPipeline(ctx context.Context) error {
	cfg := a.Config

	var registry placement.KeyRegistry = placement.NewMemoryRegistry()
	if a.DB != nil {
		registry = &placement.PGRegistry{DB: a.DB}
	}
	a.Placer = placement.NewPlacer(a.Store, registry, cfg.Pipeline.StorageTimeout)

	a.Orchestrator = &ingestion.Orchestrator{
		Jobs:        a.Jobs,
		Docs:        a.DocumentsRepo,
		Objects:     a.Store,
		Embedder:    a.Embedder,
		Categorizer: a.Categorizer,
		Placer:      a.Placer,
		Config: ingestion.Config{
			MaxAttempts:  cfg.Pipeline.MaxAttempts,
			BackoffBase:  cfg.Pipeline.BackoffBase,
			ChunkWords:   cfg.Pipeline.ChunkWords,
			ChunkOverlap: cfg.Pipeline.ChunkOverlap,
			MaxChunks:    cfg.Pipeline.MaxChunks,
		},
	}

	dispatcher, err := a.buildDispatcher(ctx)
	if err != nil {
		return err
	}
	a.Dispatcher = dispatcher

	a.IngestionService = &ingestion.Service{
		Jobs:       a.Jobs,
		Docs:       a.DocumentsRepo,
		Dispatcher: dispatcher,
	}
	a.Sweeper = &ingestion.Sweeper{
		Jobs:         a.Jobs,
		Service:      a.IngestionService,
		Interval:     cfg.Pipeline.SweepInterval,
		PendingAfter: cfg.Pipeline.SweepAfter,
		StuckAfter:   cfg.Pipeline.StuckAfter,
	}
	return nil
}

// buildDispatcher publishes to SQS when a queue is configured and otherwise
// runs jobs on an in-process pool.
func (a *App) buildDispatcher(ctx context.Context) (ingestion.Dispatcher, error) {
	cfg := a.Config
	if cfg.QueueURL != "" {
		client, err := queue.NewSQSClient(ctx, cfg.QueueURL, cfg.AWSRegion)
		if err != nil {
			return nil, fmt.Errorf("queue client: %w", err)
		}
		return &ingestion.QueueDispatcher{Client: client}, nil
	}
	pool, err := ingestion.NewPoolDispatcher(a.Orchestrator, cfg.Pipeline.PoolSize, cfg.Pipeline.PoolBacklog)
	if err != nil {
		return nil, err
	}
	a.pool = pool
	return pool, nil
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if isDevLike(cfg.Env) {
			telemetry.Warn("bootstrap.memory_repos", map[string]any{"reason": "DATABASE_URL empty"})
			return nil, nil
		}
		return nil, errors.New("DATABASE_URL is required")
	}

	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, db.OptionsFromEnv(db.DefaultServerOptions()))
	if err != nil {
		if isDevLike(cfg.Env) {
			telemetry.Warn("bootstrap.memory_repos", map[string]any{"reason": "database connect failed", "error": err.Error()})
			return nil, nil
		}
		return nil, err
	}
	return sqlDB, nil
}

func buildStore(ctx context.Context, cfg config.Config) (object.ObjectStore, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		return s3store.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix, cfg.SSEKMSKeyID)
	default:
		return localstore.New(cfg.LocalStoreDir), nil
	}
}

func isDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local":
		return true
	default:
		return false
	}
}
