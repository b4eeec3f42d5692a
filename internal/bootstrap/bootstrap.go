package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/kirillkom/well-report-rag/internal/config"
	"github.com/kirillkom/well-report-rag/internal/core/domain"
	"github.com/kirillkom/well-report-rag/internal/core/ports"
	"github.com/kirillkom/well-report-rag/internal/core/usecase"
	"github.com/kirillkom/well-report-rag/internal/infrastructure/chunking"
	"github.com/kirillkom/well-report-rag/internal/infrastructure/entities"
	"github.com/kirillkom/well-report-rag/internal/infrastructure/export"
	"github.com/kirillkom/well-report-rag/internal/infrastructure/extractor"
	"github.com/kirillkom/well-report-rag/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/well-report-rag/internal/infrastructure/memory"
	"github.com/kirillkom/well-report-rag/internal/infrastructure/nodal"
	"github.com/kirillkom/well-report-rag/internal/infrastructure/queue/inline"
	"github.com/kirillkom/well-report-rag/internal/infrastructure/queue/nats"
	"github.com/kirillkom/well-report-rag/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/well-report-rag/internal/infrastructure/repository/sqlite"
	"github.com/kirillkom/well-report-rag/internal/infrastructure/resilience"
	"github.com/kirillkom/well-report-rag/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/well-report-rag/internal/infrastructure/vector/bm25"
	"github.com/kirillkom/well-report-rag/internal/infrastructure/vector/qdrant"
)

type App struct {
	Config config.Config

	Queue      ports.MessageQueue
	Repo       ports.DocumentRepository
	Index      *usecase.HybridIndex
	IngestUC   *usecase.IngestDocumentUseCase
	ProcessUC  *usecase.ProcessDocumentUseCase
	RetrieveUC *usecase.RetrieveUseCase
	QueryUC    *usecase.QueryUseCase
	NodalUC    *usecase.NodalUseCase

	closeFn func()
}

// New wires the service deployment: Postgres for documents and index entries,
// NATS for ingestion events.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	repo := postgres.NewDocumentRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		QueueGroup:         cfg.NATSQueueGroup,
		ResilienceExecutor: resilience.NewExecutor(resilience.ConfigFor(resilience.DependencyNATS, cfg.BreakerEnabled)),
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	return build(cfg, repo, postgres.NewEntryRepository(db), queue, func() {
		queue.Close()
		closeDB(db)
	})
}

// NewLocal wires the single-process deployment used by the CLI: one SQLite file
// and an inline queue that indexes uploads before Upload returns.
func NewLocal(cfg config.Config) (*App, error) {
	store, err := sqlite.NewStore(cfg.SQLitePath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite store: %w", err)
	}
	queue := inline.New()

	app, err := build(cfg, store.DocumentStore(), store.EntryStore(), queue, func() {
		if err := store.Close(); err != nil {
			slog.Warn("sqlite_close_failed", "error", err)
		}
	})
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	queue.Bind(app.ProcessUC.ProcessByID)
	return app, nil
}

func build(
	cfg config.Config,
	repo ports.DocumentRepository,
	entries ports.IndexEntryStore,
	queue ports.MessageQueue,
	closeFn func(),
) (*App, error) {
	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	ollamaClient := ollama.NewWithOptions(cfg.OllamaURL, cfg.OllamaChatModel, cfg.OllamaEmbedModel, ollama.Options{
		ResilienceExecutor: resilience.NewExecutor(resilience.ConfigFor(resilience.DependencyOllama, cfg.BreakerEnabled)),
	})
	embedder := ollama.NewEmbedder(ollamaClient)
	generator := ollama.NewGenerator(ollamaClient)

	vectorDB := qdrant.NewWithOptions(cfg.QdrantURL, qdrant.Options{
		ResilienceExecutor: resilience.NewExecutor(resilience.ConfigFor(resilience.DependencyQdrant, cfg.BreakerEnabled)),
	})

	entityExtractor := entities.New()
	index := usecase.NewHybridIndex(embedder, vectorDB, entries, newLexicalIndex, cfg.EmbedBatchSize)

	ingestUC := usecase.NewIngestDocumentUseCase(repo, storage, queue)
	processUC := usecase.NewProcessDocumentUseCase(
		repo,
		extractor.NewDefaultRouter(storage),
		entityExtractor,
		chunking.NewSegmenter(entityExtractor),
		chunking.NewSplitter(),
		index,
		cfg.Strategies,
	)
	retrieveUC := usecase.NewRetrieveUseCase(index, cfg.Modes, cfg.Strategies, usecase.FusionConfig{
		Strategy:       domain.FusionStrategy(cfg.FusionStrategy),
		Alignment:      domain.LexicalAlignment(cfg.FusionAlignment),
		SemanticWeight: cfg.SemanticWeight,
		LexicalWeight:  cfg.KeywordWeight,
		RRFK:           cfg.FusionRRFK,
	})
	validateUC := usecase.NewValidateUseCase(entityExtractor, generator, usecase.ValidationConfig{
		Models:        cfg.JudgeModels,
		MinConfidence: cfg.JudgeMinConfidence,
		Timeout:       cfg.JudgeTimeout,
		Temperature:   cfg.JudgeTemperature,
		NumCtx:        cfg.JudgeNumCtx,
	})
	trajectoryUC := usecase.NewTrajectoryUseCase(generator, usecase.TrajectoryConfig{
		Model:       cfg.OllamaExtractionModel,
		Timeout:     cfg.TrajectoryTimeout,
		Temperature: cfg.JudgeTemperature,
		NumCtx:      cfg.TrajectoryNumCtx,
	})
	queryUC := usecase.NewQueryUseCase(
		repo,
		retrieveUC,
		validateUC,
		trajectoryUC,
		generator,
		memory.NewBuffer(cfg.MemorySize, cfg.MemoryWellFacts),
		usecase.QueryConfig{
			ChatModel:     cfg.OllamaChatModel,
			Temperature:   cfg.ChatTemperature,
			TopP:          cfg.ChatTopP,
			RepeatPenalty: cfg.ChatRepeatPenalty,
			MaxAttempts:   cfg.GenerationMaxAttempts,
			TimeoutStep:   cfg.GenerationTimeoutStep,
			MemoryChars:   cfg.MemoryChars,
			ExposeErrors:  cfg.ExposeErrors,
		},
	)

	nodalUC := usecase.NewNodalUseCase(
		queryUC,
		export.JSONWriter{},
		nodal.NewRunner(cfg.NodalScript, cfg.NodalInterpreter, ""),
		cfg.NodalTimeout,
	)

	return &App{
		Config: cfg,
		Queue:  queue,
		Repo:   repo,
		Index:  index,

		IngestUC:   ingestUC,
		ProcessUC:  processUC,
		RetrieveUC: retrieveUC,
		QueryUC:    queryUC,
		NodalUC:    nodalUC,

		closeFn: closeFn,
	}, nil
}

func newLexicalIndex(corpus []string) ports.LexicalIndex {
	return bm25.New(corpus)
}

// Collections lists the collection of every configured strategy.
func (a *App) Collections() []string {
	out := make([]string, 0, len(a.Config.Strategies))
	for _, s := range a.Config.Strategies {
		out = append(out, s.Collection)
	}
	return out
}

// Warm loads every lexical index from the entry store.
func (a *App) Warm(ctx context.Context) error {
	return a.Index.Warm(ctx, a.Collections())
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}

func closeDB(db *sql.DB) {
	if err := db.Close(); err != nil {
		slog.Warn("postgres_close_failed", "error", err)
	}
}
