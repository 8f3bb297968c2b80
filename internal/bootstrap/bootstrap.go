package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirillkom/pixers-assistant/internal/config"
	"github.com/kirillkom/pixers-assistant/internal/core/domain"
	"github.com/kirillkom/pixers-assistant/internal/core/ports"
	"github.com/kirillkom/pixers-assistant/internal/core/usecase"
	"github.com/kirillkom/pixers-assistant/internal/infrastructure/chunking"
	"github.com/kirillkom/pixers-assistant/internal/infrastructure/embedding"
	"github.com/kirillkom/pixers-assistant/internal/infrastructure/extractor"
	"github.com/kirillkom/pixers-assistant/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/pixers-assistant/internal/infrastructure/llm/openai"
	"github.com/kirillkom/pixers-assistant/internal/infrastructure/queue/nats"
	"github.com/kirillkom/pixers-assistant/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/pixers-assistant/internal/infrastructure/resilience"
	"github.com/kirillkom/pixers-assistant/internal/infrastructure/session/memory"
	"github.com/kirillkom/pixers-assistant/internal/infrastructure/session/redis"
	"github.com/kirillkom/pixers-assistant/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/pixers-assistant/internal/infrastructure/vector"
	vectormemory "github.com/kirillkom/pixers-assistant/internal/infrastructure/vector/memory"
	"github.com/kirillkom/pixers-assistant/internal/infrastructure/vector/pgvector"
	"github.com/kirillkom/pixers-assistant/internal/infrastructure/vector/qdrant"
)

// Options carries the per-binary observers. Both may be nil.
type Options struct {
	AnswerObserver usecase.AnswerObserver
	IngestObserver usecase.IngestObserver
}

// Core is the RAG pipeline without the ingest ledger: providers, the vector
// index and the use cases built on them.
type Core struct {
	Config config.Config

	Answerer ports.Answerer
	Captions ports.CaptionService
	Files    ports.FileIngestor

	embedder   ports.Embedder
	index      ports.VectorIndex
	chunker    ports.Chunker
	extractors *extractor.Registry
	opts       Options

	closers []func()
}

func NewCore(ctx context.Context, cfg config.Config, opts Options) (*Core, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	synonyms, err := config.LoadSynonyms(cfg.QuerySynonymsFile)
	if err != nil {
		return nil, fmt.Errorf("load query synonyms: %w", err)
	}

	core := &Core{Config: cfg, opts: opts, extractors: extractor.NewRegistry()}

	embedExec := resilience.NewExecutor(embedPolicy(cfg))
	generation := llmPolicy(cfg)
	llmExec := resilience.NewExecutor(generation)
	writeExec := resilience.NewExecutor(indexWritePolicy(cfg))

	core.embedder, err = newEmbedder(cfg, embedExec)
	if err != nil {
		return nil, err
	}
	queryEmbedder, err := embedding.NewCachedEmbedder(core.embedder, cfg.EmbeddingCacheSize)
	if err != nil {
		return nil, err
	}

	index, err := core.newVectorIndex(cfg)
	if err != nil {
		core.Close()
		return nil, err
	}
	if err := index.EnsureIndex(ctx, cfg.EmbeddingDim); err != nil {
		if domain.IsKind(err, domain.ErrInvalidConfiguration) {
			core.Close()
			return nil, err
		}
		slog.Warn("vector_index_unavailable", "backend", cfg.VectorBackend, "error", err)
	}
	core.index = vector.NewResilientIndex(index, writeExec)

	core.chunker, err = chunking.NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap)
	if err != nil {
		core.Close()
		return nil, err
	}

	primary, err := newGenerator(cfg, cfg.LLMProvider, llmExec)
	if err != nil {
		core.Close()
		return nil, err
	}
	var fallback ports.Generator
	if cfg.FallbackLLMProvider != "" && cfg.FallbackLLMProvider != cfg.LLMProvider {
		fallback, err = newGenerator(cfg, cfg.FallbackLLMProvider, llmExec)
		if err != nil {
			core.Close()
			return nil, err
		}
	}

	retriever := usecase.NewRetrieverUseCase(queryEmbedder, core.index, usecase.NewQueryAugmenter(synonyms), usecase.RetrieverConfig{
		TopK:           cfg.RAGTopK,
		ScoreThreshold: cfg.RAGScoreThreshold,
		QueryTimeout:   cfg.IndexQueryTimeout,
	})
	answerer := usecase.NewAnswerUseCase(retriever, primary, fallback, opts.AnswerObserver, usecase.AnswerConfig{
		GenerationTimeout: generation.Budget(),
		ApologyText:       cfg.ApologyText,
	})
	core.Answerer = answerer
	core.Captions = usecase.NewCaptionUseCase(answerer)
	core.Files = core.newProcessor(nil, nil)
	return core, nil
}

func (c *Core) newProcessor(repo ports.DocumentRepository, storage ports.ObjectStorage) *usecase.ProcessDocumentUseCase {
	return usecase.NewProcessDocumentUseCase(
		repo,
		storage,
		c.extractors,
		c.chunker,
		c.embedder,
		c.index,
		c.opts.IngestObserver,
		usecase.ProcessConfig{
			Concurrency:        c.Config.IngestConcurrency,
			EmbedRatePerSecond: c.Config.EmbedRateLimitRPS,
			UpsertBatch:        c.Config.IngestUpsertBatch,
			Dimension:          c.Config.EmbeddingDim,
		},
	)
}

func (c *Core) newVectorIndex(cfg config.Config) (ports.VectorIndex, error) {
	switch cfg.VectorBackend {
	case "pgvector":
		db, err := postgres.OpenDB(cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open pgvector database: %w", err)
		}
		c.onClose(func() { _ = db.Close() })
		return pgvector.New(db, cfg.PgvectorTable), nil
	case "memory":
		return vectormemory.New(), nil
	default:
		return qdrant.New(cfg.QdrantURL, cfg.QdrantCollection), nil
	}
}

func (c *Core) onClose(fn func()) {
	c.closers = append(c.closers, fn)
}

func (c *Core) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	c.closers = nil
}

// App adds the upload ledger, object storage and the ingest queue to Core.
type App struct {
	*Core

	Queue     ports.MessageQueue
	Documents ports.DocumentReader
	IngestUC  ports.DocumentIngestor
	ProcessUC ports.DocumentProcessor
}

func New(ctx context.Context, cfg config.Config, opts Options) (*App, error) {
	core, err := NewCore(ctx, cfg, opts)
	if err != nil {
		return nil, err
	}

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		core.Close()
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	core.onClose(func() { _ = db.Close() })

	repo, err := newDocumentRepository(ctx, db)
	if err != nil {
		core.Close()
		return nil, err
	}

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		core.Close()
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		JobTimeout:         5 * time.Minute,
		ResilienceExecutor: resilience.NewExecutor(queuePolicy(cfg)),
	})
	if err != nil {
		core.Close()
		return nil, fmt.Errorf("init message queue: %w", err)
	}
	core.onClose(queue.Close)

	ingestUC := usecase.NewIngestDocumentUseCase(repo, storage, queue, core.extractors)
	return &App{
		Core:      core,
		Queue:     queue,
		Documents: ingestUC,
		IngestUC:  ingestUC,
		ProcessUC: core.newProcessor(repo, storage),
	}, nil
}

func newDocumentRepository(ctx context.Context, db *sql.DB) (*postgres.DocumentRepository, error) {
	repo := postgres.NewDocumentRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return repo, nil
}

// NewSessionStore returns the dialogue session backend and its closer.
func NewSessionStore(ctx context.Context, cfg config.Config) (ports.SessionStore, func(), error) {
	if cfg.SessionBackend != "redis" {
		return memory.New(), func() {}, nil
	}
	client, err := redis.NewClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return nil, nil, fmt.Errorf("init session store: %w", err)
	}
	return redis.New(client, "", cfg.SessionTTL), func() { _ = client.Close() }, nil
}

func newEmbedder(cfg config.Config, executor *resilience.Executor) (ports.Embedder, error) {
	switch cfg.EmbeddingProvider {
	case "ollama":
		client := ollama.NewWithOptions(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel, ollama.Options{
			ResilienceExecutor: executor,
		})
		return ollama.NewEmbedder(client), nil
	case "openai":
		client, err := newOpenAIClient(cfg, executor)
		if err != nil {
			return nil, err
		}
		return openai.NewEmbedder(client), nil
	default:
		return nil, domain.WrapError(domain.ErrInvalidConfiguration, "bootstrap.embedder", fmt.Errorf("unknown provider %q", cfg.EmbeddingProvider))
	}
}

func newGenerator(cfg config.Config, provider string, executor *resilience.Executor) (ports.Generator, error) {
	switch provider {
	case "ollama":
		client := ollama.NewWithOptions(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel, ollama.Options{
			ResilienceExecutor: executor,
		})
		return ollama.NewGenerator(client), nil
	case "openai":
		client, err := newOpenAIClient(cfg, executor)
		if err != nil {
			return nil, err
		}
		return openai.NewGenerator(client), nil
	default:
		return nil, domain.WrapError(domain.ErrInvalidConfiguration, "bootstrap.generator", fmt.Errorf("unknown provider %q", provider))
	}
}

func newOpenAIClient(cfg config.Config, executor *resilience.Executor) (*openai.Client, error) {
	if cfg.OpenAIAPIKey == "" && cfg.OpenAIBaseURL == "" {
		return nil, domain.WrapError(domain.ErrInvalidConfiguration, "bootstrap.openai", fmt.Errorf("OPENAI_API_KEY is required"))
	}
	return openai.New(cfg.OpenAIAPIKey, cfg.OpenAIChatModel, cfg.OpenAIEmbedModel, openai.Options{
		BaseURL:            cfg.OpenAIBaseURL,
		ResilienceExecutor: executor,
		MaxTokens:          cfg.LLMMaxTokens,
	}), nil
}
