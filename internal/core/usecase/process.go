package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/kirillkom/pixers-assistant/internal/core/domain"
	"github.com/kirillkom/pixers-assistant/internal/core/ports"
)

const (
	defaultIngestConcurrency = 4
	defaultUpsertBatch       = 100
)

type ProcessConfig struct {
	Concurrency int
	// EmbedRatePerSecond paces chunk embedding calls; zero disables pacing.
	EmbedRatePerSecond float64
	UpsertBatch        int
	// Dimension is the declared index dimension. Zero takes it from the
	// first embedded chunk.
	Dimension int
}

// IngestObserver is notified once per finished ingestion run.
type IngestObserver interface {
	ObserveIngest(status domain.DocumentStatus, chunks int)
}

// ProcessDocumentUseCase runs chunk, embed and upsert for uploaded documents
// and for local files.
type ProcessDocumentUseCase struct {
	repo      ports.DocumentRepository
	storage   ports.ObjectStorage
	extractor ports.TextExtractor
	chunker   ports.Chunker
	embedder  ports.Embedder
	index     ports.VectorIndex
	observer  IngestObserver
	limiter   *rate.Limiter
	cfg       ProcessConfig
}

func NewProcessDocumentUseCase(
	repo ports.DocumentRepository,
	storage ports.ObjectStorage,
	extractor ports.TextExtractor,
	chunker ports.Chunker,
	embedder ports.Embedder,
	index ports.VectorIndex,
	observer IngestObserver,
	cfg ProcessConfig,
) *ProcessDocumentUseCase {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultIngestConcurrency
	}
	if cfg.UpsertBatch <= 0 {
		cfg.UpsertBatch = defaultUpsertBatch
	}
	var limiter *rate.Limiter
	if cfg.EmbedRatePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.EmbedRatePerSecond), 1)
	}
	return &ProcessDocumentUseCase{
		repo:      repo,
		storage:   storage,
		extractor: extractor,
		chunker:   chunker,
		embedder:  embedder,
		index:     index,
		observer:  observer,
		limiter:   limiter,
		cfg:       cfg,
	}
}

// ProcessByID ingests an uploaded document and records the outcome in the
// ledger. Entry ids are prefixed with the document id.
func (uc *ProcessDocumentUseCase) ProcessByID(ctx context.Context, documentID string) error {
	if err := uc.markStatus(ctx, documentID, domain.StatusProcessing, ""); err != nil {
		return fmt.Errorf("set status=processing: %w", err)
	}

	report, err := uc.processStored(ctx, documentID)
	if err != nil {
		uc.observe(domain.StatusFailed, 0)
		if failErr := uc.markFailed(ctx, documentID, err); failErr != nil {
			return fmt.Errorf("%w; mark failed status: %v", err, failErr)
		}
		return err
	}

	if err := uc.repo.SaveChunkCount(ctx, documentID, report.ChunksCreated); err != nil {
		return fmt.Errorf("save chunk count: %w", err)
	}
	if err := uc.markStatus(ctx, documentID, domain.StatusReady, ""); err != nil {
		return fmt.Errorf("set status=ready: %w", err)
	}
	uc.observe(domain.StatusReady, report.ChunksCreated)
	return nil
}

// IngestFile ingests a local file in one shot. Entry ids are chunk-{i} and
// entries left over from an earlier single-file run are removed.
func (uc *ProcessDocumentUseCase) IngestFile(ctx context.Context, path string) (domain.IngestReport, error) {
	return uc.ingestFile(ctx, path, "")
}

// IngestFiles ingests several local files. A single path behaves like
// IngestFile; with more than one, each file gets its own {name}:chunk-{i}
// namespace so files never overwrite each other.
func (uc *ProcessDocumentUseCase) IngestFiles(ctx context.Context, paths []string) ([]domain.IngestReport, error) {
	if len(paths) == 1 {
		report, err := uc.IngestFile(ctx, paths[0])
		if err != nil {
			return nil, err
		}
		return []domain.IngestReport{report}, nil
	}

	seen := make(map[string]string, len(paths))
	for _, path := range paths {
		name := filepath.Base(path)
		if prev, ok := seen[name]; ok {
			return nil, domain.WrapError(domain.ErrInvalidInput, "ingest files", fmt.Errorf("%s and %s share the file name %q", prev, path, name))
		}
		seen[name] = path
	}

	reports := make([]domain.IngestReport, 0, len(paths))
	for _, path := range paths {
		report, err := uc.ingestFile(ctx, path, filepath.Base(path))
		if err != nil {
			return reports, fmt.Errorf("ingest %s: %w", path, err)
		}
		reports = append(reports, report)
	}
	return reports, nil
}

func (uc *ProcessDocumentUseCase) ingestFile(ctx context.Context, path, document string) (domain.IngestReport, error) {
	file, err := os.Open(path)
	if err != nil {
		return domain.IngestReport{}, domain.WrapError(domain.ErrInvalidInput, "open source file", err)
	}
	defer file.Close()

	source := filepath.Base(path)
	text, err := uc.extractText(ctx, source, file)
	if err != nil {
		uc.observe(domain.StatusFailed, 0)
		return domain.IngestReport{}, err
	}

	report, err := uc.ingest(ctx, text, document, source)
	if err != nil {
		uc.observe(domain.StatusFailed, 0)
		return report, err
	}
	uc.observe(domain.StatusReady, report.ChunksCreated)
	return report, nil
}

func (uc *ProcessDocumentUseCase) processStored(ctx context.Context, documentID string) (domain.IngestReport, error) {
	doc, err := uc.repo.GetByID(ctx, documentID)
	if err != nil {
		return domain.IngestReport{}, fmt.Errorf("fetch document by id: %w", err)
	}

	body, err := uc.storage.Open(ctx, doc.StoragePath)
	if err != nil {
		return domain.IngestReport{}, fmt.Errorf("open stored document: %w", err)
	}
	defer body.Close()

	text, err := uc.extractText(ctx, doc.Filename, body)
	if err != nil {
		return domain.IngestReport{}, err
	}
	return uc.ingest(ctx, text, doc.ID, doc.Filename)
}

func (uc *ProcessDocumentUseCase) extractText(ctx context.Context, filename string, body io.Reader) (string, error) {
	text, err := uc.extractor.Extract(ctx, filename, body)
	if err != nil {
		return "", fmt.Errorf("extract text: %w", err)
	}
	if text == "" {
		return "", domain.WrapError(domain.ErrInvalidInput, "extract text", errors.New("empty extracted text"))
	}
	return text, nil
}

// ingest chunks, embeds and upserts text under the document namespace. Entry
// ids are {document}:chunk-{i}, or chunk-{i} when document is empty.
func (uc *ProcessDocumentUseCase) ingest(ctx context.Context, text, document, source string) (domain.IngestReport, error) {
	started := time.Now()

	chunks := uc.chunker.Split(text)
	if len(chunks) == 0 {
		return domain.IngestReport{}, domain.WrapError(domain.ErrInvalidInput, "chunk document", errors.New("chunking produced zero chunks"))
	}
	report := domain.IngestReport{ChunksCreated: len(chunks)}

	vectors, err := uc.embedChunks(ctx, chunks)
	if err != nil {
		return report, err
	}

	dimension := uc.cfg.Dimension
	if dimension == 0 {
		dimension = len(vectors[0])
	}
	if err := uc.index.EnsureIndex(ctx, dimension); err != nil {
		return report, fmt.Errorf("ensure index: %w", err)
	}

	idPrefix := ""
	if document != "" {
		idPrefix = document + ":"
	}
	entries := make([]domain.IndexEntry, len(chunks))
	ids := make([]string, len(chunks))
	for i, chunk := range chunks {
		if len(vectors[i]) != dimension {
			return report, domain.WrapError(
				domain.ErrInvalidConfiguration,
				"ingest",
				fmt.Errorf("chunk %s embedded with dimension %d, index dimension is %d", chunk.ID, len(vectors[i]), dimension),
			)
		}
		ids[i] = idPrefix + chunk.ID
		entries[i] = domain.IndexEntry{
			ID:       ids[i],
			Vector:   vectors[i],
			Metadata: domain.EntryMetadata{Text: chunk.Text, Source: source, Document: document},
		}
	}

	for start := 0; start < len(entries); start += uc.cfg.UpsertBatch {
		end := min(start+uc.cfg.UpsertBatch, len(entries))
		if err := uc.index.Upsert(ctx, entries[start:end]); err != nil {
			return report, fmt.Errorf("upsert batch %d-%d: %w", start, end, err)
		}
		report.VectorsUpserted += end - start
	}

	if err := uc.index.DeleteStale(ctx, document, ids); err != nil {
		return report, fmt.Errorf("prune stale entries: %w", err)
	}

	slog.Info("ingest_completed",
		"source", source,
		"chunks_created", report.ChunksCreated,
		"vectors_upserted", report.VectorsUpserted,
		"duration_ms", time.Since(started).Milliseconds(),
	)
	return report, nil
}

// embedChunks embeds every chunk with one call per chunk, bounded by the
// configured concurrency and paced by the rate limiter.
func (uc *ProcessDocumentUseCase) embedChunks(ctx context.Context, chunks []domain.Chunk) ([][]float32, error) {
	vectors := make([][]float32, len(chunks))

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(uc.cfg.Concurrency)
	for i, chunk := range chunks {
		group.Go(func() error {
			if uc.limiter != nil {
				if err := uc.limiter.Wait(groupCtx); err != nil {
					return err
				}
			}
			out, err := uc.embedder.Embed(groupCtx, []string{chunk.Text})
			if err != nil {
				return fmt.Errorf("embed %s: %w", chunk.ID, err)
			}
			if len(out) != 1 || len(out[0]) == 0 {
				return domain.WrapError(domain.ErrEmbeddingFailure, "embed chunk", fmt.Errorf("no vector returned for %s", chunk.ID))
			}
			vectors[i] = out[0]
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	return vectors, nil
}

func (uc *ProcessDocumentUseCase) observe(status domain.DocumentStatus, chunks int) {
	if uc.observer != nil {
		uc.observer.ObserveIngest(status, chunks)
	}
}

func (uc *ProcessDocumentUseCase) markStatus(ctx context.Context, documentID string, status domain.DocumentStatus, errMessage string) error {
	return uc.repo.UpdateStatus(ctx, documentID, status, errMessage)
}

func (uc *ProcessDocumentUseCase) markFailed(ctx context.Context, documentID string, processErr error) error {
	if processErr == nil {
		return nil
	}
	return uc.markStatus(ctx, documentID, domain.StatusFailed, processErr.Error())
}
