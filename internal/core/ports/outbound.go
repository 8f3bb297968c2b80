package ports

import (
	"context"
	"io"

	"github.com/kirillkom/pixers-assistant/internal/core/domain"
)

// DocumentRepository persists and reads the ingest ledger.
type DocumentRepository interface {
	Create(ctx context.Context, doc *domain.Document) error
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus, errMessage string) error
	SaveChunkCount(ctx context.Context, id string, count int) error
}

// ObjectStorage stores source documents.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// MessageQueue publishes/consumes ingestion jobs.
type MessageQueue interface {
	PublishIngestJob(ctx context.Context, documentID string) error
	SubscribeIngestJobs(ctx context.Context, handler func(context.Context, string) error) error
}

// TextExtractor extracts plain text from a source file.
type TextExtractor interface {
	Extract(ctx context.Context, filename string, body io.Reader) (string, error)
}

// Chunker splits text into overlapping fixed-size chunks.
type Chunker interface {
	Split(text string) []domain.Chunk
}

// Embedder builds vectors for chunks and query text.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// VectorIndex stores index entries and answers cosine k-NN queries.
type VectorIndex interface {
	EnsureIndex(ctx context.Context, dimension int) error
	Upsert(ctx context.Context, entries []domain.IndexEntry) error
	Query(ctx context.Context, vector []float32, topK int) ([]domain.ScoredEntry, error)
	// DeleteStale removes the entries of document whose ids are not in keep.
	DeleteStale(ctx context.Context, document string, keep []string) error
}

// Generator calls a language model with a system framing and a prompt.
type Generator interface {
	Generate(ctx context.Context, system, prompt string) (string, error)
}

// SessionStore keeps bot dialogue sessions keyed by conversation id.
type SessionStore interface {
	Load(ctx context.Context, conversationID string) (*domain.DialogueSession, error)
	Save(ctx context.Context, session *domain.DialogueSession) error
	Delete(ctx context.Context, conversationID string) error
}

// PostPublisher publishes an approved post to the target channel.
type PostPublisher interface {
	PublishPost(ctx context.Context, imageRef, caption string) error
}
