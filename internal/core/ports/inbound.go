package ports

import (
	"context"
	"io"

	"github.com/kirillkom/pixers-assistant/internal/core/domain"
)

// DocumentIngestor is the inbound contract for document upload orchestration.
type DocumentIngestor interface {
	Upload(ctx context.Context, filename, mimeType string, body io.Reader) (*domain.Document, error)
}

// DocumentReader is the inbound read model for ingest ledger state.
type DocumentReader interface {
	GetByID(ctx context.Context, id string) (*domain.Document, error)
}

// DocumentProcessor is the inbound contract for asynchronous ingestion.
type DocumentProcessor interface {
	ProcessByID(ctx context.Context, documentID string) error
}

// FileIngestor ingests local files in one shot.
type FileIngestor interface {
	IngestFile(ctx context.Context, path string) (domain.IngestReport, error)
	IngestFiles(ctx context.Context, paths []string) ([]domain.IngestReport, error)
}

// Retriever produces the scored context set for a query.
type Retriever interface {
	Retrieve(ctx context.Context, query string) (domain.RetrievalResult, error)
}

// Answerer always returns a usable outcome.
type Answerer interface {
	Answer(ctx context.Context, userInput string) domain.AnswerOutcome
}

// CaptionService generates post captions.
type CaptionService interface {
	GenerateCaption(ctx context.Context, req domain.CaptionRequest) (domain.Caption, error)
}

// DialogueHandler advances the bot dialogue for one conversation.
type DialogueHandler interface {
	Handle(ctx context.Context, conversationID string, event domain.DialogueEvent) (domain.DialogueReply, error)
}
