package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/pixers-assistant/internal/core/domain"
	"github.com/kirillkom/pixers-assistant/internal/core/ports"
)

const fallbackStorageName = "document.bin"

// FormatChecker reports whether a file can be turned into text.
type FormatChecker interface {
	Supports(filename string) bool
}

// IngestDocumentUseCase accepts uploads: the file goes to object storage, a
// ledger record is created and an ingest job is queued for the worker.
type IngestDocumentUseCase struct {
	repo    ports.DocumentRepository
	storage ports.ObjectStorage
	queue   ports.MessageQueue
	formats FormatChecker
	now     func() time.Time
}

// NewIngestDocumentUseCase builds the upload flow. A nil formats accepts
// every file and leaves rejection to the worker.
func NewIngestDocumentUseCase(
	repo ports.DocumentRepository,
	storage ports.ObjectStorage,
	queue ports.MessageQueue,
	formats FormatChecker,
) *IngestDocumentUseCase {
	return &IngestDocumentUseCase{
		repo:    repo,
		storage: storage,
		queue:   queue,
		formats: formats,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (uc *IngestDocumentUseCase) Upload(
	ctx context.Context,
	filename, mimeType string,
	body io.Reader,
) (*domain.Document, error) {
	const op = "ingest.upload"

	name := filepath.Base(strings.TrimSpace(filename))
	if name == "" || name == "." || name == string(filepath.Separator) {
		return nil, domain.WrapError(domain.ErrInvalidInput, op, errors.New("filename is required"))
	}
	if uc.formats != nil && !uc.formats.Supports(name) {
		return nil, domain.WrapError(domain.ErrInvalidInput, op, fmt.Errorf("unsupported file type %q", filepath.Ext(name)))
	}

	now := uc.now()
	doc := &domain.Document{
		ID:        uuid.NewString(),
		Filename:  name,
		MimeType:  mimeType,
		Status:    domain.StatusUploaded,
		CreatedAt: now,
		UpdatedAt: now,
	}
	doc.StoragePath = storageKey(doc.ID, name)

	if err := uc.storage.Save(ctx, doc.StoragePath, body); err != nil {
		return nil, fmt.Errorf("save to object storage: %w", err)
	}
	if err := uc.repo.Create(ctx, doc); err != nil {
		return nil, fmt.Errorf("create document record: %w", err)
	}

	if err := uc.queue.PublishIngestJob(ctx, doc.ID); err != nil {
		// The record would otherwise stay "uploaded" forever.
		if markErr := uc.repo.UpdateStatus(ctx, doc.ID, domain.StatusFailed, "enqueue failed: "+err.Error()); markErr != nil {
			slog.Error("upload_mark_failed", "document_id", doc.ID, "error", markErr)
		}
		return nil, fmt.Errorf("publish ingest job: %w", err)
	}

	slog.Info("document_uploaded", "document_id", doc.ID, "filename", name, "mime_type", mimeType)
	return doc, nil
}

// GetByID exposes the ingest ledger record.
func (uc *IngestDocumentUseCase) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	return uc.repo.GetByID(ctx, id)
}

// storageKey is "<id>_<name>" with name reduced to [A-Za-z0-9._-].
func storageKey(id, filename string) string {
	return id + "_" + sanitizeFilename(filename)
}

func sanitizeFilename(name string) string {
	var b strings.Builder
	for _, r := range filepath.Base(name) {
		if r == '.' || r == '-' || r == '_' || r >= '0' && r <= '9' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' {
			b.WriteRune(r)
			continue
		}
		b.WriteByte('_')
	}
	cleaned := b.String()
	if strings.Trim(cleaned, ".") == "" {
		return fallbackStorageName
	}
	return cleaned
}
