package pgvector

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/kirillkom/pixers-assistant/internal/core/domain"
)

func newIndexWithMock(t *testing.T) (*Index, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return New(db, "rag_chunks"), mock
}

func expectSchema(mock sqlmock.Sqlmock, existing int) {
	mock.ExpectBegin()
	mock.ExpectExec("SELECT pg_advisory_xact_lock").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE EXTENSION IF NOT EXISTS vector").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS "rag_chunks"`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`ALTER TABLE "rag_chunks" ADD COLUMN IF NOT EXISTS document`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT atttypmod FROM pg_attribute").
		WithArgs("rag_chunks").
		WillReturnRows(sqlmock.NewRows([]string{"atttypmod"}).AddRow(existing))
}

func TestEnsureIndexCreatesTable(t *testing.T) {
	idx, mock := newIndexWithMock(t)
	expectSchema(mock, 3)
	mock.ExpectCommit()

	if err := idx.EnsureIndex(context.Background(), 3); err != nil {
		t.Fatalf("EnsureIndex() error = %v", err)
	}
	if err := idx.EnsureIndex(context.Background(), 3); err != nil {
		t.Fatalf("second EnsureIndex() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestEnsureIndexRejectsDimensionMismatch(t *testing.T) {
	idx, mock := newIndexWithMock(t)
	expectSchema(mock, 768)
	mock.ExpectRollback()

	err := idx.EnsureIndex(context.Background(), 1536)
	if !domain.IsKind(err, domain.ErrInvalidConfiguration) {
		t.Fatalf("expected invalid configuration, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestUpsertWritesEntriesInTransaction(t *testing.T) {
	idx, mock := newIndexWithMock(t)
	expectSchema(mock, 2)
	mock.ExpectCommit()
	if err := idx.EnsureIndex(context.Background(), 2); err != nil {
		t.Fatalf("EnsureIndex() error = %v", err)
	}

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO "rag_chunks"`).
		WithArgs("chunk-0", sqlmock.AnyArg(), "The cat sa", "story.txt", "", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO "rag_chunks"`).
		WithArgs("chunk-1", sqlmock.AnyArg(), "sat. The d", "story.txt", "", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := idx.Upsert(context.Background(), []domain.IndexEntry{
		{ID: "chunk-0", Vector: []float32{1, 0}, Metadata: domain.EntryMetadata{Text: "The cat sa", Source: "story.txt"}},
		{ID: "chunk-1", Vector: []float32{0, 1}, Metadata: domain.EntryMetadata{Text: "sat. The d", Source: "story.txt"}},
	})
	if err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestUpsertRollsBackAndWrapsWriteFailure(t *testing.T) {
	idx, mock := newIndexWithMock(t)
	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO "rag_chunks"`).WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	err := idx.Upsert(context.Background(), []domain.IndexEntry{{ID: "chunk-0", Vector: []float32{1, 0}}})
	if !domain.IsKind(err, domain.ErrIndexWriteFailure) {
		t.Fatalf("expected index write failure, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestQueryReturnsScoredEntries(t *testing.T) {
	idx, mock := newIndexWithMock(t)
	mock.ExpectQuery("SELECT id, text, source, document, 1 - \\(embedding <=> \\$1\\) AS score").
		WithArgs(sqlmock.AnyArg(), 3).
		WillReturnRows(sqlmock.NewRows([]string{"id", "text", "source", "document", "score"}).
			AddRow("chunk-4", "visa renewal takes two weeks", "guide.pdf", "", 0.82).
			AddRow("chunk-9", "office hours", "guide.pdf", "", 0.41))

	matches, err := idx.Query(context.Background(), []float32{0.1, 0.2}, 3)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(matches) != 2 || matches[0].Entry.ID != "chunk-4" || matches[0].Score != 0.82 {
		t.Fatalf("unexpected matches: %#v", matches)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestQueryWrapsQueryFailure(t *testing.T) {
	idx, mock := newIndexWithMock(t)
	mock.ExpectQuery("SELECT id, text, source").WillReturnError(errors.New("timeout"))

	_, err := idx.Query(context.Background(), []float32{0.1}, 3)
	if !domain.IsKind(err, domain.ErrIndexQueryFailure) {
		t.Fatalf("expected index query failure, got %v", err)
	}
}

func TestDeleteStaleKeepsCurrentIDs(t *testing.T) {
	idx, mock := newIndexWithMock(t)
	mock.ExpectExec(`DELETE FROM "rag_chunks"`).
		WithArgs("guide.txt", `["guide.txt:chunk-0","guide.txt:chunk-1"]`).
		WillReturnResult(sqlmock.NewResult(0, 3))

	if err := idx.DeleteStale(context.Background(), "guide.txt", []string{"guide.txt:chunk-0", "guide.txt:chunk-1"}); err != nil {
		t.Fatalf("DeleteStale() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestDeleteStaleWrapsWriteFailure(t *testing.T) {
	idx, mock := newIndexWithMock(t)
	mock.ExpectExec(`DELETE FROM "rag_chunks"`).WillReturnError(errors.New("connection reset"))

	err := idx.DeleteStale(context.Background(), "", nil)
	if !domain.IsKind(err, domain.ErrIndexWriteFailure) {
		t.Fatalf("expected index write failure, got %v", err)
	}
}
