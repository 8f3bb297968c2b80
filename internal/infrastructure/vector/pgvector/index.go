package pgvector

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	pgv "github.com/pgvector/pgvector-go"

	"github.com/kirillkom/pixers-assistant/internal/core/domain"
	"github.com/kirillkom/pixers-assistant/internal/infrastructure/vector"
)

const defaultTable = "rag_chunks"

// Index stores entries in a postgres table with a pgvector column.
type Index struct {
	db         *sql.DB
	table      string
	tableIdent string

	mu        sync.Mutex
	dimension int
}

func New(db *sql.DB, table string) *Index {
	if table == "" {
		table = defaultTable
	}
	return &Index{
		db:         db,
		table:      table,
		tableIdent: pgx.Identifier{table}.Sanitize(),
	}
}

func (i *Index) EnsureIndex(ctx context.Context, dimension int) error {
	const op = "pgvector.ensure_index"
	if dimension <= 0 {
		return domain.WrapError(domain.ErrInvalidConfiguration, op, fmt.Errorf("dimension must be positive, got %d", dimension))
	}

	i.mu.Lock()
	defer i.mu.Unlock()
	if i.dimension == dimension {
		return nil
	}

	tx, err := i.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.WrapCallError(domain.ErrIndexWriteFailure, op, fmt.Errorf("begin schema tx: %w", err))
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026101601)); err != nil {
		return domain.WrapCallError(domain.ErrIndexWriteFailure, op, fmt.Errorf("acquire schema lock: %w", err))
	}
	if _, err := tx.ExecContext(ctx, `CREATE EXTENSION IF NOT EXISTS vector`); err != nil {
		return domain.WrapCallError(domain.ErrIndexWriteFailure, op, fmt.Errorf("enable extension: %w", err))
	}
	createTable := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id TEXT PRIMARY KEY,
	embedding vector(%d) NOT NULL,
	text TEXT NOT NULL,
	source TEXT NOT NULL DEFAULT '',
	document TEXT NOT NULL DEFAULT '',
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`, i.tableIdent, dimension)
	if _, err := tx.ExecContext(ctx, createTable); err != nil {
		return domain.WrapCallError(domain.ErrIndexWriteFailure, op, fmt.Errorf("create table: %w", err))
	}
	addDocument := fmt.Sprintf(`ALTER TABLE %s ADD COLUMN IF NOT EXISTS document TEXT NOT NULL DEFAULT ''`, i.tableIdent)
	if _, err := tx.ExecContext(ctx, addDocument); err != nil {
		return domain.WrapCallError(domain.ErrIndexWriteFailure, op, fmt.Errorf("add document column: %w", err))
	}

	existing, err := columnDimension(ctx, tx, i.table)
	if err != nil {
		return domain.WrapCallError(domain.ErrIndexQueryFailure, op, err)
	}
	if err := vector.CheckDimension(op, existing, dimension); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return domain.WrapCallError(domain.ErrIndexWriteFailure, op, fmt.Errorf("commit schema tx: %w", err))
	}
	i.dimension = dimension
	return nil
}

// columnDimension reads the declared vector(n) size; pgvector stores n as
// the column type modifier.
func columnDimension(ctx context.Context, tx *sql.Tx, table string) (int, error) {
	var typmod int
	err := tx.QueryRowContext(ctx, `
SELECT atttypmod FROM pg_attribute
WHERE attrelid = to_regclass($1) AND attname = 'embedding'
`, table).Scan(&typmod)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("read embedding dimension: %w", err)
	}
	if typmod < 0 {
		return 0, nil
	}
	return typmod, nil
}

func (i *Index) Upsert(ctx context.Context, entries []domain.IndexEntry) (err error) {
	const op = "pgvector.upsert"
	if len(entries) == 0 {
		return nil
	}
	dimension := i.currentDimension()
	for _, entry := range entries {
		if err := vector.CheckDimension(op, dimension, len(entry.Vector)); err != nil {
			return err
		}
	}

	tx, err := i.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.WrapCallError(domain.ErrIndexWriteFailure, op, fmt.Errorf("begin tx: %w", err))
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt := fmt.Sprintf(`INSERT INTO %s (id, embedding, text, source, document, updated_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (id) DO UPDATE SET
	embedding = excluded.embedding,
	text = excluded.text,
	source = excluded.source,
	document = excluded.document,
	updated_at = excluded.updated_at`, i.tableIdent)
	now := time.Now().UTC()
	for _, entry := range entries {
		if _, err := tx.ExecContext(ctx, stmt, entry.ID, pgv.NewVector(entry.Vector), entry.Metadata.Text, entry.Metadata.Source, entry.Metadata.Document, now); err != nil {
			return domain.WrapCallError(domain.ErrIndexWriteFailure, op, fmt.Errorf("upsert %q: %w", entry.ID, err))
		}
	}
	if err := tx.Commit(); err != nil {
		return domain.WrapCallError(domain.ErrIndexWriteFailure, op, fmt.Errorf("commit: %w", err))
	}
	return nil
}

func (i *Index) Query(ctx context.Context, queryVector []float32, topK int) ([]domain.ScoredEntry, error) {
	const op = "pgvector.query"
	if err := vector.CheckDimension(op, i.currentDimension(), len(queryVector)); err != nil {
		return nil, err
	}
	if topK <= 0 {
		return nil, nil
	}

	query := fmt.Sprintf(`SELECT id, text, source, document, 1 - (embedding <=> $1) AS score
FROM %s
ORDER BY embedding <=> $1 ASC, id ASC
LIMIT $2`, i.tableIdent)
	rows, err := i.db.QueryContext(ctx, query, pgv.NewVector(queryVector), topK)
	if err != nil {
		return nil, domain.WrapCallError(domain.ErrIndexQueryFailure, op, err)
	}
	defer rows.Close()

	out := make([]domain.ScoredEntry, 0, topK)
	for rows.Next() {
		var match domain.ScoredEntry
		if err := rows.Scan(&match.Entry.ID, &match.Entry.Metadata.Text, &match.Entry.Metadata.Source, &match.Entry.Metadata.Document, &match.Score); err != nil {
			return nil, domain.WrapCallError(domain.ErrIndexQueryFailure, op, fmt.Errorf("scan: %w", err))
		}
		out = append(out, match)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.WrapCallError(domain.ErrIndexQueryFailure, op, err)
	}
	vector.SortMatches(out)
	return out, nil
}

// DeleteStale removes rows of document whose ids are not in keep. The keep
// list is sent as one JSON array parameter.
func (i *Index) DeleteStale(ctx context.Context, document string, keep []string) error {
	const op = "pgvector.delete_stale"
	if keep == nil {
		keep = []string{}
	}
	keepJSON, err := json.Marshal(keep)
	if err != nil {
		return domain.WrapError(domain.ErrIndexWriteFailure, op, fmt.Errorf("encode keep list: %w", err))
	}

	stmt := fmt.Sprintf(`DELETE FROM %s
WHERE document = $1
	AND id NOT IN (SELECT jsonb_array_elements_text($2::jsonb))`, i.tableIdent)
	if _, err := i.db.ExecContext(ctx, stmt, document, string(keepJSON)); err != nil {
		return domain.WrapCallError(domain.ErrIndexWriteFailure, op, err)
	}
	return nil
}

func (i *Index) currentDimension() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.dimension
}
