package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/kirillkom/well-report-rag/internal/core/domain"
)

// EntryRepository persists the chunk entries of every collection. Entries load in
// insertion order; re-saving an id replaces its content in place.
type EntryRepository struct {
	db *sql.DB
}

func NewEntryRepository(db *sql.DB) *EntryRepository {
	return &EntryRepository{db: db}
}

func (r *EntryRepository) SaveEntries(ctx context.Context, collection string, entries []domain.IndexEntry) error {
	if len(entries) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin entries tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO index_entries (collection, id, content, metadata)
VALUES ($1, $2, $3, $4)
ON CONFLICT (collection, id) DO UPDATE
SET content = EXCLUDED.content, metadata = EXCLUDED.metadata
`)
	if err != nil {
		return fmt.Errorf("prepare entry upsert: %w", err)
	}
	defer stmt.Close()

	for _, entry := range entries {
		meta, err := json.Marshal(entry.Metadata)
		if err != nil {
			return fmt.Errorf("marshal entry metadata: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, collection, entry.ID, entry.Content, meta); err != nil {
			return fmt.Errorf("upsert entry %s: %w", entry.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit entries tx: %w", err)
	}
	return nil
}

func (r *EntryRepository) LoadEntries(ctx context.Context, collection string) ([]domain.IndexEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, content, metadata
FROM index_entries
WHERE collection = $1
ORDER BY seq
`, collection)
	if err != nil {
		return nil, fmt.Errorf("load entries: %w", err)
	}
	defer rows.Close()

	var entries []domain.IndexEntry
	for rows.Next() {
		var entry domain.IndexEntry
		var meta []byte
		if err := rows.Scan(&entry.ID, &entry.Content, &meta); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		if err := json.Unmarshal(meta, &entry.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal entry metadata: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}
	return entries, nil
}

func (r *EntryRepository) CountEntries(ctx context.Context, collection string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM index_entries WHERE collection = $1`, collection).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count entries: %w", err)
	}
	return count, nil
}

func (r *EntryRepository) DeleteDocument(ctx context.Context, collection, documentID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM index_entries WHERE collection = $1 AND metadata->>'document_id' = $2`,
		collection, documentID)
	if err != nil {
		return fmt.Errorf("delete document entries: %w", err)
	}
	return nil
}
