// Package sqlite keeps documents and index entries in a single local database file,
// so the CLI runs without Postgres.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/kirillkom/well-report-rag/internal/core/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	id TEXT PRIMARY KEY,
	filename TEXT NOT NULL,
	mime_type TEXT NOT NULL,
	storage_path TEXT NOT NULL,
	wells TEXT NOT NULL DEFAULT '[]',
	page_count INTEGER NOT NULL DEFAULT 0,
	chunk_count INTEGER NOT NULL DEFAULT 0,
	status TEXT NOT NULL,
	error_message TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_documents_filename ON documents(filename);
CREATE INDEX IF NOT EXISTS idx_documents_status ON documents(status);

CREATE TABLE IF NOT EXISTS index_entries (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	collection TEXT NOT NULL,
	id TEXT NOT NULL,
	content TEXT NOT NULL,
	metadata TEXT NOT NULL DEFAULT '{}',
	UNIQUE (collection, id)
);
`

type Store struct {
	db   *sql.DB
	path string
}

// NewStore opens (or creates) the database at path. An empty path means ~/.wellrag/wellrag.db.
func NewStore(path string) (*Store, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		path = filepath.Join(home, ".wellrag", "wellrag.db")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return &Store{db: db, path: path}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Path() string {
	return s.path
}

func (s *Store) DocumentStore() *DocumentStore {
	return &DocumentStore{db: s.db}
}

func (s *Store) EntryStore() *EntryStore {
	return &EntryStore{db: s.db}
}

type DocumentStore struct {
	db *sql.DB
}

const documentColumns = `id, filename, mime_type, storage_path, wells, page_count, chunk_count, status, error_message, created_at, updated_at`

func (s *DocumentStore) Create(ctx context.Context, doc *domain.Document) error {
	wells, err := marshalWells(doc.Wells)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO documents (`+documentColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		doc.ID, doc.Filename, doc.MimeType, doc.StoragePath, wells, doc.PageCount, doc.ChunkCount,
		string(doc.Status), doc.Error, formatTime(doc.CreatedAt), formatTime(doc.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

func (s *DocumentStore) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	doc, err := scanDocument(s.db.QueryRowContext(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.WrapError(domain.ErrDocumentNotFound, "get document", fmt.Errorf("id=%s", id))
	}
	return doc, err
}

func (s *DocumentStore) FindByFilename(ctx context.Context, filename string) (*domain.Document, error) {
	doc, err := scanDocument(s.db.QueryRowContext(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE filename = ? ORDER BY created_at DESC LIMIT 1`, filename))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.WrapError(domain.ErrDocumentNotFound, "find document", fmt.Errorf("filename=%s", filename))
	}
	return doc, err
}

func (s *DocumentStore) UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus, errMessage string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE documents SET status = ?, error_message = ?, updated_at = ? WHERE id = ?`,
		string(status), errMessage, formatTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("update document status: %w", err)
	}
	return requireRow(result, "update document status", id)
}

func (s *DocumentStore) SaveIndexing(ctx context.Context, id string, wells []string, pageCount, chunkCount int) error {
	raw, err := marshalWells(wells)
	if err != nil {
		return err
	}
	result, err := s.db.ExecContext(ctx,
		`UPDATE documents SET wells = ?, page_count = ?, chunk_count = ?, updated_at = ? WHERE id = ?`,
		raw, pageCount, chunkCount, formatTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("save indexing: %w", err)
	}
	return requireRow(result, "save indexing", id)
}

func (s *DocumentStore) ListWells(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT DISTINCT j.value
FROM documents d, json_each(d.wells) j
WHERE d.status = ?
ORDER BY j.value`, string(domain.StatusReady))
	if err != nil {
		return nil, fmt.Errorf("list wells: %w", err)
	}
	defer rows.Close()

	wells := []string{}
	for rows.Next() {
		var well string
		if err := rows.Scan(&well); err != nil {
			return nil, fmt.Errorf("scan well: %w", err)
		}
		wells = append(wells, well)
	}
	return wells, rows.Err()
}

func (s *DocumentStore) CountByStatus(ctx context.Context, status domain.DocumentStatus) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents WHERE status = ?`, string(status)).Scan(&count); err != nil {
		return 0, fmt.Errorf("count documents: %w", err)
	}
	return count, nil
}

type EntryStore struct {
	db *sql.DB
}

func (s *EntryStore) SaveEntries(ctx context.Context, collection string, entries []domain.IndexEntry) error {
	if len(entries) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin entries tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, entry := range entries {
		meta, err := json.Marshal(entry.Metadata)
		if err != nil {
			return fmt.Errorf("marshal entry metadata: %w", err)
		}
		_, err = tx.ExecContext(ctx, `
INSERT INTO index_entries (collection, id, content, metadata) VALUES (?, ?, ?, ?)
ON CONFLICT (collection, id) DO UPDATE SET content = excluded.content, metadata = excluded.metadata`,
			collection, entry.ID, entry.Content, string(meta))
		if err != nil {
			return fmt.Errorf("upsert entry %s: %w", entry.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit entries tx: %w", err)
	}
	return nil
}

func (s *EntryStore) LoadEntries(ctx context.Context, collection string) ([]domain.IndexEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, content, metadata FROM index_entries WHERE collection = ? ORDER BY seq`, collection)
	if err != nil {
		return nil, fmt.Errorf("load entries: %w", err)
	}
	defer rows.Close()

	var entries []domain.IndexEntry
	for rows.Next() {
		var entry domain.IndexEntry
		var meta string
		if err := rows.Scan(&entry.ID, &entry.Content, &meta); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		if err := json.Unmarshal([]byte(meta), &entry.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal entry metadata: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (s *EntryStore) CountEntries(ctx context.Context, collection string) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM index_entries WHERE collection = ?`, collection).Scan(&count); err != nil {
		return 0, fmt.Errorf("count entries: %w", err)
	}
	return count, nil
}

func (s *EntryStore) DeleteDocument(ctx context.Context, collection, documentID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM index_entries WHERE collection = ? AND json_extract(metadata, '$.document_id') = ?`,
		collection, documentID)
	if err != nil {
		return fmt.Errorf("delete document entries: %w", err)
	}
	return nil
}

func scanDocument(row *sql.Row) (*domain.Document, error) {
	var doc domain.Document
	var wells, status, created, updated string
	err := row.Scan(&doc.ID, &doc.Filename, &doc.MimeType, &doc.StoragePath, &wells, &doc.PageCount,
		&doc.ChunkCount, &status, &doc.Error, &created, &updated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan document: %w", err)
	}
	doc.Wells = []string{}
	if err := json.Unmarshal([]byte(wells), &doc.Wells); err != nil {
		return nil, fmt.Errorf("unmarshal wells: %w", err)
	}
	doc.Status = domain.DocumentStatus(status)
	doc.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
	doc.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updated)
	return &doc, nil
}

func marshalWells(wells []string) (string, error) {
	if wells == nil {
		wells = []string{}
	}
	raw, err := json.Marshal(wells)
	if err != nil {
		return "", fmt.Errorf("marshal wells: %w", err)
	}
	return string(raw), nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func requireRow(result sql.Result, operation, id string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", operation, err)
	}
	if rows == 0 {
		return domain.WrapError(domain.ErrDocumentNotFound, operation, fmt.Errorf("id=%s", id))
	}
	return nil
}
