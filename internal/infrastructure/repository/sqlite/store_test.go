package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/kirillkom/well-report-rag/internal/core/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "wellrag.db"))
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestDocumentLifecycle(t *testing.T) {
	ctx := context.Background()
	docs := newTestStore(t).DocumentStore()

	now := time.Now().UTC()
	doc := &domain.Document{
		ID: "doc-1", Filename: "HAG-GT-01.pdf", MimeType: "application/pdf", StoragePath: "doc-1_HAG-GT-01.pdf",
		Status: domain.StatusUploaded, CreatedAt: now, UpdatedAt: now,
	}
	if err := docs.Create(ctx, doc); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := docs.UpdateStatus(ctx, "doc-1", domain.StatusProcessing, ""); err != nil {
		t.Fatalf("UpdateStatus() error = %v", err)
	}
	if err := docs.SaveIndexing(ctx, "doc-1", []string{"HAG-GT-01", "HAG-GT-01-S1"}, 12, 80); err != nil {
		t.Fatalf("SaveIndexing() error = %v", err)
	}

	wells, err := docs.ListWells(ctx)
	if err != nil || len(wells) != 0 {
		t.Fatalf("expected no wells before ready, got %v, %v", wells, err)
	}

	if err := docs.UpdateStatus(ctx, "doc-1", domain.StatusReady, ""); err != nil {
		t.Fatalf("UpdateStatus() error = %v", err)
	}
	got, err := docs.FindByFilename(ctx, "HAG-GT-01.pdf")
	if err != nil {
		t.Fatalf("FindByFilename() error = %v", err)
	}
	if got.Status != domain.StatusReady || got.PageCount != 12 || got.ChunkCount != 80 || len(got.Wells) != 2 {
		t.Fatalf("unexpected document: %+v", got)
	}
	if !got.CreatedAt.Equal(now) {
		t.Fatalf("expected created_at %v, got %v", now, got.CreatedAt)
	}

	wells, err = docs.ListWells(ctx)
	if err != nil || len(wells) != 2 || wells[0] != "HAG-GT-01" {
		t.Fatalf("unexpected wells: %v, %v", wells, err)
	}
	n, err := docs.CountByStatus(ctx, domain.StatusReady)
	if err != nil || n != 1 {
		t.Fatalf("CountByStatus() = %d, %v", n, err)
	}
}

func TestMissingDocumentIsNotFound(t *testing.T) {
	ctx := context.Background()
	docs := newTestStore(t).DocumentStore()

	if _, err := docs.GetByID(ctx, "missing"); !domain.IsKind(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := docs.FindByFilename(ctx, "missing.pdf"); !domain.IsKind(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := docs.UpdateStatus(ctx, "missing", domain.StatusReady, ""); !domain.IsKind(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestEntriesKeepInsertionOrderAndUpsert(t *testing.T) {
	ctx := context.Background()
	entries := newTestStore(t).EntryStore()

	err := entries.SaveEntries(ctx, "wells_fine", []domain.IndexEntry{
		{ID: "b", Content: "second", Metadata: map[string]any{"page_number": 2}},
		{ID: "a", Content: "first", Metadata: map[string]any{}},
	})
	if err != nil {
		t.Fatalf("SaveEntries() error = %v", err)
	}
	if err := entries.SaveEntries(ctx, "wells_fine", []domain.IndexEntry{{ID: "b", Content: "updated", Metadata: map[string]any{}}}); err != nil {
		t.Fatalf("SaveEntries() error = %v", err)
	}
	if err := entries.SaveEntries(ctx, "wells_factual", []domain.IndexEntry{{ID: "x", Content: "other"}}); err != nil {
		t.Fatalf("SaveEntries() error = %v", err)
	}

	loaded, err := entries.LoadEntries(ctx, "wells_fine")
	if err != nil {
		t.Fatalf("LoadEntries() error = %v", err)
	}
	if len(loaded) != 2 || loaded[0].ID != "b" || loaded[0].Content != "updated" || loaded[1].ID != "a" {
		t.Fatalf("unexpected entries: %+v", loaded)
	}
	n, err := entries.CountEntries(ctx, "wells_fine")
	if err != nil || n != 2 {
		t.Fatalf("CountEntries() = %d, %v", n, err)
	}
}

func TestDeleteDocumentRemovesOnlyThatDocument(t *testing.T) {
	ctx := context.Background()
	entries := newTestStore(t).EntryStore()

	err := entries.SaveEntries(ctx, "wells_fine", []domain.IndexEntry{
		{ID: "doc-1:0", Content: "first", Metadata: map[string]any{domain.MetaDocumentID: "doc-1"}},
		{ID: "doc-2:0", Content: "other", Metadata: map[string]any{domain.MetaDocumentID: "doc-2"}},
		{ID: "doc-1:1", Content: "second", Metadata: map[string]any{domain.MetaDocumentID: "doc-1"}},
	})
	if err != nil {
		t.Fatalf("SaveEntries() error = %v", err)
	}
	if err := entries.SaveEntries(ctx, "wells_factual", []domain.IndexEntry{
		{ID: "doc-1:0", Content: "kept", Metadata: map[string]any{domain.MetaDocumentID: "doc-1"}},
	}); err != nil {
		t.Fatalf("SaveEntries() error = %v", err)
	}

	if err := entries.DeleteDocument(ctx, "wells_fine", "doc-1"); err != nil {
		t.Fatalf("DeleteDocument() error = %v", err)
	}
	loaded, err := entries.LoadEntries(ctx, "wells_fine")
	if err != nil {
		t.Fatalf("LoadEntries() error = %v", err)
	}
	if len(loaded) != 1 || loaded[0].ID != "doc-2:0" {
		t.Fatalf("unexpected entries after delete: %+v", loaded)
	}
	if n, err := entries.CountEntries(ctx, "wells_factual"); err != nil || n != 1 {
		t.Fatalf("other collection changed: %d, %v", n, err)
	}
}
