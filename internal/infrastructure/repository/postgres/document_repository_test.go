package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/kirillkom/well-report-rag/internal/core/domain"
)

func newRepoWithMock(t *testing.T) (*DocumentRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return &DocumentRepository{db: db}, mock, func() { _ = db.Close() }
}

var documentCols = []string{
	"id", "filename", "mime_type", "storage_path", "wells", "page_count", "chunk_count",
	"status", "error_message", "created_at", "updated_at",
}

func TestGetByIDReturnsDomainNotFound(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT id, filename, mime_type, storage_path").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "missing")
	if !domain.IsKind(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetByIDDecodesWells(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	now := time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT id, filename, mime_type, storage_path").
		WithArgs("doc-1").
		WillReturnRows(sqlmock.NewRows(documentCols).AddRow(
			"doc-1", "HAG-GT-01.pdf", "application/pdf", "doc-1_HAG-GT-01.pdf",
			[]byte(`["HAG-GT-01","HAG-GT-01-S1"]`), 42, 310, "ready", nil, now, now,
		))

	doc, err := repo.GetByID(context.Background(), "doc-1")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if len(doc.Wells) != 2 || doc.Wells[1] != "HAG-GT-01-S1" {
		t.Fatalf("unexpected wells: %v", doc.Wells)
	}
	if doc.Status != domain.StatusReady || doc.PageCount != 42 || doc.ChunkCount != 310 || doc.Error != "" {
		t.Fatalf("unexpected document: %+v", doc)
	}
}

func TestFindByFilenameReturnsDomainNotFound(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectQuery("WHERE filename = ").
		WithArgs("a.pdf").
		WillReturnRows(sqlmock.NewRows(documentCols))

	_, err := repo.FindByFilename(context.Background(), "a.pdf")
	if !domain.IsKind(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound, got %v", err)
	}
}

func TestCreateStoresEmptyWellsArray(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectExec("INSERT INTO documents").
		WithArgs("doc-1", "a.pdf", "application/pdf", "doc-1_a.pdf", []byte(`[]`), 0, 0,
			string(domain.StatusUploaded), "", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.Create(context.Background(), &domain.Document{
		ID: "doc-1", Filename: "a.pdf", MimeType: "application/pdf", StoragePath: "doc-1_a.pdf",
		Status: domain.StatusUploaded,
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestUpdateStatusReturnsDomainNotFoundWhenNoRowsAffected(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectExec("UPDATE documents").
		WithArgs("missing", string(domain.StatusProcessing), "", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateStatus(context.Background(), "missing", domain.StatusProcessing, "")
	if !domain.IsKind(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSaveIndexingWritesWellsAndCounts(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectExec("UPDATE documents").
		WithArgs("doc-1", []byte(`["HAG-GT-01"]`), 12, 80, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.SaveIndexing(context.Background(), "doc-1", []string{"HAG-GT-01"}, 12, 80); err != nil {
		t.Fatalf("SaveIndexing() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestListWellsReadsReadyDocuments(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT DISTINCT jsonb_array_elements_text").
		WithArgs(string(domain.StatusReady)).
		WillReturnRows(sqlmock.NewRows([]string{"well"}).AddRow("HAG-GT-01").AddRow("NLW-GT-03"))

	wells, err := repo.ListWells(context.Background())
	if err != nil {
		t.Fatalf("ListWells() error = %v", err)
	}
	if len(wells) != 2 || wells[0] != "HAG-GT-01" {
		t.Fatalf("unexpected wells: %v", wells)
	}
}

func TestCountByStatus(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT COUNT").
		WithArgs(string(domain.StatusReady)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	n, err := repo.CountByStatus(context.Background(), domain.StatusReady)
	if err != nil || n != 3 {
		t.Fatalf("CountByStatus() = %d, %v", n, err)
	}
}
