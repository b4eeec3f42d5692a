package bootstrap

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kirillkom/well-report-rag/internal/config"
	"github.com/kirillkom/well-report-rag/internal/core/domain"
)

func localConfig(t *testing.T) config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Load()
	cfg.SQLitePath = filepath.Join(dir, "wellrag.db")
	cfg.StoragePath = filepath.Join(dir, "storage")
	cfg.OllamaURL = "http://127.0.0.1:1"
	cfg.QdrantURL = "http://127.0.0.1:1"
	return cfg
}

func TestNewLocalWarmsEmptyCollections(t *testing.T) {
	app, err := NewLocal(localConfig(t))
	if err != nil {
		t.Fatalf("NewLocal() error = %v", err)
	}
	defer app.Close()

	if got := len(app.Collections()); got != len(config.DefaultStrategies()) {
		t.Fatalf("expected one collection per strategy, got %d", got)
	}
	if err := app.Warm(context.Background()); err != nil {
		t.Fatalf("Warm() error = %v", err)
	}
}

func TestNewLocalAnswersWithoutDocuments(t *testing.T) {
	app, err := NewLocal(localConfig(t))
	if err != nil {
		t.Fatalf("NewLocal() error = %v", err)
	}
	defer app.Close()

	answer, err := app.QueryUC.Ask(context.Background(), domain.AskRequest{Question: "What is the TD of HAG-GT-01?"})
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if !strings.Contains(answer.Text, "upload documents") {
		t.Fatalf("expected upload hint, got %q", answer.Text)
	}
}

func TestNewLocalUploadFailsWhenEmbeddingIsUnreachable(t *testing.T) {
	app, err := NewLocal(localConfig(t))
	if err != nil {
		t.Fatalf("NewLocal() error = %v", err)
	}
	defer app.Close()

	body := strings.Repeat("Well HAG-GT-01 reached a measured depth of 2694 m. ", 10)
	_, err = app.IngestUC.Upload(context.Background(), "report.txt", "text/plain", strings.NewReader(body))
	if err == nil {
		t.Fatalf("expected indexing failure without an embedding service")
	}

	failed, err := app.Repo.CountByStatus(context.Background(), domain.StatusFailed)
	if err != nil {
		t.Fatalf("CountByStatus() error = %v", err)
	}
	if failed != 1 {
		t.Fatalf("expected the document to be marked failed, got %d", failed)
	}
}
