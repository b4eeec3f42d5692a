package plaintext

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/kirillkom/well-report-rag/internal/core/domain"
)

type storageStub struct {
	body string
}

func (s storageStub) Save(context.Context, string, io.Reader) error { return nil }

func (s storageStub) Open(context.Context, string) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader(s.body)), nil
}

func TestExtractPagesSplitsOnFormFeed(t *testing.T) {
	e := NewExtractor(storageStub{body: "page one\r\nline\fpage two\f\fpage four"})
	pages, err := e.ExtractPages(context.Background(), &domain.Document{StoragePath: "x"})
	if err != nil {
		t.Fatalf("ExtractPages() error = %v", err)
	}
	if len(pages) != 4 {
		t.Fatalf("expected 4 pages, got %d", len(pages))
	}
	if pages[0].Text != "page one\nline" || pages[3].Number != 4 || pages[3].Text != "page four" {
		t.Fatalf("unexpected pages: %+v", pages)
	}
}

func TestExtractPagesRejectsBinary(t *testing.T) {
	e := NewExtractor(storageStub{body: string([]byte{0xff, 0xfe, 0x00})})
	_, err := e.ExtractPages(context.Background(), &domain.Document{StoragePath: "x", Filename: "a.bin"})
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}
