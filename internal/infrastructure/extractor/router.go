// Package extractor picks the page extractor for a document by MIME type or extension.
package extractor

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/kirillkom/well-report-rag/internal/core/domain"
	"github.com/kirillkom/well-report-rag/internal/core/ports"
	"github.com/kirillkom/well-report-rag/internal/infrastructure/extractor/htmltext"
	"github.com/kirillkom/well-report-rag/internal/infrastructure/extractor/pdftext"
	"github.com/kirillkom/well-report-rag/internal/infrastructure/extractor/plaintext"
)

type Kind string

const (
	KindPDF  Kind = "pdf"
	KindHTML Kind = "html"
	KindText Kind = "text"
)

type Router struct {
	extractors map[Kind]ports.PageExtractor
}

func NewRouter(extractors map[Kind]ports.PageExtractor) *Router {
	return &Router{extractors: extractors}
}

// NewDefaultRouter wires the PDF, HTML and plain-text extractors over one storage.
func NewDefaultRouter(storage ports.ObjectStorage) *Router {
	return NewRouter(map[Kind]ports.PageExtractor{
		KindPDF:  pdftext.NewExtractor(storage),
		KindHTML: htmltext.NewExtractor(storage),
		KindText: plaintext.NewExtractor(storage),
	})
}

func (r *Router) ExtractPages(ctx context.Context, doc *domain.Document) ([]domain.Page, error) {
	kind := Detect(doc.MimeType, doc.Filename)
	ex, ok := r.extractors[kind]
	if !ok {
		return nil, domain.WrapError(domain.ErrInvalidInput, "extract pages", fmt.Errorf("no extractor for %s", kind))
	}
	return ex.ExtractPages(ctx, doc)
}

// Detect prefers the MIME type and falls back to the file extension; anything
// unrecognised is read as plain text.
func Detect(mimeType, filename string) Kind {
	mt := strings.ToLower(strings.TrimSpace(mimeType))
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = strings.TrimSpace(mt[:i])
	}
	switch mt {
	case "application/pdf":
		return KindPDF
	case "text/html", "application/xhtml+xml":
		return KindHTML
	}
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return KindPDF
	case ".html", ".htm", ".xhtml":
		return KindHTML
	default:
		return KindText
	}
}
