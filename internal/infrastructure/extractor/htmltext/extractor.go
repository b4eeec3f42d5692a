// Package htmltext turns HTML reports into a single page of block-level text.
package htmltext

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/kirillkom/well-report-rag/internal/core/domain"
	"github.com/kirillkom/well-report-rag/internal/core/ports"
)

const blockSelector = "h1,h2,h3,h4,p,li,pre,tr"

type Extractor struct {
	storage ports.ObjectStorage
}

func NewExtractor(storage ports.ObjectStorage) *Extractor {
	return &Extractor{storage: storage}
}

func (e *Extractor) ExtractPages(ctx context.Context, doc *domain.Document) ([]domain.Page, error) {
	reader, err := e.storage.Open(ctx, doc.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("open source document: %w", err)
	}
	defer reader.Close()
	return ParsePages(reader)
}

// ParsePages keeps headings, paragraphs, list items and table rows of the main
// content, one block per paragraph. Table cells are joined with " | " and the
// rows of a table are kept on consecutive lines.
func ParsePages(r io.Reader) ([]domain.Page, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "parse html", err)
	}

	sel := doc.Find("main, article")
	if sel.Length() == 0 {
		sel = doc.Selection
	}

	var parts []string
	prevRow := false
	sel.Find(blockSelector).Each(func(_ int, s *goquery.Selection) {
		row := goquery.NodeName(s) == "tr"
		var text string
		if row {
			var cells []string
			s.Find("th,td").Each(func(_ int, c *goquery.Selection) {
				cells = append(cells, strings.Join(strings.Fields(c.Text()), " "))
			})
			text = "| " + strings.Join(cells, " | ") + " |"
		} else {
			text = strings.Join(strings.Fields(s.Text()), " ")
		}
		if strings.Trim(text, "| ") == "" {
			return
		}
		// Rows of one table stay on consecutive lines.
		if row && prevRow {
			parts[len(parts)-1] += "\n" + text
		} else {
			parts = append(parts, text)
		}
		prevRow = row
	})
	return []domain.Page{{Number: 1, Text: strings.Join(parts, "\n\n")}}, nil
}
