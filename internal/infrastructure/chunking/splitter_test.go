package chunking

import (
	"fmt"
	"strings"
	"testing"

	"github.com/kirillkom/well-report-rag/internal/core/domain"
)

func wordsSegment(n int) domain.Segment {
	words := make([]string, n)
	for i := range words {
		words[i] = fmt.Sprintf("w%d", i)
	}
	return domain.Segment{
		ID:      "page_1_paragraph_1",
		Type:    domain.SegmentParagraph,
		Page:    1,
		Content: strings.Join(words, " "),
	}
}

func TestSplitCoversSegmentWithoutGaps(t *testing.T) {
	strategy := domain.Strategy{Name: "factual", ChunkSize: 40, Overlap: 10}
	chunks := NewSplitter().Split(wordsSegment(100), domain.ChunkSource{DocumentID: "doc-1", Filename: "r.pdf"}, strategy)

	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	prevEnd := 0
	for i, c := range chunks {
		if c.WordStart > prevEnd {
			t.Fatalf("gap before chunk %d: start=%d prevEnd=%d", i, c.WordStart, prevEnd)
		}
		if c.Length() < MinChunkWords {
			t.Fatalf("chunk %d shorter than minimum: %d", i, c.Length())
		}
		if i > 0 && chunks[i-1].WordEnd-c.WordStart != strategy.Overlap {
			t.Fatalf("chunk %d overlap = %d, want %d", i, chunks[i-1].WordEnd-c.WordStart, strategy.Overlap)
		}
		prevEnd = c.WordEnd
	}
	if prevEnd != 100 {
		t.Fatalf("expected coverage to word 100, got %d", prevEnd)
	}
}

func TestSplitChunkCountOnExactStepMultiple(t *testing.T) {
	strategy := domain.Strategy{Name: "factual", ChunkSize: 40, Overlap: 10}
	chunks := NewSplitter().Split(wordsSegment(90), domain.ChunkSource{}, strategy)
	// (90-30)/30 + 1 windows: 0-40, 30-70, 60-90.
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	if chunks[2].WordStart != 60 || chunks[2].WordEnd != 90 {
		t.Fatalf("unexpected last window %d-%d", chunks[2].WordStart, chunks[2].WordEnd)
	}
}

func TestSplitDropsShortSegments(t *testing.T) {
	strategy := domain.Strategy{Name: "factual", ChunkSize: 40, Overlap: 10}
	if chunks := NewSplitter().Split(wordsSegment(29), domain.ChunkSource{}, strategy); len(chunks) != 0 {
		t.Fatalf("expected no chunks for 29 words, got %d", len(chunks))
	}
}

func TestSplitQualityWellsAndCitation(t *testing.T) {
	content := "HAG-GT-01 reached 2500 m on 2021-03-14 at 92 °C and 250 bar. " + strings.Repeat("filler ", 40)
	seg := domain.Segment{
		ID:      "page_3_paragraph_1",
		Type:    domain.SegmentParagraph,
		Page:    3,
		Content: content,
		Entities: domain.EntitySet{
			domain.EntityIdentifier:  {"HAG-GT-01"},
			domain.EntityDepth:       {"2500"},
			domain.EntityDate:        {"2021-03-14"},
			domain.EntityTemperature: {"92"},
			domain.EntityPressure:    {"250"},
		},
	}
	src := domain.ChunkSource{DocumentID: "doc-9", Filename: "report.pdf", Wells: []string{"HAG-GT-02"}}
	chunks := NewSplitter().Split(seg, src, domain.Strategy{Name: "technical", ChunkSize: 500, Overlap: 50})

	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	c := chunks[0]
	// 3 + 2 + 2 + 1 + 1
	if c.Quality != 9 {
		t.Fatalf("expected quality 9, got %d", c.Quality)
	}
	if c.Citation != "report.pdf, p.3, paragraph page_3_paragraph_1" {
		t.Fatalf("unexpected citation %q", c.Citation)
	}
	if c.ID != "doc-9:technical:page_3_paragraph_1:0" {
		t.Fatalf("unexpected id %q", c.ID)
	}

	meta := c.Metadata()
	if meta[domain.MetaContainsWells] != "HAG-GT-01" {
		t.Fatalf("unexpected contains_wells %v", meta[domain.MetaContainsWells])
	}
	if meta[domain.MetaWellNames] != "HAG-GT-01,HAG-GT-02" {
		t.Fatalf("unexpected well_names %v", meta[domain.MetaWellNames])
	}
	if meta[domain.MetaChunkLength] != c.Length() {
		t.Fatalf("unexpected chunk_length %v", meta[domain.MetaChunkLength])
	}
}
