package chunking

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/kirillkom/well-report-rag/internal/core/domain"
)

const (
	minTextBlockChars   = 50
	minParagraphChars   = 30
	mergeParagraphUnder = 100
)

// headingRules are numbered heading levels: "1. X", "1.1 X", "1.1.1 X".
var headingRules = []*regexp.Regexp{
	regexp.MustCompile(`(?m)^\d+\.\s+[A-Z]`),
	regexp.MustCompile(`(?m)^\d+\.\d+\s+[A-Z]`),
	regexp.MustCompile(`(?m)^\d+\.\d+\.\d+\s+[A-Z]`),
}

var tableRowRe = regexp.MustCompile(`\|[^\n]+\|[^\n]+\||\t[^\n]+\t[^\n]+`)

type entityExtractor interface {
	Extract(text string) domain.EntitySet
}

// Segmenter splits one page into structural segments.
type Segmenter struct {
	entities entityExtractor
}

func NewSegmenter(entities entityExtractor) *Segmenter {
	return &Segmenter{entities: entities}
}

// Segment never returns an empty slice for non-blank text.
func (s *Segmenter) Segment(text string, page int) []domain.Segment {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	pageEntities := s.entities.Extract(text)

	var segments []domain.Segment
	switch depth := headingDepth(text); {
	case depth >= 2:
		segments = sectionSegments(text, page, depth)
	case hasTableRows(text):
		segments = tableSegments(text, page)
	default:
		segments = paragraphSegments(text, page)
	}
	if len(segments) == 0 {
		segments = []domain.Segment{{
			ID:      segmentID(page, domain.SegmentPage, 1),
			Type:    domain.SegmentPage,
			Page:    page,
			Content: text,
		}}
	}

	for i := range segments {
		segments[i].Entities = pageEntities.Within(segments[i].Content)
	}
	return segments
}

func segmentID(page int, kind domain.SegmentType, ordinal int) string {
	return fmt.Sprintf("page_%d_%s_%d", page, kind, ordinal)
}

// headingDepth is the deepest heading level present on the page, 0 when none.
func headingDepth(text string) int {
	depth := 0
	for i, re := range headingRules {
		if re.MatchString(text) {
			depth = i + 1
		}
	}
	return depth
}

type span struct {
	start, end int
	level      int
}

func sectionSegments(text string, page, depth int) []domain.Segment {
	var spans []span
	for level := 1; level <= depth; level++ {
		matches := headingRules[level-1].FindAllStringIndex(text, -1)
		for i, m := range matches {
			end := len(text)
			if i+1 < len(matches) {
				end = matches[i+1][0]
			}
			spans = append(spans, span{start: m[0], end: end, level: level})
		}
	}
	sort.SliceStable(spans, func(i, j int) bool { return spans[i].start < spans[j].start })

	out := make([]domain.Segment, 0, len(spans))
	for i, sp := range spans {
		out = append(out, domain.Segment{
			ID:      segmentID(page, domain.SegmentSection, i+1),
			Type:    domain.SegmentSection,
			Page:    page,
			Depth:   sp.level,
			Content: text[sp.start:sp.end],
		})
	}
	return out
}

func hasTableRows(text string) bool {
	for _, line := range strings.Split(text, "\n") {
		if tableRowRe.MatchString(line) {
			return true
		}
	}
	return false
}

// tableSegments emits maximal runs of table rows as tables and the prose between them as text blocks.
func tableSegments(text string, page int) []domain.Segment {
	var (
		out            []domain.Segment
		rows, prose    []string
		tables, blocks int
	)
	flushTable := func() {
		if len(rows) == 0 {
			return
		}
		tables++
		out = append(out, domain.Segment{
			ID:      segmentID(page, domain.SegmentTable, tables),
			Type:    domain.SegmentTable,
			Page:    page,
			Content: strings.Join(rows, "\n") + "\n",
		})
		rows = nil
	}
	flushProse := func() {
		block := strings.Join(prose, "\n")
		prose = nil
		if len(strings.TrimSpace(block)) <= minTextBlockChars {
			return
		}
		blocks++
		out = append(out, domain.Segment{
			ID:      segmentID(page, domain.SegmentTextBlock, blocks),
			Type:    domain.SegmentTextBlock,
			Page:    page,
			Content: block,
		})
	}

	for _, line := range strings.Split(text, "\n") {
		if tableRowRe.MatchString(line) {
			flushProse()
			rows = append(rows, line)
			continue
		}
		flushTable()
		prose = append(prose, line)
	}
	flushTable()
	flushProse()
	return out
}

// paragraphSegments splits on blank lines; a unit shorter than 100 chars is merged into the
// paragraph being built before it.
func paragraphSegments(text string, page int) []domain.Segment {
	var (
		merged []string
		buffer string
	)
	for _, para := range strings.Split(text, "\n\n") {
		switch {
		case len(strings.TrimSpace(para)) < mergeParagraphUnder && buffer != "":
			buffer += "\n\n" + para
		case buffer != "":
			merged = append(merged, buffer)
			buffer = para
		default:
			buffer = para
		}
	}
	if buffer != "" {
		merged = append(merged, buffer)
	}

	out := make([]domain.Segment, 0, len(merged))
	for _, para := range merged {
		if len(strings.TrimSpace(para)) <= minParagraphChars {
			continue
		}
		out = append(out, domain.Segment{
			ID:      segmentID(page, domain.SegmentParagraph, len(out)+1),
			Type:    domain.SegmentParagraph,
			Page:    page,
			Content: para,
		})
	}
	return out
}
