package chunking

import (
	"fmt"
	"strings"

	"github.com/kirillkom/well-report-rag/internal/core/domain"
)

// MinChunkWords is the smallest window worth indexing; shorter tails are dropped.
const MinChunkWords = 30

var qualityWeights = map[domain.EntityClass]int{
	domain.EntityIdentifier:  3,
	domain.EntityDepth:       2,
	domain.EntityDate:        2,
	domain.EntityTemperature: 1,
	domain.EntityPressure:    1,
}

type Splitter struct{}

func NewSplitter() *Splitter {
	return &Splitter{}
}

// Split cuts a segment into overlapping word windows for one strategy.
// Callers validate strategy geometry at startup; a non-positive step falls back to ChunkSize.
func (s *Splitter) Split(seg domain.Segment, src domain.ChunkSource, strategy domain.Strategy) []domain.Chunk {
	words := strings.Fields(seg.Content)
	size := strategy.ChunkSize
	if size <= 0 {
		return nil
	}
	step := size - strategy.Overlap
	if step <= 0 {
		step = size
	}

	segmentMeta := segmentMetadata(seg)
	var out []domain.Chunk
	for start, idx := 0, 0; start < len(words); start, idx = start+step, idx+1 {
		end := start + size
		if end > len(words) {
			end = len(words)
		}
		if end-start < MinChunkWords {
			break
		}

		text := strings.Join(words[start:end], " ")
		found := seg.Entities.Within(text)

		extra := make(map[string]any, len(src.Extra)+len(segmentMeta))
		for k, v := range src.Extra {
			extra[k] = v
		}
		for k, v := range segmentMeta {
			extra[k] = v
		}

		out = append(out, domain.Chunk{
			ID:            fmt.Sprintf("%s:%s:%s:%d", src.DocumentID, strategy.Name, seg.ID, idx),
			DocumentID:    src.DocumentID,
			Strategy:      strategy.Name,
			Source:        src.Filename,
			Page:          seg.Page,
			SegmentType:   seg.Type,
			SegmentID:     seg.ID,
			Index:         idx,
			WordStart:     start,
			WordEnd:       end,
			Quality:       QualityScore(found),
			Wells:         found.Values(domain.EntityIdentifier),
			DocumentWells: src.Wells,
			Citation:      domain.Citation(src.Filename, seg.Page, seg.Type, seg.ID),
			Content:       text,
			Extra:         extra,
		})
	}
	return out
}

// QualityScore weights entity counts: identifier×3, depth×2, date×2, temperature×1, pressure×1.
func QualityScore(set domain.EntitySet) int {
	score := 0
	for class, weight := range qualityWeights {
		score += weight * set.Count(class)
	}
	return score
}

func segmentMetadata(seg domain.Segment) map[string]any {
	wells := seg.Entities.Count(domain.EntityIdentifier)
	depths := seg.Entities.Count(domain.EntityDepth)
	dates := seg.Entities.Count(domain.EntityDate)
	return map[string]any{
		"has_numbers":    depths > 0 || seg.Type == domain.SegmentTable,
		"has_dates":      dates > 0,
		"has_wells":      wells > 0,
		"entity_density": wells + depths + dates,
		"section_depth":  seg.Depth,
	}
}
