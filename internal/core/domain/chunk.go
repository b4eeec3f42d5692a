package domain

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Strategy is one embedding strategy: a chunk geometry bound to its own collection.
type Strategy struct {
	Name       string `json:"name" yaml:"name"`
	ChunkSize  int    `json:"chunk_size" yaml:"chunk_size"`
	Overlap    int    `json:"chunk_overlap" yaml:"chunk_overlap"`
	Collection string `json:"collection" yaml:"collection"`
}

// Chunk is a word window over a segment, ready for indexing.
type Chunk struct {
	ID            string
	DocumentID    string
	Strategy      string
	Source        string
	Page          int
	SegmentType   SegmentType
	SegmentID     string
	Index         int
	WordStart     int
	WordEnd       int
	Quality       int
	Wells         []string
	DocumentWells []string
	Citation      string
	Content       string
	Extra         map[string]any
}

func (c Chunk) Length() int {
	return c.WordEnd - c.WordStart
}

// Metadata flattens the chunk into scalar values so that any index backend can store it.
func (c Chunk) Metadata() map[string]any {
	meta := FlattenMetadata(c.Extra)
	meta[MetaDocumentID] = c.DocumentID
	meta[MetaStrategy] = c.Strategy
	meta[MetaSourceFile] = c.Source
	meta[MetaPageNumber] = c.Page
	meta[MetaSegmentType] = string(c.SegmentType)
	meta[MetaSegmentID] = c.SegmentID
	meta[MetaChunkIndex] = c.Index
	meta[MetaWordStart] = c.WordStart
	meta[MetaWordEnd] = c.WordEnd
	meta[MetaChunkLength] = c.Length()
	meta[MetaQualityScore] = c.Quality
	meta[MetaContainsWells] = strings.Join(c.Wells, ",")
	meta[MetaWellNames] = strings.Join(mergeSorted(c.DocumentWells, c.Wells), ",")
	meta[MetaCitation] = c.Citation
	return meta
}

func (c Chunk) Entry() IndexEntry {
	return IndexEntry{ID: c.ID, Content: c.Content, Metadata: c.Metadata()}
}

const (
	MetaDocumentID    = "document_id"
	MetaStrategy      = "strategy"
	MetaSourceFile    = "source_file"
	MetaPageNumber    = "page_number"
	MetaSegmentType   = "segment_type"
	MetaSegmentID     = "segment_id"
	MetaChunkIndex    = "chunk_index"
	MetaWordStart     = "word_start"
	MetaWordEnd       = "word_end"
	MetaChunkLength   = "chunk_length"
	MetaQualityScore  = "quality_score"
	MetaContainsWells = "contains_wells"
	MetaWellNames     = "well_names"
	MetaCitation      = "citation"
)

// IndexEntry is the backend-neutral form of a chunk: stable id, text and flat metadata.
type IndexEntry struct {
	ID       string         `json:"id"`
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata"`
}

func (e IndexEntry) MetaString(key string) string {
	return MetaString(e.Metadata, key)
}

func (e IndexEntry) MetaInt(key string) int {
	return MetaInt(e.Metadata, key)
}

func MetaString(meta map[string]any, key string) string {
	v, ok := meta[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func MetaInt(meta map[string]any, key string) int {
	switch v := meta[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case float32:
		return int(v)
	case string:
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0
		}
		return n
	default:
		return 0
	}
}

// FlattenMetadata keeps scalar values and joins string lists with commas.
// Nested maps and other composite values are dropped.
func FlattenMetadata(in map[string]any) map[string]any {
	out := make(map[string]any, len(in)+16)
	for k, v := range in {
		switch val := v.(type) {
		case nil:
		case string, bool, int, int64, float64, float32:
			out[k] = val
		case []string:
			out[k] = strings.Join(val, ",")
		case []any:
			parts := make([]string, 0, len(val))
			for _, item := range val {
				parts = append(parts, fmt.Sprintf("%v", item))
			}
			out[k] = strings.Join(parts, ",")
		}
	}
	return out
}

func mergeSorted(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, list := range [][]string{a, b} {
		for _, v := range list {
			if _, ok := seen[v]; ok || v == "" {
				continue
			}
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	sort.Strings(out)
	return out
}

// ChunkSource carries the document-level context stamped onto every chunk.
type ChunkSource struct {
	DocumentID string
	Filename   string
	Wells      []string
	Extra      map[string]any
}

// Citation renders "<source>, p.<page>[, <segment_type> <segment_id>]".
func Citation(source string, page int, segmentType SegmentType, segmentID string) string {
	if source == "" {
		source = "Unknown"
	}
	out := fmt.Sprintf("%s, p.%d", source, page)
	if segmentID != "" {
		out += fmt.Sprintf(", %s %s", segmentType, segmentID)
	}
	return out
}
