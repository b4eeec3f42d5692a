package ports

import (
	"context"
	"io"

	"github.com/kirillkom/well-report-rag/internal/core/domain"
)

// DocumentRepository persists and reads document state.
type DocumentRepository interface {
	Create(ctx context.Context, doc *domain.Document) error
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	FindByFilename(ctx context.Context, filename string) (*domain.Document, error)
	UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus, errMessage string) error
	SaveIndexing(ctx context.Context, id string, wells []string, pageCount, chunkCount int) error
	ListWells(ctx context.Context) ([]string, error)
	CountByStatus(ctx context.Context, status domain.DocumentStatus) (int, error)
}

// ObjectStorage stores source documents.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// MessageQueue publishes/consumes ingestion events.
type MessageQueue interface {
	PublishDocumentIngested(ctx context.Context, documentID string) error
	SubscribeDocumentIngested(ctx context.Context, handler func(context.Context, string) error) error
}

// PageExtractor turns a stored document into 1-based pages of text.
type PageExtractor interface {
	ExtractPages(ctx context.Context, doc *domain.Document) ([]domain.Page, error)
}

type EntityExtractor interface {
	Extract(text string) domain.EntitySet
}

// WellDetector finds document-level well names in raw text.
type WellDetector interface {
	DetectWells(text string) []string
}

type ClaimExtractor interface {
	ExtractClaims(answer string) []domain.Claim
}

// Segmenter splits one page into structurally coherent segments.
type Segmenter interface {
	Segment(text string, page int) []domain.Segment
}

// Chunker splits a segment into overlapping word windows for one strategy.
type Chunker interface {
	Split(seg domain.Segment, src domain.ChunkSource, strategy domain.Strategy) []domain.Chunk
}

// Embedder builds vectors for chunks and query text.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// SemanticIndex stores vectors per collection and answers nearest-neighbour queries.
type SemanticIndex interface {
	Upsert(ctx context.Context, collection string, entries []domain.IndexEntry, vectors [][]float32) error
	Search(ctx context.Context, collection string, vector []float32, limit int) ([]domain.SemanticHit, error)
	DeleteDocument(ctx context.Context, collection, documentID string) error
}

// LexicalIndex scores a query against every document of a fixed corpus.
// Scores are position-aligned with the corpus it was built from.
type LexicalIndex interface {
	Len() int
	Scores(query string) []float64
}

// IndexEntryStore persists the entry set of each collection so lexical indices survive restarts.
type IndexEntryStore interface {
	SaveEntries(ctx context.Context, collection string, entries []domain.IndexEntry) error
	LoadEntries(ctx context.Context, collection string) ([]domain.IndexEntry, error)
	CountEntries(ctx context.Context, collection string) (int, error)
	DeleteDocument(ctx context.Context, collection, documentID string) error
}

// TextGenerator runs a single non-streaming completion.
type TextGenerator interface {
	Generate(ctx context.Context, req domain.GenerationRequest) (string, error)
}

// ConversationMemory is the bounded per-process conversation buffer.
type ConversationMemory interface {
	Add(query, answer string, metadata map[string]string)
	Context(query string) string
	Turns() []domain.Turn
	Facts() domain.WellFacts
	Clear()
}

// TrajectoryWriter renders a trajectory into a downloadable document.
type TrajectoryWriter interface {
	ContentType() string
	Extension() string
	Write(w io.Writer, trajectory domain.Trajectory) error
}

// NodalRunner runs the nodal analysis script over a trajectory serialized as JSON.
type NodalRunner interface {
	Run(ctx context.Context, trajectoryJSON []byte) (domain.CommandOutput, error)
}
