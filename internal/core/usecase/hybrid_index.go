package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/kirillkom/well-report-rag/internal/core/domain"
	"github.com/kirillkom/well-report-rag/internal/core/ports"
)

const defaultEmbedBatchSize = 32

// LexicalBuilder builds a lexical index over a corpus of chunk texts.
type LexicalBuilder func(corpus []string) ports.LexicalIndex

type lexicalSnapshot struct {
	entries []domain.IndexEntry
	index   ports.LexicalIndex
	byID    map[string]int
}

func (s *lexicalSnapshot) score(scores []float64, id string) float64 {
	pos, ok := s.byID[id]
	if !ok || pos >= len(scores) {
		return 0
	}
	return scores[pos]
}

// HybridIndex is the registry of per-collection semantic and lexical indices.
// Lexical snapshots are immutable and replaced wholesale under the lock.
type HybridIndex struct {
	embedder   ports.Embedder
	semantic   ports.SemanticIndex
	store      ports.IndexEntryStore
	newLexical LexicalBuilder
	batchSize  int

	writeMu sync.Mutex
	mu      sync.RWMutex
	lexical map[string]*lexicalSnapshot
}

func NewHybridIndex(
	embedder ports.Embedder,
	semantic ports.SemanticIndex,
	store ports.IndexEntryStore,
	newLexical LexicalBuilder,
	batchSize int,
) *HybridIndex {
	if batchSize <= 0 {
		batchSize = defaultEmbedBatchSize
	}
	return &HybridIndex{
		embedder:   embedder,
		semantic:   semantic,
		store:      store,
		newLexical: newLexical,
		batchSize:  batchSize,
		lexical:    make(map[string]*lexicalSnapshot),
	}
}

// Index embeds and upserts chunks into the collection, persists their entries and
// swaps in a lexical index rebuilt over the collection's full entry set.
func (h *HybridIndex) Index(ctx context.Context, collection string, chunks []domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	h.writeMu.Lock()
	defer h.writeMu.Unlock()

	entries := make([]domain.IndexEntry, 0, len(chunks))
	texts := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		entries = append(entries, chunk.Entry())
		texts = append(texts, chunk.Content)
	}

	vectors, err := h.embed(ctx, texts)
	if err != nil {
		return err
	}
	if err := h.semantic.Upsert(ctx, collection, entries, vectors); err != nil {
		return fmt.Errorf("upsert semantic points: %w", err)
	}
	if err := h.store.SaveEntries(ctx, collection, entries); err != nil {
		return fmt.Errorf("save index entries: %w", err)
	}
	if err := h.rebuild(ctx, collection); err != nil {
		return err
	}

	slog.Info("collection_indexed",
		"collection", collection,
		"chunks", len(chunks),
		"lexical_size", h.Size(collection),
	)
	return nil
}

// Remove deletes every point and entry of the document from the collection and
// rebuilds its lexical index. Both sides are attempted even when one fails.
func (h *HybridIndex) Remove(ctx context.Context, collection, documentID string) error {
	h.writeMu.Lock()
	defer h.writeMu.Unlock()

	var errs []error
	if err := h.semantic.DeleteDocument(ctx, collection, documentID); err != nil {
		errs = append(errs, fmt.Errorf("delete semantic points: %w", err))
	}
	if err := h.store.DeleteDocument(ctx, collection, documentID); err != nil {
		errs = append(errs, fmt.Errorf("delete index entries: %w", err))
	} else if err := h.rebuild(ctx, collection); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (h *HybridIndex) embed(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += h.batchSize {
		end := min(start+h.batchSize, len(texts))
		batch, err := h.embedder.Embed(ctx, texts[start:end])
		if err != nil {
			if domain.IsKind(err, domain.ErrServiceUnavailable) {
				return nil, fmt.Errorf("embed chunks: %w", err)
			}
			return nil, domain.WrapError(domain.ErrServiceUnavailable, "embed chunks", err)
		}
		if len(batch) != end-start {
			return nil, domain.WrapError(
				domain.ErrInvalidInput,
				"embed chunks",
				fmt.Errorf("vectors/chunks mismatch: %d/%d", len(batch), end-start),
			)
		}
		vectors = append(vectors, batch...)
	}
	return vectors, nil
}

func (h *HybridIndex) rebuild(ctx context.Context, collection string) error {
	entries, err := h.store.LoadEntries(ctx, collection)
	if err != nil {
		return fmt.Errorf("load index entries: %w", err)
	}
	h.swap(collection, entries)
	return nil
}

func (h *HybridIndex) swap(collection string, entries []domain.IndexEntry) {
	corpus := make([]string, len(entries))
	byID := make(map[string]int, len(entries))
	for i, entry := range entries {
		corpus[i] = entry.Content
		byID[entry.ID] = i
	}
	snap := &lexicalSnapshot{
		entries: entries,
		index:   h.newLexical(corpus),
		byID:    byID,
	}

	h.mu.Lock()
	h.lexical[collection] = snap
	h.mu.Unlock()
}

// Refresh rebuilds the collection's lexical index when the persisted entry count
// no longer matches it, e.g. after another process indexed new documents.
func (h *HybridIndex) Refresh(ctx context.Context, collection string) error {
	count, err := h.store.CountEntries(ctx, collection)
	if err != nil {
		return fmt.Errorf("count index entries: %w", err)
	}
	if count == h.Size(collection) {
		return nil
	}
	return h.rebuild(ctx, collection)
}

// Warm loads the lexical indices of the given collections from the entry store.
func (h *HybridIndex) Warm(ctx context.Context, collections []string) error {
	var errs []error
	for _, collection := range collections {
		if err := h.Refresh(ctx, collection); err != nil {
			errs = append(errs, fmt.Errorf("warm %s: %w", collection, err))
			continue
		}
		slog.Info("collection_warmed", "collection", collection, "lexical_size", h.Size(collection))
	}
	return errors.Join(errs...)
}

func (h *HybridIndex) Built(collection string) bool {
	return h.Size(collection) > 0
}

func (h *HybridIndex) Size(collection string) int {
	snap := h.snapshot(collection)
	if snap == nil {
		return 0
	}
	return len(snap.entries)
}

func (h *HybridIndex) snapshot(collection string) *lexicalSnapshot {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.lexical[collection]
}

// SearchSemantic embeds the query and returns up to limit nearest neighbours.
func (h *HybridIndex) SearchSemantic(ctx context.Context, collection, query string, limit int) ([]domain.SemanticHit, error) {
	vector, err := h.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	hits, err := h.semantic.Search(ctx, collection, vector, limit)
	if err != nil {
		return nil, fmt.Errorf("search semantic index: %w", err)
	}
	return hits, nil
}
