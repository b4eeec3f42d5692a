package usecase

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/kirillkom/well-report-rag/internal/core/domain"
	"github.com/kirillkom/well-report-rag/internal/core/ports"
)

type statusCall struct {
	status domain.DocumentStatus
	errMsg string
}

type docRepoFake struct {
	mu          sync.Mutex
	docs        map[string]*domain.Document
	statusCalls []statusCall
	indexed     struct {
		id         string
		wells      []string
		pageCount  int
		chunkCount int
	}
	wells      []string
	ready      int
	createErr  error
	getErr     error
	findErr    error
	countErr   error
	indexErr   error
	failStatus error
}

func newDocRepoFake(docs ...*domain.Document) *docRepoFake {
	f := &docRepoFake{docs: make(map[string]*domain.Document)}
	for _, d := range docs {
		f.docs[d.ID] = d
	}
	return f
}

func (f *docRepoFake) Create(_ context.Context, doc *domain.Document) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	copyDoc := *doc
	f.docs[doc.ID] = &copyDoc
	return nil
}

func (f *docRepoFake) GetByID(_ context.Context, id string) (*domain.Document, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.docs[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrDocumentNotFound, "get document", errors.New(id))
	}
	copyDoc := *doc
	return &copyDoc, nil
}

func (f *docRepoFake) FindByFilename(_ context.Context, filename string) (*domain.Document, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, doc := range f.docs {
		if doc.Filename == filename {
			copyDoc := *doc
			return &copyDoc, nil
		}
	}
	return nil, domain.WrapError(domain.ErrDocumentNotFound, "find document", errors.New(filename))
}

func (f *docRepoFake) UpdateStatus(_ context.Context, _ string, status domain.DocumentStatus, errMessage string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusCalls = append(f.statusCalls, statusCall{status: status, errMsg: errMessage})
	if status == domain.StatusFailed && f.failStatus != nil {
		return f.failStatus
	}
	return nil
}

func (f *docRepoFake) SaveIndexing(_ context.Context, id string, wells []string, pageCount, chunkCount int) error {
	if f.indexErr != nil {
		return f.indexErr
	}
	f.indexed.id = id
	f.indexed.wells = wells
	f.indexed.pageCount = pageCount
	f.indexed.chunkCount = chunkCount
	return nil
}

func (f *docRepoFake) ListWells(context.Context) ([]string, error) {
	return f.wells, nil
}

func (f *docRepoFake) CountByStatus(_ context.Context, status domain.DocumentStatus) (int, error) {
	if f.countErr != nil {
		return 0, f.countErr
	}
	if status == domain.StatusReady {
		return f.ready, nil
	}
	return 0, nil
}

func (f *docRepoFake) lastStatus() domain.DocumentStatus {
	if len(f.statusCalls) == 0 {
		return ""
	}
	return f.statusCalls[len(f.statusCalls)-1].status
}

type storageFake struct {
	savedKey  string
	savedBody string
	err       error
}

func (f *storageFake) Save(_ context.Context, key string, data io.Reader) error {
	if f.err != nil {
		return f.err
	}
	raw, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	f.savedKey = key
	f.savedBody = string(raw)
	return nil
}

func (f *storageFake) Open(context.Context, string) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader(f.savedBody)), nil
}

type queueFake struct {
	documentID string
	err        error
}

func (f *queueFake) PublishDocumentIngested(_ context.Context, documentID string) error {
	if f.err != nil {
		return f.err
	}
	f.documentID = documentID
	return nil
}

func (f *queueFake) SubscribeDocumentIngested(context.Context, func(context.Context, string) error) error {
	return errors.New("not implemented")
}

// embedderFake fails every call once err is set, or every call after the first
// failAfter when that is positive.
type embedderFake struct {
	mu        sync.Mutex
	calls     int
	queries   []string
	err       error
	failAfter int
}

func (f *embedderFake) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if f.failAfter > 0 && f.calls > f.failAfter {
		return nil, errors.New("embedding model unloaded")
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = []float32{float32(len(text)), 1}
	}
	return out, nil
}

func (f *embedderFake) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, text)
	if f.err != nil {
		return nil, f.err
	}
	return []float32{float32(len(text)), 1}, nil
}

// semanticFake returns preset hits per collection, or every upserted entry at distance = position.
type semanticFake struct {
	mu       sync.Mutex
	upserted map[string][]domain.IndexEntry
	hits     map[string][]domain.SemanticHit
	limits   []int
	err      error
}

func newSemanticFake() *semanticFake {
	return &semanticFake{
		upserted: make(map[string][]domain.IndexEntry),
		hits:     make(map[string][]domain.SemanticHit),
	}
}

func (f *semanticFake) Upsert(_ context.Context, collection string, entries []domain.IndexEntry, vectors [][]float32) error {
	if f.err != nil {
		return f.err
	}
	if len(entries) != len(vectors) {
		return errors.New("entries/vectors mismatch")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upserted[collection] = append(f.upserted[collection], entries...)
	return nil
}

func (f *semanticFake) Search(_ context.Context, collection string, _ []float32, limit int) ([]domain.SemanticHit, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.limits = append(f.limits, limit)
	hits := f.hits[collection]
	if hits == nil {
		for i, e := range f.upserted[collection] {
			hits = append(hits, domain.SemanticHit{Entry: e, Distance: float64(i)})
		}
	}
	return trimCandidates(hits, limit), nil
}

func (f *semanticFake) DeleteDocument(_ context.Context, collection, documentID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upserted[collection] = withoutDocument(f.upserted[collection], documentID)
	return nil
}

func withoutDocument(entries []domain.IndexEntry, documentID string) []domain.IndexEntry {
	kept := entries[:0:0]
	for _, e := range entries {
		if e.MetaString(domain.MetaDocumentID) != documentID {
			kept = append(kept, e)
		}
	}
	return kept
}

type entryStoreFake struct {
	mu      sync.Mutex
	entries map[string][]domain.IndexEntry
	err     error
}

func newEntryStoreFake() *entryStoreFake {
	return &entryStoreFake{entries: make(map[string][]domain.IndexEntry)}
}

func (f *entryStoreFake) SaveEntries(_ context.Context, collection string, entries []domain.IndexEntry) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	existing := f.entries[collection]
	pos := make(map[string]int, len(existing))
	for i, e := range existing {
		pos[e.ID] = i
	}
	for _, e := range entries {
		if i, ok := pos[e.ID]; ok {
			existing[i] = e
			continue
		}
		pos[e.ID] = len(existing)
		existing = append(existing, e)
	}
	f.entries[collection] = existing
	return nil
}

func (f *entryStoreFake) LoadEntries(_ context.Context, collection string) ([]domain.IndexEntry, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.IndexEntry(nil), f.entries[collection]...), nil
}

func (f *entryStoreFake) CountEntries(_ context.Context, collection string) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.entries[collection]), nil
}

func (f *entryStoreFake) DeleteDocument(_ context.Context, collection, documentID string) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries[collection] = withoutDocument(f.entries[collection], documentID)
	return nil
}

// lexicalFake scores a document by how many query words it contains.
type lexicalFake struct {
	corpus []string
}

func newLexicalFake(corpus []string) ports.LexicalIndex {
	return &lexicalFake{corpus: corpus}
}

func (f *lexicalFake) Len() int { return len(f.corpus) }

func (f *lexicalFake) Scores(query string) []float64 {
	words := strings.Fields(strings.ToLower(query))
	out := make([]float64, len(f.corpus))
	for i, doc := range f.corpus {
		lower := strings.ToLower(doc)
		for _, w := range words {
			if strings.Contains(lower, w) {
				out[i]++
			}
		}
	}
	return out
}

type generatorFake struct {
	mu       sync.Mutex
	requests []domain.GenerationRequest
	respond  func(req domain.GenerationRequest) (string, error)
}

func (f *generatorFake) Generate(_ context.Context, req domain.GenerationRequest) (string, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	respond := f.respond
	f.mu.Unlock()
	if respond == nil {
		return "", errors.New("no response configured")
	}
	return respond(req)
}

func (f *generatorFake) calls() []domain.GenerationRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.GenerationRequest(nil), f.requests...)
}

type claimsFake struct {
	claims []domain.Claim
}

func (f *claimsFake) ExtractClaims(string) []domain.Claim { return f.claims }

type memoryFake struct {
	added   []domain.Turn
	context string
	cleared bool
}

func (f *memoryFake) Add(query, answer string, metadata map[string]string) {
	f.added = append(f.added, domain.Turn{At: time.Now(), Query: query, Answer: answer, Metadata: metadata})
}

func (f *memoryFake) Context(string) string   { return f.context }
func (f *memoryFake) Turns() []domain.Turn    { return f.added }
func (f *memoryFake) Facts() domain.WellFacts { return domain.WellFacts{} }
func (f *memoryFake) Clear()                  { f.cleared = true }

func testEntry(id, content, wells string) domain.IndexEntry {
	return domain.IndexEntry{
		ID:      id,
		Content: content,
		Metadata: map[string]any{
			domain.MetaSourceFile:  "report-" + id + ".pdf",
			domain.MetaPageNumber:  3,
			domain.MetaWellNames:   wells,
			domain.MetaSegmentType: string(domain.SegmentParagraph),
			domain.MetaSegmentID:   "page_3_paragraph_0",
		},
	}
}

func testStrategies() []domain.Strategy {
	return []domain.Strategy{
		{Name: "fine_grained", ChunkSize: 500, Overlap: 150, Collection: "wells_fine"},
		{Name: "factual_qa", ChunkSize: 800, Overlap: 200, Collection: "wells_factual"},
	}
}

func testModes() map[domain.Mode]domain.ModeConfig {
	return map[domain.Mode]domain.ModeConfig{
		domain.ModeQA: {
			Mode: domain.ModeQA, Strategy: "factual_qa", TopK: 10, PromptChunks: 10, ChunkChars: 700,
			Timeout: 300 * time.Second, MaxTokens: 300, NumCtx: 8192,
		},
		domain.ModeExtract: {
			Mode: domain.ModeExtract, Strategy: "fine_grained", TopK: 20,
		},
		domain.ModeSummary: {
			Mode: domain.ModeSummary, Strategy: "factual_qa", TopK: 15, PromptChunks: 15, ChunkChars: 400,
			Timeout: 900 * time.Second, MaxTokens: 450, NumCtx: 6144,
		},
	}
}

func defaultFusion() FusionConfig {
	return FusionConfig{
		Strategy:       domain.FusionWeighted,
		Alignment:      domain.AlignByID,
		SemanticWeight: 0.65,
		LexicalWeight:  0.35,
	}
}

// seedIndex stores entries on both sides of a collection and warms the lexical index.
func seedIndex(store *entryStoreFake, semantic *semanticFake, index *HybridIndex, collection string, entries ...domain.IndexEntry) {
	_ = store.SaveEntries(context.Background(), collection, entries)
	semantic.mu.Lock()
	semantic.upserted[collection] = append(semantic.upserted[collection], entries...)
	semantic.mu.Unlock()
	_ = index.Warm(context.Background(), []string{collection})
}
