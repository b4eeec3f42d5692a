package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kirillkom/well-report-rag/internal/core/domain"
	"github.com/kirillkom/well-report-rag/internal/core/ports"
)

const minPageChars = 50

type ProcessDocumentUseCase struct {
	repo       ports.DocumentRepository
	extractor  ports.PageExtractor
	wells      ports.WellDetector
	segmenter  ports.Segmenter
	chunker    ports.Chunker
	index      *HybridIndex
	strategies []domain.Strategy
	onIndexed  func(strategy string, chunks int)
}

func NewProcessDocumentUseCase(
	repo ports.DocumentRepository,
	extractor ports.PageExtractor,
	wells ports.WellDetector,
	segmenter ports.Segmenter,
	chunker ports.Chunker,
	index *HybridIndex,
	strategies []domain.Strategy,
) *ProcessDocumentUseCase {
	return &ProcessDocumentUseCase{
		repo:       repo,
		extractor:  extractor,
		wells:      wells,
		segmenter:  segmenter,
		chunker:    chunker,
		index:      index,
		strategies: strategies,
	}
}

// WithIndexObserver registers fn to be called after each strategy's chunks are indexed.
func (uc *ProcessDocumentUseCase) WithIndexObserver(fn func(strategy string, chunks int)) *ProcessDocumentUseCase {
	uc.onIndexed = fn
	return uc
}

type processResult struct {
	wells      []string
	pageCount  int
	chunkCount int
}

func (uc *ProcessDocumentUseCase) ProcessByID(ctx context.Context, documentID string) error {
	if err := uc.markStatus(ctx, documentID, domain.StatusProcessing, ""); err != nil {
		return fmt.Errorf("set status=processing: %w", err)
	}

	result, err := uc.processPipeline(ctx, documentID)
	if err != nil {
		if failErr := uc.markFailed(ctx, documentID, err); failErr != nil {
			return fmt.Errorf("%w; mark failed status: %v", err, failErr)
		}
		return err
	}

	if err := uc.repo.SaveIndexing(ctx, documentID, result.wells, result.pageCount, result.chunkCount); err != nil {
		err = fmt.Errorf("save indexing result: %w", err)
		if failErr := uc.markFailed(ctx, documentID, err); failErr != nil {
			return fmt.Errorf("%w; mark failed status: %v", err, failErr)
		}
		return err
	}

	if err := uc.markStatus(ctx, documentID, domain.StatusReady, ""); err != nil {
		return fmt.Errorf("set status=ready: %w", err)
	}
	return nil
}

func (uc *ProcessDocumentUseCase) processPipeline(ctx context.Context, documentID string) (processResult, error) {
	doc, err := uc.repo.GetByID(ctx, documentID)
	if err != nil {
		return processResult{}, fmt.Errorf("fetch document by id: %w", err)
	}

	pages, err := uc.extractPages(ctx, doc)
	if err != nil {
		return processResult{}, err
	}

	wells := uc.detectWells(pages)
	segments := uc.segment(pages)
	if len(segments) == 0 {
		return processResult{}, domain.WrapError(domain.ErrInvalidInput, "segment document", errors.New("segmentation produced zero segments"))
	}

	src := domain.ChunkSource{
		DocumentID: doc.ID,
		Filename:   doc.Filename,
		Wells:      wells,
		Extra: map[string]any{
			"mime_type": doc.MimeType,
			"pages":     len(pages),
		},
	}

	total := 0
	var touched []string
	for _, strategy := range uc.strategies {
		chunks := uc.chunk(segments, src, strategy)
		if len(chunks) == 0 {
			slog.Warn("strategy_produced_no_chunks", "document_id", doc.ID, "strategy", strategy.Name)
			continue
		}
		touched = append(touched, strategy.Collection)
		if err := uc.index.Index(ctx, strategy.Collection, chunks); err != nil {
			uc.rollback(ctx, doc.ID, touched)
			return processResult{}, fmt.Errorf("index strategy %s: %w", strategy.Name, err)
		}
		if uc.onIndexed != nil {
			uc.onIndexed(strategy.Name, len(chunks))
		}
		total += len(chunks)
	}
	if total == 0 {
		return processResult{}, domain.WrapError(domain.ErrInvalidInput, "chunk document", errors.New("chunking produced zero chunks"))
	}

	slog.Info("document_indexed",
		"document_id", doc.ID,
		"filename", doc.Filename,
		"pages", len(pages),
		"segments", len(segments),
		"chunks", total,
		"wells", strings.Join(wells, ","),
	)
	return processResult{wells: wells, pageCount: len(pages), chunkCount: total}, nil
}

// rollback removes the document from every collection it was written to, so a
// failed document leaves no chunks behind in any strategy.
func (uc *ProcessDocumentUseCase) rollback(ctx context.Context, documentID string, collections []string) {
	ctx = context.WithoutCancel(ctx)
	for _, collection := range collections {
		if err := uc.index.Remove(ctx, collection, documentID); err != nil {
			slog.Error("index_rollback_failed", "document_id", documentID, "collection", collection, "error", err)
		}
	}
}

func (uc *ProcessDocumentUseCase) extractPages(ctx context.Context, doc *domain.Document) ([]domain.Page, error) {
	pages, err := uc.extractor.ExtractPages(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("extract pages: %w", err)
	}
	kept := pages[:0]
	for _, page := range pages {
		if len(strings.TrimSpace(page.Text)) < minPageChars {
			continue
		}
		kept = append(kept, page)
	}
	if len(kept) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "extract pages", errors.New("empty extracted text"))
	}
	return kept, nil
}

func (uc *ProcessDocumentUseCase) detectWells(pages []domain.Page) []string {
	texts := make([]string, len(pages))
	for i, page := range pages {
		texts[i] = page.Text
	}
	return uc.wells.DetectWells(strings.Join(texts, "\n"))
}

func (uc *ProcessDocumentUseCase) segment(pages []domain.Page) []domain.Segment {
	var segments []domain.Segment
	for _, page := range pages {
		segments = append(segments, uc.segmenter.Segment(page.Text, page.Number)...)
	}
	return segments
}

func (uc *ProcessDocumentUseCase) chunk(segments []domain.Segment, src domain.ChunkSource, strategy domain.Strategy) []domain.Chunk {
	var chunks []domain.Chunk
	for _, seg := range segments {
		chunks = append(chunks, uc.chunker.Split(seg, src, strategy)...)
	}
	return chunks
}

func (uc *ProcessDocumentUseCase) markStatus(ctx context.Context, documentID string, status domain.DocumentStatus, errMessage string) error {
	return uc.repo.UpdateStatus(ctx, documentID, status, errMessage)
}

func (uc *ProcessDocumentUseCase) markFailed(ctx context.Context, documentID string, processErr error) error {
	if processErr == nil {
		return nil
	}
	return uc.markStatus(ctx, documentID, domain.StatusFailed, processErr.Error())
}
