package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kirillkom/well-report-rag/internal/core/domain"
)

type RetrieveUseCase struct {
	index      *HybridIndex
	modes      map[domain.Mode]domain.ModeConfig
	strategies map[string]domain.Strategy
	fusion     FusionConfig
}

func NewRetrieveUseCase(
	index *HybridIndex,
	modes map[domain.Mode]domain.ModeConfig,
	strategies []domain.Strategy,
	fusion FusionConfig,
) *RetrieveUseCase {
	byName := make(map[string]domain.Strategy, len(strategies))
	for _, s := range strategies {
		byName[s.Name] = s
	}
	return &RetrieveUseCase{
		index:      index,
		modes:      modes,
		strategies: byName,
		fusion:     fusion,
	}
}

// ModeConfig returns the configuration record of a mode.
func (uc *RetrieveUseCase) ModeConfig(mode domain.Mode) (domain.ModeConfig, error) {
	mc, ok := uc.modes[mode]
	if !ok {
		return domain.ModeConfig{}, domain.WrapError(domain.ErrInvalidInput, "resolve mode", fmt.Errorf("unknown mode %q", mode))
	}
	return mc, nil
}

func (uc *RetrieveUseCase) collection(mc domain.ModeConfig) (string, error) {
	strategy, ok := uc.strategies[mc.Strategy]
	if !ok {
		return "", domain.WrapError(domain.ErrConfiguration, "resolve strategy", fmt.Errorf("mode %s uses unknown strategy %q", mc.Mode, mc.Strategy))
	}
	return strategy.Collection, nil
}

// Retrieve returns at most top_k fused evidence chunks for the mode, optionally
// restricted to chunks whose well_names metadata contains well.
func (uc *RetrieveUseCase) Retrieve(ctx context.Context, query string, mode domain.Mode, well string) ([]domain.Evidence, error) {
	started := time.Now()
	if strings.TrimSpace(query) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "retrieve", fmt.Errorf("empty query"))
	}
	mc, err := uc.ModeConfig(mode)
	if err != nil {
		return nil, err
	}
	collection, err := uc.collection(mc)
	if err != nil {
		return nil, err
	}

	if err := uc.index.Refresh(ctx, collection); err != nil {
		slog.Warn("lexical_refresh_failed", "collection", collection, "error", err)
	}
	snap := uc.index.snapshot(collection)
	if snap == nil || len(snap.entries) == 0 {
		slog.Info("retrieval_unbuilt_collection", "collection", collection, "mode", mode)
		return []domain.Evidence{}, nil
	}

	candidates := 2 * mc.TopK
	hits, err := uc.index.SearchSemantic(ctx, collection, query, candidates)
	if err != nil {
		return nil, err
	}
	scores := snap.index.Scores(query)

	var evidence []domain.Evidence
	switch uc.fusion.Strategy {
	case domain.FusionRRF:
		evidence = fuseCandidatesRRF(hits, snap, scores, candidates, uc.fusion.RRFK)
	default:
		evidence = fuseWeighted(hits, snap, scores, uc.fusion)
	}

	evidence = filterByWell(evidence, well)
	sortEvidence(evidence)
	evidence = trimCandidates(evidence, mc.TopK)
	for i := range evidence {
		evidence[i].Citation = citationOf(evidence[i].Entry)
	}

	slog.Info("retrieval_completed",
		"mode", mode,
		"collection", collection,
		"well", well,
		"semantic_candidates", len(hits),
		"returned", len(evidence),
		"duration_ms", time.Since(started).Milliseconds(),
	)
	return evidence, nil
}

func filterByWell(evidence []domain.Evidence, well string) []domain.Evidence {
	well = strings.ToUpper(strings.TrimSpace(well))
	if well == "" {
		return evidence
	}
	out := evidence[:0]
	for _, ev := range evidence {
		if strings.Contains(strings.ToUpper(ev.Entry.MetaString(domain.MetaWellNames)), well) {
			out = append(out, ev)
		}
	}
	return out
}

func citationOf(entry domain.IndexEntry) string {
	if c := entry.MetaString(domain.MetaCitation); c != "" {
		return c
	}
	return domain.Citation(
		entry.MetaString(domain.MetaSourceFile),
		entry.MetaInt(domain.MetaPageNumber),
		domain.SegmentType(entry.MetaString(domain.MetaSegmentType)),
		entry.MetaString(domain.MetaSegmentID),
	)
}
