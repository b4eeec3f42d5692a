package usecase

import (
	"math"
	"sort"

	"github.com/kirillkom/well-report-rag/internal/core/domain"
)

// FusionConfig controls how semantic and lexical evidence are combined.
type FusionConfig struct {
	Strategy       domain.FusionStrategy
	Alignment      domain.LexicalAlignment
	SemanticWeight float64
	LexicalWeight  float64
	RRFK           int
}

func semanticSimilarity(distance float64) float64 {
	return 1.0 / (1.0 + distance)
}

// fuseWeighted scores each semantic candidate as ws*1/(1+d) + wk*lexical.
// With AlignByPosition the i-th candidate is paired with the i-th lexical score.
func fuseWeighted(hits []domain.SemanticHit, snap *lexicalSnapshot, scores []float64, cfg FusionConfig) []domain.Evidence {
	out := make([]domain.Evidence, 0, len(hits))
	for rank, hit := range hits {
		var lexical float64
		switch cfg.Alignment {
		case domain.AlignByPosition:
			if rank < len(scores) {
				lexical = scores[rank]
			}
		default:
			lexical = snap.score(scores, hit.Entry.ID)
		}
		semantic := semanticSimilarity(hit.Distance)
		out = append(out, domain.Evidence{
			Entry:         hit.Entry,
			Score:         cfg.SemanticWeight*semantic + cfg.LexicalWeight*lexical,
			SemanticScore: semantic,
			LexicalScore:  lexical,
			SemanticRank:  rank,
		})
	}
	return out
}

type fusedCandidate struct {
	evidence domain.Evidence
	score    float64
}

// fuseCandidatesRRF merges the semantic candidates with the best lexical entries by
// reciprocal rank. Lexical-only candidates keep SemanticRank -1.
func fuseCandidatesRRF(hits []domain.SemanticHit, snap *lexicalSnapshot, scores []float64, limit, rrfK int) []domain.Evidence {
	if rrfK <= 0 {
		rrfK = 60
	}

	acc := make(map[string]fusedCandidate, len(hits)+limit)
	order := make([]string, 0, len(hits)+limit)
	add := func(ev domain.Evidence, rank int) {
		key := ev.Entry.ID
		candidate, ok := acc[key]
		if !ok {
			candidate.evidence = ev
			order = append(order, key)
		} else {
			candidate.evidence = preferRicherEvidence(candidate.evidence, ev)
		}
		candidate.score += 1.0 / float64(rrfK+rank+1)
		acc[key] = candidate
	}

	for rank, hit := range hits {
		semantic := semanticSimilarity(hit.Distance)
		add(domain.Evidence{
			Entry:         hit.Entry,
			SemanticScore: semantic,
			LexicalScore:  snap.score(scores, hit.Entry.ID),
			SemanticRank:  rank,
		}, rank)
	}
	for rank, pos := range topLexical(scores, limit) {
		add(domain.Evidence{
			Entry:        snap.entries[pos],
			LexicalScore: scores[pos],
			SemanticRank: -1,
		}, rank)
	}

	out := make([]domain.Evidence, 0, len(acc))
	for _, key := range order {
		c := acc[key]
		ev := c.evidence
		ev.Score = c.score
		out = append(out, ev)
	}
	return out
}

// topLexical returns the positions of the best positive lexical scores, best first.
func topLexical(scores []float64, limit int) []int {
	positions := make([]int, 0, len(scores))
	for i, s := range scores {
		if s > 0 {
			positions = append(positions, i)
		}
	}
	sort.SliceStable(positions, func(i, j int) bool {
		return scores[positions[i]] > scores[positions[j]]
	})
	return trimCandidates(positions, limit)
}

func preferRicherEvidence(current, candidate domain.Evidence) domain.Evidence {
	if current.SemanticRank < 0 && candidate.SemanticRank >= 0 {
		current.SemanticRank = candidate.SemanticRank
		current.SemanticScore = candidate.SemanticScore
	}
	if current.Entry.Content == "" && candidate.Entry.Content != "" {
		current.Entry = candidate.Entry
	}
	if candidate.LexicalScore > current.LexicalScore {
		current.LexicalScore = candidate.LexicalScore
	}
	return current
}

// sortEvidence orders by fused score, ties broken by semantic rank.
func sortEvidence(evidence []domain.Evidence) {
	sort.SliceStable(evidence, func(i, j int) bool {
		if evidence[i].Score != evidence[j].Score {
			return evidence[i].Score > evidence[j].Score
		}
		return rankKey(evidence[i].SemanticRank) < rankKey(evidence[j].SemanticRank)
	})
}

func rankKey(rank int) int {
	if rank < 0 {
		return math.MaxInt
	}
	return rank
}

func trimCandidates[T any](items []T, limit int) []T {
	if limit <= 0 || len(items) <= limit {
		return items
	}
	return items[:limit]
}
