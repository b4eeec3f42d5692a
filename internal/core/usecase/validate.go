package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kirillkom/well-report-rag/internal/core/domain"
	"github.com/kirillkom/well-report-rag/internal/core/ports"
)

const (
	confidenceNoClaims = 0.95

	judgeClaimLimit = 10
	issueChars      = 80
	issueLimit      = 3
)

// judgeProfile holds the prompt budget and fallback confidences of one judging setup.
type judgeProfile struct {
	contextLimit int
	chunkChars   int
	withQuery    bool
	noTags       float64
	allFailed    float64
}

var (
	ensembleProfile = judgeProfile{contextLimit: 8, chunkChars: 500, noTags: 0.8, allFailed: 0.75}
	// A lone judge sees more context and the question, and is trusted more when silent.
	singleJudgeProfile = judgeProfile{contextLimit: 10, chunkChars: 600, withQuery: true, noTags: 0.85, allFailed: 0.8}
)

var (
	validTag     = regexp.MustCompile(`(?i)\bVALID:`)
	uncertainTag = regexp.MustCompile(`(?i)\bUNCERTAIN:`)
	invalidTag   = regexp.MustCompile(`(?i)\bINVALID:`)
)

type ValidationConfig struct {
	Models        []string
	MinConfidence float64
	Timeout       time.Duration
	Temperature   float64
	NumCtx        int
}

type ValidateUseCase struct {
	claims    ports.ClaimExtractor
	generator ports.TextGenerator
	cfg       ValidationConfig
}

func NewValidateUseCase(claims ports.ClaimExtractor, generator ports.TextGenerator, cfg ValidationConfig) *ValidateUseCase {
	return &ValidateUseCase{claims: claims, generator: generator, cfg: cfg}
}

// Validate asks every judge model to check the answer's claims against the evidence
// and aggregates their votes. It never fails: unreachable judges degrade the verdict.
func (uc *ValidateUseCase) Validate(ctx context.Context, answer string, evidence []domain.Evidence, query string) domain.Verdict {
	claims := uc.claims.ExtractClaims(answer)
	if len(claims) == 0 {
		return domain.Verdict{
			Status:     domain.VerdictSkipped,
			IsValid:    true,
			Confidence: confidenceNoClaims,
		}
	}

	profile := uc.profile()
	prompt := buildJudgePrompt(claims, evidence, query, profile)
	votes := make([]domain.ModelVote, len(uc.cfg.Models))
	g, gctx := errgroup.WithContext(ctx)
	for i, model := range uc.cfg.Models {
		g.Go(func() error {
			votes[i] = uc.judge(gctx, model, prompt, profile.noTags)
			return nil
		})
	}
	_ = g.Wait()

	verdict := aggregateVotes(votes, uc.cfg.MinConfidence, profile.allFailed)
	verdict.Claims = claims
	slog.Info("validation_completed",
		"query", truncateRunes(query, 100),
		"status", verdict.Status,
		"confidence", verdict.Confidence,
		"claims", len(claims),
		"models", len(votes),
	)
	return verdict
}

func (uc *ValidateUseCase) profile() judgeProfile {
	if len(uc.cfg.Models) == 1 {
		return singleJudgeProfile
	}
	return ensembleProfile
}

func (uc *ValidateUseCase) judge(ctx context.Context, model, prompt string, noTags float64) domain.ModelVote {
	text, err := uc.generator.Generate(ctx, domain.GenerationRequest{
		Model:  model,
		Prompt: prompt,
		Options: domain.GenerationOptions{
			Temperature: uc.cfg.Temperature,
			NumCtx:      uc.cfg.NumCtx,
		},
		Timeout:     uc.cfg.Timeout,
		MaxAttempts: 1,
	})
	if err != nil {
		slog.Warn("judge_failed", "model", model, "error", err)
		return domain.ModelVote{Model: model, Err: err.Error()}
	}
	vote := scoreJudgement(text, noTags)
	vote.Model = model
	return vote
}

func buildJudgePrompt(claims []domain.Claim, evidence []domain.Evidence, query string, p judgeProfile) string {
	texts := make([]string, 0, judgeClaimLimit)
	for _, c := range trimCandidates(claims, judgeClaimLimit) {
		texts = append(texts, c.Text)
	}

	chunks := make([]string, 0, p.contextLimit)
	for i, ev := range trimCandidates(evidence, p.contextLimit) {
		chunks = append(chunks, fmt.Sprintf("[Chunk %d] %s", i+1, truncateRunes(ev.Content(), p.chunkChars)))
	}

	var b strings.Builder
	b.WriteString("Fact checker. Verify claims against context.\n\n")
	b.WriteString("For each claim:\n")
	b.WriteString("- VALID: Directly supported\n")
	b.WriteString("- UNCERTAIN: Partially supported\n")
	b.WriteString("- INVALID: Contradicts or missing\n\n")
	if p.withQuery && query != "" {
		fmt.Fprintf(&b, "Query: %s\n\n", query)
	}
	b.WriteString("Claims to check:\n")
	b.WriteString(strings.Join(texts, " | "))
	b.WriteString("\n\nContext:\n")
	b.WriteString(strings.Join(chunks, "\n\n"))
	b.WriteString("\n\nValidation (one per claim):\n")
	return b.String()
}

// scoreJudgement counts verdict tags and collects the model's distinct INVALID lines.
func scoreJudgement(text string, noTags float64) domain.ModelVote {
	vote := domain.ModelVote{
		Valid:     len(validTag.FindAllStringIndex(text, -1)),
		Uncertain: len(uncertainTag.FindAllStringIndex(text, -1)),
		Invalid:   len(invalidTag.FindAllStringIndex(text, -1)),
	}
	total := vote.Valid + vote.Uncertain + vote.Invalid
	if total == 0 {
		vote.Confidence = noTags
	} else {
		vote.Confidence = (float64(vote.Valid) + 0.5*float64(vote.Uncertain)) / float64(total)
	}

	seen := make(map[string]struct{})
	for _, line := range strings.Split(text, "\n") {
		if !strings.Contains(strings.ToUpper(line), "INVALID") {
			continue
		}
		issue := truncateRunes(strings.TrimSpace(line), issueChars)
		if _, ok := seen[issue]; ok {
			continue
		}
		seen[issue] = struct{}{}
		vote.Issues = append(vote.Issues, issue)
	}
	return vote
}

func aggregateVotes(votes []domain.ModelVote, minConfidence, allFailed float64) domain.Verdict {
	var responding []domain.ModelVote
	for _, v := range votes {
		if !v.Failed() {
			responding = append(responding, v)
		}
	}
	if len(responding) == 0 {
		return domain.Verdict{
			Status:     domain.VerdictDegraded,
			IsValid:    true,
			Confidence: allFailed,
			Votes:      votes,
		}
	}

	var sum float64
	for _, v := range responding {
		sum += v.Confidence
	}
	confidence := sum / float64(len(responding))

	return domain.Verdict{
		Status:     domain.VerdictValidated,
		IsValid:    confidence >= minConfidence,
		Confidence: confidence,
		Issues:     majorityIssues(responding),
		Votes:      votes,
	}
}

// majorityIssues keeps issues raised by at least half of the responding models,
// most frequent first, ties in order of first appearance.
func majorityIssues(votes []domain.ModelVote) []string {
	counts := make(map[string]int)
	var order []string
	for _, v := range votes {
		for _, issue := range v.Issues {
			if counts[issue] == 0 {
				order = append(order, issue)
			}
			counts[issue]++
		}
	}

	var out []string
	for _, issue := range order {
		if 2*counts[issue] >= len(votes) {
			out = append(out, issue)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return counts[out[i]] > counts[out[j]]
	})
	return trimCandidates(out, issueLimit)
}

func truncateRunes(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
