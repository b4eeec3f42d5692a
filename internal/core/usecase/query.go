package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kirillkom/well-report-rag/internal/core/domain"
	"github.com/kirillkom/well-report-rag/internal/core/ports"
)

const (
	trajectoryTableRows = 20
	answerIssueLimit    = 2
	diagnosticChars     = 300

	msgNoDocuments = "Please upload documents first."
	msgTimedOut    = "Timed out. Try simpler query or specify well name."
	msgNoAnswer    = "No answer generated."
	msgFailed      = "The question could not be answered."

	memoryWellName = "well_name"
	memoryMode     = "mode"
)

type QueryConfig struct {
	ChatModel     string
	Temperature   float64
	TopP          float64
	RepeatPenalty float64
	MaxAttempts   int
	TimeoutStep   time.Duration
	MemoryChars   int
	// ExposeErrors adds a truncated error chain to Answer.Diagnostic.
	ExposeErrors bool
}

type QueryUseCase struct {
	repo       ports.DocumentRepository
	retriever  *RetrieveUseCase
	validator  *ValidateUseCase
	trajectory *TrajectoryUseCase
	generator  ports.TextGenerator
	memory     ports.ConversationMemory
	cfg        QueryConfig
}

func NewQueryUseCase(
	repo ports.DocumentRepository,
	retriever *RetrieveUseCase,
	validator *ValidateUseCase,
	trajectory *TrajectoryUseCase,
	generator ports.TextGenerator,
	memory ports.ConversationMemory,
	cfg QueryConfig,
) *QueryUseCase {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 2
	}
	if cfg.MemoryChars <= 0 {
		cfg.MemoryChars = 300
	}
	return &QueryUseCase{
		repo:       repo,
		retriever:  retriever,
		validator:  validator,
		trajectory: trajectory,
		generator:  generator,
		memory:     memory,
		cfg:        cfg,
	}
}

// DetectMode picks the query mode from keywords in the question.
func DetectMode(question string) domain.Mode {
	q := strings.ToLower(question)
	switch {
	case strings.Contains(q, "extract"), strings.Contains(q, "trajectory"):
		return domain.ModeExtract
	case strings.Contains(q, "summary"), strings.Contains(q, "summarize"):
		return domain.ModeSummary
	default:
		return domain.ModeQA
	}
}

// FindWell returns the first known well whose name appears in text, ignoring case.
func FindWell(text string, known []string) string {
	upper := strings.ToUpper(text)
	for _, well := range known {
		if well != "" && strings.Contains(upper, strings.ToUpper(well)) {
			return well
		}
	}
	return ""
}

// Ask runs one question through retrieval, generation or trajectory extraction,
// and validation. Pipeline failures become a diagnostic answer, not an error.
func (uc *QueryUseCase) Ask(ctx context.Context, req domain.AskRequest) (*domain.Answer, error) {
	started := time.Now()
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "ask", errors.New("empty question"))
	}

	ready, err := uc.repo.CountByStatus(ctx, domain.StatusReady)
	if err != nil {
		return nil, fmt.Errorf("count ready documents: %w", err)
	}
	if ready == 0 {
		return &domain.Answer{Text: msgNoDocuments, Sources: []domain.Evidence{}}, nil
	}

	mode := req.Mode
	if mode == "" {
		mode = DetectMode(question)
	}
	mc, err := uc.retriever.ModeConfig(mode)
	if err != nil {
		return nil, err
	}

	well := strings.TrimSpace(req.Well)
	if well == "" {
		known, err := uc.repo.ListWells(ctx)
		if err != nil {
			slog.Warn("list_wells_failed", "error", err)
		}
		well = FindWell(question, known)
	}
	slog.Info("query_started", "mode", mode, "well", well)

	answer, err := uc.answer(ctx, question, mc, well, req.SkipValidation)
	if err != nil {
		slog.Error("query_failed", "mode", mode, "error", err)
		answer = uc.failureAnswer(err)
	}
	answer.Mode = mode
	answer.TargetWell = well
	answer.Duration = time.Since(started)
	if answer.Sources == nil {
		answer.Sources = []domain.Evidence{}
	}

	if err == nil && uc.memory != nil {
		uc.memory.Add(question, answer.Text, map[string]string{
			memoryWellName: well,
			memoryMode:     string(mode),
		})
	}
	slog.Info("query_completed",
		"mode", mode,
		"well", well,
		"sources", len(answer.Sources),
		"duration_ms", answer.Duration.Milliseconds(),
	)
	return answer, nil
}

func (uc *QueryUseCase) answer(ctx context.Context, question string, mc domain.ModeConfig, well string, skipValidation bool) (*domain.Answer, error) {
	evidence, err := uc.retriever.Retrieve(ctx, question, mc.Mode, well)
	if err != nil {
		return nil, fmt.Errorf("retrieve evidence: %w", err)
	}

	if mc.Mode == domain.ModeExtract {
		traj := uc.trajectory.Extract(ctx, evidence)
		traj.Well = well
		uc.trajectory.Remember(traj)
		return &domain.Answer{
			Text:       renderTrajectoryAnswer(traj),
			Sources:    evidence,
			Trajectory: &traj,
		}, nil
	}

	var memory string
	if uc.memory != nil {
		memory = uc.memory.Context(question)
	}
	text, err := uc.generator.Generate(ctx, domain.GenerationRequest{
		Model:  uc.cfg.ChatModel,
		Prompt: buildModePrompt(mc, question, memory, evidence, uc.cfg.MemoryChars),
		Options: domain.GenerationOptions{
			Temperature:   uc.cfg.Temperature,
			TopP:          uc.cfg.TopP,
			RepeatPenalty: uc.cfg.RepeatPenalty,
			NumCtx:        mc.NumCtx,
			NumPredict:    mc.MaxTokens,
		},
		Timeout:     mc.Timeout,
		MaxAttempts: uc.cfg.MaxAttempts,
		TimeoutStep: uc.cfg.TimeoutStep,
	})
	if err != nil {
		return nil, fmt.Errorf("generate answer: %w", err)
	}
	if strings.TrimSpace(text) == "" {
		return &domain.Answer{Text: msgNoAnswer, Sources: evidence}, nil
	}

	answer := &domain.Answer{Text: text, Sources: evidence}
	if skipValidation || uc.validator == nil {
		return answer, nil
	}
	verdict := uc.validator.Validate(ctx, text, evidence, question)
	answer.Verdict = &verdict
	answer.Text = decorateAnswer(text, verdict)
	return answer, nil
}

func (uc *QueryUseCase) failureAnswer(err error) *domain.Answer {
	text := msgFailed
	if errors.Is(err, context.DeadlineExceeded) {
		text = msgTimedOut
	}
	answer := &domain.Answer{Text: text}
	if uc.cfg.ExposeErrors {
		answer.Diagnostic = truncateRunes(err.Error(), diagnosticChars)
	}
	return answer
}

// ClearConversation forgets the conversation buffer.
func (uc *QueryUseCase) ClearConversation() {
	if uc.memory != nil {
		uc.memory.Clear()
	}
}

// LastTrajectory returns the most recently extracted non-empty trajectory.
func (uc *QueryUseCase) LastTrajectory() (domain.Trajectory, bool) {
	return uc.trajectory.LastTrajectory()
}
