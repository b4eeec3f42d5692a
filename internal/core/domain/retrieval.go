package domain

import (
	"fmt"
	"strings"
	"time"
)

type Mode string

const (
	ModeQA      Mode = "qa"
	ModeExtract Mode = "extract"
	ModeSummary Mode = "summary"
)

var Modes = []Mode{ModeQA, ModeExtract, ModeSummary}

func ParseMode(raw string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(raw))); m {
	case ModeQA, ModeExtract, ModeSummary:
		return m, nil
	default:
		return "", fmt.Errorf("%w: unknown mode %q", ErrInvalidInput, raw)
	}
}

// ModeConfig is everything that varies between query modes.
type ModeConfig struct {
	Mode         Mode          `yaml:"-"`
	Strategy     string        `yaml:"strategy"`
	TopK         int           `yaml:"top_k"`
	PromptChunks int           `yaml:"prompt_chunks"`
	ChunkChars   int           `yaml:"chunk_chars"`
	Timeout      time.Duration `yaml:"timeout"`
	MaxTokens    int           `yaml:"max_tokens"`
	NumCtx       int           `yaml:"num_ctx"`
}

type FusionStrategy string

const (
	FusionWeighted FusionStrategy = "weighted"
	FusionRRF      FusionStrategy = "rrf"
)

// LexicalAlignment selects how lexical scores are paired with semantic candidates.
type LexicalAlignment string

const (
	AlignByID       LexicalAlignment = "id"
	AlignByPosition LexicalAlignment = "position"
)

// SemanticHit is one candidate returned by the semantic index.
type SemanticHit struct {
	Entry    IndexEntry
	Distance float64
}

// Evidence is a ranked, scored chunk returned by retrieval.
type Evidence struct {
	Entry         IndexEntry `json:"entry"`
	Score         float64    `json:"score"`
	SemanticScore float64    `json:"semantic_score"`
	LexicalScore  float64    `json:"lexical_score"`
	SemanticRank  int        `json:"semantic_rank"`
	Citation      string     `json:"citation"`
}

func (e Evidence) Content() string { return e.Entry.Content }

type Answer struct {
	Text       string        `json:"text"`
	Mode       Mode          `json:"mode"`
	TargetWell string        `json:"target_well,omitempty"`
	Sources    []Evidence    `json:"sources"`
	Verdict    *Verdict      `json:"verdict,omitempty"`
	Trajectory *Trajectory   `json:"trajectory,omitempty"`
	Diagnostic string        `json:"diagnostic,omitempty"`
	Duration   time.Duration `json:"duration_ns"`
}

// GenerationOptions maps onto the generation service sampling options.
type GenerationOptions struct {
	Temperature   float64
	TopP          float64
	RepeatPenalty float64
	NumCtx        int
	NumPredict    int
}

// GenerationRequest is one completion call. Attempt n runs with Timeout+(n-1)*TimeoutStep.
type GenerationRequest struct {
	Model       string
	Prompt      string
	Options     GenerationOptions
	Timeout     time.Duration
	MaxAttempts int
	TimeoutStep time.Duration
}

// AskRequest is one user question. An empty Mode is detected from the question text.
type AskRequest struct {
	Question       string `json:"question"`
	Mode           Mode   `json:"mode,omitempty"`
	Well           string `json:"well,omitempty"`
	SkipValidation bool   `json:"skip_validation,omitempty"`
}
