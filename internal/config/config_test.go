package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/kirillkom/well-report-rag/internal/core/domain"
)

func TestLoadDefaultsAreValid(t *testing.T) {
	t.Setenv("JUDGE_MODELS", "")
	t.Setenv("RAG_SEMANTIC_WEIGHT", "")
	t.Setenv("RAG_KEYWORD_WEIGHT", "")
	t.Setenv("RAG_PROFILE_FILE", "")

	cfg := Load()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if len(cfg.JudgeModels) != 2 {
		t.Fatalf("expected two default judge models, got %v", cfg.JudgeModels)
	}
	if cfg.Modes[domain.ModeQA].TopK != 10 || cfg.Modes[domain.ModeSummary].Timeout != 900*time.Second {
		t.Fatalf("unexpected mode defaults: %+v", cfg.Modes)
	}
	if cfg.JudgeTimeout != 90*time.Second {
		t.Fatalf("expected judge timeout 90s, got %v", cfg.JudgeTimeout)
	}
}

func TestLoadParsesOverrides(t *testing.T) {
	t.Setenv("JUDGE_MODELS", " mistral:7b , ,gemma2:9b")
	t.Setenv("RAG_SEMANTIC_WEIGHT", "0.5")
	t.Setenv("RAG_KEYWORD_WEIGHT", "not-a-number")
	t.Setenv("GENERATION_TIMEOUT_STEP_SECONDS", "60")

	cfg := Load()
	if strings.Join(cfg.JudgeModels, ",") != "mistral:7b,gemma2:9b" {
		t.Fatalf("unexpected judge models %v", cfg.JudgeModels)
	}
	if cfg.SemanticWeight != 0.5 || cfg.KeywordWeight != 0.3 {
		t.Fatalf("unexpected weights %v/%v", cfg.SemanticWeight, cfg.KeywordWeight)
	}
	if cfg.GenerationTimeoutStep != time.Minute {
		t.Fatalf("expected 60s step, got %v", cfg.GenerationTimeoutStep)
	}
}

func TestExposeErrorsFollowsEnvironment(t *testing.T) {
	t.Setenv("EXPOSE_ERRORS", "")
	t.Setenv("APP_ENV", "production")
	if Load().ExposeErrors {
		t.Fatalf("production must not expose errors by default")
	}
	t.Setenv("APP_ENV", "development")
	if !Load().ExposeErrors {
		t.Fatalf("development exposes errors by default")
	}
}

func TestValidateReportsEveryProblem(t *testing.T) {
	cfg := Load()
	cfg.Strategies = []domain.Strategy{{Name: "factual_qa", ChunkSize: 100, Overlap: 100, Collection: "c"}}
	cfg.SemanticWeight = 0.8
	cfg.KeywordWeight = 0.4
	cfg.JudgeModels = nil

	err := cfg.Validate()
	if !domain.IsKind(err, domain.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	for _, want := range []string{"chunk_overlap", "fusion weights", "judge model", "unknown strategy"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("expected %q in %v", want, err)
		}
	}
}

func TestProfileOverridesStrategiesModesAndJudges(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.yaml")
	profile := `
strategies:
  - name: fine
    chunk_size: 200
    chunk_overlap: 50
    collection: wells_fine
modes:
  qa:
    strategy: fine
    top_k: 5
    prompt_chunks: 5
    chunk_chars: 500
    timeout: 120s
  extract:
    strategy: fine
    top_k: 20
  summary:
    strategy: fine
    top_k: 8
fusion:
  strategy: rrf
  semantic_weight: 0.6
judge:
  models: [qwen2.5:7b]
  min_confidence: 0.8
`
	if err := os.WriteFile(path, []byte(profile), 0o600); err != nil {
		t.Fatalf("write profile: %v", err)
	}
	t.Setenv("RAG_PROFILE_FILE", path)
	t.Setenv("RAG_KEYWORD_WEIGHT", "")

	cfg, err := LoadValidated()
	if err != nil {
		t.Fatalf("LoadValidated() error = %v", err)
	}
	if len(cfg.Strategies) != 1 || cfg.Strategies[0].Collection != "wells_fine" {
		t.Fatalf("unexpected strategies %+v", cfg.Strategies)
	}
	qa := cfg.Modes[domain.ModeQA]
	if qa.Mode != domain.ModeQA || qa.TopK != 5 || qa.Timeout != 2*time.Minute {
		t.Fatalf("unexpected qa mode %+v", qa)
	}
	if cfg.FusionStrategy != "rrf" || cfg.SemanticWeight != 0.6 || cfg.KeywordWeight != 0.3 {
		t.Fatalf("unexpected fusion %s %.2f %.2f", cfg.FusionStrategy, cfg.SemanticWeight, cfg.KeywordWeight)
	}
	if len(cfg.JudgeModels) != 1 || cfg.JudgeMinConfidence != 0.8 {
		t.Fatalf("unexpected judge settings %v %.2f", cfg.JudgeModels, cfg.JudgeMinConfidence)
	}
}

func TestParseProfileRejectsUnknownMode(t *testing.T) {
	_, err := ParseProfile([]byte("modes:\n  chat:\n    strategy: x\n"))
	if !domain.IsKind(err, domain.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}
