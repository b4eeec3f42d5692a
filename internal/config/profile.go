package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/kirillkom/well-report-rag/internal/core/domain"
)

// Profile is the optional YAML overlay for retrieval and validation tuning.
// Absent sections keep the environment values.
type Profile struct {
	Strategies []domain.Strategy                 `yaml:"strategies"`
	Modes      map[domain.Mode]domain.ModeConfig `yaml:"modes"`
	Fusion     *struct {
		Strategy       string   `yaml:"strategy"`
		Alignment      string   `yaml:"alignment"`
		SemanticWeight *float64 `yaml:"semantic_weight"`
		KeywordWeight  *float64 `yaml:"keyword_weight"`
		RRFK           int      `yaml:"rrf_k"`
	} `yaml:"fusion"`
	Judge *struct {
		Models        []string `yaml:"models"`
		MinConfidence *float64 `yaml:"min_confidence"`
	} `yaml:"judge"`
}

func ReadProfile(path string) (Profile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Profile{}, domain.WrapError(domain.ErrConfiguration, "read profile", err)
	}
	return ParseProfile(raw)
}

func ParseProfile(raw []byte) (Profile, error) {
	var p Profile
	if err := yaml.Unmarshal(raw, &p); err != nil {
		return Profile{}, domain.WrapError(domain.ErrConfiguration, "parse profile", err)
	}
	for mode := range p.Modes {
		if _, err := domain.ParseMode(string(mode)); err != nil {
			return Profile{}, domain.WrapError(domain.ErrConfiguration, "parse profile", fmt.Errorf("mode %q", mode))
		}
	}
	return p, nil
}

// ApplyProfile overlays the profile on c. A mode entry replaces the whole record of that mode.
func (c *Config) ApplyProfile(p Profile) {
	if len(p.Strategies) > 0 {
		c.Strategies = p.Strategies
	}
	if len(p.Modes) > 0 {
		modes := make(map[domain.Mode]domain.ModeConfig, len(c.Modes))
		for k, v := range c.Modes {
			modes[k] = v
		}
		for k, v := range p.Modes {
			v.Mode = k
			modes[k] = v
		}
		c.Modes = modes
	}
	if f := p.Fusion; f != nil {
		if f.Strategy != "" {
			c.FusionStrategy = f.Strategy
		}
		if f.Alignment != "" {
			c.FusionAlignment = f.Alignment
		}
		if f.SemanticWeight != nil {
			c.SemanticWeight = *f.SemanticWeight
		}
		if f.KeywordWeight != nil {
			c.KeywordWeight = *f.KeywordWeight
		}
		if f.RRFK > 0 {
			c.FusionRRFK = f.RRFK
		}
	}
	if j := p.Judge; j != nil {
		if len(j.Models) > 0 {
			c.JudgeModels = j.Models
		}
		if j.MinConfidence != nil {
			c.JudgeMinConfidence = *j.MinConfidence
		}
	}
}
