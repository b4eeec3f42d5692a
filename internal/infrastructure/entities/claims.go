package entities

import (
	"regexp"

	"github.com/kirillkom/well-report-rag/internal/core/domain"
)

const maxClaims = 15

type claimRule struct {
	kind domain.ClaimKind
	re   *regexp.Regexp
}

var defaultClaimRules = []claimRule{
	{kind: domain.ClaimMeasurement, re: regexp.MustCompile(`\d+\.?\d*\s*(?:meters|m|bar|°C|kg/m³|TVD|MD)`)},
	{kind: domain.ClaimDate, re: regexp.MustCompile(monthNames + `\s+\d{1,2},?\s+\d{4}`)},
	{kind: domain.ClaimISODate, re: regexp.MustCompile(`\d{4}-\d{2}-\d{2}`)},
	{kind: domain.ClaimIdentifier, re: regexp.MustCompile(`[A-Z]{2,10}-GT-\d{2}(?:-S\d+)?`)},
}

// ExtractClaims lists checkable factual tokens in a generated answer, capped at 15.
func (e *Extractor) ExtractClaims(text string) []domain.Claim {
	claims := make([]domain.Claim, 0, maxClaims)
	seen := make(map[string]struct{})
	for _, r := range e.claimRules {
		for _, m := range r.re.FindAllString(text, -1) {
			if _, dup := seen[m]; dup {
				continue
			}
			seen[m] = struct{}{}
			claims = append(claims, domain.Claim{Text: m, Kind: r.kind})
			if len(claims) == maxClaims {
				return claims
			}
		}
	}
	return claims
}
