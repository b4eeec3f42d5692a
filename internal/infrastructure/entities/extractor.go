package entities

import (
	"regexp"
	"sort"

	"github.com/kirillkom/well-report-rag/internal/core/domain"
)

const monthNames = `(?:January|February|March|April|May|June|July|August|September|October|November|December)`

type rule struct {
	class domain.EntityClass
	re    *regexp.Regexp
	group int
}

// Rules are evaluated in order; every class is matched independently of the others.
var defaultRules = []rule{
	{class: domain.EntityIdentifier, re: regexp.MustCompile(`\b[A-Z]{2,10}-GT-\d{2}(?:-S\d+)?\b`)},
	{class: domain.EntityDepth, re: regexp.MustCompile(`(\d{3,4}\.?\d*)\s*(?:m|meters)\b`), group: 1},
	{class: domain.EntityDate, re: regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}\b`)},
	{class: domain.EntityDate, re: regexp.MustCompile(`\b\d{1,2}/\d{1,2}/\d{4}\b`)},
	{class: domain.EntityDate, re: regexp.MustCompile(`\b` + monthNames + `\s+\d{1,2},?\s+\d{4}\b`)},
	{class: domain.EntityTemperature, re: regexp.MustCompile(`(\d{1,3}\.?\d*)\s*(?:°C|celsius)`), group: 1},
	{class: domain.EntityPressure, re: regexp.MustCompile(`(\d{1,4}\.?\d*)\s*(?:bar|psi|MPa)`), group: 1},
}

// Extractor pulls well names, measurements and dates out of free text.
// It holds no mutable state and is safe for concurrent use.
type Extractor struct {
	rules      []rule
	wellRules  []wellRule
	claimRules []claimRule
}

func New() *Extractor {
	return &Extractor{
		rules:      defaultRules,
		wellRules:  defaultWellRules,
		claimRules: defaultClaimRules,
	}
}

func (e *Extractor) Extract(text string) domain.EntitySet {
	out := make(domain.EntitySet, len(domain.EntityClasses))
	seen := make(map[domain.EntityClass]map[string]struct{}, len(domain.EntityClasses))
	for _, r := range e.rules {
		for _, m := range r.re.FindAllStringSubmatch(text, -1) {
			if r.group >= len(m) {
				continue
			}
			value := m[r.group]
			if value == "" {
				continue
			}
			classSeen, ok := seen[r.class]
			if !ok {
				classSeen = make(map[string]struct{})
				seen[r.class] = classSeen
			}
			if _, dup := classSeen[value]; dup {
				continue
			}
			classSeen[value] = struct{}{}
			out[r.class] = append(out[r.class], value)
		}
	}
	sort.Strings(out[domain.EntityIdentifier])
	return out
}
