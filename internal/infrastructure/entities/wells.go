package entities

import (
	"regexp"
	"sort"
	"strings"
)

type wellRule struct {
	re      *regexp.Regexp
	rewrite string
}

var defaultWellRules = []wellRule{
	{re: regexp.MustCompile(`\b[A-Z]{2,10}-GT-\d{2}(?:-S\d+)?\b`)},
	{re: regexp.MustCompile(`\b[A-Z]{2,4}-GT-\d{2}(?:-S\d+)?(?:-\d{2})?\b`)},
	{re: regexp.MustCompile(`\b([A-Z]{2,4})\s+GT\s+(\d{2})\b`), rewrite: "$1-GT-$2"},
}

// DetectWells returns the distinct well names mentioned anywhere in text, sorted.
// Spaced spellings such as "HAG GT 01" are normalised to "HAG-GT-01".
func (e *Extractor) DetectWells(text string) []string {
	seen := make(map[string]struct{})
	for _, r := range e.wellRules {
		for _, idx := range r.re.FindAllStringSubmatchIndex(text, -1) {
			var name string
			if r.rewrite == "" {
				name = text[idx[0]:idx[1]]
			} else {
				name = string(r.re.ExpandString(nil, r.rewrite, text, idx))
			}
			seen[strings.ToUpper(name)] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
