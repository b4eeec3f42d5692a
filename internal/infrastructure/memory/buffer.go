package memory

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/kirillkom/well-report-rag/internal/core/domain"
)

const (
	DefaultSize = 10

	answerStoreChars  = 500
	contextTurns      = 3
	contextQueryChars = 100
	contextAnswerChar = 200

	MetaWellName = "well_name"
	MetaMode     = "mode"
)

var (
	wellMention = regexp.MustCompile(`[A-Z]{2,10}-GT-\d{2}(?:-S\d+)?`)
	depthFact   = regexp.MustCompile(`(\d{3,4})\s*m`)
)

// Buffer keeps the last N conversation turns and a per-well fact sheet.
type Buffer struct {
	size      int
	wellFacts bool
	now       func() time.Time

	mu    sync.Mutex
	turns []domain.Turn
	facts domain.WellFacts
}

func NewBuffer(size int, wellFacts bool) *Buffer {
	if size <= 0 {
		size = DefaultSize
	}
	return &Buffer{
		size:      size,
		wellFacts: wellFacts,
		now:       time.Now,
		facts:     make(domain.WellFacts),
	}
}

func (b *Buffer) Add(query, answer string, metadata map[string]string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	meta := make(map[string]string, len(metadata))
	for k, v := range metadata {
		if v != "" {
			meta[k] = v
		}
	}
	b.turns = append(b.turns, domain.Turn{
		At:       b.now().UTC(),
		Query:    query,
		Answer:   truncate(answer, answerStoreChars),
		Metadata: meta,
	})
	if len(b.turns) > b.size {
		b.turns = append([]domain.Turn(nil), b.turns[len(b.turns)-b.size:]...)
	}

	well := meta[MetaWellName]
	if !b.wellFacts || well == "" {
		return
	}
	if _, ok := b.facts[well]; !ok {
		b.facts[well] = make(map[string]string)
	}
	if strings.Contains(strings.ToLower(answer), "depth") {
		if m := depthFact.FindStringSubmatch(answer); m != nil {
			b.facts[well]["depth"] = m[1]
		}
	}
}

// Context renders the last turns and the known facts of wells named in the query.
func (b *Buffer) Context(query string) string {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.turns) == 0 {
		return ""
	}

	var parts []string
	start := max(0, len(b.turns)-contextTurns)
	for _, turn := range b.turns[start:] {
		parts = append(parts, fmt.Sprintf("Previous Q: %s\nA: %s",
			truncate(turn.Query, contextQueryChars),
			truncate(turn.Answer, contextAnswerChar),
		))
	}

	for _, well := range wellMention.FindAllString(query, -1) {
		facts, ok := b.facts[well]
		if !ok {
			continue
		}
		parts = append(parts, fmt.Sprintf("\nKnown facts about %s: %s", well, formatFacts(facts)))
	}
	return strings.Join(parts, "\n\n")
}

func (b *Buffer) Turns() []domain.Turn {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]domain.Turn(nil), b.turns...)
}

func (b *Buffer) Facts() domain.WellFacts {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(domain.WellFacts, len(b.facts))
	for well, facts := range b.facts {
		cp := make(map[string]string, len(facts))
		for k, v := range facts {
			cp[k] = v
		}
		out[well] = cp
	}
	return out
}

func (b *Buffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.turns = nil
	b.facts = make(domain.WellFacts)
}

func formatFacts(facts map[string]string) string {
	keys := make([]string, 0, len(facts))
	for k := range facts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%s", k, facts[k]))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
