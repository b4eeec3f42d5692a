package usecase

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/kirillkom/well-report-rag/internal/core/domain"
)

const qaSystemPrompt = `Technical analyst. Answer with INLINE citations using exact document names.

RULES:
- Format: "2694 m (NLOG_GS_PUB_110211-EWOR-HAG-GT-01, p.8)"
- Cite after EVERY number/date
- SI units only
- Be precise
`

const summarySystemPrompt = `Technical writer for geothermal well reports. Create structured summary (max 300 words).

CITATION RULES:
- Use exact document name + page
- Format: "2680 m (NLOG_GS_PUB_End-of-well-report-NAALDWIJK-GT-02-S1, p.7)"
- Cite after EVERY fact

Structure:
1. Well Name & Location
2. Depths (MD/TVD) with citations
3. Drilling Dates with citations
4. Key Formations
5. Completion Status

SI units only.`

// buildModePrompt renders the chat-formatted generation prompt for qa and summary modes.
func buildModePrompt(mc domain.ModeConfig, question, memory string, evidence []domain.Evidence, memoryChars int) string {
	var b strings.Builder
	b.WriteString("<|im_start|>system\n")
	switch mc.Mode {
	case domain.ModeSummary:
		b.WriteString(summarySystemPrompt)
	default:
		b.WriteString(qaSystemPrompt)
	}
	b.WriteString("\n<|im_end|>\n<|im_start|>user\n")

	if memory != "" {
		label := "Previous"
		if mc.Mode == domain.ModeSummary {
			label = "Context"
		}
		fmt.Fprintf(&b, "%s: %s", label, truncateRunes(memory, memoryChars))
	}
	fmt.Fprintf(&b, "\n\nQuestion: %s\n\n", question)

	chunks := trimCandidates(evidence, mc.PromptChunks)
	if mc.Mode == domain.ModeSummary {
		fmt.Fprintf(&b, "Documents (%d chunks):\n", len(chunks))
	} else {
		b.WriteString("Documents:\n")
	}
	b.WriteString(renderEvidence(chunks, mc.ChunkChars))
	b.WriteString("\n<|im_end|>\n<|im_start|>assistant\n")
	if mc.Mode == domain.ModeSummary {
		b.WriteString("**Well Summary:**\n")
	}
	return b.String()
}

func renderEvidence(evidence []domain.Evidence, chunkChars int) string {
	parts := make([]string, 0, len(evidence))
	for _, ev := range evidence {
		parts = append(parts, fmt.Sprintf("[%s, p.%s]\n%s",
			documentStem(ev.Entry.MetaString(domain.MetaSourceFile)),
			pageLabel(ev.Entry),
			truncateRunes(ev.Content(), chunkChars),
		))
	}
	return strings.Join(parts, "\n\n")
}

func documentStem(source string) string {
	if source == "" {
		return "Unknown"
	}
	base := filepath.Base(source)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func pageLabel(entry domain.IndexEntry) string {
	if page := entry.MetaString(domain.MetaPageNumber); page != "" {
		return page
	}
	return "?"
}

func renderTrajectoryAnswer(traj domain.Trajectory) string {
	if len(traj.Points) == 0 {
		return "No trajectory found in retrieved chunks.\n\n" +
			"Try:\n" +
			"- More specific query: 'Extract trajectory table from HAG-GT-01'\n" +
			"- Check if document contains trajectory data"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "**Trajectory Extracted:** %d points\n\n", len(traj.Points))
	fmt.Fprintf(&b, "**Confidence:** %.0f%%\n", traj.Confidence*100)
	fmt.Fprintf(&b, "**Sources:** %d chunks analyzed\n\n", traj.SourceChunks)
	b.WriteString("| MD (m) | TVD (m) | ID (m) |\n|--------|---------|--------|\n")
	for _, p := range trimCandidates(traj.Points, trajectoryTableRows) {
		fmt.Fprintf(&b, "| %.1f | %.1f | %.3f |\n", p.MD, p.TVD, p.ID)
	}
	if len(traj.Points) > trajectoryTableRows {
		fmt.Fprintf(&b, "\n*Showing %d of %d points*", trajectoryTableRows, len(traj.Points))
	}
	return b.String()
}

// decorateAnswer appends the validation outcome when the answer did not pass.
func decorateAnswer(text string, verdict domain.Verdict) string {
	switch {
	case verdict.Status == domain.VerdictDegraded:
		return text + "\n\n### Validation\nValidation unavailable: no judge model responded."
	case verdict.IsValid:
		return text
	}

	var b strings.Builder
	b.WriteString(text)
	b.WriteString("\n\n### Validation\n")
	fmt.Fprintf(&b, "Confidence: %.0f%%\n", verdict.Confidence*100)
	if len(verdict.Issues) > 0 {
		fmt.Fprintf(&b, "Issues: %s", strings.Join(trimCandidates(verdict.Issues, answerIssueLimit), ", "))
	}
	return b.String()
}
