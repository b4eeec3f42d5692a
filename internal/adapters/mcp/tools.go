package mcpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/kirillkom/well-report-rag/internal/core/domain"
	"github.com/kirillkom/well-report-rag/internal/infrastructure/export"
)

const evidencePreviewChars = 400

type evidenceOutput struct {
	Citation string  `json:"citation"`
	Score    float64 `json:"score"`
	Content  string  `json:"content"`
}

func (s *Server) registerTools() {
	modes := make([]string, 0, len(domain.Modes))
	for _, m := range domain.Modes {
		modes = append(modes, string(m))
	}

	s.mcp.AddTool(mcp.NewTool("retrieve_evidence",
		mcp.WithDescription("Retrieve ranked report excerpts for a query"),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithString("query", mcp.Required(), mcp.Description("search text")),
		mcp.WithString("mode", mcp.Enum(modes...), mcp.Description("query mode, defaults to qa")),
		mcp.WithString("well", mcp.Description("restrict to chunks mentioning this well")),
	), s.handleRetrieve)

	s.mcp.AddTool(mcp.NewTool("ask_question",
		mcp.WithDescription("Answer a question about the indexed well reports with citations"),
		mcp.WithString("question", mcp.Required(), mcp.Description("the question")),
		mcp.WithString("mode", mcp.Enum(modes...), mcp.Description("query mode, detected from the question when empty")),
		mcp.WithString("well", mcp.Description("target well name")),
		mcp.WithBoolean("skip_validation", mcp.Description("skip multi-model validation")),
	), s.handleAsk)

	s.mcp.AddTool(mcp.NewTool("last_trajectory",
		mcp.WithDescription("Return the most recently extracted well trajectory"),
		mcp.WithReadOnlyHintAnnotation(true),
	), s.handleTrajectory)
}

func (s *Server) handleRetrieve(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil || strings.TrimSpace(query) == "" {
		return mcp.NewToolResultError("query is required"), nil
	}
	mode, err := parseOptionalMode(req.GetString("mode", ""), domain.ModeQA)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	evidence, err := s.ports.Retriever.Retrieve(ctx, query, mode, req.GetString("well", ""))
	if err != nil {
		return mcp.NewToolResultErrorFromErr("retrieval failed", err), nil
	}

	out := make([]evidenceOutput, 0, len(evidence))
	for _, ev := range evidence {
		out = append(out, evidenceOutput{
			Citation: ev.Citation,
			Score:    ev.Score,
			Content:  truncate(ev.Content(), evidencePreviewChars),
		})
	}
	return mcp.NewToolResultJSON(map[string]any{"mode": mode, "count": len(out), "evidence": out})
}

func (s *Server) handleAsk(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	question, err := req.RequireString("question")
	if err != nil || strings.TrimSpace(question) == "" {
		return mcp.NewToolResultError("question is required"), nil
	}
	mode, err := parseOptionalMode(req.GetString("mode", ""), "")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	answer, err := s.ports.Query.Ask(ctx, domain.AskRequest{
		Question:       question,
		Mode:           mode,
		Well:           req.GetString("well", ""),
		SkipValidation: req.GetBool("skip_validation", false),
	})
	if err != nil {
		return mcp.NewToolResultErrorFromErr("question failed", err), nil
	}

	var b strings.Builder
	b.WriteString(answer.Text)
	if len(answer.Sources) > 0 {
		b.WriteString("\n\nSources:\n")
		for _, ev := range answer.Sources {
			fmt.Fprintf(&b, "- %s\n", ev.Citation)
		}
	}
	return mcp.NewToolResultText(strings.TrimRight(b.String(), "\n")), nil
}

func (s *Server) handleTrajectory(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	traj, ok := s.ports.Trajectories.LastTrajectory()
	if !ok {
		return mcp.NewToolResultError("no trajectory has been extracted yet; ask an extraction question first"), nil
	}
	var buf bytes.Buffer
	if err := (export.JSONWriter{}).Write(&buf, traj); err != nil {
		return nil, fmt.Errorf("render trajectory: %w", err)
	}
	var structured any
	if err := json.Unmarshal(buf.Bytes(), &structured); err != nil {
		return nil, fmt.Errorf("decode trajectory: %w", err)
	}
	return mcp.NewToolResultStructured(structured, buf.String()), nil
}

func parseOptionalMode(raw string, fallback domain.Mode) (domain.Mode, error) {
	if strings.TrimSpace(raw) == "" {
		return fallback, nil
	}
	return domain.ParseMode(raw)
}

func truncate(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit]) + "..."
}
