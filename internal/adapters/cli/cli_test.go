package cli

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kirillkom/well-report-rag/internal/core/domain"
)

type ingestFake struct {
	uploaded []string
	mimes    []string
	dupes    map[string]bool
}

func (f *ingestFake) Upload(_ context.Context, filename, mimeType string, body io.Reader) (*domain.Document, error) {
	if f.dupes[filename] {
		return nil, domain.WrapError(domain.ErrAlreadyIndexed, "upload", errors.New(filename))
	}
	if _, err := io.ReadAll(body); err != nil {
		return nil, err
	}
	f.uploaded = append(f.uploaded, filename)
	f.mimes = append(f.mimes, mimeType)
	return &domain.Document{ID: "doc-" + filename, Filename: filename, Status: domain.StatusUploaded}, nil
}

type docsFake struct{}

func (docsFake) GetByID(_ context.Context, id string) (*domain.Document, error) {
	return &domain.Document{
		ID:         id,
		Filename:   strings.TrimPrefix(id, "doc-"),
		Status:     domain.StatusReady,
		PageCount:  12,
		ChunkCount: 40,
		Wells:      []string{"HAG-GT-01"},
	}, nil
}

type queryFake struct {
	requests []domain.AskRequest
	answers  map[domain.Mode]string
	traj     *domain.Trajectory
	cleared  int
}

func (f *queryFake) Ask(_ context.Context, req domain.AskRequest) (*domain.Answer, error) {
	f.requests = append(f.requests, req)
	text := f.answers[req.Mode]
	if text == "" {
		text = "TD is 2694 m (HAG-GT-01, p.8)"
	}
	return &domain.Answer{
		Text:       text,
		Mode:       req.Mode,
		Sources:    []domain.Evidence{{Citation: "HAG-GT-01, p.8", Score: 0.91}},
		Trajectory: f.traj,
	}, nil
}

func (f *queryFake) ClearConversation() { f.cleared++ }

func (f *queryFake) LastTrajectory() (domain.Trajectory, bool) {
	if f.traj == nil {
		return domain.Trajectory{}, false
	}
	return *f.traj, true
}

type retrieverFake struct {
	mode domain.Mode
}

func (f *retrieverFake) Retrieve(_ context.Context, _ string, mode domain.Mode, _ string) ([]domain.Evidence, error) {
	f.mode = mode
	return []domain.Evidence{{
		Entry:    domain.IndexEntry{ID: "c1", Content: "Casing   shoe\nset at 2500 m"},
		Score:    0.7,
		Citation: "HAG-GT-01, p.3",
	}}, nil
}

type nodalFake struct {
	calls  int
	result domain.NodalResult
}

func (f *nodalFake) Analyze(context.Context) (*domain.NodalResult, error) {
	f.calls++
	result := f.result
	return &result, nil
}

type fixture struct {
	ingest    *ingestFake
	query     *queryFake
	retriever *retrieverFake
	nodal     *nodalFake
	opened    int
	released  int
	warmed    int
}

func newFixture() *fixture {
	return &fixture{
		ingest:    &ingestFake{dupes: map[string]bool{}},
		query:     &queryFake{answers: map[domain.Mode]string{}},
		retriever: &retrieverFake{},
		nodal:     &nodalFake{},
	}
}

func (f *fixture) factory(context.Context) (*Services, func(), error) {
	f.opened++
	return &Services{
		Ingest:       f.ingest,
		Docs:         docsFake{},
		Query:        f.query,
		Retriever:    f.retriever,
		Trajectories: f.query,
		Nodal:        f.nodal,
		Warm: func(context.Context) error {
			f.warmed++
			return nil
		},
	}, func() { f.released++ }, nil
}

func run(t *testing.T, f *fixture, stdin string, args ...string) (string, error) {
	t.Helper()
	root := NewRootCommand(f.factory)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestHelpDoesNotOpenServices(t *testing.T) {
	f := newFixture()
	out, err := run(t, f, "", "--help")
	if err != nil {
		t.Fatalf("help error = %v", err)
	}
	if f.opened != 0 {
		t.Fatalf("help must not open services")
	}
	for _, name := range []string{"ingest", "ask", "retrieve", "trajectory", "chat", "warm", "mcp"} {
		if !strings.Contains(out, name) {
			t.Fatalf("expected %q in help:\n%s", name, out)
		}
	}
}

func TestAskRequiresExactlyOneArg(t *testing.T) {
	_, err := run(t, newFixture(), "", "ask")
	if err == nil || !strings.Contains(err.Error(), "accepts 1 arg(s)") {
		t.Fatalf("expected arg count error, got %v", err)
	}
}

func TestAskPrintsAnswerAndSources(t *testing.T) {
	f := newFixture()
	out, err := run(t, f, "", "ask", "--mode", "qa", "--well", "HAG-GT-01", "--no-validate", "What is the TD?")
	if err != nil {
		t.Fatalf("ask error = %v", err)
	}
	req := f.query.requests[0]
	if req.Mode != domain.ModeQA || req.Well != "HAG-GT-01" || !req.SkipValidation {
		t.Fatalf("unexpected request %+v", req)
	}
	if !strings.Contains(out, "2694 m") || !strings.Contains(out, "[1] HAG-GT-01, p.8 (0.91)") {
		t.Fatalf("unexpected output:\n%s", out)
	}
	if f.released != 1 {
		t.Fatalf("expected services released once, got %d", f.released)
	}
}

func TestAskRejectsUnknownMode(t *testing.T) {
	f := newFixture()
	_, err := run(t, f, "", "ask", "--mode", "poetry", "depth?")
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	if len(f.query.requests) != 0 {
		t.Fatalf("query must not run for an unknown mode")
	}
}

func TestAskCompareCrossChecksFacts(t *testing.T) {
	f := newFixture()
	f.query.answers[domain.ModeQA] = "TD is 2694 m"
	f.query.answers[domain.ModeSummary] = "The well reached 1500 m"

	out, err := run(t, f, "", "ask", "--compare", "How deep is HAG-GT-01?")
	if err != nil {
		t.Fatalf("ask --compare error = %v", err)
	}
	if len(f.query.requests) != 2 || !f.query.requests[0].SkipValidation {
		t.Fatalf("expected two unvalidated answers, got %+v", f.query.requests)
	}
	if !strings.Contains(out, "=== QA ===") || !strings.Contains(out, "=== SUMMARY ===") {
		t.Fatalf("expected both answers:\n%s", out)
	}
	if !strings.Contains(out, "Fact anomaly") {
		t.Fatalf("expected deviating depths to be flagged:\n%s", out)
	}
}

func TestIngestSkipsDuplicatesAndReportsCounts(t *testing.T) {
	dir := t.TempDir()
	fresh := filepath.Join(dir, "report.pdf")
	dupe := filepath.Join(dir, "old.txt")
	for _, p := range []string{fresh, dupe} {
		if err := os.WriteFile(p, []byte("GT-01 reached 2694 m"), 0o600); err != nil {
			t.Fatalf("WriteFile() error = %v", err)
		}
	}

	f := newFixture()
	f.ingest.dupes["old.txt"] = true
	out, err := run(t, f, "", "ingest", fresh, dupe)
	if err != nil {
		t.Fatalf("ingest error = %v", err)
	}
	if len(f.ingest.uploaded) != 1 || f.ingest.mimes[0] != "application/pdf" {
		t.Fatalf("unexpected uploads %v mimes %v", f.ingest.uploaded, f.ingest.mimes)
	}
	if !strings.Contains(out, "report.pdf: ready, 12 pages, 40 chunks, wells HAG-GT-01") {
		t.Fatalf("unexpected output:\n%s", out)
	}
	if !strings.Contains(out, "old.txt: already indexed, skipped") {
		t.Fatalf("expected skip notice:\n%s", out)
	}
}

func TestIngestMissingFileFails(t *testing.T) {
	_, err := run(t, newFixture(), "", "ingest", filepath.Join(t.TempDir(), "missing.pdf"))
	if err == nil || !strings.Contains(err.Error(), "1 of 1 files failed") {
		t.Fatalf("expected failure summary, got %v", err)
	}
}

func TestRetrieveDefaultsToQA(t *testing.T) {
	f := newFixture()
	out, err := run(t, f, "", "retrieve", "casing shoe")
	if err != nil {
		t.Fatalf("retrieve error = %v", err)
	}
	if f.retriever.mode != domain.ModeQA {
		t.Fatalf("expected qa mode, got %q", f.retriever.mode)
	}
	if !strings.Contains(out, "Casing shoe set at 2500 m") {
		t.Fatalf("expected collapsed snippet:\n%s", out)
	}
}

func TestTrajectoryWritesExport(t *testing.T) {
	f := newFixture()
	f.query.traj = &domain.Trajectory{
		Well:       "HAG-GT-01",
		Points:     []domain.TrajectoryPoint{{MD: 1000, TVD: 990, ID: 0.216}},
		Confidence: 0.02,
		Method:     domain.TrajectoryRegex,
	}
	out := filepath.Join(t.TempDir(), "traj.json")

	stdout, err := run(t, f, "", "trajectory", "--format", "json", "--out", out, "HAG-GT-01")
	if err != nil {
		t.Fatalf("trajectory error = %v", err)
	}
	if f.query.requests[0].Mode != domain.ModeExtract {
		t.Fatalf("expected extract mode, got %q", f.query.requests[0].Mode)
	}
	raw, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if !strings.Contains(string(raw), "990") || !strings.Contains(stdout, "1 points") {
		t.Fatalf("unexpected export %s / output %s", raw, stdout)
	}
}

func TestTrajectoryWithoutPointsFails(t *testing.T) {
	_, err := run(t, newFixture(), "", "trajectory", "--format", "json", "--out", filepath.Join(t.TempDir(), "t.json"), "GT-09")
	if err == nil || !strings.Contains(err.Error(), "no trajectory found") {
		t.Fatalf("expected no trajectory error, got %v", err)
	}
}

func TestNodalExtractsThenAnalyzes(t *testing.T) {
	f := newFixture()
	f.query.traj = &domain.Trajectory{
		Well:   "HAG-GT-01",
		Points: []domain.TrajectoryPoint{{MD: 1000, TVD: 990, ID: 0.216}, {MD: 1500, TVD: 1420, ID: 0.216}},
		Method: domain.TrajectoryRegex,
	}
	f.nodal.result = domain.NodalResult{Succeeded: true, Points: 2, Output: "Operating point: 42 m3/h"}

	out, err := run(t, f, "", "nodal", "HAG-GT-01")
	if err != nil {
		t.Fatalf("nodal error = %v", err)
	}
	if f.query.requests[0].Mode != domain.ModeExtract || f.nodal.calls != 1 {
		t.Fatalf("expected extract then analysis, got %+v / %d calls", f.query.requests, f.nodal.calls)
	}
	if !strings.Contains(out, "over 2 points") || !strings.Contains(out, "Operating point: 42 m3/h") {
		t.Fatalf("unexpected output:\n%s", out)
	}
}

func TestNodalScriptFailureReturnsError(t *testing.T) {
	f := newFixture()
	f.query.traj = &domain.Trajectory{Points: []domain.TrajectoryPoint{{MD: 1000, TVD: 990, ID: 0.216}}}
	f.nodal.result = domain.NodalResult{ExitCode: 2, Output: "ModuleNotFoundError: numpy"}

	out, err := run(t, f, "", "nodal", "HAG-GT-01")
	if err == nil || !strings.Contains(err.Error(), "exit code 2") {
		t.Fatalf("expected exit code error, got %v", err)
	}
	if !strings.Contains(out, "numpy") {
		t.Fatalf("expected script stderr in output:\n%s", out)
	}
}

func TestNodalWithoutTrajectorySkipsAnalysis(t *testing.T) {
	f := newFixture()
	_, err := run(t, f, "", "nodal", "GT-09")
	if err == nil || !strings.Contains(err.Error(), "no trajectory found") || f.nodal.calls != 0 {
		t.Fatalf("expected no trajectory error without analysis, got %v (%d calls)", err, f.nodal.calls)
	}
}

func TestChatKeepsConversationUntilCleared(t *testing.T) {
	f := newFixture()
	out, err := run(t, f, "What is the TD?\n/clear\nAnd the casing?\n/quit\nignored\n", "chat")
	if err != nil {
		t.Fatalf("chat error = %v", err)
	}
	if len(f.query.requests) != 2 || f.query.cleared != 1 {
		t.Fatalf("expected two questions and one clear, got %d/%d", len(f.query.requests), f.query.cleared)
	}
	if !strings.Contains(out, "Conversation cleared.") {
		t.Fatalf("unexpected output:\n%s", out)
	}
}

func TestWarm(t *testing.T) {
	f := newFixture()
	out, err := run(t, f, "", "warm")
	if err != nil {
		t.Fatalf("warm error = %v", err)
	}
	if f.warmed != 1 || !strings.Contains(out, "Indices warmed.") {
		t.Fatalf("expected warm to run, got %d: %s", f.warmed, out)
	}
}

func TestMissingFactoryReportsNotConfigured(t *testing.T) {
	root := NewRootCommand(nil)
	root.SetOut(io.Discard)
	root.SetArgs([]string{"warm"})
	if err := root.ExecuteContext(context.Background()); !errors.Is(err, errNotConfigured) {
		t.Fatalf("expected errNotConfigured, got %v", err)
	}
}
