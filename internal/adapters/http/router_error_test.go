package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kirillkom/well-report-rag/internal/config"
	"github.com/kirillkom/well-report-rag/internal/core/domain"
)

type ingestErrFake struct {
	err error
}

func (f ingestErrFake) Upload(context.Context, string, string, io.Reader) (*domain.Document, error) {
	return nil, f.err
}

type queryFake struct {
	err     error
	got     domain.AskRequest
	cleared bool
}

func (f *queryFake) Ask(_ context.Context, req domain.AskRequest) (*domain.Answer, error) {
	f.got = req
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Answer{Text: "Total depth is 2694 m (HAG-GT-01, p.8)", Mode: domain.ModeQA, Sources: []domain.Evidence{}}, nil
}

func (f *queryFake) ClearConversation() { f.cleared = true }

type docsErrFake struct {
	err error
}

func (f docsErrFake) GetByID(context.Context, string) (*domain.Document, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Document{ID: "doc-1", Filename: "a.pdf", MimeType: "application/pdf", StoragePath: "a", Status: domain.StatusReady}, nil
}

type retrieverFake struct {
	mode domain.Mode
	err  error
}

func (f *retrieverFake) Retrieve(_ context.Context, _ string, mode domain.Mode, _ string) ([]domain.Evidence, error) {
	f.mode = mode
	return []domain.Evidence{}, f.err
}

type trajectoryFake struct {
	traj domain.Trajectory
	ok   bool
}

func (f trajectoryFake) LastTrajectory() (domain.Trajectory, bool) { return f.traj, f.ok }

func newTestRouter(cfg config.Config, ingest ingestErrFake, query *queryFake, docs docsErrFake) http.Handler {
	return NewRouter(cfg, ingest, query, docs, &retrieverFake{}, trajectoryFake{}).Handler()
}

func TestQueryMapsDomainInvalidInputTo400(t *testing.T) {
	handler := newTestRouter(
		config.Config{},
		ingestErrFake{},
		&queryFake{err: domain.WrapError(domain.ErrInvalidInput, "ask", errors.New("bad query"))},
		docsErrFake{},
	)

	payload, _ := json.Marshal(map[string]any{"question": "test"})
	req := httptest.NewRequest(http.MethodPost, "/v1/query", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestQueryRejectsUnknownMode(t *testing.T) {
	query := &queryFake{}
	handler := newTestRouter(config.Config{}, ingestErrFake{}, query, docsErrFake{})

	payload, _ := json.Marshal(map[string]any{"question": "depth?", "mode": "poetry"})
	req := httptest.NewRequest(http.MethodPost, "/v1/query", bytes.NewReader(payload))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
	if query.got.Question != "" {
		t.Fatalf("query use case must not be called for an unknown mode")
	}
}

func TestQueryPassesModeAndWell(t *testing.T) {
	query := &queryFake{}
	handler := newTestRouter(config.Config{}, ingestErrFake{}, query, docsErrFake{})

	payload, _ := json.Marshal(map[string]any{"question": "Summarize the well", "mode": "SUMMARY", "well": "HAG-GT-01"})
	req := httptest.NewRequest(http.MethodPost, "/v1/query", bytes.NewReader(payload))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	if query.got.Mode != domain.ModeSummary || query.got.Well != "HAG-GT-01" {
		t.Fatalf("unexpected request forwarded: %+v", query.got)
	}
	var answer domain.Answer
	if err := json.NewDecoder(res.Body).Decode(&answer); err != nil {
		t.Fatalf("decode answer: %v", err)
	}
	if answer.Text == "" {
		t.Fatalf("expected answer text")
	}
}

func TestQueryMapsUnavailableTo503(t *testing.T) {
	handler := newTestRouter(
		config.Config{},
		ingestErrFake{},
		&queryFake{err: domain.WrapError(domain.ErrServiceUnavailable, "count", errors.New("db down"))},
		docsErrFake{},
	)

	payload, _ := json.Marshal(map[string]any{"question": "depth?"})
	req := httptest.NewRequest(http.MethodPost, "/v1/query", bytes.NewReader(payload))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", res.Code)
	}
}

func TestGetDocumentByIDReturns404ForNotFound(t *testing.T) {
	handler := newTestRouter(
		config.Config{},
		ingestErrFake{},
		&queryFake{},
		docsErrFake{err: domain.WrapError(domain.ErrDocumentNotFound, "get", errors.New("id=missing"))},
	)

	req := httptest.NewRequest(http.MethodGet, "/v1/documents/missing", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.Code)
	}
}

func TestUploadDuplicateReturns409(t *testing.T) {
	handler := newTestRouter(
		config.Config{},
		ingestErrFake{err: domain.WrapError(domain.ErrAlreadyIndexed, "upload", errors.New("report.pdf"))},
		&queryFake{},
		docsErrFake{},
	)

	req := multipartUpload(t, "report.pdf", []byte("%PDF-1.4"))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", res.Code)
	}
}

func TestAPIKeyIsRequiredWhenConfigured(t *testing.T) {
	handler := newTestRouter(config.Config{APIKey: "secret"}, ingestErrFake{}, &queryFake{}, docsErrFake{})

	req := httptest.NewRequest(http.MethodGet, "/v1/documents/doc-1", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", res.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/v1/documents/doc-1", nil)
	req.Header.Set("Authorization", "Bearer secret")
	res = httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d", res.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	res = httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("healthz must stay open, got %d", res.Code)
	}
}
