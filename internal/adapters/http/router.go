package httpadapter

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/kirillkom/well-report-rag/internal/config"
	"github.com/kirillkom/well-report-rag/internal/core/domain"
	"github.com/kirillkom/well-report-rag/internal/core/ports"
	"github.com/kirillkom/well-report-rag/internal/infrastructure/export"
	"github.com/kirillkom/well-report-rag/internal/observability/metrics"
)

const serviceName = "wellrag-api"

type Router struct {
	cfg          config.Config
	ingest       ports.DocumentIngestor
	query        ports.QueryService
	docs         ports.DocumentReader
	retriever    ports.Retriever
	trajectories ports.TrajectoryService
	nodal        ports.NodalAnalyzer
	metrics      *metrics.HTTPServerMetrics
}

func NewRouter(
	cfg config.Config,
	ingest ports.DocumentIngestor,
	query ports.QueryService,
	docs ports.DocumentReader,
	retriever ports.Retriever,
	trajectories ports.TrajectoryService,
) *Router {
	return &Router{
		cfg:          cfg,
		ingest:       ingest,
		query:        query,
		docs:         docs,
		retriever:    retriever,
		trajectories: trajectories,
	}
}

// WithMetrics exposes /metrics and records request and answer metrics.
func (rt *Router) WithMetrics(m *metrics.HTTPServerMetrics) *Router {
	rt.metrics = m
	return rt
}

// WithNodal enables POST /v1/trajectory/nodal.
func (rt *Router) WithNodal(nodal ports.NodalAnalyzer) *Router {
	rt.nodal = nodal
	return rt
}

func (rt *Router) Handler() http.Handler {
	api := http.NewServeMux()
	api.HandleFunc("/v1/documents", rt.uploadDocument)
	api.HandleFunc("/v1/documents/", rt.getDocumentByID)
	api.HandleFunc("/v1/query", rt.ask)
	api.HandleFunc("/v1/retrieve", rt.retrieve)
	api.HandleFunc("/v1/trajectory", rt.exportTrajectory)
	api.HandleFunc("/v1/trajectory/nodal", rt.runNodal)
	api.HandleFunc("/v1/conversation", rt.clearConversation)

	var guarded http.Handler = api
	guarded = timeoutMiddleware(guarded, rt.cfg.RequestTimeout)
	guarded = backpressureMiddleware(guarded, rt.cfg.MaxInFlight, rt.cfg.BackpressureWait)
	guarded = rateLimitMiddleware(guarded, rt.cfg.RateLimitRPS, rt.cfg.RateLimitBurst, rt.onRateLimited)
	guarded = authMiddleware(guarded, rt.cfg.APIKey)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	if rt.metrics != nil {
		mux.Handle("/metrics", rt.metrics.Handler())
	}
	mux.Handle("/v1/", guarded)

	var handler http.Handler = mux
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(serviceName, handler)
	}
	return requestIDMiddleware(accessLogMiddleware(handler))
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) uploadDocument(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	if rt.ingest == nil {
		writeError(w, domain.WrapError(domain.ErrServiceUnavailable, "upload", errors.New("ingestion is disabled")))
		return
	}
	if limit := rt.cfg.MaxUploadMB << 20; limit > 0 {
		if r.ContentLength > limit {
			rt.recordUpload("too_large")
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{
				"error": fmt.Sprintf("upload exceeds %d MB", rt.cfg.MaxUploadMB),
			})
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, limit)
	}

	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			rt.recordUpload("too_large")
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field 'file' is required"})
		return
	}
	defer file.Close()

	doc, err := rt.ingest.Upload(
		r.Context(),
		fileHeader.Filename,
		fileHeader.Header.Get("Content-Type"),
		file,
	)
	if err != nil {
		if domain.IsKind(err, domain.ErrAlreadyIndexed) {
			rt.recordUpload("duplicate")
		} else {
			rt.recordUpload("error")
		}
		writeError(w, err)
		return
	}

	rt.recordUpload("accepted")
	writeJSON(w, http.StatusAccepted, doc)
}

func (rt *Router) getDocumentByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/v1/documents/")
	if id == "" || strings.Contains(id, "/") {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "document id is required"})
		return
	}

	doc, err := rt.docs.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (rt *Router) ask(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req struct {
		Question       string `json:"question"`
		Mode           string `json:"mode"`
		Well           string `json:"well"`
		SkipValidation bool   `json:"skip_validation"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "question is required"})
		return
	}
	var mode domain.Mode
	if req.Mode != "" {
		parsed, err := domain.ParseMode(req.Mode)
		if err != nil {
			writeError(w, err)
			return
		}
		mode = parsed
	}

	answer, err := rt.query.Ask(r.Context(), domain.AskRequest{
		Question:       req.Question,
		Mode:           mode,
		Well:           req.Well,
		SkipValidation: req.SkipValidation,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	if rt.metrics != nil {
		rt.metrics.RecordAnswer(serviceName, answer)
	}
	writeJSON(w, http.StatusOK, answer)
}

func (rt *Router) retrieve(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req struct {
		Query string `json:"query"`
		Mode  string `json:"mode"`
		Well  string `json:"well"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "query is required"})
		return
	}
	mode := domain.ModeQA
	if req.Mode != "" {
		parsed, err := domain.ParseMode(req.Mode)
		if err != nil {
			writeError(w, err)
			return
		}
		mode = parsed
	}

	evidence, err := rt.retriever.Retrieve(r.Context(), req.Query, mode, req.Well)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"mode": mode, "evidence": evidence})
}

func (rt *Router) exportTrajectory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	writer, err := export.ForFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeError(w, err)
		return
	}
	traj, ok := rt.trajectories.LastTrajectory()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no trajectory has been extracted yet"})
		return
	}

	name := "trajectory"
	if traj.Well != "" {
		name += "_" + strings.ReplaceAll(traj.Well, " ", "_")
	}
	w.Header().Set("Content-Type", writer.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.%s"`, name, writer.Extension()))
	w.WriteHeader(http.StatusOK)
	if err := writer.Write(w, traj); err != nil {
		slog.Error("trajectory_export_failed", "request_id", requestIDFromContext(r.Context()), "error", err)
	}
}

func (rt *Router) runNodal(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	if rt.nodal == nil {
		writeError(w, domain.WrapError(domain.ErrServiceUnavailable, "nodal analysis", errors.New("nodal analysis is disabled")))
		return
	}

	result, err := rt.nodal.Analyze(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (rt *Router) clearConversation(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	rt.query.ClearConversation()
	w.WriteHeader(http.StatusNoContent)
}

func (rt *Router) onRateLimited() {
	if rt.metrics != nil {
		rt.metrics.RecordRateLimited()
	}
}

func (rt *Router) recordUpload(outcome string) {
	if rt.metrics != nil {
		rt.metrics.RecordUpload(serviceName, outcome)
	}
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
