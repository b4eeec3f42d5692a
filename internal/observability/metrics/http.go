package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kirillkom/well-report-rag/internal/core/domain"
)

const namespace = "wellrag"

type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	queryTotal       *prometheus.CounterVec
	queryDuration    *prometheus.HistogramVec
	querySources     *prometheus.HistogramVec
	queryNoContext   *prometheus.CounterVec
	validationTotal  *prometheus.CounterVec
	validationScore  prometheus.Histogram
	trajectoryPoints prometheus.Histogram
	rateLimitedTotal prometheus.Counter
	uploadsTotal     *prometheus.CounterVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()
	constLabels := prometheus.Labels{"service": service}

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "http",
			Name:        "in_flight_requests",
			Help:        "Number of in-flight HTTP requests.",
			ConstLabels: constLabels,
		},
	)
	queryTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "query",
			Name:      "requests_total",
			Help:      "Total answered questions by mode.",
		},
		[]string{"service", "mode"},
	)
	queryDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "query",
			Name:      "duration_seconds",
			Help:      "End-to-end question duration in seconds.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600, 900},
		},
		[]string{"service", "mode"},
	)
	querySources := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "query",
			Name:      "sources",
			Help:      "Distribution of evidence chunks per answer.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 10, 15, 20},
		},
		[]string{"service", "mode"},
	)
	queryNoContext := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "query",
			Name:      "no_context_total",
			Help:      "Total answers produced without evidence.",
		},
		[]string{"service", "mode"},
	)
	validationTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "validation",
			Name:      "verdicts_total",
			Help:      "Validation verdicts by status and outcome.",
		},
		[]string{"service", "status", "valid"},
	)
	validationScore := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace:   namespace,
			Subsystem:   "validation",
			Name:        "confidence",
			Help:        "Distribution of ensemble confidence.",
			Buckets:     []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1},
			ConstLabels: constLabels,
		},
	)
	trajectoryPoints := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace:   namespace,
			Subsystem:   "trajectory",
			Name:        "points",
			Help:        "Points per extracted trajectory.",
			Buckets:     []float64{0, 1, 5, 10, 25, 50, 100},
			ConstLabels: constLabels,
		},
	)
	rateLimitedTotal := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "http",
			Name:        "rate_limited_total",
			Help:        "Requests rejected by the rate limiter.",
			ConstLabels: constLabels,
		},
	)
	uploadsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "uploads_total",
			Help:      "Uploads by outcome.",
		},
		[]string{"service", "outcome"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		queryTotal,
		queryDuration,
		querySources,
		queryNoContext,
		validationTotal,
		validationScore,
		trajectoryPoints,
		rateLimitedTotal,
		uploadsTotal,
	)

	return &HTTPServerMetrics{
		registry:         registry,
		requestTotal:     requestTotal,
		requestDuration:  requestDuration,
		requestInFlight:  requestInFlight,
		queryTotal:       queryTotal,
		queryDuration:    queryDuration,
		querySources:     querySources,
		queryNoContext:   queryNoContext,
		validationTotal:  validationTotal,
		validationScore:  validationScore,
		trajectoryPoints: trajectoryPoints,
		rateLimitedTotal: rateLimitedTotal,
		uploadsTotal:     uploadsTotal,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := normalizePath(r.URL.Path)
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(
			service,
			r.Method,
			path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

func normalizePath(path string) string {
	switch {
	case strings.HasPrefix(path, "/v1/documents/"):
		return "/v1/documents/{document_id}"
	default:
		return path
	}
}

// RecordAnswer observes one answered question, its evidence and its verdict.
func (m *HTTPServerMetrics) RecordAnswer(service string, answer *domain.Answer) {
	if answer == nil {
		return
	}
	mode := string(answer.Mode)
	if mode == "" {
		mode = "unknown"
	}
	m.queryTotal.WithLabelValues(service, mode).Inc()
	m.queryDuration.WithLabelValues(service, mode).Observe(answer.Duration.Seconds())
	m.querySources.WithLabelValues(service, mode).Observe(float64(len(answer.Sources)))
	if len(answer.Sources) == 0 {
		m.queryNoContext.WithLabelValues(service, mode).Inc()
	}
	if v := answer.Verdict; v != nil {
		m.validationTotal.WithLabelValues(service, string(v.Status), strconv.FormatBool(v.IsValid)).Inc()
		m.validationScore.Observe(v.Confidence)
	}
	if t := answer.Trajectory; t != nil {
		m.trajectoryPoints.Observe(float64(len(t.Points)))
	}
}

func (m *HTTPServerMetrics) RecordRateLimited() {
	m.rateLimitedTotal.Inc()
}

func (m *HTTPServerMetrics) RecordUpload(service, outcome string) {
	m.uploadsTotal.WithLabelValues(service, outcome).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Flush() {
	flusher, ok := w.ResponseWriter.(http.Flusher)
	if ok {
		flusher.Flush()
	}
}

func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not implement http.Hijacker")
	}
	return hijacker.Hijack()
}
