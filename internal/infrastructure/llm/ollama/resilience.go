package ollama

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/kirillkom/well-report-rag/internal/core/domain"
	"github.com/kirillkom/well-report-rag/internal/infrastructure/resilience"
)

// HTTPStatusError is a non-2xx reply from Ollama with the response body kept for logs.
type HTTPStatusError struct {
	Operation  string
	StatusCode int
	Status     string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	if e == nil {
		return "ollama status error"
	}
	if strings.TrimSpace(e.Body) == "" {
		return fmt.Sprintf("ollama %s status: %s", e.Operation, e.Status)
	}
	return fmt.Sprintf("ollama %s status: %s: %s", e.Operation, e.Status, strings.TrimSpace(e.Body))
}

// modelMissing reports Ollama's 404 for a model that has not been pulled.
func (e *HTTPStatusError) modelMissing() bool {
	return e.StatusCode == http.StatusNotFound && strings.Contains(strings.ToLower(e.Body), "model")
}

var (
	retryTransient = resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	failPermanent  = resilience.ErrorClassification{RecordFailure: true}
	ignoreFailure  = resilience.ErrorClassification{}
)

func classifyOllamaError(err error) resilience.ErrorClassification {
	var statusErr *HTTPStatusError
	var netErr net.Error
	switch {
	case err == nil, errors.Is(err, context.Canceled):
		return ignoreFailure
	case errors.Is(err, context.DeadlineExceeded):
		// The executor retries per-attempt deadlines on its own.
		return failPermanent
	case resilience.IsCircuitOpen(err):
		return retryTransient
	case errors.As(err, &statusErr):
		if isRetryableHTTPStatus(statusErr.StatusCode) {
			return retryTransient
		}
		return ignoreFailure
	case errors.As(err, &netErr):
		return retryTransient
	default:
		return failPermanent
	}
}

// wrapUnavailableIfNeeded tags transport failures with ErrServiceUnavailable and a
// missing model with ErrConfiguration. Other errors pass through unchanged.
func wrapUnavailableIfNeeded(operation string, err error) error {
	if err == nil || domain.IsKind(err, domain.ErrServiceUnavailable) || domain.IsKind(err, domain.ErrConfiguration) {
		return err
	}

	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) && statusErr.modelMissing() {
		return domain.WrapError(domain.ErrConfiguration, operation, err)
	}
	if classifyOllamaError(err).Retryable || resilience.IsCircuitOpen(err) || errors.Is(err, context.DeadlineExceeded) {
		return domain.WrapError(domain.ErrServiceUnavailable, operation, err)
	}
	return err
}

func isRetryableHTTPStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusRequestTimeout, http.StatusTooManyRequests, http.StatusInternalServerError,
		http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}
