package nats

import (
	"context"
	"errors"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/well-report-rag/internal/core/domain"
	"github.com/kirillkom/well-report-rag/internal/infrastructure/resilience"
)

var (
	retryTransient = resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	failPermanent  = resilience.ErrorClassification{RecordFailure: true}
	ignoreFailure  = resilience.ErrorClassification{}
)

// connectionErrors clear up once the client reconnects.
var connectionErrors = []error{
	nats.ErrNoServers,
	nats.ErrTimeout,
	nats.ErrConnectionClosed,
	nats.ErrConnectionDraining,
	nats.ErrConnectionReconnecting,
	nats.ErrDisconnected,
	nats.ErrStaleConnection,
}

// messageErrors reject one message while the broker stays healthy.
var messageErrors = []error{
	nats.ErrHeadersNotSupported,
	nats.ErrMaxPayload,
}

func classifyNATSError(err error) resilience.ErrorClassification {
	switch {
	case err == nil, errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ignoreFailure
	case resilience.IsCircuitOpen(err), isAny(err, connectionErrors):
		return retryTransient
	case isAny(err, messageErrors):
		return ignoreFailure
	default:
		return failPermanent
	}
}

func isAny(err error, targets []error) bool {
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// wrapUnavailableIfNeeded tags errors a reconnect could fix with ErrServiceUnavailable.
func wrapUnavailableIfNeeded(operation string, err error) error {
	if err == nil || domain.IsKind(err, domain.ErrServiceUnavailable) {
		return err
	}
	if classifyNATSError(err).Retryable {
		return domain.WrapError(domain.ErrServiceUnavailable, operation, err)
	}
	return err
}
