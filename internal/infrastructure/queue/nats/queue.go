package nats

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/well-report-rag/internal/infrastructure/resilience"
)

const (
	defaultQueueGroup = "workers"

	// headerPublishedAt carries the publish time so the worker can report queue lag.
	headerPublishedAt = "Wellrag-Published-At"
)

type publishedAtKey struct{}

// PublishedAt returns the publish time of the message being handled, when the
// publisher attached one.
func PublishedAt(ctx context.Context) (time.Time, bool) {
	at, ok := ctx.Value(publishedAtKey{}).(time.Time)
	return at, ok
}

// Queue carries document-ingested events from the API to the worker pool. Workers
// share one queue group, so each document is processed by exactly one of them.
type Queue struct {
	conn     *nats.Conn
	subject  string
	group    string
	executor *resilience.Executor
	now      func() time.Time
}

type Options struct {
	ConnectTimeout       time.Duration
	ReconnectWait        time.Duration
	MaxReconnects        int
	RetryOnFailedConnect *bool
	QueueGroup           string
	ResilienceExecutor   *resilience.Executor
}

func New(url, subject string) (*Queue, error) {
	return NewWithOptions(url, subject, Options{})
}

func NewWithOptions(url, subject string, options Options) (*Queue, error) {
	conn, err := nats.Connect(url, connectOptions(options)...)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	group := options.QueueGroup
	if group == "" {
		group = defaultQueueGroup
	}
	return &Queue{
		conn:     conn,
		subject:  subject,
		group:    group,
		executor: options.ResilienceExecutor,
		now:      time.Now,
	}, nil
}

func connectOptions(options Options) []nats.Option {
	connectTimeout := options.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 2 * time.Second
	}
	reconnectWait := options.ReconnectWait
	if reconnectWait <= 0 {
		reconnectWait = 2 * time.Second
	}
	maxReconnects := options.MaxReconnects
	if maxReconnects <= 0 {
		maxReconnects = 60
	}
	retryOnFailedConnect := true
	if options.RetryOnFailedConnect != nil {
		retryOnFailedConnect = *options.RetryOnFailedConnect
	}

	return []nats.Option{
		nats.Name("well-report-rag"),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.RetryOnFailedConnect(retryOnFailedConnect),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			slog.Warn("nats_disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("nats_reconnected", "url", nc.ConnectedUrl())
		}),
	}
}

func (q *Queue) Close() {
	if q.conn != nil {
		q.conn.Close()
	}
}

// PublishDocumentIngested announces an uploaded document to the workers.
func (q *Queue) PublishDocumentIngested(ctx context.Context, documentID string) error {
	msg := documentMessage(q.subject, documentID, q.now())
	call := func(context.Context) error {
		return publishDocument(q.conn, msg)
	}

	var err error
	if q.executor != nil {
		err = q.executor.Execute(ctx, "nats.publish", call, classifyNATSError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return wrapUnavailableIfNeeded("nats publish", err)
	}
	return nil
}

type publisher interface {
	PublishMsg(msg *nats.Msg) error
	Publish(subject string, data []byte) error
}

// publishDocument sends msg, dropping its headers when the server predates them.
// Workers then fall back to the document's creation time for queue lag.
func publishDocument(p publisher, msg *nats.Msg) error {
	err := p.PublishMsg(msg)
	if errors.Is(err, nats.ErrHeadersNotSupported) {
		slog.Warn("nats_headers_unsupported", "subject", msg.Subject)
		err = p.Publish(msg.Subject, msg.Data)
	}
	if err != nil {
		return fmt.Errorf("nats publish: %w", err)
	}
	return nil
}

func documentMessage(subject, documentID string, at time.Time) *nats.Msg {
	msg := nats.NewMsg(subject)
	msg.Data = []byte(documentID)
	msg.Header.Set(headerPublishedAt, at.UTC().Format(time.RFC3339Nano))
	return msg
}

// messageContext derives the handler context for one message and attaches the
// publish time when the header parses.
func messageContext(parent context.Context, msg *nats.Msg) context.Context {
	if msg.Header == nil {
		return parent
	}
	at, err := time.Parse(time.RFC3339Nano, msg.Header.Get(headerPublishedAt))
	if err != nil {
		return parent
	}
	return context.WithValue(parent, publishedAtKey{}, at)
}

// SubscribeDocumentIngested handles messages one at a time until ctx is done, then
// drains the subscription so an in-flight document finishes.
func (q *Queue) SubscribeDocumentIngested(ctx context.Context, handler func(context.Context, string) error) error {
	sub, err := q.conn.QueueSubscribe(q.subject, q.group, func(msg *nats.Msg) {
		if errors.Is(ctx.Err(), context.Canceled) {
			return
		}
		handlerCtx, cancel := context.WithCancel(messageContext(ctx, msg))
		defer cancel()

		documentID := string(msg.Data)
		if err := handler(handlerCtx, documentID); err != nil {
			slog.Error("document_handler_failed", "document_id", documentID, "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}
	if err := q.conn.Flush(); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		return fmt.Errorf("nats drain subscription: %w", err)
	}
	if err := q.conn.FlushTimeout(5 * time.Second); err != nil {
		return fmt.Errorf("nats flush after drain: %w", err)
	}
	return nil
}
