// Package inline delivers ingestion events synchronously inside the publishing
// process. The CLI uses it so that an upload is indexed before the command returns.
package inline

import (
	"context"
	"errors"
	"sync"
)

var ErrNoSubscriber = errors.New("inline queue: no subscriber")

type Queue struct {
	mu      sync.RWMutex
	handler func(context.Context, string) error
}

func New() *Queue {
	return &Queue{}
}

// Bind registers the handler without blocking.
func (q *Queue) Bind(handler func(context.Context, string) error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handler = handler
}

func (q *Queue) PublishDocumentIngested(ctx context.Context, documentID string) error {
	q.mu.RLock()
	handler := q.handler
	q.mu.RUnlock()
	if handler == nil {
		return ErrNoSubscriber
	}
	return handler(ctx, documentID)
}

// SubscribeDocumentIngested binds the handler and blocks until ctx is done.
func (q *Queue) SubscribeDocumentIngested(ctx context.Context, handler func(context.Context, string) error) error {
	q.Bind(handler)
	<-ctx.Done()
	return nil
}
