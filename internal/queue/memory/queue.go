// Package memory provides a channel-backed invocation queue for tests and
// single-process runs.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/openhire/jobradar/internal/queue"
)

// Queue is a bounded in-memory invocation queue.
type Queue struct {
	ch      chan queue.Invocation
	closeMu sync.Mutex
	closed  bool
}

// New constructs a queue with the provided capacity.
func New(capacity int) *Queue {
	if capacity <= 0 {
		capacity = 64
	}
	return &Queue{ch: make(chan queue.Invocation, capacity)}
}

// Publish implements queue.Provider.
func (q *Queue) Publish(ctx context.Context, inv queue.Invocation) error {
	q.closeMu.Lock()
	if q.closed {
		q.closeMu.Unlock()
		return errors.New("queue is closed")
	}
	q.closeMu.Unlock()

	select {
	case <-ctx.Done():
		return fmt.Errorf("publish canceled: %w", ctx.Err())
	case q.ch <- inv:
		return nil
	}
}

// Receive implements queue.Provider.
func (q *Queue) Receive(ctx context.Context, handle func(context.Context, queue.Invocation)) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case inv, ok := <-q.ch:
			if !ok {
				return nil
			}
			handle(ctx, inv)
		}
	}
}

// Close implements queue.Provider.
func (q *Queue) Close() error {
	q.closeMu.Lock()
	defer q.closeMu.Unlock()
	if !q.closed {
		q.closed = true
		close(q.ch)
	}
	return nil
}
