// Package memory provides a queue implementation for local development.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/atlas-search/search-core/internal/search"
)

// Queue is a bounded in-memory queue with one lane per priority class.
// Push fails fast when a lane is full instead of blocking: the admission
// protocol needs an immediate unavailable signal, not backpressure by stall.
type Queue struct {
	lanes   map[search.JobPriority]chan search.QueueEntry
	closeMu sync.Mutex
	closed  bool
}

// NewQueue constructs a queue whose lanes hold up to capacity entries each.
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = 64
	}
	return &Queue{
		lanes: map[search.JobPriority]chan search.QueueEntry{
			search.PriorityHigh: make(chan search.QueueEntry, capacity),
			search.PriorityLow:  make(chan search.QueueEntry, capacity),
		},
	}
}

// Push places the entry on its priority lane, or reports the queue
// unavailable when the lane is full.
func (q *Queue) Push(ctx context.Context, entry search.QueueEntry) error {
	lane, ok := q.lanes[entry.Priority]
	if !ok {
		return fmt.Errorf("%w: unknown priority %q", search.ErrInvalidInput, entry.Priority)
	}
	select {
	case <-ctx.Done():
		return fmt.Errorf("%w: push canceled: %v", search.ErrQueueUnavailable, ctx.Err())
	case lane <- entry:
		return nil
	default:
		return fmt.Errorf("%w: backlog full for priority %q", search.ErrQueueUnavailable, entry.Priority)
	}
}

// Depth reports the current number of unconsumed entries for a priority class.
func (q *Queue) Depth(_ context.Context, priority search.JobPriority) (int, error) {
	lane, ok := q.lanes[priority]
	if !ok {
		return 0, fmt.Errorf("%w: unknown priority %q", search.ErrInvalidInput, priority)
	}
	return len(lane), nil
}

// Dequeue pops the next entry, draining the high-priority lane first. It is
// the consumption path for the worker population; it blocks until an entry
// arrives or the context finishes.
func (q *Queue) Dequeue(ctx context.Context) (search.QueueEntry, error) {
	high := q.lanes[search.PriorityHigh]
	low := q.lanes[search.PriorityLow]
	select {
	case entry, ok := <-high:
		if !ok {
			return search.QueueEntry{}, errors.New("queue closed")
		}
		return entry, nil
	default:
	}
	select {
	case <-ctx.Done():
		return search.QueueEntry{}, fmt.Errorf("dequeue canceled: %w", ctx.Err())
	case entry, ok := <-high:
		if !ok {
			return search.QueueEntry{}, errors.New("queue closed")
		}
		return entry, nil
	case entry, ok := <-low:
		if !ok {
			return search.QueueEntry{}, errors.New("queue closed")
		}
		return entry, nil
	}
}

// Close closes the underlying channels for shutdown.
func (q *Queue) Close() error {
	q.closeMu.Lock()
	defer q.closeMu.Unlock()
	if q.closed {
		return nil
	}
	for _, lane := range q.lanes {
		close(lane)
	}
	q.closed = true
	return nil
}
