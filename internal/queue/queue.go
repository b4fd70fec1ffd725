// Package queue defines the interface for the ingestion queue provider.
// This abstraction keeps the admission pipeline independent of a specific
// broker (e.g., GCP Pub/Sub, RabbitMQ, Kafka).
package queue

import (
	"context"

	"github.com/atlas-search/search-core/internal/search"
)

// Provider is the capability contract toward the message broker.
type Provider interface {
	// Push publishes a queue entry, keyed by job ID. The returned error is
	// the explicit success/failure signal the admission protocol depends
	// on; a failed push is never silent.
	Push(ctx context.Context, entry search.QueueEntry) error

	// Depth reports the approximate backlog for a priority class. It is a
	// point-in-time observation, not an exact count.
	Depth(ctx context.Context, priority search.JobPriority) (int, error)

	// Close cleans up any client connections and resources.
	Close() error
}

// NoOpProvider is a queue provider that performs no operations. It is
// useful for running the service without a real broker.
type NoOpProvider struct{}

// Push for NoOpProvider does nothing and returns nil.
func (n *NoOpProvider) Push(_ context.Context, _ search.QueueEntry) error { return nil }

// Depth for NoOpProvider always reports an empty backlog.
func (n *NoOpProvider) Depth(_ context.Context, _ search.JobPriority) (int, error) { return 0, nil }

// Close for NoOpProvider does nothing and returns nil.
func (n *NoOpProvider) Close() error { return nil }
