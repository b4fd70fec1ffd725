package search

import (
	"context"
	"encoding/json"
	"time"
)

// JobStore persists job metadata. It is the single source of truth for
// whether a job exists and what state it is in. Implementations must
// guarantee per-key atomicity; no cross-job transactions are required.
type JobStore interface {
	// CreateJob writes the initial record. A duplicate ID overwrites the
	// existing record deterministically; the admission controller generates
	// IDs, so duplicates do not occur by construction.
	CreateJob(ctx context.Context, job Job) error

	// GetJob fetches a job by ID. An unknown ID returns ErrNotFound,
	// never a zero record.
	GetJob(ctx context.Context, jobID string) (Job, error)

	// UpdateJobStatus transitions a job's status and optionally attaches a
	// result payload. Terminal statuses set the completion timestamp.
	// This is also the write-back path for the worker population that
	// consumes the ingestion queue.
	UpdateJobStatus(ctx context.Context, jobID string, status JobStatus, result json.RawMessage) error
}

// Index is the query gateway toward the external search index. Ranking and
// sharding live behind this boundary.
type Index interface {
	Query(ctx context.Context, q string, limit int, cursor string) (SearchResult, error)
}

// URLValidator decides whether a submitted URL is safe to crawl. A passed
// validation holds only for the immediately following action; DNS answers
// can change between calls.
type URLValidator interface {
	Validate(ctx context.Context, rawURL string) error
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces job IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}
