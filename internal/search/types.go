// Package search defines core types shared across subsystems.
package search

import (
	"encoding/json"
	"time"
)

// JobStatus represents the lifecycle state of a crawl job.
type JobStatus string

// Job status values persisted in the job store.
const (
	JobStatusQueued     JobStatus = "queued"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// IsTerminal reports whether the status is a final state.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// JobPriority classifies the queue lane a job is admitted into.
type JobPriority string

// Priority classes recognized by the ingestion queue.
const (
	PriorityHigh JobPriority = "high" // user requested, SLA bearing
	PriorityLow  JobPriority = "low"  // background crawl
)

// Job is the metadata persisted for each admitted crawl request.
// The job store record is the source of truth for the job's existence
// and state; the queue entry derived from it is ephemeral.
type Job struct {
	ID          string          `json:"job_id"`
	Status      JobStatus       `json:"status"`
	Priority    JobPriority     `json:"priority"`
	TargetURL   string          `json:"target_url"`
	Depth       int             `json:"depth"`
	CreatedAt   time.Time       `json:"created_at"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
	Result      json.RawMessage `json:"result,omitempty"`
}

// QueueEntry is the payload pushed onto the ingestion queue. The JobID
// doubles as the broker ordering key.
type QueueEntry struct {
	JobID    string      `json:"job_id"`
	URL      string      `json:"url"`
	Depth    int         `json:"depth"`
	Priority JobPriority `json:"priority"`
}

// ScoredDocument is a single ranked hit returned by the index.
type ScoredDocument struct {
	ID      string  `json:"id"`
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Snippet string  `json:"snippet"`
	Score   float64 `json:"score"`
}

// SearchResult is one page of index hits.
type SearchResult struct {
	Hits       []ScoredDocument `json:"hits"`
	TotalHits  int              `json:"total_hits"`
	NextCursor string           `json:"next_cursor,omitempty"`
}
