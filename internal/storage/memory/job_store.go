// Package memory provides an in-memory job store for development/testing.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/atlas-search/search-core/internal/search"
)

// JobStore keeps job records in a mutex-guarded map. Operations on distinct
// keys never interfere; the store performs no cross-job transactions.
type JobStore struct {
	mu   sync.RWMutex
	jobs map[string]search.Job
}

// NewJobStore constructs a JobStore.
func NewJobStore() *JobStore {
	return &JobStore{
		jobs: make(map[string]search.Job),
	}
}

// CreateJob stores the initial record. A duplicate ID overwrites the
// existing record; the controller generates IDs so this is deterministic
// rather than an error path.
func (s *JobStore) CreateJob(_ context.Context, job search.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
	return nil
}

// GetJob fetches a job by ID, or search.ErrNotFound.
func (s *JobStore) GetJob(_ context.Context, jobID string) (search.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return search.Job{}, fmt.Errorf("%w: %s", search.ErrNotFound, jobID)
	}
	return job, nil
}

// UpdateJobStatus transitions a job's status, recording the completion
// timestamp on terminal states and attaching the result payload if given.
func (s *JobStore) UpdateJobStatus(
	_ context.Context,
	jobID string,
	status search.JobStatus,
	result json.RawMessage,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return fmt.Errorf("%w: %s", search.ErrNotFound, jobID)
	}
	job.Status = status
	if len(result) > 0 {
		job.Result = result
	}
	if status.IsTerminal() && job.CompletedAt == nil {
		now := time.Now().UTC()
		job.CompletedAt = &now
	}
	s.jobs[jobID] = job
	return nil
}
