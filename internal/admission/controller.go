// Package admission implements the crawl-submission protocol.
//
// The controller gives ordering and consistency guarantees across two
// independent backing systems, the job store and the ingestion queue,
// without a transaction spanning them: the store write is the commit point
// and the queue push is a best-effort side effect with a compensating
// update on failure.
package admission

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/atlas-search/search-core/internal/queue"
	"github.com/atlas-search/search-core/internal/search"
	"github.com/atlas-search/search-core/internal/telemetry"
)

// Depth bounds are fixed: values outside are rejected at the boundary, not
// clamped, so a client's requested scope is never silently narrowed.
const (
	MinDepth = 1
	MaxDepth = 3
)

// Config controls SLA estimation and queue interaction.
type Config struct {
	// PerItemCost is the conservative per-entry drain cost used by the
	// linear SLA estimator.
	PerItemCost time.Duration
	// FixedBuffer is added to every estimate.
	FixedBuffer time.Duration
	// PushTimeout bounds the broker push.
	PushTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.PerItemCost <= 0 {
		c.PerItemCost = time.Second
	}
	if c.FixedBuffer <= 0 {
		c.FixedBuffer = 30 * time.Second
	}
	if c.PushTimeout <= 0 {
		c.PushTimeout = 5 * time.Second
	}
	return c
}

// Ticket is returned to the caller on successful admission. QueuePosition
// is the backlog depth that drove the estimate, so the caller sees the
// number behind the promise.
type Ticket struct {
	JobID               string
	Status              search.JobStatus
	Priority            search.JobPriority
	EstimatedCompletion time.Time
	QueuePosition       int
}

// Controller orchestrates validator, store and queue for crawl submissions.
type Controller struct {
	validator search.URLValidator
	store     search.JobStore
	queue     queue.Provider
	idGen     search.IDGenerator
	clock     search.Clock
	cfg       Config
	logger    *zap.Logger
}

// New constructs a Controller.
func New(
	validator search.URLValidator,
	store search.JobStore,
	q queue.Provider,
	idGen search.IDGenerator,
	clock search.Clock,
	cfg Config,
	logger *zap.Logger,
) *Controller {
	return &Controller{
		validator: validator,
		store:     store,
		queue:     q,
		idGen:     idGen,
		clock:     clock,
		cfg:       cfg.withDefaults(),
		logger:    logger,
	}
}

// Submit admits a crawl request. The sequence is fixed:
//
//  1. validate the URL (no side effects yet)
//  2. generate a controller-owned job identity
//  3. persist the Queued record and wait for the ack — the store write
//     strictly precedes any queue interaction, so a zero-delay poll after
//     the response can never see "not found"
//  4. read the approximate backlog depth
//  5. compute the SLA estimate from it
//  6. push the queue entry
//  7. on push failure, transition the record to Failed before reporting
//  8. on success, return the ticket
//
// Submissions through this path are user requested and admitted into the
// high-priority class.
func (c *Controller) Submit(ctx context.Context, rawURL string, depth int) (Ticket, error) {
	if depth < MinDepth || depth > MaxDepth {
		return Ticket{}, fmt.Errorf("%w: depth must be between %d and %d, got %d",
			search.ErrInvalidInput, MinDepth, MaxDepth, depth)
	}
	if err := c.validator.Validate(ctx, rawURL); err != nil {
		telemetry.ObserveAdmission(string(search.PriorityHigh), "rejected")
		return Ticket{}, err
	}

	jobID, err := c.idGen.NewID()
	if err != nil {
		return Ticket{}, fmt.Errorf("generate job id: %w", err)
	}

	// The caller may disconnect mid-request. Once validation has passed,
	// the pipeline runs to completion on its own terms: a committed store
	// write is not rolled back, and a failed push still gets its
	// compensating update.
	detached := context.WithoutCancel(ctx)

	now := c.clock.Now()
	job := search.Job{
		ID:        jobID,
		Status:    search.JobStatusQueued,
		Priority:  search.PriorityHigh,
		TargetURL: rawURL,
		Depth:     depth,
		CreatedAt: now,
	}
	if err := c.store.CreateJob(detached, job); err != nil {
		return Ticket{}, fmt.Errorf("create job: %w", err)
	}

	backlog, err := c.queue.Depth(detached, job.Priority)
	if err != nil {
		// Depth is advisory. A failed read degrades the estimate to the
		// fixed buffer; it does not abort admission.
		c.logger.Warn("backlog depth unavailable", zap.String("job_id", jobID), zap.Error(err))
		backlog = 0
	}
	telemetry.SetQueueBacklog(string(job.Priority), backlog)

	eta := c.estimate(now, backlog)

	pushCtx, cancel := context.WithTimeout(detached, c.cfg.PushTimeout)
	defer cancel()
	entry := search.QueueEntry{
		JobID:    jobID,
		URL:      rawURL,
		Depth:    depth,
		Priority: job.Priority,
	}
	if err := c.queue.Push(pushCtx, entry); err != nil {
		c.logger.Error("queue push failed, failing job",
			zap.String("job_id", jobID),
			zap.Error(err),
		)
		if updateErr := c.store.UpdateJobStatus(detached, jobID, search.JobStatusFailed, nil); updateErr != nil {
			// The record now disagrees with reality; surface loudly, the
			// caller still gets the unavailable signal.
			c.logger.Error("compensating status update failed",
				zap.String("job_id", jobID),
				zap.Error(updateErr),
			)
		}
		telemetry.ObserveAdmission(string(job.Priority), "queue_unavailable")
		return Ticket{}, fmt.Errorf("%w: %v", search.ErrQueueUnavailable, err)
	}

	telemetry.ObserveAdmission(string(job.Priority), "accepted")
	telemetry.ObserveSLAEstimate(string(job.Priority), eta.Sub(now))
	return Ticket{
		JobID:               jobID,
		Status:              search.JobStatusQueued,
		Priority:            job.Priority,
		EstimatedCompletion: eta,
		QueuePosition:       backlog,
	}, nil
}

// estimate projects a completion time from the backlog. The estimator is
// linear and intentionally conservative: a deep backlog pushes the estimate
// outward instead of promising a fixed SLA regardless of load.
func (c *Controller) estimate(now time.Time, backlog int) time.Time {
	return now.Add(time.Duration(backlog)*c.cfg.PerItemCost + c.cfg.FixedBuffer)
}
