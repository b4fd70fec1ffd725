package admission

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/atlas-search/search-core/internal/queue"
	queueMemory "github.com/atlas-search/search-core/internal/queue/memory"
	"github.com/atlas-search/search-core/internal/search"
	storageMemory "github.com/atlas-search/search-core/internal/storage/memory"
)

type allowAllValidator struct{}

func (allowAllValidator) Validate(_ context.Context, _ string) error { return nil }

type denyValidator struct {
	err error
}

func (v denyValidator) Validate(_ context.Context, _ string) error { return v.err }

type fakeIDGen struct {
	mu   sync.Mutex
	next int
}

func (g *fakeIDGen) NewID() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.next++
	return fmt.Sprintf("job-%d", g.next), nil
}

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func newController(store search.JobStore, q queue.Provider) *Controller {
	return New(
		allowAllValidator{},
		store,
		q,
		&fakeIDGen{},
		&fakeClock{now: time.Unix(1700000000, 0).UTC()},
		Config{},
		zap.NewNop(),
	)
}

func TestSubmit_Succeeds(t *testing.T) {
	t.Parallel()

	store := storageMemory.NewJobStore()
	q := queueMemory.NewQueue(16)
	ctrl := newController(store, q)

	ticket, err := ctrl.Submit(context.Background(), "https://example.com/page", 2)
	require.NoError(t, err)
	require.Equal(t, "job-1", ticket.JobID)
	require.Equal(t, search.JobStatusQueued, ticket.Status)
	require.Equal(t, search.PriorityHigh, ticket.Priority)

	entry, err := q.Dequeue(context.Background())
	require.NoError(t, err)
	require.Equal(t, "job-1", entry.JobID)
	require.Equal(t, "https://example.com/page", entry.URL)
	require.Equal(t, 2, entry.Depth)
}

func TestSubmit_StatusVisibleImmediately(t *testing.T) {
	t.Parallel()

	// Write-before-enqueue: a zero-delay poll after the submission response
	// must never see "not found".
	store := storageMemory.NewJobStore()
	ctrl := newController(store, queueMemory.NewQueue(16))

	for i := 0; i < 50; i++ {
		ticket, err := ctrl.Submit(context.Background(), "https://example.com/", 1)
		require.NoError(t, err)

		job, err := store.GetJob(context.Background(), ticket.JobID)
		require.NoError(t, err)
		require.Equal(t, search.JobStatusQueued, job.Status)
	}
}

func TestSubmit_DepthBounds(t *testing.T) {
	t.Parallel()

	store := storageMemory.NewJobStore()
	ctrl := newController(store, queueMemory.NewQueue(16))

	for _, depth := range []int{-1, 0, 4, 100} {
		_, err := ctrl.Submit(context.Background(), "https://example.com/", depth)
		require.ErrorIs(t, err, search.ErrInvalidInput, "depth %d", depth)
	}
	for _, depth := range []int{1, 2, 3} {
		_, err := ctrl.Submit(context.Background(), "https://example.com/", depth)
		require.NoError(t, err, "depth %d", depth)
	}
}

func TestSubmit_ValidatorRejectionHasNoSideEffects(t *testing.T) {
	t.Parallel()

	store := storageMemory.NewJobStore()
	q := queueMemory.NewQueue(16)
	ctrl := New(
		denyValidator{err: fmt.Errorf("%w: access to restricted network (internal.test -> 10.0.0.5) is forbidden", search.ErrForbiddenNetwork)},
		store,
		q,
		&fakeIDGen{},
		&fakeClock{now: time.Unix(1700000000, 0).UTC()},
		Config{},
		zap.NewNop(),
	)

	_, err := ctrl.Submit(context.Background(), "http://internal.test/", 1)
	require.ErrorIs(t, err, search.ErrForbiddenNetwork)

	depth, err := q.Depth(context.Background(), search.PriorityHigh)
	require.NoError(t, err)
	require.Zero(t, depth)
}

func TestSubmit_PushFailureFailsJobAndReportsUnavailable(t *testing.T) {
	t.Parallel()

	store := storageMemory.NewJobStore()
	q := &queue.MockProvider{}
	q.On("Depth", mock.Anything, search.PriorityHigh).Return(3, nil)
	q.On("Push", mock.Anything, mock.Anything).Return(errors.New("broker down"))

	ctrl := newController(store, q)
	_, err := ctrl.Submit(context.Background(), "https://example.com/", 1)
	require.ErrorIs(t, err, search.ErrQueueUnavailable)

	// The record must exist and reflect reality: Failed, never a silently
	// dropped job.
	job, storeErr := store.GetJob(context.Background(), "job-1")
	require.NoError(t, storeErr)
	require.Equal(t, search.JobStatusFailed, job.Status)
	q.AssertExpectations(t)
}

func TestSubmit_SLAScalesWithBacklog(t *testing.T) {
	t.Parallel()

	now := time.Unix(1700000000, 0).UTC()
	estimateAt := func(backlog int) time.Time {
		store := storageMemory.NewJobStore()
		q := &queue.MockProvider{}
		q.On("Depth", mock.Anything, search.PriorityHigh).Return(backlog, nil)
		q.On("Push", mock.Anything, mock.Anything).Return(nil)
		ctrl := New(allowAllValidator{}, store, q, &fakeIDGen{}, &fakeClock{now: now}, Config{}, zap.NewNop())

		ticket, err := ctrl.Submit(context.Background(), "https://example.com/", 1)
		require.NoError(t, err)
		require.Equal(t, backlog, ticket.QueuePosition)
		return ticket.EstimatedCompletion
	}

	shallow := estimateAt(1500)
	deep := estimateAt(5000)

	require.Equal(t, now.Add(1530*time.Second), shallow)
	require.Equal(t, now.Add(5030*time.Second), deep)
	require.True(t, deep.After(shallow))
}

func TestSubmit_DepthReadFailureDegradesToBuffer(t *testing.T) {
	t.Parallel()

	now := time.Unix(1700000000, 0).UTC()
	store := storageMemory.NewJobStore()
	q := &queue.MockProvider{}
	q.On("Depth", mock.Anything, search.PriorityHigh).Return(0, errors.New("stats unavailable"))
	q.On("Push", mock.Anything, mock.Anything).Return(nil)
	ctrl := New(allowAllValidator{}, store, q, &fakeIDGen{}, &fakeClock{now: now}, Config{}, zap.NewNop())

	ticket, err := ctrl.Submit(context.Background(), "https://example.com/", 1)
	require.NoError(t, err)
	require.Zero(t, ticket.QueuePosition)
	require.Equal(t, now.Add(30*time.Second), ticket.EstimatedCompletion)
}

func TestSubmit_CallerDisconnectDoesNotOrphanCompensation(t *testing.T) {
	t.Parallel()

	store := storageMemory.NewJobStore()
	q := &queue.MockProvider{}
	q.On("Depth", mock.Anything, search.PriorityHigh).Return(0, nil)
	q.On("Push", mock.Anything, mock.Anything).Return(errors.New("broker down"))
	ctrl := newController(store, q)

	// The caller's context is already canceled; the pipeline still
	// persists the job and performs the compensating update.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ctrl.Submit(ctx, "https://example.com/", 1)
	require.ErrorIs(t, err, search.ErrQueueUnavailable)

	job, storeErr := store.GetJob(context.Background(), "job-1")
	require.NoError(t, storeErr)
	require.Equal(t, search.JobStatusFailed, job.Status)
}

func TestSubmit_ConcurrentSubmissionsIndependent(t *testing.T) {
	t.Parallel()

	store := storageMemory.NewJobStore()
	q := queueMemory.NewQueue(128)
	ctrl := newController(store, q)

	const n = 32
	tickets := make(chan Ticket, n)
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		go func() {
			ticket, err := ctrl.Submit(context.Background(), "https://example.com/", 1)
			tickets <- ticket
			errs <- err
		}()
	}

	seen := make(map[string]bool, n)
	for i := 0; i < n; i++ {
		require.NoError(t, <-errs)
		ticket := <-tickets
		require.False(t, seen[ticket.JobID], "duplicate job id %s", ticket.JobID)
		seen[ticket.JobID] = true

		_, err := store.GetJob(context.Background(), ticket.JobID)
		require.NoError(t, err)
	}
}
