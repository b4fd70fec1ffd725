// Package postgres provides Postgres-backed persistence implementations.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/atlas-search/search-core/internal/search"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// JobStoreConfig controls the Postgres connection pool used for job rows.
type JobStoreConfig struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type pgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// JobStore persists job records in Postgres. Assumed schema:
//
//	CREATE TABLE jobs (
//		id           TEXT PRIMARY KEY,
//		status       TEXT NOT NULL,
//		priority     TEXT NOT NULL,
//		target_url   TEXT NOT NULL,
//		depth        INT NOT NULL,
//		result       JSONB,
//		created_at   TIMESTAMPTZ NOT NULL,
//		completed_at TIMESTAMPTZ
//	);
type JobStore struct {
	pool  pgxPool
	table string
}

// NewJobStore creates a Postgres-backed JobStore using the provided config.
func NewJobStore(ctx context.Context, cfg JobStoreConfig) (*JobStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("store.dsn is required")
	}
	table := cfg.Table
	if table == "" {
		table = "jobs"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &JobStore{pool: pool, table: table}, nil
}

// NewJobStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewJobStoreWithPool(pool pgxPool, table string) (*JobStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = "jobs"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &JobStore{pool: pool, table: table}, nil
}

// Close releases the underlying pool resources.
func (s *JobStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// CreateJob upserts the initial record. ON CONFLICT overwrites: duplicate
// IDs do not occur by construction, and a repeated create must behave
// deterministically rather than fail.
func (s *JobStore) CreateJob(ctx context.Context, job search.Job) error {
	if job.ID == "" {
		return fmt.Errorf("%w: job id is required", search.ErrInvalidInput)
	}
	query := fmt.Sprintf(`
INSERT INTO %s (id, status, priority, target_url, depth, result, created_at, completed_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
ON CONFLICT (id) DO UPDATE SET
	status = EXCLUDED.status,
	priority = EXCLUDED.priority,
	target_url = EXCLUDED.target_url,
	depth = EXCLUDED.depth,
	result = EXCLUDED.result,
	created_at = EXCLUDED.created_at,
	completed_at = EXCLUDED.completed_at`, s.table)

	var result []byte
	if len(job.Result) > 0 {
		result = job.Result
	}
	if _, err := s.pool.Exec(ctx, query,
		job.ID,
		string(job.Status),
		string(job.Priority),
		job.TargetURL,
		job.Depth,
		result,
		job.CreatedAt,
		job.CompletedAt,
	); err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

// GetJob fetches a job by ID, or search.ErrNotFound.
func (s *JobStore) GetJob(ctx context.Context, jobID string) (search.Job, error) {
	query := fmt.Sprintf(`
SELECT id, status, priority, target_url, depth, result, created_at, completed_at
FROM %s WHERE id = $1`, s.table)

	var (
		job      search.Job
		status   string
		priority string
		result   []byte
	)
	err := s.pool.QueryRow(ctx, query, jobID).Scan(
		&job.ID,
		&status,
		&priority,
		&job.TargetURL,
		&job.Depth,
		&result,
		&job.CreatedAt,
		&job.CompletedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return search.Job{}, fmt.Errorf("%w: %s", search.ErrNotFound, jobID)
	}
	if err != nil {
		return search.Job{}, fmt.Errorf("select job: %w", err)
	}
	job.Status = search.JobStatus(status)
	job.Priority = search.JobPriority(priority)
	if len(result) > 0 {
		job.Result = json.RawMessage(result)
	}
	return job, nil
}

// UpdateJobStatus transitions a job's status, stamping completed_at on
// terminal states and attaching the result payload if given.
func (s *JobStore) UpdateJobStatus(
	ctx context.Context,
	jobID string,
	status search.JobStatus,
	result json.RawMessage,
) error {
	query := fmt.Sprintf(`
UPDATE %s SET
	status = $2,
	result = COALESCE($3, result),
	completed_at = CASE WHEN $4 THEN COALESCE(completed_at, NOW()) ELSE completed_at END
WHERE id = $1`, s.table)

	var payload []byte
	if len(result) > 0 {
		payload = result
	}
	tag, err := s.pool.Exec(ctx, query, jobID, string(status), payload, status.IsTerminal())
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", search.ErrNotFound, jobID)
	}
	return nil
}
