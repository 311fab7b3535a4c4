package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// Querier is the set of queries the api and worker packages depend on.
type Querier interface {
	CreateJob(ctx context.Context, arg CreateJobParams) (Job, error)
	GetJob(ctx context.Context, id uuid.UUID) (Job, error)
	ClaimNextJob(ctx context.Context) (Job, error)
	UpdateJobStatus(ctx context.Context, arg UpdateJobStatusParams) (Job, error)
	ReleaseStaleJobs(ctx context.Context, startedBefore time.Time) (int64, error)
	InsertCodeExecution(ctx context.Context, arg InsertCodeExecutionParams) (CodeExecution, error)
	GetCodeExecution(ctx context.Context, jobID uuid.UUID) (CodeExecution, error)
}

var _ Querier = (*Queries)(nil)

const jobColumns = `id, job_type, payload, status, attempt, max_attempts, error, run_at, started_at, completed_at, created_at`

func scanJob(row interface{ Scan(...any) error }) (Job, error) {
	var j Job
	err := row.Scan(
		&j.ID,
		&j.JobType,
		&j.Payload,
		&j.Status,
		&j.Attempt,
		&j.MaxAttempts,
		&j.Error,
		&j.RunAt,
		&j.StartedAt,
		&j.CompletedAt,
		&j.CreatedAt,
	)
	return j, err
}

const createJob = `
INSERT INTO jobs (id, job_type, payload, max_attempts)
VALUES ($1, $2, $3, $4)
RETURNING ` + jobColumns

type CreateJobParams struct {
	JobType     string
	Payload     []byte
	MaxAttempts int32
}

// CreateJob inserts a pending job. MaxAttempts defaults to 3.
func (q *Queries) CreateJob(ctx context.Context, arg CreateJobParams) (Job, error) {
	if arg.MaxAttempts <= 0 {
		arg.MaxAttempts = 3
	}
	row := q.db.QueryRow(ctx, createJob, uuid.New(), arg.JobType, arg.Payload, arg.MaxAttempts)
	return scanJob(row)
}

const getJob = `SELECT ` + jobColumns + ` FROM jobs WHERE id = $1`

func (q *Queries) GetJob(ctx context.Context, id uuid.UUID) (Job, error) {
	return scanJob(q.db.QueryRow(ctx, getJob, id))
}

// Claiming skips rows locked by other workers so concurrent claimers never
// receive the same job.
const claimNextJob = `
UPDATE jobs
SET status = 'running', attempt = attempt + 1, started_at = now()
WHERE id = (
    SELECT id FROM jobs
    WHERE status = 'pending' AND run_at <= now()
    ORDER BY run_at
    FOR UPDATE SKIP LOCKED
    LIMIT 1
)
RETURNING ` + jobColumns

// ClaimNextJob marks the oldest runnable job as running and returns it.
// It returns pgx.ErrNoRows when nothing is runnable.
func (q *Queries) ClaimNextJob(ctx context.Context) (Job, error) {
	return scanJob(q.db.QueryRow(ctx, claimNextJob))
}

const updateJobStatus = `
UPDATE jobs
SET status = $2, error = $3, completed_at = $4, run_at = $5
WHERE id = $1
RETURNING ` + jobColumns

type UpdateJobStatusParams struct {
	ID          uuid.UUID
	Status      string
	Error       pgtype.Text
	CompletedAt *time.Time
	RunAt       time.Time
}

func (q *Queries) UpdateJobStatus(ctx context.Context, arg UpdateJobStatusParams) (Job, error) {
	row := q.db.QueryRow(ctx, updateJobStatus, arg.ID, arg.Status, arg.Error, arg.CompletedAt, arg.RunAt)
	return scanJob(row)
}

const releaseStaleJobs = `
UPDATE jobs
SET status = 'pending', run_at = now()
WHERE status = 'running' AND started_at < $1`

// ReleaseStaleJobs returns jobs left running by a worker that died before
// recording their status to the pending queue. It reports how many it released.
func (q *Queries) ReleaseStaleJobs(ctx context.Context, startedBefore time.Time) (int64, error) {
	tag, err := q.db.Exec(ctx, releaseStaleJobs, startedBefore)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const insertCodeExecution = `
INSERT INTO code_executions (job_id, language, success, output, error)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (job_id) DO UPDATE
SET language = EXCLUDED.language, success = EXCLUDED.success,
    output = EXCLUDED.output, error = EXCLUDED.error
RETURNING job_id, language, success, output, error, created_at`

type InsertCodeExecutionParams struct {
	JobID    uuid.UUID
	Language string
	Success  bool
	Output   string
	Error    string
}

// InsertCodeExecution stores the result of a job. A retried job overwrites
// its earlier result.
func (q *Queries) InsertCodeExecution(ctx context.Context, arg InsertCodeExecutionParams) (CodeExecution, error) {
	row := q.db.QueryRow(ctx, insertCodeExecution, arg.JobID, arg.Language, arg.Success, arg.Output, arg.Error)
	var e CodeExecution
	err := row.Scan(&e.JobID, &e.Language, &e.Success, &e.Output, &e.Error, &e.CreatedAt)
	return e, err
}

const getCodeExecution = `
SELECT job_id, language, success, output, error, created_at
FROM code_executions WHERE job_id = $1`

func (q *Queries) GetCodeExecution(ctx context.Context, jobID uuid.UUID) (CodeExecution, error) {
	var e CodeExecution
	err := q.db.QueryRow(ctx, getCodeExecution, jobID).Scan(
		&e.JobID, &e.Language, &e.Success, &e.Output, &e.Error, &e.CreatedAt)
	return e, err
}
