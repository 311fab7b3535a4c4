package store

import (
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// Job status values.
const (
	JobStatusPending   = "pending"
	JobStatusRunning   = "running"
	JobStatusCompleted = "completed"
	JobStatusFailed    = "failed"
)

// JobTypeCodeExecute is the only job type the worker runs.
const JobTypeCodeExecute = "code.execute"

type Job struct {
	ID          uuid.UUID   `json:"id"`
	JobType     string      `json:"job_type"`
	Payload     []byte      `json:"-"`
	Status      string      `json:"status"`
	Attempt     int32       `json:"attempt"`
	MaxAttempts int32       `json:"max_attempts"`
	Error       pgtype.Text `json:"error"`
	RunAt       time.Time   `json:"run_at"`
	StartedAt   *time.Time  `json:"started_at,omitempty"`
	CompletedAt *time.Time  `json:"completed_at,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
}

type CodeExecution struct {
	JobID     uuid.UUID `json:"job_id"`
	Language  string    `json:"language"`
	Success   bool      `json:"success"`
	Output    string    `json:"output,omitempty"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
