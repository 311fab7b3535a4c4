package codejudge

import "time"

// HealthResponse is returned by the /health endpoint.
type HealthResponse struct {
	Status string `json:"status"`
}

// --- Code ---

// ExecuteRequest is the body of POST /code/execute.
// Language is one of "javascript", "python" or "java".
type ExecuteRequest struct {
	Language   string `json:"language"`
	SourceCode string `json:"source_code"`
}

// Result is the normalized outcome of a run.
// Output and Error are empty when the server omitted them.
type Result struct {
	Success bool   `json:"success"`
	Output  string `json:"output,omitempty"`
	Error   string `json:"error,omitempty"`
}

// QueuedResponse is returned when a run is queued as a job.
type QueuedResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

// Execution is the stored result of a queued run.
type Execution struct {
	JobID     string    `json:"job_id"`
	Language  string    `json:"language"`
	Success   bool      `json:"success"`
	Output    string    `json:"output,omitempty"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Language is an entry of GET /code/languages.
type Language struct {
	Key  string `json:"key"`
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// LanguagesResponse is returned by GET /code/languages.
type LanguagesResponse struct {
	Languages []Language `json:"languages"`
}

// --- Jobs ---

// Job represents an async background job.
type Job struct {
	ID          string     `json:"id"`
	JobType     string     `json:"job_type"`
	Status      string     `json:"status"`
	Attempt     int        `json:"attempt"`
	MaxAttempts int        `json:"max_attempts"`
	Error       *string    `json:"error,omitempty"`
	RunAt       time.Time  `json:"run_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// JobStatus constants for Job.Status.
const (
	JobStatusPending   = "pending"
	JobStatusRunning   = "running"
	JobStatusCompleted = "completed"
	JobStatusFailed    = "failed"
)
