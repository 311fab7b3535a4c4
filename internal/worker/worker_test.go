package worker_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/gsarma/codejudge/internal/store"
	"github.com/gsarma/codejudge/internal/worker"
)

// stubQuerier implements store.Querier for worker tests.
// Only ClaimNextJob, UpdateJobStatus and ReleaseStaleJobs are exercised; all others return zero values.
type stubQuerier struct {
	claimNextJobFn     func(ctx context.Context) (store.Job, error)
	updateJobStatusFn  func(ctx context.Context, arg store.UpdateJobStatusParams) (store.Job, error)
	releaseStaleJobsFn func(ctx context.Context, startedBefore time.Time) (int64, error)
}

func (s *stubQuerier) ClaimNextJob(ctx context.Context) (store.Job, error) {
	if s.claimNextJobFn != nil {
		return s.claimNextJobFn(ctx)
	}
	return store.Job{}, pgx.ErrNoRows
}
func (s *stubQuerier) UpdateJobStatus(ctx context.Context, arg store.UpdateJobStatusParams) (store.Job, error) {
	if s.updateJobStatusFn != nil {
		return s.updateJobStatusFn(ctx, arg)
	}
	return store.Job{}, nil
}
func (s *stubQuerier) ReleaseStaleJobs(ctx context.Context, startedBefore time.Time) (int64, error) {
	if s.releaseStaleJobsFn != nil {
		return s.releaseStaleJobsFn(ctx, startedBefore)
	}
	return 0, nil
}
func (s *stubQuerier) CreateJob(ctx context.Context, arg store.CreateJobParams) (store.Job, error) {
	return store.Job{}, nil
}
func (s *stubQuerier) GetJob(ctx context.Context, id uuid.UUID) (store.Job, error) {
	return store.Job{}, nil
}
func (s *stubQuerier) InsertCodeExecution(ctx context.Context, arg store.InsertCodeExecutionParams) (store.CodeExecution, error) {
	return store.CodeExecution{}, nil
}
func (s *stubQuerier) GetCodeExecution(ctx context.Context, jobID uuid.UUID) (store.CodeExecution, error) {
	return store.CodeExecution{}, nil
}

// stubExecutor implements worker.JobExecutor for tests.
type stubExecutor struct {
	executeJobFn func(ctx context.Context, jobID uuid.UUID, jobType string, payload json.RawMessage) error
}

func (s *stubExecutor) ExecuteJob(ctx context.Context, jobID uuid.UUID, jobType string, payload json.RawMessage) error {
	if s.executeJobFn != nil {
		return s.executeJobFn(ctx, jobID, jobType, payload)
	}
	return nil
}

// runWorkerUntilDone starts a single-goroutine worker and waits for done to be closed or the test to time out.
func runWorkerUntilDone(t *testing.T, q store.Querier, exec worker.JobExecutor, done <-chan struct{}) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	w := worker.New(q, exec, 1, worker.WithLogger(zap.NewNop()))
	go w.Start(ctx)
	select {
	case <-done:
	case <-ctx.Done():
		t.Fatal("timed out waiting for worker to process job")
	}
}

func makeJob(attempt, maxAttempts int32) store.Job {
	return store.Job{
		ID:          uuid.New(),
		JobType:     store.JobTypeCodeExecute,
		Payload:     []byte(`{"language":"python","source_code":"print(1)"}`),
		Status:      store.JobStatusRunning,
		Attempt:     attempt,
		MaxAttempts: maxAttempts,
		RunAt:       time.Now(),
	}
}

// singleJobQuerier hands out job once and captures the status update.
func singleJobQuerier(job store.Job, captured *store.UpdateJobStatusParams, done chan struct{}) *stubQuerier {
	var claimCount int
	return &stubQuerier{
		claimNextJobFn: func(_ context.Context) (store.Job, error) {
			claimCount++
			if claimCount == 1 {
				return job, nil
			}
			return store.Job{}, pgx.ErrNoRows
		},
		updateJobStatusFn: func(_ context.Context, arg store.UpdateJobStatusParams) (store.Job, error) {
			*captured = arg
			close(done)
			return store.Job{}, nil
		},
	}
}

func TestWorker_NoJobs(t *testing.T) {
	// When no jobs are pending the worker should not call UpdateJobStatus.
	updateCalled := make(chan struct{}, 1)
	q := &stubQuerier{
		updateJobStatusFn: func(_ context.Context, _ store.UpdateJobStatusParams) (store.Job, error) {
			updateCalled <- struct{}{}
			return store.Job{}, nil
		},
	}
	ctx, cancel := context.WithTimeout(context.Background(), 700*time.Millisecond)
	defer cancel()
	w := worker.New(q, &stubExecutor{}, 1)
	w.Start(ctx) // blocks until timeout
	select {
	case <-updateCalled:
		t.Error("UpdateJobStatus should not be called when there are no jobs")
	default:
	}
}

func TestWorker_JobSucceeds(t *testing.T) {
	job := makeJob(1, 3)
	var captured store.UpdateJobStatusParams
	done := make(chan struct{})

	var gotID uuid.UUID
	var gotType string
	exec := &stubExecutor{
		executeJobFn: func(_ context.Context, jobID uuid.UUID, jobType string, _ json.RawMessage) error {
			gotID, gotType = jobID, jobType
			return nil
		},
	}
	runWorkerUntilDone(t, singleJobQuerier(job, &captured, done), exec, done)

	if gotID != job.ID || gotType != store.JobTypeCodeExecute {
		t.Errorf("executor got id=%s type=%s", gotID, gotType)
	}
	if captured.Status != store.JobStatusCompleted {
		t.Errorf("expected status=completed, got %s", captured.Status)
	}
	if captured.CompletedAt == nil {
		t.Error("expected CompletedAt to be set on success")
	}
	if captured.Error.Valid {
		t.Error("expected Error to be null on success")
	}
}

func TestWorker_JobFailsWithRetry(t *testing.T) {
	// attempt=1, max_attempts=3 → should reset to pending with a future run_at.
	job := makeJob(1, 3)
	execErr := errors.New("store unavailable")
	var captured store.UpdateJobStatusParams
	done := make(chan struct{})

	exec := &stubExecutor{
		executeJobFn: func(context.Context, uuid.UUID, string, json.RawMessage) error {
			return execErr
		},
	}
	runWorkerUntilDone(t, singleJobQuerier(job, &captured, done), exec, done)

	if captured.Status != store.JobStatusPending {
		t.Errorf("expected status=pending for retry, got %s", captured.Status)
	}
	if !captured.Error.Valid || captured.Error.String != execErr.Error() {
		t.Errorf("expected error=%q, got %+v", execErr.Error(), captured.Error)
	}
	if captured.RunAt.Before(time.Now()) {
		t.Error("expected run_at to be in the future for retry backoff")
	}
	if captured.CompletedAt != nil {
		t.Error("expected CompletedAt to be nil on retry")
	}
}

func TestWorker_JobExhaustsRetries(t *testing.T) {
	// attempt=3, max_attempts=3 → should mark as failed, not retry.
	job := makeJob(3, 3)
	execErr := errors.New("permanent failure")
	var captured store.UpdateJobStatusParams
	done := make(chan struct{})

	exec := &stubExecutor{
		executeJobFn: func(context.Context, uuid.UUID, string, json.RawMessage) error {
			return execErr
		},
	}
	runWorkerUntilDone(t, singleJobQuerier(job, &captured, done), exec, done)

	if captured.Status != store.JobStatusFailed {
		t.Errorf("expected status=failed after exhausting retries, got %s", captured.Status)
	}
	if !captured.Error.Valid || captured.Error.String != execErr.Error() {
		t.Errorf("expected error=%q, got %+v", execErr.Error(), captured.Error)
	}
}

func TestWorker_ShutdownWaitsAndRequeuesInFlightJob(t *testing.T) {
	job := makeJob(1, 3)
	started := make(chan struct{})
	var finished atomic.Bool

	var (
		claimCount int
		updated    bool
		captured   store.UpdateJobStatusParams
		writeErr   error
	)
	q := &stubQuerier{
		claimNextJobFn: func(context.Context) (store.Job, error) {
			claimCount++
			if claimCount == 1 {
				return job, nil
			}
			return store.Job{}, pgx.ErrNoRows
		},
		updateJobStatusFn: func(ctx context.Context, arg store.UpdateJobStatusParams) (store.Job, error) {
			updated, captured, writeErr = true, arg, ctx.Err()
			return store.Job{}, nil
		},
	}
	exec := &stubExecutor{
		executeJobFn: func(ctx context.Context, _ uuid.UUID, _ string, _ json.RawMessage) error {
			close(started)
			<-ctx.Done()
			time.Sleep(50 * time.Millisecond)
			finished.Store(true)
			return ctx.Err()
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	stopped := make(chan struct{})
	w := worker.New(q, exec, 1, worker.WithLogger(zap.NewNop()))
	go func() {
		w.Start(ctx)
		close(stopped)
	}()

	select {
	case <-started:
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for the job to start")
	}
	cancel()
	select {
	case <-stopped:
	case <-time.After(3 * time.Second):
		t.Fatal("Start did not return after cancellation")
	}

	if !finished.Load() {
		t.Error("Start returned while a job was still running")
	}
	if !updated {
		t.Fatal("expected the interrupted job to record its status")
	}
	if writeErr != nil {
		t.Errorf("status write must not use the cancelled context, got %v", writeErr)
	}
	if captured.Status != store.JobStatusPending {
		t.Errorf("expected interrupted job to return to pending, got %s", captured.Status)
	}
	if captured.RunAt.After(time.Now()) {
		t.Errorf("expected interrupted job to be runnable immediately, run_at=%v", captured.RunAt)
	}
}

func TestWorker_ReleasesStaleJobsOnStart(t *testing.T) {
	lease := time.Hour
	cutoffs := make(chan time.Time, 1)
	q := &stubQuerier{
		releaseStaleJobsFn: func(_ context.Context, startedBefore time.Time) (int64, error) {
			select {
			case cutoffs <- startedBefore:
			default:
			}
			return 2, nil
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w := worker.New(q, &stubExecutor{}, 1, worker.WithLease(lease))
	go w.Start(ctx)

	select {
	case cutoff := <-cutoffs:
		want := time.Now().Add(-lease)
		if d := want.Sub(cutoff); d < 0 || d > 2*time.Second {
			t.Errorf("expected cutoff near %v, got %v", want, cutoff)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("expected stale jobs to be released on start")
	}
}

func TestBackoff_GrowsWithAttempt(t *testing.T) {
	cases := []struct {
		attempt int32
		want    time.Duration
	}{
		{1, 20 * time.Second},
		{2, 40 * time.Second},
		{3, 80 * time.Second},
	}
	for _, tc := range cases {
		if got := worker.Backoff(tc.attempt); got != tc.want {
			t.Errorf("Backoff(%d) = %v, want %v", tc.attempt, got, tc.want)
		}
	}
}

// Compile-time check: stubQuerier satisfies store.Querier.
var _ store.Querier = (*stubQuerier)(nil)

// Compile-time check: stubExecutor satisfies worker.JobExecutor.
var _ worker.JobExecutor = (*stubExecutor)(nil)
