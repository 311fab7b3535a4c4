package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"go.uber.org/zap"

	"github.com/gsarma/codejudge/internal/store"
)

// JobExecutor executes a single job by type and payload.
type JobExecutor interface {
	ExecuteJob(ctx context.Context, jobID uuid.UUID, jobType string, payload json.RawMessage) error
}

// DefaultLease is how long a job may stay running before another worker
// assumes its owner died and returns it to the queue. It is well above the
// longest judge round trip.
const DefaultLease = 10 * time.Minute

// statusWriteTimeout bounds the final status write, which runs detached from
// the worker context so a shutdown cannot strand a job in running.
const statusWriteTimeout = 5 * time.Second

// Worker polls the database for pending jobs and executes them concurrently.
type Worker struct {
	store       store.Querier
	executor    JobExecutor
	concurrency int
	interval    time.Duration
	lease       time.Duration
	logger      *zap.Logger
}

// Option configures a Worker.
type Option func(*Worker)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(w *Worker) {
		w.logger = l
	}
}

// WithLease overrides DefaultLease.
func WithLease(d time.Duration) Option {
	return func(w *Worker) {
		w.lease = d
	}
}

func New(q store.Querier, executor JobExecutor, concurrency int, opts ...Option) *Worker {
	if concurrency < 1 {
		concurrency = 1
	}
	w := &Worker{
		store:       q,
		executor:    executor,
		concurrency: concurrency,
		interval:    500 * time.Millisecond,
		lease:       DefaultLease,
		logger:      zap.NewNop(),
	}
	for _, o := range opts {
		o(w)
	}
	return w
}

// Start spawns concurrency goroutines that each poll for jobs every 500ms,
// plus one that releases jobs whose lease expired. It blocks until ctx is
// cancelled and every in-flight job has recorded its status.
func (w *Worker) Start(ctx context.Context) {
	w.logger.Info("worker started", zap.Int("concurrency", w.concurrency))

	var wg sync.WaitGroup
	wg.Add(w.concurrency + 1)
	go func() {
		defer wg.Done()
		w.reclaimLoop(ctx)
	}()
	for i := 0; i < w.concurrency; i++ {
		go func() {
			defer wg.Done()
			w.loop(ctx)
		}()
	}

	<-ctx.Done()
	wg.Wait()
	w.logger.Info("worker stopped")
}

func (w *Worker) loop(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.processNext(ctx)
		}
	}
}

// reclaimLoop releases stale running jobs once at start and then every lease.
func (w *Worker) reclaimLoop(ctx context.Context) {
	w.releaseStale(ctx)
	ticker := time.NewTicker(w.lease)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.releaseStale(ctx)
		}
	}
}

func (w *Worker) releaseStale(ctx context.Context) {
	n, err := w.store.ReleaseStaleJobs(ctx, time.Now().Add(-w.lease))
	if err != nil {
		if ctx.Err() == nil {
			w.logger.Error("release stale jobs", zap.Error(err))
		}
		return
	}
	if n > 0 {
		w.logger.Warn("released stale jobs", zap.Int64("count", n))
	}
}

// Backoff is the delay before a failed job is retried: 2^attempt × 10s.
func Backoff(attempt int32) time.Duration {
	return time.Duration(int64(1)<<uint(attempt)) * 10 * time.Second
}

func (w *Worker) processNext(ctx context.Context) {
	job, err := w.store.ClaimNextJob(ctx)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || ctx.Err() != nil {
			return
		}
		w.logger.Error("claim job", zap.Error(err))
		return
	}

	log := w.logger.With(zap.Stringer("job_id", job.ID), zap.Int32("attempt", job.Attempt))
	execErr := w.executor.ExecuteJob(ctx, job.ID, job.JobType, json.RawMessage(job.Payload))

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), statusWriteTimeout)
	defer cancel()

	now := time.Now()
	switch {
	case execErr == nil:
		_, err = w.store.UpdateJobStatus(writeCtx, store.UpdateJobStatusParams{
			ID:          job.ID,
			Status:      store.JobStatusCompleted,
			Error:       pgtype.Text{Valid: false},
			CompletedAt: &now,
			RunAt:       job.RunAt,
		})

	case ctx.Err() != nil:
		// Interrupted by shutdown: hand the job back to the queue right away.
		log.Warn("job interrupted, requeueing", zap.Error(execErr))
		_, err = w.store.UpdateJobStatus(writeCtx, store.UpdateJobStatusParams{
			ID:          job.ID,
			Status:      store.JobStatusPending,
			Error:       pgtype.Text{String: execErr.Error(), Valid: true},
			CompletedAt: nil,
			RunAt:       now,
		})

	case job.Attempt < job.MaxAttempts:
		runAt := now.Add(Backoff(job.Attempt))
		log.Warn("job failed, retrying", zap.Error(execErr), zap.Time("run_at", runAt))
		_, err = w.store.UpdateJobStatus(writeCtx, store.UpdateJobStatusParams{
			ID:          job.ID,
			Status:      store.JobStatusPending,
			Error:       pgtype.Text{String: execErr.Error(), Valid: true},
			CompletedAt: nil,
			RunAt:       runAt,
		})

	default:
		log.Error("job failed permanently", zap.Error(execErr))
		_, err = w.store.UpdateJobStatus(writeCtx, store.UpdateJobStatusParams{
			ID:          job.ID,
			Status:      store.JobStatusFailed,
			Error:       pgtype.Text{String: execErr.Error(), Valid: true},
			CompletedAt: nil,
			RunAt:       job.RunAt,
		})
	}
	if err != nil {
		log.Error("update job status", zap.Error(err))
	}
}
