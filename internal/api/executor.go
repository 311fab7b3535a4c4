package api

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gsarma/codejudge/internal/code"
	"github.com/gsarma/codejudge/internal/store"
)

// ExecuteJob dispatches a job to the appropriate handler by type.
// It implements worker.JobExecutor.
func (h *Handler) ExecuteJob(ctx context.Context, jobID uuid.UUID, jobType string, payload json.RawMessage) error {
	switch jobType {
	case store.JobTypeCodeExecute:
		return h.executeCodeJob(ctx, jobID, payload)
	default:
		return fmt.Errorf("unknown job type: %s", jobType)
	}
}

// executeCodeJob runs a queued submission and stores its result. A judged
// failure is stored like any other result; only payload and store errors
// and cancellation fail the job.
func (h *Handler) executeCodeJob(ctx context.Context, jobID uuid.UUID, raw json.RawMessage) error {
	var p code.JobPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return fmt.Errorf("invalid code job payload: %w", err)
	}

	result := h.provider.Execute(ctx, p.Language, p.SourceCode)
	if err := ctx.Err(); err != nil {
		// A cancelled run says nothing about the program; leave it for a retry.
		return fmt.Errorf("code execution interrupted: %w", err)
	}

	_, err := h.queries.InsertCodeExecution(context.WithoutCancel(ctx), store.InsertCodeExecutionParams{
		JobID:    jobID,
		Language: p.Language,
		Success:  result.Success,
		Output:   result.Output,
		Error:    result.Error,
	})
	if err != nil {
		return fmt.Errorf("store code execution: %w", err)
	}
	h.log().Debug("code job stored", zap.Stringer("job_id", jobID), zap.Bool("success", result.Success))
	return nil
}
