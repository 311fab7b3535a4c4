package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/gsarma/codejudge/internal/code"
	"github.com/gsarma/codejudge/internal/store"
)

const errQueueDisabled = "queued execution is not configured; retry with ?sync=true"

// ExecuteCode queues a code execution job (async by default) or runs immediately with ?sync=true.
//
// Request body:
//
//	{
//	  "language":    "python",       // javascript, python or java
//	  "source_code": "print('hello')"
//	}
//
// Async (default): returns 202 {"job_id": "...", "status": "queued"}.
// Sync (?sync=true): returns 200 with {"success", "output", "error"}; judged
// failures such as compile errors are still 200.
// After async completion, retrieve results via GET /code/executions/:job_id.
func (h *Handler) ExecuteCode(c *gin.Context) {
	var body struct {
		Language   string `json:"language"`
		SourceCode string `json:"source_code"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if c.Query("sync") == "true" {
		result := h.provider.Execute(c.Request.Context(), body.Language, body.SourceCode)
		c.JSON(http.StatusOK, result)
		return
	}

	if h.queries == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": errQueueDisabled})
		return
	}

	payloadJSON, _ := json.Marshal(code.JobPayload{
		Language:   body.Language,
		SourceCode: body.SourceCode,
	})
	job, err := h.queries.CreateJob(c.Request.Context(), store.CreateJobParams{
		JobType: store.JobTypeCodeExecute,
		Payload: payloadJSON,
	})
	if err != nil {
		h.log().Error("queue code job", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to queue job"})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"job_id": job.ID, "status": "queued"})
}

// GetCodeExecution returns the stored output of a completed code.execute job.
// Call this after GET /jobs/:id reports status "completed".
func (h *Handler) GetCodeExecution(c *gin.Context) {
	if h.queries == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": errQueueDisabled})
		return
	}
	jobID, err := uuid.Parse(c.Param("job_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid job id"})
		return
	}

	exec, err := h.queries.GetCodeExecution(c.Request.Context(), jobID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "execution result not found"})
			return
		}
		h.log().Error("get code execution", zap.Stringer("job_id", jobID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load execution result"})
		return
	}

	c.JSON(http.StatusOK, exec)
}

// ListLanguages returns the languages the judge accepts.
func (h *Handler) ListLanguages(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"languages": code.Languages()})
}
