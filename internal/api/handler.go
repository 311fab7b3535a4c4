package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/gsarma/codejudge/internal/code"
	"github.com/gsarma/codejudge/internal/store"
)

// Handler serves the HTTP API and executes queued jobs for the worker.
type Handler struct {
	queries  store.Querier
	provider code.Provider
	logger   *zap.Logger
}

// Health reports that the server is up. It does not contact the judge.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// GetJob returns the status of a queued job.
func (h *Handler) GetJob(c *gin.Context) {
	if h.queries == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": errQueueDisabled})
		return
	}
	jobID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid job id"})
		return
	}

	job, err := h.queries.GetJob(c.Request.Context(), jobID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
			return
		}
		h.log().Error("get job", zap.Stringer("job_id", jobID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load job"})
		return
	}

	c.JSON(http.StatusOK, job)
}

func (h *Handler) log() *zap.Logger {
	if h.logger == nil {
		return zap.NewNop()
	}
	return h.logger
}
