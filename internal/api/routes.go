package api

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/gsarma/codejudge/internal/code"
	"github.com/gsarma/codejudge/internal/config"
	"github.com/gsarma/codejudge/internal/metrics"
	"github.com/gsarma/codejudge/internal/store"
)

// RegisterRoutes wires the HTTP API. queries may be nil, in which case only
// synchronous execution is available.
func RegisterRoutes(r *gin.Engine, queries store.Querier, provider code.Provider, cfg config.Config, logger *zap.Logger) *Handler {
	h := &Handler{
		queries:  queries,
		provider: provider,
		logger:   logger,
	}

	r.GET("/health", h.Health)
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	authed := r.Group("/", APIKeyMiddleware(cfg.APIKey))
	{
		authed.POST("/code/execute", RateLimit(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst), h.ExecuteCode)
		authed.GET("/code/executions/:job_id", h.GetCodeExecution)
		authed.GET("/code/languages", h.ListLanguages)
		authed.GET("/jobs/:id", h.GetJob)
	}

	return h
}
