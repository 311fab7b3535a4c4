package codejudge

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

// CodeService runs programs and fetches their results.
type CodeService struct {
	c *Client
}

// Execute runs the program and waits for the verdict (?sync=true).
// A program that fails to compile or crashes is a Result with Success false,
// not an error; errors are reserved for transport and API failures.
func (s *CodeService) Execute(ctx context.Context, req ExecuteRequest) (*Result, error) {
	query := map[string]string{"sync": "true"}
	return doRequestWithQuery[Result](ctx, s.c, http.MethodPost, "/code/execute", query, req, http.StatusOK)
}

// Queue submits the program as a background job and returns its job ID.
// Poll Jobs.Get until the job completes, then call GetExecution.
func (s *CodeService) Queue(ctx context.Context, req ExecuteRequest) (*QueuedResponse, error) {
	return doRequest[QueuedResponse](ctx, s.c, http.MethodPost, "/code/execute", req, http.StatusAccepted)
}

// GetExecution returns the stored result of a completed job.
// It fails with a 404 *APIError until the worker has stored the result.
func (s *CodeService) GetExecution(ctx context.Context, jobID string) (*Execution, error) {
	path := fmt.Sprintf("/code/executions/%s", url.PathEscape(jobID))
	return doRequest[Execution](ctx, s.c, http.MethodGet, path, nil, http.StatusOK)
}

// Languages lists the languages the server accepts.
func (s *CodeService) Languages(ctx context.Context) ([]Language, error) {
	result, err := doRequest[LanguagesResponse](ctx, s.c, http.MethodGet, "/code/languages", nil, http.StatusOK)
	if err != nil {
		return nil, err
	}
	return result.Languages, nil
}
