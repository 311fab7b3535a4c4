package codejudge

import "fmt"

// APIError is returned when the codejudge API responds with a non-success status.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("codejudge: HTTP %d: %s", e.StatusCode, e.Message)
}
