package code

import "context"

// Result is the normalized outcome of a single code execution, shaped for display.
// Judged failures (compile errors, runtime errors, timeouts) are results, not Go errors.
type Result struct {
	Success bool   `json:"success"`
	Output  string `json:"output,omitempty"`
	Error   string `json:"error,omitempty"`

	// Outcome records how the call ended. It is not part of the wire format.
	Outcome Outcome `json:"-"`
}

// JobPayload is the serialized form of a code.execute job stored in the jobs table.
type JobPayload struct {
	Language   string `json:"language"`
	SourceCode string `json:"source_code"`
}

// Provider defines the interface each code execution provider must implement.
// Execute never returns an error: every failure is folded into the Result.
type Provider interface {
	Execute(ctx context.Context, language, sourceCode string) Result
}
