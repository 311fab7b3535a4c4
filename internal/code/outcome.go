package code

import "errors"

// Outcome labels how an execution ended. Used for metrics and logs.
type Outcome string

const (
	OutcomeAccepted            Outcome = "accepted"
	OutcomeCompileError        Outcome = "compile_error"
	OutcomeTimeLimitExceeded   Outcome = "time_limit_exceeded"
	OutcomeRuntimeError        Outcome = "runtime_error"
	OutcomeInternalError       Outcome = "internal_error"
	OutcomeProcessing          Outcome = "processing"
	OutcomeUnexpected          Outcome = "unexpected"
	OutcomeUnsupportedLanguage Outcome = "unsupported_language"
	OutcomeNotConfigured       Outcome = "not_configured"
	OutcomeSubmitFailed        Outcome = "submit_failed"
	OutcomePollFailed          Outcome = "poll_failed"
	OutcomeDecodeFailed        Outcome = "decode_failed"
	OutcomePollExhausted       Outcome = "poll_exhausted"
)

var (
	// ErrNotConfigured means no RapidAPI key was set.
	ErrNotConfigured = errors.New("rapidapi key is not configured")
	ErrMissingToken  = errors.New("judge0 response did not include a submission token")

	// ErrPollAttemptsExhausted means the judge never reported a terminal status
	// within MaxPollAttempts polls.
	ErrPollAttemptsExhausted = errors.New("poll attempts exhausted before a terminal status")
)

const notConfiguredMessage = "RapidAPI key is not configured. Please set RAPIDAPI_KEY in your environment or .env file."

const pollExhaustedMessage = "Execution timed out - the judge was still processing after 10 attempts. Please try again."

func failure(outcome Outcome, msg string) Result {
	return Result{Success: false, Error: msg, Outcome: outcome}
}
