package code

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
)

// Judge0 status ids.
const (
	StatusInQueue           = 1
	StatusProcessing        = 2
	StatusAccepted          = 3
	StatusWrongAnswer       = 4
	StatusTimeLimitExceeded = 5
	StatusCompilationError  = 6
	StatusRuntimeSIGSEGV    = 7
	StatusRuntimeSIGXFSZ    = 8
	StatusRuntimeSIGFPE     = 9
	StatusRuntimeSIGABRT    = 10
	StatusRuntimeNZEC       = 11
	StatusRuntimeOther      = 12
	StatusInternalError     = 13
	StatusExecFormatError   = 14
)

// SubmissionResponse is a submission as Judge0 returns it with base64_encoded=true.
// Text fields are base64 and may be null.
type SubmissionResponse struct {
	Token         string  `json:"token"`
	StatusID      int     `json:"status_id"`
	Stdout        *string `json:"stdout"`
	Stderr        *string `json:"stderr"`
	CompileOutput *string `json:"compile_output"`
	Message       *string `json:"message"`
	Time          *string `json:"time"`
	Memory        *int    `json:"memory"`
	Status        struct {
		ID          int    `json:"id"`
		Description string `json:"description"`
	} `json:"status"`
}

// statusID prefers the flat status_id field and falls back to status.id.
func (r *SubmissionResponse) statusID() int {
	if r.StatusID != 0 {
		return r.StatusID
	}
	return r.Status.ID
}

// Terminal reports whether the judge has finished with this submission.
func (r *SubmissionResponse) Terminal() bool {
	return r.statusID() > StatusProcessing
}

// Submission is a decoded Judge0 submission. Missing text fields are empty strings.
type Submission struct {
	Token             string
	StatusID          int
	StatusDescription string
	Stdout            string
	Stderr            string
	CompileOutput     string
	Message           string
	Time              string
	Memory            int
}

// Decode base64-decodes every text field of r.
func (r *SubmissionResponse) Decode() (*Submission, error) {
	sub := &Submission{
		Token:             r.Token,
		StatusID:          r.statusID(),
		StatusDescription: r.Status.Description,
	}
	fields := []struct {
		name string
		src  *string
		dst  *string
	}{
		{"stdout", r.Stdout, &sub.Stdout},
		{"stderr", r.Stderr, &sub.Stderr},
		{"compile_output", r.CompileOutput, &sub.CompileOutput},
		{"message", r.Message, &sub.Message},
	}
	for _, f := range fields {
		if f.src == nil {
			continue
		}
		dec, err := DecodeBase64(*f.src)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", f.name, err)
		}
		*f.dst = dec
	}
	if r.Time != nil {
		sub.Time = *r.Time
	}
	if r.Memory != nil {
		sub.Memory = *r.Memory
	}
	return sub, nil
}

// EncodeBase64 encodes source text the way Judge0 expects it.
func EncodeBase64(s string) string {
	return base64.StdEncoding.EncodeToString([]byte(s))
}

// DecodeBase64 decodes a Judge0 base64 field. Judge0 wraps encoded output
// every 60 characters, so line breaks are dropped first.
func DecodeBase64(s string) (string, error) {
	s = strings.NewReplacer("\n", "", "\r", "").Replace(s)
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Classify maps a decoded submission onto a Result. It is pure: the same
// submission always yields the same Result.
func Classify(s *Submission) Result {
	switch id := s.StatusID; {
	case id == StatusAccepted:
		out := s.Stdout
		if out == "" {
			out = "No output"
		}
		// stderr on an accepted run is surfaced but does not fail it.
		return Result{Success: true, Output: out, Error: s.Stderr, Outcome: OutcomeAccepted}

	case id == StatusCompilationError:
		return Result{
			Output:  s.Stdout,
			Error:   firstNonEmpty(s.CompileOutput, "Compilation error"),
			Outcome: OutcomeCompileError,
		}

	case id == StatusTimeLimitExceeded:
		return Result{
			Output:  s.Stdout,
			Error:   "Time Limit Exceeded - Your code took too long to execute.",
			Outcome: OutcomeTimeLimitExceeded,
		}

	case id >= StatusRuntimeSIGSEGV && id <= StatusRuntimeOther:
		desc := firstNonEmpty(s.StatusDescription, "Unknown")
		return Result{
			Output:  s.Stdout,
			Error:   firstNonEmpty(s.Stderr, s.Message, "Runtime Error ("+desc+")"),
			Outcome: OutcomeRuntimeError,
		}

	case id == StatusInternalError:
		return failure(OutcomeInternalError, "Internal Error - The judge encountered an issue. Please try again.")

	case id == StatusInQueue || id == StatusProcessing:
		return failure(OutcomeProcessing, "Code execution is still processing. Please try again.")
	}

	desc := firstNonEmpty(s.StatusDescription, strconv.Itoa(s.StatusID))
	return Result{
		Output:  s.Stdout,
		Error:   firstNonEmpty(s.Stderr, s.CompileOutput, s.Message, "Unexpected status: "+desc),
		Outcome: OutcomeUnexpected,
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
