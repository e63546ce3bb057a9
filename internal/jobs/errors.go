package jobs

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyJobID  = errors.New("agent accepted the submission but returned no analysis_id")
	ErrNotHealthy  = errors.New("agent is not healthy")
	ErrEmptyJobIDs = errors.New("no job ids to wait for")
)

// SubmissionError is returned when a submission could not be delivered within
// the retry budget. It is final for that call.
type SubmissionError struct {
	Attempts int
	Err      error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("failed to submit analysis job after %d attempt(s): %v", e.Attempts, e.Err)
}

func (e *SubmissionError) Unwrap() error { return e.Err }
