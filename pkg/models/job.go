// Package models contains shared data models used across the analysisctl codebase.
package models

import (
	"encoding/json"
	"time"
)

const (
	JobStatusSubmitted  = "submitted"
	JobStatusProcessing = "processing"
	JobStatusCompleted  = "completed"
	JobStatusFailed     = "failed"

	// JobStatusTimeout is never reported by the agent. The poller assigns it
	// when it gives up waiting; the remote job may still be running.
	JobStatusTimeout = "timeout"
)

const (
	AnalysisComprehensive = "comprehensive"
	AnalysisThematic      = "thematic"
	AnalysisSentiment     = "sentiment"
	AnalysisSummary       = "summary"
)

// KnownAnalysisTypes lists the selectors the agent documents. The agent may
// accept others; the client forwards whatever it is given.
var KnownAnalysisTypes = []string{
	AnalysisComprehensive,
	AnalysisThematic,
	AnalysisSentiment,
	AnalysisSummary,
}

// Job is one server-tracked content-analysis task. The client submits content,
// receives the ID immediately and polls until Status is terminal.
type Job struct {
	ID           string          `json:"analysis_id"`
	AnalysisType string          `json:"analysis_type"`
	Status       string          `json:"status"`
	SubmittedAt  time.Time       `json:"submitted_at"`
	CompletedAt  *time.Time      `json:"completed_at,omitempty"`
	Result       json.RawMessage `json:"results,omitempty"`
	Error        string          `json:"error,omitempty"`
}

// IsTerminal reports whether status is completed or failed (server terminal)
// or timeout (client terminal).
func IsTerminal(status string) bool {
	switch status {
	case JobStatusCompleted, JobStatusFailed, JobStatusTimeout:
		return true
	}
	return false
}

// Terminal reports whether the job has reached a state it can never leave.
func (j *Job) Terminal() bool {
	return IsTerminal(j.Status)
}

// Advance applies a freshly observed record to j. It refuses observations that
// would move the job backwards: nothing leaves a terminal state, and processing
// never returns to submitted. Result and Error are only taken together with a
// terminal status, and never both. Reports whether j changed.
func (j *Job) Advance(obs Job) bool {
	if j.Terminal() || obs.Status == "" {
		return false
	}
	if obs.Status == JobStatusSubmitted && j.Status == JobStatusProcessing {
		return false
	}
	if obs.Status == JobStatusTimeout {
		return false
	}

	if j.ID == "" {
		j.ID = obs.ID
	}
	if j.AnalysisType == "" {
		j.AnalysisType = obs.AnalysisType
	}
	if j.SubmittedAt.IsZero() {
		j.SubmittedAt = obs.SubmittedAt
	}

	changed := j.Status != obs.Status
	j.Status = obs.Status

	switch obs.Status {
	case JobStatusCompleted:
		j.Result = obs.Result
		j.Error = ""
		j.CompletedAt = completedAt(obs.CompletedAt)
		changed = true
	case JobStatusFailed:
		j.Result = nil
		j.Error = obs.Error
		if j.Error == "" {
			j.Error = "analysis failed without a diagnostic from the agent"
		}
		j.CompletedAt = completedAt(obs.CompletedAt)
		changed = true
	}
	return changed
}

// TimedOut returns a copy of j marked with the client-only timeout status.
func (j Job) TimedOut(reason string) Job {
	j.Status = JobStatusTimeout
	j.Result = nil
	j.CompletedAt = nil
	j.Error = reason
	return j
}

func completedAt(t *time.Time) *time.Time {
	if t != nil && !t.IsZero() {
		c := *t
		return &c
	}
	now := time.Now().UTC()
	return &now
}

// JobSummary is one row of the agent's bulk job listing.
type JobSummary struct {
	ID           string `json:"analysis_id"`
	Status       string `json:"status"`
	AnalysisType string `json:"analysis_type"`
}

// JobList is the agent's bulk job listing.
type JobList struct {
	TotalJobs int          `json:"total_jobs"`
	Jobs      []JobSummary `json:"jobs"`
}
