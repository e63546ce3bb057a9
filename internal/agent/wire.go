package agent

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/kiranshivaraju/analysisctl/pkg/models"
)

// --- agent response types ---

// jobRecord is GET /analysis/{id}. Timestamps arrive as ISO-8601 strings that
// may or may not carry a zone, so they are parsed leniently.
type jobRecord struct {
	ID           string          `json:"analysis_id"`
	Status       string          `json:"status"`
	AnalysisType string          `json:"analysis_type"`
	Timestamp    string          `json:"timestamp"`
	CompletedAt  string          `json:"completed_at"`
	Results      json.RawMessage `json:"results"`
	Error        string          `json:"error"`
}

func (r jobRecord) toJob() models.Job {
	job := models.Job{
		ID:           r.ID,
		Status:       r.Status,
		AnalysisType: r.AnalysisType,
		Error:        r.Error,
	}
	if t, ok := parseTimestamp(r.Timestamp); ok {
		job.SubmittedAt = t
	}
	if t, ok := parseTimestamp(r.CompletedAt); ok {
		job.CompletedAt = &t
	}
	if len(r.Results) > 0 && string(r.Results) != "null" {
		job.Result = r.Results
	}
	return job
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999",
	"2006-01-02 15:04:05",
}

// parseTimestamp accepts RFC 3339 and zone-less ISO-8601 values. Zone-less
// values are taken as UTC.
func parseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
