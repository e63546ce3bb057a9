// Package present renders jobs and monitor events for a terminal.
package present

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/kiranshivaraju/analysisctl/internal/jobs"
	"github.com/kiranshivaraju/analysisctl/pkg/models"
)

const rule = "============================================================"

// Text writes human-readable output. It is safe for concurrent use.
type Text struct {
	mu           sync.Mutex
	w            io.Writer
	progressLine bool
}

// NewText creates a Text presenter writing to w.
func NewText(w io.Writer) *Text {
	return &Text{w: w}
}

func (t *Text) Present(ev jobs.Event) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.endProgress()

	switch ev.Kind {
	case jobs.EventDiscovered:
		fmt.Fprintf(t.w, "\nNew job detected: %s\n", ev.Summary.ID)
		fmt.Fprintf(t.w, "   Type:   %s\n", orUnknown(ev.Summary.AnalysisType))
		fmt.Fprintf(t.w, "   Status: %s\n", orUnknown(ev.Summary.Status))
	case jobs.EventCompleted, jobs.EventFailed:
		if ev.Job != nil {
			writeJob(t.w, ev.Job)
		}
	}
}

func (t *Text) Progress(totalJobs int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintf(t.w, "\rMonitoring %d jobs... (Ctrl+C to stop)", totalJobs)
	t.progressLine = true
}

// Job renders a single job record.
func (t *Text) Job(job *models.Job) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.endProgress()
	writeJob(t.w, job)
}

// Summary renders the end-of-session totals of a monitor run.
func (t *Text) Summary(stats jobs.Stats) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.endProgress()
	fmt.Fprintf(t.w, "\nMonitoring stopped after %s\n", stats.Stopped.Sub(stats.Started).Round(time.Second))
	fmt.Fprintf(t.w, "Total jobs monitored: %d\n", stats.Known)
	fmt.Fprintf(t.w, "Results presented:    %d\n", stats.Presented)
}

// List renders the agent's bulk job listing as a table.
func (t *Text) List(list *models.JobList) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.endProgress()
	fmt.Fprintf(t.w, "%d job(s)\n", list.TotalJobs)
	if len(list.Jobs) == 0 {
		return
	}
	fmt.Fprintf(t.w, "%-38s %-14s %s\n", "ID", "STATUS", "TYPE")
	for _, j := range list.Jobs {
		fmt.Fprintf(t.w, "%-38s %-14s %s\n", j.ID, j.Status, orUnknown(j.AnalysisType))
	}
}

func (t *Text) endProgress() {
	if t.progressLine {
		fmt.Fprintln(t.w)
		t.progressLine = false
	}
}

func writeJob(w io.Writer, job *models.Job) {
	fmt.Fprintf(w, "\n%s\nANALYSIS RESULTS - %s\n%s\n", rule, job.ID, rule)
	fmt.Fprintf(w, "Status: %s\n", job.Status)
	if job.AnalysisType != "" {
		fmt.Fprintf(w, "Type: %s\n", job.AnalysisType)
	}
	if !job.SubmittedAt.IsZero() {
		fmt.Fprintf(w, "Submitted: %s\n", job.SubmittedAt.Format(time.RFC3339))
	}
	if job.CompletedAt != nil {
		fmt.Fprintf(w, "Completed: %s\n", job.CompletedAt.Format(time.RFC3339))
	}

	switch job.Status {
	case models.JobStatusCompleted:
		writeResult(w, job)
	case models.JobStatusFailed:
		fmt.Fprintf(w, "\nAnalysis failed:\n   %s\n", orUnknown(job.Error))
	case models.JobStatusTimeout:
		fmt.Fprintf(w, "\nGave up waiting (the agent may still finish):\n   %s\n", job.Error)
	default:
		fmt.Fprintln(w, "\nAnalysis still in progress...")
	}
	fmt.Fprintln(w, rule)
}

func writeResult(w io.Writer, job *models.Job) {
	res, err := models.DecodeResult(job.Result)
	if err != nil {
		fmt.Fprintf(w, "\nResult:\n   %s\n", string(job.Result))
		return
	}

	if len(res.Themes) > 0 {
		fmt.Fprintln(w, "\nKey themes:")
		writeBullets(w, res.Themes)
	}
	if res.Sentiment != "" {
		fmt.Fprintf(w, "\nSentiment: %s\n", res.Sentiment)
	}
	if res.Confidence != "" {
		fmt.Fprintf(w, "\nConfidence: %s\n", res.Confidence)
	}
	if res.Summary != "" {
		fmt.Fprintf(w, "\nSummary:\n   %s\n", res.Summary)
	}
	if len(res.Recommendations) > 0 {
		fmt.Fprintln(w, "\nRecommendations:")
		writeBullets(w, res.Recommendations)
	}
	if res.RawResponse != "" {
		fmt.Fprintf(w, "\nRaw analysis:\n   %s\n", strings.TrimSpace(res.RawResponse))
	}
}

func writeBullets(w io.Writer, items []string) {
	for _, it := range items {
		fmt.Fprintf(w, "   - %s\n", it)
	}
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

// Compile-time check that Text implements jobs.Presenter.
var _ jobs.Presenter = (*Text)(nil)
