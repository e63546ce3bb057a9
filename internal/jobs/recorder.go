package jobs

import (
	"context"
	"log/slog"

	"github.com/kiranshivaraju/analysisctl/pkg/models"
)

// Recorder is told about every job the client submits and every status change
// it observes. Recording is best effort: failures are logged, never returned
// to the caller of Submit or WaitForCompletion.
type Recorder interface {
	RecordJob(ctx context.Context, job models.Job) error
}

// Recorders fans a record out to every non-nil recorder.
func Recorders(rs ...Recorder) Recorder {
	var out multiRecorder
	for _, r := range rs {
		if r != nil {
			out = append(out, r)
		}
	}
	return out
}

type multiRecorder []Recorder

func (m multiRecorder) RecordJob(ctx context.Context, job models.Job) error {
	var first error
	for _, r := range m {
		if err := r.RecordJob(ctx, job); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func record(ctx context.Context, r Recorder, logger *slog.Logger, job models.Job) {
	if r == nil {
		return
	}
	if err := r.RecordJob(ctx, job); err != nil {
		logger.Warn("recording job failed", "job_id", job.ID, "status", job.Status, "error", err)
	}
}
