// Package jobs tracks analysis jobs on the agent: submission, waiting for a
// terminal state and monitoring the agent's whole job list.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kiranshivaraju/analysisctl/internal/agent"
	"github.com/kiranshivaraju/analysisctl/internal/retry"
	"github.com/kiranshivaraju/analysisctl/pkg/models"
)

// Submitter delivers new analysis jobs to the agent.
type Submitter struct {
	client   agent.Client
	submit   retry.Policy
	health   retry.Policy
	recorder Recorder
	logger   *slog.Logger
}

// SubmitterOption configures a Submitter.
type SubmitterOption func(*Submitter)

// WithSubmitPolicy overrides retry.SubmitPolicy.
func WithSubmitPolicy(p retry.Policy) SubmitterOption {
	return func(s *Submitter) { s.submit = p }
}

// WithHealthPolicy overrides retry.HealthPolicy.
func WithHealthPolicy(p retry.Policy) SubmitterOption {
	return func(s *Submitter) { s.health = p }
}

// WithSubmitRecorder records each accepted job.
func WithSubmitRecorder(r Recorder) SubmitterOption {
	return func(s *Submitter) { s.recorder = r }
}

// WithSubmitLogger sets the submitter's logger.
func WithSubmitLogger(l *slog.Logger) SubmitterOption {
	return func(s *Submitter) { s.logger = l }
}

// NewSubmitter creates a Submitter using the default submit and health policies.
func NewSubmitter(client agent.Client, opts ...SubmitterOption) *Submitter {
	s := &Submitter{
		client: client,
		submit: retry.SubmitPolicy,
		health: retry.HealthPolicy,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit posts content for analysis and returns the job in state submitted.
// Content is not validated here; the agent is authoritative. An empty
// analysisType defaults to comprehensive.
func (s *Submitter) Submit(ctx context.Context, content, analysisType string) (*models.Job, error) {
	if analysisType == "" {
		analysisType = models.AnalysisComprehensive
	}
	req := agent.SubmitRequest{Content: content, AnalysisType: analysisType}

	policy := s.submit.WithOnRetry(func(attempt int, err error) {
		s.logger.Debug("submit attempt failed", "attempt", attempt, "error", err)
	})

	resp, attempts, err := retry.Do(ctx, policy, func(ctx context.Context) (*agent.SubmitResponse, error) {
		resp, err := s.client.Submit(ctx, req)
		if err != nil {
			return nil, err
		}
		if resp.ID == "" {
			return nil, ErrEmptyJobID
		}
		return resp, nil
	})
	if err != nil {
		var exhausted *retry.ExhaustedError
		if errors.As(err, &exhausted) {
			err = exhausted.Last
		}
		s.logger.Error("submission failed", "analysis_type", analysisType, "attempts", attempts, "error", err)
		return nil, &SubmissionError{Attempts: attempts, Err: err}
	}

	job := &models.Job{
		ID:           resp.ID,
		AnalysisType: analysisType,
		Status:       models.JobStatusSubmitted,
		SubmittedAt:  time.Now().UTC(),
	}
	s.logger.Info("analysis job submitted", "job_id", job.ID, "analysis_type", analysisType, "attempts", attempts)
	record(ctx, s.recorder, s.logger, *job)

	return job, nil
}

// WaitHealthy probes the agent's liveness endpoint under the health policy and
// returns the number of probes made.
func (s *Submitter) WaitHealthy(ctx context.Context) (int, error) {
	policy := s.health.WithOnRetry(func(attempt int, err error) {
		s.logger.Info("agent not ready yet", "attempt", attempt, "error", err,
			"retry_in", s.health.Delay.String())
	})

	_, attempts, err := retry.Do(ctx, policy, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.client.Status(ctx)
	})
	if err != nil {
		return attempts, fmt.Errorf("%w: %w", ErrNotHealthy, err)
	}
	s.logger.Info("agent is healthy", "attempts", attempts)
	return attempts, nil
}
