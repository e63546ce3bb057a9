// Package agentstub is an in-memory stand-in for the analysis agent. It accepts
// jobs, runs them in the background after a configurable delay and keeps every
// record for later status reads. It backs cmd/agentstub and the end-to-end
// tests of the client.
package agentstub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/analysisctl/pkg/models"
)

var (
	// ErrNotFound is returned for ids the service never issued.
	ErrNotFound = errors.New("analysis not found")
	// ErrClosed is returned by Submit once Close has been called.
	ErrClosed = errors.New("agent shutting down")
)

// Analyzer computes the result document for one job.
type Analyzer interface {
	Analyze(ctx context.Context, content, analysisType string) (json.RawMessage, error)
}

// AnalyzerFunc adapts a function to Analyzer.
type AnalyzerFunc func(ctx context.Context, content, analysisType string) (json.RawMessage, error)

func (f AnalyzerFunc) Analyze(ctx context.Context, content, analysisType string) (json.RawMessage, error) {
	return f(ctx, content, analysisType)
}

type Option func(*Service)

// WithProcessingTime sets how long a job stays in processing before the
// analyzer runs.
func WithProcessingTime(d time.Duration) Option {
	return func(s *Service) { s.delay = d }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// Service holds every job it has accepted. Safe for concurrent use.
type Service struct {
	analyzer Analyzer
	delay    time.Duration
	logger   *slog.Logger

	mu    sync.RWMutex
	jobs  map[string]*models.Job
	order []string

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewService creates a Service. A nil analyzer uses KeywordAnalyzer.
func NewService(analyzer Analyzer, opts ...Option) *Service {
	if analyzer == nil {
		analyzer = KeywordAnalyzer{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Service{
		analyzer: analyzer,
		logger:   slog.Default(),
		jobs:     make(map[string]*models.Job),
		ctx:      ctx,
		cancel:   cancel,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Submit records a new job in submitted state and starts processing it. It
// returns ErrClosed after Close.
func (s *Service) Submit(content, analysisType string) (models.Job, error) {
	if analysisType == "" {
		analysisType = models.AnalysisComprehensive
	}
	job := &models.Job{
		ID:           uuid.NewString(),
		AnalysisType: analysisType,
		Status:       models.JobStatusSubmitted,
		SubmittedAt:  time.Now().UTC(),
	}

	// Close cancels under mu, so the wg.Add below never races its Wait.
	s.mu.Lock()
	if s.ctx.Err() != nil {
		s.mu.Unlock()
		return models.Job{}, ErrClosed
	}
	s.jobs[job.ID] = job
	s.order = append(s.order, job.ID)
	snapshot := *job
	s.wg.Add(1)
	s.mu.Unlock()

	s.logger.Info("analysis accepted", "job_id", job.ID, "analysis_type", analysisType, "content_len", len(content))

	go s.process(job.ID, content, analysisType)

	return snapshot, nil
}

// Get returns a copy of the job with the given id.
func (s *Service) Get(id string) (models.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return models.Job{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return *job, nil
}

// List returns every job in submission order.
func (s *Service) List() models.JobList {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := models.JobList{TotalJobs: len(s.order), Jobs: make([]models.JobSummary, 0, len(s.order))}
	for _, id := range s.order {
		j := s.jobs[id]
		list.Jobs = append(list.Jobs, models.JobSummary{ID: j.ID, Status: j.Status, AnalysisType: j.AnalysisType})
	}
	return list
}

// Close abandons jobs still processing and waits for their goroutines.
// Abandoned jobs are marked failed.
func (s *Service) Close() {
	s.mu.Lock()
	s.cancel()
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *Service) process(id, content, analysisType string) {
	defer s.wg.Done()

	s.update(id, func(j *models.Job) { j.Status = models.JobStatusProcessing })

	if s.delay > 0 {
		t := time.NewTimer(s.delay)
		select {
		case <-t.C:
		case <-s.ctx.Done():
			t.Stop()
			s.finish(id, nil, ErrClosed)
			return
		}
	}

	result, err := s.analyzer.Analyze(s.ctx, content, analysisType)
	s.finish(id, result, err)
}

func (s *Service) finish(id string, result json.RawMessage, err error) {
	now := time.Now().UTC()
	s.update(id, func(j *models.Job) {
		j.CompletedAt = &now
		if err != nil {
			j.Status = models.JobStatusFailed
			j.Error = err.Error()
			return
		}
		j.Status = models.JobStatusCompleted
		j.Result = result
	})
	if err != nil {
		s.logger.Warn("analysis failed", "job_id", id, "error", err)
		return
	}
	s.logger.Info("analysis completed", "job_id", id)
}

func (s *Service) update(id string, fn func(*models.Job)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if j, ok := s.jobs[id]; ok {
		fn(j)
	}
}
