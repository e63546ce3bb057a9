package jobs

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/kiranshivaraju/analysisctl/internal/agent"
	"github.com/kiranshivaraju/analysisctl/pkg/models"
)

// --- mocks ---

// fakeClient satisfies agent.Client with scripted responses. Each func field
// overrides the default behaviour when set.
type fakeClient struct {
	mu sync.Mutex

	SubmitFunc   func(ctx context.Context, req agent.SubmitRequest) (*agent.SubmitResponse, error)
	GetJobFunc   func(ctx context.Context, id string) (*models.Job, error)
	ListJobsFunc func(ctx context.Context) (*models.JobList, error)
	StatusFunc   func(ctx context.Context) error

	submitCalls int
	getCalls    map[string]int
	listCalls   int
	statusCalls int
}

func newFakeClient() *fakeClient {
	return &fakeClient{getCalls: make(map[string]int)}
}

func (f *fakeClient) Submit(ctx context.Context, req agent.SubmitRequest) (*agent.SubmitResponse, error) {
	f.mu.Lock()
	f.submitCalls++
	f.mu.Unlock()
	if f.SubmitFunc != nil {
		return f.SubmitFunc(ctx, req)
	}
	return &agent.SubmitResponse{ID: "job-1", Status: models.JobStatusSubmitted}, nil
}

func (f *fakeClient) GetJob(ctx context.Context, id string) (*models.Job, error) {
	f.mu.Lock()
	f.getCalls[id]++
	f.mu.Unlock()
	if f.GetJobFunc != nil {
		return f.GetJobFunc(ctx, id)
	}
	return &models.Job{ID: id, Status: models.JobStatusProcessing}, nil
}

func (f *fakeClient) ListJobs(ctx context.Context) (*models.JobList, error) {
	f.mu.Lock()
	f.listCalls++
	f.mu.Unlock()
	if f.ListJobsFunc != nil {
		return f.ListJobsFunc(ctx)
	}
	return &models.JobList{Jobs: []models.JobSummary{}}, nil
}

func (f *fakeClient) Status(ctx context.Context) error {
	f.mu.Lock()
	f.statusCalls++
	f.mu.Unlock()
	if f.StatusFunc != nil {
		return f.StatusFunc(ctx)
	}
	return nil
}

func (f *fakeClient) gets(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.getCalls[id]
}

// statusSequence returns a GetJobFunc that reports the given statuses in
// order and then repeats the last one.
func statusSequence(statuses []string, result json.RawMessage, errMsg string) func(context.Context, string) (*models.Job, error) {
	var mu sync.Mutex
	i := 0
	return func(_ context.Context, id string) (*models.Job, error) {
		mu.Lock()
		defer mu.Unlock()
		s := statuses[min(i, len(statuses)-1)]
		i++
		job := &models.Job{ID: id, Status: s, AnalysisType: models.AnalysisSentiment}
		switch s {
		case models.JobStatusCompleted:
			job.Result = result
		case models.JobStatusFailed:
			job.Error = errMsg
		}
		return job, nil
	}
}

type recordingRecorder struct {
	mu   sync.Mutex
	jobs []models.Job
	err  error
}

func (r *recordingRecorder) RecordJob(_ context.Context, job models.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs = append(r.jobs, job)
	return r.err
}

func (r *recordingRecorder) statuses() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.jobs))
	for i, j := range r.jobs {
		out[i] = j.Status
	}
	return out
}

type capturePresenter struct {
	mu       sync.Mutex
	events   []Event
	progress []int
}

func (p *capturePresenter) Present(ev Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
}

func (p *capturePresenter) Progress(total int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.progress = append(p.progress, total)
}

func (p *capturePresenter) snapshot() []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Event(nil), p.events...)
}

// Compile-time check that fakeClient implements agent.Client.
var _ agent.Client = (*fakeClient)(nil)
