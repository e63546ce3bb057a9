package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kiranshivaraju/analysisctl/internal/agent"
	"github.com/kiranshivaraju/analysisctl/internal/retry"
	"github.com/kiranshivaraju/analysisctl/pkg/models"
)

const (
	DefaultPollInterval = 5 * time.Second
	DefaultMaxWait      = 300 * time.Second
)

// Poller waits for jobs to reach a terminal state by querying their status on
// a fixed interval. A Poller is safe for concurrent use; each wait runs its own
// timer.
type Poller struct {
	client   agent.Client
	recorder Recorder
	logger   *slog.Logger

	mu       sync.Mutex
	terminal map[string]models.Job
}

// PollerOption configures a Poller.
type PollerOption func(*Poller)

// WithPollRecorder records every status change the poller observes.
func WithPollRecorder(r Recorder) PollerOption {
	return func(p *Poller) { p.recorder = r }
}

// WithPollLogger sets the poller's logger.
func WithPollLogger(l *slog.Logger) PollerOption {
	return func(p *Poller) { p.logger = l }
}

// NewPoller creates a new Poller.
func NewPoller(client agent.Client, opts ...PollerOption) *Poller {
	p := &Poller{
		client:   client,
		logger:   slog.Default(),
		terminal: make(map[string]models.Job),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// WaitForCompletion polls job id until the agent reports completed or failed,
// or until maxWait has elapsed since the call began. A failed status query
// counts as "unknown this tick" and is retried after pollInterval, never
// immediately.
//
// On timeout the returned job has status timeout and an Error; this is the
// client giving up, not a statement about the remote job. The returned error
// is non-nil only when ctx ends first, in which case the job holds the last
// observed state.
//
// Non-positive pollInterval and maxWait fall back to DefaultPollInterval and
// DefaultMaxWait.
func (p *Poller) WaitForCompletion(ctx context.Context, id string, pollInterval, maxWait time.Duration) (*models.Job, error) {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	if maxWait <= 0 {
		maxWait = DefaultMaxWait
	}

	if done, ok := p.cached(id); ok {
		return &done, nil
	}

	start := time.Now()
	// Bounds a status query in flight when the wait is already over.
	deadline := start.Add(maxWait + pollInterval)
	waitCtx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	job := models.Job{ID: id}
	logger := p.logger.With("job_id", id)
	logger.Info("waiting for analysis", "poll_interval", pollInterval.String(), "max_wait", maxWait.String())

	for {
		obs, _, err := retry.Do(waitCtx, retry.PollPolicy, func(ctx context.Context) (*models.Job, error) {
			return p.client.GetJob(ctx, id)
		})
		switch {
		case err == nil:
			if job.Advance(*obs) {
				record(ctx, p.recorder, logger, job)
			}
			if job.Terminal() {
				done := p.remember(job)
				logger.Info("analysis finished", "status", done.Status, "elapsed", time.Since(start).Round(time.Millisecond).String())
				return &done, nil
			}
			logger.Debug("analysis not finished", "status", obs.Status)
		case ctx.Err() != nil:
			return &job, ctx.Err()
		case waitCtx.Err() != nil:
			return p.timedOut(ctx, logger, job, maxWait), nil
		default:
			logger.Debug("status unknown this tick", "error", err)
		}

		// A slow query may already have carried us past maxWait.
		if time.Since(start) >= maxWait {
			return p.timedOut(ctx, logger, job, maxWait), nil
		}
		if err := retry.Sleep(ctx, min(pollInterval, time.Until(deadline))); err != nil {
			return &job, err
		}
		if time.Since(start) >= maxWait {
			return p.timedOut(ctx, logger, job, maxWait), nil
		}
	}
}

// WaitAll waits for every id independently and returns the jobs in the order
// of ids. limit caps how many waits run at once; zero means no cap. A slow job
// never delays the result of another.
func (p *Poller) WaitAll(ctx context.Context, ids []string, pollInterval, maxWait time.Duration, limit int) ([]*models.Job, error) {
	if len(ids) == 0 {
		return nil, ErrEmptyJobIDs
	}

	out := make([]*models.Job, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, id := range ids {
		g.Go(func() error {
			job, err := p.WaitForCompletion(gctx, id, pollInterval, maxWait)
			out[i] = job
			if err != nil {
				return fmt.Errorf("waiting for %s: %w", id, err)
			}
			return nil
		})
	}
	return out, g.Wait()
}

func (p *Poller) timedOut(ctx context.Context, logger *slog.Logger, job models.Job, maxWait time.Duration) *models.Job {
	out := job.TimedOut(fmt.Sprintf("analysis did not complete within %s", maxWait))
	logger.Warn("gave up waiting for analysis", "last_status", job.Status, "max_wait", maxWait.String())
	record(ctx, p.recorder, logger, out)
	return &out
}

func (p *Poller) cached(id string) (models.Job, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	job, ok := p.terminal[id]
	return job, ok
}

// remember stores a terminal record so later waits return it unchanged. If
// another wait got there first, its record wins.
func (p *Poller) remember(job models.Job) models.Job {
	p.mu.Lock()
	defer p.mu.Unlock()
	if prev, ok := p.terminal[job.ID]; ok {
		return prev
	}
	p.terminal[job.ID] = job
	return job
}
