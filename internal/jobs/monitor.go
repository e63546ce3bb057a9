package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kiranshivaraju/analysisctl/internal/agent"
	"github.com/kiranshivaraju/analysisctl/internal/retry"
	"github.com/kiranshivaraju/analysisctl/pkg/models"
)

const DefaultMonitorInterval = 5 * time.Second

// Presenter shows monitor output to the user.
type Presenter interface {
	Present(ev Event)
	// Progress is called after every successful tick with the agent's job count.
	Progress(totalJobs int)
}

// Stats summarises a monitoring session.
type Stats struct {
	Known     int
	Presented int
	Ticks     int
	Started   time.Time
	Stopped   time.Time
}

// Monitor follows the agent's whole job list and presents each job's result
// exactly once per session.
type Monitor struct {
	client    agent.Client
	presenter Presenter
	recorder  Recorder
	interval  time.Duration
	logger    *slog.Logger
}

// MonitorOption configures a Monitor.
type MonitorOption func(*Monitor)

// WithInterval sets the pause between ticks.
func WithInterval(d time.Duration) MonitorOption {
	return func(m *Monitor) {
		if d > 0 {
			m.interval = d
		}
	}
}

// WithMonitorRecorder records every terminal job the monitor presents.
func WithMonitorRecorder(r Recorder) MonitorOption {
	return func(m *Monitor) { m.recorder = r }
}

// WithMonitorLogger sets the monitor's logger.
func WithMonitorLogger(l *slog.Logger) MonitorOption {
	return func(m *Monitor) { m.logger = l }
}

// NewMonitor creates a new Monitor.
func NewMonitor(client agent.Client, presenter Presenter, opts ...MonitorOption) *Monitor {
	m := &Monitor{
		client:    client,
		presenter: presenter,
		interval:  DefaultMonitorInterval,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Tick fetches the agent's job list once and reports what changed since reg.
// New ids produce EventDiscovered. Jobs listed as completed or failed that
// have not been presented yet are fetched in detail and produce one
// EventCompleted or EventFailed; a failed detail fetch leaves the job for the
// next tick. If the list itself cannot be fetched, reg is returned as is.
func (m *Monitor) Tick(ctx context.Context, reg Registry) (Registry, []Event, error) {
	list, _, err := retry.Do(ctx, retry.PollPolicy, m.client.ListJobs)
	if err != nil {
		return reg, nil, fmt.Errorf("listing jobs: %w", err)
	}

	next := reg.clone()
	var events []Event

	for _, sum := range list.Jobs {
		if sum.ID == "" {
			continue
		}
		if !next.Known(sum.ID) {
			next.markKnown(sum.ID)
			events = append(events, Event{Kind: EventDiscovered, Summary: sum})
		}

		kind, ok := terminalEvent(sum.Status)
		if !ok || next.Presented(sum.ID) {
			continue
		}

		job, _, err := retry.Do(ctx, retry.PollPolicy, func(ctx context.Context) (*models.Job, error) {
			return m.client.GetJob(ctx, sum.ID)
		})
		if err != nil {
			if ctx.Err() != nil {
				return next, events, ctx.Err()
			}
			m.logger.Warn("fetching job detail failed, will retry next tick", "job_id", sum.ID, "error", err)
			continue
		}

		next.markPresented(sum.ID)
		events = append(events, Event{Kind: kind, Summary: sum, Job: job})
		record(ctx, m.recorder, m.logger, *job)
	}

	m.presentProgress(list.TotalJobs)
	return next, events, nil
}

// Run ticks every interval until ctx is done, handing events to the
// presenter. Cancellation is a clean stop: Run returns the session's stats and
// a nil error. Individual tick failures are logged and do not end the loop.
func (m *Monitor) Run(ctx context.Context) (Stats, error) {
	stats := Stats{Started: time.Now()}
	reg := NewRegistry()

	m.logger.Info("monitoring agent jobs", "interval", m.interval.String())

	for {
		next, events, err := m.Tick(ctx, reg)
		reg = next
		// Events from a tick cut short still go out: the registry already
		// counts them as presented.
		for _, ev := range events {
			m.presenter.Present(ev)
		}
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			m.logger.Warn("monitor tick failed", "error", err)
		} else {
			stats.Ticks++
		}

		if err := retry.Sleep(ctx, m.interval); err != nil {
			break
		}
	}

	stats.Known = reg.KnownCount()
	stats.Presented = reg.PresentedCount()
	stats.Stopped = time.Now()
	m.logger.Info("monitoring stopped", "jobs_seen", stats.Known, "jobs_presented", stats.Presented, "ticks", stats.Ticks)
	return stats, nil
}

func (m *Monitor) presentProgress(total int) {
	if total > 0 {
		m.presenter.Progress(total)
	}
}

func terminalEvent(status string) (EventKind, bool) {
	switch status {
	case models.JobStatusCompleted:
		return EventCompleted, true
	case models.JobStatusFailed:
		return EventFailed, true
	}
	return 0, false
}
