package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/kiranshivaraju/analysisctl/internal/cache"
	"github.com/kiranshivaraju/analysisctl/internal/config"
	"github.com/kiranshivaraju/analysisctl/internal/jobs"
	"github.com/kiranshivaraju/analysisctl/internal/store"
	"github.com/kiranshivaraju/analysisctl/pkg/models"
)

var (
	errNoJournal   = errors.New("no job journal configured: set DATABASE_URL")
	errNoBackends  = errors.New("no job journal or status cache configured: set DATABASE_URL or REDIS_URL")
	errNotRecorded = errors.New("job not recorded")
	errDegraded    = errors.New("one or more backends degraded")
)

// backends are the optional places job records are written to. Both are off
// unless their URL is configured; a configured backend that cannot be reached
// is a startup error.
type backends struct {
	journal store.Store
	cache   cache.Cache
	closers []func()
}

func openBackends(ctx context.Context, cfg *config.Config, log *slog.Logger) (*backends, error) {
	b := &backends{}

	if cfg.Database.URL != "" {
		if err := store.RunMigrations(cfg.Database.URL, cfg.Database.MigrationsDir); err != nil {
			return nil, fmt.Errorf("run migrations: %w", err)
		}
		pool, err := store.Connect(ctx, cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("connect database: %w", err)
		}
		b.closers = append(b.closers, pool.Close)
		b.journal = store.NewPostgresStore(pool)
		log.Debug("job journal enabled")
	}

	if cfg.Redis.URL != "" {
		rc, err := cache.NewRedisCache(cfg.Redis.URL, cfg.Redis.StatusTTL)
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("create redis cache: %w", err)
		}
		b.closers = append(b.closers, func() { _ = rc.Close() })
		if err := rc.Ping(ctx); err != nil {
			b.Close()
			return nil, fmt.Errorf("ping redis: %w", err)
		}
		b.cache = rc
		log.Debug("status cache enabled", "ttl", cfg.Redis.StatusTTL.String())
	}

	return b, nil
}

// Recorder returns a recorder writing to every enabled backend, or nil.
func (b *backends) Recorder() jobs.Recorder {
	var rs []jobs.Recorder
	if b.journal != nil {
		rs = append(rs, b.journal)
	}
	if b.cache != nil {
		rs = append(rs, b.cache)
	}
	if len(rs) == 0 {
		return nil
	}
	return jobs.Recorders(rs...)
}

// Check pings every enabled backend. The map holds "ok" or "degraded" per
// backend name and is empty when none are configured.
func (b *backends) Check(ctx context.Context) (map[string]string, error) {
	checks := map[string]string{}
	if b.journal != nil {
		checks["journal"] = "ok"
		if err := b.journal.Ping(ctx); err != nil {
			checks["journal"] = "degraded"
		}
	}
	if b.cache != nil {
		checks["cache"] = "ok"
		if err := b.cache.Ping(ctx); err != nil {
			checks["cache"] = "degraded"
		}
	}
	for _, v := range checks {
		if v != "ok" {
			return checks, errDegraded
		}
	}
	return checks, nil
}

// LookupJob finds a recorded job, preferring the journal over the cache.
func (b *backends) LookupJob(ctx context.Context, id string) (*models.Job, error) {
	if b.journal == nil && b.cache == nil {
		return nil, errNoBackends
	}
	if b.journal != nil {
		job, err := b.journal.GetJob(ctx, id)
		if err == nil {
			return job, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
	}
	if b.cache != nil {
		job, found, err := b.cache.GetJob(ctx, id)
		if err != nil {
			return nil, err
		}
		if found {
			return job, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", errNotRecorded, id)
}

// LastStatus returns the cached status of a job, if the cache knows it.
func (b *backends) LastStatus(ctx context.Context, id string) (string, bool) {
	if b.cache == nil {
		return "", false
	}
	status, found, err := b.cache.GetJobStatus(ctx, id)
	if err != nil {
		return "", false
	}
	return status, found
}

func (b *backends) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
	b.closers = nil
}
