// Package store keeps an optional Postgres journal of the jobs this client has
// submitted or observed.
package store

import (
	"context"
	"errors"

	"github.com/kiranshivaraju/analysisctl/pkg/models"
)

var ErrNotFound = errors.New("resource not found")

// Store is the data access interface. All database operations go through here.
type Store interface {
	Ping(ctx context.Context) error

	RecordJob(ctx context.Context, job models.Job) error
	GetJob(ctx context.Context, id string) (*models.Job, error)
	ListJobs(ctx context.Context, filter JobFilter) ([]*models.Job, error)
}

// JobFilter narrows ListJobs. Zero values mean no filtering; Limit defaults
// to 20 and is capped at 100.
type JobFilter struct {
	Status string
	Limit  int
}

func (f JobFilter) limit() int {
	switch {
	case f.Limit <= 0:
		return 20
	case f.Limit > 100:
		return 100
	default:
		return f.Limit
	}
}
