package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kiranshivaraju/analysisctl/pkg/models"
)

// PostgresStore implements the Store interface using pgx/v5.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

const jobColumns = `id, analysis_type, status, submitted_at, completed_at, result, error`

// RecordJob upserts a job. Rows already in completed or failed are left
// alone so the journal never regresses a terminal outcome. A synthetic
// timeout row can still be replaced by a later real outcome.
func (s *PostgresStore) RecordJob(ctx context.Context, job models.Job) error {
	if job.ID == "" {
		return errors.New("record job: empty job id")
	}

	var submittedAt *time.Time
	if !job.SubmittedAt.IsZero() {
		submittedAt = &job.SubmittedAt
	}
	var result []byte
	if len(job.Result) > 0 {
		result = job.Result
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO analysis_jobs (`+jobColumns+`, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
		 ON CONFLICT (id) DO UPDATE SET
		   analysis_type = COALESCE(NULLIF(EXCLUDED.analysis_type, ''), analysis_jobs.analysis_type),
		   status = EXCLUDED.status,
		   submitted_at = COALESCE(analysis_jobs.submitted_at, EXCLUDED.submitted_at),
		   completed_at = EXCLUDED.completed_at,
		   result = EXCLUDED.result,
		   error = EXCLUDED.error,
		   updated_at = NOW()
		 WHERE analysis_jobs.status NOT IN ('completed', 'failed')`,
		job.ID, job.AnalysisType, job.Status, submittedAt, job.CompletedAt, result, job.Error,
	)
	if err != nil {
		return fmt.Errorf("record job %s: %w", job.ID, err)
	}
	return nil
}

func (s *PostgresStore) GetJob(ctx context.Context, id string) (*models.Job, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM analysis_jobs WHERE id = $1`, id)
	job, err := scanJob(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// ListJobs returns the most recently updated jobs first.
func (s *PostgresStore) ListJobs(ctx context.Context, filter JobFilter) ([]*models.Job, error) {
	var conditions []string
	var args []any
	if filter.Status != "" {
		args = append(args, filter.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}

	query := `SELECT ` + jobColumns + ` FROM analysis_jobs`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	args = append(args, filter.limit())
	query += fmt.Sprintf(" ORDER BY updated_at DESC, id LIMIT $%d", len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*models.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func scanJob(row pgx.Row) (*models.Job, error) {
	var (
		j           models.Job
		submittedAt *time.Time
		result      []byte
	)
	if err := row.Scan(&j.ID, &j.AnalysisType, &j.Status, &submittedAt, &j.CompletedAt, &result, &j.Error); err != nil {
		return nil, err
	}
	if submittedAt != nil {
		j.SubmittedAt = *submittedAt
	}
	if len(result) > 0 {
		j.Result = result
	}
	return &j, nil
}
