package store_test

import (
	"context"
	"encoding/json"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kiranshivaraju/analysisctl/internal/store"
	"github.com/kiranshivaraju/analysisctl/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// migrationsDir returns the absolute path to the migrations directory.
func migrationsDir() string {
	_, filename, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(filename), "..", "..", "migrations")
}

// setupTestDB spins up a Postgres container, runs migrations, and returns a pool + cleanup.
func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("analysisctl_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, pgContainer.Terminate(ctx))
	})

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	require.NoError(t, store.RunMigrations(connStr, migrationsDir()))
	// A second run is a no-op.
	require.NoError(t, store.RunMigrations(connStr, migrationsDir()))

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(func() { pool.Close() })

	return pool
}

func TestPing(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	s := store.NewPostgresStore(setupTestDB(t))
	assert.NoError(t, s.Ping(context.Background()))
}

func TestRecordJob_SubmitThenComplete(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	s := store.NewPostgresStore(setupTestDB(t))
	ctx := context.Background()

	id := uuid.NewString()
	submitted := time.Now().UTC().Truncate(time.Microsecond)
	require.NoError(t, s.RecordJob(ctx, models.Job{
		ID:           id,
		AnalysisType: models.AnalysisThematic,
		Status:       models.JobStatusSubmitted,
		SubmittedAt:  submitted,
	}))

	got, err := s.GetJob(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusSubmitted, got.Status)
	assert.True(t, submitted.Equal(got.SubmittedAt))
	assert.Nil(t, got.CompletedAt)
	assert.Empty(t, got.Result)

	completed := submitted.Add(3 * time.Second)
	require.NoError(t, s.RecordJob(ctx, models.Job{
		ID:          id,
		Status:      models.JobStatusCompleted,
		CompletedAt: &completed,
		Result:      json.RawMessage(`{"themes":["pricing"]}`),
	}))

	got, err = s.GetJob(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, got.Status)
	assert.Equal(t, models.AnalysisThematic, got.AnalysisType, "empty type must not clobber the recorded one")
	assert.True(t, submitted.Equal(got.SubmittedAt), "submitted_at is kept from the first record")
	require.NotNil(t, got.CompletedAt)
	assert.True(t, completed.Equal(*got.CompletedAt))
	assert.JSONEq(t, `{"themes":["pricing"]}`, string(got.Result))
}

func TestRecordJob_TerminalIsNotRegressed(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	s := store.NewPostgresStore(setupTestDB(t))
	ctx := context.Background()
	id := uuid.NewString()

	require.NoError(t, s.RecordJob(ctx, models.Job{ID: id, Status: models.JobStatusFailed, Error: "model crashed"}))
	require.NoError(t, s.RecordJob(ctx, models.Job{ID: id, Status: models.JobStatusProcessing}))

	got, err := s.GetJob(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusFailed, got.Status)
	assert.Equal(t, "model crashed", got.Error)
}

func TestRecordJob_TimeoutReplacedByLaterOutcome(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	s := store.NewPostgresStore(setupTestDB(t))
	ctx := context.Background()
	id := uuid.NewString()

	require.NoError(t, s.RecordJob(ctx, models.Job{ID: id, Status: models.JobStatusTimeout, Error: "analysis did not complete within 10s"}))
	require.NoError(t, s.RecordJob(ctx, models.Job{ID: id, Status: models.JobStatusCompleted, Result: json.RawMessage(`{}`)}))

	got, err := s.GetJob(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, got.Status)
	assert.Empty(t, got.Error)
}

func TestRecordJob_EmptyID(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	s := store.NewPostgresStore(setupTestDB(t))
	assert.Error(t, s.RecordJob(context.Background(), models.Job{Status: models.JobStatusSubmitted}))
}

func TestGetJob_NotFound(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	s := store.NewPostgresStore(setupTestDB(t))

	_, err := s.GetJob(context.Background(), "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestListJobs_FilterAndLimit(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	s := store.NewPostgresStore(setupTestDB(t))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, s.RecordJob(ctx, models.Job{ID: uuid.NewString(), Status: models.JobStatusCompleted}))
	}
	require.NoError(t, s.RecordJob(ctx, models.Job{ID: uuid.NewString(), Status: models.JobStatusProcessing}))

	all, err := s.ListJobs(ctx, store.JobFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 4)

	completed, err := s.ListJobs(ctx, store.JobFilter{Status: models.JobStatusCompleted})
	require.NoError(t, err)
	assert.Len(t, completed, 3)
	for _, j := range completed {
		assert.Equal(t, models.JobStatusCompleted, j.Status)
	}

	limited, err := s.ListJobs(ctx, store.JobFilter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestListJobs_Empty(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	s := store.NewPostgresStore(setupTestDB(t))

	jobs, err := s.ListJobs(context.Background(), store.JobFilter{})
	require.NoError(t, err)
	assert.Empty(t, jobs)
}
