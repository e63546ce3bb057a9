package agentstub_test

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kiranshivaraju/analysisctl/internal/agentstub"
	"github.com/kiranshivaraju/analysisctl/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newService(t *testing.T, a agentstub.Analyzer, delay time.Duration) *agentstub.Service {
	t.Helper()
	s := agentstub.NewService(a,
		agentstub.WithProcessingTime(delay),
		agentstub.WithLogger(slog.New(slog.DiscardHandler)),
	)
	t.Cleanup(s.Close)
	return s
}

func waitForStatus(t *testing.T, s *agentstub.Service, id, status string) models.Job {
	t.Helper()
	var job models.Job
	require.Eventually(t, func() bool {
		var err error
		job, err = s.Get(id)
		return err == nil && job.Status == status
	}, 2*time.Second, 5*time.Millisecond)
	return job
}

func submit(t *testing.T, s *agentstub.Service, content, analysisType string) models.Job {
	t.Helper()
	job, err := submit(t, s, content, analysisType)
	require.NoError(t, err)
	return job
}

func TestSubmit_CompletesAfterDelay(t *testing.T) {
	s := newService(t, nil, 20*time.Millisecond)

	job := submit(t, s, "Support was great and fast. Pricing is confusing.", "")
	assert.NotEmpty(t, job.ID)
	assert.Equal(t, models.JobStatusSubmitted, job.Status)
	assert.Equal(t, models.AnalysisComprehensive, job.AnalysisType)

	done := waitForStatus(t, s, job.ID, models.JobStatusCompleted)
	require.NotNil(t, done.CompletedAt)
	assert.False(t, done.CompletedAt.Before(done.SubmittedAt))
	assert.Empty(t, done.Error)

	var result map[string]any
	require.NoError(t, json.Unmarshal(done.Result, &result))
	assert.Contains(t, result, "themes")
	assert.Contains(t, result, "sentiment")
	assert.Contains(t, result, "summary")
}

func TestSubmit_AnalyzerFailureMarksJobFailed(t *testing.T) {
	s := newService(t, agentstub.AnalyzerFunc(func(context.Context, string, string) (json.RawMessage, error) {
		return nil, errors.New("model unavailable")
	}), 0)

	job := submit(t, s, "anything", models.AnalysisSentiment)
	failed := waitForStatus(t, s, job.ID, models.JobStatusFailed)
	assert.Equal(t, "model unavailable", failed.Error)
	assert.Empty(t, failed.Result)
	assert.NotNil(t, failed.CompletedAt)
}

func TestGet_Unknown(t *testing.T) {
	s := newService(t, nil, 0)
	_, err := s.Get("nope")
	assert.ErrorIs(t, err, agentstub.ErrNotFound)
}

func TestList_SubmissionOrder(t *testing.T) {
	s := newService(t, nil, time.Hour)

	a := submit(t, s, "first text", models.AnalysisThematic)
	b := submit(t, s, "second text", models.AnalysisSummary)

	list := s.List()
	assert.Equal(t, 2, list.TotalJobs)
	require.Len(t, list.Jobs, 2)
	assert.Equal(t, a.ID, list.Jobs[0].ID)
	assert.Equal(t, b.ID, list.Jobs[1].ID)
	assert.Equal(t, models.AnalysisSummary, list.Jobs[1].AnalysisType)
}

func TestClose_FailsJobsStillProcessing(t *testing.T) {
	s := agentstub.NewService(nil,
		agentstub.WithProcessingTime(time.Hour),
		agentstub.WithLogger(slog.New(slog.DiscardHandler)),
	)
	job := submit(t, s, "slow", "")
	waitForStatus(t, s, job.ID, models.JobStatusProcessing)

	s.Close()

	got, err := s.Get(job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusFailed, got.Status)
}

func TestSubmit_AfterCloseRejected(t *testing.T) {
	s := agentstub.NewService(nil, agentstub.WithLogger(slog.New(slog.DiscardHandler)))
	s.Close()

	_, err := s.Submit("late", "")
	assert.ErrorIs(t, err, agentstub.ErrClosed)
	assert.Equal(t, 0, s.List().TotalJobs)
}

func TestSubmit_ConcurrentWithClose(t *testing.T) {
	s := agentstub.NewService(nil,
		agentstub.WithProcessingTime(time.Millisecond),
		agentstub.WithLogger(slog.New(slog.DiscardHandler)),
	)

	var wg sync.WaitGroup
	var accepted atomic.Int32
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 50 {
				if _, err := s.Submit("text", ""); err != nil {
					assert.ErrorIs(t, err, agentstub.ErrClosed)
					return
				}
				accepted.Add(1)
			}
		}()
	}
	s.Close()
	wg.Wait()

	// Every accepted job reached a terminal state before Close returned.
	list := s.List()
	assert.Equal(t, int(accepted.Load()), list.TotalJobs)
	for _, sum := range list.Jobs {
		assert.Contains(t, []string{models.JobStatusCompleted, models.JobStatusFailed}, sum.Status, sum.ID)
	}
}

func TestKeywordAnalyzer(t *testing.T) {
	a := agentstub.KeywordAnalyzer{}
	ctx := context.Background()
	text := "The checkout is slow and broken. Checkout errors crash the app. Delivery was good."

	raw, err := a.Analyze(ctx, text, models.AnalysisSentiment)
	require.NoError(t, err)
	var sentiment struct {
		Sentiment  string  `json:"sentiment"`
		Confidence float64 `json:"confidence"`
	}
	require.NoError(t, json.Unmarshal(raw, &sentiment))
	assert.Equal(t, "negative", sentiment.Sentiment)
	assert.Greater(t, sentiment.Confidence, 0.5)

	raw, err = a.Analyze(ctx, text, models.AnalysisThematic)
	require.NoError(t, err)
	var thematic struct {
		Themes []string `json:"themes"`
	}
	require.NoError(t, json.Unmarshal(raw, &thematic))
	require.NotEmpty(t, thematic.Themes)
	assert.Equal(t, "checkout", thematic.Themes[0])

	raw, err = a.Analyze(ctx, text, models.AnalysisSummary)
	require.NoError(t, err)
	assert.JSONEq(t, `{"summary":"The checkout is slow and broken."}`, string(raw))

	_, err = a.Analyze(ctx, "  ...  ", models.AnalysisComprehensive)
	assert.Error(t, err)
}

func TestKeywordAnalyzer_ResultDecodes(t *testing.T) {
	raw, err := agentstub.KeywordAnalyzer{}.Analyze(context.Background(),
		"Great support, easy onboarding, helpful docs.", models.AnalysisComprehensive)
	require.NoError(t, err)

	res, err := models.DecodeResult(raw)
	require.NoError(t, err)
	assert.Equal(t, "positive", res.Sentiment)
	assert.Equal(t, "1.00", res.Confidence)
	assert.NotEmpty(t, res.Recommendations)
}
