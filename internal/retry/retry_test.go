package retry

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errFlaky = errors.New("connection refused")

// failingFor returns an op that fails n times and then succeeds with v.
func failingFor(n int, v string) (func(context.Context) (string, error), *int) {
	calls := 0
	return func(context.Context) (string, error) {
		calls++
		if calls <= n {
			return "", errFlaky
		}
		return v, nil
	}, &calls
}

func TestDo_SucceedsFirstTry(t *testing.T) {
	op, calls := failingFor(0, "ok")

	v, attempts, err := Do(context.Background(), Policy{MaxAttempts: 3, Delay: time.Hour}, op)
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
	assert.Equal(t, 1, attempts)
	assert.Equal(t, 1, *calls)
}

func TestDo_NineFailuresThenSuccess(t *testing.T) {
	op, calls := failingFor(9, "job-1")

	v, attempts, err := Do(context.Background(), Policy{MaxAttempts: 10, Delay: time.Millisecond}, op)
	require.NoError(t, err)
	assert.Equal(t, "job-1", v)
	assert.Equal(t, 10, attempts)
	assert.Equal(t, 10, *calls)
}

func TestDo_ExhaustsBudget(t *testing.T) {
	op, calls := failingFor(100, "")

	_, attempts, err := Do(context.Background(), Policy{MaxAttempts: 4, Delay: time.Millisecond}, op)
	require.Error(t, err)
	assert.Equal(t, 4, attempts)
	assert.Equal(t, 4, *calls)

	var exhausted *ExhaustedError
	require.True(t, errors.As(err, &exhausted))
	assert.Equal(t, 4, exhausted.Attempts)
	assert.ErrorIs(t, err, errFlaky)
}

func TestDo_FixedDelayBetweenAttempts(t *testing.T) {
	op, _ := failingFor(2, "ok")
	delay := 30 * time.Millisecond

	start := time.Now()
	_, attempts, err := Do(context.Background(), Policy{MaxAttempts: 5, Delay: delay}, op)
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
	assert.GreaterOrEqual(t, elapsed, 2*delay)
	assert.Less(t, elapsed, 2*delay+time.Second)
}

func TestDo_NoSleepAfterLastAttempt(t *testing.T) {
	op, _ := failingFor(100, "")

	start := time.Now()
	_, _, err := Do(context.Background(), Policy{MaxAttempts: 1, Delay: time.Hour}, op)
	require.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)
}

func TestDo_OnRetryReportsEachIntermediateFailure(t *testing.T) {
	op, _ := failingFor(100, "")
	var seen []int

	p := Policy{MaxAttempts: 3, Delay: time.Millisecond}.WithOnRetry(func(attempt int, err error) {
		assert.ErrorIs(t, err, errFlaky)
		seen = append(seen, attempt)
	})
	_, _, err := Do(context.Background(), p, op)
	require.Error(t, err)
	assert.Equal(t, []int{1, 2}, seen, "the final failure is reported by the return value only")
}

func TestDo_UnboundedStopsOnContext(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	op, calls := failingFor(1_000_000, "")

	_, attempts, err := Do(ctx, Policy{MaxAttempts: 0, Delay: 5 * time.Millisecond}, op)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.ErrorIs(t, err, errFlaky)
	assert.Greater(t, attempts, 1)
	assert.Equal(t, attempts, *calls)
}

func TestDo_CancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	op, calls := failingFor(0, "ok")

	_, attempts, err := Do(ctx, SubmitPolicy, op)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, attempts)
	assert.Equal(t, 0, *calls)
}

func TestDo_ConcurrentCallersShareAPolicy(t *testing.T) {
	p := Policy{MaxAttempts: 3, Delay: time.Millisecond}
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			op, _ := failingFor(2, "ok")
			_, attempts, err := Do(context.Background(), p, op)
			assert.NoError(t, err)
			assert.Equal(t, 3, attempts)
		}()
	}
	wg.Wait()
}

func TestNamedPolicies(t *testing.T) {
	assert.Equal(t, 10, SubmitPolicy.MaxAttempts)
	assert.Equal(t, time.Second, SubmitPolicy.Delay)
	assert.Equal(t, 10, HealthPolicy.MaxAttempts)
	assert.Equal(t, 5*time.Second, HealthPolicy.Delay)
	assert.Equal(t, 1, PollPolicy.MaxAttempts)
	assert.False(t, PollPolicy.Unbounded())
	assert.True(t, Policy{}.Unbounded())
}

func TestSleep_ReturnsEarlyOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	err := Sleep(ctx, time.Hour)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Second)
}

func TestWithOnRetry_ChainsHooks(t *testing.T) {
	var order []string
	p := Policy{MaxAttempts: 2}.
		WithOnRetry(func(int, error) { order = append(order, "first") }).
		WithOnRetry(func(int, error) { order = append(order, "second") })

	op, _ := failingFor(100, "")
	_, _, err := Do(context.Background(), p, op)
	require.Error(t, err)
	assert.Equal(t, []string{"first", "second"}, order)
}
