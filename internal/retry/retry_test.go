package retry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"cdc-pump/internal/retry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recordingSleep(slept *[]time.Duration) func(context.Context, time.Duration) error {
	return func(_ context.Context, d time.Duration) error {
		*slept = append(*slept, d)
		return nil
	}
}

func TestPolicy_PermanentFailureIsBounded(t *testing.T) {
	t.Parallel()

	var slept []time.Duration
	p := retry.Policy{
		MaxAttempts:  3,
		InitialDelay: time.Second,
		Multiplier:   2,
		Sleep:        recordingSleep(&slept),
	}

	calls := 0
	out, err := p.Do(context.Background(), func(context.Context) error {
		calls++
		return errors.New("broker unreachable")
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "all 3 attempts failed")
	assert.Equal(t, 3, calls)
	assert.Equal(t, 3, out.Attempts)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, slept)
	assert.GreaterOrEqual(t, out.Slept, 3*time.Second)
}

func TestPolicy_SucceedsOnRetry(t *testing.T) {
	t.Parallel()

	var slept []time.Duration
	var seen []int
	p := retry.Policy{
		MaxAttempts:  5,
		InitialDelay: 10 * time.Millisecond,
		Multiplier:   2,
		Sleep:        recordingSleep(&slept),
		OnAttempt:    func(a int) { seen = append(seen, a) },
	}

	calls := 0
	out, err := p.Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 2 {
			return errors.New("not yet")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 2, out.Attempts)
	assert.Equal(t, []int{1, 2}, seen)
	assert.Equal(t, []time.Duration{10 * time.Millisecond}, slept)
}

func TestPolicy_AttemptTimeoutIsPerAttempt(t *testing.T) {
	t.Parallel()

	p := retry.Policy{
		MaxAttempts:    2,
		InitialDelay:   time.Millisecond,
		AttemptTimeout: 20 * time.Millisecond,
	}

	var deadlines int
	_, err := p.Do(context.Background(), func(ctx context.Context) error {
		if _, ok := ctx.Deadline(); ok {
			deadlines++
		}
		<-ctx.Done()
		return ctx.Err()
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 2, deadlines)
}

func TestPolicy_CancelledSleepStops(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := retry.Policy{MaxAttempts: 3, InitialDelay: time.Hour}
	calls := 0
	out, err := p.Do(ctx, func(context.Context) error {
		calls++
		return errors.New("fail")
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, out.Attempts)
}

func TestPolicy_DelayIsCapped(t *testing.T) {
	t.Parallel()

	p := retry.Policy{InitialDelay: time.Second, Multiplier: 2, MaxDelay: 3 * time.Second}
	assert.Equal(t, time.Second, p.Delay(0))
	assert.Equal(t, 2*time.Second, p.Delay(1))
	assert.Equal(t, 3*time.Second, p.Delay(2))
}
