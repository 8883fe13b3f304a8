package retry

import (
	"context"
	"fmt"
	"math"
	"time"
)

// Policy is the one backoff primitive shared by every external call.
type Policy struct {
	MaxAttempts    int
	InitialDelay   time.Duration
	MaxDelay       time.Duration
	Multiplier     float64
	AttemptTimeout time.Duration

	// Sleep waits between attempts. Nil uses a timer that honours ctx.
	Sleep func(ctx context.Context, d time.Duration) error
	// OnAttempt is called before every attempt, starting at 1.
	OnAttempt func(attempt int)
}

// DefaultPolicy is 3 attempts, 1s initial delay doubling, 10s per attempt.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:    3,
		InitialDelay:   time.Second,
		MaxDelay:       30 * time.Second,
		Multiplier:     2.0,
		AttemptTimeout: 10 * time.Second,
	}
}

// Outcome describes how a Do call went.
type Outcome struct {
	Attempts int
	Slept    time.Duration
	Elapsed  time.Duration
}

// Delay returns the wait after the given zero-based attempt.
func (p Policy) Delay(attempt int) time.Duration {
	mult := p.Multiplier
	if mult <= 0 {
		mult = 1
	}
	d := float64(p.InitialDelay) * math.Pow(mult, float64(attempt))
	if p.MaxDelay > 0 && d > float64(p.MaxDelay) {
		d = float64(p.MaxDelay)
	}
	return time.Duration(d)
}

// Do runs fn until it succeeds or MaxAttempts is reached. Each attempt gets its own
// context bounded by AttemptTimeout. The last error is returned wrapped.
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context) error) (Outcome, error) {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = timerSleep
	}

	var out Outcome
	start := time.Now()
	var lastErr error

	for attempt := 0; attempt < attempts; attempt++ {
		out.Attempts++
		if p.OnAttempt != nil {
			p.OnAttempt(attempt + 1)
		}

		lastErr = p.attempt(ctx, fn)
		if lastErr == nil {
			out.Elapsed = time.Since(start)
			return out, nil
		}

		if attempt == attempts-1 {
			break
		}

		delay := p.Delay(attempt)
		if err := sleep(ctx, delay); err != nil {
			out.Elapsed = time.Since(start)
			return out, fmt.Errorf("retry cancelled after %d attempts: %w", out.Attempts, err)
		}
		out.Slept += delay
	}

	out.Elapsed = time.Since(start)
	return out, fmt.Errorf("all %d attempts failed: %w", out.Attempts, lastErr)
}

func (p Policy) attempt(ctx context.Context, fn func(ctx context.Context) error) error {
	if p.AttemptTimeout <= 0 {
		return fn(ctx)
	}
	attemptCtx, cancel := context.WithTimeout(ctx, p.AttemptTimeout)
	defer cancel()
	return fn(attemptCtx)
}

func timerSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
