package retry

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"
)

type recordSleeper struct {
	delays []time.Duration
}

func (s *recordSleeper) Sleep(ctx context.Context, d time.Duration) error {
	s.delays = append(s.delays, d)
	return nil
}

var errTransient = errors.New("transient")

func classifyTransient(err error) (bool, time.Duration) {
	return errors.Is(err, errTransient), 0
}

func testPolicy(sleep Sleeper, attempts int) Policy {
	return Policy{
		BaseDelay:      500 * time.Millisecond,
		MaxDelay:       8 * time.Second,
		Multiplier:     2.0,
		MaxAttempts:    attempts,
		JitterFraction: 0.30,
		Classify:       classifyTransient,
		Sleep:          sleep,
		Now:            time.Now,
		Rand:           func() float64 { return 0.0 },
	}
}

func TestRetryTransientWithJitterRange(t *testing.T) {
	var calls int
	sleep := &recordSleeper{}

	err := Do(context.Background(), testPolicy(sleep.Sleep, 2), nil, func(ctx context.Context) error {
		calls++
		return errTransient
	})
	if err == nil {
		t.Fatalf("expected error, got nil")
	}
	var exhausted *ExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("expected ExhaustedError, got %T", err)
	}
	if !errors.Is(err, errTransient) {
		t.Fatalf("expected cause to be preserved, got %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected 2 calls, got %d", calls)
	}
	if len(sleep.delays) != 1 {
		t.Fatalf("expected 1 sleep, got %d", len(sleep.delays))
	}
	delay := sleep.delays[0]
	if delay < 350*time.Millisecond || delay > 650*time.Millisecond {
		t.Fatalf("delay out of jitter range: %s", delay)
	}
}

func TestRetryUsesRetryAfterHint(t *testing.T) {
	sleep := &recordSleeper{}
	policy := testPolicy(sleep.Sleep, 2)
	policy.Classify = func(err error) (bool, time.Duration) { return true, 2 * time.Second }

	_ = Do(context.Background(), policy, nil, func(ctx context.Context) error {
		return errTransient
	})
	if len(sleep.delays) != 1 {
		t.Fatalf("expected 1 sleep, got %d", len(sleep.delays))
	}
	if sleep.delays[0] != 2*time.Second {
		t.Fatalf("expected retry-after 2s, got %s", sleep.delays[0])
	}
}

func TestRetryAfterIsCappedByMaxDelay(t *testing.T) {
	sleep := &recordSleeper{}
	policy := testPolicy(sleep.Sleep, 2)
	policy.Classify = func(err error) (bool, time.Duration) { return true, time.Minute }

	_ = Do(context.Background(), policy, nil, func(ctx context.Context) error {
		return errTransient
	})
	if sleep.delays[0] != 8*time.Second {
		t.Fatalf("expected delay capped at 8s, got %s", sleep.delays[0])
	}
}

func TestRetryTransientThenSuccess(t *testing.T) {
	var calls int
	sleep := &recordSleeper{}

	err := Do(context.Background(), testPolicy(sleep.Sleep, 3), nil, func(ctx context.Context) error {
		calls++
		if calls <= 2 {
			return errTransient
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
	if len(sleep.delays) != 2 {
		t.Fatalf("expected 2 sleeps, got %d", len(sleep.delays))
	}
}

func TestNoRetryOnPermanentError(t *testing.T) {
	var calls int
	sleep := &recordSleeper{}
	permanent := errors.New("bad credentials")

	err := Do(context.Background(), testPolicy(sleep.Sleep, 3), nil, func(ctx context.Context) error {
		calls++
		return permanent
	})
	if !errors.Is(err, permanent) {
		t.Fatalf("expected permanent error, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
	if len(sleep.delays) != 0 {
		t.Fatalf("expected 0 sleeps, got %d", len(sleep.delays))
	}
}

func TestSingleAttemptReturnsCauseUnwrapped(t *testing.T) {
	err := Do(context.Background(), testPolicy((&recordSleeper{}).Sleep, 1), nil, func(ctx context.Context) error {
		return errTransient
	})
	var exhausted *ExhaustedError
	if errors.As(err, &exhausted) {
		t.Fatalf("single attempt must not report exhaustion")
	}
	if !errors.Is(err, errTransient) {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestContextCancelStopsRetry(t *testing.T) {
	var calls int
	ctx, cancel := context.WithCancel(context.Background())
	sleepFunc := func(ctx context.Context, d time.Duration) error {
		cancel()
		return ctx.Err()
	}

	err := Do(ctx, testPolicy(sleepFunc, 3), nil, func(ctx context.Context) error {
		calls++
		return errTransient
	})
	if err == nil {
		t.Fatalf("expected error, got nil")
	}
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
}

func TestParseRetryAfter(t *testing.T) {
	now := time.Date(2026, 1, 13, 21, 45, 0, 0, time.UTC)

	h := http.Header{}
	if _, ok := ParseRetryAfter(h, now); ok {
		t.Fatalf("expected no hint for empty header")
	}

	h.Set("Retry-After", "3")
	if d, ok := ParseRetryAfter(h, now); !ok || d != 3*time.Second {
		t.Fatalf("expected 3s, got %s (ok=%v)", d, ok)
	}

	h.Set("Retry-After", now.Add(5*time.Second).Format(http.TimeFormat))
	if d, ok := ParseRetryAfter(h, now); !ok || d != 5*time.Second {
		t.Fatalf("expected 5s, got %s (ok=%v)", d, ok)
	}
}
