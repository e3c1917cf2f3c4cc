package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errFlaky = errors.New("flaky")

func TestWithRetry_SucceedsAfterFailures(t *testing.T) {
	calls := 0
	got, err := WithRetry(context.Background(), Config{MaxRetries: 3, BaseDelay: time.Millisecond},
		func(context.Context) (int, error) {
			calls++
			if calls < 3 {
				return 0, errFlaky
			}
			return 42, nil
		})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 42 || calls != 3 {
		t.Errorf("got %d after %d calls", got, calls)
	}
}

func TestWithRetry_GivesUp(t *testing.T) {
	calls := 0
	_, err := WithRetry(context.Background(), Config{MaxRetries: 2, BaseDelay: time.Millisecond},
		func(context.Context) (string, error) {
			calls++
			return "", errFlaky
		})
	if !errors.Is(err, errFlaky) {
		t.Errorf("got %v, want wrapped errFlaky", err)
	}
	if calls != 3 {
		t.Errorf("calls: got %d, want 3", calls)
	}
}

func TestWithRetry_NotRetryable(t *testing.T) {
	calls := 0
	_, err := WithRetry(context.Background(), Config{
		MaxRetries: 5,
		BaseDelay:  time.Millisecond,
		Retryable:  func(error) bool { return false },
	}, func(context.Context) (int, error) {
		calls++
		return 0, errFlaky
	})
	if !errors.Is(err, errFlaky) || calls != 1 {
		t.Errorf("got %v after %d calls", err, calls)
	}
}

func TestWithRetry_PerAttemptTimeout(t *testing.T) {
	_, err := WithRetry(context.Background(), Config{Timeout: 10 * time.Millisecond},
		func(ctx context.Context) (int, error) {
			<-ctx.Done()
			return 0, ctx.Err()
		})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("got %v, want deadline exceeded", err)
	}
}

func TestWithRetry_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := WithRetry(ctx, Config{MaxRetries: 3}, func(context.Context) (int, error) {
		t.Fatal("operation should not run")
		return 0, nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("got %v", err)
	}
}

func TestCalculateBackoffDelay_Capped(t *testing.T) {
	for attempt := range 40 {
		d := calculateBackoffDelay(attempt, 100*time.Millisecond, time.Second)
		if d > time.Second {
			t.Fatalf("attempt %d: delay %v exceeds max", attempt, d)
		}
	}
}
