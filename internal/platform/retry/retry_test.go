package retry_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/pxsession/internal/platform/retry"
)

var fastPolicy = retry.Policy{
	MaxAttempts:    3,
	InitialBackoff: 1 * time.Millisecond,
}

func TestDo_SuccessFirstAttempt(t *testing.T) {
	_, err := retry.Do(context.Background(), fastPolicy, alwaysRetry, func() (struct{}, error) {
		return struct{}{}, nil
	})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
}

func TestDo_SuccessAfterRetries(t *testing.T) {
	calls := 0
	_, err := retry.Do(context.Background(), fastPolicy, alwaysRetry, func() (struct{}, error) {
		calls++
		if calls < 3 {
			return struct{}{}, errors.New("transient")
		}
		return struct{}{}, nil
	})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestDo_ReturnsValue(t *testing.T) {
	calls := 0
	val, err := retry.Do(context.Background(), fastPolicy, alwaysRetry, func() (int, error) {
		calls++
		if calls < 2 {
			return 0, errors.New("transient")
		}
		return 42, nil
	})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if val != 42 {
		t.Fatalf("expected 42, got %d", val)
	}
}

func TestDo_PermanentErrorStopsImmediately(t *testing.T) {
	permanent := errors.New("permanent")
	calls := 0
	_, err := retry.Do(context.Background(), fastPolicy, alwaysStop, func() (struct{}, error) {
		calls++
		return struct{}{}, permanent
	})
	var permErr *retry.PermanentError
	if !errors.As(err, &permErr) {
		t.Fatalf("expected PermanentError, got %T: %v", err, err)
	}
	if !errors.Is(err, permanent) {
		t.Fatalf("expected wrapped permanent error, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
}

func TestDo_ExhaustedRetries(t *testing.T) {
	underlying := errors.New("transient")
	calls := 0
	_, err := retry.Do(context.Background(), fastPolicy, alwaysRetry, func() (struct{}, error) {
		calls++
		return struct{}{}, underlying
	})
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !errors.Is(err, underlying) {
		t.Fatalf("expected wrapped underlying error, got %v", err)
	}
	if calls != fastPolicy.MaxAttempts {
		t.Fatalf("expected %d calls, got %d", fastPolicy.MaxAttempts, calls)
	}
}

func TestDo_InitialBackoffSampledFromJitterWindow(t *testing.T) {
	for _, r := range []float64{0, 0.5, 0.999} {
		var observed time.Duration
		p := retry.Policy{
			MaxAttempts:    2,
			InitialBackoff: 1 * time.Millisecond,
			InitialJitter:  4 * time.Millisecond,
			Rand:           func() float64 { return r },
			OnRetry: func(_ int, _ error, backoff time.Duration) {
				observed = backoff
			},
		}

		_, _ = retry.Do(context.Background(), p, alwaysRetry, func() (struct{}, error) {
			return struct{}{}, errors.New("fail")
		})

		if observed < 1*time.Millisecond || observed > 5*time.Millisecond {
			t.Fatalf("rand=%v: initial backoff %v outside [1ms, 5ms]", r, observed)
		}
	}
}

func TestDo_UnboundedDoublesUpToCap(t *testing.T) {
	clock := clockwork.NewFakeClock()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var delays []time.Duration
	p := retry.Policy{
		InitialBackoff: 1 * time.Second,
		InitialJitter:  4 * time.Second,
		MaxBackoff:     120 * time.Second,
		Clock:          clock,
		OnRetry: func(_ int, _ error, backoff time.Duration) {
			mu.Lock()
			delays = append(delays, backoff)
			mu.Unlock()
		},
	}

	const failures = 10
	calls := 0
	done := make(chan error, 1)
	go func() {
		_, err := retry.Do(ctx, p, alwaysRetry, func() (int, error) {
			calls++
			if calls <= failures {
				return 0, errors.New("transport down")
			}
			return calls, nil
		})
		done <- err
	}()

	for i := 0; i < failures; i++ {
		if err := clock.BlockUntilContext(ctx, 1); err != nil {
			t.Fatalf("waiting for backoff timer: %v", err)
		}
		clock.Advance(120 * time.Second)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected success, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("retry loop did not finish")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(delays) != failures {
		t.Fatalf("expected %d delays, got %d", failures, len(delays))
	}
	if delays[0] < 1*time.Second || delays[0] > 5*time.Second {
		t.Fatalf("first delay %v outside [1s, 5s]", delays[0])
	}
	for i := 1; i < len(delays); i++ {
		prev, cur := delays[i-1], delays[i]
		if cur > 120*time.Second {
			t.Fatalf("delay %d = %v exceeds cap", i, cur)
		}
		if cur < prev || (cur > 2*prev) {
			t.Fatalf("delay %d = %v not within [%v, %v]", i, cur, prev, 2*prev)
		}
	}
	if delays[len(delays)-1] != 120*time.Second {
		t.Fatalf("expected last delay to hit the cap, got %v", delays[len(delays)-1])
	}
}

func TestDo_ContextCancellationDuringWait(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	p := retry.Policy{
		MaxAttempts:    3,
		InitialBackoff: 10 * time.Second, // long enough that context cancels first
	}

	calls := 0
	_, err := retry.Do(ctx, p, alwaysRetry, func() (struct{}, error) {
		calls++
		cancel() // cancel context after the first attempt
		return struct{}{}, errors.New("transient")
	})
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 call before cancel, got %d", calls)
	}
}

func TestDo_OnRetryCallback(t *testing.T) {
	var recorded []int
	p := fastPolicy
	p.OnRetry = func(attempt int, _ error, _ time.Duration) {
		recorded = append(recorded, attempt)
	}

	_, _ = retry.Do(context.Background(), p, alwaysRetry, func() (struct{}, error) {
		return struct{}{}, errors.New("fail")
	})

	// OnRetry should be called for attempts 1 and 2 (not 3, because that's exhaustion)
	expected := []int{1, 2}
	if len(recorded) != len(expected) {
		t.Fatalf("expected %d OnRetry calls, got %d", len(expected), len(recorded))
	}
	for i, v := range expected {
		if recorded[i] != v {
			t.Fatalf("OnRetry call %d: expected attempt %d, got %d", i, v, recorded[i])
		}
	}
}

func TestDoVoid_Success(t *testing.T) {
	calls := 0
	err := retry.DoVoid(context.Background(), fastPolicy, alwaysRetry, func() error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
}

func TestDoVoid_PropagatesError(t *testing.T) {
	underlying := errors.New("fail")
	err := retry.DoVoid(context.Background(), fastPolicy, alwaysStop, func() error {
		return underlying
	})
	if !errors.Is(err, underlying) {
		t.Fatalf("expected wrapped underlying error, got %v", err)
	}
	var permErr *retry.PermanentError
	if !errors.As(err, &permErr) {
		t.Fatalf("expected PermanentError wrapper, got %T", err)
	}
}

func alwaysRetry(error) retry.Action { return retry.Retry }
func alwaysStop(error) retry.Action  { return retry.Stop }
