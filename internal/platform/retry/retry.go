package retry

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/jonboulle/clockwork"
)

type Action int

const (
	Stop  Action = iota // permanent error, abort immediately
	Retry               // transient error, use normal backoff
)

// Policy describes a jittered exponential backoff. The first delay is sampled
// uniformly from [InitialBackoff, InitialBackoff+InitialJitter]; each later
// delay doubles, capped at MaxBackoff. MaxAttempts <= 0 retries until the
// operation succeeds, the classifier stops it, or ctx is cancelled.
type Policy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	InitialJitter  time.Duration
	MaxBackoff     time.Duration
	Clock          clockwork.Clock
	OnRetry        func(attempt int, err error, backoff time.Duration)

	// Rand returns a value in [0, 1) used to sample the first delay.
	// Defaults to math/rand/v2.
	Rand func() float64
}

type Classify func(err error) Action
type Operation[T any] func() (T, error)
type VoidOperation func() error

func (p Policy) initialBackoff() time.Duration {
	r := rand.Float64
	if p.Rand != nil {
		r = p.Rand
	}
	d := p.InitialBackoff + time.Duration(r()*float64(p.InitialJitter))
	return p.capped(d)
}

func (p Policy) capped(d time.Duration) time.Duration {
	if p.MaxBackoff > 0 && d > p.MaxBackoff {
		return p.MaxBackoff
	}
	return d
}

func Do[T any](ctx context.Context, p Policy, classify Classify, op Operation[T]) (T, error) {
	clock := p.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	backoff := p.initialBackoff()

	for attempt := 1; ; attempt++ {
		val, err := op()
		if err == nil {
			return val, nil
		}

		if classify(err) == Stop {
			var zero T
			return zero, &PermanentError{Err: err}
		}

		if p.MaxAttempts > 0 && attempt >= p.MaxAttempts {
			var zero T
			return zero, fmt.Errorf("failed after %d attempts: %w", p.MaxAttempts, err)
		}

		if p.OnRetry != nil {
			p.OnRetry(attempt, err, backoff)
		}

		select {
		case <-clock.After(backoff):
			backoff = p.capped(backoff * 2)
		case <-ctx.Done():
			var zero T
			return zero, fmt.Errorf("context cancelled during retry: %w", ctx.Err())
		}
	}
}

func DoVoid(ctx context.Context, p Policy, classify Classify, op VoidOperation) error {
	_, err := Do(ctx, p, classify, func() (struct{}, error) { return struct{}{}, op() })
	return err
}

type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }
