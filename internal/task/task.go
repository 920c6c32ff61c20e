// Package task runs a unit of asynchronous work under a deadline and reports
// how it settled. Probes, fetches and readiness waits all go through here so
// callers see one result shape regardless of where the work came from.
package task

import (
	"context"
	"errors"
	"time"
)

type Outcome int

const (
	Success Outcome = iota
	Failure
	Timeout
	Canceled
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case Failure:
		return "failure"
	case Timeout:
		return "timeout"
	case Canceled:
		return "canceled"
	default:
		return "unknown"
	}
}

var ErrTimeout = errors.New("task timed out")

type Result[T any] struct {
	Value   T
	Outcome Outcome
	Err     error
	Elapsed time.Duration
}

func (r Result[T]) OK() bool {
	return r.Outcome == Success
}

type Func[T any] func(ctx context.Context) (T, error)

// Run executes fn and blocks until it returns or the deadline passes. A
// timeout <= 0 means no deadline. fn runs on its own goroutine, so a callee
// that ignores its context still cannot hold Run past the deadline.
func Run[T any](parent context.Context, timeout time.Duration, fn Func[T]) Result[T] {
	start := time.Now()

	ctx, cancel := withTimeout(parent, timeout)
	defer cancel()

	type settled struct {
		value T
		err   error
	}
	done := make(chan settled, 1)

	go func() {
		v, err := fn(ctx)
		done <- settled{value: v, err: err}
	}()

	select {
	case s := <-done:
		if s.err == nil {
			return Result[T]{Value: s.value, Outcome: Success, Elapsed: time.Since(start)}
		}
		return Result[T]{Outcome: classify(parent, ctx, s.err), Err: s.err, Elapsed: time.Since(start)}
	case <-ctx.Done():
		var zero T
		if parent.Err() != nil {
			return Result[T]{Value: zero, Outcome: Canceled, Err: parent.Err(), Elapsed: time.Since(start)}
		}
		return Result[T]{Value: zero, Outcome: Timeout, Err: ErrTimeout, Elapsed: time.Since(start)}
	}
}

// Go runs fn in the background and hands the result to done.
func Go[T any](ctx context.Context, timeout time.Duration, fn Func[T], done func(Result[T])) {
	go func() {
		done(Run(ctx, timeout, fn))
	}()
}

// Await turns a readiness signal into a Func. A nil error on the channel
// means ready; anything else fails the task. A closed channel counts as ready.
func Await(signal <-chan error) Func[struct{}] {
	return func(ctx context.Context) (struct{}, error) {
		select {
		case err := <-signal:
			return struct{}{}, err
		case <-ctx.Done():
			return struct{}{}, ctx.Err()
		}
	}
}

func withTimeout(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, timeout)
}

func classify(parent, ctx context.Context, err error) Outcome {
	switch {
	case parent.Err() != nil && errors.Is(err, parent.Err()):
		return Canceled
	case errors.Is(err, context.DeadlineExceeded) && ctx.Err() != nil:
		return Timeout
	case errors.Is(err, context.Canceled) && parent.Err() != nil:
		return Canceled
	default:
		return Failure
	}
}
