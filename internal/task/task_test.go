package task

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRunSuccess(t *testing.T) {
	res := Run(context.Background(), time.Second, func(ctx context.Context) (int, error) {
		return 42, nil
	})

	if !res.OK() {
		t.Fatalf("Run() outcome = %v, expected success", res.Outcome)
	}
	if res.Value != 42 {
		t.Errorf("Run() value = %d, expected 42", res.Value)
	}
}

func TestRunFailure(t *testing.T) {
	boom := errors.New("boom")
	res := Run(context.Background(), time.Second, func(ctx context.Context) (int, error) {
		return 0, boom
	})

	if res.Outcome != Failure {
		t.Fatalf("Run() outcome = %v, expected failure", res.Outcome)
	}
	if !errors.Is(res.Err, boom) {
		t.Errorf("Run() err = %v, expected %v", res.Err, boom)
	}
}

func TestRunTimeoutIgnoresStuckCallee(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	start := time.Now()
	res := Run(context.Background(), 20*time.Millisecond, func(ctx context.Context) (struct{}, error) {
		<-release
		return struct{}{}, nil
	})

	if res.Outcome != Timeout {
		t.Fatalf("Run() outcome = %v, expected timeout", res.Outcome)
	}
	if !errors.Is(res.Err, ErrTimeout) {
		t.Errorf("Run() err = %v, expected ErrTimeout", res.Err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Run() took %v, expected to return near the deadline", elapsed)
	}
}

func TestRunTimeoutFromContextError(t *testing.T) {
	res := Run(context.Background(), 10*time.Millisecond, func(ctx context.Context) (struct{}, error) {
		<-ctx.Done()
		return struct{}{}, ctx.Err()
	})

	if res.Outcome != Timeout {
		t.Errorf("Run() outcome = %v, expected timeout", res.Outcome)
	}
}

func TestRunCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := Run(ctx, time.Second, func(ctx context.Context) (struct{}, error) {
		<-ctx.Done()
		return struct{}{}, ctx.Err()
	})

	if res.Outcome != Canceled {
		t.Errorf("Run() outcome = %v, expected canceled", res.Outcome)
	}
}

func TestRunWithoutDeadline(t *testing.T) {
	res := Run(context.Background(), 0, func(ctx context.Context) (string, error) {
		if _, ok := ctx.Deadline(); ok {
			return "", errors.New("unexpected deadline")
		}
		return "ok", nil
	})

	if !res.OK() {
		t.Errorf("Run() outcome = %v (%v), expected success", res.Outcome, res.Err)
	}
}

func TestGoDeliversResult(t *testing.T) {
	got := make(chan Result[int], 1)
	Go(context.Background(), time.Second, func(ctx context.Context) (int, error) {
		return 7, nil
	}, func(r Result[int]) {
		got <- r
	})

	select {
	case r := <-got:
		if r.Value != 7 || !r.OK() {
			t.Errorf("Go() result = %+v, expected success with 7", r)
		}
	case <-time.After(time.Second):
		t.Fatal("Go() never called done")
	}
}

func TestAwait(t *testing.T) {
	tests := []struct {
		name     string
		send     func(chan error)
		expected Outcome
	}{
		{
			name:     "ready",
			send:     func(ch chan error) { ch <- nil },
			expected: Success,
		},
		{
			name:     "closed",
			send:     func(ch chan error) { close(ch) },
			expected: Success,
		},
		{
			name:     "failed",
			send:     func(ch chan error) { ch <- errors.New("decode error") },
			expected: Failure,
		},
		{
			name:     "never",
			send:     func(ch chan error) {},
			expected: Timeout,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ch := make(chan error, 1)
			tt.send(ch)

			res := Run(context.Background(), 20*time.Millisecond, Await(ch))
			if res.Outcome != tt.expected {
				t.Errorf("Await() outcome = %v, expected %v", res.Outcome, tt.expected)
			}
		})
	}
}

func TestOutcomeString(t *testing.T) {
	tests := []struct {
		o        Outcome
		expected string
	}{
		{Success, "success"},
		{Failure, "failure"},
		{Timeout, "timeout"},
		{Canceled, "canceled"},
		{Outcome(99), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.o.String(); got != tt.expected {
			t.Errorf("Outcome(%d).String() = %q, expected %q", int(tt.o), got, tt.expected)
		}
	}
}
