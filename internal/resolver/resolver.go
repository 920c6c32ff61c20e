// Package resolver picks the first working resource out of an ordered list
// of candidate locations.
package resolver

import (
	"context"
	"errors"
	"strings"
	"time"

	"karolbroda.com/lyreplay/internal/logger"
	"karolbroda.com/lyreplay/internal/task"
)

// ErrNotFound means every candidate failed. It is an expected outcome.
var ErrNotFound = errors.New("no working candidate")

// Probe checks whether a single location is usable. It must release
// whatever it opened before returning.
type Probe interface {
	Probe(ctx context.Context, location string) error
}

type ProbeFunc func(ctx context.Context, location string) error

func (f ProbeFunc) Probe(ctx context.Context, location string) error {
	return f(ctx, location)
}

// Attempt records how one candidate fared.
type Attempt struct {
	Location string
	Outcome  task.Outcome
	Err      error
	Elapsed  time.Duration
}

// Resolve probes candidates in order and returns the first that succeeds.
// Later candidates are never probed once one works.
func Resolve(ctx context.Context, candidates []string, probe Probe, timeout time.Duration) (string, error) {
	location, _, err := ResolveReport(ctx, candidates, probe, timeout)
	return location, err
}

// ResolveReport is Resolve plus the per-candidate attempts.
func ResolveReport(ctx context.Context, candidates []string, probe Probe, timeout time.Duration) (string, []Attempt, error) {
	attempts := make([]Attempt, 0, len(candidates))

	for _, candidate := range candidates {
		candidate = strings.TrimSpace(candidate)
		if candidate == "" {
			continue
		}
		if err := ctx.Err(); err != nil {
			return "", attempts, err
		}

		res := task.Run(ctx, timeout, func(ctx context.Context) (struct{}, error) {
			return struct{}{}, probe.Probe(ctx, candidate)
		})

		attempts = append(attempts, Attempt{
			Location: candidate,
			Outcome:  res.Outcome,
			Err:      res.Err,
			Elapsed:  res.Elapsed,
		})

		if res.OK() {
			logger.Debug("candidate accepted",
				logger.String("location", candidate),
				logger.Duration("elapsed", res.Elapsed))
			return candidate, attempts, nil
		}

		if res.Outcome == task.Canceled {
			return "", attempts, res.Err
		}

		logger.Debug("candidate rejected",
			logger.String("location", candidate),
			logger.String("outcome", res.Outcome.String()),
			logger.Err(res.Err))
	}

	return "", attempts, ErrNotFound
}
