// Package poll implements a generic bounded-retry driver for asynchronous
// provider jobs. A job is submitted elsewhere; Run repeatedly checks its
// status on an explicit interval schedule until the provider reports a
// terminal state or the schedule is exhausted.
package poll

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/awarelab/scenario-api/internal/provider"
)

// Static errors for polling outcomes.
var (
	// ErrTimeout is returned when the schedule is exhausted without the job
	// reaching a terminal state.
	ErrTimeout = errors.New("poll: schedule exhausted before job completed")
	// ErrJobFailed is returned when the provider reports a terminal failure.
	ErrJobFailed = errors.New("poll: provider reported job failure")
)

// StatusFunc checks the current status of a provider job. Errors returned by
// the function are treated as transient (the next interval is attempted);
// only an explicit provider-reported failure terminates polling early.
type StatusFunc func(ctx context.Context) (provider.PollResult, error)

// Schedule is an explicit ordered interval sequence. Schedules are
// front-loaded short so fast jobs return quickly, then capped for long jobs.
type Schedule struct {
	// InitialDelay is waited before the first status check, giving the
	// provider time to register the job.
	InitialDelay time.Duration
	// Intervals is the wait before each subsequent status check. The first
	// status check happens right after InitialDelay; Intervals[i] precedes
	// check i+1.
	Intervals []time.Duration
}

// Budget returns the total wall-clock time the schedule can consume.
func (s Schedule) Budget() time.Duration {
	total := s.InitialDelay
	for _, d := range s.Intervals {
		total += d
	}
	return total
}

// Standard returns the schedule used for interactive-latency jobs:
// 5s initialization, then 5/10/15/20s ramp-up capped at 30s (~8 minutes).
func Standard() Schedule {
	return Schedule{
		InitialDelay: 5 * time.Second,
		Intervals:    ramp(11),
	}
}

// Extended returns the schedule used in pre-generation contexts where
// latency tolerance is higher (~13 minutes).
func Extended() Schedule {
	return Schedule{
		InitialDelay: 5 * time.Second,
		Intervals:    ramp(18),
	}
}

// Fixed returns a flat schedule of n intervals of d each with no
// initialization delay.
func Fixed(d time.Duration, n int) Schedule {
	intervals := make([]time.Duration, n)
	for i := range intervals {
		intervals[i] = d
	}
	return Schedule{Intervals: intervals}
}

// ramp builds the 5/10/15/20s ramp followed by n 30-second intervals.
func ramp(n int) []time.Duration {
	intervals := []time.Duration{
		5 * time.Second,
		10 * time.Second,
		15 * time.Second,
		20 * time.Second,
	}
	for i := 0; i < n; i++ {
		intervals = append(intervals, 30*time.Second)
	}
	return intervals
}

// Run drives fn on the given schedule until a terminal result.
//
// Completed returns the result URL. Failed returns ErrJobFailed wrapping the
// provider's reason without consuming the remaining intervals. Queued,
// Processing, and transient errors (network failures, non-parseable
// responses) continue to the next interval. Exhausting the schedule returns
// ErrTimeout. Context cancellation is honored at every wait.
func Run(ctx context.Context, sched Schedule, fn StatusFunc) (string, error) {
	if sched.InitialDelay > 0 {
		if err := wait(ctx, sched.InitialDelay); err != nil {
			return "", err
		}
	}

	// First check after the initialization delay, then one per interval.
	checks := len(sched.Intervals) + 1
	for attempt := 0; attempt < checks; attempt++ {
		if attempt > 0 {
			if err := wait(ctx, sched.Intervals[attempt-1]); err != nil {
				return "", err
			}
		}

		result, err := fn(ctx)
		if err != nil {
			// Transient: keep polling on the remaining schedule.
			continue
		}

		switch result.Status {
		case provider.StatusCompleted:
			return result.URL, nil
		case provider.StatusFailed:
			if result.Reason != "" {
				return "", fmt.Errorf("%w: %s", ErrJobFailed, result.Reason)
			}
			return "", ErrJobFailed
		default:
			// Queued or Processing: continue.
		}
	}

	return "", ErrTimeout
}

// wait sleeps for d or returns early if ctx is done.
func wait(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("poll: context cancelled: %w", ctx.Err())
	case <-time.After(d):
		return nil
	}
}
