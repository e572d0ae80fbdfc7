package poll

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/awarelab/scenario-api/internal/provider"
)

// fastSchedule keeps test wall-clock time negligible.
func fastSchedule(n int) Schedule {
	return Fixed(time.Millisecond, n)
}

// scripted returns a StatusFunc that replays the given results in order,
// repeating the last one if polled past the end.
func scripted(results ...provider.PollResult) StatusFunc {
	i := 0
	return func(ctx context.Context) (provider.PollResult, error) {
		r := results[i]
		if i < len(results)-1 {
			i++
		}
		return r, nil
	}
}

func TestRun_CompletedBeforeExhaustion(t *testing.T) {
	fn := scripted(
		provider.PollResult{Status: provider.StatusQueued},
		provider.PollResult{Status: provider.StatusProcessing},
		provider.PollResult{Status: provider.StatusCompleted, URL: "https://cdn.example.com/video.mp4"},
	)

	url, err := Run(context.Background(), fastSchedule(10), fn)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if url != "https://cdn.example.com/video.mp4" {
		t.Errorf("expected result url, got %q", url)
	}
}

func TestRun_FailedReturnsImmediately(t *testing.T) {
	calls := 0
	fn := func(ctx context.Context) (provider.PollResult, error) {
		calls++
		if calls == 2 {
			return provider.PollResult{Status: provider.StatusFailed, Reason: "face not detected"}, nil
		}
		return provider.PollResult{Status: provider.StatusProcessing}, nil
	}

	_, err := Run(context.Background(), fastSchedule(10), fn)
	if !errors.Is(err, ErrJobFailed) {
		t.Fatalf("expected ErrJobFailed, got %v", err)
	}
	if calls != 2 {
		t.Errorf("expected polling to stop at the failure, got %d calls", calls)
	}
}

func TestRun_TimeoutAfterLastInterval(t *testing.T) {
	calls := 0
	fn := func(ctx context.Context) (provider.PollResult, error) {
		calls++
		return provider.PollResult{Status: provider.StatusProcessing}, nil
	}

	_, err := Run(context.Background(), fastSchedule(4), fn)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	// One check after the initial delay plus one per interval.
	if calls != 5 {
		t.Errorf("expected 5 status checks, got %d", calls)
	}
}

func TestRun_TransientErrorsContinue(t *testing.T) {
	calls := 0
	fn := func(ctx context.Context) (provider.PollResult, error) {
		calls++
		if calls < 3 {
			return provider.PollResult{}, errors.New("502 bad gateway")
		}
		return provider.PollResult{Status: provider.StatusCompleted, URL: "u"}, nil
	}

	url, err := Run(context.Background(), fastSchedule(5), fn)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if url != "u" {
		t.Errorf("expected url %q, got %q", "u", url)
	}
}

func TestRun_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Run(ctx, Fixed(time.Second, 3), scripted(provider.PollResult{Status: provider.StatusQueued}))
	if err == nil || !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context cancellation error, got %v", err)
	}
}

func TestRun_InitialDelayRespected(t *testing.T) {
	sched := Schedule{InitialDelay: 20 * time.Millisecond, Intervals: []time.Duration{time.Millisecond}}

	start := time.Now()
	url, err := Run(context.Background(), sched, scripted(provider.PollResult{Status: provider.StatusCompleted, URL: "u"}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if url != "u" {
		t.Errorf("unexpected url %q", url)
	}
	if elapsed := time.Since(start); elapsed < 20*time.Millisecond {
		t.Errorf("expected initial delay before first check, elapsed %v", elapsed)
	}
}

func TestSchedule_Budget(t *testing.T) {
	tests := []struct {
		name  string
		sched Schedule
		want  time.Duration
	}{
		{"empty", Schedule{}, 0},
		{"fixed", Fixed(5*time.Second, 3), 15 * time.Second},
		{"standard is about 8 minutes", Standard(), 5*time.Second + 50*time.Second + 11*30*time.Second},
		{"extended is about 13 minutes", Extended(), 5*time.Second + 50*time.Second + 18*30*time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.sched.Budget(); got != tt.want {
				t.Errorf("Budget() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestStandardAndExtended_FrontLoaded(t *testing.T) {
	for _, sched := range []Schedule{Standard(), Extended()} {
		if sched.InitialDelay != 5*time.Second {
			t.Errorf("expected 5s initialization delay, got %v", sched.InitialDelay)
		}
		if sched.Intervals[0] != 5*time.Second || sched.Intervals[3] != 20*time.Second {
			t.Errorf("expected 5/10/15/20s ramp, got %v", sched.Intervals[:4])
		}
		for _, d := range sched.Intervals[4:] {
			if d != 30*time.Second {
				t.Errorf("expected 30s cap, got %v", d)
			}
		}
	}
}
