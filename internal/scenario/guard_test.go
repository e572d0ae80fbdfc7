package scenario

import (
	"strings"
	"testing"
	"time"

	"github.com/awarelab/scenario-api/internal/user"
)

func guardRecord(status user.Status) *user.Record {
	return &user.Record{
		ID:                  "user-1",
		PreGenerationStatus: status,
		UpdatedAt:           time.Now().Add(-time.Hour),
	}
}

func TestCanStart(t *testing.T) {
	now := time.Now()

	t.Run("completed is denied", func(t *testing.T) {
		d := CanStart(guardRecord(user.StatusCompleted), now)
		if d.Allow {
			t.Fatal("completed user should be denied")
		}
		if d.Reason != DenyAlreadyCompleted {
			t.Errorf("reason = %v, want %v", d.Reason, DenyAlreadyCompleted)
		}
	})

	t.Run("fresh in_progress is denied with elapsed minutes", func(t *testing.T) {
		rec := guardRecord(user.StatusInProgress)
		started := now.Add(-5 * time.Minute)
		rec.PreGenerationStartedAt = &started

		d := CanStart(rec, now)
		if d.Allow {
			t.Fatal("fresh run should be denied")
		}
		if d.Reason != DenyAlreadyInProgress {
			t.Errorf("reason = %v, want %v", d.Reason, DenyAlreadyInProgress)
		}
		if !strings.Contains(d.Message, "5.0") {
			t.Errorf("message %q should include elapsed minutes", d.Message)
		}
	})

	t.Run("stuck in_progress is allowed", func(t *testing.T) {
		rec := guardRecord(user.StatusInProgress)
		started := now.Add(-StuckThreshold - time.Minute)
		rec.PreGenerationStartedAt = &started

		if d := CanStart(rec, now); !d.Allow {
			t.Errorf("stuck run should be allowed, got %+v", d)
		}
	})

	t.Run("in_progress at exactly the threshold is denied", func(t *testing.T) {
		rec := guardRecord(user.StatusInProgress)
		started := now.Add(-StuckThreshold)
		rec.PreGenerationStartedAt = &started

		if d := CanStart(rec, now); d.Allow {
			t.Error("run exactly at the threshold should still be denied")
		}
	})

	t.Run("in_progress without start time is denied", func(t *testing.T) {
		rec := guardRecord(user.StatusInProgress)

		d := CanStart(rec, now)
		if d.Allow {
			t.Fatal("run with unknown start time should be denied")
		}
		if d.Reason != DenyAlreadyInProgress {
			t.Errorf("reason = %v, want %v", d.Reason, DenyAlreadyInProgress)
		}
	})

	t.Run("pending updated moments ago is rate limited", func(t *testing.T) {
		rec := guardRecord(user.StatusPending)
		rec.UpdatedAt = now.Add(-2 * time.Second)

		d := CanStart(rec, now)
		if d.Allow {
			t.Fatal("rapid repeat trigger should be denied")
		}
		if d.Reason != DenyRateLimited {
			t.Errorf("reason = %v, want %v", d.Reason, DenyRateLimited)
		}
	})

	t.Run("pending past the rapid window is allowed", func(t *testing.T) {
		rec := guardRecord(user.StatusPending)
		rec.UpdatedAt = now.Add(-RapidCallWindow)

		if d := CanStart(rec, now); !d.Allow {
			t.Errorf("pending user should be allowed, got %+v", d)
		}
	})

	t.Run("failed and partial_success allow retry", func(t *testing.T) {
		for _, status := range []user.Status{user.StatusFailed, user.StatusPartialSuccess} {
			if d := CanStart(guardRecord(status), now); !d.Allow {
				t.Errorf("%v should allow retry, got %+v", status, d)
			}
		}
	})
}
