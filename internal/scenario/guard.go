package scenario

import (
	"fmt"
	"time"

	"github.com/awarelab/scenario-api/internal/user"
)

// Guard thresholds. A run older than StuckThreshold is presumed dead and may
// be restarted; triggers arriving within RapidCallWindow of the last record
// update are rate limited.
const (
	StuckThreshold  = 20 * time.Minute
	RapidCallWindow = 10 * time.Second
)

// DenyReason classifies why a pre-generation run was not started.
type DenyReason string

const (
	DenyAlreadyCompleted  DenyReason = "already_completed"
	DenyAlreadyInProgress DenyReason = "already_in_progress"
	DenyRateLimited       DenyReason = "rate_limited"
)

// Decision is the outcome of a guard check.
type Decision struct {
	// Allow is true when a new run may start.
	Allow bool
	// Reason is set when the run is denied.
	Reason DenyReason
	// Message carries caller-facing detail, e.g. elapsed minutes of the
	// active run.
	Message string
}

// CanStart decides whether a new pre-generation run is allowed for rec.
// It is a best-effort read-side check; the write-side claim is the store's
// conditional MarkInProgress.
func CanStart(rec *user.Record, now time.Time) Decision {
	switch rec.PreGenerationStatus {
	case user.StatusCompleted:
		return Decision{Reason: DenyAlreadyCompleted, Message: "scenario assets already generated"}

	case user.StatusInProgress:
		// No start timestamp means we cannot prove the run is stuck, so
		// deny conservatively.
		if rec.PreGenerationStartedAt == nil {
			return Decision{
				Reason:  DenyAlreadyInProgress,
				Message: "generation in progress with unknown start time",
			}
		}
		elapsed := now.Sub(*rec.PreGenerationStartedAt)
		if elapsed > StuckThreshold {
			return Decision{Allow: true}
		}
		return Decision{
			Reason:  DenyAlreadyInProgress,
			Message: fmt.Sprintf("generation in progress for %.1f minutes", elapsed.Minutes()),
		}

	case user.StatusPending:
		if now.Sub(rec.UpdatedAt) < RapidCallWindow {
			return Decision{Reason: DenyRateLimited, Message: "trigger repeated too quickly"}
		}
		return Decision{Allow: true}

	default:
		// failed and partial_success permit an explicit retry.
		return Decision{Allow: true}
	}
}
