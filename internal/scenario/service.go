package scenario

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/awarelab/scenario-api/internal/job"
	"github.com/awarelab/scenario-api/internal/task"
	"github.com/awarelab/scenario-api/internal/user"
)

// ErrUserNotFound is returned when a trigger names an unknown user.
var ErrUserNotFound = errors.New("scenario: user not found")

// StartStatus is the synchronous acknowledgment a trigger receives.
type StartStatus string

const (
	// StartSkipped means required inputs were missing; nothing ran.
	StartSkipped StartStatus = "skipped"
	// StartAlreadyCompleted means the assets already exist.
	StartAlreadyCompleted StartStatus = "already_completed"
	// StartAlreadyInProgress means another run is active.
	StartAlreadyInProgress StartStatus = "already_in_progress"
	// StartRateLimited means the trigger repeated too quickly.
	StartRateLimited StartStatus = "rate_limited"
	// StartStarted means a background run was launched.
	StartStarted StartStatus = "started"
)

// StartResult is returned by StartPreGeneration.
type StartResult struct {
	Status  StartStatus
	Message string
}

// StatusReport is the read-through view of a user's pre-generation state.
type StatusReport struct {
	Status      user.Status
	StartedAt   *time.Time
	CompletedAt *time.Time
	Error       string
	Assets      map[user.Column]string
	Jobs        []*job.Job
}

// Service fronts the orchestrator: it performs the synchronous guard check,
// claims the user, and launches the run detached from the request.
type Service struct {
	users        user.Store
	jobs         job.Repository
	orchestrator *Orchestrator
	logger       *slog.Logger
	now          func() time.Time
}

// NewService creates the pre-generation service.
func NewService(users user.Store, jobs job.Repository, orchestrator *Orchestrator, logger *slog.Logger) *Service {
	return &Service{
		users:        users,
		jobs:         jobs,
		orchestrator: orchestrator,
		logger:       logger,
		now:          time.Now,
	}
}

// StartPreGeneration checks the guard, claims the user, and launches the
// pipeline in the background. It returns immediately; callers observe
// progress through Status. The returned task handle is non-nil only when a
// run was actually started; production callers ignore it, tests await it.
func (s *Service) StartPreGeneration(ctx context.Context, userID, imageURL, voiceID string, gender user.Gender) (StartResult, *task.Handle, error) {
	if imageURL == "" || voiceID == "" || !gender.IsValid() {
		return StartResult{Status: StartSkipped, Message: "image URL, voice ID and gender are required"}, nil, nil
	}

	rec, err := s.users.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return StartResult{}, nil, ErrUserNotFound
		}
		return StartResult{}, nil, fmt.Errorf("scenario: load user: %w", err)
	}

	now := s.now().UTC()
	decision := CanStart(rec, now)
	if !decision.Allow {
		return StartResult{Status: denyStatus(decision.Reason), Message: decision.Message}, nil, nil
	}

	// The guard read races with concurrent triggers; the conditional claim
	// below is what actually serializes them.
	claimed, err := s.users.MarkInProgress(ctx, userID, now, now.Add(-StuckThreshold))
	if err != nil {
		return StartResult{}, nil, fmt.Errorf("scenario: claim user: %w", err)
	}
	if !claimed {
		return StartResult{Status: StartAlreadyInProgress, Message: "another run claimed this user first"}, nil, nil
	}

	in := Input{UserID: userID, ImageURL: imageURL, VoiceID: voiceID, Gender: gender}
	handle := task.Go(ctx, s.logger, "pre-generation:"+userID, func(runCtx context.Context) error {
		_, err := s.orchestrator.Run(runCtx, in)
		return err
	})

	s.logger.Info("pre-generation run launched", "user_id", userID)
	return StartResult{Status: StartStarted}, handle, nil
}

// Status reads through to the user record and job table. No orchestration
// logic lives here.
func (s *Service) Status(ctx context.Context, userID string) (*StatusReport, error) {
	rec, err := s.users.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("scenario: load user: %w", err)
	}

	assets := make(map[user.Column]string, len(user.AssetColumns))
	for _, col := range user.AssetColumns {
		assets[col] = rec.AssetURL(col)
	}

	jobs, err := s.jobs.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("scenario: list jobs: %w", err)
	}

	return &StatusReport{
		Status:      rec.PreGenerationStatus,
		StartedAt:   rec.PreGenerationStartedAt,
		CompletedAt: rec.PreGenerationCompletedAt,
		Error:       rec.PreGenerationError,
		Assets:      assets,
		Jobs:        jobs,
	}, nil
}

func denyStatus(reason DenyReason) StartStatus {
	switch reason {
	case DenyAlreadyCompleted:
		return StartAlreadyCompleted
	case DenyRateLimited:
		return StartRateLimited
	default:
		return StartAlreadyInProgress
	}
}
