// Package job tracks the individual generation tasks inside a
// pre-generation run. Each user run fans out into face-swap, talking-photo,
// and voice-dub jobs whose lifecycle follows a small state machine.
package job

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Type identifies the kind of generation work a job performs.
type Type string

const (
	// TypeFaceSwap swaps the user's face into a scenario template image.
	TypeFaceSwap Type = "face_swap"
	// TypeTalkingPhoto animates a swapped image with synthesized speech.
	TypeTalkingPhoto Type = "talking_photo"
	// TypeVoiceDub re-renders a scripted call in the user's cloned voice.
	TypeVoiceDub Type = "voice_dub"
)

// IsValid returns true if the type is one of the supported job kinds.
func (t Type) IsValid() bool {
	return t == TypeFaceSwap || t == TypeTalkingPhoto || t == TypeVoiceDub
}

// Status represents the current state of a job.
type Status string

const (
	// StatusPending indicates the job has been created but not started.
	StatusPending Status = "pending"
	// StatusInProgress indicates the job is submitted or polling.
	StatusInProgress Status = "in_progress"
	// StatusCompleted indicates the job produced a user-specific asset.
	StatusCompleted Status = "completed"
	// StatusCompletedWithFallback indicates the job timed out or failed
	// late and a generic sample asset was substituted. The fallback does
	// not fill the user's asset slot.
	StatusCompletedWithFallback Status = "completed_with_fallback"
	// StatusFailed indicates the job did not produce an asset.
	StatusFailed Status = "failed"
)

// IsTerminal returns true if the status is final.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCompletedWithFallback || s == StatusFailed
}

// ErrInvalidTransition is returned when an invalid state transition is attempted.
var ErrInvalidTransition = errors.New("job: invalid state transition")

// validTransitions defines which state transitions are allowed.
var validTransitions = map[Status][]Status{
	StatusPending:               {StatusInProgress, StatusFailed},
	StatusInProgress:            {StatusCompleted, StatusCompletedWithFallback, StatusFailed},
	StatusCompleted:             {},
	StatusCompletedWithFallback: {},
	StatusFailed:                {},
}

// canTransition checks if a transition from one status to another is valid.
func canTransition(from, to Status) bool {
	allowed, ok := validTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// Job represents one generation task inside a pre-generation run.
type Job struct {
	mu sync.RWMutex

	// ID is the unique identifier for this job.
	ID string
	// UserID is the user whose assets are being generated.
	UserID string
	// Type is the kind of generation work.
	Type Type
	// Key names the scenario this job belongs to, e.g. "lottery".
	Key string
	// Status is the current job state.
	Status Status
	// ResultURL is the produced asset, or the sample asset when the job
	// completed with a fallback.
	ResultURL string
	// Error contains the failure message for failed or fallback jobs.
	Error string
	// DependsOn is the ID of the job whose output this job consumes,
	// e.g. a talking-photo job depends on its face-swap job.
	DependsOn string
	// CreatedAt is when the job was created.
	CreatedAt time.Time
	// UpdatedAt is when the job was last updated.
	UpdatedAt time.Time
	// StartedAt is when processing started.
	StartedAt time.Time
	// CompletedAt is when processing finished.
	CompletedAt time.Time
}

// New creates a job with a generated ID and initial pending status.
func New(userID string, jobType Type, key string) *Job {
	now := time.Now().UTC()
	return &Job{
		ID:        uuid.NewString(),
		UserID:    userID,
		Type:      jobType,
		Key:       key,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// TransitionTo attempts to change the job status to the specified state.
// Returns ErrInvalidTransition if the transition is not allowed.
func (j *Job) TransitionTo(status Status) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if !canTransition(j.Status, status) {
		return ErrInvalidTransition
	}

	j.Status = status
	j.UpdatedAt = time.Now().UTC()

	switch status {
	case StatusInProgress:
		j.StartedAt = j.UpdatedAt
	case StatusCompleted, StatusCompletedWithFallback, StatusFailed:
		j.CompletedAt = j.UpdatedAt
	}

	return nil
}

// Start transitions the job from pending to in_progress.
func (j *Job) Start() error {
	return j.TransitionTo(StatusInProgress)
}

// Complete records the produced asset URL and transitions to completed.
func (j *Job) Complete(resultURL string) error {
	j.mu.Lock()
	j.ResultURL = resultURL
	j.mu.Unlock()
	return j.TransitionTo(StatusCompleted)
}

// CompleteWithFallback records the sample asset substituted for the real
// one, along with the reason the real generation did not finish.
func (j *Job) CompleteWithFallback(sampleURL, reason string) error {
	j.mu.Lock()
	j.ResultURL = sampleURL
	j.Error = reason
	j.mu.Unlock()
	return j.TransitionTo(StatusCompletedWithFallback)
}

// Fail transitions the job to failed with an error message.
func (j *Job) Fail(errMsg string) error {
	j.mu.Lock()
	j.Error = errMsg
	j.mu.Unlock()
	return j.TransitionTo(StatusFailed)
}

// GetStatus returns the current job status (thread-safe).
func (j *Job) GetStatus() Status {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Status
}

// IsTerminal returns true if the job is in a terminal state.
func (j *Job) IsTerminal() bool {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Status.IsTerminal()
}

// Clone creates a deep copy of the job for safe reads.
func (j *Job) Clone() *Job {
	j.mu.RLock()
	defer j.mu.RUnlock()

	return &Job{
		ID:          j.ID,
		UserID:      j.UserID,
		Type:        j.Type,
		Key:         j.Key,
		Status:      j.Status,
		ResultURL:   j.ResultURL,
		Error:       j.Error,
		DependsOn:   j.DependsOn,
		CreatedAt:   j.CreatedAt,
		UpdatedAt:   j.UpdatedAt,
		StartedAt:   j.StartedAt,
		CompletedAt: j.CompletedAt,
	}
}
