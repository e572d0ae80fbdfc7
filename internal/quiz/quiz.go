// Package quiz records the answers users submit in the education modules.
package quiz

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrEmptyModule is returned when an answer names no module.
var ErrEmptyModule = errors.New("quiz: module is required")

// Answer is one quiz submission: the answers a user gave for one module.
type Answer struct {
	// ID is the unique identifier for this submission.
	ID string
	// UserID is the user who answered.
	UserID string
	// Module names the education module the quiz belongs to.
	Module string
	// Answers maps question IDs to the submitted values.
	Answers map[string]any
	// CreatedAt is when the submission was recorded.
	CreatedAt time.Time
}

// New creates an answer record with a generated ID.
func New(userID, module string, answers map[string]any) (*Answer, error) {
	if module == "" {
		return nil, ErrEmptyModule
	}
	return &Answer{
		ID:        uuid.NewString(),
		UserID:    userID,
		Module:    module,
		Answers:   answers,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// Clone creates a deep copy of the answer for safe reads.
func (a *Answer) Clone() *Answer {
	out := *a
	if a.Answers != nil {
		out.Answers = make(map[string]any, len(a.Answers))
		for k, v := range a.Answers {
			out.Answers[k] = v
		}
	}
	return &out
}

// Repository defines the persistence port for quiz answers.
type Repository interface {
	// Save persists a submission.
	Save(ctx context.Context, a *Answer) error

	// ListByUser returns a user's submissions, oldest first. A non-empty
	// module restricts the list to that module.
	ListByUser(ctx context.Context, userID, module string) ([]*Answer, error)
}
