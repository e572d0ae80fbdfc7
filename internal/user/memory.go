package user

import (
	"context"
	"sync"
	"time"
)

// Compile-time check that MemoryStore implements Store.
var _ Store = (*MemoryStore)(nil)

// MemoryStore is an in-memory implementation of Store.
// It uses a map with RWMutex for thread-safe access.
// Suitable for development and testing; swap for Postgres in production.
type MemoryStore struct {
	mu    sync.RWMutex
	users map[string]*Record
}

// NewMemoryStore creates a new in-memory user store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users: make(map[string]*Record),
	}
}

// Create persists a user. Creates a clone to avoid external mutations.
func (s *MemoryStore) Create(_ context.Context, rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[rec.ID] = rec.Clone()
	return nil
}

// Get retrieves a user by ID. Returns a clone to prevent external mutations.
func (s *MemoryStore) Get(_ context.Context, id string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return rec.Clone(), nil
}

// GetByVoiceID retrieves a user by cloned voice ID.
func (s *MemoryStore) GetByVoiceID(_ context.Context, voiceID string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, rec := range s.users {
		if rec.VoiceID == voiceID {
			return rec.Clone(), nil
		}
	}
	return nil, ErrNotFound
}

// Patch applies a partial update to the named columns.
func (s *MemoryStore) Patch(_ context.Context, id string, patch Patch) error {
	if err := patch.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.users[id]
	if !ok {
		return ErrNotFound
	}

	for col, val := range patch {
		applyColumn(rec, col, val)
	}
	rec.UpdatedAt = time.Now().UTC()
	return nil
}

// MarkInProgress atomically claims the user for a pre-generation run.
func (s *MemoryStore) MarkInProgress(_ context.Context, id string, startedAt, cutoff time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.users[id]
	if !ok {
		return false, ErrNotFound
	}

	if rec.PreGenerationStatus == StatusInProgress {
		// An active run blocks the claim unless it is provably stuck.
		if rec.PreGenerationStartedAt == nil || !rec.PreGenerationStartedAt.Before(cutoff) {
			return false, nil
		}
	}

	started := startedAt
	rec.PreGenerationStatus = StatusInProgress
	rec.PreGenerationStartedAt = &started
	rec.PreGenerationCompletedAt = nil
	rec.PreGenerationError = ""
	rec.UpdatedAt = time.Now().UTC()
	return true, nil
}

// applyColumn sets a single column on the record. Values are string, int,
// []string, time.Time, or nil to clear.
func applyColumn(rec *Record, col Column, val any) {
	switch col {
	case ColLotteryFaceSwap:
		rec.LotteryFaceSwapURL = asString(val)
	case ColCrimeFaceSwap:
		rec.CrimeFaceSwapURL = asString(val)
	case ColLotteryVideo:
		rec.LotteryVideoURL = asString(val)
	case ColCrimeVideo:
		rec.CrimeVideoURL = asString(val)
	case ColInvestmentCallAudio:
		rec.InvestmentCallAudioURL = asString(val)
	case ColAccidentCallAudio:
		rec.AccidentCallAudioURL = asString(val)
	case ColFaceOpts:
		rec.FaceOpts = asString(val)
	case ColCurrentPage:
		rec.CurrentPage = asString(val)
	case ColCurrentStep:
		rec.CurrentStep = asInt(val)
	case ColCompletedModules:
		rec.CompletedModules = asStrings(val)
	case ColPreGenerationStatus:
		rec.PreGenerationStatus = Status(asString(val))
	case ColPreGenerationStarted:
		rec.PreGenerationStartedAt = asTime(val)
	case ColPreGenerationCompleted:
		rec.PreGenerationCompletedAt = asTime(val)
	case ColPreGenerationError:
		rec.PreGenerationError = asString(val)
	}
}

func asString(val any) string {
	if val == nil {
		return ""
	}
	if s, ok := val.(string); ok {
		return s
	}
	if s, ok := val.(Status); ok {
		return string(s)
	}
	return ""
}

func asInt(val any) int {
	if n, ok := val.(int); ok {
		return n
	}
	return 0
}

func asStrings(val any) []string {
	if ss, ok := val.([]string); ok {
		return append([]string(nil), ss...)
	}
	return nil
}

func asTime(val any) *time.Time {
	switch t := val.(type) {
	case nil:
		return nil
	case time.Time:
		return &t
	case *time.Time:
		return t
	default:
		return nil
	}
}
