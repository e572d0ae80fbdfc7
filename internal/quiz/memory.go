package quiz

import (
	"context"
	"sort"
	"sync"
)

// Compile-time check that MemoryRepository implements Repository.
var _ Repository = (*MemoryRepository)(nil)

// MemoryRepository is an in-memory implementation of Repository.
// Suitable for development and testing; swap for Postgres in production.
type MemoryRepository struct {
	mu      sync.RWMutex
	answers map[string]*Answer
}

// NewMemoryRepository creates a new in-memory quiz answer repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		answers: make(map[string]*Answer),
	}
}

// Save persists a submission. Creates a clone to avoid external mutations.
func (r *MemoryRepository) Save(_ context.Context, a *Answer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.answers[a.ID] = a.Clone()
	return nil
}

// ListByUser returns a user's submissions sorted by creation time.
func (r *MemoryRepository) ListByUser(_ context.Context, userID, module string) ([]*Answer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Answer
	for _, a := range r.answers {
		if a.UserID != userID {
			continue
		}
		if module != "" && a.Module != module {
			continue
		}
		out = append(out, a.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}
