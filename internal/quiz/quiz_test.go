package quiz

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestNew(t *testing.T) {
	a, err := New("user-1", "deepfake-basics", map[string]any{"q1": "b"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if a.ID == "" {
		t.Error("expected generated ID")
	}
	if a.CreatedAt.IsZero() {
		t.Error("expected CreatedAt to be set")
	}
}

func TestNew_EmptyModule(t *testing.T) {
	if _, err := New("user-1", "", nil); !errors.Is(err, ErrEmptyModule) {
		t.Errorf("New() error = %v, want ErrEmptyModule", err)
	}
}

func TestAnswer_Clone(t *testing.T) {
	a, err := New("user-1", "deepfake-basics", map[string]any{"q1": "b"})
	if err != nil {
		t.Fatal(err)
	}

	clone := a.Clone()
	clone.Answers["q1"] = "mutated"

	if a.Answers["q1"] != "b" {
		t.Errorf("clone mutation leaked into original: %v", a.Answers["q1"])
	}
}

func TestMemoryRepository_SaveAndList(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	first, _ := New("user-1", "deepfake-basics", map[string]any{"q1": "a"})
	first.CreatedAt = time.Now().UTC().Add(-time.Minute)
	second, _ := New("user-1", "voice-cloning", map[string]any{"q1": "c"})
	other, _ := New("user-2", "deepfake-basics", map[string]any{"q1": "b"})

	for _, a := range []*Answer{second, first, other} {
		if err := repo.Save(ctx, a); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
	}

	got, err := repo.ListByUser(ctx, "user-1", "")
	if err != nil {
		t.Fatalf("ListByUser() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("ListByUser() returned %d answers, want 2", len(got))
	}
	if got[0].ID != first.ID || got[1].ID != second.ID {
		t.Errorf("answers not sorted by creation time: %v, %v", got[0].Module, got[1].Module)
	}
}

func TestMemoryRepository_ListByModule(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	basics, _ := New("user-1", "deepfake-basics", nil)
	voice, _ := New("user-1", "voice-cloning", nil)
	for _, a := range []*Answer{basics, voice} {
		if err := repo.Save(ctx, a); err != nil {
			t.Fatal(err)
		}
	}

	got, err := repo.ListByUser(ctx, "user-1", "voice-cloning")
	if err != nil {
		t.Fatalf("ListByUser() error = %v", err)
	}
	if len(got) != 1 || got[0].Module != "voice-cloning" {
		t.Errorf("ListByUser() = %v, want only voice-cloning", got)
	}
}

func TestMemoryRepository_ListUnknownUser(t *testing.T) {
	repo := NewMemoryRepository()

	got, err := repo.ListByUser(context.Background(), "missing", "")
	if err != nil {
		t.Fatalf("ListByUser() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("ListByUser() = %v, want empty", got)
	}
}
