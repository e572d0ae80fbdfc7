package task

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestGo_Success(t *testing.T) {
	ran := make(chan struct{})

	h := Go(context.Background(), discardLogger(), "test", func(ctx context.Context) error {
		close(ran)
		return nil
	})

	if err := h.Wait(context.Background()); err != nil {
		t.Fatalf("Wait() = %v, want nil", err)
	}

	select {
	case <-ran:
	default:
		t.Fatal("task function never ran")
	}

	if !h.Done() {
		t.Error("Done() = false after Wait returned")
	}
}

func TestGo_Error(t *testing.T) {
	wantErr := errors.New("boom")

	h := Go(context.Background(), discardLogger(), "test", func(ctx context.Context) error {
		return wantErr
	})

	if err := h.Wait(context.Background()); !errors.Is(err, wantErr) {
		t.Fatalf("Wait() = %v, want %v", err, wantErr)
	}
	if err := h.Err(); !errors.Is(err, wantErr) {
		t.Errorf("Err() = %v, want %v", err, wantErr)
	}
}

func TestGo_RecoversPanic(t *testing.T) {
	h := Go(context.Background(), discardLogger(), "panicky", func(ctx context.Context) error {
		panic("kaboom")
	})

	err := h.Wait(context.Background())
	if err == nil {
		t.Fatal("Wait() = nil, want panic error")
	}
}

func TestGo_SurvivesParentCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	h := Go(ctx, discardLogger(), "detached", func(taskCtx context.Context) error {
		cancel()
		select {
		case <-taskCtx.Done():
			return taskCtx.Err()
		case <-time.After(50 * time.Millisecond):
			return nil
		}
	})

	if err := h.Wait(context.Background()); err != nil {
		t.Fatalf("Wait() = %v, want nil after parent cancellation", err)
	}
}

func TestHandle_WaitHonorsContext(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	h := Go(context.Background(), discardLogger(), "slow", func(ctx context.Context) error {
		<-release
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if err := h.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Wait() = %v, want deadline exceeded", err)
	}
}
