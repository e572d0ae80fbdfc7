// Package task runs fire-and-forget background work detached from the
// request lifecycle while keeping a handle for tests and shutdown.
package task

import (
	"context"
	"fmt"
	"log/slog"
)

// Handle tracks a background task started with Go.
type Handle struct {
	name string
	done chan struct{}
	err  error
}

// Go runs fn on a new goroutine with a context that survives cancellation of
// the parent. Panics are recovered and recorded so one runaway task cannot
// take the server down.
func Go(ctx context.Context, logger *slog.Logger, name string, fn func(context.Context) error) *Handle {
	h := &Handle{
		name: name,
		done: make(chan struct{}),
	}

	bgCtx := context.WithoutCancel(ctx)

	go func() {
		defer close(h.done)
		defer func() {
			if r := recover(); r != nil {
				h.err = fmt.Errorf("task %s panicked: %v", name, r)
				logger.Error("background task panicked", "task", name, "panic", r)
			}
		}()

		if err := fn(bgCtx); err != nil {
			h.err = err
			logger.Error("background task failed", "task", name, "error", err)
		}
	}()

	return h
}

// Wait blocks until the task finishes or ctx is done.
func (h *Handle) Wait(ctx context.Context) error {
	select {
	case <-h.done:
		return h.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done reports whether the task has finished.
func (h *Handle) Done() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

// Err returns the task error, if any. Only valid after Done reports true.
func (h *Handle) Err() error {
	return h.err
}
