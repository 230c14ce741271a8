package graph

import (
	"context"
	"log/slog"

	"pyintel/internal/shared/util"
)

// SetDrainLimiter throttles how often the worker drains the queue.
func (ps *ProjectState) SetDrainLimiter(l *util.Limiter) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.limiter = l
}

// Start launches the worker goroutine that drains the queue whenever entries
// are queued. Calling Start on a running project is a no-op.
func (ps *ProjectState) Start(ctx context.Context) {
	ps.mu.Lock()
	if ps.cancel != nil || ps.closed {
		ps.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	ps.cancel = cancel
	ps.done = done
	limiter := ps.limiter
	ps.mu.Unlock()

	go func() {
		defer close(done)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ps.notify:
			}
			if limiter != nil {
				if err := limiter.Wait(ctx, 1); err != nil {
					return
				}
			}
			if err := ps.AnalyzeQueuedEntries(ctx); err != nil && ctx.Err() == nil {
				slog.Warn("analysis drain failed", "session", ps.id, "error", err)
			}
		}
	}()

	// Pick up anything queued before the worker existed.
	if ps.QueueLen() > 0 {
		ps.signal()
	}
}

// Stop cancels the worker and waits for it to exit.
func (ps *ProjectState) Stop() {
	ps.mu.Lock()
	cancel, done := ps.cancel, ps.done
	ps.cancel, ps.done = nil, nil
	ps.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}
