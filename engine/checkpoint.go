package engine

import (
	"context"
	"sync"

	"taskmirror/internal/utils"
	"taskmirror/store"
)

// CheckpointWriter persists sync progress every interval completed operations
// so a crash or deadline loses at most one interval's worth of work.
// Persistence failures are logged and swallowed; the final save at run end is
// the authoritative backstop.
type CheckpointWriter struct {
	store    store.StateStore
	interval int
	logger   *utils.Logger

	mu        sync.Mutex
	completed int
}

// NewCheckpointWriter creates a writer checkpointing every interval completions
func NewCheckpointWriter(st store.StateStore, interval int, logger *utils.Logger) *CheckpointWriter {
	if interval <= 0 {
		interval = DefaultCheckpointInterval
	}
	if logger == nil {
		logger = utils.GetLogger()
	}
	return &CheckpointWriter{store: st, interval: interval, logger: logger}
}

// OnCompletion counts one finished operation and checkpoints the given state
// when the interval is due. Writes are strictly sequential relative to the
// counters they snapshot.
func (w *CheckpointWriter) OnCompletion(ctx context.Context, state *syncState) {
	w.mu.Lock()
	w.completed++
	due := w.completed%w.interval == 0
	if !due {
		w.mu.Unlock()
		return
	}

	snap := state.snapshot()
	if err := w.store.SaveAccountState(ctx, snap); err != nil {
		// A failed checkpoint must not abort the run.
		w.logger.Warn("checkpoint save failed for account %s: %v", snap.AccountID, err)
	} else {
		w.logger.Debug("checkpoint saved for account %s after %d operations", snap.AccountID, w.completed)
	}
	w.mu.Unlock()
}

// Completed returns the number of operations counted so far
func (w *CheckpointWriter) Completed() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.completed
}
