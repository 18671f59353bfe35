package engine

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"taskmirror/remote"
)

// SyncOptions controls a sync run
type SyncOptions struct {
	// Force clears both tracking maps first so every eligible task is
	// re-evaluated as new
	Force bool
}

// SyncSummary is the outcome of a sync run. Quota exhaustion is a first-class
// outcome, not an error; RetryAfter carries the next budget reset when set.
type SyncSummary struct {
	Created       int       `json:"created"`
	Updated       int       `json:"updated"`
	Recreated     int       `json:"recreated"`
	Unchanged     int       `json:"unchanged"`
	Skipped       int       `json:"skipped"`
	Errors        int       `json:"errors"`
	QuotaExceeded bool      `json:"quotaExceeded"`
	RetryAfter    time.Time `json:"retryAfter,omitempty"`
	Quota         QuotaInfo `json:"quota"`
	Duration      time.Duration `json:"-"`
}

// runPhase names the orchestrator's state-machine states; used for logging
type runPhase string

const (
	phaseQuotaCheck runPhase = "quota-check"
	phaseAnalyzing  runPhase = "analyzing"
	phaseExecuting  runPhase = "executing"
	phaseFinalizing runPhase = "finalizing"
)

// StartSync runs a full synchronization for the account: quota check,
// change analysis, bounded-concurrency execution, finalization. Individual
// task failures never abort the run; only setup errors do.
func (e *Engine) StartSync(ctx context.Context, accountID string, opts SyncOptions) (*SyncSummary, error) {
	started := e.now()

	state, err := e.state(ctx, accountID)
	if err != nil {
		return nil, err
	}
	ledger := NewQuotaLedger(state, e.cfg.DailyQuotaLimit, e.now)
	summary := &SyncSummary{}

	// quota-check: refuse to start without headroom for at least one batch.
	e.logger.Debug("sync %s: %s", accountID, phaseQuotaCheck)
	if ledger.Remaining() < QuotaSafetyMargin {
		summary.QuotaExceeded = true
		summary.RetryAfter = ledger.NextReset()
		summary.Quota = ledger.Snapshot()
		e.logger.Warn("sync %s refused: daily quota exhausted, resets at %s",
			accountID, summary.RetryAfter.Format(time.RFC3339))
		return summary, nil
	}

	client, err := e.clients.GetAuthenticatedClient(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to get authenticated client: %w", err)
	}

	listID, err := e.ensureRemoteList(ctx, client, state, ledger)
	if err != nil {
		return nil, err
	}

	if opts.Force {
		state.resetMaps()
		e.logger.Info("sync %s: force requested, tracking maps cleared", accountID)
	}

	// analyzing: fingerprint and partition; updates are more urgent than
	// never-synced items, so they go first.
	e.logger.Debug("sync %s: %s", accountID, phaseAnalyzing)
	work, analysis, err := e.analyze(ctx, state)
	if err != nil {
		return nil, err
	}
	summary.Unchanged = analysis.unchanged
	summary.Skipped = analysis.skipped

	// executing
	e.logger.Debug("sync %s: %s (%d tasks)", accountID, phaseExecuting, len(work))
	checkpoints := NewCheckpointWriter(e.store, e.cfg.CheckpointInterval, e.logger)
	var tallyMu sync.Mutex
	executor := NewUpsertExecutor(client, listID, e.cfg, e.logger, func(o UpsertOutcome) {
		if o.Success() {
			// Record before anything else can interrupt the batch, so a
			// checkpoint or final save reflects the completed call.
			state.recordUpsert(o.LocalTaskID, o.RemoteID, o.Fingerprint)
			ledger.Spend(1)
		}
		tally(&tallyMu, summary, o)
		checkpoints.OnCompletion(ctx, state)
	})

	deadline := e.now().Add(e.cfg.SyncDeadline)
	summary.Skipped += executor.Run(ctx, work, deadline, func() bool {
		return ledger.Remaining() > 0
	})

	// finalizing: the final save is the backstop for swallowed checkpoints.
	e.logger.Debug("sync %s: %s", accountID, phaseFinalizing)
	state.mu.Lock()
	state.st.LastSyncAt = e.now()
	snap := state.copyLocked()
	state.mu.Unlock()
	if err := e.store.SaveAccountState(ctx, snap); err != nil {
		return summary, fmt.Errorf("failed to persist sync state: %w", err)
	}

	summary.Quota = ledger.Snapshot()
	summary.Duration = e.now().Sub(started)
	e.logger.Info("sync %s done: created=%d updated=%d recreated=%d unchanged=%d skipped=%d errors=%d",
		accountID, summary.Created, summary.Updated, summary.Recreated,
		summary.Unchanged, summary.Skipped, summary.Errors)
	return summary, nil
}

// tally folds an outcome into the summary counters. Called from worker
// goroutines, so the run-local mutex guards the summary.
func tally(mu *sync.Mutex, summary *SyncSummary, o UpsertOutcome) {
	mu.Lock()
	defer mu.Unlock()
	switch o.Kind {
	case OutcomeCreated:
		summary.Created++
	case OutcomeUpdated:
		summary.Updated++
	case OutcomeRecreated:
		summary.Recreated++
	case OutcomeRateLimited:
		summary.Skipped++
	case OutcomeFailed:
		summary.Errors++
	}
}

// analysis carries the non-work results of the analyzing phase
type analysis struct {
	unchanged int
	skipped   int
	total     int
}

// analyze builds and classifies candidates, returning the prioritized work
// list (updates before creates).
func (e *Engine) analyze(ctx context.Context, state *syncState) ([]workItem, analysis, error) {
	state.mu.Lock()
	ownerID := state.st.OwnerID
	snap := state.copyLocked()
	state.mu.Unlock()

	tasks, err := e.store.ListCandidateTasks(ctx, ownerID)
	if err != nil {
		return nil, analysis{}, fmt.Errorf("failed to list candidate tasks: %w", err)
	}

	candidates, skipped := BuildCandidates(tasks)
	result := analysis{skipped: skipped, total: len(candidates)}

	var updates, creates []workItem
	for i := range candidates {
		c := &candidates[i]
		switch Classify(c, snap) {
		case ActionUnchanged:
			result.unchanged++
		case ActionUpdate:
			updates = append(updates, workItem{candidate: *c, action: ActionUpdate})
		case ActionCreate:
			creates = append(creates, workItem{candidate: *c, action: ActionCreate})
		}
	}

	// Stable order within each class keeps runs reproducible for tests and
	// makes deadline cutoffs deterministic.
	sort.SliceStable(updates, func(i, j int) bool {
		return updates[i].candidate.LocalTaskID < updates[j].candidate.LocalTaskID
	})
	sort.SliceStable(creates, func(i, j int) bool {
		return creates[i].candidate.LocalTaskID < creates[j].candidate.LocalTaskID
	})

	return append(updates, creates...), result, nil
}

// ensureRemoteList verifies the tracked remote list still exists, recreating
// it once when it is gone. A recreated list invalidates every tracked remote
// id, so both maps are reset.
func (e *Engine) ensureRemoteList(ctx context.Context, client RemoteClient, state *syncState, ledger *QuotaLedger) (string, error) {
	state.mu.Lock()
	listID := state.st.RemoteListID
	state.mu.Unlock()

	if listID != "" {
		_, err := client.GetTaskList(ctx, listID)
		if err == nil {
			return listID, nil
		}
		if !remote.IsNotFound(err) {
			return "", fmt.Errorf("failed to verify remote list: %w", err)
		}
		e.logger.Warn("remote list %s is gone, recreating", listID)
		state.resetMaps()
	}

	created, err := client.CreateTaskList(ctx, e.cfg.ListTitle)
	if err != nil {
		return "", fmt.Errorf("failed to create remote list: %w", err)
	}
	ledger.Spend(1)

	state.mu.Lock()
	state.st.RemoteListID = created.ID
	state.mu.Unlock()
	return created.ID, nil
}

// SyncSingleTask pushes one task after an edit. Non-blocking against
// duplicate triggers: a concurrent sync of the same task makes this a no-op.
func (e *Engine) SyncSingleTask(ctx context.Context, accountID, taskID string) (*SyncSummary, error) {
	key := LockKey(taskID, "autosync")
	if !e.locks.Acquire(key) {
		e.logger.Debug("task %s already syncing, skipping duplicate trigger", taskID)
		return &SyncSummary{Skipped: 1}, nil
	}
	defer e.locks.Release(key)

	state, err := e.state(ctx, accountID)
	if err != nil {
		return nil, err
	}
	ledger := NewQuotaLedger(state, e.cfg.DailyQuotaLimit, e.now)

	summary := &SyncSummary{}
	if ledger.Remaining() < QuotaSafetyMargin {
		summary.QuotaExceeded = true
		summary.RetryAfter = ledger.NextReset()
		summary.Quota = ledger.Snapshot()
		return summary, nil
	}

	client, err := e.clients.GetAuthenticatedClient(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to get authenticated client: %w", err)
	}
	listID, err := e.ensureRemoteList(ctx, client, state, ledger)
	if err != nil {
		return nil, err
	}

	work, analysis, err := e.analyze(ctx, state)
	if err != nil {
		return nil, err
	}
	summary.Unchanged = analysis.unchanged

	var target []workItem
	for _, item := range work {
		if item.candidate.LocalTaskID == taskID {
			target = append(target, item)
			break
		}
	}
	if len(target) == 0 {
		return summary, nil
	}

	checkpoints := NewCheckpointWriter(e.store, e.cfg.CheckpointInterval, e.logger)
	var tallyMu sync.Mutex
	executor := NewUpsertExecutor(client, listID, e.cfg, e.logger, func(o UpsertOutcome) {
		if o.Success() {
			state.recordUpsert(o.LocalTaskID, o.RemoteID, o.Fingerprint)
			ledger.Spend(1)
		}
		tally(&tallyMu, summary, o)
		checkpoints.OnCompletion(ctx, state)
	})
	executor.Run(ctx, target, e.now().Add(e.cfg.SyncDeadline), nil)

	if err := e.store.SaveAccountState(ctx, state.snapshot()); err != nil {
		return summary, fmt.Errorf("failed to persist sync state: %w", err)
	}
	summary.Quota = ledger.Snapshot()
	return summary, nil
}

// PendingInfo summarizes how much of the candidate set is in sync
type PendingInfo struct {
	Total   int `json:"total"`
	Synced  int `json:"synced"`
	Pending int `json:"pending"`
}

// SyncStatusInfo is the caller-facing account sync status
type SyncStatusInfo struct {
	Connected  bool        `json:"connected"`
	LastSyncAt time.Time   `json:"lastSyncAt,omitempty"`
	Pending    PendingInfo `json:"pending"`
	Quota      QuotaInfo   `json:"quota"`
}

// SyncStatus reports connection, pending counts and quota for an account
// without touching the remote API beyond credential resolution.
func (e *Engine) SyncStatus(ctx context.Context, accountID string) (*SyncStatusInfo, error) {
	state, err := e.state(ctx, accountID)
	if err != nil {
		return nil, err
	}
	ledger := NewQuotaLedger(state, e.cfg.DailyQuotaLimit, e.now)

	info := &SyncStatusInfo{Quota: ledger.Snapshot()}

	if _, err := e.clients.GetAuthenticatedClient(ctx, accountID); err == nil {
		info.Connected = true
	}

	state.mu.Lock()
	info.LastSyncAt = state.st.LastSyncAt
	ownerID := state.st.OwnerID
	snap := state.copyLocked()
	state.mu.Unlock()

	tasks, err := e.store.ListCandidateTasks(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list candidate tasks: %w", err)
	}
	candidates, _ := BuildCandidates(tasks)
	info.Pending.Total = len(candidates)
	for i := range candidates {
		if Classify(&candidates[i], snap) == ActionUnchanged {
			info.Pending.Synced++
		}
	}
	info.Pending.Pending = info.Pending.Total - info.Pending.Synced

	return info, nil
}
