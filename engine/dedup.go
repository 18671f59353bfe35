package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"taskmirror/remote"
)

const (
	// dedupConcurrency bounds the delete worker pool
	dedupConcurrency = 3

	// dedupCheckpointEvery persists map removals after this many deletes
	dedupCheckpointEvery = 20
)

// backoffGate is a single shared pause shared by all sweep workers. The rate
// limit is account-wide, so a 429 from any worker pauses all of them.
type backoffGate struct {
	mu    sync.Mutex
	until time.Time
}

// Pause extends the gate's pause window
func (g *backoffGate) Pause(d time.Duration) {
	g.mu.Lock()
	defer g.mu.Unlock()
	target := time.Now().Add(d)
	if target.After(g.until) {
		g.until = target
	}
}

// Wait blocks until the pause window has elapsed or ctx is done
func (g *backoffGate) Wait(ctx context.Context) error {
	for {
		g.mu.Lock()
		remaining := time.Until(g.until)
		g.mu.Unlock()
		if remaining <= 0 {
			return nil
		}
		timer := time.NewTimer(remaining)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// StartDuplicateSweep launches the duplicate sweep as a background job and
// returns immediately. The job is pollable via DuplicateSweepStatus; a sweep
// already running for the account is rejected.
func (e *Engine) StartDuplicateSweep(ctx context.Context, accountID string) error {
	state, err := e.state(ctx, accountID)
	if err != nil {
		return err
	}

	client, err := e.clients.GetAuthenticatedClient(ctx, accountID)
	if err != nil {
		return fmt.Errorf("failed to get authenticated client: %w", err)
	}

	state.mu.Lock()
	listID := state.st.RemoteListID
	state.mu.Unlock()
	if listID == "" {
		return fmt.Errorf("account %s has no remote list to sweep", accountID)
	}

	job, ok := e.jobs.Start(accountID)
	if !ok {
		return fmt.Errorf("duplicate sweep already running for account %s", accountID)
	}

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				e.logger.Error("panic in duplicate sweep for %s: %v", accountID, r)
				job.update(func(s *DedupJobState) {
					s.Status = JobError
					s.Message = fmt.Sprintf("panic: %v", r)
					s.FinishedAt = time.Now()
				})
			}
		}()
		// Sweeps have no hard deadline but stop on process shutdown.
		e.runSweep(e.bg, client, state, listID, job)
	}()

	return nil
}

// DuplicateSweepStatus reports the current (or recently finished) sweep job
func (e *Engine) DuplicateSweepStatus(accountID string) (DedupJobState, bool) {
	return e.jobs.Get(accountID)
}

// runSweep fetches all remote items, picks a keeper per duplicated title and
// deletes the rest through a bounded pool behind one shared backoff gate.
func (e *Engine) runSweep(ctx context.Context, client RemoteClient, state *syncState, listID string, job *jobRecord) {
	// scanning phase
	all, pages, err := e.fetchAllRemote(ctx, client, listID)
	if err != nil {
		e.logger.Error("duplicate sweep scan failed: %v", err)
		job.update(func(s *DedupJobState) {
			s.Status = JobError
			s.Message = err.Error()
			s.FinishedAt = time.Now()
		})
		return
	}
	NewQuotaLedger(state, e.cfg.DailyQuotaLimit, e.now).Spend(pages)

	tracked := trackedRemoteIDs(state)
	doomed, groups := pickDuplicates(all, tracked)

	job.update(func(s *DedupJobState) {
		s.Phase = PhaseDeleting
		s.Total = len(doomed)
		s.DuplicateGroups = groups
	})
	e.logger.Info("duplicate sweep: %d groups, %d items to delete", groups, len(doomed))

	// deleting phase
	gate := &backoffGate{}
	policy := NewRetryPolicy(e.cfg.MaxRetries, e.cfg.BaseBackoff)
	jobs := make(chan remote.Task)
	var wg sync.WaitGroup
	var deletedSinceCheckpoint int
	var checkpointMu sync.Mutex

	for i := 0; i < dedupConcurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for task := range jobs {
				if err := e.deleteRemote(ctx, client, policy, gate, listID, task.ID); err != nil {
					if ctx.Err() != nil {
						return
					}
					e.logger.Warn("duplicate sweep: failed to delete %s: %v", task.ID, err)
					job.update(func(s *DedupJobState) { s.Errors++ })
					continue
				}

				NewQuotaLedger(state, e.cfg.DailyQuotaLimit, e.now).Spend(1)
				e.forgetRemote(state, task.ID)
				job.update(func(s *DedupJobState) { s.Deleted++ })

				checkpointMu.Lock()
				deletedSinceCheckpoint++
				due := deletedSinceCheckpoint%dedupCheckpointEvery == 0
				checkpointMu.Unlock()
				if due {
					if err := e.store.SaveAccountState(ctx, state.snapshot()); err != nil {
						e.logger.Warn("duplicate sweep checkpoint failed: %v", err)
					}
				}
			}
		}()
	}

feed:
	for _, task := range doomed {
		select {
		case <-ctx.Done():
			break feed
		case jobs <- task:
		}
	}
	close(jobs)
	wg.Wait()

	if err := e.store.SaveAccountState(context.WithoutCancel(ctx), state.snapshot()); err != nil {
		e.logger.Warn("duplicate sweep final save failed: %v", err)
	}

	job.update(func(s *DedupJobState) {
		s.Status = JobCompleted
		s.Phase = PhaseDone
		s.FinishedAt = time.Now()
	})
	e.logger.Info("duplicate sweep done: deleted=%d errors=%d", job.view().Deleted, job.view().Errors)
}

// deleteRemote deletes one remote task with shared-gate rate-limit handling.
// A not-found response counts as success; the item is already gone.
func (e *Engine) deleteRemote(ctx context.Context, client RemoteClient, policy RetryPolicy, gate *backoffGate, listID, taskID string) error {
	attempt := 0
	err := policy.Do(ctx, remote.IsRateLimited, func() error {
		if err := gate.Wait(ctx); err != nil {
			return err
		}
		attempt++
		err := client.DeleteTask(ctx, listID, taskID)
		if remote.IsRateLimited(err) {
			gate.Pause(policy.Backoff(attempt))
		}
		return err
	})
	if remote.IsNotFound(err) {
		return nil
	}
	return err
}

// fetchAllRemote pages through the full remote list, counting pages for
// quota accounting
func (e *Engine) fetchAllRemote(ctx context.Context, client RemoteClient, listID string) ([]remote.Task, int, error) {
	var all []remote.Task
	pages := 0
	pageToken := ""
	for {
		items, next, err := client.ListTasks(ctx, listID, pageToken)
		if err != nil {
			return nil, pages, err
		}
		pages++
		all = append(all, items...)
		if next == "" {
			return all, pages, nil
		}
		pageToken = next
	}
}

// trackedRemoteIDs snapshots the set of remote ids currently mapped locally
func trackedRemoteIDs(state *syncState) map[string]bool {
	state.mu.Lock()
	defer state.mu.Unlock()
	tracked := make(map[string]bool, len(state.st.IDMap))
	for _, remoteID := range state.st.IDMap {
		if remoteID != "" {
			tracked[remoteID] = true
		}
	}
	return tracked
}

// forgetRemote removes the local tracking entry pointing at a deleted remote id
func (e *Engine) forgetRemote(state *syncState, remoteID string) {
	state.mu.Lock()
	defer state.mu.Unlock()
	for localID, mapped := range state.st.IDMap {
		if mapped == remoteID {
			delete(state.st.IDMap, localID)
			delete(state.st.FingerprintMap, localID)
			return
		}
	}
}

// pickDuplicates groups tasks by exact title and returns every non-keeper
// member of each group of size > 1. The keeper is the member already tracked
// locally when one exists, else the most recently updated.
func pickDuplicates(tasks []remote.Task, tracked map[string]bool) (doomed []remote.Task, groups int) {
	byTitle := make(map[string][]remote.Task)
	for _, task := range tasks {
		if task.Deleted || task.Title == "" {
			continue
		}
		byTitle[task.Title] = append(byTitle[task.Title], task)
	}

	for _, group := range byTitle {
		if len(group) < 2 {
			continue
		}
		groups++

		keeper := 0
		for i, task := range group {
			if tracked[task.ID] {
				keeper = i
				break
			}
			if !tracked[group[keeper].ID] && task.UpdatedTime().After(group[keeper].UpdatedTime()) {
				keeper = i
			}
		}
		for i, task := range group {
			if i != keeper {
				doomed = append(doomed, task)
			}
		}
	}
	return doomed, groups
}
