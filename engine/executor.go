package engine

import (
	"context"
	"sync"
	"time"

	"taskmirror/internal/utils"
	"taskmirror/remote"
)

// OutcomeKind is the result class of a single upsert operation
type OutcomeKind int

const (
	// OutcomeCreated means a new remote task was created
	OutcomeCreated OutcomeKind = iota
	// OutcomeUpdated means the tracked remote task was patched
	OutcomeUpdated
	// OutcomeRecreated means the tracked remote task had vanished and was
	// created anew (drift self-healing)
	OutcomeRecreated
	// OutcomeRateLimited means retries were exhausted on 429 responses
	OutcomeRateLimited
	// OutcomeFailed means a non-retriable failure
	OutcomeFailed
)

// UpsertOutcome reports one processed candidate. Successful kinds carry the
// remote id and fingerprint the caller folds into the tracking maps.
type UpsertOutcome struct {
	LocalTaskID string
	RemoteID    string
	Fingerprint string
	Kind        OutcomeKind
	Err         error
}

// Success reports whether the outcome should be recorded in the maps
func (o UpsertOutcome) Success() bool {
	switch o.Kind {
	case OutcomeCreated, OutcomeUpdated, OutcomeRecreated:
		return true
	}
	return false
}

// workItem pairs a candidate with its classified action
type workItem struct {
	candidate SyncCandidate
	action    Action
}

// UpsertExecutor pushes a batch of create/update operations to the remote API
// through a fixed-size pool of workers.
type UpsertExecutor struct {
	client      RemoteClient
	listID      string
	policy      RetryPolicy
	concurrency int
	logger      *utils.Logger

	// onResult is invoked from worker goroutines for every processed item;
	// the callback owns its own synchronization.
	onResult func(UpsertOutcome)
}

// NewUpsertExecutor builds an executor for one run against one remote list
func NewUpsertExecutor(client RemoteClient, listID string, cfg Config, logger *utils.Logger, onResult func(UpsertOutcome)) *UpsertExecutor {
	if logger == nil {
		logger = utils.GetLogger()
	}
	return &UpsertExecutor{
		client:      client,
		listID:      listID,
		policy:      NewRetryPolicy(cfg.MaxRetries, cfg.BaseBackoff),
		concurrency: cfg.Concurrency,
		logger:      logger,
		onResult:    onResult,
	}
}

// Run processes the work list, stopping submission of new items once the
// deadline passes or budget() reports no headroom. In-flight items finish;
// the unsubmitted remainder is returned as skipped.
func (x *UpsertExecutor) Run(ctx context.Context, work []workItem, deadline time.Time, budget func() bool) (skipped int) {
	jobs := make(chan workItem)

	var wg sync.WaitGroup
	for i := 0; i < x.concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for item := range jobs {
				x.onResult(x.process(ctx, item))
			}
		}()
	}

	submitted := 0
feed:
	for _, item := range work {
		if !time.Now().Before(deadline) {
			x.logger.Warn("sync deadline reached, skipping %d remaining tasks", len(work)-submitted)
			break feed
		}
		if budget != nil && !budget() {
			x.logger.Warn("quota budget exhausted mid-run, skipping %d remaining tasks", len(work)-submitted)
			break feed
		}
		select {
		case <-ctx.Done():
			break feed
		case jobs <- item:
			submitted++
		}
	}
	close(jobs)
	wg.Wait()

	return len(work) - submitted
}

// process executes one create or update, with rate-limit retries and
// not-found self-healing.
func (x *UpsertExecutor) process(ctx context.Context, item workItem) UpsertOutcome {
	payload := buildPayload(item.candidate)
	outcome := UpsertOutcome{LocalTaskID: item.candidate.LocalTaskID, Fingerprint: item.candidate.ContentHash}

	if item.action == ActionUpdate {
		var updated *remote.Task
		err := x.policy.Do(ctx, remote.IsRateLimited, func() error {
			var opErr error
			updated, opErr = x.client.UpdateTask(ctx, x.listID, item.candidate.ExistingRemoteID, payload)
			return opErr
		})
		switch {
		case err == nil:
			outcome.Kind = OutcomeUpdated
			outcome.RemoteID = updated.ID
			return outcome
		case remote.IsNotFound(err):
			// The remote item vanished out-of-band; fall through to create a
			// replacement and report the drift distinctly.
			x.logger.Info("remote task %s for local %s is gone, recreating",
				item.candidate.ExistingRemoteID, item.candidate.LocalTaskID)
			return x.create(ctx, item.candidate, payload, OutcomeRecreated)
		default:
			return x.failure(item.candidate, err)
		}
	}

	return x.create(ctx, item.candidate, payload, OutcomeCreated)
}

func (x *UpsertExecutor) create(ctx context.Context, c SyncCandidate, payload remote.TaskPayload, kind OutcomeKind) UpsertOutcome {
	outcome := UpsertOutcome{LocalTaskID: c.LocalTaskID, Fingerprint: c.ContentHash}

	var created *remote.Task
	err := x.policy.Do(ctx, remote.IsRateLimited, func() error {
		var opErr error
		created, opErr = x.client.CreateTask(ctx, x.listID, payload)
		return opErr
	})
	if err != nil {
		return x.failure(c, err)
	}

	outcome.Kind = kind
	outcome.RemoteID = created.ID
	return outcome
}

// failure classifies an exhausted or non-retriable error
func (x *UpsertExecutor) failure(c SyncCandidate, err error) UpsertOutcome {
	outcome := UpsertOutcome{LocalTaskID: c.LocalTaskID, Fingerprint: c.ContentHash, Err: err}
	if remote.IsRateLimited(err) {
		outcome.Kind = OutcomeRateLimited
		x.logger.Warn("task %s deferred after rate-limit retries: %v", c.LocalTaskID, err)
	} else {
		outcome.Kind = OutcomeFailed
		x.logger.Error("task %s sync failed: %v", c.LocalTaskID, err)
	}
	return outcome
}

// buildPayload maps a candidate to its remote representation: the contact
// name is appended to the notes for context, the due date is normalized to
// end-of-day UTC, and the status derives from the completion flag.
func buildPayload(c SyncCandidate) remote.TaskPayload {
	notes := c.Notes
	if c.ContactName != "" {
		if notes != "" {
			notes += "\n\n"
		}
		notes += "Contact: " + c.ContactName
	}

	due := c.DueDate.UTC()
	due = time.Date(due.Year(), due.Month(), due.Day(), 23, 59, 59, 0, time.UTC)

	status := remote.StatusNeedsAction
	if c.Completed {
		status = remote.StatusCompleted
	}

	return remote.TaskPayload{
		Title:  c.Title,
		Notes:  notes,
		Status: status,
		Due:    due.Format(time.RFC3339),
	}
}
