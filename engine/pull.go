package engine

import (
	"context"
	"fmt"

	"taskmirror/remote"
)

// PullResult reports a completion-pull operation
type PullResult struct {
	Updated          int `json:"updated"`
	AlreadyCompleted int `json:"alreadyCompleted"`
	NotFound         int `json:"notFound"`
}

// PullCompletions reads completion state back from the remote side: any
// tracked task completed remotely is marked completed locally. This is the
// one place the remote side is authoritative.
func (e *Engine) PullCompletions(ctx context.Context, accountID string) (*PullResult, error) {
	state, err := e.state(ctx, accountID)
	if err != nil {
		return nil, err
	}
	ledger := NewQuotaLedger(state, e.cfg.DailyQuotaLimit, e.now)

	client, err := e.clients.GetAuthenticatedClient(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to get authenticated client: %w", err)
	}

	state.mu.Lock()
	listID := state.st.RemoteListID
	ownerID := state.st.OwnerID
	idMap := make(map[string]string, len(state.st.IDMap))
	for k, v := range state.st.IDMap {
		if v != "" {
			idMap[k] = v
		}
	}
	state.mu.Unlock()

	if listID == "" || len(idMap) == 0 {
		return &PullResult{}, nil
	}

	remoteTasks, pages, err := e.fetchAllRemote(ctx, client, listID)
	if err != nil {
		return nil, fmt.Errorf("failed to list remote tasks: %w", err)
	}
	ledger.Spend(pages)

	remoteByID := make(map[string]remote.Task, len(remoteTasks))
	for _, task := range remoteTasks {
		remoteByID[task.ID] = task
	}

	// Open local tasks; anything tracked but not in this set is already
	// completed locally.
	openLocal := make(map[string]bool)
	localTasks, err := e.store.ListCandidateTasks(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list local tasks: %w", err)
	}
	for _, task := range localTasks {
		openLocal[task.ID] = true
	}

	result := &PullResult{}
	for localID, remoteID := range idMap {
		remoteTask, exists := remoteByID[remoteID]
		if !exists || remoteTask.Deleted {
			result.NotFound++
			continue
		}
		if remoteTask.Status != remote.StatusCompleted {
			continue
		}
		if !openLocal[localID] {
			result.AlreadyCompleted++
			continue
		}
		if err := e.store.MarkTaskCompleted(ctx, localID); err != nil {
			e.logger.Warn("failed to mark task %s completed: %v", localID, err)
			continue
		}
		result.Updated++
	}

	e.logger.Info("completion pull for %s: updated=%d alreadyCompleted=%d notFound=%d",
		accountID, result.Updated, result.AlreadyCompleted, result.NotFound)
	return result, nil
}
