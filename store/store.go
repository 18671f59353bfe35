// Package store provides the task record store and persisted sync account
// state consumed by the sync engine.
package store

import (
	"context"
	"time"
)

// LocalTask is a snapshot of a task record as the sync engine sees it.
// The engine treats these as read-only except for the completed flag,
// which the completion-pull operation writes back.
type LocalTask struct {
	ID          string
	Title       string
	Notes       string
	DueDate     *time.Time
	Completed   bool
	ContactID   string // optional related contact
	ContactName string // display name for the related contact, if any
	ModifiedAt  time.Time
}

// AccountState holds everything the engine persists for one connected account.
// IDMap maps local task IDs to remote task IDs; FingerprintMap maps local task
// IDs to content fingerprints. The two are always written together.
type AccountState struct {
	AccountID      string
	OwnerID        string
	RemoteListID   string
	Enabled        bool
	IDMap          map[string]string
	FingerprintMap map[string]string
	QuotaUsedToday int
	QuotaResetDate time.Time // UTC midnight granularity
	LastSyncAt     time.Time
}

// NewAccountState creates an empty state for an account
func NewAccountState(accountID, ownerID string) *AccountState {
	return &AccountState{
		AccountID:      accountID,
		OwnerID:        ownerID,
		Enabled:        true,
		IDMap:          make(map[string]string),
		FingerprintMap: make(map[string]string),
	}
}

// RemoteID returns the tracked remote ID for a local task.
// A missing or empty entry both mean "not synced"; a stale empty value must
// never be mistaken for an existing remote item.
func (s *AccountState) RemoteID(localTaskID string) (string, bool) {
	id, ok := s.IDMap[localTaskID]
	if !ok || id == "" {
		return "", false
	}
	return id, true
}

// TaskSource exposes the task records eligible for synchronization.
// Implemented by the record store; the engine only observes snapshots.
type TaskSource interface {
	// ListCandidateTasks returns open tasks with a due date for the owner,
	// including tasks embedded under contacts, each tagged with the contact
	// display name. Nested subtask trees are flattened into a single list
	// with ancestry folded into the title.
	ListCandidateTasks(ctx context.Context, ownerID string) ([]LocalTask, error)

	// MarkTaskCompleted flips a local task to completed. Used only by the
	// completion-pull operation.
	MarkTaskCompleted(ctx context.Context, taskID string) error
}

// StateStore persists sync account state between runs.
type StateStore interface {
	LoadAccountState(ctx context.Context, accountID string) (*AccountState, error)
	SaveAccountState(ctx context.Context, state *AccountState) error
}

// Store combines the two record-store roles the engine consumes.
type Store interface {
	TaskSource
	StateStore
}
