package engine

import (
	"fmt"
	"hash/fnv"
	"strconv"
	"time"

	"taskmirror/store"
)

// SyncCandidate is the per-run working form of a local task: the fields that
// participate in the fingerprint plus the tracking state looked up for it.
// Built at run start, consumed during the run, discarded after.
type SyncCandidate struct {
	LocalTaskID      string
	Title            string
	Notes            string
	DueDate          time.Time
	Completed        bool
	ContactName      string
	ContentHash      string
	ExistingRemoteID string
}

// Action classifies what a sync run must do with a candidate
type Action int

const (
	// ActionUnchanged means the stored fingerprint matches; excluded from the run
	ActionUnchanged Action = iota
	// ActionCreate means no valid remote id is recorded
	ActionCreate
	// ActionUpdate means a remote id exists but the content drifted
	ActionUpdate
)

func (a Action) String() string {
	switch a {
	case ActionCreate:
		return "create"
	case ActionUpdate:
		return "update"
	default:
		return "unchanged"
	}
}

// Fingerprint produces a short deterministic digest over a task's
// sync-relevant fields. Collisions only cause a missed update, never
// corruption, so a fast non-cryptographic hash is enough.
func Fingerprint(title string, due time.Time, completed bool, notes, contactLabel string) string {
	h := fnv.New64a()
	_, _ = h.Write([]byte(title))
	_, _ = h.Write([]byte{'|'})
	_, _ = h.Write([]byte(due.UTC().Format("2006-01-02")))
	_, _ = h.Write([]byte{'|'})
	_, _ = h.Write([]byte(strconv.FormatBool(completed)))
	_, _ = h.Write([]byte{'|'})
	_, _ = h.Write([]byte(notes))
	_, _ = h.Write([]byte{'|'})
	_, _ = h.Write([]byte(contactLabel))
	return fmt.Sprintf("%016x", h.Sum64())
}

// BuildCandidates converts local task snapshots into sync candidates.
// Tasks with an empty id or no usable due date are excluded and counted as
// skipped, never as errors.
func BuildCandidates(tasks []store.LocalTask) (candidates []SyncCandidate, skipped int) {
	for _, task := range tasks {
		if task.ID == "" || task.DueDate == nil || task.DueDate.IsZero() {
			skipped++
			continue
		}
		c := SyncCandidate{
			LocalTaskID: task.ID,
			Title:       task.Title,
			Notes:       task.Notes,
			DueDate:     *task.DueDate,
			Completed:   task.Completed,
			ContactName: task.ContactName,
		}
		c.ContentHash = Fingerprint(c.Title, c.DueDate, c.Completed, c.Notes, c.ContactName)
		candidates = append(candidates, c)
	}
	return candidates, skipped
}

// Classify decides create / update / unchanged for a candidate against the
// stored tracking maps. The candidate's ExistingRemoteID is filled in as a
// side effect when a valid remote id is tracked.
func Classify(c *SyncCandidate, state *store.AccountState) Action {
	remoteID, tracked := state.RemoteID(c.LocalTaskID)
	if !tracked {
		return ActionCreate
	}
	c.ExistingRemoteID = remoteID

	storedHash, ok := state.FingerprintMap[c.LocalTaskID]
	if !ok || storedHash == "" || storedHash != c.ContentHash {
		// An id without a matching fingerprint means re-sync, never skip.
		return ActionUpdate
	}
	return ActionUnchanged
}
