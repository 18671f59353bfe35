package engine

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultJobRetention is how long finished job records stay queryable
const DefaultJobRetention = 5 * time.Minute

// JobStatus is the lifecycle state of a background job
type JobStatus string

const (
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobError     JobStatus = "error"
)

// JobPhase is the progress phase of a duplicate sweep
type JobPhase string

const (
	PhaseScanning JobPhase = "scanning"
	PhaseDeleting JobPhase = "deleting"
	PhaseDone     JobPhase = "done"
)

// DedupJobState is the pollable status of a duplicate sweep job
type DedupJobState struct {
	JobID           string    `json:"jobId"`
	Status          JobStatus `json:"status"`
	Phase           JobPhase  `json:"phase"`
	Total           int       `json:"total"`
	Deleted         int       `json:"deleted"`
	Errors          int       `json:"errors"`
	DuplicateGroups int       `json:"duplicateGroups"`
	Message         string    `json:"message,omitempty"`
	StartedAt       time.Time `json:"startedAt"`
	FinishedAt      time.Time `json:"finishedAt,omitempty"`
}

// jobRecord is the mutable tracker-side form of a job
type jobRecord struct {
	mu    sync.Mutex
	state DedupJobState
}

func (j *jobRecord) update(fn func(*DedupJobState)) {
	j.mu.Lock()
	fn(&j.state)
	j.mu.Unlock()
}

func (j *jobRecord) view() DedupJobState {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.state
}

// JobTracker holds in-process background job records keyed by account id.
// Finished records are retained for a bounded window so repeated polls
// eventually get a clean "no job" answer; expiry happens through an explicit
// Cleanup sweep rather than per-job timers.
type JobTracker struct {
	retention time.Duration
	now       func() time.Time

	mu   sync.Mutex
	jobs map[string]*jobRecord
}

// NewJobTracker creates a tracker with the given post-completion retention
func NewJobTracker(retention time.Duration) *JobTracker {
	if retention <= 0 {
		retention = DefaultJobRetention
	}
	return &JobTracker{
		retention: retention,
		now:       time.Now,
		jobs:      make(map[string]*jobRecord),
	}
}

// Start registers a new running job for the account. Returns false when a
// job is already running for it.
func (t *JobTracker) Start(accountID string) (*jobRecord, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if existing, ok := t.jobs[accountID]; ok && existing.view().Status == JobRunning {
		return nil, false
	}

	job := &jobRecord{state: DedupJobState{
		JobID:     uuid.NewString(),
		Status:    JobRunning,
		Phase:     PhaseScanning,
		StartedAt: t.now(),
	}}
	t.jobs[accountID] = job
	return job, true
}

// Get returns the job state for an account, if one is tracked
func (t *JobTracker) Get(accountID string) (DedupJobState, bool) {
	t.mu.Lock()
	job, ok := t.jobs[accountID]
	t.mu.Unlock()
	if !ok {
		return DedupJobState{}, false
	}
	return job.view(), true
}

// Cleanup removes finished job records older than the retention window and
// returns how many were reaped. Meant to run on a schedule.
func (t *JobTracker) Cleanup() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	cutoff := t.now().Add(-t.retention)
	reaped := 0
	for accountID, job := range t.jobs {
		state := job.view()
		if state.Status != JobRunning && !state.FinishedAt.IsZero() && state.FinishedAt.Before(cutoff) {
			delete(t.jobs, accountID)
			reaped++
		}
	}
	return reaped
}
