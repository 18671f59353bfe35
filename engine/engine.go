// Package engine implements the external task synchronization engine: change
// detection, quota accounting, bounded-concurrency upserts, checkpointing and
// background maintenance against a rate-limited remote task-tracking API.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"taskmirror/internal/utils"
	"taskmirror/remote"
	"taskmirror/store"
)

const (
	// DailyCallLimit is the remote API's published daily call allowance per account
	DailyCallLimit = 5000

	// QuotaSafetyMargin is the minimum remaining budget required to start a run
	QuotaSafetyMargin = 10

	// DefaultConcurrency bounds the upsert worker pool
	DefaultConcurrency = 4

	// DefaultMaxRetries bounds rate-limit retries per operation
	DefaultMaxRetries = 3

	// DefaultBaseBackoff seeds the exponential backoff between retries
	DefaultBaseBackoff = 500 * time.Millisecond

	// DefaultCheckpointInterval is how many completed operations trigger a
	// state checkpoint during a run
	DefaultCheckpointInterval = 25

	// DefaultSyncDeadline is the wall-clock budget for a single sync run
	DefaultSyncDeadline = 4 * time.Minute
)

// Config tunes the engine. Zero values fall back to the defaults above.
type Config struct {
	Concurrency        int
	MaxRetries         int
	BaseBackoff        time.Duration
	CheckpointInterval int
	SyncDeadline       time.Duration
	DailyQuotaLimit    int
	ListTitle          string // remote list created for accounts without one
}

func (c Config) withDefaults() Config {
	if c.Concurrency <= 0 {
		c.Concurrency = DefaultConcurrency
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.BaseBackoff <= 0 {
		c.BaseBackoff = DefaultBaseBackoff
	}
	if c.CheckpointInterval <= 0 {
		c.CheckpointInterval = DefaultCheckpointInterval
	}
	if c.SyncDeadline <= 0 {
		c.SyncDeadline = DefaultSyncDeadline
	}
	if c.DailyQuotaLimit <= 0 {
		c.DailyQuotaLimit = DailyCallLimit
	}
	if c.ListTitle == "" {
		c.ListTitle = "Tasks"
	}
	return c
}

// RemoteClient is the subset of the remote API the engine drives.
// *remote.Client satisfies it; tests substitute fakes.
type RemoteClient interface {
	GetTaskList(ctx context.Context, listID string) (*remote.TaskList, error)
	CreateTaskList(ctx context.Context, title string) (*remote.TaskList, error)
	ListTasks(ctx context.Context, listID, pageToken string) ([]remote.Task, string, error)
	CreateTask(ctx context.Context, listID string, payload remote.TaskPayload) (*remote.Task, error)
	UpdateTask(ctx context.Context, listID, taskID string, payload remote.TaskPayload) (*remote.Task, error)
	DeleteTask(ctx context.Context, listID, taskID string) error
}

// ClientProvider obtains a live authenticated client for an account.
// Owned by the credential manager; a revoked refresh token surfaces as
// remote.ErrReconnectRequired and must not be retried.
type ClientProvider interface {
	GetAuthenticatedClient(ctx context.Context, accountID string) (RemoteClient, error)
}

// Engine is the top-level sync engine for all connected accounts.
type Engine struct {
	store   store.Store
	clients ClientProvider
	cfg     Config
	logger  *utils.Logger
	locks   *LockManager
	jobs    *JobTracker
	now     func() time.Time

	mu     sync.Mutex
	states map[string]*syncState

	// background job lifecycle
	bg     context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates an engine over the given record store and credential gate.
func New(st store.Store, clients ClientProvider, cfg Config, logger *utils.Logger) *Engine {
	if logger == nil {
		logger = utils.GetLogger()
	}
	bg, cancel := context.WithCancel(context.Background())
	return &Engine{
		store:   st,
		clients: clients,
		cfg:     cfg.withDefaults(),
		logger:  logger,
		locks:   NewLockManager(DefaultLockTimeout),
		jobs:    NewJobTracker(DefaultJobRetention),
		now:     time.Now,
		states:  make(map[string]*syncState),
		bg:      bg,
		cancel:  cancel,
	}
}

// Jobs exposes the background job tracker (status queries, cleanup sweeps).
func (e *Engine) Jobs() *JobTracker {
	return e.jobs
}

// CheckConnectivity probes the remote API for the account without touching
// sync state. Scheduled runs use it to skip work while offline.
func (e *Engine) CheckConnectivity(ctx context.Context, accountID string) error {
	client, err := e.clients.GetAuthenticatedClient(ctx, accountID)
	if err != nil {
		return err
	}
	p, ok := client.(interface{ Ping(context.Context) error })
	if !ok {
		return nil
	}
	return p.Ping(ctx)
}

// Shutdown cancels background jobs and waits for them up to timeout.
func (e *Engine) Shutdown(timeout time.Duration) {
	e.cancel()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(timeout):
		e.logger.Warn("background jobs did not finish within %v", timeout)
	}
}

// syncState wraps an account's in-memory sync state. The mutex guards the
// id/fingerprint maps and quota counters; sync runs and the duplicate sweep
// share one instance per account.
type syncState struct {
	mu sync.Mutex
	st *store.AccountState
}

// state returns the shared in-memory state for an account, loading it from
// the record store on first use.
func (e *Engine) state(ctx context.Context, accountID string) (*syncState, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if s, ok := e.states[accountID]; ok {
		return s, nil
	}

	loaded, err := e.store.LoadAccountState(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to load sync state for account %s: %w", accountID, err)
	}
	s := &syncState{st: loaded}
	e.states[accountID] = s
	return s, nil
}

// snapshot deep-copies the account state under the lock so checkpoints and
// final saves persist a consistent view.
func (s *syncState) snapshot() *store.AccountState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.copyLocked()
}

// copyLocked clones the state. Caller must hold s.mu.
func (s *syncState) copyLocked() *store.AccountState {
	clone := *s.st
	clone.IDMap = make(map[string]string, len(s.st.IDMap))
	for k, v := range s.st.IDMap {
		clone.IDMap[k] = v
	}
	clone.FingerprintMap = make(map[string]string, len(s.st.FingerprintMap))
	for k, v := range s.st.FingerprintMap {
		clone.FingerprintMap[k] = v
	}
	return &clone
}

// recordUpsert folds a successful upsert into both maps. The two maps always
// change together; an entry in one without the other means "needs re-sync".
func (s *syncState) recordUpsert(localTaskID, remoteID, fingerprint string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.IDMap[localTaskID] = remoteID
	s.st.FingerprintMap[localTaskID] = fingerprint
}

// forget drops a task from both maps (e.g. after a remote delete).
func (s *syncState) forget(localTaskID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.st.IDMap, localTaskID)
	delete(s.st.FingerprintMap, localTaskID)
}

// resetMaps clears all tracking so every task re-evaluates as new.
func (s *syncState) resetMaps() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.IDMap = make(map[string]string)
	s.st.FingerprintMap = make(map[string]string)
}

// ResetSyncState clears the tracking maps and zeroes today's quota usage.
// Operator escape hatch; persisted immediately.
func (e *Engine) ResetSyncState(ctx context.Context, accountID string) error {
	s, err := e.state(ctx, accountID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.st.IDMap = make(map[string]string)
	s.st.FingerprintMap = make(map[string]string)
	s.st.QuotaUsedToday = 0
	snap := s.copyLocked()
	s.mu.Unlock()

	if err := e.store.SaveAccountState(ctx, snap); err != nil {
		return fmt.Errorf("failed to persist reset state: %w", err)
	}
	e.logger.Info("sync state reset for account %s", accountID)
	return nil
}
