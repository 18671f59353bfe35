package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS tasks (
	id            TEXT PRIMARY KEY,
	owner_id      TEXT NOT NULL,
	parent_id     TEXT,
	title         TEXT NOT NULL,
	notes         TEXT,
	due_date      INTEGER,
	completed     INTEGER NOT NULL DEFAULT 0,
	contact_id    TEXT,
	contact_name  TEXT,
	modified_at   INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_tasks_owner ON tasks(owner_id);

CREATE TABLE IF NOT EXISTS sync_accounts (
	account_id       TEXT PRIMARY KEY,
	owner_id         TEXT NOT NULL,
	remote_list_id   TEXT,
	enabled          INTEGER NOT NULL DEFAULT 1,
	id_map           TEXT NOT NULL DEFAULT '{}',
	fingerprint_map  TEXT NOT NULL DEFAULT '{}',
	quota_used_today INTEGER NOT NULL DEFAULT 0,
	quota_reset_date INTEGER,
	last_sync_at     INTEGER
);
`

// SQLiteStore is the SQLite-backed record store
type SQLiteStore struct {
	db *sql.DB
}

// Open opens (creating if needed) the store database at path
func Open(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// taskRow mirrors a row of the tasks table during candidate building
type taskRow struct {
	LocalTask
	ParentID string
}

// ListCandidateTasks returns open, due-dated tasks for the owner with nested
// subtask ancestry flattened into the title ("Parent › Child").
func (s *SQLiteStore) ListCandidateTasks(ctx context.Context, ownerID string) ([]LocalTask, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, COALESCE(parent_id, ''), title, COALESCE(notes, ''),
		       due_date, completed, COALESCE(contact_id, ''), COALESCE(contact_name, ''), modified_at
		FROM tasks
		WHERE owner_id = ?
	`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	all := make(map[string]taskRow)
	var order []string
	for rows.Next() {
		var tr taskRow
		var due sql.NullInt64
		var completed int
		var modified int64
		if err := rows.Scan(&tr.ID, &tr.ParentID, &tr.Title, &tr.Notes, &due, &completed, &tr.ContactID, &tr.ContactName, &modified); err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		if due.Valid {
			dueTime := time.Unix(due.Int64, 0).UTC()
			tr.DueDate = &dueTime
		}
		tr.Completed = completed == 1
		tr.ModifiedAt = time.Unix(modified, 0).UTC()
		all[tr.ID] = tr
		order = append(order, tr.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read tasks: %w", err)
	}

	var candidates []LocalTask
	for _, id := range order {
		tr := all[id]
		if tr.Completed || tr.DueDate == nil {
			continue
		}
		task := tr.LocalTask
		task.Title = flattenTitle(all, tr)
		candidates = append(candidates, task)
	}

	return candidates, nil
}

// flattenTitle folds the ancestor chain into a single display title so the
// engine never has to recurse through subtask trees.
func flattenTitle(all map[string]taskRow, tr taskRow) string {
	title := tr.Title
	seen := map[string]bool{tr.ID: true}
	for parentID := tr.ParentID; parentID != ""; {
		parent, ok := all[parentID]
		if !ok || seen[parentID] {
			break
		}
		seen[parentID] = true
		title = parent.Title + " › " + title
		parentID = parent.ParentID
	}
	return title
}

// MarkTaskCompleted flips a task to completed
func (s *SQLiteStore) MarkTaskCompleted(ctx context.Context, taskID string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE tasks SET completed = 1, modified_at = ? WHERE id = ?
	`, time.Now().Unix(), taskID)
	if err != nil {
		return fmt.Errorf("failed to mark task completed: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("task not found: %s", taskID)
	}
	return nil
}

// SaveTask inserts or replaces a task record. Used by CRUD routes and tests;
// the sync engine itself never calls it.
func (s *SQLiteStore) SaveTask(ctx context.Context, ownerID, parentID string, task LocalTask) error {
	var due sql.NullInt64
	if task.DueDate != nil {
		due = sql.NullInt64{Int64: task.DueDate.Unix(), Valid: true}
	}
	completed := 0
	if task.Completed {
		completed = 1
	}
	modified := task.ModifiedAt
	if modified.IsZero() {
		modified = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO tasks (id, owner_id, parent_id, title, notes, due_date, completed, contact_id, contact_name, modified_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, task.ID, ownerID, nullString(parentID), task.Title, nullString(task.Notes), due, completed,
		nullString(task.ContactID), nullString(task.ContactName), modified.Unix())
	if err != nil {
		return fmt.Errorf("failed to save task: %w", err)
	}
	return nil
}

// LoadAccountState loads the persisted sync state for an account.
// A missing row yields a fresh empty state rather than an error.
func (s *SQLiteStore) LoadAccountState(ctx context.Context, accountID string) (*AccountState, error) {
	var (
		state     = NewAccountState(accountID, "")
		enabled   int
		idMapJSON string
		fpMapJSON string
		resetDate sql.NullInt64
		lastSync  sql.NullInt64
		listID    sql.NullString
	)

	err := s.db.QueryRowContext(ctx, `
		SELECT owner_id, remote_list_id, enabled, id_map, fingerprint_map,
		       quota_used_today, quota_reset_date, last_sync_at
		FROM sync_accounts WHERE account_id = ?
	`, accountID).Scan(&state.OwnerID, &listID, &enabled, &idMapJSON, &fpMapJSON,
		&state.QuotaUsedToday, &resetDate, &lastSync)
	if err == sql.ErrNoRows {
		return state, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load account state: %w", err)
	}

	state.Enabled = enabled == 1
	state.RemoteListID = listID.String
	if err := json.Unmarshal([]byte(idMapJSON), &state.IDMap); err != nil {
		return nil, fmt.Errorf("corrupt id map for account %s: %w", accountID, err)
	}
	if err := json.Unmarshal([]byte(fpMapJSON), &state.FingerprintMap); err != nil {
		return nil, fmt.Errorf("corrupt fingerprint map for account %s: %w", accountID, err)
	}
	if resetDate.Valid {
		state.QuotaResetDate = time.Unix(resetDate.Int64, 0).UTC()
	}
	if lastSync.Valid {
		state.LastSyncAt = time.Unix(lastSync.Int64, 0).UTC()
	}

	return state, nil
}

// SaveAccountState persists the full account state atomically
func (s *SQLiteStore) SaveAccountState(ctx context.Context, state *AccountState) error {
	idMapJSON, err := json.Marshal(state.IDMap)
	if err != nil {
		return fmt.Errorf("failed to encode id map: %w", err)
	}
	fpMapJSON, err := json.Marshal(state.FingerprintMap)
	if err != nil {
		return fmt.Errorf("failed to encode fingerprint map: %w", err)
	}

	enabled := 0
	if state.Enabled {
		enabled = 1
	}
	var resetDate, lastSync sql.NullInt64
	if !state.QuotaResetDate.IsZero() {
		resetDate = sql.NullInt64{Int64: state.QuotaResetDate.Unix(), Valid: true}
	}
	if !state.LastSyncAt.IsZero() {
		lastSync = sql.NullInt64{Int64: state.LastSyncAt.Unix(), Valid: true}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sync_accounts (account_id, owner_id, remote_list_id, enabled, id_map, fingerprint_map, quota_used_today, quota_reset_date, last_sync_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(account_id) DO UPDATE SET
			owner_id = excluded.owner_id,
			remote_list_id = excluded.remote_list_id,
			enabled = excluded.enabled,
			id_map = excluded.id_map,
			fingerprint_map = excluded.fingerprint_map,
			quota_used_today = excluded.quota_used_today,
			quota_reset_date = excluded.quota_reset_date,
			last_sync_at = excluded.last_sync_at
	`, state.AccountID, state.OwnerID, nullString(state.RemoteListID), enabled,
		string(idMapJSON), string(fpMapJSON), state.QuotaUsedToday, resetDate, lastSync)
	if err != nil {
		return fmt.Errorf("failed to save account state: %w", err)
	}
	return nil
}

// nullString converts empty strings to NULL for optional columns
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
