package engine

import "time"

// QuotaInfo is a caller-facing snapshot of the daily call budget
type QuotaInfo struct {
	Used        int       `json:"used"`
	Limit       int       `json:"limit"`
	Remaining   int       `json:"remaining"`
	PercentUsed float64   `json:"percentUsed"`
	ResetsAt    time.Time `json:"resetsAt"`
}

// QuotaLedger tracks an account's daily remote-API call budget with a UTC
// day-boundary reset. It operates on the shared account state; all methods
// take the state mutex themselves.
type QuotaLedger struct {
	state *syncState
	limit int
	now   func() time.Time
}

// NewQuotaLedger binds a ledger to shared account state
func NewQuotaLedger(state *syncState, limit int, now func() time.Time) *QuotaLedger {
	if limit <= 0 {
		limit = DailyCallLimit
	}
	if now == nil {
		now = time.Now
	}
	return &QuotaLedger{state: state, limit: limit, now: now}
}

// utcMidnight truncates t to the start of its UTC day
func utcMidnight(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// rolloverLocked resets the counter when the stored reset date is before the
// current UTC day. Caller must hold the state mutex.
func (q *QuotaLedger) rolloverLocked() {
	today := utcMidnight(q.now())
	if q.state.st.QuotaResetDate.Before(today) {
		q.state.st.QuotaUsedToday = 0
		q.state.st.QuotaResetDate = today
	}
}

// Remaining returns the unused budget for the current UTC day
func (q *QuotaLedger) Remaining() int {
	q.state.mu.Lock()
	defer q.state.mu.Unlock()
	q.rolloverLocked()
	remaining := q.limit - q.state.st.QuotaUsedToday
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Spend charges n calls against today's budget
func (q *QuotaLedger) Spend(n int) {
	q.state.mu.Lock()
	defer q.state.mu.Unlock()
	q.rolloverLocked()
	q.state.st.QuotaUsedToday += n
}

// NextReset returns the next UTC midnight, when the budget replenishes
func (q *QuotaLedger) NextReset() time.Time {
	return utcMidnight(q.now()).Add(24 * time.Hour)
}

// Snapshot builds the caller-facing quota view
func (q *QuotaLedger) Snapshot() QuotaInfo {
	q.state.mu.Lock()
	q.rolloverLocked()
	used := q.state.st.QuotaUsedToday
	q.state.mu.Unlock()

	remaining := q.limit - used
	if remaining < 0 {
		remaining = 0
	}
	return QuotaInfo{
		Used:        used,
		Limit:       q.limit,
		Remaining:   remaining,
		PercentUsed: float64(used) / float64(q.limit) * 100,
		ResetsAt:    q.NextReset(),
	}
}
