package engine

import (
	"testing"
	"time"

	"taskmirror/store"
)

func newQuotaState(used int, resetDate time.Time) *syncState {
	st := store.NewAccountState("acct-1", "owner-1")
	st.QuotaUsedToday = used
	st.QuotaResetDate = resetDate
	return &syncState{st: st}
}

func TestQuotaLedger_SpendAndRemaining(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	state := newQuotaState(0, utcMidnight(now))
	ledger := NewQuotaLedger(state, 100, func() time.Time { return now })

	if got := ledger.Remaining(); got != 100 {
		t.Fatalf("Remaining() = %d, want 100", got)
	}
	ledger.Spend(30)
	ledger.Spend(5)
	if got := ledger.Remaining(); got != 65 {
		t.Errorf("Remaining() after spend = %d, want 65", got)
	}
}

func TestQuotaLedger_RemainingNeverNegative(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	state := newQuotaState(150, utcMidnight(now))
	ledger := NewQuotaLedger(state, 100, func() time.Time { return now })

	if got := ledger.Remaining(); got != 0 {
		t.Errorf("Remaining() = %d, want 0", got)
	}
}

func TestQuotaLedger_RolloverAtUTCMidnight(t *testing.T) {
	yesterday := time.Date(2026, 3, 14, 23, 50, 0, 0, time.UTC)
	state := newQuotaState(90, utcMidnight(yesterday))

	now := yesterday
	ledger := NewQuotaLedger(state, 100, func() time.Time { return now })
	if got := ledger.Remaining(); got != 10 {
		t.Fatalf("Remaining() before midnight = %d, want 10", got)
	}

	// Cross the UTC day boundary: the counter resets in full.
	now = time.Date(2026, 3, 15, 0, 5, 0, 0, time.UTC)
	if got := ledger.Remaining(); got != 100 {
		t.Errorf("Remaining() after midnight = %d, want 100", got)
	}
	if state.st.QuotaUsedToday != 0 {
		t.Errorf("QuotaUsedToday after rollover = %d, want 0", state.st.QuotaUsedToday)
	}
	if !state.st.QuotaResetDate.Equal(utcMidnight(now)) {
		t.Errorf("QuotaResetDate = %v, want %v", state.st.QuotaResetDate, utcMidnight(now))
	}
}

func TestQuotaLedger_NextReset(t *testing.T) {
	now := time.Date(2026, 3, 15, 18, 30, 0, 0, time.UTC)
	ledger := NewQuotaLedger(newQuotaState(0, utcMidnight(now)), 100, func() time.Time { return now })

	want := time.Date(2026, 3, 16, 0, 0, 0, 0, time.UTC)
	if got := ledger.NextReset(); !got.Equal(want) {
		t.Errorf("NextReset() = %v, want %v", got, want)
	}
}

func TestQuotaLedger_Snapshot(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	state := newQuotaState(25, utcMidnight(now))
	ledger := NewQuotaLedger(state, 100, func() time.Time { return now })

	snap := ledger.Snapshot()
	if snap.Used != 25 || snap.Limit != 100 || snap.Remaining != 75 {
		t.Errorf("Snapshot() = %+v, want used=25 limit=100 remaining=75", snap)
	}
	if snap.PercentUsed != 25.0 {
		t.Errorf("PercentUsed = %v, want 25", snap.PercentUsed)
	}
	if !snap.ResetsAt.Equal(ledger.NextReset()) {
		t.Errorf("ResetsAt = %v, want %v", snap.ResetsAt, ledger.NextReset())
	}
}
