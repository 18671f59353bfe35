package engine

import (
	"testing"
	"time"
)

func TestLockManager_AcquireRelease(t *testing.T) {
	m := NewLockManager(30 * time.Second)
	key := LockKey("t-1", "autosync")

	if !m.Acquire(key) {
		t.Fatal("first Acquire() failed")
	}
	if m.Acquire(key) {
		t.Error("second Acquire() succeeded while lock held")
	}
	if !m.Held(key) {
		t.Error("Held() = false for a live lock")
	}

	m.Release(key)
	if m.Held(key) {
		t.Error("Held() = true after Release()")
	}
	if !m.Acquire(key) {
		t.Error("Acquire() failed after Release()")
	}
}

func TestLockManager_ExpiredLockIsReclaimed(t *testing.T) {
	m := NewLockManager(30 * time.Second)
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	key := LockKey("t-1", "autosync")
	if !m.Acquire(key) {
		t.Fatal("Acquire() failed")
	}

	now = now.Add(31 * time.Second)
	if m.Held(key) {
		t.Error("Held() = true for an expired lock")
	}
	if !m.Acquire(key) {
		t.Error("Acquire() failed for an expired lock")
	}
}

func TestLockManager_IndependentKeys(t *testing.T) {
	m := NewLockManager(30 * time.Second)

	if !m.Acquire(LockKey("t-1", "autosync")) {
		t.Fatal("Acquire(t-1) failed")
	}
	if !m.Acquire(LockKey("t-2", "autosync")) {
		t.Error("Acquire(t-2) blocked by an unrelated lock")
	}
}
