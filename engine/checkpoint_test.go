package engine

import (
	"context"
	"errors"
	"testing"

	"taskmirror/store"
)

func TestCheckpointWriter_SavesEveryInterval(t *testing.T) {
	st := newFakeStore()
	w := NewCheckpointWriter(st, 2, nil)
	state := &syncState{st: store.NewAccountState("acct-1", "owner-1")}

	for i := 0; i < 5; i++ {
		w.OnCompletion(context.Background(), state)
	}

	if st.saves != 2 {
		t.Errorf("saves = %d, want 2 (after completions 2 and 4)", st.saves)
	}
	if w.Completed() != 5 {
		t.Errorf("Completed() = %d, want 5", w.Completed())
	}
}

func TestCheckpointWriter_SaveFailureIsSwallowed(t *testing.T) {
	st := newFakeStore()
	st.saveErr = errors.New("disk full")
	w := NewCheckpointWriter(st, 1, nil)
	state := &syncState{st: store.NewAccountState("acct-1", "owner-1")}

	// Must not panic or stop counting.
	w.OnCompletion(context.Background(), state)
	w.OnCompletion(context.Background(), state)
	if w.Completed() != 2 {
		t.Errorf("Completed() = %d, want 2", w.Completed())
	}
}

func TestCheckpointWriter_SnapshotReflectsProgress(t *testing.T) {
	st := newFakeStore()
	w := NewCheckpointWriter(st, 2, nil)
	state := &syncState{st: store.NewAccountState("acct-1", "owner-1")}

	state.recordUpsert("t-1", "r-1", "hash-1")
	w.OnCompletion(context.Background(), state)
	state.recordUpsert("t-2", "r-2", "hash-2")
	w.OnCompletion(context.Background(), state)

	saved := st.saved("acct-1")
	if saved == nil {
		t.Fatal("no state checkpointed")
	}
	if saved.IDMap["t-1"] != "r-1" || saved.IDMap["t-2"] != "r-2" {
		t.Errorf("checkpointed IDMap = %v, want both upserts recorded", saved.IDMap)
	}
	if saved.FingerprintMap["t-2"] != "hash-2" {
		t.Errorf("checkpointed FingerprintMap = %v, missing t-2", saved.FingerprintMap)
	}
}
