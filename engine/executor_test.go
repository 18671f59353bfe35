package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"
)

func executorWork(n int) []workItem {
	work := make([]workItem, 0, n)
	for i := 0; i < n; i++ {
		due := dayAfter(i+1, 9)
		work = append(work, workItem{
			candidate: SyncCandidate{
				LocalTaskID: fmt.Sprintf("t-%d", i+1),
				Title:       "Task",
				DueDate:     due,
				ContentHash: Fingerprint("Task", due, false, "", ""),
			},
			action: ActionCreate,
		})
	}
	return work
}

func TestUpsertExecutor_PastDeadlineSkipsEverything(t *testing.T) {
	client := newFakeRemote()
	cfg := Config{Concurrency: 2, MaxRetries: 1, BaseBackoff: time.Millisecond}
	x := NewUpsertExecutor(client, "list-1", cfg, nil, func(UpsertOutcome) {
		t.Error("onResult fired for unsubmitted work")
	})

	skipped := x.Run(context.Background(), executorWork(3), time.Now().Add(-time.Second), nil)
	if skipped != 3 {
		t.Errorf("skipped = %d, want 3", skipped)
	}
	if client.createCalls != 0 {
		t.Errorf("createCalls = %d, want 0", client.createCalls)
	}
}

func TestUpsertExecutor_ExhaustedBudgetStopsSubmission(t *testing.T) {
	client := newFakeRemote()
	cfg := Config{Concurrency: 2, MaxRetries: 1, BaseBackoff: time.Millisecond}
	var mu sync.Mutex
	processed := 0
	x := NewUpsertExecutor(client, "list-1", cfg, nil, func(UpsertOutcome) {
		mu.Lock()
		processed++
		mu.Unlock()
	})

	skipped := x.Run(context.Background(), executorWork(5), time.Now().Add(time.Minute), func() bool {
		return false
	})
	if skipped != 5 {
		t.Errorf("skipped = %d, want 5", skipped)
	}
	if processed != 0 {
		t.Errorf("processed = %d, want 0", processed)
	}
}

func TestUpsertExecutor_ProcessesAllWithinBudget(t *testing.T) {
	client := newFakeRemote()
	cfg := Config{Concurrency: 3, MaxRetries: 1, BaseBackoff: time.Millisecond}
	var mu sync.Mutex
	var outcomes []UpsertOutcome
	x := NewUpsertExecutor(client, "list-1", cfg, nil, func(o UpsertOutcome) {
		mu.Lock()
		outcomes = append(outcomes, o)
		mu.Unlock()
	})

	skipped := x.Run(context.Background(), executorWork(5), time.Now().Add(time.Minute), func() bool {
		return true
	})
	if skipped != 0 {
		t.Errorf("skipped = %d, want 0", skipped)
	}
	if len(outcomes) != 5 {
		t.Fatalf("got %d outcomes, want 5", len(outcomes))
	}
	for _, o := range outcomes {
		if o.Kind != OutcomeCreated || o.RemoteID == "" {
			t.Errorf("outcome = %+v, want created with a remote id", o)
		}
	}
}

func TestBuildPayload(t *testing.T) {
	due := time.Date(2026, 3, 15, 9, 30, 0, 0, time.UTC)

	t.Run("contact folded into notes", func(t *testing.T) {
		payload := buildPayload(SyncCandidate{
			Title:       "Call Bob",
			Notes:       "about the invoice",
			DueDate:     due,
			ContactName: "Bob Smith",
		})
		if !strings.Contains(payload.Notes, "about the invoice") {
			t.Errorf("notes = %q, original notes lost", payload.Notes)
		}
		if !strings.Contains(payload.Notes, "Contact: Bob Smith") {
			t.Errorf("notes = %q, contact label missing", payload.Notes)
		}
	})

	t.Run("due normalized to end of day UTC", func(t *testing.T) {
		payload := buildPayload(SyncCandidate{Title: "t", DueDate: due})
		want := time.Date(2026, 3, 15, 23, 59, 59, 0, time.UTC).Format(time.RFC3339)
		if payload.Due != want {
			t.Errorf("due = %q, want %q", payload.Due, want)
		}
	})

	t.Run("status follows completion flag", func(t *testing.T) {
		open := buildPayload(SyncCandidate{Title: "t", DueDate: due})
		done := buildPayload(SyncCandidate{Title: "t", DueDate: due, Completed: true})
		if open.Status != "needsAction" {
			t.Errorf("open status = %q, want needsAction", open.Status)
		}
		if done.Status != "completed" {
			t.Errorf("done status = %q, want completed", done.Status)
		}
	})
}
