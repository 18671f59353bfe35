package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestClient(handler http.HandlerFunc) (*Client, *httptest.Server) {
	server := httptest.NewServer(handler)
	return NewClient(server.URL, "test-token"), server
}

func TestClient_AuthorizationHeader(t *testing.T) {
	var gotAuth string
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewEncoder(w).Encode([]TaskList{})
	})
	defer server.Close()

	if _, err := client.GetTaskLists(context.Background()); err != nil {
		t.Fatalf("GetTaskLists() error = %v", err)
	}
	if gotAuth != "Bearer test-token" {
		t.Errorf("Authorization = %q, want %q", gotAuth, "Bearer test-token")
	}
}

func TestClient_CreateTask(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "POST" {
			t.Errorf("method = %s, want POST", r.Method)
		}
		var payload TaskPayload
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("decode payload: %v", err)
		}
		_ = json.NewEncoder(w).Encode(Task{ID: "r1", Title: payload.Title, Status: payload.Status})
	})
	defer server.Close()

	task, err := client.CreateTask(context.Background(), "list1", TaskPayload{Title: "Call client", Status: StatusNeedsAction})
	if err != nil {
		t.Fatalf("CreateTask() error = %v", err)
	}
	if task.ID != "r1" {
		t.Errorf("task.ID = %q, want %q", task.ID, "r1")
	}
	if task.Title != "Call client" {
		t.Errorf("task.Title = %q, want %q", task.Title, "Call client")
	}
}

func TestClient_UpdateTask_NotFound(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no such task", http.StatusNotFound)
	})
	defer server.Close()

	_, err := client.UpdateTask(context.Background(), "list1", "gone", TaskPayload{Title: "x"})
	if err == nil {
		t.Fatal("UpdateTask() expected error, got nil")
	}
	if !IsNotFound(err) {
		t.Errorf("IsNotFound(%v) = false, want true", err)
	}
}

func TestClient_RateLimitRetryAfter(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "7")
		http.Error(w, "slow down", http.StatusTooManyRequests)
	})
	defer server.Close()

	_, err := client.CreateTask(context.Background(), "list1", TaskPayload{Title: "x"})
	if err == nil {
		t.Fatal("CreateTask() expected error, got nil")
	}
	if !IsRateLimited(err) {
		t.Fatalf("IsRateLimited(%v) = false, want true", err)
	}
	apiErr, ok := err.(*APIError)
	if !ok {
		t.Fatalf("error type = %T, want *APIError", err)
	}
	if apiErr.RetryAfter != 7*time.Second {
		t.Errorf("RetryAfter = %v, want %v", apiErr.RetryAfter, 7*time.Second)
	}
}

func TestClient_ListAllTasks_Pagination(t *testing.T) {
	pages := map[string]taskPage{
		"":   {Items: []Task{{ID: "a"}, {ID: "b"}}, NextPageToken: "p2"},
		"p2": {Items: []Task{{ID: "c"}}},
	}
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(pages[r.URL.Query().Get("pageToken")])
	})
	defer server.Close()

	tasks, err := client.ListAllTasks(context.Background(), "list1")
	if err != nil {
		t.Fatalf("ListAllTasks() error = %v", err)
	}
	if len(tasks) != 3 {
		t.Fatalf("len(tasks) = %d, want 3", len(tasks))
	}
	if tasks[2].ID != "c" {
		t.Errorf("tasks[2].ID = %q, want %q", tasks[2].ID, "c")
	}
}

func TestAPIError_Predicates(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		notFound    bool
		rateLimited bool
		unauth      bool
	}{
		{"not found", 404, true, false, false},
		{"rate limited", 429, false, true, false},
		{"unauthorized", 401, false, false, true},
		{"forbidden", 403, false, false, true},
		{"server error", 500, false, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewAPIError("Op", tt.status, "boom")
			if got := err.IsNotFound(); got != tt.notFound {
				t.Errorf("IsNotFound() = %v, want %v", got, tt.notFound)
			}
			if got := err.IsRateLimited(); got != tt.rateLimited {
				t.Errorf("IsRateLimited() = %v, want %v", got, tt.rateLimited)
			}
			if got := err.IsUnauthorized(); got != tt.unauth {
				t.Errorf("IsUnauthorized() = %v, want %v", got, tt.unauth)
			}
		})
	}
}
