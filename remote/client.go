package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const (
	// DefaultBaseURL is the remote task-tracking service REST endpoint
	DefaultBaseURL = "https://tasks.example-api.com/v1"

	// StatusNeedsAction marks an open remote task
	StatusNeedsAction = "needsAction"
	// StatusCompleted marks a completed remote task
	StatusCompleted = "completed"

	// maxPageSize is the largest page the remote API will return
	maxPageSize = 100
)

// Client handles HTTP communication with the remote task-tracking REST API
type Client struct {
	baseURL    string
	apiToken   string
	httpClient *http.Client
}

// NewClient creates a new authenticated API client
func NewClient(baseURL, apiToken string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL:  baseURL,
		apiToken: apiToken,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// TaskList represents a remote task list
type TaskList struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Updated string `json:"updated,omitempty"` // RFC3339
}

// Task represents a task as stored by the remote service
type Task struct {
	ID        string `json:"id"`
	ListID    string `json:"list_id,omitempty"`
	Title     string `json:"title"`
	Notes     string `json:"notes,omitempty"`
	Status    string `json:"status"`          // needsAction or completed
	Due       string `json:"due,omitempty"`   // RFC3339
	Updated   string `json:"updated,omitempty"` // RFC3339
	Completed string `json:"completed,omitempty"`
	Deleted   bool   `json:"deleted,omitempty"`
}

// UpdatedTime parses the task's updated timestamp, zero when absent or malformed.
func (t *Task) UpdatedTime() time.Time {
	if t.Updated == "" {
		return time.Time{}
	}
	parsed, err := time.Parse(time.RFC3339, t.Updated)
	if err != nil {
		return time.Time{}
	}
	return parsed
}

// TaskPayload is the request body for creating or patching a task
type TaskPayload struct {
	Title  string `json:"title"`
	Notes  string `json:"notes,omitempty"`
	Status string `json:"status,omitempty"`
	Due    string `json:"due,omitempty"` // RFC3339
}

// CreateListRequest is the request body for creating a task list
type CreateListRequest struct {
	Title string `json:"title"`
}

// taskPage is a single page of the task listing endpoint
type taskPage struct {
	Items         []Task `json:"items"`
	NextPageToken string `json:"nextPageToken,omitempty"`
}

// doRequest performs an HTTP request with authentication
func (c *Client) doRequest(ctx context.Context, method, endpoint string, body interface{}) (*http.Response, error) {
	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.apiToken)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	return resp, nil
}

// apiError builds an APIError from a non-success response, consuming the body.
func apiError(operation string, resp *http.Response) *APIError {
	body, _ := io.ReadAll(resp.Body)
	apiErr := NewAPIError(operation, resp.StatusCode, http.StatusText(resp.StatusCode)).
		WithBody(string(body))
	if resp.StatusCode == http.StatusTooManyRequests {
		if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && secs > 0 {
			apiErr = apiErr.WithRetryAfter(time.Duration(secs) * time.Second)
		}
	}
	return apiErr
}

// GetTaskLists retrieves all task lists for the account
func (c *Client) GetTaskLists(ctx context.Context) ([]TaskList, error) {
	resp, err := c.doRequest(ctx, "GET", "/lists", nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, apiError("GetTaskLists", resp)
	}

	var lists []TaskList
	if err := json.NewDecoder(resp.Body).Decode(&lists); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return lists, nil
}

// GetTaskList retrieves a single task list by ID
func (c *Client) GetTaskList(ctx context.Context, listID string) (*TaskList, error) {
	resp, err := c.doRequest(ctx, "GET", "/lists/"+listID, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, apiError("GetTaskList", resp).WithListID(listID)
	}

	var list TaskList
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &list, nil
}

// CreateTaskList creates a new task list
func (c *Client) CreateTaskList(ctx context.Context, title string) (*TaskList, error) {
	resp, err := c.doRequest(ctx, "POST", "/lists", CreateListRequest{Title: title})
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, apiError("CreateTaskList", resp)
	}

	var list TaskList
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &list, nil
}

// ListTasks retrieves one page of tasks for a list. An empty pageToken starts
// from the beginning; the returned token is empty on the last page.
func (c *Client) ListTasks(ctx context.Context, listID, pageToken string) ([]Task, string, error) {
	endpoint := "/lists/" + listID + "/tasks?maxResults=" + strconv.Itoa(maxPageSize)
	if pageToken != "" {
		endpoint += "&pageToken=" + url.QueryEscape(pageToken)
	}

	resp, err := c.doRequest(ctx, "GET", endpoint, nil)
	if err != nil {
		return nil, "", err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, "", apiError("ListTasks", resp).WithListID(listID)
	}

	var page taskPage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, "", fmt.Errorf("failed to decode response: %w", err)
	}

	return page.Items, page.NextPageToken, nil
}

// ListAllTasks retrieves every task in a list, following pagination
func (c *Client) ListAllTasks(ctx context.Context, listID string) ([]Task, error) {
	var all []Task
	pageToken := ""
	for {
		items, next, err := c.ListTasks(ctx, listID, pageToken)
		if err != nil {
			return nil, err
		}
		all = append(all, items...)
		if next == "" {
			return all, nil
		}
		pageToken = next
	}
}

// GetTask retrieves a single task by ID
func (c *Client) GetTask(ctx context.Context, listID, taskID string) (*Task, error) {
	resp, err := c.doRequest(ctx, "GET", "/lists/"+listID+"/tasks/"+taskID, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, apiError("GetTask", resp).WithListID(listID).WithTaskID(taskID)
	}

	var task Task
	if err := json.NewDecoder(resp.Body).Decode(&task); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &task, nil
}

// CreateTask creates a new task in the given list
func (c *Client) CreateTask(ctx context.Context, listID string, payload TaskPayload) (*Task, error) {
	resp, err := c.doRequest(ctx, "POST", "/lists/"+listID+"/tasks", payload)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, apiError("CreateTask", resp).WithListID(listID)
	}

	var task Task
	if err := json.NewDecoder(resp.Body).Decode(&task); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &task, nil
}

// UpdateTask patches an existing task
func (c *Client) UpdateTask(ctx context.Context, listID, taskID string, payload TaskPayload) (*Task, error) {
	resp, err := c.doRequest(ctx, "PATCH", "/lists/"+listID+"/tasks/"+taskID, payload)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return nil, apiError("UpdateTask", resp).WithListID(listID).WithTaskID(taskID)
	}

	// 204 carries no body; return what we know
	if resp.StatusCode == http.StatusNoContent {
		return &Task{ID: taskID, ListID: listID, Title: payload.Title, Notes: payload.Notes, Status: payload.Status, Due: payload.Due}, nil
	}

	var task Task
	if err := json.NewDecoder(resp.Body).Decode(&task); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &task, nil
}

// DeleteTask deletes a task
func (c *Client) DeleteTask(ctx context.Context, listID, taskID string) error {
	resp, err := c.doRequest(ctx, "DELETE", "/lists/"+listID+"/tasks/"+taskID, nil)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return apiError("DeleteTask", resp).WithListID(listID).WithTaskID(taskID)
	}

	return nil
}

// Ping performs a lightweight reachability check against the API
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.GetTaskLists(ctx)
	return err
}
