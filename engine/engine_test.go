package engine

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"taskmirror/remote"
	"taskmirror/store"
)

// fakeStore is an in-memory store.Store for engine tests.
type fakeStore struct {
	mu        sync.Mutex
	tasks     []store.LocalTask
	states    map[string]*store.AccountState
	saves     int
	completed []string
	saveErr   error
}

func newFakeStore() *fakeStore {
	return &fakeStore{states: make(map[string]*store.AccountState)}
}

func (f *fakeStore) ListCandidateTasks(ctx context.Context, ownerID string) ([]store.LocalTask, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []store.LocalTask
	for _, task := range f.tasks {
		if !task.Completed {
			out = append(out, task)
		}
	}
	return out, nil
}

func (f *fakeStore) MarkTaskCompleted(ctx context.Context, taskID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.tasks {
		if f.tasks[i].ID == taskID {
			f.tasks[i].Completed = true
			f.completed = append(f.completed, taskID)
			return nil
		}
	}
	return fmt.Errorf("task %s not found", taskID)
}

func (f *fakeStore) LoadAccountState(ctx context.Context, accountID string) (*store.AccountState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if st, ok := f.states[accountID]; ok {
		return cloneState(st), nil
	}
	return store.NewAccountState(accountID, "owner-1"), nil
}

func (f *fakeStore) SaveAccountState(ctx context.Context, state *store.AccountState) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	f.states[state.AccountID] = cloneState(state)
	f.saves++
	return nil
}

func (f *fakeStore) saved(accountID string) *store.AccountState {
	f.mu.Lock()
	defer f.mu.Unlock()
	if st, ok := f.states[accountID]; ok {
		return cloneState(st)
	}
	return nil
}

func cloneState(st *store.AccountState) *store.AccountState {
	clone := *st
	clone.IDMap = make(map[string]string, len(st.IDMap))
	for k, v := range st.IDMap {
		clone.IDMap[k] = v
	}
	clone.FingerprintMap = make(map[string]string, len(st.FingerprintMap))
	for k, v := range st.FingerprintMap {
		clone.FingerprintMap[k] = v
	}
	return &clone
}

// fakeRemote is an in-memory RemoteClient. Errors can be forced per remote
// task id to exercise retry and self-healing paths.
type fakeRemote struct {
	mu          sync.Mutex
	lists       map[string]remote.TaskList
	tasks       map[string]remote.Task // remote task id -> task
	nextID      int
	pageSize    int
	listCalls   int
	createCalls int
	updateCalls int
	deleteCalls int
	createErr   error
	updateErrs  map[string]error
	deleteErrs  map[string]error
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		lists:      make(map[string]remote.TaskList),
		tasks:      make(map[string]remote.Task),
		updateErrs: make(map[string]error),
		deleteErrs: make(map[string]error),
	}
}

func (f *fakeRemote) addList(id, title string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lists[id] = remote.TaskList{ID: id, Title: title}
}

func (f *fakeRemote) addTask(listID string, task remote.Task) {
	f.mu.Lock()
	defer f.mu.Unlock()
	task.ListID = listID
	f.tasks[task.ID] = task
}

func (f *fakeRemote) task(id string) (remote.Task, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	task, ok := f.tasks[id]
	return task, ok
}

func (f *fakeRemote) removeTask(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.tasks, id)
}

func (f *fakeRemote) taskCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.tasks)
}

func (f *fakeRemote) GetTaskList(ctx context.Context, listID string) (*remote.TaskList, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	list, ok := f.lists[listID]
	if !ok {
		return nil, remote.NewAPIError("GetTaskList", 404, "list not found").WithListID(listID)
	}
	return &list, nil
}

func (f *fakeRemote) CreateTaskList(ctx context.Context, title string) (*remote.TaskList, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	list := remote.TaskList{ID: fmt.Sprintf("list-%d", f.nextID), Title: title}
	f.lists[list.ID] = list
	return &list, nil
}

func (f *fakeRemote) ListTasks(ctx context.Context, listID, pageToken string) ([]remote.Task, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++

	var all []remote.Task
	for _, task := range f.tasks {
		if task.ListID == listID {
			all = append(all, task)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })

	if f.pageSize <= 0 {
		return all, "", nil
	}
	offset := 0
	if pageToken != "" {
		offset, _ = strconv.Atoi(pageToken)
	}
	end := offset + f.pageSize
	if end >= len(all) {
		return all[offset:], "", nil
	}
	return all[offset:end], strconv.Itoa(end), nil
}

func (f *fakeRemote) CreateTask(ctx context.Context, listID string, payload remote.TaskPayload) (*remote.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.nextID++
	task := remote.Task{
		ID:     fmt.Sprintf("r-%d", f.nextID),
		ListID: listID,
		Title:  payload.Title,
		Notes:  payload.Notes,
		Status: payload.Status,
		Due:    payload.Due,
	}
	f.tasks[task.ID] = task
	return &task, nil
}

func (f *fakeRemote) UpdateTask(ctx context.Context, listID, taskID string, payload remote.TaskPayload) (*remote.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updateCalls++
	if err, ok := f.updateErrs[taskID]; ok {
		return nil, err
	}
	task, ok := f.tasks[taskID]
	if !ok {
		return nil, remote.NewAPIError("UpdateTask", 404, "task not found").WithTaskID(taskID)
	}
	task.Title = payload.Title
	task.Notes = payload.Notes
	task.Status = payload.Status
	task.Due = payload.Due
	f.tasks[taskID] = task
	return &task, nil
}

func (f *fakeRemote) DeleteTask(ctx context.Context, listID, taskID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleteCalls++
	if err, ok := f.deleteErrs[taskID]; ok {
		return err
	}
	if _, ok := f.tasks[taskID]; !ok {
		return remote.NewAPIError("DeleteTask", 404, "task not found").WithTaskID(taskID)
	}
	delete(f.tasks, taskID)
	return nil
}

// staticProvider hands out one fixed client for every account
type staticProvider struct {
	client RemoteClient
	err    error
}

func (p staticProvider) GetAuthenticatedClient(ctx context.Context, accountID string) (RemoteClient, error) {
	if p.err != nil {
		return nil, p.err
	}
	return p.client, nil
}

func newTestEngine(st store.Store, client RemoteClient) *Engine {
	return New(st, staticProvider{client: client}, Config{
		Concurrency:        2,
		MaxRetries:         2,
		BaseBackoff:        time.Millisecond,
		CheckpointInterval: 2,
		SyncDeadline:       time.Minute,
		DailyQuotaLimit:    100,
		ListTitle:          "Tasks",
	}, nil)
}

func dayAfter(days int, hour int) time.Time {
	return time.Date(2026, 3, 10+days, hour, 0, 0, 0, time.UTC)
}

func localTask(id, title string, due time.Time) store.LocalTask {
	return store.LocalTask{ID: id, Title: title, DueDate: &due}
}
