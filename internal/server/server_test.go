package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vellum/internal/ai"
	"vellum/internal/sched"
	"vellum/internal/storage"
	logx "vellum/pkg/logx"
)

type fakeStore struct {
	tasks map[string]storage.Task
	prefs map[string]storage.Preferences
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		tasks: map[string]storage.Task{},
		prefs: map[string]storage.Preferences{},
	}
}

func (f *fakeStore) ListTasks(_ context.Context, userID string) ([]storage.Task, error) {
	var out []storage.Task
	for _, t := range f.tasks {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeStore) GetTask(_ context.Context, userID, id string) (storage.Task, error) {
	t, ok := f.tasks[id]
	if !ok || t.UserID != userID {
		return storage.Task{}, storage.ErrNotFound
	}
	return t, nil
}

func (f *fakeStore) CreateTask(_ context.Context, t storage.Task) (storage.Task, error) {
	t.ID = "task-" + t.Description
	if t.Status == "" {
		t.Status = "idle"
	}
	f.tasks[t.ID] = t
	return t, nil
}

func (f *fakeStore) UpdateTask(ctx context.Context, t storage.Task) (storage.Task, error) {
	if _, err := f.GetTask(ctx, t.UserID, t.ID); err != nil {
		return storage.Task{}, err
	}
	f.tasks[t.ID] = t
	return t, nil
}

func (f *fakeStore) DeleteTask(ctx context.Context, userID, id string) error {
	if _, err := f.GetTask(ctx, userID, id); err != nil {
		return err
	}
	delete(f.tasks, id)
	return nil
}

func (f *fakeStore) AddProgressLog(ctx context.Context, userID string, pl storage.ProgressLog) (storage.ProgressLog, error) {
	if _, err := f.GetTask(ctx, userID, pl.TaskID); err != nil {
		return storage.ProgressLog{}, err
	}
	pl.ID = "log-1"
	return pl, nil
}

func (f *fakeStore) ReplaceChunks(ctx context.Context, userID, taskID string, chunks []storage.Chunk) ([]storage.Chunk, error) {
	t, err := f.GetTask(ctx, userID, taskID)
	if err != nil {
		return nil, err
	}
	t.Chunks = chunks
	f.tasks[taskID] = t
	return chunks, nil
}

func (f *fakeStore) GetPreferences(_ context.Context, userID string) (storage.Preferences, error) {
	p, ok := f.prefs[userID]
	if !ok {
		return storage.Preferences{}, storage.ErrNotFound
	}
	return p, nil
}

func (f *fakeStore) SetPreferences(_ context.Context, p storage.Preferences) error {
	f.prefs[p.UserID] = p
	return nil
}

type fakeScheduler struct {
	res  sched.Result
	err  error
	last sched.RunOptions
}

func (f *fakeScheduler) Run(_ context.Context, _ string, opts sched.RunOptions) (sched.Result, error) {
	f.last = opts
	return f.res, f.err
}

type fakeClassifier struct {
	bd  ai.Breakdown
	err error
}

func (f *fakeClassifier) Classify(context.Context, string, ai.Request) (ai.Breakdown, error) {
	return f.bd, f.err
}

func newTestServer(t *testing.T, store TaskStore, scheduler Scheduler, classifier Classifier) *Server {
	t.Helper()
	return New(Config{
		Tokens: map[string]string{"secret-token": "u1"},
	}, store, scheduler, classifier, logx.Nop())
}

func do(t *testing.T, s *Server, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, (&url.URL{Path: path}).String(), &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestAuthMiddleware(t *testing.T) {
	s := newTestServer(t, newFakeStore(), &fakeScheduler{}, nil)

	rec := do(t, s, http.MethodGet, "/auth/profile", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, s, http.MethodGet, "/auth/profile", "wrong", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, s, http.MethodGet, "/auth/profile", "secret-token", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"userId":"u1"}`, rec.Body.String())
}

func TestHealthzNeedsNoAuth(t *testing.T) {
	s := newTestServer(t, newFakeStore(), &fakeScheduler{}, nil)
	rec := do(t, s, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestScheduleEndpoint(t *testing.T) {
	scheduler := &fakeScheduler{res: sched.Result{
		Instances: []sched.Instance{{
			TaskID: "a",
			Start:  time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC),
			End:    time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC),
		}},
		ScheduledCount: 1,
	}}
	s := newTestServer(t, newFakeStore(), scheduler, nil)

	rec := do(t, s, http.MethodPost, "/scheduler/schedule", "secret-token",
		map[string]any{"daysToSchedule": 7, "timezone": "America/New_York", "startDate": "2026-01-05"})
	require.Equal(t, http.StatusOK, rec.Code)

	var res sched.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, 1, res.ScheduledCount)
	assert.Equal(t, 7, scheduler.last.Days)
	assert.Equal(t, "America/New_York", scheduler.last.Zone)
	assert.Equal(t, time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC), scheduler.last.Now)
}

func TestScheduleValidation(t *testing.T) {
	s := newTestServer(t, newFakeStore(), &fakeScheduler{}, nil)

	rec := do(t, s, http.MethodPost, "/scheduler/schedule", "secret-token",
		map[string]any{"timezone": "Not/AZone"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, s, http.MethodPost, "/scheduler/schedule", "secret-token",
		map[string]any{"startDate": "tomorrow"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestScheduleWithoutPreferences(t *testing.T) {
	s := newTestServer(t, newFakeStore(), &fakeScheduler{err: sched.ErrNoPreferences}, nil)
	rec := do(t, s, http.MethodPost, "/scheduler/schedule", "secret-token", nil)
	assert.Equal(t, http.StatusPreconditionFailed, rec.Code)
	assert.Contains(t, rec.Body.String(), "available hours")
}

func TestTaskLifecycle(t *testing.T) {
	store := newFakeStore()
	s := newTestServer(t, store, &fakeScheduler{}, nil)

	rec := do(t, s, http.MethodPost, "/tasks", "secret-token", map[string]any{"priority": "high"})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "description is required")

	rec = do(t, s, http.MethodPost, "/tasks", "secret-token", map[string]any{
		"description":       "read a paper",
		"priority":          "high",
		"estimatedDuration": "45m",
		"chunks":            []map[string]any{{"description": "skim abstract", "estimatedDuration": "10m"}},
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var created storage.Task
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Len(t, created.Chunks, 1)

	rec = do(t, s, http.MethodGet, "/tasks", "secret-token", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var listed []storage.Task
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	require.Len(t, listed, 1)
	assert.Equal(t, "read a paper", listed[0].Description)

	rec = do(t, s, http.MethodPost, "/tasks/log/"+created.ID, "secret-token",
		map[string]any{"durationMinutes": 25})
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = do(t, s, http.MethodDelete, "/tasks/"+created.ID, "secret-token", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, s, http.MethodDelete, "/tasks/"+created.ID, "secret-token", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPreferencesEndpoints(t *testing.T) {
	s := newTestServer(t, newFakeStore(), &fakeScheduler{}, nil)

	rec := do(t, s, http.MethodGet, "/tasks/preferences", "secret-token", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"configured":false`)

	rec = do(t, s, http.MethodPost, "/tasks/preferences", "secret-token",
		map[string]any{"availableHours": map[string]any{"Funday": []string{"09:00", "17:00"}}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, s, http.MethodPost, "/tasks/preferences", "secret-token",
		map[string]any{"availableHours": map[string]any{"Monday": []string{"09:00", "17:00"}}, "autoSchedule": true})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, s, http.MethodGet, "/tasks/preferences", "secret-token", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var prefs storage.Preferences
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &prefs))
	assert.True(t, prefs.AutoSchedule)
	assert.Equal(t, [2]string{"09:00", "17:00"}, prefs.Hours["Monday"])
}

func TestClassifyEndpoint(t *testing.T) {
	store := newFakeStore()
	task, _ := store.CreateTask(context.Background(), storage.Task{UserID: "u1", Description: "learn sql"})

	classifier := &fakeClassifier{bd: ai.Breakdown{Chunks: []ai.Chunk{
		{Title: "select basics", Description: "filtering and sorting", EstimatedMinutes: 30},
	}}}
	s := newTestServer(t, store, &fakeScheduler{}, classifier)

	rec := do(t, s, http.MethodPost, "/ai/classify", "secret-token", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "task_description required")

	rec = do(t, s, http.MethodPost, "/ai/classify", "secret-token",
		map[string]any{"task_description": "learn sql", "skill_level": "beginner", "taskId": task.ID})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "select basics")

	stored, err := store.GetTask(context.Background(), "u1", task.ID)
	require.NoError(t, err)
	require.Len(t, stored.Chunks, 1)
	assert.Equal(t, "select basics: filtering and sorting", stored.Chunks[0].Description)
	assert.Equal(t, "30m", stored.Chunks[0].Estimate)
}

func TestClassifyErrorMapping(t *testing.T) {
	s := newTestServer(t, newFakeStore(), &fakeScheduler{}, &fakeClassifier{err: ai.ErrDailyLimit})
	rec := do(t, s, http.MethodPost, "/ai/classify", "secret-token",
		map[string]any{"task_description": "anything"})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	s = newTestServer(t, newFakeStore(), &fakeScheduler{}, nil)
	rec = do(t, s, http.MethodPost, "/ai/classify", "secret-token",
		map[string]any{"task_description": "anything"})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
