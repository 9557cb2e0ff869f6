package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	logx "vellum/pkg/logx"
)

type fakeUsage struct {
	mu    sync.Mutex
	count int
}

func (f *fakeUsage) CountAIUsageSince(_ context.Context, _ string, _ time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.count, nil
}

func (f *fakeUsage) RecordAIUsage(_ context.Context, _ string, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count++
	return nil
}

func chatServer(t *testing.T, content string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q", got)
		}
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		if len(req.Messages) != 2 || req.Messages[0].Role != "system" {
			t.Errorf("messages = %+v", req.Messages)
		}
		resp := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": content}},
			},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func newTestService(t *testing.T, srv *httptest.Server, store UsageStore) *Service {
	t.Helper()
	return NewService(Config{
		Enabled: true,
		APIKey:  "test-key",
		BaseURL: srv.URL,
	}, store, time.UTC, logx.Nop())
}

func TestClassify(t *testing.T) {
	t.Parallel()
	content := `{"suggested_chunks":[
		{"title":"outline","description":"sketch the sections","estimated_duration_min":20},
		{"title":"draft","description":"write the body","estimated_duration_min":60}
	]}`
	srv := chatServer(t, content)
	defer srv.Close()

	store := &fakeUsage{}
	svc := newTestService(t, srv, store)

	bd, err := svc.Classify(context.Background(), "u1", Request{Description: "write an essay", SkillLevel: "beginner"})
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if len(bd.Chunks) != 2 || bd.Chunks[0].Title != "outline" || bd.Chunks[1].EstimatedMinutes != 60 {
		t.Fatalf("chunks = %+v", bd.Chunks)
	}
	if store.count != 1 {
		t.Fatalf("usage recorded %d times, want 1", store.count)
	}
}

func TestClassifyRepairsMalformedJSON(t *testing.T) {
	t.Parallel()
	// Trailing comma and unquoted key: invalid JSON a model might emit.
	content := `{"suggested_chunks":[{title:"step one","description":"do it","estimated_duration_min":30},]}`
	srv := chatServer(t, content)
	defer srv.Close()

	svc := newTestService(t, srv, &fakeUsage{})
	bd, err := svc.Classify(context.Background(), "u1", Request{Description: "fix the bug"})
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if len(bd.Chunks) != 1 || bd.Chunks[0].Title != "step one" {
		t.Fatalf("chunks = %+v", bd.Chunks)
	}
}

func TestClassifyTruncatesToFiveChunks(t *testing.T) {
	t.Parallel()
	chunks := make([]Chunk, 0, 7)
	for i := 0; i < 7; i++ {
		chunks = append(chunks, Chunk{Title: "step", EstimatedMinutes: 10})
	}
	raw, _ := json.Marshal(Breakdown{Chunks: chunks})
	srv := chatServer(t, string(raw))
	defer srv.Close()

	svc := newTestService(t, srv, &fakeUsage{})
	bd, err := svc.Classify(context.Background(), "u1", Request{Description: "big project"})
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if len(bd.Chunks) != 5 {
		t.Fatalf("got %d chunks, want 5", len(bd.Chunks))
	}
}

func TestClassifyDailyLimit(t *testing.T) {
	t.Parallel()
	srv := chatServer(t, `{"suggested_chunks":[]}`)
	defer srv.Close()

	store := &fakeUsage{count: 3}
	svc := newTestService(t, srv, store)

	_, err := svc.Classify(context.Background(), "u1", Request{Description: "anything"})
	if !errors.Is(err, ErrDailyLimit) {
		t.Fatalf("err = %v, want ErrDailyLimit", err)
	}
	if store.count != 3 {
		t.Fatalf("usage count changed to %d", store.count)
	}
}

func TestClassifyDisabled(t *testing.T) {
	t.Parallel()
	svc := NewService(Config{}, &fakeUsage{}, time.UTC, logx.Nop())
	_, err := svc.Classify(context.Background(), "u1", Request{Description: "anything"})
	if !errors.Is(err, ErrDisabled) {
		t.Fatalf("err = %v, want ErrDisabled", err)
	}
}

func TestClassifyUpstreamFailure(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	svc := newTestService(t, srv, &fakeUsage{})
	_, err := svc.Classify(context.Background(), "u1", Request{Description: "anything"})
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("err = %v, want ErrUnavailable", err)
	}
}
