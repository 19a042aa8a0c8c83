package middleware_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/scrumix/scrumix/internal/domain/user"
	"github.com/scrumix/scrumix/internal/middleware"
)

// mockCache is an in-memory cache.Cache for testing.
type mockCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMockCache() *mockCache {
	return &mockCache{data: make(map[string][]byte)}
}

func (m *mockCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *mockCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *mockCache) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *mockCache) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.data)
}

func makeTestHandler(counter *int, status int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		*counter++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = fmt.Fprintf(w, `{"call":%d}`, *counter)
	})
}

func postWithKey(handler http.Handler, key string, u *user.User) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/projects", http.NoBody)
	if key != "" {
		req.Header.Set("Idempotency-Key", key)
	}
	if u != nil {
		req = req.WithContext(middleware.WithUser(req.Context(), u))
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestIdempotency_NoHeader(t *testing.T) {
	counter := 0
	c := newMockCache()
	handler := middleware.Idempotency(c, time.Hour)(makeTestHandler(&counter, http.StatusCreated))

	postWithKey(handler, "", nil)
	postWithKey(handler, "", nil)

	if counter != 2 {
		t.Fatalf("expected 2 calls, got %d", counter)
	}
	if c.len() != 0 {
		t.Fatalf("expected nothing cached, got %d entries", c.len())
	}
}

func TestIdempotency_SecondRequestReplays(t *testing.T) {
	counter := 0
	c := newMockCache()
	handler := middleware.Idempotency(c, time.Hour)(makeTestHandler(&counter, http.StatusCreated))

	rec1 := postWithKey(handler, "key-2", nil)
	rec2 := postWithKey(handler, "key-2", nil)

	if counter != 1 {
		t.Fatalf("expected handler called once, got %d", counter)
	}
	if rec2.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec2.Code)
	}
	if rec2.Body.String() != rec1.Body.String() {
		t.Fatalf("replayed body = %q, want %q", rec2.Body.String(), rec1.Body.String())
	}
	if rec2.Header().Get("Idempotent-Replayed") != "true" {
		t.Error("expected Idempotent-Replayed header on replay")
	}
}

func TestIdempotency_ScopedPerUser(t *testing.T) {
	counter := 0
	c := newMockCache()
	handler := middleware.Idempotency(c, time.Hour)(makeTestHandler(&counter, http.StatusCreated))

	postWithKey(handler, "same", &user.User{ID: "alice"})
	postWithKey(handler, "same", &user.User{ID: "bob"})

	if counter != 2 {
		t.Fatalf("expected 2 calls across users, got %d", counter)
	}
}

func TestIdempotency_ErrorsNotCached(t *testing.T) {
	counter := 0
	c := newMockCache()
	handler := middleware.Idempotency(c, time.Hour)(makeTestHandler(&counter, http.StatusBadRequest))

	postWithKey(handler, "k", nil)
	postWithKey(handler, "k", nil)

	if counter != 2 {
		t.Fatalf("expected failed requests to re-run, got %d calls", counter)
	}
}

func TestIdempotency_GETIgnored(t *testing.T) {
	counter := 0
	c := newMockCache()
	handler := middleware.Idempotency(c, time.Hour)(makeTestHandler(&counter, http.StatusOK))

	for range 2 {
		req := httptest.NewRequest(http.MethodGet, "/test", http.NoBody)
		req.Header.Set("Idempotency-Key", "key-get")
		handler.ServeHTTP(httptest.NewRecorder(), req)
	}

	if counter != 2 {
		t.Fatalf("expected handler called twice, got %d", counter)
	}
}

func TestIdempotency_DifferentKeys(t *testing.T) {
	counter := 0
	c := newMockCache()
	handler := middleware.Idempotency(c, time.Hour)(makeTestHandler(&counter, http.StatusCreated))

	postWithKey(handler, "key-a", nil)
	postWithKey(handler, "key-b", nil)

	if counter != 2 {
		t.Fatalf("expected 2 calls, got %d", counter)
	}
}

func TestIdempotency_ReplayRegeneratesRequestHeaders(t *testing.T) {
	c := newMockCache()
	calls := 0
	inner := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.Header().Set("Location", "/api/v1/projects/p1")
		w.Header().Set("X-Request-ID", fmt.Sprintf("req-%d", calls))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"p1"}`))
	})
	handler := middleware.Idempotency(c, time.Hour)(inner)

	postWithKey(handler, "loc", nil)
	rec := postWithKey(handler, "loc", nil)

	if calls != 1 {
		t.Fatalf("handler ran %d times", calls)
	}
	if got := rec.Header().Get("Location"); got != "/api/v1/projects/p1" {
		t.Errorf("Location = %q", got)
	}
	if got := rec.Header().Get("X-Request-ID"); got != "" {
		t.Errorf("X-Request-ID replayed from original: %q", got)
	}
	if rec.Body.String() != `{"id":"p1"}` {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestIdempotency_ConcurrentDuplicateConflicts(t *testing.T) {
	c := newMockCache()
	release := make(chan struct{})
	started := make(chan struct{})
	inner := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		close(started)
		<-release
		w.WriteHeader(http.StatusCreated)
	})
	handler := middleware.Idempotency(c, time.Hour)(inner)

	done := make(chan *httptest.ResponseRecorder)
	go func() { done <- postWithKey(handler, "slow", nil) }()
	<-started

	dup := postWithKey(handler, "slow", nil)
	if dup.Code != http.StatusConflict {
		t.Fatalf("duplicate status = %d, want 409", dup.Code)
	}

	close(release)
	if first := <-done; first.Code != http.StatusCreated {
		t.Fatalf("first status = %d", first.Code)
	}
	if replay := postWithKey(handler, "slow", nil); replay.Code != http.StatusCreated || replay.Header().Get("Idempotent-Replayed") != "true" {
		t.Fatalf("replay = %d %v", replay.Code, replay.Header())
	}
}

func TestIdempotency_InvalidKeyBypasses(t *testing.T) {
	counter := 0
	c := newMockCache()
	handler := middleware.Idempotency(c, time.Hour)(makeTestHandler(&counter, http.StatusCreated))

	postWithKey(handler, "has space", nil)
	postWithKey(handler, "has space", nil)

	if counter != 2 || c.len() != 0 {
		t.Fatalf("calls = %d cached = %d; invalid keys must not be recorded", counter, c.len())
	}
}
