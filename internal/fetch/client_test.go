package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"curator/internal/media"
)

func limitsFixture(limits Limits) func(media.Source) Limits {
	return func(media.Source) Limits { return limits }
}

func newRequest(t *testing.T, url string) *http.Request {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	return req
}

func TestDoReturnsBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	client := NewClient(limitsFixture(Limits{QPS: 100, Burst: 100, MaxConcurrent: 4, MaxRetryAttempts: 1}), nil)
	payload, err := client.Do(context.Background(), media.SourceTMDB, newRequest(t, server.URL))
	if err != nil {
		t.Fatalf("Do failed: %v", err)
	}
	if string(payload) != `{"ok":true}` {
		t.Errorf("unexpected payload: %s", payload)
	}
}

func TestDoNotFoundIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := NewClient(limitsFixture(Limits{QPS: 100, MaxConcurrent: 2, MaxRetryAttempts: 4}), nil,
		WithBackoff(time.Millisecond, 5*time.Millisecond))
	_, err := client.Do(context.Background(), media.SourceTMDB, newRequest(t, server.URL))
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("not-found should fail fast, server saw %d calls", got)
	}
}

func TestDoInvalidIdentifierIsNotRetried(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer server.Close()

	client := NewClient(limitsFixture(Limits{QPS: 100, MaxConcurrent: 2, MaxRetryAttempts: 3}), nil,
		WithBackoff(time.Millisecond, 5*time.Millisecond))
	_, err := client.Do(context.Background(), media.SourceVNDB, newRequest(t, server.URL))
	if !errors.Is(err, ErrInvalidIdentifier) {
		t.Fatalf("want ErrInvalidIdentifier, got %v", err)
	}
}

func TestDoTransientFailuresExhaustRetries(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewClient(limitsFixture(Limits{QPS: 1000, Burst: 1000, MaxConcurrent: 2, MaxRetryAttempts: 3}), nil,
		WithBackoff(time.Millisecond, 5*time.Millisecond))
	_, err := client.Do(context.Background(), media.SourceAniList, newRequest(t, server.URL))
	if !errors.Is(err, ErrExhausted) {
		t.Fatalf("want ErrExhausted, got %v", err)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("want 3 attempts, server saw %d", got)
	}
}

func TestDoRecoversAfterTransientFailure(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte("recovered"))
	}))
	defer server.Close()

	client := NewClient(limitsFixture(Limits{QPS: 1000, Burst: 1000, MaxConcurrent: 2, MaxRetryAttempts: 3}), nil,
		WithBackoff(time.Millisecond, 5*time.Millisecond))
	payload, err := client.Do(context.Background(), media.SourceITunes, newRequest(t, server.URL))
	if err != nil {
		t.Fatalf("Do failed: %v", err)
	}
	if string(payload) != "recovered" {
		t.Errorf("unexpected payload: %s", payload)
	}
}

func TestDoRateLimitSpacing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	// Burst of 2 then 50/sec: 10 calls need at least 8 refill intervals.
	client := NewClient(limitsFixture(Limits{QPS: 50, Burst: 2, MaxConcurrent: 10, MaxRetryAttempts: 1}), nil)

	const callers = 10
	start := time.Now()
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := range callers {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			_, errs[slot] = client.Do(context.Background(), media.SourceTMDB, newRequest(t, server.URL))
		}(i)
	}
	wg.Wait()
	elapsed := time.Since(start)

	for i, err := range errs {
		if err != nil {
			t.Errorf("call %d dropped: %v", i, err)
		}
	}
	if want := 150 * time.Millisecond; elapsed < want {
		t.Errorf("10 calls at 50/s burst 2 finished in %v, want >= %v", elapsed, want)
	}
}

func TestDoDeadlineWhileQueued(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		w.Write([]byte("ok"))
	}))
	defer server.Close()
	defer close(release)

	client := NewClient(limitsFixture(Limits{QPS: 100, Burst: 100, MaxConcurrent: 1, MaxRetryAttempts: 1}), nil)

	// Occupy the single slot.
	go func() {
		_, _ = client.Do(context.Background(), media.SourceIGDB, newRequest(t, server.URL))
	}()
	time.Sleep(50 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := client.Do(ctx, media.SourceIGDB, newRequest(t, server.URL))
	if !errors.Is(err, ErrRateLimitTimeout) {
		t.Fatalf("want ErrRateLimitTimeout for queued caller past deadline, got %v", err)
	}
}

func TestDoQueueDepthBound(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer server.Close()
	defer close(release)

	client := NewClient(limitsFixture(Limits{QPS: 100, Burst: 100, MaxConcurrent: 1, MaxRetryAttempts: 1, QueueDepth: 1}), nil)

	for range 2 {
		go func() {
			_, _ = client.Do(context.Background(), media.SourceOpenLibrary, newRequest(t, server.URL))
		}()
	}
	time.Sleep(50 * time.Millisecond)

	_, err := client.Do(context.Background(), media.SourceOpenLibrary, newRequest(t, server.URL))
	if !errors.Is(err, ErrQueueFull) {
		t.Fatalf("want ErrQueueFull, got %v", err)
	}
}
