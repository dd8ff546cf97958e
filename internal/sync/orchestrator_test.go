package sync

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	stdsync "sync"
	"testing"
	"time"

	"curator/internal/fetch"
	"curator/internal/identity"
	"curator/internal/logging"
	"curator/internal/media"
	"curator/internal/provider"
	"curator/internal/services"
	"curator/internal/store"
)

type fakeProvider struct {
	source media.Source
	lots   map[media.Lot]bool

	mu      stdsync.Mutex
	fetches int
	fetchFn func(call int, identifier string) ([]byte, error)
}

func (p *fakeProvider) Source() media.Source { return p.source }

func (p *fakeProvider) Supports(lot media.Lot) bool { return p.lots[lot] }

func (p *fakeProvider) FetchRaw(_ context.Context, identifier, _ string) ([]byte, error) {
	p.mu.Lock()
	p.fetches++
	call := p.fetches
	fn := p.fetchFn
	p.mu.Unlock()
	if fn != nil {
		return fn(call, identifier)
	}
	return []byte(identifier), nil
}

func (p *fakeProvider) Normalize(raw []byte, lot media.Lot) (*media.Record, error) {
	identifier := string(raw)
	return &media.Record{
		Lot:                lot,
		Source:             p.source,
		ExternalIdentifier: identifier,
		Title:              "Stub Title " + identifier,
		Description:        "stub description",
		PublishYear:        2001,
	}, nil
}

func (p *fakeProvider) fetchCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.fetches
}

func newTestOrchestrator(t *testing.T, providers ...provider.Provider) (*Orchestrator, *store.Store) {
	t.Helper()
	s, err := store.OpenPath(filepath.Join(t.TempDir(), "curator.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	registry := provider.NewRegistry()
	for _, p := range providers {
		registry.Register(p)
	}
	resolver := identity.NewResolver(s, identity.Options{SimilarityThreshold: 0.9}, logging.NewNop())

	o := New(s, registry, resolver, Options{
		Workers:        2,
		QueueDepth:     16,
		PollInterval:   10 * time.Millisecond,
		BackoffInitial: 10 * time.Millisecond,
		BackoffCeiling: 50 * time.Millisecond,
		ShutdownGrace:  2 * time.Second,
		MaxAttempts:    3,
	}, logging.NewNop())
	return o, s
}

func movieTarget(identifier string) Target {
	return Target{Source: media.SourceTMDB, Identifier: identifier, Lot: media.LotMovie}
}

func movieFake() *fakeProvider {
	return &fakeProvider{source: media.SourceTMDB, lots: map[media.Lot]bool{media.LotMovie: true, media.LotShow: true}}
}

func TestRefreshNowCompletesJobAndCommitsRecord(t *testing.T) {
	fake := movieFake()
	o, s := newTestOrchestrator(t, fake)
	ctx := context.Background()

	if err := o.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer o.Stop()

	job, err := o.RefreshNow(ctx, movieTarget("603"))
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if job.State != store.JobDone {
		t.Errorf("state = %s, want done", job.State)
	}
	if job.InternalID == "" {
		t.Fatal("job has no internal id")
	}

	details, err := s.MediaDetails(ctx, job.InternalID)
	if err != nil {
		t.Fatalf("details: %v", err)
	}
	if details.Record.Title != "Stub Title 603" {
		t.Errorf("title = %q", details.Record.Title)
	}
	if len(details.Identities) != 1 {
		t.Errorf("identities = %d, want 1", len(details.Identities))
	}
}

func TestRefreshNowRepeatedResolvesToSameRecord(t *testing.T) {
	fake := movieFake()
	o, _ := newTestOrchestrator(t, fake)
	ctx := context.Background()

	if err := o.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer o.Stop()

	first, err := o.RefreshNow(ctx, movieTarget("603"))
	if err != nil {
		t.Fatalf("first refresh: %v", err)
	}
	second, err := o.RefreshNow(ctx, movieTarget("603"))
	if err != nil {
		t.Fatalf("second refresh: %v", err)
	}
	if first.InternalID != second.InternalID {
		t.Errorf("internal ids differ: %q vs %q", first.InternalID, second.InternalID)
	}
}

func TestExhaustedFetchFailsJobWithoutWrites(t *testing.T) {
	fake := movieFake()
	fake.fetchFn = func(int, string) ([]byte, error) {
		return nil, fmt.Errorf("tmdb: %w after 3 attempts", fetch.ErrExhausted)
	}
	o, s := newTestOrchestrator(t, fake)
	ctx := context.Background()

	if err := o.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer o.Stop()

	job, err := o.RefreshNow(ctx, movieTarget("603"))
	if !errors.Is(err, fetch.ErrExhausted) {
		t.Fatalf("err = %v, want ErrExhausted", err)
	}
	if job.State != store.JobFailed {
		t.Errorf("state = %s, want failed", job.State)
	}
	if job.LastError == "" {
		t.Error("last error not recorded")
	}
	if fake.fetchCount() != 1 {
		t.Errorf("fetches = %d, want 1 (retry budget lives in the fetch client)", fake.fetchCount())
	}

	// Nothing reached the canonical store.
	if _, err := s.FindProviderIdentity(ctx, media.SourceTMDB, "603", media.LotMovie); !errors.Is(err, identity.ErrNoIdentity) {
		t.Errorf("identity lookup err = %v, want ErrNoIdentity", err)
	}
}

func TestTransientFailureRetriesUntilSuccess(t *testing.T) {
	fake := movieFake()
	fake.fetchFn = func(call int, identifier string) ([]byte, error) {
		if call == 1 {
			return nil, services.Wrap(services.ErrUnavailable, "tmdb", "fetch", "connection reset", nil)
		}
		return []byte(identifier), nil
	}
	o, _ := newTestOrchestrator(t, fake)
	ctx := context.Background()

	if err := o.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer o.Stop()

	job, err := o.RefreshNow(ctx, movieTarget("603"))
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if job.State != store.JobDone {
		t.Errorf("state = %s, want done", job.State)
	}
	if job.Attempt != 2 {
		t.Errorf("attempt = %d, want 2", job.Attempt)
	}
}

func TestTransientFailuresExhaustAttemptCeiling(t *testing.T) {
	fake := movieFake()
	fake.fetchFn = func(int, string) ([]byte, error) {
		return nil, services.Wrap(services.ErrUnavailable, "tmdb", "fetch", "connection reset", nil)
	}
	o, _ := newTestOrchestrator(t, fake)
	ctx := context.Background()

	if err := o.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer o.Stop()

	job, err := o.RefreshNow(ctx, movieTarget("603"))
	if !errors.Is(err, services.ErrUnavailable) {
		t.Fatalf("err = %v, want ErrUnavailable", err)
	}
	if job.State != store.JobFailed {
		t.Errorf("state = %s, want failed", job.State)
	}
	if job.Attempt != 3 {
		t.Errorf("attempt = %d, want the full ceiling of 3", job.Attempt)
	}
	if fake.fetchCount() != 3 {
		t.Errorf("fetches = %d, want 3", fake.fetchCount())
	}
}

func TestRefreshNowDeadlineLeavesJobRunning(t *testing.T) {
	release := make(chan struct{})
	fake := movieFake()
	fake.fetchFn = func(_ int, identifier string) ([]byte, error) {
		<-release
		return []byte(identifier), nil
	}
	o, s := newTestOrchestrator(t, fake)
	ctx := context.Background()

	if err := o.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer o.Stop()

	waitCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	job, err := o.RefreshNow(waitCtx, movieTarget("603"))
	if !errors.Is(err, services.ErrTimeout) {
		t.Fatalf("err = %v, want ErrTimeout", err)
	}
	if job == nil {
		t.Fatal("timed-out refresh should still report the job")
	}

	// The job keeps running and completes after the caller gave up.
	close(release)
	deadline := time.Now().Add(2 * time.Second)
	for {
		stored, err := s.JobByID(ctx, job.ID)
		if err != nil {
			t.Fatalf("job by id: %v", err)
		}
		if stored.State == store.JobDone {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("job never completed, state = %s", stored.State)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestEnqueueRefreshDeduplicatesTarget(t *testing.T) {
	fake := movieFake()
	o, _ := newTestOrchestrator(t, fake)
	ctx := context.Background()

	// Not started: jobs stay pending so the second enqueue sees the first.
	first, err := o.EnqueueRefresh(ctx, movieTarget("603"))
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	second, err := o.EnqueueRefresh(ctx, movieTarget("603"))
	if err != nil {
		t.Fatalf("second enqueue: %v", err)
	}
	if first.ID != second.ID {
		t.Errorf("job ids differ: %d vs %d", first.ID, second.ID)
	}
}

func TestEnqueueRefreshBoundedByQueueDepth(t *testing.T) {
	fake := movieFake()
	o, _ := newTestOrchestrator(t, fake)
	o.opts.QueueDepth = 1
	ctx := context.Background()

	if _, err := o.EnqueueRefresh(ctx, movieTarget("603")); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	_, err := o.EnqueueRefresh(ctx, movieTarget("604"))
	if !errors.Is(err, ErrQueueFull) {
		t.Fatalf("err = %v, want ErrQueueFull", err)
	}
}

func TestEnqueueRefreshValidatesTarget(t *testing.T) {
	fake := movieFake()
	o, _ := newTestOrchestrator(t, fake)
	ctx := context.Background()

	cases := []struct {
		name   string
		target Target
	}{
		{"unknown source", Target{Source: "nfomatic", Identifier: "1", Lot: media.LotMovie}},
		{"missing identifier", Target{Source: media.SourceTMDB, Lot: media.LotMovie}},
		{"unknown lot", Target{Source: media.SourceTMDB, Identifier: "1", Lot: "mixtape"}},
		{"unregistered source", Target{Source: media.SourceVNDB, Identifier: "v17", Lot: media.LotVisualNovel}},
		{"unsupported lot", Target{Source: media.SourceTMDB, Identifier: "1", Lot: media.LotBook}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := o.EnqueueRefresh(ctx, tc.target); err == nil {
				t.Errorf("enqueue %s accepted", tc.target)
			}
		})
	}
}

func TestCancelPendingResolvesWaiters(t *testing.T) {
	fake := movieFake()
	o, _ := newTestOrchestrator(t, fake)
	ctx := context.Background()

	// Orchestrator not started, so the job stays pending.
	job, err := o.EnqueueRefresh(ctx, movieTarget("603"))
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	ch := o.addWaiter(job.ID)

	removed, err := o.CancelPending(ctx, movieTarget("603"))
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}

	select {
	case result := <-ch:
		if !errors.Is(result.err, ErrCanceled) {
			t.Errorf("waiter err = %v, want ErrCanceled", result.err)
		}
	case <-time.After(time.Second):
		t.Fatal("waiter never resolved")
	}
}

func TestRefreshNowRequiresRunningPool(t *testing.T) {
	fake := movieFake()
	o, s := newTestOrchestrator(t, fake)
	ctx := context.Background()

	_, err := o.RefreshNow(ctx, movieTarget("603"))
	if !errors.Is(err, ErrNotRunning) {
		t.Fatalf("err = %v, want ErrNotRunning", err)
	}

	// The refused refresh must not leave a job behind.
	jobs, err := s.ListJobs(ctx)
	if err != nil {
		t.Fatalf("list jobs: %v", err)
	}
	if len(jobs) != 0 {
		t.Errorf("jobs = %d, want none", len(jobs))
	}
}

func TestCancelPendingIgnoresClaimedJobs(t *testing.T) {
	fake := movieFake()
	o, s := newTestOrchestrator(t, fake)
	ctx := context.Background()

	job, err := o.EnqueueRefresh(ctx, movieTarget("603"))
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	ch := o.addWaiter(job.ID)

	// A worker claims the job before the cancel lands.
	claimed, err := s.ClaimNextJob(ctx, time.Now().UTC())
	if err != nil || claimed == nil || claimed.ID != job.ID {
		t.Fatalf("claim: %v %v", claimed, err)
	}

	removed, err := o.CancelPending(ctx, movieTarget("603"))
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if removed != 0 {
		t.Errorf("removed = %d, want 0 for a claimed job", removed)
	}

	// The waiter must not be told the job was canceled; it still runs.
	select {
	case result := <-ch:
		t.Fatalf("waiter resolved early with %+v", result)
	default:
	}

	claimed.State = store.JobDone
	o.complete(claimed.ID, claimed, nil)
	select {
	case result := <-ch:
		if result.err != nil || result.job == nil || result.job.State != store.JobDone {
			t.Errorf("waiter got %+v, want the real terminal outcome", result)
		}
	case <-time.After(time.Second):
		t.Fatal("waiter never received the job outcome")
	}
}

func TestScheduleRecurringSeedsKnownIdentities(t *testing.T) {
	fake := movieFake()
	o, s := newTestOrchestrator(t, fake)
	ctx := context.Background()

	if err := s.UpsertProviderIdentity(ctx, media.ProviderIdentity{
		Source:             media.SourceTMDB,
		ExternalIdentifier: "603",
		Lot:                media.LotMovie,
		InternalID:         "rec-1",
	}); err != nil {
		t.Fatalf("seed identity: %v", err)
	}

	o.sweep(ctx, []media.Source{media.SourceTMDB})

	jobs, err := s.ListJobs(ctx, store.JobPending)
	if err != nil {
		t.Fatalf("list jobs: %v", err)
	}
	if len(jobs) != 1 {
		t.Fatalf("pending jobs = %d, want 1", len(jobs))
	}
	if jobs[0].Kind != store.KindScheduled || jobs[0].TargetIdentifier != "603" {
		t.Errorf("job = %+v", jobs[0])
	}

	// A second sweep is a no-op while the job is still pending.
	o.sweep(ctx, []media.Source{media.SourceTMDB})
	jobs, err = s.ListJobs(ctx, store.JobPending)
	if err != nil {
		t.Fatalf("list jobs again: %v", err)
	}
	if len(jobs) != 1 {
		t.Errorf("pending jobs after second sweep = %d, want 1", len(jobs))
	}
}

func TestBackoffDelayGrowthAndCeiling(t *testing.T) {
	o := &Orchestrator{opts: Options{BackoffInitial: time.Second, BackoffCeiling: 5 * time.Second}}
	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{4, 5 * time.Second},
		{10, 5 * time.Second},
	}
	for _, tc := range cases {
		if got := o.backoffDelay(tc.attempt); got != tc.want {
			t.Errorf("backoffDelay(%d) = %s, want %s", tc.attempt, got, tc.want)
		}
	}
}
