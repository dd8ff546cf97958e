package store

import (
	"context"
	"testing"
	"time"

	"curator/internal/media"
)

func TestEnqueueJobDeduplicatesActiveTarget(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	first, created, err := s.EnqueueJob(ctx, media.SourceTMDB, "603", media.LotMovie, KindOnDemand, 3)
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if !created {
		t.Fatal("first enqueue should create a job")
	}

	second, created, err := s.EnqueueJob(ctx, media.SourceTMDB, "603", media.LotMovie, KindScheduled, 3)
	if err != nil {
		t.Fatalf("second enqueue: %v", err)
	}
	if created {
		t.Error("duplicate target should not create a second job")
	}
	if second.ID != first.ID {
		t.Errorf("second job id = %d, want existing %d", second.ID, first.ID)
	}

	// A different lot for the same identifier is a distinct target.
	_, created, err = s.EnqueueJob(ctx, media.SourceTMDB, "603", media.LotShow, KindOnDemand, 3)
	if err != nil {
		t.Fatalf("enqueue other lot: %v", err)
	}
	if !created {
		t.Error("different lot should create a new job")
	}

	// Once the job is terminal the target can be enqueued again.
	first.State = JobDone
	if err := s.UpdateJob(ctx, first); err != nil {
		t.Fatalf("finish job: %v", err)
	}
	_, created, err = s.EnqueueJob(ctx, media.SourceTMDB, "603", media.LotMovie, KindOnDemand, 3)
	if err != nil {
		t.Fatalf("re-enqueue: %v", err)
	}
	if !created {
		t.Error("terminal target should allow a fresh job")
	}
}

func TestClaimNextJobOrderAndSchedule(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	early, _, err := s.EnqueueJob(ctx, media.SourceTMDB, "603", media.LotMovie, KindOnDemand, 3)
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	deferred, _, err := s.EnqueueJob(ctx, media.SourceIGDB, "1942", media.LotVideoGame, KindOnDemand, 3)
	if err != nil {
		t.Fatalf("enqueue deferred: %v", err)
	}
	deferred.NextRunAt = now.Add(time.Hour)
	if err := s.UpdateJob(ctx, deferred); err != nil {
		t.Fatalf("defer job: %v", err)
	}

	claimed, err := s.ClaimNextJob(ctx, now)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if claimed == nil || claimed.ID != early.ID {
		t.Fatalf("claimed = %+v, want job %d", claimed, early.ID)
	}
	if claimed.State != JobFetching || claimed.Attempt != 1 {
		t.Errorf("claimed state/attempt = %s/%d", claimed.State, claimed.Attempt)
	}

	// The claimed job is no longer pending and the deferred one is not due.
	next, err := s.ClaimNextJob(ctx, now)
	if err != nil {
		t.Fatalf("second claim: %v", err)
	}
	if next != nil {
		t.Errorf("second claim = %+v, want nothing runnable", next)
	}

	next, err = s.ClaimNextJob(ctx, now.Add(2*time.Hour))
	if err != nil {
		t.Fatalf("late claim: %v", err)
	}
	if next == nil || next.ID != deferred.ID {
		t.Errorf("late claim = %+v, want deferred job", next)
	}
}

func TestUpdateJobPersistsOutcome(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	job, _, err := s.EnqueueJob(ctx, media.SourceTMDB, "603", media.LotMovie, KindOnDemand, 3)
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	job.State = JobFailed
	job.Attempt = 3
	job.LastError = "fetch exhausted: 502"
	job.InternalID = "rec-1"
	if err := s.UpdateJob(ctx, job); err != nil {
		t.Fatalf("update: %v", err)
	}

	stored, err := s.JobByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("job by id: %v", err)
	}
	if stored.State != JobFailed || stored.Attempt != 3 {
		t.Errorf("state/attempt = %s/%d", stored.State, stored.Attempt)
	}
	if stored.LastError != "fetch exhausted: 502" {
		t.Errorf("last error = %q", stored.LastError)
	}
	if stored.InternalID != "rec-1" {
		t.Errorf("internal id = %q", stored.InternalID)
	}

	missing := *stored
	missing.ID = 9999
	if err := s.UpdateJob(ctx, &missing); err == nil {
		t.Error("updating a missing job should fail")
	}
}

func TestCancelPendingTargetLeavesInFlight(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if _, _, err := s.EnqueueJob(ctx, media.SourceTMDB, "603", media.LotMovie, KindOnDemand, 3); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	claimed, err := s.ClaimNextJob(ctx, time.Now().UTC())
	if err != nil || claimed == nil {
		t.Fatalf("claim: %v %v", claimed, err)
	}

	// Job is fetching, so there is nothing pending to cancel.
	removed, err := s.CancelPendingTarget(ctx, media.SourceTMDB, "603", media.LotMovie)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if len(removed) != 0 {
		t.Errorf("removed = %v, want none for in-flight job", removed)
	}

	pending, _, err := s.EnqueueJob(ctx, media.SourceVNDB, "v17", media.LotVisualNovel, KindScheduled, 3)
	if err != nil {
		t.Fatalf("enqueue pending: %v", err)
	}
	removed, err = s.CancelPendingTarget(ctx, media.SourceVNDB, "v17", media.LotVisualNovel)
	if err != nil {
		t.Fatalf("cancel pending: %v", err)
	}
	if len(removed) != 1 || removed[0] != pending.ID {
		t.Errorf("removed = %v, want [%d]", removed, pending.ID)
	}
}

func TestResetInFlightReturnsJobsToPending(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if _, _, err := s.EnqueueJob(ctx, media.SourceTMDB, "603", media.LotMovie, KindOnDemand, 3); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	claimed, err := s.ClaimNextJob(ctx, time.Now().UTC())
	if err != nil || claimed == nil {
		t.Fatalf("claim: %v %v", claimed, err)
	}

	reset, err := s.ResetInFlight(ctx)
	if err != nil {
		t.Fatalf("reset: %v", err)
	}
	if reset != 1 {
		t.Errorf("reset = %d, want 1", reset)
	}

	stored, err := s.JobByID(ctx, claimed.ID)
	if err != nil {
		t.Fatalf("job by id: %v", err)
	}
	if stored.State != JobPending {
		t.Errorf("state = %s, want pending", stored.State)
	}
	if stored.Attempt != 1 {
		t.Errorf("attempt = %d, want the spent attempt kept", stored.Attempt)
	}

	counts, err := s.CountJobs(ctx)
	if err != nil {
		t.Fatalf("counts: %v", err)
	}
	if counts[JobPending] != 1 {
		t.Errorf("pending count = %d", counts[JobPending])
	}
}

func TestListJobsFiltersByState(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	job, _, err := s.EnqueueJob(ctx, media.SourceTMDB, "603", media.LotMovie, KindOnDemand, 3)
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if _, _, err := s.EnqueueJob(ctx, media.SourceIGDB, "1942", media.LotVideoGame, KindScheduled, 3); err != nil {
		t.Fatalf("enqueue second: %v", err)
	}
	job.State = JobDone
	if err := s.UpdateJob(ctx, job); err != nil {
		t.Fatalf("finish: %v", err)
	}

	all, err := s.ListJobs(ctx)
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("all = %d, want 2", len(all))
	}

	pending, err := s.ListJobs(ctx, JobPending)
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(pending) != 1 || pending[0].TargetSource != media.SourceIGDB {
		t.Errorf("pending = %+v", pending)
	}
}
