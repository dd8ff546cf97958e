package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"curator/internal/fetch"
	"curator/internal/identity"
	"curator/internal/logging"
	"curator/internal/media"
	"curator/internal/provider"
	"curator/internal/services"
	"curator/internal/store"
)

// runJob drives one claimed job through fetch, normalize, resolve, and
// write. The claim already moved it to the fetching state.
func (o *Orchestrator) runJob(ctx context.Context, job *store.Job) {
	logger := o.logger.With(
		logging.Int64(logging.FieldJobID, job.ID),
		logging.String(logging.FieldSource, string(job.TargetSource)),
		logging.String(logging.FieldIdentifier, job.TargetIdentifier),
		logging.String(logging.FieldLot, string(job.TargetLot)),
	)
	logger.Info("job started", logging.Int(logging.FieldAttempt, job.Attempt))
	started := o.clock()

	err := o.execute(ctx, job, logger)
	o.finish(ctx, job, logger, err, o.clock().Sub(started))
}

func (o *Orchestrator) execute(ctx context.Context, job *store.Job, logger *slog.Logger) error {
	adapter, err := o.registry.Lookup(job.TargetSource)
	if err != nil {
		return err
	}
	if !adapter.Supports(job.TargetLot) {
		return fmt.Errorf("%w: %s does not serve %s", provider.ErrUnsupportedLot, job.TargetSource, job.TargetLot)
	}

	raw, err := adapter.FetchRaw(ctx, job.TargetIdentifier, provider.ShapeForLot(job.TargetLot))
	if err != nil {
		return fmt.Errorf("fetch %s/%s: %w", job.TargetSource, job.TargetIdentifier, err)
	}

	if err := o.transition(ctx, job, store.JobNormalizing); err != nil {
		return err
	}
	record, err := adapter.Normalize(raw, job.TargetLot)
	if err != nil {
		return fmt.Errorf("normalize %s/%s: %w", job.TargetSource, job.TargetIdentifier, err)
	}

	if err := o.transition(ctx, job, store.JobResolving); err != nil {
		return err
	}
	internalID, err := o.resolver.Resolve(ctx, job.TargetSource, job.TargetIdentifier, job.TargetLot, identity.Hint{
		Title:       record.Title,
		PublishYear: record.PublishYear,
	})
	if err != nil {
		return fmt.Errorf("resolve %s/%s: %w", job.TargetSource, job.TargetIdentifier, err)
	}
	record.InternalID = internalID
	job.InternalID = internalID

	if err := o.transition(ctx, job, store.JobWriting); err != nil {
		return err
	}
	if err := o.store.UpsertRecord(ctx, record); err != nil {
		return fmt.Errorf("commit %s: %w", internalID, err)
	}
	return nil
}

func (o *Orchestrator) transition(ctx context.Context, job *store.Job, state store.JobState) error {
	job.State = state
	if err := o.store.UpdateJob(ctx, job); err != nil {
		return fmt.Errorf("%w: persist job state %s: %w", services.ErrUnavailable, state, err)
	}
	return nil
}

// finish records the job outcome: done, failed, or re-entry to pending with
// backoff when the failure is retryable and attempts remain.
func (o *Orchestrator) finish(ctx context.Context, job *store.Job, logger *slog.Logger, jobErr error, elapsed time.Duration) {
	// State persistence uses a fresh context so drained shutdowns still
	// record the outcome.
	persistCtx := context.WithoutCancel(ctx)

	if jobErr == nil {
		job.State = store.JobDone
		job.LastError = ""
		if err := o.store.UpdateJob(persistCtx, job); err != nil {
			logger.Error("failed to persist job completion", logging.Error(err))
		}
		logger.Info("job done",
			logging.String(logging.FieldInternalID, job.InternalID),
			logging.Duration("elapsed", elapsed),
		)
		o.complete(job.ID, job, nil)
		return
	}

	if retryable(jobErr) && job.Attempt < job.MaxAttempts {
		delay := o.backoffDelay(job.Attempt)
		job.State = store.JobPending
		job.NextRunAt = o.clock().Add(delay)
		job.LastError = jobErr.Error()
		if err := o.store.UpdateJob(persistCtx, job); err != nil {
			logger.Error("failed to requeue job", logging.Error(err))
		}
		logger.Warn("job requeued after transient failure",
			logging.Int(logging.FieldAttempt, job.Attempt),
			logging.Duration("backoff", delay),
			logging.Error(jobErr),
		)
		return
	}

	job.State = store.JobFailed
	job.LastError = jobErr.Error()
	if err := o.store.UpdateJob(persistCtx, job); err != nil {
		logger.Error("failed to persist job failure", logging.Error(err))
	}
	logger.Error("job failed",
		logging.Int(logging.FieldAttempt, job.Attempt),
		logging.Error(jobErr),
	)
	o.complete(job.ID, job, jobErr)
}

// backoffDelay grows exponentially from the configured initial delay and is
// capped at the ceiling. attempt is the attempt that just failed, starting
// at 1.
func (o *Orchestrator) backoffDelay(attempt int) time.Duration {
	delay := o.opts.BackoffInitial
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= o.opts.BackoffCeiling {
			return o.opts.BackoffCeiling
		}
	}
	if delay > o.opts.BackoffCeiling {
		return o.opts.BackoffCeiling
	}
	return delay
}

// retryable classifies a pipeline failure. Fetch exhaustion is terminal
// because the fetch client already spent the per-source retry budget;
// malformed payloads, unknown identifiers, ambiguous matches, and identity
// conflicts cannot succeed on a retry either.
func retryable(err error) bool {
	switch {
	case errors.Is(err, fetch.ErrNotFound),
		errors.Is(err, fetch.ErrInvalidIdentifier),
		errors.Is(err, fetch.ErrExhausted),
		errors.Is(err, provider.ErrMalformedPayload),
		errors.Is(err, provider.ErrUnsupportedLot),
		errors.Is(err, provider.ErrUnknownSource),
		errors.Is(err, identity.ErrAmbiguousMatch),
		errors.Is(err, store.ErrConflict):
		return false
	case errors.Is(err, fetch.ErrRateLimitTimeout),
		errors.Is(err, fetch.ErrQueueFull),
		errors.Is(err, store.ErrUnavailable):
		return true
	}
	var validation *media.ValidationError
	if errors.As(err, &validation) {
		return false
	}
	if services.Retryable(err) {
		return true
	}
	// Unclassified failures get the benefit of the doubt up to the attempt
	// ceiling.
	return true
}
