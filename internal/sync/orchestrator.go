package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	stdsync "sync"
	"time"

	"github.com/robfig/cron/v3"

	"curator/internal/config"
	"curator/internal/identity"
	"curator/internal/logging"
	"curator/internal/media"
	"curator/internal/provider"
	"curator/internal/services"
	"curator/internal/store"
)

// Target names one provider item to synchronize.
type Target struct {
	Source     media.Source
	Identifier string
	Lot        media.Lot
}

func (t Target) String() string {
	return string(t.Source) + "/" + t.Identifier + "/" + string(t.Lot)
}

// Options tunes the orchestrator.
type Options struct {
	Workers        int
	QueueDepth     int
	PollInterval   time.Duration
	BackoffInitial time.Duration
	BackoffCeiling time.Duration
	ShutdownGrace  time.Duration
	MaxAttempts    int
}

func (o Options) normalized() Options {
	if o.Workers <= 0 {
		o.Workers = 4
	}
	if o.QueueDepth <= 0 {
		o.QueueDepth = 128
	}
	if o.PollInterval <= 0 {
		o.PollInterval = time.Second
	}
	if o.BackoffInitial <= 0 {
		o.BackoffInitial = 5 * time.Second
	}
	if o.BackoffCeiling < o.BackoffInitial {
		o.BackoffCeiling = 5 * time.Minute
	}
	if o.ShutdownGrace <= 0 {
		o.ShutdownGrace = 30 * time.Second
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 3
	}
	return o
}

// OptionsFromConfig maps the sync configuration section onto Options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Workers:        cfg.Sync.WorkerPoolSize,
		QueueDepth:     cfg.Sync.JobQueueDepth,
		PollInterval:   time.Duration(cfg.Sync.PollInterval) * time.Second,
		BackoffInitial: time.Duration(cfg.Sync.RetryBackoffInitial) * time.Second,
		BackoffCeiling: time.Duration(cfg.Sync.RetryBackoffCeiling) * time.Second,
		ShutdownGrace:  time.Duration(cfg.Sync.ShutdownGracePeriod) * time.Second,
		MaxAttempts:    cfg.Sync.DefaultRetryAttempts,
	}
}

type outcome struct {
	job *store.Job
	err error
}

// Orchestrator owns the sync job lifecycle. It is the only component that
// writes job state.
type Orchestrator struct {
	store    *store.Store
	registry *provider.Registry
	resolver *identity.Resolver
	logger   *slog.Logger
	opts     Options
	clock    func() time.Time

	cron *cron.Cron

	mu         stdsync.Mutex
	running    bool
	pollCancel context.CancelFunc
	jobCancel  context.CancelFunc
	waiters    map[int64][]chan outcome

	wg stdsync.WaitGroup
}

// New creates an orchestrator over the given store, adapter registry, and
// identity resolver.
func New(st *store.Store, registry *provider.Registry, resolver *identity.Resolver, opts Options, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		store:    st,
		registry: registry,
		resolver: resolver,
		logger:   logging.NewComponentLogger(logger, "sync"),
		opts:     opts.normalized(),
		clock:    time.Now,
		cron:     cron.New(),
		waiters:  make(map[int64][]chan outcome),
	}
}

// Start resets jobs abandoned by a previous run and launches the worker pool
// and the recurring scheduler.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.running {
		return errors.New("sync: orchestrator already running")
	}

	reset, err := o.store.ResetInFlight(ctx)
	if err != nil {
		return fmt.Errorf("reset abandoned jobs: %w", err)
	}
	if reset > 0 {
		o.logger.Info("requeued jobs abandoned by previous run", logging.Int("count", reset))
	}

	pollCtx, pollCancel := context.WithCancel(ctx)
	// Jobs outlive poll cancellation so shutdown can drain them.
	jobCtx, jobCancel := context.WithCancel(context.WithoutCancel(ctx))
	o.pollCancel = pollCancel
	o.jobCancel = jobCancel
	o.running = true

	o.wg.Add(o.opts.Workers)
	for range o.opts.Workers {
		go o.worker(pollCtx, jobCtx)
	}
	o.cron.Start()

	o.logger.Info("orchestrator started",
		logging.Int("workers", o.opts.Workers),
		logging.Int("queue_depth", o.opts.QueueDepth),
	)
	return nil
}

// Stop halts intake and drains in-flight jobs up to the shutdown grace
// period. Queued jobs stay pending for the next run.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	if !o.running {
		o.mu.Unlock()
		return
	}
	pollCancel := o.pollCancel
	jobCancel := o.jobCancel
	o.running = false
	o.pollCancel = nil
	o.jobCancel = nil
	o.mu.Unlock()

	cronCtx := o.cron.Stop()
	pollCancel()

	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(o.opts.ShutdownGrace):
		o.logger.Warn("shutdown grace expired, abandoning in-flight jobs")
		jobCancel()
		<-done
	}
	<-cronCtx.Done()
	jobCancel()
	o.logger.Info("orchestrator stopped")
}

func (o *Orchestrator) worker(pollCtx, jobCtx context.Context) {
	defer o.wg.Done()
	for {
		select {
		case <-pollCtx.Done():
			return
		default:
		}

		job, err := o.store.ClaimNextJob(pollCtx, o.clock())
		if err != nil {
			if pollCtx.Err() != nil {
				return
			}
			o.logger.Error("failed to claim next job", logging.Error(err))
			o.sleep(pollCtx)
			continue
		}
		if job == nil {
			o.sleep(pollCtx)
			continue
		}
		o.runJob(jobCtx, job)
	}
}

func (o *Orchestrator) sleep(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(o.opts.PollInterval):
	}
}

// ScheduleRecurring registers a freshness sweep that re-enqueues every known
// identity of the given sources at the interval.
func (o *Orchestrator) ScheduleRecurring(sources []media.Source, interval time.Duration) error {
	if interval <= 0 {
		return services.Wrap(services.ErrValidation, "sync", "schedule", "interval must be positive", nil)
	}
	targets := make([]media.Source, len(sources))
	copy(targets, sources)
	_, err := o.cron.AddFunc(fmt.Sprintf("@every %s", interval), func() {
		o.sweep(context.Background(), targets)
	})
	if err != nil {
		return fmt.Errorf("register recurring sweep: %w", err)
	}
	o.logger.Info("recurring sweep scheduled",
		logging.Int("sources", len(targets)),
		logging.Duration("interval", interval),
	)
	return nil
}

func (o *Orchestrator) sweep(ctx context.Context, sources []media.Source) {
	for _, source := range sources {
		identities, err := o.store.ListIdentitiesBySource(ctx, source)
		if err != nil {
			o.logger.Error("freshness sweep failed to list identities",
				logging.String(logging.FieldSource, string(source)),
				logging.Error(err),
			)
			continue
		}
		for _, pid := range identities {
			if o.pendingBacklog(ctx) >= o.opts.QueueDepth {
				o.logger.Warn("freshness sweep stopped at queue depth",
					logging.String(logging.FieldSource, string(source)),
				)
				return
			}
			target := Target{Source: pid.Source, Identifier: pid.ExternalIdentifier, Lot: pid.Lot}
			if _, _, err := o.store.EnqueueJob(ctx, target.Source, target.Identifier, target.Lot, store.KindScheduled, o.opts.MaxAttempts); err != nil {
				o.logger.Error("freshness sweep enqueue failed",
					logging.String(logging.FieldSource, string(source)),
					logging.String(logging.FieldIdentifier, target.Identifier),
					logging.Error(err),
				)
			}
		}
	}
}

// RefreshNow enqueues the target and blocks until its job reaches a terminal
// state. A caller deadline returns services.ErrTimeout while the job keeps
// running and feeds later waiters. Fails with ErrNotRunning when the worker
// pool is stopped: no worker would ever resolve the waiter.
func (o *Orchestrator) RefreshNow(ctx context.Context, target Target) (*store.Job, error) {
	// Registering the waiter under the same lock complete() takes closes the
	// window where a fast worker finishes the job before the waiter exists.
	o.mu.Lock()
	if !o.running {
		o.mu.Unlock()
		return nil, fmt.Errorf("%w: refresh %s", ErrNotRunning, target)
	}
	job, err := o.enqueue(ctx, target, store.KindOnDemand)
	if err != nil {
		o.mu.Unlock()
		return nil, err
	}
	ch := make(chan outcome, 1)
	o.waiters[job.ID] = append(o.waiters[job.ID], ch)
	o.mu.Unlock()
	select {
	case result := <-ch:
		return result.job, result.err
	case <-ctx.Done():
		o.removeWaiter(job.ID, ch)
		return job, services.Wrap(services.ErrTimeout, "sync", "refresh",
			fmt.Sprintf("deadline expired waiting for %s, job %d continues", target, job.ID), ctx.Err())
	}
}

// EnqueueRefresh enqueues the target without waiting for the result.
func (o *Orchestrator) EnqueueRefresh(ctx context.Context, target Target) (*store.Job, error) {
	return o.enqueue(ctx, target, store.KindOnDemand)
}

func (o *Orchestrator) enqueue(ctx context.Context, target Target, kind store.JobKind) (*store.Job, error) {
	if err := o.validateTarget(target); err != nil {
		return nil, err
	}
	if o.pendingBacklog(ctx) >= o.opts.QueueDepth {
		return nil, fmt.Errorf("%w: %d pending jobs", ErrQueueFull, o.opts.QueueDepth)
	}
	job, created, err := o.store.EnqueueJob(ctx, target.Source, target.Identifier, target.Lot, kind, o.opts.MaxAttempts)
	if err != nil {
		return nil, fmt.Errorf("enqueue %s: %w", target, err)
	}
	if created {
		o.logger.Info("job enqueued",
			logging.Int64(logging.FieldJobID, job.ID),
			logging.String(logging.FieldSource, string(target.Source)),
			logging.String(logging.FieldIdentifier, target.Identifier),
			logging.String(logging.FieldLot, string(target.Lot)),
			logging.String("kind", string(kind)),
		)
	}
	return job, nil
}

func (o *Orchestrator) validateTarget(target Target) error {
	if !target.Source.IsValid() {
		return services.Wrap(services.ErrValidation, "sync", "enqueue", "unknown source "+string(target.Source), nil)
	}
	if target.Identifier == "" {
		return services.Wrap(services.ErrValidation, "sync", "enqueue", "missing identifier", nil)
	}
	if !target.Lot.IsValid() {
		return services.Wrap(services.ErrValidation, "sync", "enqueue", "unknown lot "+string(target.Lot), nil)
	}
	p, err := o.registry.Lookup(target.Source)
	if err != nil {
		return services.Wrap(services.ErrConfiguration, "sync", "enqueue", "no adapter for "+string(target.Source), err)
	}
	if !p.Supports(target.Lot) {
		return services.Wrap(services.ErrValidation, "sync", "enqueue",
			fmt.Sprintf("%s does not serve lot %s", target.Source, target.Lot), nil)
	}
	return nil
}

func (o *Orchestrator) pendingBacklog(ctx context.Context) int {
	counts, err := o.store.CountJobs(ctx)
	if err != nil {
		o.logger.Error("failed to count jobs", logging.Error(err))
		return 0
	}
	return counts[store.JobPending]
}

// CancelPending removes queued jobs for the target. In-flight jobs finish.
// Only the ids the delete actually removed get their waiters resolved with
// ErrCanceled; a job claimed by a worker in the meantime keeps its waiters
// and delivers its real outcome.
func (o *Orchestrator) CancelPending(ctx context.Context, target Target) (int, error) {
	removed, err := o.store.CancelPendingTarget(ctx, target.Source, target.Identifier, target.Lot)
	if err != nil {
		return 0, err
	}
	for _, id := range removed {
		o.complete(id, nil, fmt.Errorf("%w: %s", ErrCanceled, target))
	}
	if len(removed) > 0 {
		o.logger.Info("pending jobs canceled",
			logging.String(logging.FieldSource, string(target.Source)),
			logging.String(logging.FieldIdentifier, target.Identifier),
			logging.Int("count", len(removed)),
		)
	}
	return len(removed), nil
}

// Counts reports per-state job totals.
func (o *Orchestrator) Counts(ctx context.Context) (map[store.JobState]int, error) {
	return o.store.CountJobs(ctx)
}

// Running reports whether the worker pool is active.
func (o *Orchestrator) Running() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.running
}

func (o *Orchestrator) addWaiter(jobID int64) chan outcome {
	ch := make(chan outcome, 1)
	o.mu.Lock()
	o.waiters[jobID] = append(o.waiters[jobID], ch)
	o.mu.Unlock()
	return ch
}

func (o *Orchestrator) removeWaiter(jobID int64, ch chan outcome) {
	o.mu.Lock()
	defer o.mu.Unlock()
	remaining := o.waiters[jobID][:0]
	for _, waiter := range o.waiters[jobID] {
		if waiter != ch {
			remaining = append(remaining, waiter)
		}
	}
	if len(remaining) == 0 {
		delete(o.waiters, jobID)
	} else {
		o.waiters[jobID] = remaining
	}
}

// complete resolves every waiter registered for the job.
func (o *Orchestrator) complete(jobID int64, job *store.Job, err error) {
	o.mu.Lock()
	waiters := o.waiters[jobID]
	delete(o.waiters, jobID)
	o.mu.Unlock()
	for _, ch := range waiters {
		ch <- outcome{job: job, err: err}
	}
}
