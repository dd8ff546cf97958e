package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"curator/internal/config"
	"curator/internal/logging"
	"curator/internal/media"
	"curator/internal/provider"
	"curator/internal/store"
	"curator/internal/sync"
)

// Daemon coordinates the background services and enforces single-instance
// execution.
type Daemon struct {
	cfg          *config.Config
	logger       *slog.Logger
	store        *store.Store
	registry     *provider.Registry
	orchestrator *sync.Orchestrator
	server       *apiServer

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	PID          int
	DatabasePath string
	LockFilePath string
	Sources      []media.Source
	JobCounts    map[store.JobState]int
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, st *store.Store, registry *provider.Registry, orchestrator *sync.Orchestrator, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || st == nil || registry == nil || orchestrator == nil {
		return nil, errors.New("daemon requires config, store, registry, and orchestrator")
	}
	lockPath := filepath.Join(cfg.Paths.DataDir, "curatord.lock")
	d := &Daemon{
		cfg:          cfg,
		logger:       logging.NewComponentLogger(logger, "daemon"),
		store:        st,
		registry:     registry,
		orchestrator: orchestrator,
		lockPath:     lockPath,
		lock:         flock.New(lockPath),
	}
	d.server = newAPIServer(cfg, d, logger)
	return d, nil
}

// Start acquires the instance lock, launches the orchestrator and the
// recurring sweep, and begins serving the API.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another curator daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	if err := d.orchestrator.Start(runCtx); err != nil {
		d.releaseLock()
		cancel()
		d.cancel = nil
		return fmt.Errorf("start orchestrator: %w", err)
	}

	if interval := time.Duration(d.cfg.Sync.RefreshInterval) * time.Second; interval > 0 {
		sources := d.cfg.EnabledSources()
		if len(sources) > 0 {
			if err := d.orchestrator.ScheduleRecurring(sources, interval); err != nil {
				d.logger.Warn("failed to schedule recurring sweep", logging.Error(err))
			}
		}
	}

	if d.server != nil {
		if err := d.server.start(runCtx); err != nil {
			d.orchestrator.Stop()
			d.releaseLock()
			cancel()
			d.cancel = nil
			return err
		}
	}

	d.running.Store(true)
	d.logger.Info("curator daemon started", logging.String("lock", d.lockPath))
	return nil
}

// Stop shuts down the API server and drains the orchestrator, then releases
// the instance lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}
	if d.server != nil {
		d.server.stop()
	}
	d.orchestrator.Stop()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.releaseLock()
	d.running.Store(false)
	d.logger.Info("curator daemon stopped")
}

// Close stops the daemon and closes the store.
func (d *Daemon) Close() error {
	d.Stop()
	return d.store.Close()
}

func (d *Daemon) releaseLock() {
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
}

// APIAddr returns the bound API listen address, or "" when the API is
// disabled or not started.
func (d *Daemon) APIAddr() string {
	return d.server.addr()
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	counts, err := d.orchestrator.Counts(ctx)
	if err != nil {
		d.logger.Warn("failed to count jobs", logging.Error(err))
	}
	return Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		DatabasePath: d.store.Path(),
		LockFilePath: d.lockPath,
		Sources:      d.registry.Sources(),
		JobCounts:    counts,
	}
}

// MediaDetails returns the canonical detail view for one internal id.
func (d *Daemon) MediaDetails(ctx context.Context, internalID string) (*store.Details, error) {
	return d.store.MediaDetails(ctx, internalID)
}

// Refresh synchronizes a target, blocking for the result when wait is set.
func (d *Daemon) Refresh(ctx context.Context, target sync.Target, wait bool) (*store.Job, error) {
	if wait {
		return d.orchestrator.RefreshNow(ctx, target)
	}
	return d.orchestrator.EnqueueRefresh(ctx, target)
}

// Jobs lists sync jobs filtered by optional states.
func (d *Daemon) Jobs(ctx context.Context, states ...store.JobState) ([]*store.Job, error) {
	return d.store.ListJobs(ctx, states...)
}

// CancelPending removes queued jobs for a target.
func (d *Daemon) CancelPending(ctx context.Context, target sync.Target) (int, error) {
	return d.orchestrator.CancelPending(ctx, target)
}

// Search runs a provider free-text search when the adapter supports it.
func (d *Daemon) Search(ctx context.Context, source media.Source, query string, page int) ([]media.SearchItem, error) {
	adapter, err := d.registry.Lookup(source)
	if err != nil {
		return nil, err
	}
	searcher, ok := adapter.(provider.Searcher)
	if !ok {
		return nil, fmt.Errorf("%s does not support search", source)
	}
	return searcher.Search(ctx, query, page)
}
