package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"curator/internal/media"
)

const jobColumns = `id, target_source, target_identifier, target_lot, internal_id,
    kind, state, attempt, max_attempts, next_run_at, last_error, created_at, updated_at`

// EnqueueJob inserts a pending job for the target. When a non-terminal job
// for the same target already exists it is returned instead of creating a
// duplicate; the returned bool reports whether a new job was created.
func (s *Store) EnqueueJob(ctx context.Context, source media.Source, identifier string, lot media.Lot, kind JobKind, maxAttempts int) (*Job, bool, error) {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}

	tx, err := s.begin(ctx)
	if err != nil {
		return nil, false, err
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx,
		`SELECT `+jobColumns+` FROM sync_jobs
         WHERE target_source = ? AND target_identifier = ? AND target_lot = ?
           AND state NOT IN (?, ?)
         ORDER BY id LIMIT 1`,
		string(source), identifier, string(lot), string(JobDone), string(JobFailed))
	existing, err := scanJob(row)
	if err == nil {
		return existing, false, commit(tx)
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, fmt.Errorf("query existing job: %w", err)
	}

	now := time.Now().UTC()
	result, err := tx.ExecContext(ctx,
		`INSERT INTO sync_jobs (
            target_source, target_identifier, target_lot, kind, state,
            attempt, max_attempts, next_run_at, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, 0, ?, ?, ?, ?)`,
		string(source), identifier, string(lot), string(kind), string(JobPending),
		maxAttempts, timestamp(now), timestamp(now), timestamp(now))
	if err != nil {
		return nil, false, fmt.Errorf("insert job: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, false, fmt.Errorf("job id: %w", err)
	}

	job := &Job{
		ID:               id,
		TargetSource:     source,
		TargetIdentifier: identifier,
		TargetLot:        lot,
		Kind:             kind,
		State:            JobPending,
		MaxAttempts:      maxAttempts,
		NextRunAt:        now,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	return job, true, commit(tx)
}

// ClaimNextJob atomically moves the oldest runnable pending job to the
// fetching state and returns it. Returns nil when nothing is runnable.
func (s *Store) ClaimNextJob(ctx context.Context, now time.Time) (*Job, error) {
	tx, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx,
		`SELECT `+jobColumns+` FROM sync_jobs
         WHERE state = ? AND next_run_at <= ?
         ORDER BY next_run_at, id LIMIT 1`,
		string(JobPending), timestamp(now))
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, commit(tx)
	}
	if err != nil {
		return nil, fmt.Errorf("query runnable job: %w", err)
	}

	job.State = JobFetching
	job.Attempt++
	job.UpdatedAt = now.UTC()
	_, err = tx.ExecContext(ctx,
		`UPDATE sync_jobs SET state = ?, attempt = ?, updated_at = ? WHERE id = ?`,
		string(job.State), job.Attempt, timestamp(job.UpdatedAt), job.ID)
	if err != nil {
		return nil, fmt.Errorf("claim job: %w", err)
	}
	return job, commit(tx)
}

// UpdateJob persists the job's state, internal id, schedule, and error.
func (s *Store) UpdateJob(ctx context.Context, job *Job) error {
	job.UpdatedAt = time.Now().UTC()
	result, err := s.db.ExecContext(ctx,
		`UPDATE sync_jobs
         SET internal_id = ?, state = ?, attempt = ?, next_run_at = ?,
             last_error = ?, updated_at = ?
         WHERE id = ?`,
		nullableString(job.InternalID), string(job.State), job.Attempt,
		timestamp(job.NextRunAt), nullableString(job.LastError),
		timestamp(job.UpdatedAt), job.ID)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: job %d", ErrNotFound, job.ID)
	}
	return nil
}

// JobByID returns the job or ErrNotFound.
func (s *Store) JobByID(ctx context.Context, id int64) (*Job, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+jobColumns+` FROM sync_jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: job %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("query job: %w", err)
	}
	return job, nil
}

// ListJobs returns jobs filtered by state. An empty filter lists everything,
// newest first.
func (s *Store) ListJobs(ctx context.Context, states ...JobState) ([]*Job, error) {
	query := `SELECT ` + jobColumns + ` FROM sync_jobs`
	args := make([]any, 0, len(states))
	if len(states) > 0 {
		placeholders := make([]string, len(states))
		for i, state := range states {
			placeholders[i] = "?"
			args = append(args, string(state))
		}
		query += ` WHERE state IN (` + strings.Join(placeholders, ", ") + `)`
	}
	query += ` ORDER BY id DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// CancelPendingTarget removes pending jobs for the target and returns the
// ids actually removed. RETURNING makes the delete authoritative: a job a
// worker claims concurrently is simply absent from the result. In-flight
// jobs are left to finish.
func (s *Store) CancelPendingTarget(ctx context.Context, source media.Source, identifier string, lot media.Lot) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx,
		`DELETE FROM sync_jobs
         WHERE target_source = ? AND target_identifier = ? AND target_lot = ? AND state = ?
         RETURNING id`,
		string(source), identifier, string(lot), string(JobPending))
	if err != nil {
		return nil, fmt.Errorf("cancel pending: %w", err)
	}
	defer rows.Close()

	var removed []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("cancel pending: %w", err)
		}
		removed = append(removed, id)
	}
	return removed, rows.Err()
}

// ResetInFlight returns jobs abandoned mid-pipeline to pending. Used at
// startup after an unclean shutdown; the attempt already spent is kept.
func (s *Store) ResetInFlight(ctx context.Context) (int, error) {
	now := time.Now().UTC()
	result, err := s.db.ExecContext(ctx,
		`UPDATE sync_jobs SET state = ?, next_run_at = ?, updated_at = ?
         WHERE state IN (?, ?, ?, ?)`,
		string(JobPending), timestamp(now), timestamp(now),
		string(JobFetching), string(JobNormalizing), string(JobResolving), string(JobWriting))
	if err != nil {
		return 0, fmt.Errorf("reset in-flight jobs: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reset in-flight jobs: %w", err)
	}
	return int(affected), nil
}

// CountJobs returns per-state job counts.
func (s *Store) CountJobs(ctx context.Context) (map[JobState]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT state, COUNT(1) FROM sync_jobs GROUP BY state`)
	if err != nil {
		return nil, fmt.Errorf("count jobs: %w", err)
	}
	defer rows.Close()

	counts := make(map[JobState]int)
	for rows.Next() {
		var (
			state string
			count int
		)
		if err := rows.Scan(&state, &count); err != nil {
			return nil, fmt.Errorf("scan job count: %w", err)
		}
		counts[JobState(state)] = count
	}
	return counts, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*Job, error) {
	var (
		job                          Job
		source, lot, kind, state     string
		internalID, lastError        sql.NullString
		nextRunAt, created, updated  string
	)
	err := row.Scan(&job.ID, &source, &job.TargetIdentifier, &lot, &internalID,
		&kind, &state, &job.Attempt, &job.MaxAttempts, &nextRunAt, &lastError,
		&created, &updated)
	if err != nil {
		return nil, err
	}
	job.TargetSource = media.Source(source)
	job.TargetLot = media.Lot(lot)
	job.InternalID = internalID.String
	job.Kind = JobKind(kind)
	job.State = JobState(state)
	job.LastError = lastError.String
	if t, err := parseTimeString(nextRunAt); err == nil {
		job.NextRunAt = t
	}
	if t, err := parseTimeString(created); err == nil {
		job.CreatedAt = t
	}
	if t, err := parseTimeString(updated); err == nil {
		job.UpdatedAt = t
	}
	return &job, nil
}
