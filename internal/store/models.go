package store

import (
	"time"

	"curator/internal/media"
)

// JobState tracks a sync job through the pipeline.
type JobState string

const (
	JobPending     JobState = "pending"
	JobFetching    JobState = "fetching"
	JobNormalizing JobState = "normalizing"
	JobResolving   JobState = "resolving"
	JobWriting     JobState = "writing"
	JobDone        JobState = "done"
	JobFailed      JobState = "failed"
)

// Terminal reports whether the state is final.
func (s JobState) Terminal() bool {
	return s == JobDone || s == JobFailed
}

// InFlight reports whether a worker owns the job.
func (s JobState) InFlight() bool {
	switch s {
	case JobFetching, JobNormalizing, JobResolving, JobWriting:
		return true
	}
	return false
}

// JobKind distinguishes scheduled refreshes from on-demand requests.
type JobKind string

const (
	KindScheduled JobKind = "scheduled"
	KindOnDemand  JobKind = "on_demand"
)

// Job is one unit of synchronization work against a provider target.
type Job struct {
	ID               int64
	TargetSource     media.Source
	TargetIdentifier string
	TargetLot        media.Lot
	InternalID       string
	Kind             JobKind
	State            JobState
	Attempt          int
	MaxAttempts      int
	NextRunAt        time.Time
	LastError        string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
