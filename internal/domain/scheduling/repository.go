package scheduling

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/shopsync/backend/internal/domain/integration"
)

// ScheduleRepository persists schedules
type ScheduleRepository interface {
	Create(ctx context.Context, schedule *Schedule) error
	// SaveRun writes last_run and next_run after a dispatch. It leaves
	// enabled and failure_count alone.
	SaveRun(ctx context.Context, schedule *Schedule) error
	// SaveFailures writes failure_count. It may disable the schedule but
	// never re-enables it.
	SaveFailures(ctx context.Context, schedule *Schedule) error
	// Disable turns the schedule off
	Disable(ctx context.Context, schedule *Schedule) error
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*Schedule, error)
	FindByTenant(ctx context.Context, tenantID uuid.UUID) ([]Schedule, error)
	// FindDue returns enabled schedules with next_run <= now, oldest first
	FindDue(ctx context.Context, now time.Time, limit int) ([]Schedule, error)
	// ExistsFor reports whether an enabled schedule exists for the job type and platform
	ExistsFor(ctx context.Context, tenantID uuid.UUID, jobType JobType, platform integration.PlatformCode) (bool, error)
}

// JobFilter narrows job listings
type JobFilter struct {
	Status     JobStatus
	Type       JobType
	ScheduleID *uuid.UUID
	Page       int
	PageSize   int
}

// JobRepository persists jobs
type JobRepository interface {
	Create(ctx context.Context, job *Job) error
	// Save writes the job's status, timestamps and result
	Save(ctx context.Context, job *Job) error
	// Claim moves a pending job to running. It returns false if another
	// executor claimed it first or it was cancelled.
	Claim(ctx context.Context, id uuid.UUID, startedAt time.Time) (bool, error)
	// CancelPending moves a pending job to cancelled. It returns false if the job is no longer pending.
	CancelPending(ctx context.Context, tenantID, id uuid.UUID, at time.Time) (bool, error)
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*Job, error)
	// FindDuePending returns pending jobs with scheduled_at <= now, highest priority first
	FindDuePending(ctx context.Context, now time.Time, limit int) ([]Job, error)
	FindByTenant(ctx context.Context, tenantID uuid.UUID, filter JobFilter) ([]Job, int64, error)
}

// SyncLogRepository appends and reads sync log entries. There is no update.
type SyncLogRepository interface {
	Append(ctx context.Context, entry *SyncLogEntry) error
	FindByJob(ctx context.Context, tenantID, jobID uuid.UUID) ([]SyncLogEntry, error)
	FindRecent(ctx context.Context, tenantID uuid.UUID, limit int) ([]SyncLogEntry, error)
}
