package scheduling

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/shopsync/backend/internal/domain/integration"
	"github.com/shopsync/backend/internal/domain/shared"
)

// ---------------------------------------------------------------------------
// JobStatus
// ---------------------------------------------------------------------------

// JobStatus represents the status of a job
type JobStatus string

const (
	// JobStatusPending indicates job is waiting to be executed
	JobStatusPending JobStatus = "pending"
	// JobStatusRunning indicates job is currently executing
	JobStatusRunning JobStatus = "running"
	// JobStatusCompleted indicates job completed successfully
	JobStatusCompleted JobStatus = "completed"
	// JobStatusFailed indicates job failed
	JobStatusFailed JobStatus = "failed"
	// JobStatusCancelled indicates job was cancelled before it started
	JobStatusCancelled JobStatus = "cancelled"
)

// IsValid returns true if the status is known
func (s JobStatus) IsValid() bool {
	switch s {
	case JobStatusPending, JobStatusRunning, JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	default:
		return false
	}
}

// IsTerminal returns true for completed, failed and cancelled
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusCancelled
}

// ---------------------------------------------------------------------------
// Priority
// ---------------------------------------------------------------------------

// Priority orders due jobs; higher runs first
type Priority int

const (
	PriorityLow    Priority = 1
	PriorityNormal Priority = 5
	PriorityHigh   Priority = 10
)

// ---------------------------------------------------------------------------
// FailureReason
// ---------------------------------------------------------------------------

// FailureReason records why a job failed
type FailureReason string

const (
	FailureReasonNone        FailureReason = ""
	FailureReasonRateLimited FailureReason = "rate_limited"
	FailureReasonTransient   FailureReason = "transient"
	FailureReasonAuth        FailureReason = "auth"
	FailureReasonPermanent   FailureReason = "permanent"
	FailureReasonInternal    FailureReason = "internal"
)

// IsRetryEligible returns true for failures that may succeed on a later attempt
func (r FailureReason) IsRetryEligible() bool {
	return r == FailureReasonTransient || r == FailureReasonRateLimited
}

// FailureReasonFromKind maps a platform failure kind to a job failure reason
func FailureReasonFromKind(kind integration.FailureKind) FailureReason {
	switch kind {
	case integration.FailureAuth:
		return FailureReasonAuth
	case integration.FailurePermanent:
		return FailureReasonPermanent
	default:
		return FailureReasonTransient
	}
}

// ---------------------------------------------------------------------------
// Job
// ---------------------------------------------------------------------------

// JobResult holds the counters of a finished job
type JobResult struct {
	ItemsProcessed       int `json:"items_processed"`
	ItemsSucceeded       int `json:"items_succeeded"`
	ItemsFailed          int `json:"items_failed"`
	APICalls             int `json:"api_calls"`
	ChangesDetected      int `json:"changes_detected"`
	NotificationsCreated int `json:"notifications_created"`
	NotificationsSkipped int `json:"notifications_skipped"`
}

// Add accumulates other into r
func (r *JobResult) Add(other JobResult) {
	r.ItemsProcessed += other.ItemsProcessed
	r.ItemsSucceeded += other.ItemsSucceeded
	r.ItemsFailed += other.ItemsFailed
	r.APICalls += other.APICalls
	r.ChangesDetected += other.ChangesDetected
	r.NotificationsCreated += other.NotificationsCreated
	r.NotificationsSkipped += other.NotificationsSkipped
}

// Job is one execution attempt of a schedule or a manual request.
// Status only moves forward: pending -> running -> completed|failed, or
// pending -> cancelled. A retry is a new Job, never a reset of this one.
type Job struct {
	shared.TenantEntity
	ScheduleID    *uuid.UUID
	ParentJobID   *uuid.UUID
	Type          JobType
	Platform      integration.PlatformCode
	Status        JobStatus
	Priority      Priority
	ScheduledAt   time.Time
	StartedAt     *time.Time
	CompletedAt   *time.Time
	RetryCount    int
	MaxRetries    int
	Parameters    JobParameters
	Result        *JobResult
	FailureReason FailureReason
	ErrorMessage  string
}

// NewJob creates a pending job scheduled for now. A zero priority means normal.
func NewJob(
	tenantID uuid.UUID,
	jobType JobType,
	platform integration.PlatformCode,
	params JobParameters,
	priority Priority,
	maxRetries int,
	now time.Time,
) *Job {
	if priority == 0 {
		priority = PriorityNormal
	}
	return &Job{
		TenantEntity: shared.NewTenantEntity(tenantID, now),
		Type:         jobType,
		Platform:     platform,
		Status:       JobStatusPending,
		Priority:     priority,
		ScheduledAt:  now,
		MaxRetries:   maxRetries,
		Parameters:   params,
	}
}

// Validate checks the job's static fields
func (j *Job) Validate() error {
	if j.TenantID == uuid.Nil {
		return ErrInvalidTenantID
	}
	if !j.Type.IsValid() {
		return ErrInvalidJobType
	}
	if !j.Platform.IsValidTarget() {
		return ErrInvalidPlatform
	}
	if j.MaxRetries < 0 {
		return ErrInvalidMaxRetries
	}
	return j.Parameters.ValidateFor(j.Type)
}

func (j *Job) transition(to JobStatus, now time.Time) error {
	allowed := false
	switch j.Status {
	case JobStatusPending:
		allowed = to == JobStatusRunning || to == JobStatusCancelled
	case JobStatusRunning:
		allowed = to == JobStatusCompleted || to == JobStatusFailed
	}
	if !allowed {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidJobTransition, j.Status, to)
	}
	j.Status = to
	j.UpdatedAt = now
	return nil
}

// Start marks the job as running
func (j *Job) Start(now time.Time) error {
	if err := j.transition(JobStatusRunning, now); err != nil {
		return err
	}
	j.StartedAt = &now
	return nil
}

// Complete marks the job as completed with its result
func (j *Job) Complete(now time.Time, result JobResult) error {
	if err := j.transition(JobStatusCompleted, now); err != nil {
		return err
	}
	j.CompletedAt = &now
	j.Result = &result
	return nil
}

// Fail marks the job as failed. result may carry partial counters.
func (j *Job) Fail(now time.Time, reason FailureReason, message string, result JobResult) error {
	if err := j.transition(JobStatusFailed, now); err != nil {
		return err
	}
	j.CompletedAt = &now
	j.FailureReason = reason
	j.ErrorMessage = message
	j.Result = &result
	return nil
}

// Cancel marks a pending job as cancelled
func (j *Job) Cancel(now time.Time) error {
	if j.Status != JobStatusPending {
		return ErrJobNotCancellable
	}
	if err := j.transition(JobStatusCancelled, now); err != nil {
		return err
	}
	j.CompletedAt = &now
	return nil
}

// IsTerminal returns true once the job can no longer change
func (j *Job) IsTerminal() bool {
	return j.Status.IsTerminal()
}

// IsManual returns true for jobs not spawned by a schedule
func (j *Job) IsManual() bool {
	return j.ScheduleID == nil
}

// CanRetry returns true if the job failed for a retry-eligible reason and has attempts left
func (j *Job) CanRetry() bool {
	return j.Status == JobStatusFailed && j.FailureReason.IsRetryEligible() && j.RetryCount < j.MaxRetries
}

// Duration returns how long the job ran, or zero if it has not finished
func (j *Job) Duration() time.Duration {
	if j.StartedAt == nil || j.CompletedAt == nil {
		return 0
	}
	return j.CompletedAt.Sub(*j.StartedAt)
}

// NewRetry creates the next attempt of a failed job, scheduled after delay.
// The receiver is not modified.
func (j *Job) NewRetry(now time.Time, delay time.Duration) *Job {
	parent := j.ID
	retry := NewJob(j.TenantID, j.Type, j.Platform, j.Parameters, j.Priority, j.MaxRetries, now)
	retry.ScheduleID = j.ScheduleID
	retry.ParentJobID = &parent
	retry.RetryCount = j.RetryCount + 1
	retry.ScheduledAt = now.Add(delay)
	return retry
}
