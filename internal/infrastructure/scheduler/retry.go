package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/shopsync/backend/internal/application/alert"
	"github.com/shopsync/backend/internal/domain/notification"
	"github.com/shopsync/backend/internal/domain/scheduling"
	"github.com/shopsync/backend/internal/infrastructure/telemetry"
)

// FailureHandler decides what happens after a job reaches a terminal status
type FailureHandler interface {
	HandleFailure(ctx context.Context, job *scheduling.Job) (RetryDecision, error)
	HandleSuccess(ctx context.Context, job *scheduling.Job) error
}

// RetryAction is what the coordinator did with a failed job
type RetryAction string

const (
	// RetryScheduled means a new pending job was created
	RetryScheduled RetryAction = "retry_scheduled"
	// RetriesExhausted means the retry budget is spent; a sync_error notification was raised
	RetriesExhausted RetryAction = "retries_exhausted"
	// CredentialAlert means the credential was rejected; an api_error notification was raised
	CredentialAlert RetryAction = "credential_alert"
	// NotRetryable means the failure is permanent or internal; it is only logged
	NotRetryable RetryAction = "not_retryable"
)

// RetryDecision is the outcome of HandleFailure
type RetryDecision struct {
	Action RetryAction
	// Retry is the new pending job when Action is RetryScheduled
	Retry *scheduling.Job
	Delay time.Duration
	// ScheduleDisabled is true when this failure disabled the owning schedule
	ScheduleDisabled bool
}

// Backoff returns base * 2^retryCount, capped at max when max is positive
func Backoff(base, max time.Duration, retryCount int) time.Duration {
	d := base
	for i := 0; i < retryCount; i++ {
		if max > 0 && d >= max {
			return max
		}
		if d > time.Duration(1<<62)/2 {
			break
		}
		d *= 2
	}
	if max > 0 && d > max {
		return max
	}
	return d
}

// RetryCoordinator is the only component that turns a failed job into a
// future attempt. It also keeps the schedule failure count: a lineage of
// retries counts as one run of the schedule, settled when it ends.
type RetryCoordinator struct {
	config     Config
	jobs       scheduling.JobRepository
	schedules  scheduling.ScheduleRepository
	emitter    AlertEmitter
	rateWindow time.Duration
	metrics    *telemetry.SyncMetrics
	logger     *zap.Logger
	now        func() time.Time

	// serializes read-modify-write of schedule bookkeeping
	lineageMu sync.Mutex
}

// RetryOption configures a RetryCoordinator
type RetryOption func(*RetryCoordinator)

// WithRetryClock sets the time source
func WithRetryClock(now func() time.Time) RetryOption {
	return func(c *RetryCoordinator) {
		c.now = now
	}
}

// WithRetryMetrics records retry decisions
func WithRetryMetrics(m *telemetry.SyncMetrics) RetryOption {
	return func(c *RetryCoordinator) {
		c.metrics = m
	}
}

// NewRetryCoordinator creates a new RetryCoordinator. rateWindow is the
// minimum delay before retrying a rate-limited job.
func NewRetryCoordinator(
	config Config,
	jobs scheduling.JobRepository,
	schedules scheduling.ScheduleRepository,
	emitter AlertEmitter,
	rateWindow time.Duration,
	logger *zap.Logger,
	opts ...RetryOption,
) (*RetryCoordinator, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if jobs == nil || schedules == nil || emitter == nil {
		return nil, fmt.Errorf("%w: retry coordinator requires repositories and an emitter", ErrInvalidConfig)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &RetryCoordinator{
		config:     config,
		jobs:       jobs,
		schedules:  schedules,
		emitter:    emitter,
		rateWindow: rateWindow,
		logger:     logger,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

var _ FailureHandler = (*RetryCoordinator)(nil)

// RetryDelay returns the delay before the next attempt of job
func (c *RetryCoordinator) RetryDelay(job *scheduling.Job) time.Duration {
	d := Backoff(c.config.RetryBaseDelay, c.config.RetryMaxDelay, job.RetryCount)
	if job.FailureReason == scheduling.FailureReasonRateLimited && d < c.rateWindow {
		d = c.rateWindow
	}
	return d
}

// HandleFailure decides the fate of a failed job. The failed job itself is
// never modified.
func (c *RetryCoordinator) HandleFailure(ctx context.Context, job *scheduling.Job) (RetryDecision, error) {
	if job.Status != scheduling.JobStatusFailed {
		return RetryDecision{}, ErrJobNotFailed
	}
	now := c.now()
	log := c.logger.With(
		zap.String("job_id", job.ID.String()),
		zap.String("tenant_id", job.TenantID.String()),
		zap.String("job_type", string(job.Type)),
		zap.String("platform", string(job.Platform)),
		zap.String("failure_reason", string(job.FailureReason)),
		zap.Int("retry_count", job.RetryCount),
		zap.Int("max_retries", job.MaxRetries),
	)

	var (
		decision RetryDecision
		errs     []error
	)
	switch {
	case job.CanRetry():
		delay := c.RetryDelay(job)
		retry := job.NewRetry(now, delay)
		if err := c.jobs.Create(ctx, retry); err != nil {
			return decision, fmt.Errorf("create retry of job %s: %w", job.ID, err)
		}
		log.Info("Sync job scheduled for retry",
			zap.String("retry_job_id", retry.ID.String()),
			zap.Duration("delay", delay),
			zap.Time("scheduled_at", retry.ScheduledAt),
		)
		c.metrics.RecordRetry(ctx, string(job.Type), string(RetryScheduled))
		return RetryDecision{Action: RetryScheduled, Retry: retry, Delay: delay}, nil

	case job.FailureReason.IsRetryEligible():
		decision.Action = RetriesExhausted
		log.Warn("Sync job retries exhausted")
		if err := c.notify(ctx, job, notification.TypeSyncError, "", "Sync retries exhausted",
			fmt.Sprintf("%s on %s failed after %d retries: %s", job.Type, job.Platform.DisplayName(), job.RetryCount, job.ErrorMessage),
		); err != nil {
			errs = append(errs, err)
		}

	case job.FailureReason == scheduling.FailureReasonAuth:
		decision.Action = CredentialAlert
		log.Warn("Sync job failed on credentials, raising credential alert")
		if err := c.notify(ctx, job, notification.TypeAPIError, "", "Platform credential needs attention",
			fmt.Sprintf("%s rejected the stored credential. Reconnect the shop to resume synchronization.", job.Platform.DisplayName()),
		); err != nil {
			errs = append(errs, err)
		}

	default:
		decision.Action = NotRetryable
		log.Error("Sync job failed and will not be retried", zap.String("error_message", job.ErrorMessage))
	}
	c.metrics.RecordRetry(ctx, string(job.Type), string(decision.Action))

	disabled, err := c.settleLineage(ctx, job, false, now)
	if err != nil {
		errs = append(errs, err)
	}
	decision.ScheduleDisabled = disabled
	return decision, errors.Join(errs...)
}

// HandleSuccess settles the lineage of a completed job, resetting the
// schedule failure count.
func (c *RetryCoordinator) HandleSuccess(ctx context.Context, job *scheduling.Job) error {
	if job.Status != scheduling.JobStatusCompleted {
		return nil
	}
	_, err := c.settleLineage(ctx, job, true, c.now())
	return err
}

// settleLineage applies the end of a run to its schedule. It reports whether
// the schedule was disabled by this failure.
func (c *RetryCoordinator) settleLineage(ctx context.Context, job *scheduling.Job, success bool, now time.Time) (bool, error) {
	if job.ScheduleID == nil {
		return false, nil
	}

	c.lineageMu.Lock()
	defer c.lineageMu.Unlock()

	schedule, err := c.schedules.FindByID(ctx, job.TenantID, *job.ScheduleID)
	if err != nil {
		if errors.Is(err, scheduling.ErrScheduleNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("load schedule %s: %w", *job.ScheduleID, err)
	}

	if success {
		if schedule.FailureCount == 0 {
			return false, nil
		}
		schedule.RecordSuccess(now)
		if err := c.schedules.SaveFailures(ctx, schedule); err != nil {
			return false, fmt.Errorf("save schedule %s: %w", schedule.ID, err)
		}
		return false, nil
	}

	disabled := schedule.RecordFailure(now)
	if err := c.schedules.SaveFailures(ctx, schedule); err != nil {
		return false, fmt.Errorf("save schedule %s: %w", schedule.ID, err)
	}
	if !disabled {
		return false, nil
	}

	c.logger.Warn("Sync schedule disabled after consecutive failures",
		zap.String("schedule_id", schedule.ID.String()),
		zap.String("tenant_id", schedule.TenantID.String()),
		zap.String("job_type", string(schedule.JobType)),
		zap.Int("failure_count", schedule.FailureCount),
	)
	err = c.notify(ctx, job, notification.TypeSyncError, scheduleDisabledSubject, "Sync schedule disabled",
		fmt.Sprintf("The %s schedule for %s was disabled after %d consecutive failed runs.",
			schedule.JobType, schedule.Platform.DisplayName(), schedule.FailureCount),
	)
	return true, err
}

// scheduleDisabledSubject keeps the disable alert apart from the failure
// alert raised for the same run
const scheduleDisabledSubject = "disabled"

func (c *RetryCoordinator) notify(ctx context.Context, job *scheduling.Job, typ notification.Type, subject, title, message string) error {
	jobID := job.ID
	_, err := c.emitter.EmitSystem(ctx, alert.SystemAlert{
		TenantID:   job.TenantID,
		Type:       typ,
		Platform:   job.Platform,
		ScheduleID: job.ScheduleID,
		JobID:      &jobID,
		Title:      title,
		Message:    message,
		Reason:     string(job.FailureReason),
		Subject:    subject,
	})
	if err != nil {
		return fmt.Errorf("emit %s notification: %w", typ, err)
	}
	return nil
}
