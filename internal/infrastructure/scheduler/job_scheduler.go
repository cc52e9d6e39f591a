package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/shopsync/backend/internal/domain/integration"
	"github.com/shopsync/backend/internal/domain/scheduling"
	"github.com/shopsync/backend/internal/infrastructure/telemetry"
)

// SchedulerRunSummary reports one RunDueSchedules pass
type SchedulerRunSummary struct {
	StartedAt         time.Time `json:"started_at"`
	FinishedAt        time.Time `json:"finished_at"`
	SchedulesDue      int       `json:"schedules_due"`
	JobsCreated       int       `json:"jobs_created"`
	JobsExecuted      int       `json:"jobs_executed"`
	JobsCompleted     int       `json:"jobs_completed"`
	JobsFailed        int       `json:"jobs_failed"`
	RetriesScheduled  int       `json:"retries_scheduled"`
	RetriesExhausted  int       `json:"retries_exhausted"`
	SchedulesDisabled int       `json:"schedules_disabled"`
	Errors            []string  `json:"errors,omitempty"`
}

// DefaultSchedules are provisioned for every new tenant
var DefaultSchedules = []scheduling.ScheduleSpec{
	{JobType: scheduling.JobTypeOrderMonitor, Platform: integration.PlatformCodeAll, IntervalMinutes: 15, Priority: scheduling.PriorityHigh},
	{JobType: scheduling.JobTypeInventorySync, Platform: integration.PlatformCodeAll, IntervalMinutes: 60, Priority: scheduling.PriorityNormal},
	{JobType: scheduling.JobTypeStatusSync, Platform: integration.PlatformCodeAll, IntervalMinutes: 30, Priority: scheduling.PriorityNormal},
}

// JobScheduler turns due schedules into jobs, executes due jobs and hands
// their outcome to the retry coordinator. It also owns the periodic driver
// and the run-now worker pool (see driver.go).
type JobScheduler struct {
	config    Config
	schedules scheduling.ScheduleRepository
	jobs      scheduling.JobRepository
	executor  JobExecutor
	retries   FailureHandler
	metrics   *telemetry.SyncMetrics
	logger    *zap.Logger
	now       func() time.Time

	// one tick at a time
	tickMu sync.Mutex

	queue     chan *scheduling.Job
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
}

// JobSchedulerOption configures a JobScheduler
type JobSchedulerOption func(*JobScheduler)

// WithSchedulerClock sets the time source
func WithSchedulerClock(now func() time.Time) JobSchedulerOption {
	return func(s *JobScheduler) {
		s.now = now
	}
}

// WithSchedulerMetrics records tick metrics
func WithSchedulerMetrics(m *telemetry.SyncMetrics) JobSchedulerOption {
	return func(s *JobScheduler) {
		s.metrics = m
	}
}

// NewJobScheduler creates a new JobScheduler
func NewJobScheduler(
	config Config,
	schedules scheduling.ScheduleRepository,
	jobs scheduling.JobRepository,
	executor JobExecutor,
	retries FailureHandler,
	logger *zap.Logger,
	opts ...JobSchedulerOption,
) (*JobScheduler, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if schedules == nil || jobs == nil || executor == nil || retries == nil {
		return nil, fmt.Errorf("%w: job scheduler requires repositories, an executor and a failure handler", ErrInvalidConfig)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &JobScheduler{
		config:    config,
		schedules: schedules,
		jobs:      jobs,
		executor:  executor,
		retries:   retries,
		logger:    logger,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// ---------------------------------------------------------------------------
// Tick
// ---------------------------------------------------------------------------

// RunDueSchedules creates one job per due schedule, advances the schedules,
// then executes every due pending job (new jobs and retries whose time has
// come) with bounded parallelism, highest priority first.
func (s *JobScheduler) RunDueSchedules(ctx context.Context) (SchedulerRunSummary, error) {
	s.tickMu.Lock()
	defer s.tickMu.Unlock()

	now := s.now()
	summary := SchedulerRunSummary{StartedAt: now}

	due, err := s.schedules.FindDue(ctx, now, s.config.DueBatchSize)
	if err != nil {
		summary.FinishedAt = s.now()
		return summary, fmt.Errorf("find due schedules: %w", err)
	}
	summary.SchedulesDue = len(due)

	for i := range due {
		if err := s.dispatch(ctx, &due[i], now); err != nil {
			summary.Errors = append(summary.Errors, err.Error())
			continue
		}
		summary.JobsCreated++
	}

	pending, err := s.jobs.FindDuePending(ctx, now, s.config.DueBatchSize)
	if err != nil {
		summary.FinishedAt = s.now()
		return summary, fmt.Errorf("find due jobs: %w", err)
	}
	s.metrics.RecordDueJobs(ctx, len(pending))

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.config.MaxConcurrentJobs)
	for i := range pending {
		job := &pending[i]
		g.Go(func() error {
			report := s.runJob(gctx, job)
			mu.Lock()
			report.addTo(&summary)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	summary.FinishedAt = s.now()
	s.logger.Info("Scheduler tick finished",
		zap.Int("schedules_due", summary.SchedulesDue),
		zap.Int("jobs_created", summary.JobsCreated),
		zap.Int("jobs_executed", summary.JobsExecuted),
		zap.Int("jobs_completed", summary.JobsCompleted),
		zap.Int("jobs_failed", summary.JobsFailed),
		zap.Int("retries_scheduled", summary.RetriesScheduled),
		zap.Int("retries_exhausted", summary.RetriesExhausted),
		zap.Int("schedules_disabled", summary.SchedulesDisabled),
		zap.Int("errors", len(summary.Errors)),
		zap.Duration("elapsed", summary.FinishedAt.Sub(summary.StartedAt)),
	)
	return summary, nil
}

// dispatch creates the job of one due schedule and advances it from now
func (s *JobScheduler) dispatch(ctx context.Context, schedule *scheduling.Schedule, now time.Time) error {
	job := schedule.NewJob(s.config.MaxRetries, now)
	if err := s.jobs.Create(ctx, job); err != nil {
		return fmt.Errorf("create job for schedule %s: %w", schedule.ID, err)
	}
	if err := schedule.Advance(now); err != nil {
		return fmt.Errorf("advance schedule %s: %w", schedule.ID, err)
	}
	if err := s.schedules.SaveRun(ctx, schedule); err != nil {
		return fmt.Errorf("save schedule %s: %w", schedule.ID, err)
	}
	s.logger.Debug("Schedule dispatched",
		zap.String("schedule_id", schedule.ID.String()),
		zap.String("tenant_id", schedule.TenantID.String()),
		zap.String("job_id", job.ID.String()),
		zap.Time("next_run", schedule.NextRun),
	)
	return nil
}

// jobReport is what running one job contributes to a summary
type jobReport struct {
	executed, completed, failed      bool
	retryScheduled, retriesExhausted bool
	scheduleDisabled                 bool
	errs                             []string
}

func (r jobReport) addTo(s *SchedulerRunSummary) {
	if r.executed {
		s.JobsExecuted++
	}
	if r.completed {
		s.JobsCompleted++
	}
	if r.failed {
		s.JobsFailed++
	}
	if r.retryScheduled {
		s.RetriesScheduled++
	}
	if r.retriesExhausted {
		s.RetriesExhausted++
	}
	if r.scheduleDisabled {
		s.SchedulesDisabled++
	}
	s.Errors = append(s.Errors, r.errs...)
}

// runJob executes one job and settles its outcome. It is shared by the tick
// and the run-now workers; the claim makes sure only one of them runs a job.
func (s *JobScheduler) runJob(ctx context.Context, job *scheduling.Job) jobReport {
	var report jobReport

	outcome, err := s.executor.Execute(ctx, job)
	if err != nil {
		s.logger.Error("Sync job execution error",
			zap.String("job_id", job.ID.String()),
			zap.String("tenant_id", job.TenantID.String()),
			zap.Error(err),
		)
		report.errs = append(report.errs, err.Error())
		return report
	}
	if !outcome.Claimed {
		return report
	}
	report.executed = true

	done := outcome.Job
	switch done.Status {
	case scheduling.JobStatusCompleted:
		report.completed = true
		if err := s.retries.HandleSuccess(ctx, done); err != nil {
			report.errs = append(report.errs, err.Error())
		}
	case scheduling.JobStatusFailed:
		report.failed = true
		decision, err := s.retries.HandleFailure(ctx, done)
		if err != nil {
			s.logger.Error("Failed to settle failed sync job",
				zap.String("job_id", done.ID.String()),
				zap.Error(err),
			)
			report.errs = append(report.errs, err.Error())
		}
		report.retryScheduled = decision.Action == RetryScheduled
		report.retriesExhausted = decision.Action == RetriesExhausted
		report.scheduleDisabled = decision.ScheduleDisabled
	}
	return report
}

// ---------------------------------------------------------------------------
// Manual operations
// ---------------------------------------------------------------------------

// RunNow creates a high-priority job outside any schedule. It is handed to
// the worker pool when the driver is running, otherwise the next tick picks it up.
func (s *JobScheduler) RunNow(
	ctx context.Context,
	tenantID uuid.UUID,
	jobType scheduling.JobType,
	platform integration.PlatformCode,
	params scheduling.JobParameters,
) (uuid.UUID, error) {
	job := scheduling.NewJob(tenantID, jobType, platform, params, scheduling.PriorityHigh, s.config.MaxRetries, s.now())
	if err := job.Validate(); err != nil {
		return uuid.Nil, err
	}
	if platform == integration.PlatformCodeAll && params.Status != nil && len(params.Status.Updates) > 0 {
		return uuid.Nil, fmt.Errorf("%w: explicit status updates need a single platform", scheduling.ErrInvalidParameters)
	}
	if err := s.jobs.Create(ctx, job); err != nil {
		return uuid.Nil, fmt.Errorf("create job: %w", err)
	}

	s.logger.Info("Manual sync job created",
		zap.String("job_id", job.ID.String()),
		zap.String("tenant_id", tenantID.String()),
		zap.String("job_type", string(jobType)),
		zap.String("platform", string(platform)),
	)

	if err := s.SubmitJob(job); err != nil && !errors.Is(err, ErrSchedulerNotRunning) {
		s.logger.Warn("Manual sync job left for the next tick",
			zap.String("job_id", job.ID.String()),
			zap.Error(err),
		)
	}
	return job.ID, nil
}

// CancelJob cancels a job that has not started yet
func (s *JobScheduler) CancelJob(ctx context.Context, tenantID, jobID uuid.UUID) (*scheduling.Job, error) {
	job, err := s.jobs.FindByID(ctx, tenantID, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status != scheduling.JobStatusPending {
		return nil, scheduling.ErrJobNotCancellable
	}

	now := s.now()
	ok, err := s.jobs.CancelPending(ctx, tenantID, jobID, now)
	if err != nil {
		return nil, fmt.Errorf("cancel job %s: %w", jobID, err)
	}
	if !ok {
		// claimed by an executor in the meantime
		return nil, scheduling.ErrJobNotCancellable
	}
	if err := job.Cancel(now); err != nil {
		return nil, err
	}

	s.logger.Info("Sync job cancelled",
		zap.String("job_id", jobID.String()),
		zap.String("tenant_id", tenantID.String()),
	)
	return job, nil
}

// ---------------------------------------------------------------------------
// Schedules
// ---------------------------------------------------------------------------

// CreateSchedule adds a schedule. Only one enabled schedule may exist per
// tenant, job type and platform.
func (s *JobScheduler) CreateSchedule(ctx context.Context, tenantID uuid.UUID, spec scheduling.ScheduleSpec) (*scheduling.Schedule, error) {
	schedule, err := scheduling.NewSchedule(tenantID, spec, s.now())
	if err != nil {
		return nil, err
	}
	exists, err := s.schedules.ExistsFor(ctx, tenantID, spec.JobType, spec.Platform)
	if err != nil {
		return nil, fmt.Errorf("check existing schedule: %w", err)
	}
	if exists {
		return nil, scheduling.ErrScheduleAlreadyExists
	}
	if err := s.schedules.Create(ctx, schedule); err != nil {
		return nil, fmt.Errorf("create schedule: %w", err)
	}
	s.logger.Info("Sync schedule created",
		zap.String("schedule_id", schedule.ID.String()),
		zap.String("tenant_id", tenantID.String()),
		zap.String("job_type", string(schedule.JobType)),
		zap.String("platform", string(schedule.Platform)),
		zap.Duration("interval", schedule.Interval()),
		zap.String("cron_expression", schedule.CronExpression),
	)
	return schedule, nil
}

// ProvisionDefaults creates the default schedules a tenant does not have yet.
// Calling it again creates nothing.
func (s *JobScheduler) ProvisionDefaults(ctx context.Context, tenantID uuid.UUID) ([]scheduling.Schedule, error) {
	var created []scheduling.Schedule
	for _, spec := range DefaultSchedules {
		schedule, err := s.CreateSchedule(ctx, tenantID, spec)
		if errors.Is(err, scheduling.ErrScheduleAlreadyExists) {
			continue
		}
		if err != nil {
			return created, err
		}
		created = append(created, *schedule)
	}
	return created, nil
}

// DisableSchedule retires a schedule. Its jobs and logs are kept.
func (s *JobScheduler) DisableSchedule(ctx context.Context, tenantID, scheduleID uuid.UUID) (*scheduling.Schedule, error) {
	schedule, err := s.schedules.FindByID(ctx, tenantID, scheduleID)
	if err != nil {
		return nil, err
	}
	if !schedule.Enabled {
		return schedule, nil
	}
	schedule.Disable(s.now())
	if err := s.schedules.Disable(ctx, schedule); err != nil {
		return nil, fmt.Errorf("save schedule %s: %w", scheduleID, err)
	}
	s.logger.Info("Sync schedule disabled",
		zap.String("schedule_id", scheduleID.String()),
		zap.String("tenant_id", tenantID.String()),
	)
	return schedule, nil
}
