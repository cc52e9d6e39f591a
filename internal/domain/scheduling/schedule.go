package scheduling

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/shopsync/backend/internal/domain/integration"
	"github.com/shopsync/backend/internal/domain/shared"
)

// DefaultMaxFailures is how many consecutive failed runs disable a schedule
const DefaultMaxFailures = 5

// Schedule is a tenant's recurring intent to run one job type against a platform.
// Schedules are retired by disabling them; job history keeps referencing them.
type Schedule struct {
	shared.TenantEntity
	JobType  JobType
	Platform integration.PlatformCode
	// IntervalMinutes takes precedence over CronExpression when both are set
	IntervalMinutes int
	CronExpression  string
	Enabled         bool
	Priority        Priority
	LastRun         *time.Time
	NextRun         time.Time
	FailureCount    int
	MaxFailures     int
	Parameters      JobParameters
}

// ScheduleSpec holds the tenant-supplied fields of a new schedule
type ScheduleSpec struct {
	JobType         JobType
	Platform        integration.PlatformCode
	IntervalMinutes int
	CronExpression  string
	Priority        Priority
	MaxFailures     int
	Parameters      JobParameters
}

// NewSchedule creates an enabled schedule that is due immediately
func NewSchedule(tenantID uuid.UUID, spec ScheduleSpec, now time.Time) (*Schedule, error) {
	if tenantID == uuid.Nil {
		return nil, ErrInvalidTenantID
	}
	if spec.MaxFailures == 0 {
		spec.MaxFailures = DefaultMaxFailures
	}
	if spec.Priority == 0 {
		spec.Priority = PriorityNormal
	}
	s := &Schedule{
		TenantEntity:    shared.NewTenantEntity(tenantID, now),
		JobType:         spec.JobType,
		Platform:        spec.Platform,
		IntervalMinutes: spec.IntervalMinutes,
		CronExpression:  spec.CronExpression,
		Enabled:         true,
		Priority:        spec.Priority,
		NextRun:         now,
		MaxFailures:     spec.MaxFailures,
		Parameters:      spec.Parameters,
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate checks the schedule's invariants
func (s *Schedule) Validate() error {
	if !s.JobType.IsValid() {
		return ErrInvalidJobType
	}
	if !s.Platform.IsValidTarget() {
		return ErrInvalidPlatform
	}
	if s.IntervalMinutes < 0 {
		return ErrInvalidInterval
	}
	if s.IntervalMinutes == 0 {
		if s.CronExpression == "" {
			return ErrMissingInterval
		}
		if _, err := parseCron(s.CronExpression); err != nil {
			return err
		}
	}
	if s.MaxFailures <= 0 {
		return ErrInvalidMaxFailures
	}
	return s.Parameters.ValidateFor(s.JobType)
}

// IsDue returns true if the schedule should be dispatched at now
func (s *Schedule) IsDue(now time.Time) bool {
	return s.Enabled && !s.NextRun.After(now)
}

// Interval returns the fixed interval, or zero for cron-driven schedules
func (s *Schedule) Interval() time.Duration {
	return time.Duration(s.IntervalMinutes) * time.Minute
}

// NextRunAfter computes the next run time counted from now.
// IntervalMinutes wins when set; otherwise the cron expression is used.
func (s *Schedule) NextRunAfter(now time.Time) (time.Time, error) {
	if s.IntervalMinutes > 0 {
		return now.Add(s.Interval()), nil
	}
	sched, err := parseCron(s.CronExpression)
	if err != nil {
		return time.Time{}, err
	}
	return sched.Next(now), nil
}

// Advance records a dispatch at now and moves NextRun forward from now, not
// from the previous NextRun, so a schedule that missed several runs is
// dispatched once rather than once per missed slot.
func (s *Schedule) Advance(now time.Time) error {
	next, err := s.NextRunAfter(now)
	if err != nil {
		return err
	}
	s.LastRun = &now
	s.NextRun = next
	s.UpdatedAt = now
	return nil
}

// RecordSuccess resets the consecutive failure counter
func (s *Schedule) RecordSuccess(now time.Time) {
	s.FailureCount = 0
	s.UpdatedAt = now
}

// RecordFailure counts a failed run and disables the schedule once
// MaxFailures consecutive runs have failed. It reports whether this call
// disabled the schedule.
func (s *Schedule) RecordFailure(now time.Time) bool {
	s.FailureCount++
	s.UpdatedAt = now
	if s.Enabled && s.FailureCount >= s.MaxFailures {
		s.Enabled = false
		return true
	}
	return false
}

// Disable retires the schedule
func (s *Schedule) Disable(now time.Time) {
	s.Enabled = false
	s.UpdatedAt = now
}

// Enable re-activates the schedule and clears its failure count
func (s *Schedule) Enable(now time.Time) {
	s.Enabled = true
	s.FailureCount = 0
	s.UpdatedAt = now
}

// NewJob creates the pending job for one dispatch of this schedule
func (s *Schedule) NewJob(maxRetries int, now time.Time) *Job {
	id := s.ID
	job := NewJob(s.TenantID, s.JobType, s.Platform, s.Parameters, s.Priority, maxRetries, now)
	job.ScheduleID = &id
	return job
}

func parseCron(expr string) (cron.Schedule, error) {
	sched, err := cron.ParseStandard(expr)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidCronExpression, expr, err)
	}
	return sched, nil
}
