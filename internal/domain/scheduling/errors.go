package scheduling

import "errors"

var (
	// Schedule errors
	ErrScheduleNotFound      = errors.New("scheduling: schedule not found")
	ErrInvalidJobType        = errors.New("scheduling: invalid job type")
	ErrInvalidPlatform       = errors.New("scheduling: invalid platform")
	ErrMissingInterval       = errors.New("scheduling: schedule requires an interval or a cron expression")
	ErrInvalidInterval       = errors.New("scheduling: interval must be positive")
	ErrInvalidCronExpression = errors.New("scheduling: invalid cron expression")
	ErrInvalidMaxFailures    = errors.New("scheduling: max failures must be positive")
	ErrScheduleAlreadyExists = errors.New("scheduling: schedule already exists for job type and platform")
	ErrScheduleDisabled      = errors.New("scheduling: schedule is disabled")

	// Job errors
	ErrJobNotFound          = errors.New("scheduling: job not found")
	ErrInvalidJobTransition = errors.New("scheduling: invalid job status transition")
	ErrJobNotCancellable    = errors.New("scheduling: only pending jobs can be cancelled")
	ErrInvalidMaxRetries    = errors.New("scheduling: max retries must not be negative")
	ErrInvalidParameters    = errors.New("scheduling: parameters do not match job type")
	ErrInvalidTenantID      = errors.New("scheduling: invalid tenant ID")
)
