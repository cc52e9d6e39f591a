package scheduler

import "errors"

var (
	// ErrSchedulerNotRunning is returned when trying to submit a job to a stopped scheduler
	ErrSchedulerNotRunning = errors.New("scheduler: not running")

	// ErrJobQueueFull is returned when the job queue is full
	ErrJobQueueFull = errors.New("scheduler: job queue is full")

	// ErrInvalidConfig is returned when configuration is invalid
	ErrInvalidConfig = errors.New("scheduler: invalid configuration")

	// ---------------------------------------------------------------------------
	// Execution Errors
	// ---------------------------------------------------------------------------

	// ErrRateLimited is returned when the local rate limiter refuses a platform call
	ErrRateLimited = errors.New("scheduler: platform call refused by rate limiter")

	// ErrUnknownJobType is returned when a job has no runner
	ErrUnknownJobType = errors.New("scheduler: unknown job type")

	// ErrJobPanicked is returned when a job runner panicked
	ErrJobPanicked = errors.New("scheduler: job panicked")

	// ---------------------------------------------------------------------------
	// Retry Errors
	// ---------------------------------------------------------------------------

	// ErrJobNotFailed is returned when asking the retry coordinator about a job that did not fail
	ErrJobNotFailed = errors.New("scheduler: job has not failed")
)
