package scheduler

import (
	"fmt"
	"time"
)

// Config holds configuration for the job scheduler, the executor and the retry coordinator
type Config struct {
	// Enabled starts the periodic driver with the server
	Enabled bool
	// TickInterval is how often the driver runs due schedules
	TickInterval time.Duration
	// MaxConcurrentJobs bounds jobs executing at the same time
	MaxConcurrentJobs int
	// QueueSize is the capacity of the run-now queue
	QueueSize int
	// JobTimeout is the maximum time a job can run
	JobTimeout time.Duration
	// MaxRetries is the retry budget given to new jobs
	MaxRetries int
	// RetryBaseDelay is the first retry delay; each later retry doubles it
	RetryBaseDelay time.Duration
	// RetryMaxDelay caps the retry delay. Zero means uncapped.
	RetryMaxDelay time.Duration
	// ChunkSize is how many items of one job are pushed concurrently
	ChunkSize int
	// ChunkPause is the pause between chunks
	ChunkPause time.Duration
	// DueBatchSize bounds schedules and jobs picked up per tick
	DueBatchSize int
	// OrderLookback is the default order pull window
	OrderLookback time.Duration
}

// DefaultConfig returns default configuration
func DefaultConfig() Config {
	return Config{
		Enabled:           true,
		TickInterval:      time.Minute,
		MaxConcurrentJobs: 5,
		QueueSize:         100,
		JobTimeout:        15 * time.Minute,
		MaxRetries:        3,
		RetryBaseDelay:    5 * time.Minute,
		RetryMaxDelay:     time.Hour,
		ChunkSize:         10,
		ChunkPause:        time.Second,
		DueBatchSize:      100,
		OrderLookback:     24 * time.Hour,
	}
}

// Validate validates the configuration
func (c Config) Validate() error {
	switch {
	case c.TickInterval <= 0:
		return fmt.Errorf("%w: tick interval must be positive", ErrInvalidConfig)
	case c.MaxConcurrentJobs <= 0:
		return fmt.Errorf("%w: max concurrent jobs must be positive", ErrInvalidConfig)
	case c.QueueSize <= 0:
		return fmt.Errorf("%w: queue size must be positive", ErrInvalidConfig)
	case c.JobTimeout <= 0:
		return fmt.Errorf("%w: job timeout must be positive", ErrInvalidConfig)
	case c.MaxRetries < 0:
		return fmt.Errorf("%w: max retries must not be negative", ErrInvalidConfig)
	case c.RetryBaseDelay <= 0:
		return fmt.Errorf("%w: retry base delay must be positive", ErrInvalidConfig)
	case c.RetryMaxDelay < 0:
		return fmt.Errorf("%w: retry max delay must not be negative", ErrInvalidConfig)
	case c.ChunkSize <= 0:
		return fmt.Errorf("%w: chunk size must be positive", ErrInvalidConfig)
	case c.ChunkPause < 0:
		return fmt.Errorf("%w: chunk pause must not be negative", ErrInvalidConfig)
	case c.DueBatchSize <= 0:
		return fmt.Errorf("%w: due batch size must be positive", ErrInvalidConfig)
	case c.OrderLookback <= 0:
		return fmt.Errorf("%w: order lookback must be positive", ErrInvalidConfig)
	}
	return nil
}
