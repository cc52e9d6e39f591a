package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/shopsync/backend/internal/domain/scheduling"
)

// Start starts the periodic driver and the run-now worker pool
func (s *JobScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.queue = make(chan *scheduling.Job, s.config.QueueSize)
	queue := s.queue
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	// Start worker pool
	for i := 0; i < s.config.MaxConcurrentJobs; i++ {
		s.wg.Add(1)
		go s.worker(ctx, queue, i)
	}

	s.wg.Add(1)
	go s.tickLoop(ctx)

	s.logger.Info("Sync scheduler started",
		zap.Int("workers", s.config.MaxConcurrentJobs),
		zap.Duration("tick_interval", s.config.TickInterval),
		zap.Duration("job_timeout", s.config.JobTimeout),
	)
	return nil
}

// Stop gracefully stops the scheduler, waiting for running jobs until ctx is done
func (s *JobScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	close(s.queue)
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}

	// Wait for workers to finish with timeout
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Sync scheduler stopped gracefully")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Sync scheduler stop timed out")
		return ctx.Err()
	}
}

// IsRunning reports whether the driver is running
func (s *JobScheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isRunning
}

// SubmitJob hands a pending job to the worker pool
func (s *JobScheduler) SubmitJob(job *scheduling.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.isRunning {
		return ErrSchedulerNotRunning
	}

	select {
	case s.queue <- job:
		s.logger.Debug("Sync job submitted",
			zap.String("job_id", job.ID.String()),
			zap.String("tenant_id", job.TenantID.String()),
			zap.String("job_type", string(job.Type)),
		)
		return nil
	default:
		return ErrJobQueueFull
	}
}

// worker processes jobs from the queue
func (s *JobScheduler) worker(ctx context.Context, queue <-chan *scheduling.Job, workerID int) {
	defer s.wg.Done()

	s.logger.Debug("Sync worker started", zap.Int("worker_id", workerID))

	for {
		select {
		case <-ctx.Done():
			s.logger.Debug("Sync worker stopping", zap.Int("worker_id", workerID))
			return
		case job, ok := <-queue:
			if !ok {
				s.logger.Debug("Sync job queue closed", zap.Int("worker_id", workerID))
				return
			}
			report := s.runJob(ctx, job)
			if len(report.errs) > 0 {
				s.logger.Warn("Manual sync job finished with errors",
					zap.Int("worker_id", workerID),
					zap.String("job_id", job.ID.String()),
					zap.Strings("errors", report.errs),
				)
			}
		}
	}
}

// tickLoop runs due schedules on every tick
func (s *JobScheduler) tickLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.RunDueSchedules(ctx); err != nil {
				s.logger.Error("Scheduler tick failed", zap.Error(err))
			}
		}
	}
}
