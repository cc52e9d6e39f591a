package telemetry

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// SyncMetrics records the health of the synchronization core: job outcomes,
// job latency, rate-limit denials, detected changes and emitted notifications.
// A nil *SyncMetrics is valid and records nothing.
type SyncMetrics struct {
	logger *zap.Logger

	jobsTotal          *Counter
	jobDuration        *Histogram
	rateLimitDenials   *Counter
	changesDetected    *Counter
	notificationsTotal *Counter
	retriesTotal       *Counter
	dueJobs            *Gauge
}

// SyncMetricsConfig holds configuration for sync metrics.
type SyncMetricsConfig struct {
	Meter  metric.Meter
	Logger *zap.Logger
}

// NewSyncMetrics creates a new SyncMetrics instance.
func NewSyncMetrics(cfg SyncMetricsConfig) (*SyncMetrics, error) {
	if cfg.Meter == nil {
		return nil, ErrMeterNil
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	sm := &SyncMetrics{logger: logger}

	var err error
	sm.jobsTotal, err = NewCounter(
		cfg.Meter,
		"shopsync_sync_jobs_total",
		"Total number of sync jobs that reached a terminal status",
		"{jobs}",
	)
	if err != nil {
		return nil, err
	}

	sm.jobDuration, err = NewHistogram(cfg.Meter, HistogramOpts{
		Name:        "shopsync_sync_job_duration_seconds",
		Description: "Wall-clock duration of sync jobs",
		Unit:        "s",
		Boundaries:  JobDurationBuckets,
	})
	if err != nil {
		return nil, err
	}

	sm.rateLimitDenials, err = NewCounter(
		cfg.Meter,
		"shopsync_rate_limit_denials_total",
		"Platform calls refused by the per-tenant rate limiter",
		"{calls}",
	)
	if err != nil {
		return nil, err
	}

	sm.changesDetected, err = NewCounter(
		cfg.Meter,
		"shopsync_changes_detected_total",
		"Changes found by reconciliation",
		"{changes}",
	)
	if err != nil {
		return nil, err
	}

	sm.notificationsTotal, err = NewCounter(
		cfg.Meter,
		"shopsync_notifications_total",
		"Notifications handled by the emitter, by outcome",
		"{notifications}",
	)
	if err != nil {
		return nil, err
	}

	sm.retriesTotal, err = NewCounter(
		cfg.Meter,
		"shopsync_sync_retries_total",
		"Retry decisions for failed jobs, by outcome",
		"{jobs}",
	)
	if err != nil {
		return nil, err
	}

	sm.dueJobs, err = NewGauge(
		cfg.Meter,
		"shopsync_due_jobs",
		"Pending jobs found due at the last scheduler tick",
		"{jobs}",
	)
	if err != nil {
		return nil, err
	}

	return sm, nil
}

// RecordJob records a finished job.
// failureReason is empty for completed jobs.
func (m *SyncMetrics) RecordJob(ctx context.Context, tenantID uuid.UUID, jobType, platform, status, failureReason string, d time.Duration) {
	if m == nil {
		return
	}
	attrs := []attribute.KeyValue{
		AttrTenantID.String(tenantID.String()),
		AttrJobType.String(jobType),
		AttrPlatform.String(platform),
		AttrJobStatus.String(status),
	}
	if failureReason != "" {
		attrs = append(attrs, AttrFailureReason.String(failureReason))
	}
	m.jobsTotal.Inc(ctx, attrs...)
	m.jobDuration.RecordDuration(ctx, d,
		AttrJobType.String(jobType),
		AttrPlatform.String(platform),
		AttrJobStatus.String(status),
	)
}

// RecordRateLimitDenial records a platform call refused by the rate limiter.
func (m *SyncMetrics) RecordRateLimitDenial(ctx context.Context, tenantID uuid.UUID, platform string) {
	if m == nil {
		return
	}
	m.rateLimitDenials.Inc(ctx,
		AttrTenantID.String(tenantID.String()),
		AttrPlatform.String(platform),
	)
}

// RecordChanges records reconciliation changes of one kind.
func (m *SyncMetrics) RecordChanges(ctx context.Context, platform, kind string, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.changesDetected.Add(ctx, int64(count),
		AttrPlatform.String(platform),
		AttrChangeKind.String(kind),
	)
}

// RecordNotifications records created and deduplicated notifications.
func (m *SyncMetrics) RecordNotifications(ctx context.Context, platform string, created, skipped int) {
	if m == nil {
		return
	}
	if created > 0 {
		m.notificationsTotal.Add(ctx, int64(created),
			AttrPlatform.String(platform),
			AttrOutcome.String("created"),
		)
	}
	if skipped > 0 {
		m.notificationsTotal.Add(ctx, int64(skipped),
			AttrPlatform.String(platform),
			AttrOutcome.String("skipped"),
		)
	}
}

// RecordRetry records a retry decision; outcome is "scheduled", "exhausted" or "not_retryable".
func (m *SyncMetrics) RecordRetry(ctx context.Context, jobType, outcome string) {
	if m == nil {
		return
	}
	m.retriesTotal.Inc(ctx,
		AttrJobType.String(jobType),
		AttrOutcome.String(outcome),
	)
}

// RecordDueJobs records how many pending jobs a tick found.
func (m *SyncMetrics) RecordDueJobs(ctx context.Context, count int) {
	if m == nil {
		return
	}
	m.dueJobs.Record(ctx, int64(count))
}

// =============================================================================
// Error Types
// =============================================================================

// ErrMeterNil is returned when meter is nil.
var ErrMeterNil = &MetricsError{Op: "NewSyncMetrics", Err: "meter cannot be nil"}

// MetricsError represents a metrics-related error.
type MetricsError struct {
	Op  string
	Err string
}

func (e *MetricsError) Error() string {
	return e.Op + ": " + e.Err
}
