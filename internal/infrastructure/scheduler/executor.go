package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/shopsync/backend/internal/application/alert"
	"github.com/shopsync/backend/internal/domain/integration"
	"github.com/shopsync/backend/internal/domain/reconciliation"
	"github.com/shopsync/backend/internal/domain/scheduling"
	"github.com/shopsync/backend/internal/infrastructure/logger"
	"github.com/shopsync/backend/internal/infrastructure/telemetry"
)

// ---------------------------------------------------------------------------
// Ports
// ---------------------------------------------------------------------------

// RateLimiter gates platform calls per tenant and platform
type RateLimiter interface {
	Admit(ctx context.Context, tenantID uuid.UUID, platform integration.PlatformCode) bool
	Record(ctx context.Context, tenantID uuid.UUID, platform integration.PlatformCode)
	Window() time.Duration
}

// AlertEmitter turns changes and sync failures into notifications
type AlertEmitter interface {
	EmitAll(ctx context.Context, tenantID uuid.UUID, changes []reconciliation.Change) (created, skipped int, err error)
	EmitSystem(ctx context.Context, a alert.SystemAlert) (alert.EmitResult, error)
}

// JobExecutor runs one job to a terminal status
type JobExecutor interface {
	Execute(ctx context.Context, job *scheduling.Job) (*ExecutionOutcome, error)
}

// ---------------------------------------------------------------------------
// Executor
// ---------------------------------------------------------------------------

// ExecutionOutcome is the result of Execute
type ExecutionOutcome struct {
	Job *scheduling.Job
	// Claimed is false when another executor claimed the job first or it was
	// cancelled; nothing was run in that case.
	Claimed     bool
	LogEntry    *scheduling.SyncLogEntry
	Ambiguities []reconciliation.Ambiguity
}

// ExecutorDeps are the collaborators of the Executor
type ExecutorDeps struct {
	Jobs        scheduling.JobRepository
	Logs        scheduling.SyncLogRepository
	Platforms   integration.EcommercePlatformRegistry
	Credentials integration.CredentialStore
	Orders      integration.OrderSnapshotRepository
	Products    integration.ProductSnapshotRepository
	Limiter     RateLimiter
	Engine      *reconciliation.Engine
	Emitter     AlertEmitter
	// Metrics is optional
	Metrics *telemetry.SyncMetrics
}

func (d ExecutorDeps) validate() error {
	switch {
	case d.Jobs == nil, d.Logs == nil:
		return fmt.Errorf("%w: executor requires job and sync log repositories", ErrInvalidConfig)
	case d.Platforms == nil, d.Credentials == nil:
		return fmt.Errorf("%w: executor requires a platform registry and a credential store", ErrInvalidConfig)
	case d.Orders == nil, d.Products == nil:
		return fmt.Errorf("%w: executor requires snapshot repositories", ErrInvalidConfig)
	case d.Limiter == nil, d.Engine == nil, d.Emitter == nil:
		return fmt.Errorf("%w: executor requires a rate limiter, a reconciliation engine and an emitter", ErrInvalidConfig)
	}
	return nil
}

// Executor runs sync jobs: it claims the job, calls the platforms through the
// rate limiter, reconciles, emits notifications, stores snapshots and writes
// the terminal status and sync log entry.
type Executor struct {
	config Config
	deps   ExecutorDeps
	logger *zap.Logger
	now    func() time.Time
	pause  func(ctx context.Context, d time.Duration) error
}

// ExecutorOption configures an Executor
type ExecutorOption func(*Executor)

// WithExecutorClock sets the time source
func WithExecutorClock(now func() time.Time) ExecutorOption {
	return func(e *Executor) {
		e.now = now
	}
}

// WithChunkPauser replaces the inter-chunk pause
func WithChunkPauser(pause func(ctx context.Context, d time.Duration) error) ExecutorOption {
	return func(e *Executor) {
		e.pause = pause
	}
}

// NewExecutor creates a new Executor
func NewExecutor(config Config, deps ExecutorDeps, logger *zap.Logger, opts ...ExecutorOption) (*Executor, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if err := deps.validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Executor{
		config: config,
		deps:   deps,
		logger: logger,
		now:    time.Now,
		pause:  sleepContext,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

var _ JobExecutor = (*Executor)(nil)

// Execute runs a pending job. Platform, limiter and reconciliation failures
// become a failed job; the returned error is reserved for failures to claim
// or persist the job itself.
func (e *Executor) Execute(ctx context.Context, job *scheduling.Job) (*ExecutionOutcome, error) {
	startedAt := e.now()
	claimed, err := e.deps.Jobs.Claim(ctx, job.ID, startedAt)
	if err != nil {
		return nil, fmt.Errorf("claim job %s: %w", job.ID, err)
	}
	if !claimed {
		e.logger.Debug("Sync job already claimed or cancelled",
			zap.String("job_id", job.ID.String()),
			zap.String("tenant_id", job.TenantID.String()),
		)
		return &ExecutionOutcome{Job: job}, nil
	}
	if err := job.Start(startedAt); err != nil {
		return nil, fmt.Errorf("start job %s: %w", job.ID, err)
	}

	ctx, span := telemetry.StartSpan(ctx, "sync_job.execute",
		telemetry.WithAttribute(telemetry.SpanAttrTenantID, job.TenantID.String()),
		telemetry.WithAttribute(telemetry.SpanAttrJobID, job.ID.String()),
		telemetry.WithAttribute(telemetry.SpanAttrJobType, string(job.Type)),
		telemetry.WithAttribute(telemetry.SpanAttrPlatform, string(job.Platform)),
		telemetry.WithAttribute(telemetry.SpanAttrRetryCount, job.RetryCount),
	)
	defer span.End()

	ctx, log := logger.WithJobID(ctx, e.logger.With(
		zap.String("tenant_id", job.TenantID.String()),
		zap.String("job_type", string(job.Type)),
		zap.String("platform", string(job.Platform)),
	), job.ID.String())
	log = logger.WithTraceContext(ctx, log)
	log.Info("Executing sync job", zap.Int("retry_count", job.RetryCount))

	run := newJobRun(job)
	jobCtx, cancel := context.WithTimeout(ctx, e.config.JobTimeout)
	runErr := e.run(jobCtx, run, log)
	cancel()

	outcome, err := e.finish(ctx, run, runErr, log)
	if runErr != nil {
		telemetry.RecordError(span, runErr)
		telemetry.SetAttribute(span, telemetry.SpanAttrFailureReason, string(job.FailureReason))
	} else {
		telemetry.SetOK(span)
	}
	telemetry.SetAttributes(span,
		telemetry.SpanAttrItemsProcessed, run.result.ItemsProcessed,
		telemetry.SpanAttrChanges, run.result.ChangesDetected,
	)
	return outcome, err
}

// run executes every platform of the job and returns the job-level error
func (e *Executor) run(ctx context.Context, run *jobRun, log *zap.Logger) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrJobPanicked, r)
		}
	}()

	adapters, err := e.deps.Platforms.Resolve(run.job.Platform)
	if err != nil {
		return fmt.Errorf("resolve platforms: %w", err)
	}
	for _, adapter := range adapters {
		if err := e.runPlatform(ctx, run, adapter); err != nil {
			log.Warn("Platform sync failed",
				zap.String("target_platform", string(adapter.PlatformCode())),
				zap.String("failure_reason", string(classify(err))),
				zap.Error(err),
			)
			run.platformFailed(adapter.PlatformCode(), err)
		}
	}
	return run.err
}

func (e *Executor) runPlatform(ctx context.Context, run *jobRun, adapter integration.EcommercePlatform) error {
	code := adapter.PlatformCode()
	cred, err := e.deps.Credentials.GetCredential(ctx, run.job.TenantID, code)
	if err != nil {
		return fmt.Errorf("load %s credential: %w", code, err)
	}
	if cred.IsExpired(e.now()) {
		return integration.NewAuthError(code, "credential", integration.ErrCredentialExpired)
	}

	pc := platformCall{adapter: adapter, cred: cred, code: code}
	switch run.job.Type {
	case scheduling.JobTypeOrderMonitor:
		return e.monitorOrders(ctx, run, pc)
	case scheduling.JobTypeInventorySync:
		return e.syncInventory(ctx, run, pc)
	case scheduling.JobTypeStatusSync:
		return e.syncStatuses(ctx, run, pc)
	}
	return fmt.Errorf("%w: %s", ErrUnknownJobType, run.job.Type)
}

// call runs one adapter operation with the job's request gate installed.
// An operation may page through many HTTP requests; the adapter passes each
// of them through the gate, so every request is admitted by the rate limiter
// and every attempted request is recorded.
func (e *Executor) call(ctx context.Context, run *jobRun, fn func(context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(integration.WithRequestGate(ctx, requestGate{limiter: e.deps.Limiter, metrics: e.deps.Metrics, run: run}))
}

// requestGate admits the platform requests of one job run
type requestGate struct {
	limiter RateLimiter
	metrics *telemetry.SyncMetrics
	run     *jobRun
}

func (g requestGate) Admit(ctx context.Context, platform integration.PlatformCode) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tenantID := g.run.job.TenantID
	if !g.limiter.Admit(ctx, tenantID, platform) {
		g.metrics.RecordRateLimitDenial(ctx, tenantID, string(platform))
		return fmt.Errorf("%w: %s", ErrRateLimited, platform)
	}
	return nil
}

func (g requestGate) Record(ctx context.Context, platform integration.PlatformCode) {
	g.limiter.Record(ctx, g.run.job.TenantID, platform)
	g.run.apiCall()
}

// publish logs ambiguities, records change metrics and emits notifications
func (e *Executor) publish(ctx context.Context, run *jobRun, code integration.PlatformCode, res reconciliation.Result) error {
	for _, a := range res.Ambiguities {
		logger.FromContext(ctx, e.logger).Warn("Conflicting order reports at the same remote timestamp",
			zap.String("platform", string(a.Platform)),
			zap.String("platform_order_id", a.PlatformOrderID),
			zap.Time("reported_at", a.ReportedAt),
			zap.String("chosen_status", string(a.Chosen)),
		)
	}

	perKind := make(map[reconciliation.Kind]int)
	for _, c := range res.Changes {
		perKind[c.Kind]++
	}
	for kind, n := range perKind {
		e.deps.Metrics.RecordChanges(ctx, string(code), string(kind), n)
	}

	created, skipped, err := e.deps.Emitter.EmitAll(ctx, run.job.TenantID, res.Changes)
	run.reconciled(len(res.Changes), created, skipped, res.Ambiguities)
	e.deps.Metrics.RecordNotifications(ctx, string(code), created, skipped)
	if err != nil {
		return fmt.Errorf("emit notifications: %w", err)
	}
	return nil
}

// finish writes the terminal status and the sync log entry
func (e *Executor) finish(ctx context.Context, run *jobRun, runErr error, log *zap.Logger) (*ExecutionOutcome, error) {
	job := run.job
	now := e.now()
	details := scheduling.ErrorDetails{ItemFailures: run.failures}

	if runErr == nil {
		if err := job.Complete(now, run.result); err != nil {
			return nil, err
		}
	} else {
		reason := classify(runErr)
		details.Reason = reason
		details.Message = runErr.Error()
		if err := job.Fail(now, reason, runErr.Error(), run.result); err != nil {
			return nil, err
		}
	}

	// The job deadline or a shutdown must not prevent recording the outcome.
	ctx = context.WithoutCancel(ctx)
	if err := e.deps.Jobs.Save(ctx, job); err != nil {
		log.Error("Failed to save sync job result", zap.Error(err))
		return nil, fmt.Errorf("save job %s: %w", job.ID, err)
	}

	entry := scheduling.NewSyncLogEntry(job, details)
	if err := e.deps.Logs.Append(ctx, entry); err != nil {
		log.Error("Failed to append sync log entry", zap.Error(err))
	}

	e.deps.Metrics.RecordJob(ctx, job.TenantID, string(job.Type), string(job.Platform),
		string(job.Status), string(job.FailureReason), job.Duration())

	fields := []zap.Field{
		zap.String("status", string(job.Status)),
		zap.Duration("duration", job.Duration()),
		zap.Int("items_processed", run.result.ItemsProcessed),
		zap.Int("items_failed", run.result.ItemsFailed),
		zap.Int("api_calls", run.result.APICalls),
		zap.Int("changes_detected", run.result.ChangesDetected),
		zap.Int("notifications_created", run.result.NotificationsCreated),
	}
	if runErr != nil {
		log.Warn("Sync job failed", append(fields,
			zap.String("failure_reason", string(job.FailureReason)),
			zap.Error(runErr),
		)...)
	} else {
		log.Info("Sync job completed", fields...)
	}

	return &ExecutionOutcome{
		Job:         job,
		Claimed:     true,
		LogEntry:    entry,
		Ambiguities: run.ambiguities,
	}, nil
}

// ---------------------------------------------------------------------------
// Failure classification
// ---------------------------------------------------------------------------

// classify maps an execution error to the job failure reason
func classify(err error) scheduling.FailureReason {
	var pe *integration.PlatformError
	switch {
	case err == nil:
		return scheduling.FailureReasonNone
	case errors.Is(err, ErrRateLimited):
		return scheduling.FailureReasonRateLimited
	case errors.As(err, &pe):
		return scheduling.FailureReasonFromKind(pe.Kind)
	case errors.Is(err, integration.ErrCredentialNotFound),
		errors.Is(err, integration.ErrCredentialExpired),
		errors.Is(err, integration.ErrPlatformAuthFailed):
		return scheduling.FailureReasonAuth
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return scheduling.FailureReasonTransient
	default:
		return scheduling.FailureReasonInternal
	}
}

// severity ranks failure reasons; lower wins when several platforms fail
func severity(r scheduling.FailureReason) int {
	switch r {
	case scheduling.FailureReasonAuth:
		return 0
	case scheduling.FailureReasonPermanent:
		return 1
	case scheduling.FailureReasonInternal:
		return 2
	case scheduling.FailureReasonRateLimited:
		return 3
	default:
		return 4
	}
}

// ---------------------------------------------------------------------------
// jobRun
// ---------------------------------------------------------------------------

type platformCall struct {
	adapter integration.EcommercePlatform
	cred    *integration.Credential
	code    integration.PlatformCode
}

// jobRun accumulates the counters of one execution. Items of a chunk report
// concurrently.
type jobRun struct {
	job *scheduling.Job

	mu          sync.Mutex
	result      scheduling.JobResult
	failures    []scheduling.ItemFailure
	ambiguities []reconciliation.Ambiguity
	err         error
	reason      scheduling.FailureReason
}

func newJobRun(job *scheduling.Job) *jobRun {
	return &jobRun{job: job}
}

func (r *jobRun) apiCall() {
	r.mu.Lock()
	r.result.APICalls++
	r.mu.Unlock()
}

// pulled counts entities fetched and stored
func (r *jobRun) pulled(n int) {
	r.mu.Lock()
	r.result.ItemsProcessed += n
	r.result.ItemsSucceeded += n
	r.mu.Unlock()
}

func (r *jobRun) itemSucceeded() {
	r.pulled(1)
}

func (r *jobRun) reconciled(changes, created, skipped int, ambiguities []reconciliation.Ambiguity) {
	r.mu.Lock()
	r.result.ChangesDetected += changes
	r.result.NotificationsCreated += created
	r.result.NotificationsSkipped += skipped
	r.ambiguities = append(r.ambiguities, ambiguities...)
	r.mu.Unlock()
}

// itemFailed records a failed item. It returns err when the rest of the
// platform's items cannot proceed (rate limit reached or credential
// rejected); such items are not counted since the platform failure covers them.
func (r *jobRun) itemFailed(platform integration.PlatformCode, itemID string, err error) error {
	reason := classify(err)
	if reason == scheduling.FailureReasonRateLimited || reason == scheduling.FailureReasonAuth {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.result.ItemsProcessed++
	r.result.ItemsFailed++
	r.failures = append(r.failures, scheduling.ItemFailure{
		Platform: platform,
		ItemID:   itemID,
		Reason:   reason,
		Message:  err.Error(),
	})
	// A transient item failure fails the job so that it is retried; the
	// upserts make the retry safe.
	if reason == scheduling.FailureReasonTransient {
		r.setErr(err, reason)
	}
	return nil
}

func (r *jobRun) platformFailed(platform integration.PlatformCode, err error) {
	reason := classify(err)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures = append(r.failures, scheduling.ItemFailure{
		Platform: platform,
		Reason:   reason,
		Message:  err.Error(),
	})
	r.setErr(err, reason)
}

// setErr keeps the most severe error. Caller holds mu.
func (r *jobRun) setErr(err error, reason scheduling.FailureReason) {
	if r.err == nil || severity(reason) < severity(r.reason) {
		r.err = err
		r.reason = reason
	}
}
