package handler

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/shopsync/backend/internal/domain/integration"
	"github.com/shopsync/backend/internal/domain/scheduling"
	"github.com/shopsync/backend/internal/infrastructure/scheduler"
	"github.com/shopsync/backend/internal/interfaces/http/dto"
)

// SyncScheduler is the write side of the sync API
type SyncScheduler interface {
	RunDueSchedules(ctx context.Context) (scheduler.SchedulerRunSummary, error)
	RunNow(ctx context.Context, tenantID uuid.UUID, jobType scheduling.JobType, platform integration.PlatformCode, params scheduling.JobParameters) (uuid.UUID, error)
	CancelJob(ctx context.Context, tenantID, jobID uuid.UUID) (*scheduling.Job, error)
	CreateSchedule(ctx context.Context, tenantID uuid.UUID, spec scheduling.ScheduleSpec) (*scheduling.Schedule, error)
	ProvisionDefaults(ctx context.Context, tenantID uuid.UUID) ([]scheduling.Schedule, error)
	DisableSchedule(ctx context.Context, tenantID, scheduleID uuid.UUID) (*scheduling.Schedule, error)
}

// JobReader reads jobs for a tenant
type JobReader interface {
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*scheduling.Job, error)
	FindByTenant(ctx context.Context, tenantID uuid.UUID, filter scheduling.JobFilter) ([]scheduling.Job, int64, error)
}

// ScheduleReader lists a tenant's schedules
type ScheduleReader interface {
	FindByTenant(ctx context.Context, tenantID uuid.UUID) ([]scheduling.Schedule, error)
}

// SyncLogReader reads the append-only sync log
type SyncLogReader interface {
	FindByJob(ctx context.Context, tenantID, jobID uuid.UUID) ([]scheduling.SyncLogEntry, error)
	FindRecent(ctx context.Context, tenantID uuid.UUID, limit int) ([]scheduling.SyncLogEntry, error)
}

// RateLimitReader reports rate budget without consuming it
type RateLimitReader interface {
	Remaining(ctx context.Context, tenantID uuid.UUID, platform integration.PlatformCode) (int, error)
	Ceiling(platform integration.PlatformCode) int
	Window() time.Duration
}

// SyncHandler serves the /sync endpoints
type SyncHandler struct {
	BaseHandler
	scheduler SyncScheduler
	jobs      JobReader
	schedules ScheduleReader
	logs      SyncLogReader
	limits    RateLimitReader
}

// NewSyncHandler creates a new SyncHandler
func NewSyncHandler(
	scheduler SyncScheduler,
	jobs JobReader,
	schedules ScheduleReader,
	logs SyncLogReader,
	limits RateLimitReader,
) *SyncHandler {
	return &SyncHandler{
		scheduler: scheduler,
		jobs:      jobs,
		schedules: schedules,
		logs:      logs,
		limits:    limits,
	}
}

// Tick runs one scheduler pass: due schedules become jobs and due jobs execute.
// POST /sync/tick
func (h *SyncHandler) Tick(c *gin.Context) {
	summary, err := h.scheduler.RunDueSchedules(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, summary)
}

// RunNow queues a high-priority job for the tenant.
// POST /sync/jobs
func (h *SyncHandler) RunNow(c *gin.Context) {
	tenantID, ok := h.requireTenant(c)
	if !ok {
		return
	}

	var req dto.RunNowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.ValidationError(c, err)
		return
	}

	jobID, err := h.scheduler.RunNow(
		c.Request.Context(),
		tenantID,
		scheduling.JobType(req.JobType),
		integration.PlatformCode(req.Platform),
		req.Parameters,
	)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Accepted(c, dto.RunNowResponse{JobID: jobID})
}

// ListJobs lists the tenant's jobs, newest first.
// GET /sync/jobs
func (h *SyncHandler) ListJobs(c *gin.Context) {
	tenantID, ok := h.requireTenant(c)
	if !ok {
		return
	}

	var req dto.ListJobsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.ValidationError(c, err)
		return
	}
	req.Normalize()

	jobs, total, err := h.jobs.FindByTenant(c.Request.Context(), tenantID, req.ToFilter())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, dto.ToJobResponses(jobs), total, req.Page, req.PageSize)
}

// GetJob returns one job.
// GET /sync/jobs/:id
func (h *SyncHandler) GetJob(c *gin.Context) {
	tenantID, ok := h.requireTenant(c)
	if !ok {
		return
	}
	jobID, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}

	job, err := h.jobs.FindByID(c.Request.Context(), tenantID, jobID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.ToJobResponse(job))
}

// CancelJob cancels a pending job.
// POST /sync/jobs/:id/cancel
func (h *SyncHandler) CancelJob(c *gin.Context) {
	tenantID, ok := h.requireTenant(c)
	if !ok {
		return
	}
	jobID, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}

	job, err := h.scheduler.CancelJob(c.Request.Context(), tenantID, jobID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.ToJobResponse(job))
}

// JobLogs returns the sync log entries of a job.
// GET /sync/jobs/:id/logs
func (h *SyncHandler) JobLogs(c *gin.Context) {
	tenantID, ok := h.requireTenant(c)
	if !ok {
		return
	}
	jobID, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}

	entries, err := h.logs.FindByJob(c.Request.Context(), tenantID, jobID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.ToSyncLogResponses(entries))
}

// RecentLogs returns the tenant's most recent sync log entries.
// GET /sync/logs
func (h *SyncHandler) RecentLogs(c *gin.Context) {
	tenantID, ok := h.requireTenant(c)
	if !ok {
		return
	}

	var req dto.LimitRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.ValidationError(c, err)
		return
	}

	entries, err := h.logs.FindRecent(c.Request.Context(), tenantID, req.LimitOrDefault())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.ToSyncLogResponses(entries))
}

// ListSchedules lists the tenant's schedules.
// GET /sync/schedules
func (h *SyncHandler) ListSchedules(c *gin.Context) {
	tenantID, ok := h.requireTenant(c)
	if !ok {
		return
	}

	schedules, err := h.schedules.FindByTenant(c.Request.Context(), tenantID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.ToScheduleResponses(schedules))
}

// CreateSchedule adds a schedule.
// POST /sync/schedules
func (h *SyncHandler) CreateSchedule(c *gin.Context) {
	tenantID, ok := h.requireTenant(c)
	if !ok {
		return
	}

	var req dto.CreateScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.ValidationError(c, err)
		return
	}

	schedule, err := h.scheduler.CreateSchedule(c.Request.Context(), tenantID, req.ToSpec())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, dto.ToScheduleResponse(schedule))
}

// ProvisionDefaults creates the default schedules the tenant is missing.
// POST /sync/schedules/defaults
func (h *SyncHandler) ProvisionDefaults(c *gin.Context) {
	tenantID, ok := h.requireTenant(c)
	if !ok {
		return
	}

	created, err := h.scheduler.ProvisionDefaults(c.Request.Context(), tenantID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.ToScheduleResponses(created))
}

// DisableSchedule retires a schedule.
// POST /sync/schedules/:id/disable
func (h *SyncHandler) DisableSchedule(c *gin.Context) {
	tenantID, ok := h.requireTenant(c)
	if !ok {
		return
	}
	scheduleID, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}

	schedule, err := h.scheduler.DisableSchedule(c.Request.Context(), tenantID, scheduleID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.ToScheduleResponse(schedule))
}

// RateLimit reports the tenant's remaining call budget on a platform.
// GET /sync/rate-limits/:platform
func (h *SyncHandler) RateLimit(c *gin.Context) {
	tenantID, ok := h.requireTenant(c)
	if !ok {
		return
	}
	platform, ok := h.pathPlatform(c)
	if !ok {
		return
	}

	remaining, err := h.limits.Remaining(c.Request.Context(), tenantID, platform)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.RateLimitResponse{
		Platform:      string(platform),
		Ceiling:       h.limits.Ceiling(platform),
		Remaining:     remaining,
		WindowSeconds: int64(h.limits.Window().Seconds()),
	})
}
