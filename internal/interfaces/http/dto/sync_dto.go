package dto

import (
	"time"

	"github.com/google/uuid"

	"github.com/shopsync/backend/internal/domain/integration"
	"github.com/shopsync/backend/internal/domain/notification"
	"github.com/shopsync/backend/internal/domain/scheduling"
)

// ---------------------------------------------------------------------------
// Requests
// ---------------------------------------------------------------------------

// RunNowRequest asks for an immediate job outside any schedule
type RunNowRequest struct {
	JobType    string                   `json:"job_type" binding:"required,oneof=inventory_sync order_monitor status_sync"`
	Platform   string                   `json:"platform" binding:"required,oneof=shopee tiktokshop all"`
	Parameters scheduling.JobParameters `json:"parameters"`
}

// CreateScheduleRequest adds a recurring schedule. Either interval_minutes
// or cron_expression is required.
type CreateScheduleRequest struct {
	JobType         string                   `json:"job_type" binding:"required,oneof=inventory_sync order_monitor status_sync"`
	Platform        string                   `json:"platform" binding:"required,oneof=shopee tiktokshop all"`
	IntervalMinutes int                      `json:"interval_minutes" binding:"omitempty,min=1"`
	CronExpression  string                   `json:"cron_expression" binding:"omitempty,max=100"`
	Priority        int                      `json:"priority" binding:"omitempty,oneof=1 5 10"`
	MaxFailures     int                      `json:"max_failures" binding:"omitempty,min=1"`
	Parameters      scheduling.JobParameters `json:"parameters"`
}

// ToSpec converts the request to a domain schedule spec
func (r CreateScheduleRequest) ToSpec() scheduling.ScheduleSpec {
	return scheduling.ScheduleSpec{
		JobType:         scheduling.JobType(r.JobType),
		Platform:        integration.PlatformCode(r.Platform),
		IntervalMinutes: r.IntervalMinutes,
		CronExpression:  r.CronExpression,
		Priority:        scheduling.Priority(r.Priority),
		MaxFailures:     r.MaxFailures,
		Parameters:      r.Parameters,
	}
}

// ListJobsRequest filters the job listing
type ListJobsRequest struct {
	PageRequest
	Status     string `form:"status" binding:"omitempty,oneof=pending running completed failed cancelled"`
	JobType    string `form:"job_type" binding:"omitempty,oneof=inventory_sync order_monitor status_sync"`
	ScheduleID string `form:"schedule_id" binding:"omitempty,uuid"`
}

// ToFilter converts the request to a repository filter
func (r ListJobsRequest) ToFilter() scheduling.JobFilter {
	filter := scheduling.JobFilter{
		Status:   scheduling.JobStatus(r.Status),
		Type:     scheduling.JobType(r.JobType),
		Page:     r.Page,
		PageSize: r.PageSize,
	}
	if r.ScheduleID != "" {
		if id, err := uuid.Parse(r.ScheduleID); err == nil {
			filter.ScheduleID = &id
		}
	}
	return filter
}

// LimitRequest bounds feed-style listings
type LimitRequest struct {
	Limit int `form:"limit" binding:"omitempty,min=1,max=200"`
}

// LimitOrDefault returns the limit, or 50 when unset
func (r LimitRequest) LimitOrDefault() int {
	if r.Limit == 0 {
		return 50
	}
	return r.Limit
}

// ---------------------------------------------------------------------------
// Responses
// ---------------------------------------------------------------------------

// RunNowResponse returns the created job ID
type RunNowResponse struct {
	JobID uuid.UUID `json:"job_id"`
}

// JobResponse represents a sync job
type JobResponse struct {
	ID            uuid.UUID                `json:"id"`
	ScheduleID    *uuid.UUID               `json:"schedule_id,omitempty"`
	ParentJobID   *uuid.UUID               `json:"parent_job_id,omitempty"`
	JobType       string                   `json:"job_type"`
	Platform      string                   `json:"platform"`
	Status        string                   `json:"status"`
	Priority      int                      `json:"priority"`
	ScheduledAt   time.Time                `json:"scheduled_at"`
	StartedAt     *time.Time               `json:"started_at,omitempty"`
	CompletedAt   *time.Time               `json:"completed_at,omitempty"`
	RetryCount    int                      `json:"retry_count"`
	MaxRetries    int                      `json:"max_retries"`
	Parameters    scheduling.JobParameters `json:"parameters"`
	Result        *scheduling.JobResult    `json:"result,omitempty"`
	FailureReason string                   `json:"failure_reason,omitempty"`
	ErrorMessage  string                   `json:"error_message,omitempty"`
	CreatedAt     time.Time                `json:"created_at"`
}

// ToJobResponse converts a domain job
func ToJobResponse(j *scheduling.Job) JobResponse {
	return JobResponse{
		ID:            j.ID,
		ScheduleID:    j.ScheduleID,
		ParentJobID:   j.ParentJobID,
		JobType:       string(j.Type),
		Platform:      string(j.Platform),
		Status:        string(j.Status),
		Priority:      int(j.Priority),
		ScheduledAt:   j.ScheduledAt,
		StartedAt:     j.StartedAt,
		CompletedAt:   j.CompletedAt,
		RetryCount:    j.RetryCount,
		MaxRetries:    j.MaxRetries,
		Parameters:    j.Parameters,
		Result:        j.Result,
		FailureReason: string(j.FailureReason),
		ErrorMessage:  j.ErrorMessage,
		CreatedAt:     j.CreatedAt,
	}
}

// ToJobResponses converts a slice of jobs
func ToJobResponses(jobs []scheduling.Job) []JobResponse {
	out := make([]JobResponse, len(jobs))
	for i := range jobs {
		out[i] = ToJobResponse(&jobs[i])
	}
	return out
}

// ScheduleResponse represents a sync schedule
type ScheduleResponse struct {
	ID              uuid.UUID                `json:"id"`
	JobType         string                   `json:"job_type"`
	Platform        string                   `json:"platform"`
	IntervalMinutes int                      `json:"interval_minutes,omitempty"`
	CronExpression  string                   `json:"cron_expression,omitempty"`
	Enabled         bool                     `json:"enabled"`
	Priority        int                      `json:"priority"`
	LastRun         *time.Time               `json:"last_run,omitempty"`
	NextRun         time.Time                `json:"next_run"`
	FailureCount    int                      `json:"failure_count"`
	MaxFailures     int                      `json:"max_failures"`
	Parameters      scheduling.JobParameters `json:"parameters"`
	CreatedAt       time.Time                `json:"created_at"`
	UpdatedAt       time.Time                `json:"updated_at"`
}

// ToScheduleResponse converts a domain schedule
func ToScheduleResponse(s *scheduling.Schedule) ScheduleResponse {
	return ScheduleResponse{
		ID:              s.ID,
		JobType:         string(s.JobType),
		Platform:        string(s.Platform),
		IntervalMinutes: s.IntervalMinutes,
		CronExpression:  s.CronExpression,
		Enabled:         s.Enabled,
		Priority:        int(s.Priority),
		LastRun:         s.LastRun,
		NextRun:         s.NextRun,
		FailureCount:    s.FailureCount,
		MaxFailures:     s.MaxFailures,
		Parameters:      s.Parameters,
		CreatedAt:       s.CreatedAt,
		UpdatedAt:       s.UpdatedAt,
	}
}

// ToScheduleResponses converts a slice of schedules
func ToScheduleResponses(schedules []scheduling.Schedule) []ScheduleResponse {
	out := make([]ScheduleResponse, len(schedules))
	for i := range schedules {
		out[i] = ToScheduleResponse(&schedules[i])
	}
	return out
}

// SyncLogResponse represents one sync log entry
type SyncLogResponse struct {
	ID                   uuid.UUID                `json:"id"`
	JobID                uuid.UUID                `json:"job_id"`
	ScheduleID           *uuid.UUID               `json:"schedule_id,omitempty"`
	JobType              string                   `json:"job_type"`
	Platform             string                   `json:"platform"`
	Status               string                   `json:"status"`
	ItemsProcessed       int                      `json:"items_processed"`
	ItemsSucceeded       int                      `json:"items_succeeded"`
	ItemsFailed          int                      `json:"items_failed"`
	APICalls             int                      `json:"api_calls"`
	ChangesDetected      int                      `json:"changes_detected"`
	NotificationsCreated int                      `json:"notifications_created"`
	DurationMs           int64                    `json:"duration_ms"`
	StartedAt            time.Time                `json:"started_at"`
	CompletedAt          time.Time                `json:"completed_at"`
	ErrorDetails         *scheduling.ErrorDetails `json:"error_details,omitempty"`
}

// ToSyncLogResponses converts sync log entries
func ToSyncLogResponses(entries []scheduling.SyncLogEntry) []SyncLogResponse {
	out := make([]SyncLogResponse, len(entries))
	for i, e := range entries {
		out[i] = SyncLogResponse{
			ID:                   e.ID,
			JobID:                e.JobID,
			ScheduleID:           e.ScheduleID,
			JobType:              string(e.JobType),
			Platform:             string(e.Platform),
			Status:               string(e.Status),
			ItemsProcessed:       e.ItemsProcessed,
			ItemsSucceeded:       e.ItemsSucceeded,
			ItemsFailed:          e.ItemsFailed,
			APICalls:             e.APICalls,
			ChangesDetected:      e.ChangesDetected,
			NotificationsCreated: e.NotificationsCreated,
			DurationMs:           e.Duration.Milliseconds(),
			StartedAt:            e.StartedAt,
			CompletedAt:          e.CompletedAt,
		}
		if !e.ErrorDetails.IsEmpty() {
			details := e.ErrorDetails
			out[i].ErrorDetails = &details
		}
	}
	return out
}

// NotificationResponse represents an active notification
type NotificationResponse struct {
	ID        uuid.UUID             `json:"id"`
	Type      string                `json:"type"`
	Priority  string                `json:"priority"`
	Title     string                `json:"title"`
	Message   string                `json:"message"`
	Kind      string                `json:"kind"`
	EntityID  string                `json:"entity_id"`
	Metadata  notification.Metadata `json:"metadata"`
	ExpiresAt *time.Time            `json:"expires_at,omitempty"`
	CreatedAt time.Time             `json:"created_at"`
}

// ToNotificationResponses converts notifications
func ToNotificationResponses(items []notification.Notification) []NotificationResponse {
	out := make([]NotificationResponse, len(items))
	for i, n := range items {
		out[i] = NotificationResponse{
			ID:        n.ID,
			Type:      string(n.Type),
			Priority:  string(n.Priority),
			Title:     n.Title,
			Message:   n.Message,
			Kind:      n.Kind,
			EntityID:  n.EntityID,
			Metadata:  n.Metadata,
			ExpiresAt: n.ExpiresAt,
			CreatedAt: n.CreatedAt,
		}
	}
	return out
}

// RateLimitResponse reports the tenant's remaining budget on a platform
type RateLimitResponse struct {
	Platform      string `json:"platform"`
	Ceiling       int    `json:"ceiling"`
	Remaining     int    `json:"remaining"`
	WindowSeconds int64  `json:"window_seconds"`
}
