package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/shopsync/backend/internal/domain/integration"
	"github.com/shopsync/backend/internal/domain/scheduling"
)

// ---------------------------------------------------------------------------
// SyncScheduleModel
// ---------------------------------------------------------------------------

// SyncScheduleModel is the persistence model for the Schedule domain entity.
type SyncScheduleModel struct {
	TenantModel
	JobType         scheduling.JobType       `gorm:"type:varchar(32);not null;index:idx_sync_schedule_tenant_type,priority:2"`
	Platform        integration.PlatformCode `gorm:"type:varchar(20);not null;index:idx_sync_schedule_tenant_type,priority:3"`
	IntervalMinutes int                      `gorm:"not null;default:0"`
	CronExpression  string                   `gorm:"type:varchar(100)"`
	Enabled         bool                     `gorm:"not null;default:true;index:idx_sync_schedule_due,priority:1"`
	Priority        int                      `gorm:"not null;default:5"`
	LastRun         *time.Time
	NextRun         time.Time `gorm:"not null;index:idx_sync_schedule_due,priority:2"`
	FailureCount    int       `gorm:"not null;default:0"`
	MaxFailures     int       `gorm:"not null;default:5"`
	ParametersJSON  string    `gorm:"type:jsonb;column:parameters"`
}

// TableName returns the table name for GORM
func (SyncScheduleModel) TableName() string {
	return "sync_schedules"
}

// ToDomain converts the persistence model to a domain Schedule.
func (m *SyncScheduleModel) ToDomain() *scheduling.Schedule {
	s := &scheduling.Schedule{
		TenantEntity:    m.ToTenantEntity(),
		JobType:         m.JobType,
		Platform:        m.Platform,
		IntervalMinutes: m.IntervalMinutes,
		CronExpression:  m.CronExpression,
		Enabled:         m.Enabled,
		Priority:        scheduling.Priority(m.Priority),
		LastRun:         m.LastRun,
		NextRun:         m.NextRun,
		FailureCount:    m.FailureCount,
		MaxFailures:     m.MaxFailures,
	}
	s.Parameters = decodeParameters(m.ParametersJSON)
	return s
}

// FromDomain populates the persistence model from a domain Schedule.
func (m *SyncScheduleModel) FromDomain(s *scheduling.Schedule) {
	m.FromDomainTenantEntity(s.TenantEntity)
	m.JobType = s.JobType
	m.Platform = s.Platform
	m.IntervalMinutes = s.IntervalMinutes
	m.CronExpression = s.CronExpression
	m.Enabled = s.Enabled
	m.Priority = int(s.Priority)
	m.LastRun = utcPtr(s.LastRun)
	m.NextRun = s.NextRun.UTC()
	m.FailureCount = s.FailureCount
	m.MaxFailures = s.MaxFailures
	m.ParametersJSON = encodeJSON(s.Parameters, "{}")
}

// SyncScheduleModelFromDomain creates a new persistence model from a domain Schedule.
func SyncScheduleModelFromDomain(s *scheduling.Schedule) *SyncScheduleModel {
	m := &SyncScheduleModel{}
	m.FromDomain(s)
	return m
}

// ---------------------------------------------------------------------------
// SyncJobModel
// ---------------------------------------------------------------------------

// SyncJobModel is the persistence model for the Job domain entity.
type SyncJobModel struct {
	TenantModel
	ScheduleID     *uuid.UUID               `gorm:"type:uuid;index"`
	ParentJobID    *uuid.UUID               `gorm:"type:uuid;index"`
	Type           scheduling.JobType       `gorm:"type:varchar(32);not null"`
	Platform       integration.PlatformCode `gorm:"type:varchar(20);not null"`
	Status         scheduling.JobStatus     `gorm:"type:varchar(20);not null;index:idx_sync_job_due,priority:1"`
	Priority       int                      `gorm:"not null;default:5"`
	ScheduledAt    time.Time                `gorm:"not null;index:idx_sync_job_due,priority:2"`
	StartedAt      *time.Time
	CompletedAt    *time.Time
	RetryCount     int                      `gorm:"not null;default:0"`
	MaxRetries     int                      `gorm:"not null;default:0"`
	ParametersJSON string                   `gorm:"type:jsonb;column:parameters"`
	ResultJSON     string                   `gorm:"type:jsonb;column:result"`
	FailureReason  scheduling.FailureReason `gorm:"type:varchar(20)"`
	ErrorMessage   string                   `gorm:"type:text"`
}

// TableName returns the table name for GORM
func (SyncJobModel) TableName() string {
	return "sync_jobs"
}

// ToDomain converts the persistence model to a domain Job.
func (m *SyncJobModel) ToDomain() *scheduling.Job {
	j := &scheduling.Job{
		TenantEntity:  m.ToTenantEntity(),
		ScheduleID:    m.ScheduleID,
		ParentJobID:   m.ParentJobID,
		Type:          m.Type,
		Platform:      m.Platform,
		Status:        m.Status,
		Priority:      scheduling.Priority(m.Priority),
		ScheduledAt:   m.ScheduledAt,
		StartedAt:     m.StartedAt,
		CompletedAt:   m.CompletedAt,
		RetryCount:    m.RetryCount,
		MaxRetries:    m.MaxRetries,
		FailureReason: m.FailureReason,
		ErrorMessage:  m.ErrorMessage,
	}
	j.Parameters = decodeParameters(m.ParametersJSON)
	if m.ResultJSON != "" && m.ResultJSON != "null" {
		var result scheduling.JobResult
		if err := json.Unmarshal([]byte(m.ResultJSON), &result); err == nil {
			j.Result = &result
		}
	}
	return j
}

// FromDomain populates the persistence model from a domain Job.
func (m *SyncJobModel) FromDomain(j *scheduling.Job) {
	m.FromDomainTenantEntity(j.TenantEntity)
	m.ScheduleID = j.ScheduleID
	m.ParentJobID = j.ParentJobID
	m.Type = j.Type
	m.Platform = j.Platform
	m.Status = j.Status
	m.Priority = int(j.Priority)
	m.ScheduledAt = j.ScheduledAt.UTC()
	m.StartedAt = utcPtr(j.StartedAt)
	m.CompletedAt = utcPtr(j.CompletedAt)
	m.RetryCount = j.RetryCount
	m.MaxRetries = j.MaxRetries
	m.ParametersJSON = encodeJSON(j.Parameters, "{}")
	m.ResultJSON = "null"
	if j.Result != nil {
		m.ResultJSON = encodeJSON(j.Result, "null")
	}
	m.FailureReason = j.FailureReason
	m.ErrorMessage = j.ErrorMessage
}

// SyncJobModelFromDomain creates a new persistence model from a domain Job.
func SyncJobModelFromDomain(j *scheduling.Job) *SyncJobModel {
	m := &SyncJobModel{}
	m.FromDomain(j)
	return m
}

// ---------------------------------------------------------------------------
// SyncLogModel
// ---------------------------------------------------------------------------

// SyncLogModel is the persistence model for SyncLogEntry. Rows are insert-only.
type SyncLogModel struct {
	ID                   uuid.UUID                `gorm:"type:uuid;primaryKey"`
	TenantID             uuid.UUID                `gorm:"type:uuid;not null;index:idx_sync_log_tenant_started,priority:1"`
	JobID                uuid.UUID                `gorm:"type:uuid;not null;index"`
	ScheduleID           *uuid.UUID               `gorm:"type:uuid"`
	JobType              scheduling.JobType       `gorm:"type:varchar(32);not null"`
	Platform             integration.PlatformCode `gorm:"type:varchar(20);not null"`
	Status               scheduling.JobStatus     `gorm:"type:varchar(20);not null"`
	ItemsProcessed       int                      `gorm:"not null;default:0"`
	ItemsSucceeded       int                      `gorm:"not null;default:0"`
	ItemsFailed          int                      `gorm:"not null;default:0"`
	APICalls             int                      `gorm:"column:api_calls;not null;default:0"`
	ChangesDetected      int                      `gorm:"not null;default:0"`
	NotificationsCreated int                      `gorm:"not null;default:0"`
	DurationMs           int64                    `gorm:"not null;default:0"`
	StartedAt            time.Time                `gorm:"not null;index:idx_sync_log_tenant_started,priority:2"`
	CompletedAt          time.Time                `gorm:"not null"`
	ErrorDetailsJSON     string                   `gorm:"type:jsonb;column:error_details"`
	CreatedAt            time.Time                `gorm:"not null"`
}

// TableName returns the table name for GORM
func (SyncLogModel) TableName() string {
	return "sync_logs"
}

// ToDomain converts the persistence model to a domain SyncLogEntry.
func (m *SyncLogModel) ToDomain() scheduling.SyncLogEntry {
	e := scheduling.SyncLogEntry{
		ID:                   m.ID,
		TenantID:             m.TenantID,
		JobID:                m.JobID,
		ScheduleID:           m.ScheduleID,
		JobType:              m.JobType,
		Platform:             m.Platform,
		Status:               m.Status,
		ItemsProcessed:       m.ItemsProcessed,
		ItemsSucceeded:       m.ItemsSucceeded,
		ItemsFailed:          m.ItemsFailed,
		APICalls:             m.APICalls,
		ChangesDetected:      m.ChangesDetected,
		NotificationsCreated: m.NotificationsCreated,
		Duration:             time.Duration(m.DurationMs) * time.Millisecond,
		StartedAt:            m.StartedAt,
		CompletedAt:          m.CompletedAt,
	}
	if m.ErrorDetailsJSON != "" {
		_ = json.Unmarshal([]byte(m.ErrorDetailsJSON), &e.ErrorDetails)
	}
	return e
}

// SyncLogModelFromDomain creates a new persistence model from a domain SyncLogEntry.
func SyncLogModelFromDomain(e *scheduling.SyncLogEntry, now time.Time) *SyncLogModel {
	return &SyncLogModel{
		ID:                   e.ID,
		TenantID:             e.TenantID,
		JobID:                e.JobID,
		ScheduleID:           e.ScheduleID,
		JobType:              e.JobType,
		Platform:             e.Platform,
		Status:               e.Status,
		ItemsProcessed:       e.ItemsProcessed,
		ItemsSucceeded:       e.ItemsSucceeded,
		ItemsFailed:          e.ItemsFailed,
		APICalls:             e.APICalls,
		ChangesDetected:      e.ChangesDetected,
		NotificationsCreated: e.NotificationsCreated,
		DurationMs:           e.Duration.Milliseconds(),
		StartedAt:            e.StartedAt.UTC(),
		CompletedAt:          e.CompletedAt.UTC(),
		ErrorDetailsJSON:     encodeJSON(e.ErrorDetails, "{}"),
		CreatedAt:            now.UTC(),
	}
}

// ---------------------------------------------------------------------------
// JSON helpers
// ---------------------------------------------------------------------------

func encodeJSON(v any, fallback string) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fallback
	}
	return string(b)
}

func decodeParameters(raw string) scheduling.JobParameters {
	var p scheduling.JobParameters
	if raw != "" {
		_ = json.Unmarshal([]byte(raw), &p)
	}
	return p
}
