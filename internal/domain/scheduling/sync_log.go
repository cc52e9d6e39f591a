package scheduling

import (
	"time"

	"github.com/google/uuid"

	"github.com/shopsync/backend/internal/domain/integration"
)

// ItemFailure describes one entity that could not be synchronized
type ItemFailure struct {
	Platform integration.PlatformCode `json:"platform"`
	ItemID   string                   `json:"item_id"`
	Reason   FailureReason            `json:"reason"`
	Message  string                   `json:"message"`
}

// ErrorDetails is the failure payload of a sync log entry
type ErrorDetails struct {
	Reason       FailureReason `json:"reason,omitempty"`
	Message      string        `json:"message,omitempty"`
	ItemFailures []ItemFailure `json:"item_failures,omitempty"`
}

// IsEmpty returns true if there is nothing to report
func (d ErrorDetails) IsEmpty() bool {
	return d.Reason == FailureReasonNone && d.Message == "" && len(d.ItemFailures) == 0
}

// SyncLogEntry is the immutable audit record of a finished job.
// Entries are appended once and never updated.
type SyncLogEntry struct {
	ID                   uuid.UUID
	TenantID             uuid.UUID
	JobID                uuid.UUID
	ScheduleID           *uuid.UUID
	JobType              JobType
	Platform             integration.PlatformCode
	Status               JobStatus
	ItemsProcessed       int
	ItemsSucceeded       int
	ItemsFailed          int
	APICalls             int
	ChangesDetected      int
	NotificationsCreated int
	Duration             time.Duration
	StartedAt            time.Time
	CompletedAt          time.Time
	ErrorDetails         ErrorDetails
}

// NewSyncLogEntry builds the log entry of a job that reached a terminal status
func NewSyncLogEntry(job *Job, details ErrorDetails) *SyncLogEntry {
	entry := &SyncLogEntry{
		ID:           uuid.New(),
		TenantID:     job.TenantID,
		JobID:        job.ID,
		ScheduleID:   job.ScheduleID,
		JobType:      job.Type,
		Platform:     job.Platform,
		Status:       job.Status,
		Duration:     job.Duration(),
		ErrorDetails: details,
	}
	if job.StartedAt != nil {
		entry.StartedAt = *job.StartedAt
	}
	if job.CompletedAt != nil {
		entry.CompletedAt = *job.CompletedAt
	}
	if job.Result != nil {
		entry.ItemsProcessed = job.Result.ItemsProcessed
		entry.ItemsSucceeded = job.Result.ItemsSucceeded
		entry.ItemsFailed = job.Result.ItemsFailed
		entry.APICalls = job.Result.APICalls
		entry.ChangesDetected = job.Result.ChangesDetected
		entry.NotificationsCreated = job.Result.NotificationsCreated
	}
	return entry
}
