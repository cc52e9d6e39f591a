package dto

import (
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopsync/backend/internal/domain/integration"
	"github.com/shopsync/backend/internal/domain/scheduling"
)

func TestGetHTTPStatus(t *testing.T) {
	tests := []struct {
		code     string
		expected int
	}{
		{ErrCodeInternal, http.StatusInternalServerError},
		{ErrCodeValidation, http.StatusBadRequest},
		{ErrCodeInvalidInput, http.StatusBadRequest},
		{ErrCodeNotFound, http.StatusNotFound},
		{ErrCodeAlreadyExists, http.StatusConflict},
		{ErrCodeInvalidState, http.StatusUnprocessableEntity},
		{ErrCodeRateLimited, http.StatusTooManyRequests},
		{ErrCodeUnavailable, http.StatusServiceUnavailable},
		// Unknown code should return 500
		{"UNKNOWN_CODE", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.expected, GetHTTPStatus(tt.code))
		})
	}
}

func TestNewSuccessResponseWithMeta(t *testing.T) {
	resp := NewSuccessResponseWithMeta([]int{1, 2}, 45, 2, 20)

	assert.True(t, resp.Success)
	require.NotNil(t, resp.Meta)
	assert.Equal(t, int64(45), resp.Meta.Total)
	assert.Equal(t, 3, resp.Meta.TotalPages)

	empty := NewSuccessResponseWithMeta(nil, 0, 1, 0)
	assert.Equal(t, 0, empty.Meta.TotalPages)
}

func TestNewErrorResponseWithRequestID(t *testing.T) {
	resp := NewErrorResponseWithRequestID(ErrCodeNotFound, "job not found", "req-1")

	assert.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeNotFound, resp.Error.Code)
	assert.Equal(t, "req-1", resp.Error.RequestID)
}

func TestPageRequest_Normalize(t *testing.T) {
	p := PageRequest{}
	p.Normalize()
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, 20, p.PageSize)

	p = PageRequest{Page: 3, PageSize: 50}
	p.Normalize()
	assert.Equal(t, 3, p.Page)
	assert.Equal(t, 50, p.PageSize)
}

func TestListJobsRequest_ToFilter(t *testing.T) {
	scheduleID := uuid.New()
	req := ListJobsRequest{
		PageRequest: PageRequest{Page: 2, PageSize: 10},
		Status:      "failed",
		JobType:     "order_monitor",
		ScheduleID:  scheduleID.String(),
	}

	filter := req.ToFilter()
	assert.Equal(t, scheduling.JobStatusFailed, filter.Status)
	assert.Equal(t, scheduling.JobTypeOrderMonitor, filter.Type)
	require.NotNil(t, filter.ScheduleID)
	assert.Equal(t, scheduleID, *filter.ScheduleID)
	assert.Equal(t, 2, filter.Page)
}

func TestCreateScheduleRequest_ToSpec(t *testing.T) {
	req := CreateScheduleRequest{
		JobType:         "inventory_sync",
		Platform:        "shopee",
		IntervalMinutes: 30,
		Priority:        10,
		Parameters: scheduling.JobParameters{
			Inventory: &scheduling.InventorySyncParams{PushLocal: true},
		},
	}

	spec := req.ToSpec()
	assert.Equal(t, scheduling.JobTypeInventorySync, spec.JobType)
	assert.Equal(t, integration.PlatformCodeShopee, spec.Platform)
	assert.Equal(t, scheduling.PriorityHigh, spec.Priority)
	require.NotNil(t, spec.Parameters.Inventory)
	assert.True(t, spec.Parameters.Inventory.PushLocal)
}

func TestToSyncLogResponses(t *testing.T) {
	entries := []scheduling.SyncLogEntry{
		{ID: uuid.New(), Status: scheduling.JobStatusCompleted, Duration: 1500 * time.Millisecond},
		{
			ID:     uuid.New(),
			Status: scheduling.JobStatusFailed,
			ErrorDetails: scheduling.ErrorDetails{
				Reason:  scheduling.FailureReasonAuth,
				Message: "token expired",
			},
		},
	}

	out := ToSyncLogResponses(entries)
	require.Len(t, out, 2)
	assert.Equal(t, int64(1500), out[0].DurationMs)
	assert.Nil(t, out[0].ErrorDetails)
	require.NotNil(t, out[1].ErrorDetails)
	assert.Equal(t, scheduling.FailureReasonAuth, out[1].ErrorDetails.Reason)
}
