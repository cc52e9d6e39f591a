package router

import (
	"github.com/shopsync/backend/internal/interfaces/http/handler"
)

// SyncRoutes builds the /sync group
func SyncRoutes(h *handler.SyncHandler) *DomainGroup {
	sync := NewDomainGroup("sync", "/sync")
	sync.POST("/tick", h.Tick)

	sync.Group("jobs", "/jobs").
		GET("", h.ListJobs).
		POST("", h.RunNow).
		GET("/:id", h.GetJob).
		POST("/:id/cancel", h.CancelJob).
		GET("/:id/logs", h.JobLogs)

	sync.Group("schedules", "/schedules").
		GET("", h.ListSchedules).
		POST("", h.CreateSchedule).
		POST("/defaults", h.ProvisionDefaults).
		POST("/:id/disable", h.DisableSchedule)

	sync.GET("/logs", h.RecentLogs)
	sync.GET("/rate-limits/:platform", h.RateLimit)
	return sync
}

// NotificationRoutes builds the /notifications group
func NotificationRoutes(h *handler.NotificationHandler) *DomainGroup {
	return NewDomainGroup("notifications", "/notifications").
		GET("", h.ListActive)
}
