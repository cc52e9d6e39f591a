package handler

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/shopsync/backend/internal/domain/notification"
	"github.com/shopsync/backend/internal/interfaces/http/dto"
)

// NotificationReader lists active notifications
type NotificationReader interface {
	ListActive(ctx context.Context, tenantID uuid.UUID, now time.Time, limit int) ([]notification.Notification, error)
}

// NotificationHandler serves the notification feed
type NotificationHandler struct {
	BaseHandler
	notifications NotificationReader
	now           func() time.Time
}

// NewNotificationHandler creates a new NotificationHandler
func NewNotificationHandler(notifications NotificationReader) *NotificationHandler {
	return &NotificationHandler{
		notifications: notifications,
		now:           time.Now,
	}
}

// ListActive returns unread, unarchived and unexpired notifications.
// GET /notifications
func (h *NotificationHandler) ListActive(c *gin.Context) {
	tenantID, ok := h.requireTenant(c)
	if !ok {
		return
	}

	var req dto.LimitRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.ValidationError(c, err)
		return
	}

	items, err := h.notifications.ListActive(c.Request.Context(), tenantID, h.now(), req.LimitOrDefault())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.ToNotificationResponses(items))
}
