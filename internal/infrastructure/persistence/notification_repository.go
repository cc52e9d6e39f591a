package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/shopsync/backend/internal/domain/notification"
	"github.com/shopsync/backend/internal/infrastructure/persistence/models"
)

const defaultNotificationLimit = 50

// GormNotificationRepository implements notification.Repository using GORM
type GormNotificationRepository struct {
	db *gorm.DB
}

// NewGormNotificationRepository creates a new GormNotificationRepository
func NewGormNotificationRepository(db *gorm.DB) *GormNotificationRepository {
	return &GormNotificationRepository{db: db}
}

var _ notification.Repository = (*GormNotificationRepository)(nil)

// Create inserts a notification
func (r *GormNotificationRepository) Create(ctx context.Context, n *notification.Notification) error {
	return r.db.WithContext(ctx).Create(models.NotificationModelFromDomain(n)).Error
}

// FindActive returns the newest unread, unarchived, unexpired notification with the dedup key
func (r *GormNotificationRepository) FindActive(ctx context.Context, tenantID uuid.UUID, dedupKey string, now time.Time) (*notification.Notification, error) {
	var model models.NotificationModel
	if err := r.active(ctx, tenantID, now).
		Where("dedup_key = ?", dedupKey).
		Order("created_at DESC").
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notification.ErrNotificationNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// ListActive returns the tenant's active notifications, newest first
func (r *GormNotificationRepository) ListActive(ctx context.Context, tenantID uuid.UUID, now time.Time, limit int) ([]notification.Notification, error) {
	if limit <= 0 {
		limit = defaultNotificationLimit
	}
	var rows []models.NotificationModel
	if err := r.active(ctx, tenantID, now).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]notification.Notification, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out, nil
}

func (r *GormNotificationRepository) active(ctx context.Context, tenantID uuid.UUID, now time.Time) *gorm.DB {
	return r.db.WithContext(ctx).
		Where("tenant_id = ? AND is_read = ? AND is_archived = ?", tenantID, false, false).
		Where("(expires_at IS NULL OR expires_at > ?)", now.UTC())
}
