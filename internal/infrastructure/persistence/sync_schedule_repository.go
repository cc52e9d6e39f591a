package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/shopsync/backend/internal/domain/integration"
	"github.com/shopsync/backend/internal/domain/scheduling"
	"github.com/shopsync/backend/internal/infrastructure/persistence/models"
)

// GormScheduleRepository implements scheduling.ScheduleRepository using GORM
type GormScheduleRepository struct {
	db *gorm.DB
}

// NewGormScheduleRepository creates a new GormScheduleRepository
func NewGormScheduleRepository(db *gorm.DB) *GormScheduleRepository {
	return &GormScheduleRepository{db: db}
}

var _ scheduling.ScheduleRepository = (*GormScheduleRepository)(nil)

// Create inserts a new schedule
func (r *GormScheduleRepository) Create(ctx context.Context, schedule *scheduling.Schedule) error {
	return r.db.WithContext(ctx).Create(models.SyncScheduleModelFromDomain(schedule)).Error
}

// SaveRun writes the run columns of an existing schedule
func (r *GormScheduleRepository) SaveRun(ctx context.Context, schedule *scheduling.Schedule) error {
	model := models.SyncScheduleModelFromDomain(schedule)
	return r.update(ctx, schedule, map[string]any{
		"last_run":   model.LastRun,
		"next_run":   model.NextRun,
		"updated_at": model.UpdatedAt,
	})
}

// SaveFailures writes the failure count, and enabled only when it turned off
func (r *GormScheduleRepository) SaveFailures(ctx context.Context, schedule *scheduling.Schedule) error {
	columns := map[string]any{
		"failure_count": schedule.FailureCount,
		"updated_at":    schedule.UpdatedAt,
	}
	if !schedule.Enabled {
		columns["enabled"] = false
	}
	return r.update(ctx, schedule, columns)
}

// Disable turns an existing schedule off
func (r *GormScheduleRepository) Disable(ctx context.Context, schedule *scheduling.Schedule) error {
	return r.update(ctx, schedule, map[string]any{
		"enabled":    false,
		"updated_at": schedule.UpdatedAt,
	})
}

func (r *GormScheduleRepository) update(ctx context.Context, schedule *scheduling.Schedule, columns map[string]any) error {
	result := r.db.WithContext(ctx).
		Model(&models.SyncScheduleModel{}).
		Where("tenant_id = ? AND id = ?", schedule.TenantID, schedule.ID).
		Updates(columns)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return scheduling.ErrScheduleNotFound
	}
	return nil
}

// FindByID finds a schedule by ID within a tenant
func (r *GormScheduleRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*scheduling.Schedule, error) {
	var model models.SyncScheduleModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, scheduling.ErrScheduleNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByTenant returns every schedule of a tenant, oldest first
func (r *GormScheduleRepository) FindByTenant(ctx context.Context, tenantID uuid.UUID) ([]scheduling.Schedule, error) {
	var rows []models.SyncScheduleModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return toSchedules(rows), nil
}

// FindDue returns enabled schedules whose next_run has passed, across tenants
func (r *GormScheduleRepository) FindDue(ctx context.Context, now time.Time, limit int) ([]scheduling.Schedule, error) {
	query := r.db.WithContext(ctx).
		Where("enabled = ? AND next_run <= ?", true, now.UTC()).
		Order("next_run ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var rows []models.SyncScheduleModel
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return toSchedules(rows), nil
}

// ExistsFor reports whether an enabled schedule exists for the job type and platform
func (r *GormScheduleRepository) ExistsFor(ctx context.Context, tenantID uuid.UUID, jobType scheduling.JobType, platform integration.PlatformCode) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.SyncScheduleModel{}).
		Where("tenant_id = ? AND job_type = ? AND platform = ? AND enabled = ?", tenantID, jobType, platform, true).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func toSchedules(rows []models.SyncScheduleModel) []scheduling.Schedule {
	schedules := make([]scheduling.Schedule, len(rows))
	for i := range rows {
		schedules[i] = *rows[i].ToDomain()
	}
	return schedules
}
