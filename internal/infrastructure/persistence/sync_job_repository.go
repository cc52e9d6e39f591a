package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/shopsync/backend/internal/domain/scheduling"
	"github.com/shopsync/backend/internal/infrastructure/persistence/models"
)

const (
	defaultJobPageSize = 20
	maxJobPageSize     = 100
)

// GormJobRepository implements scheduling.JobRepository using GORM
type GormJobRepository struct {
	db *gorm.DB
}

// NewGormJobRepository creates a new GormJobRepository
func NewGormJobRepository(db *gorm.DB) *GormJobRepository {
	return &GormJobRepository{db: db}
}

var _ scheduling.JobRepository = (*GormJobRepository)(nil)

// Create inserts a new job
func (r *GormJobRepository) Create(ctx context.Context, job *scheduling.Job) error {
	return r.db.WithContext(ctx).Create(models.SyncJobModelFromDomain(job)).Error
}

// Save writes the job's lifecycle columns
func (r *GormJobRepository) Save(ctx context.Context, job *scheduling.Job) error {
	model := models.SyncJobModelFromDomain(job)
	result := r.db.WithContext(ctx).
		Model(&models.SyncJobModel{}).
		Where("tenant_id = ? AND id = ?", job.TenantID, job.ID).
		Updates(map[string]any{
			"status":         model.Status,
			"started_at":     model.StartedAt,
			"completed_at":   model.CompletedAt,
			"result":         model.ResultJSON,
			"failure_reason": model.FailureReason,
			"error_message":  model.ErrorMessage,
			"updated_at":     model.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return scheduling.ErrJobNotFound
	}
	return nil
}

// Claim moves a pending job to running. The status predicate makes the
// update a compare-and-set, so only one executor wins a given job.
func (r *GormJobRepository) Claim(ctx context.Context, id uuid.UUID, startedAt time.Time) (bool, error) {
	startedAt = startedAt.UTC()
	result := r.db.WithContext(ctx).
		Model(&models.SyncJobModel{}).
		Where("id = ? AND status = ?", id, scheduling.JobStatusPending).
		Updates(map[string]any{
			"status":     scheduling.JobStatusRunning,
			"started_at": startedAt,
			"updated_at": startedAt,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// CancelPending moves a pending job to cancelled
func (r *GormJobRepository) CancelPending(ctx context.Context, tenantID, id uuid.UUID, at time.Time) (bool, error) {
	at = at.UTC()
	result := r.db.WithContext(ctx).
		Model(&models.SyncJobModel{}).
		Where("tenant_id = ? AND id = ? AND status = ?", tenantID, id, scheduling.JobStatusPending).
		Updates(map[string]any{
			"status":       scheduling.JobStatusCancelled,
			"completed_at": at,
			"updated_at":   at,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// FindByID finds a job by ID within a tenant
func (r *GormJobRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*scheduling.Job, error) {
	var model models.SyncJobModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, scheduling.ErrJobNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindDuePending returns pending jobs whose scheduled_at has passed,
// highest priority first and oldest first within a priority
func (r *GormJobRepository) FindDuePending(ctx context.Context, now time.Time, limit int) ([]scheduling.Job, error) {
	query := r.db.WithContext(ctx).
		Where("status = ? AND scheduled_at <= ?", scheduling.JobStatusPending, now.UTC()).
		Order("priority DESC").
		Order("scheduled_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var rows []models.SyncJobModel
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return toJobs(rows), nil
}

// FindByTenant returns a page of the tenant's jobs, newest first, and the total count
func (r *GormJobRepository) FindByTenant(ctx context.Context, tenantID uuid.UUID, filter scheduling.JobFilter) ([]scheduling.Job, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.SyncJobModel{}).Where("tenant_id = ?", tenantID)
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Type != "" {
		query = query.Where("type = ?", filter.Type)
	}
	if filter.ScheduleID != nil {
		query = query.Where("schedule_id = ?", *filter.ScheduleID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page, pageSize := normalizePage(filter.Page, filter.PageSize)
	var rows []models.SyncJobModel
	if err := query.
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return toJobs(rows), total, nil
}

func normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = defaultJobPageSize
	}
	if pageSize > maxJobPageSize {
		pageSize = maxJobPageSize
	}
	return page, pageSize
}

func toJobs(rows []models.SyncJobModel) []scheduling.Job {
	jobs := make([]scheduling.Job, len(rows))
	for i := range rows {
		jobs[i] = *rows[i].ToDomain()
	}
	return jobs
}
