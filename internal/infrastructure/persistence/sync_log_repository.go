package persistence

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/shopsync/backend/internal/domain/scheduling"
	"github.com/shopsync/backend/internal/infrastructure/persistence/models"
)

const defaultSyncLogLimit = 50

// GormSyncLogRepository implements scheduling.SyncLogRepository using GORM.
// It only inserts; there is no update path.
type GormSyncLogRepository struct {
	db  *gorm.DB
	now func() time.Time
}

// NewGormSyncLogRepository creates a new GormSyncLogRepository
func NewGormSyncLogRepository(db *gorm.DB) *GormSyncLogRepository {
	return &GormSyncLogRepository{db: db, now: time.Now}
}

var _ scheduling.SyncLogRepository = (*GormSyncLogRepository)(nil)

// Append inserts a log entry
func (r *GormSyncLogRepository) Append(ctx context.Context, entry *scheduling.SyncLogEntry) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(models.SyncLogModelFromDomain(entry, r.now())).Error
}

// FindByJob returns the entries written for a job
func (r *GormSyncLogRepository) FindByJob(ctx context.Context, tenantID, jobID uuid.UUID) ([]scheduling.SyncLogEntry, error) {
	var rows []models.SyncLogModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND job_id = ?", tenantID, jobID).
		Order("started_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return toSyncLogEntries(rows), nil
}

// FindRecent returns the tenant's latest entries, newest first
func (r *GormSyncLogRepository) FindRecent(ctx context.Context, tenantID uuid.UUID, limit int) ([]scheduling.SyncLogEntry, error) {
	if limit <= 0 {
		limit = defaultSyncLogLimit
	}
	var rows []models.SyncLogModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("started_at DESC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return toSyncLogEntries(rows), nil
}

func toSyncLogEntries(rows []models.SyncLogModel) []scheduling.SyncLogEntry {
	entries := make([]scheduling.SyncLogEntry, len(rows))
	for i := range rows {
		entries[i] = rows[i].ToDomain()
	}
	return entries
}
