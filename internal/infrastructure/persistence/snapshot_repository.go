package persistence

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/shopsync/backend/internal/domain/integration"
	"github.com/shopsync/backend/internal/infrastructure/persistence/models"
)

const snapshotBatchSize = 200

// ---------------------------------------------------------------------------
// Order snapshots
// ---------------------------------------------------------------------------

// GormOrderSnapshotRepository implements integration.OrderSnapshotRepository using GORM
type GormOrderSnapshotRepository struct {
	db  *gorm.DB
	now func() time.Time
}

// NewGormOrderSnapshotRepository creates a new GormOrderSnapshotRepository
func NewGormOrderSnapshotRepository(db *gorm.DB) *GormOrderSnapshotRepository {
	return &GormOrderSnapshotRepository{db: db, now: time.Now}
}

var _ integration.OrderSnapshotRepository = (*GormOrderSnapshotRepository)(nil)

// ListByPlatform returns every stored order of the tenant on the platform
func (r *GormOrderSnapshotRepository) ListByPlatform(ctx context.Context, tenantID uuid.UUID, platform integration.PlatformCode) ([]integration.OrderSnapshot, error) {
	var rows []models.OrderSnapshotModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND platform = ?", tenantID, platform).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return toOrderSnapshots(rows), nil
}

// ListPendingUpdates returns orders with a queued seller-side status change
func (r *GormOrderSnapshotRepository) ListPendingUpdates(ctx context.Context, tenantID uuid.UUID, platform integration.PlatformCode) ([]integration.OrderSnapshot, error) {
	var rows []models.OrderSnapshotModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND platform = ? AND pending_action <> ?", tenantID, platform, "").
		Order("updated_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return toOrderSnapshots(rows), nil
}

// Upsert inserts new orders and refreshes the remote columns of known ones.
// Queued pending columns are written on insert only.
func (r *GormOrderSnapshotRepository) Upsert(ctx context.Context, snapshots []integration.OrderSnapshot) error {
	if len(snapshots) == 0 {
		return nil
	}
	now := r.now()
	rows := make([]*models.OrderSnapshotModel, len(snapshots))
	for i, s := range snapshots {
		rows[i] = models.OrderSnapshotModelFromDomain(s, now)
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "tenant_id"}, {Name: "platform"}, {Name: "platform_order_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"status", "total_amount", "currency", "buyer_name", "remote_updated_at", "updated_at",
			}),
		}).
		CreateInBatches(rows, snapshotBatchSize).Error
}

// ClearPendingUpdate removes the queued update once the platform accepted it
func (r *GormOrderSnapshotRepository) ClearPendingUpdate(ctx context.Context, tenantID uuid.UUID, platform integration.PlatformCode, platformOrderID string) error {
	return r.db.WithContext(ctx).
		Model(&models.OrderSnapshotModel{}).
		Where("tenant_id = ? AND platform = ? AND platform_order_id = ?", tenantID, platform, platformOrderID).
		Updates(map[string]any{
			"pending_action":          "",
			"pending_tracking_number": "",
			"pending_carrier":         "",
			"pending_cancel_reason":   "",
			"updated_at":              r.now().UTC(),
		}).Error
}

func toOrderSnapshots(rows []models.OrderSnapshotModel) []integration.OrderSnapshot {
	out := make([]integration.OrderSnapshot, len(rows))
	for i := range rows {
		out[i] = rows[i].ToDomain()
	}
	return out
}

// ---------------------------------------------------------------------------
// Product snapshots
// ---------------------------------------------------------------------------

// GormProductSnapshotRepository implements integration.ProductSnapshotRepository using GORM
type GormProductSnapshotRepository struct {
	db  *gorm.DB
	now func() time.Time
}

// NewGormProductSnapshotRepository creates a new GormProductSnapshotRepository
func NewGormProductSnapshotRepository(db *gorm.DB) *GormProductSnapshotRepository {
	return &GormProductSnapshotRepository{db: db, now: time.Now}
}

var _ integration.ProductSnapshotRepository = (*GormProductSnapshotRepository)(nil)

// ListByPlatform returns every stored product of the tenant on the platform
func (r *GormProductSnapshotRepository) ListByPlatform(ctx context.Context, tenantID uuid.UUID, platform integration.PlatformCode) ([]integration.ProductSnapshot, error) {
	var rows []models.ProductSnapshotModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND platform = ?", tenantID, platform).
		Order("platform_product_id ASC").
		Order("platform_sku_id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]integration.ProductSnapshot, len(rows))
	for i := range rows {
		out[i] = rows[i].ToDomain()
	}
	return out, nil
}

// Upsert inserts new products and refreshes the remote columns of known ones.
// local_quantity and low_stock_threshold are owned locally and kept.
func (r *GormProductSnapshotRepository) Upsert(ctx context.Context, snapshots []integration.ProductSnapshot) error {
	if len(snapshots) == 0 {
		return nil
	}
	now := r.now()
	rows := make([]*models.ProductSnapshotModel, len(snapshots))
	for i, s := range snapshots {
		rows[i] = models.ProductSnapshotModelFromDomain(s, now)
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "tenant_id"}, {Name: "platform"}, {Name: "platform_product_id"}, {Name: "platform_sku_id"},
			},
			DoUpdates: clause.AssignmentColumns([]string{
				"sku", "name", "stock_quantity", "price", "remote_updated_at", "updated_at",
			}),
		}).
		CreateInBatches(rows, snapshotBatchSize).Error
}

// UpdateStockQuantity records the quantity the platform holds after a push
func (r *GormProductSnapshotRepository) UpdateStockQuantity(ctx context.Context, tenantID uuid.UUID, platform integration.PlatformCode, ref integration.ProductRef, quantity int) error {
	return r.db.WithContext(ctx).
		Model(&models.ProductSnapshotModel{}).
		Where("tenant_id = ? AND platform = ? AND platform_product_id = ? AND platform_sku_id = ?",
			tenantID, platform, ref.PlatformProductID, ref.PlatformSkuID).
		Updates(map[string]any{
			"stock_quantity": quantity,
			"updated_at":     r.now().UTC(),
		}).Error
}
