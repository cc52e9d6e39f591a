package integration

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// Local snapshots
// ---------------------------------------------------------------------------

// OrderSnapshot is the last known local state of a platform order
type OrderSnapshot struct {
	TenantID        uuid.UUID
	Platform        PlatformCode
	PlatformOrderID string
	Status          PlatformOrderStatus
	TotalAmount     decimal.Decimal
	Currency        string
	BuyerName       string
	RemoteUpdatedAt time.Time
	// PendingUpdate is a seller-side change queued for the next status sync
	PendingUpdate *OrderStatusUpdate
	UpdatedAt     time.Time
}

// OrderSnapshotFromPlatform builds the snapshot stored after a successful pull.
// Any queued pending update is left to the repository to preserve.
func OrderSnapshotFromPlatform(tenantID uuid.UUID, o PlatformOrder) OrderSnapshot {
	return OrderSnapshot{
		TenantID:        tenantID,
		Platform:        o.PlatformCode,
		PlatformOrderID: o.PlatformOrderID,
		Status:          o.Status,
		TotalAmount:     o.TotalAmount,
		Currency:        o.Currency,
		BuyerName:       o.BuyerName,
		RemoteUpdatedAt: o.UpdatedAt,
	}
}

// ProductSnapshot is the last known local state of a platform SKU
type ProductSnapshot struct {
	TenantID          uuid.UUID
	Platform          PlatformCode
	PlatformProductID string
	PlatformSkuID     string
	SKU               string
	Name              string
	StockQuantity     int
	// LocalQuantity is the warehouse quantity to push when local stock is authoritative
	LocalQuantity     *int
	LowStockThreshold int
	Price             decimal.Decimal
	RemoteUpdatedAt   time.Time
	UpdatedAt         time.Time
}

// Key returns the identity of the product within a platform
func (p ProductSnapshot) Key() string {
	return ProductKey(p.PlatformProductID, p.PlatformSkuID)
}

// Ref returns the platform reference of the product
func (p ProductSnapshot) Ref() ProductRef {
	return ProductRef{PlatformProductID: p.PlatformProductID, PlatformSkuID: p.PlatformSkuID}
}

// IsLowStock returns true when the stored quantity is below the threshold
func (p ProductSnapshot) IsLowStock() bool {
	return p.StockQuantity < p.LowStockThreshold
}

// NeedsPush returns true when a local quantity is set and differs from the platform's
func (p ProductSnapshot) NeedsPush() bool {
	return p.LocalQuantity != nil && *p.LocalQuantity != p.StockQuantity
}

// ProductSnapshotFromPlatform builds the snapshot stored after a successful pull.
// threshold is kept from the existing local record, or the default for new products.
func ProductSnapshotFromPlatform(tenantID uuid.UUID, p PlatformProduct, threshold int) ProductSnapshot {
	return ProductSnapshot{
		TenantID:          tenantID,
		Platform:          p.PlatformCode,
		PlatformProductID: p.PlatformProductID,
		PlatformSkuID:     p.PlatformSkuID,
		SKU:               p.SKU,
		Name:              p.Name,
		StockQuantity:     p.StockQuantity,
		LowStockThreshold: threshold,
		Price:             p.Price,
		RemoteUpdatedAt:   p.UpdatedAt,
	}
}

// ---------------------------------------------------------------------------
// Repository ports
// ---------------------------------------------------------------------------

// OrderSnapshotRepository persists local order snapshots
type OrderSnapshotRepository interface {
	// ListByPlatform returns every stored order of the tenant on the platform
	ListByPlatform(ctx context.Context, tenantID uuid.UUID, platform PlatformCode) ([]OrderSnapshot, error)
	// ListPendingUpdates returns orders with a queued seller-side status change
	ListPendingUpdates(ctx context.Context, tenantID uuid.UUID, platform PlatformCode) ([]OrderSnapshot, error)
	// Upsert inserts or refreshes remote fields, keyed by (tenant, platform, order id)
	Upsert(ctx context.Context, snapshots []OrderSnapshot) error
	// ClearPendingUpdate removes the queued update once the platform accepted it
	ClearPendingUpdate(ctx context.Context, tenantID uuid.UUID, platform PlatformCode, platformOrderID string) error
}

// ProductSnapshotRepository persists local product snapshots
type ProductSnapshotRepository interface {
	// ListByPlatform returns every stored product of the tenant on the platform
	ListByPlatform(ctx context.Context, tenantID uuid.UUID, platform PlatformCode) ([]ProductSnapshot, error)
	// Upsert inserts or refreshes remote fields, keyed by (tenant, platform, product id, sku id)
	Upsert(ctx context.Context, snapshots []ProductSnapshot) error
	// UpdateStockQuantity records the quantity the platform now holds after a push
	UpdateStockQuantity(ctx context.Context, tenantID uuid.UUID, platform PlatformCode, ref ProductRef, quantity int) error
}
