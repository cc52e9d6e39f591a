package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/shopsync/backend/internal/domain/integration"
)

// ---------------------------------------------------------------------------
// OrderSnapshotModel
// ---------------------------------------------------------------------------

// OrderSnapshotModel stores the last pulled state of a platform order.
// Pending columns hold a seller-side change waiting for the next status sync.
type OrderSnapshotModel struct {
	TenantID              uuid.UUID                       `gorm:"type:uuid;primaryKey"`
	Platform              integration.PlatformCode        `gorm:"type:varchar(20);primaryKey"`
	PlatformOrderID       string                          `gorm:"type:varchar(100);primaryKey"`
	Status                integration.PlatformOrderStatus `gorm:"type:varchar(20);not null"`
	TotalAmount           decimal.Decimal                 `gorm:"type:decimal(18,4);not null"`
	Currency              string                          `gorm:"type:varchar(8)"`
	BuyerName             string                          `gorm:"type:varchar(200)"`
	RemoteUpdatedAt       time.Time                       `gorm:"not null"`
	PendingAction         integration.OrderAction         `gorm:"type:varchar(16)"`
	PendingTrackingNumber string                          `gorm:"type:varchar(100)"`
	PendingCarrier        string                          `gorm:"type:varchar(100)"`
	PendingCancelReason   string                          `gorm:"type:varchar(255)"`
	CreatedAt             time.Time                       `gorm:"not null"`
	UpdatedAt             time.Time                       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (OrderSnapshotModel) TableName() string {
	return "order_snapshots"
}

// ToDomain converts the persistence model to a domain OrderSnapshot
func (m *OrderSnapshotModel) ToDomain() integration.OrderSnapshot {
	s := integration.OrderSnapshot{
		TenantID:        m.TenantID,
		Platform:        m.Platform,
		PlatformOrderID: m.PlatformOrderID,
		Status:          m.Status,
		TotalAmount:     m.TotalAmount,
		Currency:        m.Currency,
		BuyerName:       m.BuyerName,
		RemoteUpdatedAt: m.RemoteUpdatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
	if m.PendingAction != "" {
		s.PendingUpdate = &integration.OrderStatusUpdate{
			PlatformOrderID: m.PlatformOrderID,
			Action:          m.PendingAction,
			TrackingNumber:  m.PendingTrackingNumber,
			Carrier:         m.PendingCarrier,
			CancelReason:    m.PendingCancelReason,
		}
	}
	return s
}

// OrderSnapshotModelFromDomain creates a new persistence model from a domain OrderSnapshot
func OrderSnapshotModelFromDomain(s integration.OrderSnapshot, now time.Time) *OrderSnapshotModel {
	m := &OrderSnapshotModel{
		TenantID:        s.TenantID,
		Platform:        s.Platform,
		PlatformOrderID: s.PlatformOrderID,
		Status:          s.Status,
		TotalAmount:     s.TotalAmount,
		Currency:        s.Currency,
		BuyerName:       s.BuyerName,
		RemoteUpdatedAt: s.RemoteUpdatedAt.UTC(),
		CreatedAt:       now.UTC(),
		UpdatedAt:       now.UTC(),
	}
	if u := s.PendingUpdate; u != nil {
		m.PendingAction = u.Action
		m.PendingTrackingNumber = u.TrackingNumber
		m.PendingCarrier = u.Carrier
		m.PendingCancelReason = u.CancelReason
	}
	return m
}

// ---------------------------------------------------------------------------
// ProductSnapshotModel
// ---------------------------------------------------------------------------

// ProductSnapshotModel stores the last pulled state of a platform SKU.
// PlatformSkuID is empty for single-SKU products.
type ProductSnapshotModel struct {
	TenantID          uuid.UUID                `gorm:"type:uuid;primaryKey"`
	Platform          integration.PlatformCode `gorm:"type:varchar(20);primaryKey"`
	PlatformProductID string                   `gorm:"type:varchar(100);primaryKey"`
	PlatformSkuID     string                   `gorm:"type:varchar(100);primaryKey"`
	SKU               string                   `gorm:"column:sku;type:varchar(100)"`
	Name              string                   `gorm:"type:varchar(255)"`
	StockQuantity     int                      `gorm:"not null;default:0"`
	LocalQuantity     *int
	LowStockThreshold int             `gorm:"not null;default:0"`
	Price             decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	RemoteUpdatedAt   time.Time       `gorm:"not null"`
	CreatedAt         time.Time       `gorm:"not null"`
	UpdatedAt         time.Time       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (ProductSnapshotModel) TableName() string {
	return "product_snapshots"
}

// ToDomain converts the persistence model to a domain ProductSnapshot
func (m *ProductSnapshotModel) ToDomain() integration.ProductSnapshot {
	return integration.ProductSnapshot{
		TenantID:          m.TenantID,
		Platform:          m.Platform,
		PlatformProductID: m.PlatformProductID,
		PlatformSkuID:     m.PlatformSkuID,
		SKU:               m.SKU,
		Name:              m.Name,
		StockQuantity:     m.StockQuantity,
		LocalQuantity:     m.LocalQuantity,
		LowStockThreshold: m.LowStockThreshold,
		Price:             m.Price,
		RemoteUpdatedAt:   m.RemoteUpdatedAt,
		UpdatedAt:         m.UpdatedAt,
	}
}

// ProductSnapshotModelFromDomain creates a new persistence model from a domain ProductSnapshot
func ProductSnapshotModelFromDomain(s integration.ProductSnapshot, now time.Time) *ProductSnapshotModel {
	return &ProductSnapshotModel{
		TenantID:          s.TenantID,
		Platform:          s.Platform,
		PlatformProductID: s.PlatformProductID,
		PlatformSkuID:     s.PlatformSkuID,
		SKU:               s.SKU,
		Name:              s.Name,
		StockQuantity:     s.StockQuantity,
		LocalQuantity:     s.LocalQuantity,
		LowStockThreshold: s.LowStockThreshold,
		Price:             s.Price,
		RemoteUpdatedAt:   s.RemoteUpdatedAt.UTC(),
		CreatedAt:         now.UTC(),
		UpdatedAt:         now.UTC(),
	}
}

// ---------------------------------------------------------------------------
// PlatformCredentialModel
// ---------------------------------------------------------------------------

// PlatformCredentialModel is the read side of the tenant's platform authorization.
// Tokens are written by the authorization service, not by the sync core.
type PlatformCredentialModel struct {
	TenantID     uuid.UUID                `gorm:"type:uuid;primaryKey"`
	Platform     integration.PlatformCode `gorm:"type:varchar(20);primaryKey"`
	ShopID       string                   `gorm:"type:varchar(100);not null"`
	AccessToken  string                   `gorm:"type:text;not null"`
	RefreshToken string                   `gorm:"type:text"`
	ExpiresAt    *time.Time
	UpdatedAt    time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (PlatformCredentialModel) TableName() string {
	return "platform_credentials"
}

// ToDomain converts the persistence model to a domain Credential
func (m *PlatformCredentialModel) ToDomain() *integration.Credential {
	return &integration.Credential{
		TenantID:     m.TenantID,
		Platform:     m.Platform,
		ShopID:       m.ShopID,
		AccessToken:  m.AccessToken,
		RefreshToken: m.RefreshToken,
		ExpiresAt:    m.ExpiresAt,
	}
}
