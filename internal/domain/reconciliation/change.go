package reconciliation

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/shopsync/backend/internal/domain/integration"
)

// Kind is the type of a detected change
type Kind string

const (
	KindNewOrder         Kind = "new_order"
	KindStatusTransition Kind = "status_transition"
	KindStockBreach      Kind = "stock_breach"
	KindStockRestock     Kind = "stock_restock"
)

// IsOrderKind returns true for changes that carry an OrderDetail
func (k Kind) IsOrderKind() bool {
	return k == KindNewOrder || k == KindStatusTransition
}

// OrderDetail is the payload of new_order and status_transition changes
type OrderDetail struct {
	PlatformOrderID string
	// OldStatus is empty for new orders
	OldStatus       integration.PlatformOrderStatus
	NewStatus       integration.PlatformOrderStatus
	TotalAmount     decimal.Decimal
	Currency        string
	BuyerName       string
	RemoteUpdatedAt time.Time
}

// StockDetail is the payload of stock_breach and stock_restock changes
type StockDetail struct {
	PlatformProductID string
	PlatformSkuID     string
	SKU               string
	Name              string
	// Before is nil when the product had no local record
	Before    *int
	After     int
	Threshold int
}

// Change is one delta between local and remote state. Exactly one of Order
// and Stock is set, matching Kind.
type Change struct {
	Kind     Kind
	Platform integration.PlatformCode
	EntityID string
	Order    *OrderDetail
	Stock    *StockDetail
}

// DedupEntity returns the entity part of the notification dedup key.
// Status transitions include the target status so a later transition of the
// same order is not suppressed by the alert for an earlier one.
func (c Change) DedupEntity() string {
	entity := string(c.Platform) + ":" + c.EntityID
	if c.Kind == KindStatusTransition && c.Order != nil {
		entity += "->" + string(c.Order.NewStatus)
	}
	return entity
}

// Ambiguity records conflicting reports for the same order at the same
// remote timestamp. The engine keeps the last reported one.
type Ambiguity struct {
	Platform        integration.PlatformCode
	PlatformOrderID string
	ReportedAt      time.Time
	Statuses        []integration.PlatformOrderStatus
	Chosen          integration.PlatformOrderStatus
}
