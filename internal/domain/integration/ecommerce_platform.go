package integration

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// EcommercePlatform Errors
// ---------------------------------------------------------------------------

var (
	// Platform errors
	ErrPlatformNotConfigured   = errors.New("integration: platform not configured")
	ErrPlatformNotRegistered   = errors.New("integration: platform adapter not registered")
	ErrPlatformUnavailable     = errors.New("integration: platform temporarily unavailable")
	ErrPlatformRequestFailed   = errors.New("integration: platform request failed")
	ErrPlatformInvalidResponse = errors.New("integration: invalid platform response")
	ErrPlatformAuthFailed      = errors.New("integration: platform authentication failed")
	ErrPlatformRateLimited     = errors.New("integration: platform rate limited")

	// Request validation errors
	ErrInvalidTenantID       = errors.New("integration: invalid tenant ID")
	ErrInvalidPlatformCode   = errors.New("integration: invalid platform code")
	ErrInvalidProductRef     = errors.New("integration: product reference requires a platform product ID")
	ErrInvalidQuantity       = errors.New("integration: quantity must not be negative")
	ErrInvalidOrderAction    = errors.New("integration: invalid order action")
	ErrMissingOrderID        = errors.New("integration: platform order ID is required")
	ErrMissingTrackingNumber = errors.New("integration: tracking number is required to ship an order")

	// Credential errors
	ErrCredentialNotFound = errors.New("integration: platform credential not found")
	ErrCredentialExpired  = errors.New("integration: platform credential expired")
)

// ---------------------------------------------------------------------------
// PlatformCode represents the type of e-commerce platform
// ---------------------------------------------------------------------------

// PlatformCode represents the type of e-commerce platform
type PlatformCode string

const (
	// PlatformCodeShopee represents the Shopee marketplace
	PlatformCodeShopee PlatformCode = "shopee"
	// PlatformCodeTikTokShop represents the TikTok Shop marketplace
	PlatformCodeTikTokShop PlatformCode = "tiktokshop"
	// PlatformCodeAll targets every registered platform. It is only valid on
	// schedules and jobs, never on an adapter.
	PlatformCodeAll PlatformCode = "all"
)

// IsValid returns true if the platform code names a concrete marketplace
func (c PlatformCode) IsValid() bool {
	switch c {
	case PlatformCodeShopee, PlatformCodeTikTokShop:
		return true
	default:
		return false
	}
}

// IsValidTarget returns true if the code can be used as a schedule or job target
func (c PlatformCode) IsValidTarget() bool {
	return c == PlatformCodeAll || c.IsValid()
}

// String returns the string representation of PlatformCode
func (c PlatformCode) String() string {
	return string(c)
}

// DisplayName returns a human-readable name for the platform
func (c PlatformCode) DisplayName() string {
	switch c {
	case PlatformCodeShopee:
		return "Shopee"
	case PlatformCodeTikTokShop:
		return "TikTok Shop"
	case PlatformCodeAll:
		return "All platforms"
	default:
		return string(c)
	}
}

// ---------------------------------------------------------------------------
// PlatformOrderStatus represents the status of an order on the platform
// ---------------------------------------------------------------------------

// PlatformOrderStatus represents the status of an order on the platform
type PlatformOrderStatus string

const (
	// PlatformOrderStatusPending indicates order is pending payment
	PlatformOrderStatusPending PlatformOrderStatus = "pending"
	// PlatformOrderStatusPaid indicates payment received, pending shipment
	PlatformOrderStatusPaid PlatformOrderStatus = "paid"
	// PlatformOrderStatusShipped indicates order has been shipped
	PlatformOrderStatusShipped PlatformOrderStatus = "shipped"
	// PlatformOrderStatusDelivered indicates order delivered
	PlatformOrderStatusDelivered PlatformOrderStatus = "delivered"
	// PlatformOrderStatusCompleted indicates order completed (buyer confirmed)
	PlatformOrderStatusCompleted PlatformOrderStatus = "completed"
	// PlatformOrderStatusCancelled indicates order was cancelled
	PlatformOrderStatusCancelled PlatformOrderStatus = "cancelled"
	// PlatformOrderStatusRefunding indicates refund in progress
	PlatformOrderStatusRefunding PlatformOrderStatus = "refunding"
	// PlatformOrderStatusRefunded indicates order was refunded
	PlatformOrderStatusRefunded PlatformOrderStatus = "refunded"
	// PlatformOrderStatusClosed indicates order was closed
	PlatformOrderStatusClosed PlatformOrderStatus = "closed"
)

// IsValid returns true if the status is valid
func (s PlatformOrderStatus) IsValid() bool {
	switch s {
	case PlatformOrderStatusPending, PlatformOrderStatusPaid, PlatformOrderStatusShipped,
		PlatformOrderStatusDelivered, PlatformOrderStatusCompleted, PlatformOrderStatusCancelled,
		PlatformOrderStatusRefunding, PlatformOrderStatusRefunded, PlatformOrderStatusClosed:
		return true
	default:
		return false
	}
}

// String returns the string representation of PlatformOrderStatus
func (s PlatformOrderStatus) String() string {
	return string(s)
}

// IsFinal returns true if the status is a final (terminal) state
func (s PlatformOrderStatus) IsFinal() bool {
	switch s {
	case PlatformOrderStatusCompleted, PlatformOrderStatusCancelled,
		PlatformOrderStatusRefunded, PlatformOrderStatusClosed:
		return true
	default:
		return false
	}
}

// NeedsAttention returns true for statuses a seller must react to quickly
func (s PlatformOrderStatus) NeedsAttention() bool {
	return s == PlatformOrderStatusCancelled || s == PlatformOrderStatusRefunding
}

// ---------------------------------------------------------------------------
// OrderAction represents a seller-side order status change
// ---------------------------------------------------------------------------

// OrderAction represents an action pushed to the platform for an order
type OrderAction string

const (
	// OrderActionShip confirms shipment with a tracking number
	OrderActionShip OrderAction = "ship"
	// OrderActionCancel cancels the order on the platform
	OrderActionCancel OrderAction = "cancel"
)

// IsValid returns true if the action is supported
func (a OrderAction) IsValid() bool {
	return a == OrderActionShip || a == OrderActionCancel
}

// ---------------------------------------------------------------------------
// Value Objects
// ---------------------------------------------------------------------------

// PlatformOrder represents an order as reported by an external platform
type PlatformOrder struct {
	// PlatformOrderID is the order ID on the platform
	PlatformOrderID string
	// PlatformCode identifies which platform this order is from
	PlatformCode PlatformCode
	// Status is the current order status on the platform
	Status PlatformOrderStatus
	// BuyerName is the buyer's display name
	BuyerName string
	// TotalAmount is the total order amount (what buyer paid)
	TotalAmount decimal.Decimal
	// Currency is the payment currency
	Currency string
	// Items contains the order line items
	Items []PlatformOrderItem
	// CreatedAt is when the order was created on the platform
	CreatedAt time.Time
	// UpdatedAt is the platform's last-modified timestamp, used to order reports
	UpdatedAt time.Time
}

// PlatformOrderItem represents a line item in a platform order
type PlatformOrderItem struct {
	PlatformProductID string
	PlatformSkuID     string
	ProductName       string
	Quantity          int
	UnitPrice         decimal.Decimal
}

// PlatformProduct represents one sellable SKU as reported by a platform
type PlatformProduct struct {
	// PlatformProductID is the product (item) ID on the platform
	PlatformProductID string
	// PlatformSkuID is the SKU (model) ID; empty for single-SKU products
	PlatformSkuID string
	// PlatformCode identifies which platform this product is from
	PlatformCode PlatformCode
	// SKU is the seller SKU code
	SKU string
	// Name is the product name
	Name string
	// StockQuantity is the sellable stock on the platform
	StockQuantity int
	// Price is the current selling price
	Price decimal.Decimal
	// UpdatedAt is the platform's last-modified timestamp
	UpdatedAt time.Time
}

// Key returns the identity of the product within a platform
func (p PlatformProduct) Key() string {
	return ProductKey(p.PlatformProductID, p.PlatformSkuID)
}

// ProductKey builds the product identity used to match remote and local records
func ProductKey(productID, skuID string) string {
	if skuID == "" {
		return productID
	}
	return productID + "/" + skuID
}

// ProductRef addresses a product SKU on a platform
type ProductRef struct {
	PlatformProductID string
	PlatformSkuID     string
}

// Validate validates the product reference
func (r ProductRef) Validate() error {
	if r.PlatformProductID == "" {
		return ErrInvalidProductRef
	}
	return nil
}

// OrderStatusUpdate represents a request to change an order's status on a platform
type OrderStatusUpdate struct {
	// PlatformOrderID is the order ID on the platform
	PlatformOrderID string `json:"platform_order_id"`
	// Action is the change to apply
	Action OrderAction `json:"action"`
	// TrackingNumber is required when shipping
	TrackingNumber string `json:"tracking_number,omitempty"`
	// Carrier is the shipping provider name (optional)
	Carrier string `json:"carrier,omitempty"`
	// CancelReason is passed to the platform when cancelling
	CancelReason string `json:"cancel_reason,omitempty"`
}

// Validate validates the order status update
func (u OrderStatusUpdate) Validate() error {
	if u.PlatformOrderID == "" {
		return ErrMissingOrderID
	}
	if !u.Action.IsValid() {
		return ErrInvalidOrderAction
	}
	if u.Action == OrderActionShip && u.TrackingNumber == "" {
		return ErrMissingTrackingNumber
	}
	return nil
}

// ---------------------------------------------------------------------------
// EcommercePlatform Port Interface
// ---------------------------------------------------------------------------

// EcommercePlatform defines the port interface for external e-commerce platforms.
// Credentials are supplied on every call; adapters never retain them.
// All errors returned by an adapter are *PlatformError values so callers can
// tell a retryable failure from one that must not be retried.
type EcommercePlatform interface {
	// PlatformCode returns the platform code this adapter handles
	PlatformCode() PlatformCode

	// FetchOrders returns orders updated at or after since
	FetchOrders(ctx context.Context, cred *Credential, since time.Time) ([]PlatformOrder, error)

	// FetchProducts returns every active product SKU of the shop
	FetchProducts(ctx context.Context, cred *Credential) ([]PlatformProduct, error)

	// PushInventory sets the sellable quantity of one SKU
	PushInventory(ctx context.Context, cred *Credential, ref ProductRef, quantity int) error

	// UpdateOrderStatus ships or cancels an order
	UpdateOrderStatus(ctx context.Context, cred *Credential, update OrderStatusUpdate) error
}

// EcommercePlatformRegistry provides access to configured e-commerce platforms
type EcommercePlatformRegistry interface {
	// GetPlatform returns the platform adapter for the specified code
	GetPlatform(platformCode PlatformCode) (EcommercePlatform, error)

	// ListPlatforms returns all registered platform adapters
	ListPlatforms() []EcommercePlatform

	// Resolve expands a schedule/job target into concrete adapters.
	// PlatformCodeAll yields every registered adapter.
	Resolve(target PlatformCode) ([]EcommercePlatform, error)
}

// ---------------------------------------------------------------------------
// Credentials
// ---------------------------------------------------------------------------

// Credential is the per-tenant authorization for one platform shop
type Credential struct {
	TenantID     uuid.UUID
	Platform     PlatformCode
	ShopID       string
	AccessToken  string
	RefreshToken string
	ExpiresAt    *time.Time
}

// IsExpired returns true if the access token expiry has passed
func (c *Credential) IsExpired(now time.Time) bool {
	return c.ExpiresAt != nil && !now.Before(*c.ExpiresAt)
}

// CredentialStore is the read-only view of the external credential store.
// Refreshing tokens is done elsewhere; the sync core only reads.
type CredentialStore interface {
	// GetCredential returns ErrCredentialNotFound when the tenant has not connected the platform
	GetCredential(ctx context.Context, tenantID uuid.UUID, platform PlatformCode) (*Credential, error)
}
