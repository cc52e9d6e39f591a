package notification

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/shopsync/backend/internal/domain/shared"
)

var (
	ErrNotificationNotFound = errors.New("notification: not found")
	ErrInvalidType          = errors.New("notification: invalid type")
	ErrInvalidPriority      = errors.New("notification: invalid priority")
	ErrMissingDedupKey      = errors.New("notification: dedup key is required")
)

// Type is the user-facing category of a notification
type Type string

const (
	TypeNewOrder    Type = "new_order"
	TypeOrderStatus Type = "order_status"
	TypeLowStock    Type = "low_stock"
	TypeRestock     Type = "restock"
	TypeSyncError   Type = "sync_error"
	TypeAPIError    Type = "api_error"
)

// IsValid returns true if the type is known
func (t Type) IsValid() bool {
	switch t {
	case TypeNewOrder, TypeOrderStatus, TypeLowStock, TypeRestock, TypeSyncError, TypeAPIError:
		return true
	default:
		return false
	}
}

// Priority is the severity shown to the tenant
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityNormal   Priority = "normal"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// IsValid returns true if the priority is known
func (p Priority) IsValid() bool {
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh, PriorityCritical:
		return true
	default:
		return false
	}
}

// Metadata is the structured context attached to a notification
type Metadata struct {
	Platform        string     `json:"platform,omitempty"`
	PlatformOrderID string     `json:"platform_order_id,omitempty"`
	OldStatus       string     `json:"old_status,omitempty"`
	NewStatus       string     `json:"new_status,omitempty"`
	TotalAmount     string     `json:"total_amount,omitempty"`
	Currency        string     `json:"currency,omitempty"`
	ProductID       string     `json:"product_id,omitempty"`
	SKU             string     `json:"sku,omitempty"`
	StockBefore     *int       `json:"stock_before,omitempty"`
	StockAfter      *int       `json:"stock_after,omitempty"`
	Threshold       *int       `json:"threshold,omitempty"`
	JobID           *uuid.UUID `json:"job_id,omitempty"`
	ScheduleID      *uuid.UUID `json:"schedule_id,omitempty"`
	FailureReason   string     `json:"failure_reason,omitempty"`
	Error           string     `json:"error,omitempty"`
}

// Notification is a user-visible alert. The sync core only creates them;
// reading and archiving belong to the dashboard.
type Notification struct {
	shared.TenantEntity
	Type     Type
	Title    string
	Message  string
	Priority Priority
	// EntityID and Kind identify what the alert is about
	EntityID   string
	Kind       string
	DedupKey   string
	IsRead     bool
	IsArchived bool
	Metadata   Metadata
	ExpiresAt  *time.Time
}

// New creates an unread notification
func New(tenantID uuid.UUID, typ Type, priority Priority, kind, entityID, title, message string, now time.Time) (*Notification, error) {
	if !typ.IsValid() {
		return nil, ErrInvalidType
	}
	if !priority.IsValid() {
		return nil, ErrInvalidPriority
	}
	if kind == "" || entityID == "" {
		return nil, ErrMissingDedupKey
	}
	return &Notification{
		TenantEntity: shared.NewTenantEntity(tenantID, now),
		Type:         typ,
		Title:        title,
		Message:      message,
		Priority:     priority,
		EntityID:     entityID,
		Kind:         kind,
		DedupKey:     DedupKey(kind, entityID),
	}, nil
}

// DedupKey builds the equivalence key used to suppress duplicate alerts
func DedupKey(kind, entityID string) string {
	return kind + ":" + entityID
}

// IsActive returns true while the notification still suppresses duplicates
func (n *Notification) IsActive(now time.Time) bool {
	if n.IsRead || n.IsArchived {
		return false
	}
	return n.ExpiresAt == nil || now.Before(*n.ExpiresAt)
}

// Repository persists notifications
type Repository interface {
	Create(ctx context.Context, n *Notification) error
	// FindActive returns the unread, unarchived, unexpired notification with
	// the dedup key, or ErrNotificationNotFound
	FindActive(ctx context.Context, tenantID uuid.UUID, dedupKey string, now time.Time) (*Notification, error)
	ListActive(ctx context.Context, tenantID uuid.UUID, now time.Time, limit int) ([]Notification, error)
}
