package scheduling

import (
	"fmt"
	"time"

	"github.com/shopsync/backend/internal/domain/integration"
)

// ---------------------------------------------------------------------------
// JobType
// ---------------------------------------------------------------------------

// JobType is one of the fixed synchronization job kinds
type JobType string

const (
	// JobTypeInventorySync pulls product stock and optionally pushes local quantities
	JobTypeInventorySync JobType = "inventory_sync"
	// JobTypeOrderMonitor pulls recently updated orders and detects new orders and transitions
	JobTypeOrderMonitor JobType = "order_monitor"
	// JobTypeStatusSync pushes queued seller-side order status changes
	JobTypeStatusSync JobType = "status_sync"
)

// IsValid returns true if the job type is known
func (t JobType) IsValid() bool {
	switch t {
	case JobTypeInventorySync, JobTypeOrderMonitor, JobTypeStatusSync:
		return true
	default:
		return false
	}
}

// String returns the string representation of JobType
func (t JobType) String() string {
	return string(t)
}

// ---------------------------------------------------------------------------
// JobParameters
// ---------------------------------------------------------------------------

// JobParameters carries the job-type specific options. At most one field is
// set and it must match the job type.
type JobParameters struct {
	Inventory *InventorySyncParams `json:"inventory,omitempty"`
	Orders    *OrderMonitorParams  `json:"orders,omitempty"`
	Status    *StatusSyncParams    `json:"status,omitempty"`
}

// InventorySyncParams configures an inventory_sync job
type InventorySyncParams struct {
	// PushLocal pushes local warehouse quantities to the platform after the pull
	PushLocal bool `json:"push_local,omitempty"`
	// ProductIDs limits the push to these platform product IDs
	ProductIDs []string `json:"product_ids,omitempty"`
}

// OrderMonitorParams configures an order_monitor job
type OrderMonitorParams struct {
	// Since overrides the pull window start
	Since *time.Time `json:"since,omitempty"`
	// LookbackMinutes sets the pull window relative to the run time
	LookbackMinutes int `json:"lookback_minutes,omitempty"`
}

// StatusSyncParams configures a status_sync job
type StatusSyncParams struct {
	// Updates are pushed in addition to the queued pending updates
	Updates []integration.OrderStatusUpdate `json:"updates,omitempty"`
}

// IsEmpty returns true if no variant is set
func (p JobParameters) IsEmpty() bool {
	return p.Inventory == nil && p.Orders == nil && p.Status == nil
}

// ValidateFor checks that only the variant belonging to jobType is set
func (p JobParameters) ValidateFor(jobType JobType) error {
	set := 0
	if p.Inventory != nil {
		set++
		if jobType != JobTypeInventorySync {
			return fmt.Errorf("%w: inventory parameters on %s", ErrInvalidParameters, jobType)
		}
	}
	if p.Orders != nil {
		set++
		if jobType != JobTypeOrderMonitor {
			return fmt.Errorf("%w: order parameters on %s", ErrInvalidParameters, jobType)
		}
		if p.Orders.LookbackMinutes < 0 {
			return fmt.Errorf("%w: negative lookback", ErrInvalidParameters)
		}
	}
	if p.Status != nil {
		set++
		if jobType != JobTypeStatusSync {
			return fmt.Errorf("%w: status parameters on %s", ErrInvalidParameters, jobType)
		}
		for _, u := range p.Status.Updates {
			if err := u.Validate(); err != nil {
				return fmt.Errorf("%w: %v", ErrInvalidParameters, err)
			}
		}
	}
	if set > 1 {
		return fmt.Errorf("%w: more than one variant set", ErrInvalidParameters)
	}
	return nil
}

// InventoryOrDefault returns the inventory variant or zero options
func (p JobParameters) InventoryOrDefault() InventorySyncParams {
	if p.Inventory == nil {
		return InventorySyncParams{}
	}
	return *p.Inventory
}

// OrdersOrDefault returns the order monitor variant or zero options
func (p JobParameters) OrdersOrDefault() OrderMonitorParams {
	if p.Orders == nil {
		return OrderMonitorParams{}
	}
	return *p.Orders
}

// StatusOrDefault returns the status sync variant or zero options
func (p JobParameters) StatusOrDefault() StatusSyncParams {
	if p.Status == nil {
		return StatusSyncParams{}
	}
	return *p.Status
}
