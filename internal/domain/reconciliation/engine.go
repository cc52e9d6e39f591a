// Package reconciliation compares freshly fetched platform state with the last
// known local state and reports the changes worth alerting on. Everything in
// this package is pure: no I/O, no clocks.
package reconciliation

import (
	"github.com/google/uuid"

	"github.com/shopsync/backend/internal/domain/integration"
)

// LocalSnapshot is the stored state of one tenant
type LocalSnapshot struct {
	Orders   []integration.OrderSnapshot
	Products []integration.ProductSnapshot
}

// RemoteSnapshot is the state just fetched from the platforms
type RemoteSnapshot struct {
	Orders   []integration.PlatformOrder
	Products []integration.PlatformProduct
}

// Options tunes reconciliation
type Options struct {
	// DefaultLowStockThreshold applies to products without a local record
	// or without a threshold of their own
	DefaultLowStockThreshold int
}

// Result is the outcome of one reconciliation pass
type Result struct {
	Changes     []Change
	Ambiguities []Ambiguity
	// Orders and Products are the snapshots to store so that the next pass
	// against the same remote state yields no changes
	Orders   []integration.OrderSnapshot
	Products []integration.ProductSnapshot
}

// Engine runs reconciliation passes with fixed options
type Engine struct {
	opts Options
}

// NewEngine creates a reconciliation engine
func NewEngine(opts Options) *Engine {
	return &Engine{opts: opts}
}

// Reconcile compares remote with local for one tenant. Local records of other
// tenants are ignored. Changes are returned in the order the remote snapshot
// first reports each entity.
func (e *Engine) Reconcile(tenantID uuid.UUID, local LocalSnapshot, remote RemoteSnapshot) Result {
	var res Result
	e.reconcileOrders(tenantID, local.Orders, remote.Orders, &res)
	e.reconcileProducts(tenantID, local.Products, remote.Products, &res)
	return res
}

// Reconcile runs a single pass with the given options
func Reconcile(tenantID uuid.UUID, local LocalSnapshot, remote RemoteSnapshot, opts Options) Result {
	return NewEngine(opts).Reconcile(tenantID, local, remote)
}

// ---------------------------------------------------------------------------
// Orders
// ---------------------------------------------------------------------------

func orderKey(platform integration.PlatformCode, id string) string {
	return string(platform) + "|" + id
}

func (e *Engine) reconcileOrders(tenantID uuid.UUID, local []integration.OrderSnapshot, remote []integration.PlatformOrder, res *Result) {
	known := make(map[string]integration.OrderSnapshot, len(local))
	for _, o := range local {
		if o.TenantID != tenantID {
			continue
		}
		known[orderKey(o.Platform, o.PlatformOrderID)] = o
	}

	order, groups := groupOrders(remote)
	for _, key := range order {
		latest, amb := latestReport(groups[key])
		if amb != nil {
			res.Ambiguities = append(res.Ambiguities, *amb)
		}

		prev, exists := known[key]
		if exists && !prev.RemoteUpdatedAt.IsZero() && !latest.UpdatedAt.IsZero() &&
			latest.UpdatedAt.Before(prev.RemoteUpdatedAt) {
			// Stale report: local already reflects a newer platform state.
			continue
		}

		snap := integration.OrderSnapshotFromPlatform(tenantID, latest)
		if exists {
			snap.PendingUpdate = prev.PendingUpdate
		}
		res.Orders = append(res.Orders, snap)

		detail := &OrderDetail{
			PlatformOrderID: latest.PlatformOrderID,
			NewStatus:       latest.Status,
			TotalAmount:     latest.TotalAmount,
			Currency:        latest.Currency,
			BuyerName:       latest.BuyerName,
			RemoteUpdatedAt: latest.UpdatedAt,
		}
		switch {
		case !exists:
			res.Changes = append(res.Changes, Change{
				Kind:     KindNewOrder,
				Platform: latest.PlatformCode,
				EntityID: latest.PlatformOrderID,
				Order:    detail,
			})
		case prev.Status != latest.Status:
			detail.OldStatus = prev.Status
			res.Changes = append(res.Changes, Change{
				Kind:     KindStatusTransition,
				Platform: latest.PlatformCode,
				EntityID: latest.PlatformOrderID,
				Order:    detail,
			})
		}
	}
}

// groupOrders buckets reports per order, keeping first-seen order of keys
func groupOrders(remote []integration.PlatformOrder) ([]string, map[string][]integration.PlatformOrder) {
	var order []string
	groups := make(map[string][]integration.PlatformOrder)
	for _, o := range remote {
		key := orderKey(o.PlatformCode, o.PlatformOrderID)
		if _, seen := groups[key]; !seen {
			order = append(order, key)
		}
		groups[key] = append(groups[key], o)
	}
	return order, groups
}

// latestReport picks the most recent report by remote timestamp. Among
// reports sharing the newest timestamp the last reported wins, and differing
// statuses at that timestamp are returned as an ambiguity.
func latestReport(reports []integration.PlatformOrder) (integration.PlatformOrder, *Ambiguity) {
	latest := reports[0]
	for _, r := range reports[1:] {
		if !r.UpdatedAt.Before(latest.UpdatedAt) {
			latest = r
		}
	}

	var statuses []integration.PlatformOrderStatus
	conflict := false
	for _, r := range reports {
		if !r.UpdatedAt.Equal(latest.UpdatedAt) {
			continue
		}
		statuses = append(statuses, r.Status)
		if r.Status != latest.Status {
			conflict = true
		}
	}
	if !conflict {
		return latest, nil
	}
	return latest, &Ambiguity{
		Platform:        latest.PlatformCode,
		PlatformOrderID: latest.PlatformOrderID,
		ReportedAt:      latest.UpdatedAt,
		Statuses:        statuses,
		Chosen:          latest.Status,
	}
}

// ---------------------------------------------------------------------------
// Products
// ---------------------------------------------------------------------------

func productKey(platform integration.PlatformCode, key string) string {
	return string(platform) + "|" + key
}

func (e *Engine) reconcileProducts(tenantID uuid.UUID, local []integration.ProductSnapshot, remote []integration.PlatformProduct, res *Result) {
	known := make(map[string]integration.ProductSnapshot, len(local))
	for _, p := range local {
		if p.TenantID != tenantID {
			continue
		}
		known[productKey(p.Platform, p.Key())] = p
	}

	// Later reports of the same SKU replace earlier ones unless they are older.
	var order []string
	latest := make(map[string]integration.PlatformProduct)
	for _, p := range remote {
		key := productKey(p.PlatformCode, p.Key())
		cur, seen := latest[key]
		if !seen {
			order = append(order, key)
		}
		if !seen || !p.UpdatedAt.Before(cur.UpdatedAt) {
			latest[key] = p
		}
	}

	for _, key := range order {
		p := latest[key]
		prev, exists := known[key]

		// A stored threshold of zero was never set
		threshold := e.opts.DefaultLowStockThreshold
		if exists && prev.LowStockThreshold > 0 {
			threshold = prev.LowStockThreshold
		}

		snap := integration.ProductSnapshotFromPlatform(tenantID, p, threshold)
		if exists {
			snap.LocalQuantity = prev.LocalQuantity
		}
		res.Products = append(res.Products, snap)

		wasBelow := exists && prev.StockQuantity < threshold
		nowBelow := p.StockQuantity < threshold

		var kind Kind
		switch {
		case !wasBelow && nowBelow:
			kind = KindStockBreach
		case wasBelow && !nowBelow:
			kind = KindStockRestock
		default:
			continue
		}

		detail := &StockDetail{
			PlatformProductID: p.PlatformProductID,
			PlatformSkuID:     p.PlatformSkuID,
			SKU:               p.SKU,
			Name:              p.Name,
			After:             p.StockQuantity,
			Threshold:         threshold,
		}
		if exists {
			before := prev.StockQuantity
			detail.Before = &before
		}
		res.Changes = append(res.Changes, Change{
			Kind:     kind,
			Platform: p.PlatformCode,
			EntityID: p.Key(),
			Stock:    detail,
		})
	}
}
