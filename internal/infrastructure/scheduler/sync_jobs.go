package scheduler

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/shopsync/backend/internal/domain/integration"
	"github.com/shopsync/backend/internal/domain/reconciliation"
	"github.com/shopsync/backend/internal/domain/scheduling"
)

// ---------------------------------------------------------------------------
// order_monitor
// ---------------------------------------------------------------------------

// monitorOrders pulls recently updated orders, alerts on new orders and
// status transitions and stores the snapshots.
func (e *Executor) monitorOrders(ctx context.Context, run *jobRun, pc platformCall) error {
	tenantID := run.job.TenantID
	since := e.orderWindowStart(run.job.Parameters.OrdersOrDefault())

	var remote []integration.PlatformOrder
	err := e.call(ctx, run, func(ctx context.Context) error {
		var err error
		remote, err = pc.adapter.FetchOrders(ctx, pc.cred, since)
		return err
	})
	if err != nil {
		return err
	}
	for i := range remote {
		if remote[i].PlatformCode == "" {
			remote[i].PlatformCode = pc.code
		}
	}

	local, err := e.deps.Orders.ListByPlatform(ctx, tenantID, pc.code)
	if err != nil {
		return fmt.Errorf("load order snapshots: %w", err)
	}

	res := e.deps.Engine.Reconcile(tenantID,
		reconciliation.LocalSnapshot{Orders: local},
		reconciliation.RemoteSnapshot{Orders: remote},
	)
	if err := e.publish(ctx, run, pc.code, res); err != nil {
		return err
	}
	if err := e.deps.Orders.Upsert(ctx, res.Orders); err != nil {
		return fmt.Errorf("store order snapshots: %w", err)
	}
	run.pulled(len(remote))
	return nil
}

func (e *Executor) orderWindowStart(params scheduling.OrderMonitorParams) time.Time {
	if params.Since != nil {
		return *params.Since
	}
	lookback := e.config.OrderLookback
	if params.LookbackMinutes > 0 {
		lookback = time.Duration(params.LookbackMinutes) * time.Minute
	}
	return e.now().Add(-lookback)
}

// ---------------------------------------------------------------------------
// inventory_sync
// ---------------------------------------------------------------------------

type inventoryPush struct {
	ref      integration.ProductRef
	quantity int
}

// syncInventory pulls product stock, alerts on threshold crossings, stores
// the snapshots and optionally pushes local warehouse quantities.
func (e *Executor) syncInventory(ctx context.Context, run *jobRun, pc platformCall) error {
	tenantID := run.job.TenantID

	var remote []integration.PlatformProduct
	err := e.call(ctx, run, func(ctx context.Context) error {
		var err error
		remote, err = pc.adapter.FetchProducts(ctx, pc.cred)
		return err
	})
	if err != nil {
		return err
	}
	for i := range remote {
		if remote[i].PlatformCode == "" {
			remote[i].PlatformCode = pc.code
		}
	}

	local, err := e.deps.Products.ListByPlatform(ctx, tenantID, pc.code)
	if err != nil {
		return fmt.Errorf("load product snapshots: %w", err)
	}

	res := e.deps.Engine.Reconcile(tenantID,
		reconciliation.LocalSnapshot{Products: local},
		reconciliation.RemoteSnapshot{Products: remote},
	)
	if err := e.publish(ctx, run, pc.code, res); err != nil {
		return err
	}
	if err := e.deps.Products.Upsert(ctx, res.Products); err != nil {
		return fmt.Errorf("store product snapshots: %w", err)
	}
	run.pulled(len(remote))

	params := run.job.Parameters.InventoryOrDefault()
	if !params.PushLocal {
		return nil
	}

	pushes := pendingPushes(local, remote, params.ProductIDs)
	return forEachChunk(ctx, pushes, e.config.ChunkSize, e.config.ChunkPause, e.pause,
		func(ctx context.Context, p inventoryPush) error {
			itemID := integration.ProductKey(p.ref.PlatformProductID, p.ref.PlatformSkuID)
			err := e.call(ctx, run, func(ctx context.Context) error {
				return pc.adapter.PushInventory(ctx, pc.cred, p.ref, p.quantity)
			})
			if err != nil {
				return run.itemFailed(pc.code, itemID, err)
			}
			if err := e.deps.Products.UpdateStockQuantity(ctx, tenantID, pc.code, p.ref, p.quantity); err != nil {
				return fmt.Errorf("record pushed quantity of %s: %w", itemID, err)
			}
			run.itemSucceeded()
			return nil
		})
}

// pendingPushes lists local quantities that differ from what the platform
// just reported. Products the platform no longer reports are skipped.
func pendingPushes(local []integration.ProductSnapshot, remote []integration.PlatformProduct, only []string) []inventoryPush {
	remoteQty := make(map[string]int, len(remote))
	for _, p := range remote {
		remoteQty[p.Key()] = p.StockQuantity
	}
	var filter map[string]bool
	if len(only) > 0 {
		filter = make(map[string]bool, len(only))
		for _, id := range only {
			filter[id] = true
		}
	}

	var pushes []inventoryPush
	for _, p := range local {
		if p.LocalQuantity == nil {
			continue
		}
		if filter != nil && !filter[p.PlatformProductID] {
			continue
		}
		qty, ok := remoteQty[p.Key()]
		if !ok || qty == *p.LocalQuantity {
			continue
		}
		pushes = append(pushes, inventoryPush{ref: p.Ref(), quantity: *p.LocalQuantity})
	}
	return pushes
}

// ---------------------------------------------------------------------------
// status_sync
// ---------------------------------------------------------------------------

type statusPush struct {
	update integration.OrderStatusUpdate
	// queued updates are cleared from the snapshot once accepted
	queued bool
}

// syncStatuses pushes queued seller-side order changes plus any explicit
// updates carried by the job.
func (e *Executor) syncStatuses(ctx context.Context, run *jobRun, pc platformCall) error {
	tenantID := run.job.TenantID

	pending, err := e.deps.Orders.ListPendingUpdates(ctx, tenantID, pc.code)
	if err != nil {
		return fmt.Errorf("load pending status updates: %w", err)
	}

	var pushes []statusPush
	for _, o := range pending {
		if o.PendingUpdate == nil {
			continue
		}
		u := *o.PendingUpdate
		u.PlatformOrderID = o.PlatformOrderID
		pushes = append(pushes, statusPush{update: u, queued: true})
	}
	// Explicit updates name no platform, so they only apply to single-platform jobs.
	if run.job.Platform == pc.code {
		for _, u := range run.job.Parameters.StatusOrDefault().Updates {
			pushes = append(pushes, statusPush{update: u})
		}
	}

	return forEachChunk(ctx, pushes, e.config.ChunkSize, e.config.ChunkPause, e.pause,
		func(ctx context.Context, p statusPush) error {
			orderID := p.update.PlatformOrderID
			if err := p.update.Validate(); err != nil {
				return run.itemFailed(pc.code, orderID,
					integration.NewPermanentError(pc.code, "update_order_status", err))
			}
			err := e.call(ctx, run, func(ctx context.Context) error {
				return pc.adapter.UpdateOrderStatus(ctx, pc.cred, p.update)
			})
			if err != nil {
				return run.itemFailed(pc.code, orderID, err)
			}
			if p.queued {
				if err := e.deps.Orders.ClearPendingUpdate(ctx, tenantID, pc.code, orderID); err != nil {
					return fmt.Errorf("clear pending update of %s: %w", orderID, err)
				}
			}
			run.itemSucceeded()
			return nil
		})
}

// ---------------------------------------------------------------------------
// Chunking
// ---------------------------------------------------------------------------

// forEachChunk runs fn over items in chunks of size. Items of a chunk run
// concurrently; chunks run one after another with gap between them. The
// first error stops the remaining chunks.
func forEachChunk[T any](
	ctx context.Context,
	items []T,
	size int,
	gap time.Duration,
	pause func(context.Context, time.Duration) error,
	fn func(context.Context, T) error,
) error {
	for start := 0; start < len(items); start += size {
		if start > 0 && gap > 0 {
			if err := pause(ctx, gap); err != nil {
				return err
			}
		}
		end := min(start+size, len(items))

		g, gctx := errgroup.WithContext(ctx)
		for _, item := range items[start:end] {
			g.Go(func() (err error) {
				defer func() {
					if r := recover(); r != nil {
						err = fmt.Errorf("%w: %v", ErrJobPanicked, r)
					}
				}()
				return fn(gctx, item)
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
	}
	return nil
}

// sleepContext waits for d or until ctx is done
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
