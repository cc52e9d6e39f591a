package alert

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/shopsync/backend/internal/domain/integration"
	"github.com/shopsync/backend/internal/domain/notification"
	"github.com/shopsync/backend/internal/domain/reconciliation"
)

// memoryRepo is an in-memory notification.Repository
type memoryRepo struct {
	mu    sync.Mutex
	items []*notification.Notification
}

func (r *memoryRepo) Create(_ context.Context, n *notification.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, n)
	return nil
}

func (r *memoryRepo) FindActive(_ context.Context, tenantID uuid.UUID, key string, now time.Time) (*notification.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, n := range r.items {
		if n.TenantID == tenantID && n.DedupKey == key && n.IsActive(now) {
			return n, nil
		}
	}
	return nil, notification.ErrNotificationNotFound
}

func (r *memoryRepo) ListActive(_ context.Context, tenantID uuid.UUID, now time.Time, limit int) ([]notification.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []notification.Notification
	for _, n := range r.items {
		if n.TenantID == tenantID && n.IsActive(now) {
			out = append(out, *n)
		}
	}
	return out, nil
}

func (r *memoryRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}

// mockRepo is a testify mock of notification.Repository
type mockRepo struct {
	mock.Mock
}

func (m *mockRepo) Create(ctx context.Context, n *notification.Notification) error {
	return m.Called(ctx, n).Error(0)
}

func (m *mockRepo) FindActive(ctx context.Context, tenantID uuid.UUID, key string, now time.Time) (*notification.Notification, error) {
	args := m.Called(ctx, tenantID, key, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*notification.Notification), args.Error(1)
}

func (m *mockRepo) ListActive(ctx context.Context, tenantID uuid.UUID, now time.Time, limit int) ([]notification.Notification, error) {
	args := m.Called(ctx, tenantID, now, limit)
	return args.Get(0).([]notification.Notification), args.Error(1)
}

type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time { return c.now }

func newTestEmitter(t *testing.T, repo notification.Repository) (*Emitter, *testClock) {
	t.Helper()
	clock := &testClock{now: time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)}
	cfg := DefaultConfig()
	cfg.HighValueThreshold = decimal.NewFromInt(1000)
	e, err := NewEmitter(repo, cfg, zap.NewNop(), WithClock(clock.Now))
	require.NoError(t, err)
	return e, clock
}

func newOrderChange(id string, total string) reconciliation.Change {
	return reconciliation.Change{
		Kind:     reconciliation.KindNewOrder,
		Platform: integration.PlatformCodeShopee,
		EntityID: id,
		Order: &reconciliation.OrderDetail{
			PlatformOrderID: id,
			NewStatus:       integration.PlatformOrderStatusPaid,
			TotalAmount:     decimal.RequireFromString(total),
			Currency:        "USD",
		},
	}
}

func transitionChange(id string, from, to integration.PlatformOrderStatus) reconciliation.Change {
	return reconciliation.Change{
		Kind:     reconciliation.KindStatusTransition,
		Platform: integration.PlatformCodeShopee,
		EntityID: id,
		Order: &reconciliation.OrderDetail{
			PlatformOrderID: id,
			OldStatus:       from,
			NewStatus:       to,
		},
	}
}

func stockChange(kind reconciliation.Kind, before, after int) reconciliation.Change {
	return reconciliation.Change{
		Kind:     kind,
		Platform: integration.PlatformCodeTikTokShop,
		EntityID: "p1/s1",
		Stock: &reconciliation.StockDetail{
			PlatformProductID: "p1",
			PlatformSkuID:     "s1",
			SKU:               "CAP-RED",
			Name:              "Cap",
			Before:            &before,
			After:             after,
			Threshold:         10,
		},
	}
}

func TestEmitter_PriorityMapping(t *testing.T) {
	tests := []struct {
		name         string
		change       reconciliation.Change
		wantType     notification.Type
		wantPriority notification.Priority
	}{
		{"regular new order", newOrderChange("A1", "250.00"), notification.TypeNewOrder, notification.PriorityNormal},
		{"high value new order", newOrderChange("X1", "1500.00"), notification.TypeNewOrder, notification.PriorityCritical},
		{"threshold is inclusive", newOrderChange("X2", "1000"), notification.TypeNewOrder, notification.PriorityCritical},
		{"shipped transition", transitionChange("A1", integration.PlatformOrderStatusPaid, integration.PlatformOrderStatusShipped), notification.TypeOrderStatus, notification.PriorityNormal},
		{"cancelled transition", transitionChange("A1", integration.PlatformOrderStatusPaid, integration.PlatformOrderStatusCancelled), notification.TypeOrderStatus, notification.PriorityHigh},
		{"refunding transition", transitionChange("A1", integration.PlatformOrderStatusShipped, integration.PlatformOrderStatusRefunding), notification.TypeOrderStatus, notification.PriorityHigh},
		{"stock breach", stockChange(reconciliation.KindStockBreach, 12, 8), notification.TypeLowStock, notification.PriorityHigh},
		{"stock out", stockChange(reconciliation.KindStockBreach, 12, 0), notification.TypeLowStock, notification.PriorityCritical},
		{"restock", stockChange(reconciliation.KindStockRestock, 8, 15), notification.TypeRestock, notification.PriorityLow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			emitter, _ := newTestEmitter(t, &memoryRepo{})
			res, err := emitter.Emit(context.Background(), uuid.New(), tt.change)
			require.NoError(t, err)
			require.False(t, res.Skipped)
			assert.Equal(t, tt.wantType, res.Notification.Type)
			assert.Equal(t, tt.wantPriority, res.Notification.Priority)
			assert.NotEmpty(t, res.Notification.Title)
			assert.False(t, res.Notification.IsRead)
		})
	}
}

func TestEmitter_HighValueOrderScenario(t *testing.T) {
	repo := &memoryRepo{}
	emitter, clock := newTestEmitter(t, repo)
	tenant := uuid.New()

	res, err := emitter.Emit(context.Background(), tenant, newOrderChange("X1", "1500.00"))
	require.NoError(t, err)

	n := res.Notification
	assert.Equal(t, notification.PriorityCritical, n.Priority)
	assert.Equal(t, "new_order:shopee:X1", n.DedupKey)
	assert.Equal(t, "X1", n.Metadata.PlatformOrderID)
	assert.Equal(t, "shopee", n.Metadata.Platform)
	assert.Equal(t, "1500", n.Metadata.TotalAmount)
	require.NotNil(t, n.ExpiresAt)
	assert.Equal(t, clock.now.Add(DefaultNotificationTTL), *n.ExpiresAt)
	assert.Equal(t, 1, repo.count())
}

func TestEmitter_Idempotent(t *testing.T) {
	repo := &memoryRepo{}
	emitter, _ := newTestEmitter(t, repo)
	tenant := uuid.New()
	ctx := context.Background()

	first, err := emitter.Emit(ctx, tenant, newOrderChange("A1", "10"))
	require.NoError(t, err)
	second, err := emitter.Emit(ctx, tenant, newOrderChange("A1", "10"))
	require.NoError(t, err)

	assert.False(t, first.Skipped)
	assert.True(t, second.Skipped)
	assert.Equal(t, first.Notification.ID, second.Notification.ID)
	assert.Equal(t, 1, repo.count())

	// Another tenant gets its own alert.
	other, err := emitter.Emit(ctx, uuid.New(), newOrderChange("A1", "10"))
	require.NoError(t, err)
	assert.False(t, other.Skipped)
	assert.Equal(t, 2, repo.count())
}

func TestEmitter_InactiveDuplicatesDoNotBlock(t *testing.T) {
	ctx := context.Background()
	tenant := uuid.New()

	t.Run("read", func(t *testing.T) {
		repo := &memoryRepo{}
		emitter, _ := newTestEmitter(t, repo)
		first, err := emitter.Emit(ctx, tenant, newOrderChange("A1", "10"))
		require.NoError(t, err)
		first.Notification.IsRead = true

		again, err := emitter.Emit(ctx, tenant, newOrderChange("A1", "10"))
		require.NoError(t, err)
		assert.False(t, again.Skipped)
		assert.Equal(t, 2, repo.count())
	})

	t.Run("expired", func(t *testing.T) {
		repo := &memoryRepo{}
		emitter, clock := newTestEmitter(t, repo)
		_, err := emitter.Emit(ctx, tenant, newOrderChange("A1", "10"))
		require.NoError(t, err)

		clock.now = clock.now.Add(DefaultNotificationTTL)
		again, err := emitter.Emit(ctx, tenant, newOrderChange("A1", "10"))
		require.NoError(t, err)
		assert.False(t, again.Skipped)
		assert.Equal(t, 2, repo.count())
	})
}

func TestEmitter_LaterTransitionIsNewAlert(t *testing.T) {
	repo := &memoryRepo{}
	emitter, _ := newTestEmitter(t, repo)
	tenant := uuid.New()
	ctx := context.Background()

	shipped := transitionChange("A1", integration.PlatformOrderStatusPaid, integration.PlatformOrderStatusShipped)
	delivered := transitionChange("A1", integration.PlatformOrderStatusShipped, integration.PlatformOrderStatusDelivered)

	r1, err := emitter.Emit(ctx, tenant, shipped)
	require.NoError(t, err)
	r2, err := emitter.Emit(ctx, tenant, delivered)
	require.NoError(t, err)
	r3, err := emitter.Emit(ctx, tenant, shipped)
	require.NoError(t, err)

	assert.False(t, r1.Skipped)
	assert.False(t, r2.Skipped)
	assert.True(t, r3.Skipped)
	assert.Equal(t, "status_transition:shopee:A1->delivered", r2.Notification.DedupKey)
}

func TestEmitter_EmitAll(t *testing.T) {
	repo := &memoryRepo{}
	emitter, _ := newTestEmitter(t, repo)

	changes := []reconciliation.Change{
		newOrderChange("A1", "10"),
		newOrderChange("A1", "10"),
		{Kind: reconciliation.KindStockBreach, Platform: integration.PlatformCodeShopee, EntityID: "broken"},
		stockChange(reconciliation.KindStockBreach, 12, 8),
	}
	created, skipped, err := emitter.EmitAll(context.Background(), uuid.New(), changes)
	assert.ErrorIs(t, err, ErrInvalidChange)
	assert.Equal(t, 2, created)
	assert.Equal(t, 1, skipped)
}

func TestEmitter_ConcurrentEmitsCreateOne(t *testing.T) {
	repo := &memoryRepo{}
	emitter, _ := newTestEmitter(t, repo)
	tenant := uuid.New()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := emitter.Emit(context.Background(), tenant, newOrderChange("A1", "10"))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, repo.count())
}

func TestEmitter_EmitSystem(t *testing.T) {
	ctx := context.Background()
	tenant := uuid.New()
	scheduleID := uuid.New()

	t.Run("sync error deduplicates per schedule", func(t *testing.T) {
		repo := &memoryRepo{}
		emitter, _ := newTestEmitter(t, repo)
		alert := SystemAlert{
			TenantID:   tenant,
			Type:       notification.TypeSyncError,
			Platform:   integration.PlatformCodeShopee,
			ScheduleID: &scheduleID,
			Message:    "retries exhausted",
			Reason:     "transient",
			Err:        errors.New("503"),
		}
		first, err := emitter.EmitSystem(ctx, alert)
		require.NoError(t, err)
		second, err := emitter.EmitSystem(ctx, alert)
		require.NoError(t, err)

		assert.Equal(t, notification.PriorityHigh, first.Notification.Priority)
		assert.Equal(t, "sync_error:schedule:"+scheduleID.String(), first.Notification.DedupKey)
		assert.Equal(t, "503", first.Notification.Metadata.Error)
		assert.Equal(t, "Shopee sync failed", first.Notification.Title)
		assert.True(t, second.Skipped)
	})

	t.Run("subject separates alerts about the same schedule", func(t *testing.T) {
		repo := &memoryRepo{}
		emitter, _ := newTestEmitter(t, repo)
		failed := SystemAlert{
			TenantID:   tenant,
			Type:       notification.TypeSyncError,
			Platform:   integration.PlatformCodeShopee,
			ScheduleID: &scheduleID,
			Title:      "Sync retries exhausted",
		}
		disabled := failed
		disabled.Title = "Sync schedule disabled"
		disabled.Subject = "disabled"

		first, err := emitter.EmitSystem(ctx, failed)
		require.NoError(t, err)
		second, err := emitter.EmitSystem(ctx, disabled)
		require.NoError(t, err)

		assert.False(t, second.Skipped)
		assert.Equal(t, first.Notification.DedupKey+":disabled", second.Notification.DedupKey)
		assert.Equal(t, 2, repo.count())
	})

	t.Run("api error is critical and keyed by platform", func(t *testing.T) {
		emitter, _ := newTestEmitter(t, &memoryRepo{})
		res, err := emitter.EmitSystem(ctx, SystemAlert{
			TenantID: tenant,
			Type:     notification.TypeAPIError,
			Platform: integration.PlatformCodeTikTokShop,
		})
		require.NoError(t, err)
		assert.Equal(t, notification.PriorityCritical, res.Notification.Priority)
		assert.Equal(t, "api_error:platform:tiktokshop", res.Notification.DedupKey)
	})

	t.Run("rejects change types", func(t *testing.T) {
		emitter, _ := newTestEmitter(t, &memoryRepo{})
		_, err := emitter.EmitSystem(ctx, SystemAlert{TenantID: tenant, Type: notification.TypeLowStock})
		assert.ErrorIs(t, err, ErrInvalidSystemAlert)
	})
}

func TestEmitter_RepositoryErrors(t *testing.T) {
	tenant := uuid.New()

	t.Run("find failure", func(t *testing.T) {
		repo := new(mockRepo)
		repo.On("FindActive", mock.Anything, tenant, "new_order:shopee:A1", mock.Anything).
			Return(nil, errors.New("db down"))
		emitter, _ := newTestEmitter(t, repo)

		_, err := emitter.Emit(context.Background(), tenant, newOrderChange("A1", "1"))
		assert.ErrorContains(t, err, "db down")
		repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("create failure", func(t *testing.T) {
		repo := new(mockRepo)
		repo.On("FindActive", mock.Anything, tenant, mock.Anything, mock.Anything).
			Return(nil, notification.ErrNotificationNotFound)
		repo.On("Create", mock.Anything, mock.AnythingOfType("*notification.Notification")).
			Return(errors.New("constraint"))
		emitter, _ := newTestEmitter(t, repo)

		_, err := emitter.Emit(context.Background(), tenant, newOrderChange("A1", "1"))
		assert.ErrorContains(t, err, "constraint")
		repo.AssertExpectations(t)
	})
}

func TestConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	cfg.TTLByType[notification.TypeRestock] = time.Hour
	assert.Equal(t, time.Hour, cfg.TTLFor(notification.TypeRestock))
	assert.Equal(t, DefaultNotificationTTL, cfg.TTLFor(notification.TypeNewOrder))

	bad := DefaultConfig()
	bad.NotificationTTL = 0
	assert.ErrorIs(t, bad.Validate(), ErrInvalidConfig)

	bad = DefaultConfig()
	bad.HighValueThreshold = decimal.NewFromInt(-1)
	assert.ErrorIs(t, bad.Validate(), ErrInvalidConfig)
}
