package integration

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

// ---------------------------------------------------------------------------
// PlatformCode Tests
// ---------------------------------------------------------------------------

func TestPlatformCode_IsValid(t *testing.T) {
	tests := []struct {
		name        string
		code        PlatformCode
		valid       bool
		validTarget bool
	}{
		{"Shopee", PlatformCodeShopee, true, true},
		{"TikTok Shop", PlatformCodeTikTokShop, true, true},
		{"All", PlatformCodeAll, false, true},
		{"Invalid code", PlatformCode("lazada"), false, false},
		{"Empty code", PlatformCode(""), false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.valid, tt.code.IsValid())
			assert.Equal(t, tt.validTarget, tt.code.IsValidTarget())
		})
	}
}

func TestPlatformCode_DisplayName(t *testing.T) {
	assert.Equal(t, "Shopee", PlatformCodeShopee.DisplayName())
	assert.Equal(t, "TikTok Shop", PlatformCodeTikTokShop.DisplayName())
	assert.Equal(t, "lazada", PlatformCode("lazada").DisplayName())
}

// ---------------------------------------------------------------------------
// PlatformOrderStatus Tests
// ---------------------------------------------------------------------------

func TestPlatformOrderStatus_IsFinal(t *testing.T) {
	finals := []PlatformOrderStatus{
		PlatformOrderStatusCompleted,
		PlatformOrderStatusCancelled,
		PlatformOrderStatusRefunded,
		PlatformOrderStatusClosed,
	}
	for _, s := range finals {
		t.Run(string(s), func(t *testing.T) {
			assert.True(t, s.IsValid())
			assert.True(t, s.IsFinal())
		})
	}

	assert.False(t, PlatformOrderStatusPaid.IsFinal())
	assert.False(t, PlatformOrderStatus("unknown").IsValid())
	assert.True(t, PlatformOrderStatusRefunding.NeedsAttention())
	assert.False(t, PlatformOrderStatusShipped.NeedsAttention())
}

// ---------------------------------------------------------------------------
// Request validation Tests
// ---------------------------------------------------------------------------

func TestOrderStatusUpdate_Validate(t *testing.T) {
	tests := []struct {
		name    string
		update  OrderStatusUpdate
		wantErr error
	}{
		{"ship with tracking", OrderStatusUpdate{PlatformOrderID: "X1", Action: OrderActionShip, TrackingNumber: "TRK1"}, nil},
		{"cancel", OrderStatusUpdate{PlatformOrderID: "X1", Action: OrderActionCancel}, nil},
		{"missing order id", OrderStatusUpdate{Action: OrderActionCancel}, ErrMissingOrderID},
		{"unknown action", OrderStatusUpdate{PlatformOrderID: "X1", Action: "refund"}, ErrInvalidOrderAction},
		{"ship without tracking", OrderStatusUpdate{PlatformOrderID: "X1", Action: OrderActionShip}, ErrMissingTrackingNumber},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.update.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestProductRef_Validate(t *testing.T) {
	assert.NoError(t, ProductRef{PlatformProductID: "100"}.Validate())
	assert.ErrorIs(t, ProductRef{PlatformSkuID: "1"}.Validate(), ErrInvalidProductRef)
}

func TestProductKey(t *testing.T) {
	assert.Equal(t, "100", ProductKey("100", ""))
	assert.Equal(t, "100/7", ProductKey("100", "7"))
	assert.Equal(t, "100/7", PlatformProduct{PlatformProductID: "100", PlatformSkuID: "7"}.Key())
}

// ---------------------------------------------------------------------------
// Snapshot Tests
// ---------------------------------------------------------------------------

func TestProductSnapshot_Flags(t *testing.T) {
	qty := 20
	p := ProductSnapshot{StockQuantity: 8, LowStockThreshold: 10}
	assert.True(t, p.IsLowStock())
	assert.False(t, p.NeedsPush())

	p.LocalQuantity = &qty
	assert.True(t, p.NeedsPush())

	p.StockQuantity = 20
	assert.False(t, p.NeedsPush())
	assert.False(t, p.IsLowStock())
}

func TestSnapshotsFromPlatform(t *testing.T) {
	tenantID := uuid.New()
	now := time.Now().UTC()

	order := OrderSnapshotFromPlatform(tenantID, PlatformOrder{
		PlatformOrderID: "X1",
		PlatformCode:    PlatformCodeShopee,
		Status:          PlatformOrderStatusPaid,
		TotalAmount:     decimal.NewFromInt(1500),
		Currency:        "SGD",
		UpdatedAt:       now,
	})
	assert.Equal(t, tenantID, order.TenantID)
	assert.Equal(t, PlatformCodeShopee, order.Platform)
	assert.True(t, order.TotalAmount.Equal(decimal.NewFromInt(1500)))
	assert.Equal(t, now, order.RemoteUpdatedAt)
	assert.Nil(t, order.PendingUpdate)

	product := ProductSnapshotFromPlatform(tenantID, PlatformProduct{
		PlatformProductID: "100",
		PlatformCode:      PlatformCodeTikTokShop,
		StockQuantity:     12,
	}, 10)
	assert.Equal(t, 10, product.LowStockThreshold)
	assert.Equal(t, 12, product.StockQuantity)
	assert.Equal(t, ProductRef{PlatformProductID: "100"}, product.Ref())
}

func TestCredential_IsExpired(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Minute)
	future := now.Add(time.Hour)

	assert.False(t, (&Credential{}).IsExpired(now))
	assert.True(t, (&Credential{ExpiresAt: &past}).IsExpired(now))
	assert.False(t, (&Credential{ExpiresAt: &future}).IsExpired(now))
}

// ---------------------------------------------------------------------------
// PlatformError Tests
// ---------------------------------------------------------------------------

func TestClassifyHTTPStatus(t *testing.T) {
	tests := []struct {
		status int
		want   FailureKind
	}{
		{http.StatusTooManyRequests, FailureTransient},
		{http.StatusInternalServerError, FailureTransient},
		{http.StatusBadGateway, FailureTransient},
		{http.StatusUnauthorized, FailureAuth},
		{http.StatusForbidden, FailureAuth},
		{http.StatusBadRequest, FailurePermanent},
		{http.StatusNotFound, FailurePermanent},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.status), func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyHTTPStatus(tt.status))
		})
	}
}

func TestKindOf(t *testing.T) {
	authErr := NewAuthError(PlatformCodeShopee, "fetch_orders", ErrPlatformAuthFailed)
	wrapped := fmt.Errorf("order monitor: %w", authErr)

	assert.True(t, IsAuthFailure(wrapped))
	assert.False(t, IsTransient(wrapped))
	assert.True(t, errors.Is(wrapped, ErrPlatformAuthFailed))

	assert.True(t, IsPermanent(NewPermanentError(PlatformCodeShopee, "push_inventory", nil)))
	assert.True(t, IsTransient(NewTransientError(PlatformCodeShopee, "fetch_products", ErrPlatformUnavailable)))

	// Unclassified transport errors are retried.
	assert.True(t, IsTransient(context.DeadlineExceeded))
	assert.True(t, IsAuthFailure(ErrCredentialNotFound))
	assert.False(t, IsTransient(nil))
}

func TestPlatformError_Error(t *testing.T) {
	err := &PlatformError{
		Kind:       FailurePermanent,
		Platform:   PlatformCodeTikTokShop,
		Op:         "update_order_status",
		StatusCode: http.StatusBadRequest,
		Code:       "36009003",
		Message:    "invalid order",
	}
	assert.Equal(t, "integration: tiktokshop update_order_status failed (permanent) http=400 code=36009003: invalid order", err.Error())
}
