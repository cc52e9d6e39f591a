package ecommerce

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/shopsync/backend/internal/domain/integration"
)

// ---------------------------------------------------------------------------
// Config Tests
// ---------------------------------------------------------------------------

func TestShopeeConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  *ShopeeConfig
		wantErr error
	}{
		{
			name:    "valid config",
			config:  &ShopeeConfig{PartnerID: 2001887, PartnerKey: "test_partner_key"},
			wantErr: nil,
		},
		{
			name:    "missing partner ID",
			config:  &ShopeeConfig{PartnerKey: "test_partner_key"},
			wantErr: ErrShopeeConfigMissingPartnerID,
		},
		{
			name:    "missing partner key",
			config:  &ShopeeConfig{PartnerID: 2001887},
			wantErr: ErrShopeeConfigMissingPartnerKey,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
				// Check defaults are set
				assert.Equal(t, ShopeeProductionAPIURL, tt.config.APIBaseURL)
				assert.Equal(t, shopeeMaxPageSize, tt.config.PageSize)
				assert.True(t, tt.config.TimeoutSeconds > 0)
			}
		})
	}
}

func TestShopeeConfig_Sign(t *testing.T) {
	config := NewShopeeConfig(2001887, "test_partner_key")

	sign1 := config.Sign(shopeePathOrderList, 1704067200, "token", "12345")
	sign2 := config.Sign(shopeePathOrderList, 1704067200, "token", "12345")
	assert.Equal(t, sign1, sign2)
	assert.Len(t, sign1, 64) // SHA256 produces 64 hex characters
	assert.Equal(t, hmacSHA256Hex("test_partner_key", "2001887"+shopeePathOrderList+"1704067200token12345"), sign1)

	assert.NotEqual(t, sign1, config.Sign(shopeePathOrderList, 1704067201, "token", "12345"))
	assert.NotEqual(t, sign1, config.Sign(shopeePathOrderList, 1704067200, "token", "54321"))
}

// ---------------------------------------------------------------------------
// Test helpers
// ---------------------------------------------------------------------------

func testShopeeCredential() *integration.Credential {
	return &integration.Credential{
		TenantID:    uuid.New(),
		Platform:    integration.PlatformCodeShopee,
		ShopID:      "12345",
		AccessToken: "test_access_token",
	}
}

func createTestShopeeAdapter(t *testing.T, serverURL string) *ShopeeAdapter {
	t.Helper()
	config := NewShopeeConfig(2001887, "test_partner_key")
	config.APIBaseURL = serverURL
	adapter, err := NewShopeeAdapter(config, zap.NewNop())
	require.NoError(t, err)
	return adapter
}

func writeShopee(t *testing.T, w http.ResponseWriter, payload any) {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	require.NoError(t, json.NewEncoder(w).Encode(ShopeeResponse{RequestID: "req-1", Response: raw}))
}

// verifyShopeeSignature checks the common query parameters against the partner key
func verifyShopeeSignature(t *testing.T, r *http.Request) {
	t.Helper()
	q := r.URL.Query()
	ts, err := strconv.ParseInt(q.Get("timestamp"), 10, 64)
	require.NoError(t, err)
	config := NewShopeeConfig(2001887, "test_partner_key")
	assert.Equal(t, "2001887", q.Get("partner_id"))
	assert.Equal(t, config.Sign(r.URL.Path, ts, q.Get("access_token"), q.Get("shop_id")), q.Get("sign"))
}

// ---------------------------------------------------------------------------
// Order Tests
// ---------------------------------------------------------------------------

func TestShopeeAdapter_FetchOrders(t *testing.T) {
	var listCalls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		verifyShopeeSignature(t, r)
		switch r.URL.Path {
		case shopeePathOrderList:
			assert.Equal(t, "update_time", r.URL.Query().Get("time_range_field"))
			if listCalls.Add(1) == 1 {
				writeShopee(t, w, ShopeeOrderListData{
					More:       true,
					NextCursor: "c1",
					OrderList:  []ShopeeOrderBrief{{OrderSN: "SN001", OrderStatus: "READY_TO_SHIP"}},
				})
				return
			}
			assert.Equal(t, "c1", r.URL.Query().Get("cursor"))
			writeShopee(t, w, ShopeeOrderListData{
				OrderList: []ShopeeOrderBrief{{OrderSN: "SN002", OrderStatus: "CANCELLED"}},
			})
		case shopeePathOrderDetail:
			assert.Equal(t, "SN001,SN002", r.URL.Query().Get("order_sn_list"))
			w.Write([]byte(`{"error":"","message":"","request_id":"r2","response":{"order_list":[
				{"order_sn":"SN001","order_status":"READY_TO_SHIP","currency":"MYR","total_amount":125.5,
				 "buyer_username":"alice","create_time":1704067200,"update_time":1704070800,
				 "item_list":[{"item_id":1001,"item_name":"Mug","model_id":2001,"model_quantity_purchased":2,"model_discounted_price":62.75}]},
				{"order_sn":"SN002","order_status":"CANCELLED","currency":"MYR","total_amount":10,
				 "buyer_username":"bob","create_time":1704067200,"update_time":1704074400,"item_list":[]}
			]}}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer server.Close()

	adapter := createTestShopeeAdapter(t, server.URL)
	orders, err := adapter.FetchOrders(context.Background(), testShopeeCredential(), time.Now().Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, orders, 2)

	first := orders[0]
	assert.Equal(t, "SN001", first.PlatformOrderID)
	assert.Equal(t, integration.PlatformCodeShopee, first.PlatformCode)
	assert.Equal(t, integration.PlatformOrderStatusPaid, first.Status)
	assert.True(t, decimal.RequireFromString("125.5").Equal(first.TotalAmount))
	assert.Equal(t, "alice", first.BuyerName)
	assert.Equal(t, time.Unix(1704070800, 0).UTC(), first.UpdatedAt)
	require.Len(t, first.Items, 1)
	assert.Equal(t, "1001", first.Items[0].PlatformProductID)
	assert.Equal(t, "2001", first.Items[0].PlatformSkuID)
	assert.Equal(t, 2, first.Items[0].Quantity)

	assert.Equal(t, integration.PlatformOrderStatusCancelled, orders[1].Status)
}

func TestShopeeAdapter_FetchOrders_SplitsLongRanges(t *testing.T) {
	var listCalls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == shopeePathOrderList {
			listCalls.Add(1)
			from, _ := strconv.ParseInt(r.URL.Query().Get("time_from"), 10, 64)
			to, _ := strconv.ParseInt(r.URL.Query().Get("time_to"), 10, 64)
			assert.LessOrEqual(t, to-from, int64(shopeeMaxTimeRange/time.Second))
		}
		writeShopee(t, w, ShopeeOrderListData{})
	}))
	defer server.Close()

	adapter := createTestShopeeAdapter(t, server.URL)
	orders, err := adapter.FetchOrders(context.Background(), testShopeeCredential(), time.Now().Add(-40*24*time.Hour))
	require.NoError(t, err)
	assert.Empty(t, orders)
	assert.Equal(t, int32(3), listCalls.Load())
}

func TestShopeeAdapter_UpdateOrderStatus(t *testing.T) {
	t.Run("ship sends tracking number", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			verifyShopeeSignature(t, r)
			assert.Equal(t, shopeePathShipOrder, r.URL.Path)
			assert.Equal(t, http.MethodPost, r.Method)
			var req ShopeeShipOrderRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "SN001", req.OrderSN)
			assert.Equal(t, "TRK123", req.NonIntegrated.TrackingNumber)
			w.Write([]byte(`{"error":"","message":"","request_id":"r"}`))
		}))
		defer server.Close()

		adapter := createTestShopeeAdapter(t, server.URL)
		err := adapter.UpdateOrderStatus(context.Background(), testShopeeCredential(), integration.OrderStatusUpdate{
			PlatformOrderID: "SN001",
			Action:          integration.OrderActionShip,
			TrackingNumber:  "TRK123",
		})
		assert.NoError(t, err)
	})

	t.Run("cancel uses default reason", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, shopeePathCancelOrder, r.URL.Path)
			var req ShopeeCancelOrderRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, shopeeDefaultCancelCode, req.CancelReason)
			w.Write([]byte(`{"error":"","message":""}`))
		}))
		defer server.Close()

		adapter := createTestShopeeAdapter(t, server.URL)
		err := adapter.UpdateOrderStatus(context.Background(), testShopeeCredential(), integration.OrderStatusUpdate{
			PlatformOrderID: "SN001",
			Action:          integration.OrderActionCancel,
		})
		assert.NoError(t, err)
	})

	t.Run("ship without tracking number is permanent", func(t *testing.T) {
		adapter := createTestShopeeAdapter(t, "http://127.0.0.1:0")
		err := adapter.UpdateOrderStatus(context.Background(), testShopeeCredential(), integration.OrderStatusUpdate{
			PlatformOrderID: "SN001",
			Action:          integration.OrderActionShip,
		})
		assert.ErrorIs(t, err, integration.ErrMissingTrackingNumber)
		assert.True(t, integration.IsPermanent(err))
	})
}

// ---------------------------------------------------------------------------
// Product Tests
// ---------------------------------------------------------------------------

func TestShopeeAdapter_FetchProducts(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		verifyShopeeSignature(t, r)
		switch r.URL.Path {
		case shopeePathItemList:
			writeShopee(t, w, ShopeeItemListData{
				Item:       []ShopeeItemBrief{{ItemID: 1001}, {ItemID: 1002}},
				TotalCount: 2,
			})
		case shopeePathItemBaseInfo:
			assert.Equal(t, "1001,1002", r.URL.Query().Get("item_id_list"))
			w.Write([]byte(`{"error":"","response":{"item_list":[
				{"item_id":1001,"item_name":"Mug","item_sku":"MUG","has_model":false,"update_time":1704067200,
				 "price_info":[{"currency":"MYR","current_price":12.5}],
				 "stock_info_v2":{"summary_info":{"total_available_stock":7}}},
				{"item_id":1002,"item_name":"Shirt","has_model":true,"update_time":1704067200}
			]}}`))
		case shopeePathModelList:
			assert.Equal(t, "1002", r.URL.Query().Get("item_id"))
			w.Write([]byte(`{"error":"","response":{"model":[
				{"model_id":2001,"model_sku":"SHIRT-S","price_info":[{"current_price":20}],"stock_info_v2":{"summary_info":{"total_available_stock":3}}},
				{"model_id":2002,"model_sku":"SHIRT-M","price_info":[{"current_price":20}],"stock_info_v2":{"summary_info":{"total_available_stock":0}}}
			]}}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer server.Close()

	adapter := createTestShopeeAdapter(t, server.URL)
	products, err := adapter.FetchProducts(context.Background(), testShopeeCredential())
	require.NoError(t, err)
	require.Len(t, products, 3)

	assert.Equal(t, "1001", products[0].Key())
	assert.Equal(t, 7, products[0].StockQuantity)
	assert.True(t, decimal.RequireFromString("12.5").Equal(products[0].Price))

	assert.Equal(t, "1002/2001", products[1].Key())
	assert.Equal(t, "SHIRT-S", products[1].SKU)
	assert.Equal(t, 3, products[1].StockQuantity)
	assert.Equal(t, "1002/2002", products[2].Key())
	assert.Equal(t, 0, products[2].StockQuantity)
}

var errGateClosed = errors.New("request budget spent")

// budgetGate admits a fixed number of requests
type budgetGate struct {
	budget   int
	admitted atomic.Int32
	recorded atomic.Int32
}

func (g *budgetGate) Admit(context.Context, integration.PlatformCode) error {
	if int(g.admitted.Load()) >= g.budget {
		return errGateClosed
	}
	g.admitted.Add(1)
	return nil
}

func (g *budgetGate) Record(context.Context, integration.PlatformCode) {
	g.recorded.Add(1)
}

func TestShopeeAdapter_FetchProducts_MetersEveryRequest(t *testing.T) {
	newServer := func(requests *atomic.Int32) *httptest.Server {
		return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requests.Add(1)
			switch r.URL.Path {
			case shopeePathItemList:
				writeShopee(t, w, ShopeeItemListData{Item: []ShopeeItemBrief{{ItemID: 1001}, {ItemID: 1002}}})
			case shopeePathItemBaseInfo:
				writeShopee(t, w, ShopeeItemBaseInfoData{ItemList: []ShopeeItem{
					{ItemID: 1001, HasModel: true},
					{ItemID: 1002, HasModel: true},
				}})
			case shopeePathModelList:
				writeShopee(t, w, ShopeeModelListData{Model: []ShopeeModel{{ModelID: 1}}})
			}
		}))
	}

	t.Run("each page, batch and model request is recorded", func(t *testing.T) {
		var requests atomic.Int32
		server := newServer(&requests)
		defer server.Close()

		gate := &budgetGate{budget: 10}
		ctx := integration.WithRequestGate(context.Background(), gate)
		products, err := createTestShopeeAdapter(t, server.URL).FetchProducts(ctx, testShopeeCredential())
		require.NoError(t, err)
		assert.Len(t, products, 2)

		assert.Equal(t, int32(4), requests.Load())
		assert.Equal(t, int32(4), gate.recorded.Load())
	})

	t.Run("a closed gate stops the fetch before the next request", func(t *testing.T) {
		var requests atomic.Int32
		server := newServer(&requests)
		defer server.Close()

		gate := &budgetGate{budget: 3}
		ctx := integration.WithRequestGate(context.Background(), gate)
		_, err := createTestShopeeAdapter(t, server.URL).FetchProducts(ctx, testShopeeCredential())
		require.Error(t, err)
		assert.ErrorIs(t, err, errGateClosed)

		var perr *integration.PlatformError
		require.ErrorAs(t, err, &perr)
		assert.Equal(t, "fetch_products", perr.Op)

		assert.Equal(t, int32(3), requests.Load())
		assert.Equal(t, int32(3), gate.recorded.Load())
	})
}

func TestShopeeAdapter_PushInventory(t *testing.T) {
	t.Run("successful update", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, shopeePathUpdateStock, r.URL.Path)
			var req ShopeeUpdateStockRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, int64(1002), req.ItemID)
			require.Len(t, req.StockList, 1)
			assert.Equal(t, int64(2001), req.StockList[0].ModelID)
			assert.Equal(t, 42, req.StockList[0].SellerStock[0].Stock)
			writeShopee(t, w, ShopeeUpdateStockData{})
		}))
		defer server.Close()

		adapter := createTestShopeeAdapter(t, server.URL)
		err := adapter.PushInventory(context.Background(), testShopeeCredential(),
			integration.ProductRef{PlatformProductID: "1002", PlatformSkuID: "2001"}, 42)
		assert.NoError(t, err)
	})

	t.Run("failure list is permanent", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"error":"","response":{"failure_list":[{"model_id":2001,"failed_reason":"stock locked"}]}}`))
		}))
		defer server.Close()

		adapter := createTestShopeeAdapter(t, server.URL)
		err := adapter.PushInventory(context.Background(), testShopeeCredential(),
			integration.ProductRef{PlatformProductID: "1002", PlatformSkuID: "2001"}, 1)
		require.Error(t, err)
		assert.True(t, integration.IsPermanent(err))
		assert.Contains(t, err.Error(), "stock locked")
	})

	t.Run("non numeric item ID", func(t *testing.T) {
		adapter := createTestShopeeAdapter(t, "http://127.0.0.1:0")
		err := adapter.PushInventory(context.Background(), testShopeeCredential(),
			integration.ProductRef{PlatformProductID: "abc"}, 1)
		assert.ErrorIs(t, err, integration.ErrInvalidProductRef)
	})

	t.Run("negative quantity", func(t *testing.T) {
		adapter := createTestShopeeAdapter(t, "http://127.0.0.1:0")
		err := adapter.PushInventory(context.Background(), testShopeeCredential(),
			integration.ProductRef{PlatformProductID: "1"}, -1)
		assert.ErrorIs(t, err, integration.ErrInvalidQuantity)
	})
}

// ---------------------------------------------------------------------------
// Error Classification Tests
// ---------------------------------------------------------------------------

func TestShopeeAdapter_ErrorClassification(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantKind   integration.FailureKind
		wantTarget error
	}{
		{"http 429", http.StatusTooManyRequests, `{}`, integration.FailureTransient, integration.ErrPlatformRateLimited},
		{"http 503", http.StatusServiceUnavailable, `busy`, integration.FailureTransient, integration.ErrPlatformUnavailable},
		{"http 401", http.StatusUnauthorized, `{}`, integration.FailureAuth, integration.ErrPlatformAuthFailed},
		{"http 400", http.StatusBadRequest, `{}`, integration.FailurePermanent, integration.ErrPlatformRequestFailed},
		{"error_auth code", http.StatusOK, `{"error":"error_auth","message":"Invalid access_token."}`, integration.FailureAuth, integration.ErrPlatformAuthFailed},
		{"error_server code", http.StatusOK, `{"error":"error_server","message":"try later"}`, integration.FailureTransient, integration.ErrPlatformUnavailable},
		{"error_param code", http.StatusOK, `{"error":"error_param","message":"bad"}`, integration.FailurePermanent, integration.ErrPlatformRequestFailed},
		{"malformed body", http.StatusOK, `<html>`, integration.FailurePermanent, integration.ErrPlatformInvalidResponse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			}))
			defer server.Close()

			adapter := createTestShopeeAdapter(t, server.URL)
			_, err := adapter.FetchProducts(context.Background(), testShopeeCredential())
			require.Error(t, err)
			assert.Equal(t, tt.wantKind, integration.KindOf(err))
			assert.ErrorIs(t, err, tt.wantTarget)

			var perr *integration.PlatformError
			require.ErrorAs(t, err, &perr)
			assert.Equal(t, integration.PlatformCodeShopee, perr.Platform)
			assert.Equal(t, "fetch_products", perr.Op)
		})
	}
}

func TestShopeeAdapter_NetworkErrorIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	adapter := createTestShopeeAdapter(t, url)
	_, err := adapter.FetchProducts(context.Background(), testShopeeCredential())
	require.Error(t, err)
	assert.True(t, integration.IsTransient(err))
	assert.ErrorIs(t, err, integration.ErrPlatformUnavailable)
}

func TestShopeeAdapter_CredentialChecks(t *testing.T) {
	adapter := createTestShopeeAdapter(t, "http://127.0.0.1:0")
	ctx := context.Background()

	_, err := adapter.FetchProducts(ctx, nil)
	assert.True(t, integration.IsAuthFailure(err))
	assert.ErrorIs(t, err, integration.ErrCredentialNotFound)

	expired := testShopeeCredential()
	past := time.Now().Add(-time.Minute)
	expired.ExpiresAt = &past
	_, err = adapter.FetchOrders(ctx, expired, time.Now().Add(-time.Hour))
	assert.True(t, integration.IsAuthFailure(err))
	assert.ErrorIs(t, err, integration.ErrCredentialExpired)
}

func TestMapShopeeOrderStatus(t *testing.T) {
	tests := []struct {
		status string
		want   integration.PlatformOrderStatus
	}{
		{"UNPAID", integration.PlatformOrderStatusPending},
		{"READY_TO_SHIP", integration.PlatformOrderStatusPaid},
		{"PROCESSED", integration.PlatformOrderStatusPaid},
		{"SHIPPED", integration.PlatformOrderStatusShipped},
		{"TO_CONFIRM_RECEIVE", integration.PlatformOrderStatusDelivered},
		{"COMPLETED", integration.PlatformOrderStatusCompleted},
		{"IN_CANCEL", integration.PlatformOrderStatusRefunding},
		{"TO_RETURN", integration.PlatformOrderStatusRefunding},
		{"CANCELLED", integration.PlatformOrderStatusCancelled},
		{"SOMETHING_NEW", integration.PlatformOrderStatusPending},
	}
	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			assert.Equal(t, tt.want, mapShopeeOrderStatus(tt.status))
		})
	}
}
