package ecommerce

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/shopsync/backend/internal/domain/integration"
)

// Shopee API paths
const (
	shopeePathOrderList     = "/api/v2/order/get_order_list"
	shopeePathOrderDetail   = "/api/v2/order/get_order_detail"
	shopeePathCancelOrder   = "/api/v2/order/cancel_order"
	shopeePathShipOrder     = "/api/v2/logistics/ship_order"
	shopeePathItemList      = "/api/v2/product/get_item_list"
	shopeePathItemBaseInfo  = "/api/v2/product/get_item_base_info"
	shopeePathModelList     = "/api/v2/product/get_model_list"
	shopeePathUpdateStock   = "/api/v2/product/update_stock"
	shopeeDefaultCancelCode = "OUT_OF_STOCK"
)

// shopeeMaxTimeRange is the longest update_time range get_order_list accepts
const shopeeMaxTimeRange = 15 * 24 * time.Hour

// Shopee error codes that are worth retrying or that mean the token is bad
var (
	shopeeTransientCodes = map[string]bool{
		"error_server":           true,
		"error_busy":             true,
		"error_inner":            true,
		"error_network":          true,
		"error_rate_limit":       true,
		"error_too_many_request": true,
	}
	shopeeAuthCodes = map[string]bool{
		"error_auth":           true,
		"error_permission":     true,
		"invalid_access_token": true,
		"error_invalid_token":  true,
	}
)

// ShopeeAdapter implements the EcommercePlatform interface for Shopee Open Platform v2
type ShopeeAdapter struct {
	config *ShopeeConfig
	client *apiClient
	logger *zap.Logger
	now    func() time.Time
}

// NewShopeeAdapter creates a new Shopee adapter
func NewShopeeAdapter(config *ShopeeConfig, logger *zap.Logger) (*ShopeeAdapter, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ShopeeAdapter{
		config: config,
		client: newAPIClient(integration.PlatformCodeShopee, config.TimeoutSeconds),
		logger: logger.Named("shopee"),
		now:    time.Now,
	}, nil
}

// PlatformCode returns the platform code
func (a *ShopeeAdapter) PlatformCode() integration.PlatformCode {
	return integration.PlatformCodeShopee
}

// ---------------------------------------------------------------------------
// Orders
// ---------------------------------------------------------------------------

// FetchOrders returns the orders updated since the given time.
// The range is split into windows Shopee accepts, then details are loaded in batches.
func (a *ShopeeAdapter) FetchOrders(ctx context.Context, cred *integration.Credential, since time.Time) ([]integration.PlatformOrder, error) {
	const op = "fetch_orders"
	if err := requireCredential(a.PlatformCode(), op, cred); err != nil {
		return nil, err
	}

	now := a.now()
	if since.After(now) {
		return []integration.PlatformOrder{}, nil
	}

	var orderSNs []string
	for from := since; from.Before(now); from = from.Add(shopeeMaxTimeRange) {
		to := from.Add(shopeeMaxTimeRange)
		if to.After(now) {
			to = now
		}
		sns, err := a.listOrderSNs(ctx, cred, from, to)
		if err != nil {
			return nil, err
		}
		orderSNs = append(orderSNs, sns...)
	}

	orders := make([]integration.PlatformOrder, 0, len(orderSNs))
	for start := 0; start < len(orderSNs); start += shopeeMaxDetailBatch {
		end := min(start+shopeeMaxDetailBatch, len(orderSNs))
		batch, err := a.orderDetails(ctx, cred, orderSNs[start:end])
		if err != nil {
			return nil, err
		}
		orders = append(orders, batch...)
	}

	a.logger.Debug("Fetched orders",
		zap.String("shop_id", cred.ShopID),
		zap.Time("since", since),
		zap.Int("count", len(orders)))
	return orders, nil
}

func (a *ShopeeAdapter) listOrderSNs(ctx context.Context, cred *integration.Credential, from, to time.Time) ([]string, error) {
	var sns []string
	seen := make(map[string]bool)
	cursor := ""
	for {
		params := url.Values{}
		params.Set("time_range_field", "update_time")
		params.Set("time_from", strconv.FormatInt(from.Unix(), 10))
		params.Set("time_to", strconv.FormatInt(to.Unix(), 10))
		params.Set("page_size", strconv.Itoa(a.config.PageSize))
		params.Set("cursor", cursor)

		var data ShopeeOrderListData
		if err := a.get(ctx, "fetch_orders", shopeePathOrderList, cred, params, &data); err != nil {
			return nil, err
		}
		for _, o := range data.OrderList {
			if !seen[o.OrderSN] {
				seen[o.OrderSN] = true
				sns = append(sns, o.OrderSN)
			}
		}
		if !data.More || data.NextCursor == "" || data.NextCursor == cursor {
			return sns, nil
		}
		cursor = data.NextCursor
	}
}

func (a *ShopeeAdapter) orderDetails(ctx context.Context, cred *integration.Credential, orderSNs []string) ([]integration.PlatformOrder, error) {
	params := url.Values{}
	params.Set("order_sn_list", strings.Join(orderSNs, ","))
	params.Set("response_optional_fields", "buyer_username,total_amount,item_list,currency")

	var data ShopeeOrderDetailData
	if err := a.get(ctx, "fetch_orders", shopeePathOrderDetail, cred, params, &data); err != nil {
		return nil, err
	}

	orders := make([]integration.PlatformOrder, 0, len(data.OrderList))
	for _, o := range data.OrderList {
		orders = append(orders, a.convertOrder(o))
	}
	return orders, nil
}

// UpdateOrderStatus ships or cancels an order on Shopee
func (a *ShopeeAdapter) UpdateOrderStatus(ctx context.Context, cred *integration.Credential, update integration.OrderStatusUpdate) error {
	const op = "update_order_status"
	if err := update.Validate(); err != nil {
		return integration.NewPermanentError(a.PlatformCode(), op, err)
	}
	if err := requireCredential(a.PlatformCode(), op, cred); err != nil {
		return err
	}

	switch update.Action {
	case integration.OrderActionShip:
		req := ShopeeShipOrderRequest{OrderSN: update.PlatformOrderID}
		req.NonIntegrated.TrackingNumber = update.TrackingNumber
		return a.post(ctx, op, shopeePathShipOrder, cred, req, nil)
	default:
		reason := update.CancelReason
		if reason == "" {
			reason = shopeeDefaultCancelCode
		}
		req := ShopeeCancelOrderRequest{OrderSN: update.PlatformOrderID, CancelReason: reason}
		return a.post(ctx, op, shopeePathCancelOrder, cred, req, nil)
	}
}

// ---------------------------------------------------------------------------
// Products
// ---------------------------------------------------------------------------

// FetchProducts returns every normal listing of the shop, one entry per model
func (a *ShopeeAdapter) FetchProducts(ctx context.Context, cred *integration.Credential) ([]integration.PlatformProduct, error) {
	const op = "fetch_products"
	if err := requireCredential(a.PlatformCode(), op, cred); err != nil {
		return nil, err
	}

	var itemIDs []int64
	offset := 0
	for {
		params := url.Values{}
		params.Set("offset", strconv.Itoa(offset))
		params.Set("page_size", strconv.Itoa(a.config.PageSize))
		params.Set("item_status", "NORMAL")

		var data ShopeeItemListData
		if err := a.get(ctx, op, shopeePathItemList, cred, params, &data); err != nil {
			return nil, err
		}
		for _, item := range data.Item {
			itemIDs = append(itemIDs, item.ItemID)
		}
		if !data.HasNextPage || data.NextOffset <= offset {
			break
		}
		offset = data.NextOffset
	}

	var products []integration.PlatformProduct
	for start := 0; start < len(itemIDs); start += shopeeMaxDetailBatch {
		end := min(start+shopeeMaxDetailBatch, len(itemIDs))
		ids := make([]string, 0, end-start)
		for _, id := range itemIDs[start:end] {
			ids = append(ids, strconv.FormatInt(id, 10))
		}
		params := url.Values{}
		params.Set("item_id_list", strings.Join(ids, ","))

		var data ShopeeItemBaseInfoData
		if err := a.get(ctx, op, shopeePathItemBaseInfo, cred, params, &data); err != nil {
			return nil, err
		}
		for _, item := range data.ItemList {
			if !item.HasModel {
				products = append(products, a.convertItem(item))
				continue
			}
			models, err := a.models(ctx, cred, item.ItemID)
			if err != nil {
				return nil, err
			}
			for _, m := range models {
				products = append(products, a.convertModel(item, m))
			}
		}
	}

	a.logger.Debug("Fetched products",
		zap.String("shop_id", cred.ShopID),
		zap.Int("count", len(products)))
	return products, nil
}

func (a *ShopeeAdapter) models(ctx context.Context, cred *integration.Credential, itemID int64) ([]ShopeeModel, error) {
	params := url.Values{}
	params.Set("item_id", strconv.FormatInt(itemID, 10))

	var data ShopeeModelListData
	if err := a.get(ctx, "fetch_products", shopeePathModelList, cred, params, &data); err != nil {
		return nil, err
	}
	return data.Model, nil
}

// PushInventory sets the seller stock of one item or model
func (a *ShopeeAdapter) PushInventory(ctx context.Context, cred *integration.Credential, ref integration.ProductRef, quantity int) error {
	const op = "push_inventory"
	if err := ref.Validate(); err != nil {
		return integration.NewPermanentError(a.PlatformCode(), op, err)
	}
	if quantity < 0 {
		return integration.NewPermanentError(a.PlatformCode(), op, integration.ErrInvalidQuantity)
	}
	if err := requireCredential(a.PlatformCode(), op, cred); err != nil {
		return err
	}

	itemID, err := strconv.ParseInt(ref.PlatformProductID, 10, 64)
	if err != nil {
		return integration.NewPermanentError(a.PlatformCode(), op, fmt.Errorf("%w: %q", integration.ErrInvalidProductRef, ref.PlatformProductID))
	}
	var modelID int64
	if ref.PlatformSkuID != "" {
		modelID, err = strconv.ParseInt(ref.PlatformSkuID, 10, 64)
		if err != nil {
			return integration.NewPermanentError(a.PlatformCode(), op, fmt.Errorf("%w: model %q", integration.ErrInvalidProductRef, ref.PlatformSkuID))
		}
	}

	req := ShopeeUpdateStockRequest{
		ItemID: itemID,
		StockList: []ShopeeModelStockReq{{
			ModelID:     modelID,
			SellerStock: []ShopeeSellerStock{{Stock: quantity}},
		}},
	}
	var data ShopeeUpdateStockData
	if err := a.post(ctx, op, shopeePathUpdateStock, cred, req, &data); err != nil {
		return err
	}
	if len(data.FailureList) > 0 {
		return a.client.apiError(op, integration.FailurePermanent, "update_stock_failed", data.FailureList[0].FailedReason)
	}

	a.logger.Debug("Pushed inventory",
		zap.String("item_id", ref.PlatformProductID),
		zap.String("model_id", ref.PlatformSkuID),
		zap.Int("quantity", quantity))
	return nil
}

// ---------------------------------------------------------------------------
// HTTP helpers
// ---------------------------------------------------------------------------

// commonParams returns the signed query parameters every shop-level call carries
func (a *ShopeeAdapter) commonParams(path string, cred *integration.Credential) url.Values {
	timestamp := a.now().Unix()
	params := url.Values{}
	params.Set("partner_id", strconv.FormatInt(a.config.PartnerID, 10))
	params.Set("timestamp", strconv.FormatInt(timestamp, 10))
	params.Set("access_token", cred.AccessToken)
	params.Set("shop_id", cred.ShopID)
	params.Set("sign", a.config.Sign(path, timestamp, cred.AccessToken, cred.ShopID))
	return params
}

func (a *ShopeeAdapter) get(ctx context.Context, op, path string, cred *integration.Credential, extra url.Values, out any) error {
	params := a.commonParams(path, cred)
	for k, v := range extra {
		params[k] = v
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.config.APIBaseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return integration.NewPermanentError(a.PlatformCode(), op, err)
	}
	return a.send(ctx, op, req, out)
}

func (a *ShopeeAdapter) post(ctx context.Context, op, path string, cred *integration.Credential, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return integration.NewPermanentError(a.PlatformCode(), op, fmt.Errorf("marshal request: %w", err))
	}
	params := a.commonParams(path, cred)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.config.APIBaseURL+path+"?"+params.Encode(), bytes.NewReader(payload))
	if err != nil {
		return integration.NewPermanentError(a.PlatformCode(), op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	return a.send(ctx, op, req, out)
}

func (a *ShopeeAdapter) send(ctx context.Context, op string, req *http.Request, out any) error {
	body, err := a.client.do(ctx, op, req)
	if err != nil {
		return err
	}

	var resp ShopeeResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return a.client.decodeError(op, err)
	}
	if !resp.IsSuccess() {
		a.logger.Warn("Shopee API error",
			zap.String("op", op),
			zap.String("error", resp.Error),
			zap.String("message", resp.Message),
			zap.String("request_id", resp.RequestID))
		return a.client.apiError(op, classifyShopeeError(resp.Error), resp.Error, resp.Message)
	}
	if out == nil || len(resp.Response) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Response, out); err != nil {
		return a.client.decodeError(op, err)
	}
	return nil
}

func classifyShopeeError(code string) integration.FailureKind {
	switch {
	case shopeeTransientCodes[code]:
		return integration.FailureTransient
	case shopeeAuthCodes[code]:
		return integration.FailureAuth
	default:
		return integration.FailurePermanent
	}
}

// ---------------------------------------------------------------------------
// Conversion
// ---------------------------------------------------------------------------

func (a *ShopeeAdapter) convertOrder(o ShopeeOrder) integration.PlatformOrder {
	order := integration.PlatformOrder{
		PlatformOrderID: o.OrderSN,
		PlatformCode:    integration.PlatformCodeShopee,
		Status:          mapShopeeOrderStatus(o.OrderStatus),
		BuyerName:       o.BuyerUsername,
		TotalAmount:     parseAmount(o.TotalAmount),
		Currency:        o.Currency,
		CreatedAt:       time.Unix(o.CreateTime, 0).UTC(),
		UpdatedAt:       time.Unix(o.UpdateTime, 0).UTC(),
		Items:           make([]integration.PlatformOrderItem, 0, len(o.ItemList)),
	}
	for _, item := range o.ItemList {
		skuID := ""
		if item.ModelID != 0 {
			skuID = strconv.FormatInt(item.ModelID, 10)
		}
		order.Items = append(order.Items, integration.PlatformOrderItem{
			PlatformProductID: strconv.FormatInt(item.ItemID, 10),
			PlatformSkuID:     skuID,
			ProductName:       item.ItemName,
			Quantity:          item.ModelQuantityPurchased,
			UnitPrice:         parseAmount(item.ModelDiscountedPrice),
		})
	}
	return order
}

func (a *ShopeeAdapter) convertItem(item ShopeeItem) integration.PlatformProduct {
	return integration.PlatformProduct{
		PlatformProductID: strconv.FormatInt(item.ItemID, 10),
		PlatformCode:      integration.PlatformCodeShopee,
		SKU:               item.ItemSKU,
		Name:              item.ItemName,
		StockQuantity:     shopeeStock(item.StockInfoV2),
		Price:             shopeePrice(item.PriceInfo),
		UpdatedAt:         time.Unix(item.UpdateTime, 0).UTC(),
	}
}

func (a *ShopeeAdapter) convertModel(item ShopeeItem, m ShopeeModel) integration.PlatformProduct {
	return integration.PlatformProduct{
		PlatformProductID: strconv.FormatInt(item.ItemID, 10),
		PlatformSkuID:     strconv.FormatInt(m.ModelID, 10),
		PlatformCode:      integration.PlatformCodeShopee,
		SKU:               m.ModelSKU,
		Name:              item.ItemName,
		StockQuantity:     shopeeStock(m.StockInfoV2),
		Price:             shopeePrice(m.PriceInfo),
		UpdatedAt:         time.Unix(item.UpdateTime, 0).UTC(),
	}
}

func shopeeStock(info *ShopeeStockInfo) int {
	if info == nil {
		return 0
	}
	return info.SummaryInfo.TotalAvailableStock
}

func shopeePrice(prices []ShopeePriceInfo) decimal.Decimal {
	if len(prices) == 0 {
		return decimal.Zero
	}
	return parseAmount(prices[0].CurrentPrice)
}

// parseAmount converts a JSON number or numeric string to a decimal, zero on failure
func parseAmount(n json.Number) decimal.Decimal {
	return parseDecimalString(n.String())
}

// mapShopeeOrderStatus maps Shopee order status to the platform-neutral status
func mapShopeeOrderStatus(status string) integration.PlatformOrderStatus {
	switch status {
	case "UNPAID":
		return integration.PlatformOrderStatusPending
	case "READY_TO_SHIP", "PROCESSED", "RETRY_SHIP":
		return integration.PlatformOrderStatusPaid
	case "SHIPPED":
		return integration.PlatformOrderStatusShipped
	case "TO_CONFIRM_RECEIVE":
		return integration.PlatformOrderStatusDelivered
	case "COMPLETED":
		return integration.PlatformOrderStatusCompleted
	case "IN_CANCEL", "TO_RETURN":
		return integration.PlatformOrderStatusRefunding
	case "CANCELLED":
		return integration.PlatformOrderStatusCancelled
	default:
		return integration.PlatformOrderStatusPending
	}
}

// Ensure ShopeeAdapter implements EcommercePlatform interface
var _ integration.EcommercePlatform = (*ShopeeAdapter)(nil)
