package ecommerce

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/shopsync/backend/internal/domain/integration"
)

// TikTok Shop API paths (version 202309)
const (
	tiktokPathOrderSearch   = "/order/202309/orders/search"
	tiktokPathProductSearch = "/product/202309/products/search"
	tiktokPathInventory     = "/product/202309/products/%s/inventory/update"
	tiktokPathMarkShipped   = "/fulfillment/202309/orders/%s/mark_as_shipped"
	tiktokPathCancel        = "/return_refund/202309/cancellations"

	tiktokDefaultCancelReason = "seller_cancel_reason_out_of_stock"
	tiktokAccessTokenHeader   = "x-tts-access-token"
)

// TikTok Shop error codes outside the HTTP status classification
var (
	tiktokAuthCodes = map[int]bool{
		105001: true, // access token invalid
		105002: true, // access token expired
		105003: true, // access token revoked
		105005: true, // shop not authorized
	}
	tiktokTransientCodes = map[int]bool{
		36009003: true, // internal error
		36009004: true, // system busy
		12052900: true, // too many requests
	}
)

// TikTokShopAdapter implements the EcommercePlatform interface for TikTok Shop
type TikTokShopAdapter struct {
	config *TikTokShopConfig
	client *apiClient
	logger *zap.Logger
	now    func() time.Time
}

// NewTikTokShopAdapter creates a new TikTok Shop adapter
func NewTikTokShopAdapter(config *TikTokShopConfig, logger *zap.Logger) (*TikTokShopAdapter, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TikTokShopAdapter{
		config: config,
		client: newAPIClient(integration.PlatformCodeTikTokShop, config.TimeoutSeconds),
		logger: logger.Named("tiktokshop"),
		now:    time.Now,
	}, nil
}

// PlatformCode returns the platform code
func (a *TikTokShopAdapter) PlatformCode() integration.PlatformCode {
	return integration.PlatformCodeTikTokShop
}

// FetchOrders returns the orders updated since the given time
func (a *TikTokShopAdapter) FetchOrders(ctx context.Context, cred *integration.Credential, since time.Time) ([]integration.PlatformOrder, error) {
	const op = "fetch_orders"
	if err := requireCredential(a.PlatformCode(), op, cred); err != nil {
		return nil, err
	}

	body := TikTokOrderSearchRequest{UpdateTimeGE: since.Unix()}
	var orders []integration.PlatformOrder
	pageToken := ""
	for {
		query := url.Values{}
		query.Set("page_size", strconv.Itoa(a.config.PageSize))
		query.Set("sort_field", "update_time")
		query.Set("sort_order", "ASC")
		if pageToken != "" {
			query.Set("page_token", pageToken)
		}

		var data TikTokOrderSearchData
		if err := a.call(ctx, op, http.MethodPost, tiktokPathOrderSearch, cred, query, body, &data); err != nil {
			return nil, err
		}
		for _, o := range data.Orders {
			orders = append(orders, convertTikTokOrder(o))
		}
		if data.NextPageToken == "" || data.NextPageToken == pageToken {
			break
		}
		pageToken = data.NextPageToken
	}

	a.logger.Debug("Fetched orders",
		zap.String("shop_cipher", cred.ShopID),
		zap.Time("since", since),
		zap.Int("count", len(orders)))
	return orders, nil
}

// FetchProducts returns every active SKU of the shop
func (a *TikTokShopAdapter) FetchProducts(ctx context.Context, cred *integration.Credential) ([]integration.PlatformProduct, error) {
	const op = "fetch_products"
	if err := requireCredential(a.PlatformCode(), op, cred); err != nil {
		return nil, err
	}

	body := TikTokProductSearchRequest{Status: "ACTIVATE"}
	var products []integration.PlatformProduct
	pageToken := ""
	for {
		query := url.Values{}
		query.Set("page_size", strconv.Itoa(a.config.PageSize))
		if pageToken != "" {
			query.Set("page_token", pageToken)
		}

		var data TikTokProductSearchData
		if err := a.call(ctx, op, http.MethodPost, tiktokPathProductSearch, cred, query, body, &data); err != nil {
			return nil, err
		}
		for _, p := range data.Products {
			for _, sku := range p.Skus {
				products = append(products, convertTikTokSku(p, sku))
			}
		}
		if data.NextPageToken == "" || data.NextPageToken == pageToken {
			break
		}
		pageToken = data.NextPageToken
	}

	a.logger.Debug("Fetched products",
		zap.String("shop_cipher", cred.ShopID),
		zap.Int("count", len(products)))
	return products, nil
}

// PushInventory sets the sellable quantity of one SKU
func (a *TikTokShopAdapter) PushInventory(ctx context.Context, cred *integration.Credential, ref integration.ProductRef, quantity int) error {
	const op = "push_inventory"
	if err := ref.Validate(); err != nil {
		return integration.NewPermanentError(a.PlatformCode(), op, err)
	}
	if ref.PlatformSkuID == "" {
		return integration.NewPermanentError(a.PlatformCode(), op, fmt.Errorf("%w: TikTok Shop requires a SKU ID", integration.ErrInvalidProductRef))
	}
	if quantity < 0 {
		return integration.NewPermanentError(a.PlatformCode(), op, integration.ErrInvalidQuantity)
	}
	if err := requireCredential(a.PlatformCode(), op, cred); err != nil {
		return err
	}

	body := TikTokInventoryUpdateRequest{
		Skus: []TikTokSkuInventory{{
			ID:        ref.PlatformSkuID,
			Inventory: []TikTokInventory{{Quantity: quantity}},
		}},
	}
	path := fmt.Sprintf(tiktokPathInventory, url.PathEscape(ref.PlatformProductID))
	return a.call(ctx, op, http.MethodPost, path, cred, url.Values{}, body, nil)
}

// UpdateOrderStatus ships or cancels an order on TikTok Shop
func (a *TikTokShopAdapter) UpdateOrderStatus(ctx context.Context, cred *integration.Credential, update integration.OrderStatusUpdate) error {
	const op = "update_order_status"
	if err := update.Validate(); err != nil {
		return integration.NewPermanentError(a.PlatformCode(), op, err)
	}
	if err := requireCredential(a.PlatformCode(), op, cred); err != nil {
		return err
	}

	if update.Action == integration.OrderActionShip {
		body := TikTokMarkShippedRequest{
			TrackingNumber:     update.TrackingNumber,
			ShippingProviderID: update.Carrier,
		}
		path := fmt.Sprintf(tiktokPathMarkShipped, url.PathEscape(update.PlatformOrderID))
		return a.call(ctx, op, http.MethodPost, path, cred, url.Values{}, body, nil)
	}

	reason := update.CancelReason
	if reason == "" {
		reason = tiktokDefaultCancelReason
	}
	body := TikTokCancelRequest{OrderID: update.PlatformOrderID, CancelReason: reason}
	return a.call(ctx, op, http.MethodPost, tiktokPathCancel, cred, url.Values{}, body, nil)
}

// call signs and sends one request, decoding the data payload into out
func (a *TikTokShopAdapter) call(ctx context.Context, op, method, path string, cred *integration.Credential, query url.Values, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return integration.NewPermanentError(a.PlatformCode(), op, fmt.Errorf("marshal request: %w", err))
		}
	}

	query.Set("app_key", a.config.AppKey)
	query.Set("timestamp", strconv.FormatInt(a.now().Unix(), 10))
	query.Set("shop_cipher", cred.ShopID)
	query.Set("sign", a.config.Sign(path, query, payload))

	req, err := http.NewRequestWithContext(ctx, method, a.config.APIBaseURL+path+"?"+query.Encode(), bytes.NewReader(payload))
	if err != nil {
		return integration.NewPermanentError(a.PlatformCode(), op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(tiktokAccessTokenHeader, cred.AccessToken)

	raw, err := a.client.do(ctx, op, req)
	if err != nil {
		return err
	}

	var resp TikTokResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return a.client.decodeError(op, err)
	}
	if !resp.IsSuccess() {
		a.logger.Warn("TikTok Shop API error",
			zap.String("op", op),
			zap.Int("code", resp.Code),
			zap.String("message", resp.Message),
			zap.String("request_id", resp.RequestID))
		return a.client.apiError(op, classifyTikTokError(resp.Code), strconv.Itoa(resp.Code), resp.Message)
	}
	if out == nil || len(resp.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Data, out); err != nil {
		return a.client.decodeError(op, err)
	}
	return nil
}

func classifyTikTokError(code int) integration.FailureKind {
	switch {
	case tiktokAuthCodes[code]:
		return integration.FailureAuth
	case tiktokTransientCodes[code]:
		return integration.FailureTransient
	default:
		return integration.FailurePermanent
	}
}

// ---------------------------------------------------------------------------
// Conversion
// ---------------------------------------------------------------------------

// convertTikTokOrder folds the per-unit line items into one item per SKU
func convertTikTokOrder(o TikTokOrder) integration.PlatformOrder {
	order := integration.PlatformOrder{
		PlatformOrderID: o.ID,
		PlatformCode:    integration.PlatformCodeTikTokShop,
		Status:          mapTikTokOrderStatus(o.Status),
		BuyerName:       o.RecipientAddress.Name,
		TotalAmount:     parseDecimalString(o.Payment.TotalAmount),
		Currency:        o.Payment.Currency,
		CreatedAt:       time.Unix(o.CreateTime, 0).UTC(),
		UpdatedAt:       time.Unix(o.UpdateTime, 0).UTC(),
	}

	index := make(map[string]int)
	for _, li := range o.LineItems {
		key := integration.ProductKey(li.ProductID, li.SkuID)
		if i, ok := index[key]; ok {
			order.Items[i].Quantity++
			continue
		}
		index[key] = len(order.Items)
		order.Items = append(order.Items, integration.PlatformOrderItem{
			PlatformProductID: li.ProductID,
			PlatformSkuID:     li.SkuID,
			ProductName:       li.ProductName,
			Quantity:          1,
			UnitPrice:         parseDecimalString(li.SalePrice),
		})
	}
	return order
}

func convertTikTokSku(p TikTokProduct, sku TikTokSku) integration.PlatformProduct {
	stock := 0
	for _, inv := range sku.Inventory {
		stock += inv.Quantity
	}
	return integration.PlatformProduct{
		PlatformProductID: p.ID,
		PlatformSkuID:     sku.ID,
		PlatformCode:      integration.PlatformCodeTikTokShop,
		SKU:               sku.SellerSku,
		Name:              p.Title,
		StockQuantity:     stock,
		Price:             parseDecimalString(sku.Price.TaxExclusivePrice),
		UpdatedAt:         time.Unix(p.UpdateTime, 0).UTC(),
	}
}

func parseDecimalString(s string) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// mapTikTokOrderStatus maps TikTok Shop order status to the platform-neutral status
func mapTikTokOrderStatus(status string) integration.PlatformOrderStatus {
	switch status {
	case "UNPAID", "ON_HOLD":
		return integration.PlatformOrderStatusPending
	case "AWAITING_SHIPMENT", "PARTIALLY_SHIPPING", "AWAITING_COLLECTION":
		return integration.PlatformOrderStatusPaid
	case "IN_TRANSIT":
		return integration.PlatformOrderStatusShipped
	case "DELIVERED":
		return integration.PlatformOrderStatusDelivered
	case "COMPLETED":
		return integration.PlatformOrderStatusCompleted
	case "CANCELLED":
		return integration.PlatformOrderStatusCancelled
	default:
		return integration.PlatformOrderStatusPending
	}
}

// Ensure TikTokShopAdapter implements EcommercePlatform interface
var _ integration.EcommercePlatform = (*TikTokShopAdapter)(nil)
