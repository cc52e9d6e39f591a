package ecommerce

import "encoding/json"

// ---------------------------------------------------------------------------
// Common TikTok Shop API Response Types
// ---------------------------------------------------------------------------

// TikTokResponse is the envelope of every TikTok Shop response
type TikTokResponse struct {
	Code      int             `json:"code"`
	Message   string          `json:"message"`
	RequestID string          `json:"request_id"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// IsSuccess returns true if the response code indicates success
func (r *TikTokResponse) IsSuccess() bool {
	return r.Code == 0
}

// ---------------------------------------------------------------------------
// Order Related Types
// ---------------------------------------------------------------------------

// TikTokOrderSearchRequest is the body of the order search call
type TikTokOrderSearchRequest struct {
	UpdateTimeGE int64 `json:"update_time_ge,omitempty"`
	UpdateTimeLT int64 `json:"update_time_lt,omitempty"`
}

// TikTokOrderSearchData is the payload of the order search call
type TikTokOrderSearchData struct {
	NextPageToken string        `json:"next_page_token"`
	TotalCount    int           `json:"total_count"`
	Orders        []TikTokOrder `json:"orders"`
}

// TikTokOrder is one order
type TikTokOrder struct {
	ID               string           `json:"id"`
	Status           string           `json:"status"`
	CreateTime       int64            `json:"create_time"`
	UpdateTime       int64            `json:"update_time"`
	Payment          TikTokPayment    `json:"payment"`
	RecipientAddress TikTokAddress    `json:"recipient_address"`
	LineItems        []TikTokLineItem `json:"line_items"`
}

// TikTokPayment holds amounts as decimal strings
type TikTokPayment struct {
	Currency    string `json:"currency"`
	TotalAmount string `json:"total_amount"`
}

// TikTokAddress is the recipient address of an order
type TikTokAddress struct {
	Name string `json:"name"`
}

// TikTokLineItem is one unit of an order; TikTok reports a line per unit
type TikTokLineItem struct {
	ProductID   string `json:"product_id"`
	SkuID       string `json:"sku_id"`
	ProductName string `json:"product_name"`
	SalePrice   string `json:"sale_price"`
}

// ---------------------------------------------------------------------------
// Product Related Types
// ---------------------------------------------------------------------------

// TikTokProductSearchRequest is the body of the product search call
type TikTokProductSearchRequest struct {
	Status string `json:"status,omitempty"`
}

// TikTokProductSearchData is the payload of the product search call
type TikTokProductSearchData struct {
	NextPageToken string          `json:"next_page_token"`
	TotalCount    int             `json:"total_count"`
	Products      []TikTokProduct `json:"products"`
}

// TikTokProduct is one listing
type TikTokProduct struct {
	ID         string      `json:"id"`
	Title      string      `json:"title"`
	Status     string      `json:"status"`
	UpdateTime int64       `json:"update_time"`
	Skus       []TikTokSku `json:"skus"`
}

// TikTokSku is one sellable variant
type TikTokSku struct {
	ID        string            `json:"id"`
	SellerSku string            `json:"seller_sku"`
	Price     TikTokPrice       `json:"price"`
	Inventory []TikTokInventory `json:"inventory"`
}

// TikTokPrice is a SKU price
type TikTokPrice struct {
	Currency          string `json:"currency"`
	TaxExclusivePrice string `json:"tax_exclusive_price"`
}

// TikTokInventory is the quantity of a SKU in one warehouse
type TikTokInventory struct {
	WarehouseID string `json:"warehouse_id,omitempty"`
	Quantity    int    `json:"quantity"`
}

// ---------------------------------------------------------------------------
// Write Request Types
// ---------------------------------------------------------------------------

// TikTokInventoryUpdateRequest is the body of the inventory update call
type TikTokInventoryUpdateRequest struct {
	Skus []TikTokSkuInventory `json:"skus"`
}

// TikTokSkuInventory sets the inventory of one SKU
type TikTokSkuInventory struct {
	ID        string            `json:"id"`
	Inventory []TikTokInventory `json:"inventory"`
}

// TikTokMarkShippedRequest is the body of the mark-as-shipped call
type TikTokMarkShippedRequest struct {
	TrackingNumber     string `json:"tracking_number"`
	ShippingProviderID string `json:"shipping_provider_id,omitempty"`
}

// TikTokCancelRequest is the body of the seller cancellation call
type TikTokCancelRequest struct {
	OrderID      string `json:"order_id"`
	CancelReason string `json:"cancel_reason"`
}
