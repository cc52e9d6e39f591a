package ecommerce

import "encoding/json"

// ---------------------------------------------------------------------------
// Common Shopee API Response Types
// ---------------------------------------------------------------------------

// ShopeeResponse is the envelope of every Shopee v2 response
type ShopeeResponse struct {
	Error     string          `json:"error"`
	Message   string          `json:"message"`
	RequestID string          `json:"request_id"`
	Response  json.RawMessage `json:"response,omitempty"`
}

// IsSuccess returns true if the response carries no error code
func (r *ShopeeResponse) IsSuccess() bool {
	return r.Error == ""
}

// ---------------------------------------------------------------------------
// Order Related Types
// ---------------------------------------------------------------------------

// ShopeeOrderListData is the payload of order/get_order_list
type ShopeeOrderListData struct {
	More       bool               `json:"more"`
	NextCursor string             `json:"next_cursor"`
	OrderList  []ShopeeOrderBrief `json:"order_list"`
}

// ShopeeOrderBrief is an entry of the order list
type ShopeeOrderBrief struct {
	OrderSN     string `json:"order_sn"`
	OrderStatus string `json:"order_status"`
}

// ShopeeOrderDetailData is the payload of order/get_order_detail
type ShopeeOrderDetailData struct {
	OrderList []ShopeeOrder `json:"order_list"`
}

// ShopeeOrder is the detail of one order
type ShopeeOrder struct {
	OrderSN       string            `json:"order_sn"`
	OrderStatus   string            `json:"order_status"`
	Currency      string            `json:"currency"`
	TotalAmount   json.Number       `json:"total_amount"`
	BuyerUsername string            `json:"buyer_username"`
	CreateTime    int64             `json:"create_time"`
	UpdateTime    int64             `json:"update_time"`
	ItemList      []ShopeeOrderItem `json:"item_list"`
}

// ShopeeOrderItem is a line of an order
type ShopeeOrderItem struct {
	ItemID                 int64       `json:"item_id"`
	ItemName               string      `json:"item_name"`
	ModelID                int64       `json:"model_id"`
	ModelQuantityPurchased int         `json:"model_quantity_purchased"`
	ModelDiscountedPrice   json.Number `json:"model_discounted_price"`
}

// ---------------------------------------------------------------------------
// Product Related Types
// ---------------------------------------------------------------------------

// ShopeeItemListData is the payload of product/get_item_list
type ShopeeItemListData struct {
	Item        []ShopeeItemBrief `json:"item"`
	TotalCount  int               `json:"total_count"`
	HasNextPage bool              `json:"has_next_page"`
	NextOffset  int               `json:"next_offset"`
}

// ShopeeItemBrief is an entry of the item list
type ShopeeItemBrief struct {
	ItemID     int64  `json:"item_id"`
	ItemStatus string `json:"item_status"`
	UpdateTime int64  `json:"update_time"`
}

// ShopeeItemBaseInfoData is the payload of product/get_item_base_info
type ShopeeItemBaseInfoData struct {
	ItemList []ShopeeItem `json:"item_list"`
}

// ShopeeItem is the base info of one listing
type ShopeeItem struct {
	ItemID      int64             `json:"item_id"`
	ItemName    string            `json:"item_name"`
	ItemSKU     string            `json:"item_sku"`
	HasModel    bool              `json:"has_model"`
	UpdateTime  int64             `json:"update_time"`
	PriceInfo   []ShopeePriceInfo `json:"price_info"`
	StockInfoV2 *ShopeeStockInfo  `json:"stock_info_v2,omitempty"`
}

// ShopeePriceInfo carries the listing price
type ShopeePriceInfo struct {
	Currency     string      `json:"currency"`
	CurrentPrice json.Number `json:"current_price"`
}

// ShopeeStockInfo carries the stock summary
type ShopeeStockInfo struct {
	SummaryInfo struct {
		TotalAvailableStock int `json:"total_available_stock"`
	} `json:"summary_info"`
}

// ShopeeModelListData is the payload of product/get_model_list
type ShopeeModelListData struct {
	Model []ShopeeModel `json:"model"`
}

// ShopeeModel is one variation of a listing
type ShopeeModel struct {
	ModelID     int64             `json:"model_id"`
	ModelSKU    string            `json:"model_sku"`
	PriceInfo   []ShopeePriceInfo `json:"price_info"`
	StockInfoV2 *ShopeeStockInfo  `json:"stock_info_v2,omitempty"`
}

// ---------------------------------------------------------------------------
// Write Request Types
// ---------------------------------------------------------------------------

// ShopeeUpdateStockRequest is the body of product/update_stock
type ShopeeUpdateStockRequest struct {
	ItemID    int64                 `json:"item_id"`
	StockList []ShopeeModelStockReq `json:"stock_list"`
}

// ShopeeModelStockReq sets the seller stock of one model
type ShopeeModelStockReq struct {
	ModelID     int64               `json:"model_id"`
	SellerStock []ShopeeSellerStock `json:"seller_stock"`
}

// ShopeeSellerStock is a stock quantity
type ShopeeSellerStock struct {
	Stock int `json:"stock"`
}

// ShopeeUpdateStockData is the payload of product/update_stock
type ShopeeUpdateStockData struct {
	FailureList []struct {
		ModelID      int64  `json:"model_id"`
		FailedReason string `json:"failed_reason"`
	} `json:"failure_list"`
}

// ShopeeShipOrderRequest is the body of logistics/ship_order for non-integrated channels
type ShopeeShipOrderRequest struct {
	OrderSN       string `json:"order_sn"`
	NonIntegrated struct {
		TrackingNumber string `json:"tracking_number"`
	} `json:"non_integrated"`
}

// ShopeeCancelOrderRequest is the body of order/cancel_order
type ShopeeCancelOrderRequest struct {
	OrderSN      string `json:"order_sn"`
	CancelReason string `json:"cancel_reason"`
}
