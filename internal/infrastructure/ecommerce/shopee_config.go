package ecommerce

import (
	"errors"
	"strconv"
)

// ShopeeConfig holds the partner-level configuration of the Shopee Open Platform.
// Shop credentials are supplied per call.
type ShopeeConfig struct {
	// PartnerID is the partner ID issued by the Shopee Open Platform
	PartnerID int64
	// PartnerKey is the partner secret used to sign requests
	PartnerKey string
	// APIBaseURL is the base URL for the API (production or sandbox)
	APIBaseURL string
	// TimeoutSeconds is the HTTP request timeout
	TimeoutSeconds int
	// PageSize is the page size for list calls (max 100)
	PageSize int
}

const (
	// ShopeeProductionAPIURL is the production API endpoint
	ShopeeProductionAPIURL = "https://partner.shopeemobile.com"
	// ShopeeSandboxAPIURL is the sandbox API endpoint
	ShopeeSandboxAPIURL = "https://partner.test-stable.shopeemobile.com"

	shopeeMaxPageSize    = 100
	shopeeMaxDetailBatch = 50
)

// Errors for Shopee configuration
var (
	ErrShopeeConfigMissingPartnerID  = errors.New("shopee: partner ID is required")
	ErrShopeeConfigMissingPartnerKey = errors.New("shopee: partner key is required")
)

// NewShopeeConfig creates a Shopee configuration with defaults
func NewShopeeConfig(partnerID int64, partnerKey string) *ShopeeConfig {
	return &ShopeeConfig{
		PartnerID:      partnerID,
		PartnerKey:     partnerKey,
		APIBaseURL:     ShopeeProductionAPIURL,
		TimeoutSeconds: defaultTimeoutSeconds,
		PageSize:       shopeeMaxPageSize,
	}
}

// Validate validates the configuration and fills defaults
func (c *ShopeeConfig) Validate() error {
	if c.PartnerID <= 0 {
		return ErrShopeeConfigMissingPartnerID
	}
	if c.PartnerKey == "" {
		return ErrShopeeConfigMissingPartnerKey
	}
	if c.APIBaseURL == "" {
		c.APIBaseURL = ShopeeProductionAPIURL
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = defaultTimeoutSeconds
	}
	if c.PageSize <= 0 || c.PageSize > shopeeMaxPageSize {
		c.PageSize = shopeeMaxPageSize
	}
	return nil
}

// Sign computes the shop-level request signature:
// HMAC-SHA256(partner_key, partner_id + path + timestamp + access_token + shop_id), hex encoded
func (c *ShopeeConfig) Sign(path string, timestamp int64, accessToken, shopID string) string {
	base := strconv.FormatInt(c.PartnerID, 10) + path + strconv.FormatInt(timestamp, 10) + accessToken + shopID
	return hmacSHA256Hex(c.PartnerKey, base)
}
