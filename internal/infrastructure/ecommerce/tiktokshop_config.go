package ecommerce

import (
	"errors"
	"net/url"
	"sort"
	"strings"
)

// TikTokShopConfig holds the app-level configuration of TikTok Shop Partner API.
// Shop credentials (access token and shop cipher) are supplied per call.
type TikTokShopConfig struct {
	// AppKey is the application key issued by TikTok Shop Partner Center
	AppKey string
	// AppSecret is the application secret used to sign requests
	AppSecret string
	// APIBaseURL is the base URL for the API
	APIBaseURL string
	// TimeoutSeconds is the HTTP request timeout
	TimeoutSeconds int
	// PageSize is the page size for search calls (max 100)
	PageSize int
}

const (
	// TikTokShopProductionAPIURL is the production API endpoint
	TikTokShopProductionAPIURL = "https://open-api.tiktokglobalshop.com"

	tiktokMaxPageSize = 100
)

// Errors for TikTok Shop configuration
var (
	ErrTikTokConfigMissingAppKey    = errors.New("tiktokshop: app key is required")
	ErrTikTokConfigMissingAppSecret = errors.New("tiktokshop: app secret is required")
)

// NewTikTokShopConfig creates a TikTok Shop configuration with defaults
func NewTikTokShopConfig(appKey, appSecret string) *TikTokShopConfig {
	return &TikTokShopConfig{
		AppKey:         appKey,
		AppSecret:      appSecret,
		APIBaseURL:     TikTokShopProductionAPIURL,
		TimeoutSeconds: defaultTimeoutSeconds,
		PageSize:       50,
	}
}

// Validate validates the configuration and fills defaults
func (c *TikTokShopConfig) Validate() error {
	if c.AppKey == "" {
		return ErrTikTokConfigMissingAppKey
	}
	if c.AppSecret == "" {
		return ErrTikTokConfigMissingAppSecret
	}
	if c.APIBaseURL == "" {
		c.APIBaseURL = TikTokShopProductionAPIURL
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = defaultTimeoutSeconds
	}
	if c.PageSize <= 0 || c.PageSize > tiktokMaxPageSize {
		c.PageSize = tiktokMaxPageSize
	}
	return nil
}

// Sign generates the request signature.
// Query parameters except sign and access_token are sorted by key and
// concatenated as key+value after the path, the raw body is appended, and the
// whole string is wrapped with the app secret before HMAC-SHA256.
func (c *TikTokShopConfig) Sign(path string, query url.Values, body []byte) string {
	keys := make([]string, 0, len(query))
	for k := range query {
		if k == "sign" || k == "access_token" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	sb.WriteString(c.AppSecret)
	sb.WriteString(path)
	for _, k := range keys {
		sb.WriteString(k)
		sb.WriteString(query.Get(k))
	}
	sb.Write(body)
	sb.WriteString(c.AppSecret)

	return hmacSHA256Hex(c.AppSecret, sb.String())
}
