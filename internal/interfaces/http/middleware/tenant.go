package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/shopsync/backend/internal/infrastructure/logger"
)

const (
	// TenantHeaderKey is the header carrying the tenant ID
	TenantHeaderKey = "X-Tenant-ID"
	// TenantIDKey is the gin context key of the parsed tenant ID
	TenantIDKey = "tenant_id"
)

// TenantConfig holds configuration for the tenant middleware
type TenantConfig struct {
	// SkipPaths don't require a tenant (health checks)
	SkipPaths []string
	Logger    *zap.Logger
}

// DefaultTenantConfig returns default tenant middleware configuration
func DefaultTenantConfig() TenantConfig {
	return TenantConfig{
		SkipPaths: []string{"/health", "/healthz", "/ready"},
	}
}

// Tenant requires a UUID X-Tenant-ID header on every non-skipped request.
// The tenant is stored in the gin context and the request logger is enriched with it.
func Tenant(cfg TenantConfig) gin.HandlerFunc {
	base := cfg.Logger
	if base == nil {
		base = zap.NewNop()
	}

	return func(c *gin.Context) {
		path := c.Request.URL.Path
		for _, skip := range cfg.SkipPaths {
			if path == skip || strings.HasPrefix(path, skip+"/") {
				c.Next()
				return
			}
		}

		raw := c.GetHeader(TenantHeaderKey)
		if raw == "" {
			abortTenant(c, "ERR_TENANT_REQUIRED", "X-Tenant-ID header is required")
			return
		}
		tenantID, err := uuid.Parse(raw)
		if err != nil || tenantID == uuid.Nil {
			abortTenant(c, "ERR_TENANT_INVALID", "X-Tenant-ID must be a UUID")
			return
		}

		c.Set(TenantIDKey, tenantID)

		reqLogger := base
		if _, ok := c.Get("logger"); ok {
			reqLogger = logger.GetGinLogger(c)
		}
		ctx, enriched := logger.WithTenantID(c.Request.Context(), reqLogger, tenantID.String())
		c.Set("logger", enriched)
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

// GetTenantID returns the tenant set by Tenant
func GetTenantID(c *gin.Context) (uuid.UUID, bool) {
	v, ok := c.Get(TenantIDKey)
	if !ok {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok
}

func abortTenant(c *gin.Context, code, message string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
		"success": false,
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	})
}
