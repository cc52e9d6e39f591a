// Package ratelimit tracks platform API call volume per (tenant, platform)
// in a sliding window and answers whether another call may be placed.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/shopsync/backend/internal/domain/integration"
)

// Default configuration values.
const (
	DefaultWindow            = time.Minute
	DefaultShopeeCeiling     = 100
	DefaultTikTokShopCeiling = 60
	DefaultCeiling           = 60
	DefaultKeyPrefix         = "ratelimit:"
)

// ErrInvalidConfig is returned when the limiter configuration is invalid
var ErrInvalidConfig = errors.New("ratelimit: invalid configuration")

// Config holds the limiter configuration
type Config struct {
	// Window is the trailing window calls are counted in
	Window time.Duration
	// Ceilings is the maximum calls per window for each platform
	Ceilings map[integration.PlatformCode]int
	// DefaultCeiling applies to platforms missing from Ceilings
	DefaultCeiling int
	// KeyPrefix namespaces the store keys
	KeyPrefix string
}

// DefaultConfig returns the default limiter configuration
func DefaultConfig() Config {
	return Config{
		Window: DefaultWindow,
		Ceilings: map[integration.PlatformCode]int{
			integration.PlatformCodeShopee:     DefaultShopeeCeiling,
			integration.PlatformCodeTikTokShop: DefaultTikTokShopCeiling,
		},
		DefaultCeiling: DefaultCeiling,
		KeyPrefix:      DefaultKeyPrefix,
	}
}

// Validate validates the configuration
func (c Config) Validate() error {
	if c.Window <= 0 {
		return fmt.Errorf("%w: window must be positive", ErrInvalidConfig)
	}
	if c.DefaultCeiling <= 0 {
		return fmt.Errorf("%w: default ceiling must be positive", ErrInvalidConfig)
	}
	for p, n := range c.Ceilings {
		if n <= 0 {
			return fmt.Errorf("%w: ceiling for %s must be positive", ErrInvalidConfig, p)
		}
	}
	return nil
}

// CeilingFor returns the call ceiling of a platform
func (c Config) CeilingFor(platform integration.PlatformCode) int {
	if n, ok := c.Ceilings[platform]; ok {
		return n
	}
	return c.DefaultCeiling
}

// WindowStore keeps the call log of every rate window
type WindowStore interface {
	// Count returns the number of calls recorded for key strictly after since
	Count(ctx context.Context, key string, since time.Time) (int, error)
	// Add records a call at the given time. ttl bounds how long the entry is needed.
	Add(ctx context.Context, key string, at time.Time, ttl time.Duration) error
}

// Limiter admits platform calls per (tenant, platform). Admit and Record are
// separate: callers Admit before a call and Record once it was attempted.
type Limiter struct {
	store  WindowStore
	config Config
	now    func() time.Time
	logger *zap.Logger
}

// Option configures a Limiter
type Option func(*Limiter)

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		l.now = now
	}
}

// NewLimiter creates a limiter over the given store
func NewLimiter(store WindowStore, config Config, logger *zap.Logger, opts ...Option) (*Limiter, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	l := &Limiter{
		store:  store,
		config: config,
		now:    time.Now,
		logger: logger.Named("ratelimit"),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Key returns the store key of a (tenant, platform) window
func (l *Limiter) Key(tenantID uuid.UUID, platform integration.PlatformCode) string {
	return l.config.KeyPrefix + tenantID.String() + ":" + string(platform)
}

// Admit reports whether a call may be placed now. When the store cannot be
// read the call is admitted; the platform's own 429 handling is the backstop.
func (l *Limiter) Admit(ctx context.Context, tenantID uuid.UUID, platform integration.PlatformCode) bool {
	count, err := l.count(ctx, tenantID, platform)
	if err != nil {
		l.logger.Warn("Rate window unavailable, admitting call",
			zap.String("tenant_id", tenantID.String()),
			zap.String("platform", string(platform)),
			zap.Error(err),
		)
		return true
	}
	return count < l.config.CeilingFor(platform)
}

// Record counts a call that was attempted
func (l *Limiter) Record(ctx context.Context, tenantID uuid.UUID, platform integration.PlatformCode) {
	if err := l.store.Add(ctx, l.Key(tenantID, platform), l.now(), l.config.Window); err != nil {
		l.logger.Warn("Failed to record platform call",
			zap.String("tenant_id", tenantID.String()),
			zap.String("platform", string(platform)),
			zap.Error(err),
		)
	}
}

// Remaining returns how many calls are still admitted in the current window
func (l *Limiter) Remaining(ctx context.Context, tenantID uuid.UUID, platform integration.PlatformCode) (int, error) {
	count, err := l.count(ctx, tenantID, platform)
	if err != nil {
		return 0, err
	}
	remaining := l.config.CeilingFor(platform) - count
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

// Ceiling returns the configured ceiling of a platform
func (l *Limiter) Ceiling(platform integration.PlatformCode) int {
	return l.config.CeilingFor(platform)
}

// Window returns the configured window
func (l *Limiter) Window() time.Duration {
	return l.config.Window
}

func (l *Limiter) count(ctx context.Context, tenantID uuid.UUID, platform integration.PlatformCode) (int, error) {
	since := l.now().Add(-l.config.Window)
	return l.store.Count(ctx, l.Key(tenantID, platform), since)
}
