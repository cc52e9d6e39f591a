// Package alert turns reconciliation changes and sync failures into tenant
// notifications, suppressing duplicates while an equivalent alert is active.
package alert

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/shopsync/backend/internal/domain/integration"
	"github.com/shopsync/backend/internal/domain/notification"
	"github.com/shopsync/backend/internal/domain/reconciliation"
)

var (
	ErrInvalidConfig      = errors.New("alert: invalid configuration")
	ErrInvalidChange      = errors.New("alert: change has no detail for its kind")
	ErrInvalidSystemAlert = errors.New("alert: system alert must be sync_error or api_error")
)

// DefaultNotificationTTL is how long a notification blocks duplicates
const DefaultNotificationTTL = 7 * 24 * time.Hour

// lockStripes is the number of mutexes guarding the find-then-create sequence
const lockStripes = 64

// Config configures the emitter
type Config struct {
	// HighValueThreshold raises new orders at or above it to critical. Zero disables.
	HighValueThreshold decimal.Decimal
	// NotificationTTL sets expires_at for types without an entry in TTLByType
	NotificationTTL time.Duration
	// TTLByType overrides NotificationTTL per notification type
	TTLByType map[notification.Type]time.Duration
}

// DefaultConfig returns the default emitter configuration
func DefaultConfig() Config {
	return Config{
		HighValueThreshold: decimal.NewFromInt(1000),
		NotificationTTL:    DefaultNotificationTTL,
		TTLByType:          map[notification.Type]time.Duration{},
	}
}

// Validate validates the configuration
func (c Config) Validate() error {
	if c.HighValueThreshold.IsNegative() {
		return fmt.Errorf("%w: high value threshold must not be negative", ErrInvalidConfig)
	}
	if c.NotificationTTL <= 0 {
		return fmt.Errorf("%w: notification TTL must be positive", ErrInvalidConfig)
	}
	for typ, ttl := range c.TTLByType {
		if ttl <= 0 {
			return fmt.Errorf("%w: TTL for %s must be positive", ErrInvalidConfig, typ)
		}
	}
	return nil
}

// TTLFor returns the lifetime of a notification of the given type
func (c Config) TTLFor(typ notification.Type) time.Duration {
	if ttl, ok := c.TTLByType[typ]; ok {
		return ttl
	}
	return c.NotificationTTL
}

// EmitResult reports what Emit did. Skipped is true when an active
// equivalent notification already existed and nothing was written.
type EmitResult struct {
	Notification *notification.Notification
	Skipped      bool
}

// SystemAlert describes a failure of the sync machinery itself
type SystemAlert struct {
	TenantID uuid.UUID
	// Type is TypeSyncError or TypeAPIError
	Type       notification.Type
	Platform   integration.PlatformCode
	ScheduleID *uuid.UUID
	JobID      *uuid.UUID
	Title      string
	Message    string
	Reason     string
	Err        error
	// Subject separates alerts about different conditions of the same
	// schedule or platform, such as a disabled schedule
	Subject string
}

// entity is the dedup entity: the schedule for sync errors raised on behalf
// of a schedule, otherwise the platform, qualified by the subject
func (a SystemAlert) entity() string {
	entity := "platform:" + string(a.Platform)
	if a.Type == notification.TypeSyncError && a.ScheduleID != nil {
		entity = "schedule:" + a.ScheduleID.String()
	}
	if a.Subject != "" {
		entity += ":" + a.Subject
	}
	return entity
}

// Emitter persists notifications for changes and system failures
type Emitter struct {
	repo   notification.Repository
	config Config
	logger *zap.Logger
	now    func() time.Time
	locks  [lockStripes]sync.Mutex
}

// Option configures an Emitter
type Option func(*Emitter)

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(e *Emitter) {
		e.now = now
	}
}

// NewEmitter creates an emitter
func NewEmitter(repo notification.Repository, config Config, logger *zap.Logger, opts ...Option) (*Emitter, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Emitter{
		repo:   repo,
		config: config,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Emit creates the notification for a change unless an active one with the
// same dedup key exists for the tenant
func (e *Emitter) Emit(ctx context.Context, tenantID uuid.UUID, change reconciliation.Change) (EmitResult, error) {
	n, err := e.fromChange(tenantID, change)
	if err != nil {
		return EmitResult{}, err
	}
	n.Metadata.Platform = string(change.Platform)
	return e.persist(ctx, n)
}

// EmitAll emits every change and returns the created and skipped counts.
// A failing change does not stop the rest.
func (e *Emitter) EmitAll(ctx context.Context, tenantID uuid.UUID, changes []reconciliation.Change) (created, skipped int, err error) {
	var errs []error
	for _, c := range changes {
		res, emitErr := e.Emit(ctx, tenantID, c)
		if emitErr != nil {
			errs = append(errs, emitErr)
			continue
		}
		if res.Skipped {
			skipped++
		} else {
			created++
		}
	}
	return created, skipped, errors.Join(errs...)
}

// EmitSystem raises a sync_error or api_error notification
func (e *Emitter) EmitSystem(ctx context.Context, alert SystemAlert) (EmitResult, error) {
	var priority notification.Priority
	switch alert.Type {
	case notification.TypeSyncError:
		priority = notification.PriorityHigh
	case notification.TypeAPIError:
		priority = notification.PriorityCritical
	default:
		return EmitResult{}, ErrInvalidSystemAlert
	}

	title := alert.Title
	if title == "" {
		title = defaultSystemTitle(alert)
	}
	n, err := notification.New(alert.TenantID, alert.Type, priority, string(alert.Type), alert.entity(), title, alert.Message, e.now())
	if err != nil {
		return EmitResult{}, err
	}
	n.Metadata = notification.Metadata{
		Platform:      string(alert.Platform),
		JobID:         alert.JobID,
		ScheduleID:    alert.ScheduleID,
		FailureReason: alert.Reason,
	}
	if alert.Err != nil {
		n.Metadata.Error = alert.Err.Error()
	}
	return e.persist(ctx, n)
}

func defaultSystemTitle(alert SystemAlert) string {
	name := alert.Platform.DisplayName()
	if alert.Type == notification.TypeAPIError {
		return fmt.Sprintf("%s credential needs attention", name)
	}
	return fmt.Sprintf("%s sync failed", name)
}

// persist writes n unless an active notification with its dedup key exists.
// The check and the write hold a striped lock so concurrent jobs of one
// tenant cannot both create the same alert.
func (e *Emitter) persist(ctx context.Context, n *notification.Notification) (EmitResult, error) {
	lock := e.lockFor(n.TenantID, n.DedupKey)
	lock.Lock()
	defer lock.Unlock()

	now := e.now()
	existing, err := e.repo.FindActive(ctx, n.TenantID, n.DedupKey, now)
	switch {
	case err == nil:
		e.logger.Debug("Notification suppressed by active duplicate",
			zap.String("tenant_id", n.TenantID.String()),
			zap.String("dedup_key", n.DedupKey),
			zap.String("existing_id", existing.ID.String()))
		return EmitResult{Notification: existing, Skipped: true}, nil
	case !errors.Is(err, notification.ErrNotificationNotFound):
		return EmitResult{}, fmt.Errorf("alert: find active notification: %w", err)
	}

	expires := now.Add(e.config.TTLFor(n.Type))
	n.ExpiresAt = &expires
	if err := e.repo.Create(ctx, n); err != nil {
		return EmitResult{}, fmt.Errorf("alert: create notification: %w", err)
	}

	e.logger.Info("Notification created",
		zap.String("tenant_id", n.TenantID.String()),
		zap.String("type", string(n.Type)),
		zap.String("priority", string(n.Priority)),
		zap.String("dedup_key", n.DedupKey))
	return EmitResult{Notification: n}, nil
}

func (e *Emitter) lockFor(tenantID uuid.UUID, key string) *sync.Mutex {
	h := fnv.New32a()
	h.Write(tenantID[:])
	h.Write([]byte(key))
	return &e.locks[h.Sum32()%lockStripes]
}

// ---------------------------------------------------------------------------
// Change mapping
// ---------------------------------------------------------------------------

func (e *Emitter) fromChange(tenantID uuid.UUID, c reconciliation.Change) (*notification.Notification, error) {
	now := e.now()
	kind := string(c.Kind)
	entity := c.DedupEntity()
	platform := c.Platform.DisplayName()

	switch c.Kind {
	case reconciliation.KindNewOrder:
		if c.Order == nil {
			return nil, ErrInvalidChange
		}
		o := c.Order
		priority := notification.PriorityNormal
		if e.isHighValue(o.TotalAmount) {
			priority = notification.PriorityCritical
		}
		title := fmt.Sprintf("New %s order %s", platform, o.PlatformOrderID)
		message := fmt.Sprintf("Order %s: %s %s", o.PlatformOrderID, o.TotalAmount.StringFixed(2), o.Currency)
		if o.BuyerName != "" {
			message += " from " + o.BuyerName
		}
		n, err := notification.New(tenantID, notification.TypeNewOrder, priority, kind, entity, title, message, now)
		if err != nil {
			return nil, err
		}
		n.Metadata = orderMetadata(o)
		return n, nil

	case reconciliation.KindStatusTransition:
		if c.Order == nil {
			return nil, ErrInvalidChange
		}
		o := c.Order
		priority := notification.PriorityNormal
		if o.NewStatus.NeedsAttention() {
			priority = notification.PriorityHigh
		}
		title := fmt.Sprintf("%s order %s is %s", platform, o.PlatformOrderID, o.NewStatus)
		message := fmt.Sprintf("Order %s changed from %s to %s", o.PlatformOrderID, o.OldStatus, o.NewStatus)
		n, err := notification.New(tenantID, notification.TypeOrderStatus, priority, kind, entity, title, message, now)
		if err != nil {
			return nil, err
		}
		n.Metadata = orderMetadata(o)
		return n, nil

	case reconciliation.KindStockBreach:
		if c.Stock == nil {
			return nil, ErrInvalidChange
		}
		s := c.Stock
		priority := notification.PriorityHigh
		if s.After <= 0 {
			priority = notification.PriorityCritical
		}
		title := fmt.Sprintf("Low stock on %s: %s", platform, productLabel(s))
		message := fmt.Sprintf("%s has %d left, below the threshold of %d", productLabel(s), s.After, s.Threshold)
		if s.After <= 0 {
			message = fmt.Sprintf("%s is out of stock", productLabel(s))
		}
		n, err := notification.New(tenantID, notification.TypeLowStock, priority, kind, entity, title, message, now)
		if err != nil {
			return nil, err
		}
		n.Metadata = stockMetadata(s)
		return n, nil

	case reconciliation.KindStockRestock:
		if c.Stock == nil {
			return nil, ErrInvalidChange
		}
		s := c.Stock
		title := fmt.Sprintf("Restocked on %s: %s", platform, productLabel(s))
		message := fmt.Sprintf("%s is back to %d", productLabel(s), s.After)
		n, err := notification.New(tenantID, notification.TypeRestock, notification.PriorityLow, kind, entity, title, message, now)
		if err != nil {
			return nil, err
		}
		n.Metadata = stockMetadata(s)
		return n, nil
	}
	return nil, fmt.Errorf("%w: unknown kind %q", ErrInvalidChange, c.Kind)
}

func (e *Emitter) isHighValue(total decimal.Decimal) bool {
	return e.config.HighValueThreshold.IsPositive() && total.GreaterThanOrEqual(e.config.HighValueThreshold)
}

func productLabel(s *reconciliation.StockDetail) string {
	switch {
	case s.Name != "" && s.SKU != "":
		return fmt.Sprintf("%s (%s)", s.Name, s.SKU)
	case s.Name != "":
		return s.Name
	case s.SKU != "":
		return s.SKU
	default:
		return integration.ProductKey(s.PlatformProductID, s.PlatformSkuID)
	}
}

func orderMetadata(o *reconciliation.OrderDetail) notification.Metadata {
	return notification.Metadata{
		PlatformOrderID: o.PlatformOrderID,
		OldStatus:       string(o.OldStatus),
		NewStatus:       string(o.NewStatus),
		TotalAmount:     o.TotalAmount.String(),
		Currency:        o.Currency,
	}
}

func stockMetadata(s *reconciliation.StockDetail) notification.Metadata {
	after := s.After
	threshold := s.Threshold
	return notification.Metadata{
		ProductID:   integration.ProductKey(s.PlatformProductID, s.PlatformSkuID),
		SKU:         s.SKU,
		StockBefore: s.Before,
		StockAfter:  &after,
		Threshold:   &threshold,
	}
}
