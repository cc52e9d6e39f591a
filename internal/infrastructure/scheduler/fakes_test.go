package scheduler

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/shopsync/backend/internal/application/alert"
	"github.com/shopsync/backend/internal/domain/integration"
	"github.com/shopsync/backend/internal/domain/notification"
	"github.com/shopsync/backend/internal/domain/reconciliation"
	"github.com/shopsync/backend/internal/domain/scheduling"
	"github.com/shopsync/backend/internal/infrastructure/ecommerce"
	"github.com/shopsync/backend/internal/infrastructure/ratelimit"
)

// ---------------------------------------------------------------------------
// Test Helpers
// ---------------------------------------------------------------------------

func newTestLogger() *zap.Logger {
	logger, _ := zap.NewDevelopment()
	return logger
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// ---------------------------------------------------------------------------
// In-memory repositories
// ---------------------------------------------------------------------------

type memoryJobRepo struct {
	mu      sync.Mutex
	jobs    map[uuid.UUID]scheduling.Job
	saveErr error
}

func newMemoryJobRepo() *memoryJobRepo {
	return &memoryJobRepo{jobs: make(map[uuid.UUID]scheduling.Job)}
}

func (r *memoryJobRepo) Create(_ context.Context, job *scheduling.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[job.ID] = *job
	return nil
}

func (r *memoryJobRepo) Save(_ context.Context, job *scheduling.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return r.saveErr
	}
	r.jobs[job.ID] = *job
	return nil
}

func (r *memoryJobRepo) Claim(_ context.Context, id uuid.UUID, startedAt time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok || job.Status != scheduling.JobStatusPending {
		return false, nil
	}
	job.Status = scheduling.JobStatusRunning
	job.StartedAt = &startedAt
	r.jobs[id] = job
	return true, nil
}

func (r *memoryJobRepo) CancelPending(_ context.Context, tenantID, id uuid.UUID, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok || job.TenantID != tenantID || job.Status != scheduling.JobStatusPending {
		return false, nil
	}
	job.Status = scheduling.JobStatusCancelled
	job.CompletedAt = &at
	r.jobs[id] = job
	return true, nil
}

func (r *memoryJobRepo) FindByID(_ context.Context, tenantID, id uuid.UUID) (*scheduling.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok || job.TenantID != tenantID {
		return nil, scheduling.ErrJobNotFound
	}
	return &job, nil
}

func (r *memoryJobRepo) FindDuePending(_ context.Context, now time.Time, limit int) ([]scheduling.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var due []scheduling.Job
	for _, job := range r.jobs {
		if job.Status == scheduling.JobStatusPending && !job.ScheduledAt.After(now) {
			due = append(due, job)
		}
	}
	sort.Slice(due, func(i, j int) bool {
		if due[i].Priority != due[j].Priority {
			return due[i].Priority > due[j].Priority
		}
		return due[i].ScheduledAt.Before(due[j].ScheduledAt)
	})
	if len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (r *memoryJobRepo) FindByTenant(_ context.Context, tenantID uuid.UUID, filter scheduling.JobFilter) ([]scheduling.Job, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []scheduling.Job
	for _, job := range r.jobs {
		if job.TenantID != tenantID {
			continue
		}
		if filter.Status != "" && job.Status != filter.Status {
			continue
		}
		if filter.Type != "" && job.Type != filter.Type {
			continue
		}
		if filter.ScheduleID != nil && (job.ScheduleID == nil || *job.ScheduleID != *filter.ScheduleID) {
			continue
		}
		out = append(out, job)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, int64(len(out)), nil
}

func (r *memoryJobRepo) get(id uuid.UUID) scheduling.Job {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.jobs[id]
}

func (r *memoryJobRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.jobs)
}

func (r *memoryJobRepo) withStatus(status scheduling.JobStatus) []scheduling.Job {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []scheduling.Job
	for _, job := range r.jobs {
		if job.Status == status {
			out = append(out, job)
		}
	}
	return out
}

type memoryScheduleRepo struct {
	mu        sync.Mutex
	schedules map[uuid.UUID]scheduling.Schedule
}

func newMemoryScheduleRepo() *memoryScheduleRepo {
	return &memoryScheduleRepo{schedules: make(map[uuid.UUID]scheduling.Schedule)}
}

func (r *memoryScheduleRepo) Create(_ context.Context, s *scheduling.Schedule) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.schedules[s.ID] = *s
	return nil
}

func (r *memoryScheduleRepo) SaveRun(_ context.Context, s *scheduling.Schedule) error {
	return r.update(s.ID, func(stored *scheduling.Schedule) {
		stored.LastRun = s.LastRun
		stored.NextRun = s.NextRun
		stored.UpdatedAt = s.UpdatedAt
	})
}

func (r *memoryScheduleRepo) SaveFailures(_ context.Context, s *scheduling.Schedule) error {
	return r.update(s.ID, func(stored *scheduling.Schedule) {
		stored.FailureCount = s.FailureCount
		stored.UpdatedAt = s.UpdatedAt
		if !s.Enabled {
			stored.Enabled = false
		}
	})
}

func (r *memoryScheduleRepo) Disable(_ context.Context, s *scheduling.Schedule) error {
	return r.update(s.ID, func(stored *scheduling.Schedule) {
		stored.Enabled = false
		stored.UpdatedAt = s.UpdatedAt
	})
}

func (r *memoryScheduleRepo) update(id uuid.UUID, fn func(*scheduling.Schedule)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.schedules[id]
	if !ok {
		return scheduling.ErrScheduleNotFound
	}
	fn(&stored)
	r.schedules[id] = stored
	return nil
}

func (r *memoryScheduleRepo) FindByID(_ context.Context, tenantID, id uuid.UUID) (*scheduling.Schedule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.schedules[id]
	if !ok || s.TenantID != tenantID {
		return nil, scheduling.ErrScheduleNotFound
	}
	return &s, nil
}

func (r *memoryScheduleRepo) FindByTenant(_ context.Context, tenantID uuid.UUID) ([]scheduling.Schedule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []scheduling.Schedule
	for _, s := range r.schedules {
		if s.TenantID == tenantID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *memoryScheduleRepo) FindDue(_ context.Context, now time.Time, limit int) ([]scheduling.Schedule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var due []scheduling.Schedule
	for _, s := range r.schedules {
		if s.IsDue(now) {
			due = append(due, s)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].NextRun.Before(due[j].NextRun) })
	if len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (r *memoryScheduleRepo) ExistsFor(_ context.Context, tenantID uuid.UUID, jobType scheduling.JobType, platform integration.PlatformCode) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.schedules {
		if s.TenantID == tenantID && s.Enabled && s.JobType == jobType && s.Platform == platform {
			return true, nil
		}
	}
	return false, nil
}

func (r *memoryScheduleRepo) get(id uuid.UUID) scheduling.Schedule {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.schedules[id]
}

type memoryLogRepo struct {
	mu      sync.Mutex
	entries []scheduling.SyncLogEntry
}

func (r *memoryLogRepo) Append(_ context.Context, entry *scheduling.SyncLogEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, *entry)
	return nil
}

func (r *memoryLogRepo) FindByJob(_ context.Context, tenantID, jobID uuid.UUID) ([]scheduling.SyncLogEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []scheduling.SyncLogEntry
	for _, e := range r.entries {
		if e.TenantID == tenantID && e.JobID == jobID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *memoryLogRepo) FindRecent(_ context.Context, tenantID uuid.UUID, limit int) ([]scheduling.SyncLogEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []scheduling.SyncLogEntry
	for i := len(r.entries) - 1; i >= 0 && len(out) < limit; i-- {
		if r.entries[i].TenantID == tenantID {
			out = append(out, r.entries[i])
		}
	}
	return out, nil
}

func (r *memoryLogRepo) all() []scheduling.SyncLogEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]scheduling.SyncLogEntry(nil), r.entries...)
}

type memoryNotificationRepo struct {
	mu    sync.Mutex
	items []*notification.Notification
}

func (r *memoryNotificationRepo) Create(_ context.Context, n *notification.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, n)
	return nil
}

func (r *memoryNotificationRepo) FindActive(_ context.Context, tenantID uuid.UUID, key string, now time.Time) (*notification.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, n := range r.items {
		if n.TenantID == tenantID && n.DedupKey == key && n.IsActive(now) {
			return n, nil
		}
	}
	return nil, notification.ErrNotificationNotFound
}

func (r *memoryNotificationRepo) ListActive(_ context.Context, tenantID uuid.UUID, now time.Time, limit int) ([]notification.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []notification.Notification
	for _, n := range r.items {
		if n.TenantID == tenantID && n.IsActive(now) && len(out) < limit {
			out = append(out, *n)
		}
	}
	return out, nil
}

func (r *memoryNotificationRepo) all() []notification.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]notification.Notification, 0, len(r.items))
	for _, n := range r.items {
		out = append(out, *n)
	}
	return out
}

func (r *memoryNotificationRepo) ofType(typ notification.Type) []notification.Notification {
	var out []notification.Notification
	for _, n := range r.all() {
		if n.Type == typ {
			out = append(out, n)
		}
	}
	return out
}

// hookedScheduleRepo runs a hook after a read returns, standing in for a
// concurrent writer such as an HTTP DisableSchedule call
type hookedScheduleRepo struct {
	*memoryScheduleRepo
	afterFindDue  func()
	afterFindByID func()
}

func (r *hookedScheduleRepo) FindDue(ctx context.Context, now time.Time, limit int) ([]scheduling.Schedule, error) {
	due, err := r.memoryScheduleRepo.FindDue(ctx, now, limit)
	if r.afterFindDue != nil {
		r.afterFindDue()
	}
	return due, err
}

func (r *hookedScheduleRepo) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*scheduling.Schedule, error) {
	s, err := r.memoryScheduleRepo.FindByID(ctx, tenantID, id)
	if r.afterFindByID != nil {
		r.afterFindByID()
	}
	return s, err
}

type memoryOrderSnapshots struct {
	mu     sync.Mutex
	orders map[string]integration.OrderSnapshot
}

func newMemoryOrderSnapshots() *memoryOrderSnapshots {
	return &memoryOrderSnapshots{orders: make(map[string]integration.OrderSnapshot)}
}

func orderSnapshotKey(tenantID uuid.UUID, platform integration.PlatformCode, id string) string {
	return tenantID.String() + "|" + string(platform) + "|" + id
}

func (r *memoryOrderSnapshots) ListByPlatform(_ context.Context, tenantID uuid.UUID, platform integration.PlatformCode) ([]integration.OrderSnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []integration.OrderSnapshot
	for _, o := range r.orders {
		if o.TenantID == tenantID && o.Platform == platform {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PlatformOrderID < out[j].PlatformOrderID })
	return out, nil
}

func (r *memoryOrderSnapshots) ListPendingUpdates(ctx context.Context, tenantID uuid.UUID, platform integration.PlatformCode) ([]integration.OrderSnapshot, error) {
	all, _ := r.ListByPlatform(ctx, tenantID, platform)
	var out []integration.OrderSnapshot
	for _, o := range all {
		if o.PendingUpdate != nil {
			out = append(out, o)
		}
	}
	return out, nil
}

// Upsert keeps the queued pending update, like the database upsert does
func (r *memoryOrderSnapshots) Upsert(_ context.Context, snapshots []integration.OrderSnapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range snapshots {
		key := orderSnapshotKey(s.TenantID, s.Platform, s.PlatformOrderID)
		if prev, ok := r.orders[key]; ok {
			s.PendingUpdate = prev.PendingUpdate
		}
		r.orders[key] = s
	}
	return nil
}

func (r *memoryOrderSnapshots) ClearPendingUpdate(_ context.Context, tenantID uuid.UUID, platform integration.PlatformCode, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := orderSnapshotKey(tenantID, platform, id)
	o, ok := r.orders[key]
	if !ok {
		return nil
	}
	o.PendingUpdate = nil
	r.orders[key] = o
	return nil
}

func (r *memoryOrderSnapshots) put(o integration.OrderSnapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders[orderSnapshotKey(o.TenantID, o.Platform, o.PlatformOrderID)] = o
}

func (r *memoryOrderSnapshots) get(tenantID uuid.UUID, platform integration.PlatformCode, id string) (integration.OrderSnapshot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[orderSnapshotKey(tenantID, platform, id)]
	return o, ok
}

type memoryProductSnapshots struct {
	mu       sync.Mutex
	products map[string]integration.ProductSnapshot
}

func newMemoryProductSnapshots() *memoryProductSnapshots {
	return &memoryProductSnapshots{products: make(map[string]integration.ProductSnapshot)}
}

func productSnapshotKey(tenantID uuid.UUID, platform integration.PlatformCode, key string) string {
	return tenantID.String() + "|" + string(platform) + "|" + key
}

func (r *memoryProductSnapshots) ListByPlatform(_ context.Context, tenantID uuid.UUID, platform integration.PlatformCode) ([]integration.ProductSnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []integration.ProductSnapshot
	for _, p := range r.products {
		if p.TenantID == tenantID && p.Platform == platform {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out, nil
}

// Upsert keeps the local quantity and threshold, like the database upsert does
func (r *memoryProductSnapshots) Upsert(_ context.Context, snapshots []integration.ProductSnapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range snapshots {
		key := productSnapshotKey(s.TenantID, s.Platform, s.Key())
		if prev, ok := r.products[key]; ok {
			s.LocalQuantity = prev.LocalQuantity
			s.LowStockThreshold = prev.LowStockThreshold
		}
		r.products[key] = s
	}
	return nil
}

func (r *memoryProductSnapshots) UpdateStockQuantity(_ context.Context, tenantID uuid.UUID, platform integration.PlatformCode, ref integration.ProductRef, quantity int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := productSnapshotKey(tenantID, platform, integration.ProductKey(ref.PlatformProductID, ref.PlatformSkuID))
	p, ok := r.products[key]
	if !ok {
		return nil
	}
	p.StockQuantity = quantity
	r.products[key] = p
	return nil
}

func (r *memoryProductSnapshots) put(p integration.ProductSnapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.products[productSnapshotKey(p.TenantID, p.Platform, p.Key())] = p
}

func (r *memoryProductSnapshots) get(tenantID uuid.UUID, platform integration.PlatformCode, key string) (integration.ProductSnapshot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[productSnapshotKey(tenantID, platform, key)]
	return p, ok
}

type memoryCredentials struct {
	mu    sync.Mutex
	creds map[string]integration.Credential
}

func newMemoryCredentials() *memoryCredentials {
	return &memoryCredentials{creds: make(map[string]integration.Credential)}
}

func (s *memoryCredentials) GetCredential(_ context.Context, tenantID uuid.UUID, platform integration.PlatformCode) (*integration.Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.creds[tenantID.String()+"|"+string(platform)]
	if !ok {
		return nil, integration.ErrCredentialNotFound
	}
	return &c, nil
}

func (s *memoryCredentials) put(c integration.Credential) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds[c.TenantID.String()+"|"+string(c.Platform)] = c
}

// ---------------------------------------------------------------------------
// Fake platform adapter
// ---------------------------------------------------------------------------

// fakePlatform answers every port call with a single metered request
type fakePlatform struct {
	code integration.PlatformCode

	mu          sync.Mutex
	orders      []integration.PlatformOrder
	products    []integration.PlatformProduct
	fetchErr    error
	pushErrs    map[string]error
	updateErrs  map[string]error
	panicFetch  bool
	lastSince   time.Time
	pushed      map[string]int
	updates     []integration.OrderStatusUpdate
	fetchCalls  atomic.Int32
	activePush  atomic.Int32
	maxParallel atomic.Int32
}

func newFakePlatform(code integration.PlatformCode) *fakePlatform {
	return &fakePlatform{
		code:       code,
		pushErrs:   make(map[string]error),
		updateErrs: make(map[string]error),
		pushed:     make(map[string]int),
	}
}

func (p *fakePlatform) PlatformCode() integration.PlatformCode {
	return p.code
}

func (p *fakePlatform) FetchOrders(ctx context.Context, _ *integration.Credential, since time.Time) ([]integration.PlatformOrder, error) {
	done, err := integration.MeterRequest(ctx, p.code)
	if err != nil {
		return nil, err
	}
	defer done()

	p.fetchCalls.Add(1)
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.panicFetch {
		panic("adapter exploded")
	}
	p.lastSince = since
	if p.fetchErr != nil {
		return nil, p.fetchErr
	}
	return append([]integration.PlatformOrder(nil), p.orders...), nil
}

func (p *fakePlatform) FetchProducts(ctx context.Context, _ *integration.Credential) ([]integration.PlatformProduct, error) {
	done, err := integration.MeterRequest(ctx, p.code)
	if err != nil {
		return nil, err
	}
	defer done()

	p.fetchCalls.Add(1)
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.panicFetch {
		panic("adapter exploded")
	}
	if p.fetchErr != nil {
		return nil, p.fetchErr
	}
	return append([]integration.PlatformProduct(nil), p.products...), nil
}

func (p *fakePlatform) PushInventory(ctx context.Context, _ *integration.Credential, ref integration.ProductRef, quantity int) error {
	done, err := integration.MeterRequest(ctx, p.code)
	if err != nil {
		return err
	}
	defer done()

	active := p.activePush.Add(1)
	defer p.activePush.Add(-1)
	for {
		cur := p.maxParallel.Load()
		if active <= cur || p.maxParallel.CompareAndSwap(cur, active) {
			break
		}
	}

	key := integration.ProductKey(ref.PlatformProductID, ref.PlatformSkuID)
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.pushErrs[key]; err != nil {
		return err
	}
	p.pushed[key] = quantity
	return nil
}

func (p *fakePlatform) UpdateOrderStatus(ctx context.Context, _ *integration.Credential, update integration.OrderStatusUpdate) error {
	done, err := integration.MeterRequest(ctx, p.code)
	if err != nil {
		return err
	}
	defer done()

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.updateErrs[update.PlatformOrderID]; err != nil {
		return err
	}
	p.updates = append(p.updates, update)
	return nil
}

func (p *fakePlatform) setOrders(orders ...integration.PlatformOrder) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.orders = orders
}

func (p *fakePlatform) setProducts(products ...integration.PlatformProduct) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.products = products
}

func (p *fakePlatform) setFetchErr(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fetchErr = err
}

func (p *fakePlatform) pushedCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pushed)
}

func (p *fakePlatform) updateCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.updates)
}

// ---------------------------------------------------------------------------
// Harness
// ---------------------------------------------------------------------------

// harness wires the executor, retry coordinator and scheduler over in-memory
// collaborators, the real rate limiter and the real alert emitter.
type harness struct {
	t        *testing.T
	ctx      context.Context
	clock    *testClock
	tenantID uuid.UUID
	config   Config

	jobs          *memoryJobRepo
	schedules     *memoryScheduleRepo
	logs          *memoryLogRepo
	notifications *memoryNotificationRepo
	orders        *memoryOrderSnapshots
	products      *memoryProductSnapshots
	credentials   *memoryCredentials
	shopee        *fakePlatform
	tiktok        *fakePlatform

	limiter   *ratelimit.Limiter
	emitter   *alert.Emitter
	executor  *Executor
	retries   *RetryCoordinator
	scheduler *JobScheduler
	pauses    atomic.Int32
}

type harnessOption func(*harnessSettings)

type harnessSettings struct {
	config  Config
	limiter ratelimit.Config
}

func withConfig(fn func(*Config)) harnessOption {
	return func(s *harnessSettings) { fn(&s.config) }
}

func withLimiter(fn func(*ratelimit.Config)) harnessOption {
	return func(s *harnessSettings) { fn(&s.limiter) }
}

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()

	settings := harnessSettings{config: DefaultConfig(), limiter: ratelimit.DefaultConfig()}
	for _, opt := range opts {
		opt(&settings)
	}

	logger := newTestLogger()
	h := &harness{
		t:             t,
		ctx:           context.Background(),
		clock:         newTestClock(),
		tenantID:      uuid.New(),
		config:        settings.config,
		jobs:          newMemoryJobRepo(),
		schedules:     newMemoryScheduleRepo(),
		logs:          &memoryLogRepo{},
		notifications: &memoryNotificationRepo{},
		orders:        newMemoryOrderSnapshots(),
		products:      newMemoryProductSnapshots(),
		credentials:   newMemoryCredentials(),
		shopee:        newFakePlatform(integration.PlatformCodeShopee),
		tiktok:        newFakePlatform(integration.PlatformCodeTikTokShop),
	}
	for _, code := range []integration.PlatformCode{integration.PlatformCodeShopee, integration.PlatformCodeTikTokShop} {
		h.credentials.put(integration.Credential{TenantID: h.tenantID, Platform: code, ShopID: "shop-1", AccessToken: "token"})
	}

	var err error
	h.limiter, err = ratelimit.NewLimiter(ratelimit.NewMemoryStore(), settings.limiter, logger, ratelimit.WithClock(h.clock.Now))
	require.NoError(t, err)

	h.emitter, err = alert.NewEmitter(h.notifications, alert.DefaultConfig(), logger, alert.WithClock(h.clock.Now))
	require.NoError(t, err)

	h.executor, err = NewExecutor(settings.config, ExecutorDeps{
		Jobs:        h.jobs,
		Logs:        h.logs,
		Platforms:   ecommerce.NewRegistry(h.shopee, h.tiktok),
		Credentials: h.credentials,
		Orders:      h.orders,
		Products:    h.products,
		Limiter:     h.limiter,
		Engine:      reconciliation.NewEngine(reconciliation.Options{DefaultLowStockThreshold: 10}),
		Emitter:     h.emitter,
	}, logger,
		WithExecutorClock(h.clock.Now),
		WithChunkPauser(func(context.Context, time.Duration) error {
			h.pauses.Add(1)
			return nil
		}),
	)
	require.NoError(t, err)

	h.retries, err = NewRetryCoordinator(settings.config, h.jobs, h.schedules, h.emitter, h.limiter.Window(), logger,
		WithRetryClock(h.clock.Now))
	require.NoError(t, err)

	h.scheduler, err = NewJobScheduler(settings.config, h.schedules, h.jobs, h.executor, h.retries, logger,
		WithSchedulerClock(h.clock.Now))
	require.NoError(t, err)

	return h
}

// newJob stores a pending job due now
func (h *harness) newJob(jobType scheduling.JobType, platform integration.PlatformCode, params scheduling.JobParameters) *scheduling.Job {
	h.t.Helper()
	job := scheduling.NewJob(h.tenantID, jobType, platform, params, scheduling.PriorityNormal, h.config.MaxRetries, h.clock.Now())
	require.NoError(h.t, job.Validate())
	require.NoError(h.t, h.jobs.Create(h.ctx, job))
	return job
}

// execute runs a fresh job and returns the stored result
func (h *harness) execute(jobType scheduling.JobType, platform integration.PlatformCode, params scheduling.JobParameters) *ExecutionOutcome {
	h.t.Helper()
	outcome, err := h.executor.Execute(h.ctx, h.newJob(jobType, platform, params))
	require.NoError(h.t, err)
	require.True(h.t, outcome.Claimed)
	return outcome
}

func (h *harness) newSchedule(spec scheduling.ScheduleSpec) *scheduling.Schedule {
	h.t.Helper()
	s, err := scheduling.NewSchedule(h.tenantID, spec, h.clock.Now())
	require.NoError(h.t, err)
	require.NoError(h.t, h.schedules.Create(h.ctx, s))
	return s
}

// denyLimiter refuses every call
type denyLimiter struct{}

func (denyLimiter) Admit(context.Context, uuid.UUID, integration.PlatformCode) bool { return false }
func (denyLimiter) Record(context.Context, uuid.UUID, integration.PlatformCode)     {}
func (denyLimiter) Window() time.Duration                                           { return time.Minute }
