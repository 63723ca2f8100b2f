//go:build !integration

package usecase_test

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"track-billing/internal/domain/model"
	"track-billing/internal/domain/ports/adapter"
	"track-billing/internal/infra/adapters/catalog"
	"track-billing/internal/infra/adapters/payment"
	"track-billing/internal/infra/db/memory"
	"track-billing/internal/usecase"
)

// newTestLogger creates a silent zerolog.Logger for use in tests.
func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

// --- Clock

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func newTestClock() *testClock {
	return &testClock{t: time.Date(2026, 10, 18, 10, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// --- Audit

type MockAuditSink struct {
	mu          sync.Mutex
	Events      []adapter.AuditEvent
	PublishFunc func(ctx context.Context, ev adapter.AuditEvent) error
}

func (m *MockAuditSink) Publish(ctx context.Context, ev adapter.AuditEvent) error {
	m.mu.Lock()
	m.Events = append(m.Events, ev)
	m.mu.Unlock()
	if m.PublishFunc != nil {
		return m.PublishFunc(ctx, ev)
	}
	return nil
}

func (m *MockAuditSink) Count(t adapter.AuditEventType) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, ev := range m.Events {
		if ev.Type == t {
			n++
		}
	}
	return n
}

// --- Rate limiter

type MockRateLimiter struct {
	mu        sync.Mutex
	Keys      []string
	AllowFunc func(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

func (m *MockRateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	m.mu.Lock()
	m.Keys = append(m.Keys, key)
	m.mu.Unlock()
	if m.AllowFunc != nil {
		return m.AllowFunc(ctx, key, limit, window)
	}
	return true, nil
}

// --- Repositories with injectable failures

// MockPaymentRepo wraps the memory store; CreateFunc, when set, replaces Create.
type MockPaymentRepo struct {
	*memory.PaymentRepo
	CreateFunc func(ctx context.Context, p *model.Payment) error
}

func (m *MockPaymentRepo) Create(ctx context.Context, p *model.Payment) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, p)
	}
	return m.PaymentRepo.Create(ctx, p)
}

// MockSubscriptionRepo wraps the memory store. Each hook fires once, ahead
// of the call it names, so tests can slip a concurrent writer in; CreateErr
// fails the next insert.
type MockSubscriptionRepo struct {
	*memory.SubscriptionRepo
	BeforeCreate  func(ctx context.Context, s *model.Subscription)
	BeforeUpdate  func(ctx context.Context, s *model.Subscription)
	AfterFindByID func(ctx context.Context, s *model.Subscription)
	CreateErr     error
}

func (m *MockSubscriptionRepo) Create(ctx context.Context, s *model.Subscription) error {
	if m.BeforeCreate != nil {
		hook := m.BeforeCreate
		m.BeforeCreate = nil
		hook(ctx, s)
	}
	if m.CreateErr != nil {
		err := m.CreateErr
		m.CreateErr = nil
		return err
	}
	return m.SubscriptionRepo.Create(ctx, s)
}

func (m *MockSubscriptionRepo) Update(ctx context.Context, s *model.Subscription) error {
	if m.BeforeUpdate != nil {
		hook := m.BeforeUpdate
		m.BeforeUpdate = nil
		hook(ctx, s)
	}
	return m.SubscriptionRepo.Update(ctx, s)
}

func (m *MockSubscriptionRepo) FindByID(ctx context.Context, id string) (*model.Subscription, error) {
	s, err := m.SubscriptionRepo.FindByID(ctx, id)
	if err == nil && m.AfterFindByID != nil {
		hook := m.AfterFindByID
		m.AfterFindByID = nil
		hook(ctx, s)
	}
	return s, err
}

// fixedOrderGateway hands out the same order id on every call, like a
// gateway answering a retried request.
type fixedOrderGateway struct {
	*payment.NoopPaymentGateway
	id string
}

func (g *fixedOrderGateway) CreateOrder(ctx context.Context, params adapter.OrderParams) (adapter.Order, error) {
	return adapter.Order{ID: g.id, Amount: params.Amount, Currency: params.Currency, Status: "created"}, nil
}

// --- Engine harness

const testSecret = "test-secret"

type engine struct {
	clock    *testClock
	payments *MockPaymentRepo
	subs     *MockSubscriptionRepo
	usage    *memory.UsageRepo
	gateway  *payment.NoopPaymentGateway
	catalog  *catalog.StaticCatalog
	audit    *MockAuditSink
	limiter  *MockRateLimiter

	orders   usecase.OrderUseCase
	verifier usecase.PaymentUseCase
	resolver usecase.SubscriptionUseCase
	access   usecase.AccessUseCase
	meter    usecase.UsageUseCase
}

type engineOption func(*engineOptions)

type engineOptions struct {
	lenient    bool
	newReceipt func() string
	gateway    adapter.PaymentGateway
}

func withLenient(v bool) engineOption { return func(o *engineOptions) { o.lenient = v } }

func withReceipt(r string) engineOption {
	return func(o *engineOptions) { o.newReceipt = func() string { return r } }
}

func withGateway(g adapter.PaymentGateway) engineOption {
	return func(o *engineOptions) { o.gateway = g }
}

func newEngine(t *testing.T, opts ...engineOption) *engine {
	t.Helper()
	o := engineOptions{lenient: true}
	for _, opt := range opts {
		opt(&o)
	}

	e := &engine{
		clock:    newTestClock(),
		payments: &MockPaymentRepo{PaymentRepo: memory.NewPaymentRepo()},
		subs:     &MockSubscriptionRepo{SubscriptionRepo: memory.NewSubscriptionRepo()},
		usage:    memory.NewUsageRepo(),
		gateway:  payment.NewNoopPaymentGateway(testSecret),
		catalog: catalog.NewStaticCatalog(map[string][]string{
			"track-a": {"a1", "a2", "a3", "a4", "a5"},
			"track-b": {"b1", "b2", "b3"},
		}),
		audit:   &MockAuditSink{},
		limiter: &MockRateLimiter{},
	}
	var gw adapter.PaymentGateway = e.gateway
	if o.gateway != nil {
		gw = o.gateway
	}
	logger := newTestLogger()

	subUC := usecase.NewSubscriptionUseCase(e.subs, e.payments, e.usage, e.audit,
		usecase.SubscriptionConfig{LenientFallback: o.lenient}, logger).WithClock(e.clock.Now)
	e.resolver = subUC
	e.orders = usecase.NewOrderUseCase(e.payments, gw, e.audit, e.limiter, usecase.OrderConfig{
		Currency:     "INR",
		OrphanWindow: 15 * time.Minute,
		OrderLimit:   5,
		OrderWindow:  time.Minute,
		NewReceipt:   o.newReceipt,
	}, logger).WithClock(e.clock.Now)
	e.verifier = usecase.NewPaymentUseCase(e.payments, gw, subUC, e.audit, logger).WithClock(e.clock.Now)
	e.access = usecase.NewAccessUseCase(e.subs, e.catalog, logger).WithClock(e.clock.Now)
	e.meter = usecase.NewUsageUseCase(e.subs, e.usage, logger).WithClock(e.clock.Now)
	return e
}

func strPtr(s string) *string { return &s }

// buy runs a full checkout for userID: order, signed callback, resolution.
// An empty track buys track access to be linked later.
func (e *engine) buy(t *testing.T, userID string, tier model.Tier, track string) (*model.Payment, *model.Subscription) {
	t.Helper()
	ctx := context.Background()
	req := usecase.OrderRequest{UserID: userID, Tier: tier, Purpose: model.PurposeTrackAccess}
	if track != "" {
		req.TrackID = strPtr(track)
	}
	res, err := e.orders.CreateOrder(ctx, req)
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	gatewayPaymentID := "pay_" + res.PaymentID[:8]
	p, err := e.verifier.Verify(ctx, usecase.VerifyRequest{
		UserID:           userID,
		GatewayOrderID:   res.GatewayOrderID,
		GatewayPaymentID: gatewayPaymentID,
		Signature:        e.gateway.Sign(res.GatewayOrderID, gatewayPaymentID),
	})
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	s, err := e.subs.FindByPaymentID(ctx, p.ID)
	if err != nil {
		t.Fatalf("subscription for payment %s: %v", p.ID, err)
	}
	return p, s
}

// seedSubscription stores an active window directly, bypassing payments.
func (e *engine) seedSubscription(t *testing.T, id, userID, track string, tier model.Tier, startAt, expiresAt time.Time) *model.Subscription {
	t.Helper()
	limits := tier.Limits()
	s := &model.Subscription{
		ID:                     id,
		UserID:                 userID,
		Tier:                   tier,
		PlanAmount:             tier.Price(),
		StartAt:                startAt,
		ExpiresAt:              expiresAt,
		Active:                 true,
		PaymentID:              "seed-" + id,
		DailyChatLimit:         limits.DailyChat,
		MonthlyGenerationLimit: limits.MonthlyGeneration,
		CreatedAt:              startAt,
		UpdatedAt:              startAt,
	}
	if track != "" {
		s.TrackID = strPtr(track)
	}
	if err := e.subs.SubscriptionRepo.Create(context.Background(), s); err != nil {
		t.Fatalf("seed subscription: %v", err)
	}
	return s
}

func (e *engine) subscriptions() []*model.Subscription { return e.subs.All() }
