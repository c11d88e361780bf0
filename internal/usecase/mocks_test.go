// File: internal/usecase/mocks_test.go
package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"telegram-vpn-subscription/internal/domain"
	"telegram-vpn-subscription/internal/domain/model"
	"telegram-vpn-subscription/internal/domain/ports/adapter"
	"telegram-vpn-subscription/internal/domain/ports/repository"
)

func newTestLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

// memPaymentRepo is a small in-memory implementation used by unit tests.
type memPaymentRepo struct {
	mu     sync.Mutex
	nextID int64
	store  map[int64]*model.Payment

	createErr error // used by tests to simulate insert failures
}

func newMemPaymentRepo() *memPaymentRepo {
	return &memPaymentRepo{store: make(map[int64]*model.Payment)}
}

func clonePayment(p *model.Payment) *model.Payment {
	cp := *p
	if p.ProviderOrder != nil {
		o := *p.ProviderOrder
		cp.ProviderOrder = &o
	}
	return &cp
}

func (m *memPaymentRepo) Create(ctx context.Context, tx repository.Tx, p *model.Payment) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	p.ID = m.nextID
	m.store[p.ID] = clonePayment(p)
	return nil
}

func (m *memPaymentRepo) FindByID(ctx context.Context, tx repository.Tx, id int64) (*model.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return clonePayment(p), nil
}

func (m *memPaymentRepo) FindByOrderID(ctx context.Context, tx repository.Tx, provider, orderID string) (*model.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.store {
		if p.Provider == provider && p.ProviderOrder != nil && p.ProviderOrder.OrderID == orderID {
			return clonePayment(p), nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memPaymentRepo) SetProviderOrder(ctx context.Context, tx repository.Tx, id int64, order *model.ProviderOrder) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.store[id]
	if !ok {
		return false, domain.ErrNotFound
	}
	if p.Status != model.PaymentStatusPending || p.ProviderOrder != nil {
		return false, nil
	}
	o := *order
	p.ProviderOrder = &o
	p.Status = model.PaymentStatusRegistered
	p.UpdatedAt = time.Now()
	return true, nil
}

func (m *memPaymentRepo) ApplyTerminalStatus(ctx context.Context, tx repository.Tx, id int64, status model.PaymentStatus, paidAt *time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.store[id]
	if !ok {
		return false, domain.ErrNotFound
	}
	if p.Status != model.PaymentStatusRegistered {
		return false, nil
	}
	p.Status = status
	p.PaidAt = paidAt
	p.UpdatedAt = time.Now()
	return true, nil
}

func (m *memPaymentRepo) RecordOutcome(ctx context.Context, tx repository.Tx, id int64, providerState string, raw []byte, signatureValid bool, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.store[id]
	if !ok {
		return domain.ErrNotFound
	}
	if p.ProviderOrder == nil {
		p.ProviderOrder = &model.ProviderOrder{}
	}
	p.ProviderOrder.ProviderState = providerState
	p.ProviderOrder.LastRawOutcome = raw
	p.ProviderOrder.SignatureValid = signatureValid
	p.ProviderOrder.LastOutcomeAt = &at
	return nil
}

func (m *memPaymentRepo) ListRegisteredOlderThan(ctx context.Context, tx repository.Tx, olderThan time.Time, limit int) ([]*model.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Payment
	for _, p := range m.store {
		if p.Status == model.PaymentStatusRegistered && p.CreatedAt.Before(olderThan) {
			out = append(out, clonePayment(p))
		}
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (m *memPaymentRepo) SumSucceededSince(ctx context.Context, tx repository.Tx, t time.Time) (map[string]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]int64)
	for _, p := range m.store {
		if p.Status == model.PaymentStatusSucceeded && p.PaidAt != nil && !p.PaidAt.Before(t) {
			out[p.Currency] += p.Amount
		}
	}
	return out, nil
}

// memActivationRepo enforces the one-row-per-payment gate like the real table.
type memActivationRepo struct {
	mu    sync.Mutex
	store map[int64]*repository.Activation
}

func newMemActivationRepo() *memActivationRepo {
	return &memActivationRepo{store: make(map[int64]*repository.Activation)}
}

func (m *memActivationRepo) Create(ctx context.Context, tx repository.Tx, a *repository.Activation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.store[a.PaymentID]; ok {
		return domain.ErrAlreadyExists
	}
	cp := *a
	m.store[a.PaymentID] = &cp
	return nil
}

func (m *memActivationRepo) FindByPaymentID(ctx context.Context, tx repository.Tx, paymentID int64) (*repository.Activation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.store[paymentID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *memActivationRepo) MarkStep(ctx context.Context, tx repository.Tx, paymentID int64, step repository.ActivationStep, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.store[paymentID]
	if !ok {
		return domain.ErrNotFound
	}
	switch step {
	case repository.StepPanelExtended:
		a.PanelExtendedAt = &at
	case repository.StepReferral:
		a.ReferralAt = &at
	case repository.StepNotified:
		a.NotifiedAt = &at
	default:
		return domain.ErrInvalidArgument
	}
	return nil
}

func (m *memActivationRepo) ListIncomplete(ctx context.Context, tx repository.Tx, limit int) ([]*repository.Activation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*repository.Activation
	for _, a := range m.store {
		if !a.Done() {
			cp := *a
			out = append(out, &cp)
		}
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// memSessionRepo stores sandbox sessions by admin id.
type memSessionRepo struct {
	mu    sync.Mutex
	store map[int64]*repository.SandboxSession
}

func newMemSessionRepo() *memSessionRepo {
	return &memSessionRepo{store: make(map[int64]*repository.SandboxSession)}
}

func (m *memSessionRepo) Put(ctx context.Context, s *repository.SandboxSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.store[s.AdminID] = &cp
	return nil
}

func (m *memSessionRepo) Get(ctx context.Context, adminID int64) (*repository.SandboxSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.store[adminID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *memSessionRepo) Clear(ctx context.Context, adminID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.store, adminID)
	return nil
}

// mockTxManager runs the callback without a real transaction.
type mockTxManager struct{}

func (mockTxManager) WithTx(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	return fn(ctx, nil)
}

// mockLocker grants every lock unless denyErr is set.
type mockLocker struct {
	mu        sync.Mutex
	denyErr   error
	lockCalls int
}

func (m *mockLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lockCalls++
	if m.denyErr != nil {
		return "", m.denyErr
	}
	return "tok", nil
}

func (m *mockLocker) Unlock(ctx context.Context, key, token string) error { return nil }

// mockGateway is a configurable ProviderGateway. Zero value behaves like a
// two-step provider that accepts everything.
type mockGateway struct {
	name string

	registerFunc func(ctx context.Context, reference, amount int64, currency, description string) (*adapter.RegisterResult, error)
	invoiceFunc  func(ctx context.Context, reference, amount int64, currency, description string) (*adapter.InvoiceResult, error)
	linkFunc     func(ctx context.Context, orderID, method string) (string, error)
	triggerFunc  func(ctx context.Context, orderID string, outcome adapter.SandboxOutcome) error

	registerCalls int
	invoiceCalls  int
	triggerCalls  int
}

func (g *mockGateway) Name() string {
	if g.name == "" {
		return "mockpay"
	}
	return g.name
}

func (g *mockGateway) RegisterOrder(ctx context.Context, reference, amount int64, currency, description string) (*adapter.RegisterResult, error) {
	g.registerCalls++
	if g.registerFunc != nil {
		return g.registerFunc(ctx, reference, amount, currency, description)
	}
	return &adapter.RegisterResult{OrderID: fmt.Sprintf("ord-%d", reference), ProviderState: "REGISTERED"}, nil
}

func (g *mockGateway) CreatePaymentLink(ctx context.Context, orderID, method string) (string, error) {
	if g.linkFunc != nil {
		return g.linkFunc(ctx, orderID, method)
	}
	return "https://pay.test/" + orderID, nil
}

func (g *mockGateway) CreateInvoice(ctx context.Context, reference, amount int64, currency, description string) (*adapter.InvoiceResult, error) {
	g.invoiceCalls++
	if g.invoiceFunc != nil {
		return g.invoiceFunc(ctx, reference, amount, currency, description)
	}
	return nil, domain.ErrInvalidArgument
}

func (g *mockGateway) TriggerSandboxOutcome(ctx context.Context, orderID string, outcome adapter.SandboxOutcome) error {
	g.triggerCalls++
	if g.triggerFunc != nil {
		return g.triggerFunc(ctx, orderID, outcome)
	}
	return nil
}

func (g *mockGateway) VerifySignature(body []byte, tag string) bool { return true }

func (g *mockGateway) NormalizeOutcome(body []byte) (*model.PaymentOutcome, error) {
	return nil, domain.ErrMalformedPayload
}

// mockPanel records calls against the external subscription panel.
type mockPanel struct {
	mu          sync.Mutex
	extendErr   error
	extendCalls int
	createCalls int
	deleted     []string
}

func (m *mockPanel) CreateUser(ctx context.Context, username string, expireDays int, trafficLimit int64) (*adapter.PanelUser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createCalls++
	return &adapter.PanelUser{UUID: "panel-" + username, Username: username, Status: "active"}, nil
}

func (m *mockPanel) GetUserByUUID(ctx context.Context, uuid string) (*adapter.PanelUser, error) {
	return &adapter.PanelUser{UUID: uuid, Status: "active"}, nil
}

func (m *mockPanel) DeleteUser(ctx context.Context, uuid string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, uuid)
	return nil
}

func (m *mockPanel) ExtendSubscription(ctx context.Context, userID int64, months int, provider string) (*adapter.PanelUser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.extendErr != nil {
		return nil, m.extendErr
	}
	m.extendCalls++
	return &adapter.PanelUser{
		UUID:     fmt.Sprintf("panel-%d", userID),
		Status:   "active",
		ExpireAt: time.Now().AddDate(0, months, 0),
		SubURL:   "https://panel.test/sub/abc",
	}, nil
}

// mockNotifier captures the last success notification.
type mockNotifier struct {
	mu         sync.Mutex
	notifyErr  error
	calls      int
	lastUserID int64
	lastSubURL string
}

func (m *mockNotifier) NotifyPaymentSucceeded(ctx context.Context, userID int64, months int, provider, subURL string, expireAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.notifyErr != nil {
		return m.notifyErr
	}
	m.calls++
	m.lastUserID = userID
	m.lastSubURL = subURL
	return nil
}

// mockReferral counts bonus applications.
type mockReferral struct {
	mu       sync.Mutex
	applyErr error
	days     int
	calls    int
}

func (m *mockReferral) ApplyForPayment(ctx context.Context, userID, paymentID int64, months int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.applyErr != nil {
		return 0, m.applyErr
	}
	m.calls++
	return m.days, nil
}

// mockActivator records which payments were handed to the coordinator.
type mockActivator struct {
	mu     sync.Mutex
	runErr error
	runIDs []int64
}

func (m *mockActivator) Run(ctx context.Context, paymentID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runIDs = append(m.runIDs, paymentID)
	return m.runErr
}
