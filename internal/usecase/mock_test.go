//go:build !integration

package usecase_test

import (
	"context"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"jobboard-premium/internal/domain"
	"jobboard-premium/internal/domain/model"
	"jobboard-premium/internal/domain/ports/adapter"
	"jobboard-premium/internal/domain/ports/repository"
)

// -----------------------------
// Utilities: tiny helpers
// -----------------------------

func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

func clonePayment(p *model.Payment) *model.Payment {
	cp := *p
	cp.Metadata = make(map[string]string, len(p.Metadata))
	for k, v := range p.Metadata {
		cp.Metadata[k] = v
	}
	return &cp
}

// =============================
// Repositories
// =============================

// MemPaymentRepo is an in-memory ledger with the same conditional-update
// semantics as the Postgres repository: the status check and the write
// happen under one lock, like a single UPDATE ... WHERE status='pending'.
type MemPaymentRepo struct {
	mu    sync.Mutex
	byID  map[string]*model.Payment
	byRef map[string]string
	clock func() time.Time

	CreateErr     error
	TransitionErr error
	FindErr       error

	// Users, when set, makes Create reject rows for unknown users like the
	// payments.user_id foreign key does.
	Users *MemUserRepo

	Transitions int // successful transitions, for assertions
}

var _ repository.PaymentRepository = (*MemPaymentRepo)(nil)

func NewMemPaymentRepo() *MemPaymentRepo {
	return &MemPaymentRepo{
		byID:  map[string]*model.Payment{},
		byRef: map[string]string{},
		clock: time.Now,
	}
}

func (m *MemPaymentRepo) Seed(p *model.Payment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[p.ID] = clonePayment(p)
	m.byRef[p.ProviderTransactionID] = p.ID
}

func (m *MemPaymentRepo) Get(id string) *model.Payment {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.byID[id]; ok {
		return clonePayment(p)
	}
	return nil
}

func (m *MemPaymentRepo) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byID)
}

func (m *MemPaymentRepo) Create(ctx context.Context, tx repository.Tx, p *model.Payment) error {
	if m.CreateErr != nil {
		return m.CreateErr
	}
	if m.Users != nil && m.Users.Level(p.UserID) == "" {
		return domain.ErrOperationFailed
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, dup := m.byRef[p.ProviderTransactionID]; dup {
		return domain.ErrAlreadyExists
	}
	m.byID[p.ID] = clonePayment(p)
	m.byRef[p.ProviderTransactionID] = p.ID
	return nil
}

func (m *MemPaymentRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Payment, error) {
	if m.FindErr != nil {
		return nil, m.FindErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return clonePayment(p), nil
}

func (m *MemPaymentRepo) FindByReference(ctx context.Context, tx repository.Tx, reference string) (*model.Payment, error) {
	if m.FindErr != nil {
		return nil, m.FindErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byRef[reference]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return clonePayment(m.byID[id]), nil
}

func (m *MemPaymentRepo) TransitionIfPending(ctx context.Context, tx repository.Tx, reference string, status model.PaymentStatus, ownerID string) (bool, error) {
	if m.TransitionErr != nil {
		return false, m.TransitionErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byRef[reference]
	if !ok {
		return false, nil
	}
	p := m.byID[id]
	if p.Status != model.PaymentStatusPending {
		return false, nil
	}
	if ownerID != "" && p.UserID != ownerID {
		return false, nil
	}
	p.Status = status
	p.UpdatedAt = m.clock()
	m.Transitions++
	return true, nil
}

func (m *MemPaymentRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string, limit int) ([]*model.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Payment
	for _, p := range m.byID {
		if p.UserID == userID {
			out = append(out, clonePayment(p))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemPaymentRepo) LatestSucceeded(ctx context.Context, tx repository.Tx, userID string) (*model.Payment, error) {
	all, _ := m.ListByUser(ctx, tx, userID, 1<<30)
	for _, p := range all {
		if p.Status == model.PaymentStatusSucceeded {
			return p, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MemPaymentRepo) CountByStatus(ctx context.Context, tx repository.Tx, userID string) (map[model.PaymentStatus]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[model.PaymentStatus]int64{}
	for _, p := range m.byID {
		if p.UserID == userID {
			out[p.Status]++
		}
	}
	return out, nil
}

func (m *MemPaymentRepo) ListPendingOlderThan(ctx context.Context, tx repository.Tx, olderThan time.Time, after repository.PendingCursor, limit int) ([]*model.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Payment
	for _, p := range m.byID {
		if p.Status != model.PaymentStatusPending || !p.CreatedAt.Before(olderThan) {
			continue
		}
		if p.CreatedAt.Before(after.CreatedAt) || (p.CreatedAt.Equal(after.CreatedAt) && p.ID <= after.ID) {
			continue
		}
		out = append(out, clonePayment(p))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// MemUserRepo stores users and counts effective level changes.
type MemUserRepo struct {
	mu    sync.Mutex
	users map[string]*model.User

	SetLevelErr  error
	LevelChanges int
	SetLevelCall int
	EnsureErr    error
	EnsureCall   int
}

var _ repository.UserRepository = (*MemUserRepo)(nil)

func NewMemUserRepo(users ...*model.User) *MemUserRepo {
	m := &MemUserRepo{users: map[string]*model.User{}}
	for _, u := range users {
		cp := *u
		m.users[u.ID] = &cp
	}
	return m
}

func (m *MemUserRepo) Ensure(ctx context.Context, tx repository.Tx, u *model.User) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.EnsureCall++
	if m.EnsureErr != nil {
		return false, m.EnsureErr
	}
	if _, ok := m.users[u.ID]; ok {
		return false, nil
	}
	cp := *u
	m.users[u.ID] = &cp
	return true, nil
}

func (m *MemUserRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *MemUserRepo) SetLevel(ctx context.Context, tx repository.Tx, id string, level model.UserLevel) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SetLevelCall++
	if m.SetLevelErr != nil {
		return false, m.SetLevelErr
	}
	u, ok := m.users[id]
	if !ok {
		return false, domain.ErrNotFound
	}
	if u.Level == level {
		return false, nil
	}
	u.Level = level
	u.UpdatedAt = time.Now()
	m.LevelChanges++
	return true, nil
}

func (m *MemUserRepo) Level(id string) model.UserLevel {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		return u.Level
	}
	return ""
}

// ---- Mock TxManager ----

type MockTxManager struct {
	WithTxFunc func(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error
	Calls      int
}

var _ repository.TransactionManager = (*MockTxManager)(nil)

func (m *MockTxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	m.Calls++
	if m.WithTxFunc != nil {
		return m.WithTxFunc(ctx, txOpt, fn)
	}
	return fn(ctx, nil)
}

// =============================
// Adapters
// =============================

// MockProcessor is a scriptable payment processor.
type MockProcessor struct {
	mu sync.Mutex

	CreateIntentFunc   func(ctx context.Context, req adapter.IntentRequest) (*adapter.IntentResult, error)
	CreateCheckoutFunc func(ctx context.Context, req adapter.CheckoutRequest) (*adapter.CheckoutResult, error)
	RetrieveFunc       func(ctx context.Context, reference string) (*adapter.ProcessorStatus, error)
	ExpireFunc         func(ctx context.Context, reference string) error
	ParseWebhookFunc   func(payload []byte, signature string) (*adapter.WebhookEvent, error)

	Intents   []adapter.IntentRequest
	Checkouts []adapter.CheckoutRequest
	Expired   []string
}

var _ adapter.PaymentProcessor = (*MockProcessor)(nil)

func (m *MockProcessor) Name() string { return "stripe" }

func (m *MockProcessor) CreateIntent(ctx context.Context, req adapter.IntentRequest) (*adapter.IntentResult, error) {
	m.mu.Lock()
	m.Intents = append(m.Intents, req)
	m.mu.Unlock()
	if m.CreateIntentFunc != nil {
		return m.CreateIntentFunc(ctx, req)
	}
	return &adapter.IntentResult{ID: "pi_abc", ClientSecret: "pi_abc_secret_xyz"}, nil
}

func (m *MockProcessor) CreateCheckoutSession(ctx context.Context, req adapter.CheckoutRequest) (*adapter.CheckoutResult, error) {
	m.mu.Lock()
	m.Checkouts = append(m.Checkouts, req)
	m.mu.Unlock()
	if m.CreateCheckoutFunc != nil {
		return m.CreateCheckoutFunc(ctx, req)
	}
	return &adapter.CheckoutResult{ID: "cs_test_123", URL: "https://checkout.stripe.com/c/pay/cs_test_123"}, nil
}

func (m *MockProcessor) Retrieve(ctx context.Context, reference string) (*adapter.ProcessorStatus, error) {
	if m.RetrieveFunc != nil {
		return m.RetrieveFunc(ctx, reference)
	}
	return &adapter.ProcessorStatus{Reference: reference, Outcome: adapter.OutcomeSucceeded, Raw: "succeeded"}, nil
}

func (m *MockProcessor) Expire(ctx context.Context, reference string) error {
	m.mu.Lock()
	m.Expired = append(m.Expired, reference)
	m.mu.Unlock()
	if m.ExpireFunc != nil {
		return m.ExpireFunc(ctx, reference)
	}
	return nil
}

// ParseWebhook accepts payloads of the form "<kind>|<reference>" signed with "good-sig".
func (m *MockProcessor) ParseWebhook(payload []byte, signature string) (*adapter.WebhookEvent, error) {
	if m.ParseWebhookFunc != nil {
		return m.ParseWebhookFunc(payload, signature)
	}
	if signature != "good-sig" {
		return nil, domain.ErrInvalidSignature
	}
	parts := strings.SplitN(string(payload), "|", 2)
	ev := &adapter.WebhookEvent{ID: "evt_" + string(payload), Kind: adapter.EventKind(parts[0])}
	if len(parts) == 2 {
		ev.Reference = parts[1]
	}
	return ev, nil
}

func webhookPayload(kind adapter.EventKind, reference string) []byte {
	return []byte(string(kind) + "|" + reference)
}
