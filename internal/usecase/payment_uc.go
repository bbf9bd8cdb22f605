// File: internal/usecase/payment_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"jobboard-premium/internal/config"
	"jobboard-premium/internal/domain"
	"jobboard-premium/internal/domain/model"
	"jobboard-premium/internal/domain/ports/adapter"
	"jobboard-premium/internal/domain/ports/repository"
	"jobboard-premium/internal/infra/logging"
	"jobboard-premium/internal/infra/metrics"
)

// Compile-time check
var _ PaymentUseCase = (*paymentUC)(nil)

const (
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 200
)

type IntentResult struct {
	ClientSecret string `json:"clientSecret"`
	PaymentID    string `json:"paymentId"`
}

type CheckoutResult struct {
	PaymentID   string `json:"paymentId"`
	SessionID   string `json:"sessionId"`
	CheckoutURL string `json:"checkoutUrl"`
}

type ConfirmResult struct {
	Payment   *model.Payment  `json:"payment"`
	UserLevel model.UserLevel `json:"userLevel"`
}

type PaymentUseCase interface {
	// CreateIntent starts an in-app card charge and records it as pending.
	CreateIntent(ctx context.Context, userID string, amountCents int64, currency string) (*IntentResult, error)
	// CreateCheckout starts a hosted checkout session and records it as pending.
	CreateCheckout(ctx context.Context, userID string, amountCents int64, currency string, paymentMethods []string) (*CheckoutResult, error)
	// Confirm re-verifies reference with the processor and settles the caller's row.
	Confirm(ctx context.Context, userID, reference string) (*ConfirmResult, error)
	// Cancel closes the caller's pending payment.
	Cancel(ctx context.Context, userID, paymentID string) (*model.Payment, error)
	// History lists the caller's payments, newest first.
	History(ctx context.Context, userID string, limit int) ([]*model.Payment, error)
	// Reverify settles a stale pending payment from the processor's current view.
	Reverify(ctx context.Context, p *model.Payment) (adapter.Outcome, error)
	// Abandon gives up on a payment the processor still reports as pending:
	// it is expired at the processor first and only then closed as cancelled.
	Abandon(ctx context.Context, p *model.Payment) error
}

type paymentUC struct {
	payments  repository.PaymentRepository
	processor adapter.PaymentProcessor
	subs      SubscriptionUseCase
	settler   *settler
	currency  string
	checkout  config.CheckoutConfig
	log       *zerolog.Logger
	now       func() time.Time
}

func NewPaymentUseCase(
	payments repository.PaymentRepository,
	processor adapter.PaymentProcessor,
	subs SubscriptionUseCase,
	payCfg config.PaymentConfig,
	logger *zerolog.Logger,
) *paymentUC {
	l := logger.With().Str("component", "PaymentUC").Logger()
	currency := strings.ToLower(strings.TrimSpace(payCfg.DefaultCurrency))
	if currency == "" {
		currency = "usd"
	}
	return &paymentUC{
		payments:  payments,
		processor: processor,
		subs:      subs,
		settler:   &settler{payments: payments, subs: subs, log: &l},
		currency:  currency,
		checkout:  payCfg.Checkout,
		log:       &l,
		now:       time.Now,
	}
}

func (u *paymentUC) validateInitiation(op, userID string, amountCents int64, currency string) (string, error) {
	if userID == "" {
		return "", domain.Validation(op, domain.ErrUnauthenticated)
	}
	if amountCents <= 0 {
		return "", domain.Validation(op, fmt.Errorf("%w: amount must be a positive integer in minor units", domain.ErrInvalidArgument))
	}
	currency = strings.ToLower(strings.TrimSpace(currency))
	if currency == "" {
		currency = u.currency
	}
	if !isCurrencyCode(currency) {
		return "", domain.Validation(op, fmt.Errorf("%w: currency must be a 3-letter code", domain.ErrInvalidArgument))
	}
	return currency, nil
}

func isCurrencyCode(s string) bool {
	if len(s) != 3 {
		return false
	}
	for _, r := range s {
		if r < 'a' || r > 'z' {
			return false
		}
	}
	return true
}

// record persists the pending row after the processor call succeeded.
func (u *paymentUC) record(ctx context.Context, op, userID string, amountCents int64, currency, reference string, meta map[string]string) (*model.Payment, error) {
	p, err := model.NewPendingPayment(uuid.NewString(), userID, amountCents, currency, u.processor.Name(), reference, meta, u.now())
	if err != nil {
		return nil, domain.Validation(op, err)
	}
	if err := u.payments.Create(ctx, nil, p); err != nil {
		return nil, domain.Persistence(op, err)
	}
	metrics.IncPayment(string(model.PaymentStatusPending), meta[model.MetaFlow])
	logging.With(logging.WithPaymentID(ctx, p.ID), u.log).Info().
		Str("flow", meta[model.MetaFlow]).
		Str("reference", reference).
		Int64("amount_cents", amountCents).
		Str("currency", currency).
		Msg("payment initiated")
	return p, nil
}

func (u *paymentUC) CreateIntent(ctx context.Context, userID string, amountCents int64, currency string) (*IntentResult, error) {
	const op = "payment.create_intent"
	defer logging.TraceDuration(u.log, "PaymentUC.CreateIntent")()

	currency, err := u.validateInitiation(op, userID, amountCents, currency)
	if err != nil {
		return nil, err
	}

	// the row below references the user, so register it before any processor object exists
	if err := u.subs.EnsureAccount(ctx, userID); err != nil {
		return nil, err
	}

	meta := map[string]string{model.MetaUserID: userID, model.MetaFlow: model.FlowPaymentIntent}
	// processor first: a failed call leaves no row behind
	intent, err := u.processor.CreateIntent(ctx, adapter.IntentRequest{
		AmountCents: amountCents,
		Currency:    currency,
		Metadata:    meta,
	})
	if err != nil {
		return nil, domain.Processor(op, err)
	}

	p, err := u.record(ctx, op, userID, amountCents, currency, intent.ID, meta)
	if err != nil {
		return nil, err
	}
	return &IntentResult{ClientSecret: intent.ClientSecret, PaymentID: p.ID}, nil
}

func (u *paymentUC) CreateCheckout(ctx context.Context, userID string, amountCents int64, currency string, paymentMethods []string) (*CheckoutResult, error) {
	const op = "payment.create_checkout"
	defer logging.TraceDuration(u.log, "PaymentUC.CreateCheckout")()

	currency, err := u.validateInitiation(op, userID, amountCents, currency)
	if err != nil {
		return nil, err
	}
	if err := u.subs.EnsureAccount(ctx, userID); err != nil {
		return nil, err
	}
	methods := normalizeMethods(paymentMethods)
	targets := u.checkout.Redirects(u.checkout.Environment)

	meta := map[string]string{
		model.MetaUserID:         userID,
		model.MetaFlow:           model.FlowCheckoutSession,
		model.MetaPaymentMethods: strings.Join(methods, ","),
	}
	sess, err := u.processor.CreateCheckoutSession(ctx, adapter.CheckoutRequest{
		AmountCents:    amountCents,
		Currency:       currency,
		ProductName:    u.checkout.ProductName,
		PaymentMethods: methods,
		SuccessURL:     targets.SuccessURL,
		CancelURL:      targets.CancelURL,
		Metadata:       meta,
	})
	if err != nil {
		return nil, domain.Processor(op, err)
	}

	p, err := u.record(ctx, op, userID, amountCents, currency, sess.ID, meta)
	if err != nil {
		return nil, err
	}
	return &CheckoutResult{PaymentID: p.ID, SessionID: sess.ID, CheckoutURL: sess.URL}, nil
}

func normalizeMethods(in []string) []string {
	out := make([]string, 0, len(in))
	seen := map[string]bool{}
	for _, m := range in {
		m = strings.ToLower(strings.TrimSpace(m))
		if m == "" || seen[m] {
			continue
		}
		seen[m] = true
		out = append(out, m)
	}
	if len(out) == 0 {
		out = append(out, "card")
	}
	return out
}

func (u *paymentUC) Confirm(ctx context.Context, userID, reference string) (*ConfirmResult, error) {
	const op = "payment.confirm"
	defer logging.TraceDuration(u.log, "PaymentUC.Confirm")()

	if userID == "" {
		return nil, domain.Validation(op, domain.ErrUnauthenticated)
	}
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, domain.Validation(op, fmt.Errorf("%w: processor reference is required", domain.ErrInvalidArgument))
	}

	p, err := u.payments.FindByReference(ctx, nil, reference)
	if err != nil {
		return nil, domain.StoreError(op, err)
	}
	if p.UserID != userID {
		// do not reveal other users' references
		return nil, domain.NotFound(op)
	}

	// Never trust the client's claim: ask the processor.
	st, err := u.processor.Retrieve(ctx, reference)
	if err != nil {
		return nil, domain.Processor(op, err)
	}
	if st.Outcome != adapter.OutcomeSucceeded {
		logging.With(logging.WithPaymentID(ctx, p.ID), u.log).Info().
			Str("reference", reference).Str("processor_status", st.Raw).
			Msg("confirm rejected: processor does not report success")
		return nil, domain.Mismatch(op, st.Raw)
	}

	res, err := u.settler.settle(ctx, SourceConfirm, reference, model.PaymentStatusSucceeded, userID)
	if err != nil {
		return nil, err
	}
	if res.Payment.Status != model.PaymentStatusSucceeded {
		return nil, &domain.Error{
			Kind:   domain.KindReconciliation,
			Op:     op,
			Msg:    fmt.Sprintf("payment already closed in ledger (status=%s)", res.Payment.Status),
			Status: string(res.Payment.Status),
		}
	}
	return &ConfirmResult{Payment: res.Payment, UserLevel: res.Level}, nil
}

func (u *paymentUC) Cancel(ctx context.Context, userID, paymentID string) (*model.Payment, error) {
	const op = "payment.cancel"
	if userID == "" {
		return nil, domain.Validation(op, domain.ErrUnauthenticated)
	}
	if strings.TrimSpace(paymentID) == "" {
		return nil, domain.Validation(op, fmt.Errorf("%w: payment id is required", domain.ErrInvalidArgument))
	}

	p, err := u.payments.FindByID(ctx, nil, paymentID)
	if err != nil {
		return nil, domain.StoreError(op, err)
	}
	if p.UserID != userID {
		return nil, domain.Forbidden(op)
	}
	if !p.IsPending() {
		return nil, domain.Validation(op, domain.ErrNotPending)
	}

	res, err := u.settler.settle(ctx, SourceCancel, p.ProviderTransactionID, model.PaymentStatusCancelled, userID)
	if err != nil {
		return nil, err
	}
	if !res.Applied {
		// lost the race against a webhook or confirm
		return nil, domain.Validation(op, domain.ErrNotPending)
	}

	// Best effort: the ledger is authoritative even if this fails.
	if err := u.processor.Expire(ctx, p.ProviderTransactionID); err != nil {
		logging.With(logging.WithPaymentID(ctx, p.ID), u.log).Warn().Err(err).
			Str("reference", p.ProviderTransactionID).
			Msg("processor-side cancellation failed; local cancellation kept")
	}
	return res.Payment, nil
}

func (u *paymentUC) History(ctx context.Context, userID string, limit int) ([]*model.Payment, error) {
	const op = "payment.history"
	if userID == "" {
		return nil, domain.Validation(op, domain.ErrUnauthenticated)
	}
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}
	out, err := u.payments.ListByUser(ctx, nil, userID, limit)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, domain.Persistence(op, err)
	}
	if out == nil {
		out = []*model.Payment{}
	}
	return out, nil
}

func (u *paymentUC) Reverify(ctx context.Context, p *model.Payment) (adapter.Outcome, error) {
	const op = "payment.reverify"
	if p == nil || p.ProviderTransactionID == "" {
		return "", domain.Validation(op, domain.ErrInvalidArgument)
	}
	st, err := u.processor.Retrieve(ctx, p.ProviderTransactionID)
	if err != nil {
		return "", domain.Processor(op, err)
	}

	var target model.PaymentStatus
	switch st.Outcome {
	case adapter.OutcomeSucceeded:
		target = model.PaymentStatusSucceeded
	case adapter.OutcomeFailed:
		target = model.PaymentStatusFailed
	case adapter.OutcomeCanceled:
		target = model.PaymentStatusCancelled
	default:
		return st.Outcome, nil
	}
	if _, err := u.settler.settle(ctx, SourceSweeper, p.ProviderTransactionID, target, ""); err != nil {
		return "", err
	}
	return st.Outcome, nil
}

func (u *paymentUC) Abandon(ctx context.Context, p *model.Payment) error {
	const op = "payment.abandon"
	if p == nil || p.ProviderTransactionID == "" {
		return domain.Validation(op, domain.ErrInvalidArgument)
	}
	// A failed expiry may mean the charge just went through; keep the row
	// pending so the next sweep or the webhook settles it.
	if err := u.processor.Expire(ctx, p.ProviderTransactionID); err != nil {
		return domain.Processor(op, err)
	}
	res, err := u.settler.settle(ctx, SourceSweeper, p.ProviderTransactionID, model.PaymentStatusCancelled, "")
	if err != nil {
		return err
	}
	if res.Applied {
		logging.With(logging.WithPaymentID(ctx, p.ID), u.log).Info().
			Str("reference", p.ProviderTransactionID).
			Time("created_at", p.CreatedAt).
			Msg("abandoned payment expired and cancelled")
	}
	return nil
}
