package model

import (
	"time"

	"jobboard-premium/internal/domain"
)

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"   // created at processor; awaiting outcome
	PaymentStatusSucceeded PaymentStatus = "succeeded" // processor reported success
	PaymentStatusFailed    PaymentStatus = "failed"    // processor reported failure
	PaymentStatusCancelled PaymentStatus = "cancelled" // cancelled by the owner while pending
)

// AllPaymentStatuses lists every status in display order.
var AllPaymentStatuses = []PaymentStatus{
	PaymentStatusPending,
	PaymentStatusSucceeded,
	PaymentStatusFailed,
	PaymentStatusCancelled,
}

// IsTerminal reports whether no further transition is valid.
func (s PaymentStatus) IsTerminal() bool {
	switch s {
	case PaymentStatusSucceeded, PaymentStatusFailed, PaymentStatusCancelled:
		return true
	}
	return false
}

func (s PaymentStatus) Valid() bool {
	return s == PaymentStatusPending || s.IsTerminal()
}

// CanTransition reports whether from -> to is a legal ledger transition.
// Only pending rows move, and only into a terminal status.
func CanTransition(from, to PaymentStatus) bool {
	return from == PaymentStatusPending && to.IsTerminal()
}

// Flow tags which initiation path produced the payment.
const (
	FlowPaymentIntent   = "payment_intent"
	FlowCheckoutSession = "checkout_session"

	MetaFlow           = "flow"
	MetaUserID         = "user_id"
	MetaPaymentMethods = "payment_methods"
)

// Payment is one row in the payment ledger.
type Payment struct {
	ID                    string            `json:"id"`
	UserID                string            `json:"userId"`
	AmountCents           int64             `json:"amountCents"`
	Currency              string            `json:"currency"`
	Provider              string            `json:"provider"`
	ProviderTransactionID string            `json:"providerTransactionId"` // intent or session id; unique
	Status                PaymentStatus     `json:"status"`
	Metadata              map[string]string `json:"metadata,omitempty"`
	CreatedAt             time.Time         `json:"createdAt"`
	UpdatedAt             time.Time         `json:"updatedAt"`
}

// NewPendingPayment builds a pending ledger row for a freshly created processor object.
func NewPendingPayment(id, userID string, amountCents int64, currency, provider, reference string, meta map[string]string, now time.Time) (*Payment, error) {
	if id == "" || userID == "" || reference == "" || provider == "" {
		return nil, domain.ErrInvalidArgument
	}
	if amountCents <= 0 || currency == "" {
		return nil, domain.ErrInvalidArgument
	}
	if meta == nil {
		meta = map[string]string{}
	}
	return &Payment{
		ID:                    id,
		UserID:                userID,
		AmountCents:           amountCents,
		Currency:              currency,
		Provider:              provider,
		ProviderTransactionID: reference,
		Status:                PaymentStatusPending,
		Metadata:              meta,
		CreatedAt:             now,
		UpdatedAt:             now,
	}, nil
}

func (p *Payment) IsPending() bool { return p != nil && p.Status == PaymentStatusPending }
