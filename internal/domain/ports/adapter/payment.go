package adapter

import (
	"context"
)

// EventKind is the processor's name for a webhook event type.
type EventKind string

const (
	EventCheckoutCompleted EventKind = "checkout.session.completed"
	EventIntentSucceeded   EventKind = "payment_intent.succeeded"
	EventIntentFailed      EventKind = "payment_intent.payment_failed"
)

// Outcome is the processor status reduced to what the ledger cares about.
type Outcome string

const (
	OutcomePending   Outcome = "pending"
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeFailed    Outcome = "failed"
	OutcomeCanceled  Outcome = "canceled"
)

type IntentRequest struct {
	AmountCents int64
	Currency    string
	Metadata    map[string]string
}

type IntentResult struct {
	ID           string
	ClientSecret string
}

type CheckoutRequest struct {
	AmountCents    int64
	Currency       string
	ProductName    string
	PaymentMethods []string
	SuccessURL     string
	CancelURL      string
	Metadata       map[string]string
}

type CheckoutResult struct {
	ID  string
	URL string
}

// ProcessorStatus is the processor's current view of one reference.
// Raw is the processor's own status string, surfaced to callers on mismatch.
type ProcessorStatus struct {
	Reference string
	Outcome   Outcome
	Raw       string
}

// WebhookEvent is a verified, decoded webhook delivery.
type WebhookEvent struct {
	ID        string
	Kind      EventKind
	Reference string // intent or session id the event is about
}

// PaymentProcessor is the hex port for the external payment processor.
type PaymentProcessor interface {
	Name() string

	// CreateIntent starts an in-app card charge and returns its client secret.
	CreateIntent(ctx context.Context, req IntentRequest) (*IntentResult, error)
	// CreateCheckoutSession starts a hosted, redirect-based checkout.
	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutResult, error)
	// Retrieve fetches the current status for an intent or session reference.
	Retrieve(ctx context.Context, reference string) (*ProcessorStatus, error)
	// Expire invalidates a still-open intent or session.
	Expire(ctx context.Context, reference string) error
	// ParseWebhook verifies the signature and decodes the event. A bad
	// signature yields domain.ErrInvalidSignature.
	ParseWebhook(payload []byte, signature string) (*WebhookEvent, error)
}
