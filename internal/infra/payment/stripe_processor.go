package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/client"
	"github.com/stripe/stripe-go/v81/webhook"

	"jobboard-premium/internal/config"
	"jobboard-premium/internal/domain"
	"jobboard-premium/internal/domain/ports/adapter"
	"jobboard-premium/internal/infra/metrics"
)

const providerStripe = "stripe"

const (
	prefixIntent  = "pi_"
	prefixSession = "cs_"
)

var _ adapter.PaymentProcessor = (*StripeProcessor)(nil)

// StripeProcessor talks to Stripe through a dedicated client.API so the
// secret key never lives in package globals.
type StripeProcessor struct {
	api           *client.API
	webhookSecret string
	log           *zerolog.Logger
}

func NewStripeProcessor(cfg config.StripeConfig, logger *zerolog.Logger) *StripeProcessor {
	return newStripeProcessor(cfg, nil, logger)
}

// newStripeProcessor accepts custom backends; nil means Stripe's defaults.
func newStripeProcessor(cfg config.StripeConfig, backends *stripe.Backends, logger *zerolog.Logger) *StripeProcessor {
	l := logger.With().Str("component", "StripeProcessor").Logger()
	return &StripeProcessor{
		api:           client.New(cfg.SecretKey, backends),
		webhookSecret: cfg.WebhookSecret,
		log:           &l,
	}
}

func (p *StripeProcessor) Name() string { return providerStripe }

func (p *StripeProcessor) CreateIntent(ctx context.Context, req adapter.IntentRequest) (res *adapter.IntentResult, err error) {
	defer observe("create_intent", time.Now(), &err)

	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(req.AmountCents),
		Currency: stripe.String(req.Currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}

	pi, err := p.api.PaymentIntents.New(params)
	if err != nil {
		return nil, fmt.Errorf("stripe: create payment intent: %w", err)
	}
	return &adapter.IntentResult{ID: pi.ID, ClientSecret: pi.ClientSecret}, nil
}

func (p *StripeProcessor) CreateCheckoutSession(ctx context.Context, req adapter.CheckoutRequest) (res *adapter.CheckoutResult, err error) {
	defer observe("create_checkout", time.Now(), &err)

	params := &stripe.CheckoutSessionParams{
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		PaymentMethodTypes: stripe.StringSlice(req.PaymentMethods),
		SuccessURL:         stripe.String(req.SuccessURL),
		CancelURL:          stripe.String(req.CancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			Quantity: stripe.Int64(1),
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(req.Currency),
				UnitAmount: stripe.Int64(req.AmountCents),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(req.ProductName),
				},
			},
		}},
		// copied onto the underlying intent so its events carry the user too
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			Metadata: req.Metadata,
		},
	}
	params.Context = ctx
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}

	s, err := p.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("stripe: create checkout session: %w", err)
	}
	return &adapter.CheckoutResult{ID: s.ID, URL: s.URL}, nil
}

func (p *StripeProcessor) Retrieve(ctx context.Context, reference string) (st *adapter.ProcessorStatus, err error) {
	defer observe("retrieve", time.Now(), &err)

	switch {
	case strings.HasPrefix(reference, prefixSession):
		params := &stripe.CheckoutSessionParams{}
		params.Context = ctx
		s, err := p.api.CheckoutSessions.Get(reference, params)
		if err != nil {
			return nil, fmt.Errorf("stripe: retrieve checkout session: %w", err)
		}
		outcome, raw := sessionOutcome(s)
		return &adapter.ProcessorStatus{Reference: reference, Outcome: outcome, Raw: raw}, nil
	case strings.HasPrefix(reference, prefixIntent):
		params := &stripe.PaymentIntentParams{}
		params.Context = ctx
		pi, err := p.api.PaymentIntents.Get(reference, params)
		if err != nil {
			return nil, fmt.Errorf("stripe: retrieve payment intent: %w", err)
		}
		return &adapter.ProcessorStatus{Reference: reference, Outcome: intentOutcome(pi), Raw: string(pi.Status)}, nil
	default:
		return nil, fmt.Errorf("%w: unrecognised stripe reference %q", domain.ErrInvalidArgument, reference)
	}
}

func (p *StripeProcessor) Expire(ctx context.Context, reference string) (err error) {
	defer observe("expire", time.Now(), &err)

	switch {
	case strings.HasPrefix(reference, prefixSession):
		params := &stripe.CheckoutSessionExpireParams{}
		params.Context = ctx
		_, err = p.api.CheckoutSessions.Expire(reference, params)
	case strings.HasPrefix(reference, prefixIntent):
		params := &stripe.PaymentIntentCancelParams{}
		params.Context = ctx
		_, err = p.api.PaymentIntents.Cancel(reference, params)
	default:
		return fmt.Errorf("%w: unrecognised stripe reference %q", domain.ErrInvalidArgument, reference)
	}
	if err != nil {
		return fmt.Errorf("stripe: expire %s: %w", reference, err)
	}
	return nil
}

func (p *StripeProcessor) ParseWebhook(payload []byte, signature string) (*adapter.WebhookEvent, error) {
	if signature == "" {
		return nil, domain.ErrInvalidSignature
	}
	event, err := webhook.ConstructEventWithOptions(payload, signature, p.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		if errors.Is(err, webhook.ErrNotSigned) || errors.Is(err, webhook.ErrNoValidSignature) ||
			errors.Is(err, webhook.ErrTooOld) || errors.Is(err, webhook.ErrInvalidHeader) {
			return nil, fmt.Errorf("%w: %v", domain.ErrInvalidSignature, err)
		}
		return nil, fmt.Errorf("decode stripe event: %w", err)
	}

	out := &adapter.WebhookEvent{ID: event.ID, Kind: adapter.EventKind(event.Type)}
	if event.Data == nil {
		return out, nil
	}

	switch out.Kind {
	case adapter.EventCheckoutCompleted:
		var s stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &s); err != nil {
			return nil, fmt.Errorf("decode checkout session: %w", err)
		}
		out.Reference = s.ID
	case adapter.EventIntentSucceeded, adapter.EventIntentFailed:
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			return nil, fmt.Errorf("decode payment intent: %w", err)
		}
		out.Reference = pi.ID
	}
	return out, nil
}

// intentOutcome reduces an intent's lifecycle to the ledger's vocabulary. An
// intent back in requires_payment_method after an attempt has failed.
func intentOutcome(pi *stripe.PaymentIntent) adapter.Outcome {
	switch pi.Status {
	case stripe.PaymentIntentStatusSucceeded:
		return adapter.OutcomeSucceeded
	case stripe.PaymentIntentStatusCanceled:
		return adapter.OutcomeCanceled
	case stripe.PaymentIntentStatusRequiresPaymentMethod:
		if pi.LastPaymentError != nil {
			return adapter.OutcomeFailed
		}
	}
	return adapter.OutcomePending
}

func sessionOutcome(s *stripe.CheckoutSession) (adapter.Outcome, string) {
	switch {
	case s.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid,
		s.PaymentStatus == stripe.CheckoutSessionPaymentStatusNoPaymentRequired:
		return adapter.OutcomeSucceeded, "succeeded"
	case s.Status == stripe.CheckoutSessionStatusExpired:
		return adapter.OutcomeCanceled, string(s.Status)
	case s.PaymentStatus != "":
		return adapter.OutcomePending, string(s.PaymentStatus)
	default:
		return adapter.OutcomePending, string(s.Status)
	}
}

func observe(op string, start time.Time, err *error) {
	metrics.ObserveProcessorCall(providerStripe, op, start, *err)
}
