package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"jobboard-premium/internal/domain"
	"jobboard-premium/internal/domain/model"
	"jobboard-premium/internal/domain/ports/adapter"
	"jobboard-premium/internal/domain/ports/repository"
	"jobboard-premium/internal/infra/logging"
	"jobboard-premium/internal/infra/metrics"
)

var _ WebhookUseCase = (*webhookUC)(nil)

// WebhookUseCase applies processor push notifications to the ledger.
// Deliveries are at-least-once; every call after the first for the same
// event is a successful no-op.
type WebhookUseCase interface {
	// Handle returns nil when the delivery should be acknowledged. A processor
	// error means the payload was rejected; a persistence error means the
	// processor should redeliver later.
	Handle(ctx context.Context, payload []byte, signature string) error
}

type webhookUC struct {
	processor adapter.PaymentProcessor
	settler   *settler
	log       *zerolog.Logger
}

func NewWebhookUseCase(payments repository.PaymentRepository, processor adapter.PaymentProcessor, subs SubscriptionUseCase, logger *zerolog.Logger) *webhookUC {
	l := logger.With().Str("component", "WebhookUC").Logger()
	return &webhookUC{
		processor: processor,
		settler:   &settler{payments: payments, subs: subs, log: &l},
		log:       &l,
	}
}

func (u *webhookUC) Handle(ctx context.Context, payload []byte, signature string) error {
	const op = "webhook.handle"
	start := time.Now()
	result := "ok"
	defer func() {
		metrics.WebhookDuration.WithLabelValues(result).Observe(time.Since(start).Seconds())
	}()

	ev, err := u.processor.ParseWebhook(payload, signature)
	if err != nil {
		result = "bad_signature"
		metrics.IncWebhook("unknown", result)
		logging.With(ctx, u.log).Warn().Err(err).Msg("webhook rejected")
		if errors.Is(err, domain.ErrInvalidSignature) {
			return domain.Processor(op, err)
		}
		return domain.Processor(op, errors.Join(domain.ErrInvalidArgument, err))
	}

	log := logging.With(ctx, u.log).With().
		Str("event_id", ev.ID).
		Str("event_kind", string(ev.Kind)).
		Str("reference", ev.Reference).
		Logger()

	var target model.PaymentStatus
	switch ev.Kind {
	case adapter.EventCheckoutCompleted, adapter.EventIntentSucceeded:
		target = model.PaymentStatusSucceeded
	case adapter.EventIntentFailed:
		target = model.PaymentStatusFailed
	default:
		result = "ignored"
		metrics.IncWebhook("unknown", result)
		log.Debug().Msg("ignoring unhandled webhook event kind")
		return nil
	}

	if ev.Reference == "" {
		result = "ignored"
		metrics.IncWebhook(string(ev.Kind), result)
		log.Warn().Msg("webhook event without reference; ignoring")
		return nil
	}

	if _, err := u.settler.settle(ctx, SourceWebhook, ev.Reference, target, ""); err != nil {
		if domain.KindOf(err) == domain.KindNotFound {
			// Not ours (or created outside this service); redelivery will not help.
			result = "not_found"
			metrics.IncWebhook(string(ev.Kind), result)
			log.Warn().Msg("webhook for unknown reference; acknowledging")
			return nil
		}
		result = "error"
		metrics.IncWebhook(string(ev.Kind), result)
		log.Error().Err(err).Msg("webhook processing failed; processor will redeliver")
		return err
	}

	metrics.IncWebhook(string(ev.Kind), result)
	log.Info().Msg("webhook processed")
	return nil
}
