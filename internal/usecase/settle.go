package usecase

import (
	"context"

	"github.com/rs/zerolog"

	"jobboard-premium/internal/domain"
	"jobboard-premium/internal/domain/model"
	"jobboard-premium/internal/domain/ports/repository"
	"jobboard-premium/internal/infra/logging"
	"jobboard-premium/internal/infra/metrics"
)

// Transition sources, used for metrics and logs.
const (
	SourceWebhook = "webhook"
	SourceConfirm = "confirm"
	SourceCancel  = "cancel"
	SourceSweeper = "sweeper"
)

// settlement is what a terminal write observed.
type settlement struct {
	Payment *model.Payment
	Applied bool            // this caller moved the row out of pending
	Level   model.UserLevel // set when the upgrader ran
}

// settler is the single place terminal writes go through. Every path (webhook,
// confirm, sweeper) uses the same conditional update, so whichever lands first
// wins and the rest are no-ops that still converge on the same outcome.
type settler struct {
	payments repository.PaymentRepository
	subs     SubscriptionUseCase
	log      *zerolog.Logger
}

func (s *settler) settle(ctx context.Context, source, reference string, status model.PaymentStatus, ownerID string) (*settlement, error) {
	const op = "payment.settle"

	applied, err := s.payments.TransitionIfPending(ctx, nil, reference, status, ownerID)
	if err != nil {
		return nil, domain.Persistence(op, err)
	}
	metrics.IncTransition(source, string(status), applied)

	p, err := s.payments.FindByReference(ctx, nil, reference)
	if err != nil {
		return nil, domain.StoreError(op, err)
	}
	if ownerID != "" && p.UserID != ownerID {
		return nil, domain.NotFound(op)
	}

	log := logging.With(logging.WithPaymentID(ctx, p.ID), s.log)
	out := &settlement{Payment: p, Applied: applied}
	if applied {
		metrics.IncPayment(string(status), p.Metadata[model.MetaFlow])
		if status == model.PaymentStatusSucceeded {
			metrics.AddPaymentRevenue(p.Currency, p.AmountCents)
		}
		log.Info().Str("source", source).Str("status", string(status)).Str("reference", reference).Msg("payment transitioned")
	} else {
		log.Debug().Str("source", source).Str("status", string(p.Status)).Str("reference", reference).Msg("payment already terminal; no-op")
	}

	if status != model.PaymentStatusSucceeded {
		return out, nil
	}
	if p.Status != model.PaymentStatusSucceeded {
		// Processor says paid but the ledger already closed the row another way,
		// e.g. cancelled locally before the processor-side expiry took effect.
		log.Warn().Str("source", source).Str("ledger_status", string(p.Status)).Str("reference", reference).
			Msg("processor reported success for a payment closed in the ledger; not upgrading")
		return out, nil
	}

	level, err := s.subs.Upgrade(ctx, p.UserID)
	if err != nil {
		// surfaced as persistence so webhook deliveries are retried
		return nil, domain.Persistence(op, err)
	}
	out.Level = level
	return out, nil
}
