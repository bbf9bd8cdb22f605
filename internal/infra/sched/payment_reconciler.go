package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"jobboard-premium/internal/config"
	"jobboard-premium/internal/domain/model"
	"jobboard-premium/internal/domain/ports/adapter"
	"jobboard-premium/internal/domain/ports/repository"
	"jobboard-premium/internal/infra/logging"
	"jobboard-premium/internal/infra/metrics"
)

// Reverifier settles one stale payment from the processor's current view.
// usecase.PaymentUseCase satisfies it.
type Reverifier interface {
	Reverify(ctx context.Context, p *model.Payment) (adapter.Outcome, error)
	Abandon(ctx context.Context, p *model.Payment) error
}

// PendingLister is the slice of the payment repository the sweeper reads.
type PendingLister interface {
	ListPendingOlderThan(ctx context.Context, tx repository.Tx, olderThan time.Time, after repository.PendingCursor, limit int) ([]*model.Payment, error)
}

// PaymentReconciler periodically re-verifies pending payments older than
// StaleAfter. It covers lost webhooks and clients that never came back to
// confirm. Every write goes through the same conditional transition as the
// webhook path, so running it next to live traffic is safe.
//
// Each sweep continues from where the previous one stopped and wraps around
// at the end, so rows that stay pending cannot hide newer ones. Rows pending
// for longer than AbandonAfter are expired at the processor and cancelled.
type PaymentReconciler struct {
	uc           Reverifier
	payments     PendingLister
	interval     time.Duration
	staleAfter   time.Duration
	abandonAfter time.Duration
	batchSize    int
	callTimeout  time.Duration
	now          func() time.Time
	log          *zerolog.Logger

	cursor repository.PendingCursor

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

func NewPaymentReconciler(uc Reverifier, payments PendingLister, cfg config.ReconcilerConfig, logger *zerolog.Logger) *PaymentReconciler {
	l := logger.With().Str("component", "PaymentReconciler").Logger()
	r := &PaymentReconciler{
		uc:           uc,
		payments:     payments,
		interval:     cfg.Interval,
		staleAfter:   cfg.StaleAfter,
		abandonAfter: cfg.AbandonAfter,
		batchSize:    cfg.BatchSize,
		callTimeout:  15 * time.Second,
		now:          time.Now,
		log:          &l,
		done:         make(chan struct{}),
	}
	if r.interval <= 0 {
		r.interval = time.Minute
	}
	if r.staleAfter <= 0 {
		r.staleAfter = 10 * time.Minute
	}
	if r.batchSize <= 0 {
		r.batchSize = 200
	}
	if r.abandonAfter <= 0 {
		r.abandonAfter = 72 * time.Hour
	}
	return r
}

// Start runs the sweep loop in a background goroutine. Calling it twice has no effect.
func (w *PaymentReconciler) Start(parent context.Context) {
	if w.ctx != nil {
		return
	}
	w.ctx, w.cancel = context.WithCancel(parent)
	go w.loop()
}

// Stop cancels the loop and waits for the current sweep to finish. It is idempotent.
func (w *PaymentReconciler) Stop() {
	if w.cancel == nil {
		return
	}
	w.cancel()
	<-w.done
	w.ctx, w.cancel = nil, nil
	w.done = make(chan struct{})
	w.log.Info().Msg("stopped")
}

func (w *PaymentReconciler) loop() {
	t := time.NewTicker(w.interval)
	defer func() {
		t.Stop()
		close(w.done)
	}()

	w.log.Info().Dur("interval", w.interval).Dur("stale_after", w.staleAfter).Msg("started")
	for {
		select {
		case <-w.ctx.Done():
			return
		case <-t.C:
			w.Sweep(w.ctx)
		}
	}
}

// Sweep runs one pass over the next batch and returns how many payments
// left the pending state. It is not safe to call concurrently.
func (w *PaymentReconciler) Sweep(ctx context.Context) int {
	now := w.now()
	pending, err := w.payments.ListPendingOlderThan(ctx, nil, now.Add(-w.staleAfter), w.cursor, w.batchSize)
	if err != nil {
		w.log.Error().Err(err).Msg("list pending payments failed")
		return 0
	}
	if len(pending) < w.batchSize {
		w.cursor = repository.PendingCursor{}
	} else {
		w.cursor = repository.CursorAt(pending[len(pending)-1])
	}

	settled := 0
	for _, p := range pending {
		if ctx.Err() != nil {
			break
		}
		if p.ProviderTransactionID == "" {
			continue
		}
		if w.reconcile(ctx, p, now) {
			settled++
		}
	}
	return settled
}

func (w *PaymentReconciler) reconcile(ctx context.Context, p *model.Payment, now time.Time) bool {
	log := logging.With(logging.WithPaymentID(ctx, p.ID), w.log).With().
		Str("reference", p.ProviderTransactionID).Logger()

	callCtx, cancel := context.WithTimeout(ctx, w.callTimeout)
	defer cancel()

	outcome, err := w.uc.Reverify(callCtx, p)
	if err != nil {
		metrics.IncSweeper("error")
		log.Warn().Err(err).Msg("re-verification failed; will retry next sweep")
		return false
	}

	switch outcome {
	case adapter.OutcomeSucceeded, adapter.OutcomeFailed, adapter.OutcomeCanceled:
		metrics.IncSweeper(string(outcome))
		log.Info().Str("outcome", string(outcome)).Msg("reconciled stale payment")
		return true
	}

	if now.Sub(p.CreatedAt) < w.abandonAfter {
		metrics.IncSweeper("still_pending")
		log.Debug().Msg("still pending at processor")
		return false
	}
	if err := w.uc.Abandon(callCtx, p); err != nil {
		metrics.IncSweeper("error")
		log.Warn().Err(err).Msg("abandoning payment failed; will retry next sweep")
		return false
	}
	metrics.IncSweeper("abandoned")
	return true
}
