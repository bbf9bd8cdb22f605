// File: internal/usecase/subscription_uc.go
package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"jobboard-premium/internal/domain"
	"jobboard-premium/internal/domain/model"
	"jobboard-premium/internal/domain/ports/repository"
	"jobboard-premium/internal/infra/logging"
	"jobboard-premium/internal/infra/metrics"
)

// Compile-time check
var _ SubscriptionUseCase = (*subscriptionUC)(nil)

type SubscriptionUseCase interface {
	// Upgrade promotes the user to premium. Safe to call any number of times,
	// concurrently, from any confirmation path. Returns the resulting level.
	Upgrade(ctx context.Context, userID string) (model.UserLevel, error)
	// Status projects subscription state from the ledger. It never writes.
	Status(ctx context.Context, userID string) (*model.SubscriptionStatus, error)
	// EnsureAccount registers userID as a free user unless it is known already.
	EnsureAccount(ctx context.Context, userID string) error
}

type subscriptionUC struct {
	users    repository.UserRepository
	payments repository.PaymentRepository
	tm       repository.TransactionManager
	window   time.Duration
	now      func() time.Time
	log      *zerolog.Logger
}

func NewSubscriptionUseCase(
	users repository.UserRepository,
	payments repository.PaymentRepository,
	tm repository.TransactionManager,
	window time.Duration,
	logger *zerolog.Logger,
) *subscriptionUC {
	if window <= 0 {
		window = model.DefaultValidityWindow
	}
	l := logger.With().Str("component", "SubscriptionUC").Logger()
	return &subscriptionUC{
		users:    users,
		payments: payments,
		tm:       tm,
		window:   window,
		now:      time.Now,
		log:      &l,
	}
}

func (u *subscriptionUC) Upgrade(ctx context.Context, userID string) (model.UserLevel, error) {
	const op = "subscription.upgrade"
	if userID == "" {
		return "", domain.Validation(op, domain.ErrUnauthenticated)
	}

	changed, err := u.users.SetLevel(ctx, nil, userID, model.UserLevelPremium)
	if err != nil {
		metrics.IncUpgrade("error")
		return "", domain.StoreError(op, err)
	}

	log := logging.With(ctx, u.log)
	if changed {
		metrics.IncUpgrade("upgraded")
		log.Info().Str("user_id", userID).Msg("user upgraded to premium")
	} else {
		metrics.IncUpgrade("already_premium")
		log.Debug().Str("user_id", userID).Msg("user already premium")
	}
	return model.UserLevelPremium, nil
}

func (u *subscriptionUC) EnsureAccount(ctx context.Context, userID string) error {
	const op = "subscription.ensure_account"
	user, err := model.NewUser(userID, "")
	if err != nil {
		return domain.Validation(op, domain.ErrUnauthenticated)
	}
	created, err := u.users.Ensure(ctx, nil, user)
	if err != nil {
		return domain.Persistence(op, err)
	}
	if created {
		logging.With(ctx, u.log).Info().Str("user_id", userID).Msg("registered first-time user")
	}
	return nil
}

func (u *subscriptionUC) Status(ctx context.Context, userID string) (*model.SubscriptionStatus, error) {
	const op = "subscription.status"
	if userID == "" {
		return nil, domain.Validation(op, domain.ErrUnauthenticated)
	}

	var (
		user   *model.User
		latest *model.Payment
		counts map[model.PaymentStatus]int64
	)
	// One snapshot for the three reads so counts and latest agree.
	txOpt := pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly}
	err := u.tm.WithTx(ctx, txOpt, func(ctx context.Context, tx repository.Tx) error {
		var err error
		user, err = u.users.FindByID(ctx, tx, userID)
		if errors.Is(err, domain.ErrNotFound) {
			// never paid through this service: a free user with an empty ledger
			user = &model.User{ID: userID, Level: model.UserLevelFree}
		} else if err != nil {
			return err
		}
		latest, err = u.payments.LatestSucceeded(ctx, tx, userID)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return err
		}
		counts, err = u.payments.CountByStatus(ctx, tx, userID)
		return err
	})
	if err != nil {
		return nil, domain.StoreError(op, err)
	}

	st := model.ProjectSubscription(user.Level, latest, counts, u.now(), u.window)
	metrics.IncStatusRead(st.IsActive)
	return &st, nil
}
