package model

import (
	"math"
	"time"
)

// DefaultValidityWindow is how long one succeeded payment keeps premium active.
const DefaultValidityWindow = 365 * 24 * time.Hour

// SubscriptionStatus is a read-time projection over the payment ledger.
// Nothing in it is persisted; expiry is recomputed on every read.
type SubscriptionStatus struct {
	Level         UserLevel               `json:"level"`
	IsActive      bool                    `json:"isActive"`
	DaysRemaining *int                    `json:"daysRemaining"`
	ExpiresAt     *time.Time              `json:"expiresAt,omitempty"`
	LatestPayment *Payment                `json:"latestPayment"`
	StatusCounts  map[PaymentStatus]int64 `json:"statusCounts"`
}

// ProjectSubscription derives subscription state from the latest succeeded
// payment. Without one the subscription is inactive whatever the level says.
func ProjectSubscription(level UserLevel, latest *Payment, counts map[PaymentStatus]int64, now time.Time, window time.Duration) SubscriptionStatus {
	if window <= 0 {
		window = DefaultValidityWindow
	}
	out := SubscriptionStatus{
		Level:         level,
		LatestPayment: latest,
		StatusCounts:  make(map[PaymentStatus]int64, len(AllPaymentStatuses)),
	}
	for _, s := range AllPaymentStatuses {
		out.StatusCounts[s] = counts[s]
	}
	if latest == nil || latest.Status != PaymentStatusSucceeded {
		return out
	}

	expiry := latest.CreatedAt.Add(window)
	out.ExpiresAt = &expiry
	out.IsActive = now.Before(expiry)

	days := 0
	if out.IsActive {
		days = int(math.Ceil(expiry.Sub(now).Hours() / 24))
	}
	out.DaysRemaining = &days
	return out
}
