package repository

import (
	"context"
	"time"

	"jobboard-premium/internal/domain/model"
)

// -----------------------------
// Payments
// -----------------------------

type PaymentRepository interface {
	// Create inserts a new row; a duplicate provider reference yields domain.ErrAlreadyExists.
	Create(ctx context.Context, tx Tx, p *model.Payment) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Payment, error)
	FindByReference(ctx context.Context, tx Tx, reference string) (*model.Payment, error)
	// TransitionIfPending moves the row for reference from pending to status in a
	// single conditional update. ownerID restricts the update to one user when
	// non-empty. It reports whether a row was changed; false is not an error.
	TransitionIfPending(ctx context.Context, tx Tx, reference string, status model.PaymentStatus, ownerID string) (bool, error)
	ListByUser(ctx context.Context, tx Tx, userID string, limit int) ([]*model.Payment, error)
	LatestSucceeded(ctx context.Context, tx Tx, userID string) (*model.Payment, error)
	CountByStatus(ctx context.Context, tx Tx, userID string) (map[model.PaymentStatus]int64, error)
	// ListPendingOlderThan pages through pending rows created before olderThan
	// in (created_at, id) order, starting strictly after the cursor.
	ListPendingOlderThan(ctx context.Context, tx Tx, olderThan time.Time, after PendingCursor, limit int) ([]*model.Payment, error)
}

// PendingCursor is a keyset position over pending payments. The zero value
// starts from the oldest row.
type PendingCursor struct {
	CreatedAt time.Time
	ID        string
}

func CursorAt(p *model.Payment) PendingCursor {
	return PendingCursor{CreatedAt: p.CreatedAt, ID: p.ID}
}
