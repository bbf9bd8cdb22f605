package repository

import (
	"context"

	"jobboard-premium/internal/domain/model"
)

// -----------------------------
// Users
// -----------------------------

type UserRepository interface {
	// Ensure inserts u unless a row with its id exists and reports whether it
	// did. An existing row is never modified, so the level cannot go back.
	Ensure(ctx context.Context, tx Tx, u *model.User) (bool, error)
	FindByID(ctx context.Context, tx Tx, id string) (*model.User, error)
	// SetLevel assigns level and reports whether the stored value changed.
	SetLevel(ctx context.Context, tx Tx, id string, level model.UserLevel) (bool, error)
}
