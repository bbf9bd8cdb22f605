package model

import (
	"strings"
	"time"

	"jobboard-premium/internal/domain"
)

type UserLevel string

const (
	UserLevelFree    UserLevel = "free"
	UserLevelPremium UserLevel = "premium"
)

// User is the account collaborator. Ids come from the session issuer's
// subject claim. This service registers an id the first time it starts a
// payment and afterwards only promotes its level.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Level     UserLevel `json:"level"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NewUser builds a free user. Email is optional: bearer tokens carry only the id.
func NewUser(id, email string) (*User, error) {
	if strings.TrimSpace(id) == "" {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now()
	return &User{
		ID:        id,
		Email:     email,
		Level:     UserLevelFree,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (u *User) IsPremium() bool { return u != nil && u.Level == UserLevelPremium }
