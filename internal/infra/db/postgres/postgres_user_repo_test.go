//go:build integration

package postgres

import (
	"context"
	"errors"
	"testing"

	"jobboard-premium/internal/domain"
	"jobboard-premium/internal/domain/model"
)

func TestUserRepo_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode.")
	}

	repo := NewPostgresUserRepo(testPool)
	ctx := context.Background()

	t.Run("should ensure and find a user", func(t *testing.T) {
		cleanup(t)

		newUser, err := model.NewUser("user-int-1", "integration@example.com")
		if err != nil {
			t.Fatalf("model.NewUser() failed: %v", err)
		}
		created, err := repo.Ensure(ctx, nil, newUser)
		if err != nil || !created {
			t.Fatalf("Failed to ensure new user: created=%v err=%v", created, err)
		}

		found, err := repo.FindByID(ctx, nil, newUser.ID)
		if err != nil {
			t.Fatalf("Failed to find user by ID: %v", err)
		}
		if found.Email != "integration@example.com" || found.Level != model.UserLevelFree {
			t.Errorf("unexpected user %+v", found)
		}

		if _, err := repo.FindByID(ctx, nil, "missing"); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("SetLevel reports only effective changes", func(t *testing.T) {
		cleanup(t)
		u, _ := model.NewUser("user-int-2", "upgrade@example.com")
		if _, err := repo.Ensure(ctx, nil, u); err != nil {
			t.Fatalf("Ensure: %v", err)
		}

		changed, err := repo.SetLevel(ctx, nil, u.ID, model.UserLevelPremium)
		if err != nil || !changed {
			t.Fatalf("first upgrade: changed=%v err=%v", changed, err)
		}
		upgraded, _ := repo.FindByID(ctx, nil, u.ID)

		changed, err = repo.SetLevel(ctx, nil, u.ID, model.UserLevelPremium)
		if err != nil || changed {
			t.Fatalf("second upgrade: changed=%v err=%v", changed, err)
		}
		again, _ := repo.FindByID(ctx, nil, u.ID)
		if again.Level != model.UserLevelPremium || !again.UpdatedAt.Equal(upgraded.UpdatedAt) {
			t.Error("repeated upgrade must not modify the row")
		}

		if _, err := repo.SetLevel(ctx, nil, "missing", model.UserLevelPremium); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("Ensure never downgrades and allows users without email", func(t *testing.T) {
		cleanup(t)
		u, _ := model.NewUser("user-int-3", "")
		if created, err := repo.Ensure(ctx, nil, u); err != nil || !created {
			t.Fatalf("first ensure: created=%v err=%v", created, err)
		}
		other, _ := model.NewUser("user-int-4", "")
		if _, err := repo.Ensure(ctx, nil, other); err != nil {
			t.Fatalf("second user without email: %v", err)
		}
		if _, err := repo.SetLevel(ctx, nil, u.ID, model.UserLevelPremium); err != nil {
			t.Fatalf("SetLevel: %v", err)
		}

		again, _ := model.NewUser("user-int-3", "")
		created, err := repo.Ensure(ctx, nil, again)
		if err != nil || created {
			t.Fatalf("repeat ensure: created=%v err=%v", created, err)
		}
		found, _ := repo.FindByID(ctx, nil, u.ID)
		if found.Level != model.UserLevelPremium || found.Email != "" {
			t.Errorf("existing row changed: %+v", found)
		}
	})
}
