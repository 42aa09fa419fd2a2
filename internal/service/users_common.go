package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/spec-kit/user-service/internal/repository"
	apperrors "github.com/spec-kit/user-service/pkg/util"
)

const (
	userKeyPrefix = "user:"
	userListKey   = userKeyPrefix + "all"
)

func userKey(id string) string {
	return userKeyPrefix + id
}

// ensureEmailAvailable fails with Conflict when email belongs to a user other
// than exceptID, whether that user is active or not.
func ensureEmailAvailable(ctx context.Context, users repository.UserRepository, email, exceptID string) error {
	existing, err := users.FindByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	if err != nil {
		return apperrors.NewInternalError(fmt.Errorf("find user by email: %w", err))
	}
	if existing.ID == exceptID {
		return nil
	}
	return emailConflict(email)
}

func emailConflict(email string) error {
	return apperrors.NewConflict("email already registered", map[string]any{"email": email})
}

// mapStoreError translates repository sentinels into domain errors. The unique
// constraint is the backstop for concurrent writers that both passed the
// pre-check, so it reports the same Conflict.
func mapStoreError(op, email string, err error) error {
	switch {
	case errors.Is(err, repository.ErrEmailTaken):
		return emailConflict(email)
	case errors.Is(err, repository.ErrNotFound):
		return apperrors.NewNotFound("user", nil)
	default:
		return apperrors.NewInternalError(fmt.Errorf("%s: %w", op, err))
	}
}
