package orchestrators

import (
	"context"
	"errors"
	"log/slog"

	"studentcenter/internal/adapters/storage/tree"
	"studentcenter/internal/application/paths"
)

// ChangePasswordInput carries input for the change-password orchestrator.
type ChangePasswordInput struct {
	UserID          string
	CurrentPassword string
	NewPassword     string
}

var (
	ErrCurrentPasswordWrong = errors.New("current password is incorrect")
	ErrNewPasswordSame      = errors.New("new password must be different from current password")
)

// ExecuteChangePassword validates the current password and stores the new hash.
// Only passwordHash is rewritten so a concurrent profile edit is not lost.
// PRE: UserID is valid, both passwords are non-empty
// POST: users/{id}/passwordHash matches NewPassword
func ExecuteChangePassword(ctx context.Context, input ChangePasswordInput, deps AccountDeps) error {
	if input.CurrentPassword == "" || input.NewPassword == "" {
		return ErrCurrentPasswordWrong
	}
	u, err := loadUser(ctx, deps.Tree, input.UserID)
	if err != nil {
		return err
	}
	if err := u.CheckPassword(input.CurrentPassword); err != nil {
		slog.Info("auth_event", "event", "password_change_rejected", "user_id", u.ID)
		return ErrCurrentPasswordWrong
	}
	if input.CurrentPassword == input.NewPassword {
		return ErrNewPasswordSame
	}
	if err := u.SetPassword(input.NewPassword); err != nil {
		return err
	}
	if err := deps.Tree.Set(ctx, tree.Join(paths.User(u.ID), "passwordHash"), u.PasswordHash); err != nil {
		return err
	}

	slog.Info("auth_event", "event", "password_changed", "user_id", u.ID)
	return nil
}
