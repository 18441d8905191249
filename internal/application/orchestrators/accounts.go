package orchestrators

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"studentcenter/internal/adapters/storage/tree"
	"studentcenter/internal/application/gate"
	"studentcenter/internal/application/paths"
	"studentcenter/internal/domain/profile"
)

// ErrInvalidCredentials hides whether the email or the password was wrong.
var ErrInvalidCredentials = profile.ErrWrongPassword

// AccountDeps holds dependencies for registration and login.
type AccountDeps struct {
	Tree       tree.Store
	GenerateID func() string
	Now        func() time.Time
}

func loadUser(ctx context.Context, r gate.Reader, userID string) (profile.User, error) {
	if err := paths.CheckIDs(userID); err != nil {
		return profile.User{}, err
	}
	snap, err := r.Get(ctx, paths.User(userID))
	if err != nil {
		return profile.User{}, err
	}
	if !snap.Exists() {
		return profile.User{}, profile.ErrNotFound
	}
	var u profile.User
	if err := snap.Decode(&u); err != nil {
		return profile.User{}, err
	}
	u.ID = userID
	return u, nil
}

// --- Register ---

// RegisterInput carries input for creating a user.
type RegisterInput struct {
	Name     string
	Surname  string
	Username string
	Email    string
	Password string
	Photo    string
}

// ExecuteRegister creates a user and claims its email in the login index.
// PRE: password has at least 12 characters; email not registered
// POST: users/{id} and userEmails/{key} exist
// INVARIANT: an email maps to at most one user
func ExecuteRegister(ctx context.Context, input RegisterInput, deps AccountDeps) (profile.User, error) {
	u := profile.User{
		ID:        deps.GenerateID(),
		Name:      strings.TrimSpace(input.Name),
		Surname:   strings.TrimSpace(input.Surname),
		Username:  strings.ToLower(strings.TrimSpace(input.Username)),
		Email:     profile.NormalizeEmail(input.Email),
		Photo:     input.Photo,
		CreatedAt: deps.Now(),
	}
	if err := u.Validate(); err != nil {
		return profile.User{}, err
	}
	if err := u.SetPassword(input.Password); err != nil {
		return profile.User{}, err
	}

	// Claim the email first so concurrent registrations cannot both succeed.
	_, err := deps.Tree.Transact(ctx, paths.UserEmail(u.Email), func(cur tree.Snapshot) (any, error) {
		if cur.Exists() {
			return nil, profile.ErrEmailTaken
		}
		return u.ID, nil
	})
	if err != nil {
		return profile.User{}, err
	}
	if err := deps.Tree.Set(ctx, paths.User(u.ID), u); err != nil {
		if rbErr := deps.Tree.Delete(ctx, paths.UserEmail(u.Email)); rbErr != nil {
			slog.Error("auth_event", "event", "email_claim_rollback_failed", "user_id", u.ID, "error", rbErr)
		}
		return profile.User{}, err
	}

	slog.Info("auth_event", "event", "user_registered", "user_id", u.ID, "username", u.Username)
	return u, nil
}

// --- Login ---

// LoginInput carries input for the login orchestrator.
type LoginInput struct {
	Email    string
	Password string
}

// ExecuteLogin checks credentials and returns the user for session creation.
// PRE: Valid email and password provided
// POST: returns ErrInvalidCredentials for an unknown email or a wrong password
func ExecuteLogin(ctx context.Context, input LoginInput, deps AccountDeps) (profile.User, error) {
	if input.Email == "" || input.Password == "" {
		return profile.User{}, ErrInvalidCredentials
	}
	snap, err := deps.Tree.Get(ctx, paths.UserEmail(input.Email))
	if err != nil {
		return profile.User{}, err
	}
	var userID string
	if !snap.Exists() || snap.Decode(&userID) != nil {
		slog.Info("auth_event", "event", "login_failed", "reason", "unknown_email")
		return profile.User{}, ErrInvalidCredentials
	}

	u, err := loadUser(ctx, deps.Tree, userID)
	if errors.Is(err, profile.ErrNotFound) {
		slog.Warn("auth_event", "event", "login_failed", "reason", "dangling_email_index", "user_id", userID)
		return profile.User{}, ErrInvalidCredentials
	}
	if err != nil {
		return profile.User{}, err
	}
	if err := u.CheckPassword(input.Password); err != nil {
		slog.Info("auth_event", "event", "login_failed", "reason", "wrong_password", "user_id", u.ID)
		return profile.User{}, ErrInvalidCredentials
	}

	slog.Info("auth_event", "event", "login_success", "user_id", u.ID)
	return u, nil
}
