package profile

import (
	"encoding/base64"
	"errors"
	"regexp"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Max length constants for user-editable fields.
const (
	MaxEmailLength    = 254
	MaxNameLength     = 60
	MinPasswordLength = 12
)

var usernamePattern = regexp.MustCompile(`^[a-z0-9_]{3,30}$`)

// Domain errors
var (
	ErrNotFound         = errors.New("user not found")
	ErrEmptyEmail       = errors.New("email cannot be empty")
	ErrInvalidEmail     = errors.New("email must contain '@'")
	ErrEmptyName        = errors.New("name and surname cannot be empty")
	ErrNameTooLong      = errors.New("name and surname cannot exceed 60 characters")
	ErrInvalidUsername  = errors.New("username must be 3-30 lowercase letters, digits or underscores")
	ErrPasswordTooShort = errors.New("password must be at least 12 characters")
	ErrWrongPassword    = errors.New("incorrect email or password")
	ErrEmailTaken       = errors.New("email is already registered")
	ErrNoCourse         = errors.New("a course assignment is required")
)

// User is the global profile stored at users/{id}.
type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Surname      string    `json:"surname"`
	Username     string    `json:"username"`
	Photo        string    `json:"photo,omitempty"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"passwordHash,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Validate checks if the User has valid data.
// PRE: User struct is populated
// POST: Returns nil if valid, error otherwise
func (u *User) Validate() error {
	email := strings.TrimSpace(u.Email)
	if email == "" {
		return ErrEmptyEmail
	}
	if len(email) > MaxEmailLength || !strings.Contains(email, "@") {
		return ErrInvalidEmail
	}
	if strings.TrimSpace(u.Name) == "" || strings.TrimSpace(u.Surname) == "" {
		return ErrEmptyName
	}
	if len(u.Name) > MaxNameLength || len(u.Surname) > MaxNameLength {
		return ErrNameTooLong
	}
	if !usernamePattern.MatchString(u.Username) {
		return ErrInvalidUsername
	}
	return nil
}

// NormalizeEmail lowercases and trims an address for lookups.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// EmailKey encodes a normalized address as a single tree path segment
// for the userEmails/{key} login index.
func EmailKey(email string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(NormalizeEmail(email)))
}

// SetPassword hashes and stores a new password.
// PRE: password has at least MinPasswordLength characters
// POST: PasswordHash is a bcrypt hash of password
func (u *User) SetPassword(password string) error {
	if len(password) < MinPasswordLength {
		return ErrPasswordTooShort
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = string(hash)
	return nil
}

// CheckPassword compares password against the stored hash.
func (u *User) CheckPassword(password string) error {
	if u.PasswordHash == "" {
		return ErrWrongPassword
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return ErrWrongPassword
	}
	return nil
}

// DisplayName returns "Name Surname".
func (u *User) DisplayName() string {
	return strings.TrimSpace(u.Name + " " + u.Surname)
}

// Public returns a copy safe to send to other users.
func (u User) Public() User {
	u.PasswordHash = ""
	u.Email = ""
	return u
}

// OrgProfile is the per-organization profile stored at orgProfiles/{orgId}/{userId}.
type OrgProfile struct {
	Course         string    `json:"course"`
	DocumentNumber string    `json:"documentNumber,omitempty"`
	JoinedAt       time.Time `json:"joinedAt"`
}

// Validate checks if the OrgProfile has valid data.
func (p *OrgProfile) Validate() error {
	if strings.TrimSpace(p.Course) == "" {
		return ErrNoCourse
	}
	return nil
}
