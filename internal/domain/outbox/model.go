package outbox

import (
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// Status constants for the entry lifecycle:
// pending -> retrying -> done, or -> failed once attempts run out.
const (
	StatusPending  = "pending"
	StatusRetrying = "retrying"
	StatusDone     = "done"
	StatusFailed   = "failed"
)

// ActionTypeEmail is the only external action the platform queues.
const ActionTypeEmail = "email"

// DefaultMaxAttempts applies when an entry is created without a limit.
const DefaultMaxAttempts = 5

// Domain errors.
var (
	ErrEmptyActionType = errors.New("action type is required")
	ErrEmptyPayload    = errors.New("payload is required")
	ErrInvalidEmail    = errors.New("email payload needs a recipient, subject and body")
	ErrMaxRetries      = errors.New("max retry attempts reached")
)

// Entry is one queued external action.
type Entry struct {
	ID              string
	ActionType      string
	Payload         string // JSON, decoded per action type
	Status          string
	Attempts        int
	MaxAttempts     int
	LastAttemptedAt time.Time
	CreatedAt       time.Time
	ExternalID      string // provider message id once delivered
	ErrorMessage    string
}

// EmailPayload is the Payload of an ActionTypeEmail entry.
// Body is Markdown and is rendered to HTML at send time.
type EmailPayload struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// Validate checks the payload has everything a provider needs.
func (p EmailPayload) Validate() error {
	if !strings.Contains(p.To, "@") || strings.TrimSpace(p.Subject) == "" || strings.TrimSpace(p.Body) == "" {
		return ErrInvalidEmail
	}
	return nil
}

// NewEmail builds a pending email entry.
// PRE: p is valid
// POST: returns an entry ready to be stored
func NewEmail(id string, p EmailPayload, now time.Time) (Entry, error) {
	if err := p.Validate(); err != nil {
		return Entry{}, err
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return Entry{}, err
	}
	return Entry{
		ID:          id,
		ActionType:  ActionTypeEmail,
		Payload:     string(raw),
		Status:      StatusPending,
		MaxAttempts: DefaultMaxAttempts,
		CreatedAt:   now,
	}, nil
}

// Email decodes the payload of an email entry.
func (e *Entry) Email() (EmailPayload, error) {
	var p EmailPayload
	if e.ActionType != ActionTypeEmail {
		return p, ErrEmptyActionType
	}
	if err := json.Unmarshal([]byte(e.Payload), &p); err != nil {
		return p, err
	}
	return p, p.Validate()
}

// Validate checks that the Entry has valid data.
// PRE: Entry struct is populated
// POST: Returns nil if valid, error otherwise; MaxAttempts defaulted
func (e *Entry) Validate() error {
	if e.ActionType == "" {
		return ErrEmptyActionType
	}
	if e.Payload == "" {
		return ErrEmptyPayload
	}
	if e.CreatedAt.IsZero() {
		return errors.New("created_at must be set")
	}
	if e.MaxAttempts <= 0 {
		e.MaxAttempts = DefaultMaxAttempts
	}
	return nil
}

// CanRetry reports whether the worker should attempt the entry again.
func (e *Entry) CanRetry() bool {
	return (e.Status == StatusPending || e.Status == StatusRetrying) && e.Attempts < e.MaxAttempts
}

// IsTerminal reports whether the entry will never be attempted again.
func (e *Entry) IsTerminal() bool {
	return e.Status == StatusDone || e.Status == StatusFailed
}

// Due reports whether the backoff since the last attempt has elapsed.
func (e *Entry) Due(now time.Time, base, max time.Duration) bool {
	if e.Attempts == 0 || e.LastAttemptedAt.IsZero() {
		return true
	}
	return !now.Before(e.LastAttemptedAt.Add(e.NextRetryDelay(base, max)))
}

// MarkAttempt records an attempt starting at now.
// POST: Attempts incremented, status retrying
func (e *Entry) MarkAttempt(now time.Time) {
	e.Attempts++
	e.LastAttemptedAt = now
	e.Status = StatusRetrying
}

// MarkSuccess marks the entry delivered.
func (e *Entry) MarkSuccess(externalID string) {
	e.Status = StatusDone
	e.ExternalID = externalID
	e.ErrorMessage = ""
}

// MarkFailed records err and gives up once attempts are exhausted.
func (e *Entry) MarkFailed(err error) {
	e.ErrorMessage = err.Error()
	if e.Attempts >= e.MaxAttempts {
		e.Status = StatusFailed
	}
}

// NextRetryDelay is base * 2^(attempts-1), capped at max.
func (e *Entry) NextRetryDelay(base, max time.Duration) time.Duration {
	if e.Attempts <= 1 {
		return base
	}
	delay := base << (e.Attempts - 1)
	if delay > max || delay <= 0 {
		return max
	}
	return delay
}
