package chat

import (
	"errors"
	"strings"
	"time"
)

// Limits for chat content.
const (
	MaxSubjectLength = 120
	MaxTextLength    = 2000
)

// Domain errors
var (
	ErrEmptySubject = errors.New("thread subject cannot be empty")
	ErrSubjectLong  = errors.New("thread subject cannot exceed 120 characters")
	ErrEmptyText    = errors.New("message cannot be empty")
	ErrTextTooLong  = errors.New("message cannot exceed 2000 characters")
	ErrNotFound     = errors.New("chat thread not found")
	ErrNotAuthor    = errors.New("only the thread author or chat staff can access this thread")
	ErrThreadClosed = errors.New("chat thread is closed")
)

// Thread is an anonymous conversation between one member and the chat staff.
// The author's identity is never stored on the thread; it lives under
// anonymousChat/authors/{threadId}, which only the server reads.
type Thread struct {
	ID            string    `json:"id,omitempty"`
	Subject       string    `json:"subject"`
	CreatedAt     time.Time `json:"createdAt"`
	LastMessageAt time.Time `json:"lastMessageAt"`
	ClosedAt      time.Time `json:"closedAt,omitzero"`
}

// Validate checks if the Thread has valid data.
// PRE: Thread struct is populated
// POST: Returns nil if valid, error otherwise
func (t *Thread) Validate() error {
	s := strings.TrimSpace(t.Subject)
	if s == "" {
		return ErrEmptySubject
	}
	if len(s) > MaxSubjectLength {
		return ErrSubjectLong
	}
	return nil
}

// IsClosed reports whether the thread no longer accepts messages.
func (t *Thread) IsClosed() bool {
	return !t.ClosedAt.IsZero()
}

// Author maps a thread to the member who opened it.
type Author struct {
	UserID string `json:"userId"`
}

// Message is one entry of a thread. Staff replies carry the staff id;
// messages from the anonymous author carry none.
type Message struct {
	ID        string    `json:"id,omitempty"`
	Text      string    `json:"text"`
	FromStaff bool      `json:"fromStaff"`
	StaffID   string    `json:"staffId,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Validate checks if the Message has valid data.
func (m *Message) Validate() error {
	text := strings.TrimSpace(m.Text)
	if text == "" {
		return ErrEmptyText
	}
	if len(text) > MaxTextLength {
		return ErrTextTooLong
	}
	return nil
}
