package workshop

import (
	"errors"
	"strings"
	"time"
)

// Limits for workshop content.
const (
	MaxTitleLength       = 120
	MaxDescriptionLength = 2000
	MaxCapacity          = 1000
)

// Domain errors
var (
	ErrEmptyTitle       = errors.New("workshop title cannot be empty")
	ErrTitleLong        = errors.New("workshop title cannot exceed 120 characters")
	ErrDescriptionLong  = errors.New("workshop description cannot exceed 2000 characters")
	ErrInvalidCapacity  = errors.New("capacity must be between 0 (unlimited) and 1000")
	ErrPastDate         = errors.New("workshop date must be in the future")
	ErrFull             = errors.New("workshop is full")
	ErrAlreadyEnrolled  = errors.New("already enrolled in this workshop")
	ErrNotEnrolled      = errors.New("not enrolled in this workshop")
	ErrEnrollmentClosed = errors.New("workshop has already started")
	ErrNotFound         = errors.New("workshop not found")
)

// Workshop is one record under organizations/{orgId}/workshops/items.
// Capacity 0 means unlimited.
type Workshop struct {
	ID          string          `json:"id,omitempty"`
	Title       string          `json:"title"`
	Description string          `json:"description,omitempty"`
	Location    string          `json:"location,omitempty"`
	Date        time.Time       `json:"date"`
	Capacity    int             `json:"capacity"`
	AuthorID    string          `json:"authorId"`
	CreatedAt   time.Time       `json:"createdAt"`
	Attendees   map[string]bool `json:"attendees,omitempty"`
}

// Validate checks if the Workshop has valid data.
// PRE: Workshop struct is populated, CreatedAt set
// POST: Returns nil if valid, error otherwise
func (w *Workshop) Validate() error {
	title := strings.TrimSpace(w.Title)
	if title == "" {
		return ErrEmptyTitle
	}
	if len(title) > MaxTitleLength {
		return ErrTitleLong
	}
	if len(w.Description) > MaxDescriptionLength {
		return ErrDescriptionLong
	}
	if w.Capacity < 0 || w.Capacity > MaxCapacity {
		return ErrInvalidCapacity
	}
	if !w.Date.After(w.CreatedAt) {
		return ErrPastDate
	}
	return nil
}

// SeatsLeft returns the remaining seats, or -1 when unlimited.
func (w *Workshop) SeatsLeft() int {
	if w.Capacity == 0 {
		return -1
	}
	return w.Capacity - len(w.Attendees)
}

// Enroll adds userID to the attendee set.
// PRE: workshop has not started, has a free seat, userID not enrolled
// POST: Attendees[userID] is true
func (w *Workshop) Enroll(userID string, now time.Time) error {
	if !now.Before(w.Date) {
		return ErrEnrollmentClosed
	}
	if w.Attendees[userID] {
		return ErrAlreadyEnrolled
	}
	if w.Capacity > 0 && len(w.Attendees) >= w.Capacity {
		return ErrFull
	}
	if w.Attendees == nil {
		w.Attendees = map[string]bool{}
	}
	w.Attendees[userID] = true
	return nil
}

// Unenroll removes userID from the attendee set.
func (w *Workshop) Unenroll(userID string) error {
	if !w.Attendees[userID] {
		return ErrNotEnrolled
	}
	delete(w.Attendees, userID)
	return nil
}
