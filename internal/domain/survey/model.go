package survey

import (
	"errors"
	"strings"
	"time"
)

// Limits for survey content.
const (
	MinOptions        = 2
	MaxOptions        = 10
	MaxQuestionLength = 300
	MaxOptionLength   = 120
)

// Domain errors
var (
	ErrEmptyQuestion   = errors.New("survey question cannot be empty")
	ErrQuestionTooLong = errors.New("survey question cannot exceed 300 characters")
	ErrOptionCount     = errors.New("survey needs between 2 and 10 options")
	ErrInvalidOption   = errors.New("option index is out of range")
	ErrBadOptionText   = errors.New("options must be unique, non-empty and at most 120 characters")
	ErrDeadlinePast    = errors.New("survey deadline must be in the future")
	ErrClosed          = errors.New("survey is closed")
	ErrAlreadyClosed   = errors.New("survey is already closed")
	ErrNotFound        = errors.New("survey not found")
)

// Survey is one record under organizations/{orgId}/surveys/items.
// Votes map user id to a single option index; the latest vote wins.
type Survey struct {
	ID        string         `json:"id,omitempty"`
	Question  string         `json:"question"`
	Options   []string       `json:"options"`
	Deadline  time.Time      `json:"deadline"`
	AuthorID  string         `json:"authorId"`
	CreatedAt time.Time      `json:"createdAt"`
	ClosedAt  time.Time      `json:"closedAt,omitzero"`
	Votes     map[string]int `json:"votes,omitempty"`
}

// Validate checks if the Survey has valid data.
// PRE: Survey struct is populated, CreatedAt set
// POST: Returns nil if valid, error otherwise
func (s *Survey) Validate() error {
	q := strings.TrimSpace(s.Question)
	if q == "" {
		return ErrEmptyQuestion
	}
	if len(q) > MaxQuestionLength {
		return ErrQuestionTooLong
	}
	if len(s.Options) < MinOptions || len(s.Options) > MaxOptions {
		return ErrOptionCount
	}
	seen := make(map[string]bool, len(s.Options))
	for _, o := range s.Options {
		o = strings.TrimSpace(o)
		if o == "" || len(o) > MaxOptionLength || seen[o] {
			return ErrBadOptionText
		}
		seen[o] = true
	}
	if !s.Deadline.After(s.CreatedAt) {
		return ErrDeadlinePast
	}
	return nil
}

// IsOpen reports whether votes are accepted at now.
// The deadline instant itself is already closed.
func (s *Survey) IsOpen(now time.Time) bool {
	return s.ClosedAt.IsZero() && now.Before(s.Deadline)
}

// CheckVote validates a vote for option at now.
// PRE: s was loaded from storage
// POST: Returns ErrClosed past the deadline or after Close, ErrInvalidOption for bad indexes
func (s *Survey) CheckVote(option int, now time.Time) error {
	if !s.IsOpen(now) {
		return ErrClosed
	}
	if option < 0 || option >= len(s.Options) {
		return ErrInvalidOption
	}
	return nil
}

// Close ends voting early.
// PRE: survey is not closed
// POST: ClosedAt is now
func (s *Survey) Close(now time.Time) error {
	if !s.ClosedAt.IsZero() {
		return ErrAlreadyClosed
	}
	s.ClosedAt = now
	return nil
}

// Tally counts votes per option. Out-of-range indexes are ignored.
func Tally(votes map[string]int, options int) []int {
	counts := make([]int, options)
	for _, idx := range votes {
		if idx >= 0 && idx < options {
			counts[idx]++
		}
	}
	return counts
}
