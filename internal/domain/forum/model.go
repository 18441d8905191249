package forum

import (
	"errors"
	"strings"
	"time"
)

// MaxTextLength bounds forum message bodies.
const MaxTextLength = 4000

// Reaction kinds
const (
	ReactionLike    = "like"
	ReactionDislike = "dislike"
)

// Domain errors
var (
	ErrEmptyText       = errors.New("message cannot be empty")
	ErrTextTooLong     = errors.New("message cannot exceed 4000 characters")
	ErrInvalidReaction = errors.New("reaction must be one of: like, dislike")
	ErrNotFound        = errors.New("forum message not found")
)

// Message is one record under organizations/{orgId}/forums/messages.
// Text is Markdown.
type Message struct {
	ID         string    `json:"id,omitempty"`
	Text       string    `json:"text"`
	AuthorID   string    `json:"authorId"`
	AuthorName string    `json:"authorName,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	Reactions  Reactions `json:"reactions"`
}

// Validate checks if the Message has valid data.
// PRE: Message struct is populated
// POST: Returns nil if valid, error otherwise
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

// Reactions holds the users who liked or disliked a message.
// A user appears in at most one of the two sets.
type Reactions struct {
	Likes    map[string]bool `json:"likes,omitempty"`
	Dislikes map[string]bool `json:"dislikes,omitempty"`
}

// Toggle applies userID's reaction: repeating a reaction removes it,
// switching moves the user from one set to the other.
// PRE: kind is like or dislike
// POST: userID is in at most one set
func (r *Reactions) Toggle(userID, kind string) error {
	var set, other *map[string]bool
	switch kind {
	case ReactionLike:
		set, other = &r.Likes, &r.Dislikes
	case ReactionDislike:
		set, other = &r.Dislikes, &r.Likes
	default:
		return ErrInvalidReaction
	}
	if (*set)[userID] {
		delete(*set, userID)
		return nil
	}
	if *set == nil {
		*set = map[string]bool{}
	}
	(*set)[userID] = true
	delete(*other, userID)
	return nil
}

// Counts returns the number of likes and dislikes.
func (r Reactions) Counts() (likes, dislikes int) {
	return len(r.Likes), len(r.Dislikes)
}
