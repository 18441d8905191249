package post

import (
	"errors"
	"strings"
	"time"
)

// Limits for post content.
const (
	MaxTitleLength = 120
	MaxBodyLength  = 10000
)

// Domain errors
var (
	ErrEmptyTitle = errors.New("post title cannot be empty")
	ErrTitleLong  = errors.New("post title cannot exceed 120 characters")
	ErrEmptyBody  = errors.New("post body cannot be empty")
	ErrBodyLong   = errors.New("post body cannot exceed 10000 characters")
	ErrNotFound   = errors.New("post not found")
)

// Post is one feed entry under organizations/{orgId}/posts/items.
// Body supports Markdown formatting.
type Post struct {
	ID         string          `json:"id,omitempty"`
	Title      string          `json:"title"`
	Body       string          `json:"body"`
	AuthorID   string          `json:"authorId"`
	AuthorName string          `json:"authorName,omitempty"`
	CreatedAt  time.Time       `json:"createdAt"`
	Likes      map[string]bool `json:"likes,omitempty"`
}

// Validate checks if the Post has valid data.
// PRE: Post struct is populated
// POST: Returns nil if valid, error otherwise
func (p *Post) Validate() error {
	title := strings.TrimSpace(p.Title)
	if title == "" {
		return ErrEmptyTitle
	}
	if len(title) > MaxTitleLength {
		return ErrTitleLong
	}
	body := strings.TrimSpace(p.Body)
	if body == "" {
		return ErrEmptyBody
	}
	if len(body) > MaxBodyLength {
		return ErrBodyLong
	}
	return nil
}

// ToggleLike adds or removes userID's like and reports whether it is now liked.
func ToggleLike(likes map[string]bool, userID string) (map[string]bool, bool) {
	if likes[userID] {
		delete(likes, userID)
		return likes, false
	}
	if likes == nil {
		likes = map[string]bool{}
	}
	likes[userID] = true
	return likes, true
}
