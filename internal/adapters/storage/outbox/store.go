package outbox

import (
	"context"
	"errors"

	domain "studentcenter/internal/domain/outbox"
)

// ErrNotFound is returned by GetByID for unknown ids.
var ErrNotFound = errors.New("outbox entry not found")

// Store persists queued external actions.
type Store interface {
	// GetByID retrieves an entry by its ID.
	// POST: Returns ErrNotFound when no entry matches
	GetByID(ctx context.Context, id string) (domain.Entry, error)

	// Save inserts or updates an entry.
	// PRE: e has been validated
	Save(ctx context.Context, e domain.Entry) error

	// ListPending returns up to limit pending or retrying entries, oldest first.
	ListPending(ctx context.Context, limit int) ([]domain.Entry, error)

	// ListFailed returns up to limit entries that ran out of attempts, most recent first.
	ListFailed(ctx context.Context, limit int) ([]domain.Entry, error)

	// CountByStatus returns the number of entries per status.
	CountByStatus(ctx context.Context) (map[string]int, error)
}
