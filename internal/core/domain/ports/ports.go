package ports

import (
	"context"

	"opdscore/internal/core/domain/models"
)

// FeedSource fetches and parses every acquisition feed page reachable from a catalog.
type FeedSource interface {
	FetchFeeds(ctx context.Context) ([]*models.Feed, error)
}

// StatusStore persists book statuses between runs.
type StatusStore interface {
	Load(ctx context.Context) ([]models.BookStatus, error)
	Save(ctx context.Context, statuses []models.BookStatus) error
	Close() error
}

// StatusTracker records book status transitions.
type StatusTracker interface {
	Get(id models.BookID) (models.BookStatus, bool)
	// Update applies s unless the current status outranks it.
	Update(s models.BookStatus) bool
	// Force applies s unconditionally.
	Force(s models.BookStatus)
	Clear(id models.BookID)
}
