package port

import (
	"time"

	"github.com/drivehit/gallery-sync/internal/domain"
)

// ItemFilter narrows List results
type ItemFilter struct {
	Status   string
	Category string
	Offset   int
	Limit    int
}

// ItemRepository is the authoritative metadata index. Active and archived
// items live in separate tables; Get and FindByHash consult both.
type ItemRepository interface {
	Get(id string) (*domain.Item, error)
	FindByHash(hash string) (*domain.Item, error)
	List(filter ItemFilter) ([]*domain.Item, int, error)
	ListIDs() (map[string]*domain.Item, error)
	Upsert(item *domain.Item) error
	// Archive moves an item row to the archive table
	Archive(item *domain.Item) error
	// Restore moves an item row back to the active table
	Restore(item *domain.Item) error
	Delete(id string) error
}

// DeadLetterRepository is the durable sink for notifications that exhausted
// delivery retries.
type DeadLetterRepository interface {
	Append(entry *domain.DeadLetterEntry) error
	List(limit int) ([]*domain.DeadLetterEntry, error)
	DeleteOlderThan(cutoff time.Time) (int, error)
}

// EngagementRepository records likes, comments and views. Likes are an
// idempotent per-user toggle.
type EngagementRepository interface {
	// ToggleLike records or removes a like; returns true if liked after
	ToggleLike(itemID, user string) (bool, error)
	Record(event *domain.EngagementEvent) error
	Counts(itemID string) (likes, comments, views int64, err error)
	DeleteForItem(itemID string) error
}

// Store bundles the backing store handles plus lifecycle
type Store interface {
	Items() ItemRepository
	DeadLetters() DeadLetterRepository
	Engagement() EngagementRepository
	Ping() error
	Close() error
}
