// Package catalog implements the item-facing operations behind the HTTP
// surface: listing, the status state machine, engagement recording and the
// administrative purge. Status changes that move files are serialized per
// item so a slow store move cannot interleave with a second change to the
// same item.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/drivehit/gallery-sync/internal/domain"
	"github.com/drivehit/gallery-sync/internal/port"
)

// Listing page size bounds
const (
	DefaultPageSize = 24
	MaxPageSize     = 100
)

// Catalog exposes item operations over the repositories and the store
type Catalog struct {
	items       port.ItemRepository
	engagement  port.EngagementRepository
	deadLetters port.DeadLetterRepository
	store       port.StoreClient
	notifier    port.Notifier
	logger      *zap.Logger

	mu       sync.Mutex
	inFlight map[string]struct{}
}

// New creates a new Catalog
func New(items port.ItemRepository, engagement port.EngagementRepository, deadLetters port.DeadLetterRepository, store port.StoreClient, notifier port.Notifier, logger *zap.Logger) *Catalog {
	return &Catalog{
		items:       items,
		engagement:  engagement,
		deadLetters: deadLetters,
		store:       store,
		notifier:    notifier,
		logger:      logger,
		inFlight:    make(map[string]struct{}),
	}
}

// ListItems returns one page of items. Public callers see published items
// only; the admin listing passes admin=true and may filter any status.
func (c *Catalog) ListItems(filter port.ItemFilter, admin bool) ([]*domain.Item, int, error) {
	if !admin {
		filter.Status = domain.StatusPublished
	}
	if filter.Status != "" && !domain.ValidStatus(filter.Status) {
		return nil, 0, domain.ErrInvalidInput
	}
	if filter.Limit <= 0 {
		filter.Limit = DefaultPageSize
	}
	if filter.Limit > MaxPageSize {
		filter.Limit = MaxPageSize
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	return c.items.List(filter)
}

// GetItem returns one item by id
func (c *Catalog) GetItem(id string) (*domain.Item, error) {
	return c.items.Get(id)
}

// SetStatus applies a status change. Published and hidden toggle without
// touching the store; archiving moves the file to the archive location and
// restoring places it back under the given category. A different category on
// an active item recategorizes it: the file moves to the new category folder
// even when the status itself is unchanged.
func (c *Catalog) SetStatus(ctx context.Context, id, status, category string) (*domain.Item, error) {
	if err := c.acquire(id); err != nil {
		return nil, err
	}
	defer c.release(id)

	item, err := c.items.Get(id)
	if err != nil {
		return nil, err
	}
	if err := item.ValidateTransition(status, category); err != nil {
		return nil, err
	}

	recategorize := category != "" && category != item.Category &&
		status != domain.StatusArchived && !item.IsArchived()
	if item.Status == status && !recategorize {
		return item, nil
	}

	wasArchived := item.IsArchived()
	item.Status = status
	item.UpdatedAt = time.Now()

	switch {
	case status == domain.StatusArchived:
		if err := c.store.MoveToArchive(ctx, id); err != nil {
			return nil, fmt.Errorf("archive file %s: %w", id, err)
		}
		if err := c.items.Archive(item); err != nil {
			return nil, err
		}
	case wasArchived:
		effective, err := c.store.MoveToCategory(ctx, id, category)
		if err != nil {
			return nil, fmt.Errorf("restore file %s: %w", id, err)
		}
		item.Category = effective
		if err := c.items.Restore(item); err != nil {
			return nil, err
		}
	default:
		if recategorize {
			effective, err := c.store.MoveToCategory(ctx, id, category)
			if err != nil {
				return nil, fmt.Errorf("recategorize file %s: %w", id, err)
			}
			item.Category = effective
		}
		if err := c.items.Upsert(item); err != nil {
			return nil, err
		}
	}

	c.logger.Info("item status changed",
		zap.String("id", id),
		zap.String("status", status),
		zap.String("category", item.Category))
	c.notifyChanged(item)
	return item, nil
}

// RecordEngagement records one interaction. Likes toggle idempotently per
// user and item; comments and views only accumulate. The item's cached
// counters are refreshed from the event log.
func (c *Catalog) RecordEngagement(id, user, eventType string) (*domain.Item, error) {
	if user == "" || !domain.ValidEngagement(eventType) {
		return nil, domain.ErrInvalidInput
	}

	item, err := c.items.Get(id)
	if err != nil {
		return nil, err
	}

	if eventType == domain.EngagementLike {
		liked, err := c.engagement.ToggleLike(id, user)
		if err != nil {
			return nil, err
		}
		c.logger.Debug("like toggled",
			zap.String("id", id),
			zap.Bool("liked", liked))
	} else {
		err := c.engagement.Record(&domain.EngagementEvent{
			ItemID:    id,
			User:      user,
			Type:      eventType,
			CreatedAt: time.Now(),
		})
		if err != nil {
			return nil, err
		}
	}

	likes, comments, views, err := c.engagement.Counts(id)
	if err != nil {
		return nil, err
	}
	item.Likes = likes
	item.Comments = comments
	item.Views = views
	item.UpdatedAt = time.Now()
	if err := c.items.Upsert(item); err != nil {
		return nil, err
	}

	c.notifier.Enqueue("/items/" + item.ID)
	return item, nil
}

// Purge permanently removes an item: its row, its engagement events and the
// stored file. This is the only destructive operation in the system.
func (c *Catalog) Purge(ctx context.Context, id string) error {
	if err := c.acquire(id); err != nil {
		return err
	}
	defer c.release(id)

	item, err := c.items.Get(id)
	if err != nil {
		return err
	}

	if err := c.engagement.DeleteForItem(id); err != nil {
		return err
	}
	if err := c.items.Delete(id); err != nil {
		return err
	}
	// The file may already be gone; the record removal stands either way
	if err := c.store.Delete(ctx, id); err != nil && !errors.Is(err, domain.ErrNotFound) {
		c.logger.Warn("failed to delete stored file",
			zap.String("id", id),
			zap.Error(err))
	}

	c.logger.Info("item purged", zap.String("id", id))
	c.notifyChanged(item)
	return nil
}

// ListDeadLetters returns recent dead-lettered notifications
func (c *Catalog) ListDeadLetters(limit int) ([]*domain.DeadLetterEntry, error) {
	return c.deadLetters.List(limit)
}

func (c *Catalog) acquire(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, busy := c.inFlight[id]; busy {
		return domain.ErrLockTimeout
	}
	c.inFlight[id] = struct{}{}
	return nil
}

func (c *Catalog) release(id string) {
	c.mu.Lock()
	delete(c.inFlight, id)
	c.mu.Unlock()
}

func (c *Catalog) notifyChanged(item *domain.Item) {
	c.notifier.Enqueue("/items/" + item.ID)
	c.notifier.Enqueue("/category/" + domain.Slugify(item.Category))
	c.notifier.Enqueue("/")
}
