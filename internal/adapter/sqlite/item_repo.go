package sqlite

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/drivehit/gallery-sync/internal/domain"
	"github.com/drivehit/gallery-sync/internal/port"
)

const itemFields = `id, name, category, slug, status, size, mime_type,
	content_hash, fingerprint, caption, aspect_ratio, likes, comments, views,
	created_at, updated_at`

// ItemRepo implements port.ItemRepository over the items and items_archive
// tables. Rows move between the two on archive and restore; id stays the key.
type ItemRepo struct {
	db *sql.DB
}

var _ port.ItemRepository = (*ItemRepo)(nil)

// Get retrieves an item by id, consulting active then archived rows
func (r *ItemRepo) Get(id string) (*domain.Item, error) {
	for _, table := range []string{"items", "items_archive"} {
		item, err := r.getFrom(table, "id", id)
		if err != nil {
			return nil, err
		}
		if item != nil {
			return item, nil
		}
	}
	return nil, domain.ErrNotFound
}

// FindByHash retrieves an item by content hash for cross-id dedup
func (r *ItemRepo) FindByHash(hash string) (*domain.Item, error) {
	if hash == "" {
		return nil, nil
	}
	for _, table := range []string{"items", "items_archive"} {
		item, err := r.getFrom(table, "content_hash", hash)
		if err != nil {
			return nil, err
		}
		if item != nil {
			return item, nil
		}
	}
	return nil, nil
}

func (r *ItemRepo) getFrom(table, column, value string) (*domain.Item, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s = ? LIMIT 1`, itemFields, table, column)
	row := r.db.QueryRow(query, value)
	item, err := scanItem(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return item, nil
}

// List returns items matching the filter along with the unfiltered total
func (r *ItemRepo) List(filter port.ItemFilter) ([]*domain.Item, int, error) {
	table := "items"
	if filter.Status == domain.StatusArchived {
		table = "items_archive"
	}

	var conds []string
	var args []any
	if filter.Status != "" && filter.Status != domain.StatusArchived {
		conds = append(conds, "status = ?")
		args = append(args, filter.Status)
	}
	if filter.Category != "" {
		conds = append(conds, "category = ?")
		args = append(args, filter.Category)
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := r.db.QueryRow("SELECT COUNT(*) FROM "+table+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`SELECT %s FROM %s%s ORDER BY updated_at DESC, id`, itemFields, table, where)
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", filter.Limit, filter.Offset)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*domain.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, item)
	}
	return items, total, rows.Err()
}

// ListIDs snapshots every known item, active and archived, keyed by id
func (r *ItemRepo) ListIDs() (map[string]*domain.Item, error) {
	snapshot := make(map[string]*domain.Item)
	for _, table := range []string{"items", "items_archive"} {
		rows, err := r.db.Query(fmt.Sprintf(`SELECT %s FROM %s`, itemFields, table))
		if err != nil {
			return nil, err
		}
		for rows.Next() {
			item, err := scanItem(rows)
			if err != nil {
				rows.Close()
				return nil, err
			}
			snapshot[item.ID] = item
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, err
		}
		rows.Close()
	}
	return snapshot, nil
}

// Upsert writes the item into the table matching its status
func (r *ItemRepo) Upsert(item *domain.Item) error {
	table := "items"
	if item.IsArchived() {
		table = "items_archive"
	}
	return r.upsertInto(table, item)
}

func (r *ItemRepo) upsertInto(table string, item *domain.Item) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (
			id, name, category, slug, status, size, mime_type,
			content_hash, fingerprint, caption, aspect_ratio,
			likes, comments, views
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name, category = excluded.category,
			slug = excluded.slug, status = excluded.status,
			size = excluded.size, mime_type = excluded.mime_type,
			content_hash = excluded.content_hash,
			fingerprint = excluded.fingerprint,
			caption = excluded.caption, aspect_ratio = excluded.aspect_ratio,
			likes = excluded.likes, comments = excluded.comments,
			views = excluded.views,
			updated_at = CURRENT_TIMESTAMP
	`, table)

	_, err := r.db.Exec(query,
		item.ID, item.Name, item.Category, item.Slug, item.Status,
		item.Size, item.MimeType, item.ContentHash, item.Fingerprint,
		item.Caption, item.AspectRatio, item.Likes, item.Comments, item.Views,
	)
	return err
}

// Archive relocates an item row from the active to the archive table
func (r *ItemRepo) Archive(item *domain.Item) error {
	item.Status = domain.StatusArchived
	if err := r.upsertInto("items_archive", item); err != nil {
		return err
	}
	_, err := r.db.Exec("DELETE FROM items WHERE id = ?", item.ID)
	return err
}

// Restore relocates an item row from the archive back to the active table
func (r *ItemRepo) Restore(item *domain.Item) error {
	if item.Status == domain.StatusArchived {
		item.Status = domain.StatusPublished
	}
	if err := r.upsertInto("items", item); err != nil {
		return err
	}
	_, err := r.db.Exec("DELETE FROM items_archive WHERE id = ?", item.ID)
	return err
}

// Delete removes an item row from both tables
func (r *ItemRepo) Delete(id string) error {
	if _, err := r.db.Exec("DELETE FROM items WHERE id = ?", id); err != nil {
		return err
	}
	_, err := r.db.Exec("DELETE FROM items_archive WHERE id = ?", id)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (*domain.Item, error) {
	item := &domain.Item{}
	err := row.Scan(
		&item.ID, &item.Name, &item.Category, &item.Slug, &item.Status,
		&item.Size, &item.MimeType, &item.ContentHash, &item.Fingerprint,
		&item.Caption, &item.AspectRatio, &item.Likes, &item.Comments,
		&item.Views, &item.CreatedAt, &item.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return item, nil
}
