package sqlite

import (
	"database/sql"
	"time"

	"github.com/drivehit/gallery-sync/internal/domain"
	"github.com/drivehit/gallery-sync/internal/port"
)

// DeadLetterRepo implements port.DeadLetterRepository
type DeadLetterRepo struct {
	db *sql.DB
}

var _ port.DeadLetterRepository = (*DeadLetterRepo)(nil)

// Append records one exhausted notification
func (r *DeadLetterRepo) Append(entry *domain.DeadLetterEntry) error {
	_, err := r.db.Exec(`
		INSERT INTO dead_letters (id, path, error, payload, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, entry.ID, entry.Path, entry.Error, entry.Payload, entry.CreatedAt)
	return err
}

// List returns the most recent dead letters
func (r *DeadLetterRepo) List(limit int) ([]*domain.DeadLetterEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.Query(`
		SELECT id, path, error, payload, created_at
		FROM dead_letters
		ORDER BY created_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*domain.DeadLetterEntry
	for rows.Next() {
		entry := &domain.DeadLetterEntry{}
		if err := rows.Scan(&entry.ID, &entry.Path, &entry.Error, &entry.Payload, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// DeleteOlderThan prunes entries created before the cutoff
func (r *DeadLetterRepo) DeleteOlderThan(cutoff time.Time) (int, error) {
	res, err := r.db.Exec("DELETE FROM dead_letters WHERE created_at < ?", cutoff)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}
