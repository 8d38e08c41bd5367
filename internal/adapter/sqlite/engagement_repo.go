package sqlite

import (
	"database/sql"

	"github.com/drivehit/gallery-sync/internal/domain"
	"github.com/drivehit/gallery-sync/internal/port"
)

// EngagementRepo implements port.EngagementRepository
type EngagementRepo struct {
	db *sql.DB
}

var _ port.EngagementRepository = (*EngagementRepo)(nil)

// ToggleLike records or removes a like for user on item. Returns true if the
// item is liked after the call.
func (r *EngagementRepo) ToggleLike(itemID, user string) (bool, error) {
	var existing int64
	err := r.db.QueryRow(`
		SELECT id FROM engagement
		WHERE item_id = ? AND user = ? AND type = 'like'
	`, itemID, user).Scan(&existing)

	if err == nil {
		_, err = r.db.Exec("DELETE FROM engagement WHERE id = ?", existing)
		return false, err
	}
	if err != sql.ErrNoRows {
		return false, err
	}

	_, err = r.db.Exec(`
		INSERT INTO engagement (item_id, user, type) VALUES (?, ?, 'like')
	`, itemID, user)
	return true, err
}

// Record appends one engagement event
func (r *EngagementRepo) Record(event *domain.EngagementEvent) error {
	_, err := r.db.Exec(`
		INSERT INTO engagement (item_id, user, type) VALUES (?, ?, ?)
	`, event.ItemID, event.User, event.Type)
	return err
}

// Counts returns aggregate engagement for an item
func (r *EngagementRepo) Counts(itemID string) (likes, comments, views int64, err error) {
	rows, err := r.db.Query(`
		SELECT type, COUNT(*) FROM engagement
		WHERE item_id = ?
		GROUP BY type
	`, itemID)
	if err != nil {
		return 0, 0, 0, err
	}
	defer rows.Close()

	for rows.Next() {
		var typ string
		var count int64
		if err := rows.Scan(&typ, &count); err != nil {
			return 0, 0, 0, err
		}
		switch typ {
		case domain.EngagementLike:
			likes = count
		case domain.EngagementComment:
			comments = count
		case domain.EngagementView:
			views = count
		}
	}
	return likes, comments, views, rows.Err()
}

// DeleteForItem removes all engagement for a purged item
func (r *EngagementRepo) DeleteForItem(itemID string) error {
	_, err := r.db.Exec("DELETE FROM engagement WHERE item_id = ?", itemID)
	return err
}
