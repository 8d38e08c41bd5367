// Package sqlite backs the metadata index with a row-oriented SQLite store.
package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/drivehit/gallery-sync/internal/port"
)

// Options tunes the backing store
type Options struct {
	BusyTimeoutMs int
	CacheSize     int
	CacheTTL      time.Duration
	LockWait      time.Duration
}

// Store implements port.Store using SQLite
type Store struct {
	db          *sql.DB
	items       port.ItemRepository
	deadLetters *DeadLetterRepo
	engagement  *EngagementRepo
}

var _ port.Store = (*Store)(nil)

// Open opens a connection to the SQLite database and migrates the schema
func Open(dbPath string, opts Options) (*Store, error) {
	if opts.BusyTimeoutMs <= 0 {
		opts.BusyTimeoutMs = 5000
	}

	db, err := sql.Open("sqlite", fmt.Sprintf("%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(%d)", dbPath, opts.BusyTimeoutMs))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
		fmt.Sprintf("PRAGMA busy_timeout = %d", opts.BusyTimeoutMs),
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma %s: %w", pragma, err)
		}
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	itemRepo := &ItemRepo{db: db}
	store.items = NewCachedItems(itemRepo, opts.CacheSize, opts.CacheTTL, opts.LockWait)
	store.deadLetters = &DeadLetterRepo{db: db}
	store.engagement = &EngagementRepo{db: db}

	return store, nil
}

// Items returns the metadata index repository
func (s *Store) Items() port.ItemRepository {
	return s.items
}

// DeadLetters returns the dead-letter sink
func (s *Store) DeadLetters() port.DeadLetterRepository {
	return s.deadLetters
}

// Engagement returns the engagement event log
func (s *Store) Engagement() port.EngagementRepository {
	return s.engagement
}

// Ping checks database connectivity
func (s *Store) Ping() error {
	return s.db.Ping()
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// migrate creates or updates the database schema. New columns are only ever
// appended via the ignored-error ALTER list, never reordered or deleted, so
// readers built against older schemas keep working.
func (s *Store) migrate() error {
	itemColumns := `
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		category TEXT NOT NULL DEFAULT '',
		slug TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'published',
		size INTEGER NOT NULL DEFAULT 0,
		mime_type TEXT NOT NULL DEFAULT '',
		content_hash TEXT NOT NULL DEFAULT '',
		fingerprint TEXT NOT NULL DEFAULT '',
		caption TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	`

	migrations := []string{
		`CREATE TABLE IF NOT EXISTS items (` + itemColumns + `)`,
		`CREATE TABLE IF NOT EXISTS items_archive (` + itemColumns + `)`,

		`CREATE TABLE IF NOT EXISTS dead_letters (
			id TEXT PRIMARY KEY,
			path TEXT NOT NULL,
			error TEXT NOT NULL DEFAULT '',
			payload TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS engagement (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			item_id TEXT NOT NULL,
			user TEXT NOT NULL,
			type TEXT NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE INDEX IF NOT EXISTS idx_items_status ON items(status)`,
		`CREATE INDEX IF NOT EXISTS idx_items_category ON items(category)`,
		`CREATE INDEX IF NOT EXISTS idx_items_hash ON items(content_hash)`,
		`CREATE INDEX IF NOT EXISTS idx_items_archive_hash ON items_archive(content_hash)`,
		`CREATE INDEX IF NOT EXISTS idx_engagement_item ON engagement(item_id)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_engagement_like
			ON engagement(item_id, user) WHERE type = 'like'`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return fmt.Errorf("migration failed: %w\nSQL: %s", err, migration)
		}
	}

	// Additive columns (safe ALTER TABLE - ignores if column exists)
	alterMigrations := []string{
		`ALTER TABLE items ADD COLUMN aspect_ratio TEXT NOT NULL DEFAULT ''`,
		`ALTER TABLE items ADD COLUMN likes INTEGER NOT NULL DEFAULT 0`,
		`ALTER TABLE items ADD COLUMN comments INTEGER NOT NULL DEFAULT 0`,
		`ALTER TABLE items ADD COLUMN views INTEGER NOT NULL DEFAULT 0`,
		`ALTER TABLE items_archive ADD COLUMN aspect_ratio TEXT NOT NULL DEFAULT ''`,
		`ALTER TABLE items_archive ADD COLUMN likes INTEGER NOT NULL DEFAULT 0`,
		`ALTER TABLE items_archive ADD COLUMN comments INTEGER NOT NULL DEFAULT 0`,
		`ALTER TABLE items_archive ADD COLUMN views INTEGER NOT NULL DEFAULT 0`,
	}
	for _, migration := range alterMigrations {
		// Ignore errors for ALTER TABLE as column may already exist
		s.db.Exec(migration)
	}

	return nil
}
