// Package store provides the SQLite-backed item store for newsdeck.
package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"newsdeck/model"
)

// Store persists news items keyed by their identity.
type Store struct {
	db *sql.DB
}

var _ model.ItemStore = (*Store)(nil)

// New creates a Store with the given database path.
// Use ":memory:" for an in-memory database (useful for testing).
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, &model.StorageError{Err: fmt.Errorf("open database: %w", err)}
	}

	s := &Store{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, &model.StorageError{Err: fmt.Errorf("create schema: %w", err)}
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS items (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		summary TEXT,
		image_url TEXT,
		link TEXT,
		published INTEGER NOT NULL,
		source_id TEXT NOT NULL,
		source_name TEXT,
		is_read INTEGER DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_items_published ON items(published DESC);
	CREATE INDEX IF NOT EXISTS idx_items_source_id ON items(source_id);
	CREATE INDEX IF NOT EXISTS idx_items_is_read ON items(is_read);
	`

	_, err := s.db.Exec(schema)
	return err
}

// UpsertAll inserts new items unread and refreshes existing ones matched by
// id. The read flag of an existing row is never overwritten, so re-fetching
// a feed cannot flip read items back to unread.
func (s *Store) UpsertAll(items []model.NewsItem) error {
	if len(items) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return &model.StorageError{Err: fmt.Errorf("begin upsert: %w", err)}
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO items (id, title, summary, image_url, link, published, source_id, source_name, is_read)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			summary = excluded.summary,
			image_url = excluded.image_url,
			link = excluded.link,
			published = excluded.published,
			source_id = excluded.source_id,
			source_name = excluded.source_name`)
	if err != nil {
		return &model.StorageError{Err: fmt.Errorf("prepare upsert: %w", err)}
	}
	defer stmt.Close()

	for _, it := range items {
		_, err := stmt.Exec(
			it.ID, it.Title, it.Summary, it.ImageURL, it.Link,
			it.PublishedAt.Unix(), it.SourceID, it.SourceName,
		)
		if err != nil {
			return &model.StorageError{Err: fmt.Errorf("upsert item %s: %w", it.ID, err)}
		}
	}

	if err := tx.Commit(); err != nil {
		return &model.StorageError{Err: fmt.Errorf("commit upsert: %w", err)}
	}
	return nil
}

// FetchAll returns items sorted by publication time descending, optionally
// restricted to the given source identifiers.
func (s *Store) FetchAll(sourceIDs []string) ([]model.NewsItem, error) {
	return s.Query(QueryOptions{Sources: sourceIDs})
}

// Query retrieves items with filtering and pagination.
func (s *Store) Query(opts QueryOptions) ([]model.NewsItem, error) {
	query := "SELECT id, title, summary, image_url, link, published, source_id, source_name, is_read FROM items WHERE 1=1"
	args := []any{}

	if len(opts.Sources) > 0 {
		query += " AND source_id IN (?" + strings.Repeat(", ?", len(opts.Sources)-1) + ")"
		for _, id := range opts.Sources {
			args = append(args, id)
		}
	}

	if opts.UnreadOnly {
		query += " AND is_read = 0"
	}

	if opts.SinceTime != nil {
		query += " AND published >= ?"
		args = append(args, *opts.SinceTime)
	}

	query += " ORDER BY published DESC"

	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
	}

	if opts.Offset > 0 {
		query += " OFFSET ?"
		args = append(args, opts.Offset)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, &model.StorageError{Err: fmt.Errorf("query items: %w", err)}
	}
	defer rows.Close()

	var items []model.NewsItem
	for rows.Next() {
		var it model.NewsItem
		var publishedUnix int64
		var isReadInt int

		err := rows.Scan(&it.ID, &it.Title, &it.Summary, &it.ImageURL, &it.Link,
			&publishedUnix, &it.SourceID, &it.SourceName, &isReadInt)
		if err != nil {
			return nil, &model.StorageError{Err: fmt.Errorf("scan item: %w", err)}
		}

		it.PublishedAt = time.Unix(publishedUnix, 0).UTC()
		it.IsRead = isReadInt != 0
		items = append(items, it)
	}

	if err := rows.Err(); err != nil {
		return nil, &model.StorageError{Err: err}
	}
	return items, nil
}

// Get returns a single item by identifier.
func (s *Store) Get(id string) (model.NewsItem, error) {
	var it model.NewsItem
	var publishedUnix int64
	var isReadInt int

	err := s.db.QueryRow(
		"SELECT id, title, summary, image_url, link, published, source_id, source_name, is_read FROM items WHERE id = ?",
		id,
	).Scan(&it.ID, &it.Title, &it.Summary, &it.ImageURL, &it.Link,
		&publishedUnix, &it.SourceID, &it.SourceName, &isReadInt)
	if err == sql.ErrNoRows {
		return model.NewsItem{}, model.ErrNotFound
	}
	if err != nil {
		return model.NewsItem{}, &model.StorageError{Err: fmt.Errorf("get item: %w", err)}
	}

	it.PublishedAt = time.Unix(publishedUnix, 0).UTC()
	it.IsRead = isReadInt != 0
	return it, nil
}

// MarkRead marks one item as read. The flag is monotonic: there is no way to
// flip an item back to unread short of deleting it.
func (s *Store) MarkRead(id string) error {
	res, err := s.db.Exec("UPDATE items SET is_read = 1 WHERE id = ?", id)
	if err != nil {
		return &model.StorageError{Err: fmt.Errorf("mark read: %w", err)}
	}

	n, err := res.RowsAffected()
	if err != nil {
		return &model.StorageError{Err: err}
	}
	if n == 0 {
		return model.ErrNotFound
	}
	return nil
}

// MarkAllRead marks every stored item as read and returns how many flipped.
func (s *Store) MarkAllRead() (int64, error) {
	res, err := s.db.Exec("UPDATE items SET is_read = 1 WHERE is_read = 0")
	if err != nil {
		return 0, &model.StorageError{Err: fmt.Errorf("mark all read: %w", err)}
	}
	return res.RowsAffected()
}

// DeleteAll removes every stored item.
func (s *Store) DeleteAll() error {
	if _, err := s.db.Exec("DELETE FROM items"); err != nil {
		return &model.StorageError{Err: fmt.Errorf("delete items: %w", err)}
	}
	return nil
}

// Count returns the number of stored items.
func (s *Store) Count() (int, error) {
	var n int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM items").Scan(&n); err != nil {
		return 0, &model.StorageError{Err: fmt.Errorf("count items: %w", err)}
	}
	return n, nil
}
