package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	hubstorage "github.com/subdogs/hub/internal/services/hubcache/storage"
)

// TouchRecencyEntry moves the entry to the front of its (list, scope) and
// trims the list to capacity in one transaction.
func (s *Store) TouchRecencyEntry(ctx context.Context, entry hubstorage.RecencyEntry, capacity int) error {
	if err := s.ready(); err != nil {
		return err
	}
	if strings.TrimSpace(entry.List) == "" {
		return fmt.Errorf("recency list is required")
	}
	if strings.TrimSpace(entry.NaturalKey) == "" {
		return fmt.Errorf("recency natural key is required")
	}
	if capacity <= 0 {
		return fmt.Errorf("recency capacity must be positive")
	}
	if len(entry.Record) == 0 {
		entry.Record = []byte("{}")
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(
			ctx,
			`DELETE FROM recency_entries WHERE list_id = ? AND scope = ? AND natural_key = ?`,
			entry.List,
			entry.Scope,
			entry.NaturalKey,
		); err != nil {
			return fmt.Errorf("remove recency entry: %w", err)
		}
		if _, err := tx.ExecContext(
			ctx,
			`INSERT INTO recency_entries (list_id, scope, natural_key, record_json, touched_at)
			 VALUES (?, ?, ?, ?, ?)`,
			entry.List,
			entry.Scope,
			entry.NaturalKey,
			entry.Record,
			timeToUnixMillis(entry.TouchedAt),
		); err != nil {
			return fmt.Errorf("insert recency entry: %w", err)
		}
		if _, err := tx.ExecContext(
			ctx,
			`DELETE FROM recency_entries
			 WHERE list_id = ? AND scope = ? AND seq NOT IN (
				SELECT seq FROM recency_entries
				WHERE list_id = ? AND scope = ?
				ORDER BY touched_at DESC, seq DESC
				LIMIT ?
			 )`,
			entry.List,
			entry.Scope,
			entry.List,
			entry.Scope,
			capacity,
		); err != nil {
			return fmt.Errorf("evict recency entries: %w", err)
		}
		return nil
	})
}

// ListRecencyEntries returns up to limit entries, most recent first.
func (s *Store) ListRecencyEntries(ctx context.Context, list, scope string, limit int) ([]hubstorage.RecencyEntry, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return []hubstorage.RecencyEntry{}, nil
	}

	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT list_id, scope, natural_key, record_json, touched_at
		 FROM recency_entries
		 WHERE list_id = ? AND scope = ?
		 ORDER BY touched_at DESC, seq DESC
		 LIMIT ?`,
		list,
		scope,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list recency entries: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	entries := make([]hubstorage.RecencyEntry, 0)
	for rows.Next() {
		var entry hubstorage.RecencyEntry
		var touchedAt int64
		if err := rows.Scan(&entry.List, &entry.Scope, &entry.NaturalKey, &entry.Record, &touchedAt); err != nil {
			return nil, fmt.Errorf("scan recency entry: %w", err)
		}
		entry.TouchedAt = unixMillisToTime(touchedAt)
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate recency entries: %w", err)
	}
	return entries, nil
}

// ClearRecencyEntries empties one (list, scope).
func (s *Store) ClearRecencyEntries(ctx context.Context, list, scope string) (int, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}
	result, err := s.sqlDB.ExecContext(
		ctx,
		`DELETE FROM recency_entries WHERE list_id = ? AND scope = ?`,
		list,
		scope,
	)
	if err != nil {
		return 0, fmt.Errorf("clear recency entries: %w", err)
	}
	return rowsAffected(result)
}

// ClearAllRecencyEntries empties a list across every scope.
func (s *Store) ClearAllRecencyEntries(ctx context.Context, list string) (int, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}
	result, err := s.sqlDB.ExecContext(ctx, `DELETE FROM recency_entries WHERE list_id = ?`, list)
	if err != nil {
		return 0, fmt.Errorf("clear all recency entries: %w", err)
	}
	return rowsAffected(result)
}

// SaveItem inserts the item unless its natural key already exists in the
// collection, in which case the stored item is returned unchanged.
func (s *Store) SaveItem(ctx context.Context, item hubstorage.SavedItem) (hubstorage.SavedItem, bool, error) {
	if err := s.ready(); err != nil {
		return hubstorage.SavedItem{}, false, err
	}
	if strings.TrimSpace(item.Collection) == "" {
		return hubstorage.SavedItem{}, false, fmt.Errorf("collection is required")
	}
	if strings.TrimSpace(item.NaturalKey) == "" {
		return hubstorage.SavedItem{}, false, fmt.Errorf("natural key is required")
	}
	if strings.TrimSpace(item.ID) == "" {
		item.ID = s.newID()
	}
	if len(item.Record) == 0 {
		item.Record = []byte("{}")
	}

	var stored hubstorage.SavedItem
	created := false
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(
			ctx,
			`INSERT INTO saved_items (id, collection, scope, natural_key, record_json, created_at)
			 VALUES (?, ?, ?, ?, ?, ?)
			 ON CONFLICT(collection, scope, natural_key) DO NOTHING`,
			item.ID,
			item.Collection,
			item.Scope,
			item.NaturalKey,
			item.Record,
			timeToUnixMillis(item.CreatedAt),
		)
		if err != nil {
			return fmt.Errorf("insert saved item: %w", err)
		}
		n, err := rowsAffected(result)
		if err != nil {
			return err
		}
		created = n > 0

		row := tx.QueryRowContext(
			ctx,
			`SELECT id, collection, scope, natural_key, record_json, created_at
			 FROM saved_items
			 WHERE collection = ? AND scope = ? AND natural_key = ?`,
			item.Collection,
			item.Scope,
			item.NaturalKey,
		)
		stored, err = scanSavedItem(row)
		if err != nil {
			return fmt.Errorf("reload saved item: %w", err)
		}
		return nil
	})
	if err != nil {
		return hubstorage.SavedItem{}, false, err
	}
	return stored, created, nil
}

// GetSavedItem looks up an item by natural key.
func (s *Store) GetSavedItem(ctx context.Context, collection, scope, naturalKey string) (hubstorage.SavedItem, bool, error) {
	if err := s.ready(); err != nil {
		return hubstorage.SavedItem{}, false, err
	}
	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT id, collection, scope, natural_key, record_json, created_at
		 FROM saved_items
		 WHERE collection = ? AND scope = ? AND natural_key = ?`,
		collection,
		scope,
		naturalKey,
	)
	item, err := scanSavedItem(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return hubstorage.SavedItem{}, false, nil
		}
		return hubstorage.SavedItem{}, false, fmt.Errorf("get saved item: %w", err)
	}
	return item, true, nil
}

// ListSavedItems returns a collection newest-first.
func (s *Store) ListSavedItems(ctx context.Context, collection, scope string) ([]hubstorage.SavedItem, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT id, collection, scope, natural_key, record_json, created_at
		 FROM saved_items
		 WHERE collection = ? AND scope = ?
		 ORDER BY created_at DESC, rowid DESC`,
		collection,
		scope,
	)
	if err != nil {
		return nil, fmt.Errorf("list saved items: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	items := make([]hubstorage.SavedItem, 0)
	for rows.Next() {
		item, err := scanSavedItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan saved item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate saved items: %w", err)
	}
	return items, nil
}

// DeleteSavedItem removes an item by id. It reports whether a row was removed.
func (s *Store) DeleteSavedItem(ctx context.Context, collection, scope, id string) (bool, error) {
	if err := s.ready(); err != nil {
		return false, err
	}
	result, err := s.sqlDB.ExecContext(
		ctx,
		`DELETE FROM saved_items WHERE collection = ? AND scope = ? AND id = ?`,
		collection,
		scope,
		id,
	)
	if err != nil {
		return false, fmt.Errorf("delete saved item: %w", err)
	}
	n, err := rowsAffected(result)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func scanSavedItem(row rowScanner) (hubstorage.SavedItem, error) {
	var item hubstorage.SavedItem
	var createdAt int64
	if err := row.Scan(&item.ID, &item.Collection, &item.Scope, &item.NaturalKey, &item.Record, &createdAt); err != nil {
		return hubstorage.SavedItem{}, err
	}
	item.CreatedAt = unixMillisToTime(createdAt)
	return item, nil
}
