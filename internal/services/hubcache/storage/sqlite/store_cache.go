package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/subdogs/hub/internal/services/hubcache/keys"
	hubstorage "github.com/subdogs/hub/internal/services/hubcache/storage"
)

const cacheColumns = `id, kind, cache_key, scope, payload, fetched_at, expires_at`

type rowScanner interface {
	Scan(dest ...any) error
}

// GetCacheRecord loads the record for one (kind, key, scope) slot. A scoped
// miss does not fall back to the global slot.
func (s *Store) GetCacheRecord(ctx context.Context, kind keys.Kind, key, scope string) (hubstorage.CacheRecord, bool, error) {
	if err := s.ready(); err != nil {
		return hubstorage.CacheRecord{}, false, err
	}
	if strings.TrimSpace(key) == "" {
		return hubstorage.CacheRecord{}, false, fmt.Errorf("cache key is required")
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT `+cacheColumns+`
		 FROM cache_entries
		 WHERE kind = ? AND cache_key = ? AND scope = ?`,
		string(kind),
		key,
		scope,
	)
	record, err := scanCacheRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return hubstorage.CacheRecord{}, false, nil
		}
		return hubstorage.CacheRecord{}, false, fmt.Errorf("get cache record: %w", err)
	}
	return record, true, nil
}

// UpsertCacheRecord replaces the slot in place when the incoming FetchedAt is
// not older than the stored one, otherwise keeps the stored row. The row as
// stored after the call is returned.
func (s *Store) UpsertCacheRecord(ctx context.Context, record hubstorage.CacheRecord) (hubstorage.CacheRecord, error) {
	if err := s.ready(); err != nil {
		return hubstorage.CacheRecord{}, err
	}
	if !record.Kind.Valid() {
		return hubstorage.CacheRecord{}, fmt.Errorf("cache kind %q is invalid", record.Kind)
	}
	if strings.TrimSpace(record.Key) == "" {
		return hubstorage.CacheRecord{}, fmt.Errorf("cache key is required")
	}
	if len(record.Payload) == 0 {
		return hubstorage.CacheRecord{}, fmt.Errorf("cache payload is required")
	}
	if record.FetchedAt.IsZero() {
		return hubstorage.CacheRecord{}, fmt.Errorf("fetched at is required")
	}
	if !record.ExpiresAt.After(record.FetchedAt) {
		return hubstorage.CacheRecord{}, fmt.Errorf("expires at must be after fetched at")
	}

	var stored hubstorage.CacheRecord
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(
			ctx,
			`INSERT INTO cache_entries (`+cacheColumns+`)
			 VALUES (?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT(kind, cache_key, scope) DO UPDATE SET
			    payload = excluded.payload,
			    fetched_at = excluded.fetched_at,
			    expires_at = excluded.expires_at
			 WHERE excluded.fetched_at >= cache_entries.fetched_at`,
			s.newID(),
			string(record.Kind),
			record.Key,
			record.Scope,
			record.Payload,
			timeToUnixMillis(record.FetchedAt),
			timeToUnixMillis(record.ExpiresAt),
		); err != nil {
			return fmt.Errorf("upsert cache record: %w", err)
		}

		row := tx.QueryRowContext(
			ctx,
			`SELECT `+cacheColumns+`
			 FROM cache_entries
			 WHERE kind = ? AND cache_key = ? AND scope = ?`,
			string(record.Kind),
			record.Key,
			record.Scope,
		)
		var err error
		stored, err = scanCacheRecord(row)
		if err != nil {
			return fmt.Errorf("reload cache record: %w", err)
		}
		return nil
	})
	if err != nil {
		return hubstorage.CacheRecord{}, err
	}
	return stored, nil
}

// DeleteExpiredCacheRecords removes records whose expiration is before now.
// The condition is evaluated against each row at delete time.
func (s *Store) DeleteExpiredCacheRecords(ctx context.Context, kind keys.Kind, now time.Time) (int, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}
	result, err := s.sqlDB.ExecContext(
		ctx,
		`DELETE FROM cache_entries
		 WHERE (? = '' OR kind = ?) AND expires_at < ?`,
		string(kind),
		string(kind),
		timeToUnixMillis(now),
	)
	if err != nil {
		return 0, fmt.Errorf("delete expired cache records: %w", err)
	}
	return rowsAffected(result)
}

// DeleteCacheRecordsByScope removes every record of kind in one scope.
func (s *Store) DeleteCacheRecordsByScope(ctx context.Context, kind keys.Kind, scope string) (int, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}
	result, err := s.sqlDB.ExecContext(
		ctx,
		`DELETE FROM cache_entries WHERE (? = '' OR kind = ?) AND scope = ?`,
		string(kind),
		string(kind),
		scope,
	)
	if err != nil {
		return 0, fmt.Errorf("delete scoped cache records: %w", err)
	}
	return rowsAffected(result)
}

// DeleteAllCacheRecords removes every record of kind across all scopes.
func (s *Store) DeleteAllCacheRecords(ctx context.Context, kind keys.Kind) (int, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}
	result, err := s.sqlDB.ExecContext(
		ctx,
		`DELETE FROM cache_entries WHERE (? = '' OR kind = ?)`,
		string(kind),
		string(kind),
	)
	if err != nil {
		return 0, fmt.Errorf("delete cache records: %w", err)
	}
	return rowsAffected(result)
}

// CountCacheRecords classifies records of kind against now: valid when
// expires_at > now, expired otherwise.
func (s *Store) CountCacheRecords(ctx context.Context, kind keys.Kind, now time.Time) (hubstorage.CacheCounts, error) {
	if err := s.ready(); err != nil {
		return hubstorage.CacheCounts{}, err
	}
	var total, valid int64
	err := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT COUNT(*), COALESCE(SUM(CASE WHEN expires_at > ? THEN 1 ELSE 0 END), 0)
		 FROM cache_entries
		 WHERE (? = '' OR kind = ?)`,
		timeToUnixMillis(now),
		string(kind),
		string(kind),
	).Scan(&total, &valid)
	if err != nil {
		return hubstorage.CacheCounts{}, fmt.Errorf("count cache records: %w", err)
	}
	return hubstorage.CacheCounts{
		Total:   int(total),
		Valid:   int(valid),
		Expired: int(total - valid),
	}, nil
}

func scanCacheRecord(row rowScanner) (hubstorage.CacheRecord, error) {
	var record hubstorage.CacheRecord
	var kind string
	var fetchedAt, expiresAt int64
	if err := row.Scan(
		&record.ID,
		&kind,
		&record.Key,
		&record.Scope,
		&record.Payload,
		&fetchedAt,
		&expiresAt,
	); err != nil {
		return hubstorage.CacheRecord{}, err
	}
	record.Kind = keys.Kind(kind)
	record.FetchedAt = unixMillisToTime(fetchedAt)
	record.ExpiresAt = unixMillisToTime(expiresAt)
	return record, nil
}
