// Package storage defines persistence contracts for the hub cache.
//
// Scope is an opaque principal identifier; the empty string is the shared,
// global namespace. Scoped and global rows are disjoint: a scoped lookup never
// falls back to the global row.
package storage

import (
	"context"
	"time"

	"github.com/subdogs/hub/internal/services/hubcache/keys"
)

// CacheRecord stores one provider payload for a (kind, key, scope) slot.
type CacheRecord struct {
	ID        string
	Kind      keys.Kind
	Key       string
	Scope     string
	Payload   []byte
	FetchedAt time.Time
	ExpiresAt time.Time
}

// CacheCounts classifies records of one kind against an instant.
type CacheCounts struct {
	Total   int
	Valid   int
	Expired int
}

// CacheStore is the volatile, time-bounded cache.
//
// UpsertCacheRecord is last-write-wins by FetchedAt: a write carrying an
// older FetchedAt than the stored row leaves the row untouched. The returned
// record is the row as stored after the call, and its ID is stable across
// replacements.
//
// An empty kind on the delete and count calls matches every kind.
type CacheStore interface {
	GetCacheRecord(ctx context.Context, kind keys.Kind, key, scope string) (CacheRecord, bool, error)
	UpsertCacheRecord(ctx context.Context, record CacheRecord) (CacheRecord, error)
	DeleteExpiredCacheRecords(ctx context.Context, kind keys.Kind, now time.Time) (int, error)
	DeleteCacheRecordsByScope(ctx context.Context, kind keys.Kind, scope string) (int, error)
	DeleteAllCacheRecords(ctx context.Context, kind keys.Kind) (int, error)
	CountCacheRecords(ctx context.Context, kind keys.Kind, now time.Time) (CacheCounts, error)
}

// NewsArchiveRecord is one archived article, unique per (ArticleID, Scope).
type NewsArchiveRecord struct {
	ArticleID   string
	Scope       string
	Title       string
	Link        string
	Description string
	Content     string
	ImageURL    string
	SourceID    string
	SourceName  string
	Categories  []string
	Countries   []string
	Language    string
	PubDate     string
	FullData    []byte
	ArchivedAt  time.Time
}

// WeatherHistoryRecord is one archived forecast day, unique per
// (Latitude, Longitude, Date, Scope).
type WeatherHistoryRecord struct {
	Scope                    string
	LocationName             string
	Latitude                 float64
	Longitude                float64
	Date                     string
	TemperatureMax           float64
	TemperatureMin           float64
	WeatherCode              int
	PrecipitationProbability float64
	ArchivedAt               time.Time
}

// ArchiveStore is the permanent history log. Rows never expire.
//
// List calls with an empty scope return rows of every scope.
type ArchiveStore interface {
	UpsertNewsArchive(ctx context.Context, records []NewsArchiveRecord) (int, error)
	ListNewsArchive(ctx context.Context, scope string, limit int) ([]NewsArchiveRecord, error)
	UpsertWeatherHistory(ctx context.Context, records []WeatherHistoryRecord) (int, error)
	ListWeatherHistory(ctx context.Context, latitude, longitude float64, limit int) ([]WeatherHistoryRecord, error)
}

// RecencyEntry is one position in a most-recent-first list.
type RecencyEntry struct {
	List       string
	Scope      string
	NaturalKey string
	Record     []byte
	TouchedAt  time.Time
}

// SavedItem is one member of a deduplicated, insert-only collection.
type SavedItem struct {
	ID         string
	Collection string
	Scope      string
	NaturalKey string
	Record     []byte
	CreatedAt  time.Time
}

// RecencyStore persists recency lists and saved collections.
//
// TouchRecencyEntry removes any entry with the same natural key, inserts the
// entry at the front, and evicts entries beyond capacity, atomically per
// (list, scope).
//
// SaveItem is a no-op when (collection, scope, natural key) already exists;
// it then returns the existing item and created=false.
type RecencyStore interface {
	TouchRecencyEntry(ctx context.Context, entry RecencyEntry, capacity int) error
	ListRecencyEntries(ctx context.Context, list, scope string, limit int) ([]RecencyEntry, error)
	ClearRecencyEntries(ctx context.Context, list, scope string) (int, error)
	ClearAllRecencyEntries(ctx context.Context, list string) (int, error)

	SaveItem(ctx context.Context, item SavedItem) (SavedItem, bool, error)
	GetSavedItem(ctx context.Context, collection, scope, naturalKey string) (SavedItem, bool, error)
	ListSavedItems(ctx context.Context, collection, scope string) ([]SavedItem, error)
	DeleteSavedItem(ctx context.Context, collection, scope, id string) (bool, error)
}

// Store is the full persistence contract.
type Store interface {
	CacheStore
	ArchiveStore
	RecencyStore
	Close() error
}
