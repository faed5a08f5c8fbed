// Package recency maintains bounded most-recent-first activity lists and
// deduplicated saved collections.
package recency

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	apperrors "github.com/subdogs/hub/internal/platform/errors"
	hubstorage "github.com/subdogs/hub/internal/services/hubcache/storage"
)

const (
	RecentArticlesList  = "recent_articles"
	RecentLocationsList = "recent_locations"

	DefaultCapacity     = 20
	DefaultDisplayLimit = 10
)

// Options bounds a list.
type Options struct {
	Capacity     int
	DisplayLimit int
}

func (o Options) normalized() Options {
	if o.Capacity <= 0 {
		o.Capacity = DefaultCapacity
	}
	if o.DisplayLimit <= 0 {
		o.DisplayLimit = DefaultDisplayLimit
	}
	if o.DisplayLimit > o.Capacity {
		o.DisplayLimit = o.Capacity
	}
	return o
}

// Entry is one list position.
type Entry[T any] struct {
	Record    T
	TouchedAt time.Time
}

// List is a per-scope, fixed-capacity recency list deduplicated by natural key.
// Only Touch moves an entry; reads never promote.
type List[T any] struct {
	store      hubstorage.RecencyStore
	id         string
	naturalKey func(T) (string, error)
	options    Options
	now        func() time.Time
}

// NewList returns the list named id over store.
func NewList[T any](store hubstorage.RecencyStore, id string, naturalKey func(T) (string, error), options Options) *List[T] {
	return &List[T]{
		store:      store,
		id:         id,
		naturalKey: naturalKey,
		options:    options.normalized(),
		now:        time.Now,
	}
}

// NewRecentArticles returns the recently viewed articles list.
func NewRecentArticles(store hubstorage.RecencyStore, options Options) *List[Article] {
	return NewList(store, RecentArticlesList, ArticleKey, options)
}

// NewRecentLocations returns the recently searched locations list.
func NewRecentLocations(store hubstorage.RecencyStore, options Options) *List[Location] {
	return NewList(store, RecentLocationsList, LocationKey, options)
}

// ID returns the list name.
func (l *List[T]) ID() string { return l.id }

// Options returns the normalized bounds.
func (l *List[T]) Options() Options { return l.options }

// Touch moves record to the front of the scope's list with a fresh timestamp,
// dropping any older entry with the same natural key and anything past
// capacity.
func (l *List[T]) Touch(ctx context.Context, scope string, record T) error {
	if l == nil || l.store == nil {
		return apperrors.New(apperrors.CodeStoreUnavailable, "recency store is not configured")
	}
	key, err := l.naturalKey(record)
	if err != nil {
		return err
	}
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode %s record: %w", l.id, err)
	}
	entry := hubstorage.RecencyEntry{
		List:       l.id,
		Scope:      scope,
		NaturalKey: key,
		Record:     data,
		TouchedAt:  l.now().UTC(),
	}
	if err := l.store.TouchRecencyEntry(ctx, entry, l.options.Capacity); err != nil {
		return apperrors.WrapWithMetadata(apperrors.CodeStoreUnavailable, "touch recency entry", map[string]string{"list": l.id}, err)
	}
	return nil
}

// List returns up to limit entries newest-first. A non-positive limit uses the
// display limit.
func (l *List[T]) List(ctx context.Context, scope string, limit int) ([]Entry[T], error) {
	if l == nil || l.store == nil {
		return nil, apperrors.New(apperrors.CodeStoreUnavailable, "recency store is not configured")
	}
	if limit <= 0 {
		limit = l.options.DisplayLimit
	}
	rows, err := l.store.ListRecencyEntries(ctx, l.id, scope, limit)
	if err != nil {
		return nil, apperrors.WrapWithMetadata(apperrors.CodeStoreUnavailable, "list recency entries", map[string]string{"list": l.id}, err)
	}
	entries := make([]Entry[T], 0, len(rows))
	for _, row := range rows {
		var record T
		if err := json.Unmarshal(row.Record, &record); err != nil {
			return nil, fmt.Errorf("decode %s entry %s: %w", l.id, row.NaturalKey, err)
		}
		entries = append(entries, Entry[T]{Record: record, TouchedAt: row.TouchedAt})
	}
	return entries, nil
}

// Clear empties the scope's list.
func (l *List[T]) Clear(ctx context.Context, scope string) (int, error) {
	if l == nil || l.store == nil {
		return 0, apperrors.New(apperrors.CodeStoreUnavailable, "recency store is not configured")
	}
	removed, err := l.store.ClearRecencyEntries(ctx, l.id, scope)
	if err != nil {
		return 0, apperrors.WrapWithMetadata(apperrors.CodeStoreUnavailable, "clear recency entries", map[string]string{"list": l.id}, err)
	}
	return removed, nil
}

// ClearAll empties the list for every scope.
func (l *List[T]) ClearAll(ctx context.Context) (int, error) {
	if l == nil || l.store == nil {
		return 0, apperrors.New(apperrors.CodeStoreUnavailable, "recency store is not configured")
	}
	removed, err := l.store.ClearAllRecencyEntries(ctx, l.id)
	if err != nil {
		return 0, apperrors.WrapWithMetadata(apperrors.CodeStoreUnavailable, "clear recency entries", map[string]string{"list": l.id}, err)
	}
	return removed, nil
}
