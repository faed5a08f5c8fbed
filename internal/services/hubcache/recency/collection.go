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
	BookmarksCollection      = "bookmarks"
	SavedLocationsCollection = "saved_locations"
)

// Saved is one member of a collection.
type Saved[T any] struct {
	ID        string
	Record    T
	CreatedAt time.Time
}

// Collection is an unbounded, insert-only set deduplicated by natural key.
// Saving an existing key is a no-op that returns the existing member.
type Collection[T any] struct {
	store      hubstorage.RecencyStore
	name       string
	naturalKey func(T) (string, error)
	now        func() time.Time
}

// NewCollection returns the collection named name over store.
func NewCollection[T any](store hubstorage.RecencyStore, name string, naturalKey func(T) (string, error)) *Collection[T] {
	return &Collection[T]{store: store, name: name, naturalKey: naturalKey, now: time.Now}
}

// NewBookmarks returns the bookmarked articles collection.
func NewBookmarks(store hubstorage.RecencyStore) *Collection[Article] {
	return NewCollection(store, BookmarksCollection, ArticleKey)
}

// NewSavedLocations returns the saved locations collection, deduplicated by
// exact coordinate pair.
func NewSavedLocations(store hubstorage.RecencyStore) *Collection[Location] {
	return NewCollection(store, SavedLocationsCollection, LocationKey)
}

// Save adds record unless an equal natural key is already saved. created is
// false when the existing member was returned.
func (c *Collection[T]) Save(ctx context.Context, scope string, record T) (Saved[T], bool, error) {
	if c == nil || c.store == nil {
		return Saved[T]{}, false, apperrors.New(apperrors.CodeStoreUnavailable, "recency store is not configured")
	}
	key, err := c.naturalKey(record)
	if err != nil {
		return Saved[T]{}, false, err
	}
	data, err := json.Marshal(record)
	if err != nil {
		return Saved[T]{}, false, fmt.Errorf("encode %s record: %w", c.name, err)
	}
	item, created, err := c.store.SaveItem(ctx, hubstorage.SavedItem{
		Collection: c.name,
		Scope:      scope,
		NaturalKey: key,
		Record:     data,
		CreatedAt:  c.now().UTC(),
	})
	if err != nil {
		return Saved[T]{}, false, apperrors.WrapWithMetadata(apperrors.CodeStoreUnavailable, "save item", map[string]string{"collection": c.name}, err)
	}
	saved, err := c.decode(item)
	if err != nil {
		return Saved[T]{}, false, err
	}
	return saved, created, nil
}

// Lookup returns the saved member with record's natural key.
func (c *Collection[T]) Lookup(ctx context.Context, scope string, record T) (Saved[T], bool, error) {
	if c == nil || c.store == nil {
		return Saved[T]{}, false, apperrors.New(apperrors.CodeStoreUnavailable, "recency store is not configured")
	}
	key, err := c.naturalKey(record)
	if err != nil {
		return Saved[T]{}, false, err
	}
	item, found, err := c.store.GetSavedItem(ctx, c.name, scope, key)
	if err != nil {
		return Saved[T]{}, false, apperrors.WrapWithMetadata(apperrors.CodeStoreUnavailable, "get saved item", map[string]string{"collection": c.name}, err)
	}
	if !found {
		return Saved[T]{}, false, nil
	}
	saved, err := c.decode(item)
	if err != nil {
		return Saved[T]{}, false, err
	}
	return saved, true, nil
}

// List returns the scope's members newest-first.
func (c *Collection[T]) List(ctx context.Context, scope string) ([]Saved[T], error) {
	if c == nil || c.store == nil {
		return nil, apperrors.New(apperrors.CodeStoreUnavailable, "recency store is not configured")
	}
	items, err := c.store.ListSavedItems(ctx, c.name, scope)
	if err != nil {
		return nil, apperrors.WrapWithMetadata(apperrors.CodeStoreUnavailable, "list saved items", map[string]string{"collection": c.name}, err)
	}
	out := make([]Saved[T], 0, len(items))
	for _, item := range items {
		saved, err := c.decode(item)
		if err != nil {
			return nil, err
		}
		out = append(out, saved)
	}
	return out, nil
}

// Remove deletes a member by id.
func (c *Collection[T]) Remove(ctx context.Context, scope, id string) error {
	if c == nil || c.store == nil {
		return apperrors.New(apperrors.CodeStoreUnavailable, "recency store is not configured")
	}
	deleted, err := c.store.DeleteSavedItem(ctx, c.name, scope, id)
	if err != nil {
		return apperrors.WrapWithMetadata(apperrors.CodeStoreUnavailable, "delete saved item", map[string]string{"collection": c.name}, err)
	}
	if !deleted {
		return apperrors.WithMetadata(apperrors.CodeNotFound, "saved item not found", map[string]string{"collection": c.name, "id": id})
	}
	return nil
}

func (c *Collection[T]) decode(item hubstorage.SavedItem) (Saved[T], error) {
	var record T
	if err := json.Unmarshal(item.Record, &record); err != nil {
		return Saved[T]{}, fmt.Errorf("decode %s item %s: %w", c.name, item.ID, err)
	}
	return Saved[T]{ID: item.ID, Record: record, CreatedAt: item.CreatedAt}, nil
}
