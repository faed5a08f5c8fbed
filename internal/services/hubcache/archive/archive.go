// Package archive decomposes cached provider payloads into permanent,
// per-entity history rows and serves the history read paths.
package archive

import (
	"context"
	"slices"
	"strings"
	"time"

	apperrors "github.com/subdogs/hub/internal/platform/errors"
	"github.com/subdogs/hub/internal/services/hubcache/keys"
	hubstorage "github.com/subdogs/hub/internal/services/hubcache/storage"
)

const (
	// DefaultNewsLimit is the news history page size before post-filtering.
	DefaultNewsLimit = 100
	// DefaultWeatherLimit is the number of forecast days returned per location.
	DefaultWeatherLimit = 30
)

// Archiver writes through to and reads from an ArchiveStore.
type Archiver struct {
	store hubstorage.ArchiveStore
	now   func() time.Time
}

// New returns an Archiver over store.
func New(store hubstorage.ArchiveStore) *Archiver {
	return &Archiver{store: store, now: time.Now}
}

// WriteThrough upserts one archive row per entity contained in payload and
// returns the number of rows written. Geocoding payloads are not archived.
func (a *Archiver) WriteThrough(ctx context.Context, kind keys.Kind, payload []byte, location Location, scope string) (int, error) {
	if a == nil || a.store == nil {
		return 0, apperrors.New(apperrors.CodeStoreUnavailable, "archive store is not configured")
	}
	archivedAt := a.now().UTC()

	switch kind {
	case keys.KindNews:
		records, err := DecodeNews(payload, scope, archivedAt)
		if err != nil {
			return 0, apperrors.Wrap(apperrors.CodeProviderError, "archive news", err)
		}
		written, err := a.store.UpsertNewsArchive(ctx, records)
		if err != nil {
			return 0, apperrors.Wrap(apperrors.CodeStoreUnavailable, "archive news", err)
		}
		return written, nil
	case keys.KindWeather:
		records, err := DecodeWeather(payload, location, scope, archivedAt)
		if err != nil {
			return 0, apperrors.Wrap(apperrors.CodeProviderError, "archive weather", err)
		}
		written, err := a.store.UpsertWeatherHistory(ctx, records)
		if err != nil {
			return 0, apperrors.Wrap(apperrors.CodeStoreUnavailable, "archive weather", err)
		}
		return written, nil
	case keys.KindGeocoding:
		return 0, nil
	default:
		return 0, apperrors.WithMetadata(apperrors.CodeUnknownKind, "kind is not archivable", map[string]string{"kind": kind.String()})
	}
}

// NewsFilter narrows a news history page in memory.
type NewsFilter struct {
	Category string
}

func (f NewsFilter) matches(record hubstorage.NewsArchiveRecord) bool {
	category := strings.TrimSpace(f.Category)
	if category == "" {
		return true
	}
	return slices.ContainsFunc(record.Categories, func(value string) bool {
		return strings.EqualFold(value, category)
	})
}

// ListNews returns up to limit archived articles newest-first, then applies
// filter to that page. A filtered result may therefore be shorter than limit;
// callers wanting N matches should ask for more rows.
func (a *Archiver) ListNews(ctx context.Context, scope string, filter NewsFilter, limit int) ([]hubstorage.NewsArchiveRecord, error) {
	if a == nil || a.store == nil {
		return nil, apperrors.New(apperrors.CodeStoreUnavailable, "archive store is not configured")
	}
	if limit <= 0 {
		limit = DefaultNewsLimit
	}
	page, err := a.store.ListNewsArchive(ctx, scope, limit)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeStoreUnavailable, "list news archive", err)
	}
	filtered := make([]hubstorage.NewsArchiveRecord, 0, len(page))
	for _, record := range page {
		if filter.matches(record) {
			filtered = append(filtered, record)
		}
	}
	return filtered, nil
}

// ListWeatherHistory returns archived forecast days for a location, latest
// date first. A non-empty scope keeps only that scope's rows.
func (a *Archiver) ListWeatherHistory(ctx context.Context, latitude, longitude float64, scope string, limit int) ([]hubstorage.WeatherHistoryRecord, error) {
	if a == nil || a.store == nil {
		return nil, apperrors.New(apperrors.CodeStoreUnavailable, "archive store is not configured")
	}
	if err := keys.ValidateCoordinates(latitude, longitude); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultWeatherLimit
	}
	page, err := a.store.ListWeatherHistory(ctx, keys.RoundCoordinate(latitude), keys.RoundCoordinate(longitude), limit)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeStoreUnavailable, "list weather history", err)
	}
	if scope == "" {
		return page, nil
	}
	filtered := make([]hubstorage.WeatherHistoryRecord, 0, len(page))
	for _, record := range page {
		if record.Scope == scope {
			filtered = append(filtered, record)
		}
	}
	return filtered, nil
}
