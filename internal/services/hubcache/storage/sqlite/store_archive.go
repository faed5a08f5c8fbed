package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	hubstorage "github.com/subdogs/hub/internal/services/hubcache/storage"
)

const (
	newsArchiveColumns = `article_id, scope, title, link, description, content, image_url,
		source_id, source_name, categories_json, countries_json, language, pub_date, full_data, archived_at`
	weatherHistoryColumns = `latitude, longitude, date, scope, location_name, temperature_max,
		temperature_min, weather_code, precipitation_probability, archived_at`
	defaultNewsArchiveLimit    = 100
	defaultWeatherHistoryLimit = 30
)

// UpsertNewsArchive writes each article as its own upsert keyed by
// (article_id, scope); existing rows are patched in place.
func (s *Store) UpsertNewsArchive(ctx context.Context, records []hubstorage.NewsArchiveRecord) (int, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}
	if len(records) == 0 {
		return 0, nil
	}

	written := 0
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO news_archive (`+newsArchiveColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(article_id, scope) DO UPDATE SET
				title = excluded.title,
				link = excluded.link,
				description = excluded.description,
				content = excluded.content,
				image_url = excluded.image_url,
				source_id = excluded.source_id,
				source_name = excluded.source_name,
				categories_json = excluded.categories_json,
				countries_json = excluded.countries_json,
				language = excluded.language,
				pub_date = excluded.pub_date,
				full_data = excluded.full_data,
				archived_at = excluded.archived_at`)
		if err != nil {
			return fmt.Errorf("prepare news archive upsert: %w", err)
		}
		defer stmt.Close()

		for _, record := range records {
			if strings.TrimSpace(record.ArticleID) == "" {
				return fmt.Errorf("article id is required")
			}
			categories, err := encodeStrings(record.Categories)
			if err != nil {
				return fmt.Errorf("encode categories for %s: %w", record.ArticleID, err)
			}
			countries, err := encodeStrings(record.Countries)
			if err != nil {
				return fmt.Errorf("encode countries for %s: %w", record.ArticleID, err)
			}
			if _, err := stmt.ExecContext(
				ctx,
				record.ArticleID,
				record.Scope,
				record.Title,
				record.Link,
				record.Description,
				record.Content,
				record.ImageURL,
				record.SourceID,
				record.SourceName,
				categories,
				countries,
				record.Language,
				record.PubDate,
				record.FullData,
				timeToUnixMillis(record.ArchivedAt),
			); err != nil {
				return fmt.Errorf("upsert news archive %s: %w", record.ArticleID, err)
			}
			written++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return written, nil
}

// ListNewsArchive returns archived articles newest-first. An empty scope
// lists every scope.
func (s *Store) ListNewsArchive(ctx context.Context, scope string, limit int) ([]hubstorage.NewsArchiveRecord, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultNewsArchiveLimit
	}

	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT `+newsArchiveColumns+`
		 FROM news_archive
		 WHERE (? = '' OR scope = ?)
		 ORDER BY archived_at DESC, rowid DESC
		 LIMIT ?`,
		scope,
		scope,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list news archive: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	records := make([]hubstorage.NewsArchiveRecord, 0)
	for rows.Next() {
		var record hubstorage.NewsArchiveRecord
		var categories, countries string
		var archivedAt int64
		if err := rows.Scan(
			&record.ArticleID,
			&record.Scope,
			&record.Title,
			&record.Link,
			&record.Description,
			&record.Content,
			&record.ImageURL,
			&record.SourceID,
			&record.SourceName,
			&categories,
			&countries,
			&record.Language,
			&record.PubDate,
			&record.FullData,
			&archivedAt,
		); err != nil {
			return nil, fmt.Errorf("scan news archive: %w", err)
		}
		if record.Categories, err = decodeStrings(categories); err != nil {
			return nil, fmt.Errorf("decode categories for %s: %w", record.ArticleID, err)
		}
		if record.Countries, err = decodeStrings(countries); err != nil {
			return nil, fmt.Errorf("decode countries for %s: %w", record.ArticleID, err)
		}
		record.ArchivedAt = unixMillisToTime(archivedAt)
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate news archive: %w", err)
	}
	return records, nil
}

// UpsertWeatherHistory writes each forecast day as its own upsert keyed by
// (latitude, longitude, date, scope).
func (s *Store) UpsertWeatherHistory(ctx context.Context, records []hubstorage.WeatherHistoryRecord) (int, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}
	if len(records) == 0 {
		return 0, nil
	}

	written := 0
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO weather_history (`+weatherHistoryColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(latitude, longitude, date, scope) DO UPDATE SET
				location_name = excluded.location_name,
				temperature_max = excluded.temperature_max,
				temperature_min = excluded.temperature_min,
				weather_code = excluded.weather_code,
				precipitation_probability = excluded.precipitation_probability,
				archived_at = excluded.archived_at`)
		if err != nil {
			return fmt.Errorf("prepare weather history upsert: %w", err)
		}
		defer stmt.Close()

		for _, record := range records {
			if strings.TrimSpace(record.Date) == "" {
				return fmt.Errorf("weather history date is required")
			}
			if _, err := stmt.ExecContext(
				ctx,
				record.Latitude,
				record.Longitude,
				record.Date,
				record.Scope,
				record.LocationName,
				record.TemperatureMax,
				record.TemperatureMin,
				record.WeatherCode,
				record.PrecipitationProbability,
				timeToUnixMillis(record.ArchivedAt),
			); err != nil {
				return fmt.Errorf("upsert weather history %s: %w", record.Date, err)
			}
			written++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return written, nil
}

// ListWeatherHistory returns archived days for one location, latest date
// first, across every scope.
func (s *Store) ListWeatherHistory(ctx context.Context, latitude, longitude float64, limit int) ([]hubstorage.WeatherHistoryRecord, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultWeatherHistoryLimit
	}

	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT `+weatherHistoryColumns+`
		 FROM weather_history
		 WHERE latitude = ? AND longitude = ?
		 ORDER BY date DESC, archived_at DESC
		 LIMIT ?`,
		latitude,
		longitude,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list weather history: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	records := make([]hubstorage.WeatherHistoryRecord, 0)
	for rows.Next() {
		var record hubstorage.WeatherHistoryRecord
		var archivedAt int64
		if err := rows.Scan(
			&record.Latitude,
			&record.Longitude,
			&record.Date,
			&record.Scope,
			&record.LocationName,
			&record.TemperatureMax,
			&record.TemperatureMin,
			&record.WeatherCode,
			&record.PrecipitationProbability,
			&archivedAt,
		); err != nil {
			return nil, fmt.Errorf("scan weather history: %w", err)
		}
		record.ArchivedAt = unixMillisToTime(archivedAt)
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate weather history: %w", err)
	}
	return records, nil
}
