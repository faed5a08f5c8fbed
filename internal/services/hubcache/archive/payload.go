package archive

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/subdogs/hub/internal/services/hubcache/keys"
	hubstorage "github.com/subdogs/hub/internal/services/hubcache/storage"
)

// NewsResponse is the provider shape of a news query result.
type NewsResponse struct {
	Status       string            `json:"status"`
	TotalResults int               `json:"totalResults"`
	Results      []json.RawMessage `json:"results"`
	NextPage     string            `json:"nextPage,omitempty"`
}

// NewsArticle is the subset of an article the archive indexes.
type NewsArticle struct {
	ArticleID   string   `json:"article_id"`
	Title       string   `json:"title"`
	Link        string   `json:"link"`
	Description string   `json:"description"`
	Content     string   `json:"content"`
	ImageURL    string   `json:"image_url"`
	SourceID    string   `json:"source_id"`
	SourceName  string   `json:"source_name"`
	Category    []string `json:"category"`
	Country     []string `json:"country"`
	Language    string   `json:"language"`
	PubDate     string   `json:"pubDate"`
}

// WeatherResponse is the provider shape of a daily forecast.
type WeatherResponse struct {
	Latitude  float64      `json:"latitude"`
	Longitude float64      `json:"longitude"`
	Timezone  string       `json:"timezone"`
	Daily     WeatherDaily `json:"daily"`
}

// WeatherDaily holds parallel per-day arrays indexed by Time.
type WeatherDaily struct {
	Time                        []string  `json:"time"`
	TemperatureMax              []float64 `json:"temperature_2m_max"`
	TemperatureMin              []float64 `json:"temperature_2m_min"`
	WeatherCode                 []int     `json:"weather_code"`
	PrecipitationProbabilityMax []float64 `json:"precipitation_probability_max"`
}

// Location identifies the place a weather payload was requested for.
type Location struct {
	Latitude  float64
	Longitude float64
	Name      string
}

// DecodeNews splits a news payload into one archive record per article.
// Articles without an id are skipped.
func DecodeNews(payload []byte, scope string, archivedAt time.Time) ([]hubstorage.NewsArchiveRecord, error) {
	var response NewsResponse
	if err := json.Unmarshal(payload, &response); err != nil {
		return nil, fmt.Errorf("decode news payload: %w", err)
	}

	records := make([]hubstorage.NewsArchiveRecord, 0, len(response.Results))
	for i, raw := range response.Results {
		var article NewsArticle
		if err := json.Unmarshal(raw, &article); err != nil {
			return nil, fmt.Errorf("decode news article %d: %w", i, err)
		}
		if strings.TrimSpace(article.ArticleID) == "" {
			continue
		}
		records = append(records, hubstorage.NewsArchiveRecord{
			ArticleID:   article.ArticleID,
			Scope:       scope,
			Title:       article.Title,
			Link:        article.Link,
			Description: article.Description,
			Content:     article.Content,
			ImageURL:    article.ImageURL,
			SourceID:    article.SourceID,
			SourceName:  article.SourceName,
			Categories:  article.Category,
			Countries:   article.Country,
			Language:    article.Language,
			PubDate:     article.PubDate,
			FullData:    append([]byte(nil), raw...),
			ArchivedAt:  archivedAt,
		})
	}
	return records, nil
}

// DecodeWeather splits a forecast payload into one archive record per day.
// The location is bucketed the same way as the weather cache key, and
// missing per-day values default to zero.
func DecodeWeather(payload []byte, location Location, scope string, archivedAt time.Time) ([]hubstorage.WeatherHistoryRecord, error) {
	var response WeatherResponse
	if err := json.Unmarshal(payload, &response); err != nil {
		return nil, fmt.Errorf("decode weather payload: %w", err)
	}

	latitude := keys.RoundCoordinate(location.Latitude)
	longitude := keys.RoundCoordinate(location.Longitude)
	daily := response.Daily
	records := make([]hubstorage.WeatherHistoryRecord, 0, len(daily.Time))
	for i, date := range daily.Time {
		if strings.TrimSpace(date) == "" {
			continue
		}
		records = append(records, hubstorage.WeatherHistoryRecord{
			Scope:                    scope,
			LocationName:             location.Name,
			Latitude:                 latitude,
			Longitude:                longitude,
			Date:                     date,
			TemperatureMax:           valueAt(daily.TemperatureMax, i),
			TemperatureMin:           valueAt(daily.TemperatureMin, i),
			WeatherCode:              valueAt(daily.WeatherCode, i),
			PrecipitationProbability: valueAt(daily.PrecipitationProbabilityMax, i),
			ArchivedAt:               archivedAt,
		})
	}
	return records, nil
}

func valueAt[T any](values []T, i int) T {
	var zero T
	if i < 0 || i >= len(values) {
		return zero
	}
	return values[i]
}
