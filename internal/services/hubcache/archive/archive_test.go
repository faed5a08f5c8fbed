package archive

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	apperrors "github.com/subdogs/hub/internal/platform/errors"
	"github.com/subdogs/hub/internal/services/hubcache/keys"
	hubstorage "github.com/subdogs/hub/internal/services/hubcache/storage"
	"github.com/subdogs/hub/internal/services/hubcache/storage/sqlite"
)

const newsPayload = `{
	"status": "success",
	"totalResults": 3,
	"results": [
		{"article_id": "a1", "title": "Markets", "category": ["business", "top"], "country": ["us"], "pubDate": "2026-03-04 09:00:00"},
		{"article_id": "a2", "title": "Storms", "category": ["top"], "country": ["us"]},
		{"article_id": "a3", "title": "Goals", "category": ["sports"], "country": null}
	]
}`

const weatherPayload = `{
	"latitude": 40.71,
	"longitude": -74.01,
	"timezone": "America/New_York",
	"daily": {
		"time": ["2026-03-04", "2026-03-05", "2026-03-06"],
		"temperature_2m_max": [10.5, 12.1, 9.8],
		"temperature_2m_min": [2.0, 3.4, 1.1],
		"weather_code": [3, 61]
	}
}`

var t0 = time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)

func newTestArchiver(t *testing.T) *Archiver {
	t.Helper()
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "archive.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	archiver := New(store)
	archiver.now = func() time.Time { return t0 }
	return archiver
}

func TestDecodeNewsSkipsArticlesWithoutID(t *testing.T) {
	payload := []byte(`{"status":"success","results":[{"article_id":"a1","title":"x"},{"title":"no id"}]}`)
	records, err := DecodeNews(payload, "user-1", t0)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("records = %d, want 1", len(records))
	}
	if records[0].Scope != "user-1" || !records[0].ArchivedAt.Equal(t0) {
		t.Fatalf("record = %+v", records[0])
	}
	if string(records[0].FullData) != `{"article_id":"a1","title":"x"}` {
		t.Fatalf("full data = %s", records[0].FullData)
	}
}

func TestDecodeNewsRejectsMalformedPayload(t *testing.T) {
	if _, err := DecodeNews([]byte(`{"results": 7}`), "", t0); err == nil {
		t.Fatal("expected error")
	}
}

func TestDecodeWeatherSplitsDays(t *testing.T) {
	location := Location{Latitude: 40.712812, Longitude: -74.006049, Name: "New York"}
	records, err := DecodeWeather([]byte(weatherPayload), location, "", t0)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("records = %d, want 3", len(records))
	}
	want := hubstorage.WeatherHistoryRecord{
		LocationName:   "New York",
		Latitude:       40.7128,
		Longitude:      -74.006,
		Date:           "2026-03-06",
		TemperatureMax: 9.8,
		TemperatureMin: 1.1,
		ArchivedAt:     t0,
	}
	if diff := cmp.Diff(want, records[2]); diff != "" {
		t.Fatalf("third day mismatch (-want +got):\n%s", diff)
	}
	if records[1].WeatherCode != 61 {
		t.Fatalf("weather code = %d, want 61", records[1].WeatherCode)
	}
}

func TestWriteThroughNewsOneRowPerArticle(t *testing.T) {
	archiver := newTestArchiver(t)
	ctx := context.Background()

	written, err := archiver.WriteThrough(ctx, keys.KindNews, []byte(newsPayload), Location{}, "")
	if err != nil {
		t.Fatalf("write through: %v", err)
	}
	if written != 3 {
		t.Fatalf("written = %d, want 3", written)
	}

	// A second query surfacing an overlapping article patches it.
	archiver.now = func() time.Time { return t0.Add(time.Minute) }
	overlap := `{"status":"success","results":[{"article_id":"a2","title":"Storms update","category":["top"]}]}`
	if _, err := archiver.WriteThrough(ctx, keys.KindNews, []byte(overlap), Location{}, ""); err != nil {
		t.Fatalf("overlap write through: %v", err)
	}

	rows, err := archiver.ListNews(ctx, "", NewsFilter{}, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(rows))
	}
	if rows[0].ArticleID != "a2" || rows[0].Title != "Storms update" {
		t.Fatalf("newest row = %s %q", rows[0].ArticleID, rows[0].Title)
	}
}

func TestListNewsPostFiltersByCategory(t *testing.T) {
	archiver := newTestArchiver(t)
	ctx := context.Background()
	if _, err := archiver.WriteThrough(ctx, keys.KindNews, []byte(newsPayload), Location{}, ""); err != nil {
		t.Fatalf("write through: %v", err)
	}

	tests := []struct {
		name   string
		filter NewsFilter
		want   int
	}{
		{name: "no filter", filter: NewsFilter{}, want: 3},
		{name: "top", filter: NewsFilter{Category: "top"}, want: 2},
		{name: "case insensitive", filter: NewsFilter{Category: "SPORTS"}, want: 1},
		{name: "no match", filter: NewsFilter{Category: "science"}, want: 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rows, err := archiver.ListNews(ctx, "", tc.filter, 0)
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if len(rows) != tc.want {
				t.Fatalf("rows = %d, want %d", len(rows), tc.want)
			}
		})
	}
}

func TestWriteThroughWeatherPatchesOverlappingDays(t *testing.T) {
	archiver := newTestArchiver(t)
	ctx := context.Background()
	location := Location{Latitude: 40.7128, Longitude: -74.006, Name: "New York"}

	if _, err := archiver.WriteThrough(ctx, keys.KindWeather, []byte(weatherPayload), location, ""); err != nil {
		t.Fatalf("first write through: %v", err)
	}
	next := `{"daily":{"time":["2026-03-06","2026-03-07"],"temperature_2m_max":[11.0,13.0]}}`
	written, err := archiver.WriteThrough(ctx, keys.KindWeather, []byte(next), location, "")
	if err != nil {
		t.Fatalf("second write through: %v", err)
	}
	if written != 2 {
		t.Fatalf("written = %d, want 2", written)
	}

	rows, err := archiver.ListWeatherHistory(ctx, 40.71281, -74.00604, "", 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	dates := make([]string, 0, len(rows))
	for _, row := range rows {
		dates = append(dates, row.Date)
	}
	if diff := cmp.Diff([]string{"2026-03-07", "2026-03-06", "2026-03-05", "2026-03-04"}, dates); diff != "" {
		t.Fatalf("dates mismatch (-want +got):\n%s", diff)
	}
	if rows[1].TemperatureMax != 11.0 {
		t.Fatalf("patched max = %v, want 11", rows[1].TemperatureMax)
	}
}

func TestListWeatherHistoryFiltersScope(t *testing.T) {
	archiver := newTestArchiver(t)
	ctx := context.Background()
	location := Location{Latitude: 1, Longitude: 2}

	if _, err := archiver.WriteThrough(ctx, keys.KindWeather, []byte(weatherPayload), location, "user-1"); err != nil {
		t.Fatalf("scoped write through: %v", err)
	}
	if _, err := archiver.WriteThrough(ctx, keys.KindWeather, []byte(weatherPayload), location, ""); err != nil {
		t.Fatalf("global write through: %v", err)
	}

	all, err := archiver.ListWeatherHistory(ctx, 1, 2, "", 0)
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 6 {
		t.Fatalf("all rows = %d, want 6", len(all))
	}
	scoped, err := archiver.ListWeatherHistory(ctx, 1, 2, "user-1", 0)
	if err != nil {
		t.Fatalf("list scoped: %v", err)
	}
	if len(scoped) != 3 {
		t.Fatalf("scoped rows = %d, want 3", len(scoped))
	}
}

func TestListWeatherHistoryRejectsInvalidCoordinates(t *testing.T) {
	archiver := newTestArchiver(t)
	_, err := archiver.ListWeatherHistory(context.Background(), 91, 0, "", 0)
	if !apperrors.IsInvalidParameters(err) {
		t.Fatalf("err = %v, want invalid parameters", err)
	}
}

func TestWriteThroughGeocodingIsNoop(t *testing.T) {
	archiver := newTestArchiver(t)
	written, err := archiver.WriteThrough(context.Background(), keys.KindGeocoding, []byte(`[]`), Location{}, "")
	if err != nil {
		t.Fatalf("write through: %v", err)
	}
	if written != 0 {
		t.Fatalf("written = %d, want 0", written)
	}
}

type failingArchiveStore struct {
	hubstorage.ArchiveStore
}

func (failingArchiveStore) UpsertNewsArchive(context.Context, []hubstorage.NewsArchiveRecord) (int, error) {
	return 0, errors.New("disk full")
}

func TestWriteThroughWrapsStoreErrors(t *testing.T) {
	archiver := New(failingArchiveStore{})
	_, err := archiver.WriteThrough(context.Background(), keys.KindNews, []byte(newsPayload), Location{}, "")
	if !apperrors.IsStoreUnavailable(err) {
		t.Fatalf("err = %v, want store unavailable", err)
	}
}

func TestWriteThroughRejectsMalformedPayload(t *testing.T) {
	archiver := newTestArchiver(t)
	_, err := archiver.WriteThrough(context.Background(), keys.KindWeather, []byte(`not json`), Location{}, "")
	if !apperrors.IsProviderError(err) {
		t.Fatalf("err = %v, want provider error", err)
	}
}
