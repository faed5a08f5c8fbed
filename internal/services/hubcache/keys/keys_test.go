package keys

import (
	"math"
	"testing"

	apperrors "github.com/subdogs/hub/internal/platform/errors"
)

func TestNewsKey(t *testing.T) {
	tests := []struct {
		name   string
		params NewsParams
		want   string
	}{
		{"category only", NewsParams{Category: "top"}, "cat:top|p:1"},
		{"category and country", NewsParams{Category: "top", Country: "us"}, "cat:top|c:us|p:1"},
		{"all fields", NewsParams{Query: "go", Category: "technology", Country: "us", Language: "en", Page: 3}, "q:go|cat:technology|c:us|l:en|p:3"},
		{"no fields", NewsParams{}, "p:1"},
		{"negative page", NewsParams{Query: "go", Page: -2}, "q:go|p:1"},
		{"language without country", NewsParams{Language: "fr"}, "l:fr|p:1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NewsKey(tt.params); got != tt.want {
				t.Fatalf("NewsKey(%+v) = %q, want %q", tt.params, got, tt.want)
			}
		})
	}
}

func TestNewsKeyDeterministicAndDistinct(t *testing.T) {
	base := NewsParams{Query: "rust", Category: "technology", Country: "us", Language: "en", Page: 2}
	if NewsKey(base) != NewsKey(base) {
		t.Fatal("expected identical keys for identical params")
	}

	variants := []NewsParams{
		{Query: "rusty", Category: "technology", Country: "us", Language: "en", Page: 2},
		{Query: "rust", Category: "science", Country: "us", Language: "en", Page: 2},
		{Query: "rust", Category: "technology", Country: "gb", Language: "en", Page: 2},
		{Query: "rust", Category: "technology", Country: "us", Language: "de", Page: 2},
		{Query: "rust", Category: "technology", Country: "us", Language: "en", Page: 3},
		{Category: "technology", Country: "us", Language: "en", Page: 2},
	}
	seen := map[string]bool{NewsKey(base): true}
	for _, v := range variants {
		key := NewsKey(v)
		if seen[key] {
			t.Fatalf("key %q collides for %+v", key, v)
		}
		seen[key] = true
	}
}

func TestWeatherKey(t *testing.T) {
	key, err := WeatherKey(40.7128, -74.0060)
	if err != nil {
		t.Fatalf("weather key: %v", err)
	}
	if key != "40.7128:-74.0060" {
		t.Fatalf("key = %q, want %q", key, "40.7128:-74.0060")
	}
}

func TestWeatherKeyBucketsFifthDecimal(t *testing.T) {
	a, err := WeatherKey(40.71281, -74.00601)
	if err != nil {
		t.Fatalf("weather key: %v", err)
	}
	b, err := WeatherKey(40.71284, -74.00604)
	if err != nil {
		t.Fatalf("weather key: %v", err)
	}
	if a != b {
		t.Fatalf("expected same bucket, got %q and %q", a, b)
	}

	c, err := WeatherKey(40.7129, -74.0060)
	if err != nil {
		t.Fatalf("weather key: %v", err)
	}
	if a == c {
		t.Fatalf("expected different bucket for 4th decimal change, both %q", a)
	}
}

func TestWeatherKeyNormalizesNegativeZero(t *testing.T) {
	a, err := WeatherKey(-0.00001, 0.00001)
	if err != nil {
		t.Fatalf("weather key: %v", err)
	}
	if a != "0.0000:0.0000" {
		t.Fatalf("key = %q, want %q", a, "0.0000:0.0000")
	}
}

func TestWeatherKeyRejectsInvalidCoordinates(t *testing.T) {
	cases := []struct {
		lat, lon float64
	}{
		{math.NaN(), 0},
		{0, math.Inf(1)},
		{math.Inf(-1), 0},
		{91, 0},
		{0, -181},
	}
	for _, tc := range cases {
		_, err := WeatherKey(tc.lat, tc.lon)
		if !apperrors.IsInvalidParameters(err) {
			t.Fatalf("WeatherKey(%v, %v) err = %v, want invalid parameters", tc.lat, tc.lon, err)
		}
	}
}

func TestRoundCoordinate(t *testing.T) {
	if got := RoundCoordinate(51.507351); got != 51.5074 {
		t.Fatalf("round = %v, want 51.5074", got)
	}
}

func TestGeocodingKey(t *testing.T) {
	tests := []struct {
		query string
		want  string
	}{
		{"  New York ", "new york"},
		{"London,UK", "london,uk"},
		{"new  york", "new  york"},
		{"São Paulo", "são paulo"},
		{"ÉCOLE", "école"},
	}
	for _, tt := range tests {
		got, err := GeocodingKey(tt.query)
		if err != nil {
			t.Fatalf("GeocodingKey(%q): %v", tt.query, err)
		}
		if got != tt.want {
			t.Fatalf("GeocodingKey(%q) = %q, want %q", tt.query, got, tt.want)
		}
	}

	single, _ := GeocodingKey("new york")
	double, _ := GeocodingKey("new  york")
	if single == double {
		t.Fatal("internal whitespace must be preserved")
	}
}

func TestGeocodingKeyRejectsBlank(t *testing.T) {
	if _, err := GeocodingKey("   "); !apperrors.IsInvalidParameters(err) {
		t.Fatalf("err = %v, want invalid parameters", err)
	}
}

func TestParseKind(t *testing.T) {
	kind, err := ParseKind(" Weather ")
	if err != nil {
		t.Fatalf("parse kind: %v", err)
	}
	if kind != KindWeather {
		t.Fatalf("kind = %q, want %q", kind, KindWeather)
	}
	if _, err := ParseKind("sports"); apperrors.CodeOf(err) != apperrors.CodeUnknownKind {
		t.Fatalf("err = %v, want unknown kind", err)
	}
}
