package app

import (
	"time"

	apperrors "github.com/subdogs/hub/internal/platform/errors"
	"github.com/subdogs/hub/internal/services/hubcache/archive"
	"github.com/subdogs/hub/internal/services/hubcache/keys"
)

// WeatherParams locates a forecast request.
type WeatherParams struct {
	Latitude     float64
	Longitude    float64
	LocationName string
}

// GeocodingParams is a place search.
type GeocodingParams struct {
	Query string
}

// Request is one provider request. Only the params matching Kind are used.
type Request struct {
	Kind      keys.Kind
	News      keys.NewsParams
	Weather   WeatherParams
	Geocoding GeocodingParams
}

// NewsRequest builds a news request.
func NewsRequest(params keys.NewsParams) Request {
	return Request{Kind: keys.KindNews, News: params}
}

// WeatherRequest builds a forecast request.
func WeatherRequest(latitude, longitude float64, locationName string) Request {
	return Request{
		Kind: keys.KindWeather,
		Weather: WeatherParams{
			Latitude:     latitude,
			Longitude:    longitude,
			LocationName: locationName,
		},
	}
}

// GeocodingRequest builds a place search request.
func GeocodingRequest(query string) Request {
	return Request{Kind: keys.KindGeocoding, Geocoding: GeocodingParams{Query: query}}
}

// CacheKey derives the canonical cache key for the request.
func (r Request) CacheKey() (string, error) {
	switch r.Kind {
	case keys.KindNews:
		return keys.NewsKey(r.News), nil
	case keys.KindWeather:
		return keys.WeatherKey(r.Weather.Latitude, r.Weather.Longitude)
	case keys.KindGeocoding:
		return keys.GeocodingKey(r.Geocoding.Query)
	default:
		return "", apperrors.WithMetadata(apperrors.CodeInvalidParameters, "unknown cache kind", map[string]string{"kind": r.Kind.String()})
	}
}

func (r Request) archiveLocation() archive.Location {
	return archive.Location{
		Latitude:  r.Weather.Latitude,
		Longitude: r.Weather.Longitude,
		Name:      r.Weather.LocationName,
	}
}

// Result is a read-through answer.
//
// WasCached is true when the payload came from the store. IsStale is true
// when the payload is inside its kind's lead time; a stale cached payload
// also schedules a background refresh. Degraded marks an expired record
// served because the provider failed and stale-serve is enabled.
type Result struct {
	Payload   []byte
	FetchedAt time.Time
	ExpiresAt time.Time
	IsStale   bool
	WasCached bool
	Degraded  bool
}
