package keys

import (
	"math"
	"strconv"
	"strings"

	apperrors "github.com/subdogs/hub/internal/platform/errors"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	newsTokenSeparator    = "|"
	weatherKeySeparator   = ":"
	coordinateDecimals    = 4
	defaultNewsPage       = 1
	negativeZeroFormatted = "-0.0000"
)

// NewsParams are the semantic parameters of a news request. Empty strings
// are treated as absent.
type NewsParams struct {
	Query    string
	Category string
	Country  string
	Language string
	Page     int
}

// NewsKey builds the news cache key. Tokens appear in fixed order and only
// when their field is present; the page token is always present.
func NewsKey(params NewsParams) string {
	tokens := make([]string, 0, 5)
	if params.Query != "" {
		tokens = append(tokens, "q:"+params.Query)
	}
	if params.Category != "" {
		tokens = append(tokens, "cat:"+params.Category)
	}
	if params.Country != "" {
		tokens = append(tokens, "c:"+params.Country)
	}
	if params.Language != "" {
		tokens = append(tokens, "l:"+params.Language)
	}
	page := params.Page
	if page <= 0 {
		page = defaultNewsPage
	}
	tokens = append(tokens, "p:"+strconv.Itoa(page))
	return strings.Join(tokens, newsTokenSeparator)
}

// WeatherKey buckets a coordinate pair to 4 decimal places (~10 m).
func WeatherKey(latitude, longitude float64) (string, error) {
	if err := ValidateCoordinates(latitude, longitude); err != nil {
		return "", err
	}
	return FormatCoordinate(latitude) + weatherKeySeparator + FormatCoordinate(longitude), nil
}

// FormatCoordinate renders v with fixed 4-decimal precision, independent of
// locale.
func FormatCoordinate(v float64) string {
	formatted := strconv.FormatFloat(v, 'f', coordinateDecimals, 64)
	if formatted == negativeZeroFormatted {
		return formatted[1:]
	}
	return formatted
}

// RoundCoordinate returns the bucketed value used by WeatherKey.
func RoundCoordinate(v float64) float64 {
	rounded, err := strconv.ParseFloat(FormatCoordinate(v), 64)
	if err != nil {
		return v
	}
	return rounded
}

// ValidateCoordinates rejects non-finite or out-of-range coordinates.
func ValidateCoordinates(latitude, longitude float64) error {
	if math.IsNaN(latitude) || math.IsInf(latitude, 0) {
		return invalidCoordinate("latitude", latitude)
	}
	if math.IsNaN(longitude) || math.IsInf(longitude, 0) {
		return invalidCoordinate("longitude", longitude)
	}
	if latitude < -90 || latitude > 90 {
		return invalidCoordinate("latitude", latitude)
	}
	if longitude < -180 || longitude > 180 {
		return invalidCoordinate("longitude", longitude)
	}
	return nil
}

// GeocodingKey lower-cases and trims the query. Internal whitespace and
// punctuation are kept as-is, so "new york" and "new  york" are distinct.
func GeocodingKey(query string) (string, error) {
	key := strings.TrimSpace(cases.Lower(language.Und).String(query))
	if key == "" {
		return "", apperrors.New(apperrors.CodeInvalidParameters, "geocoding query is required")
	}
	return key, nil
}

func invalidCoordinate(field string, value float64) error {
	return apperrors.WithMetadata(
		apperrors.CodeInvalidParameters,
		field+" must be a finite, in-range coordinate",
		map[string]string{"field": field, "value": strconv.FormatFloat(value, 'g', -1, 64)},
	)
}
