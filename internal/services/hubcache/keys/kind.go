package keys

import (
	"strings"

	apperrors "github.com/subdogs/hub/internal/platform/errors"
)

// Kind identifies one cached data family.
type Kind string

const (
	KindNews      Kind = "news"
	KindWeather   Kind = "weather"
	KindGeocoding Kind = "geocoding"
)

// AllKinds returns every cache kind in administration order.
func AllKinds() []Kind {
	return []Kind{KindNews, KindWeather, KindGeocoding}
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	switch k {
	case KindNews, KindWeather, KindGeocoding:
		return true
	default:
		return false
	}
}

func (k Kind) String() string { return string(k) }

// ParseKind normalizes and validates a kind name.
func ParseKind(value string) (Kind, error) {
	kind := Kind(strings.ToLower(strings.TrimSpace(value)))
	if !kind.Valid() {
		return "", apperrors.WithMetadata(apperrors.CodeUnknownKind, "unknown cache kind", map[string]string{"kind": value})
	}
	return kind, nil
}
