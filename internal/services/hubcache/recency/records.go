package recency

import (
	"strconv"
	"strings"

	apperrors "github.com/subdogs/hub/internal/platform/errors"
	"github.com/subdogs/hub/internal/services/hubcache/keys"
)

// Article is the display snapshot kept for a viewed or bookmarked article.
type Article struct {
	ArticleID   string   `json:"article_id"`
	Title       string   `json:"title"`
	Link        string   `json:"link,omitempty"`
	Description string   `json:"description,omitempty"`
	ImageURL    string   `json:"image_url,omitempty"`
	SourceName  string   `json:"source_name,omitempty"`
	Category    []string `json:"category,omitempty"`
	PubDate     string   `json:"pub_date,omitempty"`
}

// Location is the display snapshot kept for a searched or saved place.
type Location struct {
	Name      string  `json:"name"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Country   string  `json:"country,omitempty"`
	Admin1    string  `json:"admin1,omitempty"`
}

// ArticleKey identifies an article by its provider id.
func ArticleKey(article Article) (string, error) {
	id := strings.TrimSpace(article.ArticleID)
	if id == "" {
		return "", apperrors.New(apperrors.CodeInvalidParameters, "article id is required")
	}
	return id, nil
}

// LocationKey identifies a location by its exact coordinate pair. Unlike the
// weather cache key, no rounding is applied. Negative zero is folded into
// zero.
func LocationKey(location Location) (string, error) {
	if err := keys.ValidateCoordinates(location.Latitude, location.Longitude); err != nil {
		return "", err
	}
	return formatCoordinate(location.Latitude) + "," + formatCoordinate(location.Longitude), nil
}

func formatCoordinate(v float64) string {
	if v == 0 {
		v = 0
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}
