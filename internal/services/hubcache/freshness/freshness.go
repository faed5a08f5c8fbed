// Package freshness holds per-kind time-to-live and staleness policy.
package freshness

import (
	"time"

	apperrors "github.com/subdogs/hub/internal/platform/errors"
	"github.com/subdogs/hub/internal/services/hubcache/keys"
)

const (
	NewsTTL           = time.Hour
	NewsLeadTime      = 10 * time.Minute
	WeatherTTL        = 30 * time.Minute
	WeatherLeadTime   = 5 * time.Minute
	GeocodingTTL      = 24 * time.Hour
	GeocodingLeadTime = time.Duration(0)

	// MinTTL is the storage timestamp resolution. Shorter TTLs would persist
	// records that expire at their own fetch instant.
	MinTTL = time.Millisecond
)

// Policy is the freshness rule for one kind.
//
// LeadTime may be greater than or equal to TTL; records are then stale as
// soon as they are written.
type Policy struct {
	TTL      time.Duration
	LeadTime time.Duration
}

// ExpiresAt returns the expiration instant for a record fetched at fetchedAt.
func (p Policy) ExpiresAt(fetchedAt time.Time) time.Time {
	return fetchedAt.Add(p.TTL)
}

// IsExpired reports whether a record expiring at expiresAt is a miss at now.
func (p Policy) IsExpired(now, expiresAt time.Time) bool {
	return expiresAt.Before(now)
}

// IsStale reports whether an unexpired record should trigger a background
// refresh. The first stale instant is expiresAt - LeadTime. Expired records
// are never stale; a zero lead time disables staleness.
func (p Policy) IsStale(now, expiresAt time.Time) bool {
	if p.LeadTime <= 0 || p.IsExpired(now, expiresAt) {
		return false
	}
	return !now.Before(expiresAt.Add(-p.LeadTime))
}

// StaleAt returns the first instant at which a record is reported stale, or
// the zero time when staleness is disabled.
func (p Policy) StaleAt(expiresAt time.Time) time.Time {
	if p.LeadTime <= 0 {
		return time.Time{}
	}
	return expiresAt.Add(-p.LeadTime)
}

func (p Policy) validate(kind keys.Kind) error {
	if p.TTL < MinTTL {
		return apperrors.WithMetadata(apperrors.CodeInvalidPolicy, "ttl must be at least 1ms", map[string]string{"kind": kind.String()})
	}
	if p.LeadTime < 0 {
		return apperrors.WithMetadata(apperrors.CodeInvalidPolicy, "lead time must not be negative", map[string]string{"kind": kind.String()})
	}
	return nil
}

// Policies maps each kind to its policy.
type Policies map[keys.Kind]Policy

// Defaults returns the built-in policy table.
func Defaults() Policies {
	return Policies{
		keys.KindNews:      {TTL: NewsTTL, LeadTime: NewsLeadTime},
		keys.KindWeather:   {TTL: WeatherTTL, LeadTime: WeatherLeadTime},
		keys.KindGeocoding: {TTL: GeocodingTTL, LeadTime: GeocodingLeadTime},
	}
}

// For returns the policy for kind.
func (ps Policies) For(kind keys.Kind) (Policy, error) {
	policy, ok := ps[kind]
	if !ok {
		return Policy{}, apperrors.WithMetadata(apperrors.CodeUnknownKind, "no freshness policy for kind", map[string]string{"kind": kind.String()})
	}
	return policy, nil
}

// Validate checks every entry.
func (ps Policies) Validate() error {
	for _, kind := range keys.AllKinds() {
		policy, err := ps.For(kind)
		if err != nil {
			return err
		}
		if err := policy.validate(kind); err != nil {
			return err
		}
	}
	return nil
}

// Clone returns an independent copy.
func (ps Policies) Clone() Policies {
	out := make(Policies, len(ps))
	for kind, policy := range ps {
		out[kind] = policy
	}
	return out
}
